package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/acadperu/sigea-api/internal/grading"
)

// ResultCache stores computed final grades in Redis so repeated reads of an
// unchanged gradebook skip the database round trip. Any grade write for the
// student+course pair must invalidate the entry.
type ResultCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewResultCache creates a new final grade cache with the given TTL.
func NewResultCache(client *redis.Client, ttl time.Duration) *ResultCache {
	return &ResultCache{client: client, ttl: ttl}
}

func finalGradeKey(studentID, courseID string) string {
	return fmt.Sprintf("grades:final:%s:%s", studentID, courseID)
}

// GetFinalGrade returns the cached result, or nil on a miss. Cache errors are
// returned so the caller can log and fall through to a fresh computation.
func (c *ResultCache) GetFinalGrade(ctx context.Context, studentID, courseID string) (*grading.FinalGradeResult, error) {
	payload, err := c.client.Get(ctx, finalGradeKey(studentID, courseID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("get final grade cache: %w", err)
	}
	var result grading.FinalGradeResult
	if err := json.Unmarshal(payload, &result); err != nil {
		return nil, fmt.Errorf("decode final grade cache: %w", err)
	}
	return &result, nil
}

// SetFinalGrade stores a freshly computed result.
func (c *ResultCache) SetFinalGrade(ctx context.Context, result *grading.FinalGradeResult) error {
	payload, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("encode final grade cache: %w", err)
	}
	if err := c.client.Set(ctx, finalGradeKey(result.StudentID, result.CourseID), payload, c.ttl).Err(); err != nil {
		return fmt.Errorf("set final grade cache: %w", err)
	}
	return nil
}

// InvalidateFinalGrade drops the cached result for one student+course pair.
func (c *ResultCache) InvalidateFinalGrade(ctx context.Context, studentID, courseID string) error {
	if err := c.client.Del(ctx, finalGradeKey(studentID, courseID)).Err(); err != nil {
		return fmt.Errorf("invalidate final grade cache: %w", err)
	}
	return nil
}
