package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gopkg.in/gomail.v2"

	"github.com/acadperu/sigea-api/internal/metrics"
	"github.com/acadperu/sigea-api/internal/models"
	"github.com/acadperu/sigea-api/pkg/jobs"
)

type notificationUserFinder interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
}

type mailSender interface {
	DialAndSend(m ...*gomail.Message) error
}

// NotificationConfig tunes grade email delivery.
type NotificationConfig struct {
	Enabled    bool
	From       string
	Workers    int
	MaxRetries int
}

// NotificationService delivers grade change emails to students through a
// background worker queue. Enqueueing never blocks the grading write path.
type NotificationService struct {
	users  notificationUserFinder
	sender mailSender
	config NotificationConfig
	logger *zap.Logger
	queue  *jobs.Queue
}

// NewNotificationService constructs a NotificationService and its queue. Call
// Start before enqueueing and Stop on shutdown.
func NewNotificationService(users notificationUserFinder, sender mailSender, config NotificationConfig, logger *zap.Logger) *NotificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &NotificationService{users: users, sender: sender, config: config, logger: logger}
	s.queue = jobs.NewQueue("grade-notifications", s.deliver, jobs.QueueConfig{
		Workers:    config.Workers,
		MaxRetries: config.MaxRetries,
		Logger:     logger,
	})
	return s
}

// Start launches the delivery workers.
func (s *NotificationService) Start(ctx context.Context) {
	s.queue.Start(ctx)
}

// Stop drains the delivery workers.
func (s *NotificationService) Stop() {
	s.queue.Stop()
}

// NotifyGradeChange enqueues a grade notification for asynchronous delivery.
func (s *NotificationService) NotifyGradeChange(notification GradeNotification) error {
	if !s.config.Enabled {
		return nil
	}
	return s.queue.Enqueue(jobs.Job{
		ID:      uuid.NewString(),
		Type:    "grade_change",
		Payload: notification,
	})
}

func (s *NotificationService) deliver(ctx context.Context, job jobs.Job) error {
	notification, ok := job.Payload.(GradeNotification)
	if !ok {
		s.logger.Error("unexpected notification payload", zap.String("job_id", job.ID))
		return nil
	}

	student, err := s.users.FindByID(ctx, notification.StudentID)
	if err != nil {
		metrics.NotificationsSent.WithLabelValues("error").Inc()
		return fmt.Errorf("load student %s: %w", notification.StudentID, err)
	}

	msg := gomail.NewMessage()
	msg.SetHeader("From", s.config.From)
	msg.SetHeader("To", student.Email)
	msg.SetHeader("Subject", fmt.Sprintf("Nota %s en %s", notification.Action, notification.CourseName))
	msg.SetBody("text/plain", s.composeBody(student, notification))

	if err := s.sender.DialAndSend(msg); err != nil {
		metrics.NotificationsSent.WithLabelValues("error").Inc()
		return fmt.Errorf("send grade notification: %w", err)
	}
	metrics.NotificationsSent.WithLabelValues("sent").Inc()
	s.logger.Info("grade notification sent",
		zap.String("student_id", notification.StudentID),
		zap.String("course_id", notification.CourseID))
	return nil
}

func (s *NotificationService) composeBody(student *models.User, n GradeNotification) string {
	return fmt.Sprintf(
		"Hola %s,\n\nSe ha %s una nota en el curso %s.\n\nCategoría: %s\nNota: %.2f\n\nIngresa al sistema para ver el detalle.\n",
		student.FullName, n.Action, n.CourseName, n.Category, n.Score)
}
