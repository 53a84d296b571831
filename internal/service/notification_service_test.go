package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/gomail.v2"

	"github.com/acadperu/sigea-api/internal/models"
)

type mockMailSender struct {
	mu       sync.Mutex
	messages []*gomail.Message
	done     chan struct{}
}

func newMockMailSender(expected int) *mockMailSender {
	return &mockMailSender{done: make(chan struct{}, expected)}
}

func (m *mockMailSender) DialAndSend(msgs ...*gomail.Message) error {
	m.mu.Lock()
	m.messages = append(m.messages, msgs...)
	m.mu.Unlock()
	m.done <- struct{}{}
	return nil
}

func (m *mockMailSender) wait(t *testing.T) {
	t.Helper()
	select {
	case <-m.done:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for notification delivery")
	}
}

type mockUserFinder struct {
	user *models.User
}

func (m *mockUserFinder) FindByID(ctx context.Context, id string) (*models.User, error) {
	return m.user, nil
}

func TestNotifyGradeChangeDeliversEmail(t *testing.T) {
	sender := newMockMailSender(1)
	users := &mockUserFinder{user: &models.User{
		ID: "student-1", Email: "ana@sigea.edu.pe", FullName: "Ana Torres",
	}}
	svc := NewNotificationService(users, sender, NotificationConfig{
		Enabled: true,
		From:    "notificaciones@sigea.edu.pe",
		Workers: 1,
	}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	svc.Start(ctx)
	defer svc.Stop()

	require.NoError(t, svc.NotifyGradeChange(GradeNotification{
		StudentID:  "student-1",
		CourseID:   "course-1",
		CourseName: "Matemática I",
		Category:   "PARCIAL",
		Score:      14.5,
		Action:     GradeActionRecorded,
	}))

	sender.wait(t)
	sender.mu.Lock()
	defer sender.mu.Unlock()
	require.Len(t, sender.messages, 1)
	assert.Equal(t, []string{"ana@sigea.edu.pe"}, sender.messages[0].GetHeader("To"))
	assert.Contains(t, sender.messages[0].GetHeader("Subject")[0], "Matemática I")
}

func TestNotifyGradeChangeDisabledIsNoop(t *testing.T) {
	sender := newMockMailSender(1)
	svc := NewNotificationService(&mockUserFinder{}, sender, NotificationConfig{Enabled: false}, nil)

	require.NoError(t, svc.NotifyGradeChange(GradeNotification{StudentID: "student-1"}))
	assert.Empty(t, sender.messages)
}
