package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Rzouga01/LearnHub-sub001/internal/models"
	"github.com/Rzouga01/LearnHub-sub001/pkg/mailer"
)

type fakeTransport struct {
	mu       sync.Mutex
	sent     []mailer.Message
	failures int
}

func (f *fakeTransport) Name() string { return "fake" }

func (f *fakeTransport) Send(ctx context.Context, msg mailer.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failures > 0 {
		f.failures--
		return errors.New("relay unavailable")
	}
	f.sent = append(f.sent, msg)
	return nil
}

func (f *fakeTransport) messages() []mailer.Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]mailer.Message(nil), f.sent...)
}

type fakePublisher struct {
	mu       sync.Mutex
	subjects []string
}

func (f *fakePublisher) Publish(ctx context.Context, subject, body string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.subjects = append(f.subjects, subject)
	return nil
}

func (f *fakePublisher) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.subjects)
}

type dispatchRecorder struct {
	mu       sync.Mutex
	outcomes map[string]int
}

func (d *dispatchRecorder) ObserveDispatch(kind, outcome string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.outcomes == nil {
		d.outcomes = map[string]int{}
	}
	d.outcomes[kind+"/"+outcome]++
}

func (d *dispatchRecorder) get(key string) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.outcomes[key]
}

func sampleApplication() *models.TrainerApplication {
	company := "Acme Learning"
	return &models.TrainerApplication{
		ID:                 "7",
		FirstName:          "Amina",
		LastName:           "Haddad",
		Email:              "amina@example.com",
		Phone:              "+216 20 000 000",
		CurrentPosition:    "Data engineer",
		Company:            &company,
		PrimaryExpertise:   "Data Science",
		YearsExperience:    models.ExperienceBand5To10,
		SecondaryExpertise: models.NormalizeTags([]string{"SQL", "Python"}),
		PreferredFormat:    "online",
		DesiredCourses:     "Intro to pandas",
		ResumeFile:         &models.FileHandle{Path: "7/resume/ab-cv.pdf", OriginalName: "cv.pdf"},
		Status:             models.ApplicationStatusPending,
		CreatedAt:          time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC),
	}
}

func newTestNotifier(t *testing.T, transport mailer.Transport, cfg NotificationConfig, opts ...NotificationOption) *NotificationService {
	t.Helper()
	if cfg.RetryDelay == 0 {
		cfg.RetryDelay = 5 * time.Millisecond
	}
	svc := NewNotificationService(transport, cfg, zap.NewNop(), opts...)
	ctx, cancel := context.WithCancel(context.Background())
	svc.Start(ctx)
	t.Cleanup(func() {
		svc.Stop()
		cancel()
	})
	return svc
}

func TestNotificationServiceOnSubmittedSendsConfirmationAndStaffAlert(t *testing.T) {
	transport := &fakeTransport{}
	publisher := &fakePublisher{}
	metrics := &dispatchRecorder{}
	svc := newTestNotifier(t, transport, NotificationConfig{
		Enabled:         true,
		FromEmail:       "no-reply@learnhub.local",
		StaffRecipients: []string{"hr@learnhub.io"},
	}, WithStaffPublisher(publisher), WithDispatchMetrics(metrics))

	svc.OnSubmitted(context.Background(), sampleApplication())

	require.Eventually(t, func() bool {
		return len(transport.messages()) == 2 && publisher.count() == 1
	}, time.Second, 5*time.Millisecond)

	var confirmation, alert mailer.Message
	for _, msg := range transport.messages() {
		switch msg.Tags["kind"] {
		case NotificationConfirmation:
			confirmation = msg
		case NotificationStaffAlert:
			alert = msg
		}
	}
	assert.Equal(t, []string{"amina@example.com"}, confirmation.To)
	assert.Equal(t, "no-reply@learnhub.local", confirmation.From)
	assert.Contains(t, confirmation.Body, "Data engineer at Acme Learning")
	assert.Contains(t, confirmation.Body, "Python, SQL")
	assert.Contains(t, confirmation.Body, "1 file(s)")

	assert.Equal(t, []string{"hr@learnhub.io"}, alert.To)
	assert.Equal(t, "New trainer application: Amina Haddad (Data Science)", alert.Subject)
	assert.Equal(t, 1, metrics.get(NotificationConfirmation+"/delivered"))
}

func TestNotificationServiceDisabledSendsNothing(t *testing.T) {
	transport := &fakeTransport{}
	svc := newTestNotifier(t, transport, NotificationConfig{Enabled: false, StaffRecipients: []string{"hr@learnhub.io"}})

	svc.OnSubmitted(context.Background(), sampleApplication())
	svc.OnStatusChanged(context.Background(), sampleApplication(), models.ApplicationStatusPending, models.ApplicationStatusUnderReview)

	assert.Equal(t, int64(0), svc.Stats().Enqueued)
	assert.Empty(t, transport.messages())
}

func TestNotificationServiceStatusChangesAreOptIn(t *testing.T) {
	transport := &fakeTransport{}
	off := newTestNotifier(t, transport, NotificationConfig{Enabled: true})
	off.OnStatusChanged(context.Background(), sampleApplication(), models.ApplicationStatusPending, models.ApplicationStatusUnderReview)
	assert.Equal(t, int64(0), off.Stats().Enqueued)

	on := newTestNotifier(t, transport, NotificationConfig{Enabled: true, StatusChanges: true})
	on.OnStatusChanged(context.Background(), sampleApplication(), models.ApplicationStatusUnderReview, models.ApplicationStatusInterviewScheduled)

	require.Eventually(t, func() bool { return len(transport.messages()) == 1 }, time.Second, 5*time.Millisecond)
	msg := transport.messages()[0]
	assert.Equal(t, "Your trainer application is now Interview scheduled", msg.Subject)
}

func TestNotificationServiceRetriesThenDeadLetters(t *testing.T) {
	transport := &fakeTransport{failures: 10}
	metrics := &dispatchRecorder{}
	svc := newTestNotifier(t, transport, NotificationConfig{Enabled: true, MaxRetries: 1}, WithDispatchMetrics(metrics))

	svc.OnSubmitted(context.Background(), sampleApplication())

	require.Eventually(t, func() bool {
		return metrics.get(NotificationConfirmation+"/failed") == 1
	}, time.Second, 5*time.Millisecond)
	stats := svc.Stats()
	assert.Equal(t, int64(1), stats.Retried)
	assert.Equal(t, int64(1), stats.Dead)
}

func TestNotificationServiceBacklogDigest(t *testing.T) {
	transport := &fakeTransport{}
	svc := newTestNotifier(t, transport, NotificationConfig{Enabled: true, StaffRecipients: []string{"ops@learnhub.io"}})
	svc.now = func() time.Time { return time.Date(2024, 5, 2, 8, 0, 0, 0, time.UTC) }

	svc.SendBacklogDigest(context.Background(), []models.StatusCount{
		{Status: models.ApplicationStatusPending, Count: 4},
		{Status: models.ApplicationStatusUnderReview, Count: 2},
		{Status: models.ApplicationStatusApproved, Count: 9},
	})

	require.Eventually(t, func() bool { return len(transport.messages()) == 1 }, time.Second, 5*time.Millisecond)
	msg := transport.messages()[0]
	assert.Contains(t, msg.Subject, "6")
	assert.Contains(t, msg.Body, "Under review")
}

func TestStatusLabel(t *testing.T) {
	assert.Equal(t, "Under review", statusLabel(models.ApplicationStatusUnderReview))
	assert.Equal(t, "mystery", statusLabel(models.ApplicationStatus("mystery")))
}
