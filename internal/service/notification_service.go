package service

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"text/template"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Rzouga01/LearnHub-sub001/internal/models"
	appErrors "github.com/Rzouga01/LearnHub-sub001/pkg/errors"
	"github.com/Rzouga01/LearnHub-sub001/pkg/jobs"
	"github.com/Rzouga01/LearnHub-sub001/pkg/logger"
	"github.com/Rzouga01/LearnHub-sub001/pkg/mailer"
)

// Notification kinds, used as job types and metric labels.
const (
	NotificationConfirmation  = "applicant_confirmation"
	NotificationStaffAlert    = "staff_alert"
	NotificationStaffTopic    = "staff_topic"
	NotificationStatusChanged = "status_changed"
	NotificationDigest        = "backlog_digest"
)

type dispatchMetrics interface {
	ObserveDispatch(kind, outcome string)
}

// NotificationConfig configures dispatch behaviour.
type NotificationConfig struct {
	Enabled         bool
	FromEmail       string
	StaffRecipients []string
	StatusChanges   bool
	Workers         int
	BufferSize      int
	MaxRetries      int
	RetryDelay      time.Duration
	SendTimeout     time.Duration
}

type emailPayload struct {
	Message mailer.Message
}

type topicPayload struct {
	Subject string
	Body    string
}

// NotificationService renders applicant and staff messages and hands them to
// a background queue. None of its hooks return errors: delivery problems are
// logged and counted, never propagated to the triggering request.
type NotificationService struct {
	transport mailer.Transport
	publisher mailer.Publisher
	templates *template.Template
	queue     *jobs.Queue
	metrics   dispatchMetrics
	logger    *zap.Logger
	cfg       NotificationConfig
	now       func() time.Time
}

// NotificationOption configures the service.
type NotificationOption func(*NotificationService)

// WithStaffPublisher fans staff alerts out to a topic as well as email.
func WithStaffPublisher(p mailer.Publisher) NotificationOption {
	return func(s *NotificationService) {
		s.publisher = p
	}
}

// WithDispatchMetrics records delivery outcomes.
func WithDispatchMetrics(m dispatchMetrics) NotificationOption {
	return func(s *NotificationService) {
		s.metrics = m
	}
}

// NewNotificationService builds the dispatcher. Call Start before use.
func NewNotificationService(transport mailer.Transport, cfg NotificationConfig, log *zap.Logger, opts ...NotificationOption) *NotificationService {
	if log == nil {
		log = zap.NewNop()
	}
	if transport == nil {
		transport = mailer.NewLogTransport(log)
	}
	if cfg.SendTimeout <= 0 {
		cfg.SendTimeout = 10 * time.Second
	}
	funcs := template.FuncMap{
		"join":        strings.Join,
		"statusLabel": statusLabel,
	}
	tmpl := template.Must(template.New("notifications").Funcs(funcs).Parse(
		applicantConfirmationTemplate + staffAlertTemplate + statusChangedTemplate + backlogDigestTemplate))

	s := &NotificationService{
		transport: transport,
		templates: tmpl,
		logger:    log,
		cfg:       cfg,
		now:       time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	s.queue = jobs.NewQueue("notifications", s.handle, jobs.QueueConfig{
		Workers:        cfg.Workers,
		BufferSize:     cfg.BufferSize,
		MaxRetries:     cfg.MaxRetries,
		RetryDelay:     cfg.RetryDelay,
		AttemptTimeout: cfg.SendTimeout,
		OnDeadLetter:   s.deadLetter,
		Logger:         log,
	})
	return s
}

// Start launches the delivery workers.
func (s *NotificationService) Start(ctx context.Context) {
	s.queue.Start(ctx)
}

// Stop drains the workers.
func (s *NotificationService) Stop() {
	s.queue.Stop()
}

// Stats exposes queue counters.
func (s *NotificationService) Stats() jobs.Stats {
	return s.queue.Stats()
}

// OnSubmitted sends the applicant confirmation and the staff alert.
func (s *NotificationService) OnSubmitted(ctx context.Context, app *models.TrainerApplication) {
	if !s.cfg.Enabled || app == nil {
		return
	}
	data := map[string]interface{}{
		"App":             app,
		"AttachmentCount": len(app.AllAttachments()),
		"SubmittedAt":     app.CreatedAt.UTC().Format(time.RFC1123),
	}

	s.sendEmail(ctx, NotificationConfirmation, app.ID, []string{app.Email}, "applicant_confirmation", data)

	if len(s.cfg.StaffRecipients) > 0 {
		s.sendEmail(ctx, NotificationStaffAlert, app.ID, s.cfg.StaffRecipients, "staff_alert", data)
	}
	if s.publisher != nil {
		subject, body, err := s.render("staff_alert", data)
		if err != nil {
			s.fail(ctx, NotificationStaffTopic, app.ID, err)
			return
		}
		s.enqueue(ctx, jobs.Job{ID: uuid.NewString(), Type: NotificationStaffTopic, Payload: topicPayload{Subject: subject, Body: body}}, app.ID)
	}
}

// OnStatusChanged informs the applicant about a review transition when enabled.
func (s *NotificationService) OnStatusChanged(ctx context.Context, app *models.TrainerApplication, from, to models.ApplicationStatus) {
	if !s.cfg.Enabled || !s.cfg.StatusChanges || app == nil {
		return
	}
	data := map[string]interface{}{"App": app, "From": from, "To": to}
	s.sendEmail(ctx, NotificationStatusChanged, app.ID, []string{app.Email}, "status_changed", data)
}

// SendBacklogDigest mails staff the per-status counts.
func (s *NotificationService) SendBacklogDigest(ctx context.Context, counts []models.StatusCount) {
	if !s.cfg.Enabled || len(s.cfg.StaffRecipients) == 0 {
		return
	}
	open := 0
	for _, c := range counts {
		if !c.Status.Terminal() {
			open += c.Count
		}
	}
	data := map[string]interface{}{
		"Counts":      counts,
		"Open":        open,
		"GeneratedAt": s.now().UTC().Format(time.RFC1123),
	}
	s.sendEmail(ctx, NotificationDigest, "", s.cfg.StaffRecipients, "backlog_digest", data)
}

func (s *NotificationService) sendEmail(ctx context.Context, kind, appID string, to []string, tmpl string, data interface{}) {
	subject, body, err := s.render(tmpl, data)
	if err != nil {
		s.fail(ctx, kind, appID, err)
		return
	}
	msg := mailer.Message{
		From:    s.cfg.FromEmail,
		To:      append([]string(nil), to...),
		Subject: subject,
		Body:    body,
		Tags:    map[string]string{"kind": kind},
	}
	s.enqueue(ctx, jobs.Job{ID: uuid.NewString(), Type: kind, Payload: emailPayload{Message: msg}}, appID)
}

func (s *NotificationService) render(name string, data interface{}) (string, string, error) {
	var subject, body bytes.Buffer
	if err := s.templates.ExecuteTemplate(&subject, name+"_subject", data); err != nil {
		return "", "", fmt.Errorf("render %s subject: %w", name, err)
	}
	if err := s.templates.ExecuteTemplate(&body, name+"_body", data); err != nil {
		return "", "", fmt.Errorf("render %s body: %w", name, err)
	}
	return strings.TrimSpace(subject.String()), body.String(), nil
}

func (s *NotificationService) enqueue(ctx context.Context, job jobs.Job, appID string) {
	if err := s.queue.Enqueue(job); err != nil {
		s.fail(ctx, job.Type, appID, err)
	}
}

func (s *NotificationService) handle(ctx context.Context, job jobs.Job) error {
	var err error
	switch payload := job.Payload.(type) {
	case emailPayload:
		err = s.transport.Send(ctx, payload.Message)
	case topicPayload:
		if s.publisher == nil {
			return nil
		}
		err = s.publisher.Publish(ctx, payload.Subject, payload.Body)
	default:
		s.logger.Error("unknown notification payload", zap.String("type", job.Type))
		return nil
	}
	if err != nil {
		return err
	}
	s.observe(job.Type, "delivered")
	return nil
}

func (s *NotificationService) deadLetter(job jobs.Job, err error) {
	s.observe(job.Type, "failed")
	s.logger.Error("notification dispatch failed",
		zap.String("code", appErrors.ErrDispatchFailure.Code),
		zap.String("kind", job.Type),
		zap.String("job_id", job.ID),
		zap.Int("attempts", job.Attempt),
		zap.Error(err),
	)
}

func (s *NotificationService) fail(ctx context.Context, kind, appID string, err error) {
	s.observe(kind, "failed")
	logger.WithContext(ctx, s.logger).Error("notification dispatch failed",
		zap.String("code", appErrors.ErrDispatchFailure.Code),
		zap.String("kind", kind),
		zap.String("application_id", appID),
		zap.Error(err),
	)
}

func (s *NotificationService) observe(kind, outcome string) {
	if s.metrics != nil {
		s.metrics.ObserveDispatch(kind, outcome)
	}
}

func statusLabel(status models.ApplicationStatus) string {
	switch status {
	case models.ApplicationStatusPending:
		return "Pending"
	case models.ApplicationStatusUnderReview:
		return "Under review"
	case models.ApplicationStatusInterviewScheduled:
		return "Interview scheduled"
	case models.ApplicationStatusApproved:
		return "Approved"
	case models.ApplicationStatusRejected:
		return "Rejected"
	default:
		return string(status)
	}
}
