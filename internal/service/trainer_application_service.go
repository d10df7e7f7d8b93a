package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Rzouga01/LearnHub-sub001/internal/dto"
	"github.com/Rzouga01/LearnHub-sub001/internal/models"
	"github.com/Rzouga01/LearnHub-sub001/internal/policy"
	"github.com/Rzouga01/LearnHub-sub001/internal/repository"
	appErrors "github.com/Rzouga01/LearnHub-sub001/pkg/errors"
	"github.com/Rzouga01/LearnHub-sub001/pkg/export"
	"github.com/Rzouga01/LearnHub-sub001/pkg/logger"
)

const (
	summaryCacheKey     = "trainer-applications:summary"
	summaryCachePattern = "trainer-applications:summary*"
	exportPageSize      = 100
	exportRowLimit      = 5000
)

type applicationStore interface {
	Create(ctx context.Context, app *models.TrainerApplication) error
	GetByID(ctx context.Context, id string) (*models.TrainerApplication, error)
	List(ctx context.Context, filter models.ApplicationFilter) ([]models.TrainerApplication, int, error)
	UpdateStatus(ctx context.Context, params repository.UpdateStatusParams) (*models.TrainerApplication, error)
	ExistsByEmail(ctx context.Context, email string) (bool, error)
	ListHistory(ctx context.Context, applicationID string) ([]models.StatusHistoryEntry, error)
	CountByStatus(ctx context.Context) ([]models.StatusCount, error)
}

type reviewerDirectory interface {
	FindReviewer(ctx context.Context, id string) (*models.ReviewerSummary, error)
	Upsert(ctx context.Context, user *models.User) error
}

type applicationAttachments interface {
	Check(set *AttachmentSet) error
	Store(ctx context.Context, applicationID string, set AttachmentSet) (*models.FileHandle, models.FileHandles, models.FileHandles, error)
	Discard(handles []models.FileHandle)
	Links(app *models.TrainerApplication) ([]dto.AttachmentLink, error)
	Open(app *models.TrainerApplication, token string) (*AttachmentDownload, error)
}

type applicationNotifier interface {
	OnSubmitted(ctx context.Context, app *models.TrainerApplication)
	OnStatusChanged(ctx context.Context, app *models.TrainerApplication, from, to models.ApplicationStatus)
	SendBacklogDigest(ctx context.Context, counts []models.StatusCount)
}

type summaryCache interface {
	Get(ctx context.Context, key string, dest interface{}) bool
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration)
	Invalidate(ctx context.Context, pattern string)
}

type applicationMetrics interface {
	ObserveSubmission(outcome string)
	ObserveTransition(from, to, outcome string)
}

// TrainerApplicationConfig tunes intake and staff views.
type TrainerApplicationConfig struct {
	RejectDuplicates bool
	SummaryTTL       time.Duration
}

// ExportFile is a rendered listing ready to stream.
type ExportFile struct {
	Filename    string
	ContentType string
	Data        []byte
}

// TrainerApplicationService orchestrates submission, staff review and reporting.
type TrainerApplicationService struct {
	store       applicationStore
	reviewers   reviewerDirectory
	validator   *ApplicationValidator
	workflow    *ReviewWorkflow
	attachments applicationAttachments
	guard       *policy.Guard
	notifier    applicationNotifier
	cache       summaryCache
	metrics     applicationMetrics
	cfg         TrainerApplicationConfig
	logger      *zap.Logger
	now         func() time.Time
}

// TrainerApplicationOption configures optional collaborators.
type TrainerApplicationOption func(*TrainerApplicationService)

// WithSummaryCache caches the per-status summary.
func WithSummaryCache(cache summaryCache) TrainerApplicationOption {
	return func(s *TrainerApplicationService) {
		s.cache = cache
	}
}

// WithApplicationMetrics records submission and transition outcomes.
func WithApplicationMetrics(metrics applicationMetrics) TrainerApplicationOption {
	return func(s *TrainerApplicationService) {
		s.metrics = metrics
	}
}

// WithNotifier wires the applicant and staff dispatcher.
func WithNotifier(notifier applicationNotifier) TrainerApplicationOption {
	return func(s *TrainerApplicationService) {
		s.notifier = notifier
	}
}

// NewTrainerApplicationService builds the service with sane defaults.
func NewTrainerApplicationService(
	store applicationStore,
	reviewers reviewerDirectory,
	validator *ApplicationValidator,
	attachments applicationAttachments,
	guard *policy.Guard,
	cfg TrainerApplicationConfig,
	log *zap.Logger,
	opts ...TrainerApplicationOption,
) *TrainerApplicationService {
	if log == nil {
		log = zap.NewNop()
	}
	if validator == nil {
		validator = NewApplicationValidator(nil)
	}
	if guard == nil {
		guard = policy.NewGuard()
	}
	if cfg.SummaryTTL <= 0 {
		cfg.SummaryTTL = time.Minute
	}
	svc := &TrainerApplicationService{
		store:       store,
		reviewers:   reviewers,
		validator:   validator,
		workflow:    NewReviewWorkflow(),
		attachments: attachments,
		guard:       guard,
		cfg:         cfg,
		logger:      log,
		now:         time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(svc)
		}
	}
	return svc
}

// Submit validates and stores a public application, then notifies the
// applicant and staff. Nothing is persisted when validation fails.
func (s *TrainerApplicationService) Submit(ctx context.Context, req dto.SubmitApplicationRequest, files AttachmentSet) (*models.TrainerApplication, error) {
	app, err := s.validator.Validate(req)
	if err != nil {
		s.observeSubmission("invalid")
		return nil, err
	}
	if s.attachments != nil && !files.Empty() {
		if err := s.attachments.Check(&files); err != nil {
			s.observeSubmission("invalid")
			return nil, err
		}
	}

	if s.cfg.RejectDuplicates {
		exists, err := s.store.ExistsByEmail(ctx, app.Email)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check duplicate application")
		}
		if exists {
			s.observeSubmission("duplicate")
			return nil, appErrors.Clone(appErrors.ErrDuplicateSubmission, "")
		}
	}

	app.ID = uuid.NewString()
	if s.attachments != nil && !files.Empty() {
		resume, certs, portfolios, err := s.attachments.Store(ctx, app.ID, files)
		if err != nil {
			s.observeSubmission("error")
			return nil, err
		}
		app.ResumeFile = resume
		app.CertificationFiles = certs
		app.PortfolioFiles = portfolios
	}

	if err := s.store.Create(ctx, app); err != nil {
		if s.attachments != nil {
			s.attachments.Discard(app.AllAttachments())
		}
		s.observeSubmission("error")
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store trainer application")
	}

	s.observeSubmission("accepted")
	s.invalidateSummary(ctx)
	logger.WithContext(ctx, s.logger).Info("trainer application submitted",
		zap.String("application_id", app.ID),
		zap.String("primary_expertise", app.PrimaryExpertise),
		zap.Int("attachments", len(app.AllAttachments())),
	)
	if s.notifier != nil {
		s.notifier.OnSubmitted(ctx, app)
	}
	return app, nil
}

// List returns a filtered page of applications for staff.
func (s *TrainerApplicationService) List(ctx context.Context, actor *policy.Actor, query dto.ApplicationQuery) ([]models.TrainerApplication, *models.Pagination, error) {
	if err := s.guard.Check(actor, policy.ActionList); err != nil {
		return nil, nil, err
	}
	filter, err := s.filterFromQuery(query)
	if err != nil {
		return nil, nil, err
	}
	items, total, err := s.store.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list trainer applications")
	}
	if items == nil {
		items = []models.TrainerApplication{}
	}
	return items, &models.Pagination{Page: filter.Page, PageSize: filter.PageSize, TotalCount: total}, nil
}

// Get returns the staff view of one application with reviewer and signed links.
func (s *TrainerApplicationService) Get(ctx context.Context, actor *policy.Actor, id string) (*dto.ApplicationDetailResponse, error) {
	if err := s.guard.Check(actor, policy.ActionViewDetail); err != nil {
		return nil, err
	}
	app, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}

	detail := &dto.ApplicationDetailResponse{TrainerApplication: app, Attachments: []dto.AttachmentLink{}}
	if app.ReviewedBy != nil && s.reviewers != nil {
		reviewer, err := s.reviewers.FindReviewer(ctx, *app.ReviewedBy)
		switch {
		case err == nil:
			detail.Reviewer = reviewer
		case errors.Is(err, sql.ErrNoRows):
		default:
			logger.WithContext(ctx, s.logger).Warn("failed to load reviewer", zap.String("reviewer_id", *app.ReviewedBy), zap.Error(err))
		}
	}
	if s.attachments != nil && app.HasAttachments() {
		links, err := s.attachments.Links(app)
		if err != nil {
			return nil, err
		}
		detail.Attachments = links
	}
	return detail, nil
}

// Transition moves an application along the review lifecycle. The edge is
// judged against the status first read; a swap that misses while the stored
// status is unchanged is retried once, any other concurrent change surfaces
// as a conflict or an illegal transition.
func (s *TrainerApplicationService) Transition(ctx context.Context, actor *policy.Actor, id string, req dto.UpdateStatusRequest) (*models.TrainerApplication, error) {
	if err := s.guard.Check(actor, policy.ActionTransitionStatus); err != nil {
		return nil, err
	}
	if _, err := uuid.Parse(id); err != nil {
		return nil, notFound()
	}
	requested := models.ParseApplicationStatus(req.Status)
	notes := trimNotes(req.Notes)

	var origin models.ApplicationStatus
	reviewerRecorded := false
	for attempt := 0; attempt < 2; attempt++ {
		current, err := s.load(ctx, id)
		if err != nil {
			return nil, err
		}
		if attempt == 0 {
			origin = current.Status
		}
		result, err := s.workflow.Transition(TransitionRequest{
			Current:    current.Status,
			Requested:  requested,
			ActorID:    actor.ID,
			Notes:      notes,
			PriorNotes: current.AdminNotes,
		})
		if err != nil {
			s.observeTransition(current.Status, requested, "illegal")
			return nil, err
		}
		if current.Status != origin {
			// The request was decided against a status that no longer holds.
			break
		}

		if !reviewerRecorded {
			if err := s.ensureReviewer(ctx, actor); err != nil {
				return nil, err
			}
			reviewerRecorded = true
		}

		updated, err := s.store.UpdateStatus(ctx, repository.UpdateStatusParams{
			ID:           id,
			Expected:     result.From,
			Next:         result.To,
			ReviewerID:   result.ReviewerID,
			ReviewedAt:   result.ReviewedAt,
			AdminNotes:   result.Notes,
			HistoryNotes: notes,
		})
		switch {
		case err == nil:
			s.observeTransition(result.From, result.To, "applied")
			s.invalidateSummary(ctx)
			logger.WithContext(ctx, s.logger).Info("trainer application status changed",
				zap.String("application_id", id),
				zap.String("from", string(result.From)),
				zap.String("to", string(result.To)),
				zap.String("reviewer_id", actor.ID),
			)
			if s.notifier != nil {
				s.notifier.OnStatusChanged(ctx, updated, result.From, result.To)
			}
			return updated, nil
		case errors.Is(err, repository.ErrStaleStatus):
			logger.WithContext(ctx, s.logger).Warn("stale status on transition",
				zap.String("application_id", id), zap.Int("attempt", attempt+1))
			continue
		case errors.Is(err, sql.ErrNoRows):
			return nil, notFound()
		default:
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update trainer application status")
		}
	}

	s.observeTransition(origin, requested, "conflict")
	return nil, appErrors.Clone(appErrors.ErrStoreConflict, "")
}

// History lists every recorded status change of an application.
func (s *TrainerApplicationService) History(ctx context.Context, actor *policy.Actor, id string) ([]models.StatusHistoryEntry, error) {
	if err := s.guard.Check(actor, policy.ActionViewHistory); err != nil {
		return nil, err
	}
	if _, err := s.load(ctx, id); err != nil {
		return nil, err
	}
	entries, err := s.store.ListHistory(ctx, id)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load status history")
	}
	if entries == nil {
		entries = []models.StatusHistoryEntry{}
	}
	return entries, nil
}

// Summary reports application counts per status. Results are cached briefly
// and invalidated by every write.
func (s *TrainerApplicationService) Summary(ctx context.Context, actor *policy.Actor) (*dto.ApplicationSummaryResponse, error) {
	if err := s.guard.Check(actor, policy.ActionViewSummary); err != nil {
		return nil, err
	}
	if s.cache != nil {
		var cached dto.ApplicationSummaryResponse
		if s.cache.Get(ctx, summaryCacheKey, &cached) {
			cached.Cached = true
			return &cached, nil
		}
	}

	counts, err := s.store.CountByStatus(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to summarise trainer applications")
	}
	summary := &dto.ApplicationSummaryResponse{
		Counts:      make(map[models.ApplicationStatus]int, len(models.ApplicationStatuses)),
		GeneratedAt: s.now().UTC(),
	}
	for _, status := range models.ApplicationStatuses {
		summary.Counts[status] = 0
	}
	for _, c := range counts {
		summary.Counts[c.Status] = c.Count
		summary.Total += c.Count
	}
	if s.cache != nil {
		s.cache.Set(ctx, summaryCacheKey, summary, s.cfg.SummaryTTL)
	}
	return summary, nil
}

// Export renders the filtered listing as CSV or PDF.
func (s *TrainerApplicationService) Export(ctx context.Context, actor *policy.Actor, query dto.ApplicationQuery, format string) (*ExportFile, error) {
	if err := s.guard.Check(actor, policy.ActionExport); err != nil {
		return nil, err
	}
	format = strings.ToLower(strings.TrimSpace(format))
	renderer, err := export.ForFormat(format)
	if err != nil {
		return nil, appErrors.InvalidFormat("format", "must be csv or pdf")
	}
	query.Page = 1
	query.PageSize = exportPageSize
	filter, err := s.filterFromQuery(query)
	if err != nil {
		return nil, err
	}

	dataset := export.Dataset{
		Title:   "Trainer applications",
		Headers: []string{"ID", "Name", "Email", "Primary expertise", "Years", "Status", "Submitted", "Reviewed"},
	}
	for len(dataset.Rows) < exportRowLimit {
		items, total, err := s.store.List(ctx, filter)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to export trainer applications")
		}
		for _, app := range items {
			dataset.Rows = append(dataset.Rows, exportRow(app))
		}
		if len(items) < filter.PageSize || filter.Page*filter.PageSize >= total {
			break
		}
		filter.Page++
	}

	data, err := renderer.Render(dataset)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render export")
	}
	return &ExportFile{
		Filename:    fmt.Sprintf("trainer-applications-%s.%s", s.now().UTC().Format("20060102-150405"), renderer.Extension()),
		ContentType: renderer.ContentType(),
		Data:        data,
	}, nil
}

// OpenAttachment resolves a signed download token against an application.
func (s *TrainerApplicationService) OpenAttachment(ctx context.Context, actor *policy.Actor, id, token string) (*AttachmentDownload, error) {
	if err := s.guard.Check(actor, policy.ActionDownloadAttachment); err != nil {
		return nil, err
	}
	if s.attachments == nil {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "attachment not found")
	}
	app, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.attachments.Open(app, token)
}

// SendBacklogDigest mails staff the current per-status counts.
func (s *TrainerApplicationService) SendBacklogDigest(ctx context.Context) error {
	if s.notifier == nil {
		return nil
	}
	counts, err := s.store.CountByStatus(ctx)
	if err != nil {
		return fmt.Errorf("count applications for digest: %w", err)
	}
	s.notifier.SendBacklogDigest(ctx, counts)
	return nil
}

func (s *TrainerApplicationService) load(ctx context.Context, id string) (*models.TrainerApplication, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, notFound()
	}
	app, err := s.store.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, notFound()
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load trainer application")
	}
	return app, nil
}

func (s *TrainerApplicationService) ensureReviewer(ctx context.Context, actor *policy.Actor) error {
	if s.reviewers == nil {
		return nil
	}
	email := actor.Email
	if email == "" {
		email = actor.ID + "@directory.invalid"
	}
	name := actor.FullName
	if name == "" {
		name = email
	}
	role := models.RoleCoordinator
	for _, r := range actor.Roles {
		if r == models.RoleAdmin {
			role = models.RoleAdmin
			break
		}
	}
	user := &models.User{ID: actor.ID, Email: email, FullName: name, Role: role, Active: true}
	if err := s.reviewers.Upsert(ctx, user); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record reviewer")
	}
	return nil
}

func (s *TrainerApplicationService) filterFromQuery(query dto.ApplicationQuery) (models.ApplicationFilter, error) {
	filter := models.ApplicationFilter{Page: query.Page, PageSize: query.PageSize}
	for _, status := range query.Status {
		if !status.Valid() {
			return filter, appErrors.InvalidFormat("status", fmt.Sprintf("unknown status %q", status))
		}
		filter.Status = append(filter.Status, status)
	}
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.PageSize <= 0 {
		filter.PageSize = 20
	}
	if filter.PageSize > 100 {
		filter.PageSize = 100
	}
	return filter, nil
}

func (s *TrainerApplicationService) invalidateSummary(ctx context.Context) {
	if s.cache != nil {
		s.cache.Invalidate(ctx, summaryCachePattern)
	}
}

func (s *TrainerApplicationService) observeSubmission(outcome string) {
	if s.metrics != nil {
		s.metrics.ObserveSubmission(outcome)
	}
}

func (s *TrainerApplicationService) observeTransition(from, to models.ApplicationStatus, outcome string) {
	if s.metrics != nil {
		s.metrics.ObserveTransition(string(from), string(to), outcome)
	}
}

func notFound() error {
	return appErrors.Clone(appErrors.ErrNotFound, policy.NotFoundMessage)
}

func trimNotes(notes *string) *string {
	if notes == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*notes)
	return &trimmed
}

func exportRow(app models.TrainerApplication) map[string]string {
	reviewed := ""
	if app.ReviewedAt != nil {
		reviewed = app.ReviewedAt.UTC().Format(time.RFC3339)
	}
	return map[string]string{
		"ID":                app.ID,
		"Name":              app.FullName(),
		"Email":             app.Email,
		"Primary expertise": app.PrimaryExpertise,
		"Years":             string(app.YearsExperience),
		"Status":            string(app.Status),
		"Submitted":         app.CreatedAt.UTC().Format(time.RFC3339),
		"Reviewed":          reviewed,
	}
}
