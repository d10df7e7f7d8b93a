package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/Rzouga01/LearnHub-sub001/internal/models"
)

// ErrStaleStatus signals that a compare-and-swap lost against a concurrent transition.
var ErrStaleStatus = errors.New("trainer application status changed concurrently")

const (
	defaultApplicationPageSize = 20
	maxApplicationPageSize     = 100
)

const applicationColumns = `id, first_name, last_name, email, phone, current_position, company, primary_expertise, years_experience, secondary_expertise, professional_bio, teaching_experience, preferred_format, desired_courses, motivation, resume_file, certification_files, portfolio_files, status, admin_notes, reviewed_by, reviewed_at, created_at, updated_at`

// TrainerApplicationRepository persists trainer applications and their review history.
type TrainerApplicationRepository struct {
	db *sqlx.DB
}

// NewTrainerApplicationRepository constructs the repository.
func NewTrainerApplicationRepository(db *sqlx.DB) *TrainerApplicationRepository {
	return &TrainerApplicationRepository{db: db}
}

// UpdateStatusParams describes one compare-and-swap status change.
type UpdateStatusParams struct {
	ID           string
	Expected     models.ApplicationStatus
	Next         models.ApplicationStatus
	ReviewerID   string
	ReviewedAt   time.Time
	AdminNotes   *string
	HistoryNotes *string
}

// Create inserts a new pending application along with its initial history entry.
func (r *TrainerApplicationRepository) Create(ctx context.Context, app *models.TrainerApplication) (err error) {
	if app.ID == "" {
		app.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	app.Status = models.ApplicationStatusPending
	app.AdminNotes = nil
	app.ReviewedBy = nil
	app.ReviewedAt = nil
	app.CreatedAt = now
	app.UpdatedAt = now
	app.SecondaryExpertise = models.NormalizeTags(app.SecondaryExpertise)
	if app.CertificationFiles == nil {
		app.CertificationFiles = models.FileHandles{}
	}
	if app.PortfolioFiles == nil {
		app.PortfolioFiles = models.FileHandles{}
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin create trainer application: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	const insertQuery = `INSERT INTO trainer_applications (` + applicationColumns + `)
VALUES (:id, :first_name, :last_name, :email, :phone, :current_position, :company, :primary_expertise, :years_experience, :secondary_expertise, :professional_bio, :teaching_experience, :preferred_format, :desired_courses, :motivation, :resume_file, :certification_files, :portfolio_files, :status, :admin_notes, :reviewed_by, :reviewed_at, :created_at, :updated_at)`
	if _, err = tx.NamedExecContext(ctx, insertQuery, app); err != nil {
		return fmt.Errorf("insert trainer application: %w", err)
	}
	if err = insertHistory(ctx, tx, app.ID, nil, app.Status, nil, nil, now); err != nil {
		return err
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit trainer application: %w", err)
	}
	return nil
}

// GetByID fetches a single application.
func (r *TrainerApplicationRepository) GetByID(ctx context.Context, id string) (*models.TrainerApplication, error) {
	query := `SELECT ` + applicationColumns + ` FROM trainer_applications WHERE id = $1`
	var app models.TrainerApplication
	if err := r.db.GetContext(ctx, &app, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sql.ErrNoRows
		}
		return nil, fmt.Errorf("get trainer application: %w", err)
	}
	return &app, nil
}

// List returns a page of applications, newest first, with the total match count.
func (r *TrainerApplicationRepository) List(ctx context.Context, filter models.ApplicationFilter) ([]models.TrainerApplication, int, error) {
	where := ""
	var args []interface{}
	if len(filter.Status) > 0 {
		statuses := make([]string, 0, len(filter.Status))
		for _, s := range filter.Status {
			statuses = append(statuses, string(s))
		}
		where = " WHERE status::text = ANY($1)"
		args = append(args, pq.StringArray(statuses))
	}

	page, pageSize := normalizePage(filter.Page, filter.PageSize)
	offset := (page - 1) * pageSize

	listQuery := fmt.Sprintf(`SELECT %s FROM trainer_applications%s ORDER BY created_at DESC, id DESC LIMIT %d OFFSET %d`, applicationColumns, where, pageSize, offset)
	var items []models.TrainerApplication
	if err := r.db.SelectContext(ctx, &items, listQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("list trainer applications: %w", err)
	}

	countQuery := `SELECT COUNT(*) FROM trainer_applications` + where
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count trainer applications: %w", err)
	}
	return items, total, nil
}

// UpdateStatus applies a status change only if the stored status still equals
// params.Expected. A zero-row update returns sql.ErrNoRows when the record is
// gone and ErrStaleStatus when it has moved on.
func (r *TrainerApplicationRepository) UpdateStatus(ctx context.Context, params UpdateStatusParams) (app *models.TrainerApplication, err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin status update: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	updateQuery := `UPDATE trainer_applications
SET status = $3, admin_notes = $4, reviewed_by = $5, reviewed_at = $6, updated_at = $6
WHERE id = $1 AND status = $2
RETURNING ` + applicationColumns
	var updated models.TrainerApplication
	err = tx.GetContext(ctx, &updated, updateQuery, params.ID, params.Expected, params.Next, params.AdminNotes, params.ReviewerID, params.ReviewedAt)
	if err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("update trainer application status: %w", err)
		}
		var exists bool
		if qErr := tx.GetContext(ctx, &exists, `SELECT EXISTS (SELECT 1 FROM trainer_applications WHERE id = $1)`, params.ID); qErr != nil {
			err = fmt.Errorf("check trainer application exists: %w", qErr)
			return nil, err
		}
		if !exists {
			err = sql.ErrNoRows
			return nil, err
		}
		err = ErrStaleStatus
		return nil, err
	}

	from := params.Expected
	reviewer := params.ReviewerID
	if err = insertHistory(ctx, tx, params.ID, &from, params.Next, &reviewer, params.HistoryNotes, params.ReviewedAt); err != nil {
		return nil, err
	}
	if err = tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit status update: %w", err)
	}
	return &updated, nil
}

// ExistsByEmail reports whether an application already uses the email, case-insensitively.
func (r *TrainerApplicationRepository) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	const query = `SELECT EXISTS (SELECT 1 FROM trainer_applications WHERE lower(email) = lower($1))`
	var exists bool
	if err := r.db.GetContext(ctx, &exists, query, email); err != nil {
		return false, fmt.Errorf("check trainer application email: %w", err)
	}
	return exists, nil
}

// ListHistory returns the status history of an application, oldest first.
func (r *TrainerApplicationRepository) ListHistory(ctx context.Context, applicationID string) ([]models.StatusHistoryEntry, error) {
	const query = `SELECT id, application_id, from_status, to_status, changed_by, notes, changed_at FROM trainer_application_status_history WHERE application_id = $1 ORDER BY changed_at ASC, id ASC`
	var entries []models.StatusHistoryEntry
	if err := r.db.SelectContext(ctx, &entries, query, applicationID); err != nil {
		return nil, fmt.Errorf("list trainer application history: %w", err)
	}
	return entries, nil
}

// CountByStatus aggregates how many applications sit in each status.
func (r *TrainerApplicationRepository) CountByStatus(ctx context.Context) ([]models.StatusCount, error) {
	const query = `SELECT status, COUNT(*) AS count FROM trainer_applications GROUP BY status ORDER BY status`
	var counts []models.StatusCount
	if err := r.db.SelectContext(ctx, &counts, query); err != nil {
		return nil, fmt.Errorf("count trainer applications by status: %w", err)
	}
	return counts, nil
}

func insertHistory(ctx context.Context, tx *sqlx.Tx, applicationID string, from *models.ApplicationStatus, to models.ApplicationStatus, changedBy, notes *string, at time.Time) error {
	const query = `INSERT INTO trainer_application_status_history (id, application_id, from_status, to_status, changed_by, notes, changed_at) VALUES ($1, $2, $3, $4, $5, $6, $7)`
	if _, err := tx.ExecContext(ctx, query, uuid.NewString(), applicationID, from, to, changedBy, notes, at); err != nil {
		return fmt.Errorf("insert status history: %w", err)
	}
	return nil
}

func normalizePage(page, pageSize int) (int, int) {
	if page < 1 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = defaultApplicationPageSize
	}
	if pageSize > maxApplicationPageSize {
		pageSize = maxApplicationPageSize
	}
	return page, pageSize
}

