package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Rzouga01/LearnHub-sub001/internal/models"
)

var applicationColumnNames = []string{
	"id", "first_name", "last_name", "email", "phone", "current_position", "company", "primary_expertise",
	"years_experience", "secondary_expertise", "professional_bio", "teaching_experience", "preferred_format",
	"desired_courses", "motivation", "resume_file", "certification_files", "portfolio_files", "status",
	"admin_notes", "reviewed_by", "reviewed_at", "created_at", "updated_at",
}

func applicationRow(rows *sqlmock.Rows, id string, status models.ApplicationStatus, reviewer interface{}, reviewedAt interface{}, notes interface{}, created time.Time) *sqlmock.Rows {
	return rows.AddRow(id, "Amina", "Haddad", "amina@example.com", "+216 20 000 000", "Engineer", nil, "Data Science",
		"5-10", "{Python,SQL}", "bio", "teaching", "online", "pandas", "motivation",
		[]byte(`{"path":"a/resume/x-cv.pdf","original_name":"cv.pdf","mime_type":"application/pdf","size_bytes":42}`),
		[]byte(`[]`), []byte(`[{"path":"a/portfolios/y-site.zip","original_name":"site.zip"}]`),
		string(status), notes, reviewer, reviewedAt, created, created)
}

func TestTrainerApplicationCreate(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewTrainerApplicationRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO trainer_applications").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO trainer_application_status_history").
		WithArgs(sqlmock.AnyArg(), sqlmock.AnyArg(), nil, models.ApplicationStatusPending, nil, nil, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	app := &models.TrainerApplication{
		FirstName:          "Amina",
		SecondaryExpertise: pq.StringArray{"SQL", "python", "SQL"},
		Status:             models.ApplicationStatusApproved,
	}
	require.NoError(t, repo.Create(context.Background(), app))
	assert.NotEmpty(t, app.ID)
	assert.Equal(t, models.ApplicationStatusPending, app.Status)
	assert.Equal(t, pq.StringArray{"SQL", "python"}, app.SecondaryExpertise)
	assert.NotNil(t, app.CertificationFiles)
	assert.False(t, app.CreatedAt.IsZero())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTrainerApplicationCreateRollsBackOnHistoryFailure(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewTrainerApplicationRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO trainer_applications").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO trainer_application_status_history").WillReturnError(sql.ErrConnDone)
	mock.ExpectRollback()

	err := repo.Create(context.Background(), &models.TrainerApplication{FirstName: "Amina"})
	require.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTrainerApplicationGetByIDDecodesSets(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewTrainerApplicationRepository(db)

	created := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	rows := applicationRow(sqlmock.NewRows(applicationColumnNames), "app-1", models.ApplicationStatusPending, nil, nil, nil, created)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT " + applicationColumns + " FROM trainer_applications WHERE id = $1")).
		WithArgs("app-1").
		WillReturnRows(rows)

	app, err := repo.GetByID(context.Background(), "app-1")
	require.NoError(t, err)
	assert.Equal(t, pq.StringArray{"Python", "SQL"}, app.SecondaryExpertise)
	require.NotNil(t, app.ResumeFile)
	assert.Equal(t, "cv.pdf", app.ResumeFile.OriginalName)
	assert.Len(t, app.PortfolioFiles, 1)
	assert.Empty(t, app.CertificationFiles)
	assert.Nil(t, app.ReviewedBy)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTrainerApplicationGetByIDNotFound(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewTrainerApplicationRepository(db)

	mock.ExpectQuery("FROM trainer_applications WHERE id").WithArgs("nope").WillReturnError(sql.ErrNoRows)

	_, err := repo.GetByID(context.Background(), "nope")
	assert.ErrorIs(t, err, sql.ErrNoRows)
}

func TestTrainerApplicationListFiltersAndPaginates(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewTrainerApplicationRepository(db)

	created := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	rows := applicationRow(sqlmock.NewRows(applicationColumnNames), "app-1", models.ApplicationStatusUnderReview, nil, nil, nil, created)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT " + applicationColumns + " FROM trainer_applications WHERE status::text = ANY($1) ORDER BY created_at DESC, id DESC LIMIT 100 OFFSET 100")).
		WithArgs(pq.StringArray{"pending", "under_review"}).
		WillReturnRows(rows)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM trainer_applications WHERE status::text = ANY($1)")).
		WithArgs(pq.StringArray{"pending", "under_review"}).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(101))

	items, total, err := repo.List(context.Background(), models.ApplicationFilter{
		Status:   []models.ApplicationStatus{models.ApplicationStatusPending, models.ApplicationStatusUnderReview},
		Page:     2,
		PageSize: 500,
	})
	require.NoError(t, err)
	assert.Len(t, items, 1)
	assert.Equal(t, 101, total)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTrainerApplicationListDefaults(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewTrainerApplicationRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("FROM trainer_applications ORDER BY created_at DESC, id DESC LIMIT 20 OFFSET 0")).
		WillReturnRows(sqlmock.NewRows(applicationColumnNames))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM trainer_applications")).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))

	items, total, err := repo.List(context.Background(), models.ApplicationFilter{})
	require.NoError(t, err)
	assert.Empty(t, items)
	assert.Zero(t, total)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTrainerApplicationUpdateStatusWritesHistory(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewTrainerApplicationRepository(db)

	reviewedAt := time.Date(2024, 5, 3, 10, 0, 0, 0, time.UTC)
	notes := "scheduling call"
	rows := applicationRow(sqlmock.NewRows(applicationColumnNames), "app-1", models.ApplicationStatusUnderReview, "u-1", reviewedAt, notes, reviewedAt)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("UPDATE trainer_applications")).
		WithArgs("app-1", models.ApplicationStatusPending, models.ApplicationStatusUnderReview, &notes, "u-1", reviewedAt).
		WillReturnRows(rows)
	mock.ExpectExec("INSERT INTO trainer_application_status_history").
		WithArgs(sqlmock.AnyArg(), "app-1", models.ApplicationStatusPending, models.ApplicationStatusUnderReview, "u-1", notes, reviewedAt).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	app, err := repo.UpdateStatus(context.Background(), UpdateStatusParams{
		ID:           "app-1",
		Expected:     models.ApplicationStatusPending,
		Next:         models.ApplicationStatusUnderReview,
		ReviewerID:   "u-1",
		ReviewedAt:   reviewedAt,
		AdminNotes:   &notes,
		HistoryNotes: &notes,
	})
	require.NoError(t, err)
	assert.Equal(t, models.ApplicationStatusUnderReview, app.Status)
	require.NotNil(t, app.ReviewedBy)
	assert.Equal(t, "u-1", *app.ReviewedBy)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTrainerApplicationUpdateStatusStale(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewTrainerApplicationRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("UPDATE trainer_applications")).WillReturnRows(sqlmock.NewRows(applicationColumnNames))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT EXISTS (SELECT 1 FROM trainer_applications WHERE id = $1)")).
		WithArgs("app-1").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))
	mock.ExpectRollback()

	_, err := repo.UpdateStatus(context.Background(), UpdateStatusParams{
		ID: "app-1", Expected: models.ApplicationStatusPending, Next: models.ApplicationStatusUnderReview, ReviewerID: "u-1", ReviewedAt: time.Now(),
	})
	assert.ErrorIs(t, err, ErrStaleStatus)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTrainerApplicationUpdateStatusMissing(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewTrainerApplicationRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("UPDATE trainer_applications")).WillReturnRows(sqlmock.NewRows(applicationColumnNames))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT EXISTS")).WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))
	mock.ExpectRollback()

	_, err := repo.UpdateStatus(context.Background(), UpdateStatusParams{
		ID: "gone", Expected: models.ApplicationStatusPending, Next: models.ApplicationStatusRejected, ReviewerID: "u-1", ReviewedAt: time.Now(),
	})
	assert.ErrorIs(t, err, sql.ErrNoRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTrainerApplicationExistsByEmail(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewTrainerApplicationRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("WHERE lower(email) = lower($1)")).
		WithArgs("Amina@Example.com").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

	exists, err := repo.ExistsByEmail(context.Background(), "Amina@Example.com")
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestTrainerApplicationHistoryAndCounts(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewTrainerApplicationRepository(db)

	at := time.Date(2024, 5, 3, 10, 0, 0, 0, time.UTC)
	mock.ExpectQuery(regexp.QuoteMeta("FROM trainer_application_status_history WHERE application_id = $1 ORDER BY changed_at ASC, id ASC")).
		WithArgs("app-1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "application_id", "from_status", "to_status", "changed_by", "notes", "changed_at"}).
			AddRow("h-1", "app-1", nil, "pending", nil, nil, at).
			AddRow("h-2", "app-1", "pending", "under_review", "u-1", "scheduling call", at.Add(time.Hour)))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT status, COUNT(*) AS count FROM trainer_applications GROUP BY status ORDER BY status")).
		WillReturnRows(sqlmock.NewRows([]string{"status", "count"}).AddRow("pending", 3).AddRow("approved", 1))

	history, err := repo.ListHistory(context.Background(), "app-1")
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Nil(t, history[0].FromStatus)
	require.NotNil(t, history[1].FromStatus)
	assert.Equal(t, models.ApplicationStatusPending, *history[1].FromStatus)

	counts, err := repo.CountByStatus(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []models.StatusCount{{Status: "pending", Count: 3}, {Status: "approved", Count: 1}}, counts)
	assert.NoError(t, mock.ExpectationsWereMet())
}
