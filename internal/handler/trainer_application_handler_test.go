package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Rzouga01/LearnHub-sub001/internal/dto"
	"github.com/Rzouga01/LearnHub-sub001/internal/middleware"
	"github.com/Rzouga01/LearnHub-sub001/internal/models"
	"github.com/Rzouga01/LearnHub-sub001/internal/policy"
	"github.com/Rzouga01/LearnHub-sub001/internal/service"
	appErrors "github.com/Rzouga01/LearnHub-sub001/pkg/errors"
)

type applicationServiceMock struct {
	submitReq   dto.SubmitApplicationRequest
	submitFiles service.AttachmentSet
	submitErr   error
	lastQuery   dto.ApplicationQuery
	lastActor   *policy.Actor
	lastStatus  dto.UpdateStatusRequest
	transition  *models.TrainerApplication
	transErr    error
	export      *service.ExportFile
}

func (m *applicationServiceMock) Submit(ctx context.Context, req dto.SubmitApplicationRequest, files service.AttachmentSet) (*models.TrainerApplication, error) {
	m.submitReq = req
	m.submitFiles = files
	if m.submitErr != nil {
		return nil, m.submitErr
	}
	return &models.TrainerApplication{ID: "app-1", Status: models.ApplicationStatusPending}, nil
}

func (m *applicationServiceMock) List(ctx context.Context, actor *policy.Actor, query dto.ApplicationQuery) ([]models.TrainerApplication, *models.Pagination, error) {
	m.lastActor = actor
	m.lastQuery = query
	return []models.TrainerApplication{{ID: "app-1"}}, &models.Pagination{Page: 1, PageSize: 20, TotalCount: 1}, nil
}

func (m *applicationServiceMock) Get(ctx context.Context, actor *policy.Actor, id string) (*dto.ApplicationDetailResponse, error) {
	m.lastActor = actor
	return &dto.ApplicationDetailResponse{TrainerApplication: &models.TrainerApplication{ID: id}}, nil
}

func (m *applicationServiceMock) Transition(ctx context.Context, actor *policy.Actor, id string, req dto.UpdateStatusRequest) (*models.TrainerApplication, error) {
	m.lastActor = actor
	m.lastStatus = req
	return m.transition, m.transErr
}

func (m *applicationServiceMock) History(ctx context.Context, actor *policy.Actor, id string) ([]models.StatusHistoryEntry, error) {
	return []models.StatusHistoryEntry{}, nil
}

func (m *applicationServiceMock) Summary(ctx context.Context, actor *policy.Actor) (*dto.ApplicationSummaryResponse, error) {
	return &dto.ApplicationSummaryResponse{Counts: map[models.ApplicationStatus]int{models.ApplicationStatusPending: 2}, Total: 2}, nil
}

func (m *applicationServiceMock) Export(ctx context.Context, actor *policy.Actor, query dto.ApplicationQuery, format string) (*service.ExportFile, error) {
	return m.export, nil
}

func (m *applicationServiceMock) OpenAttachment(ctx context.Context, actor *policy.Actor, id, token string) (*service.AttachmentDownload, error) {
	return nil, appErrors.Clone(appErrors.ErrForbidden, "invalid or expired download token")
}

func decodeEnvelope(t *testing.T, body []byte) map[string]interface{} {
	t.Helper()
	var envelope map[string]interface{}
	require.NoError(t, json.Unmarshal(body, &envelope))
	return envelope
}

func TestTrainerApplicationHandlerSubmitJSON(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &applicationServiceMock{}
	handler := NewTrainerApplicationHandler(mockSvc)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	body := `{"first_name":"Ada","last_name":"Lovelace","email":"ada@example.com","secondary_expertise":["go","sql"]}`
	c.Request, _ = http.NewRequest(http.MethodPost, "/trainer-applications", bytes.NewBufferString(body))
	c.Request.Header.Set("Content-Type", "application/json")

	handler.Submit(c)

	require.Equal(t, http.StatusCreated, w.Code)
	envelope := decodeEnvelope(t, w.Body.Bytes())
	data := envelope["data"].(map[string]interface{})
	assert.Equal(t, "app-1", data["id"])
	assert.Equal(t, "pending", data["status"])
	assert.Equal(t, []string{"go", "sql"}, mockSvc.submitReq.SecondaryExpertise)
	assert.True(t, mockSvc.submitFiles.Empty())
}

func TestTrainerApplicationHandlerSubmitMultipart(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &applicationServiceMock{}
	handler := NewTrainerApplicationHandler(mockSvc)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	require.NoError(t, mw.WriteField("first_name", "Ada"))
	require.NoError(t, mw.WriteField("email", "ada@example.com"))
	require.NoError(t, mw.WriteField("secondary_expertise", "go, sql"))
	part, err := mw.CreateFormFile("resume", "cv.pdf")
	require.NoError(t, err)
	_, _ = part.Write([]byte("%PDF-1.4"))
	part, err = mw.CreateFormFile("certifications[]", "cert.pdf")
	require.NoError(t, err)
	_, _ = part.Write([]byte("%PDF-1.4"))
	require.NoError(t, mw.Close())

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request, _ = http.NewRequest(http.MethodPost, "/trainer-applications", &buf)
	c.Request.Header.Set("Content-Type", mw.FormDataContentType())

	handler.Submit(c)

	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.Equal(t, "Ada", mockSvc.submitReq.FirstName)
	assert.Equal(t, []string{"go", " sql"}, mockSvc.submitReq.SecondaryExpertise)
	require.NotNil(t, mockSvc.submitFiles.Resume)
	assert.Equal(t, "cv.pdf", mockSvc.submitFiles.Resume.Filename)
	assert.Len(t, mockSvc.submitFiles.Certifications, 1)
}

func TestTrainerApplicationHandlerSubmitValidationError(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &applicationServiceMock{submitErr: appErrors.MissingField("professional_bio")}
	handler := NewTrainerApplicationHandler(mockSvc)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request, _ = http.NewRequest(http.MethodPost, "/trainer-applications", bytes.NewBufferString(`{}`))
	c.Request.Header.Set("Content-Type", "application/json")

	handler.Submit(c)

	require.Equal(t, http.StatusBadRequest, w.Code)
	envelope := decodeEnvelope(t, w.Body.Bytes())
	errBody := envelope["error"].(map[string]interface{})
	assert.Equal(t, "MISSING_FIELD", errBody["code"])
	details := errBody["details"].(map[string]interface{})
	assert.Equal(t, "professional_bio", details["field"])
}

func TestTrainerApplicationHandlerListParsesQuery(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &applicationServiceMock{}
	handler := NewTrainerApplicationHandler(mockSvc)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request, _ = http.NewRequest(http.MethodGet, "/trainer-applications?status=pending,Under_Review&page=2&page_size=10", nil)
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "u-1", Roles: []models.UserRole{models.RoleCoordinator}})

	handler.List(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []models.ApplicationStatus{models.ApplicationStatusPending, models.ApplicationStatusUnderReview}, mockSvc.lastQuery.Status)
	assert.Equal(t, 2, mockSvc.lastQuery.Page)
	assert.Equal(t, 10, mockSvc.lastQuery.PageSize)
	require.NotNil(t, mockSvc.lastActor)
	assert.Equal(t, "u-1", mockSvc.lastActor.ID)
	assert.Contains(t, w.Body.String(), `"total_count":1`)
}

func TestTrainerApplicationHandlerListRejectsBadPage(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewTrainerApplicationHandler(&applicationServiceMock{})

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request, _ = http.NewRequest(http.MethodGet, "/trainer-applications?page=abc", nil)

	handler.List(c)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "INVALID_FORMAT")
}

func TestTrainerApplicationHandlerUpdateStatus(t *testing.T) {
	gin.SetMode(gin.TestMode)
	reviewedAt := time.Date(2024, 5, 3, 10, 0, 0, 0, time.UTC)
	reviewer := "u-1"
	notes := "scheduling call"
	mockSvc := &applicationServiceMock{transition: &models.TrainerApplication{
		ID: "app-1", Status: models.ApplicationStatusUnderReview, ReviewedBy: &reviewer, ReviewedAt: &reviewedAt, AdminNotes: &notes,
	}}
	handler := NewTrainerApplicationHandler(mockSvc)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Params = gin.Params{{Key: "id", Value: "app-1"}}
	c.Request, _ = http.NewRequest(http.MethodPatch, "/trainer-applications/app-1/status", bytes.NewBufferString(`{"status":"under_review","notes":"scheduling call"}`))
	c.Request.Header.Set("Content-Type", "application/json")
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "u-1", Roles: []models.UserRole{models.RoleCoordinator}})

	handler.UpdateStatus(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "under_review", mockSvc.lastStatus.Status)
	require.NotNil(t, mockSvc.lastStatus.Notes)
	assert.Equal(t, "scheduling call", *mockSvc.lastStatus.Notes)
	assert.Contains(t, w.Body.String(), `"reviewed_by":"u-1"`)
}

func TestTrainerApplicationHandlerUpdateStatusErrors(t *testing.T) {
	gin.SetMode(gin.TestMode)

	t.Run("missing status", func(t *testing.T) {
		handler := NewTrainerApplicationHandler(&applicationServiceMock{})
		w := httptest.NewRecorder()
		c, _ := gin.CreateTestContext(w)
		c.Request, _ = http.NewRequest(http.MethodPatch, "/trainer-applications/app-1/status", bytes.NewBufferString(`{}`))
		c.Request.Header.Set("Content-Type", "application/json")
		handler.UpdateStatus(c)
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, w.Body.String(), "MISSING_FIELD")
	})

	t.Run("illegal transition", func(t *testing.T) {
		handler := NewTrainerApplicationHandler(&applicationServiceMock{transErr: appErrors.IllegalTransition("pending", "approved")})
		w := httptest.NewRecorder()
		c, _ := gin.CreateTestContext(w)
		c.Request, _ = http.NewRequest(http.MethodPatch, "/trainer-applications/app-1/status", bytes.NewBufferString(`{"status":"approved"}`))
		c.Request.Header.Set("Content-Type", "application/json")
		handler.UpdateStatus(c)
		require.Equal(t, http.StatusUnprocessableEntity, w.Code)
		envelope := decodeEnvelope(t, w.Body.Bytes())
		details := envelope["error"].(map[string]interface{})["details"].(map[string]interface{})
		assert.Equal(t, "pending", details["from"])
		assert.Equal(t, "approved", details["to"])
	})

	t.Run("conflict", func(t *testing.T) {
		handler := NewTrainerApplicationHandler(&applicationServiceMock{transErr: appErrors.Clone(appErrors.ErrStoreConflict, "")})
		w := httptest.NewRecorder()
		c, _ := gin.CreateTestContext(w)
		c.Request, _ = http.NewRequest(http.MethodPatch, "/trainer-applications/app-1/status", bytes.NewBufferString(`{"status":"under_review"}`))
		c.Request.Header.Set("Content-Type", "application/json")
		handler.UpdateStatus(c)
		assert.Equal(t, http.StatusConflict, w.Code)
		assert.Contains(t, w.Body.String(), "STORE_CONFLICT")
	})
}

func TestTrainerApplicationHandlerExport(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &applicationServiceMock{export: &service.ExportFile{Filename: "trainer-applications.csv", ContentType: "text/csv; charset=utf-8", Data: []byte("ID\n")}}
	handler := NewTrainerApplicationHandler(mockSvc)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request, _ = http.NewRequest(http.MethodGet, "/trainer-applications/export?format=csv", nil)

	handler.Export(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, `attachment; filename="trainer-applications.csv"`, w.Header().Get("Content-Disposition"))
	assert.Equal(t, "ID\n", w.Body.String())
}

func TestTrainerApplicationHandlerDownloadRejectsBadToken(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewTrainerApplicationHandler(&applicationServiceMock{})

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Params = gin.Params{{Key: "id", Value: "app-1"}}
	c.Request, _ = http.NewRequest(http.MethodGet, "/trainer-applications/app-1/attachments/download?token=bad", nil)

	handler.DownloadAttachment(c)

	assert.Equal(t, http.StatusForbidden, w.Code)
}
