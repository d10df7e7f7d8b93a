package handler

import (
	"context"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"github.com/Rzouga01/LearnHub-sub001/internal/dto"
	"github.com/Rzouga01/LearnHub-sub001/internal/middleware"
	"github.com/Rzouga01/LearnHub-sub001/internal/models"
	"github.com/Rzouga01/LearnHub-sub001/internal/policy"
	"github.com/Rzouga01/LearnHub-sub001/internal/service"
	appErrors "github.com/Rzouga01/LearnHub-sub001/pkg/errors"
	"github.com/Rzouga01/LearnHub-sub001/pkg/response"
)

const multipartMemory = 8 << 20

type trainerApplicationService interface {
	Submit(ctx context.Context, req dto.SubmitApplicationRequest, files service.AttachmentSet) (*models.TrainerApplication, error)
	List(ctx context.Context, actor *policy.Actor, query dto.ApplicationQuery) ([]models.TrainerApplication, *models.Pagination, error)
	Get(ctx context.Context, actor *policy.Actor, id string) (*dto.ApplicationDetailResponse, error)
	Transition(ctx context.Context, actor *policy.Actor, id string, req dto.UpdateStatusRequest) (*models.TrainerApplication, error)
	History(ctx context.Context, actor *policy.Actor, id string) ([]models.StatusHistoryEntry, error)
	Summary(ctx context.Context, actor *policy.Actor) (*dto.ApplicationSummaryResponse, error)
	Export(ctx context.Context, actor *policy.Actor, query dto.ApplicationQuery, format string) (*service.ExportFile, error)
	OpenAttachment(ctx context.Context, actor *policy.Actor, id, token string) (*service.AttachmentDownload, error)
}

// TrainerApplicationHandler exposes the trainer application intake and review endpoints.
type TrainerApplicationHandler struct {
	service trainerApplicationService
}

// NewTrainerApplicationHandler constructs the handler.
func NewTrainerApplicationHandler(service trainerApplicationService) *TrainerApplicationHandler {
	return &TrainerApplicationHandler{service: service}
}

// Submit godoc
// @Summary Submit a trainer application
// @Description Public endpoint. Accepts JSON or multipart/form-data with optional resume, certifications[] and portfolios[] files.
// @Tags TrainerApplications
// @Accept json
// @Accept mpfd
// @Produce json
// @Param payload body dto.SubmitApplicationRequest true "Application form"
// @Success 201 {object} response.Envelope{data=dto.SubmitApplicationResponse}
// @Failure 400 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Failure 429 {object} response.Envelope
// @Router /trainer-applications [post]
func (h *TrainerApplicationHandler) Submit(c *gin.Context) {
	if h.service == nil {
		response.Error(c, appErrors.ErrInternal)
		return
	}

	var (
		req   dto.SubmitApplicationRequest
		files service.AttachmentSet
	)
	if strings.HasPrefix(c.ContentType(), binding.MIMEMultipartPOSTForm) {
		if err := c.Request.ParseMultipartForm(multipartMemory); err != nil {
			response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid multipart payload"))
			return
		}
		if err := c.ShouldBindWith(&req, binding.FormMultipart); err != nil {
			response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid application payload"))
			return
		}
		req.SecondaryExpertise = splitTags(req.SecondaryExpertise)
		opened, err := attachmentsFromForm(c.Request.MultipartForm)
		defer closeAll(opened)
		if err != nil {
			response.Error(c, err)
			return
		}
		files = opened.set
	} else if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid application payload"))
		return
	}

	app, err := h.service.Submit(c.Request.Context(), req, files)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, dto.SubmitApplicationResponse{ID: app.ID, Status: app.Status})
}

// List godoc
// @Summary List trainer applications
// @Tags TrainerApplications
// @Produce json
// @Security BearerAuth
// @Param status query string false "Comma separated statuses"
// @Param page query int false "Page (1-based)"
// @Param page_size query int false "Page size (max 100)"
// @Success 200 {object} response.Envelope{data=[]models.TrainerApplication}
// @Failure 401 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /trainer-applications [get]
func (h *TrainerApplicationHandler) List(c *gin.Context) {
	if h.service == nil {
		response.Error(c, appErrors.ErrInternal)
		return
	}
	query, err := parseApplicationQuery(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	items, pagination, err := h.service.List(c.Request.Context(), actorFromContext(c), query)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, pagination)
}

// Get godoc
// @Summary Get a trainer application
// @Tags TrainerApplications
// @Produce json
// @Security BearerAuth
// @Param id path string true "Application ID"
// @Success 200 {object} response.Envelope{data=dto.ApplicationDetailResponse}
// @Failure 404 {object} response.Envelope
// @Router /trainer-applications/{id} [get]
func (h *TrainerApplicationHandler) Get(c *gin.Context) {
	if h.service == nil {
		response.Error(c, appErrors.ErrInternal)
		return
	}
	detail, err := h.service.Get(c.Request.Context(), actorFromContext(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, detail, nil)
}

// UpdateStatus godoc
// @Summary Move a trainer application through the review lifecycle
// @Tags TrainerApplications
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Application ID"
// @Param payload body dto.UpdateStatusRequest true "Target status"
// @Success 200 {object} response.Envelope{data=models.TrainerApplication}
// @Failure 404 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Failure 422 {object} response.Envelope
// @Router /trainer-applications/{id}/status [patch]
func (h *TrainerApplicationHandler) UpdateStatus(c *gin.Context) {
	if h.service == nil {
		response.Error(c, appErrors.ErrInternal)
		return
	}
	var req dto.UpdateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			response.Error(c, appErrors.MissingField("status"))
			return
		}
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid status payload"))
		return
	}
	app, err := h.service.Transition(c.Request.Context(), actorFromContext(c), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, app, nil)
}

// History godoc
// @Summary List the status history of a trainer application
// @Tags TrainerApplications
// @Produce json
// @Security BearerAuth
// @Param id path string true "Application ID"
// @Success 200 {object} response.Envelope{data=[]models.StatusHistoryEntry}
// @Failure 404 {object} response.Envelope
// @Router /trainer-applications/{id}/history [get]
func (h *TrainerApplicationHandler) History(c *gin.Context) {
	if h.service == nil {
		response.Error(c, appErrors.ErrInternal)
		return
	}
	entries, err := h.service.History(c.Request.Context(), actorFromContext(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, entries, nil)
}

// Summary godoc
// @Summary Count trainer applications per status
// @Tags TrainerApplications
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Envelope{data=dto.ApplicationSummaryResponse}
// @Failure 403 {object} response.Envelope
// @Router /trainer-applications/summary [get]
func (h *TrainerApplicationHandler) Summary(c *gin.Context) {
	if h.service == nil {
		response.Error(c, appErrors.ErrInternal)
		return
	}
	summary, err := h.service.Summary(c.Request.Context(), actorFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.SetCacheHit(c, summary.Cached)
	response.JSON(c, http.StatusOK, summary, nil, middleware.ResponseMeta(c))
}

// Export godoc
// @Summary Export trainer applications
// @Tags TrainerApplications
// @Produce text/csv
// @Produce application/pdf
// @Security BearerAuth
// @Param format query string false "csv or pdf" default(csv)
// @Param status query string false "Comma separated statuses"
// @Success 200 {file} file
// @Failure 403 {object} response.Envelope
// @Router /trainer-applications/export [get]
func (h *TrainerApplicationHandler) Export(c *gin.Context) {
	if h.service == nil {
		response.Error(c, appErrors.ErrInternal)
		return
	}
	query, err := parseApplicationQuery(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	file, err := h.service.Export(c.Request.Context(), actorFromContext(c), query, c.DefaultQuery("format", "csv"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Attachment(c, file.Filename, file.ContentType, file.Data)
}

// DownloadAttachment godoc
// @Summary Download an application attachment through a signed link
// @Tags TrainerApplications
// @Produce octet-stream
// @Security BearerAuth
// @Param id path string true "Application ID"
// @Param token query string true "Signed download token"
// @Success 200 {file} file
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /trainer-applications/{id}/attachments/download [get]
func (h *TrainerApplicationHandler) DownloadAttachment(c *gin.Context) {
	if h.service == nil {
		response.Error(c, appErrors.ErrInternal)
		return
	}
	download, err := h.service.OpenAttachment(c.Request.Context(), actorFromContext(c), c.Param("id"), c.Query("token"))
	if err != nil {
		response.Error(c, err)
		return
	}
	defer download.File.Close() //nolint:errcheck

	c.Header("Cache-Control", "no-store")
	c.DataFromReader(http.StatusOK, download.SizeBytes, download.MimeType, download.File, map[string]string{
		"Content-Disposition": fmt.Sprintf("attachment; filename=%q", download.Filename),
	})
}

func parseApplicationQuery(c *gin.Context) (dto.ApplicationQuery, error) {
	query := dto.ApplicationQuery{}
	for _, raw := range c.QueryArray("status") {
		for _, part := range strings.Split(raw, ",") {
			if status := models.ParseApplicationStatus(part); status != "" {
				query.Status = append(query.Status, status)
			}
		}
	}
	var err error
	if query.Page, err = optionalInt(c, "page"); err != nil {
		return query, err
	}
	if query.PageSize, err = optionalInt(c, "page_size"); err != nil {
		return query, err
	}
	return query, nil
}

func optionalInt(c *gin.Context, key string) (int, error) {
	raw := strings.TrimSpace(c.Query(key))
	if raw == "" {
		return 0, nil
	}
	value, err := strconv.Atoi(raw)
	if err != nil || value < 0 {
		return 0, appErrors.InvalidFormat(key, "must be a positive integer")
	}
	return value, nil
}

func splitTags(values []string) []string {
	var out []string
	for _, v := range values {
		out = append(out, strings.Split(v, ",")...)
	}
	return out
}

type openedAttachments struct {
	set   service.AttachmentSet
	files []multipart.File
}

func attachmentsFromForm(form *multipart.Form) (*openedAttachments, error) {
	opened := &openedAttachments{}
	if form == nil {
		return opened, nil
	}
	open := func(field string, fh *multipart.FileHeader) (service.AttachmentUpload, error) {
		f, err := fh.Open()
		if err != nil {
			return service.AttachmentUpload{}, appErrors.InvalidFormat(field, "unreadable file")
		}
		opened.files = append(opened.files, f)
		return service.AttachmentUpload{
			Filename: fh.Filename,
			Size:     fh.Size,
			MimeType: fh.Header.Get("Content-Type"),
			Content:  f,
		}, nil
	}

	if headers := formFiles(form, service.AttachmentResume); len(headers) > 0 {
		if len(headers) > 1 {
			return opened, appErrors.InvalidFormat(service.AttachmentResume, "only one resume may be uploaded")
		}
		upload, err := open(service.AttachmentResume, headers[0])
		if err != nil {
			return opened, err
		}
		opened.set.Resume = &upload
	}
	for _, fh := range formFiles(form, service.AttachmentCertification) {
		upload, err := open(service.AttachmentCertification, fh)
		if err != nil {
			return opened, err
		}
		opened.set.Certifications = append(opened.set.Certifications, upload)
	}
	for _, fh := range formFiles(form, service.AttachmentPortfolio) {
		upload, err := open(service.AttachmentPortfolio, fh)
		if err != nil {
			return opened, err
		}
		opened.set.Portfolios = append(opened.set.Portfolios, upload)
	}
	return opened, nil
}

// formFiles accepts both "field" and "field[]" keys.
func formFiles(form *multipart.Form, field string) []*multipart.FileHeader {
	return append(append([]*multipart.FileHeader(nil), form.File[field]...), form.File[field+"[]"]...)
}

func closeAll(opened *openedAttachments) {
	if opened == nil {
		return
	}
	for _, f := range opened.files {
		_ = f.Close()
	}
}
