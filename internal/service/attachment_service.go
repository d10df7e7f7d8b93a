package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/Rzouga01/LearnHub-sub001/internal/dto"
	"github.com/Rzouga01/LearnHub-sub001/internal/models"
	appErrors "github.com/Rzouga01/LearnHub-sub001/pkg/errors"
	"github.com/Rzouga01/LearnHub-sub001/pkg/storage"
)

// Attachment kinds double as the field names reported on rejection.
const (
	AttachmentResume        = "resume"
	AttachmentCertification = "certifications"
	AttachmentPortfolio     = "portfolios"
)

type attachmentStorage interface {
	SaveStream(key string, r io.Reader, limit int64) (int64, error)
	Open(key string) (*os.File, error)
	Delete(key string) error
}

type attachmentSigner interface {
	Generate(ownerID, key string) (string, time.Time, error)
	Parse(token string) (storage.DownloadGrant, error)
}

// AttachmentUpload is one uploaded file part.
type AttachmentUpload struct {
	Filename string
	Size     int64
	MimeType string
	Content  io.ReadSeeker
}

// AttachmentSet groups the optional files of a submission.
type AttachmentSet struct {
	Resume         *AttachmentUpload
	Certifications []AttachmentUpload
	Portfolios     []AttachmentUpload
}

// Empty reports whether no file was supplied.
func (s AttachmentSet) Empty() bool {
	return s.Resume == nil && len(s.Certifications) == 0 && len(s.Portfolios) == 0
}

// AttachmentDownload bundles an opened file for streaming.
type AttachmentDownload struct {
	File      *os.File
	Filename  string
	MimeType  string
	SizeBytes int64
}

// AttachmentServiceConfig holds upload constraints.
type AttachmentServiceConfig struct {
	MaxFileSize  int64
	AllowedMIMEs []string
	APIPrefix    string
}

// AttachmentService validates, stores and serves application attachments.
type AttachmentService struct {
	storage attachmentStorage
	signer  attachmentSigner
	logger  *zap.Logger
	cfg     AttachmentServiceConfig
	mimeSet map[string]struct{}
}

// NewAttachmentService constructs the service with defaults.
func NewAttachmentService(store attachmentStorage, signer attachmentSigner, logger *zap.Logger, cfg AttachmentServiceConfig) *AttachmentService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.MaxFileSize <= 0 {
		cfg.MaxFileSize = 5 * 1024 * 1024
	}
	if len(cfg.AllowedMIMEs) == 0 {
		cfg.AllowedMIMEs = []string{"application/pdf", "image/jpeg", "image/png"}
	}
	if cfg.APIPrefix == "" {
		cfg.APIPrefix = "/api/v1"
	}
	mimeSet := make(map[string]struct{}, len(cfg.AllowedMIMEs))
	for _, mt := range cfg.AllowedMIMEs {
		mimeSet[strings.ToLower(strings.TrimSpace(mt))] = struct{}{}
	}
	return &AttachmentService{storage: store, signer: signer, logger: logger, cfg: cfg, mimeSet: mimeSet}
}

// Check enforces size and type limits without writing anything. It fills in
// detected MIME types so Store does not sniff twice.
func (s *AttachmentService) Check(set *AttachmentSet) error {
	if set.Resume != nil {
		if err := s.checkOne(AttachmentResume, set.Resume); err != nil {
			return err
		}
	}
	for i := range set.Certifications {
		if err := s.checkOne(AttachmentCertification, &set.Certifications[i]); err != nil {
			return err
		}
	}
	for i := range set.Portfolios {
		if err := s.checkOne(AttachmentPortfolio, &set.Portfolios[i]); err != nil {
			return err
		}
	}
	return nil
}

func (s *AttachmentService) checkOne(field string, upload *AttachmentUpload) error {
	if upload.Content == nil || strings.TrimSpace(upload.Filename) == "" {
		return appErrors.InvalidFormat(field, "file is empty")
	}
	if upload.Size <= 0 {
		return appErrors.InvalidFormat(field, "file is empty")
	}
	if upload.Size > s.cfg.MaxFileSize {
		return appErrors.InvalidFormat(field, fmt.Sprintf("file exceeds %d bytes limit", s.cfg.MaxFileSize))
	}
	mimeType, err := detectMime(upload)
	if err != nil {
		return err
	}
	if _, ok := s.mimeSet[mimeType]; !ok {
		return appErrors.InvalidFormat(field, fmt.Sprintf("file type %s not allowed", mimeType))
	}
	upload.MimeType = mimeType
	return nil
}

// Store writes every file of the set under applicationID. On failure every
// file written so far is removed.
func (s *AttachmentService) Store(ctx context.Context, applicationID string, set AttachmentSet) (resume *models.FileHandle, certs, portfolios models.FileHandles, err error) {
	var written []models.FileHandle
	defer func() {
		if err != nil {
			s.Discard(written)
		}
	}()

	save := func(kind string, upload AttachmentUpload) (models.FileHandle, error) {
		if err := ctx.Err(); err != nil {
			return models.FileHandle{}, err
		}
		handle, err := s.save(applicationID, kind, upload)
		if err != nil {
			return models.FileHandle{}, err
		}
		written = append(written, handle)
		return handle, nil
	}

	if set.Resume != nil {
		handle, err := save(AttachmentResume, *set.Resume)
		if err != nil {
			return nil, nil, nil, err
		}
		resume = &handle
	}
	certs = make(models.FileHandles, 0, len(set.Certifications))
	for _, upload := range set.Certifications {
		handle, err := save(AttachmentCertification, upload)
		if err != nil {
			return nil, nil, nil, err
		}
		certs = append(certs, handle)
	}
	portfolios = make(models.FileHandles, 0, len(set.Portfolios))
	for _, upload := range set.Portfolios {
		handle, err := save(AttachmentPortfolio, upload)
		if err != nil {
			return nil, nil, nil, err
		}
		portfolios = append(portfolios, handle)
	}
	return resume, certs, portfolios, nil
}

func (s *AttachmentService) save(applicationID, kind string, upload AttachmentUpload) (models.FileHandle, error) {
	if _, err := upload.Content.Seek(0, io.SeekStart); err != nil {
		return models.FileHandle{}, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to reset upload stream")
	}
	key := path.Join(applicationID, kind, randomPrefix()+"-"+sanitizeFilename(upload.Filename))
	size, err := s.storage.SaveStream(key, upload.Content, s.cfg.MaxFileSize)
	if err != nil {
		if errors.Is(err, storage.ErrTooLarge) {
			return models.FileHandle{}, appErrors.InvalidFormat(kind, fmt.Sprintf("file exceeds %d bytes limit", s.cfg.MaxFileSize))
		}
		return models.FileHandle{}, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to persist attachment")
	}
	return models.FileHandle{
		Path:         key,
		OriginalName: filepath.Base(upload.Filename),
		MimeType:     upload.MimeType,
		SizeBytes:    size,
	}, nil
}

// Discard removes stored files, logging failures.
func (s *AttachmentService) Discard(handles []models.FileHandle) {
	for _, h := range handles {
		if err := s.storage.Delete(h.Path); err != nil {
			s.logger.Warn("failed to discard attachment", zap.String("path", h.Path), zap.Error(err))
		}
	}
}

// Links signs a download URL for every attachment of app.
func (s *AttachmentService) Links(app *models.TrainerApplication) ([]dto.AttachmentLink, error) {
	links := make([]dto.AttachmentLink, 0, len(app.CertificationFiles)+len(app.PortfolioFiles)+1)
	add := func(kind string, h models.FileHandle) error {
		token, expiresAt, err := s.signer.Generate(app.ID, h.Path)
		if err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to sign attachment link")
		}
		links = append(links, dto.AttachmentLink{
			Kind:         kind,
			OriginalName: h.OriginalName,
			MimeType:     h.MimeType,
			SizeBytes:    h.SizeBytes,
			DownloadURL: fmt.Sprintf("%s/trainer-applications/%s/attachments/download?token=%s",
				strings.TrimRight(s.cfg.APIPrefix, "/"), app.ID, url.QueryEscape(token)),
			ExpiresAt: expiresAt,
		})
		return nil
	}
	if app.ResumeFile != nil {
		if err := add(AttachmentResume, *app.ResumeFile); err != nil {
			return nil, err
		}
	}
	for _, h := range app.CertificationFiles {
		if err := add(AttachmentCertification, h); err != nil {
			return nil, err
		}
	}
	for _, h := range app.PortfolioFiles {
		if err := add(AttachmentPortfolio, h); err != nil {
			return nil, err
		}
	}
	return links, nil
}

// Open validates token against app and opens the referenced file.
func (s *AttachmentService) Open(app *models.TrainerApplication, token string) (*AttachmentDownload, error) {
	grant, err := s.signer.Parse(token)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "invalid or expired download token")
	}
	if grant.OwnerID != app.ID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "download token does not match application")
	}
	handle, ok := app.AttachmentByPath(grant.Key)
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "attachment not found")
	}
	file, err := s.storage.Open(handle.Path)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to open attachment")
	}
	info, err := file.Stat()
	if err != nil {
		file.Close() //nolint:errcheck
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to read attachment metadata")
	}
	mimeType := handle.MimeType
	if mimeType == "" {
		mimeType = "application/octet-stream"
	}
	return &AttachmentDownload{File: file, Filename: handle.OriginalName, MimeType: mimeType, SizeBytes: info.Size()}, nil
}

// detectMime sniffs content. The declared type only refines container
// formats the sniffer reports generically.
func detectMime(upload *AttachmentUpload) (string, error) {
	header := make([]byte, 512)
	n, err := upload.Content.Read(header)
	if err != nil && err != io.EOF {
		return "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to inspect file")
	}
	if _, err := upload.Content.Seek(0, io.SeekStart); err != nil {
		return "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to reset upload stream")
	}
	sniffed := strings.ToLower(strings.SplitN(http.DetectContentType(header[:n]), ";", 2)[0])
	declared := strings.ToLower(strings.TrimSpace(strings.SplitN(upload.MimeType, ";", 2)[0]))
	switch {
	case sniffed == "application/zip" && strings.Contains(declared, "openxmlformats"):
		// docx sniffs as zip
		return declared, nil
	case sniffed == "application/octet-stream" && declared == "application/msword":
		return declared, nil
	}
	return sniffed, nil
}

func sanitizeFilename(name string) string {
	base := filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	cleaned := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, base)
	if len(cleaned) > 80 {
		cleaned = cleaned[len(cleaned)-80:]
	}
	if cleaned == "" || cleaned == "." || cleaned == ".." {
		return "file"
	}
	return cleaned
}

func randomPrefix() string {
	buf := make([]byte, 8)
	if _, err := rand.Read(buf); err != nil {
		return fmt.Sprintf("%d", time.Now().UnixNano())
	}
	return hex.EncodeToString(buf)
}
