package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/lib/pq"
)

// ApplicationStatus captures the review lifecycle of a trainer application.
type ApplicationStatus string

const (
	ApplicationStatusPending            ApplicationStatus = "pending"
	ApplicationStatusUnderReview        ApplicationStatus = "under_review"
	ApplicationStatusInterviewScheduled ApplicationStatus = "interview_scheduled"
	ApplicationStatusApproved           ApplicationStatus = "approved"
	ApplicationStatusRejected           ApplicationStatus = "rejected"
)

// ApplicationStatuses lists every lifecycle state in review order.
var ApplicationStatuses = []ApplicationStatus{
	ApplicationStatusPending,
	ApplicationStatusUnderReview,
	ApplicationStatusInterviewScheduled,
	ApplicationStatusApproved,
	ApplicationStatusRejected,
}

// Valid reports whether the status is one of the known lifecycle states.
func (s ApplicationStatus) Valid() bool {
	for _, known := range ApplicationStatuses {
		if s == known {
			return true
		}
	}
	return false
}

// Terminal reports whether no further transitions are possible.
func (s ApplicationStatus) Terminal() bool {
	return s == ApplicationStatusApproved || s == ApplicationStatusRejected
}

// ParseApplicationStatus normalises user input into a status value.
func ParseApplicationStatus(raw string) ApplicationStatus {
	return ApplicationStatus(strings.ToLower(strings.TrimSpace(raw)))
}

// ExperienceBand enumerates the accepted years-of-experience ranges.
type ExperienceBand string

const (
	ExperienceBand0To2  ExperienceBand = "0-2"
	ExperienceBand2To5  ExperienceBand = "2-5"
	ExperienceBand5To10 ExperienceBand = "5-10"
	ExperienceBand10Up  ExperienceBand = "10+"
)

// FileHandle references a stored attachment; content is never embedded.
type FileHandle struct {
	Path         string `json:"path"`
	OriginalName string `json:"original_name"`
	MimeType     string `json:"mime_type,omitempty"`
	SizeBytes    int64  `json:"size_bytes,omitempty"`
}

// Value implements driver.Valuer storing the handle as JSONB.
func (f *FileHandle) Value() (driver.Value, error) {
	if f == nil {
		return nil, nil
	}
	return json.Marshal(f)
}

// Scan implements sql.Scanner.
func (f *FileHandle) Scan(src interface{}) error {
	raw, err := jsonBytes(src)
	if err != nil || raw == nil {
		return err
	}
	return json.Unmarshal(raw, f)
}

// FileHandles is an order-irrelevant set of attachments persisted as a JSONB array.
type FileHandles []FileHandle

// Value implements driver.Valuer.
func (f FileHandles) Value() (driver.Value, error) {
	if f == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(f)
}

// Scan implements sql.Scanner.
func (f *FileHandles) Scan(src interface{}) error {
	raw, err := jsonBytes(src)
	if err != nil {
		return err
	}
	if raw == nil {
		*f = FileHandles{}
		return nil
	}
	var decoded FileHandles
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return fmt.Errorf("decode file handles: %w", err)
	}
	*f = decoded
	return nil
}

func jsonBytes(src interface{}) ([]byte, error) {
	switch v := src.(type) {
	case nil:
		return nil, nil
	case []byte:
		return v, nil
	case string:
		return []byte(v), nil
	default:
		return nil, fmt.Errorf("unsupported json column type %T", src)
	}
}

// TrainerApplication is a candidate's request to become a trainer.
type TrainerApplication struct {
	ID                 string            `db:"id" json:"id"`
	FirstName          string            `db:"first_name" json:"first_name"`
	LastName           string            `db:"last_name" json:"last_name"`
	Email              string            `db:"email" json:"email"`
	Phone              string            `db:"phone" json:"phone"`
	CurrentPosition    string            `db:"current_position" json:"current_position"`
	Company            *string           `db:"company" json:"company,omitempty"`
	PrimaryExpertise   string            `db:"primary_expertise" json:"primary_expertise"`
	YearsExperience    ExperienceBand    `db:"years_experience" json:"years_experience"`
	SecondaryExpertise pq.StringArray    `db:"secondary_expertise" json:"secondary_expertise"`
	ProfessionalBio    string            `db:"professional_bio" json:"professional_bio"`
	TeachingExperience string            `db:"teaching_experience" json:"teaching_experience"`
	PreferredFormat    string            `db:"preferred_format" json:"preferred_format"`
	DesiredCourses     string            `db:"desired_courses" json:"desired_courses"`
	Motivation         string            `db:"motivation" json:"motivation"`
	ResumeFile         *FileHandle       `db:"resume_file" json:"resume_file,omitempty"`
	CertificationFiles FileHandles       `db:"certification_files" json:"certification_files"`
	PortfolioFiles     FileHandles       `db:"portfolio_files" json:"portfolio_files"`
	Status             ApplicationStatus `db:"status" json:"status"`
	AdminNotes         *string           `db:"admin_notes" json:"admin_notes,omitempty"`
	ReviewedBy         *string           `db:"reviewed_by" json:"reviewed_by,omitempty"`
	ReviewedAt         *time.Time        `db:"reviewed_at" json:"reviewed_at,omitempty"`
	CreatedAt          time.Time         `db:"created_at" json:"created_at"`
	UpdatedAt          time.Time         `db:"updated_at" json:"updated_at"`
}

// FullName joins the applicant's first and last name.
func (a *TrainerApplication) FullName() string {
	return strings.TrimSpace(a.FirstName + " " + a.LastName)
}

// HasAttachments reports whether any file was uploaded with the application.
func (a *TrainerApplication) HasAttachments() bool {
	return a.ResumeFile != nil || len(a.CertificationFiles) > 0 || len(a.PortfolioFiles) > 0
}

// AttachmentByPath finds a stored handle by its storage path.
func (a *TrainerApplication) AttachmentByPath(path string) (*FileHandle, bool) {
	if a.ResumeFile != nil && a.ResumeFile.Path == path {
		return a.ResumeFile, true
	}
	for _, set := range []FileHandles{a.CertificationFiles, a.PortfolioFiles} {
		for i := range set {
			if set[i].Path == path {
				return &set[i], true
			}
		}
	}
	return nil, false
}

// AllAttachments flattens every attachment reference.
func (a *TrainerApplication) AllAttachments() []FileHandle {
	files := make([]FileHandle, 0, 1+len(a.CertificationFiles)+len(a.PortfolioFiles))
	if a.ResumeFile != nil {
		files = append(files, *a.ResumeFile)
	}
	files = append(files, a.CertificationFiles...)
	files = append(files, a.PortfolioFiles...)
	return files
}

// NormalizeTags trims, de-duplicates and sorts a tag set.
func NormalizeTags(tags []string) pq.StringArray {
	seen := make(map[string]struct{}, len(tags))
	result := make(pq.StringArray, 0, len(tags))
	for _, tag := range tags {
		tag = strings.TrimSpace(tag)
		if tag == "" {
			continue
		}
		key := strings.ToLower(tag)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		result = append(result, tag)
	}
	sort.Strings(result)
	return result
}

// ApplicationFilter constrains listing queries.
type ApplicationFilter struct {
	Status   []ApplicationStatus
	Page     int
	PageSize int
}

// StatusHistoryEntry records one applied transition.
type StatusHistoryEntry struct {
	ID            string             `db:"id" json:"id"`
	ApplicationID string             `db:"application_id" json:"application_id"`
	FromStatus    *ApplicationStatus `db:"from_status" json:"from_status,omitempty"`
	ToStatus      ApplicationStatus  `db:"to_status" json:"to_status"`
	ChangedBy     *string            `db:"changed_by" json:"changed_by,omitempty"`
	Notes         *string            `db:"notes" json:"notes,omitempty"`
	ChangedAt     time.Time          `db:"changed_at" json:"changed_at"`
}

// StatusCount is one row of the per-status summary.
type StatusCount struct {
	Status ApplicationStatus `db:"status" json:"status"`
	Count  int               `db:"count" json:"count"`
}
