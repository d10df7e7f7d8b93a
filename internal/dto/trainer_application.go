package dto

import (
	"time"

	"github.com/Rzouga01/LearnHub-sub001/internal/models"
)

// SubmitApplicationRequest is the public application form. Field order is the
// order in which violations are reported.
type SubmitApplicationRequest struct {
	FirstName          string   `form:"first_name" json:"first_name" validate:"required"`
	LastName           string   `form:"last_name" json:"last_name" validate:"required"`
	Email              string   `form:"email" json:"email" validate:"required,email"`
	Phone              string   `form:"phone" json:"phone" validate:"required"`
	CurrentPosition    string   `form:"current_position" json:"current_position" validate:"required"`
	Company            *string  `form:"company" json:"company"`
	PrimaryExpertise   string   `form:"primary_expertise" json:"primary_expertise" validate:"required"`
	YearsExperience    string   `form:"years_experience" json:"years_experience" validate:"required,oneof=0-2 2-5 5-10 10+"`
	SecondaryExpertise []string `form:"secondary_expertise" json:"secondary_expertise" validate:"omitempty,dive,required"`
	ProfessionalBio    string   `form:"professional_bio" json:"professional_bio" validate:"required"`
	TeachingExperience string   `form:"teaching_experience" json:"teaching_experience" validate:"required"`
	PreferredFormat    string   `form:"preferred_format" json:"preferred_format" validate:"required"`
	DesiredCourses     string   `form:"desired_courses" json:"desired_courses" validate:"required"`
	Motivation         string   `form:"motivation" json:"motivation" validate:"required"`
}

// SubmitApplicationResponse acknowledges a stored application.
type SubmitApplicationResponse struct {
	ID     string                   `json:"id"`
	Status models.ApplicationStatus `json:"status"`
}

// UpdateStatusRequest asks for a lifecycle transition.
type UpdateStatusRequest struct {
	Status string  `json:"status" binding:"required"`
	Notes  *string `json:"notes"`
}

// ApplicationQuery mirrors the supported listing filters.
type ApplicationQuery struct {
	Status   []models.ApplicationStatus
	Page     int
	PageSize int
}

// AttachmentLink exposes a stored file through an expiring signed URL.
type AttachmentLink struct {
	Kind         string    `json:"kind"`
	OriginalName string    `json:"original_name"`
	MimeType     string    `json:"mime_type,omitempty"`
	SizeBytes    int64     `json:"size_bytes,omitempty"`
	DownloadURL  string    `json:"download_url"`
	ExpiresAt    time.Time `json:"expires_at"`
}

// ApplicationDetailResponse is the staff view of a single application.
type ApplicationDetailResponse struct {
	*models.TrainerApplication
	Reviewer    *models.ReviewerSummary `json:"reviewer,omitempty"`
	Attachments []AttachmentLink        `json:"attachments"`
}

// ApplicationSummaryResponse reports how many applications sit in each status.
type ApplicationSummaryResponse struct {
	Counts      map[models.ApplicationStatus]int `json:"counts"`
	Total       int                              `json:"total"`
	GeneratedAt time.Time                        `json:"generated_at"`
	Cached      bool                             `json:"-"`
}
