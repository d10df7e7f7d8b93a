package models

import (
	"strings"
	"time"
)

// UserRole is the closed set of roles issued by the identity directory.
type UserRole string

const (
	RoleAdmin       UserRole = "admin"
	RoleCoordinator UserRole = "coordinator"
	RoleTrainer     UserRole = "trainer"
	RoleParticipant UserRole = "participant"
)

// ParseUserRole maps a claim value onto a known role.
func ParseUserRole(raw string) (UserRole, bool) {
	switch role := UserRole(strings.ToLower(strings.TrimSpace(raw))); role {
	case RoleAdmin, RoleCoordinator, RoleTrainer, RoleParticipant:
		return role, true
	default:
		return "", false
	}
}

// User mirrors a directory identity that may act as reviewer.
type User struct {
	ID        string    `db:"id" json:"id"`
	Email     string    `db:"email" json:"email"`
	FullName  string    `db:"full_name" json:"full_name"`
	Role      UserRole  `db:"role" json:"role"`
	Active    bool      `db:"active" json:"active"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// ReviewerSummary is the slice of a user exposed next to an application.
type ReviewerSummary struct {
	ID       string   `db:"id" json:"id"`
	FullName string   `db:"full_name" json:"full_name"`
	Email    string   `db:"email" json:"email"`
	Role     UserRole `db:"role" json:"role"`
}

// Pagination contains pagination metadata returned in list responses.
type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalCount int `json:"total_count"`
}
