package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/Rzouga01/LearnHub-sub001/internal/models"
)

// UserRepository stores the local mirror of directory identities that review applications.
type UserRepository struct {
	db *sqlx.DB
}

// NewUserRepository creates a new instance of UserRepository.
func NewUserRepository(db *sqlx.DB) *UserRepository {
	return &UserRepository{db: db}
}

// FindByID returns a user by identifier.
func (r *UserRepository) FindByID(ctx context.Context, id string) (*models.User, error) {
	const query = `SELECT id, email, full_name, role, active, created_at, updated_at FROM users WHERE id = $1 LIMIT 1`
	var user models.User
	if err := r.db.GetContext(ctx, &user, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find user by id: %w", err)
	}
	return &user, nil
}

// FindReviewer returns the public summary of a reviewer.
func (r *UserRepository) FindReviewer(ctx context.Context, id string) (*models.ReviewerSummary, error) {
	const query = `SELECT id, full_name, email, role FROM users WHERE id = $1 LIMIT 1`
	var reviewer models.ReviewerSummary
	if err := r.db.GetContext(ctx, &reviewer, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find reviewer: %w", err)
	}
	return &reviewer, nil
}

// Upsert mirrors a directory identity so it can be referenced as reviewer.
func (r *UserRepository) Upsert(ctx context.Context, user *models.User) error {
	now := time.Now().UTC()
	if user.CreatedAt.IsZero() {
		user.CreatedAt = now
	}
	user.UpdatedAt = now
	const query = `INSERT INTO users (id, email, full_name, role, active, created_at, updated_at)
VALUES (:id, :email, :full_name, :role, :active, :created_at, :updated_at)
ON CONFLICT (id) DO UPDATE SET email = EXCLUDED.email, full_name = EXCLUDED.full_name, role = EXCLUDED.role, active = EXCLUDED.active, updated_at = EXCLUDED.updated_at`
	if _, err := r.db.NamedExecContext(ctx, query, user); err != nil {
		return fmt.Errorf("upsert user: %w", err)
	}
	return nil
}
