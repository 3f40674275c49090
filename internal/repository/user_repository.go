package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/xamle/civic-api/internal/models"
)

const userColumns = `id, email, name, phone, role, level, active, deactivated_at, created_at, updated_at`

// UserRepository provides persistence for platform user profiles.
type UserRepository struct {
	db *sqlx.DB
}

// NewUserRepository creates the repository.
func NewUserRepository(db *sqlx.DB) *UserRepository {
	return &UserRepository{db: db}
}

// FindByID returns a user by identifier.
func (r *UserRepository) FindByID(ctx context.Context, id string) (*models.User, error) {
	query := fmt.Sprintf("SELECT %s FROM users WHERE id = $1", userColumns)
	var user models.User
	if err := r.db.GetContext(ctx, &user, query, id); err != nil {
		return nil, err
	}
	return &user, nil
}

// UpdateLevel persists a recomputed engagement level.
func (r *UserRepository) UpdateLevel(ctx context.Context, id string, level models.EngagementLevel) error {
	if _, err := r.db.ExecContext(ctx,
		"UPDATE users SET level = $1, updated_at = $2 WHERE id = $3",
		level, time.Now().UTC(), id); err != nil {
		return fmt.Errorf("update user level: %w", err)
	}
	return nil
}

// Deactivate marks the account inactive. Identity fields (email, phone) and
// all foreign keys stay untouched.
func (r *UserRepository) Deactivate(ctx context.Context, id string) error {
	now := time.Now().UTC()
	if _, err := r.db.ExecContext(ctx,
		"UPDATE users SET active = FALSE, deactivated_at = $1, updated_at = $1 WHERE id = $2",
		now, id); err != nil {
		return fmt.Errorf("deactivate user: %w", err)
	}
	return nil
}

// Count returns the total number of users.
func (r *UserRepository) Count(ctx context.Context) (int, error) {
	var count int
	if err := r.db.GetContext(ctx, &count, "SELECT COUNT(*) FROM users"); err != nil {
		return 0, fmt.Errorf("count users: %w", err)
	}
	return count, nil
}
