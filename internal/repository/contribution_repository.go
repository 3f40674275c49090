package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/xamle/civic-api/internal/models"
)

const contributionColumns = `id, user_id, policy_id, type, content, file_path, file_size, mime_type,
region, status, reliability, moderator_id, moderator_note, reviewed_at, created_at, updated_at`

// ContributionRepository provides persistence for citizen contributions.
type ContributionRepository struct {
	db *sqlx.DB
}

// NewContributionRepository creates the repository.
func NewContributionRepository(db *sqlx.DB) *ContributionRepository {
	return &ContributionRepository{db: db}
}

// FindByID returns a contribution by identifier.
func (r *ContributionRepository) FindByID(ctx context.Context, id string) (*models.Contribution, error) {
	query := fmt.Sprintf("SELECT %s FROM contributions WHERE id = $1", contributionColumns)
	var contribution models.Contribution
	if err := r.db.GetContext(ctx, &contribution, query, id); err != nil {
		return nil, err
	}
	return &contribution, nil
}

// List returns contributions matching the filter with a total count.
func (r *ContributionRepository) List(ctx context.Context, filter models.ContributionFilter) ([]models.Contribution, int, error) {
	where := []string{"1=1"}
	args := []interface{}{}

	if filter.PolicyID != "" {
		where = append(where, fmt.Sprintf("policy_id = $%d", len(args)+1))
		args = append(args, filter.PolicyID)
	}
	if filter.UserID != "" {
		where = append(where, fmt.Sprintf("user_id = $%d", len(args)+1))
		args = append(args, filter.UserID)
	}
	if filter.Status != "" {
		where = append(where, fmt.Sprintf("status = $%d", len(args)+1))
		args = append(args, filter.Status)
	}
	whereClause := strings.Join(where, " AND ")

	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	offset := (page - 1) * size

	query := fmt.Sprintf(`SELECT %s FROM contributions WHERE %s
ORDER BY created_at DESC
LIMIT %d OFFSET %d`, contributionColumns, whereClause, size, offset)
	var contributions []models.Contribution
	if err := r.db.SelectContext(ctx, &contributions, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list contributions: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM contributions WHERE %s", whereClause)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count contributions: %w", err)
	}
	return contributions, total, nil
}

// Create inserts a new contribution at PENDING.
func (r *ContributionRepository) Create(ctx context.Context, contribution *models.Contribution) error {
	if contribution.ID == "" {
		contribution.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	contribution.Status = models.ContributionStatusPending
	contribution.CreatedAt = now
	contribution.UpdatedAt = now

	const query = `INSERT INTO contributions (id, user_id, policy_id, type, content, file_path, file_size, mime_type,
region, status, reliability, created_at, updated_at)
VALUES (:id, :user_id, :policy_id, :type, :content, :file_path, :file_size, :mime_type,
:region, :status, :reliability, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, contribution); err != nil {
		return fmt.Errorf("create contribution: %w", err)
	}
	return nil
}

// Moderate stamps the moderation decision on a contribution.
func (r *ContributionRepository) Moderate(ctx context.Context, contribution *models.Contribution) error {
	contribution.UpdatedAt = time.Now().UTC()
	const query = `UPDATE contributions SET status = :status, moderator_id = :moderator_id,
moderator_note = :moderator_note, reliability = :reliability, reviewed_at = :reviewed_at, updated_at = :updated_at
WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, contribution); err != nil {
		return fmt.Errorf("moderate contribution: %w", err)
	}
	return nil
}

// CountApprovedByUser counts a user's lifetime approved contributions.
func (r *ContributionRepository) CountApprovedByUser(ctx context.Context, userID string) (int, error) {
	var count int
	if err := r.db.GetContext(ctx, &count,
		"SELECT COUNT(*) FROM contributions WHERE user_id = $1 AND status = $2",
		userID, models.ContributionStatusApproved); err != nil {
		return 0, fmt.Errorf("count approved contributions: %w", err)
	}
	return count, nil
}

// CountApproved counts all approved contributions (global stats).
func (r *ContributionRepository) CountApproved(ctx context.Context) (int, error) {
	var count int
	if err := r.db.GetContext(ctx, &count,
		"SELECT COUNT(*) FROM contributions WHERE status = $1",
		models.ContributionStatusApproved); err != nil {
		return 0, fmt.Errorf("count approved contributions: %w", err)
	}
	return count, nil
}
