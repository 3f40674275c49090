package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/xamle/civic-api/internal/models"
)

// MinistryRepository provides persistence for ministries and their
// per-ministry policy aggregates.
type MinistryRepository struct {
	db *sqlx.DB
}

// NewMinistryRepository creates the repository.
func NewMinistryRepository(db *sqlx.DB) *MinistryRepository {
	return &MinistryRepository{db: db}
}

// List returns all ministries with their published-policy counts.
func (r *MinistryRepository) List(ctx context.Context) ([]models.Ministry, error) {
	const query = `SELECT m.id, m.name, m.slug, m.logo, m.description, m.website,
COUNT(p.id) FILTER (WHERE p.workflow_status = 'PUBLISHED') AS policy_count,
m.created_at, m.updated_at
FROM ministries m
LEFT JOIN policies p ON p.ministry_id = m.id
GROUP BY m.id
ORDER BY m.name ASC`
	var ministries []models.Ministry
	if err := r.db.SelectContext(ctx, &ministries, query); err != nil {
		return nil, fmt.Errorf("list ministries: %w", err)
	}
	return ministries, nil
}

// FindByID returns a ministry by identifier.
func (r *MinistryRepository) FindByID(ctx context.Context, id string) (*models.Ministry, error) {
	const query = `SELECT id, name, slug, logo, description, website, 0 AS policy_count, created_at, updated_at
FROM ministries WHERE id = $1`
	var ministry models.Ministry
	if err := r.db.GetContext(ctx, &ministry, query, id); err != nil {
		return nil, err
	}
	return &ministry, nil
}

// FindBySlug returns a ministry by slug.
func (r *MinistryRepository) FindBySlug(ctx context.Context, slug string) (*models.Ministry, error) {
	const query = `SELECT id, name, slug, logo, description, website, 0 AS policy_count, created_at, updated_at
FROM ministries WHERE slug = $1`
	var ministry models.Ministry
	if err := r.db.GetContext(ctx, &ministry, query, slug); err != nil {
		return nil, err
	}
	return &ministry, nil
}

// Create inserts a new ministry.
func (r *MinistryRepository) Create(ctx context.Context, ministry *models.Ministry) error {
	if ministry.ID == "" {
		ministry.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	ministry.CreatedAt = now
	ministry.UpdatedAt = now
	const query = `INSERT INTO ministries (id, name, slug, logo, description, website, created_at, updated_at)
VALUES (:id, :name, :slug, :logo, :description, :website, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, ministry); err != nil {
		return fmt.Errorf("create ministry: %w", err)
	}
	return nil
}

// Update modifies an existing ministry.
func (r *MinistryRepository) Update(ctx context.Context, ministry *models.Ministry) error {
	ministry.UpdatedAt = time.Now().UTC()
	const query = `UPDATE ministries SET name = :name, slug = :slug, logo = :logo,
description = :description, website = :website, updated_at = :updated_at
WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, ministry); err != nil {
		return fmt.Errorf("update ministry: %w", err)
	}
	return nil
}

// Ranking aggregates published-policy delivery per ministry. Rates are
// computed by the service so the zero-division rules live in one place.
func (r *MinistryRepository) Ranking(ctx context.Context) ([]models.MinistryRanking, error) {
	const query = `SELECT m.id AS ministry_id, m.name, m.slug,
COUNT(p.id) AS total_policies,
COUNT(p.id) FILTER (WHERE p.status = 'COMPLETED') AS completed_policies,
COUNT(p.id) FILTER (WHERE p.status = 'IN_PROGRESS') AS in_progress_policies,
COUNT(p.id) FILTER (WHERE p.status = 'DELAYED') AS delayed_policies,
COALESCE(SUM(p.budget), 0) AS total_budget,
COALESCE(SUM(p.budget_spent), 0) AS total_budget_spent
FROM ministries m
LEFT JOIN policies p ON p.ministry_id = m.id AND p.workflow_status = 'PUBLISHED'
GROUP BY m.id
ORDER BY m.name ASC`
	var rows []models.MinistryRanking
	if err := r.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, fmt.Errorf("rank ministries: %w", err)
	}
	return rows, nil
}
