package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/xamle/civic-api/internal/models"
)

const policyColumns = `id, slug, title, description, ministry_id, theme, status, workflow_status,
budget, budget_spent, start_date, end_date, target_kpis, region, version, created_by,
published_at, created_at, updated_at`

// PolicyRepository provides persistence for policies, their status history
// and version snapshots. Multi-row writes for one logical operation share a
// single transaction.
type PolicyRepository struct {
	db *sqlx.DB
}

// NewPolicyRepository creates the repository.
func NewPolicyRepository(db *sqlx.DB) *PolicyRepository {
	return &PolicyRepository{db: db}
}

// FindByID returns a policy by identifier.
func (r *PolicyRepository) FindByID(ctx context.Context, id string) (*models.Policy, error) {
	query := fmt.Sprintf("SELECT %s FROM policies WHERE id = $1", policyColumns)
	var policy models.Policy
	if err := r.db.GetContext(ctx, &policy, query, id); err != nil {
		return nil, err
	}
	return &policy, nil
}

// FindBySlug returns a policy by slug.
func (r *PolicyRepository) FindBySlug(ctx context.Context, slug string) (*models.Policy, error) {
	query := fmt.Sprintf("SELECT %s FROM policies WHERE slug = $1", policyColumns)
	var policy models.Policy
	if err := r.db.GetContext(ctx, &policy, query, slug); err != nil {
		return nil, err
	}
	return &policy, nil
}

// SlugOwner returns the id of the policy holding the slug, or "" when free.
func (r *PolicyRepository) SlugOwner(ctx context.Context, slug string) (string, error) {
	var id string
	err := r.db.GetContext(ctx, &id, "SELECT id FROM policies WHERE slug = $1", slug)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("lookup slug %s: %w", slug, err)
	}
	return id, nil
}

// List returns policies matching the filter with a total count.
func (r *PolicyRepository) List(ctx context.Context, filter models.PolicyFilter) ([]models.Policy, int, error) {
	where := []string{"1=1"}
	args := []interface{}{}

	if !filter.IncludeUnlisted {
		where = append(where, fmt.Sprintf("workflow_status = $%d", len(args)+1))
		args = append(args, models.WorkflowStatusPublished)
	}
	if filter.Theme != "" {
		where = append(where, fmt.Sprintf("theme = $%d", len(args)+1))
		args = append(args, filter.Theme)
	}
	if filter.Status != "" {
		where = append(where, fmt.Sprintf("status = $%d", len(args)+1))
		args = append(args, filter.Status)
	}
	if filter.MinistryID != "" {
		where = append(where, fmt.Sprintf("ministry_id = $%d", len(args)+1))
		args = append(args, filter.MinistryID)
	}
	if filter.Region != "" {
		where = append(where, fmt.Sprintf("region = $%d", len(args)+1))
		args = append(args, filter.Region)
	}
	if filter.Search != "" {
		where = append(where, fmt.Sprintf("(title ILIKE $%d OR description ILIKE $%d)", len(args)+1, len(args)+1))
		args = append(args, "%"+filter.Search+"%")
	}
	if filter.From != nil {
		where = append(where, fmt.Sprintf("created_at >= $%d", len(args)+1))
		args = append(args, *filter.From)
	}
	if filter.To != nil {
		where = append(where, fmt.Sprintf("created_at <= $%d", len(args)+1))
		args = append(args, *filter.To)
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

	query := fmt.Sprintf(`SELECT %s FROM policies WHERE %s
ORDER BY updated_at DESC
LIMIT %d OFFSET %d`, policyColumns, whereClause, size, offset)
	var policies []models.Policy
	if err := r.db.SelectContext(ctx, &policies, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list policies: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM policies WHERE %s", whereClause)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count policies: %w", err)
	}
	return policies, total, nil
}

// ListPublished returns up to limit published policies, newest first.
// Used by the search reindex and the register export.
func (r *PolicyRepository) ListPublished(ctx context.Context, limit int) ([]models.Policy, error) {
	if limit <= 0 {
		limit = 1000
	}
	query := fmt.Sprintf(`SELECT %s FROM policies WHERE workflow_status = $1
ORDER BY updated_at DESC LIMIT %d`, policyColumns, limit)
	var policies []models.Policy
	if err := r.db.SelectContext(ctx, &policies, query, models.WorkflowStatusPublished); err != nil {
		return nil, fmt.Errorf("list published policies: %w", err)
	}
	return policies, nil
}

// SearchFallback scans published policies for a substring match on title or
// description. It backs the degraded search path when the mirror is down.
func (r *PolicyRepository) SearchFallback(ctx context.Context, query string, limit int) ([]models.Policy, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	q := fmt.Sprintf(`SELECT %s FROM policies
WHERE workflow_status = $1 AND (title ILIKE $2 OR description ILIKE $2)
ORDER BY updated_at DESC LIMIT %d`, policyColumns, limit)
	var policies []models.Policy
	if err := r.db.SelectContext(ctx, &policies, q, models.WorkflowStatusPublished, "%"+query+"%"); err != nil {
		return nil, fmt.Errorf("search fallback: %w", err)
	}
	return policies, nil
}

// Create inserts the policy together with its creation history entry and the
// version-1 snapshot in one transaction.
func (r *PolicyRepository) Create(ctx context.Context, policy *models.Policy, reason string) error {
	if policy.ID == "" {
		policy.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	policy.Version = 1
	policy.CreatedAt = now
	policy.UpdatedAt = now

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin create policy: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	const insert = `INSERT INTO policies (id, slug, title, description, ministry_id, theme, status, workflow_status,
budget, budget_spent, start_date, end_date, target_kpis, region, version, created_by, published_at, created_at, updated_at)
VALUES (:id, :slug, :title, :description, :ministry_id, :theme, :status, :workflow_status,
:budget, :budget_spent, :start_date, :end_date, :target_kpis, :region, :version, :created_by, :published_at, :created_at, :updated_at)`
	if _, err := tx.NamedExecContext(ctx, insert, policy); err != nil {
		return fmt.Errorf("insert policy: %w", err)
	}

	if err := insertStatusHistory(ctx, tx, &models.StatusHistory{
		PolicyID:   policy.ID,
		FromStatus: nil,
		ToStatus:   policy.Status,
		ChangedBy:  policy.CreatedBy,
		Reason:     &reason,
	}); err != nil {
		return err
	}

	if err := upsertSnapshot(ctx, tx, policy, policy.CreatedBy); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit create policy: %w", err)
	}
	return nil
}

// UpdateWithSnapshot persists the already-patched policy at its incremented
// version and upserts the matching snapshot, both in one transaction.
func (r *PolicyRepository) UpdateWithSnapshot(ctx context.Context, policy *models.Policy, changedBy string) error {
	policy.UpdatedAt = time.Now().UTC()

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin update policy: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	const update = `UPDATE policies SET slug = :slug, title = :title, description = :description,
ministry_id = :ministry_id, theme = :theme, budget = :budget, budget_spent = :budget_spent,
start_date = :start_date, end_date = :end_date, target_kpis = :target_kpis, region = :region,
version = :version, updated_at = :updated_at
WHERE id = :id`
	if _, err := tx.NamedExecContext(ctx, update, policy); err != nil {
		return fmt.Errorf("update policy: %w", err)
	}

	if err := upsertSnapshot(ctx, tx, policy, changedBy); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit update policy: %w", err)
	}
	return nil
}

// UpdateStatus changes the execution status and appends the history entry in
// one transaction. The content version is deliberately left untouched.
func (r *PolicyRepository) UpdateStatus(ctx context.Context, id string, from, to models.PolicyStatus, changedBy string, reason *string) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin status change: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx,
		"UPDATE policies SET status = $1, updated_at = $2 WHERE id = $3",
		to, time.Now().UTC(), id); err != nil {
		return fmt.Errorf("update policy status: %w", err)
	}

	if err := insertStatusHistory(ctx, tx, &models.StatusHistory{
		PolicyID:   id,
		FromStatus: &from,
		ToStatus:   to,
		ChangedBy:  changedBy,
		Reason:     reason,
	}); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit status change: %w", err)
	}
	return nil
}

// MarkPublished flips the workflow status to PUBLISHED and stamps the time.
func (r *PolicyRepository) MarkPublished(ctx context.Context, id string, at time.Time) error {
	if _, err := r.db.ExecContext(ctx,
		"UPDATE policies SET workflow_status = $1, published_at = $2, updated_at = $2 WHERE id = $3",
		models.WorkflowStatusPublished, at, id); err != nil {
		return fmt.Errorf("mark policy published: %w", err)
	}
	return nil
}

// History returns the status ledger for a policy, oldest first.
func (r *PolicyRepository) History(ctx context.Context, policyID string) ([]models.StatusHistory, error) {
	const query = `SELECT id, policy_id, from_status, to_status, changed_by, reason, created_at
FROM status_history WHERE policy_id = $1 ORDER BY created_at ASC`
	var rows []models.StatusHistory
	if err := r.db.SelectContext(ctx, &rows, query, policyID); err != nil {
		return nil, fmt.Errorf("list status history: %w", err)
	}
	return rows, nil
}

// StatusCounts groups published policies by execution status.
func (r *PolicyRepository) StatusCounts(ctx context.Context) (map[models.PolicyStatus]int, error) {
	rows, err := r.db.QueryxContext(ctx,
		"SELECT status, COUNT(*) FROM policies WHERE workflow_status = $1 GROUP BY status",
		models.WorkflowStatusPublished)
	if err != nil {
		return nil, fmt.Errorf("group policies by status: %w", err)
	}
	defer rows.Close() //nolint:errcheck

	counts := make(map[models.PolicyStatus]int)
	for rows.Next() {
		var status models.PolicyStatus
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, fmt.Errorf("scan status count: %w", err)
		}
		counts[status] = count
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate status counts: %w", err)
	}
	return counts, nil
}

// BudgetTotals sums allocated and spent budgets across published policies.
func (r *PolicyRepository) BudgetTotals(ctx context.Context) (allocated, spent float64, err error) {
	row := r.db.QueryRowxContext(ctx,
		"SELECT COALESCE(SUM(budget), 0), COALESCE(SUM(budget_spent), 0) FROM policies WHERE workflow_status = $1",
		models.WorkflowStatusPublished)
	if err := row.Scan(&allocated, &spent); err != nil {
		return 0, 0, fmt.Errorf("sum policy budgets: %w", err)
	}
	return allocated, spent, nil
}

// CountPublished counts policies visible to the public.
func (r *PolicyRepository) CountPublished(ctx context.Context) (int, error) {
	var total int
	if err := r.db.GetContext(ctx, &total,
		"SELECT COUNT(*) FROM policies WHERE workflow_status = $1",
		models.WorkflowStatusPublished); err != nil {
		return 0, fmt.Errorf("count published policies: %w", err)
	}
	return total, nil
}

func insertStatusHistory(ctx context.Context, tx *sqlx.Tx, entry *models.StatusHistory) error {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO status_history (id, policy_id, from_status, to_status, changed_by, reason, created_at)
VALUES (:id, :policy_id, :from_status, :to_status, :changed_by, :reason, :created_at)`
	if _, err := tx.NamedExecContext(ctx, query, entry); err != nil {
		return fmt.Errorf("insert status history: %w", err)
	}
	return nil
}

func upsertSnapshot(ctx context.Context, tx *sqlx.Tx, policy *models.Policy, changedBy string) error {
	snapshot, err := json.Marshal(policy)
	if err != nil {
		return fmt.Errorf("marshal policy snapshot: %w", err)
	}
	const query = `INSERT INTO policy_versions (policy_id, version, snapshot, changed_by, created_at)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (policy_id, version) DO UPDATE SET snapshot = EXCLUDED.snapshot`
	if _, err := tx.ExecContext(ctx, query, policy.ID, policy.Version, snapshot, changedBy, time.Now().UTC()); err != nil {
		return fmt.Errorf("upsert policy version: %w", err)
	}
	return nil
}
