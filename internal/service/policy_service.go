package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"math"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gosimple/slug"
	"go.uber.org/zap"

	"github.com/xamle/civic-api/internal/models"
	appErrors "github.com/xamle/civic-api/pkg/errors"
)

// maxSlugAttempts bounds the collision probe so a pathological title cannot
// spin the loop forever.
const maxSlugAttempts = 50

type policyRepository interface {
	FindByID(ctx context.Context, id string) (*models.Policy, error)
	FindBySlug(ctx context.Context, slug string) (*models.Policy, error)
	SlugOwner(ctx context.Context, slug string) (string, error)
	List(ctx context.Context, filter models.PolicyFilter) ([]models.Policy, int, error)
	ListPublished(ctx context.Context, limit int) ([]models.Policy, error)
	Create(ctx context.Context, policy *models.Policy, reason string) error
	UpdateWithSnapshot(ctx context.Context, policy *models.Policy, changedBy string) error
	UpdateStatus(ctx context.Context, id string, from, to models.PolicyStatus, changedBy string, reason *string) error
	MarkPublished(ctx context.Context, id string, at time.Time) error
	History(ctx context.Context, policyID string) ([]models.StatusHistory, error)
	StatusCounts(ctx context.Context) (map[models.PolicyStatus]int, error)
	BudgetTotals(ctx context.Context) (allocated, spent float64, err error)
	CountPublished(ctx context.Context) (int, error)
}

type policySearchIndexer interface {
	IndexPolicies(docs []models.SearchDocument) error
}

type policyEventPublisher interface {
	PublishPolicyUpdated(ctx context.Context, event models.PolicyUpdatedEvent) error
}

type policyAuditLogger interface {
	CreateAuditLog(ctx context.Context, entry *models.AuditLog) error
}

type userCounter interface {
	Count(ctx context.Context) (int, error)
}

type approvedContributionCounter interface {
	CountApproved(ctx context.Context) (int, error)
}

// PolicyServiceConfig tunes cache TTLs for the read paths.
type PolicyServiceConfig struct {
	PolicyTTL time.Duration
	StatsTTL  time.Duration
}

// PolicyService owns creation, update, versioning, publication and status
// transitions of policies, plus the aggregate statistics over the register.
type PolicyService struct {
	repo          policyRepository
	users         userCounter
	contributions approvedContributionCounter
	audit         policyAuditLogger
	cache         *CacheService
	metrics       *MetricsService
	search        policySearchIndexer
	events        policyEventPublisher
	validator     *validator.Validate
	logger        *zap.Logger
	cfg           PolicyServiceConfig
}

// NewPolicyService constructs the service.
func NewPolicyService(
	repo policyRepository,
	users userCounter,
	contributions approvedContributionCounter,
	audit policyAuditLogger,
	cache *CacheService,
	metrics *MetricsService,
	search policySearchIndexer,
	events policyEventPublisher,
	validate *validator.Validate,
	logger *zap.Logger,
	cfg PolicyServiceConfig,
) *PolicyService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.PolicyTTL <= 0 {
		cfg.PolicyTTL = 5 * time.Minute
	}
	if cfg.StatsTTL <= 0 {
		cfg.StatsTTL = 5 * time.Minute
	}
	svc := &PolicyService{
		repo:          repo,
		users:         users,
		contributions: contributions,
		audit:         audit,
		cache:         cache,
		metrics:       metrics,
		search:        search,
		events:        events,
		validator:     validate,
		logger:        logger,
		cfg:           cfg,
	}
	svc.validator.RegisterValidation("policystatus", func(fl validator.FieldLevel) bool {
		return models.ValidPolicyStatus(models.PolicyStatus(fl.Field().String()))
	})
	svc.validator.RegisterValidation("policytheme", func(fl validator.FieldLevel) bool {
		return models.ValidPolicyTheme(models.PolicyTheme(fl.Field().String()))
	})
	return svc
}

// CreatePolicyRequest describes the create payload.
type CreatePolicyRequest struct {
	Title       string       `json:"title" validate:"required,min=5,max=300"`
	Description string       `json:"description" validate:"required,min=20,max=10000"`
	MinistryID  string       `json:"ministry_id" validate:"required"`
	Theme       string       `json:"theme" validate:"required,policytheme"`
	Status      string       `json:"status" validate:"omitempty,policystatus"`
	Budget      *float64     `json:"budget" validate:"omitempty,gte=0"`
	BudgetSpent *float64     `json:"budget_spent" validate:"omitempty,gte=0"`
	StartDate   *time.Time   `json:"start_date"`
	EndDate     *time.Time   `json:"end_date"`
	TargetKPIs  []models.KPI `json:"target_kpis" validate:"omitempty,dive"`
	Region      *string      `json:"region"`
}

// UpdatePolicyRequest describes the partial update payload. It deliberately
// carries no status field: all status transitions go through ChangeStatus.
type UpdatePolicyRequest struct {
	Title       *string      `json:"title" validate:"omitempty,min=5,max=300"`
	Description *string      `json:"description" validate:"omitempty,min=20,max=10000"`
	MinistryID  *string      `json:"ministry_id"`
	Theme       *string      `json:"theme" validate:"omitempty,policytheme"`
	Budget      *float64     `json:"budget" validate:"omitempty,gte=0"`
	BudgetSpent *float64     `json:"budget_spent" validate:"omitempty,gte=0"`
	StartDate   *time.Time   `json:"start_date"`
	EndDate     *time.Time   `json:"end_date"`
	TargetKPIs  []models.KPI `json:"target_kpis" validate:"omitempty,dive"`
	Region      *string      `json:"region"`
}

// ChangeStatusRequest describes a status transition.
type ChangeStatusRequest struct {
	Status string  `json:"status" validate:"required,policystatus"`
	Reason *string `json:"reason" validate:"omitempty,max=1000"`
}

// PolicyListRequest describes list filters.
type PolicyListRequest struct {
	Theme           string     `json:"theme"`
	Status          string     `json:"status"`
	MinistryID      string     `json:"ministry_id"`
	Region          string     `json:"region"`
	Search          string     `json:"search"`
	From            *time.Time `json:"from"`
	To              *time.Time `json:"to"`
	IncludeUnlisted bool       `json:"include_unlisted"`
	Page            int        `json:"page"`
	PageSize        int        `json:"page_size"`
}

// Create registers a new policy at version 1 with its creation history entry.
func (s *PolicyService) Create(ctx context.Context, req CreatePolicyRequest, actor *models.JWTClaims) (*models.Policy, error) {
	if err := requireRole(actor, models.RoleEditor, models.RoleAdmin, models.RoleSuperAdmin); err != nil {
		return nil, err
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid policy payload")
	}

	status := models.PolicyStatus(req.Status)
	if status == "" {
		status = models.PolicyStatusNotStarted
	}

	uniqueSlug, err := s.generateUniqueSlug(ctx, req.Title, "")
	if err != nil {
		return nil, err
	}

	policy := &models.Policy{
		Slug:           uniqueSlug,
		Title:          req.Title,
		Description:    req.Description,
		MinistryID:     req.MinistryID,
		Theme:          models.PolicyTheme(req.Theme),
		Status:         status,
		WorkflowStatus: models.WorkflowStatusDraft,
		Budget:         req.Budget,
		BudgetSpent:    req.BudgetSpent,
		StartDate:      req.StartDate,
		EndDate:        req.EndDate,
		TargetKPIs:     req.TargetKPIs,
		Region:         req.Region,
		CreatedBy:      actor.UserID,
	}

	if err := s.repo.Create(ctx, policy, "initial creation"); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create policy")
	}

	s.logger.Info("policy created", zap.String("slug", policy.Slug), zap.String("by", actor.UserID))
	return policy, nil
}

// Update applies a content patch, bumps the version and snapshots it.
func (s *PolicyService) Update(ctx context.Context, id string, req UpdatePolicyRequest, actor *models.JWTClaims) (*models.Policy, error) {
	if err := requireRole(actor, models.RoleEditor, models.RoleAdmin, models.RoleSuperAdmin); err != nil {
		return nil, err
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid policy payload")
	}

	policy, err := s.getByID(ctx, id)
	if err != nil {
		return nil, err
	}

	oldSlug := policy.Slug
	if req.Title != nil && *req.Title != policy.Title {
		newSlug, err := s.generateUniqueSlug(ctx, *req.Title, policy.ID)
		if err != nil {
			return nil, err
		}
		policy.Title = *req.Title
		policy.Slug = newSlug
	}
	if req.Description != nil {
		policy.Description = *req.Description
	}
	if req.MinistryID != nil {
		policy.MinistryID = *req.MinistryID
	}
	if req.Theme != nil {
		policy.Theme = models.PolicyTheme(*req.Theme)
	}
	if req.Budget != nil {
		policy.Budget = req.Budget
	}
	if req.BudgetSpent != nil {
		policy.BudgetSpent = req.BudgetSpent
	}
	if req.StartDate != nil {
		policy.StartDate = req.StartDate
	}
	if req.EndDate != nil {
		policy.EndDate = req.EndDate
	}
	if req.TargetKPIs != nil {
		policy.TargetKPIs = req.TargetKPIs
	}
	if req.Region != nil {
		policy.Region = req.Region
	}
	policy.Version++

	if err := s.repo.UpdateWithSnapshot(ctx, policy, actor.UserID); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update policy")
	}

	s.cache.Invalidate(ctx, CacheKeyPolicy(oldSlug), CacheKeyPolicy(policy.Slug), CacheKeyGlobalStats)
	s.syncSearch(policy)
	return policy, nil
}

// ChangeStatus records a status transition. The new status must differ from
// the current one; the content version is not bumped.
func (s *PolicyService) ChangeStatus(ctx context.Context, id string, req ChangeStatusRequest, actor *models.JWTClaims) (*models.Policy, error) {
	if err := requireRole(actor, models.RoleEditor, models.RoleAdmin, models.RoleSuperAdmin); err != nil {
		return nil, err
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid status payload")
	}

	policy, err := s.getByID(ctx, id)
	if err != nil {
		return nil, err
	}

	newStatus := models.PolicyStatus(req.Status)
	if policy.Status == newStatus {
		return nil, appErrors.Clone(appErrors.ErrInvalidState, "policy is already in this status")
	}

	oldStatus := policy.Status
	if err := s.repo.UpdateStatus(ctx, id, oldStatus, newStatus, actor.UserID, req.Reason); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to change policy status")
	}
	policy.Status = newStatus

	s.cache.Invalidate(ctx, CacheKeyPolicy(policy.Slug), CacheKeyGlobalStats)
	s.syncSearch(policy)
	s.emitPolicyUpdated(ctx, policy, actor.UserID)

	s.logger.Info("policy status changed",
		zap.String("policy_id", id),
		zap.String("from", string(oldStatus)),
		zap.String("to", string(newStatus)),
		zap.String("by", actor.UserID))
	return policy, nil
}

// Publish makes a policy publicly visible. One-way: there is no unpublish.
func (s *PolicyService) Publish(ctx context.Context, id string, actor *models.JWTClaims) (*models.Policy, error) {
	if err := requireRole(actor, models.RoleAdmin, models.RoleSuperAdmin); err != nil {
		return nil, err
	}

	policy, err := s.getByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if policy.WorkflowStatus == models.WorkflowStatusPublished {
		return nil, appErrors.Clone(appErrors.ErrInvalidState, "policy is already published")
	}

	now := time.Now().UTC()
	if err := s.repo.MarkPublished(ctx, id, now); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to publish policy")
	}
	policy.WorkflowStatus = models.WorkflowStatusPublished
	policy.PublishedAt = &now

	s.writeAudit(ctx, actor.UserID, models.AuditActionPublish, "Policy", id, map[string]string{"title": policy.Title})
	s.cache.Invalidate(ctx, CacheKeyPolicy(policy.Slug), CacheKeyGlobalStats)
	s.syncSearch(policy)
	s.emitPolicyUpdated(ctx, policy, actor.UserID)
	return policy, nil
}

// Get resolves a policy by slug or id, cache-aside on the slug key.
// Unpublished policies are only visible to staff and their creator.
func (s *PolicyService) Get(ctx context.Context, slugOrID string, actor *models.JWTClaims) (*models.Policy, error) {
	var cached models.Policy
	if s.cache.Get(ctx, CacheKeyPolicy(slugOrID), &cached) {
		if err := s.checkVisibility(&cached, actor); err != nil {
			return nil, err
		}
		return &cached, nil
	}

	policy, err := s.repo.FindBySlug(ctx, slugOrID)
	if err == sql.ErrNoRows {
		policy, err = s.repo.FindByID(ctx, slugOrID)
	}
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "policy not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load policy")
	}

	if err := s.checkVisibility(policy, actor); err != nil {
		return nil, err
	}

	s.cache.Set(ctx, CacheKeyPolicy(policy.Slug), policy, s.cfg.PolicyTTL)
	return policy, nil
}

// List returns a page of policies. Anonymous and citizen callers only ever
// see published records; list responses are not cached.
func (s *PolicyService) List(ctx context.Context, req PolicyListRequest, actor *models.JWTClaims) ([]models.Policy, *models.Pagination, error) {
	filter := models.PolicyFilter{
		Theme:      models.PolicyTheme(req.Theme),
		Status:     models.PolicyStatus(req.Status),
		MinistryID: req.MinistryID,
		Region:     req.Region,
		Search:     req.Search,
		From:       req.From,
		To:         req.To,
		Page:       req.Page,
		PageSize:   req.PageSize,
	}
	if req.IncludeUnlisted && actor != nil && isStaff(actor) {
		filter.IncludeUnlisted = true
	}
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.PageSize <= 0 || filter.PageSize > 100 {
		filter.PageSize = 20
	}

	policies, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list policies")
	}
	return policies, models.NewPagination(filter.Page, filter.PageSize, total), nil
}

// History returns the ordered status ledger for a policy, resolved by slug
// or id. The ledger follows the policy's own visibility.
func (s *PolicyService) History(ctx context.Context, slugOrID string, actor *models.JWTClaims) ([]models.StatusHistory, error) {
	policy, err := s.repo.FindBySlug(ctx, slugOrID)
	if err == sql.ErrNoRows {
		policy, err = s.repo.FindByID(ctx, slugOrID)
	}
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "policy not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load policy")
	}
	if err := s.checkVisibility(policy, actor); err != nil {
		return nil, err
	}

	rows, err := s.repo.History(ctx, policy.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load status history")
	}
	return rows, nil
}

// GlobalStats aggregates the published register, cache-aside.
func (s *PolicyService) GlobalStats(ctx context.Context) (*models.GlobalStats, error) {
	var cached models.GlobalStats
	if s.cache.Get(ctx, CacheKeyGlobalStats, &cached) {
		return &cached, nil
	}

	start := time.Now()
	defer func() {
		s.metrics.ObserveDBQuery("stats_global", time.Since(start))
	}()

	total, err := s.repo.CountPublished(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count policies")
	}
	counts, err := s.repo.StatusCounts(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to group policies")
	}
	allocated, spent, err := s.repo.BudgetTotals(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to sum budgets")
	}
	totalUsers, err := s.users.Count(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count users")
	}
	totalContributions, err := s.contributions.CountApproved(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count contributions")
	}

	stats := &models.GlobalStats{
		TotalPolicies:        total,
		CompletedPolicies:    counts[models.PolicyStatusCompleted],
		InProgressPolicies:   counts[models.PolicyStatusInProgress],
		DelayedPolicies:      counts[models.PolicyStatusDelayed],
		GlobalCompletionRate: percentage(counts[models.PolicyStatusCompleted], total),
		TotalBudgetAllocated: allocated,
		TotalBudgetSpent:     spent,
		BudgetExecutionRate:  percentageFloat(spent, allocated),
		TotalUsers:           totalUsers,
		TotalContributions:   totalContributions,
	}

	s.cache.Set(ctx, CacheKeyGlobalStats, stats, s.cfg.StatsTTL)
	return stats, nil
}

// Reindex rebuilds the search mirror from the published register.
func (s *PolicyService) Reindex(ctx context.Context, actor *models.JWTClaims) (int, error) {
	if err := requireRole(actor, models.RoleAdmin, models.RoleSuperAdmin); err != nil {
		return 0, err
	}
	policies, err := s.repo.ListPublished(ctx, 0)
	if err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load published policies")
	}
	docs := make([]models.SearchDocument, 0, len(policies))
	for i := range policies {
		docs = append(docs, toSearchDocument(&policies[i]))
	}
	if err := s.search.IndexPolicies(docs); err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to rebuild search index")
	}
	s.writeAudit(ctx, actor.UserID, models.AuditActionReindex, "Policy", "", map[string]int{"indexed": len(docs)})
	s.logger.Info("search index rebuilt", zap.Int("indexed", len(docs)))
	return len(docs), nil
}

func (s *PolicyService) getByID(ctx context.Context, id string) (*models.Policy, error) {
	policy, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "policy not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load policy")
	}
	return policy, nil
}

func (s *PolicyService) checkVisibility(policy *models.Policy, actor *models.JWTClaims) error {
	if policy.WorkflowStatus == models.WorkflowStatusPublished {
		return nil
	}
	if actor != nil && (isStaff(actor) || actor.UserID == policy.CreatedBy) {
		return nil
	}
	return appErrors.Clone(appErrors.ErrNotFound, "policy not found")
}

// generateUniqueSlug probes the store for collisions, appending -1, -2, …
// until a free slug is found. excludeID skips the record's own row on update.
func (s *PolicyService) generateUniqueSlug(ctx context.Context, title, excludeID string) (string, error) {
	base := slug.Make(title)
	if base == "" {
		return "", appErrors.Clone(appErrors.ErrValidation, "title produces an empty slug")
	}
	candidate := base
	for i := 1; i <= maxSlugAttempts; i++ {
		owner, err := s.repo.SlugOwner(ctx, candidate)
		if err != nil {
			return "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to probe slug")
		}
		if owner == "" || owner == excludeID {
			return candidate, nil
		}
		candidate = fmt.Sprintf("%s-%d", base, i)
	}
	return "", appErrors.Clone(appErrors.ErrConflict, "could not derive a unique slug from title")
}

// syncSearch pushes a best-effort write-through to the mirror for published
// policies. Failures are logged and never propagated: the store write is the
// source of truth and is already committed.
func (s *PolicyService) syncSearch(policy *models.Policy) {
	if s.search == nil || policy.WorkflowStatus != models.WorkflowStatusPublished {
		return
	}
	if err := s.search.IndexPolicies([]models.SearchDocument{toSearchDocument(policy)}); err != nil {
		s.logger.Warn("search write-through failed", zap.String("policy_id", policy.ID), zap.Error(err))
	}
}

// emitPolicyUpdated publishes the domain event fire-and-forget.
func (s *PolicyService) emitPolicyUpdated(ctx context.Context, policy *models.Policy, changedBy string) {
	if s.events == nil {
		return
	}
	event := models.PolicyUpdatedEvent{
		PolicyID:  policy.ID,
		Slug:      policy.Slug,
		Status:    policy.Status,
		ChangedBy: changedBy,
		At:        time.Now().UTC(),
	}
	if err := s.events.PublishPolicyUpdated(ctx, event); err != nil {
		s.logger.Warn("policy event publish failed", zap.String("policy_id", policy.ID), zap.Error(err))
	}
}

func (s *PolicyService) writeAudit(ctx context.Context, actorID, action, entity, entityID string, payload interface{}) {
	if s.audit == nil {
		return
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		raw = nil
	}
	entry := &models.AuditLog{
		ActorID:  actorID,
		Action:   action,
		Entity:   entity,
		EntityID: entityID,
		Payload:  raw,
	}
	if err := s.audit.CreateAuditLog(ctx, entry); err != nil {
		s.logger.Warn("audit write failed", zap.String("action", action), zap.Error(err))
	}
}

func toSearchDocument(policy *models.Policy) models.SearchDocument {
	region := ""
	if policy.Region != nil {
		region = *policy.Region
	}
	return models.SearchDocument{
		ID:             policy.ID,
		Slug:           policy.Slug,
		Title:          policy.Title,
		Description:    policy.Description,
		Theme:          policy.Theme,
		Status:         policy.Status,
		WorkflowStatus: policy.WorkflowStatus,
		MinistryID:     policy.MinistryID,
		Region:         region,
		UpdatedAt:      policy.UpdatedAt.Unix(),
	}
}

func percentage(part, total int) int {
	if total <= 0 {
		return 0
	}
	return int(math.Round(float64(part) / float64(total) * 100))
}

func percentageFloat(part, total float64) int {
	if total <= 0 {
		return 0
	}
	return int(math.Round(part / total * 100))
}
