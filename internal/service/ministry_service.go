package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"sort"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gosimple/slug"
	"go.uber.org/zap"

	"github.com/xamle/civic-api/internal/models"
	appErrors "github.com/xamle/civic-api/pkg/errors"
)

type ministryRepository interface {
	List(ctx context.Context) ([]models.Ministry, error)
	FindByID(ctx context.Context, id string) (*models.Ministry, error)
	FindBySlug(ctx context.Context, slug string) (*models.Ministry, error)
	Create(ctx context.Context, ministry *models.Ministry) error
	Update(ctx context.Context, ministry *models.Ministry) error
	Ranking(ctx context.Context) ([]models.MinistryRanking, error)
}

type ministryPolicyLister interface {
	List(ctx context.Context, filter models.PolicyFilter) ([]models.Policy, int, error)
}

// MinistryServiceConfig tunes cache TTLs for the read paths.
type MinistryServiceConfig struct {
	ListTTL    time.Duration
	RankingTTL time.Duration
}

// MinistryService manages ministry records and the delivery ranking.
type MinistryService struct {
	repo      ministryRepository
	policies  ministryPolicyLister
	audit     policyAuditLogger
	cache     *CacheService
	metrics   *MetricsService
	validator *validator.Validate
	logger    *zap.Logger
	cfg       MinistryServiceConfig
}

// NewMinistryService constructs the service. policies may be nil, in which
// case Get returns the ministry with an empty policy list.
func NewMinistryService(repo ministryRepository, policies ministryPolicyLister, audit policyAuditLogger, cache *CacheService, metrics *MetricsService, validate *validator.Validate, logger *zap.Logger, cfg MinistryServiceConfig) *MinistryService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.ListTTL <= 0 {
		cfg.ListTTL = 10 * time.Minute
	}
	if cfg.RankingTTL <= 0 {
		cfg.RankingTTL = 5 * time.Minute
	}
	return &MinistryService{repo: repo, policies: policies, audit: audit, cache: cache, metrics: metrics, validator: validate, logger: logger, cfg: cfg}
}

// MinistryRequest describes the create and update payload.
type MinistryRequest struct {
	Name        string  `json:"name" validate:"required,min=3,max=200"`
	Logo        *string `json:"logo" validate:"omitempty,url"`
	Description *string `json:"description" validate:"omitempty,max=2000"`
	Website     *string `json:"website" validate:"omitempty,url"`
}

// List returns all ministries with their published-policy counts, cache-aside.
func (s *MinistryService) List(ctx context.Context) ([]models.Ministry, error) {
	var cached []models.Ministry
	if s.cache.Get(ctx, CacheKeyMinistries, &cached) {
		return cached, nil
	}

	ministries, err := s.repo.List(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list ministries")
	}

	s.cache.Set(ctx, CacheKeyMinistries, ministries, s.cfg.ListTTL)
	return ministries, nil
}

// Get resolves a ministry by slug or id, together with its published
// policies. A failure loading the policies does not fail the read.
func (s *MinistryService) Get(ctx context.Context, slugOrID string) (*models.MinistryDetail, error) {
	ministry, err := s.repo.FindBySlug(ctx, slugOrID)
	if err == sql.ErrNoRows {
		ministry, err = s.repo.FindByID(ctx, slugOrID)
	}
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "ministry not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load ministry")
	}

	detail := &models.MinistryDetail{Ministry: *ministry, Policies: []models.Policy{}}
	if s.policies != nil {
		policies, _, err := s.policies.List(ctx, models.PolicyFilter{MinistryID: ministry.ID, Page: 1, PageSize: 100})
		if err != nil {
			s.logger.Warn("failed to load ministry policies", zap.String("ministry_id", ministry.ID), zap.Error(err))
		} else {
			detail.Policies = policies
		}
	}
	return detail, nil
}

// Create registers a ministry.
func (s *MinistryService) Create(ctx context.Context, req MinistryRequest, actor *models.JWTClaims) (*models.Ministry, error) {
	if err := requireRole(actor, models.RoleAdmin, models.RoleSuperAdmin); err != nil {
		return nil, err
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid ministry payload")
	}

	ministrySlug := slug.Make(req.Name)
	if _, err := s.repo.FindBySlug(ctx, ministrySlug); err == nil {
		return nil, appErrors.Clone(appErrors.ErrConflict, "a ministry with this name already exists")
	} else if err != sql.ErrNoRows {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to probe ministry slug")
	}

	ministry := &models.Ministry{
		Name:        req.Name,
		Slug:        ministrySlug,
		Logo:        req.Logo,
		Description: req.Description,
		Website:     req.Website,
	}
	if err := s.repo.Create(ctx, ministry); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create ministry")
	}

	s.writeAudit(ctx, actor.UserID, models.AuditActionMinistryCreate, ministry.ID, req)
	s.cache.Invalidate(ctx, CacheKeyMinistries, CacheKeyMinistryRanking)
	return ministry, nil
}

// Update modifies a ministry. The slug follows the name.
func (s *MinistryService) Update(ctx context.Context, id string, req MinistryRequest, actor *models.JWTClaims) (*models.Ministry, error) {
	if err := requireRole(actor, models.RoleAdmin, models.RoleSuperAdmin); err != nil {
		return nil, err
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid ministry payload")
	}

	ministry, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "ministry not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load ministry")
	}

	if req.Name != ministry.Name {
		newSlug := slug.Make(req.Name)
		if owner, err := s.repo.FindBySlug(ctx, newSlug); err == nil && owner.ID != id {
			return nil, appErrors.Clone(appErrors.ErrConflict, "a ministry with this name already exists")
		} else if err != nil && err != sql.ErrNoRows {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to probe ministry slug")
		}
		ministry.Name = req.Name
		ministry.Slug = newSlug
	}
	ministry.Logo = req.Logo
	ministry.Description = req.Description
	ministry.Website = req.Website

	if err := s.repo.Update(ctx, ministry); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update ministry")
	}

	s.writeAudit(ctx, actor.UserID, models.AuditActionMinistryUpdate, id, req)
	s.cache.Invalidate(ctx, CacheKeyMinistries, CacheKeyMinistryRanking)
	return ministry, nil
}

// Ranking returns ministries ordered by delivery of their published
// policies, cache-aside. Rates are derived here, not in SQL.
func (s *MinistryService) Ranking(ctx context.Context) ([]models.MinistryRanking, error) {
	var cached []models.MinistryRanking
	if s.cache.Get(ctx, CacheKeyMinistryRanking, &cached) {
		return cached, nil
	}

	start := time.Now()
	rankings, err := s.repo.Ranking(ctx)
	s.metrics.ObserveDBQuery("ministries_ranking", time.Since(start))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to rank ministries")
	}

	for i := range rankings {
		rankings[i].CompletionRate = percentage(rankings[i].CompletedPolicies, rankings[i].TotalPolicies)
		rankings[i].BudgetExecutionRate = percentageFloat(rankings[i].TotalBudgetSpent, rankings[i].TotalBudget)
	}
	sort.SliceStable(rankings, func(i, j int) bool {
		if rankings[i].CompletionRate != rankings[j].CompletionRate {
			return rankings[i].CompletionRate > rankings[j].CompletionRate
		}
		return rankings[i].TotalPolicies > rankings[j].TotalPolicies
	})

	s.cache.Set(ctx, CacheKeyMinistryRanking, rankings, s.cfg.RankingTTL)
	return rankings, nil
}

func (s *MinistryService) writeAudit(ctx context.Context, actorID, action, entityID string, payload interface{}) {
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
		Entity:   "Ministry",
		EntityID: entityID,
		Payload:  raw,
	}
	if err := s.audit.CreateAuditLog(ctx, entry); err != nil {
		s.logger.Warn("audit write failed", zap.String("action", action), zap.Error(err))
	}
}
