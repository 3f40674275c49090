package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/xamle/civic-api/internal/models"
	appErrors "github.com/xamle/civic-api/pkg/errors"
	"github.com/xamle/civic-api/pkg/storage"
)

type contributionRepository interface {
	FindByID(ctx context.Context, id string) (*models.Contribution, error)
	List(ctx context.Context, filter models.ContributionFilter) ([]models.Contribution, int, error)
	Create(ctx context.Context, contribution *models.Contribution) error
	Moderate(ctx context.Context, contribution *models.Contribution) error
	CountApprovedByUser(ctx context.Context, userID string) (int, error)
}

type contributionUserStore interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
	UpdateLevel(ctx context.Context, id string, level models.EngagementLevel) error
}

type policyFinder interface {
	FindByID(ctx context.Context, id string) (*models.Policy, error)
}

type fileStore interface {
	Upload(ctx context.Context, data []byte, originalName, mimeType string) (*storage.UploadResult, error)
	Remove(ctx context.Context, bucket, key string) error
}

type contributionEventPublisher interface {
	PublishContributionCreated(ctx context.Context, event models.ContributionCreatedEvent) error
}

// ContributionService handles citizen submissions and their moderation.
type ContributionService struct {
	repo        contributionRepository
	users       contributionUserStore
	policies    policyFinder
	files       fileStore
	audit       policyAuditLogger
	events      contributionEventPublisher
	validator   *validator.Validate
	logger      *zap.Logger
	maxFileSize int64
}

// NewContributionService constructs the service.
func NewContributionService(
	repo contributionRepository,
	users contributionUserStore,
	policies policyFinder,
	files fileStore,
	audit policyAuditLogger,
	events contributionEventPublisher,
	validate *validator.Validate,
	logger *zap.Logger,
	maxFileSize int64,
) *ContributionService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if maxFileSize <= 0 {
		maxFileSize = 10 << 20
	}
	svc := &ContributionService{
		repo:        repo,
		users:       users,
		policies:    policies,
		files:       files,
		audit:       audit,
		events:      events,
		validator:   validate,
		logger:      logger,
		maxFileSize: maxFileSize,
	}
	svc.validator.RegisterValidation("contributiontype", func(fl validator.FieldLevel) bool {
		return models.ValidContributionType(models.ContributionType(fl.Field().String()))
	})
	return svc
}

// ContributionFile carries an optional file attachment.
type ContributionFile struct {
	Name     string
	MimeType string
	Data     []byte
}

// CreateContributionRequest describes the submission payload.
type CreateContributionRequest struct {
	PolicyID string  `json:"policy_id" validate:"required"`
	Type     string  `json:"type" validate:"required,contributiontype"`
	Content  string  `json:"content" validate:"required,min=10,max=5000"`
	Region   *string `json:"region"`
	File     *ContributionFile
}

// ModerateContributionRequest describes the moderation decision.
type ModerateContributionRequest struct {
	Approve       bool    `json:"approve"`
	ModeratorNote *string `json:"moderator_note" validate:"omitempty,max=1000"`
	Reliability   *int    `json:"reliability" validate:"omitempty,gte=0,lte=100"`
}

// ContributionListRequest describes list filters.
type ContributionListRequest struct {
	PolicyID string
	UserID   string
	Status   string
	Page     int
	PageSize int
}

// Create validates and stores a submission in PENDING state. File validation
// happens before any byte is uploaded.
func (s *ContributionService) Create(ctx context.Context, req CreateContributionRequest, actor *models.JWTClaims) (*models.Contribution, error) {
	if actor == nil || actor.UserID == "" {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "authentication required")
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid contribution payload")
	}

	if _, err := s.policies.FindByID(ctx, req.PolicyID); err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "policy not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load policy")
	}

	contribution := &models.Contribution{
		UserID:   actor.UserID,
		PolicyID: req.PolicyID,
		Type:     models.ContributionType(req.Type),
		Content:  req.Content,
		Region:   req.Region,
		Status:   models.ContributionStatusPending,
	}

	var uploaded *storage.UploadResult
	if req.File != nil {
		if int64(len(req.File.Data)) > s.maxFileSize {
			return nil, appErrors.Clone(appErrors.ErrValidation, "file exceeds the maximum allowed size")
		}
		if !storage.ValidMimeType(req.File.MimeType) {
			return nil, appErrors.Clone(appErrors.ErrValidation, "file type is not allowed")
		}
		result, err := s.files.Upload(ctx, req.File.Data, req.File.Name, req.File.MimeType)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store file")
		}
		uploaded = result
		size := int64(len(req.File.Data))
		mime := req.File.MimeType
		contribution.FilePath = &result.URL
		contribution.FileSize = &size
		contribution.MimeType = &mime
	}

	if err := s.repo.Create(ctx, contribution); err != nil {
		if uploaded != nil {
			if rmErr := s.files.Remove(ctx, uploaded.Bucket, uploaded.Key); rmErr != nil {
				s.logger.Warn("orphaned upload cleanup failed",
					zap.String("bucket", uploaded.Bucket),
					zap.String("key", uploaded.Key),
					zap.Error(rmErr))
			}
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create contribution")
	}

	s.emitContributionCreated(ctx, contribution)
	s.logger.Info("contribution created",
		zap.String("contribution_id", contribution.ID),
		zap.String("policy_id", contribution.PolicyID),
		zap.String("user_id", contribution.UserID))
	return contribution, nil
}

// Moderate applies a single-shot decision to a pending contribution. Once a
// contribution leaves PENDING its decision is final.
func (s *ContributionService) Moderate(ctx context.Context, id string, req ModerateContributionRequest, actor *models.JWTClaims) (*models.Contribution, error) {
	if err := requireRole(actor, models.RoleModerator, models.RoleAdmin, models.RoleSuperAdmin); err != nil {
		return nil, err
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid moderation payload")
	}

	contribution, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "contribution not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load contribution")
	}
	if contribution.Status != models.ContributionStatusPending {
		return nil, appErrors.Clone(appErrors.ErrInvalidState, "contribution has already been moderated")
	}

	now := time.Now().UTC()
	if req.Approve {
		contribution.Status = models.ContributionStatusApproved
	} else {
		contribution.Status = models.ContributionStatusRejected
	}
	contribution.ModeratorID = &actor.UserID
	contribution.ModeratorNote = req.ModeratorNote
	contribution.ReviewedAt = &now
	if req.Reliability != nil {
		contribution.Reliability = *req.Reliability
	}

	if err := s.repo.Moderate(ctx, contribution); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to moderate contribution")
	}

	action := models.AuditActionRejectContribution
	if req.Approve {
		action = models.AuditActionApproveContribution
		s.recomputeLevel(ctx, contribution.UserID)
	}
	s.writeAudit(ctx, actor.UserID, action, "Contribution", id, map[string]*string{"note": req.ModeratorNote})

	s.logger.Info("contribution moderated",
		zap.String("contribution_id", id),
		zap.String("status", string(contribution.Status)),
		zap.String("moderator_id", actor.UserID))
	return contribution, nil
}

// Get loads a single contribution. Pending and rejected records are only
// visible to staff and their author.
func (s *ContributionService) Get(ctx context.Context, id string, actor *models.JWTClaims) (*models.Contribution, error) {
	contribution, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "contribution not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load contribution")
	}
	if contribution.Status != models.ContributionStatusApproved {
		if actor == nil || (!isStaff(actor) && actor.UserID != contribution.UserID) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "contribution not found")
		}
	}
	return contribution, nil
}

// List returns a page of contributions. Non-staff callers only see approved
// records unless they filter on their own submissions.
func (s *ContributionService) List(ctx context.Context, req ContributionListRequest, actor *models.JWTClaims) ([]models.Contribution, *models.Pagination, error) {
	filter := models.ContributionFilter{
		PolicyID: req.PolicyID,
		UserID:   req.UserID,
		Status:   models.ContributionStatus(req.Status),
		Page:     req.Page,
		PageSize: req.PageSize,
	}
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.PageSize <= 0 || filter.PageSize > 100 {
		filter.PageSize = 20
	}

	ownOnly := actor != nil && filter.UserID == actor.UserID && filter.UserID != ""
	if (actor == nil || !isStaff(actor)) && !ownOnly {
		filter.Status = models.ContributionStatusApproved
	}

	contributions, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list contributions")
	}
	return contributions, models.NewPagination(filter.Page, filter.PageSize, total), nil
}

// recomputeLevel re-derives the author's engagement tier from their lifetime
// approved count. Failures are logged; the moderation decision stands.
func (s *ContributionService) recomputeLevel(ctx context.Context, userID string) {
	count, err := s.repo.CountApprovedByUser(ctx, userID)
	if err != nil {
		s.logger.Warn("engagement recount failed", zap.String("user_id", userID), zap.Error(err))
		return
	}
	level := models.EngagementLevelFor(count)
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		s.logger.Warn("engagement lookup failed", zap.String("user_id", userID), zap.Error(err))
		return
	}
	if user.Level == level {
		return
	}
	if err := s.users.UpdateLevel(ctx, userID, level); err != nil {
		s.logger.Warn("engagement update failed", zap.String("user_id", userID), zap.Error(err))
		return
	}
	s.logger.Info("engagement level updated",
		zap.String("user_id", userID),
		zap.String("level", string(level)),
		zap.Int("approved", count))
}

func (s *ContributionService) emitContributionCreated(ctx context.Context, contribution *models.Contribution) {
	if s.events == nil {
		return
	}
	event := models.ContributionCreatedEvent{
		ContributionID: contribution.ID,
		PolicyID:       contribution.PolicyID,
		UserID:         contribution.UserID,
		Type:           contribution.Type,
		At:             time.Now().UTC(),
	}
	if err := s.events.PublishContributionCreated(ctx, event); err != nil {
		s.logger.Warn("contribution event publish failed", zap.String("contribution_id", contribution.ID), zap.Error(err))
	}
}

func (s *ContributionService) writeAudit(ctx context.Context, actorID, action, entity, entityID string, payload interface{}) {
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
