package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/xamle/civic-api/internal/models"
	appErrors "github.com/xamle/civic-api/pkg/errors"
)

type auditRepository interface {
	List(ctx context.Context, filter models.AuditFilter) ([]models.AuditLog, int, error)
}

// AuditService exposes read access to the append-only audit trail.
type AuditService struct {
	repo   auditRepository
	logger *zap.Logger
}

// NewAuditService constructs the service.
func NewAuditService(repo auditRepository, logger *zap.Logger) *AuditService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuditService{repo: repo, logger: logger}
}

// AuditListRequest describes trail filters.
type AuditListRequest struct {
	ActorID  string
	Entity   string
	Action   string
	Page     int
	PageSize int
}

// List returns a page of the trail, newest first. Admin only.
func (s *AuditService) List(ctx context.Context, req AuditListRequest, actor *models.JWTClaims) ([]models.AuditLog, *models.Pagination, error) {
	if err := requireRole(actor, models.RoleAdmin, models.RoleSuperAdmin); err != nil {
		return nil, nil, err
	}

	filter := models.AuditFilter{
		ActorID:  req.ActorID,
		Entity:   req.Entity,
		Action:   req.Action,
		Page:     req.Page,
		PageSize: req.PageSize,
	}
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.PageSize <= 0 || filter.PageSize > 100 {
		filter.PageSize = 50
	}

	entries, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list audit entries")
	}
	return entries, models.NewPagination(filter.Page, filter.PageSize, total), nil
}
