package service

import (
	"context"
	"database/sql"

	"go.uber.org/zap"

	"github.com/xamle/civic-api/internal/models"
	appErrors "github.com/xamle/civic-api/pkg/errors"
)

type userRepository interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
	Deactivate(ctx context.Context, id string) error
}

// UserService exposes profile reads and account deactivation. Identity and
// credentials live with the external provider; this side only tracks the
// platform profile.
type UserService struct {
	repo   userRepository
	audit  policyAuditLogger
	logger *zap.Logger
}

// NewUserService constructs the service.
func NewUserService(repo userRepository, audit policyAuditLogger, logger *zap.Logger) *UserService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &UserService{repo: repo, audit: audit, logger: logger}
}

// Get loads a profile. Callers may read their own profile; staff may read any.
func (s *UserService) Get(ctx context.Context, id string, actor *models.JWTClaims) (*models.User, error) {
	if actor == nil || actor.UserID == "" {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "authentication required")
	}
	if actor.UserID != id && !isStaff(actor) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "insufficient permissions")
	}

	user, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "user not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load user")
	}
	return user, nil
}

// Deactivate flags the account inactive. The profile row is kept so the
// user's contributions remain attributable; identity fields are untouched.
func (s *UserService) Deactivate(ctx context.Context, id string, actor *models.JWTClaims) error {
	if err := requireRole(actor, models.RoleAdmin, models.RoleSuperAdmin); err != nil {
		return err
	}

	user, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return appErrors.Clone(appErrors.ErrNotFound, "user not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load user")
	}
	if !user.Active {
		return appErrors.Clone(appErrors.ErrInvalidState, "user is already deactivated")
	}

	if err := s.repo.Deactivate(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to deactivate user")
	}

	if s.audit != nil {
		entry := &models.AuditLog{
			ActorID:  actor.UserID,
			Action:   models.AuditActionUserDeactivate,
			Entity:   "User",
			EntityID: id,
		}
		if err := s.audit.CreateAuditLog(ctx, entry); err != nil {
			s.logger.Warn("audit write failed", zap.String("action", models.AuditActionUserDeactivate), zap.Error(err))
		}
	}

	s.logger.Info("user deactivated", zap.String("user_id", id), zap.String("by", actor.UserID))
	return nil
}
