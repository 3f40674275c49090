package service

import (
	"github.com/xamle/civic-api/internal/models"
	appErrors "github.com/xamle/civic-api/pkg/errors"
)

// staffRoles can see unpublished policies.
var staffRoles = []models.UserRole{
	models.RoleEditor,
	models.RoleModerator,
	models.RoleAdmin,
	models.RoleSuperAdmin,
}

// requireRole gates an operation on the identity context. The claims are
// trusted as supplied by the external auth layer; this is a plain role check,
// not a credential validation.
func requireRole(actor *models.JWTClaims, roles ...models.UserRole) error {
	if actor == nil || actor.UserID == "" {
		return appErrors.ErrUnauthorized
	}
	if !actor.HasRole(roles...) {
		return appErrors.ErrForbidden
	}
	return nil
}

func isStaff(actor *models.JWTClaims) bool {
	return actor.HasRole(staffRoles...)
}
