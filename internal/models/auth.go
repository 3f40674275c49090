package models

import "github.com/golang-jwt/jwt/v5"

// JWTClaims is the identity context attached to each request. Tokens are
// issued by the external auth service; this API only verifies them.
type JWTClaims struct {
	UserID string   `json:"user_id"`
	Role   UserRole `json:"role"`
	Email  string   `json:"email"`
	jwt.RegisteredClaims
}

// HasRole reports whether the claim carries one of the given roles.
func (c *JWTClaims) HasRole(roles ...UserRole) bool {
	if c == nil {
		return false
	}
	for _, role := range roles {
		if c.Role == role {
			return true
		}
	}
	return false
}
