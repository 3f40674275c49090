package models

import "time"

// UserRole is the role claim supplied by the external identity provider.
type UserRole string

const (
	RoleSuperAdmin  UserRole = "SUPER_ADMIN"
	RoleAdmin       UserRole = "ADMIN"
	RoleModerator   UserRole = "MODERATOR"
	RoleEditor      UserRole = "EDITOR"
	RoleContributor UserRole = "CONTRIBUTOR"
	RoleVisitor     UserRole = "VISITOR"
)

// EngagementLevel is a derived tier computed from lifetime approved
// contributions.
type EngagementLevel string

const (
	LevelObserver    EngagementLevel = "OBSERVER"
	LevelContributor EngagementLevel = "CONTRIBUTOR"
	LevelExpert      EngagementLevel = "EXPERT"
	LevelAmbassador  EngagementLevel = "AMBASSADOR"
)

// EngagementLevelFor maps an approved-contribution count to a tier.
func EngagementLevelFor(approvedCount int) EngagementLevel {
	switch {
	case approvedCount >= 50:
		return LevelAmbassador
	case approvedCount >= 20:
		return LevelExpert
	case approvedCount >= 5:
		return LevelContributor
	default:
		return LevelObserver
	}
}

// User holds the platform-side profile. Credentials live with the external
// identity provider and are never stored here.
type User struct {
	ID            string          `db:"id" json:"id"`
	Email         string          `db:"email" json:"email"`
	Name          string          `db:"name" json:"name"`
	Phone         *string         `db:"phone" json:"phone,omitempty"`
	Role          UserRole        `db:"role" json:"role"`
	Level         EngagementLevel `db:"level" json:"level"`
	Active        bool            `db:"active" json:"active"`
	DeactivatedAt *time.Time      `db:"deactivated_at" json:"deactivated_at,omitempty"`
	CreatedAt     time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time       `db:"updated_at" json:"updated_at"`
}

// Pagination contains pagination metadata returned in list responses.
type Pagination struct {
	Page       int  `json:"page"`
	PageSize   int  `json:"page_size"`
	TotalCount int  `json:"total_count"`
	TotalPages int  `json:"total_pages"`
	HasNext    bool `json:"has_next"`
	HasPrev    bool `json:"has_prev"`
}

// NewPagination fills the derived fields from page, size and total.
func NewPagination(page, size, total int) *Pagination {
	pages := 0
	if size > 0 {
		pages = (total + size - 1) / size
	}
	return &Pagination{
		Page:       page,
		PageSize:   size,
		TotalCount: total,
		TotalPages: pages,
		HasNext:    page < pages,
		HasPrev:    page > 1,
	}
}
