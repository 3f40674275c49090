package models

import "time"

// ContributionType classifies citizen-submitted evidence.
type ContributionType string

const (
	ContributionTypeTestimony ContributionType = "TESTIMONY"
	ContributionTypeDocument  ContributionType = "DOCUMENT"
	ContributionTypeLink      ContributionType = "LINK"
	ContributionTypePhoto     ContributionType = "PHOTO"
)

// ValidContributionType reports whether the value is a known type.
func ValidContributionType(t ContributionType) bool {
	switch t {
	case ContributionTypeTestimony, ContributionTypeDocument, ContributionTypeLink, ContributionTypePhoto:
		return true
	default:
		return false
	}
}

// ContributionStatus is the moderation state. PENDING is the only
// non-terminal state.
type ContributionStatus string

const (
	ContributionStatusPending  ContributionStatus = "PENDING"
	ContributionStatusApproved ContributionStatus = "APPROVED"
	ContributionStatusRejected ContributionStatus = "REJECTED"
)

// Contribution is citizen-submitted evidence tied to a policy.
type Contribution struct {
	ID            string             `db:"id" json:"id"`
	UserID        string             `db:"user_id" json:"user_id"`
	PolicyID      string             `db:"policy_id" json:"policy_id"`
	Type          ContributionType   `db:"type" json:"type"`
	Content       string             `db:"content" json:"content"`
	FilePath      *string            `db:"file_path" json:"file_path,omitempty"`
	FileSize      *int64             `db:"file_size" json:"file_size,omitempty"`
	MimeType      *string            `db:"mime_type" json:"mime_type,omitempty"`
	Region        *string            `db:"region" json:"region,omitempty"`
	Status        ContributionStatus `db:"status" json:"status"`
	Reliability   int                `db:"reliability" json:"reliability"`
	ModeratorID   *string            `db:"moderator_id" json:"moderator_id,omitempty"`
	ModeratorNote *string            `db:"moderator_note" json:"moderator_note,omitempty"`
	ReviewedAt    *time.Time         `db:"reviewed_at" json:"reviewed_at,omitempty"`
	CreatedAt     time.Time          `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time          `db:"updated_at" json:"updated_at"`
}

// ContributionFilter narrows contribution listings.
type ContributionFilter struct {
	PolicyID string
	UserID   string
	Status   ContributionStatus
	Page     int
	PageSize int
}
