package models

import "time"

// AuditAction constants represent privileged actions recorded in the trail.
const (
	AuditActionPublish             = "PUBLISH"
	AuditActionApproveContribution = "APPROVE_CONTRIBUTION"
	AuditActionRejectContribution  = "REJECT_CONTRIBUTION"
	AuditActionMinistryCreate      = "MINISTRY_CREATE"
	AuditActionMinistryUpdate      = "MINISTRY_UPDATE"
	AuditActionUserDeactivate      = "USER_DEACTIVATE"
	AuditActionReindex             = "SEARCH_REINDEX"
)

// AuditLog is an append-only record of a privileged action. Rows are never
// mutated or deleted.
type AuditLog struct {
	ID        string    `db:"id" json:"id"`
	ActorID   string    `db:"actor_id" json:"actor_id"`
	Action    string    `db:"action" json:"action"`
	Entity    string    `db:"entity" json:"entity"`
	EntityID  string    `db:"entity_id" json:"entity_id"`
	Payload   []byte    `db:"payload" json:"payload,omitempty"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// AuditFilter narrows audit-trail listings.
type AuditFilter struct {
	ActorID  string
	Entity   string
	Action   string
	Page     int
	PageSize int
}
