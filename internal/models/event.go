package models

import "time"

// Event topics consumed by the realtime gateway and the mailer.
const (
	TopicPolicyUpdated   = "policy:updated"
	TopicContributionNew = "contribution:new"
)

// PolicyUpdatedEvent is published after a policy status change or publication.
type PolicyUpdatedEvent struct {
	PolicyID  string       `json:"policy_id"`
	Slug      string       `json:"slug"`
	Status    PolicyStatus `json:"status"`
	ChangedBy string       `json:"changed_by"`
	At        time.Time    `json:"at"`
}

// ContributionCreatedEvent is published when a citizen submits evidence.
type ContributionCreatedEvent struct {
	ContributionID string           `json:"contribution_id"`
	PolicyID       string           `json:"policy_id"`
	UserID         string           `json:"user_id"`
	Type           ContributionType `json:"type"`
	At             time.Time        `json:"at"`
}
