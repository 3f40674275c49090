package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// PolicyStatus tracks execution progress of a public policy.
type PolicyStatus string

const (
	PolicyStatusNotStarted   PolicyStatus = "NOT_STARTED"
	PolicyStatusInProgress   PolicyStatus = "IN_PROGRESS"
	PolicyStatusDelayed      PolicyStatus = "DELAYED"
	PolicyStatusCompleted    PolicyStatus = "COMPLETED"
	PolicyStatusAbandoned    PolicyStatus = "ABANDONED"
	PolicyStatusReformulated PolicyStatus = "REFORMULATED"
)

// ValidPolicyStatus reports whether the value is a known execution status.
func ValidPolicyStatus(s PolicyStatus) bool {
	switch s {
	case PolicyStatusNotStarted, PolicyStatusInProgress, PolicyStatusDelayed,
		PolicyStatusCompleted, PolicyStatusAbandoned, PolicyStatusReformulated:
		return true
	default:
		return false
	}
}

// WorkflowStatus controls external visibility, orthogonal to PolicyStatus.
type WorkflowStatus string

const (
	WorkflowStatusDraft     WorkflowStatus = "DRAFT"
	WorkflowStatusReview    WorkflowStatus = "REVIEW"
	WorkflowStatusPublished WorkflowStatus = "PUBLISHED"
	WorkflowStatusArchived  WorkflowStatus = "ARCHIVED"
)

// PolicyTheme classifies policies by sector.
type PolicyTheme string

const (
	ThemeHealth         PolicyTheme = "HEALTH"
	ThemeEducation      PolicyTheme = "EDUCATION"
	ThemeInfrastructure PolicyTheme = "INFRASTRUCTURE"
	ThemeAgriculture    PolicyTheme = "AGRICULTURE"
	ThemeJustice        PolicyTheme = "JUSTICE"
	ThemeSecurity       PolicyTheme = "SECURITY"
	ThemeDigital        PolicyTheme = "DIGITAL"
	ThemeEnvironment    PolicyTheme = "ENVIRONMENT"
	ThemeOther          PolicyTheme = "OTHER"
)

// ValidPolicyTheme reports whether the value is a known theme.
func ValidPolicyTheme(t PolicyTheme) bool {
	switch t {
	case ThemeHealth, ThemeEducation, ThemeInfrastructure, ThemeAgriculture,
		ThemeJustice, ThemeSecurity, ThemeDigital, ThemeEnvironment, ThemeOther:
		return true
	default:
		return false
	}
}

// KPI is a single key-performance-indicator record attached to a policy.
type KPI struct {
	Name    string  `json:"name"`
	Target  float64 `json:"target"`
	Current float64 `json:"current"`
	Unit    string  `json:"unit"`
}

// KPIList is stored as a JSONB column.
type KPIList []KPI

// Value implements driver.Valuer.
func (k KPIList) Value() (driver.Value, error) {
	if k == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(k)
}

// Scan implements sql.Scanner.
func (k *KPIList) Scan(src interface{}) error {
	if src == nil {
		*k = nil
		return nil
	}
	raw, ok := src.([]byte)
	if !ok {
		return fmt.Errorf("unsupported kpi column type %T", src)
	}
	return json.Unmarshal(raw, k)
}

// Policy represents a tracked public-policy initiative.
type Policy struct {
	ID             string         `db:"id" json:"id"`
	Slug           string         `db:"slug" json:"slug"`
	Title          string         `db:"title" json:"title"`
	Description    string         `db:"description" json:"description"`
	MinistryID     string         `db:"ministry_id" json:"ministry_id"`
	Theme          PolicyTheme    `db:"theme" json:"theme"`
	Status         PolicyStatus   `db:"status" json:"status"`
	WorkflowStatus WorkflowStatus `db:"workflow_status" json:"workflow_status"`
	Budget         *float64       `db:"budget" json:"budget,omitempty"`
	BudgetSpent    *float64       `db:"budget_spent" json:"budget_spent,omitempty"`
	StartDate      *time.Time     `db:"start_date" json:"start_date,omitempty"`
	EndDate        *time.Time     `db:"end_date" json:"end_date,omitempty"`
	TargetKPIs     KPIList        `db:"target_kpis" json:"target_kpis"`
	Region         *string        `db:"region" json:"region,omitempty"`
	Version        int            `db:"version" json:"version"`
	CreatedBy      string         `db:"created_by" json:"created_by"`
	PublishedAt    *time.Time     `db:"published_at" json:"published_at,omitempty"`
	CreatedAt      time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time      `db:"updated_at" json:"updated_at"`
}

// StatusHistory is an append-only ledger entry recording one status change.
// FromStatus is nil only on the creation entry.
type StatusHistory struct {
	ID         string        `db:"id" json:"id"`
	PolicyID   string        `db:"policy_id" json:"policy_id"`
	FromStatus *PolicyStatus `db:"from_status" json:"from_status,omitempty"`
	ToStatus   PolicyStatus  `db:"to_status" json:"to_status"`
	ChangedBy  string        `db:"changed_by" json:"changed_by"`
	Reason     *string       `db:"reason" json:"reason,omitempty"`
	CreatedAt  time.Time     `db:"created_at" json:"created_at"`
}

// PolicyVersion is a point-in-time snapshot keyed by (policy_id, version).
type PolicyVersion struct {
	PolicyID  string    `db:"policy_id" json:"policy_id"`
	Version   int       `db:"version" json:"version"`
	Snapshot  []byte    `db:"snapshot" json:"snapshot"`
	ChangedBy string    `db:"changed_by" json:"changed_by"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// PolicyFilter narrows policy listings.
type PolicyFilter struct {
	Theme           PolicyTheme
	Status          PolicyStatus
	MinistryID      string
	Region          string
	Search          string
	From            *time.Time
	To              *time.Time
	IncludeUnlisted bool
	Page            int
	PageSize        int
}

// GlobalStats aggregates the published-policy register.
type GlobalStats struct {
	TotalPolicies        int     `json:"total_policies"`
	CompletedPolicies    int     `json:"completed_policies"`
	InProgressPolicies   int     `json:"in_progress_policies"`
	DelayedPolicies      int     `json:"delayed_policies"`
	GlobalCompletionRate int     `json:"global_completion_rate"`
	TotalBudgetAllocated float64 `json:"total_budget_allocated"`
	TotalBudgetSpent     float64 `json:"total_budget_spent"`
	BudgetExecutionRate  int     `json:"budget_execution_rate"`
	TotalUsers           int     `json:"total_users"`
	TotalContributions   int     `json:"total_contributions"`
}

// SearchDocument is the denormalized policy shape pushed to the search mirror.
type SearchDocument struct {
	ID             string         `json:"id"`
	Slug           string         `json:"slug"`
	Title          string         `json:"title"`
	Description    string         `json:"description"`
	Theme          PolicyTheme    `json:"theme"`
	Status         PolicyStatus   `json:"status"`
	WorkflowStatus WorkflowStatus `json:"workflowStatus"`
	MinistryID     string         `json:"ministryId"`
	Region         string         `json:"region,omitempty"`
	UpdatedAt      int64          `json:"updatedAt"`
}

// SearchResult is what the search service returns regardless of backend.
type SearchResult struct {
	Hits     []SearchDocument `json:"hits"`
	Total    int64            `json:"total"`
	Query    string           `json:"query"`
	Degraded bool             `json:"degraded"`
}
