package models

import "time"

// Ministry is the government body responsible for a set of policies.
type Ministry struct {
	ID          string    `db:"id" json:"id"`
	Name        string    `db:"name" json:"name"`
	Slug        string    `db:"slug" json:"slug"`
	Logo        *string   `db:"logo" json:"logo,omitempty"`
	Description *string   `db:"description" json:"description,omitempty"`
	Website     *string   `db:"website" json:"website,omitempty"`
	PolicyCount int       `db:"policy_count" json:"policy_count"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`
}

// MinistryDetail is a ministry together with its published policies.
type MinistryDetail struct {
	Ministry
	Policies []Policy `json:"policies"`
}

// MinistryRanking scores a ministry by delivery of its published policies.
type MinistryRanking struct {
	MinistryID          string  `db:"ministry_id" json:"ministry_id"`
	Name                string  `db:"name" json:"name"`
	Slug                string  `db:"slug" json:"slug"`
	TotalPolicies       int     `db:"total_policies" json:"total_policies"`
	CompletedPolicies   int     `db:"completed_policies" json:"completed_policies"`
	InProgressPolicies  int     `db:"in_progress_policies" json:"in_progress_policies"`
	DelayedPolicies     int     `db:"delayed_policies" json:"delayed_policies"`
	CompletionRate      int     `db:"-" json:"completion_rate"`
	TotalBudget         float64 `db:"total_budget" json:"total_budget"`
	TotalBudgetSpent    float64 `db:"total_budget_spent" json:"total_budget_spent"`
	BudgetExecutionRate int     `db:"-" json:"budget_execution_rate"`
}
