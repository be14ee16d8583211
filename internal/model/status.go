package model

import "time"

// AccountStatus is the last observed health of an account, updated after
// every fan-out and credential probe.
type AccountStatus struct {
	AccountID string `db:"account_id" json:"accountId"`

	// LastOperation names the entry point that produced this status.
	LastOperation string `db:"last_operation" json:"lastOperation"`

	LastSuccessAt *time.Time `db:"last_success_at" json:"lastSuccessAt,omitempty"`
	LastFailureAt *time.Time `db:"last_failure_at" json:"lastFailureAt,omitempty"`

	// LastError is empty when the most recent call succeeded.
	LastError string `db:"last_error" json:"lastError,omitempty"`

	// ConsecutiveFailures resets to zero on success.
	ConsecutiveFailures int `db:"consecutive_failures" json:"consecutiveFailures"`
}

// WriteRecord is one journaled outbound action.
type WriteRecord struct {
	ID        string    `db:"id" json:"id"`
	AccountID string    `db:"account_id" json:"accountId"`
	Operation string    `db:"operation" json:"operation"`
	TargetID  string    `db:"target_id" json:"targetId"`
	Routing   string    `db:"routing" json:"routing"`
	Success   bool      `db:"success" json:"success"`
	Error     string    `db:"error" json:"error,omitempty"`
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
}
