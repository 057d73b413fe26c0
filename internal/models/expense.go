package models

import "time"

// Expense represents an expense claim, including the joined display fields
// (category, status and user names) used by the API and the chat tools.
type Expense struct {
	ID          int64      `json:"id"`
	UserID      int64      `json:"user_id"`
	CategoryID  int64      `json:"category_id"`
	StatusID    int64      `json:"status_id"`
	AmountMinor int64      `json:"amount_minor"` // smallest currency unit, never negative
	Currency    string     `json:"currency"`
	ExpenseDate time.Time  `json:"expense_date"`
	Description string     `json:"description,omitempty"`
	ReceiptFile string     `json:"receipt_file,omitempty"`
	SubmittedAt *time.Time `json:"submitted_at,omitempty"`
	ReviewedBy  *int64     `json:"reviewed_by,omitempty"`
	ReviewedAt  *time.Time `json:"reviewed_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`

	CategoryName string `json:"category_name"`
	StatusName   string `json:"status_name"`
	UserName     string `json:"user_name"`
}

// AmountMajor returns the amount in major currency units (e.g. pounds).
func (e *Expense) AmountMajor() float64 {
	return float64(e.AmountMinor) / 100
}

// ExpenseCategory represents an expense category
type ExpenseCategory struct {
	ID       int64  `json:"id"`
	Name     string `json:"name"`
	IsActive bool   `json:"is_active"`
}

// User represents an expense owner or reviewer
type User struct {
	ID       int64  `json:"id"`
	UserName string `json:"user_name"`
}

// Status names are the external contract surface for transitions.
const (
	StatusDraft     = "Draft"
	StatusSubmitted = "Submitted"
	StatusApproved  = "Approved"
	StatusRejected  = "Rejected"
)

// statusTransitions defines the one-way expense lifecycle:
// Draft -> Submitted -> {Approved, Rejected}. No state is re-enterable.
var statusTransitions = map[string][]string{
	StatusDraft:     {StatusSubmitted},
	StatusSubmitted: {StatusApproved, StatusRejected},
	StatusApproved:  {},
	StatusRejected:  {},
}

// KnownStatus reports whether name is a valid status name.
func KnownStatus(name string) bool {
	_, ok := statusTransitions[name]
	return ok
}

// CanTransition reports whether an expense may move from one status to another.
func CanTransition(from, to string) bool {
	for _, next := range statusTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// IsTerminalStatus reports whether a status admits no further transitions.
func IsTerminalStatus(name string) bool {
	return name == StatusApproved || name == StatusRejected
}
