package models

import (
	"time"

	"github.com/uptrace/bun"
)

// Persisted transaction statuses. Overdue is never stored; it is derived from
// an Issued transaction whose due date has passed.
const (
	TransactionStatusIssued   = "Issued"
	TransactionStatusReturned = "Returned"
	TransactionStatusOverdue  = "Overdue"
)

// Circulation policy.
const (
	DefaultLoanPeriod = 14 * 24 * time.Hour
	ExtensionPeriod   = 7 * 24 * time.Hour
	MaxExtensions     = 2
	MaxLoanDays       = 90
	DueSoonDays       = 3
)

type Transaction struct {
	bun.BaseModel `bun:"table:transactions,alias:t"`

	ID             int        `bun:",pk,nullzero" json:"id"`
	CreatedAt      time.Time  `json:"created_at"`
	BookID         int        `json:"book_id"`
	Book           *Book      `bun:"rel:belongs-to,join:book_id=id" json:"book,omitempty"`
	UserID         int        `json:"user_id"`
	User           *User      `bun:"rel:belongs-to,join:user_id=id" json:"user,omitempty"`
	IssueDate      time.Time  `json:"issue_date"`
	DueDate        time.Time  `json:"due_date"`
	ReturnDate     *time.Time `json:"return_date"`
	ExtensionCount int        `json:"extension_count"`
	Status         string     `bun:",nullzero" json:"status"`
	Notes          *string    `json:"notes,omitempty"`
}

// IsOpen reports whether the transaction still holds its book.
func (t *Transaction) IsOpen() bool {
	return t.Status != TransactionStatusReturned
}

// IsOverdue reports whether the transaction is open and past its due date.
func (t *Transaction) IsOverdue(now time.Time) bool {
	return t.IsOpen() && t.DueDate.Before(now)
}

// EffectiveStatus returns the status as seen at now, deriving Overdue.
func (t *Transaction) EffectiveStatus(now time.Time) string {
	if t.IsOverdue(now) {
		return TransactionStatusOverdue
	}
	return t.Status
}

// DaysUntilDue is the number of whole days from now until the due date.
// Negative values mean the transaction is overdue.
func (t *Transaction) DaysUntilDue(now time.Time) int {
	d := t.DueDate.Sub(now)
	days := int(d / (24 * time.Hour))
	if d < 0 && d%(24*time.Hour) != 0 {
		days--
	}
	return days
}

// IsDueSoon reports whether an open, not yet overdue transaction falls due
// within DueSoonDays.
func (t *Transaction) IsDueSoon(now time.Time) bool {
	if !t.IsOpen() || t.IsOverdue(now) {
		return false
	}
	days := t.DaysUntilDue(now)
	return days >= 0 && days <= DueSoonDays
}

// RemainingExtensions is how many more times the due date may be pushed.
func (t *Transaction) RemainingExtensions() int {
	if !t.IsOpen() || t.ExtensionCount >= MaxExtensions {
		return 0
	}
	return MaxExtensions - t.ExtensionCount
}
