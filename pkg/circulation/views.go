package circulation

import (
	"time"

	"github.com/ticnexus/nexus/pkg/models"
)

// TransactionView is a transaction as seen at a point in time: its status is
// the effective one, so an open loan past its due date reads as Overdue.
type TransactionView struct {
	*models.Transaction
	Status       string `json:"status"`
	IsOverdue    bool   `json:"is_overdue"`
	IsDueSoon    bool   `json:"is_due_soon"`
	DaysUntilDue *int   `json:"days_until_due"`
}

// ExtendableView adds what an extension would do to an open transaction.
type ExtendableView struct {
	TransactionView
	CanExtend           bool      `json:"can_extend"`
	RemainingExtensions int       `json:"remaining_extensions"`
	NewDueDate          time.Time `json:"new_due_date"`
}

type ListTransactionsResponse struct {
	Transactions []*TransactionView `json:"transactions"`
	Total        int                `json:"total"`
}

func newTransactionView(txn *models.Transaction, now time.Time) *TransactionView {
	view := &TransactionView{
		Transaction: txn,
		Status:      txn.EffectiveStatus(now),
		IsOverdue:   txn.IsOverdue(now),
		IsDueSoon:   txn.IsDueSoon(now),
	}
	if txn.IsOpen() {
		days := txn.DaysUntilDue(now)
		view.DaysUntilDue = &days
	}
	return view
}

func newTransactionViews(txns []*models.Transaction, now time.Time) []*TransactionView {
	views := make([]*TransactionView, 0, len(txns))
	for _, txn := range txns {
		views = append(views, newTransactionView(txn, now))
	}
	return views
}

func newExtendableView(txn *models.Transaction, now time.Time) *ExtendableView {
	remaining := txn.RemainingExtensions()
	return &ExtendableView{
		TransactionView:     *newTransactionView(txn, now),
		CanExtend:           remaining > 0,
		RemainingExtensions: remaining,
		NewDueDate:          txn.DueDate.Add(models.ExtensionPeriod),
	}
}
