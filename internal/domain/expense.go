package domain

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

type Expense struct {
	ID          string          `json:"id"`
	Description string          `json:"description"`
	Amount      decimal.Decimal `json:"amount"`
	AccountID   *string         `json:"accountId,omitempty"`
	Category    string          `json:"category"`
	RefID       *string         `json:"refId,omitempty"`
	Date        time.Time       `json:"date"`
	CreatedBy   string          `json:"createdBy"`
	CreatedAt   time.Time       `json:"createdAt"`
}

// RecordExpenseInput holds a new cash expense
type RecordExpenseInput struct {
	Description string
	Amount      decimal.Decimal
	AccountID   string
	Category    string
	Date        time.Time
}

// ExpenseFilter narrows ListExpenses. From and To are inclusive dates.
type ExpenseFilter struct {
	AccountID *string
	Category  *string
	From      *time.Time
	To        *time.Time
}

// ExpenseRepository persists expenses. Create and Delete apply the given
// posting (when not nil) in the same unit as the expense row.
type ExpenseRepository interface {
	Create(ctx context.Context, expense *Expense, posting *Posting, guard BalanceGuard) (*Expense, error)
	GetByID(ctx context.Context, id string) (*Expense, error)
	List(ctx context.Context, filter ExpenseFilter) ([]*Expense, error)
	Delete(ctx context.Context, id string, posting *Posting) error
}
