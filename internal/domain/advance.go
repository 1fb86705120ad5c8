package domain

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

type Repayment struct {
	ID         string          `json:"id"`
	AdvanceID  string          `json:"advanceId"`
	Amount     decimal.Decimal `json:"amount"`
	Date       time.Time       `json:"date"`
	RecordedBy string          `json:"recordedBy"`
	Credited   bool            `json:"credited"`
	CreatedAt  time.Time       `json:"createdAt"`
}

// EmployeeAdvance is cash handed to an employee from a funding account
type EmployeeAdvance struct {
	ID              string          `json:"id"`
	EmployeeID      string          `json:"employeeId"`
	EmployeeName    string          `json:"employeeName"`
	Amount          decimal.Decimal `json:"amount"`
	AccountID       string          `json:"accountId"`
	Notes           string          `json:"notes"`
	Date            time.Time       `json:"date"`
	RemainingAmount decimal.Decimal `json:"remainingAmount"`
	Repayments      []*Repayment    `json:"repayments"`
	CreatedBy       string          `json:"createdBy"`
	CreatedAt       time.Time       `json:"createdAt"`
}

// RepaidTotal sums every repayment
func (a *EmployeeAdvance) RepaidTotal() decimal.Decimal {
	total := decimal.Zero
	for _, r := range a.Repayments {
		total = total.Add(r.Amount)
	}
	return total
}

// CreditedTotal sums the repayments that were credited back to the funding account
func (a *EmployeeAdvance) CreditedTotal() decimal.Decimal {
	total := decimal.Zero
	for _, r := range a.Repayments {
		if r.Credited {
			total = total.Add(r.Amount)
		}
	}
	return total
}

// RecomputeRemaining sets RemainingAmount from Amount and the repayments
func (a *EmployeeAdvance) RecomputeRemaining() {
	a.RemainingAmount = a.Amount.Sub(a.RepaidTotal())
}

// GrantAdvanceInput holds a new advance
type GrantAdvanceInput struct {
	EmployeeID   string
	EmployeeName string
	Amount       decimal.Decimal
	AccountID    string
	Notes        string
	Date         time.Time
}

// AdvanceFilter narrows ListAdvances
type AdvanceFilter struct {
	EmployeeID      *string
	OutstandingOnly bool
}

// EmployeeAdvanceGroup is the per-employee roll-up of advances
type EmployeeAdvanceGroup struct {
	EmployeeID     string             `json:"employeeId"`
	EmployeeName   string             `json:"employeeName"`
	TotalAmount    decimal.Decimal    `json:"totalAmount"`
	TotalRemaining decimal.Decimal    `json:"totalRemaining"`
	Count          int                `json:"count"`
	Advances       []*EmployeeAdvance `json:"advances"`
}

// AdvanceRepository persists advances together with their repayments.
//
// AddRepayment locks the advance, rejects amounts above the remaining balance
// with ErrOverpayment, appends the repayment, recomputes RemainingAmount and
// applies posting when it is not nil, all in one unit.
//
// Delete locks the advance and calls reverse with it; the posting it returns
// (nil for none) is applied in the same unit that removes the repayments and
// the advance.
type AdvanceRepository interface {
	Create(ctx context.Context, advance *EmployeeAdvance, posting *Posting, guard BalanceGuard) (*EmployeeAdvance, error)
	GetByID(ctx context.Context, id string) (*EmployeeAdvance, error)
	List(ctx context.Context, filter AdvanceFilter) ([]*EmployeeAdvance, error)
	AddRepayment(ctx context.Context, advanceID string, repayment *Repayment, posting *Posting) (*EmployeeAdvance, error)
	Delete(ctx context.Context, id string, reverse func(a *EmployeeAdvance) *Posting) (*EmployeeAdvance, error)
}
