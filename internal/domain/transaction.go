package domain

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

type PaymentStatus string

const (
	PaymentStatusPaid        PaymentStatus = "Lunas"
	PaymentStatusOutstanding PaymentStatus = "Belum Lunas"
)

// WriteOffCategory is the expense category used when a receivable is forgiven
const WriteOffCategory = "Receivable write-off"

// Transaction is a sale. Only the receivable side of it lives here.
type Transaction struct {
	ID               string          `json:"id"`
	CustomerName     string          `json:"customerName"`
	Total            decimal.Decimal `json:"total"`
	PaidAmount       decimal.Decimal `json:"paidAmount"`
	PaymentStatus    PaymentStatus   `json:"paymentStatus"`
	PaymentAccountID *string         `json:"paymentAccountId,omitempty"`
	CreatedBy        string          `json:"createdBy"`
	CreatedAt        time.Time       `json:"createdAt"`
	UpdatedAt        time.Time       `json:"updatedAt"`
}

// Remaining returns the unpaid part of the total
func (t *Transaction) Remaining() decimal.Decimal {
	return t.Total.Sub(t.PaidAmount)
}

// DerivePaymentStatus returns Lunas once paid reaches total
func DerivePaymentStatus(total, paid decimal.Decimal) PaymentStatus {
	if paid.GreaterThanOrEqual(total) {
		return PaymentStatusPaid
	}
	return PaymentStatusOutstanding
}

// RecordSaleInput holds a new sale with its down payment
type RecordSaleInput struct {
	CustomerName     string
	Total            decimal.Decimal
	PaidAmount       decimal.Decimal
	PaymentAccountID string
}

// TransactionFilter narrows ListReceivables
type TransactionFilter struct {
	OutstandingOnly bool
	CustomerName    *string
}

// WriteOffResult pairs the settled transaction with the synthesized expense
type WriteOffResult struct {
	Transaction *Transaction `json:"transaction"`
	Expense     *Expense     `json:"expense"`
}

// PaymentResult is returned by a receivable payment
type PaymentResult struct {
	Transaction *Transaction `json:"transaction"`
	Account     *Account     `json:"account"`
	Posting     *Posting     `json:"posting"`
}

// TransactionRepository persists sales.
//
// Pay locks the transaction, rejects amounts above the remaining balance with
// ErrOverpayment, increments PaidAmount, recomputes PaymentStatus and applies
// posting to its account, all in one unit.
//
// WriteOff locks the transaction and calls build with the locked row; the
// expense it returns is inserted and the transaction marked paid in the same
// unit. No account balance is touched.
type TransactionRepository interface {
	Create(ctx context.Context, transaction *Transaction, posting *Posting) (*Transaction, error)
	GetByID(ctx context.Context, id string) (*Transaction, error)
	List(ctx context.Context, filter TransactionFilter) ([]*Transaction, error)
	Pay(ctx context.Context, id string, amount decimal.Decimal, posting *Posting) (*PaymentResult, error)
	WriteOff(ctx context.Context, id string, build func(t *Transaction) (*Expense, error)) (*WriteOffResult, error)
}
