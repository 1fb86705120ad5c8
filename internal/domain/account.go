package domain

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

type AccountType string

const (
	AccountTypeAsset     AccountType = "asset"
	AccountTypeLiability AccountType = "liability"
	AccountTypeEquity    AccountType = "equity"
	AccountTypeRevenue   AccountType = "revenue"
	AccountTypeExpense   AccountType = "expense"
)

// ValidAccountTypes lists every account type the ledger accepts
var ValidAccountTypes = []AccountType{
	AccountTypeAsset,
	AccountTypeLiability,
	AccountTypeEquity,
	AccountTypeRevenue,
	AccountTypeExpense,
}

// IsValid reports whether t is one of ValidAccountTypes
func (t AccountType) IsValid() bool {
	for _, v := range ValidAccountTypes {
		if t == v {
			return true
		}
	}
	return false
}

type Account struct {
	ID               string          `json:"id"`
	Name             string          `json:"name"`
	Type             AccountType     `json:"type"`
	Balance          decimal.Decimal `json:"balance"`
	IsPaymentAccount bool            `json:"isPaymentAccount"`
	CreatedAt        time.Time       `json:"createdAt"`
	UpdatedAt        time.Time       `json:"updatedAt"`
}

// CreateAccountInput holds the fields accepted when opening an account
type CreateAccountInput struct {
	Name             string
	Type             AccountType
	InitialBalance   decimal.Decimal
	IsPaymentAccount bool
}

// AccountFilter narrows ListAccounts
type AccountFilter struct {
	PaymentOnly bool
}

// BalanceGuard controls how a posting may move a balance.
// With NoOverdraft set, a posting that would leave the balance below zero is
// rejected with an InsufficientFundsError and nothing is written.
type BalanceGuard struct {
	NoOverdraft bool
}

// AccountRepository persists accounts and applies postings to their balances.
// Create applies the opening posting (when given) in the same unit and
// returns the account with it applied. ApplyPosting must update the balance
// and append the posting in one atomic unit; it fills in posting.ID and
// posting.PostedAt when they are empty.
type AccountRepository interface {
	Create(ctx context.Context, account *Account, opening *Posting) (*Account, error)
	GetByID(ctx context.Context, id string) (*Account, error)
	GetByName(ctx context.Context, name string) (*Account, error)
	List(ctx context.Context, filter AccountFilter) ([]*Account, error)
	ApplyPosting(ctx context.Context, posting *Posting, guard BalanceGuard) (*Account, error)
	SetBalance(ctx context.Context, id string, balance decimal.Decimal) (*Account, error)
}
