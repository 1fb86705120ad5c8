package domain

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

type PostingKind string

const (
	PostingKindOpening           PostingKind = "opening"
	PostingKindSaleIncome        PostingKind = "sale_income"
	PostingKindReceivablePayment PostingKind = "receivable_payment"
	PostingKindTransferIn        PostingKind = "transfer_in"
	PostingKindTransferOut       PostingKind = "transfer_out"
	PostingKindExpense           PostingKind = "expense"
	PostingKindExpenseReversal   PostingKind = "expense_reversal"
	PostingKindAdvanceGrant      PostingKind = "advance_grant"
	PostingKindAdvanceRepayment  PostingKind = "advance_repayment"
	PostingKindAdvanceReversal   PostingKind = "advance_reversal"
)

// PostingCategory groups posting kinds for cash-flow reporting
type PostingCategory string

const (
	PostingCategoryIncome  PostingCategory = "income"
	PostingCategoryExpense PostingCategory = "expense"
	PostingCategoryAdvance PostingCategory = "advance"
)

var postingCategories = map[PostingKind]PostingCategory{
	PostingKindOpening:           PostingCategoryIncome,
	PostingKindSaleIncome:        PostingCategoryIncome,
	PostingKindReceivablePayment: PostingCategoryIncome,
	PostingKindTransferIn:        PostingCategoryIncome,
	PostingKindTransferOut:       PostingCategoryExpense,
	PostingKindExpense:           PostingCategoryExpense,
	PostingKindExpenseReversal:   PostingCategoryExpense,
	PostingKindAdvanceGrant:      PostingCategoryAdvance,
	PostingKindAdvanceRepayment:  PostingCategoryAdvance,
	PostingKindAdvanceReversal:   PostingCategoryAdvance,
}

// Category returns the reporting category of the kind.
// Unknown kinds count as income so that period totals still balance.
func (k PostingKind) Category() PostingCategory {
	if c, ok := postingCategories[k]; ok {
		return c
	}
	return PostingCategoryIncome
}

// IsValid reports whether k is a known posting kind
func (k PostingKind) IsValid() bool {
	_, ok := postingCategories[k]
	return ok
}

// Posting is one entry of the append-only journal. Amount is the signed delta
// applied to the account balance.
type Posting struct {
	ID          string          `json:"id"`
	AccountID   string          `json:"accountId"`
	Amount      decimal.Decimal `json:"amount"`
	Kind        PostingKind     `json:"kind"`
	RefID       *string         `json:"refId,omitempty"`
	Description string          `json:"description"`
	ActorID     string          `json:"actorId"`
	PostedAt    time.Time       `json:"postedAt"`
}

// PostingFilter selects postings of one account. After is exclusive, Until inclusive.
type PostingFilter struct {
	AccountID string
	After     *time.Time
	Until     *time.Time
	Kinds     []PostingKind
	RefID     *string
}

// PostingRepository reads the journal. Results are ordered by PostedAt, then
// insertion order.
type PostingRepository interface {
	List(ctx context.Context, filter PostingFilter) ([]*Posting, error)
}
