package domain

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// Transfer records a movement of funds between two accounts. It always comes
// with one transfer_out posting on FromAccountID and one transfer_in posting
// of the same magnitude on ToAccountID.
type Transfer struct {
	ID              string          `json:"id"`
	FromAccountID   string          `json:"fromAccountId"`
	ToAccountID     string          `json:"toAccountId"`
	Amount          decimal.Decimal `json:"amount"`
	Description     string          `json:"description"`
	InitiatedBy     string          `json:"initiatedBy"`
	InitiatedByName string          `json:"initiatedByName"`
	IdempotencyKey  *string         `json:"idempotencyKey,omitempty"`
	CreatedAt       time.Time       `json:"createdAt"`
}

// TransferInput is the request to move Amount from one account to another
type TransferInput struct {
	FromAccountID  string
	ToAccountID    string
	Amount         decimal.Decimal
	Description    string
	IdempotencyKey string
}

// TransferResult is returned by the transfer engine
type TransferResult struct {
	Transfer        *Transfer `json:"transfer"`
	FromAccount     *Account  `json:"fromAccount"`
	ToAccount       *Account  `json:"toAccount"`
	HistoryRecorded bool      `json:"historyRecorded"`
	Replayed        bool      `json:"replayed"`
}

// TransferFilter narrows ListTransfers. AccountID matches either leg.
type TransferFilter struct {
	AccountID *string
	From      *time.Time
	To        *time.Time
}

// TransferRepository stores transfer history
type TransferRepository interface {
	Create(ctx context.Context, transfer *Transfer) (*Transfer, error)
	GetByID(ctx context.Context, id string) (*Transfer, error)
	// GetByIdempotencyKey returns ErrTransferNotFound when no recorded
	// transfer carries key
	GetByIdempotencyKey(ctx context.Context, key string) (*Transfer, error)
	List(ctx context.Context, filter TransferFilter) ([]*Transfer, error)
}

// AtomicTransferer is implemented by stores that can debit, credit and record
// a transfer in one transaction. The guard applies to the debit leg only.
type AtomicTransferer interface {
	AtomicTransfer(ctx context.Context, transfer *Transfer, guard BalanceGuard) (*TransferResult, error)
}

// IdempotencyStore remembers which transfer a client key produced.
// Claim returns false when the key is already taken. Lookup returns "" when
// the key is unknown and PendingIdempotencyValue while the first request is
// still running.
type IdempotencyStore interface {
	Claim(ctx context.Context, key string) (bool, error)
	Lookup(ctx context.Context, key string) (string, error)
	Complete(ctx context.Context, key string, transferID string) error
	Release(ctx context.Context, key string) error
}

// PendingIdempotencyValue marks a claimed key whose transfer is not finished
const PendingIdempotencyValue = "pending"
