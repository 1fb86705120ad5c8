package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/dafibh/kaskecil/kaskecil-backend/internal/domain"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

const transferColumns = `id, from_account_id, to_account_id, amount, description, initiated_by, initiated_by_name, idempotency_key, created_at`

// TransferRepository implements domain.TransferRepository and
// domain.AtomicTransferer using PostgreSQL
type TransferRepository struct {
	pool *pgxpool.Pool
}

// NewTransferRepository creates a new TransferRepository
func NewTransferRepository(pool *pgxpool.Pool) *TransferRepository {
	return &TransferRepository{pool: pool}
}

// Create records a transfer without moving any balance
func (r *TransferRepository) Create(ctx context.Context, transfer *domain.Transfer) (*domain.Transfer, error) {
	return insertTransfer(ctx, r.pool, transfer)
}

// GetByID retrieves a transfer by its ID
func (r *TransferRepository) GetByID(ctx context.Context, id string) (*domain.Transfer, error) {
	t, err := scanTransfer(r.pool.QueryRow(ctx, `SELECT `+transferColumns+` FROM transfers WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.NewNotFoundError("transfer", id, domain.ErrTransferNotFound)
		}
		return nil, err
	}
	return t, nil
}

// GetByIdempotencyKey retrieves the transfer recorded under a client key
func (r *TransferRepository) GetByIdempotencyKey(ctx context.Context, key string) (*domain.Transfer, error) {
	t, err := scanTransfer(r.pool.QueryRow(ctx, `SELECT `+transferColumns+` FROM transfers WHERE idempotency_key = $1`, key))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.NewNotFoundError("transfer", key, domain.ErrTransferNotFound)
		}
		return nil, err
	}
	return t, nil
}

// List returns transfers newest first
func (r *TransferRepository) List(ctx context.Context, filter domain.TransferFilter) ([]*domain.Transfer, error) {
	var (
		where []string
		args  []any
	)
	if filter.AccountID != nil {
		args = append(args, *filter.AccountID)
		where = append(where, fmt.Sprintf("(from_account_id = $%d OR to_account_id = $%d)", len(args), len(args)))
	}
	if filter.From != nil {
		args = append(args, *filter.From)
		where = append(where, fmt.Sprintf("created_at >= $%d", len(args)))
	}
	if filter.To != nil {
		args = append(args, *filter.To)
		where = append(where, fmt.Sprintf("created_at <= $%d", len(args)))
	}

	query := `SELECT ` + transferColumns + ` FROM transfers`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY created_at DESC"

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := make([]*domain.Transfer, 0)
	for rows.Next() {
		t, err := scanTransfer(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, t)
	}
	return result, rows.Err()
}

// AtomicTransfer debits, credits and records the transfer in one database
// transaction. Both account rows are locked in id order first so two
// opposite transfers cannot deadlock.
func (r *TransferRepository) AtomicTransfer(ctx context.Context, transfer *domain.Transfer, guard domain.BalanceGuard) (*domain.TransferResult, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	// 1. Lock both accounts
	rows, err := tx.Query(ctx, `
		SELECT id, balance FROM accounts
		WHERE id = ANY($1)
		ORDER BY id
		FOR UPDATE`, []string{transfer.FromAccountID, transfer.ToAccountID})
	if err != nil {
		return nil, err
	}
	balances := make(map[string]pgtype.Numeric, 2)
	for rows.Next() {
		var (
			id      string
			balance pgtype.Numeric
		)
		if err := rows.Scan(&id, &balance); err != nil {
			rows.Close()
			return nil, err
		}
		balances[id] = balance
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	fromBalance, ok := balances[transfer.FromAccountID]
	if !ok {
		return nil, domain.NewNotFoundError("account", transfer.FromAccountID, domain.ErrAccountNotFound)
	}
	if _, ok := balances[transfer.ToAccountID]; !ok {
		return nil, domain.NewNotFoundError("account", transfer.ToAccountID, domain.ErrAccountNotFound)
	}
	current := pgNumericToDecimal(fromBalance)
	if guard.NoOverdraft && current.Sub(transfer.Amount).IsNegative() {
		return nil, &domain.InsufficientFundsError{
			AccountID: transfer.FromAccountID,
			Balance:   current,
			Requested: transfer.Amount,
		}
	}

	// 2. History
	recorded, err := insertTransfer(ctx, tx, transfer)
	if err != nil {
		return nil, err
	}
	ref := recorded.ID

	// 3. Both legs
	fromAccount, err := applyPosting(ctx, tx, &domain.Posting{
		AccountID:   recorded.FromAccountID,
		Amount:      recorded.Amount.Neg(),
		Kind:        domain.PostingKindTransferOut,
		RefID:       &ref,
		Description: recorded.Description,
		ActorID:     recorded.InitiatedBy,
	}, domain.BalanceGuard{})
	if err != nil {
		return nil, err
	}
	toAccount, err := applyPosting(ctx, tx, &domain.Posting{
		AccountID:   recorded.ToAccountID,
		Amount:      recorded.Amount,
		Kind:        domain.PostingKindTransferIn,
		RefID:       &ref,
		Description: recorded.Description,
		ActorID:     recorded.InitiatedBy,
	}, domain.BalanceGuard{})
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	return &domain.TransferResult{
		Transfer:        recorded,
		FromAccount:     fromAccount,
		ToAccount:       toAccount,
		HistoryRecorded: true,
	}, nil
}

func insertTransfer(ctx context.Context, q querier, transfer *domain.Transfer) (*domain.Transfer, error) {
	id := transfer.ID
	if id == "" {
		id = uuid.NewString()
	}
	amount, err := decimalToPgNumeric(transfer.Amount)
	if err != nil {
		return nil, fmt.Errorf("invalid amount: %w", err)
	}

	recorded, err := scanTransfer(q.QueryRow(ctx, `
		INSERT INTO transfers (id, from_account_id, to_account_id, amount, description, initiated_by, initiated_by_name, idempotency_key)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING `+transferColumns,
		id, transfer.FromAccountID, transfer.ToAccountID, amount, transfer.Description,
		transfer.InitiatedBy, transfer.InitiatedByName, stringPtrToPgText(transfer.IdempotencyKey),
	))
	if err != nil {
		if isUniqueViolation(err, "idempotency") {
			return nil, domain.ErrIdempotencyInProgress
		}
		return nil, fmt.Errorf("failed to insert transfer: %w", mapDataError(err))
	}
	return recorded, nil
}

func scanTransfer(row pgx.Row) (*domain.Transfer, error) {
	var (
		t      domain.Transfer
		amount pgtype.Numeric
		key    pgtype.Text
	)
	if err := row.Scan(&t.ID, &t.FromAccountID, &t.ToAccountID, &amount, &t.Description,
		&t.InitiatedBy, &t.InitiatedByName, &key, &t.CreatedAt); err != nil {
		return nil, err
	}
	t.Amount = pgNumericToDecimal(amount)
	t.IdempotencyKey = pgTextToStringPtr(key)
	return &t, nil
}
