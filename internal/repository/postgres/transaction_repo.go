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
	"github.com/shopspring/decimal"
)

const transactionColumns = `id, customer_name, total, paid_amount, payment_status, payment_account_id, created_by, created_at, updated_at`

// TransactionRepository implements domain.TransactionRepository using PostgreSQL
type TransactionRepository struct {
	pool *pgxpool.Pool
}

// NewTransactionRepository creates a new TransactionRepository
func NewTransactionRepository(pool *pgxpool.Pool) *TransactionRepository {
	return &TransactionRepository{pool: pool}
}

// Create stores a sale and books its down payment in the same transaction
func (r *TransactionRepository) Create(ctx context.Context, transaction *domain.Transaction, posting *domain.Posting) (*domain.Transaction, error) {
	id := transaction.ID
	if id == "" {
		id = uuid.NewString()
	}
	total, err := decimalToPgNumeric(transaction.Total)
	if err != nil {
		return nil, fmt.Errorf("invalid total: %w", err)
	}
	paid, err := decimalToPgNumeric(transaction.PaidAmount)
	if err != nil {
		return nil, fmt.Errorf("invalid paid amount: %w", err)
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	created, err := scanTransaction(tx.QueryRow(ctx, `
		INSERT INTO transactions (id, customer_name, total, paid_amount, payment_status, payment_account_id, created_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING `+transactionColumns,
		id, transaction.CustomerName, total, paid, string(transaction.PaymentStatus),
		stringPtrToPgText(transaction.PaymentAccountID), transaction.CreatedBy,
	))
	if err != nil {
		return nil, mapDataError(err)
	}

	if posting != nil {
		ref := created.ID
		posting.RefID = &ref
		if _, err := applyPosting(ctx, tx, posting, domain.BalanceGuard{}); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return created, nil
}

// GetByID retrieves a sale by its ID
func (r *TransactionRepository) GetByID(ctx context.Context, id string) (*domain.Transaction, error) {
	return getTransaction(ctx, r.pool, id, false)
}

// List returns sales newest first
func (r *TransactionRepository) List(ctx context.Context, filter domain.TransactionFilter) ([]*domain.Transaction, error) {
	var (
		where []string
		args  []any
	)
	if filter.OutstandingOnly {
		args = append(args, string(domain.PaymentStatusPaid))
		where = append(where, fmt.Sprintf("payment_status <> $%d", len(args)))
	}
	if filter.CustomerName != nil {
		args = append(args, *filter.CustomerName)
		where = append(where, fmt.Sprintf("LOWER(customer_name) = LOWER($%d)", len(args)))
	}

	query := `SELECT ` + transactionColumns + ` FROM transactions`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY created_at DESC"

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := make([]*domain.Transaction, 0)
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, t)
	}
	return result, rows.Err()
}

// Pay applies a receivable payment under a row lock
func (r *TransactionRepository) Pay(ctx context.Context, id string, amount decimal.Decimal, posting *domain.Posting) (*domain.PaymentResult, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	// 1. Lock the sale and re-check the bound
	current, err := getTransaction(ctx, tx, id, true)
	if err != nil {
		return nil, err
	}
	remaining := current.Remaining()
	if !remaining.IsPositive() {
		return nil, domain.ErrAlreadySettled
	}
	if amount.GreaterThan(remaining) {
		return nil, domain.NewValidationError(domain.ErrOverpayment,
			fmt.Sprintf("remaining %s", remaining.StringFixed(2)))
	}

	// 2. Credit the account
	account, err := applyPosting(ctx, tx, posting, domain.BalanceGuard{})
	if err != nil {
		return nil, err
	}

	// 3. Update the sale
	newPaid := current.PaidAmount.Add(amount)
	paid, err := decimalToPgNumeric(newPaid)
	if err != nil {
		return nil, fmt.Errorf("invalid paid amount: %w", err)
	}
	updated, err := scanTransaction(tx.QueryRow(ctx, `
		UPDATE transactions
		SET paid_amount = $2, payment_status = $3, payment_account_id = $4, updated_at = NOW()
		WHERE id = $1
		RETURNING `+transactionColumns,
		id, paid, string(domain.DerivePaymentStatus(current.Total, newPaid)), posting.AccountID,
	))
	if err != nil {
		return nil, mapDataError(err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return &domain.PaymentResult{Transaction: updated, Account: account, Posting: posting}, nil
}

// WriteOff locks the sale, stores the expense built from it and marks the sale paid
func (r *TransactionRepository) WriteOff(ctx context.Context, id string, build func(t *domain.Transaction) (*domain.Expense, error)) (*domain.WriteOffResult, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	current, err := getTransaction(ctx, tx, id, true)
	if err != nil {
		return nil, err
	}
	expense, err := build(current)
	if err != nil {
		return nil, err
	}
	created, err := insertExpense(ctx, tx, expense)
	if err != nil {
		return nil, err
	}

	updated, err := scanTransaction(tx.QueryRow(ctx, `
		UPDATE transactions
		SET paid_amount = total, payment_status = $2, updated_at = NOW()
		WHERE id = $1
		RETURNING `+transactionColumns,
		id, string(domain.PaymentStatusPaid),
	))
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return &domain.WriteOffResult{Transaction: updated, Expense: created}, nil
}

func getTransaction(ctx context.Context, q querier, id string, forUpdate bool) (*domain.Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM transactions WHERE id = $1`
	if forUpdate {
		query += " FOR UPDATE"
	}
	t, err := scanTransaction(q.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.NewNotFoundError("transaction", id, domain.ErrTransactionNotFound)
		}
		return nil, err
	}
	return t, nil
}

func scanTransaction(row pgx.Row) (*domain.Transaction, error) {
	var (
		t              domain.Transaction
		total, paid    pgtype.Numeric
		status         string
		paymentAccount pgtype.Text
	)
	if err := row.Scan(&t.ID, &t.CustomerName, &total, &paid, &status, &paymentAccount,
		&t.CreatedBy, &t.CreatedAt, &t.UpdatedAt); err != nil {
		return nil, err
	}
	t.Total = pgNumericToDecimal(total)
	t.PaidAmount = pgNumericToDecimal(paid)
	t.PaymentStatus = domain.PaymentStatus(status)
	t.PaymentAccountID = pgTextToStringPtr(paymentAccount)
	return &t, nil
}
