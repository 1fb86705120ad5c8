package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/dafibh/kaskecil/kaskecil-backend/internal/domain"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

const accountColumns = `id, name, type, balance, is_payment_account, created_at, updated_at`

// AccountRepository implements domain.AccountRepository using PostgreSQL
type AccountRepository struct {
	pool *pgxpool.Pool
}

// NewAccountRepository creates a new AccountRepository
func NewAccountRepository(pool *pgxpool.Pool) *AccountRepository {
	return &AccountRepository{pool: pool}
}

// Create creates a new account and books its opening posting in the same transaction
func (r *AccountRepository) Create(ctx context.Context, account *domain.Account, opening *domain.Posting) (*domain.Account, error) {
	id := account.ID
	if id == "" {
		id = uuid.NewString()
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	created, err := scanAccount(tx.QueryRow(ctx, `
		INSERT INTO accounts (id, name, type, balance, is_payment_account)
		VALUES ($1, $2, $3, 0, $4)
		RETURNING `+accountColumns,
		id, account.Name, string(account.Type), account.IsPaymentAccount,
	))
	if err != nil {
		if isUniqueViolation(err, "accounts_name") {
			return nil, domain.ErrAccountNameTaken
		}
		return nil, mapDataError(err)
	}

	if opening != nil {
		opening.AccountID = created.ID
		created, err = applyPosting(ctx, tx, opening, domain.BalanceGuard{})
		if err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return created, nil
}

// GetByID retrieves an account by its ID
func (r *AccountRepository) GetByID(ctx context.Context, id string) (*domain.Account, error) {
	account, err := scanAccount(r.pool.QueryRow(ctx, `SELECT `+accountColumns+` FROM accounts WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.NewNotFoundError("account", id, domain.ErrAccountNotFound)
		}
		return nil, err
	}
	return account, nil
}

// GetByName retrieves an account by name, ignoring case
func (r *AccountRepository) GetByName(ctx context.Context, name string) (*domain.Account, error) {
	account, err := scanAccount(r.pool.QueryRow(ctx, `SELECT `+accountColumns+` FROM accounts WHERE LOWER(name) = LOWER($1)`, name))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.NewNotFoundError("account", name, domain.ErrAccountNotFound)
		}
		return nil, err
	}
	return account, nil
}

// List retrieves accounts ordered by name
func (r *AccountRepository) List(ctx context.Context, filter domain.AccountFilter) ([]*domain.Account, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+accountColumns+` FROM accounts
		WHERE ($1 = FALSE OR is_payment_account)
		ORDER BY name`, filter.PaymentOnly)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := make([]*domain.Account, 0)
	for rows.Next() {
		account, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, account)
	}
	return result, rows.Err()
}

// ApplyPosting moves the balance and appends the posting in one transaction
func (r *AccountRepository) ApplyPosting(ctx context.Context, posting *domain.Posting, guard domain.BalanceGuard) (*domain.Account, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	account, err := applyPosting(ctx, tx, posting, guard)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return account, nil
}

// SetBalance overwrites the balance without writing a posting
func (r *AccountRepository) SetBalance(ctx context.Context, id string, balance decimal.Decimal) (*domain.Account, error) {
	value, err := decimalToPgNumeric(balance)
	if err != nil {
		return nil, fmt.Errorf("invalid balance: %w", err)
	}
	account, err := scanAccount(r.pool.QueryRow(ctx, `
		UPDATE accounts SET balance = $2, updated_at = NOW()
		WHERE id = $1
		RETURNING `+accountColumns, id, value))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.NewNotFoundError("account", id, domain.ErrAccountNotFound)
		}
		return nil, mapDataError(err)
	}
	return account, nil
}

// applyPosting increments the balance with a single guarded UPDATE and
// inserts the posting on q. The UPDATE takes the row lock, so concurrent
// postings on the same account serialize.
func applyPosting(ctx context.Context, q querier, posting *domain.Posting, guard domain.BalanceGuard) (*domain.Account, error) {
	amount, err := decimalToPgNumeric(posting.Amount)
	if err != nil {
		return nil, fmt.Errorf("invalid amount: %w", err)
	}

	account, err := scanAccount(q.QueryRow(ctx, `
		UPDATE accounts SET balance = balance + $2, updated_at = NOW()
		WHERE id = $1 AND (NOT $3 OR $2::numeric >= 0 OR balance + $2 >= 0)
		RETURNING `+accountColumns,
		posting.AccountID, amount, guard.NoOverdraft,
	))
	if err != nil {
		if !errors.Is(err, pgx.ErrNoRows) {
			return nil, mapDataError(err)
		}
		var current pgtype.Numeric
		if err := q.QueryRow(ctx, `SELECT balance FROM accounts WHERE id = $1`, posting.AccountID).Scan(&current); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return nil, domain.NewNotFoundError("account", posting.AccountID, domain.ErrAccountNotFound)
			}
			return nil, err
		}
		return nil, &domain.InsufficientFundsError{
			AccountID: posting.AccountID,
			Balance:   pgNumericToDecimal(current),
			Requested: posting.Amount.Neg(),
		}
	}

	if err := insertPosting(ctx, q, posting); err != nil {
		return nil, err
	}
	return account, nil
}

func scanAccount(row pgx.Row) (*domain.Account, error) {
	var (
		a       domain.Account
		typ     string
		balance pgtype.Numeric
	)
	if err := row.Scan(&a.ID, &a.Name, &typ, &balance, &a.IsPaymentAccount, &a.CreatedAt, &a.UpdatedAt); err != nil {
		return nil, err
	}
	a.Type = domain.AccountType(typ)
	a.Balance = pgNumericToDecimal(balance)
	return &a, nil
}
