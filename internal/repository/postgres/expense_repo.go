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

const expenseColumns = `id, description, amount, account_id, category, ref_id, expense_date, created_by, created_at`

// ExpenseRepository implements domain.ExpenseRepository using PostgreSQL
type ExpenseRepository struct {
	pool *pgxpool.Pool
}

// NewExpenseRepository creates a new ExpenseRepository
func NewExpenseRepository(pool *pgxpool.Pool) *ExpenseRepository {
	return &ExpenseRepository{pool: pool}
}

// Create stores an expense and applies its posting in the same transaction
func (r *ExpenseRepository) Create(ctx context.Context, expense *domain.Expense, posting *domain.Posting, guard domain.BalanceGuard) (*domain.Expense, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	created, err := insertExpense(ctx, tx, expense)
	if err != nil {
		return nil, err
	}
	if posting != nil {
		ref := created.ID
		posting.RefID = &ref
		if _, err := applyPosting(ctx, tx, posting, guard); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return created, nil
}

// GetByID retrieves an expense by its ID
func (r *ExpenseRepository) GetByID(ctx context.Context, id string) (*domain.Expense, error) {
	e, err := scanExpense(r.pool.QueryRow(ctx, `SELECT `+expenseColumns+` FROM expenses WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.NewNotFoundError("expense", id, domain.ErrExpenseNotFound)
		}
		return nil, err
	}
	return e, nil
}

// List returns expenses newest first
func (r *ExpenseRepository) List(ctx context.Context, filter domain.ExpenseFilter) ([]*domain.Expense, error) {
	var (
		where []string
		args  []any
	)
	if filter.AccountID != nil {
		args = append(args, *filter.AccountID)
		where = append(where, fmt.Sprintf("account_id = $%d", len(args)))
	}
	if filter.Category != nil {
		args = append(args, *filter.Category)
		where = append(where, fmt.Sprintf("category = $%d", len(args)))
	}
	if filter.From != nil {
		args = append(args, *filter.From)
		where = append(where, fmt.Sprintf("expense_date >= $%d", len(args)))
	}
	if filter.To != nil {
		args = append(args, *filter.To)
		where = append(where, fmt.Sprintf("expense_date <= $%d", len(args)))
	}

	query := `SELECT ` + expenseColumns + ` FROM expenses`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY expense_date DESC, created_at DESC"

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := make([]*domain.Expense, 0)
	for rows.Next() {
		e, err := scanExpense(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, e)
	}
	return result, rows.Err()
}

// Delete removes an expense and applies the reversal posting in the same transaction
func (r *ExpenseRepository) Delete(ctx context.Context, id string, posting *domain.Posting) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	result, err := tx.Exec(ctx, `DELETE FROM expenses WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if result.RowsAffected() == 0 {
		return domain.NewNotFoundError("expense", id, domain.ErrExpenseNotFound)
	}
	if posting != nil {
		if _, err := applyPosting(ctx, tx, posting, domain.BalanceGuard{}); err != nil {
			return err
		}
	}

	return tx.Commit(ctx)
}

func insertExpense(ctx context.Context, q querier, expense *domain.Expense) (*domain.Expense, error) {
	id := expense.ID
	if id == "" {
		id = uuid.NewString()
	}
	amount, err := decimalToPgNumeric(expense.Amount)
	if err != nil {
		return nil, fmt.Errorf("invalid amount: %w", err)
	}

	created, err := scanExpense(q.QueryRow(ctx, `
		INSERT INTO expenses (id, description, amount, account_id, category, ref_id, expense_date, created_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING `+expenseColumns,
		id, expense.Description, amount, stringPtrToPgText(expense.AccountID), expense.Category,
		stringPtrToPgText(expense.RefID), expense.Date, expense.CreatedBy,
	))
	if err != nil {
		return nil, fmt.Errorf("failed to insert expense: %w", mapDataError(err))
	}
	return created, nil
}

func scanExpense(row pgx.Row) (*domain.Expense, error) {
	var (
		e         domain.Expense
		amount    pgtype.Numeric
		accountID pgtype.Text
		refID     pgtype.Text
	)
	if err := row.Scan(&e.ID, &e.Description, &amount, &accountID, &e.Category, &refID,
		&e.Date, &e.CreatedBy, &e.CreatedAt); err != nil {
		return nil, err
	}
	e.Amount = pgNumericToDecimal(amount)
	e.AccountID = pgTextToStringPtr(accountID)
	e.RefID = pgTextToStringPtr(refID)
	return &e, nil
}
