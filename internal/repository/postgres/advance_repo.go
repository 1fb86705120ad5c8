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

const (
	advanceColumns   = `id, employee_id, employee_name, amount, account_id, notes, advance_date, remaining_amount, created_by, created_at`
	repaymentColumns = `id, advance_id, amount, repayment_date, recorded_by, credited, created_at`
)

// AdvanceRepository implements domain.AdvanceRepository using PostgreSQL
type AdvanceRepository struct {
	pool *pgxpool.Pool
}

// NewAdvanceRepository creates a new AdvanceRepository
func NewAdvanceRepository(pool *pgxpool.Pool) *AdvanceRepository {
	return &AdvanceRepository{pool: pool}
}

// Create stores an advance and debits the funding account in the same transaction
func (r *AdvanceRepository) Create(ctx context.Context, advance *domain.EmployeeAdvance, posting *domain.Posting, guard domain.BalanceGuard) (*domain.EmployeeAdvance, error) {
	id := advance.ID
	if id == "" {
		id = uuid.NewString()
	}
	amount, err := decimalToPgNumeric(advance.Amount)
	if err != nil {
		return nil, fmt.Errorf("invalid amount: %w", err)
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	created, err := scanAdvance(tx.QueryRow(ctx, `
		INSERT INTO employee_advances (id, employee_id, employee_name, amount, account_id, notes, advance_date, remaining_amount, created_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $4, $8)
		RETURNING `+advanceColumns,
		id, advance.EmployeeID, advance.EmployeeName, amount, advance.AccountID,
		advance.Notes, advance.Date, advance.CreatedBy,
	))
	if err != nil {
		return nil, mapDataError(err)
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
	created.Repayments = []*domain.Repayment{}
	return created, nil
}

// GetByID retrieves an advance with its repayments
func (r *AdvanceRepository) GetByID(ctx context.Context, id string) (*domain.EmployeeAdvance, error) {
	return getAdvance(ctx, r.pool, id, false)
}

// List returns advances newest first, each with its repayments
func (r *AdvanceRepository) List(ctx context.Context, filter domain.AdvanceFilter) ([]*domain.EmployeeAdvance, error) {
	var (
		where []string
		args  []any
	)
	if filter.EmployeeID != nil {
		args = append(args, *filter.EmployeeID)
		where = append(where, fmt.Sprintf("employee_id = $%d", len(args)))
	}
	if filter.OutstandingOnly {
		where = append(where, "remaining_amount > 0")
	}

	query := `SELECT ` + advanceColumns + ` FROM employee_advances`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY advance_date DESC, created_at DESC"

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	advances := make([]*domain.EmployeeAdvance, 0)
	byID := make(map[string]*domain.EmployeeAdvance)
	ids := make([]string, 0)
	for rows.Next() {
		a, err := scanAdvance(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		a.Repayments = []*domain.Repayment{}
		advances = append(advances, a)
		byID[a.ID] = a
		ids = append(ids, a.ID)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return advances, nil
	}

	repayments, err := listRepayments(ctx, r.pool, ids)
	if err != nil {
		return nil, err
	}
	for _, rp := range repayments {
		if a, ok := byID[rp.AdvanceID]; ok {
			a.Repayments = append(a.Repayments, rp)
		}
	}
	return advances, nil
}

// AddRepayment appends a repayment under a row lock and applies its posting
func (r *AdvanceRepository) AddRepayment(ctx context.Context, advanceID string, repayment *domain.Repayment, posting *domain.Posting) (*domain.EmployeeAdvance, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	// 1. Lock the advance and re-check the bound
	advance, err := getAdvance(ctx, tx, advanceID, true)
	if err != nil {
		return nil, err
	}
	if repayment.Amount.GreaterThan(advance.RemainingAmount) {
		return nil, domain.NewValidationError(domain.ErrOverpayment,
			fmt.Sprintf("remaining %s", advance.RemainingAmount.StringFixed(2)))
	}

	// 2. Insert the repayment
	id := repayment.ID
	if id == "" {
		id = uuid.NewString()
	}
	amount, err := decimalToPgNumeric(repayment.Amount)
	if err != nil {
		return nil, fmt.Errorf("invalid amount: %w", err)
	}
	created, err := scanRepayment(tx.QueryRow(ctx, `
		INSERT INTO advance_repayments (id, advance_id, amount, repayment_date, recorded_by, credited)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING `+repaymentColumns,
		id, advance.ID, amount, repayment.Date, repayment.RecordedBy, repayment.Credited,
	))
	if err != nil {
		return nil, mapDataError(err)
	}
	advance.Repayments = append(advance.Repayments, created)
	advance.RecomputeRemaining()

	// 3. Store the new remainder
	remaining, err := decimalToPgNumeric(advance.RemainingAmount)
	if err != nil {
		return nil, fmt.Errorf("invalid remaining amount: %w", err)
	}
	if _, err := tx.Exec(ctx, `UPDATE employee_advances SET remaining_amount = $2 WHERE id = $1`, advance.ID, remaining); err != nil {
		return nil, mapDataError(err)
	}

	// 4. Credit the funding account
	if posting != nil {
		ref := advance.ID
		posting.RefID = &ref
		if _, err := applyPosting(ctx, tx, posting, domain.BalanceGuard{}); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return advance, nil
}

// Delete removes an advance with its repayments and applies the reversal built from it
func (r *AdvanceRepository) Delete(ctx context.Context, id string, reverse func(a *domain.EmployeeAdvance) *domain.Posting) (*domain.EmployeeAdvance, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	advance, err := getAdvance(ctx, tx, id, true)
	if err != nil {
		return nil, err
	}

	if posting := reverse(advance); posting != nil {
		if _, err := applyPosting(ctx, tx, posting, domain.BalanceGuard{}); err != nil {
			return nil, err
		}
	}

	if _, err := tx.Exec(ctx, `DELETE FROM advance_repayments WHERE advance_id = $1`, id); err != nil {
		return nil, err
	}
	if _, err := tx.Exec(ctx, `DELETE FROM employee_advances WHERE id = $1`, id); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return advance, nil
}

func getAdvance(ctx context.Context, q querier, id string, forUpdate bool) (*domain.EmployeeAdvance, error) {
	query := `SELECT ` + advanceColumns + ` FROM employee_advances WHERE id = $1`
	if forUpdate {
		query += " FOR UPDATE"
	}
	advance, err := scanAdvance(q.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.NewNotFoundError("advance", id, domain.ErrAdvanceNotFound)
		}
		return nil, err
	}

	repayments, err := listRepayments(ctx, q, []string{id})
	if err != nil {
		return nil, err
	}
	advance.Repayments = repayments
	return advance, nil
}

func listRepayments(ctx context.Context, q querier, advanceIDs []string) ([]*domain.Repayment, error) {
	rows, err := q.Query(ctx, `
		SELECT `+repaymentColumns+` FROM advance_repayments
		WHERE advance_id = ANY($1)
		ORDER BY repayment_date, created_at`, advanceIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := make([]*domain.Repayment, 0)
	for rows.Next() {
		rp, err := scanRepayment(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, rp)
	}
	return result, rows.Err()
}

func scanAdvance(row pgx.Row) (*domain.EmployeeAdvance, error) {
	var (
		a                 domain.EmployeeAdvance
		amount, remaining pgtype.Numeric
	)
	if err := row.Scan(&a.ID, &a.EmployeeID, &a.EmployeeName, &amount, &a.AccountID, &a.Notes,
		&a.Date, &remaining, &a.CreatedBy, &a.CreatedAt); err != nil {
		return nil, err
	}
	a.Amount = pgNumericToDecimal(amount)
	a.RemainingAmount = pgNumericToDecimal(remaining)
	return &a, nil
}

func scanRepayment(row pgx.Row) (*domain.Repayment, error) {
	var (
		rp     domain.Repayment
		amount pgtype.Numeric
	)
	if err := row.Scan(&rp.ID, &rp.AdvanceID, &amount, &rp.Date, &rp.RecordedBy, &rp.Credited, &rp.CreatedAt); err != nil {
		return nil, err
	}
	rp.Amount = pgNumericToDecimal(amount)
	return &rp, nil
}
