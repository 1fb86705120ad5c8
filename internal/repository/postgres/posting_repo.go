package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/dafibh/kaskecil/kaskecil-backend/internal/domain"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

const postingColumns = `id, account_id, amount, kind, ref_id, description, actor_id, posted_at`

// PostingRepository implements domain.PostingRepository using PostgreSQL
type PostingRepository struct {
	pool *pgxpool.Pool
}

// NewPostingRepository creates a new PostingRepository
func NewPostingRepository(pool *pgxpool.Pool) *PostingRepository {
	return &PostingRepository{pool: pool}
}

// List returns the postings matching filter in posting order
func (r *PostingRepository) List(ctx context.Context, filter domain.PostingFilter) ([]*domain.Posting, error) {
	var (
		where []string
		args  []any
	)
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if filter.AccountID != "" {
		where = append(where, "account_id = "+arg(filter.AccountID))
	}
	if filter.After != nil {
		where = append(where, "posted_at > "+arg(*filter.After))
	}
	if filter.Until != nil {
		where = append(where, "posted_at <= "+arg(*filter.Until))
	}
	if filter.RefID != nil {
		where = append(where, "ref_id = "+arg(*filter.RefID))
	}
	if len(filter.Kinds) > 0 {
		kinds := make([]string, len(filter.Kinds))
		for i, k := range filter.Kinds {
			kinds[i] = string(k)
		}
		where = append(where, "kind = ANY("+arg(kinds)+")")
	}

	query := `SELECT ` + postingColumns + ` FROM postings`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY posted_at, seq"

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := make([]*domain.Posting, 0)
	for rows.Next() {
		p, err := scanPosting(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, p)
	}
	return result, rows.Err()
}

// insertPosting appends posting to the journal, filling in ID and PostedAt
func insertPosting(ctx context.Context, q querier, posting *domain.Posting) error {
	if posting.ID == "" {
		posting.ID = uuid.NewString()
	}
	amount, err := decimalToPgNumeric(posting.Amount)
	if err != nil {
		return fmt.Errorf("invalid amount: %w", err)
	}

	err = q.QueryRow(ctx, `
		INSERT INTO postings (id, account_id, amount, kind, ref_id, description, actor_id, posted_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, COALESCE($8, clock_timestamp()))
		RETURNING posted_at`,
		posting.ID, posting.AccountID, amount, string(posting.Kind),
		stringPtrToPgText(posting.RefID), posting.Description, posting.ActorID,
		timeToPgTimestamptz(posting.PostedAt),
	).Scan(&posting.PostedAt)
	if err != nil {
		return fmt.Errorf("failed to insert posting: %w", mapDataError(err))
	}
	return nil
}

func scanPosting(row pgx.Row) (*domain.Posting, error) {
	var (
		p      domain.Posting
		amount pgtype.Numeric
		kind   string
		refID  pgtype.Text
	)
	if err := row.Scan(&p.ID, &p.AccountID, &amount, &kind, &refID, &p.Description, &p.ActorID, &p.PostedAt); err != nil {
		return nil, err
	}
	p.Amount = pgNumericToDecimal(amount)
	p.Kind = domain.PostingKind(kind)
	p.RefID = pgTextToStringPtr(refID)
	return &p, nil
}
