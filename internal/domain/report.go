package domain

import (
	"context"
	"io"
	"time"

	"github.com/shopspring/decimal"
)

// CashFlowReport describes one account over a closed range of days.
// ClosingBalance == OpeningBalance + Income - Expense - Advances.
type CashFlowReport struct {
	AccountID      string                          `json:"accountId"`
	AccountName    string                          `json:"accountName"`
	From           time.Time                       `json:"from"`
	To             time.Time                       `json:"to"`
	OpeningCutoff  time.Time                       `json:"openingCutoff"`
	ClosingCutoff  time.Time                       `json:"closingCutoff"`
	OpeningBalance decimal.Decimal                 `json:"openingBalance"`
	Income         decimal.Decimal                 `json:"income"`
	Expense        decimal.Decimal                 `json:"expense"`
	Advances       decimal.Decimal                 `json:"advances"`
	ClosingBalance decimal.Decimal                 `json:"closingBalance"`
	Breakdown      map[PostingKind]decimal.Decimal `json:"breakdown"`
	Postings       []*Posting                      `json:"postings"`
}

// ReconciliationLine is one journal entry with the running balance after it
type ReconciliationLine struct {
	Posting        *Posting        `json:"posting"`
	RunningBalance decimal.Decimal `json:"runningBalance"`
}

// ReconciliationReport compares the balance rebuilt from the journal with the stored one
type ReconciliationReport struct {
	AccountID         string                `json:"accountId"`
	AccountName       string                `json:"accountName"`
	CalculatedBalance decimal.Decimal       `json:"calculatedBalance"`
	ActualBalance     decimal.Decimal       `json:"actualBalance"`
	Difference        decimal.Decimal       `json:"difference"`
	Lines             []*ReconciliationLine `json:"lines,omitempty"`
	GeneratedAt       time.Time             `json:"generatedAt"`
}

// Balanced reports whether the stored balance matches the journal
func (r *ReconciliationReport) Balanced() bool {
	return r.Difference.IsZero()
}

// ReportStore keeps archived reports
type ReportStore interface {
	Put(ctx context.Context, key string, body io.Reader, size int64, contentType string) error
	Get(ctx context.Context, key string) (io.ReadCloser, error)
}

// ArchiveQueue schedules report archiving outside the request path
type ArchiveQueue interface {
	EnqueueDailyArchive(ctx context.Context, day time.Time) (string, error)
}
