package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/dafibh/kaskecil/kaskecil-backend/internal/domain"
	"github.com/dafibh/kaskecil/kaskecil-backend/internal/util"
	"github.com/shopspring/decimal"
)

// DefaultPettyCashAccountName is the account the daily petty-cash report reads
const DefaultPettyCashAccountName = "Kas Kecil"

// ReportConfig holds settings for balance reconstruction
type ReportConfig struct {
	Location             *time.Location // Calendar days are cut in this zone
	PettyCashAccountName string
}

// DefaultReportConfig returns Jakarta time and the "Kas Kecil" account
func DefaultReportConfig() ReportConfig {
	loc, err := time.LoadLocation("Asia/Jakarta")
	if err != nil {
		loc = time.FixedZone("WIB", 7*60*60)
	}
	return ReportConfig{
		Location:             loc,
		PettyCashAccountName: DefaultPettyCashAccountName,
	}
}

// ReportService rebuilds past balances from the current balance and the journal
type ReportService struct {
	accountRepo   domain.AccountRepository
	postingRepo   domain.PostingRepository
	location      *time.Location
	pettyCashName string
	now           func() time.Time
}

// NewReportService creates a new ReportService
func NewReportService(accountRepo domain.AccountRepository, postingRepo domain.PostingRepository, config ReportConfig) *ReportService {
	defaults := DefaultReportConfig()
	if config.Location == nil {
		config.Location = defaults.Location
	}
	if strings.TrimSpace(config.PettyCashAccountName) == "" {
		config.PettyCashAccountName = defaults.PettyCashAccountName
	}
	return &ReportService{
		accountRepo:   accountRepo,
		postingRepo:   postingRepo,
		location:      config.Location,
		pettyCashName: config.PettyCashAccountName,
		now:           time.Now,
	}
}

// Location returns the zone used to cut calendar days
func (s *ReportService) Location() *time.Location {
	return s.location
}

// BalanceAsOf returns the balance the account had at cutoff. Postings made
// exactly at cutoff are part of it.
func (s *ReportService) BalanceAsOf(ctx context.Context, accountID string, cutoff time.Time) (decimal.Decimal, error) {
	account, err := s.accountRepo.GetByID(ctx, accountID)
	if err != nil {
		return decimal.Zero, err
	}
	later, err := s.postingRepo.List(ctx, domain.PostingFilter{AccountID: account.ID, After: &cutoff})
	if err != nil {
		return decimal.Zero, err
	}
	return account.Balance.Sub(sumPostings(later)), nil
}

// PeriodCashFlow reports the account over the calendar days from..to inclusive
func (s *ReportService) PeriodCashFlow(ctx context.Context, accountID string, from, to time.Time) (*domain.CashFlowReport, error) {
	fromDay := util.StartOfDay(from, s.location)
	toDay := util.StartOfDay(to, s.location)
	if fromDay.After(toDay) {
		return nil, domain.NewValidationError(domain.ErrInvalidDateRange,
			fromDay.Format(util.DateLayout)+" > "+toDay.Format(util.DateLayout))
	}
	openingCutoff := fromDay.Add(-time.Nanosecond)
	closingCutoff := toDay.AddDate(0, 0, 1).Add(-time.Nanosecond)

	account, err := s.accountRepo.GetByID(ctx, accountID)
	if err != nil {
		return nil, err
	}

	// One read covers both the period and everything after it
	postings, err := s.postingRepo.List(ctx, domain.PostingFilter{AccountID: account.ID, After: &openingCutoff})
	if err != nil {
		return nil, err
	}

	report := &domain.CashFlowReport{
		AccountID:     account.ID,
		AccountName:   account.Name,
		From:          fromDay,
		To:            toDay,
		OpeningCutoff: openingCutoff,
		ClosingCutoff: closingCutoff,
		Income:        decimal.Zero,
		Expense:       decimal.Zero,
		Advances:      decimal.Zero,
		Breakdown:     make(map[domain.PostingKind]decimal.Decimal),
		Postings:      make([]*domain.Posting, 0),
	}

	afterPeriod := decimal.Zero
	inPeriod := decimal.Zero
	for _, p := range postings {
		if p.PostedAt.After(closingCutoff) {
			afterPeriod = afterPeriod.Add(p.Amount)
			continue
		}
		inPeriod = inPeriod.Add(p.Amount)
		report.Postings = append(report.Postings, p)
		report.Breakdown[p.Kind] = report.Breakdown[p.Kind].Add(p.Amount)

		switch p.Kind.Category() {
		case domain.PostingCategoryExpense:
			report.Expense = report.Expense.Sub(p.Amount)
		case domain.PostingCategoryAdvance:
			report.Advances = report.Advances.Sub(p.Amount)
		default:
			report.Income = report.Income.Add(p.Amount)
		}
	}

	report.ClosingBalance = account.Balance.Sub(afterPeriod)
	report.OpeningBalance = report.ClosingBalance.Sub(inPeriod)
	return report, nil
}

// PettyCashDailyReport is the cash flow of the petty-cash account for one day
func (s *ReportService) PettyCashDailyReport(ctx context.Context, day time.Time) (*domain.CashFlowReport, error) {
	account, err := s.accountRepo.GetByName(ctx, s.pettyCashName)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.NewNotFoundError("account", s.pettyCashName, domain.ErrPettyCashNotFound)
		}
		return nil, err
	}
	return s.PeriodCashFlow(ctx, account.ID, day, day)
}

// Reconcile replays the whole journal of the account from zero and compares
// the result with the stored balance
func (s *ReportService) Reconcile(ctx context.Context, accountID string) (*domain.ReconciliationReport, error) {
	account, err := s.accountRepo.GetByID(ctx, accountID)
	if err != nil {
		return nil, err
	}
	postings, err := s.postingRepo.List(ctx, domain.PostingFilter{AccountID: account.ID})
	if err != nil {
		return nil, err
	}

	running := decimal.Zero
	lines := make([]*domain.ReconciliationLine, 0, len(postings))
	for _, p := range postings {
		running = running.Add(p.Amount)
		lines = append(lines, &domain.ReconciliationLine{Posting: p, RunningBalance: running})
	}

	return &domain.ReconciliationReport{
		AccountID:         account.ID,
		AccountName:       account.Name,
		CalculatedBalance: running,
		ActualBalance:     account.Balance,
		Difference:        account.Balance.Sub(running),
		Lines:             lines,
		GeneratedAt:       s.now(),
	}, nil
}

// ReconcileAll reconciles every account. Lines are left out.
func (s *ReportService) ReconcileAll(ctx context.Context) ([]*domain.ReconciliationReport, error) {
	accounts, err := s.accountRepo.List(ctx, domain.AccountFilter{})
	if err != nil {
		return nil, err
	}

	reports := make([]*domain.ReconciliationReport, 0, len(accounts))
	for _, account := range accounts {
		report, err := s.Reconcile(ctx, account.ID)
		if err != nil {
			return nil, err
		}
		report.Lines = nil
		reports = append(reports, report)
	}
	return reports, nil
}

func sumPostings(postings []*domain.Posting) decimal.Decimal {
	total := decimal.Zero
	for _, p := range postings {
		total = total.Add(p.Amount)
	}
	return total
}
