package service

import (
	"context"
	"testing"
	"time"

	"github.com/dafibh/kaskecil/kaskecil-backend/internal/domain"
	"github.com/dafibh/kaskecil/kaskecil-backend/internal/testutil"
	"github.com/dafibh/kaskecil/kaskecil-backend/internal/util"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var wib = time.FixedZone("WIB", 7*60*60)

// kasKecilLedger holds 500000 now: 350000 opened two days ago, +200000
// yesterday and -50000 today
func kasKecilLedger(today time.Time) (*ReportService, *testutil.MockLedger) {
	ledger := testutil.NewMockLedger()
	ledger.AddAccount(&domain.Account{ID: "kas", Name: "Kas Kecil", Type: domain.AccountTypeAsset, Balance: dec("500000")})
	ledger.AddPosting(&domain.Posting{AccountID: "kas", Amount: dec("350000"), Kind: domain.PostingKindOpening, PostedAt: today.AddDate(0, 0, -2)})
	ledger.AddPosting(&domain.Posting{AccountID: "kas", Amount: dec("200000"), Kind: domain.PostingKindSaleIncome, PostedAt: today.AddDate(0, 0, -1)})
	ledger.AddPosting(&domain.Posting{AccountID: "kas", Amount: dec("-50000"), Kind: domain.PostingKindExpense, PostedAt: today})

	svc := NewReportService(testutil.NewMockAccountRepository(ledger), testutil.NewMockPostingRepository(ledger),
		ReportConfig{Location: wib})
	return svc, ledger
}

func TestBalanceAsOf_KasKecilScenario(t *testing.T) {
	today := time.Date(2026, 5, 10, 10, 0, 0, 0, wib)
	svc, _ := kasKecilLedger(today)
	ctx := context.Background()

	endOfYesterday := util.EndOfDay(today.AddDate(0, 0, -1), wib)
	balance, err := svc.BalanceAsOf(ctx, "kas", endOfYesterday)
	require.NoError(t, err)
	assert.Equal(t, "550000", balance.String())

	endOfDayBefore := util.EndOfDay(today.AddDate(0, 0, -2), wib)
	balance, err = svc.BalanceAsOf(ctx, "kas", endOfDayBefore)
	require.NoError(t, err)
	assert.Equal(t, "350000", balance.String())
}

func TestBalanceAsOf_RoundTrip(t *testing.T) {
	today := time.Date(2026, 5, 10, 10, 0, 0, 0, wib)
	svc, ledger := kasKecilLedger(today)
	ctx := context.Background()

	now, err := svc.BalanceAsOf(ctx, "kas", today.Add(time.Hour))
	require.NoError(t, err)
	assert.True(t, now.Equal(ledger.Balance("kas")))

	future, err := svc.BalanceAsOf(ctx, "kas", today.AddDate(1, 0, 0))
	require.NoError(t, err)
	assert.True(t, future.Equal(ledger.Balance("kas")))

	beforeEverything, err := svc.BalanceAsOf(ctx, "kas", today.AddDate(0, 0, -3))
	require.NoError(t, err)
	assert.True(t, beforeEverything.IsZero())
}

func TestBalanceAsOf_CutoffIsInclusive(t *testing.T) {
	today := time.Date(2026, 5, 10, 10, 0, 0, 0, wib)
	svc, _ := kasKecilLedger(today)

	atPosting, err := svc.BalanceAsOf(context.Background(), "kas", today)
	require.NoError(t, err)
	assert.Equal(t, "500000", atPosting.String())

	justBefore, err := svc.BalanceAsOf(context.Background(), "kas", today.Add(-time.Nanosecond))
	require.NoError(t, err)
	assert.Equal(t, "550000", justBefore.String())
}

func TestBalanceAsOf_UnknownAccount(t *testing.T) {
	svc, _ := kasKecilLedger(time.Now())
	_, err := svc.BalanceAsOf(context.Background(), "missing", time.Now())
	assert.ErrorIs(t, err, domain.ErrAccountNotFound)
}

func assertClosingIdentity(t *testing.T, r *domain.CashFlowReport) {
	t.Helper()
	expected := r.OpeningBalance.Add(r.Income).Sub(r.Expense).Sub(r.Advances)
	assert.True(t, r.ClosingBalance.Equal(expected), "closing %s != %s", r.ClosingBalance, expected)
}

func TestPeriodCashFlow_SingleDay(t *testing.T) {
	today := time.Date(2026, 5, 10, 10, 0, 0, 0, wib)
	svc, _ := kasKecilLedger(today)

	report, err := svc.PeriodCashFlow(context.Background(), "kas", today, today)
	require.NoError(t, err)

	assert.Equal(t, "550000", report.OpeningBalance.String())
	assert.Equal(t, "500000", report.ClosingBalance.String())
	assert.True(t, report.Income.IsZero())
	assert.Equal(t, "50000", report.Expense.String())
	assert.Len(t, report.Postings, 1)
	assert.Equal(t, "-50000", report.Breakdown[domain.PostingKindExpense].String())
	assert.Equal(t, time.Date(2026, 5, 9, 23, 59, 59, 999999999, wib), report.OpeningCutoff)
	assert.Equal(t, time.Date(2026, 5, 10, 23, 59, 59, 999999999, wib), report.ClosingCutoff)
	assertClosingIdentity(t, report)
}

func TestPeriodCashFlow_MultiDay(t *testing.T) {
	today := time.Date(2026, 5, 10, 10, 0, 0, 0, wib)
	svc, ledger := kasKecilLedger(today)
	ledger.AddPosting(&domain.Posting{AccountID: "kas", Amount: dec("-30000"), Kind: domain.PostingKindAdvanceGrant, PostedAt: today.AddDate(0, 0, -1).Add(time.Hour)})
	ledger.AddPosting(&domain.Posting{AccountID: "kas", Amount: dec("10000"), Kind: domain.PostingKindAdvanceRepayment, PostedAt: today.AddDate(0, 0, -1).Add(2 * time.Hour)})
	ledger.AddPosting(&domain.Posting{AccountID: "kas", Amount: dec("25000"), Kind: domain.PostingKindTransferIn, PostedAt: today.Add(time.Hour)})
	// keep the stored balance in step with the extra postings
	account := ledger.Accounts["kas"]
	account.Balance = dec("505000")

	report, err := svc.PeriodCashFlow(context.Background(), "kas", today.AddDate(0, 0, -1), today)
	require.NoError(t, err)

	assert.Equal(t, "350000", report.OpeningBalance.String())
	assert.Equal(t, "225000", report.Income.String())
	assert.Equal(t, "50000", report.Expense.String())
	assert.Equal(t, "20000", report.Advances.String())
	assert.Equal(t, "505000", report.ClosingBalance.String())
	assertClosingIdentity(t, report)
}

func TestPeriodCashFlow_PastRangeExcludesLaterPostings(t *testing.T) {
	today := time.Date(2026, 5, 10, 10, 0, 0, 0, wib)
	svc, _ := kasKecilLedger(today)
	yesterday := today.AddDate(0, 0, -1)

	report, err := svc.PeriodCashFlow(context.Background(), "kas", yesterday, yesterday)
	require.NoError(t, err)
	assert.Equal(t, "350000", report.OpeningBalance.String())
	assert.Equal(t, "200000", report.Income.String())
	assert.Equal(t, "550000", report.ClosingBalance.String())
	assertClosingIdentity(t, report)
}

func TestPeriodCashFlow_EmptyRange(t *testing.T) {
	today := time.Date(2026, 5, 10, 10, 0, 0, 0, wib)
	svc, _ := kasKecilLedger(today)
	quiet := today.AddDate(0, 0, -10)

	report, err := svc.PeriodCashFlow(context.Background(), "kas", quiet, quiet)
	require.NoError(t, err)
	assert.Empty(t, report.Postings)
	assert.True(t, report.OpeningBalance.Equal(report.ClosingBalance))
	assert.True(t, report.Income.IsZero())
	assertClosingIdentity(t, report)
}

func TestPeriodCashFlow_InvalidRange(t *testing.T) {
	today := time.Date(2026, 5, 10, 10, 0, 0, 0, wib)
	svc, _ := kasKecilLedger(today)

	_, err := svc.PeriodCashFlow(context.Background(), "kas", today, today.AddDate(0, 0, -1))
	assert.ErrorIs(t, err, domain.ErrInvalidDateRange)
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestPeriodCashFlow_DayBoundaryUsesReportZone(t *testing.T) {
	// 2026-05-10 23:30 UTC is already 2026-05-11 in Jakarta
	ledger := testutil.NewMockLedger()
	ledger.AddAccount(&domain.Account{ID: "kas", Name: "Kas Kecil", Type: domain.AccountTypeAsset, Balance: dec("1000")})
	ledger.AddPosting(&domain.Posting{AccountID: "kas", Amount: dec("1000"), Kind: domain.PostingKindSaleIncome, PostedAt: time.Date(2026, 5, 10, 23, 30, 0, 0, time.UTC)})
	svc := NewReportService(testutil.NewMockAccountRepository(ledger), testutil.NewMockPostingRepository(ledger), ReportConfig{Location: wib})

	may11 := time.Date(2026, 5, 11, 0, 0, 0, 0, wib)
	report, err := svc.PeriodCashFlow(context.Background(), "kas", may11, may11)
	require.NoError(t, err)
	assert.Equal(t, "1000", report.Income.String())
}

func TestPettyCashDailyReport(t *testing.T) {
	today := time.Date(2026, 5, 10, 10, 0, 0, 0, wib)
	svc, _ := kasKecilLedger(today)

	report, err := svc.PettyCashDailyReport(context.Background(), today)
	require.NoError(t, err)
	assert.Equal(t, "kas", report.AccountID)
	assert.Equal(t, "500000", report.ClosingBalance.String())
}

func TestPettyCashDailyReport_MissingAccount(t *testing.T) {
	ledger := testutil.NewMockLedger()
	svc := NewReportService(testutil.NewMockAccountRepository(ledger), testutil.NewMockPostingRepository(ledger), ReportConfig{Location: wib})

	_, err := svc.PettyCashDailyReport(context.Background(), time.Now())
	assert.ErrorIs(t, err, domain.ErrPettyCashNotFound)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestReconcile(t *testing.T) {
	today := time.Date(2026, 5, 10, 10, 0, 0, 0, wib)
	svc, ledger := kasKecilLedger(today)
	ctx := context.Background()

	report, err := svc.Reconcile(ctx, "kas")
	require.NoError(t, err)
	assert.True(t, report.Balanced())
	require.Len(t, report.Lines, 3)
	assert.Equal(t, "350000", report.Lines[0].RunningBalance.String())
	assert.Equal(t, "550000", report.Lines[1].RunningBalance.String())
	assert.Equal(t, "500000", report.Lines[2].RunningBalance.String())

	ledger.Accounts["kas"].Balance = dec("510000")
	report, err = svc.Reconcile(ctx, "kas")
	require.NoError(t, err)
	assert.False(t, report.Balanced())
	assert.Equal(t, "10000", report.Difference.String())
}

func TestReconcileAll(t *testing.T) {
	today := time.Date(2026, 5, 10, 10, 0, 0, 0, wib)
	svc, ledger := kasKecilLedger(today)
	ledger.AddAccount(&domain.Account{ID: "bank", Name: "Bank", Type: domain.AccountTypeAsset, Balance: dec("7")})

	reports, err := svc.ReconcileAll(context.Background())
	require.NoError(t, err)
	require.Len(t, reports, 2)
	for _, r := range reports {
		assert.Nil(t, r.Lines)
		if r.AccountID == "bank" {
			assert.Equal(t, "7", r.Difference.String())
		} else {
			assert.True(t, r.Balanced())
		}
	}
}

func TestReportService_EndToEndWithServices(t *testing.T) {
	ledger := testutil.NewMockLedger()
	accountRepo := testutil.NewMockAccountRepository(ledger)
	postingRepo := testutil.NewMockPostingRepository(ledger)
	accounts := NewAccountService(accountRepo, postingRepo, DefaultLedgerPolicy())
	transfers := NewTransferService(accountRepo, testutil.NewMockAtomicTransferRepository(ledger), postingRepo, DefaultLedgerPolicy())
	reports := NewReportService(accountRepo, postingRepo, ReportConfig{Location: wib})
	ctx := context.Background()

	kas, err := accounts.CreateAccount(ctx, admin, domain.CreateAccountInput{Name: "Kas Kecil", Type: domain.AccountTypeAsset, InitialBalance: dec("100000")})
	require.NoError(t, err)
	bank, err := accounts.CreateAccount(ctx, admin, domain.CreateAccountInput{Name: "Bank", Type: domain.AccountTypeAsset, InitialBalance: dec("900000")})
	require.NoError(t, err)
	_, err = transfers.Transfer(ctx, cashier, domain.TransferInput{FromAccountID: bank.ID, ToAccountID: kas.ID, Amount: dec("50000")})
	require.NoError(t, err)

	report, err := reports.PettyCashDailyReport(ctx, time.Now())
	require.NoError(t, err)
	assert.True(t, report.OpeningBalance.IsZero())
	assert.Equal(t, "150000", report.Income.String())
	assert.Equal(t, "150000", report.ClosingBalance.String())
	assertClosingIdentity(t, report)

	for _, id := range []string{kas.ID, bank.ID} {
		r, err := reports.Reconcile(ctx, id)
		require.NoError(t, err)
		assert.True(t, r.Balanced())
	}
}

// backdatedLedger wires expense, advance and report services over one ledger
// holding 500000 in Kas Kecil since 2026-03-31, with the clock at 2026-04-02
// 14:00 in Jakarta
func backdatedLedger() (*ExpenseService, *AdvanceService, *ReportService, *testutil.MockLedger) {
	now := time.Date(2026, 4, 2, 14, 0, 0, 0, wib)
	ledger := testutil.NewMockLedger()
	ledger.Now = func() time.Time { return now }
	seedAccount(ledger, "kas", "Kas Kecil", "500000", time.Date(2026, 3, 31, 8, 0, 0, 0, wib))

	accountRepo := testutil.NewMockAccountRepository(ledger)
	expenses := NewExpenseService(accountRepo, testutil.NewMockExpenseRepository(ledger), DefaultLedgerPolicy())
	expenses.SetLocation(wib)
	expenses.now = func() time.Time { return now }
	advances := NewAdvanceService(accountRepo, testutil.NewMockAdvanceRepository(ledger), DefaultLedgerPolicy())
	advances.SetLocation(wib)
	advances.now = func() time.Time { return now }
	reports := NewReportService(accountRepo, testutil.NewMockPostingRepository(ledger), ReportConfig{Location: wib})
	return expenses, advances, reports, ledger
}

func TestPeriodCashFlow_BackdatedExpenseLandsOnItsDay(t *testing.T) {
	expenses, _, reports, _ := backdatedLedger()
	ctx := context.Background()
	april1 := time.Date(2026, 4, 1, 0, 0, 0, 0, wib)
	april2 := time.Date(2026, 4, 2, 0, 0, 0, 0, wib)

	expense, err := expenses.RecordExpense(ctx, cashier, domain.RecordExpenseInput{
		Description: "Tinta printer",
		Amount:      dec("50000"),
		AccountID:   "kas",
		Date:        april1,
	})
	require.NoError(t, err)

	day1, err := reports.PeriodCashFlow(ctx, "kas", april1, april1)
	require.NoError(t, err)
	assert.Equal(t, "500000", day1.OpeningBalance.String())
	assert.Equal(t, "50000", day1.Expense.String())
	assert.Equal(t, "450000", day1.ClosingBalance.String())
	assertClosingIdentity(t, day1)

	balance, err := reports.BalanceAsOf(ctx, "kas", util.EndOfDay(april1, wib))
	require.NoError(t, err)
	assert.Equal(t, "450000", balance.String())

	day2, err := reports.PeriodCashFlow(ctx, "kas", april2, april2)
	require.NoError(t, err)
	assert.Equal(t, "450000", day2.OpeningBalance.String())
	assert.True(t, day2.Expense.IsZero())

	// The expense book and the cash flow agree on the day
	listed, err := expenses.ListExpenses(ctx, domain.ExpenseFilter{From: &april1, To: ptrTime(util.EndOfDay(april1, wib))})
	require.NoError(t, err)
	require.Len(t, listed, 1)
	assert.Equal(t, expense.ID, listed[0].ID)

	// Deleting it clears the day it was booked on
	require.NoError(t, expenses.DeleteExpense(ctx, admin, expense.ID))
	day1, err = reports.PeriodCashFlow(ctx, "kas", april1, april1)
	require.NoError(t, err)
	assert.Equal(t, "500000", day1.ClosingBalance.String())
	assert.True(t, day1.Expense.IsZero())
	assertClosingIdentity(t, day1)
}

func TestPeriodCashFlow_BackdatedAdvanceAndRepayment(t *testing.T) {
	_, advances, reports, _ := backdatedLedger()
	ctx := context.Background()
	march31 := time.Date(2026, 3, 31, 0, 0, 0, 0, wib)
	april1 := time.Date(2026, 4, 1, 0, 0, 0, 0, wib)
	april2 := time.Date(2026, 4, 2, 0, 0, 0, 0, wib)

	advance, err := advances.GrantAdvance(ctx, cashier, domain.GrantAdvanceInput{
		EmployeeID:   "emp-1",
		EmployeeName: "Andi",
		Amount:       dec("100000"),
		AccountID:    "kas",
		Date:         march31,
	})
	require.NoError(t, err)
	_, err = advances.RepayAdvance(ctx, cashier, advance.ID, dec("40000"), april1)
	require.NoError(t, err)
	// Dated today, so it posts at the current time
	_, err = advances.RepayAdvance(ctx, cashier, advance.ID, dec("10000"), time.Time{})
	require.NoError(t, err)

	tests := []struct {
		name     string
		day      time.Time
		advances string
		income   string
		closing  string
	}{
		{"grant day", march31, "100000", "500000", "400000"},
		{"first repayment", april1, "-40000", "0", "440000"},
		{"today", april2, "-10000", "0", "450000"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, err := reports.PeriodCashFlow(ctx, "kas", tt.day, tt.day)
			require.NoError(t, err)
			assert.Equal(t, tt.advances, r.Advances.String())
			assert.Equal(t, tt.income, r.Income.String())
			assert.Equal(t, tt.closing, r.ClosingBalance.String())
			assertClosingIdentity(t, r)
		})
	}
}

func ptrTime(t time.Time) *time.Time {
	return &t
}
