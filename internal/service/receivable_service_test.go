package service

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dafibh/kaskecil/kaskecil-backend/internal/domain"
	"github.com/dafibh/kaskecil/kaskecil-backend/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type receivableFixture struct {
	svc       *ReceivableService
	ledger    *testutil.MockLedger
	txRepo    *testutil.MockTransactionRepository
	publisher *testutil.MockEventPublisher
}

func newReceivableFixture() *receivableFixture {
	ledger := testutil.NewMockLedger()
	seedAccount(ledger, "kas", "Kas Kecil", "0", time.Now())
	ledger.AddAccount(&domain.Account{ID: "modal", Name: "Modal", Type: domain.AccountTypeEquity})

	txRepo := testutil.NewMockTransactionRepository(ledger)
	svc := NewReceivableService(testutil.NewMockAccountRepository(ledger), txRepo, testutil.NewMockPostingRepository(ledger))
	publisher := &testutil.MockEventPublisher{}
	svc.SetEventPublisher(publisher)
	return &receivableFixture{svc: svc, ledger: ledger, txRepo: txRepo, publisher: publisher}
}

func (f *receivableFixture) outstanding(id string, total, paid string) {
	f.txRepo.AddTransaction(&domain.Transaction{
		ID:           id,
		CustomerName: "Toko Maju",
		Total:        dec(total),
		PaidAmount:   dec(paid),
		CreatedAt:    time.Now(),
	})
}

func TestRecordSale_WithDownPayment(t *testing.T) {
	f := newReceivableFixture()

	tx, err := f.svc.RecordSale(context.Background(), cashier, domain.RecordSaleInput{
		CustomerName:     "Toko Maju",
		Total:            dec("100000"),
		PaidAmount:       dec("40000"),
		PaymentAccountID: "kas",
	})
	require.NoError(t, err)

	assert.Equal(t, domain.PaymentStatusOutstanding, tx.PaymentStatus)
	assert.True(t, tx.Remaining().Equal(dec("60000")))
	assert.True(t, f.ledger.Balance("kas").Equal(dec("40000")))

	payments, err := f.svc.ListPayments(context.Background(), tx.ID)
	require.NoError(t, err)
	require.Len(t, payments, 1)
	assert.Equal(t, domain.PostingKindSaleIncome, payments[0].Kind)
	assert.Equal(t, []string{"receivable.created"}, f.publisher.Types())
}

func TestRecordSale_FullyPaid(t *testing.T) {
	f := newReceivableFixture()

	tx, err := f.svc.RecordSale(context.Background(), cashier, domain.RecordSaleInput{
		CustomerName:     "Andi",
		Total:            dec("25000"),
		PaidAmount:       dec("25000"),
		PaymentAccountID: "kas",
	})
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentStatusPaid, tx.PaymentStatus)
}

func TestRecordSale_UnpaidNeedsNoAccount(t *testing.T) {
	f := newReceivableFixture()

	tx, err := f.svc.RecordSale(context.Background(), cashier, domain.RecordSaleInput{
		CustomerName: "Andi",
		Total:        dec("25000"),
	})
	require.NoError(t, err)
	assert.Nil(t, tx.PaymentAccountID)
	assert.Empty(t, f.ledger.PostingsFor("kas"))
}

func TestRecordSale_Validation(t *testing.T) {
	tests := []struct {
		name     string
		input    domain.RecordSaleInput
		expected error
	}{
		{"no customer", domain.RecordSaleInput{Total: dec("10")}, domain.ErrNameRequired},
		{"zero total", domain.RecordSaleInput{CustomerName: "A", Total: dec("0")}, domain.ErrAmountNotPositive},
		{"negative paid", domain.RecordSaleInput{CustomerName: "A", Total: dec("10"), PaidAmount: dec("-1")}, domain.ErrValidation},
		{"total with three decimals", domain.RecordSaleInput{CustomerName: "A", Total: dec("10.001")}, domain.ErrAmountPrecision},
		{"paid with three decimals", domain.RecordSaleInput{CustomerName: "A", Total: dec("10"), PaidAmount: dec("5.555"), PaymentAccountID: "kas"}, domain.ErrAmountPrecision},
		{"paid above total", domain.RecordSaleInput{CustomerName: "A", Total: dec("10"), PaidAmount: dec("11"), PaymentAccountID: "kas"}, domain.ErrPaidExceedsTotal},
		{"paid without account", domain.RecordSaleInput{CustomerName: "A", Total: dec("10"), PaidAmount: dec("5")}, domain.ErrPaymentAccountNeeded},
		{"not a payment account", domain.RecordSaleInput{CustomerName: "A", Total: dec("10"), PaidAmount: dec("5"), PaymentAccountID: "modal"}, domain.ErrNotPaymentAccount},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newReceivableFixture()
			_, err := f.svc.RecordSale(context.Background(), cashier, tt.input)
			assert.ErrorIs(t, err, tt.expected)
			assert.Empty(t, f.ledger.Transactions)
		})
	}
}

func TestPayReceivable_BoundedByRemaining(t *testing.T) {
	f := newReceivableFixture()
	f.outstanding("tx-1", "100000", "40000")
	ctx := context.Background()

	_, err := f.svc.PayReceivable(ctx, cashier, "tx-1", dec("70000"), "kas")
	assert.ErrorIs(t, err, domain.ErrOverpayment)
	assert.True(t, f.ledger.Balance("kas").IsZero())

	result, err := f.svc.PayReceivable(ctx, cashier, "tx-1", dec("60000"), "kas")
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentStatusPaid, result.Transaction.PaymentStatus)
	assert.True(t, result.Transaction.PaidAmount.Equal(dec("100000")))
	assert.True(t, result.Account.Balance.Equal(dec("60000")))
	assert.Equal(t, domain.PostingKindReceivablePayment, result.Posting.Kind)
	assert.Equal(t, []string{"receivable.paid", "account.balance_changed"}, f.publisher.Types())

	_, err = f.svc.PayReceivable(ctx, cashier, "tx-1", dec("1"), "kas")
	assert.ErrorIs(t, err, domain.ErrAlreadySettled)
}

func TestPayReceivable_PartialKeepsOutstanding(t *testing.T) {
	f := newReceivableFixture()
	f.outstanding("tx-1", "100000", "0")

	result, err := f.svc.PayReceivable(context.Background(), cashier, "tx-1", dec("30000"), "kas")
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentStatusOutstanding, result.Transaction.PaymentStatus)
	assert.Equal(t, "kas", *result.Transaction.PaymentAccountID)
}

func TestPayReceivable_Validation(t *testing.T) {
	f := newReceivableFixture()
	f.outstanding("tx-1", "100000", "0")
	ctx := context.Background()

	_, err := f.svc.PayReceivable(ctx, cashier, "tx-1", dec("0"), "kas")
	assert.ErrorIs(t, err, domain.ErrAmountNotPositive)

	_, err = f.svc.PayReceivable(ctx, cashier, "tx-1", dec("99.999"), "kas")
	assert.ErrorIs(t, err, domain.ErrAmountPrecision)

	_, err = f.svc.PayReceivable(ctx, cashier, "missing", dec("10"), "kas")
	assert.ErrorIs(t, err, domain.ErrTransactionNotFound)

	_, err = f.svc.PayReceivable(ctx, cashier, "tx-1", dec("10"), "modal")
	assert.ErrorIs(t, err, domain.ErrNotPaymentAccount)

	_, err = f.svc.PayReceivable(ctx, cashier, "tx-1", dec("10"), "")
	assert.ErrorIs(t, err, domain.ErrPaymentAccountNeeded)

	assert.Empty(t, f.ledger.PostingsFor("kas"))
}

func TestPayReceivable_ConcurrentPaymentsNeverOverpay(t *testing.T) {
	f := newReceivableFixture()
	f.outstanding("tx-1", "100000", "40000")

	var wg sync.WaitGroup
	var succeeded int32
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := f.svc.PayReceivable(context.Background(), cashier, "tx-1", dec("60000"), "kas"); err == nil {
				atomic.AddInt32(&succeeded, 1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), succeeded)
	tx, err := f.svc.GetTransaction(context.Background(), "tx-1")
	require.NoError(t, err)
	assert.True(t, tx.PaidAmount.Equal(dec("100000")))
	assert.True(t, f.ledger.Balance("kas").Equal(dec("60000")))
}

func TestWriteOffReceivable_Success(t *testing.T) {
	f := newReceivableFixture()
	f.outstanding("tx-1", "100000", "40000")

	result, err := f.svc.WriteOffReceivable(context.Background(), owner, "tx-1")
	require.NoError(t, err)

	assert.Equal(t, domain.PaymentStatusPaid, result.Transaction.PaymentStatus)
	assert.True(t, result.Transaction.PaidAmount.Equal(dec("100000")))
	assert.True(t, result.Expense.Amount.Equal(dec("60000")))
	assert.Equal(t, domain.WriteOffCategory, result.Expense.Category)
	assert.Nil(t, result.Expense.AccountID)
	assert.Equal(t, "tx-1", *result.Expense.RefID)
	assert.Len(t, f.ledger.Expenses, 1)
	assert.Empty(t, f.ledger.PostingsFor("kas"))
	assert.Equal(t, []string{"receivable.written_off"}, f.publisher.Types())
}

func TestWriteOffReceivable_AlreadySettled(t *testing.T) {
	f := newReceivableFixture()
	f.outstanding("tx-1", "100000", "100000")

	_, err := f.svc.WriteOffReceivable(context.Background(), owner, "tx-1")
	assert.ErrorIs(t, err, domain.ErrAlreadySettled)
	assert.ErrorIs(t, err, domain.ErrValidation)
	assert.Empty(t, f.ledger.Expenses)
}

func TestWriteOffReceivable_Twice(t *testing.T) {
	f := newReceivableFixture()
	f.outstanding("tx-1", "100000", "0")

	_, err := f.svc.WriteOffReceivable(context.Background(), owner, "tx-1")
	require.NoError(t, err)
	_, err = f.svc.WriteOffReceivable(context.Background(), owner, "tx-1")
	assert.ErrorIs(t, err, domain.ErrAlreadySettled)
	assert.Len(t, f.ledger.Expenses, 1)
}

func TestWriteOffReceivable_Forbidden(t *testing.T) {
	f := newReceivableFixture()
	f.outstanding("tx-1", "100000", "0")

	_, err := f.svc.WriteOffReceivable(context.Background(), admin, "tx-1")
	assert.ErrorIs(t, err, domain.ErrForbidden)

	tx, _ := f.svc.GetTransaction(context.Background(), "tx-1")
	assert.Equal(t, domain.PaymentStatusOutstanding, tx.PaymentStatus)
}

func TestListReceivables_OutstandingOnly(t *testing.T) {
	f := newReceivableFixture()
	f.outstanding("tx-1", "100000", "0")
	f.outstanding("tx-2", "50000", "50000")

	all, err := f.svc.ListReceivables(context.Background(), domain.TransactionFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 2)

	open, err := f.svc.ListReceivables(context.Background(), domain.TransactionFilter{OutstandingOnly: true})
	require.NoError(t, err)
	require.Len(t, open, 1)
	assert.Equal(t, "tx-1", open[0].ID)
}
