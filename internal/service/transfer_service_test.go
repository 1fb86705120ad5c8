package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/dafibh/kaskecil/kaskecil-backend/internal/domain"
	"github.com/dafibh/kaskecil/kaskecil-backend/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type transferFixture struct {
	ledger      *testutil.MockLedger
	accountRepo *testutil.MockAccountRepository
	publisher   *testutil.MockEventPublisher
}

func newTransferFixture() *transferFixture {
	ledger := testutil.NewMockLedger()
	seedAccount(ledger, "kas", "Kas Kecil", "500000", time.Now().Add(-time.Hour))
	seedAccount(ledger, "bank", "Bank BCA", "1000000", time.Now().Add(-time.Hour))
	return &transferFixture{
		ledger:      ledger,
		accountRepo: testutil.NewMockAccountRepository(ledger),
		publisher:   &testutil.MockEventPublisher{},
	}
}

func (f *transferFixture) atomicService(policy LedgerPolicy) (*TransferService, *testutil.MockAtomicTransferRepository) {
	repo := testutil.NewMockAtomicTransferRepository(f.ledger)
	svc := NewTransferService(f.accountRepo, repo, testutil.NewMockPostingRepository(f.ledger), policy)
	svc.SetEventPublisher(f.publisher)
	return svc, repo
}

func (f *transferFixture) stepwiseService(policy LedgerPolicy) (*TransferService, *testutil.MockTransferRepository) {
	repo := testutil.NewMockTransferRepository(f.ledger)
	svc := NewTransferService(f.accountRepo, repo, testutil.NewMockPostingRepository(f.ledger), policy)
	svc.SetEventPublisher(f.publisher)
	return svc, repo
}

func (f *transferFixture) total() string {
	return f.ledger.Balance("kas").Add(f.ledger.Balance("bank")).String()
}

func TestTransfer_Atomic_Success(t *testing.T) {
	f := newTransferFixture()
	svc, _ := f.atomicService(DefaultLedgerPolicy())

	result, err := svc.Transfer(context.Background(), cashier, domain.TransferInput{
		FromAccountID: "bank",
		ToAccountID:   "kas",
		Amount:        dec("200000"),
	})
	require.NoError(t, err)

	assert.True(t, result.HistoryRecorded)
	assert.False(t, result.Replayed)
	assert.True(t, result.FromAccount.Balance.Equal(dec("800000")))
	assert.True(t, result.ToAccount.Balance.Equal(dec("700000")))
	assert.Equal(t, "1500000", f.total())
	assert.Equal(t, "Transfer from Bank BCA to Kas Kecil", result.Transfer.Description)
	assert.Equal(t, cashier.ID, result.Transfer.InitiatedBy)
	assert.Equal(t, cashier.Name, result.Transfer.InitiatedByName)

	// one leg on each side, referencing the transfer
	out := f.ledger.PostingsFor("bank")
	in := f.ledger.PostingsFor("kas")
	require.Len(t, out, 2)
	require.Len(t, in, 2)
	assert.Equal(t, domain.PostingKindTransferOut, out[1].Kind)
	assert.Equal(t, domain.PostingKindTransferIn, in[1].Kind)
	assert.Equal(t, result.Transfer.ID, *out[1].RefID)
	assert.True(t, out[1].Amount.Neg().Equal(in[1].Amount))

	assert.Equal(t, []string{"transfer.created", "account.balance_changed", "account.balance_changed"}, f.publisher.Types())
}

func TestTransfer_Stepwise_Success(t *testing.T) {
	f := newTransferFixture()
	svc, _ := f.stepwiseService(DefaultLedgerPolicy())

	result, err := svc.Transfer(context.Background(), cashier, domain.TransferInput{
		FromAccountID: "kas",
		ToAccountID:   "bank",
		Amount:        dec("150000"),
		Description:   "Setor ke bank",
	})
	require.NoError(t, err)
	assert.True(t, result.HistoryRecorded)
	assert.True(t, f.ledger.Balance("kas").Equal(dec("350000")))
	assert.True(t, f.ledger.Balance("bank").Equal(dec("1150000")))
	assert.Equal(t, "1500000", f.total())

	stored, err := svc.GetTransfer(context.Background(), result.Transfer.ID)
	require.NoError(t, err)
	assert.Equal(t, "Setor ke bank", stored.Description)
}

func TestTransfer_Validation(t *testing.T) {
	policy := DefaultLedgerPolicy()
	policy.MinTransferAmount = dec("1000")

	tests := []struct {
		name     string
		actor    domain.Actor
		input    domain.TransferInput
		expected error
	}{
		{"zero amount", cashier, domain.TransferInput{FromAccountID: "kas", ToAccountID: "bank", Amount: dec("0")}, domain.ErrAmountNotPositive},
		{"negative amount", cashier, domain.TransferInput{FromAccountID: "kas", ToAccountID: "bank", Amount: dec("-5")}, domain.ErrAmountNotPositive},
		{"sub-rupiah precision", cashier, domain.TransferInput{FromAccountID: "kas", ToAccountID: "bank", Amount: dec("1000.005")}, domain.ErrAmountPrecision},
		{"beyond storable range", cashier, domain.TransferInput{FromAccountID: "kas", ToAccountID: "bank", Amount: dec("10000000000000000")}, domain.ErrAmountOutOfRange},
		{"below minimum", cashier, domain.TransferInput{FromAccountID: "kas", ToAccountID: "bank", Amount: dec("999")}, domain.ErrAmountBelowMinimum},
		{"same account", cashier, domain.TransferInput{FromAccountID: "kas", ToAccountID: "kas", Amount: dec("5000")}, domain.ErrSameAccount},
		{"unknown source", cashier, domain.TransferInput{FromAccountID: "nope", ToAccountID: "kas", Amount: dec("5000")}, domain.ErrAccountNotFound},
		{"unknown destination", cashier, domain.TransferInput{FromAccountID: "kas", ToAccountID: "nope", Amount: dec("5000")}, domain.ErrAccountNotFound},
		{"no actor", domain.Actor{}, domain.TransferInput{FromAccountID: "kas", ToAccountID: "bank", Amount: dec("5000")}, domain.ErrActorRequired},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newTransferFixture()
			svc, _ := f.stepwiseService(policy)

			result, err := svc.Transfer(context.Background(), tt.actor, tt.input)
			assert.ErrorIs(t, err, tt.expected)
			assert.Nil(t, result)
			assert.Equal(t, 0, f.accountRepo.PostingsApplied)
			assert.Empty(t, f.ledger.Transfers)
			assert.Equal(t, "1500000", f.total())
		})
	}
}

func TestTransfer_InsufficientFunds(t *testing.T) {
	for _, atomic := range []bool{true, false} {
		f := newTransferFixture()
		var svc *TransferService
		if atomic {
			svc, _ = f.atomicService(DefaultLedgerPolicy())
		} else {
			svc, _ = f.stepwiseService(DefaultLedgerPolicy())
		}

		_, err := svc.Transfer(context.Background(), cashier, domain.TransferInput{
			FromAccountID: "kas",
			ToAccountID:   "bank",
			Amount:        dec("500001"),
		})

		var insufficient *domain.InsufficientFundsError
		require.True(t, errors.As(err, &insufficient))
		assert.Equal(t, "kas", insufficient.AccountID)
		assert.True(t, f.ledger.Balance("kas").Equal(dec("500000")))
		assert.Equal(t, "1500000", f.total())
		assert.Empty(t, f.publisher.Types())
	}
}

func TestTransfer_OverdraftAllowed(t *testing.T) {
	f := newTransferFixture()
	policy := DefaultLedgerPolicy()
	policy.AllowOverdraft = true
	svc, _ := f.atomicService(policy)

	_, err := svc.Transfer(context.Background(), cashier, domain.TransferInput{
		FromAccountID: "kas",
		ToAccountID:   "bank",
		Amount:        dec("600000"),
	})
	require.NoError(t, err)
	assert.True(t, f.ledger.Balance("kas").Equal(dec("-100000")))
}

func TestTransfer_Stepwise_CreditFailureIsRolledBack(t *testing.T) {
	f := newTransferFixture()
	svc, _ := f.stepwiseService(DefaultLedgerPolicy())

	creditErr := errors.New("connection reset")
	f.accountRepo.ApplyPostingFn = func(p *domain.Posting) error {
		if p.Kind == domain.PostingKindTransferIn {
			return creditErr
		}
		return nil
	}

	_, err := svc.Transfer(context.Background(), cashier, domain.TransferInput{
		FromAccountID: "kas",
		ToAccountID:   "bank",
		Amount:        dec("100000"),
	})
	assert.ErrorIs(t, err, creditErr)
	assert.False(t, errors.Is(err, domain.ErrConsistency))

	assert.True(t, f.ledger.Balance("kas").Equal(dec("500000")))
	assert.True(t, f.ledger.Balance("bank").Equal(dec("1000000")))
	assert.True(t, journalTotal(f.ledger, "kas").Equal(f.ledger.Balance("kas")))
	assert.Empty(t, f.ledger.Transfers)
}

func TestTransfer_Stepwise_CompensationFailure(t *testing.T) {
	f := newTransferFixture()
	svc, _ := f.stepwiseService(DefaultLedgerPolicy())

	creditErr := errors.New("credit failed")
	compErr := errors.New("rollback failed")
	f.accountRepo.ApplyPostingFn = func(p *domain.Posting) error {
		switch {
		case p.Kind == domain.PostingKindTransferIn:
			return creditErr
		case p.Kind == domain.PostingKindTransferOut && p.Amount.IsPositive():
			return compErr
		}
		return nil
	}

	_, err := svc.Transfer(context.Background(), cashier, domain.TransferInput{
		FromAccountID: "kas",
		ToAccountID:   "bank",
		Amount:        dec("100000"),
	})

	var consistency *domain.ConsistencyError
	require.True(t, errors.As(err, &consistency))
	assert.ErrorIs(t, err, domain.ErrConsistency)
	assert.ErrorIs(t, err, creditErr)
	assert.ErrorIs(t, err, compErr)
	assert.True(t, f.ledger.Balance("kas").Equal(dec("400000")))
}

func TestTransfer_Stepwise_HistoryFailureIsNotFatal(t *testing.T) {
	f := newTransferFixture()
	svc, repo := f.stepwiseService(DefaultLedgerPolicy())
	repo.CreateFn = func(*domain.Transfer) error { return errors.New("insert failed") }

	result, err := svc.Transfer(context.Background(), cashier, domain.TransferInput{
		FromAccountID: "kas",
		ToAccountID:   "bank",
		Amount:        dec("100000"),
	})
	require.NoError(t, err)
	assert.False(t, result.HistoryRecorded)
	assert.True(t, f.ledger.Balance("kas").Equal(dec("400000")))
	assert.True(t, f.ledger.Balance("bank").Equal(dec("1100000")))
	assert.Empty(t, f.ledger.Transfers)
}

func TestTransfer_Atomic_FailureLeavesNothing(t *testing.T) {
	f := newTransferFixture()
	svc, repo := f.atomicService(DefaultLedgerPolicy())
	repo.AtomicTransferFn = func(*domain.Transfer) error { return errors.New("serialization failure") }

	_, err := svc.Transfer(context.Background(), cashier, domain.TransferInput{
		FromAccountID: "kas",
		ToAccountID:   "bank",
		Amount:        dec("100000"),
	})
	assert.Error(t, err)
	assert.Equal(t, "1500000", f.total())
	assert.Len(t, f.ledger.PostingsFor("kas"), 1)
}

func TestTransfer_IdempotentReplay(t *testing.T) {
	f := newTransferFixture()
	svc, _ := f.atomicService(DefaultLedgerPolicy())
	store := testutil.NewMockIdempotencyStore()
	svc.SetIdempotencyStore(store)

	input := domain.TransferInput{
		FromAccountID:  "kas",
		ToAccountID:    "bank",
		Amount:         dec("100000"),
		IdempotencyKey: "req-42",
	}

	first, err := svc.Transfer(context.Background(), cashier, input)
	require.NoError(t, err)
	second, err := svc.Transfer(context.Background(), cashier, input)
	require.NoError(t, err)

	assert.True(t, second.Replayed)
	assert.Equal(t, first.Transfer.ID, second.Transfer.ID)
	assert.True(t, f.ledger.Balance("kas").Equal(dec("400000")))
	assert.Len(t, f.ledger.Transfers, 1)
	assert.Equal(t, first.Transfer.ID, store.Keys["req-42"])
}

func TestTransfer_IdempotencyKeyReusedForOtherTransfer(t *testing.T) {
	f := newTransferFixture()
	svc, _ := f.atomicService(DefaultLedgerPolicy())
	svc.SetIdempotencyStore(testutil.NewMockIdempotencyStore())

	input := domain.TransferInput{FromAccountID: "kas", ToAccountID: "bank", Amount: dec("100000"), IdempotencyKey: "req-1"}
	_, err := svc.Transfer(context.Background(), cashier, input)
	require.NoError(t, err)

	input.Amount = dec("5000")
	_, err = svc.Transfer(context.Background(), cashier, input)
	assert.ErrorIs(t, err, domain.ErrIdempotencyMismatch)
	assert.True(t, f.ledger.Balance("kas").Equal(dec("400000")))
}

func TestTransfer_IdempotencyKeyInProgress(t *testing.T) {
	f := newTransferFixture()
	svc, _ := f.atomicService(DefaultLedgerPolicy())
	store := testutil.NewMockIdempotencyStore()
	store.Keys["req-1"] = domain.PendingIdempotencyValue
	svc.SetIdempotencyStore(store)

	_, err := svc.Transfer(context.Background(), cashier, domain.TransferInput{
		FromAccountID: "kas", ToAccountID: "bank", Amount: dec("100000"), IdempotencyKey: "req-1",
	})
	assert.ErrorIs(t, err, domain.ErrIdempotencyInProgress)
	assert.Equal(t, "1500000", f.total())
}

func TestTransfer_FailedTransferReleasesKey(t *testing.T) {
	f := newTransferFixture()
	svc, _ := f.atomicService(DefaultLedgerPolicy())
	store := testutil.NewMockIdempotencyStore()
	svc.SetIdempotencyStore(store)

	input := domain.TransferInput{FromAccountID: "kas", ToAccountID: "bank", Amount: dec("900000"), IdempotencyKey: "req-1"}
	_, err := svc.Transfer(context.Background(), cashier, input)
	assert.ErrorIs(t, err, domain.ErrInsufficientFunds)
	assert.NotContains(t, store.Keys, "req-1")

	input.Amount = dec("100000")
	_, err = svc.Transfer(context.Background(), cashier, input)
	assert.NoError(t, err)
}

func TestTransfer_ConsistencyFailureKeepsKey(t *testing.T) {
	f := newTransferFixture()
	svc, _ := f.stepwiseService(DefaultLedgerPolicy())
	store := testutil.NewMockIdempotencyStore()
	svc.SetIdempotencyStore(store)
	f.accountRepo.ApplyPostingFn = func(p *domain.Posting) error {
		if p.Kind == domain.PostingKindTransferIn || p.Amount.IsPositive() {
			return errors.New("down")
		}
		return nil
	}

	_, err := svc.Transfer(context.Background(), cashier, domain.TransferInput{
		FromAccountID: "kas", ToAccountID: "bank", Amount: dec("100000"), IdempotencyKey: "req-1",
	})
	assert.ErrorIs(t, err, domain.ErrConsistency)
	assert.Equal(t, domain.PendingIdempotencyValue, store.Keys["req-1"])
}

func TestTransfer_KeyLeftPendingReplaysRecordedTransfer(t *testing.T) {
	f := newTransferFixture()
	svc, _ := f.atomicService(DefaultLedgerPolicy())
	store := testutil.NewMockIdempotencyStore()
	store.CompleteErr = errors.New("redis unavailable")
	svc.SetIdempotencyStore(store)

	input := domain.TransferInput{FromAccountID: "kas", ToAccountID: "bank", Amount: dec("100000"), IdempotencyKey: "req-7"}
	first, err := svc.Transfer(context.Background(), cashier, input)
	require.NoError(t, err)
	assert.Equal(t, domain.PendingIdempotencyValue, store.Keys["req-7"])

	store.CompleteErr = nil
	second, err := svc.Transfer(context.Background(), cashier, input)
	require.NoError(t, err)

	assert.True(t, second.Replayed)
	assert.Equal(t, first.Transfer.ID, second.Transfer.ID)
	assert.True(t, f.ledger.Balance("kas").Equal(dec("400000")))
	assert.Len(t, f.ledger.Transfers, 1)
	assert.Equal(t, first.Transfer.ID, store.Keys["req-7"])

	input.Amount = dec("1")
	_, err = svc.Transfer(context.Background(), cashier, input)
	assert.ErrorIs(t, err, domain.ErrIdempotencyMismatch)
}

func TestTransfer_ExpiredKeyReplaysRecordedTransfer(t *testing.T) {
	f := newTransferFixture()
	svc, _ := f.atomicService(DefaultLedgerPolicy())
	store := testutil.NewMockIdempotencyStore()
	svc.SetIdempotencyStore(store)

	input := domain.TransferInput{FromAccountID: "bank", ToAccountID: "kas", Amount: dec("25000"), IdempotencyKey: "req-8"}
	first, err := svc.Transfer(context.Background(), cashier, input)
	require.NoError(t, err)
	delete(store.Keys, "req-8")

	second, err := svc.Transfer(context.Background(), cashier, input)
	require.NoError(t, err)
	assert.True(t, second.Replayed)
	assert.Equal(t, first.Transfer.ID, second.Transfer.ID)
	assert.True(t, f.ledger.Balance("kas").Equal(dec("525000")))
}

func TestTransfer_ReplayWithoutHistoryMatchesJournal(t *testing.T) {
	f := newTransferFixture()
	svc, repo := f.stepwiseService(DefaultLedgerPolicy())
	repo.CreateFn = func(*domain.Transfer) error { return errors.New("insert failed") }
	svc.SetIdempotencyStore(testutil.NewMockIdempotencyStore())

	input := domain.TransferInput{FromAccountID: "kas", ToAccountID: "bank", Amount: dec("100000"), IdempotencyKey: "req-9"}
	first, err := svc.Transfer(context.Background(), cashier, input)
	require.NoError(t, err)
	require.False(t, first.HistoryRecorded)

	second, err := svc.Transfer(context.Background(), cashier, input)
	require.NoError(t, err)
	assert.True(t, second.Replayed)
	assert.False(t, second.HistoryRecorded)
	assert.Equal(t, first.Transfer.ID, second.Transfer.ID)
	assert.Equal(t, "kas", second.Transfer.FromAccountID)
	assert.Equal(t, "bank", second.Transfer.ToAccountID)
	assert.True(t, second.Transfer.Amount.Equal(dec("100000")))

	tests := []struct {
		name  string
		input domain.TransferInput
	}{
		{"other amount", domain.TransferInput{FromAccountID: "kas", ToAccountID: "bank", Amount: dec("5000"), IdempotencyKey: "req-9"}},
		{"other direction", domain.TransferInput{FromAccountID: "bank", ToAccountID: "kas", Amount: dec("100000"), IdempotencyKey: "req-9"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Transfer(context.Background(), cashier, tt.input)
			assert.ErrorIs(t, err, domain.ErrIdempotencyMismatch)
		})
	}
	assert.True(t, f.ledger.Balance("kas").Equal(dec("400000")))
	assert.True(t, f.ledger.Balance("bank").Equal(dec("1100000")))
}

func TestTransfer_ConcurrentTransfersConserveMoney(t *testing.T) {
	f := newTransferFixture()
	svc, _ := f.atomicService(DefaultLedgerPolicy())

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			from, to := "kas", "bank"
			if i%2 == 0 {
				from, to = to, from
			}
			_, _ = svc.Transfer(context.Background(), cashier, domain.TransferInput{
				FromAccountID: from,
				ToAccountID:   to,
				Amount:        dec("75000"),
			})
		}(i)
	}
	wg.Wait()

	assert.Equal(t, "1500000", f.total())
	assert.False(t, f.ledger.Balance("kas").IsNegative())
	assert.False(t, f.ledger.Balance("bank").IsNegative())
	assert.True(t, journalTotal(f.ledger, "kas").Equal(f.ledger.Balance("kas")))
	assert.True(t, journalTotal(f.ledger, "bank").Equal(f.ledger.Balance("bank")))
}

func TestListTransfers_ByAccount(t *testing.T) {
	f := newTransferFixture()
	seedAccount(f.ledger, "ewallet", "OVO", "0", time.Now())
	svc, _ := f.atomicService(DefaultLedgerPolicy())
	ctx := context.Background()

	_, err := svc.Transfer(ctx, cashier, domain.TransferInput{FromAccountID: "bank", ToAccountID: "kas", Amount: dec("1000")})
	require.NoError(t, err)
	_, err = svc.Transfer(ctx, cashier, domain.TransferInput{FromAccountID: "bank", ToAccountID: "ewallet", Amount: dec("1000")})
	require.NoError(t, err)

	account := "kas"
	transfers, err := svc.ListTransfers(ctx, domain.TransferFilter{AccountID: &account})
	require.NoError(t, err)
	assert.Len(t, transfers, 1)

	all, err := svc.ListTransfers(ctx, domain.TransferFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 2)
}
