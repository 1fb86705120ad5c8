package testutil

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/dafibh/kaskecil/kaskecil-backend/internal/domain"
	"github.com/dafibh/kaskecil/kaskecil-backend/internal/websocket"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// MockLedger is the shared in-memory state behind the mock repositories.
// One mutex guards everything so multi-row operations are atomic, the same
// way a database transaction would make them.
type MockLedger struct {
	mu           sync.Mutex
	Accounts     map[string]*domain.Account
	Postings     []*domain.Posting
	Transfers    map[string]*domain.Transfer
	Transactions map[string]*domain.Transaction
	Expenses     map[string]*domain.Expense
	Advances     map[string]*domain.EmployeeAdvance
	Now          func() time.Time
}

// NewMockLedger creates an empty MockLedger
func NewMockLedger() *MockLedger {
	return &MockLedger{
		Accounts:     make(map[string]*domain.Account),
		Transfers:    make(map[string]*domain.Transfer),
		Transactions: make(map[string]*domain.Transaction),
		Expenses:     make(map[string]*domain.Expense),
		Advances:     make(map[string]*domain.EmployeeAdvance),
		Now:          time.Now,
	}
}

// AddAccount adds an account as-is, without an opening posting (helper for tests)
func (l *MockLedger) AddAccount(account *domain.Account) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if account.CreatedAt.IsZero() {
		account.CreatedAt = l.Now()
		account.UpdatedAt = account.CreatedAt
	}
	l.Accounts[account.ID] = account
}

// AddPosting appends a journal entry without touching any balance (helper for
// seeding history behind an already-set balance)
func (l *MockLedger) AddPosting(posting *domain.Posting) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if posting.ID == "" {
		posting.ID = uuid.NewString()
	}
	l.Postings = append(l.Postings, posting)
}

// Balance returns the current balance of an account, zero when unknown
func (l *MockLedger) Balance(accountID string) decimal.Decimal {
	l.mu.Lock()
	defer l.mu.Unlock()
	if a, ok := l.Accounts[accountID]; ok {
		return a.Balance
	}
	return decimal.Zero
}

// PostingsFor returns the journal entries of an account in posting order
func (l *MockLedger) PostingsFor(accountID string) []*domain.Posting {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []*domain.Posting
	for _, p := range l.Postings {
		if p.AccountID == accountID {
			out = append(out, copyPosting(p))
		}
	}
	return out
}

// applyLocked applies posting to its account. Caller holds l.mu.
func (l *MockLedger) applyLocked(posting *domain.Posting, guard domain.BalanceGuard) (*domain.Account, error) {
	account, ok := l.Accounts[posting.AccountID]
	if !ok {
		return nil, domain.NewNotFoundError("account", posting.AccountID, domain.ErrAccountNotFound)
	}
	next := account.Balance.Add(posting.Amount)
	if guard.NoOverdraft && posting.Amount.IsNegative() && next.IsNegative() {
		return nil, &domain.InsufficientFundsError{
			AccountID: account.ID,
			Balance:   account.Balance,
			Requested: posting.Amount.Neg(),
		}
	}
	account.Balance = next
	account.UpdatedAt = l.Now()
	if posting.ID == "" {
		posting.ID = uuid.NewString()
	}
	if posting.PostedAt.IsZero() {
		posting.PostedAt = l.Now()
	}
	l.Postings = append(l.Postings, copyPosting(posting))
	return copyAccount(account), nil
}

// MockAccountRepository is a mock implementation of domain.AccountRepository
type MockAccountRepository struct {
	Ledger *MockLedger
	// ApplyPostingFn, when set, runs before every ApplyPosting; a non-nil
	// error fails the call without touching the ledger
	ApplyPostingFn func(posting *domain.Posting) error
	// PostingsApplied counts ApplyPosting calls that reached the ledger
	PostingsApplied int
}

// NewMockAccountRepository creates a new MockAccountRepository over ledger
func NewMockAccountRepository(ledger *MockLedger) *MockAccountRepository {
	return &MockAccountRepository{Ledger: ledger}
}

// Create creates a new account, applying the opening posting when given
func (m *MockAccountRepository) Create(ctx context.Context, account *domain.Account, opening *domain.Posting) (*domain.Account, error) {
	l := m.Ledger
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, a := range l.Accounts {
		if strings.EqualFold(a.Name, account.Name) {
			return nil, domain.ErrAccountNameTaken
		}
	}
	created := copyAccount(account)
	if created.ID == "" {
		created.ID = uuid.NewString()
	}
	created.Balance = decimal.Zero
	created.CreatedAt = l.Now()
	created.UpdatedAt = created.CreatedAt
	l.Accounts[created.ID] = created
	if opening != nil {
		opening.AccountID = created.ID
		if _, err := l.applyLocked(opening, domain.BalanceGuard{}); err != nil {
			delete(l.Accounts, created.ID)
			return nil, err
		}
	}
	return copyAccount(created), nil
}

// GetByID retrieves an account by ID
func (m *MockAccountRepository) GetByID(ctx context.Context, id string) (*domain.Account, error) {
	l := m.Ledger
	l.mu.Lock()
	defer l.mu.Unlock()
	if a, ok := l.Accounts[id]; ok {
		return copyAccount(a), nil
	}
	return nil, domain.NewNotFoundError("account", id, domain.ErrAccountNotFound)
}

// GetByName retrieves an account by name, case-insensitively
func (m *MockAccountRepository) GetByName(ctx context.Context, name string) (*domain.Account, error) {
	l := m.Ledger
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, a := range l.Accounts {
		if strings.EqualFold(a.Name, name) {
			return copyAccount(a), nil
		}
	}
	return nil, domain.NewNotFoundError("account", name, domain.ErrAccountNotFound)
}

// List returns accounts ordered by name
func (m *MockAccountRepository) List(ctx context.Context, filter domain.AccountFilter) ([]*domain.Account, error) {
	l := m.Ledger
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]*domain.Account, 0, len(l.Accounts))
	for _, a := range l.Accounts {
		if filter.PaymentOnly && !a.IsPaymentAccount {
			continue
		}
		out = append(out, copyAccount(a))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// ApplyPosting moves the balance and appends the posting
func (m *MockAccountRepository) ApplyPosting(ctx context.Context, posting *domain.Posting, guard domain.BalanceGuard) (*domain.Account, error) {
	if m.ApplyPostingFn != nil {
		if err := m.ApplyPostingFn(posting); err != nil {
			return nil, err
		}
	}
	l := m.Ledger
	l.mu.Lock()
	defer l.mu.Unlock()
	account, err := l.applyLocked(posting, guard)
	if err != nil {
		return nil, err
	}
	m.PostingsApplied++
	return account, nil
}

// SetBalance overwrites the balance without a posting
func (m *MockAccountRepository) SetBalance(ctx context.Context, id string, balance decimal.Decimal) (*domain.Account, error) {
	l := m.Ledger
	l.mu.Lock()
	defer l.mu.Unlock()
	a, ok := l.Accounts[id]
	if !ok {
		return nil, domain.NewNotFoundError("account", id, domain.ErrAccountNotFound)
	}
	a.Balance = balance
	a.UpdatedAt = l.Now()
	return copyAccount(a), nil
}

// MockPostingRepository is a mock implementation of domain.PostingRepository
type MockPostingRepository struct {
	Ledger *MockLedger
	ListFn func(filter domain.PostingFilter) ([]*domain.Posting, error)
}

// NewMockPostingRepository creates a new MockPostingRepository over ledger
func NewMockPostingRepository(ledger *MockLedger) *MockPostingRepository {
	return &MockPostingRepository{Ledger: ledger}
}

// List returns matching postings ordered by PostedAt, keeping insertion order for ties
func (m *MockPostingRepository) List(ctx context.Context, filter domain.PostingFilter) ([]*domain.Posting, error) {
	if m.ListFn != nil {
		return m.ListFn(filter)
	}
	l := m.Ledger
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []*domain.Posting
	for _, p := range l.Postings {
		if filter.AccountID != "" && p.AccountID != filter.AccountID {
			continue
		}
		if filter.After != nil && !p.PostedAt.After(*filter.After) {
			continue
		}
		if filter.Until != nil && p.PostedAt.After(*filter.Until) {
			continue
		}
		if filter.RefID != nil && (p.RefID == nil || *p.RefID != *filter.RefID) {
			continue
		}
		if len(filter.Kinds) > 0 && !containsKind(filter.Kinds, p.Kind) {
			continue
		}
		out = append(out, copyPosting(p))
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].PostedAt.Before(out[j].PostedAt) })
	return out, nil
}

// MockTransferRepository is a mock implementation of domain.TransferRepository.
// It does not implement domain.AtomicTransferer, so services fall back to
// their compensating path; use MockAtomicTransferRepository for the atomic one.
type MockTransferRepository struct {
	Ledger   *MockLedger
	CreateFn func(transfer *domain.Transfer) error
}

// NewMockTransferRepository creates a new MockTransferRepository over ledger
func NewMockTransferRepository(ledger *MockLedger) *MockTransferRepository {
	return &MockTransferRepository{Ledger: ledger}
}

// Create records a transfer
func (m *MockTransferRepository) Create(ctx context.Context, transfer *domain.Transfer) (*domain.Transfer, error) {
	if m.CreateFn != nil {
		if err := m.CreateFn(transfer); err != nil {
			return nil, err
		}
	}
	l := m.Ledger
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.insertTransferLocked(transfer), nil
}

func (l *MockLedger) insertTransferLocked(transfer *domain.Transfer) *domain.Transfer {
	t := *transfer
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = l.Now()
	}
	l.Transfers[t.ID] = &t
	out := t
	return &out
}

// GetByID retrieves a transfer by ID
func (m *MockTransferRepository) GetByID(ctx context.Context, id string) (*domain.Transfer, error) {
	l := m.Ledger
	l.mu.Lock()
	defer l.mu.Unlock()
	if t, ok := l.Transfers[id]; ok {
		out := *t
		return &out, nil
	}
	return nil, domain.NewNotFoundError("transfer", id, domain.ErrTransferNotFound)
}

// GetByIdempotencyKey finds the transfer recorded under key
func (m *MockTransferRepository) GetByIdempotencyKey(ctx context.Context, key string) (*domain.Transfer, error) {
	l := m.Ledger
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, t := range l.Transfers {
		if t.IdempotencyKey != nil && *t.IdempotencyKey == key {
			out := *t
			return &out, nil
		}
	}
	return nil, domain.NewNotFoundError("transfer", key, domain.ErrTransferNotFound)
}

// List returns transfers newest first
func (m *MockTransferRepository) List(ctx context.Context, filter domain.TransferFilter) ([]*domain.Transfer, error) {
	l := m.Ledger
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []*domain.Transfer
	for _, t := range l.Transfers {
		if filter.AccountID != nil && t.FromAccountID != *filter.AccountID && t.ToAccountID != *filter.AccountID {
			continue
		}
		if filter.From != nil && t.CreatedAt.Before(*filter.From) {
			continue
		}
		if filter.To != nil && t.CreatedAt.After(*filter.To) {
			continue
		}
		c := *t
		out = append(out, &c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

// MockAtomicTransferRepository adds domain.AtomicTransferer to MockTransferRepository
type MockAtomicTransferRepository struct {
	*MockTransferRepository
	AtomicTransferFn func(transfer *domain.Transfer) error
}

// NewMockAtomicTransferRepository creates a new MockAtomicTransferRepository over ledger
func NewMockAtomicTransferRepository(ledger *MockLedger) *MockAtomicTransferRepository {
	return &MockAtomicTransferRepository{MockTransferRepository: NewMockTransferRepository(ledger)}
}

// AtomicTransfer applies both legs and records the transfer under one lock.
// Any failure leaves the ledger untouched.
func (m *MockAtomicTransferRepository) AtomicTransfer(ctx context.Context, transfer *domain.Transfer, guard domain.BalanceGuard) (*domain.TransferResult, error) {
	if m.AtomicTransferFn != nil {
		if err := m.AtomicTransferFn(transfer); err != nil {
			return nil, err
		}
	}
	l := m.Ledger
	l.mu.Lock()
	defer l.mu.Unlock()

	from, ok := l.Accounts[transfer.FromAccountID]
	if !ok {
		return nil, domain.NewNotFoundError("account", transfer.FromAccountID, domain.ErrAccountNotFound)
	}
	if _, ok := l.Accounts[transfer.ToAccountID]; !ok {
		return nil, domain.NewNotFoundError("account", transfer.ToAccountID, domain.ErrAccountNotFound)
	}
	if guard.NoOverdraft && from.Balance.Sub(transfer.Amount).IsNegative() {
		return nil, &domain.InsufficientFundsError{AccountID: from.ID, Balance: from.Balance, Requested: transfer.Amount}
	}

	recorded := l.insertTransferLocked(transfer)
	ref := recorded.ID
	fromAcc, _ := l.applyLocked(&domain.Posting{
		AccountID:   recorded.FromAccountID,
		Amount:      recorded.Amount.Neg(),
		Kind:        domain.PostingKindTransferOut,
		RefID:       &ref,
		Description: recorded.Description,
		ActorID:     recorded.InitiatedBy,
	}, domain.BalanceGuard{})
	toAcc, _ := l.applyLocked(&domain.Posting{
		AccountID:   recorded.ToAccountID,
		Amount:      recorded.Amount,
		Kind:        domain.PostingKindTransferIn,
		RefID:       &ref,
		Description: recorded.Description,
		ActorID:     recorded.InitiatedBy,
	}, domain.BalanceGuard{})

	return &domain.TransferResult{
		Transfer:        recorded,
		FromAccount:     fromAcc,
		ToAccount:       toAcc,
		HistoryRecorded: true,
	}, nil
}

// MockTransactionRepository is a mock implementation of domain.TransactionRepository
type MockTransactionRepository struct {
	Ledger *MockLedger
	PayFn  func(id string, amount decimal.Decimal) error
}

// NewMockTransactionRepository creates a new MockTransactionRepository over ledger
func NewMockTransactionRepository(ledger *MockLedger) *MockTransactionRepository {
	return &MockTransactionRepository{Ledger: ledger}
}

// AddTransaction adds a sale to the mock repository (helper for tests)
func (m *MockTransactionRepository) AddTransaction(t *domain.Transaction) {
	l := m.Ledger
	l.mu.Lock()
	defer l.mu.Unlock()
	t.PaymentStatus = domain.DerivePaymentStatus(t.Total, t.PaidAmount)
	l.Transactions[t.ID] = t
}

// Create stores a sale and applies its down-payment posting
func (m *MockTransactionRepository) Create(ctx context.Context, transaction *domain.Transaction, posting *domain.Posting) (*domain.Transaction, error) {
	l := m.Ledger
	l.mu.Lock()
	defer l.mu.Unlock()
	t := *transaction
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	t.CreatedAt = l.Now()
	t.UpdatedAt = t.CreatedAt
	if posting != nil {
		ref := t.ID
		posting.RefID = &ref
		if _, err := l.applyLocked(posting, domain.BalanceGuard{}); err != nil {
			return nil, err
		}
	}
	l.Transactions[t.ID] = &t
	out := t
	return &out, nil
}

// GetByID retrieves a sale by ID
func (m *MockTransactionRepository) GetByID(ctx context.Context, id string) (*domain.Transaction, error) {
	l := m.Ledger
	l.mu.Lock()
	defer l.mu.Unlock()
	if t, ok := l.Transactions[id]; ok {
		out := *t
		return &out, nil
	}
	return nil, domain.NewNotFoundError("transaction", id, domain.ErrTransactionNotFound)
}

// List returns sales newest first
func (m *MockTransactionRepository) List(ctx context.Context, filter domain.TransactionFilter) ([]*domain.Transaction, error) {
	l := m.Ledger
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []*domain.Transaction
	for _, t := range l.Transactions {
		if filter.OutstandingOnly && t.PaymentStatus == domain.PaymentStatusPaid {
			continue
		}
		if filter.CustomerName != nil && !strings.EqualFold(t.CustomerName, *filter.CustomerName) {
			continue
		}
		c := *t
		out = append(out, &c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

// Pay applies a receivable payment
func (m *MockTransactionRepository) Pay(ctx context.Context, id string, amount decimal.Decimal, posting *domain.Posting) (*domain.PaymentResult, error) {
	if m.PayFn != nil {
		if err := m.PayFn(id, amount); err != nil {
			return nil, err
		}
	}
	l := m.Ledger
	l.mu.Lock()
	defer l.mu.Unlock()
	t, ok := l.Transactions[id]
	if !ok {
		return nil, domain.NewNotFoundError("transaction", id, domain.ErrTransactionNotFound)
	}
	if amount.GreaterThan(t.Remaining()) {
		return nil, domain.NewValidationError(domain.ErrOverpayment,
			fmt.Sprintf("remaining %s", t.Remaining().StringFixed(2)))
	}
	account, err := l.applyLocked(posting, domain.BalanceGuard{})
	if err != nil {
		return nil, err
	}
	t.PaidAmount = t.PaidAmount.Add(amount)
	t.PaymentStatus = domain.DerivePaymentStatus(t.Total, t.PaidAmount)
	accountID := posting.AccountID
	t.PaymentAccountID = &accountID
	t.UpdatedAt = l.Now()
	out := *t
	return &domain.PaymentResult{Transaction: &out, Account: account, Posting: copyPosting(posting)}, nil
}

// WriteOff settles the sale and stores the expense built from it
func (m *MockTransactionRepository) WriteOff(ctx context.Context, id string, build func(t *domain.Transaction) (*domain.Expense, error)) (*domain.WriteOffResult, error) {
	l := m.Ledger
	l.mu.Lock()
	defer l.mu.Unlock()
	t, ok := l.Transactions[id]
	if !ok {
		return nil, domain.NewNotFoundError("transaction", id, domain.ErrTransactionNotFound)
	}
	snapshot := *t
	expense, err := build(&snapshot)
	if err != nil {
		return nil, err
	}
	e := *expense
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	e.CreatedAt = l.Now()
	l.Expenses[e.ID] = &e

	t.PaidAmount = t.Total
	t.PaymentStatus = domain.PaymentStatusPaid
	t.UpdatedAt = l.Now()

	outT := *t
	outE := e
	return &domain.WriteOffResult{Transaction: &outT, Expense: &outE}, nil
}

// MockExpenseRepository is a mock implementation of domain.ExpenseRepository
type MockExpenseRepository struct {
	Ledger *MockLedger
}

// NewMockExpenseRepository creates a new MockExpenseRepository over ledger
func NewMockExpenseRepository(ledger *MockLedger) *MockExpenseRepository {
	return &MockExpenseRepository{Ledger: ledger}
}

// Create stores an expense and applies its posting
func (m *MockExpenseRepository) Create(ctx context.Context, expense *domain.Expense, posting *domain.Posting, guard domain.BalanceGuard) (*domain.Expense, error) {
	l := m.Ledger
	l.mu.Lock()
	defer l.mu.Unlock()
	e := *expense
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	e.CreatedAt = l.Now()
	if posting != nil {
		ref := e.ID
		posting.RefID = &ref
		if _, err := l.applyLocked(posting, guard); err != nil {
			return nil, err
		}
	}
	l.Expenses[e.ID] = &e
	out := e
	return &out, nil
}

// GetByID retrieves an expense by ID
func (m *MockExpenseRepository) GetByID(ctx context.Context, id string) (*domain.Expense, error) {
	l := m.Ledger
	l.mu.Lock()
	defer l.mu.Unlock()
	if e, ok := l.Expenses[id]; ok {
		out := *e
		return &out, nil
	}
	return nil, domain.NewNotFoundError("expense", id, domain.ErrExpenseNotFound)
}

// List returns expenses newest first
func (m *MockExpenseRepository) List(ctx context.Context, filter domain.ExpenseFilter) ([]*domain.Expense, error) {
	l := m.Ledger
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []*domain.Expense
	for _, e := range l.Expenses {
		if filter.AccountID != nil && (e.AccountID == nil || *e.AccountID != *filter.AccountID) {
			continue
		}
		if filter.Category != nil && e.Category != *filter.Category {
			continue
		}
		if filter.From != nil && e.Date.Before(*filter.From) {
			continue
		}
		if filter.To != nil && e.Date.After(*filter.To) {
			continue
		}
		c := *e
		out = append(out, &c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.After(out[j].Date) })
	return out, nil
}

// Delete removes an expense and applies the reversal posting
func (m *MockExpenseRepository) Delete(ctx context.Context, id string, posting *domain.Posting) error {
	l := m.Ledger
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.Expenses[id]; !ok {
		return domain.NewNotFoundError("expense", id, domain.ErrExpenseNotFound)
	}
	if posting != nil {
		if _, err := l.applyLocked(posting, domain.BalanceGuard{}); err != nil {
			return err
		}
	}
	delete(l.Expenses, id)
	return nil
}

// MockAdvanceRepository is a mock implementation of domain.AdvanceRepository
type MockAdvanceRepository struct {
	Ledger *MockLedger
}

// NewMockAdvanceRepository creates a new MockAdvanceRepository over ledger
func NewMockAdvanceRepository(ledger *MockLedger) *MockAdvanceRepository {
	return &MockAdvanceRepository{Ledger: ledger}
}

// Create stores an advance and applies its grant posting
func (m *MockAdvanceRepository) Create(ctx context.Context, advance *domain.EmployeeAdvance, posting *domain.Posting, guard domain.BalanceGuard) (*domain.EmployeeAdvance, error) {
	l := m.Ledger
	l.mu.Lock()
	defer l.mu.Unlock()
	a := copyAdvance(advance)
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	a.CreatedAt = l.Now()
	a.RecomputeRemaining()
	if posting != nil {
		ref := a.ID
		posting.RefID = &ref
		if _, err := l.applyLocked(posting, guard); err != nil {
			return nil, err
		}
	}
	l.Advances[a.ID] = a
	return copyAdvance(a), nil
}

// GetByID retrieves an advance with its repayments
func (m *MockAdvanceRepository) GetByID(ctx context.Context, id string) (*domain.EmployeeAdvance, error) {
	l := m.Ledger
	l.mu.Lock()
	defer l.mu.Unlock()
	if a, ok := l.Advances[id]; ok {
		return copyAdvance(a), nil
	}
	return nil, domain.NewNotFoundError("advance", id, domain.ErrAdvanceNotFound)
}

// List returns advances newest first
func (m *MockAdvanceRepository) List(ctx context.Context, filter domain.AdvanceFilter) ([]*domain.EmployeeAdvance, error) {
	l := m.Ledger
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []*domain.EmployeeAdvance
	for _, a := range l.Advances {
		if filter.EmployeeID != nil && a.EmployeeID != *filter.EmployeeID {
			continue
		}
		if filter.OutstandingOnly && !a.RemainingAmount.IsPositive() {
			continue
		}
		out = append(out, copyAdvance(a))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.After(out[j].Date) })
	return out, nil
}

// AddRepayment appends a repayment and applies its posting
func (m *MockAdvanceRepository) AddRepayment(ctx context.Context, advanceID string, repayment *domain.Repayment, posting *domain.Posting) (*domain.EmployeeAdvance, error) {
	l := m.Ledger
	l.mu.Lock()
	defer l.mu.Unlock()
	a, ok := l.Advances[advanceID]
	if !ok {
		return nil, domain.NewNotFoundError("advance", advanceID, domain.ErrAdvanceNotFound)
	}
	if repayment.Amount.GreaterThan(a.RemainingAmount) {
		return nil, domain.NewValidationError(domain.ErrOverpayment,
			fmt.Sprintf("remaining %s", a.RemainingAmount.StringFixed(2)))
	}
	if posting != nil {
		ref := a.ID
		posting.RefID = &ref
		if _, err := l.applyLocked(posting, domain.BalanceGuard{}); err != nil {
			return nil, err
		}
	}
	r := *repayment
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	r.AdvanceID = a.ID
	r.CreatedAt = l.Now()
	a.Repayments = append(a.Repayments, &r)
	a.RecomputeRemaining()
	return copyAdvance(a), nil
}

// Delete removes an advance and its repayments, applying the reversal built from it
func (m *MockAdvanceRepository) Delete(ctx context.Context, id string, reverse func(a *domain.EmployeeAdvance) *domain.Posting) (*domain.EmployeeAdvance, error) {
	l := m.Ledger
	l.mu.Lock()
	defer l.mu.Unlock()
	a, ok := l.Advances[id]
	if !ok {
		return nil, domain.NewNotFoundError("advance", id, domain.ErrAdvanceNotFound)
	}
	deleted := copyAdvance(a)
	if posting := reverse(copyAdvance(a)); posting != nil {
		if _, err := l.applyLocked(posting, domain.BalanceGuard{}); err != nil {
			return nil, err
		}
	}
	delete(l.Advances, id)
	return deleted, nil
}

// MockIdempotencyStore is an in-memory domain.IdempotencyStore
type MockIdempotencyStore struct {
	mu          sync.Mutex
	Keys        map[string]string
	LookupFn    func(key string) (string, error)
	CompleteErr error
}

// NewMockIdempotencyStore creates a new MockIdempotencyStore
func NewMockIdempotencyStore() *MockIdempotencyStore {
	return &MockIdempotencyStore{Keys: make(map[string]string)}
}

// Claim marks key as pending unless it is already taken
func (m *MockIdempotencyStore) Claim(ctx context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.Keys[key]; ok {
		return false, nil
	}
	m.Keys[key] = domain.PendingIdempotencyValue
	return true, nil
}

// Lookup returns the stored value for key
func (m *MockIdempotencyStore) Lookup(ctx context.Context, key string) (string, error) {
	if m.LookupFn != nil {
		return m.LookupFn(key)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Keys[key], nil
}

// Complete stores the transfer produced for key
func (m *MockIdempotencyStore) Complete(ctx context.Context, key string, transferID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.CompleteErr != nil {
		return m.CompleteErr
	}
	m.Keys[key] = transferID
	return nil
}

// Release forgets key
func (m *MockIdempotencyStore) Release(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.Keys, key)
	return nil
}

// MockEventPublisher records published events
type MockEventPublisher struct {
	mu     sync.Mutex
	Events []string
}

// Publish implements websocket.EventPublisher
func (m *MockEventPublisher) Publish(event websocket.Event) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Events = append(m.Events, event.Type)
}

// Types returns the types of the published events in order
func (m *MockEventPublisher) Types() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.Events))
	copy(out, m.Events)
	return out
}

// MockReportStore keeps archived reports in memory
type MockReportStore struct {
	mu      sync.Mutex
	Objects map[string][]byte
	Types   map[string]string
	PutErr  error
}

// NewMockReportStore creates a new MockReportStore
func NewMockReportStore() *MockReportStore {
	return &MockReportStore{Objects: make(map[string][]byte), Types: make(map[string]string)}
}

// Put stores body under key
func (m *MockReportStore) Put(ctx context.Context, key string, body io.Reader, size int64, contentType string) error {
	if m.PutErr != nil {
		return m.PutErr
	}
	data, err := io.ReadAll(body)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Objects[key] = data
	m.Types[key] = contentType
	return nil
}

// Get returns the object stored under key
func (m *MockReportStore) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.Objects[key]
	if !ok {
		return nil, domain.NewNotFoundError("report", key, domain.ErrReportNotFound)
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

// MockArchiveQueue records enqueued archive days
type MockArchiveQueue struct {
	mu   sync.Mutex
	Days []time.Time
	Err  error
}

// EnqueueDailyArchive implements domain.ArchiveQueue
func (m *MockArchiveQueue) EnqueueDailyArchive(ctx context.Context, day time.Time) (string, error) {
	if m.Err != nil {
		return "", m.Err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Days = append(m.Days, day)
	return fmt.Sprintf("task-%d", len(m.Days)), nil
}

func containsKind(kinds []domain.PostingKind, k domain.PostingKind) bool {
	for _, kind := range kinds {
		if kind == k {
			return true
		}
	}
	return false
}

func copyAccount(a *domain.Account) *domain.Account {
	c := *a
	return &c
}

func copyPosting(p *domain.Posting) *domain.Posting {
	c := *p
	if p.RefID != nil {
		ref := *p.RefID
		c.RefID = &ref
	}
	return &c
}

func copyAdvance(a *domain.EmployeeAdvance) *domain.EmployeeAdvance {
	c := *a
	c.Repayments = make([]*domain.Repayment, len(a.Repayments))
	for i, r := range a.Repayments {
		rc := *r
		c.Repayments[i] = &rc
	}
	return &c
}
