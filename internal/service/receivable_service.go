package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/dafibh/kaskecil/kaskecil-backend/internal/domain"
	"github.com/dafibh/kaskecil/kaskecil-backend/internal/websocket"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

// ReceivableService handles sales that are not fully paid yet
type ReceivableService struct {
	accountRepo     domain.AccountRepository
	transactionRepo domain.TransactionRepository
	postingRepo     domain.PostingRepository
	authorize       domain.AuthorizeFunc
	eventPublisher  websocket.EventPublisher
	now             func() time.Time
}

// NewReceivableService creates a new ReceivableService
func NewReceivableService(accountRepo domain.AccountRepository, transactionRepo domain.TransactionRepository, postingRepo domain.PostingRepository) *ReceivableService {
	return &ReceivableService{
		accountRepo:     accountRepo,
		transactionRepo: transactionRepo,
		postingRepo:     postingRepo,
		authorize:       domain.DefaultAuthorizer,
		now:             time.Now,
	}
}

// SetEventPublisher sets the event publisher for real-time updates
func (s *ReceivableService) SetEventPublisher(publisher websocket.EventPublisher) {
	s.eventPublisher = publisher
}

// SetAuthorizer replaces the authorization hook for privileged actions
func (s *ReceivableService) SetAuthorizer(fn domain.AuthorizeFunc) {
	s.authorize = fn
}

func (s *ReceivableService) publishEvent(event websocket.Event) {
	if s.eventPublisher != nil {
		s.eventPublisher.Publish(event)
	}
}

// RecordSale stores a sale. A down payment is booked on the payment account
// in the same unit.
func (s *ReceivableService) RecordSale(ctx context.Context, actor domain.Actor, input domain.RecordSaleInput) (*domain.Transaction, error) {
	if err := domain.ValidateActor(actor); err != nil {
		return nil, err
	}

	customer := strings.TrimSpace(input.CustomerName)
	if customer == "" {
		return nil, domain.ErrNameRequired
	}
	if len(customer) > domain.MaxAccountNameLength {
		return nil, domain.ErrNameTooLong
	}
	if !input.Total.IsPositive() {
		return nil, domain.NewValidationError(domain.ErrAmountNotPositive, "total")
	}
	if err := domain.ValidateMoney("total", input.Total); err != nil {
		return nil, err
	}
	if input.PaidAmount.IsNegative() {
		return nil, domain.NewValidationError(domain.ErrValidation, "paid amount must not be negative")
	}
	if err := domain.ValidateMoney("paidAmount", input.PaidAmount); err != nil {
		return nil, err
	}
	if input.PaidAmount.GreaterThan(input.Total) {
		return nil, domain.ErrPaidExceedsTotal
	}

	transaction := &domain.Transaction{
		CustomerName:  customer,
		Total:         input.Total,
		PaidAmount:    input.PaidAmount,
		PaymentStatus: domain.DerivePaymentStatus(input.Total, input.PaidAmount),
		CreatedBy:     actor.ID,
	}

	var posting *domain.Posting
	if input.PaidAmount.IsPositive() {
		account, err := s.paymentAccount(ctx, input.PaymentAccountID)
		if err != nil {
			return nil, err
		}
		transaction.PaymentAccountID = &account.ID
		posting = &domain.Posting{
			AccountID:   account.ID,
			Amount:      input.PaidAmount,
			Kind:        domain.PostingKindSaleIncome,
			Description: "Sale to " + customer,
			ActorID:     actor.ID,
		}
	}

	created, err := s.transactionRepo.Create(ctx, transaction, posting)
	if err != nil {
		return nil, err
	}

	log.Info().
		Str("transaction_id", created.ID).
		Str("total", created.Total.StringFixed(2)).
		Str("paid", created.PaidAmount.StringFixed(2)).
		Str("actor_id", actor.ID).
		Msg("Sale recorded")

	if posting != nil {
		s.publishEvent(websocket.ReceivableCreated(created, posting.AccountID))
	} else {
		s.publishEvent(websocket.ReceivableCreated(created))
	}
	return created, nil
}

// PayReceivable credits accountID with amount and applies it to the sale.
// The amount is checked here and again under the row lock at the store.
func (s *ReceivableService) PayReceivable(ctx context.Context, actor domain.Actor, transactionID string, amount decimal.Decimal, accountID string) (*domain.PaymentResult, error) {
	if err := domain.ValidateActor(actor); err != nil {
		return nil, err
	}
	if err := domain.ValidatePositiveMoney("amount", amount); err != nil {
		return nil, err
	}

	transaction, err := s.transactionRepo.GetByID(ctx, transactionID)
	if err != nil {
		return nil, err
	}
	remaining := transaction.Remaining()
	if !remaining.IsPositive() {
		return nil, domain.ErrAlreadySettled
	}
	if amount.GreaterThan(remaining) {
		return nil, domain.NewValidationError(domain.ErrOverpayment,
			fmt.Sprintf("remaining %s, requested %s", remaining.StringFixed(2), amount.StringFixed(2)))
	}

	account, err := s.paymentAccount(ctx, accountID)
	if err != nil {
		return nil, err
	}

	ref := transaction.ID
	result, err := s.transactionRepo.Pay(ctx, transaction.ID, amount, &domain.Posting{
		AccountID:   account.ID,
		Amount:      amount,
		Kind:        domain.PostingKindReceivablePayment,
		RefID:       &ref,
		Description: "Payment from " + transaction.CustomerName,
		ActorID:     actor.ID,
	})
	if err != nil {
		return nil, err
	}

	log.Info().
		Str("transaction_id", transaction.ID).
		Str("account_id", account.ID).
		Str("amount", amount.StringFixed(2)).
		Str("status", string(result.Transaction.PaymentStatus)).
		Str("actor_id", actor.ID).
		Msg("Receivable payment recorded")

	s.publishEvent(websocket.ReceivablePaid(result, account.ID))
	if result.Account != nil {
		s.publishEvent(websocket.AccountBalanceChanged(result.Account, account.ID))
	}
	return result, nil
}

// WriteOffReceivable forgives the unpaid remainder. The remainder is booked as
// an expense without an account, so no balance moves.
func (s *ReceivableService) WriteOffReceivable(ctx context.Context, actor domain.Actor, transactionID string) (*domain.WriteOffResult, error) {
	if err := domain.ValidateActor(actor); err != nil {
		return nil, err
	}
	if !s.authorize(actor, domain.ActionWriteOffReceivable) {
		return nil, domain.ErrForbidden
	}

	now := s.now()
	result, err := s.transactionRepo.WriteOff(ctx, transactionID, func(t *domain.Transaction) (*domain.Expense, error) {
		remaining := t.Remaining()
		if !remaining.IsPositive() {
			return nil, domain.ErrAlreadySettled
		}
		ref := t.ID
		return &domain.Expense{
			Description: fmt.Sprintf("Write-off of %s receivable", t.CustomerName),
			Amount:      remaining,
			Category:    domain.WriteOffCategory,
			RefID:       &ref,
			Date:        now,
			CreatedBy:   actor.ID,
		}, nil
	})
	if err != nil {
		return nil, err
	}

	log.Warn().
		Str("transaction_id", transactionID).
		Str("amount", result.Expense.Amount.StringFixed(2)).
		Str("actor_id", actor.ID).
		Msg("Receivable written off")

	s.publishEvent(websocket.ReceivableWrittenOff(result))
	return result, nil
}

// GetTransaction retrieves a sale by ID
func (s *ReceivableService) GetTransaction(ctx context.Context, id string) (*domain.Transaction, error) {
	return s.transactionRepo.GetByID(ctx, id)
}

// ListReceivables returns sales, optionally only the unpaid ones
func (s *ReceivableService) ListReceivables(ctx context.Context, filter domain.TransactionFilter) ([]*domain.Transaction, error) {
	return s.transactionRepo.List(ctx, filter)
}

// ListPayments returns the postings that paid into a sale, down payment included
func (s *ReceivableService) ListPayments(ctx context.Context, transactionID string) ([]*domain.Posting, error) {
	if _, err := s.transactionRepo.GetByID(ctx, transactionID); err != nil {
		return nil, err
	}
	ref := transactionID
	return s.postingRepo.List(ctx, domain.PostingFilter{
		RefID: &ref,
		Kinds: []domain.PostingKind{domain.PostingKindSaleIncome, domain.PostingKindReceivablePayment},
	})
}

func (s *ReceivableService) paymentAccount(ctx context.Context, id string) (*domain.Account, error) {
	if strings.TrimSpace(id) == "" {
		return nil, domain.ErrPaymentAccountNeeded
	}
	account, err := s.accountRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !account.IsPaymentAccount {
		return nil, domain.NewValidationError(domain.ErrNotPaymentAccount, account.Name)
	}
	return account, nil
}
