package service

import (
	"context"
	"strings"
	"time"

	"github.com/dafibh/kaskecil/kaskecil-backend/internal/domain"
	"github.com/dafibh/kaskecil/kaskecil-backend/internal/websocket"
	"github.com/rs/zerolog/log"
)

// DefaultExpenseCategory is used when an expense is recorded without one
const DefaultExpenseCategory = "Operasional"

// ExpenseService handles cash expenses paid from an account
type ExpenseService struct {
	accountRepo    domain.AccountRepository
	expenseRepo    domain.ExpenseRepository
	policy         LedgerPolicy
	authorize      domain.AuthorizeFunc
	eventPublisher websocket.EventPublisher
	location       *time.Location
	now            func() time.Time
}

// NewExpenseService creates a new ExpenseService
func NewExpenseService(accountRepo domain.AccountRepository, expenseRepo domain.ExpenseRepository, policy LedgerPolicy) *ExpenseService {
	return &ExpenseService{
		accountRepo: accountRepo,
		expenseRepo: expenseRepo,
		policy:      policy,
		authorize:   domain.DefaultAuthorizer,
		location:    time.Local,
		now:         time.Now,
	}
}

// SetEventPublisher sets the event publisher for real-time updates
func (s *ExpenseService) SetEventPublisher(publisher websocket.EventPublisher) {
	s.eventPublisher = publisher
}

// SetAuthorizer replaces the authorization hook for privileged actions
func (s *ExpenseService) SetAuthorizer(fn domain.AuthorizeFunc) {
	s.authorize = fn
}

// SetLocation sets the zone that decides which calendar day an entry falls on
func (s *ExpenseService) SetLocation(loc *time.Location) {
	if loc != nil {
		s.location = loc
	}
}

func (s *ExpenseService) publishEvent(event websocket.Event) {
	if s.eventPublisher != nil {
		s.eventPublisher.Publish(event)
	}
}

// RecordExpense debits the account and stores the expense
func (s *ExpenseService) RecordExpense(ctx context.Context, actor domain.Actor, input domain.RecordExpenseInput) (*domain.Expense, error) {
	if err := domain.ValidateActor(actor); err != nil {
		return nil, err
	}

	description := strings.TrimSpace(input.Description)
	if description == "" {
		return nil, domain.ErrDescriptionRequired
	}
	if len(description) > domain.MaxDescriptionLength {
		return nil, domain.NewValidationError(domain.ErrValidation, "description is too long")
	}
	if err := domain.ValidatePositiveMoney("amount", input.Amount); err != nil {
		return nil, err
	}
	if strings.TrimSpace(input.AccountID) == "" {
		return nil, domain.ErrPaymentAccountNeeded
	}

	account, err := s.accountRepo.GetByID(ctx, input.AccountID)
	if err != nil {
		return nil, err
	}

	category := strings.TrimSpace(input.Category)
	if category == "" {
		category = DefaultExpenseCategory
	}
	now := s.now()
	date := input.Date
	if date.IsZero() {
		date = now
	}

	expense := &domain.Expense{
		Description: description,
		Amount:      input.Amount,
		AccountID:   &account.ID,
		Category:    category,
		Date:        date,
		CreatedBy:   actor.ID,
	}
	posting := &domain.Posting{
		AccountID:   account.ID,
		Amount:      input.Amount.Neg(),
		Kind:        domain.PostingKindExpense,
		Description: description,
		ActorID:     actor.ID,
		PostedAt:    postingTime(date, now, s.location),
	}

	created, err := s.expenseRepo.Create(ctx, expense, posting, s.policy.GuardFor(account))
	if err != nil {
		return nil, err
	}

	log.Info().
		Str("expense_id", created.ID).
		Str("account_id", account.ID).
		Str("amount", created.Amount.StringFixed(2)).
		Str("actor_id", actor.ID).
		Msg("Expense recorded")

	s.publishEvent(websocket.ExpenseCreated(created, account.ID))
	return created, nil
}

// DeleteExpense removes an expense and credits its amount back to the account.
// Expenses without an account, such as receivable write-offs, move no balance.
func (s *ExpenseService) DeleteExpense(ctx context.Context, actor domain.Actor, id string) error {
	if err := domain.ValidateActor(actor); err != nil {
		return err
	}
	if !s.authorize(actor, domain.ActionDeleteExpense) {
		return domain.ErrForbidden
	}

	expense, err := s.expenseRepo.GetByID(ctx, id)
	if err != nil {
		return err
	}

	var posting *domain.Posting
	var accounts []string
	if expense.AccountID != nil {
		ref := expense.ID
		posting = &domain.Posting{
			AccountID:   *expense.AccountID,
			Amount:      expense.Amount,
			Kind:        domain.PostingKindExpenseReversal,
			RefID:       &ref,
			Description: "Reversal: " + expense.Description,
			ActorID:     actor.ID,
			PostedAt:    postingTime(expense.Date, s.now(), s.location),
		}
		accounts = append(accounts, *expense.AccountID)
	}

	if err := s.expenseRepo.Delete(ctx, id, posting); err != nil {
		return err
	}

	log.Info().Str("expense_id", id).Str("actor_id", actor.ID).Msg("Expense deleted")
	s.publishEvent(websocket.ExpenseDeleted(expense, accounts...))
	return nil
}

// GetExpense retrieves an expense by ID
func (s *ExpenseService) GetExpense(ctx context.Context, id string) (*domain.Expense, error) {
	return s.expenseRepo.GetByID(ctx, id)
}

// ListExpenses returns expenses newest first
func (s *ExpenseService) ListExpenses(ctx context.Context, filter domain.ExpenseFilter) ([]*domain.Expense, error) {
	if filter.From != nil && filter.To != nil && filter.From.After(*filter.To) {
		return nil, domain.ErrInvalidDateRange
	}
	return s.expenseRepo.List(ctx, filter)
}
