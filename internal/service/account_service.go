package service

import (
	"context"
	"strings"
	"time"

	"github.com/dafibh/kaskecil/kaskecil-backend/internal/domain"
	"github.com/dafibh/kaskecil/kaskecil-backend/internal/websocket"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

// AccountService handles account-related business logic
type AccountService struct {
	accountRepo    domain.AccountRepository
	postingRepo    domain.PostingRepository
	policy         LedgerPolicy
	authorize      domain.AuthorizeFunc
	eventPublisher websocket.EventPublisher
}

// NewAccountService creates a new AccountService
func NewAccountService(accountRepo domain.AccountRepository, postingRepo domain.PostingRepository, policy LedgerPolicy) *AccountService {
	return &AccountService{
		accountRepo: accountRepo,
		postingRepo: postingRepo,
		policy:      policy,
		authorize:   domain.DefaultAuthorizer,
	}
}

// SetEventPublisher sets the event publisher for real-time updates
func (s *AccountService) SetEventPublisher(publisher websocket.EventPublisher) {
	s.eventPublisher = publisher
}

// SetAuthorizer replaces the authorization hook for privileged actions
func (s *AccountService) SetAuthorizer(fn domain.AuthorizeFunc) {
	s.authorize = fn
}

func (s *AccountService) publishEvent(event websocket.Event) {
	if s.eventPublisher != nil {
		s.eventPublisher.Publish(event)
	}
}

// CreateAccount opens an account. A non-zero initial balance is booked as an
// opening posting so the balance always matches the journal.
func (s *AccountService) CreateAccount(ctx context.Context, actor domain.Actor, input domain.CreateAccountInput) (*domain.Account, error) {
	if err := domain.ValidateActor(actor); err != nil {
		return nil, err
	}

	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, domain.ErrNameRequired
	}
	if len(name) > domain.MaxAccountNameLength {
		return nil, domain.ErrNameTooLong
	}
	if !input.Type.IsValid() {
		return nil, domain.NewValidationError(domain.ErrInvalidAccountType, string(input.Type))
	}

	account := &domain.Account{
		Name:             name,
		Type:             input.Type,
		IsPaymentAccount: input.IsPaymentAccount,
	}

	if err := domain.ValidateMoney("initialBalance", input.InitialBalance); err != nil {
		return nil, err
	}

	var opening *domain.Posting
	if !input.InitialBalance.IsZero() {
		opening = &domain.Posting{
			Amount:      input.InitialBalance,
			Kind:        domain.PostingKindOpening,
			Description: "Opening balance",
			ActorID:     actor.ID,
		}
	}

	created, err := s.accountRepo.Create(ctx, account, opening)
	if err != nil {
		return nil, err
	}

	log.Info().Str("account_id", created.ID).Str("name", created.Name).Str("actor_id", actor.ID).Msg("Account created")
	s.publishEvent(websocket.AccountCreated(created, created.ID))
	return created, nil
}

// GetAccount retrieves an account by ID
func (s *AccountService) GetAccount(ctx context.Context, id string) (*domain.Account, error) {
	return s.accountRepo.GetByID(ctx, id)
}

// ListAccounts retrieves all accounts
func (s *AccountService) ListAccounts(ctx context.Context, filter domain.AccountFilter) ([]*domain.Account, error) {
	return s.accountRepo.List(ctx, filter)
}

// ListPostings returns the journal of an account between after (exclusive) and until (inclusive)
func (s *AccountService) ListPostings(ctx context.Context, accountID string, after, until *time.Time) ([]*domain.Posting, error) {
	if _, err := s.accountRepo.GetByID(ctx, accountID); err != nil {
		return nil, err
	}
	return s.postingRepo.List(ctx, domain.PostingFilter{AccountID: accountID, After: after, Until: until})
}

// AdjustBalanceInput is a single balance movement
type AdjustBalanceInput struct {
	AccountID   string
	Delta       decimal.Decimal
	Kind        domain.PostingKind
	RefID       *string
	Description string
}

// AdjustBalance applies delta to the account and records the posting in one
// atomic step at the store. The overdraft policy of the account type applies
// to negative deltas.
func (s *AccountService) AdjustBalance(ctx context.Context, actor domain.Actor, input AdjustBalanceInput) (*domain.Account, error) {
	if err := domain.ValidateActor(actor); err != nil {
		return nil, err
	}
	if input.Delta.IsZero() {
		return nil, domain.ErrZeroDelta
	}
	if err := domain.ValidateMoney("delta", input.Delta); err != nil {
		return nil, err
	}
	if !input.Kind.IsValid() {
		return nil, domain.NewValidationError(domain.ErrValidation, "unknown posting kind "+string(input.Kind))
	}

	account, err := s.accountRepo.GetByID(ctx, input.AccountID)
	if err != nil {
		return nil, err
	}

	updated, err := s.accountRepo.ApplyPosting(ctx, &domain.Posting{
		AccountID:   account.ID,
		Amount:      input.Delta,
		Kind:        input.Kind,
		RefID:       input.RefID,
		Description: input.Description,
		ActorID:     actor.ID,
	}, s.policy.GuardFor(account))
	if err != nil {
		return nil, err
	}

	s.publishEvent(websocket.AccountBalanceChanged(updated, updated.ID))
	return updated, nil
}

// SetBalance overwrites the balance for manual correction. It writes no
// posting, so the reconciliation report will show the difference.
func (s *AccountService) SetBalance(ctx context.Context, actor domain.Actor, accountID string, value decimal.Decimal) (*domain.Account, error) {
	if err := domain.ValidateActor(actor); err != nil {
		return nil, err
	}
	if !s.authorize(actor, domain.ActionSetBalance) {
		return nil, domain.ErrForbidden
	}
	if err := domain.ValidateMoney("balance", value); err != nil {
		return nil, err
	}

	before, err := s.accountRepo.GetByID(ctx, accountID)
	if err != nil {
		return nil, err
	}

	updated, err := s.accountRepo.SetBalance(ctx, accountID, value)
	if err != nil {
		return nil, err
	}

	log.Warn().
		Str("account_id", accountID).
		Str("actor_id", actor.ID).
		Str("old_balance", before.Balance.StringFixed(2)).
		Str("new_balance", updated.Balance.StringFixed(2)).
		Msg("Account balance overridden without posting")

	s.publishEvent(websocket.AccountBalanceChanged(updated, updated.ID))
	return updated, nil
}
