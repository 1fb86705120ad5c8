package service

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/dafibh/kaskecil/kaskecil-backend/internal/domain"
	"github.com/dafibh/kaskecil/kaskecil-backend/internal/websocket"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

// AdvanceService handles cash advances (kasbon) given to employees
type AdvanceService struct {
	accountRepo    domain.AccountRepository
	advanceRepo    domain.AdvanceRepository
	policy         LedgerPolicy
	authorize      domain.AuthorizeFunc
	eventPublisher websocket.EventPublisher
	location       *time.Location
	now            func() time.Time
}

// NewAdvanceService creates a new AdvanceService
func NewAdvanceService(accountRepo domain.AccountRepository, advanceRepo domain.AdvanceRepository, policy LedgerPolicy) *AdvanceService {
	return &AdvanceService{
		accountRepo: accountRepo,
		advanceRepo: advanceRepo,
		policy:      policy,
		authorize:   domain.DefaultAuthorizer,
		location:    time.Local,
		now:         time.Now,
	}
}

// SetEventPublisher sets the event publisher for real-time updates
func (s *AdvanceService) SetEventPublisher(publisher websocket.EventPublisher) {
	s.eventPublisher = publisher
}

// SetAuthorizer replaces the authorization hook for privileged actions
func (s *AdvanceService) SetAuthorizer(fn domain.AuthorizeFunc) {
	s.authorize = fn
}

// SetLocation sets the zone that decides which calendar day an entry falls on
func (s *AdvanceService) SetLocation(loc *time.Location) {
	if loc != nil {
		s.location = loc
	}
}

func (s *AdvanceService) publishEvent(event websocket.Event) {
	if s.eventPublisher != nil {
		s.eventPublisher.Publish(event)
	}
}

// GrantAdvance pays an advance out of the funding account
func (s *AdvanceService) GrantAdvance(ctx context.Context, actor domain.Actor, input domain.GrantAdvanceInput) (*domain.EmployeeAdvance, error) {
	if err := domain.ValidateActor(actor); err != nil {
		return nil, err
	}

	employeeID := strings.TrimSpace(input.EmployeeID)
	if employeeID == "" {
		return nil, domain.ErrEmployeeRequired
	}
	if err := domain.ValidatePositiveMoney("amount", input.Amount); err != nil {
		return nil, err
	}
	if len(input.Notes) > domain.MaxDescriptionLength {
		return nil, domain.NewValidationError(domain.ErrValidation, "notes are too long")
	}
	if strings.TrimSpace(input.AccountID) == "" {
		return nil, domain.ErrPaymentAccountNeeded
	}

	account, err := s.accountRepo.GetByID(ctx, input.AccountID)
	if err != nil {
		return nil, err
	}

	employeeName := strings.TrimSpace(input.EmployeeName)
	if employeeName == "" {
		employeeName = employeeID
	}
	now := s.now()
	date := input.Date
	if date.IsZero() {
		date = now
	}

	advance := &domain.EmployeeAdvance{
		EmployeeID:      employeeID,
		EmployeeName:    employeeName,
		Amount:          input.Amount,
		AccountID:       account.ID,
		Notes:           strings.TrimSpace(input.Notes),
		Date:            date,
		RemainingAmount: input.Amount,
		CreatedBy:       actor.ID,
	}
	posting := &domain.Posting{
		AccountID:   account.ID,
		Amount:      input.Amount.Neg(),
		Kind:        domain.PostingKindAdvanceGrant,
		Description: "Advance to " + employeeName,
		ActorID:     actor.ID,
		PostedAt:    postingTime(date, now, s.location),
	}

	created, err := s.advanceRepo.Create(ctx, advance, posting, s.policy.GuardFor(account))
	if err != nil {
		return nil, err
	}

	log.Info().
		Str("advance_id", created.ID).
		Str("employee_id", employeeID).
		Str("account_id", account.ID).
		Str("amount", created.Amount.StringFixed(2)).
		Str("actor_id", actor.ID).
		Msg("Advance granted")

	s.publishEvent(websocket.AdvanceCreated(created, account.ID))
	return created, nil
}

// RepayAdvance records a repayment. Depending on policy the cash goes back
// into the funding account or the repayment is informational only.
func (s *AdvanceService) RepayAdvance(ctx context.Context, actor domain.Actor, advanceID string, amount decimal.Decimal, date time.Time) (*domain.EmployeeAdvance, error) {
	if err := domain.ValidateActor(actor); err != nil {
		return nil, err
	}
	if err := domain.ValidatePositiveMoney("amount", amount); err != nil {
		return nil, err
	}

	advance, err := s.advanceRepo.GetByID(ctx, advanceID)
	if err != nil {
		return nil, err
	}
	if !advance.RemainingAmount.IsPositive() {
		return nil, domain.NewValidationError(domain.ErrAlreadySettled, "advance is fully repaid")
	}
	if amount.GreaterThan(advance.RemainingAmount) {
		return nil, domain.NewValidationError(domain.ErrOverpayment,
			fmt.Sprintf("remaining %s, requested %s", advance.RemainingAmount.StringFixed(2), amount.StringFixed(2)))
	}
	now := s.now()
	if date.IsZero() {
		date = now
	}

	credited := s.policy.AdvanceRepaymentCreditsAccount
	repayment := &domain.Repayment{
		Amount:     amount,
		Date:       date,
		RecordedBy: actor.ID,
		Credited:   credited,
	}
	var posting *domain.Posting
	if credited {
		posting = &domain.Posting{
			AccountID:   advance.AccountID,
			Amount:      amount,
			Kind:        domain.PostingKindAdvanceRepayment,
			Description: "Advance repayment from " + advance.EmployeeName,
			ActorID:     actor.ID,
			PostedAt:    postingTime(date, now, s.location),
		}
	}

	updated, err := s.advanceRepo.AddRepayment(ctx, advance.ID, repayment, posting)
	if err != nil {
		return nil, err
	}

	log.Info().
		Str("advance_id", advance.ID).
		Str("amount", amount.StringFixed(2)).
		Str("remaining", updated.RemainingAmount.StringFixed(2)).
		Bool("credited", credited).
		Str("actor_id", actor.ID).
		Msg("Advance repayment recorded")

	s.publishEvent(websocket.AdvanceRepaid(updated, advance.AccountID))
	return updated, nil
}

// DeleteAdvance removes an advance with its repayments and returns to the
// funding account whatever part of the grant has not come back already.
func (s *AdvanceService) DeleteAdvance(ctx context.Context, actor domain.Actor, advanceID string) (*domain.EmployeeAdvance, error) {
	if err := domain.ValidateActor(actor); err != nil {
		return nil, err
	}
	if !s.authorize(actor, domain.ActionDeleteAdvance) {
		return nil, domain.ErrForbidden
	}

	var reversed decimal.Decimal
	deleted, err := s.advanceRepo.Delete(ctx, advanceID, func(a *domain.EmployeeAdvance) *domain.Posting {
		reversed = a.Amount.Sub(a.CreditedTotal())
		if !reversed.IsPositive() {
			return nil
		}
		ref := a.ID
		return &domain.Posting{
			AccountID:   a.AccountID,
			Amount:      reversed,
			Kind:        domain.PostingKindAdvanceReversal,
			RefID:       &ref,
			Description: "Reversal of advance to " + a.EmployeeName,
			ActorID:     actor.ID,
			PostedAt:    postingTime(a.Date, s.now(), s.location),
		}
	})
	if err != nil {
		return nil, err
	}

	log.Info().
		Str("advance_id", advanceID).
		Str("reversed", reversed.StringFixed(2)).
		Str("actor_id", actor.ID).
		Msg("Advance deleted")

	s.publishEvent(websocket.AdvanceDeleted(deleted, deleted.AccountID))
	return deleted, nil
}

// GetAdvance retrieves an advance with its repayments
func (s *AdvanceService) GetAdvance(ctx context.Context, id string) (*domain.EmployeeAdvance, error) {
	return s.advanceRepo.GetByID(ctx, id)
}

// ListAdvances returns advances newest first
func (s *AdvanceService) ListAdvances(ctx context.Context, filter domain.AdvanceFilter) ([]*domain.EmployeeAdvance, error) {
	return s.advanceRepo.List(ctx, filter)
}

// GroupByEmployee rolls advances up per employee, ordered by employee name
func (s *AdvanceService) GroupByEmployee(ctx context.Context, filter domain.AdvanceFilter) ([]*domain.EmployeeAdvanceGroup, error) {
	advances, err := s.advanceRepo.List(ctx, filter)
	if err != nil {
		return nil, err
	}

	groups := make(map[string]*domain.EmployeeAdvanceGroup)
	for _, a := range advances {
		g, ok := groups[a.EmployeeID]
		if !ok {
			g = &domain.EmployeeAdvanceGroup{
				EmployeeID:     a.EmployeeID,
				EmployeeName:   a.EmployeeName,
				TotalAmount:    decimal.Zero,
				TotalRemaining: decimal.Zero,
			}
			groups[a.EmployeeID] = g
		}
		g.TotalAmount = g.TotalAmount.Add(a.Amount)
		g.TotalRemaining = g.TotalRemaining.Add(a.RemainingAmount)
		g.Count++
		g.Advances = append(g.Advances, a)
	}

	out := make([]*domain.EmployeeAdvanceGroup, 0, len(groups))
	for _, g := range groups {
		out = append(out, g)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].EmployeeName == out[j].EmployeeName {
			return out[i].EmployeeID < out[j].EmployeeID
		}
		return out[i].EmployeeName < out[j].EmployeeName
	})
	return out, nil
}
