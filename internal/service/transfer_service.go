package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/dafibh/kaskecil/kaskecil-backend/internal/domain"
	"github.com/dafibh/kaskecil/kaskecil-backend/internal/websocket"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// TransferService moves funds between accounts
type TransferService struct {
	accountRepo    domain.AccountRepository
	transferRepo   domain.TransferRepository
	postingRepo    domain.PostingRepository
	atomic         domain.AtomicTransferer
	idempotency    domain.IdempotencyStore
	policy         LedgerPolicy
	eventPublisher websocket.EventPublisher
}

// NewTransferService creates a new TransferService. When transferRepo can
// run a transfer in one store transaction it is used for every transfer;
// otherwise transfers run step by step with compensation.
func NewTransferService(accountRepo domain.AccountRepository, transferRepo domain.TransferRepository, postingRepo domain.PostingRepository, policy LedgerPolicy) *TransferService {
	s := &TransferService{
		accountRepo:  accountRepo,
		transferRepo: transferRepo,
		postingRepo:  postingRepo,
		policy:       policy,
	}
	if atomic, ok := transferRepo.(domain.AtomicTransferer); ok {
		s.atomic = atomic
	}
	return s
}

// SetEventPublisher sets the event publisher for real-time updates
func (s *TransferService) SetEventPublisher(publisher websocket.EventPublisher) {
	s.eventPublisher = publisher
}

// SetIdempotencyStore enables idempotency keys on Transfer
func (s *TransferService) SetIdempotencyStore(store domain.IdempotencyStore) {
	s.idempotency = store
}

func (s *TransferService) publishEvent(event websocket.Event) {
	if s.eventPublisher != nil {
		s.eventPublisher.Publish(event)
	}
}

// Transfer debits the source, credits the destination and records the
// transfer as one unit of work. All validation runs before anything moves.
func (s *TransferService) Transfer(ctx context.Context, actor domain.Actor, input domain.TransferInput) (*domain.TransferResult, error) {
	// 1. Validate input
	if err := domain.ValidateActor(actor); err != nil {
		return nil, err
	}
	if err := domain.ValidatePositiveMoney("amount", input.Amount); err != nil {
		return nil, err
	}
	if s.policy.MinTransferAmount.IsPositive() && input.Amount.LessThan(s.policy.MinTransferAmount) {
		return nil, domain.NewValidationError(domain.ErrAmountBelowMinimum,
			fmt.Sprintf("minimum transfer is %s", s.policy.MinTransferAmount.StringFixed(2)))
	}
	if input.FromAccountID == input.ToAccountID {
		return nil, domain.ErrSameAccount
	}
	description := strings.TrimSpace(input.Description)
	if len(description) > domain.MaxDescriptionLength {
		return nil, domain.NewValidationError(domain.ErrValidation, "description is too long")
	}

	// 2. Both accounts must exist
	from, err := s.accountRepo.GetByID(ctx, input.FromAccountID)
	if err != nil {
		return nil, err
	}
	to, err := s.accountRepo.GetByID(ctx, input.ToAccountID)
	if err != nil {
		return nil, err
	}
	if description == "" {
		description = fmt.Sprintf("Transfer from %s to %s", from.Name, to.Name)
	}

	// 3. Idempotency
	key := strings.TrimSpace(input.IdempotencyKey)
	if key != "" && s.idempotency != nil {
		replayed, err := s.replay(ctx, key, input)
		if err != nil || replayed != nil {
			return replayed, err
		}
		claimed, err := s.idempotency.Claim(ctx, key)
		if err != nil {
			return nil, fmt.Errorf("claim idempotency key: %w", err)
		}
		if !claimed {
			return nil, domain.ErrIdempotencyInProgress
		}
	}

	transfer := &domain.Transfer{
		ID:              uuid.NewString(),
		FromAccountID:   from.ID,
		ToAccountID:     to.ID,
		Amount:          input.Amount,
		Description:     description,
		InitiatedBy:     actor.ID,
		InitiatedByName: actor.Name,
	}
	if key != "" {
		transfer.IdempotencyKey = &key
	}

	// 4. Move the funds
	guard := s.policy.TransferGuard(from)
	var result *domain.TransferResult
	if s.atomic != nil {
		result, err = s.atomic.AtomicTransfer(ctx, transfer, guard)
	} else {
		result, err = s.transferStepwise(ctx, transfer, guard)
	}
	if err != nil {
		// A transfer stuck half way keeps its key so a retry cannot move the money twice
		if key != "" && s.idempotency != nil && !errors.Is(err, domain.ErrConsistency) {
			if rerr := s.idempotency.Release(context.WithoutCancel(ctx), key); rerr != nil {
				log.Warn().Err(rerr).Str("idempotency_key", key).Msg("Failed to release idempotency key")
			}
		}
		return nil, err
	}

	if key != "" && s.idempotency != nil {
		// On failure the key stays pending; replay then finds the transfer by its key
		if err := s.idempotency.Complete(ctx, key, result.Transfer.ID); err != nil {
			log.Warn().Err(err).Str("idempotency_key", key).Str("transfer_id", result.Transfer.ID).Msg("Failed to store idempotency key")
		}
	}

	log.Info().
		Str("transfer_id", result.Transfer.ID).
		Str("from_account_id", from.ID).
		Str("to_account_id", to.ID).
		Str("amount", input.Amount.StringFixed(2)).
		Str("actor_id", actor.ID).
		Bool("history_recorded", result.HistoryRecorded).
		Msg("Transfer completed")

	s.publishEvent(websocket.TransferCreated(result.Transfer, from.ID, to.ID))
	if result.FromAccount != nil {
		s.publishEvent(websocket.AccountBalanceChanged(result.FromAccount, from.ID))
	}
	if result.ToAccount != nil {
		s.publishEvent(websocket.AccountBalanceChanged(result.ToAccount, to.ID))
	}
	return result, nil
}

// transferStepwise runs debit, credit and history as separate store calls.
// A failed credit is compensated by crediting the source back; if that also
// fails the ledger is left inconsistent and a ConsistencyError is returned.
// A failed history insert does not undo the movement.
func (s *TransferService) transferStepwise(ctx context.Context, transfer *domain.Transfer, guard domain.BalanceGuard) (*domain.TransferResult, error) {
	ref := transfer.ID

	// Step 1: debit source
	fromAccount, err := s.accountRepo.ApplyPosting(ctx, &domain.Posting{
		AccountID:   transfer.FromAccountID,
		Amount:      transfer.Amount.Neg(),
		Kind:        domain.PostingKindTransferOut,
		RefID:       &ref,
		Description: transfer.Description,
		ActorID:     transfer.InitiatedBy,
	}, guard)
	if err != nil {
		return nil, err
	}

	// Step 2: credit destination
	toAccount, err := s.accountRepo.ApplyPosting(ctx, &domain.Posting{
		AccountID:   transfer.ToAccountID,
		Amount:      transfer.Amount,
		Kind:        domain.PostingKindTransferIn,
		RefID:       &ref,
		Description: transfer.Description,
		ActorID:     transfer.InitiatedBy,
	}, domain.BalanceGuard{})
	if err != nil {
		_, compErr := s.accountRepo.ApplyPosting(context.WithoutCancel(ctx), &domain.Posting{
			AccountID:   transfer.FromAccountID,
			Amount:      transfer.Amount,
			Kind:        domain.PostingKindTransferOut,
			RefID:       &ref,
			Description: "Rollback: " + transfer.Description,
			ActorID:     transfer.InitiatedBy,
		}, domain.BalanceGuard{})
		if compErr != nil {
			log.Error().
				Err(err).
				AnErr("compensation_error", compErr).
				Str("transfer_id", transfer.ID).
				Str("from_account_id", transfer.FromAccountID).
				Str("to_account_id", transfer.ToAccountID).
				Str("amount", transfer.Amount.StringFixed(2)).
				Msg("Transfer rollback failed, source account is debited without a matching credit")
			return nil, &domain.ConsistencyError{Op: "transfer " + transfer.ID, Err: err, CompensationErr: compErr}
		}
		log.Warn().
			Err(err).
			Str("transfer_id", transfer.ID).
			Msg("Transfer credit failed, debit rolled back")
		return nil, err
	}

	// Step 3: history
	recorded, err := s.transferRepo.Create(ctx, transfer)
	if err != nil {
		log.Warn().
			Err(err).
			Str("transfer_id", transfer.ID).
			Msg("Transfer completed but history was not recorded")
		return &domain.TransferResult{
			Transfer:        transfer,
			FromAccount:     fromAccount,
			ToAccount:       toAccount,
			HistoryRecorded: false,
		}, nil
	}

	return &domain.TransferResult{
		Transfer:        recorded,
		FromAccount:     fromAccount,
		ToAccount:       toAccount,
		HistoryRecorded: true,
	}, nil
}

// replay returns the earlier result for key, or nil when the key is new.
// The store may have lost the key or still hold it as pending after the
// funds moved, so the recorded transfers are consulted before a key counts
// as new or in progress.
func (s *TransferService) replay(ctx context.Context, key string, input domain.TransferInput) (*domain.TransferResult, error) {
	value, err := s.idempotency.Lookup(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("lookup idempotency key: %w", err)
	}

	var transfer *domain.Transfer
	historyRecorded := true
	switch value {
	case "", domain.PendingIdempotencyValue:
		transfer, err = s.transferRepo.GetByIdempotencyKey(ctx, key)
		if errors.Is(err, domain.ErrTransferNotFound) {
			if value == "" {
				return nil, nil
			}
			return nil, domain.ErrIdempotencyInProgress
		}
		if err != nil {
			return nil, err
		}
		if value == domain.PendingIdempotencyValue {
			if err := s.idempotency.Complete(ctx, key, transfer.ID); err != nil {
				log.Warn().Err(err).Str("idempotency_key", key).Msg("Failed to store idempotency key")
			}
		}
	default:
		transfer, err = s.transferRepo.GetByID(ctx, value)
		if errors.Is(err, domain.ErrTransferNotFound) {
			// Funds moved but history was never written
			historyRecorded = false
			transfer, err = s.transferFromJournal(ctx, value)
		}
		if err != nil {
			return nil, err
		}
	}

	if transfer.FromAccountID != input.FromAccountID || transfer.ToAccountID != input.ToAccountID || !transfer.Amount.Equal(input.Amount) {
		return nil, domain.ErrIdempotencyMismatch
	}

	result := &domain.TransferResult{Transfer: transfer, HistoryRecorded: historyRecorded, Replayed: true}
	if from, err := s.accountRepo.GetByID(ctx, transfer.FromAccountID); err == nil {
		result.FromAccount = from
	}
	if to, err := s.accountRepo.GetByID(ctx, transfer.ToAccountID); err == nil {
		result.ToAccount = to
	}
	return result, nil
}

// transferFromJournal rebuilds a transfer whose history row is missing from
// the two postings that carry its ID. Without both legs the earlier request
// cannot be matched and the key is treated as used by another transfer.
func (s *TransferService) transferFromJournal(ctx context.Context, id string) (*domain.Transfer, error) {
	postings, err := s.postingRepo.List(ctx, domain.PostingFilter{
		RefID: &id,
		Kinds: []domain.PostingKind{domain.PostingKindTransferOut, domain.PostingKindTransferIn},
	})
	if err != nil {
		return nil, err
	}

	transfer := &domain.Transfer{ID: id}
	for _, p := range postings {
		switch {
		case p.Kind == domain.PostingKindTransferOut && p.Amount.IsNegative():
			transfer.FromAccountID = p.AccountID
			transfer.Amount = p.Amount.Neg()
			transfer.Description = p.Description
			transfer.InitiatedBy = p.ActorID
			transfer.CreatedAt = p.PostedAt
		case p.Kind == domain.PostingKindTransferIn:
			transfer.ToAccountID = p.AccountID
		}
	}
	if transfer.FromAccountID == "" || transfer.ToAccountID == "" {
		return nil, domain.ErrIdempotencyMismatch
	}
	return transfer, nil
}

// GetTransfer retrieves a transfer by ID
func (s *TransferService) GetTransfer(ctx context.Context, id string) (*domain.Transfer, error) {
	return s.transferRepo.GetByID(ctx, id)
}

// ListTransfers returns transfer history, newest first
func (s *TransferService) ListTransfers(ctx context.Context, filter domain.TransferFilter) ([]*domain.Transfer, error) {
	return s.transferRepo.List(ctx, filter)
}
