package domain

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// Error kinds. Handlers branch on these with errors.Is.
var (
	ErrValidation        = errors.New("validation failed")
	ErrNotFound          = errors.New("not found")
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrConsistency       = errors.New("ledger consistency failure")
	ErrConflict          = errors.New("conflict")
	ErrUnauthorized      = errors.New("unauthorized")
	ErrForbidden         = errors.New("forbidden")
)

// Domain errors
var (
	ErrAccountNotFound     = fmt.Errorf("account %w", ErrNotFound)
	ErrTransactionNotFound = fmt.Errorf("transaction %w", ErrNotFound)
	ErrTransferNotFound    = fmt.Errorf("transfer %w", ErrNotFound)
	ErrExpenseNotFound     = fmt.Errorf("expense %w", ErrNotFound)
	ErrAdvanceNotFound     = fmt.Errorf("advance %w", ErrNotFound)
	ErrPettyCashNotFound   = fmt.Errorf("petty cash account %w", ErrNotFound)
	ErrReportNotFound      = fmt.Errorf("archived report %w", ErrNotFound)

	ErrAmountNotPositive    = fmt.Errorf("%w: amount must be greater than zero", ErrValidation)
	ErrAmountBelowMinimum   = fmt.Errorf("%w: amount is below the minimum", ErrValidation)
	ErrAmountPrecision      = fmt.Errorf("%w: amount has more than two decimal places", ErrValidation)
	ErrAmountOutOfRange     = fmt.Errorf("%w: amount is too large", ErrValidation)
	ErrZeroDelta            = fmt.Errorf("%w: balance adjustment must not be zero", ErrValidation)
	ErrSameAccount          = fmt.Errorf("%w: source and destination account must differ", ErrValidation)
	ErrOverpayment          = fmt.Errorf("%w: amount exceeds the remaining balance", ErrValidation)
	ErrAlreadySettled       = fmt.Errorf("%w: receivable is already settled", ErrValidation)
	ErrNameRequired         = fmt.Errorf("%w: name is required", ErrValidation)
	ErrNameTooLong          = fmt.Errorf("%w: name exceeds maximum length", ErrValidation)
	ErrInvalidAccountType   = fmt.Errorf("%w: invalid account type", ErrValidation)
	ErrDescriptionRequired  = fmt.Errorf("%w: description is required", ErrValidation)
	ErrEmployeeRequired     = fmt.Errorf("%w: employee is required", ErrValidation)
	ErrPaidExceedsTotal     = fmt.Errorf("%w: paid amount exceeds total", ErrValidation)
	ErrNotPaymentAccount    = fmt.Errorf("%w: account is not a payment account", ErrValidation)
	ErrInvalidDateRange     = fmt.Errorf("%w: from date is after to date", ErrValidation)
	ErrPaymentAccountNeeded = fmt.Errorf("%w: payment account is required", ErrValidation)

	ErrAccountNameTaken      = fmt.Errorf("%w: account name already exists", ErrConflict)
	ErrIdempotencyInProgress = fmt.Errorf("%w: a request with this idempotency key is in progress", ErrConflict)
	ErrIdempotencyMismatch   = fmt.Errorf("%w: idempotency key was used for a different transfer", ErrConflict)

	ErrActorRequired = fmt.Errorf("%w: actor is required", ErrUnauthorized)
)

// Validation constants
const (
	MaxAccountNameLength = 255
	MaxDescriptionLength = 500
)

// ValidationError wraps a validation sentinel with details about the offending input
type ValidationError struct {
	Err     error
	Details string
}

func (e *ValidationError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("%s: %s", e.Err.Error(), e.Details)
	}
	return e.Err.Error()
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

// NewValidationError wraps err (expected to be one of the validation sentinels)
func NewValidationError(err error, details string) error {
	return &ValidationError{Err: err, Details: details}
}

// NotFoundError names the entity and id that could not be found
type NotFoundError struct {
	Entity string
	ID     string
	Err    error
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", e.Entity, e.ID)
}

func (e *NotFoundError) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	return ErrNotFound
}

// InsufficientFundsError is returned when an overdraft policy blocks a debit
type InsufficientFundsError struct {
	AccountID string
	Balance   decimal.Decimal
	Requested decimal.Decimal
}

func (e *InsufficientFundsError) Error() string {
	return fmt.Sprintf("insufficient funds on account %s: balance %s, requested %s",
		e.AccountID, e.Balance.StringFixed(2), e.Requested.StringFixed(2))
}

func (e *InsufficientFundsError) Unwrap() error {
	return ErrInsufficientFunds
}

// ConsistencyError reports a multi-step operation that failed part way and
// could not be rolled back. The ledger may be inconsistent until an operator
// intervenes.
type ConsistencyError struct {
	Op              string
	Err             error
	CompensationErr error
}

func (e *ConsistencyError) Error() string {
	return fmt.Sprintf("%s: %v (compensation failed: %v)", e.Op, e.Err, e.CompensationErr)
}

func (e *ConsistencyError) Unwrap() []error {
	errs := []error{ErrConsistency}
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	if e.CompensationErr != nil {
		errs = append(errs, e.CompensationErr)
	}
	return errs
}

// NewNotFoundError builds a NotFoundError for entity/id, unwrapping to err
func NewNotFoundError(entity, id string, err error) error {
	return &NotFoundError{Entity: entity, ID: id, Err: err}
}
