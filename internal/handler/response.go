package handler

import (
	"errors"
	"net/http"

	"github.com/dafibh/kaskecil/kaskecil-backend/internal/domain"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"
)

// ProblemDetails is an RFC 7807 error body
type ProblemDetails struct {
	Type     string            `json:"type"`
	Title    string            `json:"title"`
	Status   int               `json:"status"`
	Detail   string            `json:"detail,omitempty"`
	Instance string            `json:"instance,omitempty"`
	Errors   []ValidationError `json:"errors,omitempty"`
}

// ValidationError points at one offending request field
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

const errorTypeBase = "https://kaskecil.app/errors/"

// Problem types. Clients switch on these, not on titles.
const (
	ErrorTypeValidation        = errorTypeBase + "validation"
	ErrorTypeNotFound          = errorTypeBase + "not-found"
	ErrorTypeUnauthorized      = errorTypeBase + "unauthorized"
	ErrorTypeForbidden         = errorTypeBase + "forbidden"
	ErrorTypeConflict          = errorTypeBase + "conflict"
	ErrorTypeInsufficientFunds = errorTypeBase + "insufficient-funds"
	ErrorTypeConsistency       = errorTypeBase + "ledger-consistency"
	ErrorTypeInternal          = errorTypeBase + "internal"
)

type problemKind struct {
	errType string
	title   string
	status  int
}

var (
	problemValidation   = problemKind{ErrorTypeValidation, "Validation Error", http.StatusBadRequest}
	problemNotFound     = problemKind{ErrorTypeNotFound, "Not Found", http.StatusNotFound}
	problemUnauthorized = problemKind{ErrorTypeUnauthorized, "Unauthorized", http.StatusUnauthorized}
	problemForbidden    = problemKind{ErrorTypeForbidden, "Forbidden", http.StatusForbidden}
	problemConflict     = problemKind{ErrorTypeConflict, "Conflict", http.StatusConflict}
	problemFunds        = problemKind{ErrorTypeInsufficientFunds, "Insufficient Funds", http.StatusUnprocessableEntity}
	// operators alert on this one
	problemConsistency = problemKind{ErrorTypeConsistency, "Ledger Consistency Failure", http.StatusInternalServerError}
	problemInternal    = problemKind{ErrorTypeInternal, "Internal Server Error", http.StatusInternalServerError}
)

func writeProblem(c echo.Context, kind problemKind, detail string, fields []ValidationError) error {
	return c.JSON(kind.status, ProblemDetails{
		Type:     kind.errType,
		Title:    kind.title,
		Status:   kind.status,
		Detail:   detail,
		Instance: c.Request().URL.Path,
		Errors:   fields,
	})
}

// NewValidationError writes a 400 listing the offending fields
func NewValidationError(c echo.Context, detail string, fields []ValidationError) error {
	return writeProblem(c, problemValidation, detail, fields)
}

// NewUnauthorizedError writes a 401
func NewUnauthorizedError(c echo.Context, detail string) error {
	return writeProblem(c, problemUnauthorized, detail, nil)
}

// NewInternalError writes a 500. detail must not leak internals.
func NewInternalError(c echo.Context, detail string) error {
	return writeProblem(c, problemInternal, detail, nil)
}

// validationFields names the request field behind a validation sentinel
var validationFields = []struct {
	err   error
	field string
}{
	{domain.ErrAmountNotPositive, "amount"},
	{domain.ErrAmountBelowMinimum, "amount"},
	{domain.ErrAmountPrecision, "amount"},
	{domain.ErrAmountOutOfRange, "amount"},
	{domain.ErrOverpayment, "amount"},
	{domain.ErrZeroDelta, "delta"},
	{domain.ErrSameAccount, "toAccountId"},
	{domain.ErrNameRequired, "name"},
	{domain.ErrNameTooLong, "name"},
	{domain.ErrInvalidAccountType, "type"},
	{domain.ErrDescriptionRequired, "description"},
	{domain.ErrEmployeeRequired, "employeeId"},
	{domain.ErrPaidExceedsTotal, "paidAmount"},
	{domain.ErrNotPaymentAccount, "accountId"},
	{domain.ErrPaymentAccountNeeded, "accountId"},
	{domain.ErrInvalidDateRange, "from"},
}

// respondError maps a service error onto a problem response. op describes
// the failed operation for logs and the generic 500 detail.
func respondError(c echo.Context, err error, op string) error {
	switch {
	case errors.Is(err, domain.ErrConsistency):
		log.Error().Err(err).Str("path", c.Request().URL.Path).Msg(op + ": ledger left inconsistent")
		return writeProblem(c, problemConsistency, err.Error(), nil)
	case errors.Is(err, domain.ErrValidation):
		var fields []ValidationError
		for _, vf := range validationFields {
			if errors.Is(err, vf.err) {
				fields = append(fields, ValidationError{Field: vf.field, Message: err.Error()})
				break
			}
		}
		return NewValidationError(c, err.Error(), fields)
	case errors.Is(err, domain.ErrUnauthorized):
		return NewUnauthorizedError(c, err.Error())
	case errors.Is(err, domain.ErrForbidden):
		return writeProblem(c, problemForbidden, err.Error(), nil)
	case errors.Is(err, domain.ErrNotFound):
		return writeProblem(c, problemNotFound, err.Error(), nil)
	case errors.Is(err, domain.ErrConflict):
		return writeProblem(c, problemConflict, err.Error(), nil)
	case errors.Is(err, domain.ErrInsufficientFunds):
		return writeProblem(c, problemFunds, err.Error(), nil)
	default:
		log.Error().Err(err).Str("path", c.Request().URL.Path).Msg(op)
		return NewInternalError(c, op)
	}
}
