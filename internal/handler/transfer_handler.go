package handler

import (
	"net/http"
	"time"

	"github.com/dafibh/kaskecil/kaskecil-backend/internal/domain"
	"github.com/dafibh/kaskecil/kaskecil-backend/internal/service"
	"github.com/dafibh/kaskecil/kaskecil-backend/internal/util"
	"github.com/labstack/echo/v4"
)

// IdempotencyKeyHeader carries the client's retry key for transfers
const IdempotencyKeyHeader = "Idempotency-Key"

// TransferHandler handles transfer-related HTTP requests
type TransferHandler struct {
	transferService *service.TransferService
	location        *time.Location
}

// NewTransferHandler creates a new TransferHandler
func NewTransferHandler(transferService *service.TransferService, loc *time.Location) *TransferHandler {
	return &TransferHandler{
		transferService: transferService,
		location:        loc,
	}
}

// CreateTransferRequest represents the create transfer request body
type CreateTransferRequest struct {
	FromAccountID string `json:"fromAccountId" validate:"required"`
	ToAccountID   string `json:"toAccountId" validate:"required"`
	Amount        string `json:"amount" validate:"required,decimal"`
	Description   string `json:"description" validate:"max=500"`
}

// CreateTransfer handles POST /api/v1/transfers. A replayed request answers
// 200 with the original result instead of 201.
func (h *TransferHandler) CreateTransfer(c echo.Context) error {
	actor, ok, err := requireActor(c)
	if !ok {
		return err
	}

	var req CreateTransferRequest
	if ok, err := bindRequest(c, &req); !ok {
		return err
	}

	result, err := h.transferService.Transfer(c.Request().Context(), actor, domain.TransferInput{
		FromAccountID:  req.FromAccountID,
		ToAccountID:    req.ToAccountID,
		Amount:         optionalDecimal(req.Amount),
		Description:    req.Description,
		IdempotencyKey: c.Request().Header.Get(IdempotencyKeyHeader),
	})
	if err != nil {
		return respondError(c, err, "Failed to create transfer")
	}

	status := http.StatusCreated
	if result.Replayed {
		status = http.StatusOK
	}
	return c.JSON(status, result)
}

// GetTransfers handles GET /api/v1/transfers?accountId=&from=&to=
func (h *TransferHandler) GetTransfers(c echo.Context) error {
	filter := domain.TransferFilter{AccountID: optionalString(c.QueryParam("accountId"))}

	from, err := optionalDay(c.QueryParam("from"), h.location)
	if err != nil {
		return NewValidationError(c, "Invalid date", []ValidationError{
			{Field: "from", Message: "Must be a date in YYYY-MM-DD format"},
		})
	}
	if !from.IsZero() {
		filter.From = &from
	}
	to, err := optionalDay(c.QueryParam("to"), h.location)
	if err != nil {
		return NewValidationError(c, "Invalid date", []ValidationError{
			{Field: "to", Message: "Must be a date in YYYY-MM-DD format"},
		})
	}
	if !to.IsZero() {
		end := util.EndOfDay(to, h.location)
		filter.To = &end
	}

	transfers, err := h.transferService.ListTransfers(c.Request().Context(), filter)
	if err != nil {
		return respondError(c, err, "Failed to get transfers")
	}
	if transfers == nil {
		transfers = []*domain.Transfer{}
	}

	return c.JSON(http.StatusOK, transfers)
}

// GetTransfer handles GET /api/v1/transfers/:id
func (h *TransferHandler) GetTransfer(c echo.Context) error {
	transfer, err := h.transferService.GetTransfer(c.Request().Context(), c.Param("id"))
	if err != nil {
		return respondError(c, err, "Failed to get transfer")
	}
	return c.JSON(http.StatusOK, transfer)
}
