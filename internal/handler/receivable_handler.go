package handler

import (
	"net/http"

	"github.com/dafibh/kaskecil/kaskecil-backend/internal/domain"
	"github.com/dafibh/kaskecil/kaskecil-backend/internal/service"
	"github.com/labstack/echo/v4"
)

// ReceivableHandler handles sales with outstanding balances
type ReceivableHandler struct {
	receivableService *service.ReceivableService
}

// NewReceivableHandler creates a new ReceivableHandler
func NewReceivableHandler(receivableService *service.ReceivableService) *ReceivableHandler {
	return &ReceivableHandler{receivableService: receivableService}
}

// RecordSaleRequest represents a new sale with its down payment
type RecordSaleRequest struct {
	CustomerName     string `json:"customerName" validate:"required,max=255"`
	Total            string `json:"total" validate:"required,decimal"`
	PaidAmount       string `json:"paidAmount" validate:"omitempty,decimal"`
	PaymentAccountID string `json:"paymentAccountId"`
}

// PayReceivableRequest represents a payment against a sale
type PayReceivableRequest struct {
	Amount    string `json:"amount" validate:"required,decimal"`
	AccountID string `json:"accountId" validate:"required"`
}

// RecordSale handles POST /api/v1/receivables
func (h *ReceivableHandler) RecordSale(c echo.Context) error {
	actor, ok, err := requireActor(c)
	if !ok {
		return err
	}

	var req RecordSaleRequest
	if ok, err := bindRequest(c, &req); !ok {
		return err
	}

	tx, err := h.receivableService.RecordSale(c.Request().Context(), actor, domain.RecordSaleInput{
		CustomerName:     req.CustomerName,
		Total:            optionalDecimal(req.Total),
		PaidAmount:       optionalDecimal(req.PaidAmount),
		PaymentAccountID: req.PaymentAccountID,
	})
	if err != nil {
		return respondError(c, err, "Failed to record sale")
	}

	return c.JSON(http.StatusCreated, tx)
}

// GetReceivables handles GET /api/v1/receivables?outstanding=true&customer=
func (h *ReceivableHandler) GetReceivables(c echo.Context) error {
	filter := domain.TransactionFilter{
		OutstandingOnly: c.QueryParam("outstanding") == "true",
		CustomerName:    optionalString(c.QueryParam("customer")),
	}

	txs, err := h.receivableService.ListReceivables(c.Request().Context(), filter)
	if err != nil {
		return respondError(c, err, "Failed to get receivables")
	}
	if txs == nil {
		txs = []*domain.Transaction{}
	}

	return c.JSON(http.StatusOK, txs)
}

// GetReceivable handles GET /api/v1/receivables/:id
func (h *ReceivableHandler) GetReceivable(c echo.Context) error {
	tx, err := h.receivableService.GetTransaction(c.Request().Context(), c.Param("id"))
	if err != nil {
		return respondError(c, err, "Failed to get receivable")
	}
	return c.JSON(http.StatusOK, tx)
}

// GetPayments handles GET /api/v1/receivables/:id/payments
func (h *ReceivableHandler) GetPayments(c echo.Context) error {
	postings, err := h.receivableService.ListPayments(c.Request().Context(), c.Param("id"))
	if err != nil {
		return respondError(c, err, "Failed to get payments")
	}
	if postings == nil {
		postings = []*domain.Posting{}
	}
	return c.JSON(http.StatusOK, postings)
}

// PayReceivable handles POST /api/v1/receivables/:id/payments
func (h *ReceivableHandler) PayReceivable(c echo.Context) error {
	actor, ok, err := requireActor(c)
	if !ok {
		return err
	}

	var req PayReceivableRequest
	if ok, err := bindRequest(c, &req); !ok {
		return err
	}

	result, err := h.receivableService.PayReceivable(c.Request().Context(), actor, c.Param("id"), optionalDecimal(req.Amount), req.AccountID)
	if err != nil {
		return respondError(c, err, "Failed to pay receivable")
	}

	return c.JSON(http.StatusOK, result)
}

// WriteOffReceivable handles POST /api/v1/receivables/:id/write-off
func (h *ReceivableHandler) WriteOffReceivable(c echo.Context) error {
	actor, ok, err := requireActor(c)
	if !ok {
		return err
	}

	result, err := h.receivableService.WriteOffReceivable(c.Request().Context(), actor, c.Param("id"))
	if err != nil {
		return respondError(c, err, "Failed to write off receivable")
	}

	return c.JSON(http.StatusOK, result)
}
