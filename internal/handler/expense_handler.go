package handler

import (
	"net/http"
	"time"

	"github.com/dafibh/kaskecil/kaskecil-backend/internal/domain"
	"github.com/dafibh/kaskecil/kaskecil-backend/internal/service"
	"github.com/dafibh/kaskecil/kaskecil-backend/internal/util"
	"github.com/labstack/echo/v4"
)

// ExpenseHandler handles the expense book
type ExpenseHandler struct {
	expenseService *service.ExpenseService
	location       *time.Location
}

// NewExpenseHandler creates a new ExpenseHandler
func NewExpenseHandler(expenseService *service.ExpenseService, loc *time.Location) *ExpenseHandler {
	return &ExpenseHandler{
		expenseService: expenseService,
		location:       loc,
	}
}

// RecordExpenseRequest represents a new cash expense
type RecordExpenseRequest struct {
	Description string `json:"description" validate:"required,max=500"`
	Amount      string `json:"amount" validate:"required,decimal"`
	AccountID   string `json:"accountId" validate:"required"`
	Category    string `json:"category" validate:"max=100"`
	Date        string `json:"date" validate:"omitempty,datetime=2006-01-02"`
}

// RecordExpense handles POST /api/v1/expenses
func (h *ExpenseHandler) RecordExpense(c echo.Context) error {
	actor, ok, err := requireActor(c)
	if !ok {
		return err
	}

	var req RecordExpenseRequest
	if ok, err := bindRequest(c, &req); !ok {
		return err
	}

	date, err := optionalDay(req.Date, h.location)
	if err != nil {
		return NewValidationError(c, "Invalid date", []ValidationError{
			{Field: "date", Message: "Must be a date in YYYY-MM-DD format"},
		})
	}

	expense, err := h.expenseService.RecordExpense(c.Request().Context(), actor, domain.RecordExpenseInput{
		Description: req.Description,
		Amount:      optionalDecimal(req.Amount),
		AccountID:   req.AccountID,
		Category:    req.Category,
		Date:        date,
	})
	if err != nil {
		return respondError(c, err, "Failed to record expense")
	}

	return c.JSON(http.StatusCreated, expense)
}

// GetExpenses handles GET /api/v1/expenses?accountId=&category=&from=&to=
func (h *ExpenseHandler) GetExpenses(c echo.Context) error {
	filter := domain.ExpenseFilter{
		AccountID: optionalString(c.QueryParam("accountId")),
		Category:  optionalString(c.QueryParam("category")),
	}

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

	expenses, err := h.expenseService.ListExpenses(c.Request().Context(), filter)
	if err != nil {
		return respondError(c, err, "Failed to get expenses")
	}
	if expenses == nil {
		expenses = []*domain.Expense{}
	}

	return c.JSON(http.StatusOK, expenses)
}

// GetExpense handles GET /api/v1/expenses/:id
func (h *ExpenseHandler) GetExpense(c echo.Context) error {
	expense, err := h.expenseService.GetExpense(c.Request().Context(), c.Param("id"))
	if err != nil {
		return respondError(c, err, "Failed to get expense")
	}
	return c.JSON(http.StatusOK, expense)
}

// DeleteExpense handles DELETE /api/v1/expenses/:id
func (h *ExpenseHandler) DeleteExpense(c echo.Context) error {
	actor, ok, err := requireActor(c)
	if !ok {
		return err
	}

	if err := h.expenseService.DeleteExpense(c.Request().Context(), actor, c.Param("id")); err != nil {
		return respondError(c, err, "Failed to delete expense")
	}

	return c.NoContent(http.StatusNoContent)
}
