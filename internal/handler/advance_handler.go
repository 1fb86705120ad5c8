package handler

import (
	"net/http"
	"time"

	"github.com/dafibh/kaskecil/kaskecil-backend/internal/domain"
	"github.com/dafibh/kaskecil/kaskecil-backend/internal/service"
	"github.com/labstack/echo/v4"
)

// AdvanceHandler handles employee advances (kasbon)
type AdvanceHandler struct {
	advanceService *service.AdvanceService
	location       *time.Location
}

// NewAdvanceHandler creates a new AdvanceHandler
func NewAdvanceHandler(advanceService *service.AdvanceService, loc *time.Location) *AdvanceHandler {
	return &AdvanceHandler{
		advanceService: advanceService,
		location:       loc,
	}
}

// GrantAdvanceRequest represents a new advance
type GrantAdvanceRequest struct {
	EmployeeID   string `json:"employeeId" validate:"required"`
	EmployeeName string `json:"employeeName" validate:"max=255"`
	Amount       string `json:"amount" validate:"required,decimal"`
	AccountID    string `json:"accountId" validate:"required"`
	Notes        string `json:"notes" validate:"max=500"`
	Date         string `json:"date" validate:"omitempty,datetime=2006-01-02"`
}

// RepayAdvanceRequest represents a repayment of an advance
type RepayAdvanceRequest struct {
	Amount string `json:"amount" validate:"required,decimal"`
	Date   string `json:"date" validate:"omitempty,datetime=2006-01-02"`
}

func (h *AdvanceHandler) filterFromQuery(c echo.Context) domain.AdvanceFilter {
	return domain.AdvanceFilter{
		EmployeeID:      optionalString(c.QueryParam("employeeId")),
		OutstandingOnly: c.QueryParam("outstanding") == "true",
	}
}

// GrantAdvance handles POST /api/v1/advances
func (h *AdvanceHandler) GrantAdvance(c echo.Context) error {
	actor, ok, err := requireActor(c)
	if !ok {
		return err
	}

	var req GrantAdvanceRequest
	if ok, err := bindRequest(c, &req); !ok {
		return err
	}

	date, err := optionalDay(req.Date, h.location)
	if err != nil {
		return NewValidationError(c, "Invalid date", []ValidationError{
			{Field: "date", Message: "Must be a date in YYYY-MM-DD format"},
		})
	}

	advance, err := h.advanceService.GrantAdvance(c.Request().Context(), actor, domain.GrantAdvanceInput{
		EmployeeID:   req.EmployeeID,
		EmployeeName: req.EmployeeName,
		Amount:       optionalDecimal(req.Amount),
		AccountID:    req.AccountID,
		Notes:        req.Notes,
		Date:         date,
	})
	if err != nil {
		return respondError(c, err, "Failed to grant advance")
	}

	return c.JSON(http.StatusCreated, advance)
}

// GetAdvances handles GET /api/v1/advances?employeeId=&outstanding=true
func (h *AdvanceHandler) GetAdvances(c echo.Context) error {
	advances, err := h.advanceService.ListAdvances(c.Request().Context(), h.filterFromQuery(c))
	if err != nil {
		return respondError(c, err, "Failed to get advances")
	}
	if advances == nil {
		advances = []*domain.EmployeeAdvance{}
	}
	return c.JSON(http.StatusOK, advances)
}

// GetAdvancesByEmployee handles GET /api/v1/advances/by-employee
func (h *AdvanceHandler) GetAdvancesByEmployee(c echo.Context) error {
	groups, err := h.advanceService.GroupByEmployee(c.Request().Context(), h.filterFromQuery(c))
	if err != nil {
		return respondError(c, err, "Failed to group advances")
	}
	return c.JSON(http.StatusOK, groups)
}

// GetAdvance handles GET /api/v1/advances/:id
func (h *AdvanceHandler) GetAdvance(c echo.Context) error {
	advance, err := h.advanceService.GetAdvance(c.Request().Context(), c.Param("id"))
	if err != nil {
		return respondError(c, err, "Failed to get advance")
	}
	return c.JSON(http.StatusOK, advance)
}

// RepayAdvance handles POST /api/v1/advances/:id/repayments
func (h *AdvanceHandler) RepayAdvance(c echo.Context) error {
	actor, ok, err := requireActor(c)
	if !ok {
		return err
	}

	var req RepayAdvanceRequest
	if ok, err := bindRequest(c, &req); !ok {
		return err
	}

	date, err := optionalDay(req.Date, h.location)
	if err != nil {
		return NewValidationError(c, "Invalid date", []ValidationError{
			{Field: "date", Message: "Must be a date in YYYY-MM-DD format"},
		})
	}

	advance, err := h.advanceService.RepayAdvance(c.Request().Context(), actor, c.Param("id"), optionalDecimal(req.Amount), date)
	if err != nil {
		return respondError(c, err, "Failed to repay advance")
	}

	return c.JSON(http.StatusOK, advance)
}

// DeleteAdvance handles DELETE /api/v1/advances/:id
func (h *AdvanceHandler) DeleteAdvance(c echo.Context) error {
	actor, ok, err := requireActor(c)
	if !ok {
		return err
	}

	advance, err := h.advanceService.DeleteAdvance(c.Request().Context(), actor, c.Param("id"))
	if err != nil {
		return respondError(c, err, "Failed to delete advance")
	}

	return c.JSON(http.StatusOK, advance)
}
