package handler

import (
	"net/http"
	"time"

	"github.com/dafibh/kaskecil/kaskecil-backend/internal/domain"
	"github.com/dafibh/kaskecil/kaskecil-backend/internal/service"
	"github.com/dafibh/kaskecil/kaskecil-backend/internal/util"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"
)

// AccountHandler handles account-related HTTP requests
type AccountHandler struct {
	accountService *service.AccountService
	reportService  *service.ReportService
}

// NewAccountHandler creates a new AccountHandler
func NewAccountHandler(accountService *service.AccountService, reportService *service.ReportService) *AccountHandler {
	return &AccountHandler{
		accountService: accountService,
		reportService:  reportService,
	}
}

// CreateAccountRequest represents the create account request body
type CreateAccountRequest struct {
	Name             string `json:"name" validate:"required,max=255"`
	Type             string `json:"type" validate:"required,oneof=asset liability equity revenue expense"`
	InitialBalance   string `json:"initialBalance" validate:"omitempty,decimal"`
	IsPaymentAccount bool   `json:"isPaymentAccount"`
}

// AdjustBalanceRequest represents a single balance movement
type AdjustBalanceRequest struct {
	Delta       string  `json:"delta" validate:"required,decimal"`
	Kind        string  `json:"kind" validate:"required"`
	RefID       *string `json:"refId"`
	Description string  `json:"description" validate:"max=500"`
}

// SetBalanceRequest represents a manual balance override
type SetBalanceRequest struct {
	Balance string `json:"balance" validate:"required,decimal"`
}

// BalanceAsOfResponse is the balance of an account at a point in time
type BalanceAsOfResponse struct {
	AccountID string    `json:"accountId"`
	At        time.Time `json:"at"`
	Balance   string    `json:"balance"`
}

// CreateAccount handles POST /api/v1/accounts
func (h *AccountHandler) CreateAccount(c echo.Context) error {
	actor, ok, err := requireActor(c)
	if !ok {
		return err
	}

	var req CreateAccountRequest
	if ok, err := bindRequest(c, &req); !ok {
		return err
	}

	account, err := h.accountService.CreateAccount(c.Request().Context(), actor, domain.CreateAccountInput{
		Name:             req.Name,
		Type:             domain.AccountType(req.Type),
		InitialBalance:   optionalDecimal(req.InitialBalance),
		IsPaymentAccount: req.IsPaymentAccount,
	})
	if err != nil {
		return respondError(c, err, "Failed to create account")
	}

	log.Info().Str("actor_id", actor.ID).Str("account_id", account.ID).Str("name", account.Name).Msg("Account created")

	return c.JSON(http.StatusCreated, account)
}

// GetAccounts handles GET /api/v1/accounts
func (h *AccountHandler) GetAccounts(c echo.Context) error {
	filter := domain.AccountFilter{PaymentOnly: c.QueryParam("paymentOnly") == "true"}

	accounts, err := h.accountService.ListAccounts(c.Request().Context(), filter)
	if err != nil {
		return respondError(c, err, "Failed to get accounts")
	}
	if accounts == nil {
		accounts = []*domain.Account{}
	}

	return c.JSON(http.StatusOK, accounts)
}

// GetAccount handles GET /api/v1/accounts/:id
func (h *AccountHandler) GetAccount(c echo.Context) error {
	account, err := h.accountService.GetAccount(c.Request().Context(), c.Param("id"))
	if err != nil {
		return respondError(c, err, "Failed to get account")
	}
	return c.JSON(http.StatusOK, account)
}

// AdjustBalance handles POST /api/v1/accounts/:id/adjust
func (h *AccountHandler) AdjustBalance(c echo.Context) error {
	actor, ok, err := requireActor(c)
	if !ok {
		return err
	}

	var req AdjustBalanceRequest
	if ok, err := bindRequest(c, &req); !ok {
		return err
	}

	account, err := h.accountService.AdjustBalance(c.Request().Context(), actor, service.AdjustBalanceInput{
		AccountID:   c.Param("id"),
		Delta:       optionalDecimal(req.Delta),
		Kind:        domain.PostingKind(req.Kind),
		RefID:       req.RefID,
		Description: req.Description,
	})
	if err != nil {
		return respondError(c, err, "Failed to adjust balance")
	}

	return c.JSON(http.StatusOK, account)
}

// SetBalance handles PUT /api/v1/accounts/:id/balance
func (h *AccountHandler) SetBalance(c echo.Context) error {
	actor, ok, err := requireActor(c)
	if !ok {
		return err
	}

	var req SetBalanceRequest
	if ok, err := bindRequest(c, &req); !ok {
		return err
	}

	account, err := h.accountService.SetBalance(c.Request().Context(), actor, c.Param("id"), optionalDecimal(req.Balance))
	if err != nil {
		return respondError(c, err, "Failed to set balance")
	}

	return c.JSON(http.StatusOK, account)
}

// GetBalanceAsOf handles GET /api/v1/accounts/:id/balance-as-of.
// ?at takes an RFC3339 instant, ?date a day whose end is used.
func (h *AccountHandler) GetBalanceAsOf(c echo.Context) error {
	loc := h.reportService.Location()

	var at time.Time
	switch {
	case c.QueryParam("at") != "":
		t, err := time.Parse(time.RFC3339, c.QueryParam("at"))
		if err != nil {
			return NewValidationError(c, "Invalid timestamp", []ValidationError{
				{Field: "at", Message: "Must be an RFC3339 timestamp"},
			})
		}
		at = t
	case c.QueryParam("date") != "":
		day, err := util.ParseDay(c.QueryParam("date"), loc)
		if err != nil {
			return NewValidationError(c, "Invalid date", []ValidationError{
				{Field: "date", Message: "Must be a date in YYYY-MM-DD format"},
			})
		}
		at = util.EndOfDay(day, loc)
	default:
		at = time.Now()
	}

	id := c.Param("id")
	balance, err := h.reportService.BalanceAsOf(c.Request().Context(), id, at)
	if err != nil {
		return respondError(c, err, "Failed to compute balance")
	}

	return c.JSON(http.StatusOK, BalanceAsOfResponse{
		AccountID: id,
		At:        at,
		Balance:   balance.StringFixed(2),
	})
}

// GetCashFlow handles GET /api/v1/accounts/:id/cash-flow?from=&to=
func (h *AccountHandler) GetCashFlow(c echo.Context) error {
	loc := h.reportService.Location()

	from, err := util.ParseDay(c.QueryParam("from"), loc)
	if err != nil {
		return NewValidationError(c, "Invalid date", []ValidationError{
			{Field: "from", Message: "Must be a date in YYYY-MM-DD format"},
		})
	}
	to := from
	if c.QueryParam("to") != "" {
		to, err = util.ParseDay(c.QueryParam("to"), loc)
		if err != nil {
			return NewValidationError(c, "Invalid date", []ValidationError{
				{Field: "to", Message: "Must be a date in YYYY-MM-DD format"},
			})
		}
	}

	report, err := h.reportService.PeriodCashFlow(c.Request().Context(), c.Param("id"), from, to)
	if err != nil {
		return respondError(c, err, "Failed to build cash flow report")
	}

	return c.JSON(http.StatusOK, report)
}

// GetReconciliation handles GET /api/v1/accounts/:id/reconciliation
func (h *AccountHandler) GetReconciliation(c echo.Context) error {
	report, err := h.reportService.Reconcile(c.Request().Context(), c.Param("id"))
	if err != nil {
		return respondError(c, err, "Failed to reconcile account")
	}
	return c.JSON(http.StatusOK, report)
}

// GetPostings handles GET /api/v1/accounts/:id/postings?from=&to=
func (h *AccountHandler) GetPostings(c echo.Context) error {
	loc := h.reportService.Location()

	var after, until *time.Time
	if s := c.QueryParam("from"); s != "" {
		day, err := util.ParseDay(s, loc)
		if err != nil {
			return NewValidationError(c, "Invalid date", []ValidationError{
				{Field: "from", Message: "Must be a date in YYYY-MM-DD format"},
			})
		}
		cutoff := day.Add(-time.Nanosecond)
		after = &cutoff
	}
	if s := c.QueryParam("to"); s != "" {
		day, err := util.ParseDay(s, loc)
		if err != nil {
			return NewValidationError(c, "Invalid date", []ValidationError{
				{Field: "to", Message: "Must be a date in YYYY-MM-DD format"},
			})
		}
		end := util.EndOfDay(day, loc)
		until = &end
	}

	postings, err := h.accountService.ListPostings(c.Request().Context(), c.Param("id"), after, until)
	if err != nil {
		return respondError(c, err, "Failed to get postings")
	}
	if postings == nil {
		postings = []*domain.Posting{}
	}

	return c.JSON(http.StatusOK, postings)
}
