package handler

import (
	"github.com/dafibh/kaskecil/kaskecil-backend/internal/middleware"
	"github.com/labstack/echo/v4"
)

// Handlers groups every HTTP handler served under /api/v1
type Handlers struct {
	Account    *AccountHandler
	Transfer   *TransferHandler
	Receivable *ReceivableHandler
	Expense    *ExpenseHandler
	Advance    *AdvanceHandler
	Report     *ReportHandler
}

// RegisterRoutes sets up all API routes. Every route requires a bearer token;
// mutations are rate limited per actor.
func RegisterRoutes(e *echo.Echo, authMiddleware *middleware.AuthMiddleware, rateLimiter *middleware.RateLimiter, h Handlers) {
	if e.Validator == nil {
		e.Validator = NewRequestValidator()
	}

	// API version 1
	api := e.Group("/api/v1")
	api.Use(authMiddleware.Authenticate())
	if rateLimiter != nil {
		api.Use(middleware.RateLimitMiddleware(rateLimiter))
	}

	// Account routes
	accounts := api.Group("/accounts")
	accounts.POST("", h.Account.CreateAccount)
	accounts.GET("", h.Account.GetAccounts)
	accounts.GET("/:id", h.Account.GetAccount)
	accounts.POST("/:id/adjust", h.Account.AdjustBalance)
	accounts.PUT("/:id/balance", h.Account.SetBalance)
	accounts.GET("/:id/balance-as-of", h.Account.GetBalanceAsOf)
	accounts.GET("/:id/cash-flow", h.Account.GetCashFlow)
	accounts.GET("/:id/reconciliation", h.Account.GetReconciliation)
	accounts.GET("/:id/postings", h.Account.GetPostings)

	// Transfer routes
	transfers := api.Group("/transfers")
	transfers.POST("", h.Transfer.CreateTransfer)
	transfers.GET("", h.Transfer.GetTransfers)
	transfers.GET("/:id", h.Transfer.GetTransfer)

	// Receivable routes
	receivables := api.Group("/receivables")
	receivables.POST("", h.Receivable.RecordSale)
	receivables.GET("", h.Receivable.GetReceivables)
	receivables.GET("/:id", h.Receivable.GetReceivable)
	receivables.GET("/:id/payments", h.Receivable.GetPayments)
	receivables.POST("/:id/payments", h.Receivable.PayReceivable)
	receivables.POST("/:id/write-off", h.Receivable.WriteOffReceivable)

	// Expense routes
	expenses := api.Group("/expenses")
	expenses.POST("", h.Expense.RecordExpense)
	expenses.GET("", h.Expense.GetExpenses)
	expenses.GET("/:id", h.Expense.GetExpense)
	expenses.DELETE("/:id", h.Expense.DeleteExpense)

	// Advance routes
	advances := api.Group("/advances")
	advances.POST("", h.Advance.GrantAdvance)
	advances.GET("", h.Advance.GetAdvances)
	advances.GET("/by-employee", h.Advance.GetAdvancesByEmployee)
	advances.GET("/:id", h.Advance.GetAdvance)
	advances.POST("/:id/repayments", h.Advance.RepayAdvance)
	advances.DELETE("/:id", h.Advance.DeleteAdvance)

	// Report routes
	reports := api.Group("/reports")
	reports.GET("/petty-cash", h.Report.GetPettyCash)
	reports.POST("/archive", h.Report.ArchivePettyCash)
	reports.GET("/archive", h.Report.GetArchivedPettyCash)
}
