package handler

import (
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/dafibh/kaskecil/kaskecil-backend/internal/domain"
	"github.com/dafibh/kaskecil/kaskecil-backend/internal/middleware"
	"github.com/dafibh/kaskecil/kaskecil-backend/internal/service"
	"github.com/dafibh/kaskecil/kaskecil-backend/internal/testutil"
	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"
)

var (
	cashier = domain.Actor{ID: "u-cashier", Name: "Sari", Role: domain.RoleCashier}
	admin   = domain.Actor{ID: "u-admin", Name: "Budi", Role: domain.RoleAdmin}
	owner   = domain.Actor{ID: "u-owner", Name: "Wati", Role: domain.RoleOwner}

	wib = time.FixedZone("WIB", 7*60*60)
)

// testEnv wires every service onto one in-memory ledger
type testEnv struct {
	e        *echo.Echo
	ledger   *testutil.MockLedger
	store    *testutil.MockReportStore
	queue    *testutil.MockArchiveQueue
	handlers Handlers
}

func newTestEnv() *testEnv {
	e := echo.New()
	e.Validator = NewRequestValidator()

	ledger := testutil.NewMockLedger()
	accountRepo := testutil.NewMockAccountRepository(ledger)
	postingRepo := testutil.NewMockPostingRepository(ledger)
	policy := service.DefaultLedgerPolicy()

	accountService := service.NewAccountService(accountRepo, postingRepo, policy)
	transferService := service.NewTransferService(accountRepo, testutil.NewMockAtomicTransferRepository(ledger), postingRepo, policy)
	transferService.SetIdempotencyStore(testutil.NewMockIdempotencyStore())
	receivableService := service.NewReceivableService(accountRepo, testutil.NewMockTransactionRepository(ledger), postingRepo)
	expenseService := service.NewExpenseService(accountRepo, testutil.NewMockExpenseRepository(ledger), policy)
	expenseService.SetLocation(wib)
	advanceService := service.NewAdvanceService(accountRepo, testutil.NewMockAdvanceRepository(ledger), policy)
	advanceService.SetLocation(wib)
	reportService := service.NewReportService(accountRepo, postingRepo, service.ReportConfig{Location: wib})

	store := testutil.NewMockReportStore()
	queue := &testutil.MockArchiveQueue{}

	return &testEnv{
		e:      e,
		ledger: ledger,
		store:  store,
		queue:  queue,
		handlers: Handlers{
			Account:    NewAccountHandler(accountService, reportService),
			Transfer:   NewTransferHandler(transferService, wib),
			Receivable: NewReceivableHandler(receivableService),
			Expense:    NewExpenseHandler(expenseService, wib),
			Advance:    NewAdvanceHandler(advanceService, wib),
			Report:     NewReportHandler(reportService, service.NewReportArchiver(reportService, store), queue),
		},
	}
}

// seedAccount adds a payment account whose journal matches its balance
func (env *testEnv) seedAccount(id, name, balance string) {
	amount := decimal.RequireFromString(balance)
	env.ledger.AddAccount(&domain.Account{
		ID:               id,
		Name:             name,
		Type:             domain.AccountTypeAsset,
		Balance:          amount,
		IsPaymentAccount: true,
	})
	if !amount.IsZero() {
		env.ledger.AddPosting(&domain.Posting{
			AccountID: id,
			Amount:    amount,
			Kind:      domain.PostingKindOpening,
			PostedAt:  time.Now().Add(-48 * time.Hour),
		})
	}
}

// newContext builds a request context for actor; "" body sends no body.
// params are name/value pairs for path parameters.
func (env *testEnv) newContext(method, target, body string, actor *domain.Actor, params ...string) (echo.Context, *httptest.ResponseRecorder) {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	if actor != nil {
		req = req.WithContext(middleware.WithActor(req.Context(), *actor))
	}
	rec := httptest.NewRecorder()
	c := env.e.NewContext(req, rec)

	var names, values []string
	for i := 0; i+1 < len(params); i += 2 {
		names = append(names, params[i])
		values = append(values, params[i+1])
	}
	if len(names) > 0 {
		c.SetParamNames(names...)
		c.SetParamValues(values...)
	}
	return c, rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), v); err != nil {
		t.Fatalf("Failed to unmarshal response: %v (body %s)", err, rec.Body.String())
	}
}

func decodeProblem(t *testing.T, rec *httptest.ResponseRecorder) ProblemDetails {
	t.Helper()
	var p ProblemDetails
	decodeBody(t, rec, &p)
	return p
}
