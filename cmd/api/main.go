package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dafibh/kaskecil/kaskecil-backend/db"
	"github.com/dafibh/kaskecil/kaskecil-backend/internal/config"
	"github.com/dafibh/kaskecil/kaskecil-backend/internal/domain"
	"github.com/dafibh/kaskecil/kaskecil-backend/internal/handler"
	"github.com/dafibh/kaskecil/kaskecil-backend/internal/middleware"
	"github.com/dafibh/kaskecil/kaskecil-backend/internal/repository/cache"
	"github.com/dafibh/kaskecil/kaskecil-backend/internal/repository/postgres"
	"github.com/dafibh/kaskecil/kaskecil-backend/internal/repository/storage"
	"github.com/dafibh/kaskecil/kaskecil-backend/internal/service"
	"github.com/dafibh/kaskecil/kaskecil-backend/internal/websocket"
	"github.com/dafibh/kaskecil/kaskecil-backend/internal/worker"
	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	// Initialize zerolog
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	if os.Getenv("ENV") != "production" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}
	loc, err := time.LoadLocation(cfg.Report.Timezone)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load report timezone")
	}

	ctx := context.Background()

	// Connect to database
	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer pool.Close()

	// Verify database connection
	if err := pool.Ping(ctx); err != nil {
		log.Fatal().Err(err).Msg("Failed to ping database")
	}
	log.Info().Msg("Connected to database")

	if cfg.AutoMigrate {
		if err := postgres.Migrate(ctx, pool, db.Migrations); err != nil {
			log.Fatal().Err(err).Msg("Failed to run migrations")
		}
	}

	// Redis holds idempotency keys
	redisClient, err := cache.NewRedis(ctx, cache.RedisConfig{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Redis")
	}
	defer redisClient.Close()

	// Task queue for report archiving
	queueClient := asynq.NewClient(asynq.RedisClientOpt{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.QueueDB,
	})
	defer queueClient.Close()

	// Report archive storage is optional
	var reportStore domain.ReportStore
	if s3Store, err := storage.NewS3ReportStore(ctx, cfg.S3); err != nil {
		log.Warn().Err(err).Msg("S3 unavailable, report archiving disabled")
	} else {
		reportStore = s3Store
	}

	// Initialize repositories
	accountRepo := postgres.NewAccountRepository(pool)
	postingRepo := postgres.NewPostingRepository(pool)
	transferRepo := postgres.NewTransferRepository(pool)
	transactionRepo := postgres.NewTransactionRepository(pool)
	expenseRepo := postgres.NewExpenseRepository(pool)
	advanceRepo := postgres.NewAdvanceRepository(pool)

	policy := ledgerPolicy(cfg.Policy)

	// WebSocket hub for live balance updates
	hub := websocket.NewHub(cfg.WSMaxConnsPerActor)

	// Initialize services
	accountService := service.NewAccountService(accountRepo, postingRepo, policy)
	accountService.SetEventPublisher(hub)
	transferService := service.NewTransferService(accountRepo, transferRepo, postingRepo, policy)
	transferService.SetEventPublisher(hub)
	transferService.SetIdempotencyStore(cache.NewIdempotencyStore(redisClient, cfg.Redis.IdempotencyTTL))
	receivableService := service.NewReceivableService(accountRepo, transactionRepo, postingRepo)
	receivableService.SetEventPublisher(hub)
	expenseService := service.NewExpenseService(accountRepo, expenseRepo, policy)
	expenseService.SetEventPublisher(hub)
	expenseService.SetLocation(loc)
	advanceService := service.NewAdvanceService(accountRepo, advanceRepo, policy)
	advanceService.SetEventPublisher(hub)
	advanceService.SetLocation(loc)
	reportService := service.NewReportService(accountRepo, postingRepo, service.ReportConfig{
		Location:             loc,
		PettyCashAccountName: cfg.Report.PettyCashAccountName,
	})

	var archiver *service.ReportArchiver
	if reportStore != nil {
		archiver = service.NewReportArchiver(reportService, reportStore)
	}

	// Start the journal reconciliation worker
	reconciler := service.NewReconciliationWorker(reportService, log.Logger, service.ReconciliationWorkerConfig{
		Interval: cfg.Worker.ReconcileInterval,
	})
	reconciler.Start(ctx)
	defer reconciler.Stop()

	// Initialize auth middleware
	authMiddleware, err := middleware.NewAuthMiddleware(cfg.Auth0Domain, cfg.Auth0Audience)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create auth middleware")
	}

	// Initialize handlers
	handlers := handler.Handlers{
		Account:    handler.NewAccountHandler(accountService, reportService),
		Transfer:   handler.NewTransferHandler(transferService, loc),
		Receivable: handler.NewReceivableHandler(receivableService),
		Expense:    handler.NewExpenseHandler(expenseService, loc),
		Advance:    handler.NewAdvanceHandler(advanceService, loc),
		Report:     handler.NewReportHandler(reportService, archiver, worker.NewQueue(queueClient)),
	}
	wsHandler := handler.NewWebSocketHandler(hub, authMiddleware, cfg.CORSOrigins)

	// Create Echo instance
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	// Request ID middleware
	e.Use(echomiddleware.RequestID())

	// CORS middleware
	e.Use(echomiddleware.CORSWithConfig(echomiddleware.CORSConfig{
		AllowOrigins:     cfg.CORSOrigins,
		AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowHeaders:     []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderAuthorization, handler.IdempotencyKeyHeader},
		AllowCredentials: true,
		MaxAge:           86400,
	}))

	// Security headers middleware (helmet-like)
	e.Use(echomiddleware.SecureWithConfig(echomiddleware.SecureConfig{
		XSSProtection:         "1; mode=block",
		ContentTypeNosniff:    "nosniff",
		XFrameOptions:         "DENY",
		HSTSMaxAge:            31536000,
		ContentSecurityPolicy: "default-src 'self'",
		ReferrerPolicy:        "strict-origin-when-cross-origin",
	}))

	// Request logging middleware with zerolog
	e.Use(zerologMiddleware())

	// Recovery middleware
	e.Use(echomiddleware.Recover())

	// Health check endpoint
	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]interface{}{
			"status":            "ok",
			"websocket_clients": hub.ClientCount(),
			"last_drifted":      reconciler.LastDrifted(),
		})
	})

	// WebSocket endpoint authenticates with ?token=
	e.GET("/ws", wsHandler.HandleWS)

	// Register API routes
	rateLimiter := middleware.NewRateLimiter(middleware.DefaultRateLimitConfig(cfg.RateLimitPerMinute, cfg.RateLimitBurst))
	handler.RegisterRoutes(e, authMiddleware, rateLimiter, handlers)

	// Start server in goroutine
	go func() {
		log.Info().Str("port", cfg.Port).Msg("Starting server")
		if err := e.Start(":" + cfg.Port); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Server failed")
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	hub.CloseAll()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Fatal().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server exited")
}

// ledgerPolicy converts the configured money rules
func ledgerPolicy(cfg config.PolicyConfig) service.LedgerPolicy {
	policy := service.LedgerPolicy{
		AllowOverdraft:                 cfg.AllowOverdraft,
		MinTransferAmount:              cfg.MinTransferAmount,
		AdvanceRepaymentCreditsAccount: cfg.AdvanceRepaymentCreditsAccount,
	}
	for _, t := range cfg.NoOverdraftTypes {
		policy.NoOverdraftTypes = append(policy.NoOverdraftTypes, domain.AccountType(t))
	}
	return policy
}

// zerologMiddleware returns a middleware that logs requests using zerolog
func zerologMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()

			err := next(c)
			if err != nil {
				c.Error(err)
			}

			req := c.Request()
			res := c.Response()

			log.Info().
				Str("method", req.Method).
				Str("path", req.URL.Path).
				Int("status", res.Status).
				Dur("latency", time.Since(start)).
				Str("request_id", res.Header().Get(echo.HeaderXRequestID)).
				Msg("request")

			return nil
		}
	}
}
