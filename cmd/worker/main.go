package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dafibh/kaskecil/kaskecil-backend/internal/config"
	"github.com/dafibh/kaskecil/kaskecil-backend/internal/repository/postgres"
	"github.com/dafibh/kaskecil/kaskecil-backend/internal/repository/storage"
	"github.com/dafibh/kaskecil/kaskecil-backend/internal/service"
	"github.com/dafibh/kaskecil/kaskecil-backend/internal/worker"
	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	if os.Getenv("ENV") != "production" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}
	loc, err := time.LoadLocation(cfg.Report.Timezone)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load report timezone")
	}

	ctx := context.Background()

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer pool.Close()
	if err := pool.Ping(ctx); err != nil {
		log.Fatal().Err(err).Msg("Failed to ping database")
	}

	store, err := storage.NewS3ReportStore(ctx, cfg.S3)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize S3 report store")
	}

	reportService := service.NewReportService(
		postgres.NewAccountRepository(pool),
		postgres.NewPostingRepository(pool),
		service.ReportConfig{Location: loc, PettyCashAccountName: cfg.Report.PettyCashAccountName},
	)
	archiver := service.NewReportArchiver(reportService, store)

	// Create Asynq server
	srv := asynq.NewServer(
		asynq.RedisClientOpt{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.QueueDB,
		},
		asynq.Config{
			Concurrency: cfg.Worker.Concurrency,
			Queues: map[string]int{
				worker.QueueCritical: 6,
				worker.QueueDefault:  3,
				worker.QueueLow:      1,
			},
			ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
				log.Error().Err(err).Str("task_type", task.Type()).Msg("Task failed")
			}),
		},
	)

	// Register task handlers
	mux := asynq.NewServeMux()
	worker.RegisterHandlers(mux, archiver, loc)

	log.Info().Int("concurrency", cfg.Worker.Concurrency).Msg("Worker starting")
	if err := srv.Start(mux); err != nil {
		log.Fatal().Err(err).Msg("Failed to start worker")
	}

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down worker...")
	srv.Shutdown()
	log.Info().Msg("Worker exited")
}
