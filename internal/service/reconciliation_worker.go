package service

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// ReconciliationWorker periodically compares stored balances with the journal
// and logs every account that drifted
type ReconciliationWorker struct {
	reportService *ReportService
	logger        zerolog.Logger
	interval      time.Duration
	stopCh        chan struct{}
	doneCh        chan struct{}
	mu            sync.Mutex
	running       bool
	lastDrifted   int
}

// ReconciliationWorkerConfig holds configuration for the reconciliation worker
type ReconciliationWorkerConfig struct {
	Interval time.Duration // How often to reconcile all accounts
}

// DefaultReconciliationWorkerConfig returns sensible defaults
func DefaultReconciliationWorkerConfig() ReconciliationWorkerConfig {
	return ReconciliationWorkerConfig{
		Interval: 1 * time.Hour,
	}
}

// NewReconciliationWorker creates a new reconciliation worker
func NewReconciliationWorker(
	reportService *ReportService,
	logger zerolog.Logger,
	config ReconciliationWorkerConfig,
) *ReconciliationWorker {
	if config.Interval <= 0 {
		config.Interval = DefaultReconciliationWorkerConfig().Interval
	}

	return &ReconciliationWorker{
		reportService: reportService,
		logger:        logger.With().Str("component", "reconciliation_worker").Logger(),
		interval:      config.Interval,
		stopCh:        make(chan struct{}),
		doneCh:        make(chan struct{}),
	}
}

// Start begins the background reconciliation
func (w *ReconciliationWorker) Start(ctx context.Context) {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return
	}
	w.running = true
	w.mu.Unlock()

	w.logger.Info().Dur("interval", w.interval).Msg("Starting reconciliation worker")

	go w.run(ctx)
}

// Stop gracefully stops the reconciliation worker
func (w *ReconciliationWorker) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	w.mu.Unlock()

	w.logger.Info().Msg("Stopping reconciliation worker")
	close(w.stopCh)
	<-w.doneCh
	w.logger.Info().Msg("Reconciliation worker stopped")
}

func (w *ReconciliationWorker) run(ctx context.Context) {
	defer close(w.doneCh)

	w.RunOnce(ctx)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.setStopped()
			return
		case <-w.stopCh:
			w.setStopped()
			return
		case <-ticker.C:
			w.RunOnce(ctx)
		}
	}
}

func (w *ReconciliationWorker) setStopped() {
	w.mu.Lock()
	w.running = false
	w.mu.Unlock()
}

// RunOnce reconciles every account and returns how many drifted
func (w *ReconciliationWorker) RunOnce(ctx context.Context) int {
	startTime := time.Now()

	reports, err := w.reportService.ReconcileAll(ctx)
	if err != nil {
		w.logger.Error().Err(err).Msg("Failed to reconcile accounts")
		return 0
	}

	drifted := 0
	for _, r := range reports {
		if r.Balanced() {
			continue
		}
		drifted++
		w.logger.Warn().
			Str("account_id", r.AccountID).
			Str("account_name", r.AccountName).
			Str("actual_balance", r.ActualBalance.StringFixed(2)).
			Str("calculated_balance", r.CalculatedBalance.StringFixed(2)).
			Str("difference", r.Difference.StringFixed(2)).
			Msg("Account balance does not match its journal")
	}

	w.mu.Lock()
	w.lastDrifted = drifted
	w.mu.Unlock()

	w.logger.Info().
		Int("accounts", len(reports)).
		Int("drifted", drifted).
		Dur("elapsed", time.Since(startTime)).
		Msg("Completed reconciliation")
	return drifted
}

// LastDrifted returns the number of drifting accounts found by the last run
func (w *ReconciliationWorker) LastDrifted() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.lastDrifted
}

// IsRunning returns whether the worker is currently running
func (w *ReconciliationWorker) IsRunning() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.running
}
