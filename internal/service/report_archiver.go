package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/dafibh/kaskecil/kaskecil-backend/internal/domain"
	"github.com/rs/zerolog/log"
)

// ReportArchiver stores finished daily reports in object storage
type ReportArchiver struct {
	reportService *ReportService
	store         domain.ReportStore
}

// NewReportArchiver creates a new ReportArchiver
func NewReportArchiver(reportService *ReportService, store domain.ReportStore) *ReportArchiver {
	return &ReportArchiver{
		reportService: reportService,
		store:         store,
	}
}

// ArchiveKey returns the object key of the petty-cash report for day
func ArchiveKey(day time.Time) string {
	return fmt.Sprintf("reports/petty-cash/%04d/%02d/%s.json", day.Year(), int(day.Month()), day.Format("2006-01-02"))
}

// ArchiveDaily builds the petty-cash report of day and uploads it as JSON.
// Archiving the same day again overwrites the object.
func (a *ReportArchiver) ArchiveDaily(ctx context.Context, day time.Time) (string, error) {
	report, err := a.reportService.PettyCashDailyReport(ctx, day)
	if err != nil {
		return "", err
	}

	body, err := json.Marshal(report)
	if err != nil {
		return "", fmt.Errorf("failed to encode report: %w", err)
	}

	key := ArchiveKey(report.From)
	if err := a.store.Put(ctx, key, bytes.NewReader(body), int64(len(body)), "application/json"); err != nil {
		return "", fmt.Errorf("failed to upload report: %w", err)
	}

	log.Info().
		Str("key", key).
		Str("account_id", report.AccountID).
		Str("closing_balance", report.ClosingBalance.StringFixed(2)).
		Msg("Daily report archived")
	return key, nil
}

// GetArchived downloads a previously archived report
func (a *ReportArchiver) GetArchived(ctx context.Context, day time.Time) (*domain.CashFlowReport, error) {
	day = day.In(a.reportService.Location())
	rc, err := a.store.Get(ctx, ArchiveKey(day))
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("failed to read report: %w", err)
	}
	var report domain.CashFlowReport
	if err := json.Unmarshal(data, &report); err != nil {
		return nil, fmt.Errorf("failed to decode report: %w", err)
	}
	return &report, nil
}
