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

// ReportHandler handles reporting endpoints
type ReportHandler struct {
	reportService *service.ReportService
	archiver      *service.ReportArchiver
	queue         domain.ArchiveQueue
}

// NewReportHandler creates a new ReportHandler. archiver and queue may be nil
// when object storage or the task queue is not configured.
func NewReportHandler(reportService *service.ReportService, archiver *service.ReportArchiver, queue domain.ArchiveQueue) *ReportHandler {
	return &ReportHandler{
		reportService: reportService,
		archiver:      archiver,
		queue:         queue,
	}
}

// ArchiveReportRequest asks for the report of one day to be archived
type ArchiveReportRequest struct {
	Date string `json:"date" validate:"omitempty,datetime=2006-01-02"`
}

// ArchiveReportResponse identifies the queued archive task
type ArchiveReportResponse struct {
	TaskID string `json:"taskId"`
	Date   string `json:"date"`
	Key    string `json:"key"`
}

// day parses s in the report zone, "" means today
func (h *ReportHandler) day(s string) (time.Time, error) {
	loc := h.reportService.Location()
	if s == "" {
		return util.StartOfDay(time.Now(), loc), nil
	}
	return util.ParseDay(s, loc)
}

// GetPettyCash handles GET /api/v1/reports/petty-cash?date=YYYY-MM-DD
func (h *ReportHandler) GetPettyCash(c echo.Context) error {
	day, err := h.day(c.QueryParam("date"))
	if err != nil {
		return NewValidationError(c, "Invalid date", []ValidationError{
			{Field: "date", Message: "Must be a date in YYYY-MM-DD format"},
		})
	}

	report, err := h.reportService.PettyCashDailyReport(c.Request().Context(), day)
	if err != nil {
		return respondError(c, err, "Failed to build petty cash report")
	}

	return c.JSON(http.StatusOK, report)
}

// ArchivePettyCash handles POST /api/v1/reports/archive
func (h *ReportHandler) ArchivePettyCash(c echo.Context) error {
	if h.queue == nil {
		return NewInternalError(c, "Report archiving is not configured")
	}

	var req ArchiveReportRequest
	if ok, err := bindRequest(c, &req); !ok {
		return err
	}

	day, err := h.day(req.Date)
	if err != nil {
		return NewValidationError(c, "Invalid date", []ValidationError{
			{Field: "date", Message: "Must be a date in YYYY-MM-DD format"},
		})
	}

	taskID, err := h.queue.EnqueueDailyArchive(c.Request().Context(), day)
	if err != nil {
		return respondError(c, err, "Failed to enqueue report archive")
	}

	log.Info().Str("task_id", taskID).Str("day", day.Format(util.DateLayout)).Msg("Report archive requested")

	return c.JSON(http.StatusAccepted, ArchiveReportResponse{
		TaskID: taskID,
		Date:   day.Format(util.DateLayout),
		Key:    service.ArchiveKey(day),
	})
}

// GetArchivedPettyCash handles GET /api/v1/reports/archive?date=YYYY-MM-DD
func (h *ReportHandler) GetArchivedPettyCash(c echo.Context) error {
	if h.archiver == nil {
		return NewInternalError(c, "Report archiving is not configured")
	}

	day, err := h.day(c.QueryParam("date"))
	if err != nil {
		return NewValidationError(c, "Invalid date", []ValidationError{
			{Field: "date", Message: "Must be a date in YYYY-MM-DD format"},
		})
	}

	report, err := h.archiver.GetArchived(c.Request().Context(), day)
	if err != nil {
		return respondError(c, err, "Failed to get archived report")
	}

	return c.JSON(http.StatusOK, report)
}
