package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog/log"
)

// Archiver archives the petty-cash report of one day
type Archiver interface {
	ArchiveDaily(ctx context.Context, day time.Time) (string, error)
}

// ArchiveTaskHandler processes report:archive_daily tasks
type ArchiveTaskHandler struct {
	archiver Archiver
	location *time.Location
}

// NewArchiveTaskHandler creates a new ArchiveTaskHandler. Days in task
// payloads are read in loc.
func NewArchiveTaskHandler(archiver Archiver, loc *time.Location) *ArchiveTaskHandler {
	if loc == nil {
		loc = time.UTC
	}
	return &ArchiveTaskHandler{archiver: archiver, location: loc}
}

// Handle implements asynq.HandlerFunc
func (h *ArchiveTaskHandler) Handle(ctx context.Context, task *asynq.Task) error {
	day, err := ParseArchiveDailyPayload(task.Payload(), h.location)
	if err != nil {
		// A malformed payload will never succeed
		return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
	}

	log.Info().Str("day", day.Format(dayLayout)).Msg("Archiving daily report")

	key, err := h.archiver.ArchiveDaily(ctx, day)
	if err != nil {
		log.Error().Err(err).Str("day", day.Format(dayLayout)).Msg("Failed to archive daily report")
		return err
	}

	log.Info().Str("day", day.Format(dayLayout)).Str("key", key).Msg("Daily report archive finished")
	return nil
}
