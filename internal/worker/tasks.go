package worker

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
)

// Task types
const (
	TypeArchiveDaily = "report:archive_daily"
)

// Queue names, matching the worker server priorities
const (
	QueueCritical = "critical"
	QueueDefault  = "default"
	QueueLow      = "low"
)

const dayLayout = "2006-01-02"

// ArchiveDailyPayload is the body of a report:archive_daily task
type ArchiveDailyPayload struct {
	Day string `json:"day"`
}

// NewArchiveDailyTask builds the task that archives the petty-cash report of day
func NewArchiveDailyTask(day time.Time) (*asynq.Task, error) {
	payload, err := json.Marshal(ArchiveDailyPayload{Day: day.Format(dayLayout)})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal payload: %w", err)
	}
	return asynq.NewTask(TypeArchiveDaily, payload, asynq.Queue(QueueLow), asynq.MaxRetry(5)), nil
}

// ParseArchiveDailyPayload decodes the task body and resolves the day in loc
func ParseArchiveDailyPayload(data []byte, loc *time.Location) (time.Time, error) {
	var payload ArchiveDailyPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return time.Time{}, fmt.Errorf("failed to unmarshal payload: %w", err)
	}
	day, err := time.ParseInLocation(dayLayout, payload.Day, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid day %q: %w", payload.Day, err)
	}
	return day, nil
}
