package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog/log"
)

// taskEnqueuer is the part of *asynq.Client the queue needs
type taskEnqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// Queue implements domain.ArchiveQueue on asynq
type Queue struct {
	client taskEnqueuer
}

// NewQueue creates a new Queue
func NewQueue(client *asynq.Client) *Queue {
	return &Queue{client: client}
}

// EnqueueDailyArchive schedules archiving of the report for day and returns the task ID
func (q *Queue) EnqueueDailyArchive(ctx context.Context, day time.Time) (string, error) {
	task, err := NewArchiveDailyTask(day)
	if err != nil {
		return "", err
	}

	info, err := q.client.EnqueueContext(ctx, task)
	if err != nil {
		return "", fmt.Errorf("failed to enqueue task: %w", err)
	}

	log.Info().
		Str("task_id", info.ID).
		Str("queue", info.Queue).
		Str("day", day.Format(dayLayout)).
		Msg("Daily archive enqueued")
	return info.ID, nil
}
