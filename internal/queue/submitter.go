package queue

import (
	"context"
	"errors"
	"fmt"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"

	"github.com/videoflix/backend/internal/config"
	"github.com/videoflix/backend/internal/metrics"
)

// Submitter hands a job for one video to whatever runs it.
type Submitter interface {
	Submit(ctx context.Context, taskType string, videoID int64) error
}

// AsynqSubmitter enqueues jobs on a Redis-backed asynq queue.
type AsynqSubmitter struct {
	client    *asynq.Client
	inspector *asynq.Inspector
	cfg       config.QueueConfig
	log       zerolog.Logger
}

// NewAsynqSubmitter creates a submitter. inspector may be nil; without it a
// finished job that is still retained by the broker cannot be resubmitted.
func NewAsynqSubmitter(client *asynq.Client, inspector *asynq.Inspector, cfg *config.QueueConfig, log zerolog.Logger) *AsynqSubmitter {
	return &AsynqSubmitter{
		client:    client,
		inspector: inspector,
		cfg:       *cfg,
		log:       log.With().Str("component", "queue").Logger(),
	}
}

func (s *AsynqSubmitter) Submit(ctx context.Context, taskType string, videoID int64) error {
	task, err := NewTask(taskType, videoID)
	if err != nil {
		return fmt.Errorf("failed to create task: %w", err)
	}

	id := TaskID(taskType, videoID)
	opts := []asynq.Option{
		asynq.Queue(s.cfg.Name),
		asynq.MaxRetry(s.cfg.MaxRetry),
		asynq.TaskID(id),
	}
	if s.cfg.TaskTimeout > 0 {
		opts = append(opts, asynq.Timeout(s.cfg.TaskTimeout))
	}

	_, err = s.client.EnqueueContext(ctx, task, opts...)
	if errors.Is(err, asynq.ErrTaskIDConflict) {
		if !s.evictFinished(id) {
			s.log.Debug().Str("task_id", id).Msg("job already queued")
			metrics.JobsEnqueued.WithLabelValues(taskType, "duplicate").Inc()
			return nil
		}
		_, err = s.client.EnqueueContext(ctx, task, opts...)
	}
	if err != nil {
		metrics.JobsEnqueued.WithLabelValues(taskType, "error").Inc()
		return fmt.Errorf("failed to enqueue task: %w", err)
	}

	metrics.JobsEnqueued.WithLabelValues(taskType, "ok").Inc()
	s.log.Info().Str("task_id", id).Str("queue", s.cfg.Name).Msg("job enqueued")
	return nil
}

// evictFinished drops an archived or completed task holding id so the job
// can run again. Pending and active tasks are left alone.
func (s *AsynqSubmitter) evictFinished(id string) bool {
	if s.inspector == nil {
		return false
	}
	info, err := s.inspector.GetTaskInfo(s.cfg.Name, id)
	if err != nil {
		return false
	}
	if info.State != asynq.TaskStateArchived && info.State != asynq.TaskStateCompleted {
		return false
	}
	if err := s.inspector.DeleteTask(s.cfg.Name, id); err != nil {
		s.log.Warn().Err(err).Str("task_id", id).Msg("cannot delete finished task")
		return false
	}
	return true
}
