package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"

	"github.com/videoflix/backend/internal/metrics"
	"github.com/videoflix/backend/internal/model"
	"github.com/videoflix/backend/internal/queue"
	"github.com/videoflix/backend/internal/transcode"
)

// Tasks is what the worker runs for a video.
type Tasks interface {
	GenerateThumbnail(ctx context.Context, id int64) transcode.Result
	ConvertToHLS(ctx context.Context, id int64) transcode.Result
}

// VideoWorker processes thumbnail and HLS jobs
type VideoWorker struct {
	tasks Tasks
	log   zerolog.Logger
}

// NewVideoWorker creates a new video worker
func NewVideoWorker(tasks Tasks, log zerolog.Logger) *VideoWorker {
	return &VideoWorker{
		tasks: tasks,
		log:   log.With().Str("component", "worker").Logger(),
	}
}

// ProcessThumbnail handles video:thumbnail tasks
func (w *VideoWorker) ProcessThumbnail(ctx context.Context, t *asynq.Task) error {
	return w.process(ctx, t, model.TaskTypeThumbnail, w.tasks.GenerateThumbnail)
}

// ProcessHLS handles video:hls tasks
func (w *VideoWorker) ProcessHLS(ctx context.Context, t *asynq.Task) error {
	return w.process(ctx, t, model.TaskTypeHLS, w.tasks.ConvertToHLS)
}

func (w *VideoWorker) process(ctx context.Context, t *asynq.Task, taskType string, run func(context.Context, int64) transcode.Result) error {
	payload, err := queue.ParsePayload(t)
	if err != nil {
		metrics.JobsTotal.WithLabelValues(taskType, "invalid").Inc()
		return fmt.Errorf("%w: %w", err, asynq.SkipRetry)
	}

	metrics.JobsInFlight.WithLabelValues(taskType).Inc()
	defer metrics.JobsInFlight.WithLabelValues(taskType).Dec()

	log := w.log.With().Str("task", taskType).Int64("video_id", payload.VideoID).Logger()
	log.Info().Msg("job started")
	start := time.Now()

	res := run(ctx, payload.VideoID)

	metrics.JobsTotal.WithLabelValues(taskType, res.Outcome.String()).Inc()
	event := log.Info()
	if res.Outcome == transcode.Failed {
		event = log.Error().Err(res.Err).Str("kind", string(res.Kind))
	}
	event.Str("outcome", res.Outcome.String()).Dur("took", time.Since(start)).Msg("job finished")

	return ResultError(res)
}

// ResultError translates a task result into what asynq expects: nil for
// success or skip, an error for failure, wrapped with asynq.SkipRetry when a
// retry cannot help.
func ResultError(res transcode.Result) error {
	if res.Outcome != transcode.Failed {
		return nil
	}
	err := fmt.Errorf("%s: %w", res.Kind, res.Err)
	if !res.Kind.Retryable() {
		return fmt.Errorf("%w: %w", err, asynq.SkipRetry)
	}
	return err
}
