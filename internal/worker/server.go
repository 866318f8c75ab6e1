package worker

import (
	"context"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/videoflix/backend/internal/config"
	"github.com/videoflix/backend/internal/ffmpeg"
	"github.com/videoflix/backend/internal/lock"
	"github.com/videoflix/backend/internal/logging"
	"github.com/videoflix/backend/internal/media"
	"github.com/videoflix/backend/internal/model"
	"github.com/videoflix/backend/internal/transcode"
)

// RedisOpt builds the asynq connection options shared by client and server.
func RedisOpt(cfg *config.RedisConfig) asynq.RedisClientOpt {
	return asynq.RedisClientOpt{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	}
}

// NewServer creates the asynq server consuming the conversion queue.
func NewServer(cfg *config.Config, log zerolog.Logger) *asynq.Server {
	concurrency := cfg.Queue.Concurrency
	if concurrency <= 0 {
		concurrency = 1
	}

	return asynq.NewServer(
		RedisOpt(&cfg.Redis),
		asynq.Config{
			Concurrency: concurrency,
			Queues: map[string]int{
				cfg.Queue.Name: 1,
			},
			Logger:   logging.NewAsynqLogger(log),
			LogLevel: logging.AsynqLevel(cfg.Server.LogLevel),
			ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
				retried, _ := asynq.GetRetryCount(ctx)
				maxRetry, _ := asynq.GetMaxRetry(ctx)
				log.Error().Err(err).
					Str("task", task.Type()).
					Int("retried", retried).
					Int("max_retry", maxRetry).
					Msg("job failed")
			}),
		},
	)
}

// NewMux routes task types to the worker.
func NewMux(w *VideoWorker) *asynq.ServeMux {
	mux := asynq.NewServeMux()
	mux.HandleFunc(model.TaskTypeThumbnail, w.ProcessThumbnail)
	mux.HandleFunc(model.TaskTypeHLS, w.ProcessHLS)
	return mux
}

// NewPipeline assembles the conversion pipeline with its optional
// collaborators. observer and publisher may be nil.
func NewPipeline(cfg *config.Config, videos transcode.VideoRepository, redisClient *redis.Client, observer transcode.Observer, publisher transcode.Publisher, log zerolog.Logger) *transcode.Pipeline {
	opts := []transcode.Option{
		transcode.WithLocker(lock.NewRedisLocker(redisClient, cfg.Queue.LockTTL, log)),
	}
	if observer != nil {
		opts = append(opts, transcode.WithObserver(observer))
	}
	if publisher != nil {
		opts = append(opts, transcode.WithPublisher(publisher))
	}

	return transcode.NewPipeline(
		videos,
		ffmpeg.NewExecRunner(cfg.FFmpeg.Binary),
		media.NewLayout(cfg.Media.Root),
		&cfg.FFmpeg,
		log,
		opts...,
	)
}
