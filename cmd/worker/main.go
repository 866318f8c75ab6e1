package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/videoflix/backend/internal/client"
	"github.com/videoflix/backend/internal/config"
	"github.com/videoflix/backend/internal/logging"
	"github.com/videoflix/backend/internal/store"
	"github.com/videoflix/backend/internal/transcode"
	"github.com/videoflix/backend/internal/worker"
)

// Standalone conversion worker. Progress is not broadcast from here since
// websocket clients connect to the API process.
func main() {
	cfg, err := config.Load()
	if err != nil {
		boot := zerolog.New(os.Stderr)
		boot.Fatal().Err(err).Msg("failed to load config")
	}

	log := logging.New(cfg.Server.LogLevel, cfg.Server.Env)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	videos, err := store.Open(ctx, cfg.Database.Path)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open database")
	}
	defer videos.Close()

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer redisClient.Close()

	pipeline := worker.NewPipeline(cfg, videos, redisClient, nil, newPublisher(cfg, log), log)
	srv := worker.NewServer(cfg, log)

	if err := srv.Start(worker.NewMux(worker.NewVideoWorker(pipeline, log))); err != nil {
		log.Fatal().Err(err).Msg("worker failed to start")
	}
	log.Info().Str("queue", cfg.Queue.Name).Int("concurrency", cfg.Queue.Concurrency).Msg("worker started")

	<-ctx.Done()
	log.Info().Msg("shutting down worker")
	srv.Shutdown()
}

// newPublisher returns nil unless R2 is fully configured.
func newPublisher(cfg *config.Config, log zerolog.Logger) transcode.Publisher {
	if cfg.R2.AccountID == "" {
		return nil
	}
	r2Client, err := client.NewR2Client(&cfg.R2)
	if err != nil {
		log.Warn().Err(err).Msg("R2 client not configured")
		return nil
	}
	return client.NewHLSPublisher(r2Client, cfg.R2.Prefix, log)
}
