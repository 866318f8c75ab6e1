package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/videoflix/backend/internal/auth"
	"github.com/videoflix/backend/internal/client"
	"github.com/videoflix/backend/internal/config"
	"github.com/videoflix/backend/internal/handler"
	"github.com/videoflix/backend/internal/logging"
	"github.com/videoflix/backend/internal/media"
	"github.com/videoflix/backend/internal/middleware"
	"github.com/videoflix/backend/internal/queue"
	"github.com/videoflix/backend/internal/service"
	"github.com/videoflix/backend/internal/store"
	"github.com/videoflix/backend/internal/transcode"
	ws "github.com/videoflix/backend/internal/websocket"
	"github.com/videoflix/backend/internal/worker"
)

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

	// Initialize Redis client
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer redisClient.Close()

	if err := redisClient.Ping(ctx).Err(); err != nil {
		log.Warn().Err(err).Msg("redis not available")
	}

	// Initialize Asynq client
	asynqClient := asynq.NewClient(worker.RedisOpt(&cfg.Redis))
	defer asynqClient.Close()
	inspector := asynq.NewInspector(worker.RedisOpt(&cfg.Redis))
	defer inspector.Close()

	submitter := queue.NewAsynqSubmitter(asynqClient, inspector, &cfg.Queue, log)
	dispatcher := queue.NewDispatcher(submitter, log)

	// Object storage is optional
	var publisher *client.HLSPublisher
	var remote service.RemoteStore
	if cfg.R2.AccountID != "" {
		r2Client, err := client.NewR2Client(&cfg.R2)
		if err != nil {
			log.Warn().Err(err).Msg("R2 client not configured")
		} else {
			publisher = client.NewHLSPublisher(r2Client, cfg.R2.Prefix, log)
			remote = publisher
		}
	}

	layout := media.NewLayout(cfg.Media.Root)
	if err := media.EnsureDir(layout.VideosDir()); err != nil {
		log.Fatal().Err(err).Msg("media root not writable")
	}

	videoService := service.NewVideoService(videos, dispatcher, layout, remote, log)

	// Token verifiers: shared secret first, then the optional OIDC issuer
	verifiers := []auth.TokenVerifier{auth.NewHMACVerifier(cfg.JWT.Secret)}
	if cfg.Auth.JWKSIssuer != "" {
		jwks, err := auth.NewJWKSVerifier(ctx, &cfg.Auth)
		if err != nil {
			log.Warn().Err(err).Msg("JWKS verifier not available")
		} else {
			defer jwks.Close()
			verifiers = append(verifiers, jwks)
		}
	}
	authMiddleware := middleware.NewAuthMiddleware(cfg.Auth.CookieName, verifiers...)
	rateLimiter := middleware.NewRateLimiter(redisClient, log)

	var hub *ws.Hub
	if cfg.Worker.Embedded {
		hub = ws.NewHub(log)
	}

	app := newApp(cfg)

	router := &handler.Router{
		Videos: handler.NewVideoHandler(videoService, validator.New(), cfg.Media.URLPrefix, cfg.Media.MaxUpload, log),
		Stream: handler.NewStreamHandler(videoService, log),
		Health: handler.NewHealthHandler(map[string]handler.Pinger{
			"database": videos.Ping,
			"redis": func(ctx context.Context) error {
				return redisClient.Ping(ctx).Err()
			},
		}),
		Auth:        authMiddleware.Authenticate(),
		UploadLimit: rateLimiter.UploadLimit(cfg.RateLimit.UploadPerHour),
		Hub:         hub,
		MediaRoot:   cfg.Media.Root,
		MediaURL:    cfg.Media.URLPrefix,
	}
	router.Register(app)

	g, gctx := errgroup.WithContext(ctx)

	if cfg.Worker.Embedded {
		var observer transcode.Observer = hub
		var pub transcode.Publisher
		if publisher != nil {
			pub = publisher
		}
		pipeline := worker.NewPipeline(cfg, videos, redisClient, observer, pub, log)
		srv := worker.NewServer(cfg, log)

		g.Go(func() error {
			hub.Run(gctx)
			return nil
		})
		g.Go(func() error {
			if err := srv.Start(worker.NewMux(worker.NewVideoWorker(pipeline, log))); err != nil {
				return err
			}
			<-gctx.Done()
			srv.Shutdown()
			return nil
		})
	}

	g.Go(func() error {
		addr := ":" + cfg.Server.Port
		log.Info().Str("addr", addr).Bool("embedded_worker", cfg.Worker.Embedded).Msg("server starting")
		return app.Listen(addr)
	})

	g.Go(func() error {
		<-gctx.Done()
		log.Info().Msg("shutting down server")
		return app.ShutdownWithTimeout(10 * time.Second)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		log.Error().Err(err).Msg("server stopped with error")
	}
}

// newApp builds the fiber app with the global middleware.
func newApp(cfg *config.Config) *fiber.App {
	app := fiber.New(fiber.Config{
		ErrorHandler: handler.ErrorHandler,
		BodyLimit:    int(cfg.Media.MaxUpload),
	})

	app.Use(recover.New())
	app.Use(logger.New(logger.Config{
		Format: "[${time}] ${status} - ${latency} ${method} ${path}\n",
	}))
	app.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.Server.CORSOrigins,
		AllowMethods:     "GET,POST,PUT,DELETE,OPTIONS",
		AllowHeaders:     "Origin,Content-Type,Accept,Authorization",
		AllowCredentials: true,
	}))
	return app
}
