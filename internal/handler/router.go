package handler

import (
	"path/filepath"
	"strconv"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/videoflix/backend/internal/media"
	ws "github.com/videoflix/backend/internal/websocket"
)

// Router wires the handlers onto a fiber app.
type Router struct {
	Videos *VideoHandler
	Stream *StreamHandler
	Health *HealthHandler

	Auth        fiber.Handler
	UploadLimit fiber.Handler

	// Hub is nil when no worker runs in this process.
	Hub *ws.Hub

	MediaRoot string
	MediaURL  string
}

func (r *Router) Register(app *fiber.App) {
	uploadLimit := r.UploadLimit
	if uploadLimit == nil {
		uploadLimit = func(c *fiber.Ctx) error { return c.Next() }
	}

	app.Get("/health", r.Health.Health)
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	// only thumbnails are public; sources and renditions go through the API
	if r.MediaURL != "" {
		app.Static(r.MediaURL+"/"+media.ThumbnailsDir, filepath.Join(r.MediaRoot, media.ThumbnailsDir))
	}

	api := app.Group("/api", r.Auth)

	video := api.Group("/video")
	video.Get("/", r.Videos.List)
	video.Post("/", uploadLimit, r.Videos.Create)
	video.Get("/:id", r.Videos.Detail)
	video.Delete("/:id", r.Videos.Delete)
	video.Post("/:id/reprocess", r.Videos.Reprocess)
	video.Get("/:id/:resolution/index.m3u8", r.Stream.Playlist)
	video.Get("/:id/:resolution/:segment", r.Stream.Segment)

	if r.Hub != nil {
		app.Use("/ws", r.Auth, func(c *fiber.Ctx) error {
			if websocket.IsWebSocketUpgrade(c) {
				return c.Next()
			}
			return fiber.ErrUpgradeRequired
		})

		app.Get("/ws/videos/:id", websocket.New(func(c *websocket.Conn) {
			id, err := strconv.ParseInt(c.Params("id"), 10, 64)
			if err != nil || id <= 0 {
				return
			}
			r.Hub.HandleConnection(c, id)
		}))
	}
}

// ErrorHandler renders unhandled errors in the API error envelope.
func ErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	message := "Internal Server Error"

	if e, ok := err.(*fiber.Error); ok {
		code = e.Code
		message = e.Message
	}

	errCode := "SERVICE_ERROR"
	switch code {
	case fiber.StatusNotFound:
		errCode = "NOT_FOUND"
	case fiber.StatusRequestEntityTooLarge:
		errCode = "PAYLOAD_TOO_LARGE"
	}

	return c.Status(code).JSON(fiber.Map{
		"error": fiber.Map{
			"code":    errCode,
			"message": message,
		},
	})
}
