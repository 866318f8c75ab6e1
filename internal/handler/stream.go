package handler

import (
	"errors"
	"os"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/videoflix/backend/internal/media"
	"github.com/videoflix/backend/internal/service"
	"github.com/videoflix/backend/pkg/response"
)

// StreamHandler serves HLS playlists and segments from the media root.
type StreamHandler struct {
	service *service.VideoService
	log     zerolog.Logger
}

func NewStreamHandler(svc *service.VideoService, log zerolog.Logger) *StreamHandler {
	return &StreamHandler{
		service: svc,
		log:     log.With().Str("component", "stream_handler").Logger(),
	}
}

// Playlist handles GET /api/video/:id/:resolution/index.m3u8
func (h *StreamHandler) Playlist(c *fiber.Ctx) error {
	id, ok := videoID(c)
	if !ok {
		return response.NotFound(c, "Video or manifest not found")
	}

	path, err := h.service.PlaylistFile(c.UserContext(), id, c.Params("resolution"))
	if err != nil {
		return h.notFound(c, err, "Video or manifest not found")
	}
	return h.send(c, path, media.PlaylistContentType)
}

// Segment handles GET /api/video/:id/:resolution/:segment/
func (h *StreamHandler) Segment(c *fiber.Ctx) error {
	id, ok := videoID(c)
	if !ok {
		return response.NotFound(c, "Video or segment not found")
	}

	path, err := h.service.SegmentFile(c.UserContext(), id, c.Params("resolution"), c.Params("segment"))
	if err != nil {
		return h.notFound(c, err, "Video or segment not found")
	}
	return h.send(c, path, media.SegmentContentType)
}

// every lookup failure is a 404; a store failure is logged as well
func (h *StreamHandler) notFound(c *fiber.Ctx, err error, msg string) error {
	switch {
	case service.IsNotFound(err),
		errors.Is(err, service.ErrNotAvailable),
		errors.Is(err, service.ErrInvalidSegment),
		errors.Is(err, service.ErrUnknownResolution):
	default:
		h.log.Error().Err(err).Msg("stream lookup")
	}
	return response.NotFound(c, msg)
}

func (h *StreamHandler) send(c *fiber.Ctx, path, contentType string) error {
	f, err := os.Open(path)
	if err != nil {
		return response.NotFound(c, "File not found")
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return response.NotFound(c, "File not found")
	}

	c.Set(fiber.HeaderContentType, contentType)
	// closed by fasthttp once the body is written
	return c.SendStream(f, int(info.Size()))
}
