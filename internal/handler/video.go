package handler

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/videoflix/backend/internal/model"
	"github.com/videoflix/backend/internal/service"
	"github.com/videoflix/backend/pkg/response"
)

// UploadField is the multipart field carrying the video file.
const UploadField = "video_file"

type VideoHandler struct {
	service   *service.VideoService
	validator *validator.Validate
	mediaURL  string
	maxUpload int64
	log       zerolog.Logger
}

func NewVideoHandler(svc *service.VideoService, v *validator.Validate, mediaURL string, maxUpload int64, log zerolog.Logger) *VideoHandler {
	return &VideoHandler{
		service:   svc,
		validator: v,
		mediaURL:  mediaURL,
		maxUpload: maxUpload,
		log:       log.With().Str("component", "video_handler").Logger(),
	}
}

// List handles GET /api/video/
func (h *VideoHandler) List(c *fiber.Ctx) error {
	videos, err := h.service.List(c.UserContext())
	if err != nil {
		h.log.Error().Err(err).Msg("list videos")
		return response.ServiceError(c, "Failed to list videos")
	}

	out := make([]model.VideoResponse, 0, len(videos))
	for i := range videos {
		out = append(out, h.toResponse(&videos[i]))
	}
	return response.OK(c, out)
}

// Detail handles GET /api/video/:id/
func (h *VideoHandler) Detail(c *fiber.Ctx) error {
	id, ok := videoID(c)
	if !ok {
		return response.NotFound(c, "Video not found")
	}

	v, err := h.service.Get(c.UserContext(), id)
	if err != nil {
		return h.lookupError(c, err)
	}

	renditions := h.service.Renditions(v)
	detail := model.VideoDetailResponse{
		VideoResponse: h.toResponse(v),
		Resolutions:   renditions,
	}
	if n := len(renditions); n > 0 {
		detail.VideoURL = fmt.Sprintf("/api/video/%d/%s/index.m3u8", v.ID, renditions[n-1])
	}
	return response.OK(c, detail)
}

// Create handles POST /api/video/ (multipart form)
func (h *VideoHandler) Create(c *fiber.Ctx) error {
	var req model.CreateVideoRequest
	if err := c.BodyParser(&req); err != nil {
		return response.ValidationError(c, "Invalid form data", nil)
	}
	req.Title = strings.TrimSpace(req.Title)
	req.Category = strings.TrimSpace(req.Category)

	if err := h.validator.Struct(&req); err != nil {
		return response.ValidationError(c, "Validation failed", fieldErrors(err))
	}

	file, err := c.FormFile(UploadField)
	if err != nil {
		return response.ValidationError(c, "File is required", map[string]interface{}{
			"field": UploadField,
		})
	}
	if h.maxUpload > 0 && file.Size > h.maxUpload {
		return response.PayloadTooLarge(c, h.maxUpload)
	}

	f, err := file.Open()
	if err != nil {
		return response.ServiceError(c, "Failed to open file")
	}
	defer f.Close()

	v, err := h.service.Create(c.UserContext(), &req, file.Filename, f)
	if errors.Is(err, service.ErrInvalidUpload) {
		return response.ValidationError(c, err.Error(), nil)
	}
	if err != nil {
		h.log.Error().Err(err).Msg("create video")
		return response.ServiceError(c, "Failed to store video")
	}

	return response.Created(c, h.toResponse(v))
}

// Delete handles DELETE /api/video/:id/
func (h *VideoHandler) Delete(c *fiber.Ctx) error {
	id, ok := videoID(c)
	if !ok {
		return response.NotFound(c, "Video not found")
	}

	if err := h.service.Delete(c.UserContext(), id); err != nil {
		return h.lookupError(c, err)
	}
	return response.NoContent(c)
}

// Reprocess handles POST /api/video/:id/reprocess
func (h *VideoHandler) Reprocess(c *fiber.Ctx) error {
	id, ok := videoID(c)
	if !ok {
		return response.NotFound(c, "Video not found")
	}

	err := h.service.Reprocess(c.UserContext(), id)
	switch {
	case err == nil:
		return response.Accepted(c, fiber.Map{"id": id, "status": model.VideoStatusPending})
	case errors.Is(err, service.ErrAlreadyConverted), errors.Is(err, service.ErrSourceGone):
		return response.Conflict(c, err.Error())
	default:
		return h.lookupError(c, err)
	}
}

func (h *VideoHandler) lookupError(c *fiber.Ctx, err error) error {
	if service.IsNotFound(err) {
		return response.NotFound(c, "Video not found")
	}
	h.log.Error().Err(err).Msg("video lookup")
	return response.ServiceError(c, "Failed to load video")
}

func (h *VideoHandler) toResponse(v *model.Video) model.VideoResponse {
	return model.VideoResponse{
		ID:           v.ID,
		CreatedAt:    v.CreatedAt,
		Title:        v.Title,
		Description:  v.Description,
		ThumbnailURL: service.ThumbnailURL(h.mediaURL, v),
		Category:     v.Category,
		Status:       v.Status,
	}
}

func videoID(c *fiber.Ctx) (int64, bool) {
	id, err := c.ParamsInt("id")
	if err != nil || id <= 0 {
		return 0, false
	}
	return int64(id), true
}

func fieldErrors(err error) map[string]interface{} {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return nil
	}
	details := make(map[string]interface{}, len(verrs))
	for _, fe := range verrs {
		details[strings.ToLower(fe.Field())] = fe.Tag()
	}
	return details
}
