package model

import "time"

// VideoStatus tracks the HLS conversion of a video
type VideoStatus string

const (
	VideoStatusPending     VideoStatus = "pending"
	VideoStatusTranscoding VideoStatus = "transcoding"
	VideoStatusReady       VideoStatus = "ready"
	VideoStatusFailed      VideoStatus = "failed"
)

var ValidVideoStatuses = []VideoStatus{
	VideoStatusPending, VideoStatusTranscoding, VideoStatusReady, VideoStatusFailed,
}

// Video is a catalog entry. SourcePath and ThumbnailPath are relative to the
// media root; an empty ThumbnailPath means no thumbnail has been generated.
type Video struct {
	ID            int64       `json:"id"`
	CreatedAt     time.Time   `json:"created_at"`
	Title         string      `json:"title"`
	Description   string      `json:"description"`
	Category      string      `json:"category"`
	SourcePath    string      `json:"-"`
	ThumbnailPath string      `json:"-"`
	Status        VideoStatus `json:"status"`
}

// HasThumbnail reports whether the thumbnail task already ran successfully.
func (v *Video) HasThumbnail() bool {
	return v.ThumbnailPath != ""
}

// CreateVideoRequest holds the form fields of an upload
type CreateVideoRequest struct {
	Title       string `form:"title" validate:"required,max=255"`
	Description string `form:"description" validate:"required"`
	Category    string `form:"category" validate:"required,max=100"`
}

// VideoResponse is the list representation of a video
type VideoResponse struct {
	ID           int64       `json:"id"`
	CreatedAt    time.Time   `json:"created_at"`
	Title        string      `json:"title"`
	Description  string      `json:"description"`
	ThumbnailURL string      `json:"thumbnail_url"`
	Category     string      `json:"category"`
	Status       VideoStatus `json:"status"`
}

// VideoDetailResponse adds playback information
type VideoDetailResponse struct {
	VideoResponse
	VideoURL    string   `json:"video_url"`
	Resolutions []string `json:"resolutions"`
}
