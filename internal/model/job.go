package model

// Task type names. Workers resolve handlers by these names, so they must stay
// stable across deployments.
const (
	TaskTypeThumbnail = "video:thumbnail"
	TaskTypeHLS       = "video:hls"
)

// VideoTaskPayload is the only argument of a conversion job. The worker
// reloads the record by ID instead of trusting a serialized copy.
type VideoTaskPayload struct {
	VideoID int64 `json:"videoId"`
}
