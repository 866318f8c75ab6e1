// Package queue submits conversion jobs to the broker.
package queue

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/hibiken/asynq"

	"github.com/videoflix/backend/internal/model"
)

var ErrInvalidPayload = errors.New("invalid task payload")

// TaskTypes lists every job dispatched for a freshly created video.
var TaskTypes = []string{model.TaskTypeThumbnail, model.TaskTypeHLS}

// NewTask builds a task whose only argument is the video ID.
func NewTask(taskType string, videoID int64) (*asynq.Task, error) {
	data, err := json.Marshal(model.VideoTaskPayload{VideoID: videoID})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(taskType, data), nil
}

// TaskID is the broker-side identity of a job. Enqueueing the same job twice
// while the first is still known to the broker is rejected.
func TaskID(taskType string, videoID int64) string {
	return taskType + ":" + strconv.FormatInt(videoID, 10)
}

// ParsePayload decodes the video ID of a task.
func ParsePayload(t *asynq.Task) (model.VideoTaskPayload, error) {
	var p model.VideoTaskPayload
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		return p, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	if p.VideoID <= 0 {
		return p, fmt.Errorf("%w: missing videoId", ErrInvalidPayload)
	}
	return p, nil
}
