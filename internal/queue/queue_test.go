package queue

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/videoflix/backend/internal/model"
)

type submission struct {
	taskType string
	videoID  int64
}

type fakeSubmitter struct {
	mu   sync.Mutex
	subs []submission
	fail map[string]error
}

func (f *fakeSubmitter) Submit(_ context.Context, taskType string, videoID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.subs = append(f.subs, submission{taskType, videoID})
	return f.fail[taskType]
}

func TestVideoCreatedSubmitsBothJobs(t *testing.T) {
	sub := &fakeSubmitter{}
	d := NewDispatcher(sub, zerolog.Nop())

	require.NoError(t, d.VideoCreated(context.Background(), 7))
	assert.Equal(t, []submission{
		{model.TaskTypeThumbnail, 7},
		{model.TaskTypeHLS, 7},
	}, sub.subs)
}

func TestVideoCreatedIndependentFailures(t *testing.T) {
	boom := errors.New("broker down")
	sub := &fakeSubmitter{fail: map[string]error{model.TaskTypeThumbnail: boom}}
	d := NewDispatcher(sub, zerolog.Nop())

	err := d.VideoCreated(context.Background(), 3)
	assert.ErrorIs(t, err, boom)
	// the HLS job is still submitted
	assert.Len(t, sub.subs, 2)
}

func TestTaskRoundTrip(t *testing.T) {
	task, err := NewTask(model.TaskTypeHLS, 12)
	require.NoError(t, err)
	assert.Equal(t, model.TaskTypeHLS, task.Type())
	assert.JSONEq(t, `{"videoId":12}`, string(task.Payload()))

	p, err := ParsePayload(task)
	require.NoError(t, err)
	assert.Equal(t, int64(12), p.VideoID)
}

func TestParsePayloadRejectsGarbage(t *testing.T) {
	for _, raw := range []string{`not json`, `{}`, `{"videoId":-1}`} {
		_, err := ParsePayload(asynq.NewTask(model.TaskTypeHLS, []byte(raw)))
		assert.ErrorIs(t, err, ErrInvalidPayload, raw)
	}
}

func TestTaskID(t *testing.T) {
	assert.Equal(t, "video:hls:5", TaskID(model.TaskTypeHLS, 5))
	assert.NotEqual(t, TaskID(model.TaskTypeHLS, 5), TaskID(model.TaskTypeThumbnail, 5))
}
