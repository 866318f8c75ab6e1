package worker

import (
	"context"
	"errors"
	"testing"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/videoflix/backend/internal/model"
	"github.com/videoflix/backend/internal/queue"
	"github.com/videoflix/backend/internal/transcode"
)

type stubTasks struct {
	thumbnail transcode.Result
	hls       transcode.Result
	ids       []int64
}

func (s *stubTasks) GenerateThumbnail(_ context.Context, id int64) transcode.Result {
	s.ids = append(s.ids, id)
	return s.thumbnail
}

func (s *stubTasks) ConvertToHLS(_ context.Context, id int64) transcode.Result {
	s.ids = append(s.ids, id)
	return s.hls
}

func newTask(t *testing.T, taskType string, id int64) *asynq.Task {
	t.Helper()
	task, err := queue.NewTask(taskType, id)
	require.NoError(t, err)
	return task
}

func TestProcessHLSSuccess(t *testing.T) {
	tasks := &stubTasks{hls: transcode.Result{Outcome: transcode.Succeeded}}
	w := NewVideoWorker(tasks, zerolog.Nop())

	require.NoError(t, w.ProcessHLS(context.Background(), newTask(t, model.TaskTypeHLS, 4)))
	assert.Equal(t, []int64{4}, tasks.ids)
}

func TestProcessSkippedIsNotAnError(t *testing.T) {
	tasks := &stubTasks{thumbnail: transcode.Result{Outcome: transcode.Skipped, Reason: "thumbnail already present"}}
	w := NewVideoWorker(tasks, zerolog.Nop())

	assert.NoError(t, w.ProcessThumbnail(context.Background(), newTask(t, model.TaskTypeThumbnail, 1)))
}

func TestProcessRetryableFailure(t *testing.T) {
	cause := errors.New("exit status 1")
	tasks := &stubTasks{hls: transcode.Result{Outcome: transcode.Failed, Kind: transcode.KindNonZeroExit, Err: cause}}
	w := NewVideoWorker(tasks, zerolog.Nop())

	err := w.ProcessHLS(context.Background(), newTask(t, model.TaskTypeHLS, 2))
	require.Error(t, err)
	assert.ErrorIs(t, err, cause)
	assert.NotErrorIs(t, err, asynq.SkipRetry)
}

func TestProcessPermanentFailureSkipsRetry(t *testing.T) {
	for _, kind := range []transcode.ErrorKind{
		transcode.KindBinaryNotFound,
		transcode.KindRecordNotFound,
		transcode.KindSourceMissing,
	} {
		tasks := &stubTasks{thumbnail: transcode.Result{Outcome: transcode.Failed, Kind: kind, Err: errors.New("x")}}
		w := NewVideoWorker(tasks, zerolog.Nop())

		err := w.ProcessThumbnail(context.Background(), newTask(t, model.TaskTypeThumbnail, 2))
		assert.ErrorIs(t, err, asynq.SkipRetry, kind)
	}
}

func TestProcessInvalidPayload(t *testing.T) {
	tasks := &stubTasks{}
	w := NewVideoWorker(tasks, zerolog.Nop())

	err := w.ProcessHLS(context.Background(), asynq.NewTask(model.TaskTypeHLS, []byte(`{}`)))
	assert.ErrorIs(t, err, asynq.SkipRetry)
	assert.ErrorIs(t, err, queue.ErrInvalidPayload)
	assert.Empty(t, tasks.ids)
}

func TestNewMuxRoutesByType(t *testing.T) {
	tasks := &stubTasks{
		thumbnail: transcode.Result{Outcome: transcode.Succeeded},
		hls:       transcode.Result{Outcome: transcode.Failed, Kind: transcode.KindTimeout, Err: errors.New("slow")},
	}
	mux := NewMux(NewVideoWorker(tasks, zerolog.Nop()))

	assert.NoError(t, mux.ProcessTask(context.Background(), newTask(t, model.TaskTypeThumbnail, 1)))
	assert.Error(t, mux.ProcessTask(context.Background(), newTask(t, model.TaskTypeHLS, 1)))
}
