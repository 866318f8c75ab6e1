package store

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/videoflix/backend/internal/model"
)

func openTestStore(t *testing.T) *VideoStore {
	t.Helper()
	s, err := Open(context.Background(), filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func newVideo(title string) *model.Video {
	return &model.Video{
		Title:       title,
		Description: "desc",
		Category:    "Drama",
		SourcePath:  "videos/" + title + ".mp4",
	}
}

func TestCreateAndGet(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	v := newVideo("clip")
	require.NoError(t, s.Create(ctx, v))
	assert.NotZero(t, v.ID)
	assert.Equal(t, model.VideoStatusPending, v.Status)

	got, err := s.Get(ctx, v.ID)
	require.NoError(t, err)
	assert.Equal(t, "clip", got.Title)
	assert.Equal(t, "videos/clip.mp4", got.SourcePath)
	assert.Empty(t, got.ThumbnailPath)
	assert.Equal(t, model.VideoStatusPending, got.Status)
	assert.WithinDuration(t, v.CreatedAt, got.CreatedAt, time.Millisecond)
}

func TestGetMissing(t *testing.T) {
	s := openTestStore(t)
	_, err := s.Get(context.Background(), 42)
	assert.ErrorIs(t, err, ErrVideoNotFound)
}

func TestListNewestFirst(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	older := newVideo("older")
	older.CreatedAt = time.Now().Add(-time.Hour)
	require.NoError(t, s.Create(ctx, older))
	newer := newVideo("newer")
	require.NoError(t, s.Create(ctx, newer))

	videos, err := s.List(ctx)
	require.NoError(t, err)
	require.Len(t, videos, 2)
	assert.Equal(t, "newer", videos[0].Title)
	assert.Equal(t, "older", videos[1].Title)
}

func TestListEmpty(t *testing.T) {
	s := openTestStore(t)
	videos, err := s.List(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, videos)
	assert.Empty(t, videos)
}

func TestDeleteReturnsRecord(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	v := newVideo("gone")
	require.NoError(t, s.Create(ctx, v))
	require.NoError(t, s.SetThumbnailPath(ctx, v.ID, "thumbnails/gone.jpg"))

	deleted, err := s.Delete(ctx, v.ID)
	require.NoError(t, err)
	assert.Equal(t, "thumbnails/gone.jpg", deleted.ThumbnailPath)

	_, err = s.Get(ctx, v.ID)
	assert.ErrorIs(t, err, ErrVideoNotFound)

	_, err = s.Delete(ctx, v.ID)
	assert.ErrorIs(t, err, ErrVideoNotFound)
}

func TestFieldScopedUpdates(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	v := newVideo("race")
	require.NoError(t, s.Create(ctx, v))

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		assert.NoError(t, s.SetThumbnailPath(ctx, v.ID, "thumbnails/race.jpg"))
	}()
	go func() {
		defer wg.Done()
		assert.NoError(t, s.SetStatus(ctx, v.ID, model.VideoStatusReady))
	}()
	wg.Wait()

	got, err := s.Get(ctx, v.ID)
	require.NoError(t, err)
	assert.Equal(t, "thumbnails/race.jpg", got.ThumbnailPath)
	assert.Equal(t, model.VideoStatusReady, got.Status)
}

func TestUpdateMissing(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	assert.ErrorIs(t, s.SetStatus(ctx, 7, model.VideoStatusFailed), ErrVideoNotFound)
	assert.ErrorIs(t, s.SetThumbnailPath(ctx, 7, "x.jpg"), ErrVideoNotFound)
}
