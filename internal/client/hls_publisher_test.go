package client

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type upload struct {
	key         string
	contentType string
	body        string
}

type fakeStorage struct {
	uploads  []upload
	prefixes []string
}

func (f *fakeStorage) Upload(_ context.Context, key string, body io.Reader, contentType string) (string, error) {
	data, err := io.ReadAll(body)
	if err != nil {
		return "", err
	}
	f.uploads = append(f.uploads, upload{key, contentType, string(data)})
	return "https://cdn.example.com/" + key, nil
}

func (f *fakeStorage) DeletePrefix(_ context.Context, prefix string) (int, error) {
	f.prefixes = append(f.prefixes, prefix)
	return 0, nil
}

func TestPublishRenditionUploadsPlaylistLast(t *testing.T) {
	dir := t.TempDir()
	for name, body := range map[string]string{
		"index.m3u8": "#EXTM3U",
		"001.ts":     "b",
		"000.ts":     "a",
		"stray.txt":  "ignored",
	} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644))
	}

	storage := &fakeStorage{}
	p := NewHLSPublisher(storage, "hls", zerolog.Nop())
	require.NoError(t, p.PublishRendition(context.Background(), "movie", "720p", dir))

	require.Len(t, storage.uploads, 3)
	assert.Equal(t, "hls/movie/720p/000.ts", storage.uploads[0].key)
	assert.Equal(t, "video/MP2T", storage.uploads[0].contentType)
	assert.Equal(t, "hls/movie/720p/001.ts", storage.uploads[1].key)
	assert.Equal(t, "hls/movie/720p/index.m3u8", storage.uploads[2].key)
	assert.Equal(t, "application/vnd.apple.mpegurl", storage.uploads[2].contentType)
	assert.Equal(t, "#EXTM3U", storage.uploads[2].body)
}

func TestPublishRenditionMissingDir(t *testing.T) {
	p := NewHLSPublisher(&fakeStorage{}, "hls", zerolog.Nop())
	assert.Error(t, p.PublishRendition(context.Background(), "movie", "480p", filepath.Join(t.TempDir(), "nope")))
}

func TestRemoveVideo(t *testing.T) {
	storage := &fakeStorage{}
	p := NewHLSPublisher(storage, "hls", zerolog.Nop())
	require.NoError(t, p.RemoveVideo(context.Background(), "movie"))
	assert.Equal(t, []string{"hls/movie/"}, storage.prefixes)
}
