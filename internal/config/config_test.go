package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8000", cfg.Server.Port)
	assert.Equal(t, "ffmpeg", cfg.FFmpeg.Binary)
	assert.Equal(t, 15*time.Minute, cfg.FFmpeg.EncodeTimeout)
	assert.Equal(t, 5*time.Minute, cfg.FFmpeg.SegmentTimeout)
	assert.Equal(t, 10, cfg.FFmpeg.SegmentSeconds)
	assert.Equal(t, "access_token", cfg.Auth.CookieName)
	assert.Equal(t, 0, cfg.Queue.MaxRetry)
	assert.True(t, cfg.Worker.Embedded)
}

func TestQueueBudgetCoversConversion(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	worst := cfg.FFmpeg.ThumbnailTimeout + 3*(cfg.FFmpeg.EncodeTimeout+cfg.FFmpeg.SegmentTimeout)
	assert.Greater(t, cfg.Queue.TaskTimeout, worst)
	assert.GreaterOrEqual(t, cfg.Queue.LockTTL, cfg.Queue.TaskTimeout)
	assert.Equal(t, 90*time.Minute, cfg.Queue.TaskTimeout)
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("MEDIA_ROOT", "/srv/media")
	t.Setenv("FFMPEG_ENCODE_TIMEOUT", "30m")
	t.Setenv("WORKER_EMBEDDED", "false")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "/srv/media", cfg.Media.Root)
	assert.Equal(t, 30*time.Minute, cfg.FFmpeg.EncodeTimeout)
	assert.False(t, cfg.Worker.Embedded)
}

func TestReadSecretFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "secret")
	require.NoError(t, os.WriteFile(path, []byte("s3cr3t\n"), 0o600))

	t.Setenv("JWT_SECRET", "")
	t.Setenv("JWT_SECRET_FILE", path)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "s3cr3t", cfg.JWT.Secret)
}
