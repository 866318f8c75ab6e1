package ffmpeg

import (
	"context"
	"errors"
	"os/exec"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func requireSh(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}
}

func TestExecRunnerSuccess(t *testing.T) {
	requireSh(t)
	r := NewExecRunner("sh")

	out, err := r.Run(context.Background(), Command{Name: "test", Args: []string{"-c", "echo hello; echo warn >&2"}})
	require.NoError(t, err)
	assert.Equal(t, "hello\n", out.Stdout)
	assert.Equal(t, "warn\n", out.Stderr)
}

func TestExecRunnerNonZeroExit(t *testing.T) {
	requireSh(t)
	r := NewExecRunner("sh")

	_, err := r.Run(context.Background(), Command{Name: "test", Args: []string{"-c", "echo 'Unknown encoder libx264' >&2; exit 3"}})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNonZeroExit))
	assert.False(t, errors.Is(err, ErrTimeout))

	var cerr *CommandError
	require.True(t, errors.As(err, &cerr))
	assert.Equal(t, 3, cerr.ExitCode)
	assert.Contains(t, cerr.Stderr, "Unknown encoder libx264")
	assert.Contains(t, err.Error(), "exit code 3")
}

func TestExecRunnerTimeout(t *testing.T) {
	requireSh(t)
	r := NewExecRunner("sh")

	start := time.Now()
	_, err := r.Run(context.Background(), Command{Name: "test", Args: []string{"-c", "exec sleep 5"}, Timeout: 100 * time.Millisecond})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrTimeout))
	assert.Less(t, time.Since(start), 4*time.Second)
}

func TestExecRunnerBinaryNotFound(t *testing.T) {
	r := NewExecRunner("definitely-not-a-real-transcoder")

	_, err := r.Run(context.Background(), Command{Name: "test", Args: []string{"-version"}})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrBinaryNotFound))
}

func TestExecRunnerDoesNotReadStdin(t *testing.T) {
	requireSh(t)
	r := NewExecRunner("sh")

	// With stdin attached to the null device, read hits EOF immediately.
	out, err := r.Run(context.Background(), Command{Name: "test", Args: []string{"-c", "read line || echo eof"}, Timeout: 2 * time.Second})
	require.NoError(t, err)
	assert.Equal(t, "eof\n", out.Stdout)
}
