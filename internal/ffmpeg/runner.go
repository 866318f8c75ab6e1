package ffmpeg

import (
	"bytes"
	"context"
	"errors"
	"os/exec"
	"time"

	"github.com/videoflix/backend/internal/metrics"
)

// Command is a single transcoder invocation. Args never include the binary
// and are passed to the process as a vector, never through a shell.
type Command struct {
	Name    string // short label for logs and metrics, e.g. "encode"
	Args    []string
	Timeout time.Duration
}

// Output holds what a successful invocation printed.
type Output struct {
	Stdout   string
	Stderr   string
	Duration time.Duration
}

// waitDelay bounds how long Wait keeps draining pipes after a kill.
const waitDelay = 5 * time.Second

// Runner executes transcoder commands.
type Runner interface {
	Run(ctx context.Context, cmd Command) (*Output, error)
}

// ExecRunner runs commands as subprocesses of Binary, resolved via PATH.
type ExecRunner struct {
	Binary string
}

func NewExecRunner(binary string) *ExecRunner {
	if binary == "" {
		binary = "ffmpeg"
	}
	return &ExecRunner{Binary: binary}
}

// Run blocks until the process exits or cmd.Timeout elapses. On failure the
// returned error is a *CommandError and any output file named in the
// arguments must be treated as corrupt.
func (r *ExecRunner) Run(ctx context.Context, cmd Command) (*Output, error) {
	path, err := exec.LookPath(r.Binary)
	if err != nil {
		metrics.CommandsTotal.WithLabelValues(cmd.Name, "binary_not_found").Inc()
		return nil, &CommandError{Kind: ErrBinaryNotFound, Args: cmd.Args, Err: err}
	}

	if cmd.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cmd.Timeout)
		defer cancel()
	}

	proc := exec.CommandContext(ctx, path, cmd.Args...)
	proc.Stdin = nil
	proc.WaitDelay = waitDelay

	var stdout, stderr bytes.Buffer
	proc.Stdout = &stdout
	proc.Stderr = &stderr

	start := time.Now()
	runErr := proc.Run()
	elapsed := time.Since(start)
	metrics.CommandDuration.WithLabelValues(cmd.Name).Observe(elapsed.Seconds())

	if runErr == nil {
		metrics.CommandsTotal.WithLabelValues(cmd.Name, "ok").Inc()
		return &Output{Stdout: stdout.String(), Stderr: stderr.String(), Duration: elapsed}, nil
	}

	cerr := &CommandError{Args: cmd.Args, Stderr: truncate(stderr.String()), ExitCode: -1}
	var exitErr *exec.ExitError
	switch {
	case errors.Is(ctx.Err(), context.DeadlineExceeded):
		cerr.Kind = ErrTimeout
		cerr.Err = ctx.Err()
		metrics.CommandsTotal.WithLabelValues(cmd.Name, "timeout").Inc()
	case errors.As(runErr, &exitErr):
		cerr.Kind = ErrNonZeroExit
		cerr.ExitCode = exitErr.ExitCode()
		metrics.CommandsTotal.WithLabelValues(cmd.Name, "non_zero_exit").Inc()
	case errors.Is(runErr, exec.ErrNotFound):
		cerr.Kind = ErrBinaryNotFound
		cerr.Err = runErr
		metrics.CommandsTotal.WithLabelValues(cmd.Name, "binary_not_found").Inc()
	default:
		// The process could not be started or was cancelled by the caller.
		cerr.Kind = ErrNonZeroExit
		cerr.Err = runErr
		metrics.CommandsTotal.WithLabelValues(cmd.Name, "non_zero_exit").Inc()
	}
	return nil, cerr
}
