package ffmpeg

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrBinaryNotFound means the transcoder is not installed on this worker.
	ErrBinaryNotFound = errors.New("ffmpeg binary not found")
	// ErrNonZeroExit means the transcoder ran and reported a failure.
	ErrNonZeroExit = errors.New("ffmpeg exited with non-zero status")
	// ErrTimeout means the invocation exceeded its timeout and was killed.
	ErrTimeout = errors.New("ffmpeg timed out")
)

// maxStderr bounds how much stderr is kept on an error.
const maxStderr = 4096

// CommandError describes one failed invocation. Use errors.Is with the
// sentinel kinds above to classify it.
type CommandError struct {
	Kind     error
	ExitCode int
	Stderr   string
	Args     []string
	Err      error
}

func (e *CommandError) Error() string {
	var b strings.Builder
	b.WriteString(e.Kind.Error())
	if e.Kind == ErrNonZeroExit {
		fmt.Fprintf(&b, " (exit code %d)", e.ExitCode)
	}
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	if tail := lastLine(e.Stderr); tail != "" {
		fmt.Fprintf(&b, ": %s", tail)
	}
	return b.String()
}

func (e *CommandError) Is(target error) bool {
	return target == e.Kind
}

func (e *CommandError) Unwrap() error {
	return e.Err
}

func truncate(s string) string {
	if len(s) <= maxStderr {
		return s
	}
	return s[len(s)-maxStderr:]
}

func lastLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.LastIndexByte(s, '\n'); i >= 0 {
		return strings.TrimSpace(s[i+1:])
	}
	return s
}
