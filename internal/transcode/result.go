package transcode

import (
	"errors"
	"io/fs"

	"github.com/videoflix/backend/internal/ffmpeg"
	"github.com/videoflix/backend/internal/store"
)

// Outcome is the coarse result of a task run.
type Outcome int

const (
	Succeeded Outcome = iota
	Skipped
	Failed
)

func (o Outcome) String() string {
	switch o {
	case Succeeded:
		return "succeeded"
	case Skipped:
		return "skipped"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// ErrorKind classifies why a task failed.
type ErrorKind string

const (
	KindNone           ErrorKind = ""
	KindRecordNotFound ErrorKind = "record_not_found"
	KindSourceMissing  ErrorKind = "source_missing"
	KindBinaryNotFound ErrorKind = "binary_not_found"
	KindNonZeroExit    ErrorKind = "non_zero_exit"
	KindTimeout        ErrorKind = "timeout"
	KindFilesystem     ErrorKind = "filesystem"
	KindStore          ErrorKind = "store"
)

// Retryable reports whether running the task again can plausibly succeed.
// A missing record, source or binary stays missing.
func (k ErrorKind) Retryable() bool {
	switch k {
	case KindNonZeroExit, KindTimeout, KindFilesystem, KindStore:
		return true
	default:
		return false
	}
}

// Result is what every task returns instead of swallowing its errors.
type Result struct {
	Outcome Outcome
	Kind    ErrorKind
	Err     error
	// Reason explains a Skipped outcome.
	Reason string
	// Renditions lists the labels that ended with a playable playlist.
	Renditions []string
	// CleanedUp lists the files actually removed by the cleanup step.
	CleanedUp []string
}

func succeeded() Result {
	return Result{Outcome: Succeeded}
}

func skipped(reason string) Result {
	return Result{Outcome: Skipped, Reason: reason}
}

func failed(kind ErrorKind, err error) Result {
	return Result{Outcome: Failed, Kind: kind, Err: err}
}

// kindOf maps a collaborator error onto the task taxonomy.
func kindOf(err error) ErrorKind {
	switch {
	case err == nil:
		return KindNone
	case errors.Is(err, ffmpeg.ErrBinaryNotFound):
		return KindBinaryNotFound
	case errors.Is(err, ffmpeg.ErrTimeout):
		return KindTimeout
	case errors.Is(err, ffmpeg.ErrNonZeroExit):
		return KindNonZeroExit
	case errors.Is(err, store.ErrVideoNotFound):
		return KindRecordNotFound
	case errors.Is(err, fs.ErrNotExist), errors.Is(err, fs.ErrPermission):
		return KindFilesystem
	default:
		return KindStore
	}
}
