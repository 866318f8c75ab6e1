package queue

import (
	"context"
	"errors"

	"github.com/rs/zerolog"
)

// Dispatcher turns catalog events into jobs. It is called explicitly by the
// code that creates a video; updates never dispatch.
type Dispatcher struct {
	submitter Submitter
	log       zerolog.Logger
}

func NewDispatcher(submitter Submitter, log zerolog.Logger) *Dispatcher {
	return &Dispatcher{
		submitter: submitter,
		log:       log.With().Str("component", "dispatcher").Logger(),
	}
}

// VideoCreated submits the thumbnail and HLS jobs. The jobs are independent:
// a failure to submit one does not prevent submitting the other.
func (d *Dispatcher) VideoCreated(ctx context.Context, videoID int64) error {
	var errs []error
	for _, taskType := range TaskTypes {
		if err := d.submitter.Submit(ctx, taskType, videoID); err != nil {
			d.log.Error().Err(err).Int64("video_id", videoID).Str("task", taskType).Msg("submit failed")
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
