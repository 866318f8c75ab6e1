// Package transcode turns an uploaded source into a thumbnail and a set of
// HLS renditions.
package transcode

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/rs/zerolog"

	"github.com/videoflix/backend/internal/config"
	"github.com/videoflix/backend/internal/ffmpeg"
	"github.com/videoflix/backend/internal/media"
	"github.com/videoflix/backend/internal/metrics"
	"github.com/videoflix/backend/internal/model"
	"github.com/videoflix/backend/internal/store"
)

// Stage names reported to observers.
const (
	StageThumbnail = "thumbnail"
	StageEncode    = "encode"
	StageSegment   = "segment"
	StageCleanup   = "cleanup"
)

// VideoRepository is the slice of the store the tasks need. Writes are
// field scoped: the thumbnail task only touches the thumbnail path and the
// HLS task only touches the status.
type VideoRepository interface {
	Get(ctx context.Context, id int64) (*model.Video, error)
	SetThumbnailPath(ctx context.Context, id int64, rel string) error
	SetStatus(ctx context.Context, id int64, status model.VideoStatus) error
}

// Locker guards against two HLS runs for the same video.
type Locker interface {
	Acquire(ctx context.Context, key string) (release func(), acquired bool, err error)
}

// Event is one progress notification.
type Event struct {
	VideoID    int64
	Stage      string
	Resolution string
	Progress   int
	Status     model.VideoStatus
}

// Observer receives progress of running tasks.
type Observer interface {
	Progress(e Event)
	Completed(videoID int64, renditions []string)
	Failed(videoID int64, kind ErrorKind, err error)
}

// Publisher mirrors a finished rendition directory somewhere else.
type Publisher interface {
	PublishRendition(ctx context.Context, base, label, dir string) error
}

// Option configures optional collaborators of a Pipeline.
type Option func(*Pipeline)

func WithLocker(l Locker) Option {
	return func(p *Pipeline) { p.locker = l }
}

func WithObserver(o Observer) Option {
	return func(p *Pipeline) { p.observer = o }
}

func WithPublisher(pub Publisher) Option {
	return func(p *Pipeline) { p.publisher = pub }
}

// Pipeline runs the conversion tasks for a single media root.
type Pipeline struct {
	videos    VideoRepository
	runner    ffmpeg.Runner
	layout    media.Layout
	cfg       config.FFmpegConfig
	locker    Locker
	observer  Observer
	publisher Publisher
	log       zerolog.Logger
}

func NewPipeline(videos VideoRepository, runner ffmpeg.Runner, layout media.Layout, cfg *config.FFmpegConfig, log zerolog.Logger, opts ...Option) *Pipeline {
	p := &Pipeline{
		videos: videos,
		runner: runner,
		layout: layout,
		cfg:    *cfg,
		log:    log.With().Str("component", "transcode").Logger(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// GenerateThumbnail grabs one frame of the source and records its path.
// A video that already has a thumbnail is skipped without running ffmpeg.
func (p *Pipeline) GenerateThumbnail(ctx context.Context, id int64) Result {
	log := p.log.With().Int64("video_id", id).Str("task", StageThumbnail).Logger()

	v, err := p.videos.Get(ctx, id)
	if err != nil {
		log.Warn().Err(err).Msg("cannot load video")
		return failed(kindOf(err), err)
	}
	if v.HasThumbnail() {
		log.Debug().Str("thumbnail", v.ThumbnailPath).Msg("thumbnail already present")
		return skipped("thumbnail already present")
	}

	source, res, ok := p.resolveSource(v)
	if !ok {
		log.Error().Err(res.Err).Msg("source unavailable")
		return res
	}

	if err := media.EnsureDir(p.layout.ThumbnailDir()); err != nil {
		log.Error().Err(err).Msg("cannot create thumbnail directory")
		return failed(KindFilesystem, err)
	}

	target := p.layout.ThumbnailPath(media.BaseFilename(v.SourcePath))
	if _, err := p.runner.Run(ctx, ffmpeg.ThumbnailCommand(source, target, p.cfg.ThumbnailTimeout)); err != nil {
		log.Error().Err(err).Msg("thumbnail extraction failed")
		p.CleanupFiles([]string{target})
		return failed(kindOf(err), err)
	}

	rel, err := p.layout.Rel(target)
	if err != nil {
		return failed(KindFilesystem, err)
	}
	if err := p.videos.SetThumbnailPath(ctx, id, rel); err != nil {
		log.Error().Err(err).Msg("cannot store thumbnail path")
		// the jpg is unreferenced, e.g. the video was deleted meanwhile
		p.CleanupFiles([]string{target})
		return failed(kindOf(err), err)
	}

	p.progress(Event{VideoID: id, Stage: StageThumbnail, Progress: 100, Status: v.Status})
	log.Info().Str("thumbnail", rel).Msg("thumbnail generated")
	return succeeded()
}

// ConvertToHLS encodes every rendition, then segments each intermediate into
// an HLS playlist, then removes the intermediates and the source.
//
// Any stage-one failure aborts the run: no rendition is segmented and only
// the intermediates are removed, so the source survives for a later retry.
// Stage-two failures only cost the affected rendition.
func (p *Pipeline) ConvertToHLS(ctx context.Context, id int64) Result {
	log := p.log.With().Int64("video_id", id).Str("task", "hls").Logger()

	v, err := p.videos.Get(ctx, id)
	if err != nil {
		log.Warn().Err(err).Msg("cannot load video")
		return failed(kindOf(err), err)
	}
	if v.Status == model.VideoStatusReady {
		return skipped("already converted")
	}

	if p.locker != nil {
		release, acquired, err := p.locker.Acquire(ctx, "video:hls:"+strconv.FormatInt(id, 10))
		switch {
		case err != nil:
			log.Warn().Err(err).Msg("lock unavailable, converting without duplicate guard")
		case !acquired:
			log.Info().Msg("conversion already running elsewhere")
			return skipped("conversion already running")
		default:
			defer release()
		}
	}

	source, res, ok := p.resolveSource(v)
	if !ok {
		log.Error().Err(res.Err).Msg("source unavailable")
		p.finishFailed(ctx, id, res)
		return res
	}

	p.setStatus(ctx, id, model.VideoStatusTranscoding)

	base := media.BaseFilename(v.SourcePath)
	mainDir := p.layout.MainDir(base)
	if err := media.EnsureDir(mainDir); err != nil {
		log.Error().Err(err).Msg("cannot create output directory")
		res := failed(KindFilesystem, err)
		p.finishFailed(ctx, id, res)
		return res
	}

	steps := 2 * len(media.Renditions)
	done := 0

	intermediates := make([]string, 0, len(media.Renditions))
	for _, r := range media.Renditions {
		target := media.RenditionIntermediatePath(mainDir, base, r.Label)
		cmd := ffmpeg.EncodeCommand(source, target, r, p.cfg.EncodeTimeout)
		if _, err := p.runner.Run(ctx, cmd); err != nil {
			log.Error().Err(err).Str("resolution", r.Label).Msg("encode failed, aborting conversion")
			metrics.RenditionsTotal.WithLabelValues(r.Label, "encode_failed").Inc()

			// the failing output may be partial
			res := failed(kindOf(err), fmt.Errorf("encode %s: %w", r.Label, err))
			res.CleanedUp = p.CleanupFiles(append(intermediates, target))
			if p.discardIfDeleted(ctx, id, mainDir) {
				return p.deleted(id, res.CleanedUp)
			}
			p.finishFailed(ctx, id, res)
			return res
		}
		intermediates = append(intermediates, target)
		done++
		p.progress(Event{VideoID: id, Stage: StageEncode, Resolution: r.Label, Progress: done * 100 / steps, Status: model.VideoStatusTranscoding})
	}

	if p.discardIfDeleted(ctx, id, mainDir) {
		return p.deleted(id, p.CleanupFiles(append(intermediates, source)))
	}

	var (
		produced []string
		lastErr  error
	)
	for i, intermediate := range intermediates {
		r := media.Renditions[i]
		if err := p.segment(ctx, base, mainDir, intermediate, r); err != nil {
			log.Error().Err(err).Str("resolution", r.Label).Msg("segmenting failed")
			metrics.RenditionsTotal.WithLabelValues(r.Label, "segment_failed").Inc()
			lastErr = err
			if errors.Is(err, ffmpeg.ErrBinaryNotFound) {
				break
			}
			continue
		}
		metrics.RenditionsTotal.WithLabelValues(r.Label, "ready").Inc()
		produced = append(produced, r.Label)
		done++
		p.progress(Event{VideoID: id, Stage: StageSegment, Resolution: r.Label, Progress: done * 100 / steps, Status: model.VideoStatusTranscoding})
	}

	cleaned := p.CleanupFiles(append(intermediates, source))

	if p.discardIfDeleted(ctx, id, mainDir) {
		return p.deleted(id, cleaned)
	}

	if len(produced) == 0 {
		res := failed(kindOf(lastErr), fmt.Errorf("no rendition produced: %w", lastErr))
		res.CleanedUp = cleaned
		p.finishFailed(ctx, id, res)
		return res
	}

	p.setStatus(ctx, id, model.VideoStatusReady)
	if p.observer != nil {
		p.observer.Completed(id, produced)
	}
	if len(produced) < len(intermediates) {
		log.Warn().Strs("renditions", produced).Msg("conversion finished with missing renditions")
	} else {
		log.Info().Strs("renditions", produced).Msg("conversion finished")
	}

	res = succeeded()
	res.Renditions = produced
	res.CleanedUp = cleaned
	return res
}

func (p *Pipeline) segment(ctx context.Context, base, mainDir, intermediate string, r media.Rendition) error {
	hlsDir := media.RenditionHLSDir(mainDir, r.Label)
	if err := media.EnsureDir(hlsDir); err != nil {
		return err
	}

	cmd := ffmpeg.SegmentCommand(intermediate, hlsDir, r.Label, p.cfg.SegmentSeconds, p.cfg.SegmentTimeout)
	if _, err := p.runner.Run(ctx, cmd); err != nil {
		// a half written playlist must not be served
		if rmErr := os.RemoveAll(hlsDir); rmErr != nil {
			p.log.Warn().Err(rmErr).Str("dir", hlsDir).Msg("cannot remove partial rendition")
		}
		return err
	}

	if p.publisher != nil {
		if err := p.publisher.PublishRendition(ctx, base, r.Label, hlsDir); err != nil {
			p.log.Warn().Err(err).Str("resolution", r.Label).Msg("publishing rendition failed")
		}
	}
	return nil
}

// CleanupFiles removes every path, best effort. Missing files are not an
// error. It returns the paths that were actually removed.
func (p *Pipeline) CleanupFiles(paths []string) []string {
	removed := make([]string, 0, len(paths))
	for _, path := range paths {
		err := os.Remove(path)
		switch {
		case err == nil:
			removed = append(removed, path)
		case errors.Is(err, os.ErrNotExist):
		default:
			metrics.CleanupErrors.Inc()
			p.log.Warn().Err(err).Str("path", path).Msg("cleanup failed")
		}
	}
	return removed
}

func (p *Pipeline) resolveSource(v *model.Video) (string, Result, bool) {
	source, err := p.layout.SourcePath(v.SourcePath)
	if err != nil {
		return "", failed(KindSourceMissing, err), false
	}
	if _, err := os.Stat(source); err != nil {
		kind := KindFilesystem
		if errors.Is(err, os.ErrNotExist) {
			kind = KindSourceMissing
		}
		return "", failed(kind, fmt.Errorf("source %s: %w", v.SourcePath, err)), false
	}
	return source, Result{}, true
}

// discardIfDeleted removes the output tree of a video whose record was
// deleted while the conversion was running. Delete only removes what exists
// at that moment, so a running task would otherwise leave renditions behind.
func (p *Pipeline) discardIfDeleted(ctx context.Context, id int64, mainDir string) bool {
	if _, err := p.videos.Get(ctx, id); !errors.Is(err, store.ErrVideoNotFound) {
		return false
	}
	if err := os.RemoveAll(mainDir); err != nil {
		metrics.CleanupErrors.Inc()
		p.log.Warn().Err(err).Str("dir", mainDir).Msg("cannot remove output of deleted video")
	}
	p.log.Info().Int64("video_id", id).Msg("video deleted during conversion, output discarded")
	return true
}

func (p *Pipeline) deleted(id int64, cleaned []string) Result {
	res := failed(KindRecordNotFound, fmt.Errorf("deleted during conversion: %w", store.ErrVideoNotFound))
	res.CleanedUp = cleaned
	if p.observer != nil {
		p.observer.Failed(id, res.Kind, res.Err)
	}
	return res
}

func (p *Pipeline) finishFailed(ctx context.Context, id int64, res Result) {
	p.setStatus(ctx, id, model.VideoStatusFailed)
	if p.observer != nil {
		p.observer.Failed(id, res.Kind, res.Err)
	}
}

func (p *Pipeline) setStatus(ctx context.Context, id int64, status model.VideoStatus) {
	if err := p.videos.SetStatus(ctx, id, status); err != nil {
		p.log.Warn().Err(err).Int64("video_id", id).Str("status", string(status)).Msg("cannot update status")
	}
}

func (p *Pipeline) progress(e Event) {
	if p.observer != nil {
		p.observer.Progress(e)
	}
}
