package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/videoflix/backend/internal/media"
	"github.com/videoflix/backend/internal/model"
	"github.com/videoflix/backend/internal/store"
)

var (
	ErrInvalidUpload     = errors.New("invalid upload")
	ErrUnknownResolution = errors.New("unknown resolution")
	ErrInvalidSegment    = errors.New("invalid segment name")
	ErrNotAvailable      = errors.New("not available yet")
	ErrAlreadyConverted  = errors.New("video already converted")
	ErrSourceGone        = errors.New("source file no longer exists")
)

// VideoStore is the persistence the catalog needs.
type VideoStore interface {
	Create(ctx context.Context, v *model.Video) error
	Get(ctx context.Context, id int64) (*model.Video, error)
	List(ctx context.Context) ([]model.Video, error)
	Delete(ctx context.Context, id int64) (*model.Video, error)
}

// Dispatcher is notified once per created video.
type Dispatcher interface {
	VideoCreated(ctx context.Context, videoID int64) error
}

// RemoteStore holds published copies of the renditions.
type RemoteStore interface {
	RemoveVideo(ctx context.Context, base string) error
}

// VideoService owns the catalog: uploads, lookups, deletion and the files
// that belong to each video.
type VideoService struct {
	store      VideoStore
	dispatcher Dispatcher
	layout     media.Layout
	remote     RemoteStore
	log        zerolog.Logger
}

// NewVideoService creates the service. remote may be nil.
func NewVideoService(store VideoStore, dispatcher Dispatcher, layout media.Layout, remote RemoteStore, log zerolog.Logger) *VideoService {
	return &VideoService{
		store:      store,
		dispatcher: dispatcher,
		layout:     layout,
		remote:     remote,
		log:        log.With().Str("component", "video_service").Logger(),
	}
}

// Create stores the uploaded file under videos/, inserts the record and
// dispatches its conversion jobs. A dispatch failure leaves the record
// pending; it is not reported to the uploader.
func (s *VideoService) Create(ctx context.Context, req *model.CreateVideoRequest, filename string, body io.Reader) (*model.Video, error) {
	abs, err := s.saveUpload(filename, body)
	if err != nil {
		return nil, err
	}

	rel, err := s.layout.Rel(abs)
	if err != nil {
		_ = os.Remove(abs)
		return nil, err
	}

	// ffmpeg decides what it can read; the sniffed type is only logged
	detected := "unknown"
	if mt, err := mimetype.DetectFile(abs); err == nil {
		detected = mt.String()
		if !strings.HasPrefix(detected, "video/") {
			s.log.Warn().Str("source", rel).Str("mime", detected).Msg("upload does not look like a video")
		}
	}

	v := &model.Video{
		Title:       req.Title,
		Description: req.Description,
		Category:    req.Category,
		SourcePath:  rel,
		Status:      model.VideoStatusPending,
	}
	if err := s.store.Create(ctx, v); err != nil {
		_ = os.Remove(abs)
		return nil, fmt.Errorf("failed to save video: %w", err)
	}

	if err := s.dispatcher.VideoCreated(ctx, v.ID); err != nil {
		s.log.Error().Err(err).Int64("video_id", v.ID).Msg("conversion not dispatched, video stays pending")
	}

	s.log.Info().Int64("video_id", v.ID).Str("source", rel).Str("mime", detected).Msg("video created")
	return v, nil
}

// saveUpload writes body to videos/<name>. An existing file with the same
// name gets a random suffix instead of being overwritten.
func (s *VideoService) saveUpload(filename string, body io.Reader) (string, error) {
	name := filepath.Base(filepath.Clean("/" + filepath.FromSlash(filename)))
	if name == "" || name == "/" || name == "." || strings.HasPrefix(name, ".") {
		return "", fmt.Errorf("%w: bad file name %q", ErrInvalidUpload, filename)
	}

	dir := s.layout.VideosDir()
	if err := media.EnsureDir(dir); err != nil {
		return "", err
	}

	ext := filepath.Ext(name)
	stem := strings.TrimSuffix(name, ext)

	candidate := name
	for attempt := 0; attempt < 5; attempt++ {
		target := filepath.Join(dir, candidate)
		f, err := os.OpenFile(target, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
		if errors.Is(err, os.ErrExist) {
			candidate = fmt.Sprintf("%s_%s%s", stem, uuid.NewString()[:7], ext)
			continue
		}
		if err != nil {
			return "", fmt.Errorf("failed to store upload: %w", err)
		}

		if _, err := io.Copy(f, body); err != nil {
			f.Close()
			_ = os.Remove(target)
			return "", fmt.Errorf("failed to store upload: %w", err)
		}
		if err := f.Close(); err != nil {
			_ = os.Remove(target)
			return "", fmt.Errorf("failed to store upload: %w", err)
		}
		return target, nil
	}
	return "", fmt.Errorf("failed to store upload: no free name for %s", name)
}

func (s *VideoService) List(ctx context.Context) ([]model.Video, error) {
	return s.store.List(ctx)
}

func (s *VideoService) Get(ctx context.Context, id int64) (*model.Video, error) {
	return s.store.Get(ctx, id)
}

// Delete removes the record, then every file derived from it.
func (s *VideoService) Delete(ctx context.Context, id int64) error {
	v, err := s.store.Delete(ctx, id)
	if err != nil {
		return err
	}

	if err := s.RemoveVideoFiles(v); err != nil {
		s.log.Warn().Err(err).Int64("video_id", id).Msg("some files were not removed")
	}
	if s.remote != nil {
		if err := s.remote.RemoveVideo(ctx, media.BaseFilename(v.SourcePath)); err != nil {
			s.log.Warn().Err(err).Int64("video_id", id).Msg("published renditions not removed")
		}
	}

	s.log.Info().Int64("video_id", id).Msg("video deleted")
	return nil
}

// RemoveVideoFiles deletes the thumbnail, the source and the whole output
// directory of v. Each deletion is attempted; missing files are ignored.
func (s *VideoService) RemoveVideoFiles(v *model.Video) error {
	var errs []error

	if v.ThumbnailPath != "" {
		if p, err := s.layout.SourcePath(v.ThumbnailPath); err == nil {
			errs = append(errs, removeFile(p))
		} else {
			errs = append(errs, err)
		}
	}

	if v.SourcePath != "" {
		if p, err := s.layout.SourcePath(v.SourcePath); err == nil {
			errs = append(errs, removeFile(p))
		} else {
			errs = append(errs, err)
		}

		if err := os.RemoveAll(s.layout.MainDir(media.BaseFilename(v.SourcePath))); err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}

func removeFile(path string) error {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

// Reprocess dispatches the conversion jobs of an existing video again.
func (s *VideoService) Reprocess(ctx context.Context, id int64) error {
	v, err := s.store.Get(ctx, id)
	if err != nil {
		return err
	}
	if v.Status == model.VideoStatusReady {
		return ErrAlreadyConverted
	}

	source, err := s.layout.SourcePath(v.SourcePath)
	if err != nil {
		return ErrSourceGone
	}
	if _, err := os.Stat(source); err != nil {
		return ErrSourceGone
	}

	return s.dispatcher.VideoCreated(ctx, id)
}

// Renditions lists the labels of v that currently have a playlist on disk.
func (s *VideoService) Renditions(v *model.Video) []string {
	base := media.BaseFilename(v.SourcePath)
	labels := make([]string, 0, len(media.Renditions))
	for _, r := range media.Renditions {
		if _, err := os.Stat(s.layout.PlaylistPath(base, r.Label)); err == nil {
			labels = append(labels, r.Label)
		}
	}
	return labels
}

// PlaylistFile resolves the playlist of one rendition of a video.
func (s *VideoService) PlaylistFile(ctx context.Context, id int64, resolution string) (string, error) {
	if _, ok := media.LookupRendition(resolution); !ok {
		return "", ErrUnknownResolution
	}

	v, err := s.store.Get(ctx, id)
	if err != nil {
		return "", err
	}

	return existing(s.layout.PlaylistPath(media.BaseFilename(v.SourcePath), resolution))
}

// SegmentFile resolves one segment. The name is validated before the store
// or the filesystem is touched.
func (s *VideoService) SegmentFile(ctx context.Context, id int64, resolution, segment string) (string, error) {
	if !media.ValidSegmentName(segment) {
		return "", ErrInvalidSegment
	}
	if _, ok := media.LookupRendition(resolution); !ok {
		return "", ErrUnknownResolution
	}

	v, err := s.store.Get(ctx, id)
	if err != nil {
		return "", err
	}

	path, err := s.layout.SegmentPath(media.BaseFilename(v.SourcePath), resolution, segment)
	if err != nil {
		return "", ErrInvalidSegment
	}
	return existing(path)
}

// ThumbnailURL is the public URL of the thumbnail, empty when none exists.
func ThumbnailURL(mediaURL string, v *model.Video) string {
	if !v.HasThumbnail() {
		return ""
	}
	return strings.TrimSuffix(mediaURL, "/") + "/" + v.ThumbnailPath
}

func existing(path string) (string, error) {
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return "", ErrNotAvailable
	}
	return path, nil
}

// IsNotFound reports whether err means the video does not exist.
func IsNotFound(err error) bool {
	return errors.Is(err, store.ErrVideoNotFound)
}
