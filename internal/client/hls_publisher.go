package client

import (
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"sort"

	"github.com/rs/zerolog"

	"github.com/videoflix/backend/internal/media"
)

// HLSPublisher mirrors finished renditions to object storage under
// <prefix>/<base>/<label>/.
type HLSPublisher struct {
	storage StorageClient
	prefix  string
	log     zerolog.Logger
}

func NewHLSPublisher(storage StorageClient, prefix string, log zerolog.Logger) *HLSPublisher {
	return &HLSPublisher{
		storage: storage,
		prefix:  prefix,
		log:     log.With().Str("component", "publisher").Logger(),
	}
}

// Key is the object key of one file of a rendition.
func (p *HLSPublisher) Key(base, label, name string) string {
	return path.Join(p.prefix, base, label, name)
}

// PublishRendition uploads the segments first and the playlist last, so a
// client that can read the playlist can read every segment it lists.
func (p *HLSPublisher) PublishRendition(ctx context.Context, base, label, dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("read rendition %s: %w", label, err)
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if e.Name() != media.PlaylistName && !media.ValidSegmentName(e.Name()) {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Slice(names, func(i, j int) bool {
		if names[i] == media.PlaylistName {
			return false
		}
		if names[j] == media.PlaylistName {
			return true
		}
		return names[i] < names[j]
	})

	var playlistURL string
	for _, name := range names {
		url, err := p.upload(ctx, filepath.Join(dir, name), p.Key(base, label, name))
		if err != nil {
			return err
		}
		if name == media.PlaylistName {
			playlistURL = url
		}
	}

	p.log.Info().Str("base", base).Str("resolution", label).Int("files", len(names)).Str("url", playlistURL).Msg("rendition published")
	return nil
}

func (p *HLSPublisher) upload(ctx context.Context, file, key string) (string, error) {
	f, err := os.Open(file)
	if err != nil {
		return "", err
	}
	defer f.Close()

	return p.storage.Upload(ctx, key, f, media.ContentType(file))
}

// RemoveVideo deletes every published rendition of base.
func (p *HLSPublisher) RemoveVideo(ctx context.Context, base string) error {
	n, err := p.storage.DeletePrefix(ctx, path.Join(p.prefix, base)+"/")
	if err != nil {
		return err
	}
	p.log.Debug().Str("base", base).Int("objects", n).Msg("published renditions removed")
	return nil
}
