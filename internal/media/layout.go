package media

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

const (
	VideosDir     = "videos"
	ThumbnailsDir = "thumbnails"
	PlaylistName  = "index.m3u8"
)

var (
	ErrOutsideRoot = errors.New("path escapes media root")
	ErrEmptyName   = errors.New("empty file name")

	segmentName = regexp.MustCompile(`^\d+\.ts$`)
)

// Layout derives every on-disk path of the output tree from a media root.
// It never checks for collisions: two sources sharing a base name share
// their derived directory.
type Layout struct {
	Root string
}

func NewLayout(root string) Layout {
	return Layout{Root: filepath.Clean(root)}
}

// BaseFilename strips the directory and the extension: videos/movie.mp4 -> movie.
func BaseFilename(sourcePath string) string {
	name := filepath.Base(filepath.FromSlash(sourcePath))
	return strings.TrimSuffix(name, filepath.Ext(name))
}

// RenditionIntermediatePath is <mainDir>/<base>_<suffix>.mp4.
func RenditionIntermediatePath(mainDir, base, suffix string) string {
	return filepath.Join(mainDir, fmt.Sprintf("%s_%s.mp4", base, suffix))
}

// RenditionHLSDir is <mainDir>/<suffix>.
func RenditionHLSDir(mainDir, suffix string) string {
	return filepath.Join(mainDir, suffix)
}

// EnsureDir creates path and its parents; an existing directory is fine.
func EnsureDir(path string) error {
	if err := os.MkdirAll(path, 0o755); err != nil {
		return fmt.Errorf("create directory %s: %w", path, err)
	}
	return nil
}

// ValidSegmentName reports whether name looks like "000.ts".
func ValidSegmentName(name string) bool {
	return segmentName.MatchString(name)
}

// SourcePath resolves a root-relative source path to an absolute one.
func (l Layout) SourcePath(rel string) (string, error) {
	if strings.TrimSpace(rel) == "" {
		return "", ErrEmptyName
	}
	abs := filepath.Join(l.Root, filepath.FromSlash(rel))
	if !l.contains(abs) {
		return "", fmt.Errorf("%s: %w", rel, ErrOutsideRoot)
	}
	return abs, nil
}

// MainDir is <root>/videos/<base>.
func (l Layout) MainDir(base string) string {
	return filepath.Join(l.Root, VideosDir, base)
}

func (l Layout) VideosDir() string {
	return filepath.Join(l.Root, VideosDir)
}

func (l Layout) ThumbnailDir() string {
	return filepath.Join(l.Root, ThumbnailsDir)
}

// ThumbnailPath is <root>/thumbnails/<base>.jpg.
func (l Layout) ThumbnailPath(base string) string {
	return filepath.Join(l.ThumbnailDir(), base+".jpg")
}

func (l Layout) PlaylistPath(base, label string) string {
	return filepath.Join(RenditionHLSDir(l.MainDir(base), label), PlaylistName)
}

// SegmentPath validates name before joining so a crafted segment can never
// point outside the rendition directory.
func (l Layout) SegmentPath(base, label, name string) (string, error) {
	if !ValidSegmentName(name) {
		return "", fmt.Errorf("invalid segment name %q", name)
	}
	return filepath.Join(RenditionHLSDir(l.MainDir(base), label), name), nil
}

// Rel returns abs relative to the media root, slash separated, as stored on
// the record.
func (l Layout) Rel(abs string) (string, error) {
	rel, err := filepath.Rel(l.Root, abs)
	if err != nil {
		return "", err
	}
	if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%s: %w", abs, ErrOutsideRoot)
	}
	return filepath.ToSlash(rel), nil
}

func (l Layout) contains(abs string) bool {
	_, err := l.Rel(abs)
	return err == nil
}
