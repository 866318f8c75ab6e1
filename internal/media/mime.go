package media

import (
	"path/filepath"
	"strings"
)

const (
	PlaylistContentType = "application/vnd.apple.mpegurl"
	SegmentContentType  = "video/MP2T"
)

// ContentType returns the MIME type served for a file of the output tree.
func ContentType(name string) string {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".m3u8":
		return PlaylistContentType
	case ".ts":
		return SegmentContentType
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".mp4":
		return "video/mp4"
	default:
		return "application/octet-stream"
	}
}
