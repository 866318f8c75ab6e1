package ffmpeg

import (
	"path/filepath"
	"strconv"
	"time"

	"github.com/videoflix/backend/internal/media"
)

// Encoding profile shared by every stage-one rendition.
const (
	VideoCodec = "libx264"
	AudioCodec = "aac"
	CRF        = 23

	// ThumbnailOffset is where the preview frame is taken.
	ThumbnailOffset = "00:00:01.000"

	segmentPattern = "%03d.ts"
)

// common flags: never read stdin, always overwrite a stale output.
func baseArgs(input string) []string {
	return []string{"-nostdin", "-y", "-i", input}
}

// ThumbnailCommand extracts exactly one frame at ThumbnailOffset.
func ThumbnailCommand(source, target string, timeout time.Duration) Command {
	args := append(baseArgs(source),
		"-ss", ThumbnailOffset,
		"-vframes", "1",
		target,
	)
	return Command{Name: "thumbnail", Args: args, Timeout: timeout}
}

// EncodeCommand re-encodes source into r's dimensions.
func EncodeCommand(source, target string, r media.Rendition, timeout time.Duration) Command {
	args := append(baseArgs(source),
		"-s", r.Size(),
		"-c:v", VideoCodec,
		"-crf", strconv.Itoa(CRF),
		"-c:a", AudioCodec,
		"-strict", "-2",
		target,
	)
	return Command{Name: "encode_" + r.Label, Args: args, Timeout: timeout}
}

// SegmentCommand repackages an intermediate into hlsDir without re-encoding:
// hlsDir/index.m3u8 plus hlsDir/000.ts, 001.ts, ...
func SegmentCommand(intermediate, hlsDir, label string, segmentSeconds int, timeout time.Duration) Command {
	if segmentSeconds <= 0 {
		segmentSeconds = 10
	}
	args := append(baseArgs(intermediate),
		"-c:v", "copy",
		"-c:a", "copy",
		"-start_number", "0",
		"-hls_time", strconv.Itoa(segmentSeconds),
		"-hls_playlist_type", "vod",
		"-hls_segment_filename", filepath.Join(hlsDir, segmentPattern),
		"-f", "hls",
		filepath.Join(hlsDir, media.PlaylistName),
	)
	return Command{Name: "segment_" + label, Args: args, Timeout: timeout}
}

// OutputPath is the last argument, the file ffmpeg writes.
func (c Command) OutputPath() string {
	if len(c.Args) == 0 {
		return ""
	}
	return c.Args[len(c.Args)-1]
}
