package ffmpeg

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/videoflix/backend/internal/media"
)

func joined(c Command) string {
	return strings.Join(c.Args, " ")
}

func TestThumbnailCommand(t *testing.T) {
	cmd := ThumbnailCommand("/m/videos/test_video.mp4", "/m/thumbnails/test_video.jpg", time.Minute)
	s := joined(cmd)

	assert.Contains(t, s, "-i /m/videos/test_video.mp4")
	assert.Contains(t, s, "-ss 00:00:01.000")
	assert.Contains(t, s, "-vframes 1")
	assert.Equal(t, "/m/thumbnails/test_video.jpg", cmd.OutputPath())
	assert.Equal(t, time.Minute, cmd.Timeout)
}

func TestEncodeCommand(t *testing.T) {
	for _, r := range media.Renditions {
		cmd := EncodeCommand("/m/videos/movie.mp4", "/m/videos/movie/movie_"+r.Label+".mp4", r, 15*time.Minute)
		s := joined(cmd)

		assert.Contains(t, s, "-s "+r.Size())
		assert.Contains(t, s, "-c:v libx264")
		assert.Contains(t, s, "-crf 23")
		assert.Contains(t, s, "-c:a aac")
		assert.Contains(t, s, "-nostdin")
		assert.Equal(t, "/m/videos/movie/movie_"+r.Label+".mp4", cmd.OutputPath())
	}
}

func TestSegmentCommandStreamCopies(t *testing.T) {
	cmd := SegmentCommand("/m/videos/movie/movie_480p.mp4", "/m/videos/movie/480p", "480p", 10, 5*time.Minute)
	s := joined(cmd)

	assert.Contains(t, s, "-c:v copy -c:a copy")
	assert.Contains(t, s, "-hls_time 10")
	assert.Contains(t, s, "-start_number 0")
	assert.Contains(t, s, "-hls_segment_filename /m/videos/movie/480p/%03d.ts")
	assert.Contains(t, s, "-f hls")
	assert.NotContains(t, s, "libx264")
	assert.Equal(t, "/m/videos/movie/480p/index.m3u8", cmd.OutputPath())
}

func TestFilenamesStaySingleArguments(t *testing.T) {
	src := `/m/videos/my "quoted" movie; rm -rf.mp4`
	cmd := ThumbnailCommand(src, "/m/thumbnails/x.jpg", 0)

	assert.Contains(t, cmd.Args, src)
}
