package media

import "fmt"

// Rendition is one resolution-specific encoding of a source video.
type Rendition struct {
	Label  string
	Width  int
	Height int
}

// Size returns the WxH form ffmpeg expects for -s.
func (r Rendition) Size() string {
	return fmt.Sprintf("%dx%d", r.Width, r.Height)
}

// Renditions is processed in this order, ascending quality.
var Renditions = []Rendition{
	{Label: "480p", Width: 854, Height: 480},
	{Label: "720p", Width: 1280, Height: 720},
	{Label: "1080p", Width: 1920, Height: 1080},
}

// LookupRendition finds a rendition by its label (e.g. "720p").
func LookupRendition(label string) (Rendition, bool) {
	for _, r := range Renditions {
		if r.Label == label {
			return r, true
		}
	}
	return Rendition{}, false
}
