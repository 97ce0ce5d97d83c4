// Package export renders segmentation results as edit decision lists.
package export

import (
	"strings"

	"github.com/heimdex/heimdex-segmenter/internal/segments"
)

// Clip is one EDL event. Times are seconds on the source media.
type Clip struct {
	Name      string
	MediaPath string
	Start     float64
	End       float64
	Labels    []string
}

// ClipsFromResult maps every segment of res onto the same source media.
func ClipsFromResult(res *segments.SegmentationResult, mediaPath string) []Clip {
	clips := make([]Clip, 0, len(res.Segments))
	for _, s := range res.Segments {
		name := s.ID
		if len(s.DetectedObjects) > 0 {
			name += " " + strings.Join(s.DetectedObjects, "+")
		}
		clips = append(clips, Clip{
			Name:      SanitizeName(name, 64),
			MediaPath: mediaPath,
			Start:     s.StartTime,
			End:       s.EndTime,
			Labels:    s.DetectedObjects,
		})
	}
	return clips
}
