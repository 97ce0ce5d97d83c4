// Package splitter turns synthesized segments into addressable media references.
package splitter

import (
	"context"
	"fmt"
	"math"
	"net/url"
	"strconv"

	"github.com/heimdex/heimdex-segmenter/internal/segments"
)

// Splitter produces one URL per segment, in segment order.
type Splitter interface {
	Split(ctx context.Context, videoURL string, segs []segments.VideoSegment) ([]string, error)
}

// FragmentSplitter does no media work. It addresses each segment with a
// W3C media fragment (#t=start,end) on the source URL, which players and the
// browser-side clip exporter understand.
type FragmentSplitter struct{}

func NewFragmentSplitter() *FragmentSplitter {
	return &FragmentSplitter{}
}

func (FragmentSplitter) Split(ctx context.Context, videoURL string, segs []segments.VideoSegment) ([]string, error) {
	base, err := url.Parse(videoURL)
	if err != nil {
		return nil, fmt.Errorf("invalid video url: %w", err)
	}

	urls := make([]string, len(segs))
	for i, s := range segs {
		if s.EndTime <= s.StartTime {
			return nil, fmt.Errorf("segment %s has empty span", s.ID)
		}
		u := *base
		u.Fragment = "t=" + formatSeconds(s.StartTime) + "," + formatSeconds(s.EndTime)
		urls[i] = u.String()
	}
	return urls, nil
}

// formatSeconds renders seconds with at most millisecond precision.
func formatSeconds(v float64) string {
	return strconv.FormatFloat(math.Round(v*1000)/1000, 'f', -1, 64)
}
