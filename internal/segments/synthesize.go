package segments

import (
	"fmt"
	"math"
	"slices"
	"sort"
)

// Options configures one synthesis pass.
type Options struct {
	Strategy Strategy
	FPS      float64
	// VideoDuration bounds the object-absence complement. When zero the
	// last track end is used instead.
	VideoDuration float64
	MinDuration   float64
	MaxDuration   float64
}

type eventKind int

const (
	eventStart eventKind = iota
	eventEnd
)

type timelineEvent struct {
	time float64
	kind eventKind
}

type span struct {
	start float64
	end   float64
}

// Synthesize converts tracks into chronologically ordered, non-overlapping
// segments. It is a pure function of its arguments.
func Synthesize(tracks []TrackedObject, opts Options) ([]VideoSegment, error) {
	if opts.FPS <= 0 || math.IsNaN(opts.FPS) || math.IsInf(opts.FPS, 0) {
		return nil, fmt.Errorf("fps must be positive, got %v", opts.FPS)
	}
	if opts.MinDuration < 0 || math.IsNaN(opts.MinDuration) {
		return nil, fmt.Errorf("min duration must not be negative, got %v", opts.MinDuration)
	}
	if opts.MaxDuration <= 0 || math.IsNaN(opts.MaxDuration) || opts.MaxDuration < opts.MinDuration {
		return nil, fmt.Errorf("max duration %v must be positive and at least min duration %v", opts.MaxDuration, opts.MinDuration)
	}
	if !splitKeepsFloor(opts.MinDuration, opts.MaxDuration) {
		return nil, fmt.Errorf("max duration %v must be at least twice min duration %v", opts.MaxDuration, opts.MinDuration)
	}
	for _, t := range tracks {
		if t.FirstFrame < 0 || t.FirstFrame > t.LastFrame {
			return nil, fmt.Errorf("track %s has invalid frame range [%d,%d]", t.TrackID, t.FirstFrame, t.LastFrame)
		}
	}

	switch opts.Strategy {
	case StrategyObjectPresence:
		return presenceSegments(tracks, opts), nil
	case StrategyObjectAbsence:
		return absenceSegments(tracks, opts), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrStrategyNotSupported, opts.Strategy)
	}
}

func presenceSegments(tracks []TrackedObject, opts Options) []VideoSegment {
	labels := labelSet(tracks)

	segs := make([]VideoSegment, 0)
	for _, component := range connectedComponents(tracks, opts.FPS) {
		for _, sp := range bound(component, opts.MinDuration, opts.MaxDuration) {
			segs = append(segs, VideoSegment{
				ID:              segmentID(len(segs)),
				StartTime:       sp.start,
				EndTime:         sp.end,
				Duration:        sp.end - sp.start,
				DetectedObjects: slices.Clone(labels),
				Tracks:          overlapping(tracks, sp, opts.FPS),
			})
		}
	}
	return segs
}

func absenceSegments(tracks []TrackedObject, opts Options) []VideoSegment {
	components := connectedComponents(tracks, opts.FPS)

	videoEnd := opts.VideoDuration
	if videoEnd <= 0 && len(components) > 0 {
		videoEnd = components[len(components)-1].end
	}

	var gaps []span
	cursor := 0.0
	for _, c := range components {
		if c.start > cursor {
			gaps = append(gaps, span{start: cursor, end: c.start})
		}
		cursor = math.Max(cursor, c.end)
	}
	if videoEnd > cursor {
		gaps = append(gaps, span{start: cursor, end: videoEnd})
	}

	segs := make([]VideoSegment, 0)
	for _, gap := range gaps {
		for _, sp := range bound(gap, opts.MinDuration, opts.MaxDuration) {
			segs = append(segs, VideoSegment{
				ID:              segmentID(len(segs)),
				StartTime:       sp.start,
				EndTime:         sp.end,
				Duration:        sp.end - sp.start,
				DetectedObjects: []string{},
				Tracks:          []TrackedObject{},
			})
		}
	}
	return segs
}

// connectedComponents sweeps start/end events over the track intervals and
// returns every maximal span with at least one active track. Ties at the same
// instant keep input order, so an end listed before a start at the same time
// closes the component.
func connectedComponents(tracks []TrackedObject, fps float64) []span {
	events := make([]timelineEvent, 0, len(tracks)*2)
	for _, t := range tracks {
		events = append(events,
			timelineEvent{time: t.StartTime(fps), kind: eventStart},
			timelineEvent{time: t.EndTime(fps), kind: eventEnd},
		)
	}
	sort.SliceStable(events, func(i, j int) bool {
		return events[i].time < events[j].time
	})

	var (
		components []span
		active     int
		open       bool
		start      float64
	)
	for _, ev := range events {
		switch ev.kind {
		case eventStart:
			active++
			if !open {
				open = true
				start = ev.time
			}
		case eventEnd:
			active--
			if active == 0 && open {
				components = append(components, span{start: start, end: ev.time})
				open = false
			}
		}
	}
	return components
}

// splitKeepsFloor reports whether every even split stays at or above min.
// A component of length D > max splits into ceil(D/max) parts, each longer
// than max/2, so 2*min <= max is sufficient. Without it a component just
// over max would yield parts shorter than min.
func splitKeepsFloor(minDuration, maxDuration float64) bool {
	return 2*minDuration <= maxDuration
}

// bound applies the duration floor and the even split above the ceiling.
func bound(sp span, minDuration, maxDuration float64) []span {
	raw := sp.end - sp.start
	if raw <= 0 || raw < minDuration {
		return nil
	}
	if raw <= maxDuration {
		return []span{sp}
	}

	n := int(math.Ceil(raw / maxDuration))
	step := raw / float64(n)
	parts := make([]span, n)
	for i := range parts {
		parts[i] = span{
			start: sp.start + float64(i)*step,
			end:   sp.start + float64(i+1)*step,
		}
	}
	parts[n-1].end = sp.end
	return parts
}

func overlapping(tracks []TrackedObject, sp span, fps float64) []TrackedObject {
	out := make([]TrackedObject, 0)
	for _, t := range tracks {
		if t.StartTime(fps) <= sp.end && t.EndTime(fps) >= sp.start {
			out = append(out, t)
		}
	}
	return out
}

func labelSet(tracks []TrackedObject) []string {
	seen := make(map[string]struct{}, len(tracks))
	labels := make([]string, 0)
	for _, t := range tracks {
		if _, ok := seen[t.Label]; ok {
			continue
		}
		seen[t.Label] = struct{}{}
		labels = append(labels, t.Label)
	}
	sort.Strings(labels)
	return labels
}

func segmentID(i int) string {
	return fmt.Sprintf("segment-%d", i)
}

// TotalDuration is the end time of the last segment, or zero.
func TotalDuration(segs []VideoSegment) float64 {
	if len(segs) == 0 {
		return 0
	}
	return segs[len(segs)-1].EndTime
}
