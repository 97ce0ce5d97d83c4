package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/heimdex/heimdex-segmenter/internal/logging"
	"github.com/heimdex/heimdex-segmenter/internal/provider"
	"github.com/heimdex/heimdex-segmenter/internal/segments"
)

// seedsPerLabel bounds how many detections bootstrap the tracker.
const seedsPerLabel = 3

// TrackingPolicy decides what a single label's tracking failure does to the run.
type TrackingPolicy string

const (
	// PolicyLenient drops failed labels and continues, unless every label fails.
	PolicyLenient TrackingPolicy = "lenient"
	// PolicyStrict aborts the run on the first failed label.
	PolicyStrict TrackingPolicy = "strict"
)

func ParseTrackingPolicy(s string) (TrackingPolicy, error) {
	switch TrackingPolicy(s) {
	case PolicyLenient, PolicyStrict:
		return TrackingPolicy(s), nil
	}
	return "", fmt.Errorf("unknown tracking policy %q", s)
}

type Tracker struct {
	provider    provider.Provider
	concurrency int
	policy      TrackingPolicy
	logger      *slog.Logger
}

func NewTracker(p provider.Provider, concurrency int, policy TrackingPolicy, logger *slog.Logger) *Tracker {
	if concurrency <= 0 {
		concurrency = 1
	}
	if policy == "" {
		policy = PolicyLenient
	}
	return &Tracker{provider: p, concurrency: concurrency, policy: policy, logger: logger}
}

// labelGroup is one label's detections in frame order.
type labelGroup struct {
	label      string
	detections []segments.ObjectDetection
}

// Track issues one tracking call per distinct label and links the returned
// frame ranges back to that label's detections. Output is grouped by label in
// first-appearance order regardless of call completion order.
func (t *Tracker) Track(ctx context.Context, videoURL string, dets []segments.ObjectDetection, fps float64) ([]segments.TrackedObject, error) {
	groups := groupByLabel(dets)
	if len(groups) == 0 {
		return nil, nil
	}

	results := make([][]segments.TrackedObject, len(groups))
	failures := make([]error, len(groups))

	g := new(errgroup.Group)
	runCtx := ctx
	if t.policy == PolicyStrict {
		g, runCtx = errgroup.WithContext(ctx)
	}
	g.SetLimit(t.concurrency)

	for i, grp := range groups {
		g.Go(func() error {
			tracks, err := t.trackLabel(runCtx, videoURL, grp, fps)
			if err != nil {
				failures[i] = fmt.Errorf("label %q: %w", grp.label, err)
				if t.policy == PolicyStrict {
					return failures[i]
				}
				logging.WithLabel(t.logger, grp.label).Warn("tracking failed, label skipped", "error", err)
				return nil
			}
			results[i] = tracks
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, segments.AsProcessing("object tracking failed", err)
	}

	var failed []error
	for _, err := range failures {
		if err != nil {
			failed = append(failed, err)
		}
	}
	if len(failed) == len(groups) {
		return nil, segments.NewProcessingError("object tracking failed for every label", errors.Join(failed...))
	}

	var out []segments.TrackedObject
	for _, r := range results {
		out = append(out, r...)
	}

	t.logger.Info("tracking complete",
		"labels", len(groups),
		"failed_labels", len(failed),
		"tracks", len(out),
	)
	return out, nil
}

func (t *Tracker) trackLabel(ctx context.Context, videoURL string, grp labelGroup, fps float64) ([]segments.TrackedObject, error) {
	seeds := make([]provider.Seed, 0, seedsPerLabel)
	for _, d := range grp.detections[:min(seedsPerLabel, len(grp.detections))] {
		seeds = append(seeds, provider.Seed{FrameNumber: d.FrameNumber, BBox: provider.BBox(d.BBox)})
	}

	resp, err := t.provider.Track(ctx, provider.TrackRequest{
		VideoURL: videoURL,
		Label:    grp.label,
		Seeds:    seeds,
	})
	if err != nil {
		return nil, err
	}
	return buildTracks(grp, resp.Tracks, fps), nil
}

// buildTracks intersects each provider track with the label's detections.
// Tracks that match no detection are dropped and do not consume an id.
func buildTracks(grp labelGroup, ptracks []provider.ProviderTrack, fps float64) []segments.TrackedObject {
	byFrame := make(map[int][]segments.ObjectDetection)
	for _, d := range grp.detections {
		byFrame[d.FrameNumber] = append(byFrame[d.FrameNumber], d)
	}

	var out []segments.TrackedObject
	for _, pt := range ptracks {
		if len(pt.FrameIndices) == 0 {
			continue
		}
		indices := uniqueSorted(pt.FrameIndices)

		var matched []segments.ObjectDetection
		for _, idx := range indices {
			matched = append(matched, byFrame[idx]...)
		}
		if len(matched) == 0 {
			continue
		}

		first, last := indices[0], indices[len(indices)-1]
		out = append(out, segments.TrackedObject{
			TrackID:    fmt.Sprintf("%s-%d", grp.label, len(out)),
			Label:      grp.label,
			Detections: matched,
			FirstFrame: first,
			LastFrame:  last,
			Duration:   float64(last-first) / fps,
		})
	}
	return out
}

func groupByLabel(dets []segments.ObjectDetection) []labelGroup {
	index := make(map[string]int)
	var groups []labelGroup
	for _, d := range dets {
		i, ok := index[d.Label]
		if !ok {
			i = len(groups)
			index[d.Label] = i
			groups = append(groups, labelGroup{label: d.Label})
		}
		groups[i].detections = append(groups[i].detections, d)
	}
	for i := range groups {
		sort.SliceStable(groups[i].detections, func(a, b int) bool {
			return groups[i].detections[a].FrameNumber < groups[i].detections[b].FrameNumber
		})
	}
	return groups
}

func uniqueSorted(in []int) []int {
	out := make([]int, len(in))
	copy(out, in)
	sort.Ints(out)
	n := 0
	for i, v := range out {
		if i == 0 || v != out[n-1] {
			out[n] = v
			n++
		}
	}
	return out[:n]
}
