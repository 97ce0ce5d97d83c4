// Package pipeline runs one detect-and-split pass: detection, per-label
// tracking and timeline synthesis, with progress reporting.
package pipeline

import (
	"context"
	"log/slog"
	"sort"
	"strings"

	"github.com/heimdex/heimdex-segmenter/internal/logging"
	"github.com/heimdex/heimdex-segmenter/internal/provider"
	"github.com/heimdex/heimdex-segmenter/internal/segments"
)

// Detections is the flat detection list of one video plus its frame timing.
type Detections struct {
	Items       []segments.ObjectDetection
	FPS         float64
	TotalFrames int
}

// Detector reshapes the provider's per-frame output into ObjectDetections.
type Detector struct {
	provider   provider.Provider
	defaultFPS float64
	logger     *slog.Logger
}

func NewDetector(p provider.Provider, defaultFPS float64, logger *slog.Logger) *Detector {
	if defaultFPS <= 0 {
		defaultFPS = 30
	}
	return &Detector{provider: p, defaultFPS: defaultFPS, logger: logger}
}

func (d *Detector) Detect(ctx context.Context, videoURL string, queries []string, threshold float64) (*Detections, error) {
	labels := normalizeQueries(queries)
	if len(labels) == 0 {
		return nil, segments.NewInvalidInputError("objectQueries must not be empty", nil)
	}
	if threshold < 0 || threshold > 1 {
		return nil, segments.NewInvalidInputError("confidenceThreshold must be within [0, 1]", nil)
	}

	resp, err := d.provider.Detect(ctx, provider.DetectRequest{
		VideoURL:            videoURL,
		Queries:             labels,
		ConfidenceThreshold: threshold,
	})
	if err != nil {
		return nil, segments.AsProcessing("object detection failed", err)
	}

	fps := resp.FPS
	if fps <= 0 {
		fps = d.defaultFPS
	}

	frames := make([]provider.FrameDetections, len(resp.Frames))
	copy(frames, resp.Frames)
	sort.SliceStable(frames, func(i, j int) bool {
		return frames[i].FrameNumber < frames[j].FrameNumber
	})

	var items []segments.ObjectDetection
	maxFrame := -1
	dropped := 0
	for _, f := range frames {
		maxFrame = max(maxFrame, f.FrameNumber)
		for _, o := range f.Objects {
			if o.Confidence < threshold {
				dropped++
				continue
			}
			items = append(items, segments.ObjectDetection{
				Label:       normalizeLabel(o.Label),
				Confidence:  o.Confidence,
				BBox:        segments.BoundingBox(o.BBox),
				FrameNumber: f.FrameNumber,
				Timestamp:   float64(f.FrameNumber) / fps,
			})
		}
	}

	totalFrames := resp.TotalFrames
	if totalFrames <= 0 {
		totalFrames = maxFrame + 1
	}

	d.logger.Info("detection complete",
		"video_url", logging.SanitizeURL(videoURL),
		"labels", len(labels),
		"frames", len(frames),
		"detections", len(items),
		"below_threshold", dropped,
		"fps", fps,
	)

	return &Detections{Items: items, FPS: fps, TotalFrames: totalFrames}, nil
}

// normalizeQueries lower-cases, trims and de-duplicates labels, keeping the
// first occurrence order.
func normalizeQueries(queries []string) []string {
	seen := make(map[string]struct{}, len(queries))
	out := make([]string, 0, len(queries))
	for _, q := range queries {
		l := normalizeLabel(q)
		if l == "" {
			continue
		}
		if _, ok := seen[l]; ok {
			continue
		}
		seen[l] = struct{}{}
		out = append(out, l)
	}
	return out
}

func normalizeLabel(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
