package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/heimdex/heimdex-segmenter/internal/logging"
	"github.com/heimdex/heimdex-segmenter/internal/provider"
	"github.com/heimdex/heimdex-segmenter/internal/segments"
	"github.com/heimdex/heimdex-segmenter/internal/splitter"
)

// Stage is a step of one run. Stages only move forward.
type Stage string

const (
	StageDetecting Stage = "detecting"
	StageTracking  Stage = "tracking"
	StageSplitting Stage = "splitting"
	StageComplete  Stage = "complete"
	StageFailed    Stage = "failed"
)

// ProgressEvent is reported at each stage checkpoint.
type ProgressEvent struct {
	Stage    Stage  `json:"stage"`
	Progress int    `json:"progress"`
	Message  string `json:"message"`
}

// ProgressFunc receives progress events synchronously on the run's goroutine.
type ProgressFunc func(ProgressEvent)

type Config struct {
	// Credential is the provider token. Required.
	Credential          string
	Provider            provider.Provider
	Splitter            splitter.Splitter
	DefaultFPS          float64
	TrackingConcurrency int
	TrackingPolicy      TrackingPolicy
	Logger              *slog.Logger
}

// Service sequences detection, tracking and synthesis. It holds no per-run
// state, so independent runs may execute concurrently.
type Service struct {
	detector *Detector
	tracker  *Tracker
	splitter splitter.Splitter
	logger   *slog.Logger
	now      func() time.Time
}

func NewService(cfg Config) (*Service, error) {
	if cfg.Credential == "" {
		return nil, segments.NewAuthError("provider credential is required", nil)
	}
	if cfg.Provider == nil {
		return nil, fmt.Errorf("pipeline: provider is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logging.Discard()
	}
	logger = logging.WithComponent(logger, "pipeline")

	sp := cfg.Splitter
	if sp == nil {
		sp = splitter.NewFragmentSplitter()
	}

	return &Service{
		detector: NewDetector(cfg.Provider, cfg.DefaultFPS, logger),
		tracker:  NewTracker(cfg.Provider, cfg.TrackingConcurrency, cfg.TrackingPolicy, logger),
		splitter: sp,
		logger:   logger,
		now:      time.Now,
	}, nil
}

// DetectAndSplit validates the input, then detects, tracks and synthesizes
// segments. Any failure ends the run with a typed *segments.Error and a
// final "failed" progress event.
func (s *Service) DetectAndSplit(ctx context.Context, in segments.Input, progress ProgressFunc) (*segments.SegmentationResult, error) {
	started := s.now()
	if progress == nil {
		progress = func(ProgressEvent) {}
	}

	if err := segments.ValidateInput(in); err != nil {
		return nil, err
	}

	logger := s.logger.With("video_url", logging.SanitizeURL(in.VideoURL), "strategy", string(in.SplitStrategy))
	last := 0
	emit := func(stage Stage, pct int, msg string) {
		last = pct
		progress(ProgressEvent{Stage: stage, Progress: pct, Message: msg})
	}
	fail := func(err error) error {
		progress(ProgressEvent{Stage: StageFailed, Progress: last, Message: err.Error()})
		logger.Error("run failed", "kind", string(segments.KindOf(err)), "error", err)
		return err
	}

	emit(StageDetecting, 0, "Detecting objects")
	dets, err := s.detector.Detect(ctx, in.VideoURL, in.ObjectQueries, in.Threshold())
	if err != nil {
		return nil, fail(err)
	}

	emit(StageTracking, 33, fmt.Sprintf("Tracking %d detections", len(dets.Items)))
	tracks, err := s.tracker.Track(ctx, in.VideoURL, dets.Items, dets.FPS)
	if err != nil {
		return nil, fail(err)
	}

	emit(StageSplitting, 66, fmt.Sprintf("Synthesizing segments from %d tracks", len(tracks)))
	segs, err := segments.Synthesize(tracks, segments.Options{
		Strategy:      in.SplitStrategy,
		FPS:           dets.FPS,
		VideoDuration: float64(dets.TotalFrames) / dets.FPS,
		MinDuration:   in.MinDuration(),
		MaxDuration:   in.MaxDuration(),
	})
	if err != nil {
		return nil, fail(segments.AsProcessing("segment synthesis failed", err))
	}

	result := &segments.SegmentationResult{
		Segments:      segs,
		TotalDuration: segments.TotalDuration(segs),
		FPS:           dets.FPS,
		TotalFrames:   dets.TotalFrames,
	}
	result.ProcessingTime = s.now().Sub(started).Milliseconds()
	emit(StageComplete, 100, fmt.Sprintf("Created %d segments", len(segs)))

	logger.Info("run complete",
		"segments", len(segs),
		"tracks", len(tracks),
		"processing_ms", result.ProcessingTime,
	)
	return result, nil
}

// SplitVideo returns one addressable URL per segment.
func (s *Service) SplitVideo(ctx context.Context, videoURL string, segs []segments.VideoSegment) ([]string, error) {
	urls, err := s.splitter.Split(ctx, videoURL, segs)
	if err != nil {
		return nil, segments.AsProcessing("video split failed", err)
	}
	return urls, nil
}
