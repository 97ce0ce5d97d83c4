package runs

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/heimdex/heimdex-segmenter/internal/logging"
	"github.com/heimdex/heimdex-segmenter/internal/pipeline"
	"github.com/heimdex/heimdex-segmenter/internal/segments"
)

// Executor runs one detect-and-split pass. *pipeline.Service satisfies it.
type Executor interface {
	DetectAndSplit(ctx context.Context, in segments.Input, progress pipeline.ProgressFunc) (*segments.SegmentationResult, error)
}

type Service struct {
	repo     Repository
	executor Executor
	logger   *slog.Logger
	now      func() time.Time
}

func NewService(repo Repository, executor Executor, logger *slog.Logger) *Service {
	if logger == nil {
		logger = logging.Discard()
	}
	return &Service{repo: repo, executor: executor, logger: logger, now: time.Now}
}

// Submit validates the input and queues a pending run.
func (s *Service) Submit(ctx context.Context, in segments.Input) (*Run, error) {
	if err := segments.ValidateInput(in); err != nil {
		return nil, err
	}

	now := s.now()
	run := &Run{
		ID:        NewID(),
		Status:    StatusPending,
		Input:     in,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.repo.CreateRun(ctx, run); err != nil {
		return nil, fmt.Errorf("create run: %w", err)
	}

	s.logger.Info("run queued", "run_id", run.ID, "video_url", logging.SanitizeURL(in.VideoURL))
	return run, nil
}

func (s *Service) Get(ctx context.Context, id string) (*Run, []Event, error) {
	run, err := s.repo.GetRun(ctx, id)
	if err != nil || run == nil {
		return nil, nil, err
	}
	events, err := s.repo.ListEvents(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	return run, events, nil
}

func (s *Service) List(ctx context.Context, limit int) ([]*Run, error) {
	return s.repo.ListRuns(ctx, limit)
}

func (s *Service) Counts(ctx context.Context) (StatusCounts, error) {
	return s.repo.CountByStatus(ctx)
}

// Execute claims a pending run, runs it and stores the outcome. A run that
// is no longer pending is left alone. The returned error is the run's own
// failure, already persisted.
func (s *Service) Execute(ctx context.Context, run *Run) error {
	claimed, err := s.repo.MarkRunning(ctx, run.ID)
	if err != nil {
		return fmt.Errorf("claim run %s: %w", run.ID, err)
	}
	if !claimed {
		return nil
	}

	logger := logging.WithRunID(s.logger, run.ID)
	logger.Info("run started")

	progress := func(ev pipeline.ProgressEvent) {
		if err := s.repo.UpdateProgress(ctx, run.ID, ev.Stage, ev.Progress); err != nil {
			logger.Warn("failed to persist progress", "stage", ev.Stage, "error", err)
		}
		if err := s.repo.AppendEvent(ctx, run.ID, Event{Stage: string(ev.Stage), Progress: ev.Progress, Message: ev.Message}); err != nil {
			logger.Warn("failed to persist progress event", "stage", ev.Stage, "error", err)
		}
	}

	result, runErr := s.executor.DetectAndSplit(ctx, run.Input, progress)
	if runErr != nil {
		kind := segments.KindOf(runErr)
		if err := s.repo.FailRun(context.WithoutCancel(ctx), run.ID, kind, runErr.Error()); err != nil {
			logger.Error("failed to record run failure", "error", err)
		}
		logger.Warn("run failed", "kind", string(kind), "error", runErr)
		return runErr
	}

	if err := s.repo.CompleteRun(ctx, run.ID, result); err != nil {
		return fmt.Errorf("store result of run %s: %w", run.ID, err)
	}
	logger.Info("run completed", "segments", len(result.Segments), "processing_ms", result.ProcessingTime)
	return nil
}
