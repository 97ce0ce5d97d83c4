package runs

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/heimdex/heimdex-segmenter/internal/provider"
)

// HealthChecker reports whether the provider can take work.
type HealthChecker interface {
	Get(ctx context.Context) (*provider.Health, error)
}

// Runner polls for pending runs and executes them one at a time.
type Runner struct {
	service      *Service
	repo         Repository
	probe        HealthChecker
	logger       *slog.Logger
	pollInterval time.Duration
	running      atomic.Bool
	paused       atomic.Bool
	active       atomic.Int32
}

func NewRunner(service *Service, repo Repository, probe HealthChecker, logger *slog.Logger) *Runner {
	return &Runner{
		service:      service,
		repo:         repo,
		probe:        probe,
		logger:       logger,
		pollInterval: 2 * time.Second,
	}
}

func (r *Runner) Start(ctx context.Context) {
	if r.running.Swap(true) {
		return
	}
	defer r.running.Store(false)

	r.logger.Info("run worker started", "poll_interval", r.pollInterval)

	ticker := time.NewTicker(r.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("run worker stopping")
			return
		case <-ticker.C:
			if !r.paused.Load() {
				r.processNext(ctx)
			}
		}
	}
}

func (r *Runner) Pause() {
	r.paused.Store(true)
	r.logger.Info("run worker paused")
}

func (r *Runner) Resume() {
	r.paused.Store(false)
	r.logger.Info("run worker resumed")
}

func (r *Runner) IsPaused() bool {
	return r.paused.Load()
}

func (r *Runner) IsRunning() bool {
	return r.running.Load()
}

// ActiveRunCount is the number of runs this worker is executing right now.
func (r *Runner) ActiveRunCount() int {
	return int(r.active.Load())
}

// processNext executes the oldest pending run. Runs stay queued while the
// provider reports itself unhealthy.
func (r *Runner) processNext(ctx context.Context) {
	pending, err := r.repo.ListPendingRuns(ctx)
	if err != nil {
		r.logger.Error("failed to list pending runs", "error", err)
		return
	}
	if len(pending) == 0 {
		return
	}

	if r.probe != nil {
		h, err := r.probe.Get(ctx)
		if err != nil {
			r.logger.Warn("provider unavailable, runs stay queued", "pending", len(pending), "error", err)
			return
		}
		if !h.OK() {
			r.logger.Warn("provider not ready, runs stay queued", "pending", len(pending), "status", h.Status)
			return
		}
	}

	run := pending[0]
	r.active.Add(1)
	defer r.active.Add(-1)

	if err := r.service.Execute(ctx, run); err != nil {
		r.logger.Error("run failed", "run_id", run.ID, "error", err)
	}
}
