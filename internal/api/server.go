package api

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/heimdex/heimdex-segmenter/internal/pipeline"
	"github.com/heimdex/heimdex-segmenter/internal/playback"
	"github.com/heimdex/heimdex-segmenter/internal/provider"
	"github.com/heimdex/heimdex-segmenter/internal/runs"
	"github.com/heimdex/heimdex-segmenter/internal/segments"
)

// Segmenter runs detect-and-split synchronously. *pipeline.Service satisfies it.
type Segmenter interface {
	DetectAndSplit(ctx context.Context, in segments.Input, progress pipeline.ProgressFunc) (*segments.SegmentationResult, error)
	SplitVideo(ctx context.Context, videoURL string, segs []segments.VideoSegment) ([]string, error)
}

// RunService queues and reads background runs. *runs.Service satisfies it.
type RunService interface {
	Submit(ctx context.Context, in segments.Input) (*runs.Run, error)
	Get(ctx context.Context, id string) (*runs.Run, []runs.Event, error)
	List(ctx context.Context, limit int) ([]*runs.Run, error)
	Counts(ctx context.Context) (runs.StatusCounts, error)
}

type RunnerState interface {
	IsPaused() bool
	ActiveRunCount() int
}

type ConfigStore interface {
	GetConfig(ctx context.Context, key string) (string, error)
}

// HealthPeeker exposes the last provider probe without triggering a new one.
type HealthPeeker interface {
	Peek() *provider.Health
}

type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
}

type ServerConfig struct {
	Port      int
	Segmenter Segmenter
	Runs      RunService
	Runner    RunnerState
	Config    ConfigStore
	Probe     HealthPeeker
	Clips     playback.ClipService
	Logger    *slog.Logger
	StartTime time.Time
	DeviceID  string
	Version   string
}

func NewServer(cfg ServerConfig) *Server {
	return &Server{
		httpServer: &http.Server{
			Addr:        fmt.Sprintf("127.0.0.1:%d", cfg.Port),
			Handler:     NewRouter(cfg),
			ReadTimeout: 15 * time.Second,
			// POST /segment blocks for the whole run.
			WriteTimeout: 0,
			IdleTimeout:  60 * time.Second,
		},
		logger: cfg.Logger,
	}
}

func (s *Server) Start() error {
	s.logger.Info("starting HTTP server", "addr", s.httpServer.Addr)
	err := s.httpServer.ListenAndServe()
	if err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down HTTP server")
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) Addr() string {
	return s.httpServer.Addr
}
