package api

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/heimdex/heimdex-segmenter/internal/pipeline"
	"github.com/heimdex/heimdex-segmenter/internal/provider"
	"github.com/heimdex/heimdex-segmenter/internal/runs"
	"github.com/heimdex/heimdex-segmenter/internal/segments"
)

const testToken = "test-token"

type fakeSegmenter struct {
	result *segments.SegmentationResult
	err    error
	urls   []string

	gotInput segments.Input
	gotSegs  []segments.VideoSegment
}

func (f *fakeSegmenter) DetectAndSplit(ctx context.Context, in segments.Input, progress pipeline.ProgressFunc) (*segments.SegmentationResult, error) {
	f.gotInput = in
	progress(pipeline.ProgressEvent{Stage: pipeline.StageDetecting, Progress: 0})
	if f.err != nil {
		progress(pipeline.ProgressEvent{Stage: pipeline.StageFailed, Progress: 0, Message: f.err.Error()})
		return nil, f.err
	}
	progress(pipeline.ProgressEvent{Stage: pipeline.StageTracking, Progress: 33})
	progress(pipeline.ProgressEvent{Stage: pipeline.StageSplitting, Progress: 66})
	progress(pipeline.ProgressEvent{Stage: pipeline.StageComplete, Progress: 100})
	return f.result, nil
}

func (f *fakeSegmenter) SplitVideo(ctx context.Context, videoURL string, segs []segments.VideoSegment) ([]string, error) {
	f.gotSegs = segs
	if f.err != nil {
		return nil, f.err
	}
	return f.urls, nil
}

type fakeRuns struct {
	runs      map[string]*runs.Run
	events    map[string][]runs.Event
	order     []*runs.Run
	counts    runs.StatusCounts
	submitErr error
	storeErr  error
	submitted []segments.Input
}

func (f *fakeRuns) Submit(ctx context.Context, in segments.Input) (*runs.Run, error) {
	if f.submitErr != nil {
		return nil, f.submitErr
	}
	f.submitted = append(f.submitted, in)
	return &runs.Run{ID: "run-new", Status: runs.StatusPending, Input: in}, nil
}

func (f *fakeRuns) Get(ctx context.Context, id string) (*runs.Run, []runs.Event, error) {
	run, ok := f.runs[id]
	if !ok {
		return nil, nil, nil
	}
	return run, f.events[id], nil
}

func (f *fakeRuns) List(ctx context.Context, limit int) ([]*runs.Run, error) {
	if f.storeErr != nil {
		return nil, f.storeErr
	}
	if len(f.order) > limit {
		return f.order[:limit], nil
	}
	return f.order, nil
}

func (f *fakeRuns) Counts(ctx context.Context) (runs.StatusCounts, error) {
	if f.storeErr != nil {
		return nil, f.storeErr
	}
	if f.counts == nil {
		return runs.StatusCounts{}, nil
	}
	return f.counts, nil
}

type fakeRunner struct {
	paused bool
	active int
}

func (f *fakeRunner) IsPaused() bool      { return f.paused }
func (f *fakeRunner) ActiveRunCount() int { return f.active }

type fakeConfig map[string]string

func (f fakeConfig) GetConfig(ctx context.Context, key string) (string, error) {
	return f[key], nil
}

type fakeProbe struct {
	health *provider.Health
}

func (f *fakeProbe) Peek() *provider.Health { return f.health }

type fakeClips struct {
	served []string
}

func (f *fakeClips) ServeClip(w http.ResponseWriter, r *http.Request, name string) error {
	f.served = append(f.served, name)
	w.Header().Set("Accept-Ranges", "bytes")
	w.WriteHeader(http.StatusOK)
	if r.Method != http.MethodHead {
		w.Write([]byte("clip"))
	}
	return nil
}

func testServerConfig() ServerConfig {
	return ServerConfig{
		Segmenter: &fakeSegmenter{},
		Runs:      &fakeRuns{},
		Runner:    &fakeRunner{},
		Config:    fakeConfig{ConfigKeyAuthToken: testToken},
		Logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
		StartTime: time.Now().Add(-10 * time.Second),
		DeviceID:  "test-device",
		Version:   "test",
	}
}

