package pipeline

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/heimdex/heimdex-segmenter/internal/logging"
	"github.com/heimdex/heimdex-segmenter/internal/provider"
	"github.com/heimdex/heimdex-segmenter/internal/segments"
)

func ptr(v float64) *float64 { return &v }

func newTestService(t *testing.T, fp *fakeProvider) *Service {
	t.Helper()
	svc, err := NewService(Config{
		Credential:          "token",
		Provider:            fp,
		DefaultFPS:          30,
		TrackingConcurrency: 2,
		Logger:              logging.Discard(),
	})
	require.NoError(t, err)

	clock := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	svc.now = func() time.Time {
		clock = clock.Add(250 * time.Millisecond)
		return clock
	}
	return svc
}

func TestNewService_RequiresCredential(t *testing.T) {
	_, err := NewService(Config{Provider: newFakeProvider()})
	require.Error(t, err)
	assert.Equal(t, segments.KindAuth, segments.KindOf(err))
}

func TestDetectAndSplit_EndToEnd(t *testing.T) {
	fp := newFakeProvider()
	// person visible 0..10s and 12..62s at 30fps; car blip 20..21s.
	var fr []provider.FrameDetections
	fr = append(fr, frames("person", 0.9, 0, 0)...)
	fr = append(fr, frames("person", 0.9, 300, 300)...)
	fr = append(fr, frames("person", 0.9, 360, 360)...)
	fr = append(fr, frames("person", 0.9, 1860, 1860)...)
	fr = append(fr, frames("car", 0.7, 600, 600)...)
	fp.detectResp = &provider.DetectResponse{FPS: 30, TotalFrames: 1900, Frames: fr}
	fp.tracks["person"] = []provider.ProviderTrack{
		{ObjectID: "p1", FrameIndices: frameRange(0, 300)},
		{ObjectID: "p2", FrameIndices: frameRange(360, 1860)},
	}
	fp.tracks["car"] = []provider.ProviderTrack{{ObjectID: "c1", FrameIndices: frameRange(600, 630)}}

	svc := newTestService(t, fp)
	var events []ProgressEvent
	res, err := svc.DetectAndSplit(context.Background(), segments.Input{
		VideoURL:      "https://cdn.example.com/spot.mp4",
		ObjectQueries: []string{"person", "car"},
		SplitStrategy: segments.StrategyObjectPresence,
	}, func(e ProgressEvent) { events = append(events, e) })
	require.NoError(t, err)

	// [0,10] single; [12,62] is 50s, split into two 25s halves; car lies inside it.
	require.Len(t, res.Segments, 3)
	assert.Equal(t, "segment-0", res.Segments[0].ID)
	assert.InDelta(t, 10.0, res.Segments[0].EndTime, 1e-9)
	assert.InDelta(t, 37.0, res.Segments[1].EndTime, 1e-9)
	assert.InDelta(t, 62.0, res.Segments[2].EndTime, 1e-9)
	assert.Equal(t, []string{"car", "person"}, res.Segments[0].DetectedObjects)
	assert.InDelta(t, 62.0, res.TotalDuration, 1e-9)
	assert.Equal(t, 30.0, res.FPS)
	assert.Equal(t, 1900, res.TotalFrames)
	assert.Equal(t, int64(250), res.ProcessingTime)

	require.Len(t, events, 4)
	var stages []Stage
	var pcts []int
	for _, e := range events {
		stages = append(stages, e.Stage)
		pcts = append(pcts, e.Progress)
	}
	assert.Equal(t, []Stage{StageDetecting, StageTracking, StageSplitting, StageComplete}, stages)
	assert.Equal(t, []int{0, 33, 66, 100}, pcts)
}

func TestDetectAndSplit_InvalidInputMakesNoRemoteCall(t *testing.T) {
	fp := newFakeProvider()
	svc := newTestService(t, fp)

	tests := []struct {
		name string
		in   segments.Input
	}{
		{"scene change", segments.Input{VideoURL: "https://x/v.mp4", ObjectQueries: []string{"car"}, SplitStrategy: segments.StrategySceneChange}},
		{"unknown strategy", segments.Input{VideoURL: "https://x/v.mp4", ObjectQueries: []string{"car"}, SplitStrategy: "shots"}},
		{"no queries", segments.Input{VideoURL: "https://x/v.mp4", SplitStrategy: segments.StrategyObjectPresence}},
		{"threshold", segments.Input{VideoURL: "https://x/v.mp4", ObjectQueries: []string{"car"}, SplitStrategy: segments.StrategyObjectPresence, ConfidenceThreshold: ptr(1.5)}},
		{"min above max", segments.Input{VideoURL: "https://x/v.mp4", ObjectQueries: []string{"car"}, SplitStrategy: segments.StrategyObjectPresence, MinSegmentDuration: ptr(40)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			called := false
			_, err := svc.DetectAndSplit(context.Background(), tt.in, func(ProgressEvent) { called = true })
			require.Error(t, err)
			assert.Equal(t, segments.KindInvalidInput, segments.KindOf(err))
			assert.False(t, called, "no progress before validation passes")
		})
	}
	assert.Empty(t, fp.detectReqs)
}

func TestDetectAndSplit_SceneChangeWrapsSentinel(t *testing.T) {
	svc := newTestService(t, newFakeProvider())
	_, err := svc.DetectAndSplit(context.Background(), segments.Input{
		VideoURL:      "https://x/v.mp4",
		ObjectQueries: []string{"car"},
		SplitStrategy: segments.StrategySceneChange,
	}, nil)
	assert.True(t, errors.Is(err, segments.ErrStrategyNotSupported))
}

func TestDetectAndSplit_DetectionFailureEmitsFailed(t *testing.T) {
	fp := newFakeProvider()
	fp.detectErr = errors.New("connection refused")
	svc := newTestService(t, fp)

	var events []ProgressEvent
	_, err := svc.DetectAndSplit(context.Background(), segments.Input{
		VideoURL:      "https://x/v.mp4",
		ObjectQueries: []string{"car"},
		SplitStrategy: segments.StrategyObjectPresence,
	}, func(e ProgressEvent) { events = append(events, e) })

	require.Error(t, err)
	assert.Equal(t, segments.KindProcessing, segments.KindOf(err))
	require.Len(t, events, 2)
	assert.Equal(t, StageDetecting, events[0].Stage)
	assert.Equal(t, StageFailed, events[1].Stage)
	assert.Equal(t, 0, events[1].Progress)
}

func TestDetectAndSplit_NoDetectionsYieldsEmptyResult(t *testing.T) {
	fp := newFakeProvider()
	fp.detectResp = &provider.DetectResponse{Frames: []provider.FrameDetections{}}
	svc := newTestService(t, fp)

	res, err := svc.DetectAndSplit(context.Background(), segments.Input{
		VideoURL:      "https://x/v.mp4",
		ObjectQueries: []string{"car"},
		SplitStrategy: segments.StrategyObjectPresence,
	}, nil)
	require.NoError(t, err)
	assert.Empty(t, res.Segments)
	assert.Equal(t, 0.0, res.TotalDuration)
}

func TestSplitVideo(t *testing.T) {
	svc := newTestService(t, newFakeProvider())
	urls, err := svc.SplitVideo(context.Background(), "https://x/v.mp4", []segments.VideoSegment{
		{ID: "segment-0", StartTime: 1, EndTime: 4.5},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"https://x/v.mp4#t=1,4.5"}, urls)

	_, err = svc.SplitVideo(context.Background(), "https://x/v.mp4", []segments.VideoSegment{{ID: "segment-0", StartTime: 3, EndTime: 3}})
	assert.Equal(t, segments.KindProcessing, segments.KindOf(err))
}
