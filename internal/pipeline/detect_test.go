package pipeline

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/heimdex/heimdex-segmenter/internal/logging"
	"github.com/heimdex/heimdex-segmenter/internal/provider"
	"github.com/heimdex/heimdex-segmenter/internal/segments"
)

func TestDetector_ReshapesAndFilters(t *testing.T) {
	fp := newFakeProvider()
	fp.detectResp = &provider.DetectResponse{
		FPS: 25,
		Frames: []provider.FrameDetections{
			{FrameNumber: 50, Objects: []provider.DetectedObject{
				{Label: "Person ", Confidence: 0.9},
				{Label: "logo", Confidence: 0.2},
			}},
			{FrameNumber: 10, Objects: []provider.DetectedObject{
				{Label: "logo", Confidence: 0.5, BBox: provider.BBox{X: 1, Y: 2, Width: 3, Height: 4}},
			}},
		},
	}

	d := NewDetector(fp, 30, logging.Discard())
	got, err := d.Detect(context.Background(), "https://cdn.example.com/a.mp4", []string{" Person", "LOGO", "person"}, 0.5)
	require.NoError(t, err)

	require.Len(t, fp.detectReqs, 1)
	assert.Equal(t, []string{"person", "logo"}, fp.detectReqs[0].Queries)
	assert.Equal(t, 0.5, fp.detectReqs[0].ConfidenceThreshold)

	assert.Equal(t, 25.0, got.FPS)
	assert.Equal(t, 51, got.TotalFrames)
	require.Len(t, got.Items, 2)

	assert.Equal(t, segments.ObjectDetection{
		Label:       "logo",
		Confidence:  0.5,
		BBox:        segments.BoundingBox{X: 1, Y: 2, Width: 3, Height: 4},
		FrameNumber: 10,
		Timestamp:   0.4,
	}, got.Items[0])
	assert.Equal(t, "person", got.Items[1].Label)
	assert.Equal(t, 2.0, got.Items[1].Timestamp)
}

func TestDetector_DefaultFPSAndProviderTotals(t *testing.T) {
	fp := newFakeProvider()
	fp.detectResp = &provider.DetectResponse{TotalFrames: 900, Frames: frames("car", 0.8, 0, 2)}

	got, err := NewDetector(fp, 0, logging.Discard()).Detect(context.Background(), "https://x/v.mp4", []string{"car"}, 0.5)
	require.NoError(t, err)
	assert.Equal(t, 30.0, got.FPS)
	assert.Equal(t, 900, got.TotalFrames)
	assert.Len(t, got.Items, 3)
}

func TestDetector_EmptyFrames(t *testing.T) {
	fp := newFakeProvider()
	fp.detectResp = &provider.DetectResponse{Frames: []provider.FrameDetections{}}

	got, err := NewDetector(fp, 30, logging.Discard()).Detect(context.Background(), "https://x/v.mp4", []string{"car"}, 0.5)
	require.NoError(t, err)
	assert.Empty(t, got.Items)
	assert.Equal(t, 0, got.TotalFrames)
}

func TestDetector_WrapsProviderErrors(t *testing.T) {
	fp := newFakeProvider()
	fp.detectErr = &provider.StatusError{StatusCode: 401, Body: "bad token"}

	_, err := NewDetector(fp, 30, logging.Discard()).Detect(context.Background(), "https://x/v.mp4", []string{"car"}, 0.5)
	require.Error(t, err)
	assert.Equal(t, segments.KindProcessing, segments.KindOf(err))

	var statusErr *provider.StatusError
	assert.True(t, errors.As(err, &statusErr), "cause must be preserved")
}

func TestDetector_RejectsBlankQueries(t *testing.T) {
	fp := newFakeProvider()
	_, err := NewDetector(fp, 30, logging.Discard()).Detect(context.Background(), "https://x/v.mp4", []string{"  "}, 0.5)
	require.Error(t, err)
	assert.Equal(t, segments.KindInvalidInput, segments.KindOf(err))
	assert.Empty(t, fp.detectReqs)
}
