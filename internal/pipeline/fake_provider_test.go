package pipeline

import (
	"context"
	"errors"
	"sync"

	"github.com/heimdex/heimdex-segmenter/internal/provider"
)

type fakeProvider struct {
	mu sync.Mutex

	detectResp *provider.DetectResponse
	detectErr  error
	detectReqs []provider.DetectRequest

	tracks    map[string][]provider.ProviderTrack
	trackErrs map[string]error
	trackReqs []provider.TrackRequest
}

func newFakeProvider() *fakeProvider {
	return &fakeProvider{
		tracks:    make(map[string][]provider.ProviderTrack),
		trackErrs: make(map[string]error),
	}
}

func (f *fakeProvider) Detect(ctx context.Context, req provider.DetectRequest) (*provider.DetectResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.detectReqs = append(f.detectReqs, req)
	if f.detectErr != nil {
		return nil, f.detectErr
	}
	return f.detectResp, nil
}

func (f *fakeProvider) Track(ctx context.Context, req provider.TrackRequest) (*provider.TrackResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.trackReqs = append(f.trackReqs, req)
	if err := f.trackErrs[req.Label]; err != nil {
		return nil, err
	}
	return &provider.TrackResponse{Tracks: f.tracks[req.Label]}, nil
}

func (f *fakeProvider) Health(ctx context.Context) (*provider.Health, error) {
	return nil, errors.New("not implemented")
}

func (f *fakeProvider) trackRequest(label string) (provider.TrackRequest, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range f.trackReqs {
		if r.Label == label {
			return r, true
		}
	}
	return provider.TrackRequest{}, false
}

// frames builds one detection per listed frame for label at the given confidence.
func frames(label string, conf float64, from, to int) []provider.FrameDetections {
	var out []provider.FrameDetections
	for n := from; n <= to; n++ {
		out = append(out, provider.FrameDetections{
			FrameNumber: n,
			Objects: []provider.DetectedObject{
				{Label: label, Confidence: conf, BBox: provider.BBox{X: float64(n), Y: 1, Width: 10, Height: 10}},
			},
		})
	}
	return out
}

func frameRange(from, to int) []int {
	out := make([]int, 0, to-from+1)
	for n := from; n <= to; n++ {
		out = append(out, n)
	}
	return out
}
