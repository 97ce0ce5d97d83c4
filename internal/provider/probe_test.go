package provider

import (
	"context"
	"errors"
	"testing"
	"time"
)

type fakeHealthProvider struct {
	health *Health
	err    error
	calls  int
}

func (f *fakeHealthProvider) Detect(ctx context.Context, req DetectRequest) (*DetectResponse, error) {
	return nil, errors.New("not implemented in test")
}

func (f *fakeHealthProvider) Track(ctx context.Context, req TrackRequest) (*TrackResponse, error) {
	return nil, errors.New("not implemented in test")
}

func (f *fakeHealthProvider) Health(ctx context.Context) (*Health, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	h := *f.health
	h.ProbedAt = time.Now()
	return &h, nil
}

func TestCachedProbe_CachesWithinTTL(t *testing.T) {
	fake := &fakeHealthProvider{health: &Health{Status: "ok"}}
	probe := NewCachedProbe(fake, testLogger())

	for i := 0; i < 3; i++ {
		if _, err := probe.Get(context.Background()); err != nil {
			t.Fatalf("Get() error = %v", err)
		}
	}
	if fake.calls != 1 {
		t.Errorf("provider probed %d times, want 1", fake.calls)
	}
}

func TestCachedProbe_StaleOnFailure(t *testing.T) {
	fake := &fakeHealthProvider{health: &Health{Status: "ok", Version: "1"}}
	probe := NewCachedProbe(fake, testLogger())

	if _, err := probe.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh() error = %v", err)
	}

	fake.err = errors.New("connection refused")
	h, err := probe.Refresh(context.Background())
	if err != nil {
		t.Fatalf("Refresh() with stale cache error = %v", err)
	}
	if h.Version != "1" {
		t.Errorf("version = %q, want stale %q", h.Version, "1")
	}
}

func TestCachedProbe_NoCacheFailure(t *testing.T) {
	probe := NewCachedProbe(&fakeHealthProvider{err: errors.New("down")}, testLogger())
	if _, err := probe.Get(context.Background()); err == nil {
		t.Fatal("expected error with empty cache")
	}
	if probe.Peek() != nil {
		t.Error("Peek() should be nil after failed probe")
	}
}

func TestCachedProbe_Invalidate(t *testing.T) {
	fake := &fakeHealthProvider{health: &Health{Status: "ok"}}
	probe := NewCachedProbe(fake, testLogger())

	probe.Get(context.Background())
	probe.Invalidate()
	if probe.Peek() != nil {
		t.Fatal("Peek() should be nil after Invalidate")
	}
	probe.Get(context.Background())
	if fake.calls != 2 {
		t.Errorf("provider probed %d times, want 2", fake.calls)
	}
}
