package provider

import "context"

// Provider is the black-box inference backend. Implementations do not retry
// beyond their own transport policy.
type Provider interface {
	// Detect returns per-frame detections for the queried labels.
	Detect(ctx context.Context, req DetectRequest) (*DetectResponse, error)

	// Track links one label's seeded detections into object tracks.
	Track(ctx context.Context, req TrackRequest) (*TrackResponse, error)

	// Health probes the backend without running inference.
	Health(ctx context.Context) (*Health, error)
}

const (
	ModeHTTP       = "http"
	ModeSubprocess = "subprocess"
)
