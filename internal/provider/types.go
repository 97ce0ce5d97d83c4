// Package provider talks to the external detection and tracking backend,
// either over HTTP or through a local Python CLI, using fixed JSON contracts.
package provider

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"time"
)

// ErrMalformedResponse marks provider payloads that violate the contract.
var ErrMalformedResponse = errors.New("malformed provider response")

type BBox struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// DetectRequest is the body of POST /v1/detect.
type DetectRequest struct {
	VideoURL            string   `json:"video_url"`
	Queries             []string `json:"queries"`
	ConfidenceThreshold float64  `json:"confidence_threshold"`
}

// DetectResponse is the provider's per-frame nested detection output.
// FPS and TotalFrames are optional.
type DetectResponse struct {
	FPS         float64           `json:"fps,omitempty"`
	TotalFrames int               `json:"total_frames,omitempty"`
	Frames      []FrameDetections `json:"frames"`
}

type FrameDetections struct {
	FrameNumber int              `json:"frame_number"`
	Objects     []DetectedObject `json:"objects"`
}

type DetectedObject struct {
	Label      string  `json:"label"`
	Confidence float64 `json:"confidence"`
	BBox       BBox    `json:"bbox"`
}

// Seed is an initial bounding box handed to the tracker.
type Seed struct {
	FrameNumber int  `json:"frame_number"`
	BBox        BBox `json:"bbox"`
}

// TrackRequest is the body of POST /v1/track.
type TrackRequest struct {
	VideoURL string `json:"video_url"`
	Label    string `json:"label"`
	Seeds    []Seed `json:"seeds"`
}

type TrackResponse struct {
	Tracks []ProviderTrack `json:"tracks"`
}

// ProviderTrack is one linked object as the tracker reports it.
type ProviderTrack struct {
	ObjectID     string `json:"object_id"`
	FrameIndices []int  `json:"frame_indices"`
}

// Health is the provider's self-reported status.
type Health struct {
	Status  string   `json:"status"`
	Version string   `json:"version"`
	Models  []string `json:"models,omitempty"`

	ProbedAt time.Time `json:"-"`
}

// OK reports whether the provider considers itself ready.
func (h Health) OK() bool {
	return strings.EqualFold(h.Status, "ok") || strings.EqualFold(h.Status, "serving")
}

// Validate rejects detect payloads that cannot be reshaped safely.
func (r *DetectResponse) Validate() error {
	if r.Frames == nil {
		return fmt.Errorf("%w: frames missing", ErrMalformedResponse)
	}
	if r.FPS < 0 || math.IsNaN(r.FPS) || math.IsInf(r.FPS, 0) {
		return fmt.Errorf("%w: invalid fps %v", ErrMalformedResponse, r.FPS)
	}
	if r.TotalFrames < 0 {
		return fmt.Errorf("%w: negative total_frames %d", ErrMalformedResponse, r.TotalFrames)
	}
	for i, f := range r.Frames {
		if f.FrameNumber < 0 {
			return fmt.Errorf("%w: frames[%d] has negative frame_number", ErrMalformedResponse, i)
		}
		for j, o := range f.Objects {
			if strings.TrimSpace(o.Label) == "" {
				return fmt.Errorf("%w: frames[%d].objects[%d] has empty label", ErrMalformedResponse, i, j)
			}
			if o.Confidence < 0 || o.Confidence > 1 || math.IsNaN(o.Confidence) {
				return fmt.Errorf("%w: frames[%d].objects[%d] confidence %v outside [0,1]", ErrMalformedResponse, i, j, o.Confidence)
			}
			if o.BBox.Width < 0 || o.BBox.Height < 0 {
				return fmt.Errorf("%w: frames[%d].objects[%d] has negative bbox extent", ErrMalformedResponse, i, j)
			}
		}
	}
	return nil
}

// Validate rejects track payloads with missing arrays or negative frames.
func (r *TrackResponse) Validate() error {
	if r.Tracks == nil {
		return fmt.Errorf("%w: tracks missing", ErrMalformedResponse)
	}
	for i, t := range r.Tracks {
		for _, idx := range t.FrameIndices {
			if idx < 0 {
				return fmt.Errorf("%w: tracks[%d] has negative frame index", ErrMalformedResponse, i)
			}
		}
	}
	return nil
}
