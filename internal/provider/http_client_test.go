package provider

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"sync/atomic"
	"testing"
	"time"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func newTestProvider(url string, retries int) *HTTPProvider {
	p := NewHTTPProvider(HTTPConfig{
		BaseURL:    url,
		Token:      "test-token",
		Timeout:    5 * time.Second,
		MaxRetries: retries,
		Logger:     testLogger(),
	})
	p.backoff = time.Millisecond
	return p
}

func TestHTTPProvider_Detect_Success(t *testing.T) {
	var received DetectRequest
	var receivedAuth, receivedRequestID string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/detect" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if r.Method != http.MethodPost {
			t.Errorf("unexpected method: %s", r.Method)
		}
		receivedAuth = r.Header.Get("Authorization")
		receivedRequestID = r.Header.Get("X-Heimdex-Request-Id")

		body, _ := io.ReadAll(r.Body)
		json.Unmarshal(body, &received)

		json.NewEncoder(w).Encode(DetectResponse{
			FPS:         25,
			TotalFrames: 250,
			Frames: []FrameDetections{
				{FrameNumber: 0, Objects: []DetectedObject{{Label: "person", Confidence: 0.9, BBox: BBox{Width: 10, Height: 20}}}},
			},
		})
	}))
	defer server.Close()

	p := newTestProvider(server.URL+"/", 0)
	resp, err := p.Detect(context.Background(), DetectRequest{
		VideoURL:            "https://cdn.example.com/a.mp4",
		Queries:             []string{"person"},
		ConfidenceThreshold: 0.5,
	})
	if err != nil {
		t.Fatalf("Detect() error = %v", err)
	}

	if receivedAuth != "Bearer test-token" {
		t.Errorf("auth = %q, want %q", receivedAuth, "Bearer test-token")
	}
	if receivedRequestID == "" {
		t.Error("missing X-Heimdex-Request-Id header")
	}
	if received.VideoURL != "https://cdn.example.com/a.mp4" || len(received.Queries) != 1 {
		t.Errorf("unexpected request body: %+v", received)
	}
	if resp.FPS != 25 || len(resp.Frames) != 1 {
		t.Errorf("unexpected response: %+v", resp)
	}
}

func TestHTTPProvider_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte("warming up"))
			return
		}
		json.NewEncoder(w).Encode(TrackResponse{Tracks: []ProviderTrack{{ObjectID: "1", FrameIndices: []int{0, 1}}}})
	}))
	defer server.Close()

	p := newTestProvider(server.URL, 2)
	resp, err := p.Track(context.Background(), TrackRequest{Label: "car"})
	if err != nil {
		t.Fatalf("Track() error = %v", err)
	}
	if calls.Load() != 3 {
		t.Errorf("calls = %d, want 3", calls.Load())
	}
	if len(resp.Tracks) != 1 {
		t.Errorf("tracks = %d, want 1", len(resp.Tracks))
	}
}

func TestHTTPProvider_GivesUpAfterMaxRetries(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	p := newTestProvider(server.URL, 1)
	_, err := p.Track(context.Background(), TrackRequest{Label: "car"})

	var statusErr *StatusError
	if !errors.As(err, &statusErr) {
		t.Fatalf("error = %v, want *StatusError", err)
	}
	if statusErr.StatusCode != http.StatusBadGateway {
		t.Errorf("status = %d, want %d", statusErr.StatusCode, http.StatusBadGateway)
	}
	if calls.Load() != 2 {
		t.Errorf("calls = %d, want 2", calls.Load())
	}
}

func TestHTTPProvider_ClientErrorNotRetried(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"detail":"bad token"}`))
	}))
	defer server.Close()

	p := newTestProvider(server.URL, 3)
	_, err := p.Detect(context.Background(), DetectRequest{Queries: []string{"car"}})
	if err == nil {
		t.Fatal("expected error for 401")
	}
	if calls.Load() != 1 {
		t.Errorf("calls = %d, want 1 (4xx is permanent)", calls.Load())
	}
}

func TestHTTPProvider_MalformedResponse(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"not json", `<html>oops</html>`},
		{"missing frames", `{"fps": 30}`},
		{"bad confidence", `{"frames":[{"frame_number":1,"objects":[{"label":"car","confidence":3,"bbox":{}}]}]}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(tt.body))
			}))
			defer server.Close()

			p := newTestProvider(server.URL, 2)
			_, err := p.Detect(context.Background(), DetectRequest{Queries: []string{"car"}})
			if !errors.Is(err, ErrMalformedResponse) {
				t.Fatalf("error = %v, want ErrMalformedResponse", err)
			}
		})
	}
}

func TestHTTPProvider_Health(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet || r.URL.Path != "/v1/health" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		w.Write([]byte(`{"status":"ok","version":"1.4.0","models":["owlv2","sam2"]}`))
	}))
	defer server.Close()

	h, err := newTestProvider(server.URL, 0).Health(context.Background())
	if err != nil {
		t.Fatalf("Health() error = %v", err)
	}
	if !h.OK() || h.Version != "1.4.0" || h.ProbedAt.IsZero() {
		t.Errorf("unexpected health: %+v", h)
	}
}

func TestHTTPProvider_ContextCancelStopsRetries(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	p := newTestProvider(server.URL, 5)
	p.backoff = time.Hour

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := p.Track(ctx, TrackRequest{Label: "car"})
	if err == nil {
		t.Fatal("expected error")
	}
	if time.Since(start) > 5*time.Second {
		t.Error("retry backoff ignored context cancellation")
	}
}

func TestStatusError_IsRetryable(t *testing.T) {
	tests := []struct {
		code int
		want bool
	}{
		{500, true},
		{503, true},
		{429, true},
		{400, false},
		{401, false},
		{404, false},
	}
	for _, tt := range tests {
		e := &StatusError{StatusCode: tt.code}
		if got := e.IsRetryable(); got != tt.want {
			t.Errorf("StatusError{%d}.IsRetryable() = %v, want %v", tt.code, got, tt.want)
		}
	}
}
