package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	maxErrorBody   = 4096
	defaultBackoff = 500 * time.Millisecond
)

// StatusError is a non-2xx answer from the provider.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("provider request failed: HTTP %d: %s", e.StatusCode, e.Body)
}

// IsRetryable returns true for server errors (5xx) and throttling (429).
// Other client errors are permanent.
func (e *StatusError) IsRetryable() bool {
	return e.StatusCode >= 500 || e.StatusCode == http.StatusTooManyRequests
}

type HTTPConfig struct {
	BaseURL    string
	Token      string
	Timeout    time.Duration
	MaxRetries int
	Logger     *slog.Logger
}

// HTTPProvider calls the remote detection/tracking backend with JSON over HTTP.
type HTTPProvider struct {
	baseURL    string
	token      string
	maxRetries int
	backoff    time.Duration
	httpClient *http.Client
	logger     *slog.Logger
}

func NewHTTPProvider(cfg HTTPConfig) *HTTPProvider {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	return &HTTPProvider{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		token:      cfg.Token,
		maxRetries: max(cfg.MaxRetries, 0),
		backoff:    defaultBackoff,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		logger: cfg.Logger,
	}
}

func (p *HTTPProvider) Detect(ctx context.Context, req DetectRequest) (*DetectResponse, error) {
	var resp DetectResponse
	if err := p.call(ctx, http.MethodPost, "/v1/detect", req, &resp); err != nil {
		return nil, err
	}
	if err := resp.Validate(); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (p *HTTPProvider) Track(ctx context.Context, req TrackRequest) (*TrackResponse, error) {
	var resp TrackResponse
	if err := p.call(ctx, http.MethodPost, "/v1/track", req, &resp); err != nil {
		return nil, err
	}
	if err := resp.Validate(); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (p *HTTPProvider) Health(ctx context.Context) (*Health, error) {
	var h Health
	if err := p.call(ctx, http.MethodGet, "/v1/health", nil, &h); err != nil {
		return nil, err
	}
	h.ProbedAt = time.Now()
	return &h, nil
}

// call performs one logical request, retrying retryable failures up to
// maxRetries times with linear backoff.
func (p *HTTPProvider) call(ctx context.Context, method, path string, body, out any) error {
	var payload []byte
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal %s request: %w", path, err)
		}
		payload = b
	}

	for attempt := 0; ; attempt++ {
		err := p.do(ctx, method, path, payload, out)
		if err == nil {
			return nil
		}
		if attempt >= p.maxRetries || !isRetryable(ctx, err) {
			return err
		}

		wait := p.backoff * time.Duration(attempt+1)
		p.logger.Warn("provider call failed, retrying",
			"path", path,
			"attempt", attempt+1,
			"max_retries", p.maxRetries,
			"backoff_ms", wait.Milliseconds(),
			"error", err,
		)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}
}

func (p *HTTPProvider) do(ctx context.Context, method, path string, payload []byte, out any) error {
	var reqBody io.Reader
	if payload != nil {
		reqBody = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, p.baseURL+path, reqBody)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+p.token)
	req.Header.Set("X-Heimdex-Request-Id", uuid.NewString())

	start := time.Now()
	resp, err := p.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("http request failed: %w", err)
	}
	defer resp.Body.Close()

	p.logger.Debug("provider call",
		"method", method,
		"path", path,
		"status", resp.StatusCode,
		"duration_ms", time.Since(start).Milliseconds(),
		"body_bytes", len(payload),
	)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &StatusError{StatusCode: resp.StatusCode, Body: string(respBody)}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: decode %s: %v", ErrMalformedResponse, path, err)
	}
	return nil
}

func isRetryable(ctx context.Context, err error) bool {
	if ctx.Err() != nil {
		return false
	}
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return statusErr.IsRetryable()
	}
	if errors.Is(err, ErrMalformedResponse) {
		return false
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}
