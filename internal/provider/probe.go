package provider

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

const defaultProbeTTL = 5 * time.Minute

// CachedProbe caches provider health results so status polling does not hit
// the backend on every request.
type CachedProbe struct {
	provider Provider
	ttl      time.Duration
	logger   *slog.Logger

	mu     sync.RWMutex
	cached *Health
}

func NewCachedProbe(p Provider, logger *slog.Logger) *CachedProbe {
	return &CachedProbe{
		provider: p,
		ttl:      defaultProbeTTL,
		logger:   logger,
	}
}

// Get returns the cached health if fresh, otherwise re-probes.
func (c *CachedProbe) Get(ctx context.Context) (*Health, error) {
	c.mu.RLock()
	if c.cached != nil && time.Since(c.cached.ProbedAt) < c.ttl {
		h := c.cached
		c.mu.RUnlock()
		return h, nil
	}
	c.mu.RUnlock()

	return c.Refresh(ctx)
}

func (c *CachedProbe) Peek() *Health {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.cached
}

// Refresh forces a new probe. A failed probe falls back to a stale cache.
func (c *CachedProbe) Refresh(ctx context.Context) (*Health, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	h, err := c.provider.Health(ctx)
	if err != nil {
		c.logger.Warn("provider probe failed", "error", err)
		if c.cached != nil {
			c.logger.Info("returning stale provider health")
			return c.cached, nil
		}
		return nil, err
	}

	c.cached = h
	return h, nil
}

func (c *CachedProbe) Invalidate() {
	c.mu.Lock()
	c.cached = nil
	c.mu.Unlock()
}
