// Package ratelimit spaces out requests to the same host.
package ratelimit

import (
	"context"
	"fmt"
	"net/url"
	"sync"

	"golang.org/x/time/rate"
)

// HostLimiter keeps one token bucket per hostname, so reference pages on
// the same site are fetched politely while different sites do not block
// each other.
type HostLimiter struct {
	mu    sync.Mutex
	m     map[string]*rate.Limiter
	limit rate.Limit
	burst int
}

// NewHostLimiter allows reqPerSec requests per host with the given burst.
// reqPerSec <= 0 disables limiting.
func NewHostLimiter(reqPerSec float64, burst int) *HostLimiter {
	limit := rate.Limit(reqPerSec)
	if reqPerSec <= 0 {
		limit = rate.Inf
	}
	if burst < 1 {
		burst = 1
	}
	return &HostLimiter{
		m:     make(map[string]*rate.Limiter),
		limit: limit,
		burst: burst,
	}
}

func (hl *HostLimiter) limiterFor(host string) *rate.Limiter {
	hl.mu.Lock()
	defer hl.mu.Unlock()

	if lim, ok := hl.m[host]; ok {
		return lim
	}
	lim := rate.NewLimiter(hl.limit, hl.burst)
	hl.m[host] = lim
	return lim
}

// Wait blocks until a request to host may proceed.
// Returns an error if the context is cancelled while waiting.
func (hl *HostLimiter) Wait(ctx context.Context, host string) error {
	if err := hl.limiterFor(host).Wait(ctx); err != nil {
		return fmt.Errorf("rate limiter wait for %s: %w", host, err)
	}
	return nil
}

// WaitURL is Wait keyed by the host of raw. Unparseable URLs share one bucket.
func (hl *HostLimiter) WaitURL(ctx context.Context, raw string) error {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return hl.Wait(ctx, "_")
	}
	return hl.Wait(ctx, u.Host)
}
