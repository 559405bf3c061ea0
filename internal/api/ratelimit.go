package api

import (
	"context"
	"log/slog"
	"sync"

	"golang.org/x/time/rate"
)

// RateLimiterPool manages per-host rate limiters. The client normally talks
// to one date-service host, but staging setups point individual endpoints
// at mirrors, so limits stay keyed by host.
type RateLimiterPool struct {
	limiters map[string]*rate.Limiter
	rates    map[string]int // original rates, for consistency checks
	mu       sync.RWMutex
}

// NewRateLimiterPool creates an empty pool.
func NewRateLimiterPool() *RateLimiterPool {
	return &RateLimiterPool{
		limiters: make(map[string]*rate.Limiter),
		rates:    make(map[string]int),
	}
}

// GetOrCreate returns the limiter for a host, creating it on first use.
// If a limiter exists with a different rate the existing one wins.
func (p *RateLimiterPool) GetOrCreate(host string, requestsPerMinute int) *rate.Limiter {
	p.mu.Lock()
	defer p.mu.Unlock()

	if limiter, exists := p.limiters[host]; exists {
		if existing, ok := p.rates[host]; ok && existing != requestsPerMinute {
			slog.Warn("Rate limiter already exists with different rate, using existing rate",
				"host", host,
				"existing_rpm", existing,
				"requested_rpm", requestsPerMinute)
		}
		return limiter
	}

	rps := float64(requestsPerMinute) / 60.0
	burst := max(5, requestsPerMinute/5)
	limiter := rate.NewLimiter(rate.Limit(rps), burst)
	p.limiters[host] = limiter
	p.rates[host] = requestsPerMinute

	slog.Debug("Created rate limiter", "host", host, "rpm", requestsPerMinute, "burst", burst)
	return limiter
}

// Wait blocks until the host's limiter allows the next request.
func (p *RateLimiterPool) Wait(ctx context.Context, host string, requestsPerMinute int) error {
	limiter := p.GetOrCreate(host, requestsPerMinute)
	return limiter.Wait(ctx)
}
