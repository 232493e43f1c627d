package shopify

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/time/rate"
)

// Admin REST API leaky bucket: 40 requests, refilled at 2 per second per store
const (
	defaultRate  = rate.Limit(2)
	defaultBurst = 40
)

// RateLimiter keeps one token bucket per shop domain
type RateLimiter struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	rate     rate.Limit
	burst    int
}

// NewRateLimiter creates a limiter; non-positive values fall back to the Admin API defaults
func NewRateLimiter(r rate.Limit, burst int) *RateLimiter {
	if r <= 0 {
		r = defaultRate
	}
	if burst <= 0 {
		burst = defaultBurst
	}
	return &RateLimiter{
		limiters: make(map[string]*rate.Limiter),
		rate:     r,
		burst:    burst,
	}
}

func (rl *RateLimiter) limiter(shopDomain string) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	l, ok := rl.limiters[shopDomain]
	if !ok {
		l = rate.NewLimiter(rl.rate, rl.burst)
		rl.limiters[shopDomain] = l
	}
	return l
}

// Wait blocks until a request for shopDomain may proceed or ctx is done
func (rl *RateLimiter) Wait(ctx context.Context, shopDomain string) error {
	if err := rl.limiter(shopDomain).Wait(ctx); err != nil {
		return fmt.Errorf("rate limit wait for %s: %w", shopDomain, err)
	}
	return nil
}
