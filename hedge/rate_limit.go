package hedge

import (
	"context"
	"errors"

	"golang.org/x/time/rate"
)

// ErrRateLimited is returned when a provider call is refused by its rate limiter.
var ErrRateLimited = errors.New("hedge: provider rate limit exceeded")

// RateLimitConfig configures a token bucket per provider.
type RateLimitConfig struct {
	// RequestsPerSecond is the maximum sustained call rate per provider.
	RequestsPerSecond float64

	// Burst is the maximum number of calls allowed in a burst.
	Burst int

	// WaitOnLimit makes an attempt wait for a token (bounded by the race
	// deadline). If false, the attempt fails at once with ErrRateLimited.
	WaitOnLimit bool
}

// DefaultRateLimitConfig returns 50 calls per second with a burst of 10.
func DefaultRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{
		RequestsPerSecond: 50,
		Burst:             10,
		WaitOnLimit:       true,
	}
}

// newLimiters builds one limiter per provider.
func newLimiters(ids []ProviderID, rl *RateLimitConfig) map[ProviderID]*rate.Limiter {
	if rl == nil || rl.RequestsPerSecond <= 0 {
		return nil
	}
	burst := max(rl.Burst, 1)

	limiters := make(map[ProviderID]*rate.Limiter, len(ids))
	for _, id := range ids {
		limiters[id] = rate.NewLimiter(rate.Limit(rl.RequestsPerSecond), burst)
	}
	return limiters
}

// acquire takes a token for one call or reports why it cannot.
func acquire(ctx context.Context, limiter *rate.Limiter, wait bool) error {
	if limiter == nil {
		return nil
	}

	if !wait {
		if !limiter.Allow() {
			return ErrRateLimited
		}
		return nil
	}

	if err := limiter.Wait(ctx); err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			return err
		}
		// Wait fails up front when the deadline is closer than the next token.
		return ErrRateLimited
	}
	return nil
}
