package hedge

import (
	"context"
	"errors"
	"math/rand/v2"
	"time"
)

// ErrChaosInjected is returned when chaos injection simulates a provider error.
var ErrChaosInjected = errors.New("chaos: simulated provider error")

// ChaosConfig simulates a misbehaving provider.
//
// Example usage:
//
//	engine := hedge.New(registry,
//	    hedge.WithChaos(map[hedge.ProviderID]hedge.ChaosConfig{
//	        "helius": {Latency: 200 * time.Millisecond}, // a slow provider
//	        "triton": {ErrorRate: 0.3},                  // a flaky one
//	    }),
//	)
type ChaosConfig struct {
	// Latency is added to every call.
	Latency time.Duration

	// LatencyJitter adds a random delay in [0, LatencyJitter) on top of Latency.
	LatencyJitter time.Duration

	// ErrorRate is the probability (0.0-1.0) that a call fails with
	// ErrChaosInjected after the delay.
	ErrorRate float64

	// HangRate is the probability (0.0-1.0) that a call blocks until its
	// context is done.
	HangRate float64
}

// Delay returns the total delay to apply, including jitter.
func (c ChaosConfig) Delay() time.Duration {
	delay := c.Latency
	if c.LatencyJitter > 0 {
		delay += time.Duration(rand.Int64N(int64(c.LatencyJitter))) //nolint:gosec
	}
	return delay
}

// ShouldInjectError returns true if an error should be injected based on ErrorRate.
func (c ChaosConfig) ShouldInjectError() bool {
	if c.ErrorRate <= 0 {
		return false
	}
	return rand.Float64() < c.ErrorRate //nolint:gosec
}

// ShouldHang returns true if the call should block based on HangRate.
func (c ChaosConfig) ShouldHang() bool {
	if c.HangRate <= 0 {
		return false
	}
	return rand.Float64() < c.HangRate //nolint:gosec
}

// inject applies the chaos before a call. A non-nil error replaces the call.
func (c ChaosConfig) inject(ctx context.Context) error {
	if c.ShouldHang() {
		<-ctx.Done()
		return ctx.Err()
	}

	if delay := c.Delay(); delay > 0 {
		t := time.NewTimer(delay)
		defer t.Stop()
		select {
		case <-t.C:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	if c.ShouldInjectError() {
		return ErrChaosInjected
	}
	return nil
}
