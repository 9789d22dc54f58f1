package hedge

import (
	"fmt"
	"time"
)

// HedgeConfig controls how aggressively one race fans out.
//
// A HedgeConfig is a plain value: it is never mutated by a race and can be
// shared by any number of concurrent calls.
//
// Example usage:
//
//	cfg := hedge.HedgeConfig{
//	    InitialProviders: 1,                      // Race the first provider alone
//	    HedgeAfter:       50 * time.Millisecond,  // then widen after 50ms
//	    MaxProviders:     3,                      // to at most 3 providers
//	    OverallTimeout:   2 * time.Second,
//	}
//
// Best practices:
//   - Set HedgeAfter to the P95 latency of your fastest provider
//   - Keep InitialProviders at 1 when provider quotas are tight
//   - Use MinFreshness only for reads that must observe a recent slot
type HedgeConfig struct {
	// InitialProviders is how many providers are raced immediately.
	//
	// Set to 1 for conservative hedging (only hedge if the primary is slow),
	// or higher to race several providers from the start.
	InitialProviders int

	// HedgeAfter is how long the race waits for a winner before widening.
	//
	// Zero widens at once, which makes every race start with MaxProviders.
	HedgeAfter time.Duration

	// MaxProviders caps how many providers a single race may launch.
	MaxProviders int

	// MinFreshness, when set, rejects responses whose freshness marker
	// (for example a ledger slot) is below the threshold.
	MinFreshness *uint64

	// OverallTimeout is the hard ceiling for the whole race.
	// No winner is reported after it elapses.
	OverallTimeout time.Duration

	// WidenStep selects the widening schedule.
	//
	// 0 widens once, straight to MaxProviders, after HedgeAfter.
	// N > 0 launches N more providers at every multiple of HedgeAfter.
	//
	// Default: 0
	WidenStep int
}

// AtLeast returns a MinFreshness threshold.
//
//	cfg.MinFreshness = hedge.AtLeast(slot)
func AtLeast(marker uint64) *uint64 {
	return &marker
}

// DefaultHedgeConfig returns the balanced configuration for n providers:
//   - Races 1 provider immediately
//   - 80ms hedge delay, then every provider
//   - 2 second timeout
func DefaultHedgeConfig(n int) HedgeConfig {
	return HedgeConfig{
		InitialProviders: 1,
		HedgeAfter:       80 * time.Millisecond,
		MaxProviders:     n,
		OverallTimeout:   2 * time.Second,
	}
}

// LowLatencyHedgeConfig is optimized for minimal response time with
// moderate resource usage:
//   - Races 2 providers immediately
//   - 20ms hedge delay
//   - 1 second timeout
func LowLatencyHedgeConfig(n int) HedgeConfig {
	return HedgeConfig{
		InitialProviders: min(2, n),
		HedgeAfter:       20 * time.Millisecond,
		MaxProviders:     n,
		OverallTimeout:   1 * time.Second,
	}
}

// ConservativeHedgeConfig minimizes resource usage, only hedging if the
// primary provider is slow:
//   - Queries 1 provider initially
//   - 100ms hedge delay
//   - 3 second timeout
func ConservativeHedgeConfig(n int) HedgeConfig {
	return HedgeConfig{
		InitialProviders: 1,
		HedgeAfter:       100 * time.Millisecond,
		MaxProviders:     n,
		OverallTimeout:   3 * time.Second,
	}
}

// AggressiveHedgeConfig prioritizes latency over resource usage:
//   - Races 3 providers immediately
//   - 20ms hedge delay
//   - 1 second timeout
func AggressiveHedgeConfig(n int) HedgeConfig {
	return HedgeConfig{
		InitialProviders: min(3, n),
		HedgeAfter:       20 * time.Millisecond,
		MaxProviders:     n,
		OverallTimeout:   1 * time.Second,
	}
}

// Preset returns the named configuration for n providers.
// Known names are "default", "low-latency", "conservative" and "aggressive".
func Preset(name string, n int) (HedgeConfig, error) {
	switch name {
	case "", "default":
		return DefaultHedgeConfig(n), nil
	case "low-latency", "low_latency":
		return LowLatencyHedgeConfig(n), nil
	case "conservative":
		return ConservativeHedgeConfig(n), nil
	case "aggressive":
		return AggressiveHedgeConfig(n), nil
	default:
		return HedgeConfig{}, fmt.Errorf("%w: unknown preset %q", ErrInvalidConfig, name)
	}
}

// Validate checks the configuration against a registry of n providers.
func (c HedgeConfig) Validate(n int) error {
	switch {
	case n <= 0:
		return ErrNoProviders
	case c.InitialProviders < 1:
		return fmt.Errorf("%w: initial providers must be at least 1, got %d",
			ErrInvalidConfig, c.InitialProviders)
	case c.InitialProviders > c.MaxProviders:
		return fmt.Errorf("%w: initial providers (%d) exceed max providers (%d)",
			ErrInvalidConfig, c.InitialProviders, c.MaxProviders)
	case c.MaxProviders > n:
		return fmt.Errorf("%w: max providers (%d) exceed registered providers (%d)",
			ErrInvalidConfig, c.MaxProviders, n)
	case c.OverallTimeout <= 0:
		return fmt.Errorf("%w: overall timeout must be positive, got %s",
			ErrInvalidConfig, c.OverallTimeout)
	case c.HedgeAfter < 0:
		return fmt.Errorf("%w: hedge delay must not be negative, got %s",
			ErrInvalidConfig, c.HedgeAfter)
	case c.WidenStep < 0:
		return fmt.Errorf("%w: widen step must not be negative, got %d",
			ErrInvalidConfig, c.WidenStep)
	}
	return nil
}

// widenTarget returns how many providers should be in flight after the
// next widening, given that launched have been started so far.
func (c HedgeConfig) widenTarget(launched int) int {
	if c.WidenStep <= 0 {
		return c.MaxProviders
	}
	return min(launched+c.WidenStep, c.MaxProviders)
}
