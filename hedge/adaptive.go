package hedge

import "time"

// AdaptiveDelay derives HedgeAfter from the latencies recorded in a Ledger,
// so the hedge fires once the initial providers are slower than they usually
// are instead of after a hand-tuned constant.
//
// Example usage:
//
//	ad := hedge.DefaultAdaptiveDelay()
//	cfg = ad.Apply(engine, cfg)
//	res, err := hedge.Race(ctx, engine, cfg, op)
//
// Until a provider has MinSamples samples, the configured HedgeAfter is kept.
type AdaptiveDelay struct {
	// TargetPercentile is the latency percentile to hedge after (0-1).
	//
	// Default: 0.95
	TargetPercentile float64

	// MinSamples is how many samples a provider needs before it is used.
	//
	// Default: 10
	MinSamples int

	// Floor and Ceiling clamp the derived delay.
	//
	// Default: 5ms and 1s
	Floor   time.Duration
	Ceiling time.Duration
}

// DefaultAdaptiveDelay hedges after the P95 of the initial providers.
func DefaultAdaptiveDelay() AdaptiveDelay {
	return AdaptiveDelay{
		TargetPercentile: 0.95,
		MinSamples:       10,
		Floor:            5 * time.Millisecond,
		Ceiling:          time.Second,
	}
}

// Delay returns the smallest TargetPercentile latency among ids with enough
// samples, clamped to [Floor, Ceiling]. ok is false when no provider
// qualifies.
func (a AdaptiveDelay) Delay(snap map[ProviderID]ProviderStats, ids []ProviderID) (time.Duration, bool) {
	var (
		best  time.Duration
		found bool
	)
	for _, id := range ids {
		s, ok := snap[id]
		if !ok || len(s.LatencySamples) < max(a.MinSamples, 1) {
			continue
		}
		d := s.Percentile(a.TargetPercentile)
		if !found || d < best {
			best, found = d, true
		}
	}
	if !found {
		return 0, false
	}
	if a.Floor > 0 {
		best = max(best, a.Floor)
	}
	if a.Ceiling > 0 {
		best = min(best, a.Ceiling)
	}
	return best, true
}

// Apply returns cfg with HedgeAfter derived from e's ledger, looking at the
// providers cfg launches first. cfg is returned unchanged without samples.
func (a AdaptiveDelay) Apply(e *Engine, cfg HedgeConfig) HedgeConfig {
	if e.registry == nil {
		return cfg
	}
	ids := e.registry.IDs()
	if n := cfg.InitialProviders; n > 0 && n < len(ids) {
		ids = ids[:n]
	}
	if d, ok := a.Delay(e.ledger.Snapshot(), ids); ok {
		cfg.HedgeAfter = d
	}
	return cfg
}
