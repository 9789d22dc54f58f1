// Package hedge races a logical RPC call across redundant providers and
// returns the first acceptable response.
//
// A race starts with a fixed prefix of the provider registry, widens the
// fan-out when nobody has answered within HedgeAfter, rejects responses that
// are staler than MinFreshness, and gives up at OverallTimeout. Losers are
// abandoned: their context is cancelled and their results are never observed.
//
// # Quick Start
//
//	registry, err := hedge.NewRegistry([]hedge.ProviderConfig{
//	    {ID: "helius", Endpoint: "https://mainnet.helius-rpc.com"},
//	    {ID: "triton", Endpoint: "https://triton.example.com"},
//	})
//	if err != nil {
//	    return err
//	}
//
//	engine := hedge.New(registry,
//	    hedge.WithServiceName("wallet-api"),
//	    hedge.WithLogger(logger),
//	)
//
//	res, err := hedge.Race(ctx, engine, hedge.LowLatencyHedgeConfig(registry.Len()),
//	    func(ctx context.Context, p hedge.ProviderConfig) (hedge.Response[uint64], error) {
//	        slot, err := fetchSlot(ctx, p.Endpoint)
//	        return hedge.Response[uint64]{Value: slot, Freshness: slot}, err
//	    },
//	)
//
// # Widening Schedule
//
// With WidenStep == 0 (the default) a race widens once, straight from
// InitialProviders to MaxProviders, after HedgeAfter. With WidenStep > 0 it
// launches WidenStep more providers at every multiple of HedgeAfter until
// MaxProviders are in flight. If every launched provider has already failed
// and some remain unlaunched, the next widening happens immediately.
//
// # Tie-break
//
// When two providers complete within the same scheduling quantum, the one
// whose completion the race loop receives first wins. This is not
// deterministic and is not a bug.
//
// # Statistics
//
// Every launch increments Attempts and every observed terminal outcome
// increments exactly one of Wins or Errors. Abandoned attempts keep their
// Attempts count and never reach Wins or Errors, so Wins+Errors <= Attempts
// always holds.
//
// # Observability
//
// Metrics:
//   - hedge.race.duration (histogram)
//   - hedge.race.outcome (counter)
//   - hedge.provider.attempts, hedge.provider.wins, hedge.provider.errors (counters)
//   - hedge.provider.latency (histogram)
//   - hedge.widenings (counter)
//   - hedge.breaker.requests (counter), hedge.breaker.state (gauge)
//
// Traces:
//   - One hedge.race span per call with launch, widen, provider_error and
//     win events
package hedge
