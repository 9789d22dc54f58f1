package rpcclient

import (
	"context"
	"fmt"
	"time"

	"github.com/kroma-labs/sentinel-hedge/hedge"
)

// StatsSummary condenses a provider's ledger record for display.
type StatsSummary struct {
	Wins       uint64
	Attempts   uint64
	Errors     uint64
	AvgLatency time.Duration
}

// HedgedClient races Solana RPC calls across several providers.
//
// Every call uses the client's HedgeConfig; GetAccountFresh adds a
// freshness threshold on top of it. Provider statistics accumulate for the
// client's lifetime and are shared by all methods.
type HedgedClient struct {
	engine   *hedge.Engine
	pool     *Pool
	config   hedge.HedgeConfig
	adaptive *hedge.AdaptiveDelay
}

// NewHedgedClient validates providers and cfg and builds the engine.
//
// Example:
//
//	client, err := rpcclient.NewHedgedClient(providers, hedge.DefaultHedgeConfig(len(providers)),
//	    rpcclient.WithLogger(logger),
//	    rpcclient.WithEngineOptions(hedge.WithBreaker(hedge.DefaultBreakerConfig())),
//	)
func NewHedgedClient(
	providers []hedge.ProviderConfig,
	cfg hedge.HedgeConfig,
	opts ...Option,
) (*HedgedClient, error) {
	registry, err := hedge.NewRegistry(providers)
	if err != nil {
		return nil, fmt.Errorf("rpcclient: %w", err)
	}
	if err := cfg.Validate(registry.Len()); err != nil {
		return nil, fmt.Errorf("rpcclient: %w", err)
	}

	icfg := newConfig(opts...)
	return &HedgedClient{
		engine:   hedge.New(registry, icfg.engineOptions()...),
		pool:     newPool(registry.List(), icfg),
		config:   cfg,
		adaptive: icfg.Adaptive,
	}, nil
}

// Do races a custom operation, typically built from Pool().
func Do[T any](ctx context.Context, c *HedgedClient, op hedge.Operation[T]) (hedge.Result[T], error) {
	return hedge.Race(ctx, c.engine, c.raceConfig(), op)
}

// raceConfig returns the configuration for the next race.
func (c *HedgedClient) raceConfig() hedge.HedgeConfig {
	if c.adaptive == nil {
		return c.config
	}
	return c.adaptive.Apply(c.engine, c.config)
}

// GetLatestBlockhash races getLatestBlockhash.
func (c *HedgedClient) GetLatestBlockhash(
	ctx context.Context,
	commitment Commitment,
) (hedge.Result[Blockhash], error) {
	return Do(ctx, c, c.pool.GetLatestBlockhash(commitment))
}

// GetAccount races getAccountInfo. A missing account yields a nil Value.
func (c *HedgedClient) GetAccount(
	ctx context.Context,
	pubkey string,
	commitment Commitment,
) (hedge.Result[*Account], error) {
	return Do(ctx, c, c.pool.GetAccountInfo(pubkey, commitment))
}

// GetAccountFresh races getAccountInfo, rejecting responses served below
// minSlot. Lagging providers count as failures and the race continues.
func (c *HedgedClient) GetAccountFresh(
	ctx context.Context,
	pubkey string,
	commitment Commitment,
	minSlot uint64,
) (hedge.Result[*Account], error) {
	cfg := c.raceConfig()
	cfg.MinFreshness = hedge.AtLeast(minSlot)
	return hedge.Race(ctx, c.engine, cfg, c.pool.GetAccountInfo(pubkey, commitment))
}

// GetSlot races getSlot.
func (c *HedgedClient) GetSlot(ctx context.Context, commitment Commitment) (hedge.Result[uint64], error) {
	return Do(ctx, c, c.pool.GetSlot(commitment))
}

// GetBalance races getBalance.
func (c *HedgedClient) GetBalance(
	ctx context.Context,
	pubkey string,
	commitment Commitment,
) (hedge.Result[uint64], error) {
	return Do(ctx, c, c.pool.GetBalance(pubkey, commitment))
}

// ProviderStats summarises each provider's statistics.
func (c *HedgedClient) ProviderStats() map[hedge.ProviderID]StatsSummary {
	snap := c.engine.Snapshot()
	out := make(map[hedge.ProviderID]StatsSummary, len(snap))
	for id, s := range snap {
		out[id] = StatsSummary{
			Wins:       s.Wins,
			Attempts:   s.Attempts,
			Errors:     s.Errors,
			AvgLatency: s.AvgLatency(),
		}
	}
	return out
}

// ResetStats zeroes every provider's statistics.
func (c *HedgedClient) ResetStats() {
	c.engine.ResetStats()
}

// Providers returns the providers in launch order.
func (c *HedgedClient) Providers() []hedge.ProviderConfig {
	return c.engine.Registry().List()
}

// Config returns the hedge configuration the next call will use, with the
// adaptive delay applied if one is configured.
func (c *HedgedClient) Config() hedge.HedgeConfig {
	return c.raceConfig()
}

// Engine returns the underlying engine.
func (c *HedgedClient) Engine() *hedge.Engine {
	return c.engine
}

// Pool returns the per-provider clients.
func (c *HedgedClient) Pool() *Pool {
	return c.pool
}
