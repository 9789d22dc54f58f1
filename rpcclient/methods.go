package rpcclient

import (
	"context"
	"sync"

	"github.com/kroma-labs/sentinel-hedge/hedge"
)

// Pool holds one Client per provider and builds hedge operations for the
// Solana methods this package knows.
//
// All clients share one HTTP transport, so connections to every provider
// stay warm between races.
type Pool struct {
	cfg *internalConfig

	mu      sync.RWMutex
	clients map[hedge.ProviderID]*Client
}

// NewPool creates clients for providers.
func NewPool(providers []hedge.ProviderConfig, opts ...Option) *Pool {
	return newPool(providers, newConfig(opts...))
}

func newPool(providers []hedge.ProviderConfig, cfg *internalConfig) *Pool {
	p := &Pool{
		cfg:     cfg,
		clients: make(map[hedge.ProviderID]*Client, len(providers)),
	}
	for _, pc := range providers {
		p.clients[pc.ID] = newClient(pc.Endpoint, cfg)
	}
	return p
}

// Client returns the client for pc, creating one if the provider is new
// or its endpoint changed.
func (p *Pool) Client(pc hedge.ProviderConfig) *Client {
	p.mu.RLock()
	c, ok := p.clients[pc.ID]
	p.mu.RUnlock()
	if ok && c.endpoint == pc.Endpoint {
		return c
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	c = newClient(pc.Endpoint, p.cfg)
	p.clients[pc.ID] = c
	return c
}

// GetSlot returns an operation for getSlot. The slot is its own freshness.
func (p *Pool) GetSlot(commitment Commitment) hedge.Operation[uint64] {
	params := []any{commitmentConfig(commitment, nil)}
	return func(ctx context.Context, pc hedge.ProviderConfig) (hedge.Response[uint64], error) {
		var slot uint64
		if err := p.Client(pc).Call(ctx, "getSlot", params, &slot); err != nil {
			return hedge.Response[uint64]{}, err
		}
		return hedge.Response[uint64]{Value: slot, Freshness: slot}, nil
	}
}

// GetLatestBlockhash returns an operation for getLatestBlockhash.
func (p *Pool) GetLatestBlockhash(commitment Commitment) hedge.Operation[Blockhash] {
	params := []any{commitmentConfig(commitment, nil)}
	return contextual[Blockhash](p, "getLatestBlockhash", params)
}

// GetAccountInfo returns an operation for getAccountInfo. A missing account
// is a successful response with a nil value.
func (p *Pool) GetAccountInfo(pubkey string, commitment Commitment) hedge.Operation[*Account] {
	params := []any{pubkey, commitmentConfig(commitment, map[string]any{"encoding": "base64"})}
	return contextual[*Account](p, "getAccountInfo", params)
}

// GetBalance returns an operation for getBalance, in lamports.
func (p *Pool) GetBalance(pubkey string, commitment Commitment) hedge.Operation[uint64] {
	params := []any{pubkey, commitmentConfig(commitment, nil)}
	return contextual[uint64](p, "getBalance", params)
}

// GetHealth returns an operation for getHealth. Unhealthy nodes answer
// with an RPC error. The response carries no freshness.
func (p *Pool) GetHealth() hedge.Operation[string] {
	return func(ctx context.Context, pc hedge.ProviderConfig) (hedge.Response[string], error) {
		var status string
		if err := p.Client(pc).Call(ctx, "getHealth", nil, &status); err != nil {
			return hedge.Response[string]{}, err
		}
		return hedge.Response[string]{Value: status}, nil
	}
}

// contextual builds an operation for a method whose result is
// {context: {slot}, value}. The context slot becomes the freshness.
func contextual[T any](p *Pool, method string, params []any) hedge.Operation[T] {
	return func(ctx context.Context, pc hedge.ProviderConfig) (hedge.Response[T], error) {
		var res ContextResult[T]
		if err := p.Client(pc).Call(ctx, method, params, &res); err != nil {
			return hedge.Response[T]{}, err
		}
		return hedge.Response[T]{Value: res.Value, Freshness: res.Context.Slot}, nil
	}
}
