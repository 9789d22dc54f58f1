package hedge

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	gobreaker "github.com/sony/gobreaker/v2"
	gobreakerredis "github.com/sony/gobreaker/v2/redis"
)

// NewRedisStore creates a SharedDataStore backed by Redis, so breaker state
// is shared by every process hedging against the same providers.
//
// Usage:
//
//	rdb := redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{"localhost:6379"}})
//	engine := hedge.New(registry,
//	    hedge.WithBreaker(hedge.DistributedBreakerConfig(hedge.NewRedisStore(rdb))),
//	)
func NewRedisStore(client redis.UniversalClient) gobreaker.SharedDataStore {
	return gobreakerredis.NewStoreFromClient(client)
}

// BreakerClassifier reports whether a provider error should count against
// the provider's breaker.
type BreakerClassifier func(err error) bool

// BreakerConfig holds the per-provider circuit breaker configuration.
//
// Concepts:
//   - Closed: Normal state, calls allowed.
//   - Open: Failing state, calls rejected immediately.
//   - Half-Open: Probing state, limited calls allowed to test recovery.
type BreakerConfig struct {
	// MaxRequests is the maximum number of calls allowed through while
	// half-open. If 0, the breaker allows 1 call.
	MaxRequests uint32

	// Interval is the cyclic period of the closed state after which
	// counts are cleared. If 0, counts are never cleared while closed.
	Interval time.Duration

	// Timeout is the period of the open state, after which the breaker
	// becomes half-open.
	Timeout time.Duration

	// FailureThreshold is the minimum number of calls before the breaker
	// may trip.
	FailureThreshold uint32

	// FailureRatio trips the breaker when failures/requests reaches it.
	FailureRatio float64

	// ConsecutiveFailures trips the breaker after this many failures in a row.
	// If 0, this rule is disabled.
	ConsecutiveFailures uint32

	// Store shares breaker state across processes. If nil, breakers are local.
	Store gobreaker.SharedDataStore

	// Classifier decides which errors count as failures.
	// Default: DefaultBreakerClassifier
	Classifier BreakerClassifier

	// OnStateChange is invoked when a provider's breaker changes state.
	OnStateChange func(name string, from, to gobreaker.State)
}

// DefaultBreakerConfig returns a local breaker configuration:
//   - Interval: 10s
//   - Timeout: 10s
//   - FailureThreshold: 20
//   - FailureRatio: 0.5
//   - ConsecutiveFailures: 5
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		MaxRequests:         1,
		Interval:            10 * time.Second,
		Timeout:             10 * time.Second,
		FailureThreshold:    20,
		FailureRatio:        0.5,
		ConsecutiveFailures: 5,
		Classifier:          DefaultBreakerClassifier,
	}
}

// DistributedBreakerConfig returns DefaultBreakerConfig backed by store.
func DistributedBreakerConfig(store gobreaker.SharedDataStore) BreakerConfig {
	cfg := DefaultBreakerConfig()
	cfg.Store = store
	return cfg
}

// DefaultBreakerClassifier counts every error except cancellation.
// Cancelled calls are excluded from the breaker counts altogether: losers of
// a race are cancelled on purpose and neither trip nor heal their breaker.
func DefaultBreakerClassifier(err error) bool {
	if err == nil {
		return false
	}
	return !errors.Is(err, context.Canceled)
}

// circuitBreaker matches both gobreaker breaker flavours.
type circuitBreaker interface {
	Execute(req func() (struct{}, error)) (struct{}, error)
}

// newBreakers builds one breaker per provider, named "<service>/<provider>".
func newBreakers(ids []ProviderID, cfg *internalConfig) map[ProviderID]circuitBreaker {
	if cfg.BreakerConfig == nil {
		return nil
	}
	bc := *cfg.BreakerConfig
	if bc.Classifier == nil {
		bc.Classifier = DefaultBreakerClassifier
	}

	prefix := cfg.ServiceName
	if prefix == "" {
		prefix = "hedge"
	}

	breakers := make(map[ProviderID]circuitBreaker, len(ids))
	for _, id := range ids {
		st := gobreaker.Settings{
			Name:        prefix + "/" + string(id),
			MaxRequests: bc.MaxRequests,
			Interval:    bc.Interval,
			Timeout:     bc.Timeout,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				requests := counts.Requests - min(counts.TotalExclusions, counts.Requests)
				if bc.FailureThreshold > 0 && requests < bc.FailureThreshold {
					return false
				}
				if bc.ConsecutiveFailures > 0 &&
					counts.ConsecutiveFailures >= bc.ConsecutiveFailures {
					return true
				}
				if bc.FailureRatio > 0 && counts.TotalFailures > 0 {
					ratio := float64(counts.TotalFailures) / float64(max(requests, 1))
					if ratio >= bc.FailureRatio {
						return true
					}
				}
				return false
			},
			IsSuccessful: func(err error) bool {
				return !bc.Classifier(err)
			},
			IsExcluded: func(err error) bool {
				return errors.Is(err, context.Canceled)
			},
			OnStateChange: func(name string, from, to gobreaker.State) {
				cfg.Metrics.recordBreakerState(context.Background(), name, int64(to))
				cfg.Logger.Warn().
					Str("breaker", name).
					Str("from", from.String()).
					Str("to", to.String()).
					Msg("circuit breaker state changed")
				if bc.OnStateChange != nil {
					bc.OnStateChange(name, from, to)
				}
			},
		}

		if bc.Store != nil {
			dcb, err := gobreaker.NewDistributedCircuitBreaker[struct{}](bc.Store, st)
			if err == nil {
				breakers[id] = dcb
				continue
			}
			// A local breaker still protects this process.
			cfg.Logger.Warn().Err(err).Str("provider", string(id)).
				Msg("distributed breaker unavailable, using local breaker")
		}
		breakers[id] = gobreaker.NewCircuitBreaker[struct{}](st)
	}
	return breakers
}
