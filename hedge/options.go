package hedge

import (
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

const (
	// scope is the instrumentation scope name for OpenTelemetry.
	scope = "github.com/kroma-labs/sentinel-hedge/hedge"
)

// internalConfig holds engine configuration assembled from options.
type internalConfig struct {
	// Logger receives per-race debug events and terminal failures.
	Logger zerolog.Logger

	TracerProvider trace.TracerProvider
	MeterProvider  metric.MeterProvider
	Tracer         trace.Tracer
	Meter          metric.Meter
	Metrics        *metrics

	// ServiceName labels metrics and spans.
	ServiceName string

	// Ledger, when set, is shared instead of creating a private one.
	Ledger *Ledger

	// LatencyWindow bounds the samples a private ledger keeps per provider.
	LatencyWindow int

	BreakerConfig   *BreakerConfig
	RateLimitConfig *RateLimitConfig
	Chaos           map[ProviderID]ChaosConfig
}

func newConfig(opts ...Option) *internalConfig {
	cfg := &internalConfig{
		Logger:         zerolog.Nop(),
		TracerProvider: otel.GetTracerProvider(),
		MeterProvider:  otel.GetMeterProvider(),
	}

	for _, opt := range opts {
		opt(cfg)
	}

	cfg.Tracer = cfg.TracerProvider.Tracer(scope)
	cfg.Meter = cfg.MeterProvider.Meter(scope)

	cfg.Metrics, _ = newMetrics(cfg.Meter)

	return cfg
}

// baseAttributes returns attributes common to every measurement.
func (cfg *internalConfig) baseAttributes() []attribute.KeyValue {
	attrs := make([]attribute.KeyValue, 0, 1)
	if cfg.ServiceName != "" {
		attrs = append(attrs, attribute.String("hedge.client.name", cfg.ServiceName))
	}
	return attrs
}

// Option configures an Engine.
type Option func(*internalConfig)

// WithLogger sets the zerolog logger. The default discards everything.
//
// Example:
//
//	logger := zerolog.New(os.Stderr).With().Timestamp().Logger()
//	engine := hedge.New(registry, hedge.WithLogger(logger))
func WithLogger(logger zerolog.Logger) Option {
	return func(cfg *internalConfig) {
		cfg.Logger = logger
	}
}

// WithServiceName sets the service name used in metric attributes and spans.
func WithServiceName(name string) Option {
	return func(cfg *internalConfig) {
		cfg.ServiceName = name
	}
}

// WithTracerProvider sets a custom TracerProvider.
// Default: otel.GetTracerProvider()
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(cfg *internalConfig) {
		cfg.TracerProvider = tp
	}
}

// WithMeterProvider sets a custom MeterProvider.
// Default: otel.GetMeterProvider()
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(cfg *internalConfig) {
		cfg.MeterProvider = mp
	}
}

// WithLedger makes the engine record into an existing ledger, so several
// engines can report one set of statistics.
func WithLedger(l *Ledger) Option {
	return func(cfg *internalConfig) {
		cfg.Ledger = l
	}
}

// WithLatencyWindow sets how many latency samples are kept per provider.
// Ignored when WithLedger is used.
//
// Default: 1024
func WithLatencyWindow(n int) Option {
	return func(cfg *internalConfig) {
		cfg.LatencyWindow = n
	}
}

// WithBreaker wraps every provider in its own circuit breaker.
//
// An open breaker fails the attempt immediately with gobreaker.ErrOpenState.
// The race treats that as a provider error and moves on; the launch order
// is unchanged.
//
// Example:
//
//	engine := hedge.New(registry,
//	    hedge.WithBreaker(hedge.DefaultBreakerConfig()),
//	)
func WithBreaker(bc BreakerConfig) Option {
	return func(cfg *internalConfig) {
		cfg.BreakerConfig = &bc
	}
}

// WithRateLimit gives every provider its own token bucket, for providers
// with per-key request quotas.
func WithRateLimit(rl RateLimitConfig) Option {
	return func(cfg *internalConfig) {
		cfg.RateLimitConfig = &rl
	}
}

// WithChaos injects latency, errors or hangs into calls to the given
// providers. Intended for demos and resilience tests.
func WithChaos(chaos map[ProviderID]ChaosConfig) Option {
	return func(cfg *internalConfig) {
		cfg.Chaos = chaos
	}
}
