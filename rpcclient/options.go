package rpcclient

import (
	"net"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"

	"github.com/kroma-labs/sentinel-hedge/hedge"
)

const (
	// scope is the instrumentation scope name for OpenTelemetry.
	scope = "github.com/kroma-labs/sentinel-hedge/rpcclient"
)

// Config holds the HTTP transport settings shared by every provider client.
//
// Example:
//
//	cfg := rpcclient.DefaultConfig()
//	cfg.MaxIdleConnsPerHost = 64
//
//	client := rpcclient.NewClient(url, rpcclient.WithConfig(cfg))
type Config struct {
	// Timeout bounds a single HTTP call. The hedge deadline usually ends a
	// call first; this only guards direct use of Client.
	//
	// Default: 10s
	Timeout time.Duration

	// MaxIdleConnsPerHost keeps warm connections to each provider so a
	// hedged launch does not pay for a new TLS handshake.
	//
	// Default: 32
	MaxIdleConnsPerHost int

	// IdleConnTimeout is how long idle connections are kept.
	//
	// Default: 90s
	IdleConnTimeout time.Duration

	// DialTimeout bounds TCP connection establishment.
	//
	// Default: 2s
	DialTimeout time.Duration

	// KeepAlive is the TCP keep-alive period.
	//
	// Default: 30s
	KeepAlive time.Duration

	// TLSHandshakeTimeout bounds the TLS handshake.
	//
	// Default: 5s
	TLSHandshakeTimeout time.Duration

	// MaxResponseBytes caps how much of a response body is read.
	//
	// Default: 16MiB
	MaxResponseBytes int64
}

// DefaultConfig returns transport settings tuned for latency-sensitive RPC.
func DefaultConfig() Config {
	return Config{
		Timeout:             10 * time.Second,
		MaxIdleConnsPerHost: 32,
		IdleConnTimeout:     90 * time.Second,
		DialTimeout:         2 * time.Second,
		KeepAlive:           30 * time.Second,
		TLSHandshakeTimeout: 5 * time.Second,
		MaxResponseBytes:    16 << 20,
	}
}

func (c Config) buildTransport() *http.Transport {
	dialer := &net.Dialer{
		Timeout:   c.DialTimeout,
		KeepAlive: c.KeepAlive,
	}

	return &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		DialContext:         dialer.DialContext,
		MaxIdleConns:        c.MaxIdleConnsPerHost * 4,
		MaxIdleConnsPerHost: c.MaxIdleConnsPerHost,
		IdleConnTimeout:     c.IdleConnTimeout,
		TLSHandshakeTimeout: c.TLSHandshakeTimeout,
		ForceAttemptHTTP2:   true,
	}
}

// internalConfig holds client configuration assembled from options.
type internalConfig struct {
	httpConfig Config
	HTTPClient *http.Client
	Headers    map[string]string

	Logger      zerolog.Logger
	ServiceName string

	TracerProvider trace.TracerProvider
	MeterProvider  metric.MeterProvider
	Tracer         trace.Tracer
	Propagator     propagation.TextMapPropagator
	Metrics        *metrics

	// EngineOptions are passed through to hedge.New by NewHedgedClient.
	EngineOptions []hedge.Option

	// Adaptive, when set, derives HedgeAfter from recorded latencies.
	Adaptive *hedge.AdaptiveDelay
}

func newConfig(opts ...Option) *internalConfig {
	cfg := &internalConfig{
		httpConfig:     DefaultConfig(),
		Headers:        map[string]string{},
		Logger:         zerolog.Nop(),
		TracerProvider: otel.GetTracerProvider(),
		MeterProvider:  otel.GetMeterProvider(),
		Propagator: propagation.NewCompositeTextMapPropagator(
			propagation.TraceContext{},
			propagation.Baggage{},
		),
	}

	for _, opt := range opts {
		opt(cfg)
	}

	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{
			Transport: cfg.httpConfig.buildTransport(),
			Timeout:   cfg.httpConfig.Timeout,
		}
	}

	cfg.Tracer = cfg.TracerProvider.Tracer(scope)
	cfg.Metrics, _ = newMetrics(cfg.MeterProvider.Meter(scope))

	return cfg
}

// baseAttributes returns attributes common to every span and measurement.
func (cfg *internalConfig) baseAttributes() []attribute.KeyValue {
	attrs := make([]attribute.KeyValue, 0, 2)
	attrs = append(attrs, attribute.String("rpc.system", "jsonrpc"))
	if cfg.ServiceName != "" {
		attrs = append(attrs, attribute.String("rpc.client.name", cfg.ServiceName))
	}
	return attrs
}

// engineOptions returns the options for the hedge engine, inheriting the
// client's logger, providers and service name.
func (cfg *internalConfig) engineOptions() []hedge.Option {
	opts := []hedge.Option{
		hedge.WithLogger(cfg.Logger),
		hedge.WithTracerProvider(cfg.TracerProvider),
		hedge.WithMeterProvider(cfg.MeterProvider),
	}
	if cfg.ServiceName != "" {
		opts = append(opts, hedge.WithServiceName(cfg.ServiceName))
	}
	return append(opts, cfg.EngineOptions...)
}

// Option configures a Client or HedgedClient.
type Option func(*internalConfig)

// WithConfig sets the HTTP transport settings. Ignored with WithHTTPClient.
func WithConfig(c Config) Option {
	return func(cfg *internalConfig) {
		cfg.httpConfig = c
	}
}

// WithHTTPClient uses a caller-provided http.Client.
func WithHTTPClient(c *http.Client) Option {
	return func(cfg *internalConfig) {
		cfg.HTTPClient = c
	}
}

// WithHeader adds a header to every request, e.g. a provider API key.
func WithHeader(key, value string) Option {
	return func(cfg *internalConfig) {
		cfg.Headers[key] = value
	}
}

// WithLogger sets the zerolog logger. The default discards everything.
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

// WithEngineOptions passes options such as hedge.WithBreaker or
// hedge.WithRateLimit to the engine built by NewHedgedClient.
func WithEngineOptions(opts ...hedge.Option) Option {
	return func(cfg *internalConfig) {
		cfg.EngineOptions = append(cfg.EngineOptions, opts...)
	}
}

// WithAdaptiveDelay makes HedgedClient derive HedgeAfter from each
// provider's recorded latencies before every race.
//
// Example:
//
//	client, err := rpcclient.NewHedgedClient(providers, cfg,
//	    rpcclient.WithAdaptiveDelay(hedge.DefaultAdaptiveDelay()),
//	)
func WithAdaptiveDelay(ad hedge.AdaptiveDelay) Option {
	return func(cfg *internalConfig) {
		cfg.Adaptive = &ad
	}
}
