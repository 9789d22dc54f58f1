package hedge

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// metrics holds the metric instruments for hedged races.
type metrics struct {
	// === Race Metrics ===

	// raceDuration measures the time from race start to its terminal outcome.
	raceDuration metric.Float64Histogram

	// raceOutcomes counts terminal outcomes by outcome label.
	raceOutcomes metric.Int64Counter

	// widenings counts fan-out widenings.
	widenings metric.Int64Counter

	// === Provider Metrics ===

	// providerAttempts counts launches per provider.
	providerAttempts metric.Int64Counter

	// providerWins counts races won per provider.
	providerWins metric.Int64Counter

	// providerErrors counts observed provider failures by error type.
	providerErrors metric.Int64Counter

	// providerLatency measures each observed provider outcome in seconds.
	providerLatency metric.Float64Histogram

	// === Circuit Breaker Metrics ===

	// breakerRequests counts breaker decisions per provider.
	breakerRequests metric.Int64Counter

	// breakerState records the breaker state (0 closed, 1 half-open, 2 open).
	breakerState metric.Int64Gauge
}

// latencyBuckets are tuned for RPC latencies.
var latencyBuckets = []float64{
	0.005, 0.01, 0.025, 0.05, 0.075, 0.1, 0.25, 0.5, 0.75, 1, 2.5, 5, 10,
}

// newMetrics creates and registers metric instruments.
func newMetrics(meter metric.Meter) (*metrics, error) {
	m := &metrics{}
	var err error

	m.raceDuration, err = meter.Float64Histogram(
		"hedge.race.duration",
		metric.WithDescription("Duration of hedged races in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	)
	if err != nil {
		return nil, err
	}

	m.raceOutcomes, err = meter.Int64Counter(
		"hedge.race.outcome",
		metric.WithDescription("Number of hedged races by terminal outcome"),
		metric.WithUnit("{race}"),
	)
	if err != nil {
		return nil, err
	}

	m.widenings, err = meter.Int64Counter(
		"hedge.widenings",
		metric.WithDescription("Number of fan-out widenings"),
		metric.WithUnit("{widening}"),
	)
	if err != nil {
		return nil, err
	}

	m.providerAttempts, err = meter.Int64Counter(
		"hedge.provider.attempts",
		metric.WithDescription("Number of calls launched against a provider"),
		metric.WithUnit("{attempt}"),
	)
	if err != nil {
		return nil, err
	}

	m.providerWins, err = meter.Int64Counter(
		"hedge.provider.wins",
		metric.WithDescription("Number of races won by a provider"),
		metric.WithUnit("{race}"),
	)
	if err != nil {
		return nil, err
	}

	m.providerErrors, err = meter.Int64Counter(
		"hedge.provider.errors",
		metric.WithDescription("Number of failed or rejected provider calls"),
		metric.WithUnit("{error}"),
	)
	if err != nil {
		return nil, err
	}

	m.providerLatency, err = meter.Float64Histogram(
		"hedge.provider.latency",
		metric.WithDescription("Latency of observed provider outcomes in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	)
	if err != nil {
		return nil, err
	}

	m.breakerRequests, err = meter.Int64Counter(
		"hedge.breaker.requests",
		metric.WithDescription("Number of provider calls by circuit breaker decision"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, err
	}

	m.breakerState, err = meter.Int64Gauge(
		"hedge.breaker.state",
		metric.WithDescription("Circuit breaker state per provider (0 closed, 1 half-open, 2 open)"),
		metric.WithUnit("{state}"),
	)
	if err != nil {
		return nil, err
	}

	return m, nil
}

func providerAttrs(attrs []attribute.KeyValue, id ProviderID) metric.MeasurementOption {
	all := make([]attribute.KeyValue, 0, len(attrs)+1)
	all = append(all, attrs...)
	all = append(all, attribute.String("hedge.provider", string(id)))
	return metric.WithAttributes(all...)
}

// recordRace records a terminal race outcome and its duration.
func (m *metrics) recordRace(
	ctx context.Context,
	attrs []attribute.KeyValue,
	outcome string,
	duration time.Duration,
) {
	if m == nil {
		return
	}
	all := make([]attribute.KeyValue, 0, len(attrs)+1)
	all = append(all, attrs...)
	all = append(all, attribute.String("hedge.outcome", outcome))
	opt := metric.WithAttributes(all...)

	m.raceOutcomes.Add(ctx, 1, opt)
	m.raceDuration.Record(ctx, duration.Seconds(), opt)
}

// recordWidening records one widening and why it happened.
func (m *metrics) recordWidening(ctx context.Context, attrs []attribute.KeyValue, reason string) {
	if m == nil {
		return
	}
	all := make([]attribute.KeyValue, 0, len(attrs)+1)
	all = append(all, attrs...)
	all = append(all, attribute.String("hedge.widen_reason", reason))
	m.widenings.Add(ctx, 1, metric.WithAttributes(all...))
}

// recordAttempt records a launch against a provider.
func (m *metrics) recordAttempt(ctx context.Context, attrs []attribute.KeyValue, id ProviderID) {
	if m == nil {
		return
	}
	m.providerAttempts.Add(ctx, 1, providerAttrs(attrs, id))
}

// recordWin records a provider winning a race.
func (m *metrics) recordWin(
	ctx context.Context,
	attrs []attribute.KeyValue,
	id ProviderID,
	latency time.Duration,
) {
	if m == nil {
		return
	}
	opt := providerAttrs(attrs, id)
	m.providerWins.Add(ctx, 1, opt)
	m.providerLatency.Record(ctx, latency.Seconds(), opt)
}

// recordProviderError records an observed provider failure.
func (m *metrics) recordProviderError(
	ctx context.Context,
	attrs []attribute.KeyValue,
	id ProviderID,
	errorType string,
	latency time.Duration,
) {
	if m == nil {
		return
	}
	m.providerLatency.Record(ctx, latency.Seconds(), providerAttrs(attrs, id))

	all := make([]attribute.KeyValue, 0, len(attrs)+1)
	all = append(all, attrs...)
	all = append(all, attribute.String("error.type", errorType))
	m.providerErrors.Add(ctx, 1, providerAttrs(all, id))
}

// recordBreakerRequest records a breaker decision: success, failure,
// rejected or excluded.
func (m *metrics) recordBreakerRequest(ctx context.Context, id ProviderID, result string) {
	if m == nil {
		return
	}
	m.breakerRequests.Add(ctx, 1, metric.WithAttributes(
		attribute.String("hedge.provider", string(id)),
		attribute.String("hedge.breaker.result", result),
	))
}

// recordBreakerState records a breaker state transition.
func (m *metrics) recordBreakerState(ctx context.Context, name string, state int64) {
	if m == nil {
		return
	}
	m.breakerState.Record(ctx, state, metric.WithAttributes(
		attribute.String("hedge.breaker.name", name),
	))
}
