package rpcclient

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// metrics holds the JSON-RPC call instruments.
type metrics struct {
	// callDuration measures one JSON-RPC call against one provider.
	callDuration metric.Float64Histogram

	// callErrors counts failed calls by error type.
	callErrors metric.Int64Counter
}

func newMetrics(meter metric.Meter) (*metrics, error) {
	m := &metrics{}
	var err error

	m.callDuration, err = meter.Float64Histogram(
		"rpc.client.duration",
		metric.WithDescription("Duration of JSON-RPC calls in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(
			0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10,
		),
	)
	if err != nil {
		return nil, err
	}

	m.callErrors, err = meter.Int64Counter(
		"rpc.client.errors",
		metric.WithDescription("Number of failed JSON-RPC calls"),
		metric.WithUnit("{error}"),
	)
	if err != nil {
		return nil, err
	}

	return m, nil
}

func (m *metrics) recordCall(
	ctx context.Context,
	duration time.Duration,
	attrs []attribute.KeyValue,
	errorType string,
) {
	if m == nil {
		return
	}
	if errorType != "" {
		attrs = append(attrs, attribute.String("error.type", errorType))
		m.callErrors.Add(ctx, 1, metric.WithAttributes(attrs...))
	}
	m.callDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(attrs...))
}
