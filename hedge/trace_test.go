package hedge

import (
	"context"
	"errors"
	"fmt"
	"math"
	"syscall"
	"testing"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

type typedErr struct{ kind string }

func (e typedErr) Error() string     { return "typed: " + e.kind }
func (e typedErr) ErrorType() string { return e.kind }

func TestClassifyError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{name: "given nil error, then returns empty", err: nil, want: ""},
		{name: "given stale response, then returns stale", err: staleError(1, 2), want: ErrorTypeStale},
		{name: "given open breaker, then returns breaker_open", err: gobreaker.ErrOpenState, want: ErrorTypeBreakerOpen},
		{name: "given rate limit, then returns rate_limited", err: ErrRateLimited, want: ErrorTypeRateLimited},
		{name: "given chaos, then returns chaos", err: ErrChaosInjected, want: ErrorTypeChaos},
		{name: "given panic, then returns panic", err: fmt.Errorf("%w: boom", errPanic), want: ErrorTypePanic},
		{name: "given context canceled, then returns cancelled", err: context.Canceled, want: ErrorTypeCancelled},
		{name: "given deadline exceeded, then returns timeout", err: context.DeadlineExceeded, want: ErrorTypeTimeout},
		{name: "given typed transport error, then uses its type", err: fmt.Errorf("call: %w", typedErr{kind: "rpc_-32005"}), want: "rpc_-32005"},
		{name: "given connection refused, then returns connection_refused", err: syscall.ECONNREFUSED, want: ErrorTypeConnectionRefused},
		{name: "given timeout in message, then returns timeout", err: errors.New("i/o timeout"), want: ErrorTypeTimeout},
		{name: "given unknown error, then returns unknown", err: errors.New("weird"), want: ErrorTypeUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, classifyError(tt.err))
		})
	}
}

func TestRace_Spans(t *testing.T) {
	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
	defer tp.Shutdown(context.Background())

	e := newTestEngine(t, 2, WithTracerProvider(tp))
	cfg := HedgeConfig{
		InitialProviders: 1,
		HedgeAfter:       10 * time.Millisecond,
		MaxProviders:     2,
		OverallTimeout:   time.Second,
	}

	_, err := Race(context.Background(), e, cfg, scripted(map[ProviderID]behavior{
		"p1": {hang: true},
		"p2": {freshness: math.MaxUint64},
	}))
	require.NoError(t, err)

	spans := exporter.GetSpans()
	require.Len(t, spans, 1)
	assert.Equal(t, "hedge.race", spans[0].Name)
	assert.Equal(t, codes.Ok, spans[0].Status.Code)

	var names []string
	for _, ev := range spans[0].Events {
		names = append(names, ev.Name)
	}
	assert.Equal(t, []string{"launch", "launch", "widen", "win"}, names)

	win := spans[0].Events[3]
	assert.Contains(t, win.Attributes, attribute.String("hedge.freshness", "18446744073709551615"))
}

func TestRace_SpanRecordsFailure(t *testing.T) {
	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
	defer tp.Shutdown(context.Background())

	e := newTestEngine(t, 1, WithTracerProvider(tp))

	_, err := Race(context.Background(), e, DefaultHedgeConfig(1), scripted(map[ProviderID]behavior{
		"p1": {err: errors.New("bad gateway")},
	}))
	require.Error(t, err)

	spans := exporter.GetSpans()
	require.Len(t, spans, 1)
	assert.Equal(t, codes.Error, spans[0].Status.Code)
}
