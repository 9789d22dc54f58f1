package hedge

import (
	"context"
	"errors"
	"net"
	"strconv"
	"strings"
	"syscall"

	gobreaker "github.com/sony/gobreaker/v2"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// error.type values attached to provider error metrics and spans.
const (
	ErrorTypeStale             = "stale"
	ErrorTypeTimeout           = "timeout"
	ErrorTypeCancelled         = "cancelled"
	ErrorTypeBreakerOpen       = "breaker_open"
	ErrorTypeRateLimited       = "rate_limited"
	ErrorTypeChaos             = "chaos"
	ErrorTypePanic             = "panic"
	ErrorTypeConnectionRefused = "connection_refused"
	ErrorTypeConnectionReset   = "connection_reset"
	ErrorTypeDNSError          = "dns_error"
	ErrorTypeUnknown           = "unknown"
)

// ErrorTyper is implemented by transport errors that know their own
// error.type label, such as JSON-RPC and HTTP status errors.
type ErrorTyper interface {
	ErrorType() string
}

// errPanic marks an operation that panicked inside an attempt goroutine.
var errPanic = errors.New("hedge: operation panicked")

// classifyError returns an error.type classification for a provider failure.
func classifyError(err error) string {
	if err == nil {
		return ""
	}

	switch {
	case errors.Is(err, ErrStaleResponse):
		return ErrorTypeStale
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		return ErrorTypeBreakerOpen
	case errors.Is(err, ErrRateLimited):
		return ErrorTypeRateLimited
	case errors.Is(err, ErrChaosInjected):
		return ErrorTypeChaos
	case errors.Is(err, errPanic):
		return ErrorTypePanic
	case errors.Is(err, context.Canceled):
		return ErrorTypeCancelled
	case errors.Is(err, context.DeadlineExceeded):
		return ErrorTypeTimeout
	}

	var typed ErrorTyper
	if errors.As(err, &typed) {
		if t := typed.ErrorType(); t != "" {
			return t
		}
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return ErrorTypeTimeout
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return ErrorTypeDNSError
	}

	if errors.Is(err, syscall.ECONNREFUSED) {
		return ErrorTypeConnectionRefused
	}
	if errors.Is(err, syscall.ECONNRESET) {
		return ErrorTypeConnectionReset
	}

	errStr := strings.ToLower(err.Error())
	if strings.Contains(errStr, "timeout") {
		return ErrorTypeTimeout
	}
	if strings.Contains(errStr, "connection refused") {
		return ErrorTypeConnectionRefused
	}

	return ErrorTypeUnknown
}

// raceSpanAttributes describes a race's configuration on its span.
func raceSpanAttributes(raceID string, cfg HedgeConfig, serviceName string) []attribute.KeyValue {
	attrs := []attribute.KeyValue{
		attribute.String("hedge.race_id", raceID),
		attribute.Int("hedge.initial_providers", cfg.InitialProviders),
		attribute.Int("hedge.max_providers", cfg.MaxProviders),
		attribute.Int64("hedge.after_ms", cfg.HedgeAfter.Milliseconds()),
		attribute.Int64("hedge.timeout_ms", cfg.OverallTimeout.Milliseconds()),
		attribute.Int("hedge.widen_step", cfg.WidenStep),
	}
	if cfg.MinFreshness != nil {
		attrs = append(attrs, attribute.String("hedge.min_freshness", strconv.FormatUint(*cfg.MinFreshness, 10)))
	}
	if serviceName != "" {
		attrs = append(attrs, attribute.String("hedge.client.name", serviceName))
	}
	return attrs
}

// setSpanError records an error on the span with proper status and attributes.
func setSpanError(span trace.Span, err error, errorType string) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	if errorType != "" {
		span.SetAttributes(attribute.String("error.type", errorType))
	}
}
