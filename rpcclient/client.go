package rpcclient

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync/atomic"
	"time"

	"github.com/goccy/go-json"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

const jsonrpcVersion = "2.0"

// maxErrorBody is how much of a non-2xx body is kept in HTTPStatusError.
const maxErrorBody = 256

type request struct {
	JSONRPC string `json:"jsonrpc"`
	ID      uint64 `json:"id"`
	Method  string `json:"method"`
	Params  []any  `json:"params,omitempty"`
}

type response struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      uint64          `json:"id"`
	Result  json.RawMessage `json:"result"`
	Error   *RPCError       `json:"error"`
}

// Client is a JSON-RPC 2.0 over HTTP client for a single endpoint.
// It is safe for concurrent use.
type Client struct {
	endpoint string
	host     string
	cfg      *internalConfig
	nextID   atomic.Uint64
}

// NewClient creates a client for endpoint.
func NewClient(endpoint string, opts ...Option) *Client {
	return newClient(endpoint, newConfig(opts...))
}

func newClient(endpoint string, cfg *internalConfig) *Client {
	c := &Client{endpoint: endpoint, cfg: cfg}
	if u, err := url.Parse(endpoint); err == nil {
		c.host = u.Hostname()
	}
	return c
}

// Endpoint returns the URL the client posts to.
func (c *Client) Endpoint() string {
	return c.endpoint
}

// Call invokes method with params and decodes the result into out.
// out may be nil to discard the result.
//
// A JSON-RPC error object is returned as *RPCError and a non-2xx status as
// *HTTPStatusError. Cancelling ctx aborts the HTTP exchange.
func (c *Client) Call(ctx context.Context, method string, params []any, out any) (err error) {
	start := time.Now()

	attrs := c.cfg.baseAttributes()
	attrs = append(attrs, attribute.String("rpc.method", method))
	if c.host != "" {
		attrs = append(attrs, attribute.String("server.address", c.host))
	}

	ctx, span := c.cfg.Tracer.Start(ctx, "jsonrpc "+method,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attrs...),
	)
	defer func() {
		errType := errorType(err)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			span.SetAttributes(attribute.String("error.type", errType))
		}
		c.cfg.Metrics.recordCall(ctx, time.Since(start), attrs, errType)
		span.End()
	}()

	id := c.nextID.Add(1)
	body, err := json.Marshal(request{
		JSONRPC: jsonrpcVersion,
		ID:      id,
		Method:  method,
		Params:  params,
	})
	if err != nil {
		return fmt.Errorf("rpcclient: encode %s: %w", method, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("rpcclient: build %s request: %w", method, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	for k, v := range c.cfg.Headers {
		req.Header.Set(k, v)
	}
	c.cfg.Propagator.Inject(ctx, propagation.HeaderCarrier(req.Header))

	resp, err := c.cfg.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("rpcclient: %s: %w", method, err)
	}
	defer resp.Body.Close()

	limit := c.cfg.httpConfig.MaxResponseBytes
	if limit <= 0 {
		limit = DefaultConfig().MaxResponseBytes
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, limit+1))
	if err != nil {
		return fmt.Errorf("rpcclient: read %s response: %w", method, err)
	}

	span.SetAttributes(attribute.Int("http.response.status_code", resp.StatusCode))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &HTTPStatusError{StatusCode: resp.StatusCode, Body: truncate(data, maxErrorBody)}
	}
	if int64(len(data)) > limit {
		return fmt.Errorf("%w: %s response exceeds %d bytes", ErrResponseTooLarge, method, limit)
	}

	var r response
	if err := json.Unmarshal(data, &r); err != nil {
		return fmt.Errorf("rpcclient: decode %s response: %w", method, err)
	}
	if r.Error != nil {
		return r.Error
	}
	if len(r.Result) == 0 {
		return ErrEmptyResult
	}
	if r.ID != id {
		return fmt.Errorf("rpcclient: %s: response id %d does not match request id %d", method, r.ID, id)
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(r.Result, out); err != nil {
		return fmt.Errorf("rpcclient: decode %s result: %w", method, err)
	}
	return nil
}

// errorType labels a call error for metrics and spans.
func errorType(err error) string {
	if err == nil {
		return ""
	}

	var typed interface{ ErrorType() string }
	switch {
	case errors.As(err, &typed):
		return typed.ErrorType()
	case errors.Is(err, context.Canceled):
		return "cancelled"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, ErrEmptyResult):
		return "empty_result"
	default:
		return "transport"
	}
}

func truncate(b []byte, n int) string {
	b = bytes.TrimSpace(b)
	if len(b) > n {
		return string(b[:n]) + "..."
	}
	return string(b)
}
