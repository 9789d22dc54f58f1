package rpcclient

import (
	"errors"
	"fmt"
	"strconv"
)

var (
	// ErrEmptyResult is returned when a response carries neither a result nor an error.
	ErrEmptyResult = errors.New("rpcclient: empty result")

	// ErrResponseTooLarge is returned when a response body exceeds Config.MaxResponseBytes.
	ErrResponseTooLarge = errors.New("rpcclient: response too large")
)

// RPCError is a JSON-RPC error object returned by a provider.
type RPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// Error implements error.
func (e *RPCError) Error() string {
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}

// ErrorType returns the error.type label used in metrics, e.g. "rpc_-32005".
func (e *RPCError) ErrorType() string {
	return "rpc_" + strconv.Itoa(e.Code)
}

// HTTPStatusError is returned for a non-2xx HTTP response.
type HTTPStatusError struct {
	StatusCode int
	// Body holds the start of the response body.
	Body string
}

// Error implements error.
func (e *HTTPStatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("http status %d", e.StatusCode)
	}
	return fmt.Sprintf("http status %d: %s", e.StatusCode, e.Body)
}

// ErrorType returns the status code, following the OTel semconv for error.type.
func (e *HTTPStatusError) ErrorType() string {
	return strconv.Itoa(e.StatusCode)
}

// IsRateLimited reports whether err is a provider throttling the caller,
// either HTTP 429 or a provider error mentioning it.
func IsRateLimited(err error) bool {
	var statusErr *HTTPStatusError
	if errors.As(err, &statusErr) {
		return statusErr.StatusCode == 429
	}
	var rpcErr *RPCError
	if errors.As(err, &rpcErr) {
		return rpcErr.Code == 429
	}
	return false
}
