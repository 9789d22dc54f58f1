package rpcclient

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeNode is a scripted Solana JSON-RPC endpoint.
type fakeNode struct {
	slot     uint64
	delay    time.Duration
	status   int
	rpcErr   *RPCError
	account  *Account
	noResult bool
	calls    atomic.Int32

	mu      sync.Mutex
	headers http.Header
}

func (n *fakeNode) lastHeaders() http.Header {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.headers
}

func (n *fakeNode) serve(t *testing.T) *httptest.Server {
	t.Helper()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n.calls.Add(1)
		n.mu.Lock()
		n.headers = r.Header.Clone()
		n.mu.Unlock()

		body, _ := io.ReadAll(r.Body)
		var req request
		if err := json.Unmarshal(body, &req); err != nil {
			http.Error(w, "bad request", http.StatusBadRequest)
			return
		}

		if n.delay > 0 {
			select {
			case <-time.After(n.delay):
			case <-r.Context().Done():
				return
			}
		}
		if n.status != 0 {
			http.Error(w, "upstream unavailable", n.status)
			return
		}

		resp := map[string]any{"jsonrpc": "2.0", "id": req.ID}
		switch {
		case n.rpcErr != nil:
			resp["error"] = n.rpcErr
		case n.noResult:
		default:
			resp["result"] = n.result(req.Method)
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func (n *fakeNode) result(method string) any {
	ctx := map[string]any{"slot": n.slot}
	switch method {
	case "getSlot":
		return n.slot
	case "getLatestBlockhash":
		return map[string]any{
			"context": ctx,
			"value": map[string]any{
				"blockhash":            "EkSnNWid2cvwEVnVx9aBqawnmiCNiDgp3gUdkDPTKN1N",
				"lastValidBlockHeight": n.slot + 150,
			},
		}
	case "getAccountInfo":
		return map[string]any{"context": ctx, "value": n.account}
	case "getBalance":
		return map[string]any{"context": ctx, "value": 5_000_000_000}
	case "getHealth":
		return "ok"
	default:
		return nil
	}
}

func TestClient_Call(t *testing.T) {
	node := &fakeNode{slot: 321}
	srv := node.serve(t)

	c := NewClient(srv.URL, WithHeader("x-api-key", "secret"))

	var slot uint64
	err := c.Call(context.Background(), "getSlot", nil, &slot)

	require.NoError(t, err)
	assert.Equal(t, uint64(321), slot)
	assert.Equal(t, "secret", node.lastHeaders().Get("x-api-key"))
	assert.Equal(t, "application/json", node.lastHeaders().Get("Content-Type"))
	assert.Equal(t, int32(1), node.calls.Load())
}

func TestClient_CallErrors(t *testing.T) {
	tests := []struct {
		name      string
		node      *fakeNode
		assertErr func(t *testing.T, err error)
	}{
		{
			name: "given rpc error object, then returns RPCError",
			node: &fakeNode{rpcErr: &RPCError{Code: -32005, Message: "node is behind"}},
			assertErr: func(t *testing.T, err error) {
				var rpcErr *RPCError
				require.ErrorAs(t, err, &rpcErr)
				assert.Equal(t, -32005, rpcErr.Code)
				assert.Equal(t, "rpc_-32005", rpcErr.ErrorType())
			},
		},
		{
			name: "given 429 status, then returns HTTPStatusError",
			node: &fakeNode{status: http.StatusTooManyRequests},
			assertErr: func(t *testing.T, err error) {
				var statusErr *HTTPStatusError
				require.ErrorAs(t, err, &statusErr)
				assert.Equal(t, http.StatusTooManyRequests, statusErr.StatusCode)
				assert.Contains(t, statusErr.Body, "upstream unavailable")
				assert.True(t, IsRateLimited(err))
			},
		},
		{
			name: "given no result, then returns ErrEmptyResult",
			node: &fakeNode{noResult: true},
			assertErr: func(t *testing.T, err error) {
				assert.ErrorIs(t, err, ErrEmptyResult)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := tt.node.serve(t)
			c := NewClient(srv.URL)

			err := c.Call(context.Background(), "getUnknown", nil, nil)

			require.Error(t, err)
			tt.assertErr(t, err)
		})
	}
}

func TestClient_CallResponseTooLarge(t *testing.T) {
	srv := (&fakeNode{slot: 1}).serve(t)

	small := DefaultConfig()
	small.MaxResponseBytes = 16
	c := NewClient(srv.URL, WithConfig(small))

	var slot uint64
	err := c.Call(context.Background(), "getSlot", nil, &slot)

	require.ErrorIs(t, err, ErrResponseTooLarge)
	assert.Contains(t, err.Error(), "exceeds 16 bytes")
	assert.NotContains(t, err.Error(), "decode")
}

func TestClient_CallHonoursContext(t *testing.T) {
	node := &fakeNode{slot: 1, delay: time.Second}
	srv := node.serve(t)
	c := NewClient(srv.URL)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	start := time.Now()
	err := c.Call(ctx, "getSlot", nil, nil)

	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), 500*time.Millisecond)
	assert.Equal(t, "timeout", errorType(err))
}

func TestClient_RequestIDsIncrease(t *testing.T) {
	var (
		mu  sync.Mutex
		ids []uint64
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req request
		_ = json.NewDecoder(r.Body).Decode(&req)
		mu.Lock()
		ids = append(ids, req.ID)
		mu.Unlock()
		_ = json.NewEncoder(w).Encode(map[string]any{"jsonrpc": "2.0", "id": req.ID, "result": 1})
	}))
	defer srv.Close()

	c := NewClient(srv.URL)
	for range 3 {
		require.NoError(t, c.Call(context.Background(), "getSlot", nil, nil))
	}

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []uint64{1, 2, 3}, ids)
}

func TestAccount_Bytes(t *testing.T) {
	a := &Account{Data: []string{"aGVsbG8=", "base64"}}
	b, err := a.Bytes()
	require.NoError(t, err)
	assert.Equal(t, []byte("hello"), b)

	_, err = (&Account{Data: []string{"xyz", "jsonParsed"}}).Bytes()
	assert.Error(t, err)
}
