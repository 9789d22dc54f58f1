package statsserver

import (
	"bytes"
	"context"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	json "github.com/goccy/go-json"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kroma-labs/sentinel-hedge/hedge"
)

func newLedgerSource(t *testing.T) *hedge.Engine {
	t.Helper()

	registry, err := hedge.NewRegistry([]hedge.ProviderConfig{
		{ID: "triton", Endpoint: "http://triton"},
		{ID: "helius", Endpoint: "http://helius"},
	})
	require.NoError(t, err)

	e := hedge.New(registry)
	l := e.Ledger()
	for i := 1; i <= 4; i++ {
		gen := l.RecordAttempt("helius")
		l.RecordOutcome("helius", gen, true, time.Duration(i*10)*time.Millisecond)
	}
	gen := l.RecordAttempt("triton")
	l.RecordOutcome("triton", gen, false, 50*time.Millisecond)
	l.RecordAttempt("triton")
	return e
}

func TestServer_Stats(t *testing.T) {
	srv := New(newLedgerSource(t))

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/stats", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var body Response[StatsResponse]
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Data.Providers, 2)

	helius, triton := body.Data.Providers[0], body.Data.Providers[1]
	assert.Equal(t, "helius", helius.ID)
	assert.Equal(t, uint64(4), helius.Wins)
	assert.InDelta(t, 25.0, helius.LatencyMs.Avg, 0.001)
	assert.InDelta(t, 20.0, helius.LatencyMs.P50, 0.001)
	assert.InDelta(t, 40.0, helius.LatencyMs.P99, 0.001)
	assert.InDelta(t, 1.0, helius.SuccessRate, 0.001)

	assert.Equal(t, "triton", triton.ID)
	assert.Equal(t, uint64(2), triton.Attempts)
	assert.Equal(t, uint64(1), triton.Errors)
	assert.Equal(t, uint64(1), triton.Pending)
}

func TestServer_Reset(t *testing.T) {
	src := newLedgerSource(t)
	srv := New(src)

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/stats/reset", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "stats reset")
	for _, s := range src.Snapshot() {
		assert.Zero(t, s.Attempts)
	}

	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/stats/reset", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestServer_Routes(t *testing.T) {
	metrics := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("hedge_race_outcome_total 1\n"))
	})

	tests := []struct {
		name       string
		opts       []Option
		path       string
		wantStatus int
		wantBody   string
	}{
		{
			name:       "given livez, then ok with service name",
			opts:       []Option{WithServiceName("wallet"), WithVersion("1.2.3")},
			path:       "/livez",
			wantStatus: http.StatusOK,
			wantBody:   `"service":"wallet"`,
		},
		{
			name:       "given metrics handler, then mounted",
			opts:       []Option{WithMetricsHandler(metrics)},
			path:       "/metrics",
			wantStatus: http.StatusOK,
			wantBody:   "hedge_race_outcome_total",
		},
		{
			name:       "given no metrics handler, then not found",
			path:       "/metrics",
			wantStatus: http.StatusNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := New(newLedgerSource(t), tt.opts...)

			rec := httptest.NewRecorder()
			srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, tt.path, nil))

			assert.Equal(t, tt.wantStatus, rec.Code)
			if tt.wantBody != "" {
				assert.Contains(t, rec.Body.String(), tt.wantBody)
			}
		})
	}
}

func TestRequestLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.New(&buf)

	srv := New(newLedgerSource(t), WithLogger(logger))

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/stats", nil))
	assert.Contains(t, buf.String(), `"path":"/stats"`)
	assert.Contains(t, buf.String(), `"status":200`)

	buf.Reset()
	srv.Handler().ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/livez", nil))
	assert.Empty(t, buf.String())
}

type panicSource struct{}

func (panicSource) Snapshot() map[hedge.ProviderID]hedge.ProviderStats { panic("boom") }
func (panicSource) ResetStats()                                        {}

func TestRecovery(t *testing.T) {
	srv := New(panicSource{})

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/stats", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "internal server error")
}

func TestServer_ServeStopsOnContext(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	srv := New(newLedgerSource(t), WithShutdownTimeout(time.Second))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Serve(ctx, ln) }()

	require.Eventually(t, func() bool {
		resp, err := http.Get("http://" + ln.Addr().String() + "/livez")
		if err != nil {
			return false
		}
		_ = resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 2*time.Second, 10*time.Millisecond)

	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("server did not stop")
	}
}
