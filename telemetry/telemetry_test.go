package telemetry

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetup_StdoutTraces(t *testing.T) {
	var buf bytes.Buffer
	tel, err := Setup(context.Background(), Config{
		ServiceName:   "hedgerpc-test",
		TraceExporter: ExporterStdout,
		Writer:        &buf,
	})
	require.NoError(t, err)

	_, span := tel.TracerProvider.Tracer("test").Start(context.Background(), "hedge.race")
	span.End()

	require.NoError(t, tel.Shutdown(context.Background()))
	assert.Contains(t, buf.String(), "hedge.race")
	assert.Contains(t, buf.String(), "hedgerpc-test")
}

func TestSetup_MetricsHandler(t *testing.T) {
	tel, err := Setup(context.Background(), Config{ServiceName: "hedgerpc-test"})
	require.NoError(t, err)
	defer func() { _ = tel.Shutdown(context.Background()) }()

	counter, err := tel.MeterProvider.Meter("test").Int64Counter("hedge.test.calls")
	require.NoError(t, err)
	counter.Add(context.Background(), 3)

	rec := httptest.NewRecorder()
	tel.MetricsHandler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	body, _ := io.ReadAll(rec.Body)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, string(body), "hedge_test_calls_total")
	assert.Contains(t, string(body), "go_goroutines")
}

func TestSetup_UnknownExporter(t *testing.T) {
	_, err := Setup(context.Background(), Config{TraceExporter: "zipkin"})

	assert.ErrorIs(t, err, ErrUnknownExporter)
}

func TestSetup_TwoInstances(t *testing.T) {
	a, err := Setup(context.Background(), Config{})
	require.NoError(t, err)
	b, err := Setup(context.Background(), Config{})
	require.NoError(t, err)

	assert.NotSame(t, a.Registry(), b.Registry())
	assert.NoError(t, a.Shutdown(context.Background()))
	assert.NoError(t, b.Shutdown(context.Background()))
}
