package server

import (
	"context"
	"io"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teemow/goaltiers/internal/instrumentation"
)

func newPrometheusProvider(t *testing.T, enabled bool) *instrumentation.Provider {
	t.Helper()
	cfg := instrumentation.Config{
		ServiceName:     "goaltiers-test",
		ServiceVersion:  "test",
		Enabled:         enabled,
		MetricsExporter: instrumentation.ExporterPrometheus,
		TracingExporter: instrumentation.ExporterNone,
	}
	provider, err := instrumentation.NewProvider(context.Background(), cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = provider.Shutdown(context.Background()) })
	return provider
}

func TestNewMetricsServer_Validation(t *testing.T) {
	_, err := NewMetricsServer(nil, "", nil)
	assert.ErrorContains(t, err, "provider is required")

	_, err = NewMetricsServer(newPrometheusProvider(t, false), "", nil)
	assert.ErrorContains(t, err, "not enabled")

	srv, err := NewMetricsServer(newPrometheusProvider(t, true), "", nil)
	require.NoError(t, err)
	assert.Equal(t, DefaultMetricsAddr, srv.Addr())

	srv, err = NewMetricsServer(newPrometheusProvider(t, true), ":9191", nil)
	require.NoError(t, err)
	assert.Equal(t, ":9191", srv.Addr())
}

func TestMetricsServer_ShutdownBeforeStart(t *testing.T) {
	srv, err := NewMetricsServer(newPrometheusProvider(t, true), "", nil)
	require.NoError(t, err)
	assert.NoError(t, srv.Shutdown(context.Background()))
}

func TestMetricsServer_Scrape(t *testing.T) {
	provider := newPrometheusProvider(t, true)
	provider.Metrics().RecordTaskOperation(context.Background(), instrumentation.OperationCreate, "weekly", instrumentation.StatusSuccess)

	srv, err := NewMetricsServer(provider, "127.0.0.1:0", nil)
	require.NoError(t, err)

	ready := make(chan struct{})
	done := make(chan error, 1)
	go func() { done <- srv.StartWithReadySignal(ready) }()

	select {
	case <-ready:
	case err := <-done:
		t.Fatalf("metrics server failed to start: %v", err)
	case <-time.After(5 * time.Second):
		t.Fatal("metrics server did not become ready")
	}

	get := func(path string) (int, string) {
		resp, err := http.Get("http://" + srv.Addr() + path)
		require.NoError(t, err)
		defer resp.Body.Close()
		body, err := io.ReadAll(resp.Body)
		require.NoError(t, err)
		return resp.StatusCode, string(body)
	}

	code, body := get("/healthz")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "ok", body)

	code, body = get("/metrics")
	assert.Equal(t, http.StatusOK, code)
	assert.Contains(t, body, "task_operations_total")

	code, _ = get("/api/tasks")
	assert.Equal(t, http.StatusNotFound, code, "the API is not served on the metrics port")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, srv.Shutdown(ctx))

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("metrics server did not stop")
	}
}
