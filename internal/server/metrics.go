package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/teemow/goaltiers/internal/instrumentation"
	"github.com/teemow/goaltiers/internal/logging"
)

// DefaultMetricsAddr is where the Prometheus endpoint listens unless
// configured otherwise.
const DefaultMetricsAddr = ":9090"

// MetricsServer exposes /metrics on its own listener so the scrape
// endpoint is never reachable through the public API port.
type MetricsServer struct {
	handler    http.Handler
	addr       string
	logger     *slog.Logger
	httpServer *http.Server
}

// NewMetricsServer prepares a metrics server for provider. The provider
// must be enabled and export to Prometheus. An empty addr selects
// DefaultMetricsAddr and a nil logger slog.Default().
func NewMetricsServer(provider *instrumentation.Provider, addr string, logger *slog.Logger) (*MetricsServer, error) {
	switch {
	case provider == nil:
		return nil, errors.New("instrumentation provider is required for metrics server")
	case !provider.Enabled():
		return nil, errors.New("instrumentation provider is not enabled")
	}

	handler := provider.PrometheusHandler()
	if handler == nil {
		return nil, errors.New("instrumentation provider does not export Prometheus metrics")
	}

	if addr == "" {
		addr = DefaultMetricsAddr
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &MetricsServer{
		handler: handler,
		addr:    addr,
		logger:  logging.WithService(logger, "metrics"),
	}, nil
}

func (s *MetricsServer) routes() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("GET /metrics", s.handler)
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("ok"))
	})
	return mux
}

// StartWithReadySignal binds the listener, closes ready, and serves until
// Shutdown. ready may be nil.
func (s *MetricsServer) StartWithReadySignal(ready chan<- struct{}) error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.addr, err)
	}
	s.addr = ln.Addr().String()

	s.httpServer = &http.Server{
		Handler:           s.routes(),
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       time.Minute,
	}

	s.logger.Info("starting metrics server", slog.String("addr", s.addr))
	if ready != nil {
		close(ready)
	}

	if err := s.httpServer.Serve(ln); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops a started server. It is a no-op otherwise.
func (s *MetricsServer) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	s.logger.Info("shutting down metrics server")
	return s.httpServer.Shutdown(ctx)
}

// Addr is the configured address until the server starts and the bound
// address afterwards, so port 0 resolves to the real port.
func (s *MetricsServer) Addr() string {
	return s.addr
}
