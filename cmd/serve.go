package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/oauth2"

	"github.com/teemow/goaltiers/internal/google"
	"github.com/teemow/goaltiers/internal/instrumentation"
	"github.com/teemow/goaltiers/internal/logging"
	"github.com/teemow/goaltiers/internal/server"
)

// ServeConfig holds everything the serve command needs
type ServeConfig struct {
	Addr               string
	FrontendURL        string
	AllowedOrigins     []string
	BaseURL            string
	GoogleClientID     string
	GoogleClientSecret string
	CalendarID         string
	SeedDemo           bool
	SessionTimeout     time.Duration
	RateLimit          float64
	RateBurst          int

	Log     LogConfig
	Storage StorageConfig
	Metrics MetricsConfig
}

func newServeCmd() *cobra.Command {
	var (
		cfg            ServeConfig
		allowedOrigins string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the goal planner API server",
		Long: `Start the HTTP API server used by the goaltiers frontend.

The server exposes the goal hierarchy (yearly, quarterly, monthly, weekly
and daily goals) under /api/tasks and the signed-in user's upcoming
Google Calendar events under /api/calendar/events.

Google login:
  --google-client-id and --google-client-secret flags
  OR GOOGLE_CLIENT_ID and GOOGLE_CLIENT_SECRET env vars.
  Without them the login endpoints answer 503.

  Base URL (required for deployed instances):
    --base-url https://goals.example.com OR GOALTIERS_BASE_URL env var
    Auto-detected for localhost (development only)

Task storage:
  memory (default) keeps goals in process memory.
  valkey saves a snapshot after every change and restores it on start.
  sqlite does the same with a local database file (--sqlite-path).`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg.AllowedOrigins = parseCommaSeparatedList(allowedOrigins)

			loadServeEnvVars(cmd, &cfg)
			loadTaskStorageEnvVars(cmd, &cfg.Storage)
			loadLogEnvVars(cmd, &cfg.Log)
			loadMetricsEnvVars(cmd, &cfg.Metrics)

			return runServe(cfg)
		},
	}

	cmd.Flags().StringVar(&cfg.Addr, "addr", server.DefaultHTTPAddr, "HTTP server address. Can also use GOALTIERS_ADDR env var.")
	cmd.Flags().StringVar(&cfg.FrontendURL, "frontend-url", server.DefaultFrontendURL, "Frontend URL used for CORS and login redirects. Can also use GOALTIERS_FRONTEND_URL env var.")
	cmd.Flags().StringVar(&allowedOrigins, "allowed-origins", "", "Additional CORS origins (comma-separated). Can also use GOALTIERS_ALLOWED_ORIGINS env var.")
	cmd.Flags().StringVar(&cfg.BaseURL, "base-url", "", "Public base URL of this server, used for the OAuth redirect. Can also use GOALTIERS_BASE_URL env var. Example: https://goals.example.com")
	cmd.Flags().StringVar(&cfg.GoogleClientID, "google-client-id", "", "Google OAuth Client ID. Can also use GOOGLE_CLIENT_ID env var.")
	cmd.Flags().StringVar(&cfg.GoogleClientSecret, "google-client-secret", "", "Google OAuth Client Secret. Can also use GOOGLE_CLIENT_SECRET env var.")
	cmd.Flags().StringVar(&cfg.CalendarID, "calendar-id", "", "Calendar to list events from (default: primary). Can also use GOALTIERS_CALENDAR_ID env var.")
	cmd.Flags().BoolVar(&cfg.SeedDemo, "seed-demo", false, "Load the demo goal hierarchy when the store is empty")
	cmd.Flags().DurationVar(&cfg.SessionTimeout, "session-timeout", server.DefaultSessionTimeout, "Idle timeout of browser sessions")
	cmd.Flags().Float64Var(&cfg.RateLimit, "rate-limit", 10, "Sustained API requests per second per session (0 disables). Can also use GOALTIERS_RATE_LIMIT env var.")
	cmd.Flags().IntVar(&cfg.RateBurst, "rate-burst", 20, "API request burst per session")

	addLogFlags(cmd, &cfg.Log)
	addStorageFlags(cmd, &cfg.Storage)

	cmd.Flags().BoolVar(&cfg.Metrics.Enabled, "metrics-enabled", true, "Enable the metrics server on a dedicated port. Can also use METRICS_ENABLED env var.")
	cmd.Flags().StringVar(&cfg.Metrics.Addr, "metrics-addr", server.DefaultMetricsAddr, "Metrics server address. Can also use METRICS_ADDR env var.")

	return cmd
}

// loadServeEnvVars applies environment fallbacks for flags that were not set.
func loadServeEnvVars(cmd *cobra.Command, cfg *ServeConfig) {
	envString := func(flag, env string, dst *string) {
		if cmd.Flags().Changed(flag) {
			return
		}
		if v := os.Getenv(env); v != "" {
			*dst = v
		}
	}

	envString("addr", "GOALTIERS_ADDR", &cfg.Addr)
	envString("frontend-url", "GOALTIERS_FRONTEND_URL", &cfg.FrontendURL)
	envString("base-url", "GOALTIERS_BASE_URL", &cfg.BaseURL)
	envString("google-client-id", "GOOGLE_CLIENT_ID", &cfg.GoogleClientID)
	envString("google-client-secret", "GOOGLE_CLIENT_SECRET", &cfg.GoogleClientSecret)
	envString("calendar-id", "GOALTIERS_CALENDAR_ID", &cfg.CalendarID)

	if !cmd.Flags().Changed("rate-limit") {
		if v := os.Getenv("GOALTIERS_RATE_LIMIT"); v != "" {
			if limit, err := strconv.ParseFloat(v, 64); err == nil {
				cfg.RateLimit = limit
			}
		}
	}

	if !cmd.Flags().Changed("allowed-origins") {
		if origins := parseCommaSeparatedList(os.Getenv("GOALTIERS_ALLOWED_ORIGINS")); origins != nil {
			cfg.AllowedOrigins = origins
		}
	}
}

// defaultBaseURL derives a localhost base URL from the listen address.
func defaultBaseURL(addr string) string {
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return "http://localhost:3001"
	}
	if host == "" || host == "0.0.0.0" || host == "::" {
		host = "localhost"
	}
	return "http://" + net.JoinHostPort(host, port)
}

// buildOAuthConfig returns nil when no Google credentials are configured.
func buildOAuthConfig(cfg ServeConfig, logger *slog.Logger) (*oauth2.Config, error) {
	if cfg.GoogleClientID == "" && cfg.GoogleClientSecret == "" {
		logger.Warn("Google login disabled: provide --google-client-id and --google-client-secret to enable it")
		return nil, nil
	}

	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultBaseURL(cfg.Addr)
		logger.Info("no base URL configured, using development default", slog.String("base_url", baseURL))
	}

	return google.NewOAuthConfig(google.OAuthSettings{
		ClientID:     cfg.GoogleClientID,
		ClientSecret: cfg.GoogleClientSecret,
		BaseURL:      baseURL,
	})
}

func runServe(cfg ServeConfig) error {
	logger, err := setupLogger(cfg.Log)
	if err != nil {
		return err
	}

	// Setup graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	provider, instrConfig, err := newInstrumentation(ctx)
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if shutdownErr := provider.Shutdown(shutdownCtx); shutdownErr != nil {
			logger.Error("error during instrumentation shutdown", logging.Err(shutdownErr))
		}
	}()

	backend, err := openStore(ctx, cfg.Storage, logger)
	if err != nil {
		return err
	}
	defer backend.close()
	store := backend.store

	if cfg.SeedDemo {
		if err := seedDemo(ctx, store, logger); err != nil {
			return err
		}
	}

	serverContext, err := server.NewServerContext(ctx, store)
	if err != nil {
		return fmt.Errorf("failed to create server context: %w", err)
	}

	sessions := server.NewSessionManager(cfg.SessionTimeout, logger)

	// Set metrics and audit logger for API and session instrumentation
	if provider.Enabled() {
		serverContext.SetMetrics(provider.Metrics())
		sessions.SetMetrics(provider.Metrics())
	}
	if instrConfig.AuditLogging.Enabled {
		serverContext.SetAuditLogger(instrumentation.NewAuditLogger(logger, instrConfig.AuditLogging))
	}

	var metricsServer *server.MetricsServer
	if cfg.Metrics.Enabled && provider.Enabled() {
		metricsServer, err = startMetricsServer(cfg.Metrics, provider, logger)
		if err != nil {
			sessions.Stop()
			_ = serverContext.Shutdown()
			return err
		}
	}

	oauthConfig, err := buildOAuthConfig(cfg, logger)
	if err != nil {
		sessions.Stop()
		_ = serverContext.Shutdown()
		return fmt.Errorf("invalid Google OAuth configuration: %w", err)
	}

	httpServer, err := server.NewHTTPServer(serverContext, sessions, server.HTTPConfig{
		FrontendURL:    cfg.FrontendURL,
		AllowedOrigins: cfg.AllowedOrigins,
		OAuth:          oauthConfig,
		CalendarID:     cfg.CalendarID,
		RateLimit:      cfg.RateLimit,
		RateBurst:      cfg.RateBurst,
		Logger:         logger,
	})
	if err != nil {
		sessions.Stop()
		_ = serverContext.Shutdown()
		return fmt.Errorf("failed to create HTTP server: %w", err)
	}

	if backend.ping != nil {
		httpServer.Health().AddCheck(strings.ToLower(cfg.Storage.Type), backend.ping)
	}

	logger.Info("starting goaltiers API server",
		slog.String("addr", cfg.Addr),
		slog.String("frontend_url", cfg.FrontendURL),
		slog.Bool("google_login", oauthConfig != nil),
		slog.String("storage", cfg.Storage.Type))

	serverDone := make(chan error, 1)
	go func() {
		defer close(serverDone)
		if err := httpServer.Start(cfg.Addr); err != nil {
			serverDone <- err
		}
	}()

	var runErr error
	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received, stopping HTTP server")
	case err := <-serverDone:
		if err != nil {
			runErr = fmt.Errorf("HTTP server stopped with error: %w", err)
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	var shutdownErrs []error
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		shutdownErrs = append(shutdownErrs, fmt.Errorf("error shutting down HTTP server: %w", err))
	}
	if metricsServer != nil {
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			shutdownErrs = append(shutdownErrs, fmt.Errorf("error shutting down metrics server: %w", err))
		}
	}
	sessions.Stop()
	if err := serverContext.Shutdown(); err != nil {
		shutdownErrs = append(shutdownErrs, fmt.Errorf("error shutting down server context: %w", err))
	}

	if err := errors.Join(append([]error{runErr}, shutdownErrs...)...); err != nil {
		return err
	}

	logger.Info("HTTP server gracefully stopped")
	return nil
}

// startMetricsServer starts the Prometheus endpoint and waits until it
// listens.
func startMetricsServer(cfg MetricsConfig, provider *instrumentation.Provider, logger *slog.Logger) (*server.MetricsServer, error) {
	metricsServer, err := server.NewMetricsServer(provider, cfg.Addr, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create metrics server: %w", err)
	}

	metricsReady := make(chan struct{})
	metricsErr := make(chan error, 1)
	go func() {
		if err := metricsServer.StartWithReadySignal(metricsReady); err != nil {
			metricsErr <- err
		}
		close(metricsErr)
	}()

	select {
	case <-metricsReady:
		logger.Info("metrics server started", slog.String("addr", metricsServer.Addr()))
		return metricsServer, nil
	case err := <-metricsErr:
		if err == nil {
			err = errors.New("stopped before accepting connections")
		}
		return nil, fmt.Errorf("metrics server failed to start: %w", err)
	case <-time.After(5 * time.Second):
		return nil, fmt.Errorf("metrics server startup timed out")
	}
}
