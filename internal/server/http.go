package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/oauth2"
	"golang.org/x/sync/singleflight"

	"github.com/teemow/goaltiers/internal/calendar"
	"github.com/teemow/goaltiers/internal/google"
	"github.com/teemow/goaltiers/internal/instrumentation"
	"github.com/teemow/goaltiers/internal/logging"
)

const (
	// DefaultHTTPAddr is the default listen address of the API server.
	DefaultHTTPAddr = ":3001"

	// DefaultFrontendURL is where the browser is sent after login.
	DefaultFrontendURL = "http://localhost:3000"

	// SessionCookieName holds the browser session ID.
	SessionCookieName = "goaltiers_session"

	// stateCookieName holds the OAuth state between redirect and callback.
	stateCookieName = "goaltiers_oauth_state"

	stateCookieMaxAge = 10 * time.Minute

	// maxRequestBodyBytes caps JSON request bodies.
	maxRequestBodyBytes = 1 << 20

	calendarFetchTimeout = 30 * time.Second
)

// HTTPConfig configures the API server.
type HTTPConfig struct {
	// FrontendURL is the browser application; it is always an allowed
	// CORS origin and the target of post-login redirects.
	FrontendURL string

	// AllowedOrigins are additional CORS origins.
	AllowedOrigins []string

	// OAuth is the Google login configuration. Without it the login
	// endpoints answer 503 and only existing sessions are accepted.
	OAuth *oauth2.Config

	// CalendarID is the calendar listed by /api/calendar/events.
	// Defaults to the primary calendar.
	CalendarID string

	// RateLimit is the sustained number of API requests per second
	// allowed for one session. Zero disables rate limiting.
	RateLimit float64

	// RateBurst is the number of requests a session may make at once.
	RateBurst int

	// Logger defaults to slog.Default().
	Logger *slog.Logger
}

// HTTPServer serves the task API, the calendar view and the Google login
// flow to the browser frontend.
type HTTPServer struct {
	sc             *ServerContext
	sessions       *SessionManager
	oauth          *oauth2.Config
	frontendURL    string
	allowedOrigins map[string]bool
	secureCookies  bool
	calendarID     string
	health         *HealthChecker
	limiter        *sessionLimiter
	logger         *slog.Logger

	now            func() time.Time
	newEventSource func(ctx context.Context, account string) (calendar.Lister, error)
	fetchUser      func(ctx context.Context, token *oauth2.Token) (*google.UserInfo, error)
	calendarCalls  singleflight.Group

	httpServer *http.Server
}

// NewHTTPServer creates the API server. The redirect URL of cfg.OAuth must
// be HTTPS unless it points at a loopback host.
func NewHTTPServer(sc *ServerContext, sessions *SessionManager, cfg HTTPConfig) (*HTTPServer, error) {
	if sc == nil {
		return nil, fmt.Errorf("server context is required")
	}
	if sessions == nil {
		return nil, fmt.Errorf("session manager is required")
	}

	frontendURL := strings.TrimSuffix(cfg.FrontendURL, "/")
	if frontendURL == "" {
		frontendURL = DefaultFrontendURL
	}
	if _, err := url.Parse(frontendURL); err != nil {
		return nil, fmt.Errorf("invalid frontend URL: %w", err)
	}

	secure := false
	if cfg.OAuth != nil {
		if err := validateHTTPSRequirement(cfg.OAuth.RedirectURL); err != nil {
			return nil, err
		}
		secure = strings.HasPrefix(cfg.OAuth.RedirectURL, "https://")
	}

	origins := map[string]bool{frontendURL: true}
	for _, o := range cfg.AllowedOrigins {
		if o = strings.TrimSuffix(strings.TrimSpace(o), "/"); o != "" {
			origins[o] = true
		}
	}

	calendarID := cfg.CalendarID
	if calendarID == "" {
		calendarID = calendar.PrimaryCalendarID
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	s := &HTTPServer{
		sc:             sc,
		sessions:       sessions,
		oauth:          cfg.OAuth,
		frontendURL:    frontendURL,
		allowedOrigins: origins,
		secureCookies:  secure,
		calendarID:     calendarID,
		health:         NewHealthChecker(sc),
		limiter:        newSessionLimiter(cfg.RateLimit, cfg.RateBurst),
		logger:         logging.WithService(logger, "http"),
		now:            time.Now,
	}
	s.newEventSource = s.calendarForAccount
	s.fetchUser = s.fetchUserInfo

	return s, nil
}

// Health returns the health checker backing the health endpoints.
func (s *HTTPServer) Health() *HealthChecker {
	return s.health
}

// Handler returns the complete HTTP handler including middleware.
func (s *HTTPServer) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/tasks", s.requireSession(s.handleListTasks))
	mux.HandleFunc("POST /api/tasks", s.requireSession(s.handleCreateTask))
	mux.HandleFunc("PUT /api/tasks/{id}", s.requireSession(s.handleUpdateTask))
	mux.HandleFunc("DELETE /api/tasks/{id}", s.requireSession(s.handleDeleteTask))
	mux.HandleFunc("GET /api/calendar/events", s.requireSession(s.handleCalendarEvents))

	mux.HandleFunc("GET /auth/google", s.handleLogin)
	mux.HandleFunc("GET "+google.CallbackPath, s.handleCallback)
	mux.HandleFunc("GET /api/user", s.requireSession(s.handleUser))
	mux.HandleFunc("GET /logout", s.handleLogout)

	s.health.RegisterHealthEndpoints(mux)

	var handler http.Handler = mux
	handler = s.corsMiddleware(handler)
	handler = s.instrumentationMiddleware(handler)
	handler = otelhttp.NewHandler(handler, "goaltiers.http",
		otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
			return r.Method + " " + instrumentation.RouteLabel(r.URL.Path)
		}))
	return handler
}

// Start serves on addr until Shutdown is called.
func (s *HTTPServer) Start(addr string) error {
	return s.StartWithReadySignal(addr, nil)
}

// StartWithReadySignal is like Start but closes ready once the listener
// is bound, so callers can wait for the port to accept connections.
func (s *HTTPServer) StartWithReadySignal(addr string, ready chan<- struct{}) error {
	if addr == "" {
		addr = DefaultHTTPAddr
	}

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}

	s.httpServer = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	s.logger.Info("starting HTTP server", slog.String("addr", ln.Addr().String()))
	if ready != nil {
		close(ready)
	}

	if err := s.httpServer.Serve(ln); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown marks the server not ready and drains in-flight requests.
func (s *HTTPServer) Shutdown(ctx context.Context) error {
	s.health.SetReady(false)
	if s.httpServer == nil {
		return nil
	}
	s.logger.Info("shutting down HTTP server")
	return s.httpServer.Shutdown(ctx)
}

func (s *HTTPServer) metrics() *instrumentation.Metrics {
	if s == nil || s.sc == nil {
		return nil
	}
	return s.sc.Metrics()
}

// validateHTTPSRequirement only allows plain HTTP for loopback hosts.
func validateHTTPSRequirement(baseURL string) error {
	if baseURL == "" {
		return fmt.Errorf("base URL cannot be empty")
	}

	u, err := url.Parse(baseURL)
	if err != nil {
		return fmt.Errorf("invalid base URL: %w", err)
	}

	if u.Scheme == "http" {
		host := u.Hostname()
		if host != "localhost" && host != "127.0.0.1" && host != "::1" {
			return fmt.Errorf("OAuth login requires HTTPS outside development (got: %s). Use HTTPS or localhost", baseURL)
		}
	} else if u.Scheme != "https" {
		return fmt.Errorf("invalid URL scheme: %s. Must be http (localhost only) or https", u.Scheme)
	}

	return nil
}

type errorResponse struct {
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Message: message})
}
