package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"golang.org/x/oauth2"
	"google.golang.org/api/option"

	"github.com/teemow/goaltiers/internal/google"
	"github.com/teemow/goaltiers/internal/instrumentation"
	"github.com/teemow/goaltiers/internal/logging"
)

// handleLogin sets a state cookie and redirects to Google's consent page.
func (s *HTTPServer) handleLogin(w http.ResponseWriter, r *http.Request) {
	if s.oauth == nil {
		writeError(w, http.StatusServiceUnavailable, "Google login is not configured")
		return
	}

	state, err := uuid.NewRandom()
	if err != nil {
		s.logger.Error("failed to generate OAuth state", logging.Err(err))
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     stateCookieName,
		Value:    state.String(),
		Path:     "/auth/google",
		MaxAge:   int(stateCookieMaxAge.Seconds()),
		HttpOnly: true,
		Secure:   s.secureCookies,
		SameSite: http.SameSiteLaxMode,
	})

	http.Redirect(w, r, google.AuthCodeURL(s.oauth, state.String()), http.StatusFound)
}

// handleCallback completes the login: it checks the state, exchanges the
// code, looks up the user and starts a session. Every failure sends the
// browser to the frontend's login page.
func (s *HTTPServer) handleCallback(w http.ResponseWriter, r *http.Request) {
	if s.oauth == nil {
		writeError(w, http.StatusServiceUnavailable, "Google login is not configured")
		return
	}

	ctx := r.Context()
	metrics := s.metrics()
	q := r.URL.Query()

	fail := func(result, reason string, err error) {
		metrics.RecordOAuthAuth(ctx, result, "")
		s.logger.Warn("google login failed", slog.String("reason", reason), logging.Err(err))
		http.Redirect(w, r, s.frontendURL+"/login", http.StatusFound)
	}

	// The state cookie is single use.
	http.SetCookie(w, &http.Cookie{
		Name:     stateCookieName,
		Value:    "",
		Path:     "/auth/google",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   s.secureCookies,
		SameSite: http.SameSiteLaxMode,
	})

	if e := q.Get("error"); e != "" {
		fail(instrumentation.OAuthResultDenied, "consent denied", errors.New(e))
		return
	}

	cookie, err := r.Cookie(stateCookieName)
	state := q.Get("state")
	if err != nil || state == "" || cookie.Value != state {
		fail(instrumentation.OAuthResultFailure, "state mismatch", nil)
		return
	}

	code := q.Get("code")
	if code == "" {
		fail(instrumentation.OAuthResultFailure, "missing code", nil)
		return
	}

	token, err := s.oauth.Exchange(ctx, code)
	if err != nil {
		fail(instrumentation.OAuthResultFailure, "code exchange failed", err)
		return
	}

	user, err := s.fetchUser(ctx, token)
	if err != nil {
		fail(instrumentation.OAuthResultFailure, "user info lookup failed", err)
		return
	}

	session, err := s.sessions.Create(ctx, *user, token)
	if err != nil {
		fail(instrumentation.OAuthResultFailure, "session creation failed", err)
		return
	}

	// A browser-session cookie; the server side expires idle sessions.
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    session.ID,
		Path:     "/",
		HttpOnly: true,
		Secure:   s.secureCookies,
		SameSite: http.SameSiteLaxMode,
	})

	metrics.RecordOAuthAuth(ctx, instrumentation.OAuthResultSuccess, user.Email)
	s.logger.Info("google login succeeded", logging.UserHash(user.Email), logging.Session(session.ID))
	http.Redirect(w, r, s.frontendURL, http.StatusFound)
}

func (s *HTTPServer) handleUser(w http.ResponseWriter, r *http.Request) {
	session, _ := sessionFromContext(r.Context())
	writeJSON(w, http.StatusOK, session.User)
}

// handleLogout drops the session, if any, and returns to the frontend.
func (s *HTTPServer) handleLogout(w http.ResponseWriter, r *http.Request) {
	if cookie, err := r.Cookie(SessionCookieName); err == nil {
		s.sessions.Remove(r.Context(), cookie.Value)
		s.limiter.forget(cookie.Value)
	}

	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   s.secureCookies,
		SameSite: http.SameSiteLaxMode,
	})

	http.Redirect(w, r, s.frontendURL, http.StatusFound)
}

// fetchUserInfo looks up the Google profile behind token.
func (s *HTTPServer) fetchUserInfo(ctx context.Context, token *oauth2.Token) (*google.UserInfo, error) {
	start := time.Now()
	client := google.NewHTTPClient(ctx, s.oauth, token, nil)
	info, err := google.FetchUserInfo(ctx, option.WithHTTPClient(client))

	status := instrumentation.StatusSuccess
	if err != nil {
		status = instrumentation.StatusError
	}
	s.metrics().RecordGoogleAPIOperation(ctx, instrumentation.ServiceUserInfo, instrumentation.OperationGet, status, time.Since(start))

	return info, err
}
