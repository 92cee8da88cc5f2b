package server

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/oauth2"

	"github.com/teemow/goaltiers/internal/google"
	"github.com/teemow/goaltiers/internal/instrumentation"
	"github.com/teemow/goaltiers/internal/logging"
)

const (
	// DefaultSessionTimeout is how long a browser session may stay idle.
	DefaultSessionTimeout = 24 * time.Hour

	sessionCleanupInterval = 10 * time.Minute
)

// Session is a signed-in browser session.
type Session struct {
	ID         string
	User       google.UserInfo
	Token      *oauth2.Token
	CreatedAt  time.Time
	LastAccess time.Time
}

// SessionManager keeps browser sessions in memory and expires idle ones.
// It also serves the sessions' Google tokens as a google.TokenProvider.
type SessionManager struct {
	sessions       map[string]*Session
	mu             sync.Mutex
	cleanupTicker  *time.Ticker
	cleanupDone    chan struct{}
	stopOnce       sync.Once
	sessionTimeout time.Duration
	now            func() time.Time
	logger         logging.Logger
	metrics        *instrumentation.Metrics
}

var (
	_ google.TokenProvider = (*SessionManager)(nil)
	_ google.TokenSaver    = (*SessionManager)(nil)
)

// NewSessionManager creates a session manager and starts its cleanup
// goroutine. Call Stop to release it. A non-positive timeout selects
// DefaultSessionTimeout.
func NewSessionManager(timeout time.Duration, logger logging.Logger) *SessionManager {
	if timeout <= 0 {
		timeout = DefaultSessionTimeout
	}

	m := &SessionManager{
		sessions:       make(map[string]*Session),
		cleanupTicker:  time.NewTicker(sessionCleanupInterval),
		cleanupDone:    make(chan struct{}),
		sessionTimeout: timeout,
		now:            time.Now,
		logger:         logging.OrDefault(logger),
	}

	go m.cleanupLoop()

	return m
}

// SetMetrics enables the active sessions gauge.
func (m *SessionManager) SetMetrics(metrics *instrumentation.Metrics) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.metrics = metrics
}

// Create stores a new session for user and returns it.
func (m *SessionManager) Create(ctx context.Context, user google.UserInfo, token *oauth2.Token) (Session, error) {
	id, err := uuid.NewRandom()
	if err != nil {
		return Session{}, fmt.Errorf("failed to generate session id: %w", err)
	}

	m.mu.Lock()
	now := m.now()
	s := &Session{
		ID:         id.String(),
		User:       user,
		Token:      token,
		CreatedAt:  now,
		LastAccess: now,
	}
	m.sessions[s.ID] = s
	metrics := m.metrics
	m.mu.Unlock()

	metrics.IncrementActiveSessions(ctx)
	m.logger.Info("session created", logging.Session(s.ID), logging.UserHash(user.Email))

	return *s, nil
}

// Get returns the session with id and refreshes its idle timer. Expired
// sessions are removed and reported as missing.
func (m *SessionManager) Get(id string) (Session, bool) {
	if id == "" {
		return Session{}, false
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[id]
	if !ok {
		return Session{}, false
	}

	now := m.now()
	if now.Sub(s.LastAccess) > m.sessionTimeout {
		delete(m.sessions, id)
		m.metrics.DecrementActiveSessions(context.Background())
		return Session{}, false
	}

	s.LastAccess = now
	return *s, true
}

// Remove deletes the session with id. Unknown ids are ignored.
func (m *SessionManager) Remove(ctx context.Context, id string) {
	m.mu.Lock()
	_, ok := m.sessions[id]
	delete(m.sessions, id)
	metrics := m.metrics
	m.mu.Unlock()

	if ok {
		metrics.DecrementActiveSessions(ctx)
		m.logger.Info("session removed", logging.Session(id))
	}
}

// Exists reports whether a session with id is stored. Unlike Get it does
// not refresh the idle timer.
func (m *SessionManager) Exists(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.sessions[id]
	return ok
}

// Count returns the number of stored sessions, including idle ones not
// yet cleaned up.
func (m *SessionManager) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// GetTokenForAccount returns the token of the most recently used session
// signed in as account.
func (m *SessionManager) GetTokenForAccount(_ context.Context, account string) (*oauth2.Token, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s := m.latestSessionFor(account)
	if s == nil || s.Token == nil {
		return nil, fmt.Errorf("no session token for account %s", logging.AnonymizeEmail(account))
	}
	return s.Token, nil
}

// HasTokenForAccount implements google.TokenProvider.
func (m *SessionManager) HasTokenForAccount(account string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	s := m.latestSessionFor(account)
	return s != nil && s.Token != nil
}

// SaveTokenForAccount replaces the token of every live session signed in
// as account that shares token's refresh token. It does not touch the
// sessions' idle timers.
func (m *SessionManager) SaveTokenForAccount(account string, token *oauth2.Token) {
	if token == nil {
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	for _, s := range m.sessions {
		if s.User.Email != account || s.Token == nil || now.Sub(s.LastAccess) > m.sessionTimeout {
			continue
		}
		if s.Token.RefreshToken == token.RefreshToken {
			s.Token = token
		}
	}
}

// latestSessionFor must be called with m.mu held.
func (m *SessionManager) latestSessionFor(account string) *Session {
	var latest *Session
	now := m.now()
	for _, s := range m.sessions {
		if s.User.Email != account || now.Sub(s.LastAccess) > m.sessionTimeout {
			continue
		}
		if latest == nil || s.LastAccess.After(latest.LastAccess) {
			latest = s
		}
	}
	return latest
}

// cleanupExpired removes every session idle for longer than the timeout
// and returns how many were removed.
func (m *SessionManager) cleanupExpired() int {
	m.mu.Lock()
	now := m.now()
	expired := 0
	for id, s := range m.sessions {
		if now.Sub(s.LastAccess) > m.sessionTimeout {
			delete(m.sessions, id)
			expired++
		}
	}
	metrics := m.metrics
	m.mu.Unlock()

	for i := 0; i < expired; i++ {
		metrics.DecrementActiveSessions(context.Background())
	}
	return expired
}

func (m *SessionManager) cleanupLoop() {
	for {
		select {
		case <-m.cleanupTicker.C:
			if n := m.cleanupExpired(); n > 0 {
				m.logger.Info("Cleaned up expired sessions", "count", n)
			}
		case <-m.cleanupDone:
			return
		}
	}
}

// Stop stops the cleanup goroutine. It is safe to call more than once.
func (m *SessionManager) Stop() {
	m.stopOnce.Do(func() {
		m.cleanupTicker.Stop()
		close(m.cleanupDone)
	})
}
