package server

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"

	"github.com/teemow/goaltiers/internal/google"
)

// fakeClock is a settable time source for the session manager.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestSessionManager(t *testing.T, timeout time.Duration) (*SessionManager, *fakeClock) {
	t.Helper()
	clock := &fakeClock{now: time.Date(2025, 9, 10, 12, 0, 0, 0, time.UTC)}
	m := NewSessionManager(timeout, nil)
	m.now = clock.Now
	t.Cleanup(m.Stop)
	return m, clock
}

func TestSessionManager_CreateAndGet(t *testing.T) {
	m, _ := newTestSessionManager(t, time.Hour)

	s, err := m.Create(context.Background(), testUser, &oauth2.Token{AccessToken: "a"})
	require.NoError(t, err)
	assert.NotEmpty(t, s.ID)

	got, ok := m.Get(s.ID)
	require.True(t, ok)
	assert.Equal(t, testUser, got.User)
	assert.Equal(t, "a", got.Token.AccessToken)
	assert.Equal(t, 1, m.Count())

	_, ok = m.Get("")
	assert.False(t, ok)
	_, ok = m.Get("unknown")
	assert.False(t, ok)
}

func TestSessionManager_UniqueIDs(t *testing.T) {
	m, _ := newTestSessionManager(t, time.Hour)

	a, err := m.Create(context.Background(), testUser, nil)
	require.NoError(t, err)
	b, err := m.Create(context.Background(), testUser, nil)
	require.NoError(t, err)

	assert.NotEqual(t, a.ID, b.ID)
	assert.Equal(t, 2, m.Count())
}

func TestSessionManager_IdleExpiry(t *testing.T) {
	m, clock := newTestSessionManager(t, time.Hour)

	s, err := m.Create(context.Background(), testUser, nil)
	require.NoError(t, err)

	clock.Advance(50 * time.Minute)
	_, ok := m.Get(s.ID)
	require.True(t, ok, "access within the timeout refreshes the session")

	clock.Advance(50 * time.Minute)
	_, ok = m.Get(s.ID)
	require.True(t, ok)

	clock.Advance(61 * time.Minute)
	_, ok = m.Get(s.ID)
	assert.False(t, ok)
	assert.Zero(t, m.Count())
}

func TestSessionManager_CleanupExpired(t *testing.T) {
	m, clock := newTestSessionManager(t, time.Hour)

	old, err := m.Create(context.Background(), testUser, nil)
	require.NoError(t, err)
	clock.Advance(45 * time.Minute)
	fresh, err := m.Create(context.Background(), testUser, nil)
	require.NoError(t, err)

	clock.Advance(30 * time.Minute)
	assert.Equal(t, 1, m.cleanupExpired())

	_, ok := m.Get(old.ID)
	assert.False(t, ok)
	_, ok = m.Get(fresh.ID)
	assert.True(t, ok)
}

func TestSessionManager_Remove(t *testing.T) {
	m, _ := newTestSessionManager(t, time.Hour)

	s, err := m.Create(context.Background(), testUser, nil)
	require.NoError(t, err)
	assert.True(t, m.Exists(s.ID))

	m.Remove(context.Background(), s.ID)
	assert.False(t, m.Exists(s.ID))
	m.Remove(context.Background(), s.ID)
	m.Remove(context.Background(), "unknown")

	_, ok := m.Get(s.ID)
	assert.False(t, ok)
	assert.Zero(t, m.Count())
}

func TestSessionManager_TokenProvider(t *testing.T) {
	m, clock := newTestSessionManager(t, time.Hour)
	ctx := context.Background()

	var provider google.TokenProvider = m

	assert.False(t, provider.HasTokenForAccount(testUser.Email))
	_, err := provider.GetTokenForAccount(ctx, testUser.Email)
	assert.Error(t, err)

	_, err = m.Create(ctx, testUser, &oauth2.Token{AccessToken: "first"})
	require.NoError(t, err)
	clock.Advance(time.Minute)
	_, err = m.Create(ctx, testUser, &oauth2.Token{AccessToken: "second"})
	require.NoError(t, err)
	_, err = m.Create(ctx, google.UserInfo{Email: "bob@example.com"}, nil)
	require.NoError(t, err)

	assert.True(t, provider.HasTokenForAccount(testUser.Email))
	token, err := provider.GetTokenForAccount(ctx, testUser.Email)
	require.NoError(t, err)
	assert.Equal(t, "second", token.AccessToken)

	assert.False(t, provider.HasTokenForAccount("bob@example.com"), "session without token")

	clock.Advance(2 * time.Hour)
	assert.False(t, provider.HasTokenForAccount(testUser.Email), "expired sessions do not serve tokens")
}

func TestSessionManager_SaveTokenForAccount(t *testing.T) {
	m, clock := newTestSessionManager(t, time.Hour)
	ctx := context.Background()

	laptop, err := m.Create(ctx, testUser, &oauth2.Token{AccessToken: "a1", RefreshToken: "r1"})
	require.NoError(t, err)
	phone, err := m.Create(ctx, testUser, &oauth2.Token{AccessToken: "b1", RefreshToken: "r2"})
	require.NoError(t, err)
	other, err := m.Create(ctx, google.UserInfo{Email: "bob@example.com"}, &oauth2.Token{AccessToken: "c1", RefreshToken: "r1"})
	require.NoError(t, err)

	clock.Advance(time.Minute)
	m.SaveTokenForAccount(testUser.Email, &oauth2.Token{AccessToken: "a2", RefreshToken: "r1"})
	m.SaveTokenForAccount(testUser.Email, nil)

	got, ok := m.Get(laptop.ID)
	require.True(t, ok)
	assert.Equal(t, "a2", got.Token.AccessToken)

	got, ok = m.Get(phone.ID)
	require.True(t, ok)
	assert.Equal(t, "b1", got.Token.AccessToken, "a different grant is left alone")

	got, ok = m.Get(other.ID)
	require.True(t, ok)
	assert.Equal(t, "c1", got.Token.AccessToken, "other accounts are left alone")

	token, err := m.GetTokenForAccount(ctx, testUser.Email)
	require.NoError(t, err)
	assert.Contains(t, []string{"a2", "b1"}, token.AccessToken)
}

func TestSessionManager_SaveTokenKeepsIdleTimer(t *testing.T) {
	m, clock := newTestSessionManager(t, time.Hour)

	s, err := m.Create(context.Background(), testUser, &oauth2.Token{AccessToken: "a1", RefreshToken: "r1"})
	require.NoError(t, err)

	clock.Advance(59 * time.Minute)
	m.SaveTokenForAccount(testUser.Email, &oauth2.Token{AccessToken: "a2", RefreshToken: "r1"})
	clock.Advance(2 * time.Minute)

	_, ok := m.Get(s.ID)
	assert.False(t, ok, "saving a token is not session activity")
}

func TestSessionManager_DefaultTimeout(t *testing.T) {
	m := NewSessionManager(0, nil)
	defer m.Stop()

	assert.Equal(t, DefaultSessionTimeout, m.sessionTimeout)
}

func TestSessionManager_StopIsIdempotent(t *testing.T) {
	m := NewSessionManager(time.Hour, nil)
	m.Stop()
	assert.NotPanics(t, m.Stop)
}
