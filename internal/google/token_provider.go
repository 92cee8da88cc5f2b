package google

import (
	"context"
	"sync"

	"golang.org/x/oauth2"
)

// TokenProvider is an interface for providing OAuth tokens for Google APIs
// This abstraction allows different token sources (browser sessions, fixed tokens, etc.)
type TokenProvider interface {
	// GetTokenForAccount retrieves an OAuth token for the specified account
	GetTokenForAccount(ctx context.Context, account string) (*oauth2.Token, error)

	// HasTokenForAccount checks if a token exists for the specified account
	HasTokenForAccount(account string) bool
}

// TokenSaver is implemented by providers that keep tokens refreshed on an
// account's behalf, so the next client starts from the new access token.
type TokenSaver interface {
	SaveTokenForAccount(account string, token *oauth2.Token)
}

// notifyingTokenSource passes every token that differs from the last one
// it has seen to onRefresh.
type notifyingTokenSource struct {
	base      oauth2.TokenSource
	onRefresh func(*oauth2.Token)

	mu     sync.Mutex
	access string
}

func (s *notifyingTokenSource) Token() (*oauth2.Token, error) {
	token, err := s.base.Token()
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	changed := token.AccessToken != s.access
	s.access = token.AccessToken
	s.mu.Unlock()

	if changed {
		s.onRefresh(token)
	}
	return token, nil
}
