package google

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

// CallbackPath is the path Google redirects to after consent.
const CallbackPath = "/auth/google/callback"

// OAuthSettings holds the client credentials registered with Google.
type OAuthSettings struct {
	ClientID     string
	ClientSecret string

	// BaseURL is the public URL of this server; the redirect URL is derived
	// from it by appending CallbackPath.
	BaseURL string

	// Scopes overrides DefaultOAuthScopes when non-empty.
	Scopes []string
}

// ErrMissingCredentials is returned when the client ID or secret is empty.
var ErrMissingCredentials = errors.New("google client ID and client secret are required")

// NewOAuthConfig builds the OAuth2 configuration for the login flow.
func NewOAuthConfig(s OAuthSettings) (*oauth2.Config, error) {
	if s.ClientID == "" || s.ClientSecret == "" {
		return nil, ErrMissingCredentials
	}
	if s.BaseURL == "" {
		return nil, fmt.Errorf("base URL is required to build the OAuth redirect URL")
	}

	scopes := s.Scopes
	if len(scopes) == 0 {
		scopes = DefaultOAuthScopes
	}

	return &oauth2.Config{
		ClientID:     s.ClientID,
		ClientSecret: s.ClientSecret,
		Endpoint:     google.Endpoint,
		RedirectURL:  strings.TrimSuffix(s.BaseURL, "/") + CallbackPath,
		Scopes:       scopes,
	}, nil
}

// AuthCodeURL returns the consent URL for the given CSRF state.
// Offline access is requested so the session receives a refresh token.
func AuthCodeURL(conf *oauth2.Config, state string) string {
	return conf.AuthCodeURL(state, oauth2.AccessTypeOffline)
}

// NewHTTPClient returns an HTTP client that authenticates with token and
// refreshes it through conf when it expires. A non-nil onRefresh receives
// each refreshed token.
// The client is configured to use HTTP/1.1 to avoid HTTP/2 protocol errors.
func NewHTTPClient(ctx context.Context, conf *oauth2.Config, token *oauth2.Token, onRefresh func(*oauth2.Token)) *http.Client {
	src := conf.TokenSource(ctx, token)
	if onRefresh != nil {
		src = &notifyingTokenSource{base: src, onRefresh: onRefresh, access: token.AccessToken}
	}
	client := oauth2.NewClient(ctx, src)

	// Force HTTP/1.1 by disabling HTTP/2
	if transport, ok := client.Transport.(*oauth2.Transport); ok {
		transport.Base = &http.Transport{
			ForceAttemptHTTP2: false,
		}
	}

	return client
}
