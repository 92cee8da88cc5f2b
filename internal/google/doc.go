// Package google provides OAuth2 configuration and token plumbing for the
// Google APIs used by goaltiers.
//
// The login flow itself lives in the HTTP server; this package supplies the
// pieces it is built from: the OAuth2 client configuration with the scopes
// the application needs, an HTTP client factory that refreshes tokens, and a
// user-info lookup used to identify the signed-in user.
//
// The TokenProvider interface decouples API clients from where tokens are
// kept, so the calendar client can be built from a browser session's token
// without knowing about sessions.
package google
