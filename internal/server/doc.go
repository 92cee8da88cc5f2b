// Package server provides the HTTP surface of goaltiers: the task API,
// the bucketed calendar view, the Google login flow and the health checks.
//
// # Key Components
//
// ServerContext carries the shared task store together with the optional
// metrics recorder and audit logger. The HTTP server and the MCP tools
// both read their dependencies from it.
//
// HTTPServer routes the browser frontend's requests:
//   - /api/tasks and /api/tasks/{id}: list, create, update and delete goals
//   - /api/calendar/events: the signed-in user's events for the rest of
//     the month, classified into today, this week and this month
//   - /auth/google, /auth/google/callback, /api/user, /logout: login
//   - /healthz, /readyz, /healthz/detailed: Kubernetes health checks
//
// SessionManager keeps browser sessions in memory and expires idle ones.
// It also serves each session's Google token to the calendar client.
//
// MetricsServer exposes Prometheus metrics on a dedicated port.
//
// # Security Features
//
//   - HTTPS required for the OAuth redirect (localhost exempt for development)
//   - State cookie checked on the OAuth callback for CSRF protection
//   - HttpOnly, SameSite=Lax session cookies, Secure when served over HTTPS
//   - CORS restricted to the configured frontend origins
//   - Per-session token bucket rate limiting on authenticated routes
//   - User emails are hashed before they are logged
package server
