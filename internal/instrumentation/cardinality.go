package instrumentation

import "strings"

// Cardinality management helpers for metrics. Raw user identifiers and
// task IDs must never become label values; these helpers reduce them to
// bounded sets.

// Common operation types for Google API and task metrics.
const (
	OperationList   = "list"
	OperationGet    = "get"
	OperationCreate = "create"
	OperationUpdate = "update"
	OperationDelete = "delete"
	OperationSeed   = "seed"
	OperationLoad   = "load"
)

// ExtractUserDomain extracts the domain part from an email address.
//
//	ExtractUserDomain("jane@example.com")  // "example.com"
//	ExtractUserDomain("invalid")           // "unknown"
func ExtractUserDomain(email string) string {
	parts := strings.Split(email, "@")
	if len(parts) == 2 && parts[0] != "" && parts[1] != "" {
		return strings.ToLower(parts[1])
	}
	return "unknown"
}

// routeTemplates lists the path prefixes whose trailing segment is an
// identifier. Longest prefixes come first.
var routeTemplates = []struct {
	prefix   string
	template string
}{
	{"/api/tasks/", "/api/tasks/{id}"},
}

// knownRoutes are recorded verbatim; anything else collapses to "other".
var knownRoutes = map[string]bool{
	"/api/tasks":            true,
	"/api/calendar/events":  true,
	"/api/user":             true,
	"/auth/google":          true,
	"/auth/google/callback": true,
	"/logout":               true,
	"/healthz":              true,
	"/readyz":               true,
	"/healthz/detailed":     true,
}

// RouteLabel maps a request path to a bounded metric label: task IDs are
// replaced by "{id}" and unknown paths become "other".
//
//	RouteLabel("/api/tasks/task_0190")  // "/api/tasks/{id}"
//	RouteLabel("/wp-login.php")         // "other"
func RouteLabel(path string) string {
	if knownRoutes[path] {
		return path
	}
	for _, rt := range routeTemplates {
		if rest, ok := strings.CutPrefix(path, rt.prefix); ok && rest != "" && !strings.Contains(rest, "/") {
			return rt.template
		}
	}
	return "other"
}
