package instrumentation

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const (
	attrMethod     = "method"
	attrPath       = "path"
	attrStatus     = "status"
	attrOperation  = "operation"
	attrService    = "service"
	attrResult     = "result"
	attrTool       = "tool"
	attrTier       = "tier"
	attrBucket     = "bucket"
	attrUserDomain = "user_domain"
)

// Histogram boundaries in seconds.
var (
	httpBuckets   = []float64{0.001, 0.01, 0.1, 0.5, 1.0, 2.5, 5.0, 10.0}
	googleBuckets = []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0, 30.0}
	toolBuckets   = []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1.0}
)

// Metrics records the service's counters and histograms. A nil or zero
// Metrics records nothing, so callers never need to check whether
// instrumentation is enabled.
type Metrics struct {
	httpRequests   metric.Int64Counter
	httpDuration   metric.Float64Histogram
	activeSessions metric.Int64UpDownCounter

	googleOperations metric.Int64Counter
	googleDuration   metric.Float64Histogram

	oauthAttempts metric.Int64Counter

	taskOperations   metric.Int64Counter
	classifiedEvents metric.Int64Counter

	toolInvocations metric.Int64Counter
	toolDuration    metric.Float64Histogram

	// detailedLabels attaches user_domain to sign-in counts.
	detailedLabels bool
}

// NewMetrics creates every instrument on meter.
func NewMetrics(meter metric.Meter, detailedLabels bool) (*Metrics, error) {
	b := &instruments{meter: meter}
	m := &Metrics{
		httpRequests:   b.counter("http_requests_total", "Total number of HTTP requests", "{request}"),
		httpDuration:   b.histogram("http_request_duration_seconds", "HTTP request duration in seconds", httpBuckets),
		activeSessions: b.upDown("active_sessions", "Number of signed-in browser sessions", "{session}"),

		googleOperations: b.counter("google_api_operations_total", "Total number of Google API operations", "{operation}"),
		googleDuration:   b.histogram("google_api_operation_duration_seconds", "Google API operation duration in seconds", googleBuckets),

		oauthAttempts: b.counter("oauth_auth_total", "Total number of Google sign-in attempts", "{attempt}"),

		taskOperations:   b.counter("task_operations_total", "Total number of task store operations by tier", "{operation}"),
		classifiedEvents: b.counter("calendar_events_classified_total", "Total number of calendar events placed in each bucket", "{event}"),

		toolInvocations: b.counter("mcp_tool_invocations_total", "Total number of MCP tool invocations", "{invocation}"),
		toolDuration:    b.histogram("mcp_tool_duration_seconds", "MCP tool execution duration in seconds", toolBuckets),

		detailedLabels: detailedLabels,
	}
	if b.err != nil {
		return nil, b.err
	}
	return m, nil
}

// instruments creates instruments until the first failure and keeps
// that error.
type instruments struct {
	meter metric.Meter
	err   error
}

func (b *instruments) counter(name, desc, unit string) metric.Int64Counter {
	if b.err != nil {
		return nil
	}
	c, err := b.meter.Int64Counter(name, metric.WithDescription(desc), metric.WithUnit(unit))
	b.fail(name, err)
	return c
}

func (b *instruments) upDown(name, desc, unit string) metric.Int64UpDownCounter {
	if b.err != nil {
		return nil
	}
	c, err := b.meter.Int64UpDownCounter(name, metric.WithDescription(desc), metric.WithUnit(unit))
	b.fail(name, err)
	return c
}

func (b *instruments) histogram(name, desc string, bounds []float64) metric.Float64Histogram {
	if b.err != nil {
		return nil
	}
	h, err := b.meter.Float64Histogram(name,
		metric.WithDescription(desc),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(bounds...),
	)
	b.fail(name, err)
	return h
}

func (b *instruments) fail(name string, err error) {
	if err != nil {
		b.err = fmt.Errorf("failed to create %s: %w", name, err)
	}
}

// RecordHTTPRequest counts a request and its latency. The path is
// reduced with RouteLabel so task IDs never become label values.
func (m *Metrics) RecordHTTPRequest(ctx context.Context, method, path string, statusCode int, duration time.Duration) {
	if m == nil || m.httpRequests == nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String(attrMethod, method),
		attribute.String(attrPath, RouteLabel(path)),
		attribute.String(attrStatus, strconv.Itoa(statusCode)),
	)
	m.httpRequests.Add(ctx, 1, attrs)
	m.httpDuration.Record(ctx, duration.Seconds(), attrs)
}

// RecordGoogleAPIOperation counts a Google API call. Service is
// ServiceCalendar or ServiceUserInfo.
func (m *Metrics) RecordGoogleAPIOperation(ctx context.Context, service, operation, status string, duration time.Duration) {
	if m == nil || m.googleOperations == nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String(attrService, service),
		attribute.String(attrOperation, operation),
		attribute.String(attrStatus, status),
	)
	m.googleOperations.Add(ctx, 1, attrs)
	m.googleDuration.Record(ctx, duration.Seconds(), attrs)
}

// RecordOAuthAuth counts a sign-in attempt. The email domain is attached
// only with detailed labels and a known email.
func (m *Metrics) RecordOAuthAuth(ctx context.Context, result, email string) {
	if m == nil || m.oauthAttempts == nil {
		return
	}
	attrs := []attribute.KeyValue{attribute.String(attrResult, result)}
	if m.detailedLabels && email != "" {
		attrs = append(attrs, attribute.String(attrUserDomain, ExtractUserDomain(email)))
	}
	m.oauthAttempts.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordTaskOperation counts a task store operation. An empty tier is
// recorded as "all", as list does.
func (m *Metrics) RecordTaskOperation(ctx context.Context, operation, tier, status string) {
	if m == nil || m.taskOperations == nil {
		return
	}
	if tier == "" {
		tier = "all"
	}
	m.taskOperations.Add(ctx, 1, metric.WithAttributes(
		attribute.String(attrOperation, operation),
		attribute.String(attrTier, tier),
		attribute.String(attrStatus, status),
	))
}

// RecordClassifiedEvents adds count events to bucket.
func (m *Metrics) RecordClassifiedEvents(ctx context.Context, bucket string, count int) {
	if m == nil || m.classifiedEvents == nil || count <= 0 {
		return
	}
	m.classifiedEvents.Add(ctx, int64(count), metric.WithAttributes(attribute.String(attrBucket, bucket)))
}

func (m *Metrics) RecordToolInvocation(ctx context.Context, toolName, status string, duration time.Duration) {
	if m == nil || m.toolInvocations == nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String(attrTool, toolName),
		attribute.String(attrStatus, status),
	)
	m.toolInvocations.Add(ctx, 1, attrs)
	m.toolDuration.Record(ctx, duration.Seconds(), attrs)
}

func (m *Metrics) IncrementActiveSessions(ctx context.Context) {
	if m != nil && m.activeSessions != nil {
		m.activeSessions.Add(ctx, 1)
	}
}

func (m *Metrics) DecrementActiveSessions(ctx context.Context) {
	if m != nil && m.activeSessions != nil {
		m.activeSessions.Add(ctx, -1)
	}
}
