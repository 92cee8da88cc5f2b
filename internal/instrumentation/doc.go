// Package instrumentation provides OpenTelemetry instrumentation for the
// goaltiers server.
//
// # Metrics
//
// Server/HTTP:
//   - http_requests_total: requests by method, route template and status
//   - http_request_duration_seconds: request durations
//   - active_sessions: signed-in browser sessions
//
// Google API:
//   - google_api_operations_total: calls by service, operation and status
//   - google_api_operation_duration_seconds: call durations
//   - oauth_auth_total: sign-in attempts by result
//
// Domain:
//   - task_operations_total: task store operations by operation, tier and status
//   - calendar_events_classified_total: events placed in each bucket
//
// MCP:
//   - mcp_tool_invocations_total and mcp_tool_duration_seconds
//
// Route labels go through RouteLabel so task IDs never become label values.
//
// # Tracing
//
// Spans are created for MCP tool invocations (tool.<name>) and Google API
// calls (google.<service>.<operation>). Tracing is off unless
// TRACING_EXPORTER selects otlp or stdout.
//
// # Audit
//
// AuditLogger records every task mutation from either surface. Emails are
// reduced to their domain unless AUDIT_LOGGING_INCLUDE_PII is set.
//
// # Configuration
//
//   - INSTRUMENTATION_ENABLED: Enable/disable instrumentation (default: true)
//   - METRICS_EXPORTER: prometheus, otlp or stdout (default: prometheus)
//   - TRACING_EXPORTER: otlp, stdout or none (default: none)
//   - OTEL_EXPORTER_OTLP_ENDPOINT: OTLP endpoint for traces/metrics
//   - OTEL_TRACES_SAMPLER_ARG: Sampling rate (0.0 to 1.0, default: 0.1)
//   - OTEL_SERVICE_NAME: Service name (default: goaltiers)
//
// # Example Usage
//
//	provider, err := instrumentation.NewProvider(ctx, instrumentation.DefaultConfig())
//	if err != nil {
//		return err
//	}
//	defer provider.Shutdown(ctx)
//
//	provider.Metrics().RecordTaskOperation(ctx, instrumentation.OperationCreate, "weekly", instrumentation.StatusSuccess)
package instrumentation
