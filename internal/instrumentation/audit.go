package instrumentation

import (
	"context"
	"log/slog"
	"time"
)

// Surfaces through which tasks can be changed.
const (
	SurfaceHTTP = "http"
	SurfaceMCP  = "mcp"
)

// TaskMutation captures one attempt to change the task store for the
// audit trail, regardless of whether it arrived over HTTP or MCP.
//
// Actor contains PII. LogAttrs only exposes its domain; the full address
// is logged only when the AuditLogger is configured with IncludePII.
type TaskMutation struct {
	Action  string // create, update, delete
	Surface string // SurfaceHTTP or SurfaceMCP
	Actor   string // email of the signed-in user, empty for stdio MCP
	TaskID  string
	Tier    string

	StartTime time.Time
	Duration  time.Duration
	Success   bool
	Error     string

	TraceID string
	SpanID  string
}

// NewTaskMutation starts timing a mutation. Call Complete when it finishes.
func NewTaskMutation(action, surface string) *TaskMutation {
	return &TaskMutation{
		Action:    action,
		Surface:   surface,
		StartTime: time.Now(),
	}
}

// WithActor sets the user performing the mutation.
func (tm *TaskMutation) WithActor(email string) *TaskMutation {
	tm.Actor = email
	return tm
}

// WithTask sets the affected task and its tier.
func (tm *TaskMutation) WithTask(id, tier string) *TaskMutation {
	tm.TaskID = id
	tm.Tier = tier
	return tm
}

// WithSpanContext copies trace identifiers from the span in ctx.
func (tm *TaskMutation) WithSpanContext(ctx context.Context) *TaskMutation {
	tm.TraceID = GetTraceID(ctx)
	tm.SpanID = GetSpanID(ctx)
	return tm
}

// Complete records the outcome and duration. A nil err means success.
func (tm *TaskMutation) Complete(err error) *TaskMutation {
	tm.Duration = time.Since(tm.StartTime)
	tm.Success = err == nil
	if err != nil {
		tm.Error = err.Error()
	}
	return tm
}

// Status returns StatusSuccess or StatusError.
func (tm *TaskMutation) Status() string {
	if tm.Success {
		return StatusSuccess
	}
	return StatusError
}

// LogAttrs returns the attributes of the mutation. The actor is reduced
// to its domain unless includePII is set.
func (tm *TaskMutation) LogAttrs(includePII bool) []slog.Attr {
	attrs := []slog.Attr{
		slog.String("action", tm.Action),
		slog.String("surface", tm.Surface),
		slog.Duration("duration", tm.Duration),
		slog.Bool("success", tm.Success),
	}

	if tm.Actor != "" {
		if includePII {
			attrs = append(attrs, slog.String("user", tm.Actor))
		} else {
			attrs = append(attrs, slog.String("user_domain", ExtractUserDomain(tm.Actor)))
		}
	}
	if tm.TaskID != "" {
		attrs = append(attrs, slog.String("task_id", tm.TaskID))
	}
	if tm.Tier != "" {
		attrs = append(attrs, slog.String("tier", tm.Tier))
	}
	if tm.TraceID != "" {
		attrs = append(attrs, slog.String("trace_id", tm.TraceID))
	}
	if tm.SpanID != "" {
		attrs = append(attrs, slog.String("span_id", tm.SpanID))
	}
	if tm.Error != "" {
		attrs = append(attrs, slog.String("error", tm.Error))
	}

	return attrs
}

// AuditLogger writes the task mutation audit trail.
// A nil *AuditLogger discards everything.
type AuditLogger struct {
	logger     *slog.Logger
	includePII bool
	enabled    bool
}

// NewAuditLogger creates an AuditLogger. A nil logger falls back to
// slog.Default().
func NewAuditLogger(logger *slog.Logger, config AuditLoggingConfig) *AuditLogger {
	if logger == nil {
		logger = slog.Default()
	}
	return &AuditLogger{
		logger:     logger.With(slog.String("component", "audit")),
		includePII: config.IncludePII,
		enabled:    config.Enabled,
	}
}

// LogTaskMutation writes one audit entry. Failed mutations are logged
// at warn level.
func (al *AuditLogger) LogTaskMutation(ctx context.Context, tm *TaskMutation) {
	if al == nil || !al.enabled || tm == nil {
		return
	}

	level := slog.LevelInfo
	msg := "task_mutated"
	if !tm.Success {
		level = slog.LevelWarn
		msg = "task_mutation_failed"
	}

	al.logger.LogAttrs(ctx, level, msg, tm.LogAttrs(al.includePII)...)
}
