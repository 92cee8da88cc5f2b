package logging

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
)

// Attribute keys. Log queries depend on these names.
const (
	KeyOperation = "operation"
	KeyService   = "service"
	KeyUserHash  = "user_hash"
	KeyStatus    = "status"
	KeyError     = "error"
	KeyTool      = "tool"
	KeyTaskID    = "task_id"
	KeyTier      = "tier"
	KeySession   = "session"
)

// Status values. instrumentation has the same pair; it imports this
// package, so they cannot be shared from there.
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// Output formats accepted by NewLogger.
const (
	FormatText = "text"
	FormatJSON = "json"
)

// NewLogger builds the process logger. A nil w writes to stderr so stdout
// stays free for the MCP stdio transport. An empty format means text.
func NewLogger(w io.Writer, format string, debug bool) (*slog.Logger, error) {
	if w == nil {
		w = os.Stderr
	}
	opts := &slog.HandlerOptions{Level: slog.LevelInfo}
	if debug {
		opts.Level = slog.LevelDebug
	}

	var h slog.Handler
	switch strings.ToLower(format) {
	case "", FormatText:
		h = slog.NewTextHandler(w, opts)
	case FormatJSON:
		h = slog.NewJSONHandler(w, opts)
	default:
		return nil, fmt.Errorf("unsupported log format %q (supported: text, json)", format)
	}
	return slog.New(h), nil
}

func WithOperation(logger *slog.Logger, operation string) *slog.Logger {
	return logger.With(Operation(operation))
}

func WithTool(logger *slog.Logger, tool string) *slog.Logger {
	return logger.With(Tool(tool))
}

func WithService(logger *slog.Logger, service string) *slog.Logger {
	return logger.With(Service(service))
}

func Operation(op string) slog.Attr { return slog.String(KeyOperation, op) }

func Service(svc string) slog.Attr { return slog.String(KeyService, svc) }

func Tool(name string) slog.Attr { return slog.String(KeyTool, name) }

func Status(status string) slog.Attr { return slog.String(KeyStatus, status) }

func TaskID(id string) slog.Attr { return slog.String(KeyTaskID, id) }

// Tier takes the level name, such as "weekly".
func Tier(level string) slog.Attr { return slog.String(KeyTier, level) }

// Session identifies a browser session by a hash of its cookie value.
func Session(sessionID string) slog.Attr {
	return slog.String(KeySession, SanitizeToken(sessionID))
}

// Err is safe to call with a nil error: the empty group it returns is
// dropped by every handler.
func Err(err error) slog.Attr {
	if err == nil {
		return slog.Group("")
	}
	return slog.String(KeyError, err.Error())
}

// AnonymizeEmail hashes a case-folded email so log lines about the same
// user correlate without carrying the address.
func AnonymizeEmail(email string) string {
	if email == "" {
		return ""
	}
	sum := sha256.Sum256([]byte(strings.ToLower(email)))
	return "user:" + hex.EncodeToString(sum[:8])
}

func UserHash(email string) slog.Attr {
	return slog.String(KeyUserHash, AnonymizeEmail(email))
}

// SanitizeToken masks a secret down to a short hash prefix.
func SanitizeToken(token string) string {
	if token == "" {
		return "<empty>"
	}
	sum := sha256.Sum256([]byte(token))
	return "[" + hex.EncodeToString(sum[:4]) + "]"
}
