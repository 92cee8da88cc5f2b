// Package logging holds the slog conventions shared by goaltiers. Its
// attribute helpers keep emails and session cookies out of log output.
//
// Attach context once and log with typed attributes:
//
//	logger := logging.WithService(slog.Default(), "tasks")
//	logger.Info("task created", logging.Tier("weekly"), logging.TaskID(task.ID))
//
// Emails are logged through UserHash and session IDs through Session,
// never as raw strings.
package logging
