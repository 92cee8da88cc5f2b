package tasks

import "errors"

var (
	// ErrNotFound is returned when no task has the requested ID.
	ErrNotFound = errors.New("task not found")

	// ErrInvalidLevel is returned when a level is not one of the five tiers.
	ErrInvalidLevel = errors.New("invalid level")

	// ErrInvalidTitle is returned when a title is empty.
	ErrInvalidTitle = errors.New("title is required")

	// ErrInvalidParent is returned when a parent does not exist or is not
	// in the tier immediately above the child.
	ErrInvalidParent = errors.New("invalid parent")

	// ErrInvalidProgress is returned when progress is outside [0, 100].
	ErrInvalidProgress = errors.New("progress must be between 0 and 100")

	// ErrInvalidDueDate is returned for malformed due dates or due dates on
	// tiers that do not accept them.
	ErrInvalidDueDate = errors.New("invalid due date")

	// ErrSnapshotConflict is returned by Persister.Save when another
	// writer saved a newer snapshot first.
	ErrSnapshotConflict = errors.New("task snapshot was changed by another writer")

	// ErrCorruptSnapshot wraps the rule a persisted snapshot breaks. It is
	// a server fault even when the wrapped error is a validation error.
	ErrCorruptSnapshot = errors.New("task snapshot is invalid")
)

// IsValidation reports whether err is caused by invalid caller input.
func IsValidation(err error) bool {
	if errors.Is(err, ErrCorruptSnapshot) {
		return false
	}
	return errors.Is(err, ErrInvalidLevel) ||
		errors.Is(err, ErrInvalidTitle) ||
		errors.Is(err, ErrInvalidParent) ||
		errors.Is(err, ErrInvalidProgress) ||
		errors.Is(err, ErrInvalidDueDate)
}
