package tasks

import (
	"fmt"
	"strings"
	"time"
)

// Level is one of the five goal granularities.
type Level string

const (
	LevelYearly    Level = "yearly"
	LevelQuarterly Level = "quarterly"
	LevelMonthly   Level = "monthly"
	LevelWeekly    Level = "weekly"
	LevelDaily     Level = "daily"
)

// Levels lists every tier from coarsest to finest. This is also the order
// in which the store searches tiers.
var Levels = []Level{
	LevelYearly,
	LevelQuarterly,
	LevelMonthly,
	LevelWeekly,
	LevelDaily,
}

// ParseLevel converts a string to a Level. Matching is case-insensitive
// and ignores surrounding whitespace.
func ParseLevel(s string) (Level, error) {
	l := Level(strings.ToLower(strings.TrimSpace(s)))
	if !l.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidLevel, s)
	}
	return l, nil
}

// Valid reports whether l is one of the five known tiers.
func (l Level) Valid() bool {
	return l.index() >= 0
}

// Parent returns the tier immediately above l. The second return value is
// false for yearly and for unknown levels.
func (l Level) Parent() (Level, bool) {
	i := l.index()
	if i <= 0 {
		return "", false
	}
	return Levels[i-1], true
}

// Child returns the tier immediately below l. The second return value is
// false for daily and for unknown levels.
func (l Level) Child() (Level, bool) {
	i := l.index()
	if i < 0 || i == len(Levels)-1 {
		return "", false
	}
	return Levels[i+1], true
}

// AcceptsDueDate reports whether tasks of this tier may carry a due date.
func (l Level) AcceptsDueDate() bool {
	return l == LevelWeekly || l == LevelDaily
}

func (l Level) index() int {
	for i, known := range Levels {
		if l == known {
			return i
		}
	}
	return -1
}

// Task is a single goal record.
type Task struct {
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Level       Level      `json:"level"`
	ParentID    *string    `json:"parentId"`
	Progress    int        `json:"progress"`
	DueDate     *time.Time `json:"dueDate"`
	CreatedAt   time.Time  `json:"createdAt"`
}

// clone returns a copy of t that shares no pointers with it.
func (t Task) clone() Task {
	c := t
	if t.ParentID != nil {
		p := *t.ParentID
		c.ParentID = &p
	}
	if t.DueDate != nil {
		d := *t.DueDate
		c.DueDate = &d
	}
	return c
}

// Tiers maps each level to its tasks in insertion order. It is also the
// serialization contract for listing and for persisted snapshots.
type Tiers map[Level][]Task

// clone returns a deep copy with every known tier present.
func (t Tiers) clone() Tiers {
	out := make(Tiers, len(Levels))
	for _, level := range Levels {
		src := t[level]
		dst := make([]Task, len(src))
		for i, task := range src {
			dst[i] = task.clone()
		}
		out[level] = dst
	}
	return out
}

// Count returns the number of tasks across all tiers.
func (t Tiers) Count() int {
	n := 0
	for _, list := range t {
		n += len(list)
	}
	return n
}

// CreateInput holds the fields accepted when creating a task.
// Empty ParentID and DueDate mean "not set".
type CreateInput struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Level       Level  `json:"level"`
	ParentID    string `json:"parentId"`
	DueDate     string `json:"dueDate"` // "2006-01-02" or RFC3339
}

// UpdateInput holds the fields that may change on an existing task.
// Nil fields are left untouched.
type UpdateInput struct {
	Progress    *int    `json:"progress,omitempty"`
	Title       *string `json:"title,omitempty"`
	Description *string `json:"description,omitempty"`
}

// Empty reports whether the update carries no fields.
func (u UpdateInput) Empty() bool {
	return u.Progress == nil && u.Title == nil && u.Description == nil
}

const dueDateLayout = "2006-01-02"

// parseDueDate accepts a calendar date or an RFC3339 timestamp. Calendar
// dates resolve to midnight in loc.
func parseDueDate(s string, loc *time.Location) (time.Time, error) {
	s = strings.TrimSpace(s)
	if t, err := time.ParseInLocation(dueDateLayout, s, loc); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q is neither YYYY-MM-DD nor RFC3339", ErrInvalidDueDate, s)
	}
	return t, nil
}
