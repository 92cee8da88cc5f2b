package tasks

import "time"

// DemoTasks returns a small hierarchy with one task per tier, linked
// y1 -> q1 -> m1 -> w1 -> d1. It is loaded by "serve --seed-demo".
func DemoTasks(now time.Time) []Task {
	parent := func(id string) *string { return &id }
	due := now

	return []Task{
		{
			ID:          "y1",
			Title:       "Career growth this year",
			Description: "Improve project management skills",
			Level:       LevelYearly,
			Progress:    25,
			CreatedAt:   now,
		},
		{
			ID:          "q1",
			Title:       "Learn a new stack this quarter",
			Description: "Deeper understanding of the frontend and backend",
			Level:       LevelQuarterly,
			ParentID:    parent("y1"),
			Progress:    40,
			CreatedAt:   now,
		},
		{
			ID:          "m1",
			Title:       "Finish the goal tracker this month",
			Description: "Calendar integration",
			Level:       LevelMonthly,
			ParentID:    parent("q1"),
			Progress:    60,
			CreatedAt:   now,
		},
		{
			ID:          "w1",
			Title:       "Build the core features this week",
			Description: "Calendar view and task management",
			Level:       LevelWeekly,
			ParentID:    parent("m1"),
			Progress:    70,
			CreatedAt:   now,
		},
		{
			ID:          "d1",
			Title:       "Implement task creation today",
			Description: "Form and API wiring",
			Level:       LevelDaily,
			ParentID:    parent("w1"),
			Progress:    80,
			DueDate:     &due,
			CreatedAt:   now,
		},
	}
}
