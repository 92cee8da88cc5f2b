// Package tasks provides the hierarchical goal store for goaltiers.
//
// Goals live in five nested tiers ordered from coarsest to finest:
// yearly, quarterly, monthly, weekly and daily. Each tier holds an ordered
// sequence of tasks in insertion order. A task may point at a parent task
// in the tier immediately above it; yearly tasks never have a parent.
//
// # Invariants
//
//   - Task IDs are assigned by the store, unique across all tiers, and never reused.
//   - Level, ParentID and CreatedAt never change after creation.
//   - A non-nil ParentID always references an existing task one tier up.
//     Deleting a task detaches its children (their ParentID becomes nil).
//   - Progress stays within [0, 100].
//
// # Concurrency
//
// Store is safe for concurrent use. Mutations hold a single write lock for
// their whole scan, so concurrent deletes of the same ID yield exactly one
// success and one ErrNotFound. Readers receive copies and never observe a
// partially applied mutation.
//
// # Persistence
//
// The store is volatile by default. A Persister can be attached with
// WithPersister; the store then saves the full tier mapping after every
// mutation and rolls the mutation back if the save fails. ValkeyPersister
// stores the mapping as JSON in a single Valkey key; SQLitePersister keeps
// the same document in one row of a local database file.
//
// # Example Usage
//
//	store := tasks.NewStore()
//
//	year, err := store.Create(ctx, tasks.CreateInput{
//	    Title: "Grow as an engineer",
//	    Level: tasks.LevelYearly,
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	quarter, err := store.Create(ctx, tasks.CreateInput{
//	    Title:    "Ship the goal tracker",
//	    Level:    tasks.LevelQuarterly,
//	    ParentID: year.ID,
//	})
package tasks
