package tasks

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2025, 9, 10, 12, 0, 0, 0, time.UTC)

// sequentialIDs returns a generator producing the given IDs in order and
// falling back to numbered IDs once they run out.
func sequentialIDs(ids ...string) func() (string, error) {
	var n atomic.Int64
	return func() (string, error) {
		i := int(n.Add(1)) - 1
		if i < len(ids) {
			return ids[i], nil
		}
		return fmt.Sprintf("task_%d", i), nil
	}
}

func newTestStore(opts ...Option) *Store {
	base := []Option{
		WithClock(func() time.Time { return fixedNow }),
		WithLocation(time.UTC),
	}
	return NewStore(append(base, opts...)...)
}

func intPtr(i int) *int       { return &i }
func strPtr(s string) *string { return &s }
func ctx() context.Context    { return context.Background() }

func mustCreate(t *testing.T, s *Store, in CreateInput) Task {
	t.Helper()
	task, err := s.Create(ctx(), in)
	require.NoError(t, err)
	return task
}

func TestNewStore_HasAllTiers(t *testing.T) {
	s := NewStore()
	all := s.ListAll()

	require.Len(t, all, len(Levels))
	for _, level := range Levels {
		list, ok := all[level]
		assert.True(t, ok, "tier %s missing", level)
		assert.NotNil(t, list, "tier %s should be an empty slice, not nil", level)
		assert.Empty(t, list)
	}
}

func TestCreate_AppendsToTierWithZeroProgress(t *testing.T) {
	for _, level := range Levels {
		t.Run(string(level), func(t *testing.T) {
			s := newTestStore()

			first := mustCreate(t, s, CreateInput{Title: "first", Level: level})
			second := mustCreate(t, s, CreateInput{Title: "second", Description: "desc", Level: level})

			all := s.ListAll()
			list := all[level]
			require.Len(t, list, 2)
			assert.Equal(t, first.ID, list[0].ID)
			assert.Equal(t, second.ID, list[len(list)-1].ID)

			assert.Equal(t, 0, second.Progress)
			assert.Equal(t, level, second.Level)
			assert.Equal(t, "desc", second.Description)
			assert.Equal(t, fixedNow, second.CreatedAt)
			assert.Nil(t, second.ParentID)
			assert.Nil(t, second.DueDate)

			for _, other := range Levels {
				if other != level {
					assert.Empty(t, all[other])
				}
			}
		})
	}
}

func TestCreate_DefaultIDs(t *testing.T) {
	s := NewStore()
	seen := make(map[string]bool)
	for i := 0; i < 50; i++ {
		task := mustCreate(t, s, CreateInput{Title: "t", Level: LevelDaily})
		assert.Regexp(t, `^task_[0-9a-f-]{36}$`, task.ID)
		assert.False(t, seen[task.ID], "duplicate id %s", task.ID)
		seen[task.ID] = true
	}
}

func TestCreate_ParentScenario(t *testing.T) {
	s := newTestStore(WithIDGenerator(sequentialIDs("y1", "q1")))

	a := mustCreate(t, s, CreateInput{Title: "A", Level: LevelYearly})
	require.Equal(t, "y1", a.ID)

	b := mustCreate(t, s, CreateInput{Title: "B", Level: LevelQuarterly, ParentID: "y1"})
	require.Equal(t, "q1", b.ID)

	all := s.ListAll()
	require.Len(t, all[LevelYearly], 1)
	require.Len(t, all[LevelQuarterly], 1)
	assert.Equal(t, "A", all[LevelYearly][0].Title)
	assert.Equal(t, "B", all[LevelQuarterly][0].Title)
	require.NotNil(t, all[LevelQuarterly][0].ParentID)
	assert.Equal(t, "y1", *all[LevelQuarterly][0].ParentID)
}

func TestCreate_Validation(t *testing.T) {
	s := newTestStore(WithIDGenerator(sequentialIDs("y1", "q1", "m1")))
	mustCreate(t, s, CreateInput{Title: "year", Level: LevelYearly})
	mustCreate(t, s, CreateInput{Title: "quarter", Level: LevelQuarterly, ParentID: "y1"})

	tests := []struct {
		name    string
		input   CreateInput
		wantErr error
	}{
		{
			name:    "empty title",
			input:   CreateInput{Title: "   ", Level: LevelDaily},
			wantErr: ErrInvalidTitle,
		},
		{
			name:    "unknown level",
			input:   CreateInput{Title: "x", Level: "hourly"},
			wantErr: ErrInvalidLevel,
		},
		{
			name:    "missing level",
			input:   CreateInput{Title: "x"},
			wantErr: ErrInvalidLevel,
		},
		{
			name:    "yearly with parent",
			input:   CreateInput{Title: "x", Level: LevelYearly, ParentID: "y1"},
			wantErr: ErrInvalidParent,
		},
		{
			name:    "unknown parent",
			input:   CreateInput{Title: "x", Level: LevelQuarterly, ParentID: "nope"},
			wantErr: ErrInvalidParent,
		},
		{
			name:    "parent skips a tier",
			input:   CreateInput{Title: "x", Level: LevelMonthly, ParentID: "y1"},
			wantErr: ErrInvalidParent,
		},
		{
			name:    "parent in same tier",
			input:   CreateInput{Title: "x", Level: LevelQuarterly, ParentID: "q1"},
			wantErr: ErrInvalidParent,
		},
		{
			name:    "due date on monthly",
			input:   CreateInput{Title: "x", Level: LevelMonthly, DueDate: "2025-09-30"},
			wantErr: ErrInvalidDueDate,
		},
		{
			name:    "malformed due date",
			input:   CreateInput{Title: "x", Level: LevelDaily, DueDate: "next tuesday"},
			wantErr: ErrInvalidDueDate,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			before := s.ListAll()

			_, err := s.Create(ctx(), tt.input)
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.wantErr)
			assert.True(t, IsValidation(err))

			assert.Equal(t, before, s.ListAll(), "failed create must not change the store")
		})
	}
}

func TestCreate_DueDate(t *testing.T) {
	s := newTestStore()

	daily := mustCreate(t, s, CreateInput{Title: "d", Level: LevelDaily, DueDate: "2025-09-12"})
	require.NotNil(t, daily.DueDate)
	assert.Equal(t, time.Date(2025, 9, 12, 0, 0, 0, 0, time.UTC), *daily.DueDate)

	weekly := mustCreate(t, s, CreateInput{Title: "w", Level: LevelWeekly, DueDate: "2025-09-13T18:00:00+02:00"})
	require.NotNil(t, weekly.DueDate)
	assert.True(t, weekly.DueDate.Equal(time.Date(2025, 9, 13, 16, 0, 0, 0, time.UTC)))

	// Browser forms post empty strings for unset fields.
	plain := mustCreate(t, s, CreateInput{Title: "p", Level: LevelMonthly, DueDate: "", ParentID: ""})
	assert.Nil(t, plain.DueDate)
	assert.Nil(t, plain.ParentID)
}

func TestUpdate_OnlyTouchesSuppliedFields(t *testing.T) {
	s := newTestStore(WithIDGenerator(sequentialIDs("y1", "q1")))
	mustCreate(t, s, CreateInput{Title: "year", Level: LevelYearly})
	original := mustCreate(t, s, CreateInput{Title: "quarter", Description: "keep me", Level: LevelQuarterly, ParentID: "y1"})

	updated, err := s.Update(ctx(), "q1", UpdateInput{Progress: intPtr(55)})
	require.NoError(t, err)

	assert.Equal(t, 55, updated.Progress)
	assert.Equal(t, original.ID, updated.ID)
	assert.Equal(t, original.Title, updated.Title)
	assert.Equal(t, original.Description, updated.Description)
	assert.Equal(t, original.Level, updated.Level)
	assert.Equal(t, original.ParentID, updated.ParentID)
	assert.Equal(t, original.CreatedAt, updated.CreatedAt)

	stored, err := s.Get("q1")
	require.NoError(t, err)
	assert.Equal(t, updated, stored)
}

func TestUpdate_TitleAndDescription(t *testing.T) {
	s := newTestStore(WithIDGenerator(sequentialIDs("d1")))
	mustCreate(t, s, CreateInput{Title: "old", Description: "old desc", Level: LevelDaily})

	updated, err := s.Update(ctx(), "d1", UpdateInput{Title: strPtr("new"), Description: strPtr("")})
	require.NoError(t, err)
	assert.Equal(t, "new", updated.Title)
	assert.Equal(t, "", updated.Description)
	assert.Equal(t, 0, updated.Progress)
}

func TestUpdate_Validation(t *testing.T) {
	s := newTestStore(WithIDGenerator(sequentialIDs("d1")))
	mustCreate(t, s, CreateInput{Title: "task", Level: LevelDaily})

	tests := []struct {
		name    string
		input   UpdateInput
		wantErr error
	}{
		{name: "negative progress", input: UpdateInput{Progress: intPtr(-1)}, wantErr: ErrInvalidProgress},
		{name: "progress above 100", input: UpdateInput{Progress: intPtr(101)}, wantErr: ErrInvalidProgress},
		{name: "blank title", input: UpdateInput{Title: strPtr(" ")}, wantErr: ErrInvalidTitle},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := s.Update(ctx(), "d1", tt.input)
			assert.ErrorIs(t, err, tt.wantErr)

			task, err := s.Get("d1")
			require.NoError(t, err)
			assert.Equal(t, "task", task.Title)
			assert.Equal(t, 0, task.Progress)
		})
	}
}

func TestUpdateAndDelete_NotFound(t *testing.T) {
	s := newTestStore()
	mustCreate(t, s, CreateInput{Title: "year", Level: LevelYearly})
	before := s.ListAll()

	_, err := s.Update(ctx(), "missing", UpdateInput{Progress: intPtr(10)})
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = s.Delete(ctx(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = s.Get("missing")
	assert.ErrorIs(t, err, ErrNotFound)

	assert.Equal(t, before, s.ListAll())
}

func TestDelete_RemovesExactlyOnce(t *testing.T) {
	s := newTestStore(WithIDGenerator(sequentialIDs("w1", "w2", "w3")))
	mustCreate(t, s, CreateInput{Title: "one", Level: LevelWeekly})
	two := mustCreate(t, s, CreateInput{Title: "two", Level: LevelWeekly})
	mustCreate(t, s, CreateInput{Title: "three", Level: LevelWeekly})

	deleted, err := s.Delete(ctx(), "w2")
	require.NoError(t, err)
	assert.Equal(t, two, deleted)

	list := s.ListAll()[LevelWeekly]
	require.Len(t, list, 2)
	assert.Equal(t, "w1", list[0].ID)
	assert.Equal(t, "w3", list[1].ID)

	_, err = s.Delete(ctx(), "w2")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDelete_DetachesChildren(t *testing.T) {
	s := newTestStore(WithIDGenerator(sequentialIDs("m1", "w1", "w2", "d1")))
	mustCreate(t, s, CreateInput{Title: "month", Level: LevelMonthly})
	mustCreate(t, s, CreateInput{Title: "week 1", Level: LevelWeekly, ParentID: "m1"})
	mustCreate(t, s, CreateInput{Title: "week 2", Level: LevelWeekly, ParentID: "m1"})
	mustCreate(t, s, CreateInput{Title: "day", Level: LevelDaily, ParentID: "w1"})

	_, err := s.Delete(ctx(), "m1")
	require.NoError(t, err)

	all := s.ListAll()
	for _, w := range all[LevelWeekly] {
		assert.Nil(t, w.ParentID, "weekly %s should be detached", w.ID)
	}
	// Grandchildren keep their parent.
	require.Len(t, all[LevelDaily], 1)
	require.NotNil(t, all[LevelDaily][0].ParentID)
	assert.Equal(t, "w1", *all[LevelDaily][0].ParentID)
}

func TestListAll_ReturnsIndependentCopies(t *testing.T) {
	s := newTestStore(WithIDGenerator(sequentialIDs("y1", "q1")))
	mustCreate(t, s, CreateInput{Title: "year", Level: LevelYearly})
	mustCreate(t, s, CreateInput{Title: "quarter", Level: LevelQuarterly, ParentID: "y1"})

	first := s.ListAll()
	second := s.ListAll()
	assert.Equal(t, first, second)

	first[LevelYearly][0].Title = "mutated"
	*first[LevelQuarterly][0].ParentID = "mutated"
	first[LevelDaily] = append(first[LevelDaily], Task{ID: "bogus"})

	assert.Equal(t, second, s.ListAll())
}

func TestDelete_ConcurrentSameID(t *testing.T) {
	s := newTestStore(WithIDGenerator(sequentialIDs("d1")))
	mustCreate(t, s, CreateInput{Title: "day", Level: LevelDaily})

	const workers = 16
	var wg sync.WaitGroup
	var succeeded, notFound atomic.Int32

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.Delete(ctx(), "d1")
			switch {
			case err == nil:
				succeeded.Add(1)
			case errors.Is(err, ErrNotFound):
				notFound.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), succeeded.Load())
	assert.Equal(t, int32(workers-1), notFound.Load())
	assert.Empty(t, s.ListAll()[LevelDaily])
}

func TestConcurrentCreateAndList(t *testing.T) {
	s := NewStore()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, err := s.Create(ctx(), CreateInput{Title: "t", Level: LevelDaily})
			assert.NoError(t, err)
		}()
		go func() {
			defer wg.Done()
			all := s.ListAll()
			assert.Len(t, all, len(Levels))
		}()
	}
	wg.Wait()

	assert.Len(t, s.ListAll()[LevelDaily], 20)
}

func TestSeed_DemoTasks(t *testing.T) {
	s := newTestStore()
	require.NoError(t, s.Seed(ctx(), DemoTasks(fixedNow)))

	all := s.ListAll()
	assert.Equal(t, 5, all.Count())
	for _, level := range Levels {
		require.Len(t, all[level], 1, "tier %s", level)
	}
	require.NotNil(t, all[LevelDaily][0].ParentID)
	assert.Equal(t, "w1", *all[LevelDaily][0].ParentID)
	assert.NotNil(t, all[LevelDaily][0].DueDate)

	// Generated tasks can hang off seeded ones.
	_, err := s.Create(ctx(), CreateInput{Title: "another day", Level: LevelDaily, ParentID: "w1"})
	assert.NoError(t, err)

	// Seeding the same IDs twice is rejected.
	assert.Error(t, s.Seed(ctx(), DemoTasks(fixedNow)))
}

func TestSeed_RejectsOrphans(t *testing.T) {
	s := newTestStore()
	err := s.Seed(ctx(), []Task{{ID: "q1", Title: "q", Level: LevelQuarterly, ParentID: strPtr("y1")}})
	assert.ErrorIs(t, err, ErrInvalidParent)
	assert.Equal(t, 0, s.ListAll().Count())
}

// memoryPersister records saved snapshots and can be told to fail.
type memoryPersister struct {
	mu       sync.Mutex
	snapshot Tiers
	version  int64
	saves    int
	failSave bool
	loadErr  error

	// beforeSave runs once before the next Save, outside the lock.
	beforeSave func()
}

func (p *memoryPersister) Load(context.Context) (Snapshot, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.loadErr != nil {
		return Snapshot{}, p.loadErr
	}
	if p.snapshot == nil {
		return Snapshot{}, nil
	}
	version := p.version
	if version == 0 {
		version = 1
	}
	return Snapshot{Tiers: p.snapshot.clone(), Version: version}, nil
}

func (p *memoryPersister) Save(_ context.Context, tiers Tiers, version int64) (int64, error) {
	p.mu.Lock()
	hook := p.beforeSave
	p.beforeSave = nil
	p.mu.Unlock()
	if hook != nil {
		hook()
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.failSave {
		return 0, errors.New("backend unavailable")
	}
	if version != p.version {
		return 0, ErrSnapshotConflict
	}
	p.saves++
	p.version++
	p.snapshot = tiers.clone()
	return p.version, nil
}

func TestPersister_SavesEveryMutation(t *testing.T) {
	p := &memoryPersister{}
	s := newTestStore(WithPersister(p), WithIDGenerator(sequentialIDs("y1", "q1")))

	mustCreate(t, s, CreateInput{Title: "year", Level: LevelYearly})
	mustCreate(t, s, CreateInput{Title: "quarter", Level: LevelQuarterly, ParentID: "y1"})
	_, err := s.Update(ctx(), "q1", UpdateInput{Progress: intPtr(10)})
	require.NoError(t, err)
	_, err = s.Delete(ctx(), "y1")
	require.NoError(t, err)

	assert.Equal(t, 4, p.saves)
	assert.Equal(t, s.ListAll(), p.snapshot)
}

func TestPersister_RollsBackOnSaveFailure(t *testing.T) {
	p := &memoryPersister{}
	s := newTestStore(WithPersister(p), WithIDGenerator(sequentialIDs("y1", "y2")))
	mustCreate(t, s, CreateInput{Title: "year", Level: LevelYearly})
	before := s.ListAll()

	p.failSave = true

	_, err := s.Create(ctx(), CreateInput{Title: "other", Level: LevelYearly})
	assert.Error(t, err)
	assert.False(t, IsValidation(err))

	_, err = s.Update(ctx(), "y1", UpdateInput{Title: strPtr("renamed")})
	assert.Error(t, err)

	_, err = s.Delete(ctx(), "y1")
	assert.Error(t, err)

	assert.Equal(t, before, s.ListAll())
}

func TestLoad_RestoresSnapshot(t *testing.T) {
	source := newTestStore()
	require.NoError(t, source.Seed(ctx(), DemoTasks(fixedNow)))

	p := &memoryPersister{snapshot: source.ListAll()}
	s := newTestStore(WithPersister(p))
	require.NoError(t, s.Load(ctx()))
	assert.Equal(t, source.ListAll(), s.ListAll())

	p.loadErr = errors.New("boom")
	assert.Error(t, s.Load(ctx()))
}

func TestLoad_EmptyAndInvalid(t *testing.T) {
	s := newTestStore(WithPersister(&memoryPersister{}))
	require.NoError(t, s.Load(ctx()))
	assert.Equal(t, 0, s.ListAll().Count())

	// Without a persister Load is a no-op.
	assert.NoError(t, NewStore().Load(ctx()))

	year := Task{ID: "y1", Title: "year", Level: LevelYearly}
	due := fixedNow

	tests := []struct {
		name     string
		snapshot Tiers
		wantErr  error
	}{
		{
			name:     "unknown tier",
			snapshot: Tiers{"hourly": {{ID: "x", Title: "x", Level: "hourly"}}},
			wantErr:  ErrInvalidLevel,
		},
		{
			name:     "level differs from tier",
			snapshot: Tiers{LevelYearly: {{ID: "x", Title: "x", Level: LevelDaily}}},
			wantErr:  ErrInvalidLevel,
		},
		{
			name:     "empty title",
			snapshot: Tiers{LevelYearly: {{ID: "x", Title: "  ", Level: LevelYearly}}},
			wantErr:  ErrInvalidTitle,
		},
		{
			name:     "progress above 100",
			snapshot: Tiers{LevelYearly: {{ID: "x", Title: "x", Level: LevelYearly, Progress: 500}}},
			wantErr:  ErrInvalidProgress,
		},
		{
			name:     "negative progress",
			snapshot: Tiers{LevelYearly: {{ID: "x", Title: "x", Level: LevelYearly, Progress: -1}}},
			wantErr:  ErrInvalidProgress,
		},
		{
			name:     "missing parent",
			snapshot: Tiers{LevelQuarterly: {{ID: "q1", Title: "q", Level: LevelQuarterly, ParentID: strPtr("nope")}}},
			wantErr:  ErrInvalidParent,
		},
		{
			name: "parent two tiers up",
			snapshot: Tiers{
				LevelYearly:  {year},
				LevelMonthly: {{ID: "m1", Title: "m", Level: LevelMonthly, ParentID: strPtr("y1")}},
			},
			wantErr: ErrInvalidParent,
		},
		{
			name:     "parent on yearly",
			snapshot: Tiers{LevelYearly: {{ID: "x", Title: "x", Level: LevelYearly, ParentID: strPtr("y0")}}},
			wantErr:  ErrInvalidParent,
		},
		{
			name:     "due date on monthly",
			snapshot: Tiers{LevelMonthly: {{ID: "m1", Title: "m", Level: LevelMonthly, DueDate: &due}}},
			wantErr:  ErrInvalidDueDate,
		},
		{
			name: "duplicate id across tiers",
			snapshot: Tiers{
				LevelYearly: {year},
				LevelDaily:  {{ID: "y1", Title: "d", Level: LevelDaily}},
			},
		},
		{
			name:     "missing id",
			snapshot: Tiers{LevelDaily: {{Title: "d", Level: LevelDaily}}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestStore(WithPersister(&memoryPersister{}))
			mustCreate(t, s, CreateInput{Title: "kept", Level: LevelWeekly})
			before := s.ListAll()

			// The existing save is version 1, so the broken snapshot is
			// seen as newer.
			p := s.persister.(*memoryPersister)
			p.snapshot = tt.snapshot
			p.version = 2

			err := s.Load(ctx())
			require.Error(t, err)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			}
			assert.ErrorIs(t, err, ErrCorruptSnapshot)
			assert.False(t, IsValidation(err))
			assert.Equal(t, before, s.ListAll())

			_, err = s.Update(ctx(), before[LevelWeekly][0].ID, UpdateInput{Progress: intPtr(10)})
			assert.ErrorIs(t, err, ErrCorruptSnapshot, "writes refuse to build on a damaged snapshot")
		})
	}
}

func TestStore_ReplaysChangeAfterConcurrentSave(t *testing.T) {
	p := &memoryPersister{}
	writer := newTestStore(WithPersister(p), WithIDGenerator(sequentialIDs("y1", "q1")))
	s := newTestStore(WithPersister(p), WithIDGenerator(sequentialIDs("y2")))

	mustCreate(t, writer, CreateInput{Title: "first year goal", Level: LevelYearly})

	// Another writer saves between s loading the snapshot and saving.
	p.beforeSave = func() {
		mustCreate(t, writer, CreateInput{Title: "quarter", Level: LevelQuarterly, ParentID: "y1"})
	}
	mustCreate(t, s, CreateInput{Title: "second year goal", Level: LevelYearly})

	all := s.ListAll()
	assert.Len(t, all[LevelYearly], 2)
	assert.Len(t, all[LevelQuarterly], 1)
	assert.Equal(t, all, p.snapshot)

	require.NoError(t, writer.Refresh(ctx()))
	assert.Equal(t, all, writer.ListAll())
}

func TestStore_ValidatesAgainstOtherWriters(t *testing.T) {
	p := &memoryPersister{}
	a := newTestStore(WithPersister(p), WithIDGenerator(sequentialIDs("y1")))
	b := newTestStore(WithPersister(p), WithIDGenerator(sequentialIDs("q1")))

	mustCreate(t, a, CreateInput{Title: "year", Level: LevelYearly})

	// b never saw y1 but still accepts it as parent.
	q := mustCreate(t, b, CreateInput{Title: "quarter", Level: LevelQuarterly, ParentID: "y1"})
	require.NotNil(t, q.ParentID)

	_, err := a.Delete(ctx(), "y1")
	require.NoError(t, err)

	// The delete detached the quarter goal created through b.
	require.NoError(t, b.Refresh(ctx()))
	got, err := b.Get("q1")
	require.NoError(t, err)
	assert.Nil(t, got.ParentID)

	_, err = b.Update(ctx(), "y1", UpdateInput{Progress: intPtr(5)})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStore_GivesUpAfterRepeatedConflicts(t *testing.T) {
	p := &conflictingPersister{}
	s := newTestStore(WithPersister(p))

	_, err := s.Create(ctx(), CreateInput{Title: "year", Level: LevelYearly})
	assert.ErrorIs(t, err, ErrSnapshotConflict)
	assert.Equal(t, maxSaveAttempts, p.saves)
	assert.Equal(t, 0, s.ListAll().Count())
}

// conflictingPersister loses every race.
type conflictingPersister struct {
	saves int
}

func (p *conflictingPersister) Load(context.Context) (Snapshot, error) {
	return Snapshot{}, nil
}

func (p *conflictingPersister) Save(context.Context, Tiers, int64) (int64, error) {
	p.saves++
	return 0, ErrSnapshotConflict
}
