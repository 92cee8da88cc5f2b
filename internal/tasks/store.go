package tasks

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/teemow/goaltiers/internal/instrumentation"
	"github.com/teemow/goaltiers/internal/logging"
)

// IDPrefix is prepended to every generated task ID.
const IDPrefix = "task_"

// maxSaveAttempts bounds how often a mutation is replayed after losing a
// race with another writer.
const maxSaveAttempts = 5

// Store owns all goal records, grouped by tier.
type Store struct {
	mu        sync.RWMutex
	tiers     Tiers
	persister Persister
	now       func() time.Time
	newID     func() (string, error)
	location  *time.Location
	logger    *slog.Logger

	// version of the persisted snapshot s.tiers reflects; 0 before the
	// first save.
	version int64
}

// Option configures a Store.
type Option func(*Store)

// WithClock sets the clock used for CreatedAt.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// WithIDGenerator replaces the default UUIDv7-based ID generator.
func WithIDGenerator(gen func() (string, error)) Option {
	return func(s *Store) {
		if gen != nil {
			s.newID = gen
		}
	}
}

// WithPersister attaches a snapshot backend. Call Load before serving
// requests to restore the last saved state.
func WithPersister(p Persister) Option {
	return func(s *Store) {
		s.persister = p
	}
}

// WithLocation sets the location used to resolve date-only due dates.
func WithLocation(loc *time.Location) Option {
	return func(s *Store) {
		if loc != nil {
			s.location = loc
		}
	}
}

// WithLogger sets the logger. A nil logger falls back to slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewStore creates an empty store with all five tiers present.
func NewStore(opts ...Option) *Store {
	s := &Store{
		tiers:    Tiers{}.clone(),
		now:      time.Now,
		newID:    newTaskID,
		location: time.Local,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = logging.WithService(s.logger, "tasks")
	return s
}

func newTaskID() (string, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", fmt.Errorf("failed to generate task id: %w", err)
	}
	return IDPrefix + id.String(), nil
}

// Load replaces the store contents with the persister's latest snapshot.
// It is a no-op without a persister or when nothing has been saved yet.
// A snapshot that breaks the tier rules is rejected and the store keeps
// its current contents.
func (s *Store) Load(ctx context.Context) error {
	ctx, span := instrumentation.StartStoreSpan(ctx, instrumentation.OperationLoad, "")
	s.mu.Lock()
	changed, err := s.sync(ctx)
	s.mu.Unlock()
	instrumentation.EndSpan(span, err)
	if err == nil && changed {
		s.logger.Info("loaded task snapshot", slog.Int("tasks", s.ListAll().Count()))
	}
	return err
}

// Refresh picks up changes saved by other processes sharing the
// persister. Readers call it before ListAll or Get.
func (s *Store) Refresh(ctx context.Context) error {
	if s.persister == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	changed, err := s.sync(ctx)
	if changed {
		s.logger.Debug("task snapshot changed", slog.Int64("version", s.version))
	}
	return err
}

// sync installs the persisted snapshot when its version differs from the
// one held in memory. Callers must hold the write lock.
func (s *Store) sync(ctx context.Context) (bool, error) {
	if s.persister == nil {
		return false, nil
	}

	snapshot, err := s.persister.Load(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to load task snapshot: %w", err)
	}
	if snapshot.Tiers == nil || snapshot.Version == s.version {
		return false, nil
	}

	tiers, err := validateSnapshot(snapshot.Tiers)
	if err != nil {
		return false, fmt.Errorf("failed to load task snapshot version %d: %w: %w", snapshot.Version, ErrCorruptSnapshot, err)
	}
	s.tiers = tiers
	s.version = snapshot.Version
	return true, nil
}

// ListAll returns a copy of every tier. All five tiers are always present.
func (s *Store) ListAll() Tiers {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.tiers.clone()
}

// Get returns the task with the given ID.
func (s *Store) Get(id string) (Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	level, i, ok := s.find(id)
	if !ok {
		return Task{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return s.tiers[level][i].clone(), nil
}

// Create validates the input and appends a new task to the end of its tier.
func (s *Store) Create(ctx context.Context, in CreateInput) (Task, error) {
	ctx, span := instrumentation.StartStoreSpan(ctx, instrumentation.OperationCreate, string(in.Level))
	task, err := s.create(ctx, in)
	span.SetAttributes(instrumentation.NewSpanAttributeBuilder().WithTaskID(task.ID).Build()...)
	instrumentation.EndSpan(span, err)
	return task, err
}

func (s *Store) create(ctx context.Context, in CreateInput) (Task, error) {
	title := strings.TrimSpace(in.Title)
	if title == "" {
		return Task{}, ErrInvalidTitle
	}
	if !in.Level.Valid() {
		return Task{}, fmt.Errorf("%w: %q", ErrInvalidLevel, in.Level)
	}

	var dueDate *time.Time
	if strings.TrimSpace(in.DueDate) != "" {
		if !in.Level.AcceptsDueDate() {
			return Task{}, fmt.Errorf("%w: %s tasks do not take a due date", ErrInvalidDueDate, in.Level)
		}
		d, err := parseDueDate(in.DueDate, s.location)
		if err != nil {
			return Task{}, err
		}
		dueDate = &d
	}

	id, err := s.newID()
	if err != nil {
		return Task{}, err
	}

	createdAt := s.now()

	var task Task
	err = s.apply(ctx, func(staged Tiers) error {
		parentID, err := validateParentIn(staged, in.Level, strings.TrimSpace(in.ParentID))
		if err != nil {
			return err
		}
		if _, _, exists := findIn(staged, id); exists {
			return fmt.Errorf("failed to create task: duplicate id %s", id)
		}

		task = Task{
			ID:          id,
			Title:       title,
			Description: in.Description,
			Level:       in.Level,
			ParentID:    parentID,
			Progress:    0,
			DueDate:     dueDate,
			CreatedAt:   createdAt,
		}
		staged[in.Level] = append(staged[in.Level], task)
		return nil
	})
	if err != nil {
		return Task{}, err
	}

	s.logger.Info("task created",
		logging.Operation("tasks.create"),
		logging.TaskID(task.ID),
		logging.Tier(string(task.Level)))
	return task.clone(), nil
}

// Update applies the supplied fields to the task with the given ID.
// Level, ParentID, ID and CreatedAt are never modified.
func (s *Store) Update(ctx context.Context, id string, in UpdateInput) (Task, error) {
	ctx, span := instrumentation.StartStoreSpan(ctx, instrumentation.OperationUpdate, "")
	task, err := s.update(ctx, id, in)
	span.SetAttributes(instrumentation.NewSpanAttributeBuilder().WithTaskID(id).WithTier(string(task.Level)).Build()...)
	instrumentation.EndSpan(span, err)
	return task, err
}

func (s *Store) update(ctx context.Context, id string, in UpdateInput) (Task, error) {
	if in.Progress != nil && (*in.Progress < 0 || *in.Progress > 100) {
		return Task{}, fmt.Errorf("%w: got %d", ErrInvalidProgress, *in.Progress)
	}
	var title string
	if in.Title != nil {
		title = strings.TrimSpace(*in.Title)
		if title == "" {
			return Task{}, ErrInvalidTitle
		}
	}

	var updated Task
	err := s.apply(ctx, func(staged Tiers) error {
		level, i, ok := findIn(staged, id)
		if !ok {
			return fmt.Errorf("%w: %s", ErrNotFound, id)
		}

		task := &staged[level][i]
		if in.Progress != nil {
			task.Progress = *in.Progress
		}
		if in.Title != nil {
			task.Title = title
		}
		if in.Description != nil {
			task.Description = *in.Description
		}
		updated = task.clone()
		return nil
	})
	if err != nil {
		return Task{}, err
	}

	s.logger.Debug("task updated",
		logging.Operation("tasks.update"),
		logging.TaskID(id))
	return updated, nil
}

// Delete removes the task with the given ID and returns it. Tasks that
// had it as parent are detached: their ParentID becomes nil.
func (s *Store) Delete(ctx context.Context, id string) (Task, error) {
	ctx, span := instrumentation.StartStoreSpan(ctx, instrumentation.OperationDelete, "")
	task, err := s.delete(ctx, id)
	span.SetAttributes(instrumentation.NewSpanAttributeBuilder().WithTaskID(id).WithTier(string(task.Level)).Build()...)
	instrumentation.EndSpan(span, err)
	return task, err
}

func (s *Store) delete(ctx context.Context, id string) (Task, error) {
	var deleted Task
	detached := 0
	err := s.apply(ctx, func(staged Tiers) error {
		level, i, ok := findIn(staged, id)
		if !ok {
			return fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		deleted = staged[level][i].clone()

		list := staged[level]
		staged[level] = append(list[:i:i], list[i+1:]...)

		detached = 0
		child, hasChild := level.Child()
		if !hasChild {
			return nil
		}
		for j := range staged[child] {
			if p := staged[child][j].ParentID; p != nil && *p == id {
				staged[child][j].ParentID = nil
				detached++
			}
		}
		return nil
	})
	if err != nil {
		return Task{}, err
	}

	s.logger.Info("task deleted",
		logging.Operation("tasks.delete"),
		logging.TaskID(id),
		slog.Int("detached_children", detached))
	return deleted, nil
}

// Seed appends tasks verbatim, keeping their IDs and timestamps. It is
// meant for demo data and fixtures; parents must precede their children.
func (s *Store) Seed(ctx context.Context, seed []Task) error {
	ctx, span := instrumentation.StartStoreSpan(ctx, instrumentation.OperationSeed, "")
	err := s.seed(ctx, seed)
	instrumentation.EndSpan(span, err)
	return err
}

func (s *Store) seed(ctx context.Context, seed []Task) error {
	return s.apply(ctx, func(staged Tiers) error {
		for _, task := range seed {
			if err := stageTask(staged, task.Level, task); err != nil {
				return fmt.Errorf("failed to seed task %s: %w", task.ID, err)
			}
		}
		return nil
	})
}

// apply runs change against a copy of the latest snapshot and installs
// the copy once it is saved. When another process saved first, Save
// reports ErrSnapshotConflict and the change is replayed on the newer
// snapshot, so validation always sees what it is about to overwrite.
func (s *Store) apply(ctx context.Context, change func(staged Tiers) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for attempt := 1; ; attempt++ {
		if _, err := s.sync(ctx); err != nil {
			return err
		}

		staged := s.tiers.clone()
		if err := change(staged); err != nil {
			return err
		}
		if s.persister == nil {
			s.tiers = staged
			return nil
		}

		version, err := s.persister.Save(ctx, staged.clone(), s.version)
		if err == nil {
			s.tiers = staged
			s.version = version
			return nil
		}
		if !errors.Is(err, ErrSnapshotConflict) || attempt == maxSaveAttempts {
			s.logger.Error("failed to persist task snapshot", logging.Err(err), slog.Int("attempt", attempt))
			return fmt.Errorf("failed to persist tasks: %w", err)
		}
		s.logger.Debug("task snapshot saved concurrently, retrying", slog.Int("attempt", attempt))
	}
}

// find locates a task by ID. Callers must hold the lock.
func (s *Store) find(id string) (Level, int, bool) {
	return findIn(s.tiers, id)
}

// validateSnapshot rebuilds a persisted snapshot tier by tier with the
// checks Seed applies, so a damaged snapshot is never installed.
func validateSnapshot(snapshot Tiers) (Tiers, error) {
	for level := range snapshot {
		if !level.Valid() {
			return nil, fmt.Errorf("%w: %q", ErrInvalidLevel, level)
		}
	}

	staged := Tiers{}.clone()
	for _, level := range Levels {
		for _, task := range snapshot[level] {
			if err := stageTask(staged, level, task); err != nil {
				return nil, fmt.Errorf("%s task %q: %w", level, task.ID, err)
			}
		}
	}
	return staged, nil
}

// stageTask appends task to staged[level] after checking it against the
// tasks already staged. Parents must be staged before their children.
func stageTask(staged Tiers, level Level, task Task) error {
	switch {
	case !level.Valid():
		return fmt.Errorf("%w: %q", ErrInvalidLevel, level)
	case task.Level != level:
		return fmt.Errorf("%w: %q stored under %s", ErrInvalidLevel, task.Level, level)
	case task.ID == "":
		return errors.New("task id is required")
	case strings.TrimSpace(task.Title) == "":
		return ErrInvalidTitle
	case task.Progress < 0 || task.Progress > 100:
		return fmt.Errorf("%w: got %d", ErrInvalidProgress, task.Progress)
	case task.DueDate != nil && !level.AcceptsDueDate():
		return fmt.Errorf("%w: %s tasks do not take a due date", ErrInvalidDueDate, level)
	}
	if _, _, exists := findIn(staged, task.ID); exists {
		return fmt.Errorf("duplicate id %s", task.ID)
	}
	if task.ParentID != nil {
		if *task.ParentID == "" {
			return fmt.Errorf("%w: empty parent id", ErrInvalidParent)
		}
		if _, err := validateParentIn(staged, level, *task.ParentID); err != nil {
			return err
		}
	}

	staged[level] = append(staged[level], task.clone())
	return nil
}

func findIn(tiers Tiers, id string) (Level, int, bool) {
	for _, level := range Levels {
		for i, task := range tiers[level] {
			if task.ID == id {
				return level, i, true
			}
		}
	}
	return "", 0, false
}

func validateParentIn(tiers Tiers, level Level, parentID string) (*string, error) {
	if parentID == "" {
		return nil, nil
	}

	want, ok := level.Parent()
	if !ok {
		return nil, fmt.Errorf("%w: %s tasks cannot have a parent", ErrInvalidParent, level)
	}

	parentLevel, _, found := findIn(tiers, parentID)
	if !found {
		return nil, fmt.Errorf("%w: parent %s does not exist", ErrInvalidParent, parentID)
	}
	if parentLevel != want {
		return nil, fmt.Errorf("%w: %s task needs a %s parent, %s is %s", ErrInvalidParent, level, want, parentID, parentLevel)
	}

	return &parentID, nil
}
