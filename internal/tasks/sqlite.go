package tasks

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite" // SQLite driver
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS snapshots (
	name     TEXT PRIMARY KEY,
	data     TEXT NOT NULL,
	version  INTEGER NOT NULL,
	saved_at DATETIME NOT NULL
);
`

// sqliteBusyTimeout is how long a writer waits for another process's
// lock on the database file.
const sqliteBusyTimeout = 5 * time.Second

// SQLitePersister stores the tier mapping as one versioned JSON row in a
// SQLite database file. Processes opening the same file share it.
type SQLitePersister struct {
	db  *sql.DB
	now func() time.Time
}

// NewSQLitePersister opens (or creates) the database at path and ensures
// the snapshots table exists. The caller is responsible for calling Close.
func NewSQLitePersister(path string) (*SQLitePersister, error) {
	if path == "" {
		return nil, fmt.Errorf("sqlite path is required for %s task storage", StorageTypeSQLite)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite %s: %w", path, err)
	}
	// One connection keeps writers serialized and ":memory:" databases alive.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(fmt.Sprintf("PRAGMA busy_timeout = %d", sqliteBusyTimeout.Milliseconds())); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to configure sqlite: %w", err)
	}
	if _, err := db.Exec(sqliteSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create sqlite schema: %w", err)
	}

	return &SQLitePersister{db: db, now: time.Now}, nil
}

// Load implements Persister.
func (p *SQLitePersister) Load(ctx context.Context) (Snapshot, error) {
	var (
		data    string
		version int64
	)
	err := p.db.QueryRowContext(ctx,
		`SELECT data, version FROM snapshots WHERE name = ?`, snapshotKey).Scan(&data, &version)
	if errors.Is(err, sql.ErrNoRows) {
		return Snapshot{}, nil
	}
	if err != nil {
		return Snapshot{}, fmt.Errorf("failed to read snapshot: %w", err)
	}
	tiers, err := decodeSnapshot([]byte(data))
	if err != nil {
		return Snapshot{}, err
	}
	return Snapshot{Tiers: tiers, Version: version}, nil
}

// Save implements Persister. The version check and the write are one
// statement, so SQLite's file lock makes them atomic across processes.
func (p *SQLitePersister) Save(ctx context.Context, tiers Tiers, version int64) (int64, error) {
	data, err := encodeSnapshot(tiers)
	if err != nil {
		return 0, err
	}

	var res sql.Result
	if version == 0 {
		res, err = p.db.ExecContext(ctx,
			`INSERT INTO snapshots (name, data, version, saved_at) VALUES (?, ?, 1, ?)
			 ON CONFLICT(name) DO NOTHING`,
			snapshotKey, string(data), p.now().UTC())
	} else {
		res, err = p.db.ExecContext(ctx,
			`UPDATE snapshots SET data = ?, version = version + 1, saved_at = ?
			 WHERE name = ? AND version = ?`,
			string(data), p.now().UTC(), snapshotKey, version)
	}
	if err != nil {
		return 0, fmt.Errorf("failed to write snapshot: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to write snapshot: %w", err)
	}
	if n == 0 {
		return 0, fmt.Errorf("%w: snapshot is past version %d", ErrSnapshotConflict, version)
	}
	return version + 1, nil
}

// Ping checks that the database is reachable.
func (p *SQLitePersister) Ping(ctx context.Context) error {
	if err := p.db.PingContext(ctx); err != nil {
		return fmt.Errorf("sqlite ping failed: %w", err)
	}
	return nil
}

// Close releases the database handle.
func (p *SQLitePersister) Close() {
	_ = p.db.Close()
}
