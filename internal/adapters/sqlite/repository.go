// Package sqlite persists wizard snapshots in a local SQLite file, one row
// per storage key.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"

	"github.com/csg33k/mirecurso/internal/ports"
)

type Repository struct {
	db  *sqlx.DB
	now func() time.Time
}

// New opens the SQLite database. Schema migrations are managed by dbmate;
// run `dbmate up` before starting the server.
func New(dsn string) (*Repository, error) {
	db, err := sqlx.Open("sqlite3", dsn+"?_foreign_keys=on&_busy_timeout=5000")
	if err != nil {
		return nil, err
	}
	// one writer; the debounce timers of all sessions share it
	db.SetMaxOpenConns(1)
	return NewWithDB(db), nil
}

// NewWithDB wraps an existing handle, e.g. a sqlmock connection.
func NewWithDB(db *sqlx.DB) *Repository {
	return &Repository{db: db, now: time.Now}
}

func (r *Repository) Close() error { return r.db.Close() }

// Ping reports whether the database is reachable.
func (r *Repository) Ping(ctx context.Context) error { return r.db.PingContext(ctx) }

// ── ports.StatePersister ──────────────────────────────────────────────────────

func (r *Repository) Load(ctx context.Context, key string) ([]byte, error) {
	var payload []byte
	err := r.db.GetContext(ctx, &payload, `SELECT payload FROM wizard_state WHERE state_key = ?`, key)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ports.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load %q: %w", key, err)
	}
	return payload, nil
}

func (r *Repository) Save(ctx context.Context, key string, payload []byte) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO wizard_state (state_key, payload, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(state_key) DO UPDATE SET
			payload    = excluded.payload,
			updated_at = excluded.updated_at`,
		key, payload, r.now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("save %q: %w", key, err)
	}
	return nil
}

func (r *Repository) Delete(ctx context.Context, key string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM wizard_state WHERE state_key = ?`, key); err != nil {
		return fmt.Errorf("delete %q: %w", key, err)
	}
	return nil
}

// ── Housekeeping ──────────────────────────────────────────────────────────────

// StoredState describes one persisted snapshot without its payload.
type StoredState struct {
	Key       string    `db:"state_key"`
	Size      int64     `db:"size"`
	UpdatedAt time.Time `db:"updated_at"`
}

// List returns stored snapshots, most recently updated first.
func (r *Repository) List(ctx context.Context) ([]StoredState, error) {
	var out []StoredState
	err := r.db.SelectContext(ctx, &out, `
		SELECT state_key, length(payload) AS size, updated_at
		FROM wizard_state
		ORDER BY updated_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("list states: %w", err)
	}
	return out, nil
}

// PurgeOlderThan deletes snapshots not updated within maxAge and returns
// how many were removed.
func (r *Repository) PurgeOlderThan(ctx context.Context, maxAge time.Duration) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM wizard_state WHERE updated_at < ?`, r.now().UTC().Add(-maxAge))
	if err != nil {
		return 0, fmt.Errorf("purge states: %w", err)
	}
	return res.RowsAffected()
}
