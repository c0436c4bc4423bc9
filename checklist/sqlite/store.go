// Package sqlite implements checklist.Store on an embedded SQLite
// database, giving the append-only snapshot log durability across
// restarts without an external database server.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/skillsenselab/workshopkit/checklist"
	"github.com/skillsenselab/workshopkit/errors"
)

const schema = `
CREATE TABLE IF NOT EXISTS checklist_snapshots (
	answer_id  TEXT    NOT NULL,
	version    INTEGER NOT NULL,
	payload    TEXT    NOT NULL,
	created_at INTEGER NOT NULL,
	PRIMARY KEY (answer_id, version)
);
`

// Store persists snapshots in a SQLite database. The (answer_id, version)
// primary key enforces the compare-and-swap at the database level: a
// publish that lost a race fails the insert instead of overwriting.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) the database at path with WAL journaling and
// ensures the schema exists. Use ":memory:" for an in-memory store.
func Open(path string) (*Store, error) {
	dsn := path
	if path != ":memory:" {
		dsn = fmt.Sprintf("file:%s?_journal_mode=WAL", path)
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Append writes a new snapshot if expectedVersion still matches the
// highest stored version for the answer.
func (s *Store) Append(ctx context.Context, answerID string, snap checklist.Snapshot, expectedVersion int) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	var current int
	row := tx.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(version), 0) FROM checklist_snapshots WHERE answer_id = ?`, answerID)
	if err := row.Scan(&current); err != nil {
		return 0, fmt.Errorf("read current version: %w", err)
	}
	if current != expectedVersion {
		return 0, errors.MergeConflict(answerID, expectedVersion)
	}

	snap.Version = expectedVersion + 1
	if snap.CreatedAt.IsZero() {
		snap.CreatedAt = time.Now().UTC()
	}
	payload, err := json.Marshal(snap)
	if err != nil {
		return 0, fmt.Errorf("marshal snapshot: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO checklist_snapshots (answer_id, version, payload, created_at) VALUES (?, ?, ?, ?)`,
		answerID, snap.Version, string(payload), snap.CreatedAt.Unix()); err != nil {
		return 0, errors.MergeConflict(answerID, expectedVersion).WithCause(err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit snapshot: %w", err)
	}
	return snap.Version, nil
}

// Latest returns the highest-version snapshot, or nil when none exists.
func (s *Store) Latest(ctx context.Context, answerID string) (*checklist.Snapshot, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT payload FROM checklist_snapshots
		WHERE answer_id = ?
		ORDER BY version DESC
		LIMIT 1
	`, answerID)

	var payload string
	if err := row.Scan(&payload); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("scan snapshot: %w", err)
	}

	var snap checklist.Snapshot
	if err := json.Unmarshal([]byte(payload), &snap); err != nil {
		return nil, fmt.Errorf("unmarshal snapshot: %w", err)
	}
	return &snap, nil
}

// History returns all snapshots for the answer in version order.
func (s *Store) History(ctx context.Context, answerID string) ([]checklist.Snapshot, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT payload FROM checklist_snapshots
		WHERE answer_id = ?
		ORDER BY version ASC
	`, answerID)
	if err != nil {
		return nil, fmt.Errorf("query snapshots: %w", err)
	}
	defer rows.Close()

	var out []checklist.Snapshot
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("scan snapshot: %w", err)
		}
		var snap checklist.Snapshot
		if err := json.Unmarshal([]byte(payload), &snap); err != nil {
			return nil, fmt.Errorf("unmarshal snapshot: %w", err)
		}
		out = append(out, snap)
	}
	return out, rows.Err()
}

// compile-time check
var _ checklist.Store = (*Store)(nil)
