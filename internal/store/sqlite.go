package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteStore keeps the entry as two rows of a kv table, mirroring the
// key/value layout the browser widget uses.
type SQLiteStore struct {
	db           *sql.DB
	responseKey  string
	timestampKey string
}

// OpenSQLite opens or creates the database at path.
func OpenSQLite(path, namespace string) (*SQLiteStore, error) {
	if path == "" {
		return nil, errors.New("store path not configured")
	}
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// A single connection keeps :memory: databases shared across calls.
	db.SetMaxOpenConns(1)
	const schema = `CREATE TABLE IF NOT EXISTS kv (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
	)`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create table: %w", err)
	}
	rk, tk := Keys(namespace)
	return &SQLiteStore{db: db, responseKey: rk, timestampKey: tk}, nil
}

func (s *SQLiteStore) Save(ctx context.Context, e Entry) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	const upsert = `INSERT INTO kv (key, value, updated_at) VALUES (?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = CURRENT_TIMESTAMP`
	if _, err := tx.ExecContext(ctx, upsert, s.responseKey, e.Payload); err != nil {
		return fmt.Errorf("save payload: %w", err)
	}
	if _, err := tx.ExecContext(ctx, upsert, s.timestampKey, e.Timestamp.UTC().Format(time.RFC3339Nano)); err != nil {
		return fmt.Errorf("save timestamp: %w", err)
	}
	return tx.Commit()
}

func (s *SQLiteStore) Load(ctx context.Context) (Entry, error) {
	var e Entry
	err := s.db.QueryRowContext(ctx, `SELECT value FROM kv WHERE key = ?`, s.responseKey).Scan(&e.Payload)
	if errors.Is(err, sql.ErrNoRows) || (err == nil && e.Payload == "") {
		return Entry{}, ErrNotFound
	}
	if err != nil {
		return Entry{}, err
	}
	var ts string
	err = s.db.QueryRowContext(ctx, `SELECT value FROM kv WHERE key = ?`, s.timestampKey).Scan(&ts)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return Entry{}, err
	}
	if t, perr := time.Parse(time.RFC3339Nano, ts); perr == nil {
		e.Timestamp = t
	}
	return e, nil
}

// Clear removes the saved entry and any chat-widget history rows, whose keys
// start with flow_ or flowise_.
func (s *SQLiteStore) Clear(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM kv WHERE key IN (?, ?) OR key LIKE 'flow\_%' ESCAPE '\' OR key LIKE 'flowise\_%' ESCAPE '\'`,
		s.responseKey, s.timestampKey)
	return err
}

// Put stores an arbitrary key. It lets other writers share the table.
func (s *SQLiteStore) Put(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx, `INSERT INTO kv (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = CURRENT_TIMESTAMP`, key, value)
	return err
}

// ListKeys returns all stored keys, sorted.
func (s *SQLiteStore) ListKeys(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT key FROM kv ORDER BY key`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, err
		}
		out = append(out, k)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
