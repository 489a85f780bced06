// Package store provides the Local Store: durable, synchronous on-device
// persistence of the club Dataset.
//
// The store runs an embedded SQLite database in WAL mode. The Dataset is
// serialized as one JSON blob and written under a single fixed key, so a
// save is a single-row upsert: there are no partial writes and no
// transactions spanning several keys.
//
// Workflow:
//  1. Load at startup (falls back to an empty Dataset)
//  2. Save after every accepted mutation, before any remote push
//  3. Save again when a pull adopts the remote copy
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"

	"github.com/clubroster/roster/internal/schema"
)

// DatasetKey is the fixed storage key of the Dataset blob.
const DatasetKey = "club_data"

// Store wraps the SQLite connection holding the persisted Dataset.
type Store struct {
	conn   *sql.DB
	path   string
	logger *log.Logger
}

// Open creates a new store connection at the specified path.
//
// The database file and its parent directory are created if missing.
// The caller MUST call Close() when done.
//
// Example:
//
//	st, err := store.Open(".roster/roster.db", nil)
//	if err != nil {
//	    return err
//	}
//	defer st.Close()
func Open(path string, logger *log.Logger) (*Store, error) {
	if logger == nil {
		logger = log.New(os.Stderr, "[store] ", log.LstdFlags)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create store directory: %w", err)
	}

	conn, err := sql.Open("sqlite3", fmt.Sprintf("file:%s", path))
	if err != nil {
		return nil, fmt.Errorf("failed to open store: %w", err)
	}

	if err := conn.Ping(); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to ping store: %w", err)
	}

	// A single writer keeps saves strictly ordered.
	conn.SetMaxOpenConns(1)
	conn.SetConnMaxLifetime(5 * time.Minute)

	s := &Store{
		conn:   conn,
		path:   path,
		logger: logger,
	}

	if _, err := s.conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = s.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	if _, err := s.conn.Exec("PRAGMA busy_timeout=5000"); err != nil {
		_ = s.Close()
		return nil, fmt.Errorf("failed to set busy timeout: %w", err)
	}

	// FULL makes a committed save survive power loss, not just a crash.
	if _, err := s.conn.Exec("PRAGMA synchronous=FULL"); err != nil {
		_ = s.Close()
		return nil, fmt.Errorf("failed to set synchronous mode: %w", err)
	}

	if err := s.InitSchema(context.Background()); err != nil {
		_ = s.Close()
		return nil, err
	}

	return s, nil
}

// Path returns the database file location.
func (s *Store) Path() string {
	return s.path
}

// Close checkpoints the WAL and closes the connection.
func (s *Store) Close() error {
	if s.conn == nil {
		return nil
	}

	if _, err := s.conn.Exec("PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
		s.logger.Printf("Warning: failed to checkpoint WAL: %v", err)
	}

	if err := s.conn.Close(); err != nil {
		return fmt.Errorf("failed to close store: %w", err)
	}

	s.conn = nil
	return nil
}

// InitSchema creates the key/value table. Idempotent.
func (s *Store) InitSchema(ctx context.Context) error {
	schemaSQL := `
	CREATE TABLE IF NOT EXISTS kv (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL,
		saved_at TEXT NOT NULL
	);
	`

	if _, err := s.conn.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}
	return nil
}

// Load returns the persisted Dataset.
//
// Load never fails: when nothing is persisted, the read fails, or the
// stored blob does not parse, a freshly constructed empty Dataset is
// returned and the malformed value is left to be overwritten by the next
// Save.
func (s *Store) Load(ctx context.Context) *schema.Dataset {
	raw, err := s.read(ctx)
	if err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			s.logger.Printf("Warning: failed to read dataset, starting empty: %v", err)
		}
		return schema.Empty()
	}

	ds, err := schema.Parse([]byte(raw))
	if err != nil {
		s.logger.Printf("Warning: discarding malformed dataset: %v", err)
		return schema.Empty()
	}

	return ds
}

// Save writes the full Dataset under DatasetKey, replacing any previous
// value. It returns after the write committed, so a following Load
// observes it.
func (s *Store) Save(ctx context.Context, ds *schema.Dataset) error {
	if ds == nil {
		return fmt.Errorf("cannot save nil dataset")
	}

	data, err := ds.Marshal()
	if err != nil {
		return err
	}

	query := `
	INSERT INTO kv (key, value, saved_at) VALUES (?, ?, ?)
	ON CONFLICT(key) DO UPDATE SET
		value = excluded.value,
		saved_at = excluded.saved_at
	`

	if _, err := s.conn.ExecContext(ctx, query, DatasetKey, string(data), time.Now().UTC().Format(time.RFC3339Nano)); err != nil {
		return fmt.Errorf("failed to save dataset: %w", err)
	}

	return nil
}

// Exists reports whether a Dataset has been persisted.
func (s *Store) Exists(ctx context.Context) (bool, error) {
	var count int
	err := s.conn.QueryRowContext(ctx, "SELECT COUNT(*) FROM kv WHERE key = ?", DatasetKey).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("failed to check dataset: %w", err)
	}
	return count > 0, nil
}

// SavedAt returns when the Dataset was last written locally.
// Returns sql.ErrNoRows if nothing is persisted.
func (s *Store) SavedAt(ctx context.Context) (time.Time, error) {
	var savedAt string
	err := s.conn.QueryRowContext(ctx, "SELECT saved_at FROM kv WHERE key = ?", DatasetKey).Scan(&savedAt)
	if err != nil {
		return time.Time{}, err
	}
	t, err := time.Parse(time.RFC3339Nano, savedAt)
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to parse saved_at: %w", err)
	}
	return t, nil
}

func (s *Store) read(ctx context.Context) (string, error) {
	var raw string
	err := s.conn.QueryRowContext(ctx, "SELECT value FROM kv WHERE key = ?", DatasetKey).Scan(&raw)
	return raw, err
}
