package sitecache

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

const schema = `
CREATE TABLE IF NOT EXISTS site_info (
	api_link   TEXT PRIMARY KEY,
	site_info  TEXT NOT NULL,
	updated_at INTEGER NOT NULL
);
`

// SQLiteStore persists entries in a SQLite file so warm metadata survives restarts.
type SQLiteStore struct {
	db   *sql.DB
	path string
	now  func() time.Time
}

// OpenSQLite opens or creates the cache database at path.
func OpenSQLite(path string) (*SQLiteStore, error) {
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create cache directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open cache database: %w", err)
	}
	// One writer at a time; SQLite serializes writes anyway.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &SQLiteStore{db: db, path: path, now: time.Now}, nil
}

// Path returns the database file path
func (s *SQLiteStore) Path() string {
	return s.path
}

// Get returns the entry for key.
func (s *SQLiteStore) Get(ctx context.Context, key string) (Entry, bool, error) {
	var (
		blob    string
		updated int64
	)
	err := s.db.QueryRowContext(ctx,
		"SELECT site_info, updated_at FROM site_info WHERE api_link = ?", key).Scan(&blob, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return Entry{}, false, nil
	}
	if err != nil {
		return Entry{}, false, fmt.Errorf("failed to read cached site info: %w", err)
	}
	return Entry{Blob: []byte(blob), UpdatedAt: time.Unix(0, updated)}, true, nil
}

// Upsert stores blob under key stamped with the current time.
func (s *SQLiteStore) Upsert(ctx context.Context, key string, blob []byte) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO site_info (api_link, site_info, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(api_link) DO UPDATE SET site_info = excluded.site_info, updated_at = excluded.updated_at`,
		key, string(blob), s.now().UnixNano())
	if err != nil {
		return fmt.Errorf("failed to store site info: %w", err)
	}
	return nil
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
