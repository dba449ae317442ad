package store

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// Store persists bookmarks, the persistent staging index and run history.
type Store interface {
	// GetWatermark returns the stored replication value for a stream, or the
	// zero time if none.
	GetWatermark(stream string) (time.Time, error)
	// SetWatermark stores the replication value for a stream.
	SetWatermark(stream string, value time.Time) error
	// GetCacheEntry returns the staging index entry for key, or nil.
	GetCacheEntry(key string) (*CacheEntry, error)
	// PutCacheEntry inserts or replaces a staging index entry.
	PutCacheEntry(e CacheEntry) error
	// DeleteCacheEntry removes a staging index entry.
	DeleteCacheEntry(key string) error
	// RecordRun stores a run summary.
	RecordRun(r Run) error
	// ListRuns returns the most recent runs, newest first.
	ListRuns(limit int) ([]Run, error)
	// GetMeta returns a metadata value by key, or "" if not set.
	GetMeta(key string) (string, error)
	// SetMeta sets a metadata key-value pair.
	SetMeta(key, value string) error
	// Close closes the underlying database.
	Close() error
}

// ReplicationKey is the only bookmark key the tap tracks.
const ReplicationKey = "updated_at"

// SQLiteStore implements Store backed by SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// Open creates or opens a SQLite database at the given path and initializes the schema.
func Open(dbPath string) (*SQLiteStore, error) {
	if dir := filepath.Dir(dbPath); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create state dir: %w", err)
		}
	}
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if err := Init(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	return time.Parse(time.RFC3339Nano, s)
}

func (s *SQLiteStore) GetWatermark(stream string) (time.Time, error) {
	var value string
	err := s.db.QueryRow("SELECT value FROM bookmarks WHERE stream = ?", stream).Scan(&value)
	if err == sql.ErrNoRows {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, err
	}
	t, err := parseTime(value)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse bookmark for %s: %w", stream, err)
	}
	return t, nil
}

func (s *SQLiteStore) SetWatermark(stream string, value time.Time) error {
	_, err := s.db.Exec(`
		INSERT INTO bookmarks (stream, replication_key, value, updated_at) VALUES (?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(stream) DO UPDATE SET value = excluded.value, updated_at = CURRENT_TIMESTAMP`,
		stream, ReplicationKey, formatTime(value),
	)
	return err
}

func (s *SQLiteStore) GetCacheEntry(key string) (*CacheEntry, error) {
	var (
		e        CacheEntry
		modified string
	)
	err := s.db.QueryRow(
		"SELECT key, remote_path, local_path, last_modified, size, staged_at FROM cache_entries WHERE key = ?", key,
	).Scan(&e.Key, &e.RemotePath, &e.LocalPath, &modified, &e.Size, &e.StagedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if e.LastModified, err = parseTime(modified); err != nil {
		return nil, fmt.Errorf("parse cache entry %s: %w", key, err)
	}
	return &e, nil
}

func (s *SQLiteStore) PutCacheEntry(e CacheEntry) error {
	_, err := s.db.Exec(`
		INSERT INTO cache_entries (key, remote_path, local_path, last_modified, size, staged_at)
		VALUES (?, ?, ?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(key) DO UPDATE SET
			remote_path = excluded.remote_path,
			local_path = excluded.local_path,
			last_modified = excluded.last_modified,
			size = excluded.size,
			staged_at = CURRENT_TIMESTAMP`,
		e.Key, e.RemotePath, e.LocalPath, formatTime(e.LastModified), e.Size,
	)
	return err
}

func (s *SQLiteStore) DeleteCacheEntry(key string) error {
	_, err := s.db.Exec("DELETE FROM cache_entries WHERE key = ?", key)
	return err
}

func (s *SQLiteStore) RecordRun(r Run) error {
	_, err := s.db.Exec(`
		INSERT INTO runs (id, stream, started_at, finished_at, files_selected, files_extracted, files_failed, chunks, watermark, error)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.Stream, formatTime(r.StartedAt), formatTime(r.FinishedAt),
		r.FilesSelected, r.FilesExtracted, r.FilesFailed, r.Chunks,
		formatTime(r.Watermark), r.Error,
	)
	return err
}

func (s *SQLiteStore) ListRuns(limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.Query(`
		SELECT id, stream, started_at, finished_at, files_selected, files_extracted, files_failed, chunks, watermark, error
		FROM runs
		ORDER BY started_at DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var (
			r                         Run
			started, finished, marker string
		)
		err := rows.Scan(
			&r.ID, &r.Stream, &started, &finished,
			&r.FilesSelected, &r.FilesExtracted, &r.FilesFailed, &r.Chunks,
			&marker, &r.Error,
		)
		if err != nil {
			return nil, err
		}
		if r.StartedAt, err = parseTime(started); err != nil {
			return nil, fmt.Errorf("parse run %s: %w", r.ID, err)
		}
		if r.FinishedAt, err = parseTime(finished); err != nil {
			return nil, fmt.Errorf("parse run %s: %w", r.ID, err)
		}
		if r.Watermark, err = parseTime(marker); err != nil {
			return nil, fmt.Errorf("parse run %s: %w", r.ID, err)
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

func (s *SQLiteStore) GetMeta(key string) (string, error) {
	var value string
	err := s.db.QueryRow("SELECT value FROM meta WHERE key = ?", key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	return value, err
}

func (s *SQLiteStore) SetMeta(key, value string) error {
	_, err := s.db.Exec(
		"INSERT INTO meta (key, value) VALUES (?, ?) ON CONFLICT(key) DO UPDATE SET value = excluded.value",
		key, value,
	)
	return err
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
