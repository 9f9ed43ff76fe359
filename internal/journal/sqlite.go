package journal

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteStore implements Store using SQLite
type SQLiteStore struct {
	db      *sql.DB
	closed  atomic.Bool
	writeMu sync.Mutex
	now     func() time.Time
}

// NewSQLiteStore opens (or creates) the journal database at dbPath
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)&_pragma=busy_timeout(60000)", dbPath)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(8)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(10 * time.Minute)

	store := &SQLiteStore{
		db:  db,
		now: time.Now,
	}
	if err := store.createTables(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	return store, nil
}

func (s *SQLiteStore) createTables() error {
	query := `
	CREATE TABLE IF NOT EXISTS events (
		bucket TEXT NOT NULL,
		key TEXT NOT NULL,
		resized_key TEXT NOT NULL DEFAULT '',
		content_type TEXT NOT NULL DEFAULT '',
		status TEXT NOT NULL,
		detail TEXT,
		attempts INTEGER NOT NULL DEFAULT 1,
		updated_at INTEGER NOT NULL,
		PRIMARY KEY (bucket, key)
	);

	CREATE INDEX IF NOT EXISTS idx_events_status ON events(status);
	CREATE INDEX IF NOT EXISTS idx_events_updated_at ON events(updated_at);
	`

	_, err := s.db.Exec(query)
	return err
}

// Record upserts an entry; Attempts and UpdatedAt are set from the database
func (s *SQLiteStore) Record(entry *Entry) error {
	if s.closed.Load() {
		return fmt.Errorf("journal store is closed")
	}

	// Serialize writes to avoid SQLITE_BUSY from concurrent workers
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if s.closed.Load() {
		return fmt.Errorf("journal store is closed")
	}

	return s.retryOnBusy(func() error {
		return s.recordInternal(entry)
	})
}

func (s *SQLiteStore) recordInternal(entry *Entry) error {
	entry.UpdatedAt = s.now()

	query := `
	INSERT INTO events
	(bucket, key, resized_key, content_type, status, detail, attempts, updated_at)
	VALUES (?, ?, ?, ?, ?, ?, 1, ?)
	ON CONFLICT(bucket, key) DO UPDATE SET
		resized_key = excluded.resized_key,
		content_type = excluded.content_type,
		status = excluded.status,
		detail = excluded.detail,
		attempts = events.attempts + 1,
		updated_at = excluded.updated_at
	RETURNING attempts
	`

	row := s.db.QueryRow(query,
		entry.Bucket,
		entry.Key,
		entry.ResizedKey,
		entry.ContentType,
		entry.Status,
		entry.Detail,
		entry.UpdatedAt.UnixNano(),
	)
	if err := row.Scan(&entry.Attempts); err != nil {
		return fmt.Errorf("failed to upsert event: %w", err)
	}

	return nil
}

// Get returns the entry for an object, or nil when none is recorded
func (s *SQLiteStore) Get(bucket, key string) (*Entry, error) {
	if s.closed.Load() {
		return nil, fmt.Errorf("journal store is closed")
	}

	query := `
	SELECT bucket, key, resized_key, content_type, status, detail, attempts, updated_at
	FROM events WHERE bucket = ? AND key = ?
	`

	entry, err := scanEntry(s.db.QueryRow(query, bucket, key))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return entry, err
}

// List returns the most recently updated entries
func (s *SQLiteStore) List(limit int) ([]*Entry, error) {
	if s.closed.Load() {
		return nil, fmt.Errorf("journal store is closed")
	}
	if limit <= 0 {
		limit = 50
	}

	query := `
	SELECT bucket, key, resized_key, content_type, status, detail, attempts, updated_at
	FROM events
	ORDER BY updated_at DESC, bucket, key
	LIMIT ?
	`

	rows, err := s.db.Query(query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []*Entry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}

	return entries, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanEntry(row scanner) (*Entry, error) {
	var entry Entry
	var detail sql.NullString
	var updatedAt int64

	err := row.Scan(
		&entry.Bucket,
		&entry.Key,
		&entry.ResizedKey,
		&entry.ContentType,
		&entry.Status,
		&detail,
		&entry.Attempts,
		&updatedAt,
	)
	if err != nil {
		return nil, err
	}

	if detail.Valid {
		entry.Detail = detail.String
	}
	entry.UpdatedAt = time.Unix(0, updatedAt)

	return &entry, nil
}

// retryOnBusy retries the operation if SQLite is busy
func (s *SQLiteStore) retryOnBusy(operation func() error) error {
	maxRetries := 10
	baseDelay := 50 * time.Millisecond

	var err error
	for attempt := 0; attempt < maxRetries; attempt++ {
		err = operation()
		if err == nil || !isSQLiteBusyError(err) {
			return err
		}

		delay := baseDelay * time.Duration(1<<uint(attempt))
		jitter := time.Duration(attempt*10) * time.Millisecond
		time.Sleep(delay + jitter)
	}

	return err
}

// isSQLiteBusyError checks if the error is a SQLite busy error
func isSQLiteBusyError(err error) bool {
	if err == nil {
		return false
	}
	errorStr := err.Error()
	return strings.Contains(errorStr, "database is locked") ||
		strings.Contains(errorStr, "SQLITE_BUSY")
}

// Close closes the database connection once in-flight writes are done
func (s *SQLiteStore) Close() error {
	if s.closed.Swap(true) {
		return nil
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return s.db.Close()
}
