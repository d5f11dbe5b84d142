package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/venturelens/dealflow/internal/domain/record"
	"github.com/venturelens/dealflow/pkg/metrics"
)

// SQLiteStore implements Store on a SQLite database. Records are stored as
// JSON documents keyed by id; change notification stays in-process through
// the same watch hub the memory store uses, since only this process writes.
type SQLiteStore struct {
	db  *sql.DB
	hub *watchHub

	// mu serializes writes with watcher attachment so the seed value and
	// subsequent notifications keep emit order per id.
	mu     sync.Mutex
	closed bool
}

// NewSQLiteStore opens or creates a SQLite database at the given path.
func NewSQLiteStore(ctx context.Context, dbPath string, opts ...Option) (*SQLiteStore, error) {
	cfg := applyOptions(opts)

	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create db dir: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(wal)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	s := &SQLiteStore{
		db:  db,
		hub: newWatchHub(cfg.watchBuffer),
	}
	if err := s.migrate(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

func (s *SQLiteStore) migrate(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS records (
		id         TEXT PRIMARY KEY,
		doc        TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_records_updated ON records(updated_at DESC);
	`
	_, err := s.db.ExecContext(ctx, schema)
	return err
}

// Snapshot returns the current record for id.
func (s *SQLiteStore) Snapshot(ctx context.Context, id string) (record.RawRecord, error) {
	start := time.Now()
	defer func() {
		metrics.RecordStoreReadLatency(float64(time.Since(start).Milliseconds()))
	}()
	metrics.RecordStoreRead()

	var doc string
	err := s.db.QueryRowContext(ctx, `SELECT doc FROM records WHERE id = ?`, id).Scan(&doc)
	if errors.Is(err, sql.ErrNoRows) {
		return record.RawRecord{}, ErrNotFound
	}
	if err != nil {
		return record.RawRecord{}, fmt.Errorf("query record: %w", err)
	}

	var rec record.RawRecord
	if err := json.Unmarshal([]byte(doc), &rec); err != nil {
		return record.RawRecord{}, fmt.Errorf("decode record: %w", err)
	}
	if rec.ID == "" {
		rec.ID = id
	}
	return rec, nil
}

// Watch attaches a change watcher for id, seeding it with the current record
// when one exists.
func (s *SQLiteStore) Watch(ctx context.Context, id string) (<-chan record.RawRecord, func(), error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, nil, ErrClosed
	}
	w, stop := s.hub.attach(id)
	rec, err := s.Snapshot(ctx, id)
	switch {
	case err == nil:
		s.hub.seed(w, rec)
	case errors.Is(err, ErrNotFound):
		// First notification arrives with the first write.
	default:
		stop()
		return nil, nil, err
	}
	return w.ch, stop, nil
}

// Put upserts a record and notifies watchers.
func (s *SQLiteStore) Put(ctx context.Context, rec record.RawRecord) error {
	start := time.Now()
	defer func() {
		metrics.RecordStoreWriteLatency(float64(time.Since(start).Milliseconds()))
	}()

	doc, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode record: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClosed
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO records (id, doc, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET doc = excluded.doc, updated_at = excluded.updated_at`,
		rec.ID, string(doc), time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("upsert record: %w", err)
	}
	metrics.RecordStoreWrite()
	metrics.UpdateRecordsTotal(s.countLocked(ctx))
	s.hub.notify(rec)
	return nil
}

// Delete removes a record.
func (s *SQLiteStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClosed
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM records WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete record: %w", err)
	}
	metrics.UpdateRecordsTotal(s.countLocked(ctx))
	return nil
}

// Count returns the number of stored records.
func (s *SQLiteStore) Count(ctx context.Context) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.countLocked(ctx)
}

func (s *SQLiteStore) countLocked(ctx context.Context) int {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM records`).Scan(&n); err != nil {
		return 0
	}
	return n
}

// Close shuts the store down, closing watcher channels and the database.
func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	s.hub.close()
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("close db: %w", err)
	}
	return nil
}
