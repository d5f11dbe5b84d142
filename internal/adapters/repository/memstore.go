package repository

import (
	"context"
	"sync"
	"time"

	"github.com/venturelens/dealflow/internal/domain/record"
	"github.com/venturelens/dealflow/pkg/metrics"
)

// MemStore implements Store with an in-memory map. It backs tests and
// single-process deployments; the sqlite store covers persistence.
type MemStore struct {
	mu      sync.RWMutex
	records map[string]record.RawRecord
	hub     *watchHub
	closed  bool
}

// NewMemStore creates an empty in-memory store with configuration options.
func NewMemStore(ctx context.Context, opts ...Option) *MemStore {
	cfg := applyOptions(opts)
	return &MemStore{
		records: make(map[string]record.RawRecord),
		hub:     newWatchHub(cfg.watchBuffer),
	}
}

// Snapshot returns the current record for id.
func (s *MemStore) Snapshot(ctx context.Context, id string) (record.RawRecord, error) {
	start := time.Now()
	defer func() {
		metrics.RecordStoreReadLatency(float64(time.Since(start).Milliseconds()))
	}()

	s.mu.RLock()
	defer s.mu.RUnlock()
	metrics.RecordStoreRead()

	if s.closed {
		return record.RawRecord{}, ErrClosed
	}
	rec, ok := s.records[id]
	if !ok {
		return record.RawRecord{}, ErrNotFound
	}
	return rec, nil
}

// Watch attaches a change watcher for id, seeding it with the current record
// when one exists.
func (s *MemStore) Watch(ctx context.Context, id string) (<-chan record.RawRecord, func(), error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, nil, ErrClosed
	}
	w, stop := s.hub.attach(id)
	if rec, ok := s.records[id]; ok {
		s.hub.seed(w, rec)
	}
	return w.ch, stop, nil
}

// Put upserts a record and notifies watchers.
func (s *MemStore) Put(ctx context.Context, rec record.RawRecord) error {
	start := time.Now()
	defer func() {
		metrics.RecordStoreWriteLatency(float64(time.Since(start).Milliseconds()))
	}()

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClosed
	}
	s.records[rec.ID] = rec
	metrics.RecordStoreWrite()
	metrics.UpdateRecordsTotal(len(s.records))
	s.hub.notify(rec)
	return nil
}

// Delete removes a record. Watchers of the id are not notified; deletion is
// surfaced to new readers through ErrNotFound.
func (s *MemStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClosed
	}
	delete(s.records, id)
	metrics.UpdateRecordsTotal(len(s.records))
	return nil
}

// Count returns the number of stored records.
func (s *MemStore) Count(ctx context.Context) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

// Close shuts the store down and closes all watcher channels.
func (s *MemStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	s.hub.close()
	return nil
}
