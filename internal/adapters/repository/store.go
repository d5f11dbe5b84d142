// Package repository defines the record store adapter and its errors.
//
// The store is the boundary to the document database: a keyed collection of
// raw deal records with change notifications. The core only reads records;
// writes come from the ingestion/diligence workers and the upload path.
package repository

import (
	"context"

	"github.com/venturelens/dealflow/internal/domain/record"
)

// Store provides typed read/subscribe access to raw deal records.
type Store interface {
	// Snapshot returns the current record for id.
	// Returns ErrNotFound if no record exists; a present but malformed
	// record is not an error at this layer.
	Snapshot(ctx context.Context, id string) (record.RawRecord, error)

	// Watch returns a channel that receives the current record first (when
	// one exists) and then every subsequent change for id, in the order the
	// store applies them. The returned stop function fully detaches the
	// watcher; after it returns no further values are delivered.
	Watch(ctx context.Context, id string) (<-chan record.RawRecord, func(), error)

	// Put upserts a record. Used by the worker/upload boundary and tests.
	Put(ctx context.Context, rec record.RawRecord) error

	// Delete removes a record. Deleting an unknown id is not an error.
	Delete(ctx context.Context, id string) error

	// Count returns the number of records tracked by the store.
	Count(ctx context.Context) int

	// Close releases store resources and closes all watcher channels.
	Close() error
}
