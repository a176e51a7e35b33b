package ports

import (
	"context"

	"github.com/aretw0/statekit/pkg/domain"
)

// Journal persists the deltas emitted by a store and its latest snapshot.
type Journal interface {
	// Record appends a record. Records are appended in increasing Seq order.
	Record(ctx context.Context, rec domain.Record) error

	// Records returns up to limit records with Seq greater than after, oldest first.
	// A limit of zero or less returns every matching record.
	Records(ctx context.Context, after uint64, limit int) ([]domain.Record, error)

	// LastSeq returns the sequence number of the newest record, or 0 for an empty journal.
	LastSeq(ctx context.Context) (uint64, error)

	// SaveSnapshot replaces the stored snapshot.
	SaveSnapshot(ctx context.Context, snap domain.Snapshot) error

	// LoadSnapshot returns the stored snapshot.
	// Returns domain.ErrSnapshotNotFound if none was saved.
	LoadSnapshot(ctx context.Context) (domain.Snapshot, error)
}
