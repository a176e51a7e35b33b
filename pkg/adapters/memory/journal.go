// Package memory provides in-process implementations of the statekit ports.
package memory

import (
	"context"
	"slices"
	"sync"

	"github.com/aretw0/statekit/pkg/diff"
	"github.com/aretw0/statekit/pkg/domain"
)

// Journal implements ports.Journal in memory.
// Safe for concurrent use.
type Journal struct {
	mu       sync.RWMutex
	records  []domain.Record
	snapshot *domain.Snapshot
}

// NewJournal creates an empty in-memory journal.
func NewJournal() *Journal {
	return &Journal{}
}

// Record appends a deep copy of rec.
func (j *Journal) Record(ctx context.Context, rec domain.Record) error {
	rec.Changes = diff.Clone(rec.Changes)

	j.mu.Lock()
	defer j.mu.Unlock()
	j.records = append(j.records, rec)
	return nil
}

// Records returns up to limit records newer than after.
func (j *Journal) Records(ctx context.Context, after uint64, limit int) ([]domain.Record, error) {
	j.mu.RLock()
	defer j.mu.RUnlock()

	start, _ := slices.BinarySearchFunc(j.records, after+1, func(r domain.Record, seq uint64) int {
		switch {
		case r.Seq < seq:
			return -1
		case r.Seq > seq:
			return 1
		}
		return 0
	})
	end := len(j.records)
	if limit > 0 && start+limit < end {
		end = start + limit
	}
	return diff.Clone(j.records[start:end:end]), nil
}

// LastSeq returns the newest sequence number.
func (j *Journal) LastSeq(ctx context.Context) (uint64, error) {
	j.mu.RLock()
	defer j.mu.RUnlock()
	if len(j.records) == 0 {
		return 0, nil
	}
	return j.records[len(j.records)-1].Seq, nil
}

// SaveSnapshot replaces the stored snapshot.
func (j *Journal) SaveSnapshot(ctx context.Context, snap domain.Snapshot) error {
	snap.State = slices.Clone(snap.State)

	j.mu.Lock()
	defer j.mu.Unlock()
	j.snapshot = &snap
	return nil
}

// LoadSnapshot returns the stored snapshot.
func (j *Journal) LoadSnapshot(ctx context.Context) (domain.Snapshot, error) {
	j.mu.RLock()
	defer j.mu.RUnlock()
	if j.snapshot == nil {
		return domain.Snapshot{}, domain.ErrSnapshotNotFound
	}
	out := *j.snapshot
	out.State = slices.Clone(out.State)
	return out, nil
}
