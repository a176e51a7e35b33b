// Package journal persists the deltas of a store as an append-only log of records.
//
// Attach subscribes read-only: the journal never mutates state, and a failing
// journal write is reported like any other subscriber failure without affecting
// the action that produced the delta.
package journal

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/aretw0/statekit/internal/logging"
	"github.com/aretw0/statekit/pkg/domain"
	"github.com/aretw0/statekit/pkg/ports"
)

// Source is the part of a store a journal observes.
type Source interface {
	Subscribe(fn domain.Subscriber) func()
	Encode(ctx context.Context) ([]byte, error)
}

type attachment struct {
	src     Source
	journal ports.Journal
	logger  *slog.Logger
	every   uint64
	now     func() time.Time

	// seq is only touched by the subscriber, which the store serializes.
	seq uint64
}

// Option configures Attach.
type Option func(*attachment)

// WithSnapshotEvery saves a full snapshot after every n records. Zero disables snapshots.
func WithSnapshotEvery(n uint64) Option {
	return func(a *attachment) {
		a.every = n
	}
}

// WithMiddleware wraps the journal with mws, the first being the outermost.
func WithMiddleware(mws ...Middleware) Option {
	return func(a *attachment) {
		a.journal = Chain(a.journal, mws...)
	}
}

// WithLogger configures a logger for journal writes.
func WithLogger(logger *slog.Logger) Option {
	return func(a *attachment) {
		if logger != nil {
			a.logger = logger
		}
	}
}

// WithClock overrides the time source used to stamp records.
func WithClock(now func() time.Time) Option {
	return func(a *attachment) {
		a.now = now
	}
}

// Attach subscribes a journal to src. Sequence numbers continue from the newest
// record already in the journal. The returned function detaches the journal.
func Attach(ctx context.Context, src Source, j ports.Journal, opts ...Option) (detach func(), err error) {
	a := &attachment{
		src:     src,
		journal: j,
		logger:  logging.NewNop(), // Default to no-op
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(a)
	}

	a.seq, err = a.journal.LastSeq(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read journal position: %w", err)
	}
	return src.Subscribe(a.observe), nil
}

func (a *attachment) observe(ctx context.Context, delta domain.Delta) error {
	rec := domain.Record{
		ID:      uuid.NewString(),
		Seq:     a.seq + 1,
		At:      a.now().UTC(),
		Action:  domain.ActionFromContext(ctx),
		Changes: delta,
	}
	if err := a.journal.Record(ctx, rec); err != nil {
		return fmt.Errorf("journal record %d: %w", rec.Seq, err)
	}
	a.seq = rec.Seq
	a.logger.Debug("journal record written", "seq", rec.Seq, "action", rec.Action, "changes", len(delta))

	if a.every == 0 || rec.Seq%a.every != 0 {
		return nil
	}
	state, err := a.src.Encode(ctx)
	if err != nil {
		return fmt.Errorf("journal snapshot %d: %w", rec.Seq, err)
	}
	if err := a.journal.SaveSnapshot(ctx, domain.Snapshot{Seq: rec.Seq, At: rec.At, State: state}); err != nil {
		return fmt.Errorf("journal snapshot %d: %w", rec.Seq, err)
	}
	return nil
}

// Restore returns the latest snapshot and the records written after it. Without a
// snapshot, it returns a zero snapshot and every record.
func Restore(ctx context.Context, j ports.Journal) (domain.Snapshot, []domain.Record, error) {
	snap, err := j.LoadSnapshot(ctx)
	if err != nil && !errors.Is(err, domain.ErrSnapshotNotFound) {
		return domain.Snapshot{}, nil, err
	}
	records, err := j.Records(ctx, snap.Seq, 0)
	if err != nil {
		return domain.Snapshot{}, nil, err
	}
	return snap, records, nil
}
