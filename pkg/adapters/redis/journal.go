// Package redis provides a Redis-backed journal.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	backend "github.com/redis/go-redis/v9"

	"github.com/aretw0/statekit/pkg/domain"
)

// Journal implements ports.Journal using Redis.
// Records live in a sorted set scored by sequence number; the snapshot is a plain key.
type Journal struct {
	client *backend.Client
	prefix string
	ttl    time.Duration
}

type Option func(*Journal)

// WithTTL sets the expiration refreshed on every write.
func WithTTL(ttl time.Duration) Option {
	return func(j *Journal) {
		j.ttl = ttl
	}
}

// WithPrefix sets the key prefix, so several stores can share a database.
func WithPrefix(prefix string) Option {
	return func(j *Journal) {
		j.prefix = prefix
	}
}

// New creates a new Redis journal with options.
func New(address, password string, db int, opts ...Option) *Journal {
	rdb := backend.NewClient(&backend.Options{
		Addr:     address,
		Password: password,
		DB:       db,
	})
	return NewFromClient(rdb, opts...)
}

// NewFromClient creates a new Redis journal from an existing client.
func NewFromClient(client *backend.Client, opts ...Option) *Journal {
	j := &Journal{
		client: client,
		prefix: "statekit:journal:",
		ttl:    0, // No expiration by default
	}

	for _, opt := range opts {
		opt(j)
	}

	return j
}

func (j *Journal) recordsKey() string {
	return j.prefix + "records"
}

func (j *Journal) snapshotKey() string {
	return j.prefix + "snapshot"
}

// Record appends rec to the sorted set.
func (j *Journal) Record(ctx context.Context, rec domain.Record) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal record: %w", err)
	}

	pipe := j.client.Pipeline()
	pipe.ZAdd(ctx, j.recordsKey(), backend.Z{
		Score:  float64(rec.Seq),
		Member: data,
	})
	if j.ttl > 0 {
		pipe.Expire(ctx, j.recordsKey(), j.ttl)
	}

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to save record to redis: %w", err)
	}
	return nil
}

// Records returns up to limit records with Seq greater than after.
func (j *Journal) Records(ctx context.Context, after uint64, limit int) ([]domain.Record, error) {
	opt := &backend.ZRangeBy{
		Min: "(" + strconv.FormatUint(after, 10),
		Max: "+inf",
	}
	if limit > 0 {
		opt.Count = int64(limit)
	}

	members, err := j.client.ZRangeByScore(ctx, j.recordsKey(), opt).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list records: %w", err)
	}

	records := make([]domain.Record, 0, len(members))
	for _, m := range members {
		var rec domain.Record
		if err := json.Unmarshal([]byte(m), &rec); err != nil {
			return nil, fmt.Errorf("failed to unmarshal record: %w", err)
		}
		records = append(records, rec)
	}
	return records, nil
}

// LastSeq returns the score of the newest record.
func (j *Journal) LastSeq(ctx context.Context) (uint64, error) {
	newest, err := j.client.ZRevRangeWithScores(ctx, j.recordsKey(), 0, 0).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to read last record: %w", err)
	}
	if len(newest) == 0 {
		return 0, nil
	}
	return uint64(newest[0].Score), nil
}

// SaveSnapshot replaces the stored snapshot.
func (j *Journal) SaveSnapshot(ctx context.Context, snap domain.Snapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot: %w", err)
	}
	// Use 0 for no expiration if ttl is not set.
	if err := j.client.Set(ctx, j.snapshotKey(), data, j.ttl).Err(); err != nil {
		return fmt.Errorf("failed to save snapshot to redis: %w", err)
	}
	return nil
}

// LoadSnapshot returns the stored snapshot.
func (j *Journal) LoadSnapshot(ctx context.Context) (domain.Snapshot, error) {
	val, err := j.client.Get(ctx, j.snapshotKey()).Result()
	if err != nil {
		if errors.Is(err, backend.Nil) {
			return domain.Snapshot{}, domain.ErrSnapshotNotFound
		}
		return domain.Snapshot{}, fmt.Errorf("failed to get snapshot from redis: %w", err)
	}

	var snap domain.Snapshot
	if err := json.Unmarshal([]byte(val), &snap); err != nil {
		return domain.Snapshot{}, fmt.Errorf("failed to unmarshal snapshot: %w", err)
	}
	return snap, nil
}

// Close closes the redis client.
func (j *Journal) Close() error {
	return j.client.Close()
}
