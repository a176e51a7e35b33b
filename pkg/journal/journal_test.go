package journal_test

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/statekit/pkg/adapters/memory"
	"github.com/aretw0/statekit/pkg/docstore"
	"github.com/aretw0/statekit/pkg/domain"
	"github.com/aretw0/statekit/pkg/journal"
	"github.com/aretw0/statekit/pkg/ports"
	"github.com/aretw0/statekit/pkg/store"
)

func generateKey(t *testing.T) []byte {
	k := make([]byte, 32)
	if _, err := io.ReadFull(rand.Reader, k); err != nil {
		t.Fatal(err)
	}
	return k
}

func set(t *testing.T, s *store.Store[docstore.Document], path string, value any) {
	t.Helper()
	require.NoError(t, s.Dispatch(context.Background(), docstore.ActionSet, docstore.SetPayload{Path: path, Value: value}))
}

func TestAttach_RecordsDeltas(t *testing.T) {
	s, err := docstore.New(nil)
	require.NoError(t, err)
	j := memory.NewJournal()
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	detach, err := journal.Attach(context.Background(), s, j,
		journal.WithSnapshotEvery(2),
		journal.WithClock(func() time.Time { return at }),
	)
	require.NoError(t, err)

	set(t, s, "a", 1)
	set(t, s, "b", "x")
	set(t, s, "a", 1) // no change, no record

	records, err := j.Records(context.Background(), 0, 0)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, uint64(1), records[0].Seq)
	assert.Equal(t, docstore.ActionSet, records[0].Action)
	assert.Equal(t, at, records[0].At)
	assert.NotEmpty(t, records[0].ID)
	assert.NotEqual(t, records[0].ID, records[1].ID)
	assert.Equal(t, []string{"b"}, records[1].Changes.Paths())

	snap, err := j.LoadSnapshot(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint64(2), snap.Seq)
	assert.JSONEq(t, `{"a":1,"b":"x"}`, string(snap.State))

	detach()
	set(t, s, "c", true)
	seq, err := j.LastSeq(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint64(2), seq)
}

func TestAttach_ContinuesSequence(t *testing.T) {
	j := memory.NewJournal()
	require.NoError(t, j.Record(context.Background(), domain.Record{ID: "old", Seq: 41}))

	s, err := docstore.New(nil)
	require.NoError(t, err)
	_, err = journal.Attach(context.Background(), s, j)
	require.NoError(t, err)

	set(t, s, "a", 1)
	seq, err := j.LastSeq(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint64(42), seq)
}

type failingJournal struct {
	*memory.Journal
}

func (failingJournal) Record(ctx context.Context, rec domain.Record) error {
	return errors.New("disk full")
}

func TestAttach_FailureDoesNotFailAction(t *testing.T) {
	var failures []*domain.SubscriberError
	s, err := docstore.New(nil, store.WithLifecycleHooks(domain.LifecycleHooks{
		OnSubscriberError: func(ctx context.Context, err *domain.SubscriberError) {
			failures = append(failures, err)
		},
	}))
	require.NoError(t, err)

	_, err = journal.Attach(context.Background(), s, failingJournal{memory.NewJournal()})
	require.NoError(t, err)

	set(t, s, "a", 1)
	assert.Equal(t, 1, s.Get()["a"])
	require.Len(t, failures, 1)
	assert.ErrorContains(t, failures[0], "disk full")
}

func TestRedactMiddleware(t *testing.T) {
	s, err := docstore.New(nil)
	require.NoError(t, err)
	j := memory.NewJournal()
	redact, err := journal.NewRedactMiddleware([]string{"password", "ssn"})
	require.NoError(t, err)

	var seen domain.Delta
	_, err = journal.Attach(context.Background(), s, j,
		journal.WithMiddleware(redact),
		journal.WithSnapshotEvery(1),
	)
	require.NoError(t, err)
	s.Subscribe(func(ctx context.Context, d domain.Delta) error {
		seen = d
		return nil
	})

	set(t, s, "user", map[string]any{
		"name":          "jdoe",
		"user_password": "secret123",
		"details":       map[string]any{"ssn_number": "999-99-9999", "city": "Recife"},
	})
	set(t, s, "password", "hunter2")

	records, err := j.Records(context.Background(), 0, 0)
	require.NoError(t, err)
	require.Len(t, records, 2)

	user := records[0].Changes[0].NewValue.(map[string]any)
	assert.Equal(t, "jdoe", user["name"])
	assert.Equal(t, journal.Mask, user["user_password"])
	assert.Equal(t, journal.Mask, user["details"].(map[string]any)["ssn_number"])
	assert.Equal(t, "Recife", user["details"].(map[string]any)["city"])
	assert.Equal(t, journal.Mask, records[1].Changes[0].NewValue)

	assert.Equal(t, "hunter2", seen[0].NewValue, "subscribers still see the real value")
	assert.Equal(t, "secret123", s.Get()["user"].(map[string]any)["user_password"])

	snap, err := j.LoadSnapshot(context.Background())
	require.NoError(t, err)
	assert.NotContains(t, string(snap.State), "secret123")
	assert.NotContains(t, string(snap.State), "hunter2")
}

func TestRedactMiddleware_InvalidPattern(t *testing.T) {
	_, err := journal.NewRedactMiddleware([]string{"("})
	assert.Error(t, err)
}

func TestEncryptionMiddleware_Roundtrip(t *testing.T) {
	underlying := memory.NewJournal()
	key := generateKey(t)
	secure := journal.NewEncryptionMiddleware(journal.EncryptionConfig{ActiveKey: key})(underlying)
	ctx := context.Background()

	rec := domain.Record{ID: "1", Seq: 1, Action: "set", Changes: domain.Delta{{
		Path: domain.Path{"secret"}, Kind: domain.ChangeAdded, NewValue: "my-secret-sauce",
	}}}
	require.NoError(t, secure.Record(ctx, rec))
	require.NoError(t, secure.SaveSnapshot(ctx, domain.Snapshot{Seq: 1, State: json.RawMessage(`{"secret":"my-secret-sauce"}`)}))

	raw, err := underlying.Records(ctx, 0, 0)
	require.NoError(t, err)
	assert.NotEqual(t, "my-secret-sauce", raw[0].Changes[0].NewValue)
	assert.Equal(t, "secret", raw[0].Changes[0].Path.String())
	rawSnap, err := underlying.LoadSnapshot(ctx)
	require.NoError(t, err)
	assert.NotContains(t, string(rawSnap.State), "my-secret-sauce")

	records, err := secure.Records(ctx, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, "my-secret-sauce", records[0].Changes[0].NewValue)
	snap, err := secure.LoadSnapshot(ctx)
	require.NoError(t, err)
	assert.JSONEq(t, `{"secret":"my-secret-sauce"}`, string(snap.State))
}

func TestEncryptionMiddleware_KeyRotation(t *testing.T) {
	underlying := memory.NewJournal()
	oldKey, newKey := generateKey(t), generateKey(t)
	ctx := context.Background()

	old := journal.NewEncryptionMiddleware(journal.EncryptionConfig{ActiveKey: oldKey})(underlying)
	require.NoError(t, old.SaveSnapshot(ctx, domain.Snapshot{Seq: 1, State: json.RawMessage(`{"v":1}`)}))

	rotated := journal.NewEncryptionMiddleware(journal.EncryptionConfig{ActiveKey: newKey, FallbackKeys: [][]byte{oldKey}})(underlying)
	snap, err := rotated.LoadSnapshot(ctx)
	require.NoError(t, err)
	assert.JSONEq(t, `{"v":1}`, string(snap.State))

	wrong := journal.NewEncryptionMiddleware(journal.EncryptionConfig{ActiveKey: generateKey(t)})(underlying)
	_, err = wrong.LoadSnapshot(ctx)
	assert.Error(t, err)
}

func TestEncryptionMiddleware_PanicsOnShortKey(t *testing.T) {
	assert.Panics(t, func() { journal.NewEncryptionMiddleware(journal.EncryptionConfig{ActiveKey: []byte("short")}) })
}

func TestRestore(t *testing.T) {
	j := memory.NewJournal()
	ctx := context.Background()

	snap, records, err := journal.Restore(ctx, j)
	require.NoError(t, err)
	assert.Zero(t, snap.Seq)
	assert.Empty(t, records)

	for i := uint64(1); i <= 3; i++ {
		require.NoError(t, j.Record(ctx, domain.Record{Seq: i}))
	}
	require.NoError(t, j.SaveSnapshot(ctx, domain.Snapshot{Seq: 2, State: json.RawMessage(`{}`)}))

	snap, records, err = journal.Restore(ctx, j)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), snap.Seq)
	require.Len(t, records, 1)
	assert.Equal(t, uint64(3), records[0].Seq)
}

func TestChain_Order(t *testing.T) {
	var order []string
	tag := func(name string) journal.Middleware {
		return func(next ports.Journal) ports.Journal {
			return recorder{Journal: next, name: name, order: &order}
		}
	}
	j := journal.Chain(memory.NewJournal(), tag("outer"), tag("inner"))
	require.NoError(t, j.Record(context.Background(), domain.Record{Seq: 1}))
	assert.Equal(t, []string{"outer", "inner"}, order)
}

type recorder struct {
	ports.Journal
	name  string
	order *[]string
}

func (r recorder) Record(ctx context.Context, rec domain.Record) error {
	*r.order = append(*r.order, r.name)
	return r.Journal.Record(ctx, rec)
}
