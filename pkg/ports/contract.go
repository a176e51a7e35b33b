package ports

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/statekit/pkg/domain"
)

// RunJournalContract runs a suite of tests to verify that a Journal implementation
// adheres to the defined interface contract. The journal must start empty.
func RunJournalContract(t *testing.T, journal Journal) {
	ctx := context.Background()
	at := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	t.Run("Empty", func(t *testing.T) {
		seq, err := journal.LastSeq(ctx)
		require.NoError(t, err)
		assert.Zero(t, seq)

		records, err := journal.Records(ctx, 0, 0)
		require.NoError(t, err)
		assert.Empty(t, records)

		_, err = journal.LoadSnapshot(ctx)
		assert.ErrorIs(t, err, domain.ErrSnapshotNotFound)
	})

	t.Run("Record and Read", func(t *testing.T) {
		for i := uint64(1); i <= 3; i++ {
			rec := domain.Record{
				ID:     "rec-" + string(rune('0'+i)),
				Seq:    i,
				At:     at.Add(time.Duration(i) * time.Second),
				Action: "set",
				Changes: domain.Delta{{
					Path:     domain.Path{"items", "0"},
					Kind:     domain.ChangeChanged,
					OldValue: "old",
					NewValue: "new",
				}},
			}
			require.NoError(t, journal.Record(ctx, rec), "Record should not return error")
		}

		seq, err := journal.LastSeq(ctx)
		require.NoError(t, err)
		assert.Equal(t, uint64(3), seq)

		all, err := journal.Records(ctx, 0, 0)
		require.NoError(t, err)
		require.Len(t, all, 3)
		assert.Equal(t, "rec-1", all[0].ID)
		assert.Equal(t, "set", all[0].Action)
		assert.True(t, at.Add(time.Second).Equal(all[0].At))
		require.Len(t, all[0].Changes, 1)
		assert.Equal(t, "items.0", all[0].Changes[0].Path.String())
		assert.Equal(t, "new", all[0].Changes[0].NewValue)

		tail, err := journal.Records(ctx, 1, 1)
		require.NoError(t, err)
		require.Len(t, tail, 1)
		assert.Equal(t, uint64(2), tail[0].Seq)
	})

	t.Run("Snapshot", func(t *testing.T) {
		snap := domain.Snapshot{Seq: 3, At: at, State: json.RawMessage(`{"items":["new"]}`)}
		require.NoError(t, journal.SaveSnapshot(ctx, snap))

		loaded, err := journal.LoadSnapshot(ctx)
		require.NoError(t, err)
		assert.Equal(t, uint64(3), loaded.Seq)
		assert.True(t, at.Equal(loaded.At))
		assert.JSONEq(t, `{"items":["new"]}`, string(loaded.State))

		snap.Seq = 4
		require.NoError(t, journal.SaveSnapshot(ctx, snap))
		loaded, err = journal.LoadSnapshot(ctx)
		require.NoError(t, err)
		assert.Equal(t, uint64(4), loaded.Seq, "SaveSnapshot replaces the previous snapshot")
	})
}
