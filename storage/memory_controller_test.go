package storage

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"flowcore/types"
)

func TestMemoryControllerRejectsUnknownCollection(t *testing.T) {
	c, err := NewMemoryController("")
	require.NoError(t, err)

	err = c.Append(context.Background(), Batch{
		Timestamp: 1,
		AdvanceTo: 2,
		Updates:   []Update{{ID: 1, Rows: nil}},
	})
	require.ErrorIs(t, err, ErrUnknownCollection)
}

func TestMemoryControllerRejectsAdvanceToNotAheadOfTimestamp(t *testing.T) {
	c, err := NewMemoryController("")
	require.NoError(t, err)
	require.NoError(t, c.RegisterCollection(1))

	err = c.Append(context.Background(), Batch{
		Timestamp: 5,
		AdvanceTo: 5,
		Updates:   []Update{{ID: 1, Rows: nil}},
	})
	require.ErrorIs(t, err, ErrTimestampNotAhead)
}

func TestMemoryControllerRejectsNonAdvancingTimestamp(t *testing.T) {
	c, err := NewMemoryController("")
	require.NoError(t, err)
	require.NoError(t, c.RegisterCollection(1))

	require.NoError(t, c.Append(context.Background(), Batch{
		Timestamp: 5,
		AdvanceTo: 6,
		Updates:   []Update{{ID: 1, Rows: []types.RowDiff{{Row: types.Row{}, Diff: 1}}}},
	}))

	err = c.Append(context.Background(), Batch{
		Timestamp: 5,
		AdvanceTo: 7,
		Updates:   []Update{{ID: 1, Rows: []types.RowDiff{{Row: types.Row{}, Diff: 1}}}},
	})
	require.ErrorIs(t, err, ErrTimestampNotAhead)
}

func TestMemoryControllerAppendAdvancesFrontierAndConsolidates(t *testing.T) {
	c, err := NewMemoryController("")
	require.NoError(t, err)
	require.NoError(t, c.RegisterCollection(1))

	row := types.Row{types.DatumInt64(7)}
	require.NoError(t, c.Append(context.Background(), Batch{
		Timestamp: 10,
		AdvanceTo: 11,
		Updates: []Update{{ID: 1, Rows: []types.RowDiff{
			{Row: row, Diff: 1},
			{Row: row, Diff: 1},
		}}},
	}))

	front, err := c.WriteFrontier(1)
	require.NoError(t, err)
	require.Equal(t, types.Timestamp(11), front)

	snap := c.Snapshot(1)
	require.Len(t, snap, 1)
	require.Equal(t, types.Diff(2), snap[0].Diff)
}

func TestMemoryControllerAppendIsAtomicAcrossUpdates(t *testing.T) {
	c, err := NewMemoryController("")
	require.NoError(t, err)
	require.NoError(t, c.RegisterCollection(1))

	err = c.Append(context.Background(), Batch{
		Timestamp: 1,
		AdvanceTo: 2,
		Updates: []Update{
			{ID: 1, Rows: nil},
			{ID: 99, Rows: nil}, // unregistered: whole batch must be rejected
		},
	})
	require.ErrorIs(t, err, ErrUnknownCollection)

	front, err := c.WriteFrontier(1)
	require.NoError(t, err)
	require.Equal(t, types.Timestamp(0), front, "frontier must not advance when any update in the batch is rejected")
}
