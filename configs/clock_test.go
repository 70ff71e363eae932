package configs

import (
	"flowcore/types"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestClockMonotone(t *testing.T) {
	c := NewClock()
	var now types.Timestamp = 10
	c.Now = func() types.Timestamp { return now }

	first := c.GetAndStepLocalWriteTS()
	require.Greater(t, uint64(first.AdvanceTo), uint64(first.Timestamp))

	// Wall clock retreats; the next pair must still strictly exceed the
	// previous advance_to.
	now = 5
	second := c.GetAndStepLocalWriteTS()
	require.Greater(t, uint64(second.Timestamp), uint64(first.Timestamp))
	require.Greater(t, uint64(second.AdvanceTo), uint64(second.Timestamp))
	require.GreaterOrEqual(t, uint64(second.Timestamp), uint64(first.AdvanceTo))
}

func TestClockPeekDoesNotAdvance(t *testing.T) {
	c := NewClock()
	var now types.Timestamp = 100
	c.Now = func() types.Timestamp { return now }

	peeked := c.PeekLocalTS()
	require.EqualValues(t, 100, peeked)
	peekedAgain := c.PeekLocalTS()
	require.Equal(t, peeked, peekedAgain)

	stepped := c.GetAndStepLocalWriteTS()
	require.Equal(t, peeked, stepped.Timestamp)
}

func TestClockAheadOfWallClock(t *testing.T) {
	c := NewClock()
	var now types.Timestamp = 0
	c.Now = func() types.Timestamp { return now }
	c.GetAndStepLocalWriteTS() // timestamp = 1, advance_to = 2

	// Wall clock stays at 0; peek must return something > now (ahead).
	peeked := c.PeekLocalTS()
	require.Greater(t, uint64(peeked), uint64(now))
}
