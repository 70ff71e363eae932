package benchmark

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestStatsRecordsSuccessesAndFailuresSeparately(t *testing.T) {
	s := NewStats()
	s.Record(10*time.Millisecond, nil)
	s.Record(20*time.Millisecond, nil)
	s.Record(0, errors.New("boom"))

	snap := s.Log()
	require.Equal(t, 2, snap.Successes)
	require.Equal(t, 1, snap.Failures)
	require.Len(t, s.latencies, 2)
}

func TestStatsPercentilesOrderedOverSortedLatencies(t *testing.T) {
	s := NewStats()
	for i := 1; i <= 100; i++ {
		s.Record(time.Duration(i)*time.Millisecond, nil)
	}
	snap := s.Log()
	require.LessOrEqual(t, snap.P50, snap.P90)
	require.LessOrEqual(t, snap.P90, snap.P99)
	require.Greater(t, snap.Avg, time.Duration(0))
}

func TestStatsClearResetsCounters(t *testing.T) {
	s := NewStats()
	s.Record(5*time.Millisecond, nil)
	s.Record(0, errors.New("fail"))
	s.Clear()

	snap := s.Log()
	require.Zero(t, snap.Successes)
	require.Zero(t, snap.Failures)
	require.Zero(t, snap.P50)
}

func TestPercentileEmptyIsZero(t *testing.T) {
	require.Equal(t, time.Duration(0), percentile(nil, 0.5))
}
