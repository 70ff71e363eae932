package configs

import (
	"flowcore/types"
	"sync"
	"time"
)

// Clock is the timeline service the coordinator consumes: a monotonic
// logical clock whose get_and_step_local_write_ts atomically returns a
// (timestamp, advance_to) pair that strictly exceeds every pair it has
// handed out before, and whose peek_local_ts reads the next value it would
// hand out without consuming it. Grounded in the teacher's atomic
// transaction-id counter (configs/timestamp.go), generalized from a single
// counter to the timestamp/advance_to pair the write path requires.
type Clock struct {
	mu   sync.Mutex
	last types.Timestamp // the last advance_to ever handed out

	// Now returns the current wall-clock time as a Timestamp. Overridable
	// for tests; defaults to the system clock in milliseconds.
	Now func() types.Timestamp
}

func NewClock() *Clock {
	return &Clock{Now: wallClockNow}
}

func wallClockNow() types.Timestamp {
	return types.Timestamp(time.Now().UnixMilli())
}

// nextFrom computes the next unused timestamp given the wall clock reading
// and the last advance_to handed out, without mutating any state.
func (c *Clock) nextFrom(now types.Timestamp) types.Timestamp {
	if now <= c.last {
		return c.last + 1
	}
	return now
}

// PeekLocalTS returns the timestamp get_and_step_local_write_ts would
// currently hand out, without advancing the clock. Used by try_group_commit
// so that a retry sleep doesn't burn a timestamp that may never be used.
func (c *Clock) PeekLocalTS() types.Timestamp {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.nextFrom(c.Now())
}

// GetAndStepLocalWriteTS atomically returns a fresh (timestamp, advance_to)
// pair and advances the clock past advance_to, so every subsequent call
// (from this or any other goroutine) returns a strictly greater pair.
func (c *Clock) GetAndStepLocalWriteTS() types.WriteTimestamp {
	c.mu.Lock()
	defer c.mu.Unlock()
	ts := c.nextFrom(c.Now())
	advanceTo := ts + 1
	c.last = advanceTo
	return types.WriteTimestamp{Timestamp: ts, AdvanceTo: advanceTo}
}
