// Package types holds the write-path's data model: timestamps, rows,
// datums, diffs, and the update/write-op envelopes that carry them between
// the planner, the coordinator, and the storage controller.
package types

// Timestamp is a totally ordered logical time, in unsigned milliseconds.
// Two related values appear in every commit: the timestamp at which writes
// become visible, and the advance_to strictly beyond it which becomes the
// collection's new write frontier.
type Timestamp uint64

// Less reports whether the frontier t is strictly below other, i.e. whether
// the frontier can still be advanced to "other".
func (t Timestamp) Less(other Timestamp) bool {
	return t < other
}

// WriteTimestamp pairs the timestamp a group commit writes at with the
// advance_to its frontier moves to. The invariant advance_to > timestamp
// holds for every value produced by a Clock.
type WriteTimestamp struct {
	Timestamp Timestamp
	AdvanceTo Timestamp
}
