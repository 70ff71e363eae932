// Package coordinator is the single-coordinator write path (spec §4.1): a
// serial actor that batches pending writes into timestamped group commits
// against a storage.Controller. It is grounded throughout on
// _examples/original_source/src/adapter/src/coord/appends.rs, the Rust
// source this design is translated from, generalized from tokio tasks and
// channels to goroutines and Go channels.
package coordinator

import (
	"flowcore/locks"
	"flowcore/types"
)

// Message is the coordinator's internal command channel alphabet
// (Message in appends.rs): every event the Run loop reacts to arrives as
// one of these, whether triggered by a client request or by a background
// goroutine the coordinator itself spawned.
type Message interface {
	message()
}

// GroupCommit asks the coordinator to attempt a group commit of whatever
// writes are currently pending. Both submit_write and the retry-sleep
// goroutine spawned by tryGroupCommit send this.
type GroupCommit struct{}

func (GroupCommit) message() {}

// AdvanceLocalInput asks the coordinator to advance every table/source's
// write frontier to AdvanceTo, skipping any id dropped in the meantime.
type AdvanceLocalInput struct {
	AdvanceTo types.Timestamp
	IDs       []types.GlobalID
}

func (AdvanceLocalInput) message() {}

// WriteLockGrant delivers a write lock Guard that a deferred goroutine
// finished waiting for (defer_write's task, once write_lock.lock_owned()
// resolves). The Run loop must route it to whichever deferred operation is
// at the front of the wait queue.
type WriteLockGrant struct {
	Guard *locks.Guard
}

func (WriteLockGrant) message() {}
