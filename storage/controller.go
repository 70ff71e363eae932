// Package storage is the external system the coordinator's group commit
// appends to (spec §6). It is deliberately narrow: one synchronous
// accept-or-reject call per batch, with any failure past that point
// reported asynchronously and treated as fatal by the caller, matching the
// contract spec.md's ERROR HANDLING DESIGN section describes verbatim.
package storage

import (
	"context"
	"fmt"

	"flowcore/types"
)

// Update is one collection's worth of row changes for a single commit,
// keyed by the collection's GlobalID. It is the unit both the coordinator's
// atomic append payload and a builtin-table update batch share.
type Update struct {
	ID   types.GlobalID
	Rows []types.RowDiff
}

// Batch is everything one group commit appends in a single atomic call:
// every pending write's Update, all recorded at Timestamp, with every
// touched collection's write frontier then advanced to AdvanceTo. AdvanceTo
// must exceed Timestamp (spec §4.1 invariant: "advance_to strictly exceeds
// timestamp"); a zero-row Update at Timestamp AdvanceTo-1 is how
// advance_local_inputs advances a frontier with no new data.
type Batch struct {
	Timestamp types.Timestamp
	AdvanceTo types.Timestamp
	Updates   []Update
}

// FatalErrorHandler receives the storage controller's asynchronous failure
// notifications. The coordinator installs one that panics its own
// goroutine, matching spec §6's "halts the coordinator" language — there is
// no supported recovery path once a controller of record reports a failure.
type FatalErrorHandler func(err error)

// Controller is the storage system of record for every collection's write
// frontier. Append must either accept the whole batch or reject it
// synchronously (duplicate/out-of-order timestamp, malformed update); once
// accepted, any later failure is reported to the installed
// FatalErrorHandler instead of returning from Append.
type Controller interface {
	// Append durably records batch, advancing every touched collection's
	// write frontier to batch.AdvanceTo. A rejection (ErrTimestampNotAhead,
	// ErrUnknownCollection) is always synchronous.
	Append(ctx context.Context, batch Batch) error

	// WriteFrontier reports the id's current write frontier: the least
	// timestamp not yet durably recorded. Peeks compare against this to
	// decide whether they must wait.
	WriteFrontier(id types.GlobalID) (types.Timestamp, error)

	// RegisterCollection makes id a known append target with an initial
	// write frontier of zero. CreateDataflow calls this before any write
	// naming the new id can be accepted.
	RegisterCollection(id types.GlobalID) error

	// OnFatalError installs the handler Append's background failures are
	// reported to. Controllers that can only fail synchronously may treat
	// this as a no-op.
	OnFatalError(h FatalErrorHandler)

	// Close releases any resources (open log files, connection pools).
	Close() error
}

var (
	// ErrTimestampNotAhead is returned when a batch's AdvanceTo does not
	// exceed its Timestamp, or its Timestamp is below a touched collection's
	// current write frontier.
	ErrTimestampNotAhead = fmt.Errorf("storage: batch timestamp is not ahead of the write frontier")
	// ErrUnknownCollection is returned when a batch names a collection id
	// that was never registered.
	ErrUnknownCollection = fmt.Errorf("storage: unknown collection id")
)
