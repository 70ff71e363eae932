package coordinator

import (
	"context"

	"flowcore/catalog"
	"flowcore/configs"
	"flowcore/locks"
	"flowcore/storage"
	"flowcore/types"
)

// Coordinator is the single-coordinator write-path actor (spec §4.1). Every
// method that mutates pendingWrites or writeLockWaitQueue must only be
// called from the goroutine running Run — external callers only ever send
// a Message through SubmitWrite/Dispatch/QueueLocalInputAdvances, mirroring how every
// appends.rs method assumes it runs on Materialize's single coordinator
// task. Serializing through one channel gives that invariant for free,
// without a mutex.
type Coordinator struct {
	clock      *configs.Clock
	writeLock  *locks.WriteLock
	catalog    *catalog.Store
	controller storage.Controller

	internalCmd chan Message

	pendingWrites      []*PendingWriteTxn
	writeLockWaitQueue []Deferred

	onFatal func(error)
}

// New builds a Coordinator wired to controller and catalog, with its
// internal command channel sized per configs.InternalCommandChannelSize.
// onFatal is invoked (from whatever goroutine detects the failure) when a
// storage append is rejected or a one-shot ack otherwise fails — the spec's
// ERROR HANDLING DESIGN treats both as unrecoverable for the process.
func New(clock *configs.Clock, writeLock *locks.WriteLock, cat *catalog.Store, controller storage.Controller, onFatal func(error)) *Coordinator {
	c := &Coordinator{
		clock:       clock,
		writeLock:   writeLock,
		catalog:     cat,
		controller:  controller,
		internalCmd: make(chan Message, configs.InternalCommandChannelSize),
		onFatal:     onFatal,
	}
	controller.OnFatalError(func(err error) { c.fatal(err) })
	return c
}

func (c *Coordinator) fatal(err error) {
	if c.onFatal != nil {
		c.onFatal(err)
	}
}

// Run drives the coordinator's message loop until ctx is cancelled. It is
// the Go analogue of Materialize's single coordinator task consuming
// internal_cmd_rx: every Message this module defines is handled here, and
// nowhere else mutates pendingWrites or writeLockWaitQueue.
func (c *Coordinator) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg := <-c.internalCmd:
			c.handle(ctx, msg)
		}
	}
}

func (c *Coordinator) handle(ctx context.Context, msg Message) {
	switch m := msg.(type) {
	case GroupCommit:
		c.tryGroupCommit(ctx)
	case AdvanceLocalInput:
		c.advanceLocalInputs(ctx, m)
	case WriteLockGrant:
		c.handleWriteLockGrant(ctx, m)
	case submitWriteMsg:
		c.submitWrite(m.write)
	case GuardedOp:
		c.guardWriteCriticalSection(m)
	}
}

// submitWriteMsg carries a PendingWriteTxn onto the coordinator's own
// goroutine, matching appends.rs's submit_write which is itself only ever
// called from the single coordinator task.
type submitWriteMsg struct{ write *PendingWriteTxn }

func (submitWriteMsg) message() {}

// SubmitWrite enqueues write for the next group commit, from any caller's
// goroutine (submit_write in appends.rs).
func (c *Coordinator) SubmitWrite(write *PendingWriteTxn) {
	c.internalCmd <- submitWriteMsg{write: write}
}

// submitWrite is the actor-side half of SubmitWrite: appends to
// pendingWrites and requests a group commit attempt, exactly mirroring
// appends.rs's submit_write body.
func (c *Coordinator) submitWrite(write *PendingWriteTxn) {
	c.internalCmd <- GroupCommit{}
	c.pendingWrites = append(c.pendingWrites, write)
}

// GuardedOp is a statement execution that needs the coordinator's write
// lock before it may proceed — the Go replacement for the
// guard_write_critical_section! macro, dispatched like every other message
// so the only code that ever inspects or grants the write lock runs on the
// coordinator's own goroutine.
type GuardedOp struct {
	Session *Session
	Execute func(session *Session, guard *locks.Guard)
}

func (GuardedOp) message() {}

// Dispatch runs op once its session holds the write lock, deferring it if
// the lock isn't immediately available (guard_write_critical_section! in
// appends.rs).
func (c *Coordinator) Dispatch(op GuardedOp) {
	c.internalCmd <- op
}

func (c *Coordinator) guardWriteCriticalSection(op GuardedOp) {
	if !op.Session.HasWriteLock() {
		if !c.tryGrantSessionWriteLock(op.Session) {
			c.deferWrite(DeferredPlan{Session: op.Session, Execute: op.Execute})
			return
		}
	}
	op.Execute(op.Session, op.Session.writeLockGuard)
}

// tryGrantSessionWriteLock attempts to immediately grant session access to
// the write lock, reporting whether it succeeded
// (try_grant_session_write_lock in appends.rs).
func (c *Coordinator) tryGrantSessionWriteLock(session *Session) bool {
	guard, ok := c.writeLock.TryAcquire()
	if !ok {
		return false
	}
	session.GrantWriteLock(guard)
	return true
}

// deferWrite queues deferred until the write lock becomes available,
// spawning a goroutine that blocks for the lock and reports back via
// WriteLockGrant once it's granted (defer_write in appends.rs).
func (c *Coordinator) deferWrite(deferred Deferred) {
	c.writeLockWaitQueue = append(c.writeLockWaitQueue, deferred)
	go func() {
		guard := c.writeLock.Acquire()
		c.internalCmd <- WriteLockGrant{Guard: guard}
	}()
}

// handleWriteLockGrant routes a newly granted write lock to whatever
// Deferred operation has been waiting longest. A deferred group commit
// doesn't need to keep holding the lock once it wakes up — its only job was
// to make sure some caller eventually retries the commit now that the lock
// is free — so it releases the guard immediately and re-triggers
// tryGroupCommit, which re-evaluates pending_writes from scratch.
func (c *Coordinator) handleWriteLockGrant(ctx context.Context, m WriteLockGrant) {
	if len(c.writeLockWaitQueue) == 0 {
		m.Guard.Release()
		return
	}
	deferred := c.writeLockWaitQueue[0]
	c.writeLockWaitQueue = c.writeLockWaitQueue[1:]

	switch d := deferred.(type) {
	case DeferredPlan:
		d.Session.GrantWriteLock(m.Guard)
		d.Execute(d.Session, m.Guard)
	case DeferredGroupCommit:
		m.Guard.Release()
		c.tryGroupCommit(ctx)
	}
}

// tableAndSourceIDs returns the current id/kind snapshot queue_local_input_advances
// needs to decide which ids are table-or-storage-collection backed.
func (c *Coordinator) tableAndSourceIDs() []types.GlobalID {
	entries := c.catalog.Entries()
	ids := make([]types.GlobalID, 0, len(entries))
	for _, d := range entries {
		if d.IsTable() || d.IsStorageCollection() {
			ids = append(ids, d.ID)
		}
	}
	return ids
}
