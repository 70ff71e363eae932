package coordinator

import (
	"flowcore/configs"
	"flowcore/locks"
	"flowcore/types"
)

// Response is what a completed statement reports back to its caller: either
// a success payload or an error. Group commit always reports success for
// writes it absorbs (including writes silently dropped because their
// target was concurrently removed — spec §4.1 invariant 3).
type Response struct {
	Err error
}

// ClientTransmitter is the one-shot reply channel a session's statement
// execution is waiting on, generalized from the teacher's
// ClientTransmitter<ExecuteResponse> (appends.rs) to a plain Go channel
// since this module has no network session protocol of its own.
type ClientTransmitter chan Response

// Send delivers resp without blocking. Grounded in appends.rs's
// `client_transmitter.send(response, session)` call at the end of
// group_commit, and best-effort like it: when the channel cannot take the
// reply (no reader on an unbuffered channel, or a full buffer) the response
// is dropped and a warning is logged.
func (tx ClientTransmitter) Send(resp Response) {
	select {
	case tx <- resp:
	default:
		configs.Warn(false, "client transmitter not ready; response dropped")
	}
}

// PendingTxn is the non-write half of a committing transaction: the reply
// channel and the session identity driving it. Kept separate from
// PendingWriteTxn.Writes the way appends.rs nests PendingTxn inside
// PendingWriteTxn, so group_commit can finish a transaction's bookkeeping
// without caring what its writes were.
type PendingTxn struct {
	Tx      ClientTransmitter
	Session *Session
}

// PendingWriteTxn is one transaction's worth of writes waiting for the next
// group commit, exactly mirroring appends.rs's struct of the same name.
type PendingWriteTxn struct {
	Writes         []types.WriteOp
	WriteLockGuard *locks.Guard // non-nil once this txn owns the write lock
	PendingTxn     PendingTxn
}

// HasWriteLock reports whether this pending write is already holding the
// coordinator's write lock (PendingWriteTxn::has_write_lock in appends.rs).
func (p *PendingWriteTxn) HasWriteLock() bool {
	return p.WriteLockGuard != nil
}

// Session is the minimal per-connection state the write path needs: whether
// it currently owns the write lock, generalized down from the teacher's
// full session/variable state since transaction-variable bookkeeping
// outside the write path is this module's explicit Non-goal.
type Session struct {
	ConnID         string
	writeLockGuard *locks.Guard
}

// HasWriteLock reports whether Session currently owns the coordinator's
// write lock (Session::has_write_lock in the original).
func (s *Session) HasWriteLock() bool {
	return s.writeLockGuard != nil
}

// GrantWriteLock records that guard now belongs to this session
// (Session::grant_write_lock in the original).
func (s *Session) GrantWriteLock(guard *locks.Guard) {
	s.writeLockGuard = guard
}

// TakeWriteLock removes and returns the session's write lock guard, for
// handing ownership off to a PendingWriteTxn at submit_write time.
func (s *Session) TakeWriteLock() *locks.Guard {
	g := s.writeLockGuard
	s.writeLockGuard = nil
	return g
}

// Deferred is an operation waiting on the write lock (Deferred in
// appends.rs): either a planned statement or a pending group commit.
type Deferred interface {
	deferred()
}

// DeferredPlan is a statement execution deferred until its session can
// acquire the write lock. Execute is invoked once the lock is granted; it
// generalizes the teacher's `tx`/`session`/`plan` triple into a single
// closure since this module has no separate plan-execution dispatcher of
// its own to re-enter.
type DeferredPlan struct {
	Session *Session
	Execute func(session *Session, guard *locks.Guard)
}

func (DeferredPlan) deferred() {}

// DeferredGroupCommit is a group commit deferred until the write lock is
// free (Deferred::GroupCommit in appends.rs).
type DeferredGroupCommit struct{}

func (DeferredGroupCommit) deferred() {}
