package coordinator

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"flowcore/catalog"
	"flowcore/configs"
	"flowcore/locks"
	"flowcore/relexpr"
	"flowcore/storage"
	"flowcore/types"
)

func newTestCoordinator(t *testing.T, now types.Timestamp) (*Coordinator, *storage.MemoryController, *catalog.Store, types.GlobalID) {
	t.Helper()
	cat := catalog.NewStore()
	tbl := &catalog.Dataflow{
		Name:         "t",
		Kind:         catalog.KindTable,
		RelationType: relexpr.RelationType{Columns: []relexpr.ColumnType{{Scalar: types.ScalarInt32}}},
	}
	require.NoError(t, cat.Insert(tbl))

	ctrl, err := storage.NewMemoryController("")
	require.NoError(t, err)
	require.NoError(t, ctrl.RegisterCollection(tbl.ID))

	clock := configs.NewClock()
	clock.Now = func() types.Timestamp { return now }

	coord := New(clock, locks.NewWriteLock(), cat, ctrl, func(err error) {
		t.Fatalf("unexpected fatal error: %v", err)
	})
	return coord, ctrl, cat, tbl.ID
}

func writeOp(id types.GlobalID, val int32, diff types.Diff) types.WriteOp {
	return types.WriteOp{ID: id, Rows: []types.RowDiff{{Row: types.Row{types.DatumInt32(val)}, Diff: diff}}}
}

// Scenario (a): single insert commits at the clock's (timestamp, advance_to).
func TestGroupCommitSingleInsert(t *testing.T) {
	coord, ctrl, _, tblID := newTestCoordinator(t, 10)

	resp := make(ClientTransmitter, 1)
	coord.submitWrite(&PendingWriteTxn{
		Writes:     []types.WriteOp{writeOp(tblID, 1, 1)},
		PendingTxn: PendingTxn{Tx: resp},
	})
	coord.tryGroupCommit(context.Background())

	select {
	case r := <-resp:
		require.NoError(t, r.Err)
	default:
		t.Fatal("expected a response, got none")
	}

	front, err := ctrl.WriteFrontier(tblID)
	require.NoError(t, err)
	require.Equal(t, types.Timestamp(11), front)

	snap := ctrl.Snapshot(tblID)
	require.Len(t, snap, 1)
	require.Equal(t, types.Diff(1), snap[0].Diff)
}

// Scenario (b): a write whose target is dropped before commit is absorbed —
// no append entry for that id, but the client still sees success.
func TestGroupCommitConcurrentDropAbsorbsWrite(t *testing.T) {
	coord, ctrl, cat, tblID := newTestCoordinator(t, 10)

	resp := make(ClientTransmitter, 1)
	coord.submitWrite(&PendingWriteTxn{
		Writes:     []types.WriteOp{writeOp(tblID, 1, 1)},
		PendingTxn: PendingTxn{Tx: resp},
	})

	var removed []*catalog.Dataflow
	require.NoError(t, cat.Remove("t", catalog.Restrict, &removed))

	coord.tryGroupCommit(context.Background())

	select {
	case r := <-resp:
		require.NoError(t, r.Err, "client must still see success for an absorbed write")
	default:
		t.Fatal("expected a response, got none")
	}

	snap := ctrl.Snapshot(tblID)
	require.Empty(t, snap, "dropped target must produce no append entry")
}

// Scenario (c): when the chosen timestamp is ahead of the wall clock, no
// commit happens on this tick; the write stays pending.
func TestTryGroupCommitDefersWhenClockBehind(t *testing.T) {
	coord, ctrl, _, tblID := newTestCoordinator(t, 100)

	// Prime the clock so it has already handed out a timestamp ahead of
	// where the wall clock will read next, the way a prior write does.
	coord.clock.GetAndStepLocalWriteTS()
	coord.clock.Now = func() types.Timestamp { return 0 }
	require.Greater(t, uint64(coord.clock.PeekLocalTS()), uint64(0))

	resp := make(ClientTransmitter, 1)
	coord.submitWrite(&PendingWriteTxn{
		Writes:     []types.WriteOp{writeOp(tblID, 1, 1)},
		PendingTxn: PendingTxn{Tx: resp},
	})

	coord.tryGroupCommit(context.Background())

	select {
	case <-resp:
		t.Fatal("must not commit while the chosen timestamp is ahead of the wall clock")
	default:
	}

	front, err := ctrl.WriteFrontier(tblID)
	require.NoError(t, err)
	require.Equal(t, types.Timestamp(0), front, "no append should have happened yet")
}

// Scenario (d): retry delay is capped, even when the clock is ahead by a
// huge margin.
func TestGroupCommitRetryDelayIsCapped(t *testing.T) {
	require.Equal(t, 1000*time.Millisecond, groupCommitRetryDelay(10_000_000, 0, 1000*time.Millisecond))
}

func TestGroupCommitRetryDelayUncapped(t *testing.T) {
	require.Equal(t, 400*time.Millisecond, groupCommitRetryDelay(500, 100, 1000*time.Millisecond))
}

// Scenario (e): builtin table updates are consolidated per id before
// appending; zero-sum rows vanish.
func TestSendBuiltinTableUpdatesConsolidates(t *testing.T) {
	coord, ctrl, cat, _ := newTestCoordinator(t, 10)

	sys := &catalog.Dataflow{Name: "s", Kind: catalog.KindTable}
	require.NoError(t, cat.Insert(sys))
	require.NoError(t, ctrl.RegisterCollection(sys.ID))

	x := types.Row{types.DatumString("x")}
	y := types.Row{types.DatumString("y")}
	coord.SendBuiltinTableUpdates(context.Background(), []storage.Update{
		{ID: sys.ID, Rows: []types.RowDiff{{Row: x, Diff: 1}}},
		{ID: sys.ID, Rows: []types.RowDiff{{Row: x, Diff: -1}}},
		{ID: sys.ID, Rows: []types.RowDiff{{Row: y, Diff: 1}}},
	})

	snap := ctrl.Snapshot(sys.ID)
	require.Len(t, snap, 1)
	require.True(t, snap[0].Row.Equal(y))
	require.Equal(t, types.Diff(1), snap[0].Diff)
}

// Held-by-Session -> Held-by-Coordinator: a session that already holds the
// write lock hands its guard into the PendingWriteTxn it submits, and
// groupCommit releases that guard once the write is drained — otherwise the
// lock would never free up for the next commit.
func TestGroupCommitReleasesSessionHeldWriteLockGuard(t *testing.T) {
	coord, ctrl, _, tblID := newTestCoordinator(t, 10)

	session := &Session{ConnID: "conn-1"}
	require.True(t, coord.tryGrantSessionWriteLock(session))

	resp := make(ClientTransmitter, 1)
	coord.submitWrite(&PendingWriteTxn{
		Writes:         []types.WriteOp{writeOp(tblID, 1, 1)},
		WriteLockGuard: session.TakeWriteLock(),
		PendingTxn:     PendingTxn{Tx: resp},
	})
	coord.tryGroupCommit(context.Background())

	select {
	case r := <-resp:
		require.NoError(t, r.Err)
	default:
		t.Fatal("expected a response, got none")
	}

	guard, ok := coord.writeLock.TryAcquire()
	require.True(t, ok, "group commit must release a write lock guard it drained, or the lock leaks forever")
	guard.Release()

	snap := ctrl.Snapshot(tblID)
	require.Len(t, snap, 1)
}

// GuardedOp acquires the write lock for a session immediately when it's
// free, running Execute inline on the coordinator's own goroutine
// (guard_write_critical_section's non-deferred path).
func TestGuardWriteCriticalSectionGrantsImmediatelyWhenFree(t *testing.T) {
	coord, _, _, _ := newTestCoordinator(t, 10)

	session := &Session{ConnID: "conn-1"}
	executed := false
	coord.guardWriteCriticalSection(GuardedOp{
		Session: session,
		Execute: func(s *Session, guard *locks.Guard) {
			executed = true
			require.True(t, s.HasWriteLock())
			require.NotNil(t, guard)
		},
	})

	require.True(t, executed)
	require.True(t, session.HasWriteLock())

	session.TakeWriteLock().Release()
}

// GuardedOp defers Execute via DeferredPlan when another session already
// holds the write lock, then runs it once handleWriteLockGrant routes the
// freed guard back to the front of the wait queue.
func TestGuardWriteCriticalSectionDefersWhenLockHeld(t *testing.T) {
	coord, _, _, _ := newTestCoordinator(t, 10)

	held, ok := coord.writeLock.TryAcquire()
	require.True(t, ok)

	session := &Session{ConnID: "conn-2"}
	executed := make(chan struct{}, 1)
	coord.guardWriteCriticalSection(GuardedOp{
		Session: session,
		Execute: func(s *Session, guard *locks.Guard) {
			require.True(t, s.HasWriteLock())
			executed <- struct{}{}
		},
	})

	select {
	case <-executed:
		t.Fatal("must not execute before the lock is available")
	default:
	}
	require.Len(t, coord.writeLockWaitQueue, 1)

	held.Release()

	var grant WriteLockGrant
	select {
	case msg := <-coord.internalCmd:
		g, ok := msg.(WriteLockGrant)
		require.True(t, ok)
		grant = g
	case <-time.After(time.Second):
		t.Fatal("expected a WriteLockGrant once the held lock was released")
	}
	coord.handleWriteLockGrant(context.Background(), grant)

	select {
	case <-executed:
	case <-time.After(time.Second):
		t.Fatal("deferred plan must execute once granted the lock")
	}

	session.TakeWriteLock().Release()
}

// Invariant 6: at any moment at most one of {a session, the coordinator}
// holds the write lock — exercised directly against the exclusion
// primitive rather than through a race-prone end-to-end scenario.
func TestWriteLockMutualExclusion(t *testing.T) {
	coord, _, _, _ := newTestCoordinator(t, 10)

	session := &Session{ConnID: "conn-1"}
	require.True(t, coord.tryGrantSessionWriteLock(session))
	require.True(t, session.HasWriteLock())

	_, ok := coord.writeLock.TryAcquire()
	require.False(t, ok, "the write lock must not be acquirable while a session holds it")

	session.TakeWriteLock().Release()
	guard, ok := coord.writeLock.TryAcquire()
	require.True(t, ok)
	guard.Release()
}

// Deferred group commits, once granted the lock, release it immediately and
// retrigger a fresh try_group_commit rather than holding the lock across the
// storage append (see handleWriteLockGrant).
func TestDeferredGroupCommitRetriggersOnGrant(t *testing.T) {
	coord, ctrl, _, tblID := newTestCoordinator(t, 10)

	resp := make(ClientTransmitter, 1)
	coord.submitWrite(&PendingWriteTxn{
		Writes:     []types.WriteOp{writeOp(tblID, 7, 1)},
		PendingTxn: PendingTxn{Tx: resp},
	})

	held, ok := coord.writeLock.TryAcquire()
	require.True(t, ok)

	coord.deferWrite(DeferredGroupCommit{})
	held.Release()

	// submitWrite already queued a plain GroupCommit trigger ahead of the
	// WriteLockGrant the deferred goroutine above will post; discard
	// messages until the grant arrives, the way Run would dispatch both but
	// this test only wants to drive the grant path directly.
	var grant WriteLockGrant
	for {
		msg := <-coord.internalCmd
		if g, ok := msg.(WriteLockGrant); ok {
			grant = g
			break
		}
	}
	coord.handleWriteLockGrant(context.Background(), grant)

	select {
	case r := <-resp:
		require.NoError(t, r.Err)
	case <-time.After(time.Second):
		t.Fatal("expected the retriggered group commit to respond")
	}

	snap := ctrl.Snapshot(tblID)
	require.Len(t, snap, 1)
}
