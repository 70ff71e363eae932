package coordinator

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"flowcore/configs"
	"flowcore/storage"
	"flowcore/types"
)

// tryGroupCommit attempts to commit every pending write transaction,
// mirroring appends.rs's try_group_commit state machine exactly:
//   - no pending writes: nothing to do.
//   - chosen timestamp still ahead of the wall clock: sleep (capped at
//     configs.GroupCommitSleepCap) and re-trigger GroupCommit, since a
//     fresh peek must be taken after waking (DDL may have run while asleep
//     and closed the peeked time).
//   - some pending write already holds the write lock: commit immediately.
//   - the write lock is free: try to acquire it and commit.
//   - otherwise some other session holds the lock: defer until it's free.
func (c *Coordinator) tryGroupCommit(ctx context.Context) {
	if len(c.pendingWrites) == 0 {
		return
	}

	timestamp := c.clock.PeekLocalTS()
	now := c.clock.Now()
	if timestamp > now {
		remaining := groupCommitRetryDelay(timestamp, now, configs.GroupCommitSleepCap)
		go func() {
			time.Sleep(remaining)
			c.internalCmd <- GroupCommit{}
		}()
		return
	}

	for _, pw := range c.pendingWrites {
		if pw.HasWriteLock() {
			c.groupCommit(ctx)
			return
		}
	}

	if guard, ok := c.writeLock.TryAcquire(); ok {
		defer guard.Release()
		c.groupCommit(ctx)
		return
	}

	c.deferWrite(DeferredGroupCommit{})
}

// groupCommitRetryDelay computes how long try_group_commit should sleep
// before retrying when the chosen timestamp is still ahead of the wall
// clock, capped so a system clock that jumped far into the past can't stall
// a retry for longer than cap (scenario d: timestamp=10_000_000, now=0
// retries after 1000ms, not ~2.7 hours).
func groupCommitRetryDelay(timestamp, now types.Timestamp, cap time.Duration) time.Duration {
	remaining := time.Duration(timestamp-now) * time.Millisecond
	if remaining > cap {
		return cap
	}
	return remaining
}

// groupCommit commits every pending write transaction at a single fresh
// timestamp, building one atomic append batch across every touched
// collection (appends.rs's group_commit).
func (c *Coordinator) groupCommit(ctx context.Context) {
	if len(c.pendingWrites) == 0 {
		return
	}

	wt := c.clock.GetAndStepLocalWriteTS()

	byID := make(map[types.GlobalID][]types.RowDiff)
	pending := c.pendingWrites
	c.pendingWrites = nil

	type responder struct {
		tx      ClientTransmitter
		session *Session
	}
	responders := make([]responder, 0, len(pending))

	for _, pw := range pending {
		for _, w := range pw.Writes {
			// A write whose target was concurrently dropped is silently
			// absorbed: the session still sees success (invariant 3).
			if _, err := c.catalog.GetType(idToName(c, w.ID)); err != nil {
				continue
			}
			byID[w.ID] = append(byID[w.ID], w.Rows...)
		}
		// Held-by-Session -> Held-by-Coordinator ends here: a write that
		// arrived carrying its session's write lock guard drops it once this
		// commit has drained the write, matching the Rust original's Drop on
		// PendingWriteTxn::write_lock_guard.
		if pw.WriteLockGuard != nil {
			pw.WriteLockGuard.Release()
		}
		responders = append(responders, responder{tx: pw.PendingTxn.Tx, session: pw.PendingTxn.Session})
	}

	updates := make([]storage.Update, 0, len(byID))
	for id, rows := range byID {
		updates = append(updates, storage.Update{ID: id, Rows: rows})
	}

	// The append is issued even when every drained write was absorbed and
	// updates is empty (Open Question iii in the design notes); such a batch
	// names no collection, so it moves no frontier.
	if err := c.controller.Append(ctx, storage.Batch{Timestamp: wt.Timestamp, AdvanceTo: wt.AdvanceTo, Updates: updates}); err != nil {
		// Rejection here means the coordinator itself picked an invalid
		// timestamp or named an unregistered collection — both are
		// programming errors the spec treats as unrecoverable (§6).
		c.fatal(err)
		return
	}

	for _, r := range responders {
		if r.tx != nil {
			r.tx.Send(Response{})
		}
	}
}

// idToName resolves a GlobalID back to the catalog name GetType needs.
// Grounded in the spec's GLOSSARY note that GlobalID and name are
// interchangeable lookup keys for the same object; the catalog indexes by
// name, so group commit keeps a reverse map only where it must query
// liveness, not for any other purpose.
func idToName(c *Coordinator, id types.GlobalID) string {
	for _, d := range c.catalog.Entries() {
		if d.ID == id {
			return d.Name
		}
	}
	return ""
}

// SendBuiltinTableUpdates appends system/builtin table updates outside the
// ordinary group commit path: each id's updates are consolidated (summed,
// net-zero dropped) before a single append call, and empty-after-consolidation
// ids are skipped entirely (spec §4.1 invariant 7,
// send_builtin_table_updates in appends.rs).
func (c *Coordinator) SendBuiltinTableUpdates(ctx context.Context, updates []storage.Update) {
	if len(updates) == 0 {
		return
	}
	wt := c.clock.GetAndStepLocalWriteTS()

	byID := make(map[types.GlobalID][]types.RowDiff)
	order := make([]types.GlobalID, 0, len(updates))
	for _, u := range updates {
		if _, ok := byID[u.ID]; !ok {
			order = append(order, u.ID)
		}
		byID[u.ID] = append(byID[u.ID], u.Rows...)
	}

	batch := make([]storage.Update, 0, len(order))
	for _, id := range order {
		rows := types.Consolidate(byID[id])
		if len(rows) == 0 {
			continue
		}
		batch = append(batch, storage.Update{ID: id, Rows: rows})
	}
	if len(batch) == 0 {
		return
	}
	if err := c.controller.Append(ctx, storage.Batch{Timestamp: wt.Timestamp, AdvanceTo: wt.AdvanceTo, Updates: batch}); err != nil {
		c.fatal(err)
	}
}

// QueueLocalInputAdvances enqueues an AdvanceLocalInput message covering
// every current table and storage-collection id, matching
// queue_local_input_advances in appends.rs.
func (c *Coordinator) QueueLocalInputAdvances(advanceTo types.Timestamp) {
	c.internalCmd <- AdvanceLocalInput{AdvanceTo: advanceTo, IDs: c.tableAndSourceIDs()}
}

// advanceLocalInputs downgrades the write frontier of every id in inputs
// that is both still present in the catalog and not already advanced past
// AdvanceTo, issuing one zero-row append per id (advance_local_inputs in
// appends.rs). Each append is fire-and-forget from the coordinator's point
// of view (open question ii in the design notes): the group of goroutines
// is tracked with an errgroup only so every failure gets logged before the
// batch is let drop, not so the coordinator loop ever waits on it.
func (c *Coordinator) advanceLocalInputs(ctx context.Context, in AdvanceLocalInput) {
	ids := make([]types.GlobalID, 0, len(in.IDs))
	for _, id := range in.IDs {
		if idToName(c, id) == "" {
			continue
		}
		front, err := c.controller.WriteFrontier(id)
		if err != nil || !front.Less(in.AdvanceTo) {
			continue
		}
		ids = append(ids, id)
	}
	if len(ids) == 0 {
		return
	}
	go func() {
		var eg errgroup.Group
		for _, id := range ids {
			id := id
			eg.Go(func() error {
				batch := storage.Batch{
					Timestamp: in.AdvanceTo - 1,
					AdvanceTo: in.AdvanceTo,
					Updates:   []storage.Update{{ID: id, Rows: nil}},
				}
				if err := c.controller.Append(ctx, batch); err != nil {
					return fmt.Errorf("advancing input %v: %w", id, err)
				}
				return nil
			})
		}
		if err := eg.Wait(); err != nil {
			configs.Warn(false, err.Error())
		}
	}()
}
