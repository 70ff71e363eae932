// Package locks provides the coordinator's single write lock: an
// ownership-transferable mutex where the Guard returned by a successful
// acquire is the value that moves between acquirer and coordinator, and
// whose Release is what actually frees the lock (per spec §9's design note
// on modeling the lock as a value rather than a "lock belongs to session X"
// registry). The underlying exclusion is a CASMutex from
// github.com/viney-shih/go-lock; the teacher's own RWLock
// (locks/rw_lock.go) used a hand-rolled spin/latch pair for the same shape
// of problem, which this generalizes into a transferable token.
package locks

import (
	"sync"

	lock "github.com/viney-shih/go-lock"
)

// WriteLock is the coordinator's sole mutex (spec §5: "No other coordinator
// state is guarded by a lock because the coordinator itself is
// single-threaded"). It is acquired in exactly three ways: non-blocking from
// the coordinator at commit time, non-blocking from a session on its first
// write, or blocking in a background task that hands the resulting Guard to
// the coordinator over a message.
type WriteLock struct {
	mu *lock.CASMutex
}

func NewWriteLock() *WriteLock {
	return &WriteLock{mu: lock.NewCASMutex()}
}

// TryAcquire attempts a non-blocking acquire. On success the returned Guard
// is the sole means of releasing the lock; on failure the lock is held by
// someone else and (nil, false) is returned.
func (w *WriteLock) TryAcquire() (*Guard, bool) {
	if !w.mu.TryLock() {
		return nil, false
	}
	return &Guard{lock: w}, true
}

// Acquire blocks until the lock is free, for the background task spawned by
// defer_write. It never runs on the coordinator's own goroutine.
func (w *WriteLock) Acquire() *Guard {
	w.mu.Lock()
	return &Guard{lock: w}
}

// Guard is an ownership token for the write lock, threaded through a
// PendingWriteTxn or a DeferredPlan. It releases the lock at most once, on
// the first call to Release; lacking Rust's Drop, a Guard that simply goes
// out of scope without Release keeps the lock held.
type Guard struct {
	lock     *WriteLock
	released sync.Once
}

// Release frees the lock. Safe to call more than once; only the first call
// has any effect.
func (g *Guard) Release() {
	if g == nil {
		return
	}
	g.released.Do(func() {
		g.lock.mu.Unlock()
	})
}
