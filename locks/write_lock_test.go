package locks

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestWriteLockTryAcquireExclusive(t *testing.T) {
	w := NewWriteLock()
	g1, ok := w.TryAcquire()
	require.True(t, ok)
	require.NotNil(t, g1)

	_, ok = w.TryAcquire()
	require.False(t, ok, "lock is already held; second try-acquire must fail")

	g1.Release()
	g2, ok := w.TryAcquire()
	require.True(t, ok)
	g2.Release()
}

func TestWriteLockReleaseIsIdempotent(t *testing.T) {
	w := NewWriteLock()
	g, ok := w.TryAcquire()
	require.True(t, ok)
	g.Release()
	require.NotPanics(t, g.Release)

	_, ok = w.TryAcquire()
	require.True(t, ok, "double release must not double-unlock")
}

func TestWriteLockAcquireBlocksUntilFree(t *testing.T) {
	w := NewWriteLock()
	g1, ok := w.TryAcquire()
	require.True(t, ok)

	acquired := make(chan *Guard, 1)
	go func() {
		acquired <- w.Acquire()
	}()

	select {
	case <-acquired:
		t.Fatal("background acquire should not succeed while lock is held")
	case <-time.After(50 * time.Millisecond):
	}

	g1.Release()
	select {
	case g2 := <-acquired:
		require.NotNil(t, g2)
		g2.Release()
	case <-time.After(time.Second):
		t.Fatal("background acquire never observed the release")
	}
}
