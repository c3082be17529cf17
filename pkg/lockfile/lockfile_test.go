package lockfile

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestManager(t *testing.T, staleAfter time.Duration) *Manager {
	m := New(t.TempDir(), staleAfter)
	m.MaxTries = 4
	m.InitialInterval = 5 * time.Millisecond
	m.MaxInterval = 20 * time.Millisecond
	return m
}

func TestAcquireRelease(t *testing.T) {
	m := newTestManager(t, time.Minute)
	ctx := context.Background()

	require.NoError(t, m.Acquire(ctx, "session-a"))
	require.NoError(t, m.Release("session-a"))

	// Lock is free again after release.
	require.NoError(t, m.Acquire(ctx, "session-a"))
	require.NoError(t, m.Release("session-a"))
}

func TestReleaseIsIdempotent(t *testing.T) {
	m := newTestManager(t, time.Minute)
	require.NoError(t, m.Acquire(context.Background(), "session-a"))
	require.NoError(t, m.Release("session-a"))
	assert.NoError(t, m.Release("session-a"))
}

func TestContendedLockTimesOut(t *testing.T) {
	m := newTestManager(t, time.Minute)
	ctx := context.Background()

	require.NoError(t, m.Acquire(ctx, "session-a"))
	defer m.Release("session-a")

	err := m.Acquire(ctx, "session-a")
	assert.ErrorIs(t, err, ErrLockTimeout)
}

func TestIndependentResourcesDoNotContend(t *testing.T) {
	m := newTestManager(t, time.Minute)
	ctx := context.Background()

	require.NoError(t, m.Acquire(ctx, "session-a"))
	defer m.Release("session-a")
	assert.NoError(t, m.Acquire(ctx, "session-b"))
	assert.NoError(t, m.Release("session-b"))
}

func TestStaleLockIsEvicted(t *testing.T) {
	m := newTestManager(t, 50*time.Millisecond)
	ctx := context.Background()

	require.NoError(t, m.Acquire(ctx, "session-a"))

	// Age the lock file past the staleness threshold, simulating a
	// crashed holder.
	lockPath := m.path("session-a")
	old := time.Now().Add(-time.Second)
	require.NoError(t, os.Chtimes(lockPath, old, old))

	assert.NoError(t, m.Acquire(ctx, "session-a"))
	assert.NoError(t, m.Release("session-a"))
}

func TestWaiterSucceedsAfterRelease(t *testing.T) {
	m := newTestManager(t, time.Minute)
	m.MaxTries = 10
	ctx := context.Background()

	require.NoError(t, m.Acquire(ctx, "session-a"))

	done := make(chan error, 1)
	go func() {
		done <- m.Acquire(ctx, "session-a")
	}()

	time.Sleep(15 * time.Millisecond)
	require.NoError(t, m.Release("session-a"))

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("waiter never acquired the lock")
	}
	assert.NoError(t, m.Release("session-a"))
}
