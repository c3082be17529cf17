package session

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"media-library/pkg/lockfile"
)

func newTestStore(t *testing.T) *FileStore {
	dir := t.TempDir()
	locks := lockfile.New(filepath.Join(dir, "locks"), time.Minute)
	locks.InitialInterval = 5 * time.Millisecond
	locks.MaxTries = 50
	return NewFileStore(filepath.Join(dir, "sessions"), locks)
}

func newTestSession(id string, totalChunks int) *Session {
	return &Session{
		ID:          id,
		FileName:    "heat.mkv",
		TotalSize:   3 << 20,
		TotalChunks: totalChunks,
		OwnerID:     "user-1",
		CreatedAt:   time.Now(),
	}
}

func TestPutGetRoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, newTestSession("s1", 3)))

	got, err := store.Get(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, "heat.mkv", got.FileName)
	assert.Equal(t, 3, got.TotalChunks)
	assert.Empty(t, got.ReceivedChunks)
}

func TestGetMissingSession(t *testing.T) {
	store := newTestStore(t)
	_, err := store.Get(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRecordChunkIsIdempotent(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, store.Put(ctx, newTestSession("s1", 3)))

	count, err := store.RecordChunk(ctx, "s1", 1)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	// Repeated delivery of the same index is a no-op success.
	count, err = store.RecordChunk(ctx, "s1", 1)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	got, err := store.Get(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, []int{1}, got.ReceivedChunks)
}

func TestRecordChunkKeepsIndicesSorted(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, store.Put(ctx, newTestSession("s1", 3)))

	for _, idx := range []int{2, 0, 1} {
		_, err := store.RecordChunk(ctx, "s1", idx)
		require.NoError(t, err)
	}

	got, err := store.Get(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, []int{0, 1, 2}, got.ReceivedChunks)
	assert.True(t, got.Complete())
}

func TestRecordChunkOutOfRange(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, store.Put(ctx, newTestSession("s1", 3)))

	_, err := store.RecordChunk(ctx, "s1", 3)
	assert.ErrorIs(t, err, ErrChunkOutOfRange)
	_, err = store.RecordChunk(ctx, "s1", -1)
	assert.ErrorIs(t, err, ErrChunkOutOfRange)
}

func TestRecordChunkMissingSession(t *testing.T) {
	store := newTestStore(t)
	_, err := store.RecordChunk(context.Background(), "nope", 0)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestConcurrentRecordChunkSerializes(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	const total = 16
	require.NoError(t, store.Put(ctx, newTestSession("s1", total)))

	var wg sync.WaitGroup
	errs := make(chan error, total)
	for i := 0; i < total; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			_, err := store.RecordChunk(ctx, "s1", idx)
			errs <- err
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	got, err := store.Get(ctx, "s1")
	require.NoError(t, err)
	assert.True(t, got.Complete())
	assert.Empty(t, got.MissingChunks())
}

func TestAtomicWriteLeavesNoTempFiles(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, store.Put(ctx, newTestSession("s1", 2)))
	_, err := store.RecordChunk(ctx, "s1", 0)
	require.NoError(t, err)

	entries, err := os.ReadDir(store.dir)
	require.NoError(t, err)
	for _, entry := range entries {
		assert.NotContains(t, entry.Name(), ".tmp")
	}
}

func TestMissingChunksReported(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, store.Put(ctx, newTestSession("s1", 4)))

	_, err := store.RecordChunk(ctx, "s1", 0)
	require.NoError(t, err)
	_, err = store.RecordChunk(ctx, "s1", 2)
	require.NoError(t, err)

	got, err := store.Get(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, []int{1, 3}, got.MissingChunks())
}

func TestDeleteThenGet(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, store.Put(ctx, newTestSession("s1", 2)))
	require.NoError(t, store.Delete(ctx, "s1"))

	_, err := store.Get(ctx, "s1")
	assert.ErrorIs(t, err, ErrNotFound)
}
