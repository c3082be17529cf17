package service

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"media-library/config"
	"media-library/constant"
	"media-library/dto"
	"media-library/pkg/lockfile"
	"media-library/repository"
	"media-library/session"
)

type fakeProber struct {
	quality  constant.Quality
	duration int
}

func (f fakeProber) Probe(ctx context.Context, path string) (constant.Quality, int, error) {
	return f.quality, f.duration, nil
}

type captureTranscoder struct {
	messages []dto.TranscodeMessage
}

func (c *captureTranscoder) RequestTranscode(ctx context.Context, msg dto.TranscodeMessage) error {
	c.messages = append(c.messages, msg)
	return nil
}

func testConfig(t *testing.T) *config.Config {
	root := t.TempDir()
	return &config.Config{
		Storage: config.Storage{
			MediaDir:        filepath.Join(root, "media"),
			TranscodedDir:   filepath.Join(root, "transcoded"),
			ThumbnailDir:    filepath.Join(root, "thumbnails"),
			ChunkDir:        filepath.Join(root, "chunks"),
			SessionDir:      filepath.Join(root, "sessions"),
			LockDir:         filepath.Join(root, "locks"),
			MaxChunkBytes:   1 << 20,
			MaxUploadBytes:  1 << 30,
			MinVariantBytes: 10,
			LockStaleAfter:  time.Minute,
		},
	}
}

type uploadFixture struct {
	svc        UploadService
	catalog    *repository.MemoryCatalog
	sessions   session.Store
	transcoder *captureTranscoder
	cfg        *config.Config
}

func newUploadFixture(t *testing.T) *uploadFixture {
	cfg := testConfig(t)
	locks := lockfile.New(cfg.Storage.LockDir, cfg.Storage.LockStaleAfter)
	locks.InitialInterval = 5 * time.Millisecond
	sessions := session.NewFileStore(cfg.Storage.SessionDir, locks)
	catalog := repository.NewMemoryCatalog()
	transcoder := &captureTranscoder{}
	svc := NewUploadService(sessions, catalog, cfg, transcoder, fakeProber{quality: constant.Quality1080p, duration: 120})
	return &uploadFixture{
		svc:        svc,
		catalog:    catalog,
		sessions:   sessions,
		transcoder: transcoder,
		cfg:        cfg,
	}
}

func (f *uploadFixture) initSession(t *testing.T, totalChunks int, chunks [][]byte) string {
	var total int64
	for _, chunk := range chunks {
		total += int64(len(chunk))
	}
	resp, err := f.svc.Init(context.Background(), dto.UploadInitRequest{
		FileName:    "Heat.1995.mkv",
		TotalSize:   total,
		TotalChunks: totalChunks,
	}, "user-1")
	require.NoError(t, err)
	return resp.SessionID
}

func (f *uploadFixture) ingest(t *testing.T, sessionID string, index int, payload []byte) *dto.ChunkProgress {
	progress, err := f.svc.Ingest(context.Background(), sessionID, index, bytes.NewReader(payload), "user-1")
	require.NoError(t, err)
	return progress
}

var testChunks = [][]byte{
	[]byte("first chunk of the movie "),
	[]byte("second chunk of the movie "),
	[]byte("third chunk of the movie"),
}

func TestUploadRoundTrip(t *testing.T) {
	f := newUploadFixture(t)
	ctx := context.Background()

	id := f.initSession(t, 3, testChunks)
	for i, chunk := range testChunks {
		progress := f.ingest(t, id, i, chunk)
		assert.Equal(t, i+1, progress.ChunksReceived)
	}

	record, err := f.svc.Complete(ctx, id, dto.CompleteRequest{Title: "Heat"}, "user-1")
	require.NoError(t, err)

	assert.Equal(t, "Heat", record.Title)
	assert.Equal(t, constant.Quality1080p, record.Resolution)
	assert.Equal(t, "user-1", record.OwnerID)

	want := bytes.Join(testChunks, nil)
	got, err := os.ReadFile(record.StoragePath)
	require.NoError(t, err)
	assert.Equal(t, want, got)

	sum := sha256.Sum256(want)
	assert.Equal(t, hex.EncodeToString(sum[:]), record.ContentHash)
	assert.Equal(t, int64(len(want)), record.SizeBytes)

	// Session and chunks are gone; transcode request was published.
	_, err = f.sessions.Get(ctx, id)
	assert.ErrorIs(t, err, session.ErrNotFound)
	entries, err := os.ReadDir(f.cfg.Storage.ChunkDir)
	require.NoError(t, err)
	assert.Empty(t, entries)
	require.Len(t, f.transcoder.messages, 1)
	assert.Equal(t, record.ID, f.transcoder.messages[0].MediaID)
}

func TestOutOfOrderDeliveryProducesIdenticalFile(t *testing.T) {
	ctx := context.Background()

	assemble := func(order []int) []byte {
		f := newUploadFixture(t)
		id := f.initSession(t, 3, testChunks)
		for _, idx := range order {
			f.ingest(t, id, idx, testChunks[idx])
		}
		record, err := f.svc.Complete(ctx, id, dto.CompleteRequest{}, "user-1")
		require.NoError(t, err)
		data, err := os.ReadFile(record.StoragePath)
		require.NoError(t, err)
		return data
	}

	assert.Equal(t, assemble([]int{0, 1, 2}), assemble([]int{2, 0, 1}))
}

func TestRepeatedChunkDeliveryIsIdempotent(t *testing.T) {
	f := newUploadFixture(t)

	id := f.initSession(t, 3, testChunks)
	first := f.ingest(t, id, 1, testChunks[1])
	second := f.ingest(t, id, 1, testChunks[1])

	assert.Equal(t, 1, first.ChunksReceived)
	assert.Equal(t, 1, second.ChunksReceived)
}

func TestIngestForbiddenForNonOwner(t *testing.T) {
	f := newUploadFixture(t)
	id := f.initSession(t, 3, testChunks)

	_, err := f.svc.Ingest(context.Background(), id, 0, bytes.NewReader(testChunks[0]), "intruder")
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestIngestRejectsOversizedChunk(t *testing.T) {
	f := newUploadFixture(t)
	f.cfg.Storage.MaxChunkBytes = 8

	id := f.initSession(t, 3, testChunks)
	_, err := f.svc.Ingest(context.Background(), id, 0, bytes.NewReader(testChunks[0]), "user-1")
	assert.ErrorIs(t, err, ErrPayloadTooLarge)

	// The rejected payload leaves nothing behind.
	entries, readErr := os.ReadDir(f.cfg.Storage.ChunkDir)
	require.NoError(t, readErr)
	assert.Empty(t, entries)
}

func TestIngestRejectsOutOfRangeIndex(t *testing.T) {
	f := newUploadFixture(t)
	id := f.initSession(t, 3, testChunks)

	_, err := f.svc.Ingest(context.Background(), id, 3, bytes.NewReader(testChunks[0]), "user-1")
	assert.ErrorIs(t, err, session.ErrChunkOutOfRange)
}

func TestCompleteReportsExactMissingChunks(t *testing.T) {
	f := newUploadFixture(t)
	id := f.initSession(t, 3, testChunks)
	f.ingest(t, id, 0, testChunks[0])
	f.ingest(t, id, 1, testChunks[1])

	_, err := f.svc.Complete(context.Background(), id, dto.CompleteRequest{}, "user-1")
	var incomplete *IncompleteUploadError
	require.ErrorAs(t, err, &incomplete)
	assert.Equal(t, []int{2}, incomplete.Missing)
}

func TestSecondCompleteFailsWithSessionNotFound(t *testing.T) {
	f := newUploadFixture(t)
	ctx := context.Background()
	id := f.initSession(t, 3, testChunks)
	for i, chunk := range testChunks {
		f.ingest(t, id, i, chunk)
	}

	_, err := f.svc.Complete(ctx, id, dto.CompleteRequest{}, "user-1")
	require.NoError(t, err)

	_, err = f.svc.Complete(ctx, id, dto.CompleteRequest{}, "user-1")
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestCompleteDetectsMissingChunkFile(t *testing.T) {
	f := newUploadFixture(t)
	ctx := context.Background()
	id := f.initSession(t, 3, testChunks)
	for i, chunk := range testChunks {
		f.ingest(t, id, i, chunk)
	}

	// Simulate a prior partial failure: metadata says chunk 1 exists but
	// the file is gone.
	require.NoError(t, os.Remove(filepath.Join(f.cfg.Storage.ChunkDir, id+"_00001.part")))

	_, err := f.svc.Complete(ctx, id, dto.CompleteRequest{}, "user-1")
	assert.ErrorIs(t, err, ErrChunkMissing)

	// No truncated output was left in the media directory.
	entries, readErr := os.ReadDir(f.cfg.Storage.MediaDir)
	require.NoError(t, readErr)
	assert.Empty(t, entries)
}

func TestCancelRemovesChunksAndSession(t *testing.T) {
	f := newUploadFixture(t)
	ctx := context.Background()
	id := f.initSession(t, 3, testChunks)
	f.ingest(t, id, 0, testChunks[0])
	f.ingest(t, id, 2, testChunks[2])

	require.NoError(t, f.svc.Cancel(ctx, id, "user-1"))

	_, err := f.sessions.Get(ctx, id)
	assert.ErrorIs(t, err, session.ErrNotFound)
	entries, readErr := os.ReadDir(f.cfg.Storage.ChunkDir)
	require.NoError(t, readErr)
	assert.Empty(t, entries)
}

func TestStatusReportsProgress(t *testing.T) {
	f := newUploadFixture(t)
	id := f.initSession(t, 3, testChunks)
	f.ingest(t, id, 2, testChunks[2])

	status, err := f.svc.Status(context.Background(), id, "user-1")
	require.NoError(t, err)
	assert.Equal(t, 1, status.ChunksReceived)
	assert.Equal(t, []int{0, 1}, status.MissingChunks)
	assert.False(t, status.Complete)
}

func TestInitValidation(t *testing.T) {
	f := newUploadFixture(t)
	ctx := context.Background()

	_, err := f.svc.Init(ctx, dto.UploadInitRequest{TotalSize: 1, TotalChunks: 1}, "user-1")
	assert.Error(t, err)

	_, err = f.svc.Init(ctx, dto.UploadInitRequest{FileName: "a.mp4", TotalSize: 0, TotalChunks: 1}, "user-1")
	assert.Error(t, err)

	_, err = f.svc.Init(ctx, dto.UploadInitRequest{FileName: "a.mp4", TotalSize: 1, TotalChunks: maxChunksPerUpload + 1}, "user-1")
	assert.Error(t, err)
}

func TestStoredFileNameCarriesUniqueID(t *testing.T) {
	f := newUploadFixture(t)
	ctx := context.Background()
	id := f.initSession(t, 3, testChunks)
	for i, chunk := range testChunks {
		f.ingest(t, id, i, chunk)
	}

	record, err := f.svc.Complete(ctx, id, dto.CompleteRequest{}, "user-1")
	require.NoError(t, err)
	assert.NotEqual(t, filepath.Base(record.StoragePath), "Heat.1995.mkv")
	assert.Regexp(t, `Heat\.1995_\d+-[0-9a-f]{8}\.mkv$`, record.StoragePath)
}
