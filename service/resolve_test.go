package service

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"media-library/config"
	"media-library/constant"
	"media-library/entities"
	"media-library/repository"
)

type resolveFixture struct {
	svc     ResolveService
	catalog *repository.MemoryCatalog
	cfg     *config.Config
}

func newResolveFixture(t *testing.T) *resolveFixture {
	cfg := testConfig(t)
	require.NoError(t, os.MkdirAll(cfg.Storage.MediaDir, os.ModePerm))
	require.NoError(t, os.MkdirAll(cfg.Storage.TranscodedDir, os.ModePerm))
	catalog := repository.NewMemoryCatalog()
	return &resolveFixture{
		svc:     NewResolveService(catalog, cfg),
		catalog: catalog,
		cfg:     cfg,
	}
}

const resolveUniqueID = "1700000000000-abcd1234"

func (f *resolveFixture) addOriginal(t *testing.T, resolution constant.Quality) *entities.MediaRecord {
	path := filepath.Join(f.cfg.Storage.MediaDir, "heat_"+resolveUniqueID+".mkv")
	require.NoError(t, os.WriteFile(path, []byte(strings.Repeat("o", 64)), 0o644))
	record := &entities.MediaRecord{
		Title:            "heat",
		OriginalFileName: "heat.mkv",
		StoragePath:      path,
		SizeBytes:        64,
		Resolution:       resolution,
		OwnerID:          "user-1",
	}
	require.NoError(t, f.catalog.CreateMedia(context.Background(), record))
	return record
}

// addVariant writes a variant file and optionally registers a catalog row
// for it. size controls the sanity threshold behavior.
func (f *resolveFixture) addVariant(t *testing.T, record *entities.MediaRecord, quality constant.Quality, size int, register bool) string {
	name := "heat_" + resolveUniqueID + "_" + quality.String() + ".mp4"
	path := filepath.Join(f.cfg.Storage.TranscodedDir, name)
	require.NoError(t, os.WriteFile(path, []byte(strings.Repeat("v", size)), 0o644))
	if register {
		require.NoError(t, f.catalog.CreateVariant(context.Background(), &entities.TranscodedVariant{
			OriginalPath:   record.StoragePath,
			Quality:        quality,
			TranscodedPath: path,
			OriginalSize:   record.SizeBytes,
			TranscodedSize: int64(size),
		}))
	}
	return path
}

func TestResolvePicksHighestVariantWithoutCeiling(t *testing.T) {
	f := newResolveFixture(t)
	record := f.addOriginal(t, constant.Quality1080p)
	f.addVariant(t, record, constant.Quality720p, 32, true)
	best := f.addVariant(t, record, constant.Quality1080p, 32, true)

	source, err := f.svc.Resolve(context.Background(), record.ID, "")
	require.NoError(t, err)
	assert.Equal(t, best, source.Path)
	assert.Equal(t, constant.Quality1080p, source.Quality)
	assert.True(t, source.IsVariant)
}

func TestResolveHonorsCeiling(t *testing.T) {
	f := newResolveFixture(t)
	record := f.addOriginal(t, constant.Quality1080p)
	f.addVariant(t, record, constant.Quality1080p, 32, true)
	capped := f.addVariant(t, record, constant.Quality720p, 32, true)

	source, err := f.svc.Resolve(context.Background(), record.ID, constant.Quality720p)
	require.NoError(t, err)
	assert.Equal(t, capped, source.Path)
	assert.Equal(t, constant.Quality720p, source.Quality)
}

func TestResolveFailsWhenNothingSatisfiesCeiling(t *testing.T) {
	f := newResolveFixture(t)
	record := f.addOriginal(t, constant.Quality1080p)
	f.addVariant(t, record, constant.Quality1080p, 32, true)
	f.addVariant(t, record, constant.Quality720p, 32, true)

	_, err := f.svc.Resolve(context.Background(), record.ID, constant.Quality480p)
	assert.ErrorIs(t, err, ErrQualityUnavailable)
}

func TestResolveSkipsSuspiciouslySmallVariant(t *testing.T) {
	f := newResolveFixture(t)
	record := f.addOriginal(t, constant.Quality1080p)
	// Below MinVariantBytes, likely a truncated transcode.
	f.addVariant(t, record, constant.Quality1080p, 3, true)
	fallback := f.addVariant(t, record, constant.Quality720p, 32, true)

	source, err := f.svc.Resolve(context.Background(), record.ID, "")
	require.NoError(t, err)
	assert.Equal(t, fallback, source.Path)
}

func TestResolveSkipsVariantWhoseFileIsGone(t *testing.T) {
	f := newResolveFixture(t)
	record := f.addOriginal(t, constant.Quality1080p)
	stale := f.addVariant(t, record, constant.Quality1080p, 32, true)
	require.NoError(t, os.Remove(stale))
	surviving := f.addVariant(t, record, constant.Quality480p, 32, true)

	source, err := f.svc.Resolve(context.Background(), record.ID, "")
	require.NoError(t, err)
	assert.Equal(t, surviving, source.Path)
}

func TestResolveFallsBackToFilesystemByUniqueID(t *testing.T) {
	f := newResolveFixture(t)
	record := f.addOriginal(t, constant.Quality1080p)
	// Variant exists on disk but was never registered with the catalog.
	unregistered := f.addVariant(t, record, constant.Quality480p, 32, false)

	source, err := f.svc.Resolve(context.Background(), record.ID, constant.Quality480p)
	require.NoError(t, err)
	assert.Equal(t, unregistered, source.Path)
	assert.Equal(t, constant.Quality480p, source.Quality)
	assert.True(t, source.IsVariant)
}

func TestResolveServesOriginalWhenNoVariantsExist(t *testing.T) {
	f := newResolveFixture(t)
	record := f.addOriginal(t, constant.Quality720p)

	source, err := f.svc.Resolve(context.Background(), record.ID, "")
	require.NoError(t, err)
	assert.Equal(t, record.StoragePath, source.Path)
	assert.False(t, source.IsVariant)
	assert.Equal(t, constant.Quality720p, source.Quality)
}

func TestResolveOriginalRespectsCeiling(t *testing.T) {
	f := newResolveFixture(t)
	record := f.addOriginal(t, constant.Quality1080p)

	_, err := f.svc.Resolve(context.Background(), record.ID, constant.Quality480p)
	assert.ErrorIs(t, err, ErrQualityUnavailable)
}

func TestResolveUnknownMedia(t *testing.T) {
	f := newResolveFixture(t)

	_, err := f.svc.Resolve(context.Background(), uuid.New(), "")
	assert.ErrorIs(t, err, ErrFileNotFound)
}

func TestResolveOriginalFileMissing(t *testing.T) {
	f := newResolveFixture(t)
	record := f.addOriginal(t, constant.Quality720p)
	require.NoError(t, os.Remove(record.StoragePath))

	_, err := f.svc.Resolve(context.Background(), record.ID, "")
	assert.ErrorIs(t, err, ErrFileNotFound)
}
