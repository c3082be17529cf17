package service

import (
	"context"
	"fmt"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"media-library/config"
	"media-library/constant"
	"media-library/dto"
	"media-library/entities"
	"media-library/pkg/fingerprint"
	"media-library/repository"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// ResolveService picks the physical file to serve for a catalog entry,
// honoring an optional policy ceiling on quality. It must never fail solely
// because of incomplete indexing; the filesystem fallback is the safety net.
type ResolveService interface {
	Resolve(ctx context.Context, mediaID uuid.UUID, ceiling constant.Quality) (*dto.StreamSource, error)
}

type resolveService struct {
	catalog repository.Catalog
	cfg     *config.Config
}

func NewResolveService(catalog repository.Catalog, cfg *config.Config) ResolveService {
	return &resolveService{catalog: catalog, cfg: cfg}
}

type candidate struct {
	path    string
	size    int64
	quality constant.Quality
}

func (r *resolveService) Resolve(ctx context.Context, mediaID uuid.UUID, ceiling constant.Quality) (*dto.StreamSource, error) {
	record, err := r.catalog.FindMediaById(ctx, mediaID)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrFileNotFound, mediaID)
	}

	variants, err := r.catalog.VariantsByOriginal(ctx, record.StoragePath)
	if err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Str("media_id", mediaID.String()).Msg("variant lookup failed, using filesystem fallback")
	}

	candidates := r.validVariants(variants)
	if len(candidates) == 0 {
		// Variants created before/outside normal registration are found by
		// the unique id embedded in the stored filename.
		candidates = r.filesystemCandidates(record)
	}

	if len(candidates) == 0 {
		return r.original(record, ceiling)
	}

	best := candidates[0]
	if ceiling != "" && !best.quality.AtMost(ceiling) {
		within := atMost(candidates, ceiling)
		if len(within) == 0 {
			within = atMost(r.filesystemCandidates(record), ceiling)
		}
		if len(within) == 0 {
			if source, err := r.original(record, ceiling); err == nil {
				return source, nil
			}
			return nil, fmt.Errorf("%w: ceiling %s", ErrQualityUnavailable, ceiling)
		}
		best = within[0]
	}

	return &dto.StreamSource{
		Path:      best.path,
		SizeBytes: best.size,
		Quality:   best.quality,
		IsVariant: true,
	}, nil
}

// validVariants orders registered variants highest quality first and drops
// stale ones: a variant whose file is gone or suspiciously small is not
// served (lazy invalidation, no eager sweep).
func (r *resolveService) validVariants(variants []*entities.TranscodedVariant) []candidate {
	var candidates []candidate
	for _, variant := range variants {
		info, err := os.Stat(variant.TranscodedPath)
		if err != nil || info.Size() < r.minVariantBytes() {
			continue
		}
		candidates = append(candidates, candidate{
			path:    variant.TranscodedPath,
			size:    info.Size(),
			quality: variant.Quality,
		})
	}
	sortByQuality(candidates)
	return candidates
}

func (r *resolveService) filesystemCandidates(record *entities.MediaRecord) []candidate {
	uniqueID := fingerprint.UniqueID(filepath.Base(record.StoragePath))
	if uniqueID == "" || r.cfg.Storage.TranscodedDir == "" {
		return nil
	}

	entries, err := os.ReadDir(r.cfg.Storage.TranscodedDir)
	if err != nil {
		return nil
	}

	var candidates []candidate
	for _, entry := range entries {
		if entry.IsDir() || !strings.Contains(entry.Name(), uniqueID) {
			continue
		}
		path := filepath.Join(r.cfg.Storage.TranscodedDir, entry.Name())
		if path == record.StoragePath {
			continue
		}
		quality := qualityFromName(entry.Name())
		if quality == constant.QualityUnknown {
			continue
		}
		info, err := entry.Info()
		if err != nil || info.Size() < r.minVariantBytes() {
			continue
		}
		candidates = append(candidates, candidate{
			path:    path,
			size:    info.Size(),
			quality: quality,
		})
	}
	sortByQuality(candidates)
	return candidates
}

func (r *resolveService) original(record *entities.MediaRecord, ceiling constant.Quality) (*dto.StreamSource, error) {
	if ceiling != "" && record.Resolution != constant.QualityUnknown && record.Resolution != "" && !record.Resolution.AtMost(ceiling) {
		return nil, fmt.Errorf("%w: original is %s, ceiling %s", ErrQualityUnavailable, record.Resolution, ceiling)
	}
	info, err := os.Stat(record.StoragePath)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrFileNotFound, record.StoragePath)
	}
	return &dto.StreamSource{
		Path:      record.StoragePath,
		SizeBytes: info.Size(),
		Quality:   record.Resolution,
		IsVariant: false,
	}, nil
}

func (r *resolveService) minVariantBytes() int64 {
	if r.cfg.Storage.MinVariantBytes > 0 {
		return r.cfg.Storage.MinVariantBytes
	}
	return 1024
}

func atMost(candidates []candidate, ceiling constant.Quality) []candidate {
	var within []candidate
	for _, c := range candidates {
		if c.quality.AtMost(ceiling) {
			within = append(within, c)
		}
	}
	return within
}

func sortByQuality(candidates []candidate) {
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].quality.Rank() < candidates[j].quality.Rank()
	})
}

func qualityFromName(name string) constant.Quality {
	lower := strings.ToLower(name)
	for _, quality := range constant.QualityLadder {
		if strings.Contains(lower, quality.String()) {
			return quality
		}
	}
	return constant.QualityUnknown
}
