package service

import (
	"context"
	"fmt"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"media-library/config"
	"media-library/constant"
	"media-library/dto"
	"media-library/repository"
	"os"
	"path/filepath"
)

// PurgeService hard-deletes a media item. Deletion order is fixed:
// variants, then thumbnail, then original file, then catalog row. A crash
// mid-purge never leaves a catalog row pointing at vanished derived data
// without also being itself removable. The structured result makes every
// partial failure observable and the operation retryable.
type PurgeService interface {
	Purge(ctx context.Context, mediaID uuid.UUID, callerID string, role constant.Role) (*dto.PurgeResult, error)
}

type purgeService struct {
	catalog repository.Catalog
	cfg     *config.Config
}

func NewPurgeService(catalog repository.Catalog, cfg *config.Config) PurgeService {
	return &purgeService{catalog: catalog, cfg: cfg}
}

func (p *purgeService) Purge(ctx context.Context, mediaID uuid.UUID, callerID string, role constant.Role) (*dto.PurgeResult, error) {
	record, err := p.catalog.FindMediaById(ctx, mediaID)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrFileNotFound, mediaID)
	}
	if record.OwnerID != callerID && role != constant.RoleAdmin {
		return nil, fmt.Errorf("%w: media %s", ErrForbidden, mediaID)
	}

	result := &dto.PurgeResult{}

	variants, err := p.catalog.VariantsByOriginal(ctx, record.StoragePath)
	if err != nil {
		return result, err
	}
	for _, variant := range variants {
		if err := os.Remove(variant.TranscodedPath); err != nil && !os.IsNotExist(err) {
			return result, err
		}
		if err := p.catalog.DeleteVariant(ctx, variant.ID); err != nil {
			return result, err
		}
		result.VariantsRemoved++
	}

	if p.cfg.Storage.ThumbnailDir != "" {
		thumbnail := filepath.Join(p.cfg.Storage.ThumbnailDir, fmt.Sprintf("%s.jpg", record.ID))
		if err := os.Remove(thumbnail); err == nil {
			result.ThumbnailRemoved = true
		} else if !os.IsNotExist(err) {
			return result, err
		}
	}

	if err := os.Remove(record.StoragePath); err == nil {
		result.OriginalRemoved = true
	} else if !os.IsNotExist(err) {
		return result, err
	}

	if err := p.catalog.DeleteMedia(ctx, record.ID); err != nil {
		return result, err
	}
	result.RecordRemoved = true

	zerolog.Ctx(ctx).Info().
		Str("media_id", mediaID.String()).
		Int("variants_removed", result.VariantsRemoved).
		Msg("media purged")
	return result, nil
}
