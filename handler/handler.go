package handler

import (
	"context"
	"encoding/json"
	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"
	"media-library/dto"
	"media-library/entities"
	"media-library/repository"
	"media-library/service"
)

type ServiceDependencies struct {
	Upload    service.UploadService
	Reconcile service.ReconcileService
	Resolve   service.ResolveService
	Purge     service.PurgeService
	Catalog   repository.Catalog
}

// VariantRegisteredHandler records a finished variant announced by the
// external transcoding worker. The core never drives transcoding; this is
// its only write path into the variant table.
func VariantRegisteredHandler(ctx context.Context, msg amqp.Delivery, deps ServiceDependencies) error {
	var variantMsg dto.VariantMessage
	if err := json.Unmarshal(msg.Body, &variantMsg); err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Msg("failed to unmarshal variant message")
		return err
	}

	variant := &entities.TranscodedVariant{
		ID:             uuid.New(),
		OriginalPath:   variantMsg.OriginalPath,
		Quality:        variantMsg.Quality,
		TranscodedPath: variantMsg.TranscodedPath,
		OriginalSize:   variantMsg.OriginalSize,
		TranscodedSize: variantMsg.TranscodedSize,
	}
	if err := deps.Catalog.CreateVariant(ctx, variant); err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Str("path", variantMsg.TranscodedPath).Msg("failed to register variant")
		return err
	}

	zerolog.Ctx(ctx).Info().
		Str("original", variantMsg.OriginalPath).
		Str("quality", variantMsg.Quality.String()).
		Msg("variant registered")
	return nil
}
