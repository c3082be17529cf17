package repository

import (
	"context"
	"database/sql"
	"github.com/google/uuid"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
	"media-library/constant"
	"media-library/entities"
)

// Catalog is the authoritative record set describing stored media and its
// transcoded variants.
type Catalog interface {
	Transaction(ctx context.Context, callback func(ctx context.Context) error, opts ...*sql.TxOptions) error
	CreateMedia(ctx context.Context, record *entities.MediaRecord) error
	FindMediaById(ctx context.Context, id uuid.UUID) (*entities.MediaRecord, error)
	ListMedia(ctx context.Context) ([]*entities.MediaRecord, error)
	UpdateMediaFile(ctx context.Context, id uuid.UUID, path string, size int64, hash string, resolution constant.Quality) error
	DeleteMedia(ctx context.Context, id uuid.UUID) error
	CreateVariant(ctx context.Context, variant *entities.TranscodedVariant) error
	ListVariants(ctx context.Context) ([]*entities.TranscodedVariant, error)
	VariantsByOriginal(ctx context.Context, originalPath string) ([]*entities.TranscodedVariant, error)
	DeleteVariant(ctx context.Context, id uuid.UUID) error
	DeleteVariantsByOriginal(ctx context.Context, originalPath string) error
}

type repo struct {
	db *gorm.DB
}

func NewRepo(db *sql.DB) Catalog {
	gormDB, _ := gorm.Open(postgres.New(postgres.Config{
		Conn: db}),
		&gorm.Config{
			Logger: logger.Default.LogMode(logger.Warn),
		},
	)
	return &repo{
		db: gormDB,
	}
}

func (r *repo) GetDB() *gorm.DB {
	return r.db
}

func (r *repo) Transaction(ctx context.Context, callback func(ctx context.Context) error, opts ...*sql.TxOptions) error {
	return r.GetDB().Transaction(func(tx *gorm.DB) error {
		err := callback(ctx)
		if err != nil {
			return err
		}
		return nil
	}, opts...)
}

func (r *repo) CreateMedia(ctx context.Context, record *entities.MediaRecord) error {
	return r.GetDB().WithContext(ctx).Create(record).Error
}

func (r *repo) FindMediaById(ctx context.Context, id uuid.UUID) (*entities.MediaRecord, error) {
	record := &entities.MediaRecord{}
	err := r.GetDB().WithContext(ctx).First(record, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return record, nil
}

func (r *repo) ListMedia(ctx context.Context) ([]*entities.MediaRecord, error) {
	var records []*entities.MediaRecord
	err := r.GetDB().WithContext(ctx).Order("created_at ASC").Find(&records).Error
	if err != nil {
		return nil, err
	}
	return records, nil
}

func (r *repo) UpdateMediaFile(ctx context.Context, id uuid.UUID, path string, size int64, hash string, resolution constant.Quality) error {
	updates := map[string]interface{}{
		"storage_path": path,
		"size_bytes":   size,
		"content_hash": hash,
		"resolution":   resolution,
	}
	return r.GetDB().WithContext(ctx).Model(&entities.MediaRecord{}).Where("id = ?", id).Updates(updates).Error
}

func (r *repo) DeleteMedia(ctx context.Context, id uuid.UUID) error {
	return r.GetDB().WithContext(ctx).Unscoped().Delete(&entities.MediaRecord{}, "id = ?", id).Error
}

func (r *repo) CreateVariant(ctx context.Context, variant *entities.TranscodedVariant) error {
	return r.GetDB().WithContext(ctx).Create(variant).Error
}

func (r *repo) ListVariants(ctx context.Context) ([]*entities.TranscodedVariant, error) {
	var variants []*entities.TranscodedVariant
	err := r.GetDB().WithContext(ctx).Find(&variants).Error
	if err != nil {
		return nil, err
	}
	return variants, nil
}

func (r *repo) VariantsByOriginal(ctx context.Context, originalPath string) ([]*entities.TranscodedVariant, error) {
	var variants []*entities.TranscodedVariant
	err := r.GetDB().WithContext(ctx).Where("original_path = ?", originalPath).Find(&variants).Error
	if err != nil {
		return nil, err
	}
	return variants, nil
}

func (r *repo) DeleteVariant(ctx context.Context, id uuid.UUID) error {
	return r.GetDB().WithContext(ctx).Delete(&entities.TranscodedVariant{}, "id = ?", id).Error
}

func (r *repo) DeleteVariantsByOriginal(ctx context.Context, originalPath string) error {
	return r.GetDB().WithContext(ctx).Delete(&entities.TranscodedVariant{}, "original_path = ?", originalPath).Error
}
