package repository

import (
	"context"
	"database/sql"
	"fmt"
	"github.com/google/uuid"
	"media-library/constant"
	"media-library/entities"
	"sync"
	"time"
)

// MemoryCatalog backs the Catalog interface with process memory. Used by
// tests and usable as a throwaway catalog for local experimentation.
type MemoryCatalog struct {
	mu       sync.Mutex
	media    map[uuid.UUID]*entities.MediaRecord
	variants map[uuid.UUID]*entities.TranscodedVariant
}

func NewMemoryCatalog() *MemoryCatalog {
	return &MemoryCatalog{
		media:    make(map[uuid.UUID]*entities.MediaRecord),
		variants: make(map[uuid.UUID]*entities.TranscodedVariant),
	}
}

func (m *MemoryCatalog) Transaction(ctx context.Context, callback func(ctx context.Context) error, opts ...*sql.TxOptions) error {
	return callback(ctx)
}

func (m *MemoryCatalog) CreateMedia(ctx context.Context, record *entities.MediaRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if record.ID == uuid.Nil {
		record.ID = uuid.New()
	}
	now := time.Now()
	record.CreatedAt = now
	record.UpdatedAt = now
	copied := *record
	m.media[record.ID] = &copied
	return nil
}

func (m *MemoryCatalog) FindMediaById(ctx context.Context, id uuid.UUID) (*entities.MediaRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	record, ok := m.media[id]
	if !ok {
		return nil, fmt.Errorf("media record %s not found", id)
	}
	copied := *record
	return &copied, nil
}

func (m *MemoryCatalog) ListMedia(ctx context.Context) ([]*entities.MediaRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	records := make([]*entities.MediaRecord, 0, len(m.media))
	for _, record := range m.media {
		copied := *record
		records = append(records, &copied)
	}
	return records, nil
}

func (m *MemoryCatalog) UpdateMediaFile(ctx context.Context, id uuid.UUID, path string, size int64, hash string, resolution constant.Quality) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	record, ok := m.media[id]
	if !ok {
		return fmt.Errorf("media record %s not found", id)
	}
	record.StoragePath = path
	record.SizeBytes = size
	record.ContentHash = hash
	record.Resolution = resolution
	record.UpdatedAt = time.Now()
	return nil
}

func (m *MemoryCatalog) DeleteMedia(ctx context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.media, id)
	return nil
}

func (m *MemoryCatalog) CreateVariant(ctx context.Context, variant *entities.TranscodedVariant) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if variant.ID == uuid.Nil {
		variant.ID = uuid.New()
	}
	variant.CreatedAt = time.Now()
	copied := *variant
	m.variants[variant.ID] = &copied
	return nil
}

func (m *MemoryCatalog) ListVariants(ctx context.Context) ([]*entities.TranscodedVariant, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	variants := make([]*entities.TranscodedVariant, 0, len(m.variants))
	for _, variant := range m.variants {
		copied := *variant
		variants = append(variants, &copied)
	}
	return variants, nil
}

func (m *MemoryCatalog) VariantsByOriginal(ctx context.Context, originalPath string) ([]*entities.TranscodedVariant, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var variants []*entities.TranscodedVariant
	for _, variant := range m.variants {
		if variant.OriginalPath == originalPath {
			copied := *variant
			variants = append(variants, &copied)
		}
	}
	return variants, nil
}

func (m *MemoryCatalog) DeleteVariant(ctx context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.variants, id)
	return nil
}

func (m *MemoryCatalog) DeleteVariantsByOriginal(ctx context.Context, originalPath string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, variant := range m.variants {
		if variant.OriginalPath == originalPath {
			delete(m.variants, id)
		}
	}
	return nil
}
