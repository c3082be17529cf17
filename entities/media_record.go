package entities

import (
	"github.com/google/uuid"
	"gorm.io/gorm"
	"media-library/constant"
	"time"
)

type MediaRecord struct {
	ID               uuid.UUID         `json:"id" gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	Title            string            `json:"title" gorm:"type:varchar(255);not null"`
	OriginalFileName string            `json:"original_file_name" gorm:"type:varchar(500);not null"`
	StoragePath      string            `json:"storage_path" gorm:"type:varchar(1000);not null"`
	SizeBytes        int64             `json:"size_bytes" gorm:"type:bigint;not null"`
	ContentHash      string            `json:"content_hash" gorm:"type:varchar(64);index:idx_media_records_hash"`
	Resolution       constant.Quality  `json:"resolution" gorm:"type:varchar(10)"`
	DurationSeconds  int               `json:"duration_seconds" gorm:"type:integer"`
	Category         constant.Category `json:"category" gorm:"type:varchar(10);not null;default:'movie'"`
	Season           *int              `json:"season" gorm:"type:integer"`
	Episode          *int              `json:"episode" gorm:"type:integer"`
	Published        bool              `json:"published" gorm:"not null;default:false"`
	OwnerID          string            `json:"owner_id" gorm:"type:varchar(64);not null;index:idx_media_records_owner"`
	CreatedAt        time.Time         `json:"created_at"`
	UpdatedAt        time.Time         `json:"updated_at"`
	DeletedAt        gorm.DeletedAt    `json:"-" gorm:"index"`
}

func (MediaRecord) TableName() string {
	return "media_records"
}
