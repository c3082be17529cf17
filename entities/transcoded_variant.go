package entities

import (
	"github.com/google/uuid"
	"media-library/constant"
	"time"
)

// TranscodedVariant rows are written by the external transcoding worker;
// the core only reads and prunes them.
type TranscodedVariant struct {
	ID             uuid.UUID        `json:"id" gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	OriginalPath   string           `json:"original_path" gorm:"type:varchar(1000);not null;index:idx_variants_original"`
	Quality        constant.Quality `json:"quality" gorm:"type:varchar(10);not null"`
	TranscodedPath string           `json:"transcoded_path" gorm:"type:varchar(1000);not null"`
	OriginalSize   int64            `json:"original_size" gorm:"type:bigint"`
	TranscodedSize int64            `json:"transcoded_size" gorm:"type:bigint"`
	CreatedAt      time.Time        `json:"created_at"`
}

func (TranscodedVariant) TableName() string {
	return "transcoded_variants"
}
