package entities

import (
	"time"

	"github.com/lib/pq"
)

// MediaItem is a persisted image or video.
type MediaItem struct {
	ID          string         `gorm:"type:varchar(40);primaryKey"`
	OwnerID     string         `gorm:"type:varchar(64);not null;index:idx_media_owner_created,priority:1"`
	BatchID     string         `gorm:"type:varchar(40);index"`
	AlbumID     *string        `gorm:"type:varchar(40);index:idx_media_album_ordinal,priority:1"`
	Ordinal     int            `gorm:"not null;default:0;index:idx_media_album_ordinal,priority:2"`
	Kind        string         `gorm:"type:varchar(16);not null"`
	MimeType    string         `gorm:"type:varchar(64);not null"`
	Bytes       int64          `gorm:"not null"`
	Width       int            `gorm:"not null"`
	Height      int            `gorm:"not null"`
	Title       string         `gorm:"type:varchar(200)"`
	Description string         `gorm:"type:text"`
	Tags        pq.StringArray `gorm:"type:text[]"`
	SmallKey    string         `gorm:"type:varchar(255)"`
	MediumKey   string         `gorm:"type:varchar(255)"`
	LargeKey    string         `gorm:"type:varchar(255)"`
	PreviewKey  string         `gorm:"type:varchar(255)"`
	PlaybackKey string         `gorm:"type:varchar(255)"`
	Status      string         `gorm:"type:varchar(16);not null;default:active;index"`
	LikeCount   int64          `gorm:"not null;default:0"`
	CreatedAt   time.Time      `gorm:"autoCreateTime;index:idx_media_owner_created,priority:2"`
	UpdatedAt   time.Time      `gorm:"autoUpdateTime"`
}

func (MediaItem) TableName() string {
	return "media_items"
}
