package entities

import "time"

// Album groups media items uploaded together.
type Album struct {
	ID           string    `gorm:"type:varchar(40);primaryKey"`
	OwnerID      string    `gorm:"type:varchar(64);not null;index"`
	BatchID      string    `gorm:"type:varchar(40)"`
	Title        string    `gorm:"type:varchar(200);not null"`
	Description  string    `gorm:"type:text"`
	ThumbnailKey string    `gorm:"type:varchar(255)"`
	Status       string    `gorm:"type:varchar(16);not null;default:active;index"`
	LikeCount    int64     `gorm:"not null;default:0"`
	CreatedAt    time.Time `gorm:"autoCreateTime"`
	UpdatedAt    time.Time `gorm:"autoUpdateTime"`
}

func (Album) TableName() string {
	return "albums"
}

// Like records one user liking one media item or album.
type Like struct {
	ID         uint      `gorm:"primaryKey;autoIncrement"`
	TargetType string    `gorm:"type:varchar(16);not null;uniqueIndex:idx_like_target_user,priority:1"`
	TargetID   string    `gorm:"type:varchar(40);not null;uniqueIndex:idx_like_target_user,priority:2"`
	UserID     string    `gorm:"type:varchar(64);not null;uniqueIndex:idx_like_target_user,priority:3;index"`
	CreatedAt  time.Time `gorm:"autoCreateTime"`
}

func (Like) TableName() string {
	return "likes"
}
