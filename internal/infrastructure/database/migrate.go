package database

import (
	"context"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/janhq/gallery-api/internal/infrastructure/database/entities"
)

// AutoMigrate applies database schema changes.
func AutoMigrate(ctx context.Context, db *gorm.DB, log zerolog.Logger) error {
	if err := db.WithContext(ctx).AutoMigrate(&entities.Album{}, &entities.MediaItem{}, &entities.Like{}); err != nil {
		return err
	}
	log.Info().Msg("applied gallery migrations")
	return nil
}
