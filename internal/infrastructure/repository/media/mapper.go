package media

import (
	"github.com/lib/pq"

	domain "github.com/janhq/gallery-api/internal/domain/media"
	"github.com/janhq/gallery-api/internal/infrastructure/database/entities"
)

func mapMedia(entity entities.MediaItem) domain.MediaItem {
	tags := []string(entity.Tags)
	if tags == nil {
		tags = []string{}
	}
	return domain.MediaItem{
		ID:          entity.ID,
		OwnerID:     entity.OwnerID,
		Kind:        domain.Kind(entity.Kind),
		MimeType:    entity.MimeType,
		Bytes:       entity.Bytes,
		Width:       entity.Width,
		Height:      entity.Height,
		Title:       entity.Title,
		Description: entity.Description,
		Tags:        tags,
		AlbumID:     entity.AlbumID,
		Ordinal:     entity.Ordinal,
		Assets: domain.Assets{
			Small:    entity.SmallKey,
			Medium:   entity.MediumKey,
			Large:    entity.LargeKey,
			Preview:  entity.PreviewKey,
			Playback: entity.PlaybackKey,
		},
		Status:    domain.Status(entity.Status),
		LikeCount: entity.LikeCount,
		CreatedAt: entity.CreatedAt,
		UpdatedAt: entity.UpdatedAt,
	}
}

func mediaEntity(item domain.MediaItem) entities.MediaItem {
	return entities.MediaItem{
		ID:          item.ID,
		OwnerID:     item.OwnerID,
		AlbumID:     item.AlbumID,
		Ordinal:     item.Ordinal,
		Kind:        string(item.Kind),
		MimeType:    item.MimeType,
		Bytes:       item.Bytes,
		Width:       item.Width,
		Height:      item.Height,
		Title:       item.Title,
		Description: item.Description,
		Tags:        pq.StringArray(item.Tags),
		SmallKey:    item.Assets.Small,
		MediumKey:   item.Assets.Medium,
		LargeKey:    item.Assets.Large,
		PreviewKey:  item.Assets.Preview,
		PlaybackKey: item.Assets.Playback,
		Status:      string(item.Status),
		LikeCount:   item.LikeCount,
		CreatedAt:   item.CreatedAt,
		UpdatedAt:   item.UpdatedAt,
	}
}

func mapAlbum(entity entities.Album) domain.Album {
	return domain.Album{
		ID:           entity.ID,
		OwnerID:      entity.OwnerID,
		Title:        entity.Title,
		Description:  entity.Description,
		Status:       domain.Status(entity.Status),
		ThumbnailKey: entity.ThumbnailKey,
		LikeCount:    entity.LikeCount,
		CreatedAt:    entity.CreatedAt,
		UpdatedAt:    entity.UpdatedAt,
	}
}

func albumEntity(album domain.Album) entities.Album {
	return entities.Album{
		ID:           album.ID,
		OwnerID:      album.OwnerID,
		Title:        album.Title,
		Description:  album.Description,
		ThumbnailKey: album.ThumbnailKey,
		Status:       string(album.Status),
		LikeCount:    album.LikeCount,
		CreatedAt:    album.CreatedAt,
		UpdatedAt:    album.UpdatedAt,
	}
}
