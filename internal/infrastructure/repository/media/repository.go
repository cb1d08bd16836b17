package media

import (
	"context"
	"errors"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/janhq/gallery-api/internal/domain/cachekey"
	domain "github.com/janhq/gallery-api/internal/domain/media"
	"github.com/janhq/gallery-api/internal/domain/upload"
	"github.com/janhq/gallery-api/internal/infrastructure/database/entities"
	"github.com/janhq/gallery-api/internal/utils/platformerrors"
)

const recentLimit = 12

// Repository handles gallery persistence.
type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) ListFeed(ctx context.Context, q cachekey.FeedQuery, viewerID string, limit, offset int) ([]domain.FeedItem, error) {
	tx := r.db.WithContext(ctx).Model(&entities.MediaItem{}).Where("status = ?", string(domain.StatusActive))
	tx = applyFeedFilters(tx, q, viewerID)

	var rows []entities.MediaItem
	if err := tx.Order(feedOrder(q.Sort)).Limit(limit).Offset(offset).Find(&rows).Error; err != nil {
		return nil, dbError(ctx, "failed to list feed", err, "3f1a2b4c-5d6e-4f70-8a91-b2c3d4e5f607")
	}

	liked, err := r.likedSet(ctx, domain.LikeTargetMedia, viewerID, mediaIDs(rows))
	if err != nil {
		return nil, err
	}
	items := make([]domain.FeedItem, 0, len(rows))
	for _, row := range rows {
		_, ok := liked[row.ID]
		items = append(items, domain.FeedItem{MediaItem: mapMedia(row), LikedByMe: ok})
	}
	return items, nil
}

func applyFeedFilters(tx *gorm.DB, q cachekey.FeedQuery, viewerID string) *gorm.DB {
	if q.Mine {
		tx = tx.Where("owner_id = ?", viewerID)
	}
	switch q.Type {
	case cachekey.TypeImage:
		tx = tx.Where("kind = ?", string(domain.KindImage))
	case cachekey.TypeVideo:
		tx = tx.Where("kind = ?", string(domain.KindVideo))
	}
	if q.Tag != "" {
		tx = tx.Where("? = ANY(tags)", q.Tag)
	}
	if q.Keyword != "" {
		pattern := "%" + escapeLike(q.Keyword) + "%"
		tx = tx.Where("(title ILIKE ? OR description ILIKE ?)", pattern, pattern)
	}
	return tx
}

func feedOrder(sort cachekey.Sort) string {
	switch sort {
	case cachekey.SortOldest:
		return "created_at ASC, id ASC"
	case cachekey.SortPopular:
		return "like_count DESC, created_at DESC, id DESC"
	default:
		return "created_at DESC, id DESC"
	}
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

func (r *Repository) GetMediaDetail(ctx context.Context, id, viewerID string) (*domain.MediaDetail, error) {
	item, err := r.GetMedia(ctx, id)
	if err != nil || item == nil || item.Status != domain.StatusActive {
		return nil, err
	}
	liked, err := r.likedSet(ctx, domain.LikeTargetMedia, viewerID, []string{id})
	if err != nil {
		return nil, err
	}
	_, ok := liked[id]
	return &domain.MediaDetail{Item: *item, Owner: domain.Owner{ID: item.OwnerID}, LikedByMe: ok}, nil
}

func (r *Repository) GetAlbumDetail(ctx context.Context, id, viewerID string) (*domain.AlbumDetail, error) {
	album, err := r.GetAlbum(ctx, id)
	if err != nil || album == nil || album.Status != domain.StatusActive {
		return nil, err
	}
	items, err := r.ListActiveAlbumItems(ctx, id)
	if err != nil {
		return nil, err
	}
	liked, err := r.likedSet(ctx, domain.LikeTargetAlbum, viewerID, []string{id})
	if err != nil {
		return nil, err
	}
	_, ok := liked[id]
	return &domain.AlbumDetail{Album: *album, Owner: domain.Owner{ID: album.OwnerID}, Items: items, LikedByMe: ok}, nil
}

func (r *Repository) GetProfile(ctx context.Context, ownerID string) (*domain.Profile, error) {
	db := r.db.WithContext(ctx)
	profile := &domain.Profile{OwnerID: ownerID}

	if err := db.Model(&entities.MediaItem{}).
		Where("owner_id = ? AND status = ?", ownerID, string(domain.StatusActive)).
		Count(&profile.MediaCount).Error; err != nil {
		return nil, dbError(ctx, "failed to count media", err, "6a7b8c9d-0e1f-4a2b-8c3d-4e5f6a7b8c9d")
	}
	if err := db.Model(&entities.Album{}).
		Where("owner_id = ? AND status = ?", ownerID, string(domain.StatusActive)).
		Count(&profile.AlbumCount).Error; err != nil {
		return nil, dbError(ctx, "failed to count albums", err, "7b8c9d0e-1f2a-4b3c-9d4e-5f6a7b8c9d0e")
	}
	if err := db.Model(&entities.Like{}).Where("user_id = ?", ownerID).Count(&profile.LikesGiven).Error; err != nil {
		return nil, dbError(ctx, "failed to count likes given", err, "8c9d0e1f-2a3b-4c4d-8e5f-6a7b8c9d0e1f")
	}

	var earned struct{ Total int64 }
	if err := db.Model(&entities.MediaItem{}).Select("COALESCE(SUM(like_count), 0) AS total").
		Where("owner_id = ? AND status = ?", ownerID, string(domain.StatusActive)).
		Scan(&earned).Error; err != nil {
		return nil, dbError(ctx, "failed to sum likes earned", err, "9d0e1f2a-3b4c-4d5e-9f6a-7b8c9d0e1f2a")
	}
	profile.LikesEarned = earned.Total

	var rows []entities.MediaItem
	if err := db.Where("owner_id = ? AND status = ?", ownerID, string(domain.StatusActive)).
		Order("created_at DESC, id DESC").Limit(recentLimit).Find(&rows).Error; err != nil {
		return nil, dbError(ctx, "failed to list recent media", err, "0e1f2a3b-4c5d-4e6f-8a7b-8c9d0e1f2a3b")
	}
	for _, row := range rows {
		profile.Recent = append(profile.Recent, mapMedia(row))
	}
	return profile, nil
}

func (r *Repository) GetMedia(ctx context.Context, id string) (*domain.MediaItem, error) {
	var entity entities.MediaItem
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&entity).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, dbError(ctx, "failed to get media by id", err, "2d3e4f5a-6b7c-4d8e-9f0a-1b2c3d4e5f6a")
	}
	item := mapMedia(entity)
	return &item, nil
}

func (r *Repository) GetAlbum(ctx context.Context, id string) (*domain.Album, error) {
	var entity entities.Album
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&entity).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, dbError(ctx, "failed to get album by id", err, "1c2d3e4f-5a6b-4c7d-8e9f-0a1b2c3d4e5f")
	}
	album := mapAlbum(entity)
	return &album, nil
}

// ListActiveAlbumItems returns the active items of an album by ordinal.
func (r *Repository) ListActiveAlbumItems(ctx context.Context, albumID string) ([]domain.MediaItem, error) {
	var rows []entities.MediaItem
	if err := r.db.WithContext(ctx).
		Where("album_id = ? AND status = ?", albumID, string(domain.StatusActive)).
		Order("ordinal ASC, created_at ASC").
		Find(&rows).Error; err != nil {
		return nil, dbError(ctx, "failed to list album items", err, "4b5c6d7e-8f9a-4b0c-9d1e-2f3a4b5c6d7e")
	}
	items := make([]domain.MediaItem, 0, len(rows))
	for _, row := range rows {
		items = append(items, mapMedia(row))
	}
	return items, nil
}

// SetLike inserts or removes a like and keeps the target's like count in step. It
// reports whether anything changed.
func (r *Repository) SetLike(ctx context.Context, target domain.LikeTarget, targetID, userID string, liked bool) (bool, error) {
	changed := false
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var res *gorm.DB
		if liked {
			res = tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&entities.Like{
				TargetType: string(target),
				TargetID:   targetID,
				UserID:     userID,
			})
		} else {
			res = tx.Where("target_type = ? AND target_id = ? AND user_id = ?", string(target), targetID, userID).
				Delete(&entities.Like{})
		}
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return nil
		}
		changed = true

		delta := gorm.Expr("like_count + 1")
		if !liked {
			delta = gorm.Expr("GREATEST(like_count - 1, 0)")
		}
		model := any(&entities.MediaItem{})
		if target == domain.LikeTargetAlbum {
			model = &entities.Album{}
		}
		return tx.Model(model).Where("id = ?", targetID).UpdateColumn("like_count", delta).Error
	})
	if err != nil {
		return false, dbError(ctx, "failed to update like", err, "5c6d7e8f-9a0b-4c1d-8e2f-3a4b5c6d7e8f")
	}
	return changed, nil
}

func (r *Repository) UpdateMedia(ctx context.Context, id string, patch domain.Patch) error {
	if err := r.db.WithContext(ctx).Model(&entities.MediaItem{}).Where("id = ?", id).Updates(patchColumns(patch)).Error; err != nil {
		return dbError(ctx, "failed to update media", err, "6d7e8f9a-0b1c-4d2e-9f3a-4b5c6d7e8f9a")
	}
	return nil
}

func (r *Repository) UpdateAlbum(ctx context.Context, id string, patch domain.Patch) error {
	if err := r.db.WithContext(ctx).Model(&entities.Album{}).Where("id = ?", id).Updates(patchColumns(patch)).Error; err != nil {
		return dbError(ctx, "failed to update album", err, "7e8f9a0b-1c2d-4e3f-8a4b-5c6d7e8f9a0b")
	}
	return nil
}

// SoftDeleteMedia marks an item deleted. When the item was its album's cover the
// cover moves to the next active item.
func (r *Repository) SoftDeleteMedia(ctx context.Context, id string) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var entity entities.MediaItem
		if err := tx.Where("id = ?", id).First(&entity).Error; err != nil {
			return err
		}
		if err := tx.Model(&entities.MediaItem{}).Where("id = ?", id).
			Update("status", string(domain.StatusDeleted)).Error; err != nil {
			return err
		}
		if entity.AlbumID == nil {
			return nil
		}
		return refreshThumbnail(tx, *entity.AlbumID)
	})
	if err != nil {
		return dbError(ctx, "failed to delete media", err, "8f9a0b1c-2d3e-4f4a-9b5c-6d7e8f9a0b1c")
	}
	return nil
}

func (r *Repository) SoftDeleteAlbum(ctx context.Context, id string) ([]string, error) {
	var ids []string
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&entities.MediaItem{}).
			Where("album_id = ? AND status = ?", id, string(domain.StatusActive)).
			Pluck("id", &ids).Error; err != nil {
			return err
		}
		if err := tx.Model(&entities.MediaItem{}).Where("album_id = ?", id).
			Update("status", string(domain.StatusDeleted)).Error; err != nil {
			return err
		}
		return tx.Model(&entities.Album{}).Where("id = ?", id).
			Update("status", string(domain.StatusDeleted)).Error
	})
	if err != nil {
		return nil, dbError(ctx, "failed to delete album", err, "9a0b1c2d-3e4f-4a5b-8c6d-7e8f9a0b1c2d")
	}
	return ids, nil
}

// CommitBatch writes an upload batch in one transaction. Appended items continue
// after the album's highest ordinal.
func (r *Repository) CommitBatch(ctx context.Context, commit *upload.Commit) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if commit.NewAlbum != nil {
			album := albumEntity(*commit.NewAlbum)
			album.BatchID = commit.BatchID
			if err := tx.Create(&album).Error; err != nil {
				return err
			}
		}

		base := 0
		if commit.AppendTo != "" {
			var next struct{ Next int }
			if err := tx.Model(&entities.MediaItem{}).Select("COALESCE(MAX(ordinal) + 1, 0) AS next").
				Where("album_id = ?", commit.AppendTo).Scan(&next).Error; err != nil {
				return err
			}
			base = next.Next
		}

		for i := range commit.Items {
			commit.Items[i].Ordinal += base
			row := mediaEntity(commit.Items[i])
			row.BatchID = commit.BatchID
			if err := tx.Create(&row).Error; err != nil {
				return err
			}
		}

		if commit.AppendTo != "" {
			return tx.Model(&entities.Album{}).
				Where("id = ? AND (thumbnail_key IS NULL OR thumbnail_key = '')", commit.AppendTo).
				Update("thumbnail_key", commit.Items[0].Assets.Thumbnail()).Error
		}
		return nil
	})
	if err != nil {
		return dbError(ctx, "failed to commit upload batch", err, "0b1c2d3e-4f5a-4b6c-9d7e-8f9a0b1c2d3e")
	}
	return nil
}

func refreshThumbnail(tx *gorm.DB, albumID string) error {
	var next entities.MediaItem
	err := tx.Where("album_id = ? AND status = ?", albumID, string(domain.StatusActive)).
		Order("ordinal ASC").First(&next).Error
	thumbnail := ""
	switch {
	case err == nil:
		thumbnail = mapMedia(next).Assets.Thumbnail()
	case !errors.Is(err, gorm.ErrRecordNotFound):
		return err
	}
	return tx.Model(&entities.Album{}).Where("id = ?", albumID).Update("thumbnail_key", thumbnail).Error
}

func (r *Repository) likedSet(ctx context.Context, target domain.LikeTarget, viewerID string, ids []string) (map[string]struct{}, error) {
	out := map[string]struct{}{}
	if strings.TrimSpace(viewerID) == "" || len(ids) == 0 {
		return out, nil
	}
	var liked []string
	if err := r.db.WithContext(ctx).Model(&entities.Like{}).
		Where("target_type = ? AND user_id = ? AND target_id IN ?", string(target), viewerID, ids).
		Pluck("target_id", &liked).Error; err != nil {
		return nil, dbError(ctx, "failed to load likes", err, "2d3e4f5a-6b7c-4d8e-9f9a-0b1c2d3e4f5a")
	}
	for _, id := range liked {
		out[id] = struct{}{}
	}
	return out, nil
}

func patchColumns(patch domain.Patch) map[string]any {
	cols := map[string]any{}
	if patch.Title != nil {
		cols["title"] = strings.TrimSpace(*patch.Title)
	}
	if patch.Description != nil {
		cols["description"] = strings.TrimSpace(*patch.Description)
	}
	return cols
}

func dbError(ctx context.Context, message string, err error, code string) error {
	return platformerrors.NewError(ctx, platformerrors.LayerRepository, platformerrors.ErrorTypeDatabaseError, message, err, code)
}

func mediaIDs(rows []entities.MediaItem) []string {
	ids := make([]string, 0, len(rows))
	for _, row := range rows {
		ids = append(ids, row.ID)
	}
	return ids
}
