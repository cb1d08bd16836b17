package media

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/janhq/gallery-api/internal/domain/cachekey"
	domain "github.com/janhq/gallery-api/internal/domain/media"
	"github.com/janhq/gallery-api/internal/infrastructure/database/entities"
)

func TestMediaMappingKeepsAssetsAndAlbum(t *testing.T) {
	albumID := "alb_1"
	item := domain.MediaItem{
		ID:        "med_1",
		OwnerID:   "usr_1",
		Kind:      domain.KindImage,
		Tags:      []string{"sea", "sun"},
		AlbumID:   &albumID,
		Ordinal:   3,
		Assets:    domain.Assets{Small: "s", Medium: "m", Large: "l"},
		Status:    domain.StatusActive,
		CreatedAt: time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC),
	}

	back := mapMedia(mediaEntity(item))
	assert.Equal(t, item.Assets, back.Assets)
	assert.Equal(t, item.Tags, back.Tags)
	assert.Equal(t, &albumID, back.AlbumID)
	assert.Equal(t, 3, back.Ordinal)
	assert.Equal(t, item.CreatedAt, back.CreatedAt)
}

func TestMapMediaNeverReturnsNilTags(t *testing.T) {
	assert.Equal(t, []string{}, mapMedia(entities.MediaItem{ID: "med_1"}).Tags)
}

func TestFeedOrder(t *testing.T) {
	assert.Equal(t, "created_at DESC, id DESC", feedOrder(cachekey.SortLatest))
	assert.Equal(t, "created_at ASC, id ASC", feedOrder(cachekey.SortOldest))
	assert.Equal(t, "like_count DESC, created_at DESC, id DESC", feedOrder(cachekey.SortPopular))
	assert.Equal(t, "created_at DESC, id DESC", feedOrder(""))
}

func TestEscapeLike(t *testing.T) {
	assert.Equal(t, `100\% real\_deal \\o/`, escapeLike(`100% real_deal \o/`))
}

func TestPatchColumns(t *testing.T) {
	title := "  Sunset "
	assert.Equal(t, map[string]any{"title": "Sunset"}, patchColumns(domain.Patch{Title: &title}))
	assert.Empty(t, patchColumns(domain.Patch{}))
}
