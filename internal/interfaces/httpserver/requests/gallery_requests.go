package requests

import (
	"github.com/janhq/gallery-api/internal/domain/cachekey"
	domain "github.com/janhq/gallery-api/internal/domain/media"
)

// FeedRequest binds the feed query string.
type FeedRequest struct {
	Sort string `form:"sort"`
	Type string `form:"type"`
	Tag  string `form:"tag"`
	Q    string `form:"q"`
	Page int    `form:"page" binding:"omitempty,min=1"`
	Mine bool   `form:"mine"`
}

// Query converts the request into a feed query.
func (r FeedRequest) Query() cachekey.FeedQuery {
	return cachekey.FeedQuery{
		Sort:    cachekey.Sort(r.Sort),
		Type:    cachekey.ContentType(r.Type),
		Tag:     r.Tag,
		Keyword: r.Q,
		Page:    r.Page,
		Mine:    r.Mine,
	}
}

// PatchRequest edits a media item or album. Absent fields are left unchanged.
type PatchRequest struct {
	Title       *string `json:"title"`
	Description *string `json:"description"`
}

func (r PatchRequest) Patch() domain.Patch {
	return domain.Patch{Title: r.Title, Description: r.Description}
}

// URLRequest selects the variant of a presigned URL.
type URLRequest struct {
	Variant string `form:"variant" binding:"omitempty,oneof=small medium large preview playback"`
}

// UploadForm binds the non-file fields of a multipart upload.
type UploadForm struct {
	Metadata         string `form:"metadata"`
	Grouped          bool   `form:"grouped"`
	AlbumTitle       string `form:"album_title"`
	AlbumDescription string `form:"album_description"`
	AlbumID          string `form:"album_id"`
}
