package responses

import (
	domain "github.com/janhq/gallery-api/internal/domain/media"
)

// MediaResponse wraps a single media item.
type MediaResponse struct {
	Media *domain.MediaItem `json:"media"`
}

// AlbumResponse wraps a single album.
type AlbumResponse struct {
	Album *domain.Album `json:"album"`
}

// URLResponse carries a short-lived download URL.
type URLResponse struct {
	URL       string `json:"url"`
	ExpiresIn int64  `json:"expires_in"`
}

// LikeResponse reports the like state after a like mutation.
type LikeResponse struct {
	Liked bool `json:"liked"`
}
