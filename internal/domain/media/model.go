package media

import "time"

// Kind is the content type of a media item.
type Kind string

const (
	KindImage Kind = "image"
	KindVideo Kind = "video"
)

// Status is the lifecycle status of media items and albums.
type Status string

const (
	StatusActive  Status = "active"
	StatusDeleted Status = "deleted"
)

// Variant names one derived asset of a media item.
type Variant string

const (
	VariantSmall    Variant = "small"
	VariantMedium   Variant = "medium"
	VariantLarge    Variant = "large"
	VariantPreview  Variant = "preview"
	VariantPlayback Variant = "playback"
)

// Assets holds the storage keys of a media item's derived assets. Images carry
// small/medium/large, videos carry preview (optional) and playback.
type Assets struct {
	Small    string `json:"small,omitempty"`
	Medium   string `json:"medium,omitempty"`
	Large    string `json:"large,omitempty"`
	Preview  string `json:"preview,omitempty"`
	Playback string `json:"playback,omitempty"`
}

// Key returns the storage key of variant, or "".
func (a Assets) Key(v Variant) string {
	switch v {
	case VariantSmall:
		return a.Small
	case VariantMedium:
		return a.Medium
	case VariantLarge:
		return a.Large
	case VariantPreview:
		return a.Preview
	case VariantPlayback:
		return a.Playback
	default:
		return ""
	}
}

// Keys returns every distinct non-empty key.
func (a Assets) Keys() []string {
	seen := make(map[string]struct{}, 5)
	var keys []string
	for _, k := range []string{a.Small, a.Medium, a.Large, a.Preview, a.Playback} {
		if k == "" {
			continue
		}
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		keys = append(keys, k)
	}
	return keys
}

// Best returns the highest fidelity key for kind.
func (a Assets) Best(kind Kind) string {
	var order []string
	if kind == KindVideo {
		order = []string{a.Playback, a.Preview}
	} else {
		order = []string{a.Large, a.Medium, a.Small}
	}
	for _, k := range order {
		if k != "" {
			return k
		}
	}
	return ""
}

// Thumbnail returns the smallest key suitable for a preview tile.
func (a Assets) Thumbnail() string {
	for _, k := range []string{a.Small, a.Preview, a.Medium, a.Large} {
		if k != "" {
			return k
		}
	}
	return ""
}

// MediaItem is a stored image or video.
type MediaItem struct {
	ID          string    `json:"id"`
	OwnerID     string    `json:"owner_id"`
	Kind        Kind      `json:"kind"`
	MimeType    string    `json:"mime"`
	Bytes       int64     `json:"bytes"`
	Width       int       `json:"width"`
	Height      int       `json:"height"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Tags        []string  `json:"tags"`
	AlbumID     *string   `json:"album_id,omitempty"`
	Ordinal     int       `json:"ordinal"`
	Assets      Assets    `json:"assets"`
	Status      Status    `json:"status"`
	LikeCount   int64     `json:"like_count"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Album groups media items uploaded as one unit.
type Album struct {
	ID           string    `json:"id"`
	OwnerID      string    `json:"owner_id"`
	Title        string    `json:"title"`
	Description  string    `json:"description"`
	Status       Status    `json:"status"`
	ThumbnailKey string    `json:"thumbnail_key"`
	LikeCount    int64     `json:"like_count"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// FeedItem is one tile of a feed page.
type FeedItem struct {
	MediaItem
	LikedByMe bool `json:"liked_by_me"`
}

// FeedPage is a cached feed projection.
type FeedPage struct {
	Items    []FeedItem `json:"items"`
	Page     int        `json:"page"`
	PageSize int        `json:"page_size"`
	HasMore  bool       `json:"has_more"`
}

// IsEmpty reports whether the page has no items.
func (p *FeedPage) IsEmpty() bool {
	return p == nil || len(p.Items) == 0
}

// MediaDetail is a media item as seen by one viewer.
type MediaDetail struct {
	Item      MediaItem `json:"item"`
	Owner     Owner     `json:"owner"`
	LikedByMe bool      `json:"liked_by_me"`
}

// AlbumDetail is an album with its active items as seen by one viewer.
type AlbumDetail struct {
	Album     Album       `json:"album"`
	Owner     Owner       `json:"owner"`
	Items     []MediaItem `json:"items"`
	LikedByMe bool        `json:"liked_by_me"`
}

// Owner carries the owner identity embedded in detail projections. Aggregates
// such as media counts live on Profile only, so owner activity never stales a
// cached detail.
type Owner struct {
	ID string `json:"id"`
}

// Profile aggregates an owner's public activity.
type Profile struct {
	OwnerID     string      `json:"owner_id"`
	MediaCount  int64       `json:"media_count"`
	AlbumCount  int64       `json:"album_count"`
	LikesGiven  int64       `json:"likes_given"`
	LikesEarned int64       `json:"likes_earned"`
	Recent      []MediaItem `json:"recent"`
}

// IsEmpty reports whether the owner has no activity at all.
func (p *Profile) IsEmpty() bool {
	return p == nil || (p.MediaCount == 0 && p.AlbumCount == 0 && p.LikesGiven == 0)
}

// Patch carries the editable fields of a media item or album.
type Patch struct {
	Title       *string `json:"title"`
	Description *string `json:"description"`
}

// Empty reports whether the patch changes nothing.
func (p Patch) Empty() bool {
	return p.Title == nil && p.Description == nil
}
