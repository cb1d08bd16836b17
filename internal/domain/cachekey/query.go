package cachekey

import (
	"strings"
)

// Sort orders feed results.
type Sort string

const (
	SortLatest  Sort = "LATEST"
	SortOldest  Sort = "OLDEST"
	SortPopular Sort = "POPULAR"
)

// ContentType filters feed results by media kind.
type ContentType string

const (
	TypeAll   ContentType = "ALL"
	TypeImage ContentType = "IMAGE"
	TypeVideo ContentType = "VIDEO"
)

// FeedQuery carries the feed filters. The zero value is the default public feed.
type FeedQuery struct {
	Sort    Sort
	Type    ContentType
	Tag     string
	Keyword string
	Page    int

	// Mine scopes the feed to the viewer's own uploads.
	Mine bool
}

// Normalize returns the canonical form of q. Queries that differ only by case or
// surrounding whitespace in the free-text fields normalize to the same value.
func (q FeedQuery) Normalize() FeedQuery {
	out := q
	out.Sort = Sort(strings.ToUpper(strings.TrimSpace(string(q.Sort))))
	switch out.Sort {
	case SortLatest, SortOldest, SortPopular:
	default:
		out.Sort = SortLatest
	}
	out.Type = ContentType(strings.ToUpper(strings.TrimSpace(string(q.Type))))
	switch out.Type {
	case TypeAll, TypeImage, TypeVideo:
	default:
		out.Type = TypeAll
	}
	out.Tag = strings.ToLower(strings.TrimSpace(q.Tag))
	out.Keyword = strings.ToLower(strings.Join(strings.Fields(q.Keyword), " "))
	if out.Page < 1 {
		out.Page = 1
	}
	return out
}

// Viewer identifies the requesting user. An empty ID is a guest.
type Viewer struct {
	ID string
}

// Guest is the unauthenticated viewer.
var Guest = Viewer{}

// IsGuest reports whether the viewer is unauthenticated.
func (v Viewer) IsGuest() bool {
	return strings.TrimSpace(v.ID) == ""
}
