// Package cachekey derives cache keys and invalidation patterns for cached read projections.
package cachekey

import (
	"strconv"
	"strings"
)

// Version is bumped whenever the shape of a cached projection changes.
const Version = "v1"

const (
	familyFeed    = "feed"
	familyMedia   = "media"
	familyAlbum   = "album"
	familyProfile = "profile"

	guestMarker = "guest"
)

// segmentEscaper percent-encodes the key separator and redis glob metacharacters so a
// user supplied segment can neither span two segments nor act as a wildcard.
var segmentEscaper = strings.NewReplacer(
	"%", "%25",
	":", "%3A",
	"*", "%2A",
	"?", "%3F",
	"[", "%5B",
	"]", "%5D",
	"\\", "%5C",
	" ", "%20",
)

// Builder builds keys under a fixed namespace.
type Builder struct {
	prefix string
}

// NewBuilder returns a Builder whose keys start with "<namespace>:v1".
func NewBuilder(namespace string) Builder {
	namespace = strings.Trim(strings.TrimSpace(namespace), ":")
	if namespace == "" {
		return Builder{prefix: Version}
	}
	return Builder{prefix: escape(namespace) + ":" + Version}
}

// Feed returns the key of a feed page. Own-upload feeds live under "feed:mine:u.<id>",
// every other feed under "feed:public" with a viewer suffix.
func (b Builder) Feed(q FeedQuery, viewer Viewer) string {
	q = q.Normalize()
	filters := []string{
		"sort=" + string(q.Sort),
		"type=" + string(q.Type),
		"tag=" + escape(q.Tag),
		"q=" + escape(q.Keyword),
		"page=" + strconv.Itoa(q.Page),
	}
	if q.Mine && !viewer.IsGuest() {
		return b.join(append([]string{familyFeed, "mine", "u." + escape(strings.TrimSpace(viewer.ID))}, filters...)...)
	}
	parts := append([]string{familyFeed, "public"}, filters...)
	return b.join(append(parts, "viewer", viewerSegment(viewer))...)
}

// MediaDetail returns the key of a media item detail as seen by viewer.
func (b Builder) MediaDetail(id string, viewer Viewer) string {
	return b.join(familyMedia, escape(id), "viewer", viewerSegment(viewer))
}

// MediaDetailPattern matches every viewer's copy of a media item detail.
func (b Builder) MediaDetailPattern(id string) string {
	return b.join(familyMedia, escape(id), "viewer", "*")
}

// AlbumDetail returns the key of an album detail as seen by viewer.
func (b Builder) AlbumDetail(id string, viewer Viewer) string {
	return b.join(familyAlbum, escape(id), "viewer", viewerSegment(viewer))
}

// AlbumDetailPattern matches every viewer's copy of an album detail.
func (b Builder) AlbumDetailPattern(id string) string {
	return b.join(familyAlbum, escape(id), "viewer", "*")
}

// Profile returns the key of a profile. Profiles are not personalized.
func (b Builder) Profile(ownerID string) string {
	return b.join(familyProfile, escape(ownerID))
}

// ProfilePattern matches the profile key of ownerID.
func (b Builder) ProfilePattern(ownerID string) string {
	return b.Profile(ownerID)
}

// Family returns the key family ("feed", "media", ...) of a key built by b, or "".
func (b Builder) Family(key string) string {
	rest, ok := strings.CutPrefix(key, b.prefix+":")
	if !ok {
		return ""
	}
	family, _, _ := strings.Cut(rest, ":")
	return family
}

func (b Builder) join(parts ...string) string {
	var sb strings.Builder
	sb.WriteString(b.prefix)
	for _, p := range parts {
		sb.WriteByte(':')
		sb.WriteString(p)
	}
	return sb.String()
}

func viewerSegment(v Viewer) string {
	if v.IsGuest() {
		return guestMarker
	}
	return "u." + escape(strings.TrimSpace(v.ID))
}

func escape(s string) string {
	return segmentEscaper.Replace(s)
}
