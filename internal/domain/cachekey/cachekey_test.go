package cachekey

import (
	"path"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFeedKey_DefaultGuestFeed(t *testing.T) {
	b := NewBuilder("gallery")

	key := b.Feed(FeedQuery{Sort: SortLatest, Type: TypeAll, Page: 1}, Guest)

	assert.Equal(t, "gallery:v1:feed:public:sort=LATEST:type=ALL:tag=:q=:page=1:viewer:guest", key)
	assert.Equal(t, key, b.Feed(FeedQuery{}, Guest), "zero query normalizes to the default feed")
}

func TestFeedKey_NormalizesEquivalentQueries(t *testing.T) {
	b := NewBuilder("gallery")
	viewer := Viewer{ID: "usr_1"}

	a := b.Feed(FeedQuery{Sort: "latest", Type: "image", Tag: " Cats ", Keyword: "  Black   CAT ", Page: 0}, viewer)
	c := b.Feed(FeedQuery{Sort: SortLatest, Type: TypeImage, Tag: "cats", Keyword: "black cat", Page: 1}, viewer)

	assert.Equal(t, a, c)
}

func TestFeedKey_DistinguishesEveryFilter(t *testing.T) {
	b := NewBuilder("gallery")
	base := FeedQuery{Sort: SortLatest, Type: TypeAll, Tag: "sea", Keyword: "sun", Page: 1}

	variants := []FeedQuery{
		{Sort: SortPopular, Type: TypeAll, Tag: "sea", Keyword: "sun", Page: 1},
		{Sort: SortLatest, Type: TypeVideo, Tag: "sea", Keyword: "sun", Page: 1},
		{Sort: SortLatest, Type: TypeAll, Tag: "sky", Keyword: "sun", Page: 1},
		{Sort: SortLatest, Type: TypeAll, Tag: "sea", Keyword: "moon", Page: 1},
		{Sort: SortLatest, Type: TypeAll, Tag: "sea", Keyword: "sun", Page: 2},
	}

	seen := map[string]bool{b.Feed(base, Guest): true}
	for _, v := range variants {
		key := b.Feed(v, Guest)
		assert.False(t, seen[key], "duplicate key %s", key)
		seen[key] = true
	}
}

func TestFeedKey_MineNeverSharesGenericFeed(t *testing.T) {
	b := NewBuilder("gallery")
	viewer := Viewer{ID: "usr_1"}
	q := FeedQuery{Sort: SortLatest, Type: TypeAll, Page: 1}

	generic := b.Feed(q, viewer)
	q.Mine = true
	mine := b.Feed(q, viewer)

	assert.NotEqual(t, generic, mine)
	assert.Contains(t, mine, ":feed:mine:u.usr_1:")
	assert.Contains(t, generic, ":feed:public:")
}

func TestFeedKey_EscapesSeparatorsAndGlobs(t *testing.T) {
	b := NewBuilder("gallery")

	withColon := b.Feed(FeedQuery{Tag: "a:q=b"}, Guest)
	plain := b.Feed(FeedQuery{Tag: "a", Keyword: "b"}, Guest)

	assert.NotEqual(t, withColon, plain)
	assert.NotContains(t, b.Feed(FeedQuery{Keyword: "x*"}, Guest), "*")
}

func TestDetailKeys_PersonalizedPerViewer(t *testing.T) {
	b := NewBuilder("gallery")

	guest := b.MediaDetail("med_1", Guest)
	alice := b.MediaDetail("med_1", Viewer{ID: "alice"})
	bob := b.MediaDetail("med_1", Viewer{ID: "bob"})
	named := b.MediaDetail("med_1", Viewer{ID: "guest"})

	assert.Equal(t, "gallery:v1:media:med_1:viewer:guest", guest)
	assert.Len(t, map[string]struct{}{guest: {}, alice: {}, bob: {}, named: {}}, 4)
	assert.NotEqual(t, b.AlbumDetail("x", Guest), b.MediaDetail("x", Guest))
}

func TestPatterns_MatchEveryViewerAndNothingElse(t *testing.T) {
	b := NewBuilder("gallery")

	mediaPattern := b.MediaDetailPattern("med_1")
	for _, v := range []Viewer{Guest, {ID: "alice"}, {ID: "bob"}} {
		ok, err := path.Match(mediaPattern, b.MediaDetail("med_1", v))
		require.NoError(t, err)
		assert.True(t, ok)
	}

	ok, err := path.Match(mediaPattern, b.MediaDetail("med_10", Guest))
	require.NoError(t, err)
	assert.False(t, ok, "pattern must not match a different id with the same prefix")

	ok, err = path.Match(b.AlbumDetailPattern("alb_1"), b.AlbumDetail("alb_1", Viewer{ID: "carol"}))
	require.NoError(t, err)
	assert.True(t, ok)

	assert.Equal(t, "gallery:v1:profile:usr_1", b.ProfilePattern("usr_1"))
	assert.Equal(t, b.Profile("usr_1"), b.ProfilePattern("usr_1"))
}

func TestFamily(t *testing.T) {
	b := NewBuilder("gallery")

	assert.Equal(t, "feed", b.Family(b.Feed(FeedQuery{}, Guest)))
	assert.Equal(t, "album", b.Family(b.AlbumDetail("a", Guest)))
	assert.Equal(t, "profile", b.Family(b.Profile("u")))
	assert.Equal(t, "", b.Family("other:v1:feed"))
}
