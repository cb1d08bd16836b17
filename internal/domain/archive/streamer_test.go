package archive

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/janhq/gallery-api/internal/config"
	"github.com/janhq/gallery-api/internal/domain/media"
	"github.com/janhq/gallery-api/internal/utils/platformerrors"
)

type fakeRepo struct {
	album *media.Album
	items []media.MediaItem
}

func (f *fakeRepo) GetAlbum(_ context.Context, id string) (*media.Album, error) {
	if f.album == nil || f.album.ID != id {
		return nil, nil
	}
	return f.album, nil
}

func (f *fakeRepo) ListActiveAlbumItems(_ context.Context, _ string) ([]media.MediaItem, error) {
	var out []media.MediaItem
	for _, item := range f.items {
		if item.Status == media.StatusActive {
			out = append(out, item)
		}
	}
	return out, nil
}

type fakeBlobs struct {
	objects map[string][]byte
	// DownloadFunc overrides the lookup when set.
	DownloadFunc func(ctx context.Context, key string) (io.ReadCloser, string, error)
	closed       int
}

type trackingCloser struct {
	io.Reader
	onClose func()
}

func (t trackingCloser) Close() error {
	t.onClose()
	return nil
}

func (f *fakeBlobs) Download(ctx context.Context, key string) (io.ReadCloser, string, error) {
	if f.DownloadFunc != nil {
		return f.DownloadFunc(ctx, key)
	}
	data, ok := f.objects[key]
	if !ok {
		return nil, "", errors.New("NoSuchKey")
	}
	return trackingCloser{Reader: bytes.NewReader(data), onClose: func() { f.closed++ }}, "application/octet-stream", nil
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, errors.New("connection reset by peer") }

func album() *media.Album {
	return &media.Album{ID: "alb_1", OwnerID: "usr_1", Title: "Summer Trip", Status: media.StatusActive}
}

func item(id, title, key string, status media.Status) media.MediaItem {
	return media.MediaItem{
		ID:        id,
		Kind:      media.KindImage,
		Title:     title,
		Status:    status,
		Assets:    media.Assets{Small: key + ".small", Large: key},
		CreatedAt: time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC),
	}
}

func newStreamer(repo Repository, blobs BlobReader) *Streamer {
	return NewStreamer(&config.Config{ArchiveCopyBufferBytes: 16}, repo, blobs, zerolog.Nop())
}

func readZip(t *testing.T, data []byte) map[string]string {
	t.Helper()
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	require.NoError(t, err)
	out := map[string]string{}
	for _, f := range zr.File {
		assert.Equal(t, zip.Deflate, f.Method)
		rc, err := f.Open()
		require.NoError(t, err)
		body, err := io.ReadAll(rc)
		require.NoError(t, err)
		require.NoError(t, rc.Close())
		out[f.Name] = string(body)
	}
	return out
}

func TestStreamAlbumArchive_WritesEveryActiveItem(t *testing.T) {
	repo := &fakeRepo{album: album(), items: []media.MediaItem{
		item("med_1", "Beach", "k/1.jpg", media.StatusActive),
		item("med_2", "Beach", "k/2.png", media.StatusActive),
		item("med_3", "Gone", "k/3.jpg", media.StatusDeleted),
	}}
	blobs := &fakeBlobs{objects: map[string][]byte{
		"k/1.jpg": []byte(strings.Repeat("one", 100)),
		"k/2.png": []byte("two"),
		"k/3.jpg": []byte("three"),
	}}
	var out bytes.Buffer
	var plan Plan

	summary, err := newStreamer(repo, blobs).StreamAlbumArchive(context.Background(), "alb_1", func(p Plan) (Sink, error) {
		plan = p
		return NewZipSink(&out), nil
	})
	require.NoError(t, err)

	assert.Equal(t, &Summary{Written: 2}, summary)
	assert.Equal(t, "Summer Trip_Album.zip", plan.FileName)
	assert.Equal(t, 2, plan.Entries)
	assert.Equal(t, map[string]string{
		"Beach_med_1.jpg": strings.Repeat("one", 100),
		"Beach_med_2.png": "two",
	}, readZip(t, out.Bytes()))
	assert.Equal(t, 2, blobs.closed)
}

func TestStreamAlbumArchive_SkipsUnfetchableItem(t *testing.T) {
	repo := &fakeRepo{album: album(), items: []media.MediaItem{
		item("med_1", "First", "k/1.jpg", media.StatusActive),
		item("med_2", "Second", "k/2.jpg", media.StatusActive),
		item("med_3", "Third", "k/3.jpg", media.StatusActive),
	}}

	tests := []struct {
		name  string
		blobs *fakeBlobs
	}{
		{
			name:  "missing object",
			blobs: &fakeBlobs{objects: map[string][]byte{"k/1.jpg": []byte("1"), "k/3.jpg": []byte("3")}},
		},
		{
			name: "first read fails",
			blobs: &fakeBlobs{DownloadFunc: func(_ context.Context, key string) (io.ReadCloser, string, error) {
				if key == "k/2.jpg" {
					return io.NopCloser(failingReader{}), "", nil
				}
				return io.NopCloser(strings.NewReader(strings.TrimPrefix(strings.TrimSuffix(key, ".jpg"), "k/"))), "", nil
			}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out bytes.Buffer
			summary, err := newStreamer(repo, tt.blobs).StreamAlbumArchive(context.Background(), "alb_1", func(Plan) (Sink, error) {
				return NewZipSink(&out), nil
			})
			require.NoError(t, err)

			assert.Equal(t, &Summary{Written: 2, Skipped: 1}, summary)
			entries := readZip(t, out.Bytes())
			assert.Len(t, entries, 2)
			assert.Equal(t, "1", entries["First_med_1.jpg"])
			assert.Equal(t, "3", entries["Third_med_3.jpg"])
		})
	}
}

func TestStreamAlbumArchive_NothingToDownload(t *testing.T) {
	tests := []struct {
		name string
		repo *fakeRepo
	}{
		{"missing album", &fakeRepo{}},
		{"deleted album", &fakeRepo{album: &media.Album{ID: "alb_1", Status: media.StatusDeleted}, items: []media.MediaItem{item("med_1", "a", "k", media.StatusActive)}}},
		{"all items deleted", &fakeRepo{album: album(), items: []media.MediaItem{
			item("med_1", "a", "k/1", media.StatusDeleted),
			item("med_2", "b", "k/2", media.StatusDeleted),
		}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opened := false
			_, err := newStreamer(tt.repo, &fakeBlobs{}).StreamAlbumArchive(context.Background(), "alb_1", func(Plan) (Sink, error) {
				opened = true
				return NewZipSink(io.Discard), nil
			})

			assert.True(t, platformerrors.IsErrorType(err, platformerrors.ErrorTypeNotFound))
			assert.False(t, opened, "no sink may be opened for an empty archive")
		})
	}
}

type recordingSink struct {
	*ZipSink
	aborted   error
	finalized bool
}

func (r *recordingSink) Finalize() error {
	r.finalized = true
	return r.ZipSink.Finalize()
}

func (r *recordingSink) Abort(cause error) {
	r.aborted = cause
	r.ZipSink.Abort(cause)
}

func TestStreamAlbumArchive_AbortsWhenClientGoesAway(t *testing.T) {
	repo := &fakeRepo{album: album(), items: []media.MediaItem{
		item("med_1", "a", "k/1", media.StatusActive),
		item("med_2", "b", "k/2", media.StatusActive),
	}}
	ctx, cancel := context.WithCancel(context.Background())
	blobs := &fakeBlobs{DownloadFunc: func(context.Context, string) (io.ReadCloser, string, error) {
		cancel()
		return io.NopCloser(strings.NewReader("x")), "", nil
	}}
	sink := &recordingSink{ZipSink: NewZipSink(io.Discard)}

	summary, err := newStreamer(repo, blobs).StreamAlbumArchive(ctx, "alb_1", func(Plan) (Sink, error) {
		return sink, nil
	})

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, summary.Written)
	assert.ErrorIs(t, sink.aborted, context.Canceled)
	assert.False(t, sink.finalized)
}

type brokenWriter struct{}

func (brokenWriter) Write([]byte) (int, error) { return 0, errors.New("broken pipe") }

type brokenSink struct {
	aborted   error
	finalized bool
}

func (b *brokenSink) CreateEntry(string, time.Time) (io.Writer, error) { return brokenWriter{}, nil }

func (b *brokenSink) Finalize() error {
	b.finalized = true
	return nil
}

func (b *brokenSink) Abort(cause error) { b.aborted = cause }

func TestStreamAlbumArchive_AbortsOnSinkWriteFailure(t *testing.T) {
	repo := &fakeRepo{album: album(), items: []media.MediaItem{
		item("med_1", "a", "k/1", media.StatusActive),
		item("med_2", "b", "k/2", media.StatusActive),
	}}
	blobs := &fakeBlobs{objects: map[string][]byte{"k/1": []byte("one"), "k/2": []byte("two")}}
	sink := &brokenSink{}

	summary, err := newStreamer(repo, blobs).StreamAlbumArchive(context.Background(), "alb_1", func(Plan) (Sink, error) {
		return sink, nil
	})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "broken pipe")
	assert.Equal(t, 0, summary.Written)
	assert.Error(t, sink.aborted)
	assert.False(t, sink.finalized)
	assert.Equal(t, 1, blobs.closed, "the second item is never fetched")
}

func TestZipSink_RejectsEntriesAfterAbort(t *testing.T) {
	sink := NewZipSink(io.Discard)
	sink.Abort(nil)

	_, err := sink.CreateEntry("a.jpg", time.Time{})
	assert.Error(t, err)
	assert.Error(t, sink.Finalize())
}

func TestEntryName(t *testing.T) {
	tests := []struct {
		item media.MediaItem
		key  string
		want string
	}{
		{media.MediaItem{ID: "med_1", Title: "My: photo/1"}, "a/b.JPG", "My_photo_1_med_1.jpg"},
		{media.MediaItem{ID: "med_2", Title: "  "}, "a/b", "untitled_med_2.jpg"},
		{media.MediaItem{ID: "med_3", Title: "clip", Kind: media.KindVideo}, "v/playback", "clip_med_3.mp4"},
		{media.MediaItem{ID: "med_4", Title: "Café"}, "x.webp", "Café_med_4.webp"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, EntryName(tt.item, tt.key))
	}
}

func TestArchiveFileName_KeepsTitleAsWritten(t *testing.T) {
	tests := map[string]string{
		"My Trip":     "My Trip_Album.zip",
		"Été à Paris": "Été à Paris_Album.zip",
		"  a/b\\c\n ": "abc_Album.zip",
		"***":         "***_Album.zip",
		"   ":         "album_Album.zip",
		"\t\r":        "album_Album.zip",
	}
	for title, want := range tests {
		assert.Equal(t, want, ArchiveFileName(title), title)
	}
}
