package upload

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/janhq/gallery-api/internal/config"
	"github.com/janhq/gallery-api/internal/domain/media"
	"github.com/janhq/gallery-api/internal/utils/platformerrors"
)

type memStore struct {
	mu        sync.Mutex
	objects   map[string][]byte
	failPut   func(key string, data []byte) bool
	failDel   func(key string) bool
	putCalls  int
	delCalled []string
}

func newMemStore() *memStore {
	return &memStore{objects: map[string][]byte{}}
}

func (m *memStore) Upload(_ context.Context, key string, body io.Reader, _ int64, _ string) error {
	data, err := io.ReadAll(body)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.putCalls++
	if m.failPut != nil && m.failPut(key, data) {
		return errors.New("s3: service unavailable")
	}
	m.objects[key] = data
	return nil
}

func (m *memStore) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.delCalled = append(m.delCalled, key)
	if m.failDel != nil && m.failDel(key) {
		return errors.New("s3: delete failed")
	}
	delete(m.objects, key)
	return nil
}

func (m *memStore) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.objects)
}

type memRepo struct {
	mu        sync.Mutex
	albums    map[string]*media.Album
	rows      []media.MediaItem
	created   []*media.Album
	commitErr error
	commits   []*Commit
}

func newMemRepo() *memRepo {
	return &memRepo{albums: map[string]*media.Album{}}
}

func (r *memRepo) GetAlbum(_ context.Context, id string) (*media.Album, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	album, ok := r.albums[id]
	if !ok {
		return nil, nil
	}
	cp := *album
	return &cp, nil
}

func (r *memRepo) CommitBatch(_ context.Context, commit *Commit) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.commits = append(r.commits, commit)
	if r.commitErr != nil {
		return r.commitErr
	}
	base := 0
	if commit.AppendTo != "" {
		for _, row := range r.rows {
			if row.AlbumID != nil && *row.AlbumID == commit.AppendTo && row.Ordinal >= base {
				base = row.Ordinal + 1
			}
		}
	}
	if commit.NewAlbum != nil {
		r.created = append(r.created, commit.NewAlbum)
	}
	for i := range commit.Items {
		commit.Items[i].Ordinal += base
		r.rows = append(r.rows, commit.Items[i])
	}
	return nil
}

type stubRenderer struct {
	err error
}

func (s stubRenderer) Render(_ []byte, width int) ([]byte, error) {
	if s.err != nil {
		return nil, s.err
	}
	return []byte(fmt.Sprintf("jpeg-%d", width)), nil
}

type recordingLocker struct {
	mu    sync.Mutex
	names []string
}

func (l *recordingLocker) Lock(_ context.Context, name string) (func(), error) {
	l.mu.Lock()
	l.names = append(l.names, name)
	l.mu.Unlock()
	return func() {}, nil
}

type recordingInvalidator struct {
	patterns []string
}

func (r *recordingInvalidator) Invalidate(_ context.Context, patterns ...string) {
	r.patterns = append(r.patterns, patterns...)
}

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	img.Set(0, 0, color.RGBA{R: 255, A: 255})
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func mp4Bytes() []byte {
	header := []byte{0x00, 0x00, 0x00, 0x18, 'f', 't', 'y', 'p', 'm', 'p', '4', '2', 0x00, 0x00, 0x00, 0x00, 'm', 'p', '4', '2', 'i', 's', 'o', 'm'}
	return append(header, make([]byte, 64)...)
}

func memFile(name string, data []byte) File {
	return File{
		Name: name,
		Size: int64(len(data)),
		Open: func() (io.ReadCloser, error) {
			return io.NopCloser(bytes.NewReader(data)), nil
		},
	}
}

func testConfig() *config.Config {
	return &config.Config{
		CacheNamespace:      "gallery",
		UploadMaxFiles:      5,
		UploadMaxVideos:     1,
		UploadMaxBytes:      10 << 20,
		UploadAllowedMIMEs:  []string{"image/png", "image/jpeg", "video/mp4"},
		UploadConcurrency:   4,
		UploadTimeout:       time.Minute,
		CompensationTimeout: time.Second,
		VariantSmallWidth:   320,
		VariantMediumWidth:  1080,
	}
}

type harness struct {
	coord       *Coordinator
	store       *memStore
	repo        *memRepo
	locker      *recordingLocker
	invalidator *recordingInvalidator
}

func newHarness(renderer VariantRenderer) *harness {
	h := &harness{
		store:       newMemStore(),
		repo:        newMemRepo(),
		locker:      &recordingLocker{},
		invalidator: &recordingInvalidator{},
	}
	h.coord = NewCoordinator(testConfig(), h.repo, h.store, renderer, h.locker, h.invalidator, zerolog.Nop())
	return h
}

func imageBatch(t *testing.T, n int) ([]File, []FileMeta) {
	var files []File
	var metas []FileMeta
	for i := 0; i < n; i++ {
		files = append(files, memFile(fmt.Sprintf("photo-%d.png", i), pngBytes(t, 10+i, 10)))
		metas = append(metas, FileMeta{Width: 10 + i, Height: 10, Title: fmt.Sprintf("photo %d", i)})
	}
	return files, metas
}

func TestUpload_GroupedBatchSharesAlbumAndKeepsOrder(t *testing.T) {
	h := newHarness(stubRenderer{})
	files, metas := imageBatch(t, 3)

	res, err := h.coord.Upload(context.Background(), Request{
		OwnerID:    "usr_1",
		Files:      files,
		Metadata:   metas,
		Grouped:    true,
		AlbumTitle: "Holiday",
	})
	require.NoError(t, err)

	require.Len(t, h.repo.rows, 3)
	require.Len(t, h.repo.created, 1)
	album := h.repo.created[0]
	assert.Equal(t, res.AlbumID, album.ID)
	assert.Equal(t, "Holiday", album.Title)
	assert.Equal(t, h.repo.rows[0].Assets.Small, album.ThumbnailKey)

	for i, row := range h.repo.rows {
		require.NotNil(t, row.AlbumID)
		assert.Equal(t, res.AlbumID, *row.AlbumID)
		assert.Equal(t, i, row.Ordinal)
		assert.Equal(t, fmt.Sprintf("photo %d", i), row.Title)
		assert.Equal(t, res.MediaIDs[i], row.ID)
		assert.Equal(t, media.StatusActive, row.Status)
		assert.NotEqual(t, row.Assets.Large, row.Assets.Small)
	}
	// original + small + medium per image
	assert.Equal(t, 9, h.store.count())
	assert.Equal(t, []string{"gallery:v1:profile:usr_1"}, h.invalidator.patterns)
}

func TestUpload_UngroupedBatchHasNoGroup(t *testing.T) {
	h := newHarness(stubRenderer{})
	files, metas := imageBatch(t, 3)

	res, err := h.coord.Upload(context.Background(), Request{OwnerID: "usr_1", Files: files, Metadata: metas})
	require.NoError(t, err)

	assert.Empty(t, res.AlbumID)
	assert.Empty(t, h.repo.created)
	require.Len(t, h.repo.rows, 3)
	for _, row := range h.repo.rows {
		assert.Nil(t, row.AlbumID)
	}
}

func TestUpload_BlobFailureCompensatesEverySibling(t *testing.T) {
	for failing := 0; failing < 3; failing++ {
		t.Run(fmt.Sprintf("file_%d_fails", failing+1), func(t *testing.T) {
			h := newHarness(stubRenderer{})
			files, metas := imageBatch(t, 3)
			rc, err := files[failing].Open()
			require.NoError(t, err)
			failData, err := io.ReadAll(rc)
			require.NoError(t, err)
			h.store.failPut = func(key string, data []byte) bool {
				return strings.HasSuffix(key, "/original.png") && bytes.Equal(data, failData)
			}
			released := false

			res, err := h.coord.Upload(context.Background(), Request{
				OwnerID:  "usr_1",
				Files:    files,
				Metadata: metas,
				Grouped:  true,
				Release:  func() { released = true },
			})

			assert.Nil(t, res)
			assert.True(t, platformerrors.IsErrorType(err, platformerrors.ErrorTypeStorage))
			assert.Empty(t, h.repo.commits, "nothing may be committed")
			assert.Empty(t, h.repo.rows)
			assert.Equal(t, 0, h.store.count(), "every stored blob must be compensated")
			assert.Empty(t, h.invalidator.patterns)
			assert.True(t, released)
		})
	}
}

func TestUpload_StreamLengthMustMatchDeclaredSize(t *testing.T) {
	tests := []struct {
		name  string
		files func(t *testing.T) ([]File, []FileMeta)
	}{
		{"image_longer_than_declared", func(t *testing.T) ([]File, []FileMeta) {
			files, metas := imageBatch(t, 2)
			files[1].Size -= 4
			return files, metas
		}},
		{"image_shorter_than_declared", func(t *testing.T) ([]File, []FileMeta) {
			files, metas := imageBatch(t, 2)
			files[0].Size += 4
			return files, metas
		}},
		{"video_longer_than_declared", func(t *testing.T) ([]File, []FileMeta) {
			video := memFile("clip.mp4", mp4Bytes())
			video.Size -= 8
			return []File{video}, []FileMeta{{Width: 1920, Height: 1080, Title: "clip"}}
		}},
		{"video_shorter_than_declared", func(t *testing.T) ([]File, []FileMeta) {
			video := memFile("clip.mp4", mp4Bytes())
			video.Size += 8
			return []File{video}, []FileMeta{{Width: 1920, Height: 1080, Title: "clip"}}
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(stubRenderer{})
			files, metas := tt.files(t)

			res, err := h.coord.Upload(context.Background(), Request{OwnerID: "usr_1", Files: files, Metadata: metas})

			assert.Nil(t, res)
			require.Error(t, err)
			assert.True(t, platformerrors.IsErrorType(err, platformerrors.ErrorTypeStorage))
			assert.ErrorIs(t, err, errSizeMismatch)
			assert.Empty(t, h.repo.commits)
			assert.Equal(t, 0, h.store.count(), "no partial blob may survive")
		})
	}
}

func TestUpload_CommitFailureRemovesAllBlobs(t *testing.T) {
	h := newHarness(stubRenderer{})
	h.repo.commitErr = errors.New("pq: deadlock detected")
	files, metas := imageBatch(t, 3)
	released := false

	res, err := h.coord.Upload(context.Background(), Request{
		OwnerID:  "usr_1",
		Files:    files,
		Metadata: metas,
		Release:  func() { released = true },
	})

	assert.Nil(t, res)
	assert.True(t, platformerrors.IsErrorType(err, platformerrors.ErrorTypeDatabaseError))
	assert.Empty(t, h.repo.rows)
	assert.Equal(t, 0, h.store.count())
	assert.Len(t, h.store.delCalled, 9)
	assert.True(t, released)
}

func TestUpload_FailedCompensationStillReportsFailure(t *testing.T) {
	h := newHarness(nil)
	h.repo.commitErr = errors.New("connection reset")
	h.store.failDel = func(string) bool { return true }
	files, metas := imageBatch(t, 2)

	_, err := h.coord.Upload(context.Background(), Request{OwnerID: "usr_1", Files: files, Metadata: metas})

	require.Error(t, err)
	var perr *platformerrors.PlatformError
	require.True(t, errors.As(err, &perr))
	assert.Equal(t, platformerrors.ErrorTypeDatabaseError, perr.Type)
	assert.Len(t, perr.Context["orphaned"], 2)
}

func TestUpload_ValidationHasNoSideEffects(t *testing.T) {
	files, metas := imageBatch(t, 2)
	video := memFile("clip.mp4", mp4Bytes())

	tests := []struct {
		name string
		req  Request
	}{
		{"no files", Request{OwnerID: "usr_1"}},
		{"metadata mismatch", Request{OwnerID: "usr_1", Files: files, Metadata: metas[:1]}},
		{"missing width", Request{OwnerID: "usr_1", Files: files[:1], Metadata: []FileMeta{{Height: 10}}}},
		{"missing size", Request{OwnerID: "usr_1", Files: []File{{Name: "x.png", Open: files[0].Open}}, Metadata: metas[:1]}},
		{"two videos", Request{OwnerID: "usr_1", Files: []File{video, video}, Metadata: []FileMeta{{Width: 1, Height: 1}, {Width: 1, Height: 1}}}},
		{"unsupported type", Request{OwnerID: "usr_1", Files: []File{memFile("a.txt", []byte("hello world"))}, Metadata: metas[:1]}},
		{"too many files", Request{OwnerID: "usr_1", Files: make([]File, 6), Metadata: make([]FileMeta, 6)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(stubRenderer{})
			released := false
			tt.req.Release = func() { released = true }

			_, err := h.coord.Upload(context.Background(), tt.req)

			assert.True(t, platformerrors.IsErrorType(err, platformerrors.ErrorTypeValidation), "got %v", err)
			assert.Zero(t, h.store.putCalls)
			assert.Empty(t, h.repo.commits)
			assert.True(t, released)
		})
	}
}

func TestUpload_SingleVideoAndMixedBatch(t *testing.T) {
	h := newHarness(stubRenderer{})
	files, metas := imageBatch(t, 1)
	files = append(files, memFile("clip.mp4", mp4Bytes()))
	metas = append(metas, FileMeta{Width: 1920, Height: 1080})

	res, err := h.coord.Upload(context.Background(), Request{OwnerID: "usr_1", Files: files, Metadata: metas, Grouped: true})
	require.NoError(t, err)
	require.Len(t, res.MediaIDs, 2)

	videoRow := h.repo.rows[1]
	assert.Equal(t, media.KindVideo, videoRow.Kind)
	assert.Equal(t, "clip", videoRow.Title)
	assert.NotEmpty(t, videoRow.Assets.Playback)
	assert.Empty(t, videoRow.Assets.Small)
}

func TestUpload_RenderFailureFallsBackToOriginal(t *testing.T) {
	h := newHarness(stubRenderer{err: errors.New("unsupported color model")})
	files, metas := imageBatch(t, 1)

	_, err := h.coord.Upload(context.Background(), Request{OwnerID: "usr_1", Files: files, Metadata: metas})
	require.NoError(t, err)

	row := h.repo.rows[0]
	assert.Equal(t, row.Assets.Large, row.Assets.Small)
	assert.Equal(t, row.Assets.Large, row.Assets.Medium)
	assert.Equal(t, 1, h.store.count())
}

func TestUpload_CancelledRequestStillCompletes(t *testing.T) {
	h := newHarness(stubRenderer{})
	files, metas := imageBatch(t, 2)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res, err := h.coord.Upload(ctx, Request{OwnerID: "usr_1", Files: files, Metadata: metas})

	require.NoError(t, err)
	assert.Len(t, res.MediaIDs, 2)
	assert.Len(t, h.repo.rows, 2)
}

func TestUpload_AppendToExistingAlbum(t *testing.T) {
	h := newHarness(stubRenderer{})
	existing := "alb_existing"
	h.repo.albums[existing] = &media.Album{ID: existing, OwnerID: "usr_1", Status: media.StatusActive}
	h.repo.rows = append(h.repo.rows,
		media.MediaItem{ID: "med_a", AlbumID: &existing, Ordinal: 0},
		media.MediaItem{ID: "med_b", AlbumID: &existing, Ordinal: 1},
	)
	files, metas := imageBatch(t, 2)

	res, err := h.coord.Upload(context.Background(), Request{OwnerID: "usr_1", Files: files, Metadata: metas, AlbumID: existing})
	require.NoError(t, err)

	assert.Equal(t, existing, res.AlbumID)
	assert.Empty(t, h.repo.created)
	assert.Equal(t, 2, h.repo.rows[2].Ordinal)
	assert.Equal(t, 3, h.repo.rows[3].Ordinal)
	assert.Equal(t, []string{"album:" + existing}, h.locker.names)
	assert.Contains(t, h.invalidator.patterns, "gallery:v1:album:"+existing+":viewer:*")
}

func TestUpload_AppendRequiresOwnership(t *testing.T) {
	h := newHarness(stubRenderer{})
	h.repo.albums["alb_x"] = &media.Album{ID: "alb_x", OwnerID: "someone-else", Status: media.StatusActive}
	files, metas := imageBatch(t, 1)

	_, err := h.coord.Upload(context.Background(), Request{OwnerID: "usr_1", Files: files, Metadata: metas, AlbumID: "alb_x"})
	assert.True(t, platformerrors.IsErrorType(err, platformerrors.ErrorTypeForbidden))

	_, err = h.coord.Upload(context.Background(), Request{OwnerID: "usr_1", Files: files, Metadata: metas, AlbumID: "alb_missing"})
	assert.True(t, platformerrors.IsErrorType(err, platformerrors.ErrorTypeNotFound))
	assert.Zero(t, h.store.putCalls)
}
