package upload

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/janhq/gallery-api/internal/config"
	"github.com/janhq/gallery-api/internal/domain/cachekey"
	"github.com/janhq/gallery-api/internal/domain/media"
	"github.com/janhq/gallery-api/internal/infrastructure/metrics"
	"github.com/janhq/gallery-api/internal/infrastructure/observability"
	"github.com/janhq/gallery-api/internal/utils/platformerrors"
)

// BlobStore is the object storage used for uploads.
type BlobStore interface {
	Upload(ctx context.Context, key string, body io.Reader, size int64, contentType string) error
	Delete(ctx context.Context, key string) error
}

// VariantRenderer produces a JPEG rendition of an image fitted to width.
type VariantRenderer interface {
	Render(data []byte, width int) ([]byte, error)
}

// Repository persists committed batches.
type Repository interface {
	GetAlbum(ctx context.Context, id string) (*media.Album, error)
	// CommitBatch applies commit in one transaction and sets the final ordinals on
	// commit.Items.
	CommitBatch(ctx context.Context, commit *Commit) error
}

// Locker serializes appends to the same album.
type Locker interface {
	Lock(ctx context.Context, name string) (func(), error)
}

// Invalidator drops cached projections.
type Invalidator interface {
	Invalidate(ctx context.Context, patterns ...string)
}

// Coordinator runs batch uploads as a saga over the blob store and the relational
// store: blobs first, then one transaction, undoing the blobs if either step fails.
type Coordinator struct {
	repo        Repository
	store       BlobStore
	renderer    VariantRenderer
	locker      Locker
	invalidator Invalidator
	keys        cachekey.Builder
	validation  *validator.Validate
	constraints Constraints

	concurrency         int
	timeout             time.Duration
	compensationTimeout time.Duration
	smallWidth          int
	mediumWidth         int

	log zerolog.Logger
}

func NewCoordinator(cfg *config.Config, repo Repository, store BlobStore, renderer VariantRenderer, locker Locker, invalidator Invalidator, log zerolog.Logger) *Coordinator {
	concurrency := cfg.UploadConcurrency
	if concurrency <= 0 {
		concurrency = 1
	}
	timeout := cfg.UploadTimeout
	if timeout <= 0 {
		timeout = 10 * time.Minute
	}
	compensationTimeout := cfg.CompensationTimeout
	if compensationTimeout <= 0 {
		compensationTimeout = 30 * time.Second
	}

	return &Coordinator{
		repo:        repo,
		store:       store,
		renderer:    renderer,
		locker:      locker,
		invalidator: invalidator,
		keys:        cachekey.NewBuilder(cfg.CacheNamespace),
		validation:  validator.New(),
		constraints: Constraints{
			MaxFiles:     cfg.UploadMaxFiles,
			MaxVideos:    cfg.UploadMaxVideos,
			MaxFileBytes: cfg.UploadMaxBytes,
			AllowedMIMEs: cfg.UploadAllowedMIMEs,
		},
		concurrency:         concurrency,
		timeout:             timeout,
		compensationTimeout: compensationTimeout,
		smallWidth:          cfg.VariantSmallWidth,
		mediumWidth:         cfg.VariantMediumWidth,
		log:                 log.With().Str("component", "upload-coordinator").Logger(),
	}
}

// Upload validates, stores and commits a batch. Either every file of the batch is
// committed or none is, and no blob of a failed batch is left behind (best effort).
// Once validation passes the batch runs to a terminal state even if ctx is cancelled.
func (c *Coordinator) Upload(ctx context.Context, req Request) (*Result, error) {
	defer func() {
		if req.Release != nil {
			req.Release()
		}
	}()

	session, err := c.validate(ctx, req)
	if err != nil {
		metrics.RecordUploadBatch("rejected")
		return nil, err
	}

	runCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.timeout)
	defer cancel()
	runCtx, span := observability.StartUploadSpan(runCtx, session.BatchID, session.OwnerID, len(session.Descriptors), session.Grouped)
	defer span.End()

	log := c.log.With().Str("batch_id", session.BatchID).Str("owner_id", session.OwnerID).Logger()
	s := &saga{}

	transition(span, StateValidating, StateUploading)
	if err := c.uploadAll(runCtx, session, s); err != nil {
		transition(span, StateUploading, StateUploadFailed)
		undo := c.compensate(runCtx, session, s)
		metrics.RecordUploadBatch(string(StateUploadFailed))
		perr := platformerrors.NewErrorWithContext(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeStorage,
			"failed to upload files", err, "8e1f2a3b-4c5d-4e6f-9a0b-c1d2e3f4a5b6", map[string]any{
				"batch_id":    session.BatchID,
				"compensated": undo.Deleted,
				"orphaned":    undo.Failed,
			})
		observability.RecordError(span, err, "error")
		platformerrors.LogError(log, perr)
		return nil, perr
	}

	commit := c.buildCommit(session, req)

	transition(span, StateUploading, StateCommitting)
	if err := c.commit(runCtx, session, commit); err != nil {
		transition(span, StateCommitting, StateCommitFailed)
		undo := c.compensate(runCtx, session, s)
		metrics.RecordUploadBatch(string(StateCommitFailed))
		perr := platformerrors.NewErrorWithContext(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeDatabaseError,
			"failed to save upload", err, "9f2a3b4c-5d6e-4f7a-8b1c-d2e3f4a5b6c7", map[string]any{
				"batch_id":    session.BatchID,
				"compensated": undo.Deleted,
				"orphaned":    undo.Failed,
			})
		observability.RecordError(span, err, "error")
		platformerrors.LogError(log, perr)
		return nil, perr
	}
	transition(span, StateCommitting, StateCommitted)

	patterns := []string{c.keys.ProfilePattern(session.OwnerID)}
	if session.AppendTo != "" {
		patterns = append(patterns, c.keys.AlbumDetailPattern(session.AppendTo))
	}
	if c.invalidator != nil {
		c.invalidator.Invalidate(runCtx, patterns...)
	}

	result := &Result{BatchID: session.BatchID, AlbumID: session.GroupID}
	for _, item := range commit.Items {
		result.MediaIDs = append(result.MediaIDs, item.ID)
		metrics.RecordUploadBytes(string(item.Kind), item.Bytes)
	}
	metrics.RecordUploadBatch(string(StateCommitted))
	log.Info().Int("files", len(result.MediaIDs)).Str("album_id", result.AlbumID).Msg("upload batch committed")
	return result, nil
}

// uploadAll stores every file concurrently and returns once all of them have settled.
// A failing file does not stop its siblings.
func (c *Coordinator) uploadAll(ctx context.Context, session *Session, s *saga) error {
	var (
		g        errgroup.Group
		mu       sync.Mutex
		failures []error
	)
	g.SetLimit(c.concurrency)

	for _, d := range session.Descriptors {
		g.Go(func() error {
			if err := c.storeFile(ctx, session, d, s); err != nil {
				mu.Lock()
				failures = append(failures, fmt.Errorf("file %d (%s): %w", d.Index, d.Name, err))
				mu.Unlock()
				return err
			}
			return nil
		})
	}

	_ = g.Wait()
	return errors.Join(failures...)
}

func (c *Coordinator) storeFile(ctx context.Context, session *Session, d *Descriptor, s *saga) error {
	rc, err := d.file.Open()
	if err != nil {
		return fmt.Errorf("open: %w", err)
	}
	defer rc.Close()

	if d.Kind == media.KindVideo {
		body := &countingReader{r: io.LimitReader(rc, d.Bytes)}
		if err := c.put(ctx, s, d.Key, body, d.Bytes, d.MimeType); err != nil {
			return err
		}
		// The blob is already recorded, so a mismatch here is compensated.
		if body.n != d.Bytes || !exhausted(rc) {
			return fmt.Errorf("%w: declared %d bytes", errSizeMismatch, d.Bytes)
		}
		d.Assets = media.Assets{Playback: d.Key}
		return nil
	}

	data, err := io.ReadAll(io.LimitReader(rc, d.Bytes+1))
	if err != nil {
		return fmt.Errorf("read: %w", err)
	}
	if int64(len(data)) != d.Bytes {
		return fmt.Errorf("%w: read %d bytes, declared %d", errSizeMismatch, len(data), d.Bytes)
	}
	if err := c.put(ctx, s, d.Key, bytes.NewReader(data), d.Bytes, d.MimeType); err != nil {
		return err
	}
	d.Assets = media.Assets{Small: d.Key, Medium: d.Key, Large: d.Key}

	variants, err := c.renderVariants(data)
	if err != nil {
		c.log.Warn().Err(err).Str("batch_id", session.BatchID).Str("media_id", d.MediaID).
			Msg("variant rendering failed; serving the original for every size")
		return nil
	}
	for _, v := range variants {
		key := objectKey(session.OwnerID, d.MediaID, string(v.variant), "jpg")
		if err := c.put(ctx, s, key, bytes.NewReader(v.data), int64(len(v.data)), "image/jpeg"); err != nil {
			return err
		}
		if v.variant == media.VariantSmall {
			d.Assets.Small = key
		} else {
			d.Assets.Medium = key
		}
	}
	return nil
}

type rendition struct {
	variant media.Variant
	data    []byte
}

// renderVariants renders every configured variant or none.
func (c *Coordinator) renderVariants(data []byte) ([]rendition, error) {
	if c.renderer == nil {
		return nil, nil
	}
	var out []rendition
	for _, v := range []struct {
		variant media.Variant
		width   int
	}{
		{media.VariantSmall, c.smallWidth},
		{media.VariantMedium, c.mediumWidth},
	} {
		if v.width <= 0 {
			continue
		}
		rendered, err := c.renderer.Render(data, v.width)
		if err != nil {
			return nil, fmt.Errorf("render %s: %w", v.variant, err)
		}
		out = append(out, rendition{variant: v.variant, data: rendered})
	}
	return out, nil
}

var errSizeMismatch = errors.New("stream length differs from declared size")

type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}

func exhausted(r io.Reader) bool {
	var b [1]byte
	n, _ := io.ReadFull(r, b[:])
	return n == 0
}

func (c *Coordinator) put(ctx context.Context, s *saga, key string, body io.Reader, size int64, contentType string) error {
	if err := c.store.Upload(ctx, key, body, size, contentType); err != nil {
		return fmt.Errorf("put %s: %w", key, err)
	}
	s.record(key)
	return nil
}

func (c *Coordinator) buildCommit(session *Session, req Request) *Commit {
	commit := &Commit{BatchID: session.BatchID, AppendTo: session.AppendTo}

	var albumID *string
	if session.Grouped {
		id := session.GroupID
		albumID = &id
	}

	now := time.Now().UTC()
	for i, d := range session.Descriptors {
		title := d.Meta.Title
		if title == "" {
			title = strings.TrimSuffix(filepath.Base(d.Name), filepath.Ext(d.Name))
		}
		commit.Items = append(commit.Items, media.MediaItem{
			ID:          d.MediaID,
			OwnerID:     session.OwnerID,
			Kind:        d.Kind,
			MimeType:    d.MimeType,
			Bytes:       d.Bytes,
			Width:       d.Width,
			Height:      d.Height,
			Title:       title,
			Description: d.Meta.Description,
			Tags:        d.Meta.Tags,
			AlbumID:     albumID,
			Ordinal:     i,
			Assets:      d.Assets,
			Status:      media.StatusActive,
			CreatedAt:   now,
			UpdatedAt:   now,
		})
	}

	if session.Grouped && session.AppendTo == "" {
		title := strings.TrimSpace(req.AlbumTitle)
		if title == "" {
			title = "Untitled album"
		}
		commit.NewAlbum = &media.Album{
			ID:           session.GroupID,
			OwnerID:      session.OwnerID,
			Title:        title,
			Description:  strings.TrimSpace(req.AlbumDescription),
			Status:       media.StatusActive,
			ThumbnailKey: commit.Items[0].Assets.Thumbnail(),
			CreatedAt:    now,
			UpdatedAt:    now,
		}
	}
	return commit
}

func (c *Coordinator) commit(ctx context.Context, session *Session, commit *Commit) error {
	if session.AppendTo != "" && c.locker != nil {
		unlock, err := c.locker.Lock(ctx, "album:"+session.AppendTo)
		if err != nil {
			return err
		}
		defer unlock()
	}
	return c.repo.CommitBatch(ctx, commit)
}

func transition(span trace.Span, from, to State) {
	observability.AddStatusTransition(span, string(from), string(to))
}
