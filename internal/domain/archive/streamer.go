package archive

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"time"
	"unicode"

	"github.com/rs/zerolog"

	"github.com/janhq/gallery-api/internal/config"
	"github.com/janhq/gallery-api/internal/domain/media"
	"github.com/janhq/gallery-api/internal/infrastructure/metrics"
	"github.com/janhq/gallery-api/internal/infrastructure/observability"
	"github.com/janhq/gallery-api/internal/utils/platformerrors"
)

// Repository lists what an album archive contains.
type Repository interface {
	GetAlbum(ctx context.Context, id string) (*media.Album, error)
	ListActiveAlbumItems(ctx context.Context, albumID string) ([]media.MediaItem, error)
}

// BlobReader streams stored objects.
type BlobReader interface {
	Download(ctx context.Context, key string) (io.ReadCloser, string, error)
}

// Sink receives archive entries. Entries are written one at a time; the writer
// returned by CreateEntry is valid until the next call.
type Sink interface {
	CreateEntry(name string, modified time.Time) (io.Writer, error)
	// Finalize completes the archive.
	Finalize() error
	// Abort marks the archive as unusable. No further calls follow.
	Abort(cause error)
}

// Plan describes an archive about to be streamed.
type Plan struct {
	AlbumID  string
	Title    string
	FileName string
	Entries  int
}

// Summary reports what an archive ended up containing.
type Summary struct {
	Written int
	Skipped int
}

// Streamer builds album archives from the blob store.
type Streamer struct {
	repo    Repository
	store   BlobReader
	bufSize int
	log     zerolog.Logger
}

func NewStreamer(cfg *config.Config, repo Repository, store BlobReader, log zerolog.Logger) *Streamer {
	bufSize := cfg.ArchiveCopyBufferBytes
	if bufSize <= 0 {
		bufSize = 64 * 1024
	}
	return &Streamer{
		repo:    repo,
		store:   store,
		bufSize: bufSize,
		log:     log.With().Str("component", "archive-streamer").Logger(),
	}
}

// StreamAlbumArchive writes every active item of an album into the sink returned by
// openSink. Nothing is opened when the album is missing or has no active items; that
// case is reported as not found. An item whose blob cannot be fetched is skipped. The
// sink is finalized after every item was attempted, or aborted when the stream cannot
// continue (client gone, write failure, item failing mid-copy).
func (s *Streamer) StreamAlbumArchive(ctx context.Context, albumID string, openSink func(Plan) (Sink, error)) (*Summary, error) {
	ctx, span := observability.StartArchiveSpan(ctx, albumID)
	defer span.End()

	album, err := s.repo.GetAlbum(ctx, albumID)
	if err != nil {
		return nil, platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "failed to load album")
	}
	if album == nil || album.Status != media.StatusActive {
		return nil, nothingToDownload(ctx, albumID)
	}

	items, err := s.repo.ListActiveAlbumItems(ctx, albumID)
	if err != nil {
		return nil, platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "failed to list album items")
	}
	eligible := items[:0]
	for _, item := range items {
		if item.Status == media.StatusActive && item.Assets.Best(item.Kind) != "" {
			eligible = append(eligible, item)
		}
	}
	if len(eligible) == 0 {
		return nil, nothingToDownload(ctx, albumID)
	}

	sink, err := openSink(Plan{
		AlbumID:  album.ID,
		Title:    album.Title,
		FileName: ArchiveFileName(album.Title),
		Entries:  len(eligible),
	})
	if err != nil {
		return nil, err
	}

	log := s.log.With().Str("album_id", albumID).Logger()
	summary := &Summary{}
	buf := bufio.NewReaderSize(nil, s.bufSize)

	for _, item := range eligible {
		if err := ctx.Err(); err != nil {
			sink.Abort(err)
			observability.RecordError(span, err, "warning")
			return summary, err
		}

		written, err := s.writeEntry(ctx, sink, buf, item)
		if err != nil {
			sink.Abort(err)
			metrics.RecordArchiveEntry("aborted")
			observability.RecordError(span, err, "error")
			log.Warn().Err(err).Str("media_id", item.ID).Msg("album archive aborted")
			return summary, err
		}
		if !written {
			summary.Skipped++
			metrics.RecordArchiveEntry("skipped")
			continue
		}
		summary.Written++
		metrics.RecordArchiveEntry("written")
	}

	if err := sink.Finalize(); err != nil {
		observability.RecordError(span, err, "error")
		return summary, fmt.Errorf("finalize archive: %w", err)
	}
	log.Info().Int("written", summary.Written).Int("skipped", summary.Skipped).Msg("album archive streamed")
	return summary, nil
}

// writeEntry copies one item into the sink. It returns false without error when the
// item's blob could not be fetched before any byte reached the sink.
func (s *Streamer) writeEntry(ctx context.Context, sink Sink, buf *bufio.Reader, item media.MediaItem) (bool, error) {
	key := item.Assets.Best(item.Kind)
	rc, _, err := s.store.Download(ctx, key)
	if err != nil {
		if ctx.Err() != nil {
			return false, ctx.Err()
		}
		s.log.Warn().Err(err).Str("media_id", item.ID).Str("key", key).Msg("skipping archive entry: blob unavailable")
		return false, nil
	}
	defer rc.Close()

	buf.Reset(rc)
	if _, err := buf.Peek(1); err != nil && !errors.Is(err, io.EOF) {
		if ctx.Err() != nil {
			return false, ctx.Err()
		}
		s.log.Warn().Err(err).Str("media_id", item.ID).Str("key", key).Msg("skipping archive entry: blob unreadable")
		return false, nil
	}

	w, err := sink.CreateEntry(EntryName(item, key), item.CreatedAt)
	if err != nil {
		return false, fmt.Errorf("create entry for %s: %w", item.ID, err)
	}
	if _, err := io.Copy(w, buf); err != nil {
		return false, fmt.Errorf("copy %s: %w", item.ID, err)
	}
	return true, nil
}

// EntryName is "<title>_<id>.<ext>"; the id keeps entries unique when titles repeat.
func EntryName(item media.MediaItem, key string) string {
	ext := strings.ToLower(path.Ext(key))
	if ext == "" {
		if item.Kind == media.KindVideo {
			ext = ".mp4"
		} else {
			ext = ".jpg"
		}
	}
	return sanitize(item.Title, "untitled") + "_" + sanitize(item.ID, "item") + ext
}

// ArchiveFileName is "<title>_Album.zip" with the title kept as written.
// Control characters and path separators are dropped; header quoting is left
// to the transport.
func ArchiveFileName(title string) string {
	cleaned := strings.TrimSpace(strings.Map(func(r rune) rune {
		if unicode.IsControl(r) || r == '/' || r == '\\' {
			return -1
		}
		return r
	}, title))
	if cleaned == "" {
		cleaned = "album"
	}
	return cleaned + "_Album.zip"
}

func sanitize(s, fallback string) string {
	var b strings.Builder
	lastUnderscore := false
	for _, r := range strings.TrimSpace(s) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r) || r == '-' || r == '.':
			b.WriteRune(r)
			lastUnderscore = false
		default:
			if !lastUnderscore && b.Len() > 0 {
				b.WriteByte('_')
				lastUnderscore = true
			}
		}
		if b.Len() >= 80 {
			break
		}
	}
	out := strings.Trim(b.String(), "_.")
	if out == "" {
		return fallback
	}
	return out
}

func nothingToDownload(ctx context.Context, albumID string) error {
	return platformerrors.NewErrorWithContext(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeNotFound,
		"nothing to download", nil, "4a5b6c7d-8e9f-4a0b-b1c2-d3e4f5a6b7c8", map[string]any{"album_id": albumID})
}
