package storage

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/rs/zerolog"

	"github.com/janhq/gallery-api/internal/config"
	"github.com/janhq/gallery-api/internal/infrastructure/metrics"
)

// ErrObjectNotFound is returned by Download when the key does not exist.
var ErrObjectNotFound = errors.New("object not found")

// Storage is a blob backend holding originals and rendered variants.
type Storage interface {
	Upload(ctx context.Context, key string, body io.Reader, size int64, contentType string) error
	Download(ctx context.Context, key string) (io.ReadCloser, string, error)
	// Delete succeeds when the key is already absent.
	Delete(ctx context.Context, key string) error
	PresignGet(ctx context.Context, key string, ttl time.Duration) (string, error)
	Health(ctx context.Context) error
}

// New selects the backend named by GALLERY_STORAGE_BACKEND.
func New(ctx context.Context, cfg *config.Config, log zerolog.Logger) (Storage, error) {
	if cfg.IsLocalStorage() {
		return NewLocalStorage(cfg, log)
	}
	return NewS3Storage(ctx, cfg, log)
}

func observe(op string, started time.Time, err error) {
	status := "ok"
	switch {
	case errors.Is(err, ErrObjectNotFound):
		status = "not_found"
	case err != nil:
		status = "error"
	}
	metrics.RecordBlobOperation(op, status, time.Since(started).Seconds())
}
