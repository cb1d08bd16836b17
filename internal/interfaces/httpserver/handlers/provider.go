package handlers

import (
	"github.com/rs/zerolog"

	"github.com/janhq/gallery-api/internal/config"
	"github.com/janhq/gallery-api/internal/domain/archive"
	domain "github.com/janhq/gallery-api/internal/domain/media"
	"github.com/janhq/gallery-api/internal/domain/upload"
)

// Provider wires HTTP handlers.
type Provider struct {
	Media  *MediaHandler
	Album  *AlbumHandler
	Upload *UploadHandler
}

func NewProvider(cfg *config.Config, service *domain.Service, coordinator *upload.Coordinator, streamer *archive.Streamer, log zerolog.Logger) *Provider {
	return &Provider{
		Media:  NewMediaHandler(cfg, service, log),
		Album:  NewAlbumHandler(service, streamer, log),
		Upload: NewUploadHandler(cfg, coordinator, log),
	}
}
