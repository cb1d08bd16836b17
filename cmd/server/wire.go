//go:build wireinject

package main

import (
	"context"

	"github.com/google/wire"

	"github.com/janhq/gallery-api/internal/config"
	"github.com/janhq/gallery-api/internal/domain/archive"
	domain "github.com/janhq/gallery-api/internal/domain/media"
	"github.com/janhq/gallery-api/internal/domain/upload"
	"github.com/janhq/gallery-api/internal/infrastructure/auth"
	"github.com/janhq/gallery-api/internal/infrastructure/cache"
	"github.com/janhq/gallery-api/internal/infrastructure/imaging"
	"github.com/janhq/gallery-api/internal/infrastructure/logger"
	repo "github.com/janhq/gallery-api/internal/infrastructure/repository/media"
	"github.com/janhq/gallery-api/internal/infrastructure/storage"
	"github.com/janhq/gallery-api/internal/interfaces/httpserver"
	"github.com/janhq/gallery-api/internal/interfaces/httpserver/handlers"
)

var repositorySet = wire.NewSet(
	repo.NewRepository,
	wire.Bind(new(domain.Repository), new(*repo.Repository)),
	wire.Bind(new(upload.Repository), new(*repo.Repository)),
	wire.Bind(new(archive.Repository), new(*repo.Repository)),
)

var storageSet = wire.NewSet(
	storage.New,
	wire.Bind(new(domain.URLSigner), new(storage.Storage)),
	wire.Bind(new(upload.BlobStore), new(storage.Storage)),
	wire.Bind(new(archive.BlobReader), new(storage.Storage)),
)

var cacheSet = wire.NewSet(
	newRedisCache,
	newCacheLayer,
	newLocker,
	wire.Bind(new(upload.Invalidator), new(*cache.Layer)),
	wire.Bind(new(upload.Locker), new(*cache.Locker)),
)

var gallerySet = wire.NewSet(
	domain.NewService,
	newRenderer,
	wire.Bind(new(upload.VariantRenderer), new(*imaging.Renderer)),
	upload.NewCoordinator,
	archive.NewStreamer,
)

// BuildApplication assembles the gallery API with Wire.
func BuildApplication(ctx context.Context) (*Application, error) {
	wire.Build(
		config.Load,
		logger.New,
		auth.NewValidator,
		newDatabaseConfig,
		newGormDB,
		repositorySet,
		storageSet,
		cacheSet,
		gallerySet,
		handlers.NewProvider,
		newReadinessChecks,
		httpserver.New,
		NewApplication,
	)
	return nil, nil
}
