package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/janhq/gallery-api/internal/config"
	"github.com/janhq/gallery-api/internal/domain/archive"
	"github.com/janhq/gallery-api/internal/domain/cachekey"
	domain "github.com/janhq/gallery-api/internal/domain/media"
	"github.com/janhq/gallery-api/internal/domain/upload"
	"github.com/janhq/gallery-api/internal/infrastructure/auth"
	"github.com/janhq/gallery-api/internal/infrastructure/cache"
	"github.com/janhq/gallery-api/internal/infrastructure/database"
	"github.com/janhq/gallery-api/internal/infrastructure/imaging"
	"github.com/janhq/gallery-api/internal/infrastructure/logger"
	"github.com/janhq/gallery-api/internal/infrastructure/observability"
	repo "github.com/janhq/gallery-api/internal/infrastructure/repository/media"
	"github.com/janhq/gallery-api/internal/infrastructure/storage"
	"github.com/janhq/gallery-api/internal/interfaces/httpserver"
	"github.com/janhq/gallery-api/internal/interfaces/httpserver/handlers"
)

// @title Gallery API
// @version 1.0
// @description Media gallery with cached feeds, batch uploads and album downloads
// @BasePath /
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
type Application struct {
	httpServer *httpserver.HttpServer
	log        zerolog.Logger
}

func NewApplication(httpServer *httpserver.HttpServer, log zerolog.Logger) *Application {
	return &Application{
		httpServer: httpServer,
		log:        log,
	}
}

func (a *Application) Start(ctx context.Context) error {
	return a.httpServer.Run(ctx)
}

func main() {
	loadEnvFiles()

	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	log := logger.New(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTelemetry, err := observability.Setup(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("initialize observability")
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if err := shutdownTelemetry(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("shutdown telemetry")
		}
	}()

	db, err := newGormDB(ctx, newDatabaseConfig(cfg), log)
	if err != nil {
		log.Fatal().Err(err).Msg("initialize database")
	}

	store, err := storage.New(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("initialize storage")
	}

	redisCache, err := newRedisCache(cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("initialize cache")
	}
	if redisCache != nil {
		defer func() {
			if err := redisCache.Close(); err != nil {
				log.Warn().Err(err).Msg("close redis cache")
			}
		}()
	}
	layer := newCacheLayer(cfg, redisCache, log)

	authValidator, err := auth.NewValidator(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("initialize auth")
	}

	galleryRepository := repo.NewRepository(db)
	mediaService := domain.NewService(cfg, galleryRepository, store, layer, log)
	coordinator := upload.NewCoordinator(cfg, galleryRepository, store, newRenderer(cfg), newLocker(cfg, redisCache, log), layer, log)
	streamer := archive.NewStreamer(cfg, galleryRepository, store, log)

	provider := handlers.NewProvider(cfg, mediaService, coordinator, streamer, log)
	httpServer := httpserver.New(cfg, log, provider, authValidator, newReadinessChecks(db, store, layer))
	app := NewApplication(httpServer, log)

	if err := app.Start(ctx); err != nil {
		log.Fatal().Err(err).Msg("application stopped with error")
	}

	log.Info().Msg("application exited cleanly")
}

func loadEnvFiles() {
	paths := []string{".env", "../.env"}
	for _, path := range paths {
		if _, err := os.Stat(path); err == nil {
			if err := godotenv.Overload(path); err != nil {
				fmt.Fprintf(os.Stderr, "warning: failed to load %s: %v\n", path, err)
			}
		}
	}
}

func newDatabaseConfig(cfg *config.Config) database.Config {
	return database.Config{
		DSN:             cfg.GetDatabaseWriteDSN(),
		ReadDSN:         cfg.GetDatabaseReadDSN(),
		MaxIdleConns:    cfg.DBMaxIdleConns,
		MaxOpenConns:    cfg.DBMaxOpenConns,
		ConnMaxLifetime: cfg.DBConnLifetime,
		LogLevel:        gormlogger.Warn,
	}
}

func newGormDB(ctx context.Context, cfg database.Config, log zerolog.Logger) (*gorm.DB, error) {
	db, err := database.Connect(cfg)
	if err != nil {
		return nil, err
	}
	if err := database.AutoMigrate(ctx, db, log); err != nil {
		return nil, err
	}
	return db, nil
}

// newRedisCache returns nil when no Redis URL is configured.
func newRedisCache(cfg *config.Config, log zerolog.Logger) (*cache.RedisCache, error) {
	if !cfg.CacheEnabled() {
		log.Warn().Msg("REDIS_URL not set; serving without cache")
		return nil, nil
	}
	return cache.NewRedisCache(cfg.RedisURL, cfg.CacheScanBatch, cache.BreakerSettings{
		MaxFailures: cfg.CacheBreakerMaxFailures,
		OpenTimeout: cfg.CacheBreakerOpenTimeout,
	}, log)
}

func newCacheLayer(cfg *config.Config, redisCache *cache.RedisCache, log zerolog.Logger) *cache.Layer {
	var backend cache.Backend
	if redisCache != nil {
		backend = redisCache
	}
	return cache.NewLayer(backend, cachekey.NewBuilder(cfg.CacheNamespace), cache.LayerOptions{
		OpTimeout:         cfg.CacheOpTimeout,
		InvalidateTimeout: cfg.CacheInvalidateTimeout,
		CollapseMisses:    cfg.CacheCollapseMisses,
		CollapseTimeout:   cfg.CacheCollapseTimeout,
	}, log)
}

func newLocker(cfg *config.Config, redisCache *cache.RedisCache, log zerolog.Logger) *cache.Locker {
	return cache.NewLocker(redisCache, cfg.AlbumLockTTL, log)
}

func newRenderer(cfg *config.Config) *imaging.Renderer {
	return imaging.NewRenderer(cfg.VariantJPEGQuality)
}

func newReadinessChecks(db *gorm.DB, store storage.Storage, layer *cache.Layer) httpserver.ReadinessChecks {
	return httpserver.ReadinessChecks{
		"database": func(ctx context.Context) error { return database.Ping(ctx, db) },
		"storage":  store.Health,
		"cache":    layer.HealthCheck,
	}
}
