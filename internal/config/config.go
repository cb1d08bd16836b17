package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v10"
)

// Config holds the environment driven configuration for the gallery service.
type Config struct {
	// Service Configuration
	ServiceName     string        `env:"SERVICE_NAME" envDefault:"gallery-api"`
	Environment     string        `env:"ENVIRONMENT" envDefault:"development"`
	HTTPPort        int           `env:"GALLERY_API_PORT" envDefault:"8290"`
	LogLevel        string        `env:"GALLERY_LOG_LEVEL" envDefault:"info"`
	EnableTracing   bool          `env:"ENABLE_TRACING" envDefault:"false"`
	OTLPEndpoint    string        `env:"OTEL_EXPORTER_OTLP_ENDPOINT" envDefault:""`
	TraceSampleRate float64       `env:"OTEL_TRACES_SAMPLE_RATE" envDefault:"1"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"10s"`

	// Database - Read/Write Split
	DBPostgresqlWriteDSN string `env:"DB_POSTGRESQL_WRITE_DSN,notEmpty"`
	DBPostgresqlRead1DSN string `env:"DB_POSTGRESQL_READ1_DSN"` // Optional read replica

	// Database Connection Pool
	DBMaxIdleConns int           `env:"DB_MAX_IDLE_CONNS" envDefault:"5"`
	DBMaxOpenConns int           `env:"DB_MAX_OPEN_CONNS" envDefault:"15"`
	DBConnLifetime time.Duration `env:"DB_CONN_MAX_LIFETIME" envDefault:"30m"`

	// Cache
	RedisURL                string        `env:"REDIS_URL"` // comma separated for cluster; empty disables caching
	CacheNamespace          string        `env:"CACHE_NAMESPACE" envDefault:"gallery"`
	CacheFeedTTL            time.Duration `env:"CACHE_FEED_TTL" envDefault:"60s"`
	CacheDetailTTL          time.Duration `env:"CACHE_DETAIL_TTL" envDefault:"1h"`
	CacheProfileTTL         time.Duration `env:"CACHE_PROFILE_TTL" envDefault:"1h"`
	CacheOpTimeout          time.Duration `env:"CACHE_OP_TIMEOUT" envDefault:"150ms"`
	CacheInvalidateTimeout  time.Duration `env:"CACHE_INVALIDATE_TIMEOUT" envDefault:"2s"`
	CacheScanBatch          int64         `env:"CACHE_SCAN_BATCH" envDefault:"500"`
	CacheCollapseMisses     bool          `env:"CACHE_COLLAPSE_MISSES" envDefault:"true"`
	CacheCollapseTimeout    time.Duration `env:"CACHE_COLLAPSE_TIMEOUT" envDefault:"30s"`
	CacheBreakerMaxFailures uint32        `env:"CACHE_BREAKER_MAX_FAILURES" envDefault:"5"`
	CacheBreakerOpenTimeout time.Duration `env:"CACHE_BREAKER_OPEN_TIMEOUT" envDefault:"10s"`
	AlbumLockTTL            time.Duration `env:"ALBUM_LOCK_TTL" envDefault:"30s"`

	// Storage Backend Selection
	StorageBackend string `env:"GALLERY_STORAGE_BACKEND" envDefault:"s3"` // Options: "s3" or "local"

	// Local Storage Configuration
	LocalStoragePath    string `env:"GALLERY_LOCAL_STORAGE_PATH"`
	LocalStorageBaseURL string `env:"GALLERY_LOCAL_STORAGE_BASE_URL"`

	// S3 Storage Configuration
	S3Endpoint          string        `env:"GALLERY_S3_ENDPOINT"`
	S3PublicEndpoint    string        `env:"GALLERY_S3_PUBLIC_ENDPOINT"`
	S3Region            string        `env:"GALLERY_S3_REGION" envDefault:"us-west-2"`
	S3Bucket            string        `env:"GALLERY_S3_BUCKET"`
	S3AccessKeyID       string        `env:"GALLERY_S3_ACCESS_KEY_ID"`
	S3SecretKey         string        `env:"GALLERY_S3_SECRET_ACCESS_KEY"`
	S3UsePathStyle      bool          `env:"GALLERY_S3_USE_PATH_STYLE" envDefault:"true"`
	S3PresignTTL        time.Duration `env:"GALLERY_S3_PRESIGN_TTL" envDefault:"15m"`
	S3PartSize          int64         `env:"GALLERY_S3_PART_SIZE" envDefault:"8388608"`
	S3UploadConcurrency int           `env:"GALLERY_S3_PART_CONCURRENCY" envDefault:"4"`
	S3RetryMaxAttempts  int           `env:"GALLERY_S3_RETRY_MAX_ATTEMPTS" envDefault:"4"`

	// Upload constraints
	UploadMaxFiles      int           `env:"UPLOAD_MAX_FILES" envDefault:"20"`
	UploadMaxVideos     int           `env:"UPLOAD_MAX_VIDEOS_PER_BATCH" envDefault:"1"`
	UploadMaxBytes      int64         `env:"UPLOAD_MAX_BYTES" envDefault:"104857600"`
	UploadMaxMemory     int64         `env:"UPLOAD_MAX_MEMORY" envDefault:"33554432"`
	UploadAllowedMIMEs  []string      `env:"UPLOAD_ALLOWED_MIMES" envSeparator:"," envDefault:"image/jpeg,image/png,image/webp,image/gif,video/mp4,video/quicktime,video/webm"`
	UploadConcurrency   int           `env:"UPLOAD_CONCURRENCY" envDefault:"8"`
	UploadTimeout       time.Duration `env:"UPLOAD_TIMEOUT" envDefault:"10m"`
	CompensationTimeout time.Duration `env:"UPLOAD_COMPENSATION_TIMEOUT" envDefault:"30s"`
	VariantSmallWidth   int           `env:"VARIANT_SMALL_WIDTH" envDefault:"320"`
	VariantMediumWidth  int           `env:"VARIANT_MEDIUM_WIDTH" envDefault:"1080"`
	VariantJPEGQuality  int           `env:"VARIANT_JPEG_QUALITY" envDefault:"85"`

	// Feed
	FeedPageSize int `env:"FEED_PAGE_SIZE" envDefault:"24"`

	// Archive
	ArchiveCopyBufferBytes int `env:"ARCHIVE_COPY_BUFFER_BYTES" envDefault:"65536"`

	// Authentication
	AuthEnabled  bool   `env:"AUTH_ENABLED" envDefault:"false"`
	AuthIssuer   string `env:"AUTH_ISSUER"`
	AuthAudience string `env:"AUTH_AUDIENCE"`
	AuthJWKSURL  string `env:"AUTH_JWKS_URL"`
}

// Load parses environment variables into Config.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env config: %w", err)
	}
	if err := cfg.normalize(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) normalize() error {
	c.S3Bucket = strings.TrimSpace(c.S3Bucket)
	c.S3AccessKeyID = strings.TrimSpace(c.S3AccessKeyID)
	c.S3SecretKey = strings.TrimSpace(c.S3SecretKey)
	c.S3Endpoint = strings.TrimSpace(c.S3Endpoint)
	c.S3PublicEndpoint = strings.TrimSpace(c.S3PublicEndpoint)
	c.RedisURL = strings.TrimSpace(c.RedisURL)
	c.CacheNamespace = strings.Trim(strings.TrimSpace(c.CacheNamespace), ":")

	allowed := c.UploadAllowedMIMEs[:0]
	for _, mime := range c.UploadAllowedMIMEs {
		mime = strings.ToLower(strings.TrimSpace(mime))
		if mime != "" {
			allowed = append(allowed, mime)
		}
	}
	c.UploadAllowedMIMEs = allowed

	if c.UploadMaxFiles <= 0 {
		c.UploadMaxFiles = 20
	}
	if c.UploadMaxVideos < 0 {
		c.UploadMaxVideos = 0
	}
	if c.UploadConcurrency <= 0 {
		c.UploadConcurrency = 1
	}
	if c.FeedPageSize <= 0 {
		c.FeedPageSize = 24
	}
	if c.ArchiveCopyBufferBytes <= 0 {
		c.ArchiveCopyBufferBytes = 64 * 1024
	}
	if c.CacheOpTimeout <= 0 {
		return fmt.Errorf("CACHE_OP_TIMEOUT must be positive")
	}
	if c.CacheFeedTTL <= 0 || c.CacheDetailTTL <= 0 || c.CacheProfileTTL <= 0 {
		return fmt.Errorf("cache TTLs must be positive")
	}
	if c.AuthEnabled {
		if strings.TrimSpace(c.AuthIssuer) == "" {
			return fmt.Errorf("AUTH_ISSUER is required when AUTH_ENABLED is true")
		}
		if strings.TrimSpace(c.AuthJWKSURL) == "" {
			return fmt.Errorf("AUTH_JWKS_URL is required when AUTH_ENABLED is true")
		}
	}
	return nil
}

// GetDatabaseWriteDSN returns the write database connection string.
func (c *Config) GetDatabaseWriteDSN() string {
	return c.DBPostgresqlWriteDSN
}

// GetDatabaseReadDSN returns the read replica DSN, falling back to the write DSN.
func (c *Config) GetDatabaseReadDSN() string {
	if c.DBPostgresqlRead1DSN != "" {
		return c.DBPostgresqlRead1DSN
	}
	return c.GetDatabaseWriteDSN()
}

// Addr returns the HTTP listen address.
func (c *Config) Addr() string {
	return fmt.Sprintf(":%d", c.HTTPPort)
}

// IsLocalStorage returns true if local storage backend is configured.
func (c *Config) IsLocalStorage() bool {
	return strings.ToLower(strings.TrimSpace(c.StorageBackend)) == "local"
}

// CacheEnabled reports whether a Redis backend is configured.
func (c *Config) CacheEnabled() bool {
	return c.RedisURL != ""
}
