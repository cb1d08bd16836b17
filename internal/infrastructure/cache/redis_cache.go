package cache

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-redsync/redsync/v4"
	"github.com/go-redsync/redsync/v4/redis/goredis/v9"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/sony/gobreaker"

	"github.com/janhq/gallery-api/internal/utils/platformerrors"
)

// ErrMiss is returned by Backend.Get when the key does not exist.
var ErrMiss = errors.New("cache miss")

// Backend is the key-value store behind the cache layer.
type Backend interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	DeletePattern(ctx context.Context, pattern string) (int64, error)
	HealthCheck(ctx context.Context) error
}

// BreakerSettings configures the circuit breaker guarding the Redis client.
type BreakerSettings struct {
	MaxFailures uint32
	OpenTimeout time.Duration
}

// RedisCache is a Backend over a Redis (or Redis Cluster) deployment.
type RedisCache struct {
	client    redis.UniversalClient
	rs        *redsync.Redsync
	breaker   *gobreaker.CircuitBreaker
	scanBatch int64
	log       zerolog.Logger
}

// NewRedisCache connects to the comma separated Redis URL(s). A failed initial ping
// is logged, not returned: the cache layer degrades while Redis is unavailable.
func NewRedisCache(redisURL string, scanBatch int64, breaker BreakerSettings, log zerolog.Logger) (*RedisCache, error) {
	if redisURL == "" {
		return nil, fmt.Errorf("Redis URL must be provided")
	}

	opts, err := buildUniversalOptions(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	logger := log.With().Str("component", "redis-cache").Logger()
	if len(opts.Addrs) > 1 && opts.DB != 0 {
		logger.Warn().Msg("Ignoring non-zero DB when using Redis Cluster configuration")
		opts.DB = 0
	}

	client := redis.NewUniversalClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		logger.Warn().Err(err).Msg("Redis not reachable at startup; cache reads will fall through")
	} else {
		logger.Info().Msg("Successfully connected to Redis cache")
	}

	return NewRedisCacheFromClient(client, scanBatch, breaker, logger), nil
}

// NewRedisCacheFromClient wraps an existing client.
func NewRedisCacheFromClient(client redis.UniversalClient, scanBatch int64, settings BreakerSettings, log zerolog.Logger) *RedisCache {
	if scanBatch <= 0 {
		scanBatch = 500
	}
	if settings.MaxFailures == 0 {
		settings.MaxFailures = 5
	}
	if settings.OpenTimeout <= 0 {
		settings.OpenTimeout = 10 * time.Second
	}

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    "redis-cache",
		Timeout: settings.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= settings.MaxFailures
		},
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, ErrMiss)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).Msg("cache breaker state changed")
		},
	})

	return &RedisCache{
		client:    client,
		rs:        redsync.New(goredis.NewPool(client)),
		breaker:   breaker,
		scanBatch: scanBatch,
		log:       log,
	}
}

func buildUniversalOptions(raw string) (*redis.UniversalOptions, error) {
	parts := strings.Split(raw, ",")
	opts := &redis.UniversalOptions{}

	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}

		if strings.Contains(part, "://") {
			parsed, err := redis.ParseURL(part)
			if err != nil {
				return nil, err
			}

			opts.Addrs = append(opts.Addrs, parsed.Addr)

			if opts.Username == "" {
				opts.Username = parsed.Username
			}
			if opts.Password == "" {
				opts.Password = parsed.Password
			}
			if opts.DB == 0 {
				opts.DB = parsed.DB
			}
			if opts.TLSConfig == nil {
				opts.TLSConfig = parsed.TLSConfig
			}
			if opts.ReadTimeout == 0 {
				opts.ReadTimeout = parsed.ReadTimeout
			}
			if opts.WriteTimeout == 0 {
				opts.WriteTimeout = parsed.WriteTimeout
			}
			if opts.DialTimeout == 0 {
				opts.DialTimeout = parsed.DialTimeout
			}
			if opts.PoolSize == 0 {
				opts.PoolSize = parsed.PoolSize
			}
		} else {
			opts.Addrs = append(opts.Addrs, part)
		}
	}

	if len(opts.Addrs) == 0 {
		return nil, fmt.Errorf("no Redis addresses provided")
	}

	return opts, nil
}

// Get returns the raw value stored under key, or ErrMiss.
func (r *RedisCache) Get(ctx context.Context, key string) ([]byte, error) {
	out, err := r.breaker.Execute(func() (interface{}, error) {
		val, err := r.client.Get(ctx, key).Bytes()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				return nil, ErrMiss
			}
			return nil, fmt.Errorf("failed to get value from cache: %w", err)
		}
		return val, nil
	})
	if err != nil {
		if errors.Is(err, ErrMiss) {
			return nil, ErrMiss
		}
		return nil, backendError(ctx, "get", err)
	}
	return out.([]byte), nil
}

// Set stores value under key with the given expiration.
func (r *RedisCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	_, err := r.breaker.Execute(func() (interface{}, error) {
		return nil, r.client.Set(ctx, key, value, ttl).Err()
	})
	if err != nil {
		return backendError(ctx, "set", err)
	}
	return nil
}

// DeletePattern walks the keyspace with SCAN and UNLINKs every match batch by batch.
// SCAN is incremental and UNLINK reclaims memory off the main thread, so concurrent
// GET/SET traffic is not stalled by large invalidations.
func (r *RedisCache) DeletePattern(ctx context.Context, pattern string) (int64, error) {
	out, err := r.breaker.Execute(func() (interface{}, error) {
		var (
			cursor  uint64
			removed int64
		)
		for {
			keys, next, err := r.client.Scan(ctx, cursor, pattern, r.scanBatch).Result()
			if err != nil {
				return removed, fmt.Errorf("failed to scan keys: %w", err)
			}
			if len(keys) > 0 {
				pipe := r.client.Pipeline()
				for _, k := range keys {
					pipe.Unlink(ctx, k)
				}
				if _, err := pipe.Exec(ctx); err != nil {
					return removed, fmt.Errorf("failed to unlink keys: %w", err)
				}
				removed += int64(len(keys))
			}
			if next == 0 {
				return removed, nil
			}
			cursor = next
		}
	})
	removed, _ := out.(int64)
	if err != nil {
		return removed, backendError(ctx, "delete pattern", err)
	}
	return removed, nil
}

// HealthCheck pings Redis, bypassing the breaker.
func (r *RedisCache) HealthCheck(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

// Close closes the underlying client.
func (r *RedisCache) Close() error {
	return r.client.Close()
}

// backendError tags a Redis failure. The layer logs it and degrades; it is never
// returned to a caller of GetOrCompute.
func backendError(ctx context.Context, op string, err error) error {
	return platformerrors.NewErrorWithContext(ctx, platformerrors.LayerCache, platformerrors.ErrorTypeCache,
		"cache backend unavailable", err, "7e1f2a3b-4c5d-4e6f-8a9b-0c1d2e3f4a5b", map[string]any{"op": op})
}

// NewMutex returns a distributed mutex named lockName.
func (r *RedisCache) NewMutex(lockName string, ttl time.Duration) *redsync.Mutex {
	return r.rs.NewMutex(lockName, redsync.WithExpiry(ttl), redsync.WithTries(64))
}
