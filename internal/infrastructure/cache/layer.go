package cache

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"reflect"
	"time"

	"github.com/rs/zerolog"
	"github.com/vmihailenco/msgpack/v5"
	"golang.org/x/sync/singleflight"

	"github.com/janhq/gallery-api/internal/domain/cachekey"
	"github.com/janhq/gallery-api/internal/infrastructure/metrics"
)

// Emptier is implemented by projections that know when they carry no data.
type Emptier interface {
	IsEmpty() bool
}

// LayerOptions tunes the cache-aside layer.
type LayerOptions struct {
	OpTimeout         time.Duration
	InvalidateTimeout time.Duration
	CollapseMisses    bool
	CollapseTimeout   time.Duration
}

// Layer is a cache-aside accelerator in front of the relational store. A nil Layer
// or one without a backend computes every value directly.
type Layer struct {
	backend           Backend
	keys              cachekey.Builder
	opTimeout         time.Duration
	invalidateTimeout time.Duration
	collapse          bool
	collapseTimeout   time.Duration
	group             singleflight.Group
	log               zerolog.Logger
}

// NewLayer wraps backend. backend may be nil to disable caching.
func NewLayer(backend Backend, keys cachekey.Builder, opts LayerOptions, log zerolog.Logger) *Layer {
	if opts.OpTimeout <= 0 {
		opts.OpTimeout = 150 * time.Millisecond
	}
	if opts.CollapseTimeout <= 0 {
		opts.CollapseTimeout = 30 * time.Second
	}
	if opts.InvalidateTimeout <= 0 {
		opts.InvalidateTimeout = 2 * time.Second
	}
	return &Layer{
		backend:           backend,
		keys:              keys,
		opTimeout:         opts.OpTimeout,
		invalidateTimeout: opts.InvalidateTimeout,
		collapse:          opts.CollapseMisses,
		collapseTimeout:   opts.CollapseTimeout,
		log:               log.With().Str("component", "cache-layer").Logger(),
	}
}

// Keys returns the key builder of the layer.
func (l *Layer) Keys() cachekey.Builder {
	return l.keys
}

func (l *Layer) enabled() bool {
	return l != nil && l.backend != nil
}

// GetOrCompute returns the cached value under key, or calls compute, caches a
// non-empty result for ttl and returns it. Backend failures and timeouts degrade to
// compute; they are never returned. Errors from compute are returned as is and nothing
// is cached.
func GetOrCompute[T any](ctx context.Context, l *Layer, key string, ttl time.Duration, compute func(context.Context) (T, error)) (T, error) {
	if !l.enabled() {
		return compute(ctx)
	}

	family := l.keys.Family(key)

	cached, ok := lookup[T](ctx, l, key, family)
	if ok {
		return cached, nil
	}

	load := func(ctx context.Context) (T, error) {
		value, err := compute(ctx)
		if err != nil {
			return value, err
		}
		if !isEmpty(value) {
			l.store(ctx, key, value, ttl)
		}
		return value, nil
	}

	if !l.collapse {
		return load(ctx)
	}

	// The shared load outlives any single caller; each caller waits on its own ctx.
	ch := l.group.DoChan(key, func() (interface{}, error) {
		loadCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), l.collapseTimeout)
		defer cancel()
		return load(loadCtx)
	})

	var zero T
	select {
	case <-ctx.Done():
		return zero, ctx.Err()
	case res := <-ch:
		value, ok := res.Val.(T)
		if !ok {
			return zero, res.Err
		}
		return value, res.Err
	}
}

func lookup[T any](ctx context.Context, l *Layer, key, family string) (T, bool) {
	var zero T

	getCtx, cancel := context.WithTimeout(ctx, l.opTimeout)
	defer cancel()

	raw, err := l.backend.Get(getCtx, key)
	if err != nil {
		if errors.Is(err, ErrMiss) {
			metrics.RecordCacheLookup(family, "miss")
		} else {
			metrics.RecordCacheLookup(family, "error")
			l.log.Debug().Err(err).Str("key", key).Msg("cache get failed; computing directly")
		}
		return zero, false
	}

	var value T
	if err := decode(raw, &value); err != nil {
		metrics.RecordCacheLookup(family, "error")
		l.log.Warn().Err(err).Str("key", key).Msg("discarding undecodable cache entry")
		return zero, false
	}
	metrics.RecordCacheLookup(family, "hit")
	return value, true
}

func (l *Layer) store(ctx context.Context, key string, value any, ttl time.Duration) {
	raw, err := encode(value)
	if err != nil {
		l.log.Warn().Err(err).Str("key", key).Msg("failed to encode cache entry")
		return
	}

	setCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), l.opTimeout)
	defer cancel()

	if err := l.backend.Set(setCtx, key, raw, ttl); err != nil {
		l.log.Debug().Err(err).Str("key", key).Msg("cache set failed")
	}
}

// Invalidate removes every key matching each pattern. Failures are logged, never
// returned; invalidation runs to completion even if ctx is cancelled, bounded by the
// invalidate timeout.
func (l *Layer) Invalidate(ctx context.Context, patterns ...string) {
	if !l.enabled() {
		return
	}

	for _, pattern := range patterns {
		if pattern == "" {
			continue
		}
		delCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), l.invalidateTimeout)
		removed, err := l.backend.DeletePattern(delCtx, pattern)
		cancel()

		metrics.RecordInvalidation(removed)
		if err != nil {
			l.log.Warn().Err(err).Str("pattern", pattern).Int64("removed", removed).Msg("cache invalidation incomplete")
			continue
		}
		l.log.Debug().Str("pattern", pattern).Int64("removed", removed).Msg("cache invalidated")
	}
}

// HealthCheck reports backend reachability. A disabled layer is always healthy.
func (l *Layer) HealthCheck(ctx context.Context) error {
	if !l.enabled() {
		return nil
	}
	return l.backend.HealthCheck(ctx)
}

func encode(value any) ([]byte, error) {
	var buf bytes.Buffer
	enc := msgpack.NewEncoder(&buf)
	enc.SetCustomStructTag("json")
	if err := enc.Encode(value); err != nil {
		return nil, fmt.Errorf("encode cache value: %w", err)
	}
	return buf.Bytes(), nil
}

func decode(raw []byte, out any) error {
	dec := msgpack.NewDecoder(bytes.NewReader(raw))
	dec.SetCustomStructTag("json")
	if err := dec.Decode(out); err != nil {
		return fmt.Errorf("decode cache value: %w", err)
	}
	return nil
}

// isEmpty reports whether value must not be cached: nil, empty collections, empty
// strings, zero values and projections whose IsEmpty returns true.
func isEmpty(value any) bool {
	if value == nil {
		return true
	}
	rv := reflect.ValueOf(value)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Interface:
		if rv.IsNil() {
			return true
		}
	case reflect.Slice, reflect.Map:
		if rv.Len() == 0 {
			return true
		}
	case reflect.String:
		return rv.Len() == 0
	}
	if e, ok := value.(Emptier); ok {
		return e.IsEmpty()
	}
	return rv.IsZero()
}
