package cache

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Locker serializes work on a named resource across replicas.
type Locker struct {
	redis *RedisCache
	ttl   time.Duration
	log   zerolog.Logger

	mu    sync.Mutex
	local map[string]*sync.Mutex
}

// NewLocker returns a redsync backed Locker, or a process-local one when redis is nil.
func NewLocker(redis *RedisCache, ttl time.Duration, log zerolog.Logger) *Locker {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &Locker{
		redis: redis,
		ttl:   ttl,
		log:   log.With().Str("component", "locker").Logger(),
		local: make(map[string]*sync.Mutex),
	}
}

// Lock acquires the lock called name and returns its release function.
func (l *Locker) Lock(ctx context.Context, name string) (func(), error) {
	if l.redis == nil {
		m := l.localMutex(name)
		m.Lock()
		return m.Unlock, nil
	}

	mutex := l.redis.NewMutex("lock:"+name, l.ttl)
	if err := mutex.LockContext(ctx); err != nil {
		return nil, fmt.Errorf("acquire lock %s: %w", name, err)
	}

	return func() {
		unlockCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if ok, err := mutex.UnlockContext(unlockCtx); !ok || err != nil {
			l.log.Warn().Err(err).Str("lock", name).Msg("failed to release lock")
		}
	}, nil
}

func (l *Locker) localMutex(name string) *sync.Mutex {
	l.mu.Lock()
	defer l.mu.Unlock()
	m, ok := l.local[name]
	if !ok {
		m = &sync.Mutex{}
		l.local[name] = m
	}
	return m
}
