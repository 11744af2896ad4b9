package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// UnlockFunc releases a distributed lock.
type UnlockFunc func(ctx context.Context) error

// DistributedLocker serialises access to a key across processes.
type DistributedLocker interface {
	Lock(ctx context.Context, key string, ttl time.Duration) (UnlockFunc, error)
}

type lockEntry struct {
	mu   sync.Mutex
	refs int
}

// Locker hands out one mutex per key and forgets it once nobody holds or
// waits for it, so idle users cost nothing.
type Locker struct {
	mu    sync.Mutex
	locks map[string]*lockEntry

	distributed DistributedLocker
	ttl         time.Duration
	logger      *zap.Logger
}

type LockerOption func(*Locker)

// WithDistributedLocker additionally takes a cross-process lock for ttl.
// A non-positive ttl keeps the default.
func WithDistributedLocker(locker DistributedLocker, ttl time.Duration) LockerOption {
	return func(l *Locker) {
		l.distributed = locker
		if ttl > 0 {
			l.ttl = ttl
		}
	}
}

func WithLockerLogger(logger *zap.Logger) LockerOption {
	return func(l *Locker) {
		l.logger = logger
	}
}

func NewLocker(opts ...LockerOption) *Locker {
	l := &Locker{
		locks:  make(map[string]*lockEntry),
		ttl:    30 * time.Second,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

func (l *Locker) acquire(key string) *lockEntry {
	l.mu.Lock()
	defer l.mu.Unlock()

	entry, exists := l.locks[key]
	if !exists {
		entry = &lockEntry{}
		l.locks[key] = entry
	}
	entry.refs++
	return entry
}

func (l *Locker) release(key string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	entry, exists := l.locks[key]
	if !exists {
		return
	}
	entry.refs--
	if entry.refs <= 0 {
		delete(l.locks, key)
	}
}

// WithLock runs fn while holding the lock of key.
func (l *Locker) WithLock(ctx context.Context, key string, fn func(context.Context) error) error {
	entry := l.acquire(key)
	entry.mu.Lock()
	defer func() {
		entry.mu.Unlock()
		l.release(key)
	}()

	if l.distributed != nil {
		unlock, err := l.distributed.Lock(ctx, key, l.ttl)
		if err != nil {
			return fmt.Errorf("failed to acquire distributed lock: %w", err)
		}
		defer func() {
			if err := unlock(context.WithoutCancel(ctx)); err != nil {
				l.logger.Warn("failed to release distributed lock, it will expire",
					zap.String("key", key),
					zap.Error(err),
				)
			}
		}()
	}

	return fn(ctx)
}

// held reports how many goroutines hold or wait for key.
func (l *Locker) held(key string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	if entry, ok := l.locks[key]; ok {
		return entry.refs
	}
	return 0
}
