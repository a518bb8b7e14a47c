package mastery

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/p-n-ai/pai-mastery/internal/platform/cache"
)

// Locker serializes evidence application per (learner, topic) key.
type Locker interface {
	Lock(ctx context.Context, learnerID, topicID string) (unlock func(), err error)
}

// LocalLocker is an in-process keyed mutex. Entries are freed when their last
// holder or waiter unlocks.
type LocalLocker struct {
	mu    sync.Mutex
	locks map[lockKey]*keyLock
}

type lockKey struct {
	learnerID string
	topicID   string
}

type keyLock struct {
	ch   chan struct{} // buffered(1); holding the token means holding the lock
	refs int
}

// NewLocalLocker creates an in-process locker.
func NewLocalLocker() *LocalLocker {
	return &LocalLocker{locks: make(map[lockKey]*keyLock)}
}

func (l *LocalLocker) Lock(ctx context.Context, learnerID, topicID string) (func(), error) {
	key := lockKey{learnerID: learnerID, topicID: topicID}

	l.mu.Lock()
	kl, ok := l.locks[key]
	if !ok {
		kl = &keyLock{ch: make(chan struct{}, 1)}
		l.locks[key] = kl
	}
	kl.refs++
	l.mu.Unlock()

	select {
	case kl.ch <- struct{}{}:
	case <-ctx.Done():
		l.release(key, kl, false)
		return nil, ctx.Err()
	}

	var once sync.Once
	return func() {
		once.Do(func() { l.release(key, kl, true) })
	}, nil
}

func (l *LocalLocker) release(key lockKey, kl *keyLock, held bool) {
	if held {
		<-kl.ch
	}
	l.mu.Lock()
	kl.refs--
	if kl.refs == 0 {
		delete(l.locks, key)
	}
	l.mu.Unlock()
}

// size returns the number of live key entries.
func (l *LocalLocker) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}

// RedisLocker serializes across processes with a Redis lease per key.
type RedisLocker struct {
	cache  *cache.Cache
	ttl    time.Duration
	prefix string
}

// NewRedisLocker creates a distributed locker. The ttl bounds how long a
// crashed holder can block a key.
func NewRedisLocker(c *cache.Cache, ttl time.Duration) *RedisLocker {
	if ttl <= 0 {
		ttl = 5 * time.Second
	}
	return &RedisLocker{cache: c, ttl: ttl, prefix: "mastery:lock:"}
}

func (l *RedisLocker) Lock(ctx context.Context, learnerID, topicID string) (func(), error) {
	key := l.prefix + "{" + learnerID + "}:" + topicID
	lease, err := l.cache.Lock(ctx, key, l.ttl, 0)
	if err != nil {
		return nil, err
	}
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		if err := lease.Release(ctx); err != nil {
			slog.Warn("failed to release evidence lock", "key", key, "error", err)
		}
	}, nil
}
