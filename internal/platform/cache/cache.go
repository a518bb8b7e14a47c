// Package cache provides a Dragonfly/Redis client wrapper with lease locks.
package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ErrLeaseLost is returned by Release when the lease expired or was taken over.
var ErrLeaseLost = errors.New("lease no longer held")

// releaseScript deletes the lock only if it still carries our token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// Cache wraps a Redis/Dragonfly client.
type Cache struct {
	Client *redis.Client
}

// ParseURL validates a Redis connection URL.
func ParseURL(url string) (*redis.Options, error) {
	if url == "" {
		return nil, fmt.Errorf("cache URL is empty")
	}
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid cache URL: %w", err)
	}
	return opts, nil
}

// New creates a new cache client.
func New(ctx context.Context, url string) (*Cache, error) {
	opts, err := ParseURL(url)
	if err != nil {
		return nil, err
	}

	opts.DialTimeout = 5 * time.Second
	opts.ReadTimeout = 3 * time.Second
	opts.WriteTimeout = 3 * time.Second

	client := redis.NewClient(opts)

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("pinging cache: %w", err)
	}

	return &Cache{Client: client}, nil
}

// Close shuts down the cache client.
func (c *Cache) Close() error {
	return c.Client.Close()
}

// HealthCheck verifies the cache connection is alive.
func (c *Cache) HealthCheck(ctx context.Context) error {
	return c.Client.Ping(ctx).Err()
}

// Lease is a held lock on one key.
type Lease struct {
	client *redis.Client
	key    string
	token  string
}

// TryLock attempts to take key for ttl once. ok is false if someone else holds it.
func (c *Cache) TryLock(ctx context.Context, key string, ttl time.Duration) (*Lease, bool, error) {
	token := uuid.NewString()
	ok, err := c.Client.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		return nil, false, fmt.Errorf("acquire lock %q: %w", key, err)
	}
	if !ok {
		return nil, false, nil
	}
	return &Lease{client: c.Client, key: key, token: token}, true, nil
}

// Lock polls TryLock every retry interval until it succeeds or ctx is done.
func (c *Cache) Lock(ctx context.Context, key string, ttl, retry time.Duration) (*Lease, error) {
	if retry <= 0 {
		retry = 25 * time.Millisecond
	}
	ticker := time.NewTicker(retry)
	defer ticker.Stop()

	for {
		lease, ok, err := c.TryLock(ctx, key, ttl)
		if err != nil {
			return nil, err
		}
		if ok {
			return lease, nil
		}
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("acquire lock %q: %w", key, ctx.Err())
		case <-ticker.C:
		}
	}
}

// Release drops the lease if it is still ours.
func (l *Lease) Release(ctx context.Context) error {
	n, err := releaseScript.Run(ctx, l.client, []string{l.key}, l.token).Int()
	if err != nil {
		return fmt.Errorf("release lock %q: %w", l.key, err)
	}
	if n == 0 {
		return ErrLeaseLost
	}
	return nil
}
