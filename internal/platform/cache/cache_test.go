package cache

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"
)

func TestParseURL(t *testing.T) {
	tests := []struct {
		name    string
		url     string
		wantErr bool
	}{
		{"valid-redis", "redis://localhost:6379", false},
		{"valid-with-db", "redis://localhost:6379/0", false},
		{"empty", "", true},
		{"wrong-scheme", "http://localhost:6379", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseURL(tt.url)
			if (err != nil) != tt.wantErr {
				t.Errorf("ParseURL() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestNew_UnreachableHost(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping unreachable host test in short mode")
	}

	ctx := t.Context()
	_, err := New(ctx, "redis://localhost:59999")
	if err == nil {
		t.Fatal("New() should return error for unreachable host")
	}
}

// liveCache connects to LEARN_TEST_CACHE_URL, skipping when it is unset or unreachable.
func liveCache(t *testing.T) *Cache {
	t.Helper()
	url := os.Getenv("LEARN_TEST_CACHE_URL")
	if url == "" {
		t.Skip("LEARN_TEST_CACHE_URL not set")
	}
	ctx, cancel := context.WithTimeout(t.Context(), 2*time.Second)
	defer cancel()
	c, err := New(ctx, url)
	if err != nil {
		t.Skipf("cache unreachable: %v", err)
	}
	t.Cleanup(func() { c.Close() })
	return c
}

func TestLease_Exclusive(t *testing.T) {
	c := liveCache(t)
	ctx := t.Context()
	key := "test:lock:" + t.Name()

	lease, ok, err := c.TryLock(ctx, key, time.Second)
	if err != nil || !ok {
		t.Fatalf("TryLock() = %v, %v; want acquired", ok, err)
	}

	if _, ok, err := c.TryLock(ctx, key, time.Second); err != nil || ok {
		t.Fatalf("second TryLock() = %v, %v; want not acquired", ok, err)
	}

	if err := lease.Release(ctx); err != nil {
		t.Fatalf("Release() error = %v", err)
	}
	if err := lease.Release(ctx); !errors.Is(err, ErrLeaseLost) {
		t.Errorf("second Release() error = %v, want ErrLeaseLost", err)
	}
}

func TestLock_WaitsForRelease(t *testing.T) {
	c := liveCache(t)
	ctx := t.Context()
	key := "test:lock:" + t.Name()

	first, err := c.Lock(ctx, key, 5*time.Second, 0)
	if err != nil {
		t.Fatalf("Lock() error = %v", err)
	}
	go func() {
		time.Sleep(50 * time.Millisecond)
		first.Release(context.Background())
	}()

	second, err := c.Lock(ctx, key, 5*time.Second, 10*time.Millisecond)
	if err != nil {
		t.Fatalf("Lock() after release error = %v", err)
	}
	second.Release(ctx)
}

func TestLock_ContextDone(t *testing.T) {
	c := liveCache(t)
	key := "test:lock:" + t.Name()

	held, err := c.Lock(t.Context(), key, 5*time.Second, 0)
	if err != nil {
		t.Fatalf("Lock() error = %v", err)
	}
	defer held.Release(context.Background())

	ctx, cancel := context.WithTimeout(t.Context(), 60*time.Millisecond)
	defer cancel()
	if _, err := c.Lock(ctx, key, time.Second, 10*time.Millisecond); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Lock() error = %v, want DeadlineExceeded", err)
	}
}
