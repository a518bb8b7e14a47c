package mastery

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/p-n-ai/pai-mastery/internal/platform/cache"
)

// liveCache connects to LEARN_TEST_CACHE_URL, skipping when it is unset or unreachable.
func liveCache(t *testing.T) *cache.Cache {
	t.Helper()
	url := os.Getenv("LEARN_TEST_CACHE_URL")
	if url == "" {
		t.Skip("LEARN_TEST_CACHE_URL not set")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	c, err := cache.New(ctx, url)
	if err != nil {
		t.Skipf("cache unreachable: %v", err)
	}
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func testRedisStore(t *testing.T, c *cache.Cache) *RedisStore {
	t.Helper()
	// A fresh prefix keeps runs isolated without FLUSHDB.
	s, err := NewRedisStore(c.Client, "mastery-test:"+uuid.NewString()+":")
	if err != nil {
		t.Fatalf("NewRedisStore() error = %v", err)
	}
	return s
}

func TestRedisStore_Contract(t *testing.T) {
	c := liveCache(t)
	storeContract(t, func(t *testing.T) Store { return testRedisStore(t, c) })
}

func TestRedisStore_ConcurrentRecordersWithRedisLocks(t *testing.T) {
	c := liveCache(t)
	store := testRedisStore(t, c)

	newProc := func() *Recorder {
		r, err := NewRecorder(RecorderConfig{
			Topics:     testGraph(t),
			Store:      store,
			Locker:     NewRedisLocker(c, time.Second),
			MaxRetries: 100,
		})
		if err != nil {
			t.Fatalf("NewRecorder() error = %v", err)
		}
		return r
	}

	const n = 20
	recordConcurrently(t, []*Recorder{newProc(), newProc()}, n, func(i int) Evidence {
		return Evidence{LearnerID: "rd", TopicID: "F1-02", TouchedSkills: []string{"C"}, IsCorrect: i%2 == 0}
	})

	got, err := store.Get(t.Context(), "rd", "F1-02")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.Attempts != n || got.Correct != n/2 {
		t.Errorf("Attempts/Correct = %d/%d, want %d/%d", got.Attempts, got.Correct, n, n/2)
	}
}

func TestNewRedisStore_NilClient(t *testing.T) {
	if _, err := NewRedisStore(nil, ""); err == nil {
		t.Error("NewRedisStore(nil) should fail")
	}
}
