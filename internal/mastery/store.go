package mastery

import (
	"context"
	"errors"
	"sync"
)

var (
	// ErrStoreUnavailable wraps backend I/O failures so callers can tell
	// "could not determine" apart from "never practiced".
	ErrStoreUnavailable = errors.New("mastery store unavailable")

	// ErrConflict means the stored snapshot changed since it was read.
	// The write path retries on it.
	ErrConflict = errors.New("snapshot changed concurrently")

	// ErrUpdateConflict is returned once conflict retries are exhausted.
	ErrUpdateConflict = errors.New("snapshot update conflict")
)

// Store persists snapshots keyed by (learner, topic). Get returns the zero
// Snapshot, not an error, when nothing is stored.
type Store interface {
	Get(ctx context.Context, learnerID, topicID string) (Snapshot, error)
	// Upsert writes snap unconditionally.
	Upsert(ctx context.Context, learnerID, topicID string, snap Snapshot) error
	// CompareAndSwap writes snap only if the stored snapshot still has
	// expectedAttempts attempts (0 also matches a missing row). Otherwise it
	// returns ErrConflict.
	CompareAndSwap(ctx context.Context, learnerID, topicID string, expectedAttempts int, snap Snapshot) error
	// ListByLearner returns every stored snapshot of a learner keyed by topic id.
	ListByLearner(ctx context.Context, learnerID string) (map[string]Snapshot, error)
}

// MemoryStore is an in-memory implementation of Store.
type MemoryStore struct {
	learners map[string]map[string]Snapshot
	mu       sync.RWMutex
}

// NewMemoryStore creates a new in-memory snapshot store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		learners: make(map[string]map[string]Snapshot),
	}
}

func (s *MemoryStore) Get(_ context.Context, learnerID, topicID string) (Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap, ok := s.learners[learnerID][topicID]
	if !ok {
		return Absent(), nil
	}
	return snap.Clone(), nil
}

func (s *MemoryStore) Upsert(_ context.Context, learnerID, topicID string, snap Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.put(learnerID, topicID, snap)
	return nil
}

func (s *MemoryStore) CompareAndSwap(_ context.Context, learnerID, topicID string, expectedAttempts int, snap Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	current := s.learners[learnerID][topicID]
	if current.Attempts != expectedAttempts {
		return ErrConflict
	}
	s.put(learnerID, topicID, snap)
	return nil
}

func (s *MemoryStore) ListByLearner(_ context.Context, learnerID string) (map[string]Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string]Snapshot, len(s.learners[learnerID]))
	for topicID, snap := range s.learners[learnerID] {
		out[topicID] = snap.Clone()
	}
	return out, nil
}

func (s *MemoryStore) put(learnerID, topicID string, snap Snapshot) {
	topics, ok := s.learners[learnerID]
	if !ok {
		topics = make(map[string]Snapshot)
		s.learners[learnerID] = topics
	}
	topics[topicID] = snap.Clone()
}
