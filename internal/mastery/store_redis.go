package mastery

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// RedisStore is a Redis/Dragonfly-backed Store. All snapshots of a learner
// live in one hash, keyed by topic id, so ListByLearner is one HGETALL.
type RedisStore struct {
	client *redis.Client
	prefix string
}

// NewRedisStore creates a Redis-backed snapshot store. Keys are prefix + learner id.
func NewRedisStore(client *redis.Client, prefix string) (*RedisStore, error) {
	if client == nil {
		return nil, fmt.Errorf("redis client is nil")
	}
	if prefix == "" {
		prefix = "mastery:"
	}
	return &RedisStore{client: client, prefix: prefix}, nil
}

// key wraps the learner id in a hash tag so a cluster keeps it on one slot.
func (s *RedisStore) key(learnerID string) string {
	return s.prefix + "{" + learnerID + "}"
}

func (s *RedisStore) Get(ctx context.Context, learnerID, topicID string) (Snapshot, error) {
	data, err := s.client.HGet(ctx, s.key(learnerID), topicID).Bytes()
	if errors.Is(err, redis.Nil) {
		return Absent(), nil
	}
	if err != nil {
		return Snapshot{}, fmt.Errorf("%w: get snapshot: %w", ErrStoreUnavailable, err)
	}
	return decodeSnapshot(data)
}

func (s *RedisStore) Upsert(ctx context.Context, learnerID, topicID string, snap Snapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}
	if err := s.client.HSet(ctx, s.key(learnerID), topicID, data).Err(); err != nil {
		return fmt.Errorf("%w: upsert snapshot: %w", ErrStoreUnavailable, err)
	}
	return nil
}

// CompareAndSwap uses WATCH on the learner's hash. A concurrent write to any
// topic of the same learner aborts the transaction and surfaces as ErrConflict.
func (s *RedisStore) CompareAndSwap(ctx context.Context, learnerID, topicID string, expectedAttempts int, snap Snapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}
	key := s.key(learnerID)

	txn := func(tx *redis.Tx) error {
		current := Absent()
		raw, err := tx.HGet(ctx, key, topicID).Bytes()
		switch {
		case errors.Is(err, redis.Nil):
		case err != nil:
			return err
		default:
			if current, err = decodeSnapshot(raw); err != nil {
				return err
			}
		}
		if current.Attempts != expectedAttempts {
			return ErrConflict
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HSet(ctx, key, topicID, data)
			return nil
		})
		return err
	}

	err = s.client.Watch(ctx, txn, key)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrConflict), errors.Is(err, redis.TxFailedErr):
		return ErrConflict
	default:
		return fmt.Errorf("%w: compare-and-swap snapshot: %w", ErrStoreUnavailable, err)
	}
}

func (s *RedisStore) ListByLearner(ctx context.Context, learnerID string) (map[string]Snapshot, error) {
	all, err := s.client.HGetAll(ctx, s.key(learnerID)).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: list snapshots: %w", ErrStoreUnavailable, err)
	}
	out := make(map[string]Snapshot, len(all))
	for topicID, raw := range all {
		snap, err := decodeSnapshot([]byte(raw))
		if err != nil {
			return nil, fmt.Errorf("topic %q: %w", topicID, err)
		}
		out[topicID] = snap
	}
	return out, nil
}

func decodeSnapshot(data []byte) (Snapshot, error) {
	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return Snapshot{}, fmt.Errorf("decode snapshot: %w", err)
	}
	if snap.SkillMastery == nil {
		snap.SkillMastery = map[string]float64{}
	}
	return snap, nil
}
