package mastery

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const dbTimeout = 5 * time.Second

// PostgresStore is a PostgreSQL-backed Store. It expects the
// mastery_snapshots table created by database.Migrate.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a PostgreSQL-backed snapshot store.
func NewPostgresStore(pool *pgxpool.Pool) (*PostgresStore, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is nil")
	}
	return &PostgresStore{pool: pool}, nil
}

func (s *PostgresStore) Get(ctx context.Context, learnerID, topicID string) (Snapshot, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	row := s.pool.QueryRow(ctx,
		`SELECT attempts, correct, skill_mastery, mastery_score, last_practiced, next_review
		 FROM mastery_snapshots
		 WHERE learner_id = $1 AND topic_id = $2`,
		learnerID,
		topicID,
	)
	snap, err := scanSnapshot(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Absent(), nil
		}
		return Snapshot{}, fmt.Errorf("%w: get snapshot: %w", ErrStoreUnavailable, err)
	}
	return snap, nil
}

func (s *PostgresStore) Upsert(ctx context.Context, learnerID, topicID string, snap Snapshot) error {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	args, err := snapshotArgs(learnerID, topicID, snap)
	if err != nil {
		return err
	}
	if _, err := s.pool.Exec(ctx,
		`INSERT INTO mastery_snapshots
		   (learner_id, topic_id, attempts, correct, skill_mastery, mastery_score, last_practiced, next_review, updated_at)
		 VALUES ($1, $2, $3, $4, $5::jsonb, $6, $7, $8, NOW())
		 ON CONFLICT (learner_id, topic_id) DO UPDATE SET
		   attempts = EXCLUDED.attempts,
		   correct = EXCLUDED.correct,
		   skill_mastery = EXCLUDED.skill_mastery,
		   mastery_score = EXCLUDED.mastery_score,
		   last_practiced = EXCLUDED.last_practiced,
		   next_review = EXCLUDED.next_review,
		   updated_at = NOW()`,
		args...,
	); err != nil {
		return fmt.Errorf("%w: upsert snapshot: %w", ErrStoreUnavailable, err)
	}
	return nil
}

func (s *PostgresStore) CompareAndSwap(ctx context.Context, learnerID, topicID string, expectedAttempts int, snap Snapshot) error {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	args, err := snapshotArgs(learnerID, topicID, snap)
	if err != nil {
		return err
	}
	args = append(args, expectedAttempts)

	query := `UPDATE mastery_snapshots SET
		   attempts = $3,
		   correct = $4,
		   skill_mastery = $5::jsonb,
		   mastery_score = $6,
		   last_practiced = $7,
		   next_review = $8,
		   updated_at = NOW()
		 WHERE learner_id = $1 AND topic_id = $2 AND attempts = $9`
	if expectedAttempts == 0 {
		// A missing row and a never-practiced row both match zero attempts.
		query = `INSERT INTO mastery_snapshots
		   (learner_id, topic_id, attempts, correct, skill_mastery, mastery_score, last_practiced, next_review, updated_at)
		 VALUES ($1, $2, $3, $4, $5::jsonb, $6, $7, $8, NOW())
		 ON CONFLICT (learner_id, topic_id) DO UPDATE SET
		   attempts = EXCLUDED.attempts,
		   correct = EXCLUDED.correct,
		   skill_mastery = EXCLUDED.skill_mastery,
		   mastery_score = EXCLUDED.mastery_score,
		   last_practiced = EXCLUDED.last_practiced,
		   next_review = EXCLUDED.next_review,
		   updated_at = NOW()
		 WHERE mastery_snapshots.attempts = $9::int`
	}

	cmd, err := s.pool.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("%w: compare-and-swap snapshot: %w", ErrStoreUnavailable, err)
	}
	if cmd.RowsAffected() == 0 {
		return ErrConflict
	}
	return nil
}

func (s *PostgresStore) ListByLearner(ctx context.Context, learnerID string) (map[string]Snapshot, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	rows, err := s.pool.Query(ctx,
		`SELECT topic_id, attempts, correct, skill_mastery, mastery_score, last_practiced, next_review
		 FROM mastery_snapshots
		 WHERE learner_id = $1`,
		learnerID,
	)
	if err != nil {
		return nil, fmt.Errorf("%w: list snapshots: %w", ErrStoreUnavailable, err)
	}
	defer rows.Close()

	out := make(map[string]Snapshot)
	for rows.Next() {
		var topicID string
		var skillBytes []byte
		var snap Snapshot
		if err := rows.Scan(
			&topicID,
			&snap.Attempts,
			&snap.Correct,
			&skillBytes,
			&snap.MasteryScore,
			&snap.LastPracticed,
			&snap.NextReview,
		); err != nil {
			return nil, fmt.Errorf("%w: scan snapshot: %w", ErrStoreUnavailable, err)
		}
		if snap.SkillMastery, err = decodeSkillMastery(skillBytes); err != nil {
			return nil, err
		}
		out[topicID] = snap
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterate snapshots: %w", ErrStoreUnavailable, err)
	}
	return out, nil
}

func scanSnapshot(row pgx.Row) (Snapshot, error) {
	var snap Snapshot
	var skillBytes []byte
	if err := row.Scan(
		&snap.Attempts,
		&snap.Correct,
		&skillBytes,
		&snap.MasteryScore,
		&snap.LastPracticed,
		&snap.NextReview,
	); err != nil {
		return Snapshot{}, err
	}
	var err error
	snap.SkillMastery, err = decodeSkillMastery(skillBytes)
	return snap, err
}

func snapshotArgs(learnerID, topicID string, snap Snapshot) ([]any, error) {
	skills := snap.SkillMastery
	if skills == nil {
		skills = map[string]float64{}
	}
	data, err := json.Marshal(skills)
	if err != nil {
		return nil, fmt.Errorf("marshal skill mastery: %w", err)
	}
	return []any{
		learnerID,
		topicID,
		snap.Attempts,
		snap.Correct,
		string(data),
		snap.MasteryScore,
		snap.LastPracticed,
		snap.NextReview,
	}, nil
}

func decodeSkillMastery(data []byte) (map[string]float64, error) {
	out := map[string]float64{}
	if len(data) == 0 {
		return out, nil
	}
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("decode skill mastery: %w", err)
	}
	return out, nil
}
