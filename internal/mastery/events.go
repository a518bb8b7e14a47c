package mastery

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// EvidenceEvent is an audit record of one applied piece of evidence.
type EvidenceEvent struct {
	LearnerID     string
	TopicID       string
	TouchedSkills []string
	IsCorrect     bool
	Attempts      int     // attempts after the update
	MasteryScore  float64 // score after the update
	CreatedAt     time.Time
}

// EventLog records applied evidence.
type EventLog interface {
	LogEvidence(ctx context.Context, event EvidenceEvent) error
}

// NopEventLog ignores all events.
type NopEventLog struct{}

func (NopEventLog) LogEvidence(context.Context, EvidenceEvent) error {
	return nil
}

// MemoryEventLog stores events in memory for tests.
type MemoryEventLog struct {
	mu     sync.Mutex
	events []EvidenceEvent
}

func NewMemoryEventLog() *MemoryEventLog {
	return &MemoryEventLog{
		events: []EvidenceEvent{},
	}
}

func (l *MemoryEventLog) LogEvidence(_ context.Context, event EvidenceEvent) error {
	if event.LearnerID == "" || event.TopicID == "" {
		return fmt.Errorf("learner_id and topic_id are required")
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now()
	}

	l.mu.Lock()
	l.events = append(l.events, event)
	l.mu.Unlock()

	return nil
}

func (l *MemoryEventLog) Events() []EvidenceEvent {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]EvidenceEvent{}, l.events...)
}

// PostgresEventLog inserts events into the evidence_events table.
type PostgresEventLog struct {
	pool *pgxpool.Pool
}

func NewPostgresEventLog(pool *pgxpool.Pool) *PostgresEventLog {
	return &PostgresEventLog{pool: pool}
}

func (l *PostgresEventLog) LogEvidence(ctx context.Context, event EvidenceEvent) error {
	if l == nil || l.pool == nil {
		return fmt.Errorf("event log pool is nil")
	}
	if event.LearnerID == "" || event.TopicID == "" {
		return fmt.Errorf("learner_id and topic_id are required")
	}

	skills := event.TouchedSkills
	if skills == nil {
		skills = []string{}
	}
	data, err := json.Marshal(skills)
	if err != nil {
		return fmt.Errorf("marshal touched skills: %w", err)
	}

	createdAt := event.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	if _, err := l.pool.Exec(ctx,
		`INSERT INTO evidence_events (learner_id, topic_id, touched_skills, is_correct, attempts, mastery_score, created_at)
		 VALUES ($1, $2, $3::jsonb, $4, $5, $6, $7)`,
		event.LearnerID,
		event.TopicID,
		string(data),
		event.IsCorrect,
		event.Attempts,
		event.MasteryScore,
		createdAt,
	); err != nil {
		return fmt.Errorf("insert evidence event: %w", err)
	}

	slog.Debug("evidence event logged",
		"learner_id", event.LearnerID,
		"topic_id", event.TopicID,
		"attempts", event.Attempts,
	)
	return nil
}
