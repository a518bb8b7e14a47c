package mastery

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/p-n-ai/pai-mastery/internal/curriculum"
)

const defaultMaxRetries = 5

var (
	// ErrInvalidEvidence is returned for evidence missing a learner or topic id.
	ErrInvalidEvidence = errors.New("invalid evidence")

	// ErrUnknownSkill is returned when evidence touches a skill the topic does not require.
	ErrUnknownSkill = errors.New("skill not required by topic")
)

// Evidence is one correctness signal from an interaction.
type Evidence struct {
	LearnerID     string   `json:"learner_id"`
	TopicID       string   `json:"topic_id"`
	TouchedSkills []string `json:"touched_skills"`
	IsCorrect     bool     `json:"is_correct"`
}

// TopicSource resolves topics by id. *curriculum.Graph implements it.
type TopicSource interface {
	Topic(id string) (curriculum.Topic, error)
}

// RecorderConfig holds dependencies for the evidence write path.
type RecorderConfig struct {
	Topics     TopicSource
	Store      Store
	Tracker    *Tracker
	Locker     Locker   // per-key serialization (default in-process)
	Events     EventLog // audit log (default no-op)
	MaxRetries int      // compare-and-swap retries before ErrUpdateConflict (default 5)
}

// Recorder is the only writer of snapshots.
type Recorder struct {
	topics     TopicSource
	store      Store
	tracker    *Tracker
	locker     Locker
	events     EventLog
	maxRetries int
}

// NewRecorder creates a recorder, filling in defaults.
func NewRecorder(cfg RecorderConfig) (*Recorder, error) {
	if cfg.Topics == nil {
		return nil, fmt.Errorf("topic source is required")
	}
	if cfg.Store == nil {
		return nil, fmt.Errorf("store is required")
	}
	tracker := cfg.Tracker
	if tracker == nil {
		var err error
		if tracker, err = NewTracker(TrackerConfig{}); err != nil {
			return nil, err
		}
	}
	locker := cfg.Locker
	if locker == nil {
		locker = NewLocalLocker()
	}
	events := cfg.Events
	if events == nil {
		events = NopEventLog{}
	}
	maxRetries := cfg.MaxRetries
	if maxRetries <= 0 {
		maxRetries = defaultMaxRetries
	}
	return &Recorder{
		topics:     cfg.Topics,
		store:      cfg.Store,
		tracker:    tracker,
		locker:     locker,
		events:     events,
		maxRetries: maxRetries,
	}, nil
}

// Record applies evidence to the learner's snapshot and persists it.
// Writers for the same key are serialized by the locker, and the write itself
// is a compare-and-swap, so concurrent evidence from another process is
// retried instead of lost.
func (r *Recorder) Record(ctx context.Context, ev Evidence) (Snapshot, error) {
	ev.LearnerID = strings.TrimSpace(ev.LearnerID)
	if ev.LearnerID == "" || strings.TrimSpace(ev.TopicID) == "" {
		return Snapshot{}, fmt.Errorf("%w: learner_id and topic_id are required", ErrInvalidEvidence)
	}

	topic, err := r.topics.Topic(ev.TopicID)
	if err != nil {
		return Snapshot{}, err
	}
	touched, err := touchedSkills(topic, ev.TouchedSkills)
	if err != nil {
		return Snapshot{}, err
	}

	unlock, err := r.locker.Lock(ctx, ev.LearnerID, topic.ID)
	if err != nil {
		return Snapshot{}, fmt.Errorf("lock %s/%s: %w", ev.LearnerID, topic.ID, err)
	}
	defer unlock()

	var next Snapshot
	for attempt := 0; ; attempt++ {
		current, err := r.store.Get(ctx, ev.LearnerID, topic.ID)
		if err != nil {
			return Snapshot{}, err
		}

		next = r.tracker.ApplyEvidence(current, topic.Skills, touched, ev.IsCorrect)
		err = r.store.CompareAndSwap(ctx, ev.LearnerID, topic.ID, current.Attempts, next)
		if err == nil {
			break
		}
		if !errors.Is(err, ErrConflict) {
			return Snapshot{}, err
		}
		if attempt+1 >= r.maxRetries {
			slog.Warn("evidence conflict retries exhausted",
				"learner_id", ev.LearnerID,
				"topic_id", topic.ID,
				"retries", r.maxRetries,
			)
			return Snapshot{}, fmt.Errorf("%w: %s/%s after %d attempts", ErrUpdateConflict, ev.LearnerID, topic.ID, r.maxRetries)
		}
		slog.Debug("snapshot changed concurrently, retrying",
			"learner_id", ev.LearnerID,
			"topic_id", topic.ID,
			"attempt", attempt+1,
		)
	}

	if err := r.events.LogEvidence(ctx, EvidenceEvent{
		LearnerID:     ev.LearnerID,
		TopicID:       topic.ID,
		TouchedSkills: touched,
		IsCorrect:     ev.IsCorrect,
		Attempts:      next.Attempts,
		MasteryScore:  next.MasteryScore,
		CreatedAt:     *next.LastPracticed,
	}); err != nil {
		slog.Warn("failed to log evidence event", "error", err)
	}

	slog.Info("evidence applied",
		"learner_id", ev.LearnerID,
		"topic_id", topic.ID,
		"correct", ev.IsCorrect,
		"attempts", next.Attempts,
		"mastery", next.MasteryScore,
	)
	return next, nil
}

// touchedSkills normalizes and dedupes the touched list and checks every
// entry against the topic's required skills.
func touchedSkills(topic curriculum.Topic, skills []string) ([]string, error) {
	seen := make(map[string]bool, len(skills))
	out := make([]string, 0, len(skills))
	for _, s := range skills {
		s = curriculum.Normalize(s)
		if s == "" || seen[s] {
			continue
		}
		if !topic.HasSkill(s) {
			return nil, fmt.Errorf("%w: %q on topic %q", ErrUnknownSkill, s, topic.ID)
		}
		seen[s] = true
		out = append(out, s)
	}
	return out, nil
}
