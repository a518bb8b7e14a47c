package mastery

import (
	"testing"
	"time"

	"github.com/p-n-ai/pai-mastery/internal/platform/database/databasetest"
)

func TestPostgresStore_Contract(t *testing.T) {
	db := databasetest.Start(t)

	storeContract(t, func(t *testing.T) Store {
		if _, err := db.Pool.Exec(t.Context(), `TRUNCATE mastery_snapshots, evidence_events`); err != nil {
			t.Fatalf("truncate: %v", err)
		}
		s, err := NewPostgresStore(db.Pool)
		if err != nil {
			t.Fatalf("NewPostgresStore() error = %v", err)
		}
		return s
	})
}

func TestPostgresStore_ConcurrentRecorders(t *testing.T) {
	db := databasetest.Start(t)
	store, err := NewPostgresStore(db.Pool)
	if err != nil {
		t.Fatalf("NewPostgresStore() error = %v", err)
	}
	events := NewPostgresEventLog(db.Pool)

	newProc := func() *Recorder {
		r, err := NewRecorder(RecorderConfig{
			Topics:     testGraph(t),
			Store:      store,
			Events:     events,
			MaxRetries: 100,
		})
		if err != nil {
			t.Fatalf("NewRecorder() error = %v", err)
		}
		return r
	}

	const n = 20
	recordConcurrently(t, []*Recorder{newProc(), newProc()}, n, func(int) Evidence {
		return Evidence{LearnerID: "pg", TopicID: "F1-01", TouchedSkills: []string{"A"}, IsCorrect: true}
	})

	got, err := store.Get(t.Context(), "pg", "F1-01")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.Attempts != n {
		t.Errorf("Attempts = %d, want %d", got.Attempts, n)
	}
	if got.NextReview == nil || !got.NextReview.After(time.Now().Add(-24*time.Hour)) {
		t.Errorf("NextReview = %v, want a date from today on", got.NextReview)
	}

	var logged int
	if err := db.Pool.QueryRow(t.Context(), `SELECT count(*) FROM evidence_events WHERE learner_id = 'pg'`).Scan(&logged); err != nil {
		t.Fatalf("count events: %v", err)
	}
	if logged != n {
		t.Errorf("logged events = %d, want %d", logged, n)
	}
}

func TestNewPostgresStore_NilPool(t *testing.T) {
	if _, err := NewPostgresStore(nil); err == nil {
		t.Error("NewPostgresStore(nil) should fail")
	}
}
