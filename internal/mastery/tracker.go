package mastery

import (
	"fmt"
	"time"

	"github.com/p-n-ai/pai-mastery/internal/review"
)

// TrackerConfig holds the tunables of the evidence update.
type TrackerConfig struct {
	LearningRate float64           // EMA weight of new evidence (default 0.3)
	Scheduler    *review.Scheduler // next-review scheduling (default review.Default())
	Now          func() time.Time  // clock (default time.Now)
}

// Tracker applies evidence to snapshots. It holds no per-learner state.
type Tracker struct {
	rate      float64
	scheduler *review.Scheduler
	now       func() time.Time
}

// NewTracker validates cfg and fills in defaults.
func NewTracker(cfg TrackerConfig) (*Tracker, error) {
	rate := cfg.LearningRate
	if rate == 0 {
		rate = DefaultLearningRate
	}
	if rate < 0 || rate > 1 {
		return nil, fmt.Errorf("learning rate %.3f outside (0,1]", rate)
	}
	scheduler := cfg.Scheduler
	if scheduler == nil {
		scheduler = review.Default()
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Tracker{rate: rate, scheduler: scheduler, now: now}, nil
}

// LearningRate returns the configured EMA weight.
func (t *Tracker) LearningRate() float64 {
	return t.rate
}

// ApplyEvidence returns a new snapshot with one correctness signal folded in.
// Each touched skill moves towards 1 (correct) or 0 (incorrect) by the learning
// rate. The mastery score is recomputed over all required skills, so untouched
// skills keep contributing their last value or the default. snap is not modified.
func (t *Tracker) ApplyEvidence(snap Snapshot, requiredSkills, touchedSkills []string, isCorrect bool) Snapshot {
	next := snap.Clone()

	outcome := 0.0
	if isCorrect {
		outcome = 1.0
	}
	for _, skill := range touchedSkills {
		current := SkillValue(next.SkillMastery, skill)
		next.SkillMastery[skill] = current*(1-t.rate) + outcome*t.rate
	}

	next.Attempts++
	if isCorrect {
		next.Correct++
	}
	next.MasteryScore = Score(next.SkillMastery, requiredSkills)

	now := t.now()
	nextReview := t.scheduler.ScheduleFrom(next.MasteryScore, now)
	next.LastPracticed = &now
	next.NextReview = &nextReview

	return next
}
