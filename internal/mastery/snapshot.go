// Package mastery tracks per-learner, per-topic mastery snapshots and applies
// evidence to them.
package mastery

import (
	"maps"
	"time"
)

const (
	// DefaultSkillMastery is the value of a skill with no evidence yet: unknown, not unmastered.
	DefaultSkillMastery = 0.5

	// MasteredThreshold is the score at or above which a skill or topic counts as mastered.
	MasteredThreshold = 0.7

	// DefaultLearningRate is the EMA weight given to each new piece of evidence.
	DefaultLearningRate = 0.3
)

// Snapshot is the persisted mastery state of one learner on one topic.
// The zero value is the state of a learner who has never practiced the topic.
type Snapshot struct {
	Attempts      int                `json:"attempts"`
	Correct       int                `json:"correct"`
	SkillMastery  map[string]float64 `json:"skill_mastery"`
	MasteryScore  float64            `json:"mastery_score"`
	LastPracticed *time.Time         `json:"last_practiced,omitempty"`
	NextReview    *time.Time         `json:"next_review,omitempty"`
}

// Absent is the snapshot returned for a (learner, topic) pair with no stored state.
func Absent() Snapshot {
	return Snapshot{SkillMastery: map[string]float64{}}
}

// SkillValue returns the mastery of skill, or DefaultSkillMastery when the
// skill has no evidence. Every lookup that may miss goes through here.
func SkillValue(skillMastery map[string]float64, skill string) float64 {
	if v, ok := skillMastery[skill]; ok {
		return v
	}
	return DefaultSkillMastery
}

// Skill returns the snapshot's mastery for one skill.
func (s Snapshot) Skill(skill string) float64 {
	return SkillValue(s.SkillMastery, skill)
}

// Score is the mean skill mastery over exactly the topic's required skills.
func Score(skillMastery map[string]float64, requiredSkills []string) float64 {
	if len(requiredSkills) == 0 {
		return 0
	}
	var sum float64
	for _, skill := range requiredSkills {
		sum += SkillValue(skillMastery, skill)
	}
	return sum / float64(len(requiredSkills))
}

// IsZero reports whether no evidence has been applied.
func (s Snapshot) IsZero() bool {
	return s.Attempts == 0
}

// Accuracy returns correct/attempts, or 0 with no attempts.
func (s Snapshot) Accuracy() float64 {
	if s.Attempts == 0 {
		return 0
	}
	return float64(s.Correct) / float64(s.Attempts)
}

// IsDue reports whether a review is scheduled at or before now.
func (s Snapshot) IsDue(now time.Time) bool {
	return s.NextReview != nil && !now.Before(*s.NextReview)
}

// Clone returns a deep copy so callers cannot alias stored state.
func (s Snapshot) Clone() Snapshot {
	out := s
	out.SkillMastery = maps.Clone(s.SkillMastery)
	if out.SkillMastery == nil {
		out.SkillMastery = map[string]float64{}
	}
	if s.LastPracticed != nil {
		t := *s.LastPracticed
		out.LastPracticed = &t
	}
	if s.NextReview != nil {
		t := *s.NextReview
		out.NextReview = &t
	}
	return out
}
