package diagnosis

import (
	"github.com/p-n-ai/pai-mastery/internal/curriculum"
	"github.com/p-n-ai/pai-mastery/internal/difficulty"
)

// Action is the next step recommended to a learner.
type Action string

const (
	ActionReviewPrerequisites Action = "review_prerequisites"
	ActionMoveForward         Action = "move_forward"
	ActionConsolidate         Action = "consolidate"
	ActionContinueLearning    Action = "continue_learning"
)

// Priority ranks how urgent a recommendation is.
type Priority string

const (
	PriorityHigh   Priority = "high"
	PriorityMedium Priority = "medium"
	PriorityLow    Priority = "low"
)

const (
	// moveForwardThreshold is the topic mastery at which a learner should move on.
	moveForwardThreshold = 0.9
)

// Report is a learner's diagnosis on one topic.
type Report struct {
	Topic          curriculum.Topic     `json:"topic"`
	CurrentMastery float64              `json:"current_mastery"`
	SkillBreakdown map[string]float64   `json:"skill_breakdown"`
	WeakSkills     []WeakSkill          `json:"weak_skills"`    // weakest first
	Prerequisites  []PrerequisiteStatus `json:"prerequisites"`  // authoring order
	ReadyToLearn   bool                 `json:"ready_to_learn"` // every prerequisite mastered
	Recommendation Recommendation       `json:"recommendation"`
}

// WeakSkill is a required skill below the mastered threshold.
type WeakSkill struct {
	Skill   string  `json:"skill"`
	Mastery float64 `json:"mastery"`
}

// PrerequisiteStatus is the learner's standing on one transitive prerequisite.
type PrerequisiteStatus struct {
	TopicID    string  `json:"topic_id"`
	Name       string  `json:"name"`
	Mastery    float64 `json:"mastery"`
	IsMastered bool    `json:"is_mastered"`
}

// Recommendation is the outcome of the decision table.
type Recommendation struct {
	Action        Action   `json:"action"`
	Priority      Priority `json:"priority"`
	Prerequisites []string `json:"prerequisites,omitempty"` // unmastered ids for review_prerequisites
}

// GenerationRequest is the payload handed to practice generation.
type GenerationRequest struct {
	LearnerID   string          `json:"learner_id"`
	Diagnosis   Report          `json:"diagnosis"`
	Band        difficulty.Band `json:"band"`
	FocusSkills []string        `json:"focus_skills"` // weak skill names, weakest first
}

// DueReview is a topic whose spaced review date has arrived.
type DueReview struct {
	TopicID      string  `json:"topic_id"`
	Name         string  `json:"name"`
	MasteryScore float64 `json:"mastery_score"`
	NextReview   string  `json:"next_review"` // YYYY-MM-DD
	OverdueDays  int     `json:"overdue_days"`
}

// recommend applies the decision table. The first matching rule wins.
func recommend(current float64, prereqs []PrerequisiteStatus) Recommendation {
	var unmastered []string
	for _, p := range prereqs {
		if !p.IsMastered {
			unmastered = append(unmastered, p.TopicID)
		}
	}

	switch {
	case len(unmastered) > 0:
		return Recommendation{Action: ActionReviewPrerequisites, Priority: PriorityHigh, Prerequisites: unmastered}
	case current >= moveForwardThreshold:
		return Recommendation{Action: ActionMoveForward, Priority: PriorityLow}
	case current >= masteredThreshold:
		return Recommendation{Action: ActionConsolidate, Priority: PriorityMedium}
	default:
		return Recommendation{Action: ActionContinueLearning, Priority: PriorityHigh}
	}
}
