// Package diagnosis turns mastery snapshots and the curriculum graph into
// per-topic reports, next-topic suggestions and review queues.
package diagnosis

import (
	"context"
	"fmt"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/p-n-ai/pai-mastery/internal/curriculum"
	"github.com/p-n-ai/pai-mastery/internal/difficulty"
	"github.com/p-n-ai/pai-mastery/internal/mastery"
	"github.com/p-n-ai/pai-mastery/internal/review"
)

const (
	masteredThreshold = mastery.MasteredThreshold

	defaultFetchLimit = 8
)

// SnapshotReader is the read side of a mastery.Store.
type SnapshotReader interface {
	Get(ctx context.Context, learnerID, topicID string) (mastery.Snapshot, error)
	ListByLearner(ctx context.Context, learnerID string) (map[string]mastery.Snapshot, error)
}

// Engine builds diagnosis reports. It never writes snapshots.
type Engine struct {
	graph      *curriculum.Graph
	store      SnapshotReader
	fetchLimit int
}

// Option configures an Engine.
type Option func(*Engine)

// WithFetchLimit bounds concurrent prerequisite snapshot reads.
func WithFetchLimit(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.fetchLimit = n
		}
	}
}

// NewEngine creates a diagnosis engine over graph and store.
func NewEngine(graph *curriculum.Graph, store SnapshotReader, opts ...Option) (*Engine, error) {
	if graph == nil {
		return nil, fmt.Errorf("curriculum graph is required")
	}
	if store == nil {
		return nil, fmt.Errorf("snapshot store is required")
	}
	e := &Engine{graph: graph, store: store, fetchLimit: defaultFetchLimit}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Diagnose reports the learner's standing on topicID. An unknown topic fails
// with curriculum.ErrTopicNotFound; a learner with no evidence gets a report
// built from defaults.
func (e *Engine) Diagnose(ctx context.Context, learnerID, topicID string) (Report, error) {
	topic, err := e.graph.Topic(topicID)
	if err != nil {
		return Report{}, err
	}

	snap, err := e.store.Get(ctx, learnerID, topic.ID)
	if err != nil {
		return Report{}, fmt.Errorf("get snapshot %s: %w", topic.ID, err)
	}

	prereqs, err := e.prerequisiteStatus(ctx, learnerID, topic.ID)
	if err != nil {
		return Report{}, err
	}

	ready := true
	for _, p := range prereqs {
		ready = ready && p.IsMastered
	}

	return Report{
		Topic:          topic,
		CurrentMastery: snap.MasteryScore,
		SkillBreakdown: snap.Clone().SkillMastery,
		WeakSkills:     weakSkills(topic, snap),
		Prerequisites:  prereqs,
		ReadyToLearn:   ready,
		Recommendation: recommend(snap.MasteryScore, prereqs),
	}, nil
}

// prerequisiteStatus fetches the snapshot of every transitive prerequisite.
// Results keep the resolver's order regardless of fetch completion order.
func (e *Engine) prerequisiteStatus(ctx context.Context, learnerID, topicID string) ([]PrerequisiteStatus, error) {
	ids := e.graph.Resolve(topicID)
	out := make([]PrerequisiteStatus, len(ids))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.fetchLimit)
	for i, id := range ids {
		g.Go(func() error {
			snap, err := e.store.Get(gctx, learnerID, id)
			if err != nil {
				return fmt.Errorf("get prerequisite snapshot %s: %w", id, err)
			}
			name := ""
			if t, ok := e.graph.FindTopic(id); ok {
				name = t.Name
			}
			out[i] = PrerequisiteStatus{
				TopicID:    id,
				Name:       name,
				Mastery:    snap.MasteryScore,
				IsMastered: snap.MasteryScore >= masteredThreshold,
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// weakSkills returns required skills below the mastered threshold, weakest
// first. Equal values keep the topic's skill order.
func weakSkills(topic curriculum.Topic, snap mastery.Snapshot) []WeakSkill {
	out := []WeakSkill{}
	for _, s := range topic.Skills {
		if m := snap.Skill(s); m < masteredThreshold {
			out = append(out, WeakSkill{Skill: s, Mastery: m})
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Mastery < out[j].Mastery })
	return out
}

// PracticeRequest diagnoses the topic and adds the difficulty band and focus
// skills for practice generation.
func (e *Engine) PracticeRequest(ctx context.Context, learnerID, topicID string) (GenerationRequest, error) {
	rep, err := e.Diagnose(ctx, learnerID, topicID)
	if err != nil {
		return GenerationRequest{}, err
	}
	focus := make([]string, len(rep.WeakSkills))
	for i, w := range rep.WeakSkills {
		focus[i] = w.Skill
	}
	return GenerationRequest{
		LearnerID:   learnerID,
		Diagnosis:   rep,
		Band:        difficulty.Calibrate(rep.CurrentMastery),
		FocusSkills: focus,
	}, nil
}

// NextTopics lists topics the learner is ready to start: every resolved
// prerequisite is mastered and the topic itself is not. Topics come in
// prerequisite order. An empty stage searches the whole graph.
func (e *Engine) NextTopics(ctx context.Context, learnerID, stage, grade string) ([]curriculum.Topic, error) {
	candidates := e.graph.TopologicalOrder()
	if stage != "" {
		inGrade, ok := e.graph.ListTopics(stage, grade)
		if !ok {
			return nil, fmt.Errorf("%w: %s/%s", curriculum.ErrGradeNotFound, stage, grade)
		}
		keep := make(map[string]bool, len(inGrade))
		for _, t := range inGrade {
			keep[t.ID] = true
		}
		filtered := candidates[:0]
		for _, t := range candidates {
			if keep[t.ID] {
				filtered = append(filtered, t)
			}
		}
		candidates = filtered
	}

	snaps, err := e.store.ListByLearner(ctx, learnerID)
	if err != nil {
		return nil, fmt.Errorf("list snapshots: %w", err)
	}
	mastered := func(id string) bool {
		return snaps[id].MasteryScore >= masteredThreshold
	}

	out := []curriculum.Topic{}
	for _, t := range candidates {
		if mastered(t.ID) {
			continue
		}
		ready := true
		for _, p := range e.graph.Resolve(t.ID) {
			if !mastered(p) {
				ready = false
				break
			}
		}
		if ready {
			out = append(out, t)
		}
	}
	return out, nil
}

// DueReviews lists the learner's topics whose review date is at or before
// now, most overdue first. Ties break on topic id.
func (e *Engine) DueReviews(ctx context.Context, learnerID string, now time.Time) ([]DueReview, error) {
	snaps, err := e.store.ListByLearner(ctx, learnerID)
	if err != nil {
		return nil, fmt.Errorf("list snapshots: %w", err)
	}

	today := review.Today(now)
	type due struct {
		at   time.Time
		item DueReview
	}
	var pending []due
	for id, snap := range snaps {
		if !snap.IsDue(now) {
			continue
		}
		at := review.Today(*snap.NextReview)
		name := ""
		if t, ok := e.graph.FindTopic(id); ok {
			name = t.Name
		}
		pending = append(pending, due{at: at, item: DueReview{
			TopicID:      id,
			Name:         name,
			MasteryScore: snap.MasteryScore,
			NextReview:   at.Format(time.DateOnly),
			OverdueDays:  int(today.Sub(at).Hours() / 24),
		}})
	}

	sort.Slice(pending, func(i, j int) bool {
		if !pending[i].at.Equal(pending[j].at) {
			return pending[i].at.Before(pending[j].at)
		}
		return pending[i].item.TopicID < pending[j].item.TopicID
	})

	out := make([]DueReview, len(pending))
	for i, p := range pending {
		out[i] = p.item
	}
	return out, nil
}
