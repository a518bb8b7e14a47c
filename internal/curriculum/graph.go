package curriculum

import (
	"errors"
	"fmt"
	"slices"
	"sort"
	"strings"

	"golang.org/x/text/unicode/norm"
)

var (
	// ErrTopicNotFound is returned when a topic id does not resolve in the graph.
	ErrTopicNotFound = errors.New("topic not found")

	// ErrGradeNotFound is returned when a stage/grade pair does not exist.
	ErrGradeNotFound = errors.New("grade not found")
)

// Graph is the immutable, indexed curriculum catalog. It is built once at
// startup and is safe for concurrent use because nothing mutates it afterwards.
type Graph struct {
	topics     []Topic // authoring order: stage -> grade -> period
	byID       map[string]int
	byGrade    map[gradeKey][]int
	stages     []string
	grades     map[string][]string
	dependents map[string][]string
	topoOrder  []int
}

type gradeKey struct {
	stage string
	grade string
}

// NewGraph merges documents in the order given and builds every index.
// Topic ids must be unique across all documents.
func NewGraph(docs ...Document) (*Graph, error) {
	g := &Graph{
		byID:       make(map[string]int),
		byGrade:    make(map[gradeKey][]int),
		grades:     make(map[string][]string),
		dependents: make(map[string][]string),
	}

	for _, doc := range docs {
		for _, stage := range doc.Stages {
			stageName := Normalize(stage.Name)
			if _, seen := g.grades[stageName]; !seen {
				g.stages = append(g.stages, stageName)
				g.grades[stageName] = nil
			}
			for _, grade := range stage.Grades {
				gradeName := Normalize(grade.Name)
				key := gradeKey{stage: stageName, grade: gradeName}
				if _, seen := g.byGrade[key]; !seen {
					g.grades[stageName] = append(g.grades[stageName], gradeName)
					g.byGrade[key] = nil
				}
				for _, period := range grade.Periods {
					for _, t := range period.Topics {
						topic, err := normalizeTopic(t)
						if err != nil {
							return nil, err
						}
						if _, dup := g.byID[topic.ID]; dup {
							return nil, fmt.Errorf("duplicate topic id %q", topic.ID)
						}
						topic.Stage = stageName
						topic.Grade = gradeName
						topic.Period = Normalize(period.Name)

						idx := len(g.topics)
						g.topics = append(g.topics, topic)
						g.byID[topic.ID] = idx
						g.byGrade[key] = append(g.byGrade[key], idx)
					}
				}
			}
		}
	}

	for _, t := range g.topics {
		for _, p := range t.Prerequisites {
			g.dependents[p] = append(g.dependents[p], t.ID)
		}
	}
	g.topoOrder = g.buildTopoOrder()

	return g, nil
}

// Normalize trims s and converts it to Unicode NFC, the form used for every id and skill key.
func Normalize(s string) string {
	return norm.NFC.String(strings.TrimSpace(s))
}

func normalizeTopic(t Topic) (Topic, error) {
	t.ID = Normalize(t.ID)
	t.Name = strings.TrimSpace(t.Name)
	if t.ID == "" {
		return Topic{}, fmt.Errorf("topic %q has an empty id", t.Name)
	}
	if t.Difficulty < 0 || t.Difficulty > 1 {
		return Topic{}, fmt.Errorf("topic %q: difficulty %.2f outside [0,1]", t.ID, t.Difficulty)
	}

	t.Skills = dedupe(t.Skills)
	if len(t.Skills) == 0 {
		return Topic{}, fmt.Errorf("topic %q has no skills", t.ID)
	}
	t.Prerequisites = dedupe(t.Prerequisites)
	return t, nil
}

// dedupe normalizes each entry and drops blanks and repeats, keeping first occurrence order.
func dedupe(in []string) []string {
	seen := make(map[string]bool, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		s = Normalize(s)
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}

// buildTopoOrder runs Kahn's algorithm, breaking ties by authoring order.
// Dangling prerequisites do not count towards in-degree. Topics left over
// because they sit on a cycle are appended in authoring order so the result
// always covers the whole graph.
func (g *Graph) buildTopoOrder() []int {
	inDegree := make([]int, len(g.topics))
	for i, t := range g.topics {
		for _, p := range t.Prerequisites {
			if _, ok := g.byID[p]; ok {
				inDegree[i]++
			}
		}
	}

	var ready []int
	for i, d := range inDegree {
		if d == 0 {
			ready = append(ready, i)
		}
	}

	order := make([]int, 0, len(g.topics))
	placed := make([]bool, len(g.topics))
	for len(ready) > 0 {
		idx := ready[0]
		ready = ready[1:]
		order = append(order, idx)
		placed[idx] = true

		added := false
		for _, depID := range g.dependents[g.topics[idx].ID] {
			d := g.byID[depID]
			inDegree[d]--
			if inDegree[d] == 0 {
				ready = append(ready, d)
				added = true
			}
		}
		if added {
			sort.Ints(ready)
		}
	}

	for i := range g.topics {
		if !placed[i] {
			order = append(order, i)
		}
	}
	return order
}

// FindTopic returns the topic with the given id.
func (g *Graph) FindTopic(id string) (Topic, bool) {
	idx, ok := g.byID[Normalize(id)]
	if !ok {
		return Topic{}, false
	}
	return g.topics[idx].clone(), true
}

// Topic is FindTopic that reports a miss as ErrTopicNotFound.
func (g *Graph) Topic(id string) (Topic, error) {
	t, ok := g.FindTopic(id)
	if !ok {
		return Topic{}, fmt.Errorf("%w: %q", ErrTopicNotFound, id)
	}
	return t, nil
}

// ListTopics returns the topics of one grade in authoring order, or false if
// the stage/grade pair does not exist.
func (g *Graph) ListTopics(stage, grade string) ([]Topic, bool) {
	idxs, ok := g.byGrade[gradeKey{stage: Normalize(stage), grade: Normalize(grade)}]
	if !ok {
		return nil, false
	}
	return g.collect(idxs), true
}

// AllTopics returns every topic in authoring order.
func (g *Graph) AllTopics() []Topic {
	out := make([]Topic, len(g.topics))
	for i, t := range g.topics {
		out[i] = t.clone()
	}
	return out
}

// Len returns the number of topics.
func (g *Graph) Len() int {
	return len(g.topics)
}

// Stages returns stage names in authoring order.
func (g *Graph) Stages() []string {
	return slices.Clone(g.stages)
}

// Grades returns the grade names of a stage in authoring order.
func (g *Graph) Grades(stage string) []string {
	return slices.Clone(g.grades[Normalize(stage)])
}

// Dependents returns the ids of topics that list id as a direct prerequisite.
func (g *Graph) Dependents(id string) []string {
	return slices.Clone(g.dependents[Normalize(id)])
}

// TopologicalOrder returns every topic with prerequisites before dependents
// wherever the authored data allows it.
func (g *Graph) TopologicalOrder() []Topic {
	return g.collect(g.topoOrder)
}

func (g *Graph) collect(idxs []int) []Topic {
	out := make([]Topic, len(idxs))
	for i, idx := range idxs {
		out[i] = g.topics[idx].clone()
	}
	return out
}

// position returns the authoring index of a topic id.
func (g *Graph) position(id string) (int, bool) {
	idx, ok := g.byID[id]
	return idx, ok
}
