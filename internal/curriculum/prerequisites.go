package curriculum

import "sort"

// Resolve returns the transitive closure of prerequisite ids for topicID,
// excluding topicID itself. Ids that do not resolve to a topic are skipped and
// already visited ids are not expanded again, so cycles terminate.
// The result is in authoring order; it carries no traversal meaning.
func (g *Graph) Resolve(topicID string) []string {
	root, ok := g.position(Normalize(topicID))
	if !ok {
		return nil
	}
	rootID := g.topics[root].ID

	visited := map[string]bool{rootID: true}
	stack := append([]string(nil), g.topics[root].Prerequisites...)
	var found []int

	for len(stack) > 0 {
		id := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if visited[id] {
			continue
		}
		visited[id] = true

		idx, ok := g.position(id)
		if !ok {
			continue
		}
		found = append(found, idx)
		stack = append(stack, g.topics[idx].Prerequisites...)
	}

	sort.Ints(found)
	out := make([]string, len(found))
	for i, idx := range found {
		out[i] = g.topics[idx].ID
	}
	return out
}
