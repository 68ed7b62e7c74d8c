package navigator

import "github.com/taleweave/engine/internal/story"

// Stats summarizes a loaded story graph.
type Stats struct {
	TotalNodes            int     `json:"totalNodes"`
	TotalChoices          int     `json:"totalChoices"`
	AverageChoicesPerNode float64 `json:"averageChoicesPerNode"`
	MaxDepth              int     `json:"maxDepth"`
}

// Stats computes node/choice totals and the maximum playable depth from the
// start node.
func (s *Story) Stats() Stats {
	st := Stats{TotalNodes: len(s.nodes)}
	for i := range s.nodes {
		st.TotalChoices += len(s.nodes[i].Choices)
	}
	if st.TotalNodes > 0 {
		st.AverageChoicesPerNode = float64(st.TotalChoices) / float64(st.TotalNodes)
	}
	st.MaxDepth = s.maxDepth()
	return st
}

// dfsFrame tracks one node on the active DFS path and the index of the next
// choice to explore from it.
type dfsFrame struct {
	id   string
	next int
}

// maxDepth measures the longest simple path from the start node, counted in
// nodes. The visited set is path-local: a node is marked on entry and
// unmarked on backtrack, so diamond shapes are measured along every branch
// and a node already on the active path is skipped (cycle cut) instead of
// collapsing legitimate longer paths. Iterative to stay safe on
// pathologically deep graphs.
func (s *Story) maxDepth() int {
	start := s.index[s.startID]
	if start == nil {
		return 0
	}

	onPath := map[string]bool{s.startID: true}
	stack := []dfsFrame{{id: s.startID}}
	max := 1

	for len(stack) > 0 {
		top := &stack[len(stack)-1]
		node := s.index[top.id]

		descended := false
		for top.next < len(node.Choices) {
			c := &node.Choices[top.next]
			top.next++
			if c.IsRestart() {
				continue
			}
			child := s.index[c.NextNodeID]
			if child == nil || onPath[child.ID] {
				continue
			}
			onPath[child.ID] = true
			stack = append(stack, dfsFrame{id: child.ID})
			if len(stack) > max {
				max = len(stack)
			}
			descended = true
			break
		}

		if !descended {
			onPath[top.id] = false
			stack = stack[:len(stack)-1]
		}
	}
	return max
}

// EndingNodes returns the nodes that end the story: no choices, or a lone
// restart choice.
func (s *Story) EndingNodes() []story.Node {
	var ends []story.Node
	for i := range s.nodes {
		if s.nodes[i].IsEnding() {
			ends = append(ends, s.nodes[i])
		}
	}
	return ends
}
