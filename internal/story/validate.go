package story

import (
	"fmt"
	"strings"
)

// Result is the outcome of validating a story graph. Errors make the graph
// unusable; warnings never block loading.
type Result struct {
	IsValid  bool     `json:"isValid"`
	Errors   []string `json:"errors"`
	Warnings []string `json:"warnings"`
}

// Validate checks the structural integrity of a story graph: exactly one
// start node (a node never referenced by a non-restart choice), no dangling
// references, and reachability from the start. Unreachable nodes and empty
// choice text are warnings, not errors. Never panics, even on nil input.
func Validate(nodes []Node) Result {
	res := Result{Errors: []string{}, Warnings: []string{}}

	if len(nodes) == 0 {
		res.Errors = append(res.Errors, "story has no nodes")
		return res
	}

	index := buildIndex(nodes, &res)
	checkReferences(nodes, index, &res)

	starts := startCandidates(nodes, index)
	switch len(starts) {
	case 1:
		warnUnreachable(nodes, index, starts[0], &res)
	case 0:
		res.Errors = append(res.Errors, "no start node: every node has an incoming choice")
	default:
		res.Errors = append(res.Errors, fmt.Sprintf("multiple start nodes: %s", strings.Join(starts, ", ")))
	}

	res.IsValid = len(res.Errors) == 0
	return res
}

// ValidateIntegrity is the converter's post-assembly check: dangling
// references are errors and unreachable nodes are warnings, but start-node
// uniqueness is not re-derived because the caller already knows the start.
func ValidateIntegrity(nodes []Node, startID string) Result {
	res := Result{Errors: []string{}, Warnings: []string{}}

	if len(nodes) == 0 {
		res.Errors = append(res.Errors, "story has no nodes")
		return res
	}

	index := buildIndex(nodes, &res)
	checkReferences(nodes, index, &res)

	if _, ok := index[startID]; ok {
		warnUnreachable(nodes, index, startID, &res)
	}

	res.IsValid = len(res.Errors) == 0
	return res
}

func buildIndex(nodes []Node, res *Result) map[string]struct{} {
	index := make(map[string]struct{}, len(nodes))
	for i := range nodes {
		id := nodes[i].ID
		if _, dup := index[id]; dup {
			res.Errors = append(res.Errors, fmt.Sprintf("duplicate node id %q", id))
			continue
		}
		index[id] = struct{}{}
	}
	return index
}

func checkReferences(nodes []Node, index map[string]struct{}, res *Result) {
	for i := range nodes {
		node := &nodes[i]
		for j := range node.Choices {
			choice := &node.Choices[j]
			if strings.TrimSpace(choice.Text) == "" {
				res.Warnings = append(res.Warnings, fmt.Sprintf("node %q choice %q has empty text", node.ID, choice.ID))
			}
			if choice.IsRestart() {
				continue
			}
			if _, ok := index[choice.NextNodeID]; !ok {
				res.Errors = append(res.Errors, fmt.Sprintf("node %q references missing node %q", node.ID, choice.NextNodeID))
			}
		}
	}
}

// startCandidates returns, in input order, the nodes with no incoming
// non-restart reference. Self-references count as incoming.
func startCandidates(nodes []Node, index map[string]struct{}) []string {
	incoming := make(map[string]int, len(nodes))
	for i := range nodes {
		for j := range nodes[i].Choices {
			choice := &nodes[i].Choices[j]
			if choice.IsRestart() {
				continue
			}
			if _, ok := index[choice.NextNodeID]; ok {
				incoming[choice.NextNodeID]++
			}
		}
	}

	var starts []string
	seen := make(map[string]struct{}, len(nodes))
	for i := range nodes {
		id := nodes[i].ID
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		if incoming[id] == 0 {
			starts = append(starts, id)
		}
	}
	return starts
}

// warnUnreachable walks the graph from the start node and warns for every
// node no directed path reaches. Iterative so pathological graphs cannot
// exhaust the call stack.
func warnUnreachable(nodes []Node, index map[string]struct{}, startID string, res *Result) {
	byID := make(map[string]*Node, len(nodes))
	for i := range nodes {
		if _, ok := byID[nodes[i].ID]; !ok {
			byID[nodes[i].ID] = &nodes[i]
		}
	}

	reached := map[string]struct{}{startID: {}}
	queue := []string{startID}
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		node := byID[current]
		if node == nil {
			continue
		}
		for j := range node.Choices {
			choice := &node.Choices[j]
			if choice.IsRestart() {
				continue
			}
			if _, ok := index[choice.NextNodeID]; !ok {
				continue
			}
			if _, ok := reached[choice.NextNodeID]; ok {
				continue
			}
			reached[choice.NextNodeID] = struct{}{}
			queue = append(queue, choice.NextNodeID)
		}
	}

	for i := range nodes {
		if _, ok := reached[nodes[i].ID]; !ok {
			res.Warnings = append(res.Warnings, fmt.Sprintf("node %q is unreachable from start node %q", nodes[i].ID, startID))
		}
	}
}
