// Package navigator indexes a canonical story graph for playback: O(1)
// node lookup, structural start detection, traversal statistics, and
// delegated validation. Each play session owns its own Story instance;
// there is no shared process-wide navigator.
package navigator

import (
	"fmt"
	"strings"

	"github.com/taleweave/engine/internal/story"
)

// LoadError indicates a story could not be indexed for playback.
type LoadError struct {
	Reason string
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("story load failed: %s", e.Reason)
}

// Option configures Load.
type Option func(*loadOptions)

type loadOptions struct {
	startHint string
}

// WithStartHint supplies a start-node id used only when structural
// detection is ambiguous (zero or several candidates).
func WithStartHint(id string) Option {
	return func(o *loadOptions) { o.startHint = id }
}

// Story is an indexed, immutable view of a loaded story graph.
type Story struct {
	nodes   []story.Node
	index   map[string]*story.Node
	startID string
}

// Load builds the node index and determines the start node structurally:
// the unique node never referenced as a non-restart target. This trusts
// graph structure, not authoring metadata. Zero or multiple candidates fail
// with a *LoadError unless a start hint resolves the ambiguity.
func Load(nodes []story.Node, opts ...Option) (*Story, error) {
	var o loadOptions
	for _, opt := range opts {
		opt(&o)
	}

	if len(nodes) == 0 {
		return nil, &LoadError{Reason: "story has no nodes"}
	}

	s := &Story{
		nodes: nodes,
		index: make(map[string]*story.Node, len(nodes)),
	}
	for i := range nodes {
		id := nodes[i].ID
		if _, dup := s.index[id]; dup {
			return nil, &LoadError{Reason: fmt.Sprintf("duplicate node id %q", id)}
		}
		s.index[id] = &nodes[i]
	}

	startID, err := s.detectStart(o.startHint)
	if err != nil {
		return nil, err
	}
	s.startID = startID
	return s, nil
}

func (s *Story) detectStart(hint string) (string, error) {
	incoming := make(map[string]int, len(s.nodes))
	for i := range s.nodes {
		for j := range s.nodes[i].Choices {
			c := &s.nodes[i].Choices[j]
			if c.IsRestart() {
				continue
			}
			incoming[c.NextNodeID]++
		}
	}

	var candidates []string
	for i := range s.nodes {
		if incoming[s.nodes[i].ID] == 0 {
			candidates = append(candidates, s.nodes[i].ID)
		}
	}

	if len(candidates) == 1 {
		return candidates[0], nil
	}

	// Ambiguous. With several candidates the hint must name one of them;
	// with none, any hinted node that exists is taken.
	if hint != "" {
		for _, id := range candidates {
			if id == hint {
				return id, nil
			}
		}
		if len(candidates) == 0 {
			if _, ok := s.index[hint]; ok {
				return hint, nil
			}
		}
	}

	if len(candidates) == 0 {
		return "", &LoadError{Reason: "no start node: every node has an incoming choice"}
	}
	return "", &LoadError{Reason: fmt.Sprintf("multiple start candidates: %s", strings.Join(candidates, ", "))}
}

// StartNodeID returns the id of the resolved start node.
func (s *Story) StartNodeID() string {
	return s.startID
}

// StartNode returns the resolved start node.
func (s *Story) StartNode() *story.Node {
	return s.index[s.startID]
}

// Node returns the node with the given id, or nil. Never panics on unknown
// ids.
func (s *Story) Node(id string) *story.Node {
	return s.index[id]
}

// Len returns the number of nodes in the story.
func (s *Story) Len() int {
	return len(s.nodes)
}

// Nodes returns the loaded nodes in their canonical order.
func (s *Story) Nodes() []story.Node {
	return s.nodes
}

// NextNode resolves the chosen edge from the current node. Returns nil when
// the node or choice is unknown, and also for the restart sentinel: restart
// is a session-reset signal, not a graph transition, and callers must
// special-case it before asking the navigator.
func (s *Story) NextNode(currentID, choiceID string) *story.Node {
	current := s.index[currentID]
	if current == nil {
		return nil
	}
	for i := range current.Choices {
		c := &current.Choices[i]
		if c.ID != choiceID {
			continue
		}
		if c.IsRestart() {
			return nil
		}
		return s.index[c.NextNodeID]
	}
	return nil
}

// Validate delegates to the graph validator.
func (s *Story) Validate() story.Result {
	return story.Validate(s.nodes)
}
