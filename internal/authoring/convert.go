// Package authoring converts editor-produced story projects into the
// canonical story graph and migrates legacy story formats. All conversions
// are pure: inputs are never mutated.
package authoring

import (
	"fmt"
	"sort"
	"strconv"

	"github.com/taleweave/engine/internal/story"
)

// NodeType tags an authoring node in the visual editor.
type NodeType string

const (
	NodeStart NodeType = "start"
	NodeStory NodeType = "story"
	NodeEnd   NodeType = "end"
)

// ProjectNode is one node as produced by the visual editor: an editor id,
// a type tag, and the embedded story payload.
type ProjectNode struct {
	ID    string     `json:"id"`
	Type  NodeType   `json:"nodeType"`
	Story story.Node `json:"story"`
}

// Edge is a connection drawn between two editor nodes.
type Edge struct {
	Source string `json:"source"`
	Target string `json:"target"`
	Label  string `json:"label,omitempty"`
}

// Project is the full editable graph: separate node and connection lists.
type Project struct {
	Nodes []ProjectNode `json:"nodes"`
	Edges []Edge        `json:"edges"`
}

// ConvertResult is the outcome of a project conversion. When Errors is
// non-empty, Story is empty and must not be used.
type ConvertResult struct {
	Story       []story.Node `json:"story"`
	StartNodeID string       `json:"startNodeId"`
	Errors      []string     `json:"errors"`
	Warnings    []string     `json:"warnings"`
}

// restartChoice is the synthetic transition appended to end nodes.
func restartChoice() story.Choice {
	return story.Choice{
		ID:         "restart",
		Text:       "Restart story",
		NextNodeID: story.RestartSentinel,
	}
}

// ConvertProject transforms an editable project into a canonical story
// graph. Choices are synthesized from connections, end nodes gain a restart
// transition (idempotently), and the result is re-validated for integrity.
// The input is deep-copied first; the caller's project is never touched.
func ConvertProject(p Project) ConvertResult {
	res := ConvertResult{Errors: []string{}, Warnings: []string{}}

	if len(p.Nodes) == 0 {
		res.Errors = append(res.Errors, "project has no nodes")
		return res
	}

	startID, startErrs, startWarns := resolveStart(p.Nodes)
	res.Errors = append(res.Errors, startErrs...)
	res.Warnings = append(res.Warnings, startWarns...)
	if len(res.Errors) > 0 {
		return res
	}

	nodes := make([]story.Node, 0, len(p.Nodes))
	for i := range p.Nodes {
		nodes = append(nodes, convertNode(&p.Nodes[i], p.Edges))
	}

	check := story.ValidateIntegrity(nodes, startID)
	res.Warnings = append(res.Warnings, check.Warnings...)
	if len(check.Errors) > 0 {
		res.Errors = append(res.Errors, check.Errors...)
		return res
	}

	res.Story = orderNodes(nodes, startID)
	res.StartNodeID = startID
	return res
}

// convertNode synthesizes a node's choices from its outgoing connections.
// Connection labels win; otherwise the authored choice text at the same
// ordinal is reused; otherwise a positional placeholder is generated.
func convertNode(pn *ProjectNode, edges []Edge) story.Node {
	node := pn.Story.Clone()
	node.ID = pn.ID
	original := node.Choices

	var converted []story.Choice
	ordinal := 0
	for _, e := range edges {
		if e.Source != pn.ID {
			continue
		}
		c := story.Choice{NextNodeID: e.Target}
		if ordinal < len(original) {
			c.ID = original[ordinal].ID
			c.Text = original[ordinal].Text
			c.Conditions = original[ordinal].Conditions
			c.Consequences = original[ordinal].Consequences
		}
		if c.ID == "" {
			c.ID = fmt.Sprintf("choice_%d", ordinal+1)
		}
		if e.Label != "" {
			c.Text = e.Label
		}
		if c.Text == "" {
			c.Text = fmt.Sprintf("Choice %d", ordinal+1)
		}
		converted = append(converted, c)
		ordinal++
	}

	// Edit-in-progress: a node may have authored choices but no drawn
	// connections yet. Keep the authored content rather than dropping it.
	if len(converted) == 0 && len(original) > 0 {
		converted = original
	}

	node.Choices = converted

	if pn.Type == NodeEnd && !hasRestart(converted) {
		node.Choices = append(node.Choices, restartChoice())
	}

	return node
}

func hasRestart(choices []story.Choice) bool {
	for i := range choices {
		if choices[i].IsRestart() {
			return true
		}
	}
	return false
}

// resolveStart finds the start-tagged node. With no tagged node the first
// node (input order) is promoted and a warning surfaced; more than one
// tagged node is an error.
func resolveStart(nodes []ProjectNode) (string, []string, []string) {
	var tagged []string
	for i := range nodes {
		if nodes[i].Type == NodeStart {
			tagged = append(tagged, nodes[i].ID)
		}
	}
	switch len(tagged) {
	case 1:
		return tagged[0], nil, nil
	case 0:
		first := nodes[0].ID
		warn := fmt.Sprintf("no node tagged as start; promoted first node %q", first)
		return first, nil, []string{warn}
	default:
		err := fmt.Sprintf("multiple nodes tagged as start: %v", tagged)
		return "", []string{err}, nil
	}
}

// orderNodes returns the published output ordering: start node first, the
// rest by numeric id when every id parses as an integer, lexicographically
// otherwise. Deterministic for identical input.
func orderNodes(nodes []story.Node, startID string) []story.Node {
	numeric := true
	values := make(map[string]int, len(nodes))
	for i := range nodes {
		v, err := strconv.Atoi(nodes[i].ID)
		if err != nil {
			numeric = false
			break
		}
		values[nodes[i].ID] = v
	}

	rest := make([]story.Node, 0, len(nodes)-1)
	var start *story.Node
	for i := range nodes {
		if nodes[i].ID == startID && start == nil {
			start = &nodes[i]
			continue
		}
		rest = append(rest, nodes[i])
	}

	sort.SliceStable(rest, func(i, j int) bool {
		if numeric {
			return values[rest[i].ID] < values[rest[j].ID]
		}
		return rest[i].ID < rest[j].ID
	})

	out := make([]story.Node, 0, len(nodes))
	if start != nil {
		out = append(out, *start)
	}
	return append(out, rest...)
}
