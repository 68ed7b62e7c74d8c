package story

// RestartSentinel is the nextNodeId value meaning "restart the story from
// its start node". It is a session-reset signal, not a real node id.
const RestartSentinel = "-1"

// Difficulty is authoring metadata on a node. Empty means unset.
type Difficulty string

const (
	DifficultyEasy   Difficulty = "easy"
	DifficultyMedium Difficulty = "medium"
	DifficultyHard   Difficulty = "hard"
)

// Rule is an opaque authoring extension attached to a choice (conditions,
// consequences). The engine preserves order and content but never
// interprets it.
type Rule map[string]interface{}

// Choice is an outgoing transition from a node. Order within a node is
// significant (display order).
type Choice struct {
	ID           string `json:"id"`
	Text         string `json:"text"`
	NextNodeID   string `json:"nextNodeId"`
	Conditions   []Rule `json:"conditions,omitempty"`
	Consequences []Rule `json:"consequences,omitempty"`
}

// IsRestart reports whether the choice targets the restart sentinel.
func (c *Choice) IsRestart() bool {
	return c.NextNodeID == RestartSentinel
}

// Node is a single scene in a story graph.
type Node struct {
	ID         string     `json:"id"`
	Title      string     `json:"title"`
	Content    string     `json:"content"`
	Choices    []Choice   `json:"choices"`
	Tags       []string   `json:"tags,omitempty"`
	Difficulty Difficulty `json:"difficulty,omitempty"`
	VisitCount int        `json:"visitCount"`
}

// IsEnding reports whether the node ends the story: it has no choices, or
// its only choice is the restart sentinel.
func (n *Node) IsEnding() bool {
	if len(n.Choices) == 0 {
		return true
	}
	return len(n.Choices) == 1 && n.Choices[0].IsRestart()
}

// Clone returns a deep copy of the node. Choice slices and rules are
// copied so mutating the clone never touches the original.
func (n *Node) Clone() Node {
	out := *n
	if n.Choices != nil {
		out.Choices = make([]Choice, len(n.Choices))
		for i := range n.Choices {
			out.Choices[i] = n.Choices[i].clone()
		}
	}
	if n.Tags != nil {
		out.Tags = append([]string(nil), n.Tags...)
	}
	return out
}

func (c *Choice) clone() Choice {
	out := *c
	out.Conditions = cloneRules(c.Conditions)
	out.Consequences = cloneRules(c.Consequences)
	return out
}

func cloneRules(rules []Rule) []Rule {
	if rules == nil {
		return nil
	}
	out := make([]Rule, len(rules))
	for i, r := range rules {
		cp := make(Rule, len(r))
		for k, v := range r {
			cp[k] = v
		}
		out[i] = cp
	}
	return out
}
