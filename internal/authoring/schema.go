package authoring

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/taleweave/engine/internal/story"
)

// FileStory is a decoded canonical story file, whatever shape it arrived in.
type FileStory struct {
	Nodes []story.Node
	// StartHint is set when the file shape names its own start (authoring
	// projects do); empty means the loader detects the start structurally.
	StartHint string
	Warnings  []string
}

type storyEnvelope struct {
	Metadata map[string]interface{} `json:"metadata"`
	Story    []story.Node           `json:"story"`
}

// DecodeStoryFile accepts the three published story file shapes: a bare
// array of nodes, a {metadata, story} envelope, or an authoring project
// ({nodes, edges}) which is routed through ConvertProject. Anything else
// is an *InvalidFormatError.
func DecodeStoryFile(raw []byte) (*FileStory, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return nil, &InvalidFormatError{Reason: "empty input"}
	}

	if trimmed[0] == '[' {
		var nodes []story.Node
		if err := json.Unmarshal(trimmed, &nodes); err != nil {
			return nil, &InvalidFormatError{Reason: fmt.Sprintf("not a node array: %v", err)}
		}
		if reasons := nodeShapeReasons(nodes); len(reasons) > 0 {
			return nil, &InvalidFormatError{Reason: reasons[0]}
		}
		return &FileStory{Nodes: nodes}, nil
	}

	var keys map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &keys); err != nil {
		return nil, &InvalidFormatError{Reason: fmt.Sprintf("not a JSON object or array: %v", err)}
	}

	if _, ok := keys["story"]; ok {
		var env storyEnvelope
		if err := json.Unmarshal(trimmed, &env); err != nil {
			return nil, &InvalidFormatError{Reason: fmt.Sprintf("bad story envelope: %v", err)}
		}
		if reasons := nodeShapeReasons(env.Story); len(reasons) > 0 {
			return nil, &InvalidFormatError{Reason: reasons[0]}
		}
		return &FileStory{Nodes: env.Story}, nil
	}

	if _, ok := keys["nodes"]; ok {
		var p Project
		if err := json.Unmarshal(trimmed, &p); err != nil {
			return nil, &InvalidFormatError{Reason: fmt.Sprintf("bad authoring project: %v", err)}
		}
		res := ConvertProject(p)
		if len(res.Errors) > 0 {
			return nil, &InvalidFormatError{Reason: fmt.Sprintf("project conversion failed: %v", res.Errors)}
		}
		return &FileStory{Nodes: res.Story, StartHint: res.StartNodeID, Warnings: res.Warnings}, nil
	}

	return nil, &InvalidFormatError{Reason: "object has neither a story nor a nodes field"}
}

// nodeShapeReasons validates decoded nodes beyond what the JSON type system
// enforces. Returns one reason per defect.
func nodeShapeReasons(nodes []story.Node) []string {
	if len(nodes) == 0 {
		return []string{"story contains no nodes"}
	}
	var reasons []string
	for i := range nodes {
		if nodes[i].ID == "" {
			reasons = append(reasons, fmt.Sprintf("node at index %d has no id", i))
		}
		for j := range nodes[i].Choices {
			if nodes[i].Choices[j].NextNodeID == "" {
				reasons = append(reasons, fmt.Sprintf("node %q choice at index %d has no nextNodeId", nodes[i].ID, j))
			}
		}
	}
	return reasons
}
