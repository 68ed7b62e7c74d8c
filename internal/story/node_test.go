package story

import "testing"

func TestIsEnding(t *testing.T) {
	noChoices := Node{ID: "end"}
	if !noChoices.IsEnding() {
		t.Error("node without choices should be an ending")
	}

	restartOnly := Node{ID: "end", Choices: []Choice{
		{ID: "c1", Text: "Play again", NextNodeID: RestartSentinel},
	}}
	if !restartOnly.IsEnding() {
		t.Error("node whose only choice is restart should be an ending")
	}

	branching := Node{ID: "mid", Choices: []Choice{
		{ID: "c1", Text: "on", NextNodeID: "next"},
		{ID: "c2", Text: "again", NextNodeID: RestartSentinel},
	}}
	if branching.IsEnding() {
		t.Error("node with a real outgoing choice is not an ending")
	}
}

func TestCloneIsDeep(t *testing.T) {
	orig := Node{
		ID:      "a",
		Tags:    []string{"forest"},
		Choices: []Choice{{ID: "c1", Text: "go", NextNodeID: "b", Conditions: []Rule{{"flag": "torch"}}}},
	}
	cp := orig.Clone()
	cp.Choices[0].Text = "changed"
	cp.Choices[0].Conditions[0]["flag"] = "rope"
	cp.Tags[0] = "cave"

	if orig.Choices[0].Text != "go" {
		t.Error("clone shares choice backing array")
	}
	if orig.Choices[0].Conditions[0]["flag"] != "torch" {
		t.Error("clone shares rule map")
	}
	if orig.Tags[0] != "forest" {
		t.Error("clone shares tags")
	}
}
