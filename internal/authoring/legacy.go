package authoring

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"

	"github.com/taleweave/engine/internal/story"
)

// legacyNode is the pre-graph flat story format: numeric ids and options
// whose nextText points at another numeric id, -1 meaning restart.
type legacyNode struct {
	ID      int            `json:"id"`
	Text    string         `json:"text"`
	Options []legacyOption `json:"options"`
}

type legacyOption struct {
	Text     string `json:"text"`
	NextText int    `json:"nextText"`
}

// MigrateResult carries a migrated legacy story.
type MigrateResult struct {
	Story       []story.Node
	StartNodeID string
	Warnings    []string
}

// MigrateLegacy translates a legacy flat story export into canonical nodes.
// Input order is not trusted: nodes are sorted by numeric id before node 1
// is tagged as the start. Ids and option targets are stringified, with
// numeric -1 preserved as the restart sentinel.
func MigrateLegacy(raw []byte) (MigrateResult, error) {
	var legacy []legacyNode
	if err := json.Unmarshal(raw, &legacy); err != nil {
		return MigrateResult{}, &InvalidFormatError{Reason: fmt.Sprintf("legacy story must be a JSON array: %v", err)}
	}
	if len(legacy) == 0 {
		return MigrateResult{}, &InvalidFormatError{Reason: "legacy story has no entries"}
	}

	sort.SliceStable(legacy, func(i, j int) bool { return legacy[i].ID < legacy[j].ID })

	res := MigrateResult{StartNodeID: strconv.Itoa(legacy[0].ID)}
	if legacy[0].ID != 1 {
		res.Warnings = append(res.Warnings, fmt.Sprintf("legacy story has no node 1; node %d becomes the start", legacy[0].ID))
	}

	for _, ln := range legacy {
		node := story.Node{
			ID:      strconv.Itoa(ln.ID),
			Content: ln.Text,
		}
		for i, opt := range ln.Options {
			node.Choices = append(node.Choices, story.Choice{
				ID:         fmt.Sprintf("choice_%d", i+1),
				Text:       opt.Text,
				NextNodeID: strconv.Itoa(opt.NextText),
			})
		}
		res.Story = append(res.Story, node)
	}

	return res, nil
}
