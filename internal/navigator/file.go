package navigator

import (
	"fmt"
	"os"

	"github.com/taleweave/engine/internal/authoring"
)

// LoadBytes decodes a canonical story file (bare node array, metadata
// envelope, or authoring project) and indexes it for playback. Authoring
// projects carry their own start, which is passed through as a hint.
func LoadBytes(raw []byte) (*Story, []string, error) {
	fs, err := authoring.DecodeStoryFile(raw)
	if err != nil {
		return nil, nil, err
	}

	var opts []Option
	if fs.StartHint != "" {
		opts = append(opts, WithStartHint(fs.StartHint))
	}
	s, err := Load(fs.Nodes, opts...)
	if err != nil {
		return nil, fs.Warnings, err
	}
	return s, fs.Warnings, nil
}

// LoadFile reads and loads a story file from disk.
func LoadFile(path string) (*Story, []string, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read story file: %w", err)
	}
	return LoadBytes(raw)
}
