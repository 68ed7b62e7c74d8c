package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/taleweave/engine/internal/authoring"
	"github.com/taleweave/engine/internal/navigator"
	"github.com/taleweave/engine/internal/story"
)

type LogLine struct {
	Timestamp string                 `json:"ts"`
	Level     string                 `json:"level"`
	Event     string                 `json:"event"`
	Message   string                 `json:"msg,omitempty"`
	Fields    map[string]interface{} `json:"fields,omitempty"`
}

func logEvent(level, event, msg string, fields map[string]interface{}) {
	line := LogLine{
		Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
		Level:     level,
		Event:     event,
		Message:   msg,
		Fields:    fields,
	}
	b, _ := json.Marshal(line)
	fmt.Fprintln(os.Stderr, string(b))
}

func usage() {
	fmt.Fprintln(os.Stderr, `usage: storytool <command> [flags] <file>

commands:
  validate  check a story file for structural problems
  convert   turn an authoring project into a canonical story
  migrate   turn a legacy flat export into a canonical story
  stats     print traversal statistics for a story file`)
	os.Exit(2)
}

func readInput(path string) []byte {
	b, err := os.ReadFile(path)
	if err != nil {
		logEvent("error", "system.error", "failed to read input", map[string]interface{}{
			"path":  path,
			"error": err.Error(),
		})
		os.Exit(1)
	}
	return b
}

func writeOutput(path string, nodes []story.Node) {
	out, err := json.MarshalIndent(nodes, "", "  ")
	if err != nil {
		logEvent("error", "system.error", "failed to encode story", map[string]interface{}{
			"error": err.Error(),
		})
		os.Exit(1)
	}
	if path == "" {
		fmt.Println(string(out))
		return
	}
	if err := os.WriteFile(path, append(out, '\n'), 0o644); err != nil {
		logEvent("error", "system.error", "failed to write output", map[string]interface{}{
			"path":  path,
			"error": err.Error(),
		})
		os.Exit(1)
	}
}

func runValidate(args []string) {
	fs := flag.NewFlagSet("validate", flag.ExitOnError)
	fs.Parse(args)
	if fs.NArg() != 1 {
		usage()
	}

	decoded, err := authoring.DecodeStoryFile(readInput(fs.Arg(0)))
	if err != nil {
		logEvent("error", "system.error", "unrecognized story file", map[string]interface{}{
			"error": err.Error(),
		})
		os.Exit(1)
	}
	for _, w := range decoded.Warnings {
		logEvent("warn", "story.validated", w, nil)
	}

	res := story.Validate(decoded.Nodes)
	out, _ := json.MarshalIndent(res, "", "  ")
	fmt.Println(string(out))

	logEvent("info", "story.validated", "", map[string]interface{}{
		"is_valid": res.IsValid,
		"errors":   len(res.Errors),
		"warnings": len(res.Warnings),
	})
	if !res.IsValid {
		os.Exit(1)
	}
}

func runConvert(args []string) {
	fs := flag.NewFlagSet("convert", flag.ExitOnError)
	outPath := fs.String("o", "", "output file (default stdout)")
	fs.Parse(args)
	if fs.NArg() != 1 {
		usage()
	}

	var project authoring.Project
	if err := json.Unmarshal(readInput(fs.Arg(0)), &project); err != nil {
		logEvent("error", "system.error", "input is not an authoring project", map[string]interface{}{
			"error": err.Error(),
		})
		os.Exit(1)
	}

	res := authoring.ConvertProject(project)
	for _, w := range res.Warnings {
		logEvent("warn", "story.converted", w, nil)
	}
	for _, e := range res.Errors {
		logEvent("error", "story.converted", e, nil)
	}
	if len(res.Errors) > 0 {
		os.Exit(1)
	}

	logEvent("info", "story.converted", "", map[string]interface{}{
		"nodes": len(res.Story),
		"start": res.StartNodeID,
	})
	writeOutput(*outPath, res.Story)
}

func runMigrate(args []string) {
	fs := flag.NewFlagSet("migrate", flag.ExitOnError)
	outPath := fs.String("o", "", "output file (default stdout)")
	fs.Parse(args)
	if fs.NArg() != 1 {
		usage()
	}

	res, err := authoring.MigrateLegacy(readInput(fs.Arg(0)))
	if err != nil {
		logEvent("error", "system.error", "migration failed", map[string]interface{}{
			"error": err.Error(),
		})
		os.Exit(1)
	}
	for _, w := range res.Warnings {
		logEvent("warn", "story.migrated", w, nil)
	}

	logEvent("info", "story.migrated", "", map[string]interface{}{
		"nodes": len(res.Story),
		"start": res.StartNodeID,
	})
	writeOutput(*outPath, res.Story)
}

func runStats(args []string) {
	fs := flag.NewFlagSet("stats", flag.ExitOnError)
	fs.Parse(args)
	if fs.NArg() != 1 {
		usage()
	}

	st, warnings, err := navigator.LoadBytes(readInput(fs.Arg(0)))
	if err != nil {
		logEvent("error", "system.error", "failed to load story", map[string]interface{}{
			"error": err.Error(),
		})
		os.Exit(1)
	}
	for _, w := range warnings {
		logEvent("warn", "story.loaded", w, nil)
	}

	view := struct {
		navigator.Stats
		StartNodeID string `json:"startNodeId"`
		EndingNodes int    `json:"endingNodes"`
	}{
		Stats:       st.Stats(),
		StartNodeID: st.StartNodeID(),
		EndingNodes: len(st.EndingNodes()),
	}
	out, _ := json.MarshalIndent(view, "", "  ")
	fmt.Println(string(out))
}

func main() {
	if len(os.Args) < 2 {
		usage()
	}

	switch os.Args[1] {
	case "validate":
		runValidate(os.Args[2:])
	case "convert":
		runConvert(os.Args[2:])
	case "migrate":
		runMigrate(os.Args[2:])
	case "stats":
		runStats(os.Args[2:])
	default:
		usage()
	}
}
