package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/taleweave/engine/internal/api"
	"github.com/taleweave/engine/internal/config"
	"github.com/taleweave/engine/internal/events"
	"github.com/taleweave/engine/internal/mqtt"
	"github.com/taleweave/engine/internal/navigator"
	"github.com/taleweave/engine/internal/saves"
	"github.com/taleweave/engine/internal/session"
	"github.com/taleweave/engine/internal/storage/postgres"
	"github.com/taleweave/engine/internal/version"
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
	fmt.Println(string(b))
}

// openStore picks the save store per config, degrading to the in-memory
// store when Postgres is unreachable so the engine still plays.
func openStore(cfg *config.EngineConfig) saves.Store {
	if cfg.StorageDriver() == "memory" {
		api.SetStorageAvailable(true)
		return saves.NewMemoryStore()
	}

	st, err := postgres.New()
	if err != nil {
		logEvent("warn", "system.error", "postgres unavailable, saves are in-memory only", map[string]interface{}{
			"error": err.Error(),
		})
		api.SetStorageAvailable(false)
		return saves.NewMemoryStore()
	}
	api.SetStorageAvailable(true)
	return st
}

func main() {
	configPath := flag.String("config", "engine.yaml", "path to engine.yaml")
	flag.Parse()

	cfg, err := config.LoadEngineConfig(*configPath)
	if err != nil {
		logEvent("error", "system.error", "failed to load config", map[string]interface{}{
			"path":  *configPath,
			"error": err.Error(),
		})
		os.Exit(1)
	}

	hostname, _ := os.Hostname()
	logEvent("info", "system.startup", "engine starting", map[string]interface{}{
		"engine":   cfg.Engine.ID,
		"hostname": hostname,
		"version":  version.Version,
		"pid":      os.Getpid(),
	})

	api.InitMetrics()
	api.SetStoryName(cfg.Engine.Name)

	story, warnings, err := navigator.LoadFile(cfg.Story.Path)
	if err != nil {
		logEvent("error", "system.error", "failed to load story", map[string]interface{}{
			"path":  cfg.Story.Path,
			"error": err.Error(),
		})
		os.Exit(1)
	}
	for _, w := range warnings {
		logEvent("warn", "story.loaded", w, nil)
	}

	mgr := saves.NewManager(openStore(cfg))
	if cfg.Storage.Capacity > 0 {
		mgr.SetCapacity(cfg.Storage.Capacity)
	}

	if cfg.MQTT.Enabled {
		bridge := mqtt.NewBridge("taleweave-"+cfg.Engine.ID, cfg.MQTTTopic())
		if err := bridge.Connect(); err != nil {
			logEvent("warn", "system.error", "mqtt bridge unavailable", map[string]interface{}{
				"broker": mqtt.BrokerURL(),
				"error":  err.Error(),
			})
		} else {
			events.SetSink(bridge)
			api.SetMQTTConnected(true)
			defer bridge.Disconnect()
		}
	}

	events.Emit("info", "story.loaded", cfg.Engine.Name, map[string]interface{}{
		"path":     cfg.Story.Path,
		"nodes":    story.Len(),
		"start":    story.StartNodeID(),
		"warnings": len(warnings),
	})

	sess := session.New()
	if snap := mgr.RestoreSession(context.Background()); snap != nil {
		restored := session.FromSnapshot(*snap)
		if restored.Valid(story) {
			sess = restored
			events.Emit("info", "session.restored", "", map[string]interface{}{
				"node_id": sess.CurrentNodeID(),
			})
		} else {
			logEvent("warn", "session.cleared", "persisted session does not match the loaded story", nil)
		}
	}

	srv := api.New(story, sess, mgr)
	if err := srv.ListenAndServe(cfg.APIPort()); err != nil {
		logEvent("error", "system.shutdown", "api server failed", map[string]interface{}{
			"error": err.Error(),
		})
		os.Exit(1)
	}
}
