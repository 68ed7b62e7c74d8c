// Package config loads the engine's versioned YAML configuration.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// EngineConfig is the engine.yaml schema.
type EngineConfig struct {
	Version int `yaml:"version"`
	Engine  struct {
		ID          string `yaml:"id"`
		Name        string `yaml:"name"`
		Description string `yaml:"description"`
	} `yaml:"engine"`
	Story struct {
		Path string `yaml:"path"`
	} `yaml:"story"`
	Network struct {
		APIPort int `yaml:"api_port"`
	} `yaml:"network"`
	Storage struct {
		// Driver selects the save store: "postgres" or "memory".
		Driver string `yaml:"driver"`
		// Capacity overrides the save retention bound; 0 keeps the default.
		Capacity int `yaml:"capacity"`
	} `yaml:"storage"`
	MQTT struct {
		Enabled bool   `yaml:"enabled"`
		Topic   string `yaml:"topic"`
	} `yaml:"mqtt"`
}

// APIPort returns the configured API port, defaulting to 8080.
func (c *EngineConfig) APIPort() int {
	if c.Network.APIPort == 0 {
		return 8080
	}
	return c.Network.APIPort
}

// StorageDriver returns the configured driver, defaulting to postgres.
func (c *EngineConfig) StorageDriver() string {
	if c.Storage.Driver == "" {
		return "postgres"
	}
	return c.Storage.Driver
}

// MQTTTopic returns the event bridge topic, defaulting to a per-engine one.
func (c *EngineConfig) MQTTTopic() string {
	if c.MQTT.Topic != "" {
		return c.MQTT.Topic
	}
	id := c.Engine.ID
	if id == "" {
		id = "default"
	}
	return "taleweave/" + id + "/events"
}

// LoadEngineConfig reads and parses engine.yaml, rejecting unknown schema
// versions.
func LoadEngineConfig(path string) (*EngineConfig, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg EngineConfig
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, err
	}

	if cfg.Version != 1 {
		return nil, fmt.Errorf("unsupported engine.yaml version: %d", cfg.Version)
	}

	return &cfg, nil
}
