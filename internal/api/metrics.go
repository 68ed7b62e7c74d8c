package api

import (
	"fmt"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/taleweave/engine/internal/events"
	"github.com/taleweave/engine/internal/version"
)

var metricsState = &MetricsState{}

// MetricsState holds runtime gauges for the /metrics endpoint.
type MetricsState struct {
	mu               sync.RWMutex
	startTime        time.Time
	storyName        string
	storageAvailable bool
	mqttConnected    bool
}

// InitMetrics initializes the metrics system. Must be called at startup.
func InitMetrics() {
	metricsState.mu.Lock()
	defer metricsState.mu.Unlock()
	metricsState.startTime = time.Now()
}

// SetStoryName sets the loaded story's name for metrics labels.
func SetStoryName(name string) {
	metricsState.mu.Lock()
	defer metricsState.mu.Unlock()
	metricsState.storyName = name
}

// SetStorageAvailable records whether the save store is reachable.
func SetStorageAvailable(ok bool) {
	metricsState.mu.Lock()
	defer metricsState.mu.Unlock()
	metricsState.storageAvailable = ok
}

// SetMQTTConnected records whether the event bridge is connected.
func SetMQTTConnected(ok bool) {
	metricsState.mu.Lock()
	defer metricsState.mu.Unlock()
	metricsState.mqttConnected = ok
}

// metricsHandler returns Prometheus-compatible metrics in text format.
func (s *Server) metricsHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	metricsState.mu.RLock()
	startTime := metricsState.startTime
	storyName := metricsState.storyName
	storageAvailable := metricsState.storageAvailable
	mqttConnected := metricsState.mqttConnected
	metricsState.mu.RUnlock()

	uptime := time.Since(startTime).Seconds()
	eventsTotal := events.TotalCount()
	wsClients := events.SubscriberCount()

	s.mu.Lock()
	stats := s.story.Stats()
	sessionActive := 0
	if s.sess.Active() {
		sessionActive = 1
	}
	saveCount := len(s.saves.List(r.Context()))
	s.mu.Unlock()

	storageVal := 0
	if storageAvailable {
		storageVal = 1
	}
	mqttVal := 0
	if mqttConnected {
		mqttVal = 1
	}

	hostname, _ := os.Hostname()
	if hostname == "" {
		hostname = "unknown"
	}

	w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")

	writeMetric := func(name, mtype, help string, value interface{}, labels string) {
		fmt.Fprintf(w, "# HELP %s %s\n", name, help)
		fmt.Fprintf(w, "# TYPE %s %s\n", name, mtype)
		if labels != "" {
			fmt.Fprintf(w, "%s{%s} %v\n", name, labels, value)
		} else {
			fmt.Fprintf(w, "%s %v\n", name, value)
		}
	}

	labels := fmt.Sprintf(`story="%s",instance="%s",version="%s"`, storyName, hostname, version.Version)

	writeMetric("taleweave_uptime_seconds", "gauge",
		"Number of seconds since the engine started", uptime, labels)

	writeMetric("taleweave_story_nodes", "gauge",
		"Number of nodes in the loaded story", stats.TotalNodes, labels)

	writeMetric("taleweave_story_choices", "gauge",
		"Number of choices in the loaded story", stats.TotalChoices, labels)

	writeMetric("taleweave_session_active", "gauge",
		"Whether a play session is active (1) or not (0)", sessionActive, labels)

	writeMetric("taleweave_saves_total", "gauge",
		"Number of saves currently retained", saveCount, labels)

	writeMetric("taleweave_events_total", "counter",
		"Total number of events emitted since startup", eventsTotal, labels)

	writeMetric("taleweave_ws_clients", "gauge",
		"Number of active WebSocket client connections", wsClients, labels)

	writeMetric("taleweave_storage_available", "gauge",
		"Whether the save store is reachable (1) or not (0)", storageVal, labels)

	writeMetric("taleweave_mqtt_connected", "gauge",
		"Whether the MQTT event bridge is connected (1) or not (0)", mqttVal, labels)
}
