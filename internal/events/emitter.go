// Package events is the engine's structured telemetry: every notable action
// is emitted as a named event into a ring buffer, fanned out to live
// subscribers, and optionally forwarded to an external sink.
package events

import (
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

var buffer = NewRingBuffer(256)

var totalEmitted atomic.Int64

// Sink receives every emitted event, e.g. an MQTT bridge. Sinks must be
// fast or buffer internally; Emit calls them synchronously.
type Sink interface {
	Write(e Event) error
}

var (
	sinkMu          sync.RWMutex
	sink            Sink
	sinkErrorLogged bool
)

// SetSink installs the external event sink. Pass nil to detach.
func SetSink(s Sink) {
	sinkMu.Lock()
	sink = s
	sinkErrorLogged = false
	sinkMu.Unlock()
}

// Event is one emitted telemetry record.
type Event struct {
	Timestamp string                 `json:"ts"`
	Level     string                 `json:"level"`
	Name      string                 `json:"event"`
	Message   string                 `json:"msg,omitempty"`
	Fields    map[string]interface{} `json:"fields,omitempty"`
}

// Emit records an event: validated against the registry, appended to the
// ring buffer, broadcast to subscribers, and forwarded to the sink. Sink
// failures are logged once (as a buffered system.error) and never propagate
// to the caller's flow.
func Emit(level, name, msg string, fields map[string]interface{}) ([]byte, error) {
	if err := ValidateName(name); err != nil {
		return nil, err
	}

	e := Event{
		Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
		Level:     level,
		Name:      name,
		Message:   msg,
		Fields:    fields,
	}

	buffer.Add(e)
	totalEmitted.Add(1)
	broadcast(e)

	sinkMu.RLock()
	s := sink
	logged := sinkErrorLogged
	sinkMu.RUnlock()

	if s != nil {
		if err := s.Write(e); err != nil && !logged {
			sinkMu.Lock()
			if !sinkErrorLogged {
				sinkErrorLogged = true
				// Added straight to the buffer, NOT through Emit: a
				// persistently failing sink must not recurse.
				buffer.Add(Event{
					Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
					Level:     "error",
					Name:      "system.error",
					Message:   "event sink write failed",
					Fields:    map[string]interface{}{"error": err.Error()},
				})
			}
			sinkMu.Unlock()
		}
	}

	b, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal event: %w", err)
	}
	return b, nil
}

// Snapshot returns the buffered events oldest-first.
func Snapshot() []Event {
	return buffer.Snapshot()
}

// TotalCount returns the number of events emitted since startup.
func TotalCount() int64 {
	return totalEmitted.Load()
}

// Clear resets the event buffer. Used for testing.
func Clear() {
	buffer.Clear()
}
