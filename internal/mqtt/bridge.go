// Package mqtt publishes engine telemetry to an MQTT broker so external
// integrations (authoring tools, dashboards) can follow live play sessions.
package mqtt

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	"github.com/taleweave/engine/internal/events"
)

// BrokerURL returns the MQTT broker URL from env or default.
func BrokerURL() string {
	if url := os.Getenv("MQTT_URL"); url != "" {
		return url
	}
	return "tcp://localhost:1883"
}

// Bridge forwards emitted engine events to a broker topic. It satisfies
// events.Sink.
type Bridge struct {
	client paho.Client
	topic  string
	mu     sync.Mutex
}

// NewBridge creates a bridge but does not connect.
func NewBridge(clientID, topic string) *Bridge {
	opts := paho.NewClientOptions().
		AddBroker(BrokerURL()).
		SetClientID(clientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5 * time.Second).
		SetKeepAlive(30 * time.Second)

	return &Bridge{
		client: paho.NewClient(opts),
		topic:  topic,
	}
}

// Connect attempts to connect to the broker without blocking indefinitely.
func (b *Bridge) Connect() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	token := b.client.Connect()
	if !token.WaitTimeout(10 * time.Second) {
		return &ConnectTimeoutError{}
	}
	return token.Error()
}

// Write publishes one event to the bridge topic at QoS 0. Events are
// telemetry: a dropped message is acceptable, a stalled engine is not.
func (b *Bridge) Write(e events.Event) error {
	if !b.client.IsConnected() {
		return &NotConnectedError{}
	}

	payload, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	token := b.client.Publish(b.topic, 0, false, payload)
	if !token.WaitTimeout(5 * time.Second) {
		return &PublishTimeoutError{Topic: b.topic}
	}
	return token.Error()
}

// Disconnect cleanly disconnects from the broker.
func (b *Bridge) Disconnect() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.client.Disconnect(1000)
}

// IsConnected returns true if the bridge is connected.
func (b *Bridge) IsConnected() bool {
	return b.client.IsConnected()
}

// ConnectTimeoutError indicates the broker connection timed out.
type ConnectTimeoutError struct{}

func (e *ConnectTimeoutError) Error() string {
	return "mqtt connect timed out"
}

// NotConnectedError indicates a publish was attempted while disconnected.
type NotConnectedError struct{}

func (e *NotConnectedError) Error() string {
	return "mqtt bridge not connected"
}

// PublishTimeoutError indicates a publish did not complete in time.
type PublishTimeoutError struct {
	Topic string
}

func (e *PublishTimeoutError) Error() string {
	return fmt.Sprintf("mqtt publish to %s timed out", e.Topic)
}
