package executor

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/srg/ringlink/internal/event"
)

// DefaultTelemetryTopic is used when the action configures no topic.
const DefaultTelemetryTopic = "ringlink/events"

// Telemetry publishes events as JSON to an MQTT broker, QoS 0. It is the
// fire-and-forget observability mirror of the pipeline.
type Telemetry struct {
	client      paho.Client
	topic       string
	publishWait time.Duration
}

// NewTelemetry builds a telemetry executor. Options: broker (e.g.
// tcp://host:1883, required), topic, client_id.
func NewTelemetry(_ Deps, opts map[string]string) (Executor, error) {
	broker := opts["broker"]
	if broker == "" {
		return nil, fmt.Errorf("telemetry executor: broker is required")
	}

	topic := opts["topic"]
	if topic == "" {
		topic = DefaultTelemetryTopic
	}
	clientID := opts["client_id"]
	if clientID == "" {
		clientID = "ringlink"
	}

	clientOpts := paho.NewClientOptions().
		AddBroker(broker).
		SetClientID(clientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5 * time.Second)

	client := paho.NewClient(clientOpts)
	token := client.Connect()
	if !token.WaitTimeout(10 * time.Second) {
		return nil, fmt.Errorf("telemetry executor: connect to %s: timeout", broker)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("telemetry executor: connect to %s: %w", broker, err)
	}

	return &Telemetry{
		client:      client,
		topic:       topic,
		publishWait: 5 * time.Second,
	}, nil
}

func (*Telemetry) ID() string { return "telemetry" }

// Execute publishes one event, not retained.
func (t *Telemetry) Execute(_ context.Context, ev event.Semantic) (string, error) {
	payload, err := json.Marshal(ev)
	if err != nil {
		return "", fmt.Errorf("telemetry encode: %w", err)
	}

	token := t.client.Publish(t.topic, 0, false, payload)
	if !token.WaitTimeout(t.publishWait) {
		return "", fmt.Errorf("telemetry publish: timeout")
	}
	if err := token.Error(); err != nil {
		return "", fmt.Errorf("telemetry publish: %w", err)
	}
	return fmt.Sprintf("published to %s", t.topic), nil
}

// Health reports the broker connection state.
func (t *Telemetry) Health(context.Context) error {
	if !t.client.IsConnected() {
		return fmt.Errorf("telemetry: not connected to broker")
	}
	return nil
}

// Close disconnects from the broker.
func (t *Telemetry) Close() error {
	t.client.Disconnect(1000)
	return nil
}
