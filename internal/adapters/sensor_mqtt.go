package adapters

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"heatwise/internal/logger"
	"heatwise/internal/models"

	paho "github.com/eclipse/paho.mqtt.golang"
)

// MQTTSensor subscribes to a temperature topic and keeps the latest
// reading. Messages are JSON: {"observed_at": "...", "celsius_tenths": N,
// "source_id": "..."}; a missing observed_at defaults to receive time.
type MQTTSensor struct {
	client paho.Client
	topic  string
	log    *logger.Logger

	mu      sync.RWMutex
	latest  *models.TemperatureReading
	updates chan struct{}
}

var _ TemperatureSource = (*MQTTSensor)(nil)

// NewMQTTSensor connects to the broker and subscribes to the topic.
func NewMQTTSensor(broker, clientID, topic string, log *logger.Logger) (*MQTTSensor, error) {
	opts := paho.NewClientOptions().
		AddBroker(broker).
		SetClientID(clientID).
		SetAutoReconnect(true).
		SetConnectTimeout(10 * time.Second)

	s := &MQTTSensor{
		topic:   topic,
		log:     log,
		updates: make(chan struct{}, 1),
	}

	s.client = paho.NewClient(opts)
	if token := s.client.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("connect mqtt broker %q: %w", broker, token.Error())
	}
	if token := s.client.Subscribe(topic, 1, s.onMessage); token.Wait() && token.Error() != nil {
		s.client.Disconnect(250)
		return nil, fmt.Errorf("subscribe %q: %w", topic, token.Error())
	}
	return s, nil
}

type sensorPayload struct {
	ObservedAt    time.Time `json:"observed_at"`
	CelsiusTenths int       `json:"celsius_tenths"`
	SourceID      string    `json:"source_id"`
}

func (s *MQTTSensor) onMessage(_ paho.Client, msg paho.Message) {
	var p sensorPayload
	if err := json.Unmarshal(msg.Payload(), &p); err != nil {
		s.log.Errorw("sensor_payload_invalid", "topic", msg.Topic(), "err", err)
		return
	}
	if p.ObservedAt.IsZero() {
		p.ObservedAt = time.Now().UTC()
	}
	if p.SourceID == "" {
		p.SourceID = msg.Topic()
	}

	s.mu.Lock()
	s.latest = &models.TemperatureReading{
		ObservedAt:    p.ObservedAt.UTC(),
		CelsiusTenths: p.CelsiusTenths,
		SourceID:      p.SourceID,
	}
	s.mu.Unlock()

	// Coalescing notify: the loop samples Latest anyway.
	select {
	case s.updates <- struct{}{}:
	default:
	}
}

// Latest returns the most recent reading, or nil before the first message.
func (s *MQTTSensor) Latest() *models.TemperatureReading {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.latest == nil {
		return nil
	}
	r := *s.latest
	return &r
}

// Updates fires when a new reading arrives.
func (s *MQTTSensor) Updates() <-chan struct{} { return s.updates }

// Close disconnects from the broker.
func (s *MQTTSensor) Close() {
	s.client.Disconnect(250)
}
