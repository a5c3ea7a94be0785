package events

import (
	"encoding/json"
	"reflect"
	"time"
)

// Base de todos los eventos de integración
type IntegrationEvent struct {
	Type      string          `json:"type"`
	Timestamp time.Time       `json:"timestamp"`
	Key       string          `json:"key,omitempty"` // id del agregado, se usa como clave de partición
	Data      json.RawMessage `json:"data"`          // contenido específico del evento

	topic string
}

// PartitionKey mantiene juntos en Kafka los eventos del mismo agregado.
func (e IntegrationEvent) PartitionKey() string {
	return e.Key
}

// EventTopic es el topic de destino; vacío si el publisher tiene uno fijo.
func (e IntegrationEvent) EventTopic() string {
	return e.topic
}

// WithTopic devuelve una copia dirigida a topic.
func (e IntegrationEvent) WithTopic(topic string) IntegrationEvent {
	e.topic = topic
	return e
}

// NewIntegrationEvent serializa data y arma el sobre.
func NewIntegrationEvent(eventType, key string, data interface{}) (IntegrationEvent, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return IntegrationEvent{}, err
	}
	return IntegrationEvent{
		Type:      eventType,
		Timestamp: time.Now().UTC(),
		Key:       key,
		Data:      raw,
	}, nil
}

// EventMetadata asocia un tipo de evento con su payload y su topic.
type EventMetadata struct {
	Type  reflect.Type
	Topic string
}
