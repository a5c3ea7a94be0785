package utils

import (
	"encoding/json"

	"go.uber.org/zap"
)

// DecodeEventData decodifica el Data de un IntegrationEvent al tipo T y llama a handler.
// Si el payload no encaja con T lo registra y devuelve false sin llamar a handler.
func DecodeEventData[T any](log *zap.Logger, eventType string, data json.RawMessage, handler func(T)) bool {
	var evt T
	if err := json.Unmarshal(data, &evt); err != nil {
		log.Warn("Failed to decode event data", zap.String("type", eventType), zap.Error(err))
		return false
	}
	handler(evt)
	return true
}
