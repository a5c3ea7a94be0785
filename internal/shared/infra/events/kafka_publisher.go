package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/sony/gobreaker/v2"
	"go.uber.org/zap"

	sharedBus "github.com/davicafu/querylab/internal/shared/infra/platform/bus"
)

// MessageWriter es lo que usamos de *kafka.Writer.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

// BreakerSettings configura el circuit breaker que protege al broker.
type BreakerSettings struct {
	MaxFailures int           // fallos consecutivos para abrir
	OpenTimeout time.Duration // tiempo en abierto antes de pasar a half-open
}

type KafkaPublisher struct {
	writer  MessageWriter
	topic   string // topic fijo del writer; si está vacío se usa el del evento
	breaker *gobreaker.CircuitBreaker[struct{}]
	log     *zap.Logger
}

func NewKafkaPublisher(writer MessageWriter, topic string, settings BreakerSettings, log *zap.Logger) *KafkaPublisher {
	maxFailures := settings.MaxFailures
	if maxFailures <= 0 {
		maxFailures = 5
	}

	cb := gobreaker.NewCircuitBreaker[struct{}](gobreaker.Settings{
		Name:        "kafka-publisher",
		MaxRequests: 1,
		Timeout:     settings.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return int(counts.ConsecutiveFailures) >= maxFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn("⚡ Circuit breaker cambió de estado",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
	})

	return &KafkaPublisher{writer: writer, topic: topic, breaker: cb, log: log}
}

// Publish serializa el evento y lo escribe en Kafka.
// Con el breaker abierto devuelve gobreaker.ErrOpenState sin tocar el broker.
func (p *KafkaPublisher) Publish(ctx context.Context, event interface{}) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	msg := kafka.Message{Value: data}
	if keyer, ok := event.(sharedBus.Keyer); ok {
		msg.Key = []byte(keyer.PartitionKey())
	}
	// kafka-go no permite topic en el mensaje si el writer ya tiene uno.
	if p.topic == "" {
		if t, ok := event.(sharedBus.Topicer); ok {
			msg.Topic = t.EventTopic()
		}
	}

	_, err = p.breaker.Execute(func() (struct{}, error) {
		return struct{}{}, p.writer.WriteMessages(ctx, msg)
	})
	if err != nil {
		p.log.Error("Error publishing to Kafka", zap.Error(err))
		return err
	}

	p.log.Debug("Event published successfully", zap.ByteString("key", msg.Key))
	return nil
}

// State expone el estado del breaker (para health checks).
func (p *KafkaPublisher) State() gobreaker.State {
	return p.breaker.State()
}

// Verificación estática
var _ sharedBus.EventBus = (*KafkaPublisher)(nil)
