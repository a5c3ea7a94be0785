package relayer

import (
	"context"
	"encoding/json"
	"fmt"
	"reflect"
	"time"

	sharedDomain "github.com/davicafu/querylab/internal/shared/domain"
	sharedEvents "github.com/davicafu/querylab/internal/shared/events"
	sharedBus "github.com/davicafu/querylab/internal/shared/infra/platform/bus"
	"go.uber.org/zap"
)

// Worker procesa eventos pendientes de la tabla outbox de forma genérica.
type Worker struct {
	repo          sharedDomain.OutboxRepository
	publisher     sharedBus.EventBus
	eventRegistry map[string]sharedEvents.EventMetadata
	interval      time.Duration
	batchSize     int
	log           *zap.Logger
}

func NewOutboxWorker(
	repo sharedDomain.OutboxRepository,
	publisher sharedBus.EventBus,
	registry map[string]sharedEvents.EventMetadata,
	interval time.Duration,
	batchSize int,
	log *zap.Logger,
) *Worker {
	return &Worker{
		repo:          repo,
		publisher:     publisher,
		eventRegistry: registry,
		interval:      interval,
		batchSize:     batchSize,
		log:           log,
	}
}

// Start inicia el bucle de polling del worker. Termina cuando se cancela ctx.
func (w *Worker) Start(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.log.Info("🚀 Outbox worker iniciado", zap.Duration("interval", w.interval))

	for {
		select {
		case <-ctx.Done():
			w.log.Info("🛑 Outbox worker detenido.")
			return
		case <-ticker.C:
			w.log.Debug("🔄 Ejecutando polling de outbox")
			w.ProcessBatch(ctx)
		}
	}
}

// ProcessBatch publica un lote de pendientes y devuelve cuántos quedaron marcados.
func (w *Worker) ProcessBatch(ctx context.Context) int {
	events, err := w.repo.FetchPendingOutbox(ctx, w.batchSize)
	if err != nil {
		w.log.Warn("⚠️ Error al obtener eventos pendientes", zap.Error(err))
		return 0
	}
	if len(events) > 0 {
		w.log.Info(fmt.Sprintf("📬 %d eventos encontrados para procesar", len(events)))
	}

	published := 0
	for _, evt := range events {
		if w.publishAndMark(ctx, evt) {
			published++
		}
	}
	return published
}

func (w *Worker) publishAndMark(ctx context.Context, evt sharedDomain.OutboxEvent) bool {
	metadata, ok := w.eventRegistry[evt.EventType]
	if !ok {
		w.log.Error("Tipo de evento desconocido en registro", zap.String("event_type", evt.EventType))
		w.markFailed(ctx, evt, "unknown event type: "+evt.EventType)
		return false
	}

	// Pasamos el payload por su tipo concreto para validar el contrato antes de publicarlo.
	typed := reflect.New(metadata.Type).Interface()
	payloadBytes, err := json.Marshal(evt.Payload)
	if err == nil {
		err = json.Unmarshal(payloadBytes, typed)
	}
	if err != nil {
		w.log.Error("Error al decodificar payload del evento", zap.String("event_id", evt.ID.String()), zap.Error(err))
		w.markFailed(ctx, evt, "invalid payload: "+err.Error())
		return false
	}

	integrationEvt, err := sharedEvents.NewIntegrationEvent(evt.EventType, evt.AggregateID, typed)
	if err != nil {
		w.log.Error("Error al serializar evento de integración", zap.String("event_id", evt.ID.String()), zap.Error(err))
		return false
	}
	integrationEvt = integrationEvt.WithTopic(metadata.Topic)

	if err := w.publisher.Publish(ctx, integrationEvt); err != nil {
		w.log.Warn("⚠️ No se pudo publicar evento",
			zap.String("event_id", evt.ID.String()),
			zap.Error(err),
		)
		return false
	}

	if err := w.repo.MarkOutboxProcessed(ctx, evt.ID); err != nil {
		w.log.Warn("⚠️ No se pudo marcar evento como procesado",
			zap.String("event_id", evt.ID.String()),
			zap.Error(err),
		)
		return false
	}

	w.log.Info("✅ Evento publicado y marcado", zap.String("event_id", evt.ID.String()), zap.String("event_type", evt.EventType))
	return true
}

// markFailed aparta los eventos que no se publicarán nunca para que no bloqueen el resto del outbox.
// Los fallos del broker no pasan por aquí: se reintentan en el siguiente tick.
func (w *Worker) markFailed(ctx context.Context, evt sharedDomain.OutboxEvent, reason string) {
	if err := w.repo.MarkOutboxFailed(ctx, evt.ID, reason); err != nil {
		w.log.Warn("⚠️ No se pudo apartar evento fallido",
			zap.String("event_id", evt.ID.String()),
			zap.Error(err),
		)
		return
	}
	w.log.Warn("🪦 Evento apartado del outbox", zap.String("event_id", evt.ID.String()), zap.String("reason", reason))
}
