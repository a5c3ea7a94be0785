package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	memberDomain "github.com/davicafu/querylab/internal/member/domain"
	sharedEvents "github.com/davicafu/querylab/internal/shared/events"
	sharedUtils "github.com/davicafu/querylab/internal/shared/infra/utils"
)

// MemberConsumer reacciona a los eventos de miembros y equipos.
// Si hay almacén analítico, registra en él cada miembro creado o actualizado.
type MemberConsumer struct {
	analytics memberDomain.MemberAnalyticsRepository // opcional
	log       *zap.Logger
}

func NewMemberConsumer(analytics memberDomain.MemberAnalyticsRepository, logger *zap.Logger) *MemberConsumer {
	return &MemberConsumer{
		analytics: analytics,
		log:       logger,
	}
}

func (c *MemberConsumer) HandleMessage(ctx context.Context, key string, payload []byte) {
	var base sharedEvents.IntegrationEvent
	if err := json.Unmarshal(payload, &base); err != nil {
		c.log.Warn("Failed to unmarshal integration event", zap.String("key", key), zap.Error(err))
		return
	}

	switch base.Type {
	case memberDomain.MemberCreated:
		sharedUtils.DecodeEventData(c.log, base.Type, base.Data, func(evt sharedEvents.MemberCreated) {
			c.record(ctx, "Member created via event", &memberDomain.Member{
				ID:        evt.ID,
				Username:  evt.Username,
				Age:       evt.Age,
				Team:      teamSnapshot(evt.TeamID, evt.TeamName),
				CreatedAt: evt.CreatedAt,
			})
		})

	case memberDomain.MemberUpdated:
		sharedUtils.DecodeEventData(c.log, base.Type, base.Data, func(evt sharedEvents.MemberUpdated) {
			c.record(ctx, "Member updated via event", &memberDomain.Member{
				ID:        evt.ID,
				Username:  evt.Username,
				Age:       evt.Age,
				Team:      teamSnapshot(evt.TeamID, evt.TeamName),
				CreatedAt: base.Timestamp,
			})
		})

	case memberDomain.MemberDeleted:
		sharedUtils.DecodeEventData(c.log, base.Type, base.Data, func(evt sharedEvents.MemberDeleted) {
			c.log.Info("Member deleted via event", zap.String("member_id", evt.ID.String()))
		})

	case memberDomain.TeamCreated:
		sharedUtils.DecodeEventData(c.log, base.Type, base.Data, func(evt sharedEvents.TeamCreated) {
			c.log.Info("Team created via event", zap.String("team_id", evt.ID.String()), zap.String("name", evt.Name))
		})

	default:
		c.log.Warn("Unknown event type", zap.String("type", base.Type))
	}
}

// record guarda el snapshot en analytics con un contexto limitado.
func (c *MemberConsumer) record(ctx context.Context, successMsg string, m *memberDomain.Member) {
	if c.analytics == nil {
		c.log.Info(successMsg, zap.String("member_id", m.ID.String()))
		return
	}

	ctxAnalytics, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	if err := c.analytics.LogBatch(ctxAnalytics, []*memberDomain.Member{m}); err != nil {
		c.log.Warn("Failed to record member in analytics",
			zap.String("member_id", m.ID.String()),
			zap.Error(err),
		)
		return
	}
	c.log.Info(successMsg, zap.String("member_id", m.ID.String()), zap.String("sink", "analytics"))
}

func teamSnapshot(id *uuid.UUID, name string) *memberDomain.Team {
	if id == nil {
		return nil
	}
	return &memberDomain.Team{ID: *id, Name: name}
}
