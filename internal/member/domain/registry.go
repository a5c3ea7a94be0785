package domain

import (
	"reflect"

	"github.com/google/uuid"

	sharedDomain "github.com/davicafu/querylab/internal/shared/domain"
	sharedEvents "github.com/davicafu/querylab/internal/shared/events"
)

// Las constantes de los tipos de evento se definen aquí, como valores string.
const (
	MemberCreated = "member.created"
	MemberUpdated = "member.updated"
	MemberDeleted = "member.deleted"
	TeamCreated   = "team.created"
)

const (
	MemberTopic = "member"
	TeamTopic   = "team"
)

const (
	MemberAggregate = "member"
	TeamAggregate   = "team"
)

func NewEventRegistry() map[string]sharedEvents.EventMetadata {
	return map[string]sharedEvents.EventMetadata{
		MemberCreated: {
			Type:  reflect.TypeOf(sharedEvents.MemberCreated{}),
			Topic: MemberTopic,
		},
		MemberUpdated: {
			Type:  reflect.TypeOf(sharedEvents.MemberUpdated{}),
			Topic: MemberTopic,
		},
		MemberDeleted: {
			Type:  reflect.TypeOf(sharedEvents.MemberDeleted{}),
			Topic: MemberTopic,
		},
		TeamCreated: {
			Type:  reflect.TypeOf(sharedEvents.TeamCreated{}),
			Topic: TeamTopic,
		},
	}
}

// ---------------- Eventos outbox ----------------

func NewMemberCreatedEvent(m *Member) sharedDomain.OutboxEvent {
	payload := sharedEvents.MemberCreated{
		ID:        m.ID,
		Username:  m.Username,
		Age:       m.Age,
		TeamID:    m.TeamID(),
		CreatedAt: m.CreatedAt,
	}
	if m.Team != nil {
		payload.TeamName = m.Team.Name
	}
	return sharedDomain.NewOutboxEvent(MemberAggregate, m.ID.String(), MemberCreated, payload)
}

func NewMemberUpdatedEvent(m *Member) sharedDomain.OutboxEvent {
	payload := sharedEvents.MemberUpdated{
		ID:       m.ID,
		Username: m.Username,
		Age:      m.Age,
		TeamID:   m.TeamID(),
	}
	if m.Team != nil {
		payload.TeamName = m.Team.Name
	}
	return sharedDomain.NewOutboxEvent(MemberAggregate, m.ID.String(), MemberUpdated, payload)
}

func NewMemberDeletedEvent(id uuid.UUID) sharedDomain.OutboxEvent {
	return sharedDomain.NewOutboxEvent(MemberAggregate, id.String(), MemberDeleted, sharedEvents.MemberDeleted{ID: id})
}

func NewTeamCreatedEvent(t *Team) sharedDomain.OutboxEvent {
	payload := sharedEvents.TeamCreated{ID: t.ID, Name: t.Name, CreatedAt: t.CreatedAt}
	return sharedDomain.NewOutboxEvent(TeamAggregate, t.ID.String(), TeamCreated, payload)
}
