package domain

import (
	"reflect"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	sharedDomain "github.com/davicafu/querylab/internal/shared/domain"
	sharedEvents "github.com/davicafu/querylab/internal/shared/events"
)

// Mismos datos que el escenario clásico: member1..4 repartidos en teamA y teamB.
func fixtures() []*Member {
	teamA := &Team{ID: uuid.New(), Name: "teamA"}
	teamB := &Team{ID: uuid.New(), Name: "teamB"}
	return []*Member{
		{ID: uuid.New(), Username: "member1", Age: 10, Team: teamA},
		{ID: uuid.New(), Username: "member2", Age: 20, Team: teamA},
		{ID: uuid.New(), Username: "member3", Age: 30, Team: teamB},
		{ID: uuid.New(), Username: "member4", Age: 40, Team: teamB},
		{ID: uuid.New(), Username: "loner", Age: 0},
	}
}

func usernames(ms []*Member) []string {
	out := make([]string, 0, len(ms))
	for _, m := range ms {
		out = append(out, m.Username)
	}
	return out
}

func TestNewMember_Validation(t *testing.T) {
	_, err := NewMember("  ", 10, nil)
	assert.ErrorIs(t, err, ErrInvalidMember)

	_, err = NewMember("member1", -1, nil)
	assert.ErrorIs(t, err, ErrInvalidMember)

	m, err := NewMember(" member1 ", 0, nil)
	require.NoError(t, err)
	assert.Equal(t, "member1", m.Username)
	assert.NotEqual(t, uuid.Nil, m.ID)

	_, err = NewTeam("")
	assert.ErrorIs(t, err, ErrInvalidTeam)
}

func TestMember_Field(t *testing.T) {
	m := fixtures()[0]
	v, ok := m.Field(FieldTeamName)
	assert.True(t, ok)
	assert.Equal(t, "teamA", v)

	loner := fixtures()[4]
	_, ok = loner.Field(FieldTeamName)
	assert.False(t, ok, "sin equipo el campo no existe")
	assert.Nil(t, loner.TeamID())

	_, ok = m.Field("unknown")
	assert.False(t, ok)
}

func TestAgeGroup(t *testing.T) {
	tests := []struct {
		age      int
		expected string
	}{
		{0, "0~20"},
		{20, "0~20"},
		{21, "21~30"},
		{30, "21~30"},
		{31, "other"},
		{-1, "other"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.expected, AgeGroup(tt.age), "age %d", tt.age)
	}
}

func TestNewMemberTeamView(t *testing.T) {
	m := fixtures()[2]
	v := NewMemberTeamView(m)
	assert.Equal(t, "member3", v.Username)
	assert.Equal(t, "21~30", v.AgeGroup)
	assert.Equal(t, "teamB", v.TeamName)
	require.NotNil(t, v.TeamID)
	assert.Equal(t, m.Team.ID, *v.TeamID)

	loner := NewMemberTeamView(fixtures()[4])
	assert.Nil(t, loner.TeamID)
	assert.Empty(t, loner.TeamName)
}

func TestSearchCondition_ToPredicate(t *testing.T) {
	tests := []struct {
		name     string
		cond     MemberSearchCondition
		expected []string
	}{
		{
			name:     "sin criterios devuelve todo",
			cond:     MemberSearchCondition{},
			expected: []string{"member1", "member2", "member3", "member4", "loner"},
		},
		{
			name:     "username y edad",
			cond:     MemberSearchCondition{Username: sharedDomain.Some("member1"), Age: sharedDomain.Some(10)},
			expected: []string{"member1"},
		},
		{
			name:     "edad cero filtra",
			cond:     MemberSearchCondition{Age: sharedDomain.Some(0)},
			expected: []string{"loner"},
		},
		{
			name:     "equipo y rango de edad",
			cond:     MemberSearchCondition{TeamName: sharedDomain.Some("teamB"), AgeGoe: sharedDomain.Some(35)},
			expected: []string{"member4"},
		},
		{
			name:     "rango cerrado",
			cond:     MemberSearchCondition{AgeGoe: sharedDomain.Some(20), AgeLoe: sharedDomain.Some(30)},
			expected: []string{"member2", "member3"},
		},
		{
			name:     "username vacío es un valor",
			cond:     MemberSearchCondition{Username: sharedDomain.Some("")},
			expected: []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := sharedDomain.Filter(fixtures(), tt.cond.ToPredicate())
			assert.Equal(t, tt.expected, usernames(got))
		})
	}
}

func TestSearchCondition_FixedOrder(t *testing.T) {
	cond := MemberSearchCondition{
		AgeLoe:   sharedDomain.Some(40),
		Username: sharedDomain.Some("member1"),
		TeamName: sharedDomain.Some("teamA"),
	}
	assert.Equal(t, "(username = member1) AND (team.name = teamA) AND (age <= 40)", cond.ToPredicate().String())
	assert.True(t, sharedDomain.IsTrue(MemberSearchCondition{}.ToPredicate()))
}

func TestSearchCondition_ToPredicateIsFlat(t *testing.T) {
	cond := MemberSearchCondition{
		Username: sharedDomain.Some("member1"),
		Age:      sharedDomain.Some(10),
		TeamName: sharedDomain.Some("teamA"),
		AgeGoe:   sharedDomain.Some(5),
		AgeLoe:   sharedDomain.Some(50),
	}
	composite, ok := cond.ToPredicate().(sharedDomain.CompositeCriteria)
	require.True(t, ok)
	assert.Equal(t, sharedDomain.OpAnd, composite.Operator)
	assert.Len(t, composite.Predicates, 5)
	assert.Equal(t, UsernameEq(cond.Username), composite.Predicates[0])
	assert.Equal(t, AgeEq(cond.Age), composite.Predicates[1])
}

func TestAllEq(t *testing.T) {
	assert.True(t, sharedDomain.IsTrue(AllEq(sharedDomain.None[string](), sharedDomain.None[int]())))

	// Solo la edad presente: se construye el predicado de edad.
	p := AllEq(sharedDomain.None[string](), sharedDomain.Some(10))
	assert.Equal(t, sharedDomain.Criterion{Field: FieldAge, Op: sharedDomain.OpEq, Value: 10}, p)

	got := sharedDomain.Filter(fixtures(), AllEq(sharedDomain.Some("member1"), sharedDomain.Some(10)))
	assert.Equal(t, []string{"member1"}, usernames(got))
}

func TestBuilders_AbsentIsNil(t *testing.T) {
	assert.Nil(t, UsernameEq(sharedDomain.None[string]()))
	assert.Nil(t, AgeEq(sharedDomain.None[int]()))
	assert.Nil(t, TeamNameEq(sharedDomain.None[string]()))
	assert.Nil(t, AgeGoe(sharedDomain.None[int]()))
	assert.Nil(t, AgeLoe(sharedDomain.None[int]()))
	assert.NotNil(t, AgeEq(sharedDomain.Some(0)))
}

func TestRegistry_CoversOutboxEvents(t *testing.T) {
	registry := NewEventRegistry()
	m := fixtures()[0]

	for _, evt := range []sharedDomain.OutboxEvent{
		NewMemberCreatedEvent(m),
		NewMemberUpdatedEvent(m),
		NewMemberDeletedEvent(m.ID),
		NewTeamCreatedEvent(m.Team),
	} {
		meta, ok := registry[evt.EventType]
		require.True(t, ok, evt.EventType)
		assert.Equal(t, meta.Type, reflect.TypeOf(evt.Payload))
	}

	created := NewMemberCreatedEvent(m).Payload.(sharedEvents.MemberCreated)
	assert.Equal(t, "teamA", created.TeamName)
	assert.Equal(t, m.ID.String(), NewMemberCreatedEvent(m).AggregateID)
}

func TestIsSortable(t *testing.T) {
	assert.True(t, IsSortable(FieldAge))
	assert.True(t, IsSortable(FieldTeamName))
	assert.False(t, IsSortable(""))
	assert.False(t, IsSortable("age; DROP TABLE members"))
}

func TestAgeGoeAverage_RoundsUp(t *testing.T) {
	assert.Equal(t, sharedDomain.Criterion{Field: FieldAge, Op: sharedDomain.OpGte, Value: 26}, AgeGoeAverage(25.5))
	assert.Equal(t, sharedDomain.Criterion{Field: FieldAge, Op: sharedDomain.OpGte, Value: 25}, AgeGoeAverage(25))

	p := AgeGoeAverage(25.5)
	assert.False(t, sharedDomain.Evaluate(p, &Member{Age: 25}))
	assert.True(t, sharedDomain.Evaluate(p, &Member{Age: 26}))
}
