package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// row es un Record mínimo para los tests.
type row map[string]any

func (r row) Field(name string) (any, bool) {
	v, ok := r[name]
	return v, ok
}

func fixtures() []row {
	return []row{
		{"username": "member1", "age": 10},
		{"username": "member1", "age": 99},
		{"username": "other", "age": 10},
	}
}

func search(username Optional[string], age Optional[int]) Predicate {
	return Compose(
		PredicateFor("username", username),
		PredicateFor("age", age),
	)
}

func TestPredicateFor(t *testing.T) {
	assert.Nil(t, PredicateFor("username", None[string]()))
	assert.Equal(t, Criterion{Field: "username", Op: OpEq, Value: "member1"}, PredicateFor("username", Some("member1")))
	assert.Equal(t, Criterion{Field: "age", Op: OpGte, Value: 18}, PredicateForOp("age", OpGte, Some(18)))
}

func TestCompose_Scenarios(t *testing.T) {
	tests := []struct {
		name     string
		username Optional[string]
		age      Optional[int]
		expected []row
	}{
		{
			name:     "ambos presentes",
			username: Some("member1"),
			age:      Some(10),
			expected: []row{{"username": "member1", "age": 10}},
		},
		{
			name:     "ambos ausentes no filtra nada",
			username: None[string](),
			age:      None[int](),
			expected: fixtures(),
		},
		{
			name:     "edad cero es un valor especificado",
			username: None[string](),
			age:      Some(0),
			expected: []row{},
		},
		{
			name:     "solo username",
			username: Some("member1"),
			age:      None[int](),
			expected: []row{{"username": "member1", "age": 10}, {"username": "member1", "age": 99}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Filter(fixtures(), search(tt.username, tt.age))
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestCompose_AgeZeroMatchesOnlyZero(t *testing.T) {
	records := append(fixtures(), row{"username": "baby", "age": 0})
	got := Filter(records, search(None[string](), Some(0)))
	require.Len(t, got, 1)
	assert.Equal(t, "baby", got[0]["username"])
}

func TestCompose_Shape(t *testing.T) {
	// Todo ausente => True, nunca nil ni un AND vacío.
	p := Compose(nil, nil)
	assert.True(t, IsTrue(p))
	assert.Equal(t, True, p)

	// Uno solo => el propio predicado, sin envoltorio.
	single := Criterion{Field: "age", Op: OpEq, Value: 10}
	assert.Equal(t, single, Compose(nil, single, nil))

	// Varios => AND plano en el orden de entrada.
	a := Criterion{Field: "username", Op: OpEq, Value: "member1"}
	b := Criterion{Field: "age", Op: OpEq, Value: 10}
	c := Criterion{Field: "team.name", Op: OpEq, Value: "teamA"}
	got := Compose(a, And(b, nil), nil, c)
	assert.Equal(t, CompositeCriteria{Operator: OpAnd, Predicates: []Predicate{a, b, c}}, got)
}

func TestCompose_Idempotent(t *testing.T) {
	p1 := search(Some("member1"), Some(10))
	p2 := search(Some("member1"), Some(10))
	assert.Equal(t, p1, p2)
	assert.Equal(t, Filter(fixtures(), p1), Filter(fixtures(), p2))
}

func TestCompose_OrderIndependentResult(t *testing.T) {
	a := PredicateFor("username", Some("member1"))
	b := PredicateFor("age", Some(10))
	assert.Equal(t, Filter(fixtures(), Compose(a, b)), Filter(fixtures(), Compose(b, a)))
}

func TestAnd_PresentWithAbsentShortCircuits(t *testing.T) {
	present := PredicateFor("username", Some("member1"))
	var absent Predicate

	assert.NotPanics(t, func() {
		assert.Equal(t, present, And(present, absent))
		assert.Equal(t, present, And(absent, present))
	})
}

func TestOr(t *testing.T) {
	a := PredicateFor("age", Some(10))
	b := PredicateFor("age", Some(99))

	assert.True(t, IsTrue(Or()))
	assert.True(t, IsTrue(Or(nil, nil)))
	assert.Equal(t, a, Or(a, nil))
	assert.True(t, IsTrue(Or(a, True)))

	got := Filter(fixtures(), Or(a, b))
	assert.Len(t, got, 3)

	got = Filter(fixtures(), And(PredicateFor("username", Some("member1")), Or(a, b)))
	assert.Len(t, got, 2)
}

func TestNegate(t *testing.T) {
	assert.Nil(t, Negate(nil))

	a := PredicateFor("username", Some("other"))
	got := Filter(fixtures(), Negate(a))
	assert.Len(t, got, 2)
	assert.Equal(t, a, Negate(Negate(a)))
}

func TestCriterion_Operators(t *testing.T) {
	born := time.Date(1990, 1, 1, 0, 0, 0, 0, time.UTC)
	r := row{"username": "Member1", "age": 20, "born": born}

	tests := []struct {
		name string
		p    Predicate
		want bool
	}{
		{"eq int vs int64", Criterion{"age", OpEq, int64(20)}, true},
		{"neq", Criterion{"age", OpNeq, 21}, true},
		{"gt", Criterion{"age", OpGt, 19}, true},
		{"gte float", Criterion{"age", OpGte, 20.0}, true},
		{"lt", Criterion{"age", OpLt, 20}, false},
		{"lte", Criterion{"age", OpLte, 20}, true},
		{"like prefix", Criterion{"username", OpLike, "Mem%"}, true},
		{"like distingue mayúsculas", Criterion{"username", OpLike, "mem%"}, false},
		{"ilike", Criterion{"username", OpILike, "%MEMBER_"}, true},
		{"like escapa regex", Criterion{"username", OpLike, "Member1."}, false},
		{"time gte", Criterion{"born", OpGte, born}, true},
		{"campo inexistente", Criterion{"team.name", OpEq, "teamA"}, false},
		{"tipos incompatibles", Criterion{"username", OpGt, 3}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Evaluate(tt.p, r))
		})
	}
}

func TestPredicate_String(t *testing.T) {
	p := Compose(
		PredicateFor("username", Some("member1")),
		PredicateFor("age", Some(10)),
	)
	assert.Equal(t, "(username = member1) AND (age = 10)", p.String())
	assert.Equal(t, "TRUE", Compose().String())
}
