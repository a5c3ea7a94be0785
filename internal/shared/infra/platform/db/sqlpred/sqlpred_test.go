package sqlpred

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	sharedDomain "github.com/davicafu/querylab/internal/shared/domain"
	sharedQuery "github.com/davicafu/querylab/internal/shared/infra/platform/query"
)

var columns = map[string]string{
	"username":   "m.username",
	"age":        "m.age",
	"team.name":  "t.name",
	"created_at": "m.created_at",
}

func TestWhere_AbsentIsAlwaysTrue(t *testing.T) {
	tr := NewTranslator(SQLite, columns)

	for _, p := range []sharedDomain.Predicate{nil, sharedDomain.True, sharedDomain.Compose()} {
		sql, args, err := tr.Where(p, 0)
		require.NoError(t, err)
		assert.Equal(t, "1 = 1", sql)
		assert.Empty(t, args)
	}
}

func TestWhere_SQLite(t *testing.T) {
	tr := NewTranslator(SQLite, columns)
	p := sharedDomain.Compose(
		sharedDomain.PredicateFor("username", sharedDomain.Some("member1")),
		sharedDomain.PredicateFor("age", sharedDomain.Some(10)),
	)

	sql, args, err := tr.Where(p, 0)
	require.NoError(t, err)
	assert.Equal(t, "(m.username = ? AND m.age = ?)", sql)
	assert.Equal(t, []interface{}{"member1", 10}, args)
}

func TestWhere_PostgresNumbering(t *testing.T) {
	tr := NewTranslator(Postgres, columns)
	p := sharedDomain.And(
		sharedDomain.PredicateFor("team.name", sharedDomain.Some("teamA")),
		sharedDomain.Or(
			sharedDomain.PredicateForOp("age", sharedDomain.OpLt, sharedDomain.Some(15)),
			sharedDomain.Negate(sharedDomain.Criterion{Field: "username", Op: sharedDomain.OpILike, Value: "%admin%"}),
		),
	)

	sql, args, err := tr.Where(p, 2)
	require.NoError(t, err)
	assert.Equal(t, "(t.name = $3 AND (m.age < $4 OR NOT (m.username ILIKE $5 ESCAPE '')))", sql)
	assert.Equal(t, []interface{}{"teamA", 15, "%admin%"}, args)
}

func TestWhere_SingleCriterionHasNoParens(t *testing.T) {
	tr := NewTranslator(SQLite, columns)
	sql, _, err := tr.Where(sharedDomain.PredicateFor("age", sharedDomain.Some(0)), 0)
	require.NoError(t, err)
	assert.Equal(t, "m.age = ?", sql)
}

func TestWhere_ILikeOnSQLite(t *testing.T) {
	tr := NewTranslator(SQLite, columns)
	sql, _, err := tr.Where(sharedDomain.Criterion{Field: "username", Op: sharedDomain.OpILike, Value: "mem%"}, 0)
	require.NoError(t, err)
	assert.Equal(t, "m.username LIKE ?", sql)
}

func TestWhere_LikeIsCaseSensitiveOnSQLite(t *testing.T) {
	tr := NewTranslator(SQLite, columns)
	sql, args, err := tr.Where(sharedDomain.Criterion{Field: "username", Op: sharedDomain.OpLike, Value: "mem_%*"}, 0)
	require.NoError(t, err)
	assert.Equal(t, "m.username GLOB ?", sql)
	assert.Equal(t, []interface{}{"mem?*[*]"}, args)

	sql, args, err = NewTranslator(Postgres, columns).Where(sharedDomain.Criterion{Field: "username", Op: sharedDomain.OpLike, Value: `a\_%`}, 0)
	require.NoError(t, err)
	assert.Equal(t, "m.username LIKE $1 ESCAPE ''", sql)
	assert.Equal(t, []interface{}{`a\_%`}, args)

	_, _, err = tr.Where(sharedDomain.Criterion{Field: "username", Op: sharedDomain.OpLike, Value: 3}, 0)
	assert.ErrorIs(t, err, ErrUnsupportedOperator)
}

func TestLikeToGlob(t *testing.T) {
	tests := map[string]string{
		"member%":  "member*",
		"member_":  "member?",
		"a*b?c[d]": "a[*]b[?]c[[]d]",
		"":         "",
	}
	for like, glob := range tests {
		assert.Equal(t, glob, LikeToGlob(like), like)
	}
}

func TestWhere_Errors(t *testing.T) {
	tr := NewTranslator(SQLite, columns)

	_, _, err := tr.Where(sharedDomain.Criterion{Field: "password", Op: sharedDomain.OpEq, Value: "x"}, 0)
	assert.ErrorIs(t, err, ErrUnsupportedField)

	_, _, err = tr.Where(sharedDomain.Criterion{Field: "age", Op: "~", Value: 1}, 0)
	assert.ErrorIs(t, err, ErrUnsupportedOperator)

	// El error de un hijo se propaga.
	_, _, err = tr.Where(sharedDomain.And(
		sharedDomain.PredicateFor("age", sharedDomain.Some(1)),
		sharedDomain.Criterion{Field: "nope", Op: sharedDomain.OpEq, Value: 1},
	), 0)
	assert.ErrorIs(t, err, ErrUnsupportedField)
}

func TestWhere_ValueMapper(t *testing.T) {
	tr := NewTranslator(SQLite, columns).WithValueMapper(func(field string, v interface{}) interface{} {
		if field == "age" {
			return int64(v.(int))
		}
		return v
	})
	_, args, err := tr.Where(sharedDomain.PredicateFor("age", sharedDomain.Some(7)), 0)
	require.NoError(t, err)
	assert.Equal(t, []interface{}{int64(7)}, args)
}

func TestOrderBy(t *testing.T) {
	tr := NewTranslator(SQLite, columns)

	clause, err := tr.OrderBy(sharedQuery.Sort{}, "created_at", "m.id")
	require.NoError(t, err)
	assert.Equal(t, "m.created_at ASC, m.id ASC", clause)

	clause, err = tr.OrderBy(sharedQuery.Sort{Field: "age", Desc: true}, "created_at", "m.id")
	require.NoError(t, err)
	assert.Equal(t, "m.age DESC, m.id DESC", clause)

	_, err = tr.OrderBy(sharedQuery.Sort{Field: "age; DROP TABLE members"}, "created_at", "m.id")
	assert.ErrorIs(t, err, ErrUnsupportedField)
}
