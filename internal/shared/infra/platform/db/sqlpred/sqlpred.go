// Package sqlpred traduce predicados neutrales del dominio a fragmentos SQL parametrizados.
// Los valores nunca se interpolan: siempre van como argumentos.
package sqlpred

import (
	"errors"
	"fmt"
	"strings"

	sharedDomain "github.com/davicafu/querylab/internal/shared/domain"
	sharedQuery "github.com/davicafu/querylab/internal/shared/infra/platform/query"
	sharedUtils "github.com/davicafu/querylab/internal/shared/infra/utils"
)

var (
	ErrUnsupportedField     = errors.New("unsupported predicate field")
	ErrUnsupportedOperator  = errors.New("unsupported predicate operator")
	ErrUnsupportedPredicate = errors.New("unsupported predicate type")
)

// Dialect agrupa lo que cambia entre motores.
type Dialect struct {
	// Placeholder recibe la posición (1..n) del argumento.
	Placeholder func(n int) string
	// Like es el operador para LIKE distinguiendo mayúsculas; LikePattern adapta el patrón si hace falta.
	Like        string
	LikePattern func(pattern string) string
	// ILike es el operador para LIKE sin distinguir mayúsculas.
	ILike string
	// LikeSuffix se añade tras el placeholder de LIKE/ILIKE.
	LikeSuffix string
}

var (
	// SQLite usa ?. Su LIKE ignora mayúsculas (ASCII), así que el LIKE estricto va con GLOB.
	SQLite = Dialect{
		Placeholder: func(int) string { return "?" },
		Like:        "GLOB",
		LikePattern: LikeToGlob,
		ILike:       "LIKE",
	}
	// Postgres usa $1, $2... ESCAPE '' hace que la barra invertida sea un carácter normal.
	Postgres = Dialect{
		Placeholder: func(n int) string { return fmt.Sprintf("$%d", n) },
		Like:        "LIKE",
		ILike:       "ILIKE",
		LikeSuffix:  " ESCAPE ''",
	}
)

// LikeToGlob traduce un patrón LIKE (% y _) a GLOB de SQLite.
// Los comodines propios de GLOB (*, ?, [) se encierran en corchetes para que sean literales.
func LikeToGlob(pattern string) string {
	var sb strings.Builder
	for _, r := range pattern {
		switch r {
		case '%':
			sb.WriteByte('*')
		case '_':
			sb.WriteByte('?')
		case '*', '?', '[':
			sb.WriteByte('[')
			sb.WriteRune(r)
			sb.WriteByte(']')
		default:
			sb.WriteRune(r)
		}
	}
	return sb.String()
}

// Translator conoce el mapeo campo lógico -> columna de un repositorio concreto.
type Translator struct {
	dialect Dialect
	columns map[string]string
	value   func(field string, v interface{}) interface{}
}

func NewTranslator(dialect Dialect, columns map[string]string) *Translator {
	return &Translator{dialect: dialect, columns: columns}
}

// WithValueMapper adapta los valores antes de pasarlos como argumento (p.ej. fechas guardadas como TEXT).
func (t *Translator) WithValueMapper(fn func(field string, v interface{}) interface{}) *Translator {
	t.value = fn
	return t
}

// Where devuelve la condición SQL y sus argumentos. offset es el número de argumentos
// que ya lleva la consulta, para numerar bien los placeholders en Postgres.
// Un predicado ausente o True se traduce a "1 = 1".
func (t *Translator) Where(p sharedDomain.Predicate, offset int) (string, []interface{}, error) {
	var args []interface{}
	sql, err := t.translate(p, offset, &args)
	if err != nil {
		return "", nil, err
	}
	return sql, args, nil
}

func (t *Translator) translate(p sharedDomain.Predicate, offset int, args *[]interface{}) (string, error) {
	if sharedDomain.IsTrue(p) {
		return "1 = 1", nil
	}

	switch n := p.(type) {
	case sharedDomain.Criterion:
		return t.criterion(n, offset, args)

	case sharedDomain.CompositeCriteria:
		var clauses []string
		for _, child := range n.Predicates {
			if child == nil {
				continue
			}
			clause, err := t.translate(child, offset, args)
			if err != nil {
				return "", err
			}
			clauses = append(clauses, clause)
		}
		if len(clauses) == 0 {
			return "1 = 1", nil
		}
		if len(clauses) == 1 {
			return clauses[0], nil
		}
		op := " AND "
		if n.Operator == sharedDomain.OpOr {
			op = " OR "
		}
		return "(" + strings.Join(clauses, op) + ")", nil

	case sharedDomain.Not:
		if n.Predicate == nil {
			return "1 = 1", nil
		}
		clause, err := t.translate(n.Predicate, offset, args)
		if err != nil {
			return "", err
		}
		return "NOT (" + clause + ")", nil
	}

	return "", fmt.Errorf("%w: %T", ErrUnsupportedPredicate, p)
}

func (t *Translator) criterion(c sharedDomain.Criterion, offset int, args *[]interface{}) (string, error) {
	column, ok := t.columns[c.Field]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnsupportedField, c.Field)
	}

	var op, suffix string
	value := c.Value
	switch c.Op {
	case sharedDomain.OpEq, sharedDomain.OpNeq, sharedDomain.OpGt, sharedDomain.OpGte,
		sharedDomain.OpLt, sharedDomain.OpLte:
		op = string(c.Op)
	case sharedDomain.OpLike:
		pattern, ok := value.(string)
		if !ok {
			return "", fmt.Errorf("%w: %s needs a string pattern", ErrUnsupportedOperator, c.Op)
		}
		if t.dialect.LikePattern != nil {
			pattern = t.dialect.LikePattern(pattern)
		}
		op, value, suffix = t.dialect.Like, pattern, t.dialect.LikeSuffix
	case sharedDomain.OpILike:
		if _, ok := value.(string); !ok {
			return "", fmt.Errorf("%w: %s needs a string pattern", ErrUnsupportedOperator, c.Op)
		}
		op, suffix = t.dialect.ILike, t.dialect.LikeSuffix
	default:
		return "", fmt.Errorf("%w: %s", ErrUnsupportedOperator, c.Op)
	}

	if t.value != nil {
		value = t.value(c.Field, value)
	}
	*args = append(*args, value)
	return fmt.Sprintf("%s %s %s%s", column, op, t.dialect.Placeholder(offset+len(*args)), suffix), nil
}

// OrderBy construye el ORDER BY a partir de un Sort con campos lógicos.
// Solo acepta campos mapeados para no interpolar texto del cliente. tieBreaker asegura un orden estable.
func (t *Translator) OrderBy(sort sharedQuery.Sort, defaultField, tieBreaker string) (string, error) {
	field := sort.Field
	desc := sort.Desc
	if field == "" {
		field = defaultField
	}
	column, ok := t.columns[field]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnsupportedField, field)
	}

	dir := sharedUtils.Ternary(desc, "DESC", "ASC")
	clause := fmt.Sprintf("%s %s", column, dir)
	if tieBreaker != "" && tieBreaker != column {
		clause += fmt.Sprintf(", %s %s", tieBreaker, dir)
	}
	return clause, nil
}
