package domain

import (
	"fmt"
	"reflect"
	"regexp"
	"strings"
	"time"
)

// ---------------- Operadores ----------------

type Operator string

const (
	OpEq    Operator = "="
	OpNeq   Operator = "<>"
	OpGt    Operator = ">"
	OpGte   Operator = ">="
	OpLt    Operator = "<"
	OpLte   Operator = "<="
	OpLike  Operator = "LIKE"
	OpILike Operator = "ILIKE"
)

type LogicalOperator string

const (
	OpAnd LogicalOperator = "AND"
	OpOr  LogicalOperator = "OR"
)

// ---------------- Predicate ----------------

// Record expone los atributos sobre los que se evalúa un Predicate.
// El segundo valor es false si el registro no tiene ese atributo (p.ej. un miembro sin equipo).
type Record interface {
	Field(name string) (any, bool)
}

// Predicate es una condición booleana neutral sobre un Record.
// Los adapters (SQL, Mongo, memoria) la traducen a su propio mecanismo de filtrado.
// Un Predicate nil significa "ausente" y no aporta ninguna restricción.
type Predicate interface {
	Matches(r Record) bool
	fmt.Stringer
	isPredicate()
}

// Criterion describe una condición hoja: Field Op Value.
type Criterion struct {
	Field string
	Op    Operator
	Value interface{}
}

func (Criterion) isPredicate() {}

func (c Criterion) String() string {
	return fmt.Sprintf("%s %s %v", c.Field, c.Op, c.Value)
}

// Matches evalúa la condición contra el registro. Un atributo inexistente nunca coincide.
func (c Criterion) Matches(r Record) bool {
	actual, ok := r.Field(c.Field)
	if !ok {
		return false
	}

	switch c.Op {
	case OpEq:
		return equalValues(actual, c.Value)
	case OpNeq:
		return !equalValues(actual, c.Value)
	case OpGt, OpGte, OpLt, OpLte:
		cmp, ok := compareValues(actual, c.Value)
		if !ok {
			return false
		}
		switch c.Op {
		case OpGt:
			return cmp > 0
		case OpGte:
			return cmp >= 0
		case OpLt:
			return cmp < 0
		default:
			return cmp <= 0
		}
	case OpLike, OpILike:
		s, ok1 := actual.(string)
		pattern, ok2 := c.Value.(string)
		if !ok1 || !ok2 {
			return false
		}
		return likeMatch(s, pattern, c.Op == OpILike)
	}
	return false
}

// CompositeCriteria combina predicados con AND u OR.
// Los hijos nil se ignoran: son el elemento neutro de la combinación.
type CompositeCriteria struct {
	Operator   LogicalOperator
	Predicates []Predicate
}

func (CompositeCriteria) isPredicate() {}

func (c CompositeCriteria) String() string {
	var parts []string
	for _, p := range c.Predicates {
		if p == nil {
			continue
		}
		parts = append(parts, "("+p.String()+")")
	}
	if len(parts) == 0 {
		return True.String()
	}
	return strings.Join(parts, " "+string(c.Operator)+" ")
}

func (c CompositeCriteria) Matches(r Record) bool {
	present := 0
	for _, p := range c.Predicates {
		if p == nil {
			continue
		}
		present++
		matched := p.Matches(r)
		if c.Operator == OpOr && matched {
			return true
		}
		if c.Operator != OpOr && !matched {
			return false
		}
	}
	// OR sin hijos presentes no restringe nada, igual que AND.
	return c.Operator != OpOr || present == 0
}

// Not niega un predicado presente.
type Not struct {
	Predicate Predicate
}

func (Not) isPredicate() {}

func (n Not) String() string {
	if n.Predicate == nil {
		return True.String()
	}
	return "NOT (" + n.Predicate.String() + ")"
}

func (n Not) Matches(r Record) bool {
	if n.Predicate == nil {
		return true
	}
	return !n.Predicate.Matches(r)
}

type alwaysTrue struct{}

func (alwaysTrue) isPredicate()          {}
func (alwaysTrue) String() string        { return "TRUE" }
func (alwaysTrue) Matches(_ Record) bool { return true }

// True es el predicado que acepta todos los registros.
var True Predicate = alwaysTrue{}

// IsTrue indica si el predicado no filtra nada (ausente o True).
func IsTrue(p Predicate) bool {
	if p == nil {
		return true
	}
	_, ok := p.(alwaysTrue)
	return ok
}

// ---------------- Combinadores ----------------

// And combina con AND los predicados presentes, en el orden recibido.
// Nunca falla: los nil se saltan, sin hijos devuelve True y con uno solo lo devuelve tal cual.
func And(preds ...Predicate) Predicate {
	var parts []Predicate
	for _, p := range preds {
		if IsTrue(p) {
			continue
		}
		if c, ok := p.(CompositeCriteria); ok && c.Operator == OpAnd {
			sub := And(c.Predicates...)
			if IsTrue(sub) {
				continue
			}
			if flat, ok := sub.(CompositeCriteria); ok && flat.Operator == OpAnd {
				parts = append(parts, flat.Predicates...)
				continue
			}
			parts = append(parts, sub)
			continue
		}
		parts = append(parts, p)
	}

	switch len(parts) {
	case 0:
		return True
	case 1:
		return parts[0]
	default:
		return CompositeCriteria{Operator: OpAnd, Predicates: parts}
	}
}

// Or combina con OR los predicados presentes. Si alguno es True el resultado es True.
func Or(preds ...Predicate) Predicate {
	var parts []Predicate
	for _, p := range preds {
		if p == nil {
			continue
		}
		if IsTrue(p) {
			return True
		}
		if c, ok := p.(CompositeCriteria); ok && c.Operator == OpOr {
			sub := Or(c.Predicates...)
			if IsTrue(sub) {
				return True
			}
			if flat, ok := sub.(CompositeCriteria); ok && flat.Operator == OpOr {
				parts = append(parts, flat.Predicates...)
				continue
			}
			parts = append(parts, sub)
			continue
		}
		parts = append(parts, p)
	}

	switch len(parts) {
	case 0:
		return True
	case 1:
		return parts[0]
	default:
		return CompositeCriteria{Operator: OpOr, Predicates: parts}
	}
}

// Negate niega p. Un predicado ausente sigue ausente.
func Negate(p Predicate) Predicate {
	if p == nil {
		return nil
	}
	if n, ok := p.(Not); ok && n.Predicate != nil {
		return n.Predicate
	}
	return Not{Predicate: p}
}

// Compose es el punto de entrada para filtros dinámicos: AND de los predicados presentes.
func Compose(preds ...Predicate) Predicate {
	return And(preds...)
}

// PredicateFor devuelve field = v si el valor está especificado, o nil si no lo está.
func PredicateFor[T any](field string, opt Optional[T]) Predicate {
	return PredicateForOp(field, OpEq, opt)
}

// PredicateForOp es como PredicateFor pero con un operador arbitrario.
func PredicateForOp[T any](field string, op Operator, opt Optional[T]) Predicate {
	v, ok := opt.Get()
	if !ok {
		return nil
	}
	return Criterion{Field: field, Op: op, Value: v}
}

// Evaluate aplica p sobre r. Un predicado ausente acepta todo.
func Evaluate(p Predicate, r Record) bool {
	if p == nil {
		return true
	}
	return p.Matches(r)
}

// Filter devuelve los registros que cumplen p, conservando el orden.
func Filter[R Record](records []R, p Predicate) []R {
	out := make([]R, 0, len(records))
	for _, r := range records {
		if Evaluate(p, r) {
			out = append(out, r)
		}
	}
	return out
}

// ---------------- Helpers de comparación ----------------

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	}
	return 0, false
}

func equalValues(a, b any) bool {
	if fa, ok := toFloat(a); ok {
		if fb, ok := toFloat(b); ok {
			return fa == fb
		}
		return false
	}
	if ta, ok := a.(time.Time); ok {
		if tb, ok := b.(time.Time); ok {
			return ta.Equal(tb)
		}
		return false
	}
	return reflect.DeepEqual(a, b)
}

func compareValues(a, b any) (int, bool) {
	if fa, ok := toFloat(a); ok {
		fb, ok := toFloat(b)
		if !ok {
			return 0, false
		}
		switch {
		case fa < fb:
			return -1, true
		case fa > fb:
			return 1, true
		}
		return 0, true
	}
	if sa, ok := a.(string); ok {
		sb, ok := b.(string)
		if !ok {
			return 0, false
		}
		return strings.Compare(sa, sb), true
	}
	if ta, ok := a.(time.Time); ok {
		tb, ok := b.(time.Time)
		if !ok {
			return 0, false
		}
		return ta.Compare(tb), true
	}
	return 0, false
}

// LikeToRegexp convierte un patrón LIKE (% y _) en una expresión regular anclada.
func LikeToRegexp(pattern string) string {
	var sb strings.Builder
	sb.WriteString("^")
	for _, r := range pattern {
		switch r {
		case '%':
			sb.WriteString(".*")
		case '_':
			sb.WriteString(".")
		default:
			sb.WriteString(regexp.QuoteMeta(string(r)))
		}
	}
	sb.WriteString("$")
	return sb.String()
}

func likeMatch(s, pattern string, fold bool) bool {
	expr := "(?s)" + LikeToRegexp(pattern)
	if fold {
		expr = "(?i)" + expr
	}
	re, err := regexp.Compile(expr)
	if err != nil {
		return false
	}
	return re.MatchString(s)
}
