// Package mongofilter traduce predicados del dominio a documentos de filtro de MongoDB.
package mongofilter

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"

	sharedDomain "github.com/davicafu/querylab/internal/shared/domain"
)

var (
	ErrUnsupportedField     = errors.New("unsupported predicate field")
	ErrUnsupportedOperator  = errors.New("unsupported predicate operator")
	ErrUnsupportedPredicate = errors.New("unsupported predicate type")
)

var comparisonOps = map[sharedDomain.Operator]string{
	sharedDomain.OpEq:  "$eq",
	sharedDomain.OpNeq: "$ne",
	sharedDomain.OpGt:  "$gt",
	sharedDomain.OpGte: "$gte",
	sharedDomain.OpLt:  "$lt",
	sharedDomain.OpLte: "$lte",
}

// ToFilter construye el filtro; fields mapea campo lógico -> ruta en el documento.
// Un predicado ausente o True devuelve un filtro vacío, que casa con todo.
func ToFilter(p sharedDomain.Predicate, fields map[string]string) (bson.D, error) {
	if sharedDomain.IsTrue(p) {
		return bson.D{}, nil
	}

	switch n := p.(type) {
	case sharedDomain.Criterion:
		return criterion(n, fields)

	case sharedDomain.CompositeCriteria:
		var clauses bson.A
		for _, child := range n.Predicates {
			if sharedDomain.IsTrue(child) {
				if n.Operator == sharedDomain.OpOr && child != nil {
					return bson.D{}, nil
				}
				continue
			}
			clause, err := ToFilter(child, fields)
			if err != nil {
				return nil, err
			}
			clauses = append(clauses, clause)
		}
		switch len(clauses) {
		case 0:
			return bson.D{}, nil
		case 1:
			return clauses[0].(bson.D), nil
		}
		key := "$and"
		if n.Operator == sharedDomain.OpOr {
			key = "$or"
		}
		return bson.D{{Key: key, Value: clauses}}, nil

	case sharedDomain.Not:
		if sharedDomain.IsTrue(n.Predicate) {
			return bson.D{}, nil
		}
		inner, err := ToFilter(n.Predicate, fields)
		if err != nil {
			return nil, err
		}
		return bson.D{{Key: "$nor", Value: bson.A{inner}}}, nil
	}

	return nil, fmt.Errorf("%w: %T", ErrUnsupportedPredicate, p)
}

func criterion(c sharedDomain.Criterion, fields map[string]string) (bson.D, error) {
	path, ok := fields[c.Field]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedField, c.Field)
	}
	value := toBSONValue(c.Value)

	if op, ok := comparisonOps[c.Op]; ok {
		cond := bson.D{{Key: op, Value: value}}
		// $ne acepta documentos sin el campo; un atributo ausente nunca coincide.
		if c.Op == sharedDomain.OpNeq {
			cond = append(cond, bson.E{Key: "$exists", Value: true})
		}
		return bson.D{{Key: path, Value: cond}}, nil
	}

	switch c.Op {
	case sharedDomain.OpLike, sharedDomain.OpILike:
		pattern, ok := c.Value.(string)
		if !ok {
			return nil, fmt.Errorf("%w: %s needs a string pattern", ErrUnsupportedOperator, c.Op)
		}
		regex := bson.D{{Key: "$regex", Value: sharedDomain.LikeToRegexp(pattern)}}
		if c.Op == sharedDomain.OpILike {
			regex = append(regex, bson.E{Key: "$options", Value: "i"})
		}
		return bson.D{{Key: path, Value: regex}}, nil
	}

	return nil, fmt.Errorf("%w: %s", ErrUnsupportedOperator, c.Op)
}

// Los ids se guardan como string en los documentos.
func toBSONValue(v interface{}) interface{} {
	switch val := v.(type) {
	case uuid.UUID:
		return val.String()
	case *uuid.UUID:
		if val == nil {
			return nil
		}
		return val.String()
	}
	return v
}
