package domain

import (
	"math"

	sharedDomain "github.com/davicafu/querylab/internal/shared/domain"
)

// MemberSearchCondition agrupa los criterios opcionales de búsqueda.
// Un campo ausente no restringe nada; Some(0) o Some("") sí filtran.
type MemberSearchCondition struct {
	Username sharedDomain.Optional[string] `json:"username"`
	Age      sharedDomain.Optional[int]    `json:"age"`
	TeamName sharedDomain.Optional[string] `json:"team_name"`
	AgeGoe   sharedDomain.Optional[int]    `json:"age_goe"`
	AgeLoe   sharedDomain.Optional[int]    `json:"age_loe"`
}

// ---------------- Builders por campo ----------------
// Todos devuelven nil si el criterio no está especificado.

func UsernameEq(username sharedDomain.Optional[string]) sharedDomain.Predicate {
	return sharedDomain.PredicateFor(FieldUsername, username)
}

func AgeEq(age sharedDomain.Optional[int]) sharedDomain.Predicate {
	return sharedDomain.PredicateFor(FieldAge, age)
}

func TeamNameEq(teamName sharedDomain.Optional[string]) sharedDomain.Predicate {
	return sharedDomain.PredicateFor(FieldTeamName, teamName)
}

func AgeGoe(age sharedDomain.Optional[int]) sharedDomain.Predicate {
	return sharedDomain.PredicateForOp(FieldAge, sharedDomain.OpGte, age)
}

func AgeLoe(age sharedDomain.Optional[int]) sharedDomain.Predicate {
	return sharedDomain.PredicateForOp(FieldAge, sharedDomain.OpLte, age)
}

// AllEq combina username y edad; cualquiera de los dos puede faltar.
// ToPredicate parte de él y añade el resto de criterios.
func AllEq(username sharedDomain.Optional[string], age sharedDomain.Optional[int]) sharedDomain.Predicate {
	return sharedDomain.And(UsernameEq(username), AgeEq(age))
}

// ToPredicate compone los criterios presentes con AND, siempre en el mismo orden.
func (c MemberSearchCondition) ToPredicate() sharedDomain.Predicate {
	return sharedDomain.Compose(
		AllEq(c.Username, c.Age),
		TeamNameEq(c.TeamName),
		AgeGoe(c.AgeGoe),
		AgeLoe(c.AgeLoe),
	)
}

// AgeGoeAverage es el filtro "edad >= media" que se añade tras calcular la media.
// Las edades son enteras, así que edad >= media equivale a edad >= techo(media); el valor
// viaja como int porque Postgres tipa el parámetro como la columna y truncaría un float.
func AgeGoeAverage(avg float64) sharedDomain.Predicate {
	return sharedDomain.Criterion{Field: FieldAge, Op: sharedDomain.OpGte, Value: int(math.Ceil(avg))}
}

// SortableFields son los campos por los que se puede ordenar una búsqueda.
var SortableFields = []string{FieldUsername, FieldAge, FieldTeamName, FieldCreatedAt, FieldID}

func IsSortable(field string) bool {
	for _, f := range SortableFields {
		if f == field {
			return true
		}
	}
	return false
}
