package domain

import (
	"context"
	"errors"

	"github.com/google/uuid"

	sharedDomain "github.com/davicafu/querylab/internal/shared/domain"
	sharedCache "github.com/davicafu/querylab/internal/shared/infra/platform/cache"
	sharedQuery "github.com/davicafu/querylab/internal/shared/infra/platform/query"
)

// ---------- Errores de dominio ----------
var (
	ErrMemberNotFound       = errors.New("member not found")
	ErrMemberAlreadyExists  = errors.New("member already exists")
	ErrInvalidMember        = errors.New("invalid member")
	ErrTeamNotFound         = errors.New("team not found")
	ErrTeamAlreadyExists    = errors.New("team already exists")
	ErrInvalidTeam          = errors.New("invalid team")
	ErrAnalyticsUnavailable = errors.New("analytics not configured")
)

// ---------- Interfaces (Ports) ----------

// MemberRepository define las operaciones persistentes para Member.
// Las escrituras guardan el evento outbox en la misma transacción.
type MemberRepository interface {
	// Debe devolver ErrMemberAlreadyExists si el username ya está en uso.
	Create(ctx context.Context, m *Member, evt sharedDomain.OutboxEvent) error

	// Debe devolver ErrMemberNotFound si no existe. Rellena Team si el miembro tiene equipo.
	GetByID(ctx context.Context, id uuid.UUID) (*Member, error)

	// Debe devolver ErrMemberNotFound si el miembro no existe.
	Update(ctx context.Context, m *Member, evt sharedDomain.OutboxEvent) error

	// Debe devolver ErrMemberNotFound si el miembro no existe.
	DeleteByID(ctx context.Context, id uuid.UUID, evt sharedDomain.OutboxEvent) error

	// Search devuelve los miembros que cumplen p. Un predicado nil o True no filtra.
	Search(ctx context.Context, p sharedDomain.Predicate, page sharedQuery.OffsetPagination, sort sharedQuery.Sort) ([]*Member, error)

	// AverageAge calcula la edad media de los miembros que cumplen p.
	// El bool es false si ningún miembro cumple p.
	AverageAge(ctx context.Context, p sharedDomain.Predicate) (float64, bool, error)
}

// TeamRepository define las operaciones persistentes para Team.
type TeamRepository interface {
	// Debe devolver ErrTeamAlreadyExists si el nombre ya está en uso.
	Create(ctx context.Context, t *Team, evt sharedDomain.OutboxEvent) error

	// Debe devolver ErrTeamNotFound si no existe.
	GetByID(ctx context.Context, id uuid.UUID) (*Team, error)

	List(ctx context.Context, page sharedQuery.OffsetPagination) ([]*Team, error)
}

// TeamAgeStats es el agregado analítico por equipo.
type TeamAgeStats struct {
	TeamName   string  `json:"team_name"`
	Members    uint64  `json:"members"`
	AverageAge float64 `json:"average_age"`
	MinAge     int     `json:"min_age"`
	MaxAge     int     `json:"max_age"`
}

// MemberAnalyticsRepository guarda el histórico de miembros para consultas analíticas.
type MemberAnalyticsRepository interface {
	LogBatch(ctx context.Context, members []*Member) error
	TeamAgeStats(ctx context.Context) ([]TeamAgeStats, error)
}

// ---------- Helpers comunes (cache keys, etc.) ----------

// CacheKeyByID forma una key consistente para cache usando ID.
func CacheKeyByID(id uuid.UUID) string {
	return sharedCache.Key("member", "id", id.String())
}

func TeamCacheKeyByID(id uuid.UUID) string {
	return sharedCache.Key("team", "id", id.String())
}
