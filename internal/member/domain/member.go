package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"

	sharedDomain "github.com/davicafu/querylab/internal/shared/domain"
	sharedBus "github.com/davicafu/querylab/internal/shared/infra/platform/bus"
)

// Campos lógicos sobre los que se puede filtrar y ordenar.
// Los adapters los mapean a columnas o rutas de documento.
const (
	FieldID        = "id"
	FieldUsername  = "username"
	FieldAge       = "age"
	FieldTeamID    = "team.id"
	FieldTeamName  = "team.name"
	FieldCreatedAt = "created_at"
)

// Team agrupa miembros.
type Team struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

func NewTeam(name string) (*Team, error) {
	t := &Team{ID: uuid.New(), Name: strings.TrimSpace(name), CreatedAt: time.Now().UTC()}
	if err := t.Validate(); err != nil {
		return nil, err
	}
	return t, nil
}

func (t *Team) Validate() error {
	if t.Name == "" {
		return ErrInvalidTeam
	}
	return nil
}

func (t *Team) PartitionKey() string {
	return t.ID.String()
}

// Member es un miembro, opcionalmente asignado a un Team.
type Member struct {
	ID        uuid.UUID `json:"id"`
	Username  string    `json:"username"`
	Age       int       `json:"age"`
	Team      *Team     `json:"team,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// NewMember crea y valida un miembro nuevo.
func NewMember(username string, age int, team *Team) (*Member, error) {
	m := &Member{
		ID:        uuid.New(),
		Username:  strings.TrimSpace(username),
		Age:       age,
		Team:      team,
		CreatedAt: time.Now().UTC(),
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return m, nil
}

// Validate exige username no vacío y edad no negativa.
func (m *Member) Validate() error {
	if strings.TrimSpace(m.Username) == "" || m.Age < 0 {
		return ErrInvalidMember
	}
	return nil
}

func (m *Member) PartitionKey() string {
	return m.ID.String()
}

// Field implementa sharedDomain.Record. Sin equipo, los campos team.* no existen.
func (m *Member) Field(name string) (any, bool) {
	switch name {
	case FieldID:
		return m.ID, true
	case FieldUsername:
		return m.Username, true
	case FieldAge:
		return m.Age, true
	case FieldCreatedAt:
		return m.CreatedAt, true
	case FieldTeamID:
		if m.Team == nil {
			return nil, false
		}
		return m.Team.ID, true
	case FieldTeamName:
		if m.Team == nil {
			return nil, false
		}
		return m.Team.Name, true
	}
	return nil, false
}

func (m *Member) TeamID() *uuid.UUID {
	if m.Team == nil {
		return nil
	}
	id := m.Team.ID
	return &id
}

// ---------------- Proyecciones ----------------

// AgeGroup clasifica la edad en tramos: 0~20, 21~30 y "other".
func AgeGroup(age int) string {
	switch {
	case age >= 0 && age <= 20:
		return "0~20"
	case age >= 21 && age <= 30:
		return "21~30"
	default:
		return "other"
	}
}

// MemberTeamView es la proyección plana miembro + equipo que devuelven las búsquedas.
type MemberTeamView struct {
	MemberID uuid.UUID  `json:"member_id"`
	Username string     `json:"username"`
	Age      int        `json:"age"`
	AgeGroup string     `json:"age_group"`
	TeamID   *uuid.UUID `json:"team_id,omitempty"`
	TeamName string     `json:"team_name,omitempty"`
}

func NewMemberTeamView(m *Member) MemberTeamView {
	v := MemberTeamView{
		MemberID: m.ID,
		Username: m.Username,
		Age:      m.Age,
		AgeGroup: AgeGroup(m.Age),
	}
	if m.Team != nil {
		v.TeamID = m.TeamID()
		v.TeamName = m.Team.Name
	}
	return v
}

// Verificación estática
var (
	_ sharedBus.Keyer     = (*Member)(nil)
	_ sharedBus.Keyer     = (*Team)(nil)
	_ sharedDomain.Record = (*Member)(nil)
)
