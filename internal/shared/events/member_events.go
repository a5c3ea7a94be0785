package events

import (
	"time"

	"github.com/google/uuid"
)

// Contratos de integración, NO entidades del dominio.
// Se definen planos para intercambio entre contextos.

type MemberCreated struct {
	ID        uuid.UUID  `json:"id"`
	Username  string     `json:"username"`
	Age       int        `json:"age"`
	TeamID    *uuid.UUID `json:"team_id,omitempty"`
	TeamName  string     `json:"team_name,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
}

type MemberUpdated struct {
	ID       uuid.UUID  `json:"id"`
	Username string     `json:"username"`
	Age      int        `json:"age"`
	TeamID   *uuid.UUID `json:"team_id,omitempty"`
	TeamName string     `json:"team_name,omitempty"`
}

type MemberDeleted struct {
	ID uuid.UUID `json:"id"`
}

type TeamCreated struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}
