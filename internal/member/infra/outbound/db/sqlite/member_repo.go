package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	// _ "github.com/mattn/go-sqlite3" // better performance but requires gcc
	_ "modernc.org/sqlite"

	memberDomain "github.com/davicafu/querylab/internal/member/domain"
	sharedDomain "github.com/davicafu/querylab/internal/shared/domain"
	sharedSQLite "github.com/davicafu/querylab/internal/shared/infra/platform/db/sqlite"
	"github.com/davicafu/querylab/internal/shared/infra/platform/db/sqlpred"
	sharedQuery "github.com/davicafu/querylab/internal/shared/infra/platform/query"
)

// memberColumns mapea los campos lógicos a columnas de la consulta con JOIN.
var memberColumns = map[string]string{
	memberDomain.FieldID:        "m.id",
	memberDomain.FieldUsername:  "m.username",
	memberDomain.FieldAge:       "m.age",
	memberDomain.FieldCreatedAt: "m.created_at",
	memberDomain.FieldTeamID:    "t.id",
	memberDomain.FieldTeamName:  "t.name",
}

const selectMembers = `SELECT m.id, m.username, m.age, m.created_at, t.id, t.name, t.created_at
	FROM members m LEFT JOIN teams t ON t.id = m.team_id`

type MemberRepoSQLite struct {
	db         *sql.DB
	translator *sqlpred.Translator
}

func NewMemberRepoSQLite(db *sql.DB) *MemberRepoSQLite {
	return &MemberRepoSQLite{
		db:         db,
		translator: sqlpred.NewTranslator(sqlpred.SQLite, memberColumns).WithValueMapper(toSQLiteValue),
	}
}

// toSQLiteValue pasa fechas y uuid al formato TEXT con el que se guardan.
func toSQLiteValue(_ string, v interface{}) interface{} {
	switch val := v.(type) {
	case time.Time:
		return val.UTC().Format(sharedSQLite.TimeLayout)
	case uuid.UUID:
		return val.String()
	}
	return v
}

// ------------------ Inicialización de DB ------------------

// InitSQLite crea las tablas teams, members y outbox si no existen.
func InitSQLite(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, `
        CREATE TABLE IF NOT EXISTS teams (
            id TEXT PRIMARY KEY,
            name TEXT UNIQUE NOT NULL,
            created_at TEXT NOT NULL
        )
    `); err != nil {
		return err
	}

	if _, err := db.ExecContext(ctx, `
        CREATE TABLE IF NOT EXISTS members (
            id TEXT PRIMARY KEY,
            username TEXT UNIQUE NOT NULL,
            age INTEGER NOT NULL,
            team_id TEXT NULL REFERENCES teams(id),
            created_at TEXT NOT NULL
        )
    `); err != nil {
		return err
	}

	return sharedSQLite.InitOutboxSchema(ctx, db)
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func nullableID(id *uuid.UUID) interface{} {
	if id == nil {
		return nil
	}
	return id.String()
}

// ------------------ CRUD + Outbox ------------------

// Create inserta el miembro y su evento en la misma transacción.
func (r *MemberRepoSQLite) Create(ctx context.Context, m *memberDomain.Member, evt sharedDomain.OutboxEvent) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO members (id, username, age, team_id, created_at) VALUES (?,?,?,?,?)`,
		m.ID.String(), m.Username, m.Age, nullableID(m.TeamID()), m.CreatedAt.UTC().Format(sharedSQLite.TimeLayout),
	); err != nil {
		if isUniqueViolation(err) {
			return memberDomain.ErrMemberAlreadyExists
		}
		return fmt.Errorf("insert member: %w", err)
	}

	if err := sharedSQLite.InsertOutboxTx(ctx, tx, evt); err != nil {
		return err
	}

	return tx.Commit()
}

// Update actualiza el miembro y crea el evento outbox en transacción.
func (r *MemberRepoSQLite) Update(ctx context.Context, m *memberDomain.Member, evt sharedDomain.OutboxEvent) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx,
		`UPDATE members SET username=?, age=?, team_id=? WHERE id=?`,
		m.Username, m.Age, nullableID(m.TeamID()), m.ID.String(),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return memberDomain.ErrMemberAlreadyExists
		}
		return fmt.Errorf("update member: %w", err)
	}

	if rows, _ := res.RowsAffected(); rows == 0 {
		return memberDomain.ErrMemberNotFound
	}

	if err := sharedSQLite.InsertOutboxTx(ctx, tx, evt); err != nil {
		return err
	}

	return tx.Commit()
}

// DeleteByID elimina el miembro y crea el evento outbox en transacción.
func (r *MemberRepoSQLite) DeleteByID(ctx context.Context, id uuid.UUID, evt sharedDomain.OutboxEvent) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx, `DELETE FROM members WHERE id=?`, id.String())
	if err != nil {
		return fmt.Errorf("delete member: %w", err)
	}
	if rows, _ := res.RowsAffected(); rows == 0 {
		return memberDomain.ErrMemberNotFound
	}

	if err := sharedSQLite.InsertOutboxTx(ctx, tx, evt); err != nil {
		return err
	}

	return tx.Commit()
}

func (r *MemberRepoSQLite) GetByID(ctx context.Context, id uuid.UUID) (*memberDomain.Member, error) {
	row := r.db.QueryRowContext(ctx, selectMembers+` WHERE m.id = ?`, id.String())

	m, err := scanMember(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, memberDomain.ErrMemberNotFound
	}
	return m, err
}

// ------------------ Búsqueda dinámica ------------------

// Search traduce el predicado a WHERE; un predicado ausente no filtra.
func (r *MemberRepoSQLite) Search(ctx context.Context, p sharedDomain.Predicate, page sharedQuery.OffsetPagination, s sharedQuery.Sort) ([]*memberDomain.Member, error) {
	where, args, err := r.translator.Where(p, 0)
	if err != nil {
		return nil, err
	}
	orderBy, err := r.translator.OrderBy(s, memberDomain.FieldCreatedAt, "m.id")
	if err != nil {
		return nil, err
	}

	page = page.Normalize()
	query := fmt.Sprintf(`%s WHERE %s ORDER BY %s LIMIT ? OFFSET ?`, selectMembers, where, orderBy)
	args = append(args, page.Limit, page.Offset)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("search members: %w", err)
	}
	defer rows.Close()

	members := []*memberDomain.Member{}
	for rows.Next() {
		m, err := scanMember(rows)
		if err != nil {
			return nil, err
		}
		members = append(members, m)
	}
	return members, rows.Err()
}

// AverageAge calcula la media sobre los miembros que cumplen p.
func (r *MemberRepoSQLite) AverageAge(ctx context.Context, p sharedDomain.Predicate) (float64, bool, error) {
	where, args, err := r.translator.Where(p, 0)
	if err != nil {
		return 0, false, err
	}

	var avg sql.NullFloat64
	query := `SELECT AVG(m.age) FROM members m LEFT JOIN teams t ON t.id = m.team_id WHERE ` + where
	if err := r.db.QueryRowContext(ctx, query, args...).Scan(&avg); err != nil {
		return 0, false, fmt.Errorf("average age: %w", err)
	}
	return avg.Float64, avg.Valid, nil
}

// ------------------ Helpers de escaneo ------------------

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanMember(s scanner) (*memberDomain.Member, error) {
	var m memberDomain.Member
	var idStr, createdStr string
	var teamID, teamName, teamCreated sql.NullString
	if err := s.Scan(&idStr, &m.Username, &m.Age, &createdStr, &teamID, &teamName, &teamCreated); err != nil {
		return nil, err
	}

	var err error
	if m.ID, err = uuid.Parse(idStr); err != nil {
		return nil, fmt.Errorf("invalid UUID in DB: %w", err)
	}
	if m.CreatedAt, err = time.Parse(sharedSQLite.TimeLayout, createdStr); err != nil {
		return nil, fmt.Errorf("invalid created_at in DB: %w", err)
	}

	if teamID.Valid {
		team := &memberDomain.Team{Name: teamName.String}
		if team.ID, err = uuid.Parse(teamID.String); err != nil {
			return nil, fmt.Errorf("invalid team UUID in DB: %w", err)
		}
		if teamCreated.Valid {
			team.CreatedAt, _ = time.Parse(sharedSQLite.TimeLayout, teamCreated.String)
		}
		m.Team = team
	}
	return &m, nil
}

// Verificación estática
var _ memberDomain.MemberRepository = (*MemberRepoSQLite)(nil)
