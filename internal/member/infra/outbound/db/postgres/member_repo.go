package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"

	memberDomain "github.com/davicafu/querylab/internal/member/domain"
	sharedDomain "github.com/davicafu/querylab/internal/shared/domain"
	sharedPostgres "github.com/davicafu/querylab/internal/shared/infra/platform/db/postgres"
	"github.com/davicafu/querylab/internal/shared/infra/platform/db/sqlpred"
	sharedQuery "github.com/davicafu/querylab/internal/shared/infra/platform/query"
)

// uniqueViolation es el SQLSTATE de Postgres para claves duplicadas.
const uniqueViolation = "23505"

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

type MemberRepoPostgres struct {
	db         *sql.DB
	translator *sqlpred.Translator
}

func NewMemberRepoPostgres(db *sql.DB) *MemberRepoPostgres {
	return &MemberRepoPostgres{db: db, translator: sqlpred.NewTranslator(sqlpred.Postgres, memberColumns)}
}

// ------------------ Inicialización de DB ------------------

func InitPostgres(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS teams (
			id UUID PRIMARY KEY,
			name TEXT UNIQUE NOT NULL,
			created_at TIMESTAMPTZ NOT NULL
		)`); err != nil {
		return err
	}

	if _, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS members (
			id UUID PRIMARY KEY,
			username TEXT UNIQUE NOT NULL,
			age INTEGER NOT NULL CHECK (age >= 0),
			team_id UUID NULL REFERENCES teams(id),
			created_at TIMESTAMPTZ NOT NULL
		)`); err != nil {
		return err
	}

	if _, err := db.ExecContext(ctx, `CREATE INDEX IF NOT EXISTS idx_members_team_id ON members(team_id)`); err != nil {
		return err
	}

	return sharedPostgres.InitOutboxSchema(ctx, db)
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

// ------------------ CRUD + Outbox ------------------

func (r *MemberRepoPostgres) Create(ctx context.Context, m *memberDomain.Member, evt sharedDomain.OutboxEvent) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO members (id, username, age, team_id, created_at) VALUES ($1, $2, $3, $4, $5)`,
		m.ID, m.Username, m.Age, m.TeamID(), m.CreatedAt,
	); err != nil {
		if isUniqueViolation(err) {
			return memberDomain.ErrMemberAlreadyExists
		}
		return fmt.Errorf("insert member: %w", err)
	}

	if err := sharedPostgres.InsertOutboxTx(ctx, tx, evt); err != nil {
		return err
	}
	return tx.Commit()
}

func (r *MemberRepoPostgres) Update(ctx context.Context, m *memberDomain.Member, evt sharedDomain.OutboxEvent) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx,
		`UPDATE members SET username=$1, age=$2, team_id=$3 WHERE id=$4`,
		m.Username, m.Age, m.TeamID(), m.ID,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return memberDomain.ErrMemberAlreadyExists
		}
		return fmt.Errorf("db error: %w", err)
	}
	if rows, _ := res.RowsAffected(); rows == 0 {
		return memberDomain.ErrMemberNotFound
	}

	if err := sharedPostgres.InsertOutboxTx(ctx, tx, evt); err != nil {
		return fmt.Errorf("failed to insert outbox: %w", err)
	}
	return tx.Commit()
}

func (r *MemberRepoPostgres) DeleteByID(ctx context.Context, id uuid.UUID, evt sharedDomain.OutboxEvent) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx, `DELETE FROM members WHERE id=$1`, id)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if rows, _ := res.RowsAffected(); rows == 0 {
		return memberDomain.ErrMemberNotFound
	}

	if err := sharedPostgres.InsertOutboxTx(ctx, tx, evt); err != nil {
		return fmt.Errorf("failed to insert outbox: %w", err)
	}
	return tx.Commit()
}

func (r *MemberRepoPostgres) GetByID(ctx context.Context, id uuid.UUID) (*memberDomain.Member, error) {
	m, err := scanMember(r.db.QueryRowContext(ctx, selectMembers+` WHERE m.id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, memberDomain.ErrMemberNotFound
	}
	return m, err
}

// ------------------ Búsqueda dinámica ------------------

func (r *MemberRepoPostgres) Search(ctx context.Context, p sharedDomain.Predicate, page sharedQuery.OffsetPagination, s sharedQuery.Sort) ([]*memberDomain.Member, error) {
	where, args, err := r.translator.Where(p, 0)
	if err != nil {
		return nil, err
	}
	orderBy, err := r.translator.OrderBy(s, memberDomain.FieldCreatedAt, "m.id")
	if err != nil {
		return nil, err
	}

	page = page.Normalize()
	query := fmt.Sprintf(`%s WHERE %s ORDER BY %s LIMIT $%d OFFSET $%d`,
		selectMembers, where, orderBy, len(args)+1, len(args)+2)
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

func (r *MemberRepoPostgres) AverageAge(ctx context.Context, p sharedDomain.Predicate) (float64, bool, error) {
	where, args, err := r.translator.Where(p, 0)
	if err != nil {
		return 0, false, err
	}

	var avg sql.NullFloat64
	query := `SELECT AVG(m.age)::float8 FROM members m LEFT JOIN teams t ON t.id = m.team_id WHERE ` + where
	if err := r.db.QueryRowContext(ctx, query, args...).Scan(&avg); err != nil {
		return 0, false, fmt.Errorf("average age: %w", err)
	}
	return avg.Float64, avg.Valid, nil
}

// ------------------ Helpers ------------------

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanMember(s scanner) (*memberDomain.Member, error) {
	var m memberDomain.Member
	var teamID uuid.NullUUID
	var teamName sql.NullString
	var teamCreated sql.NullTime

	if err := s.Scan(&m.ID, &m.Username, &m.Age, &m.CreatedAt, &teamID, &teamName, &teamCreated); err != nil {
		return nil, err
	}
	m.CreatedAt = m.CreatedAt.UTC()
	if teamID.Valid {
		m.Team = &memberDomain.Team{ID: teamID.UUID, Name: teamName.String, CreatedAt: teamCreated.Time.UTC()}
	}
	return &m, nil
}

var _ memberDomain.MemberRepository = (*MemberRepoPostgres)(nil)
