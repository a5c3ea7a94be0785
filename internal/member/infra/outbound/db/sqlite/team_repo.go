package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	memberDomain "github.com/davicafu/querylab/internal/member/domain"
	sharedDomain "github.com/davicafu/querylab/internal/shared/domain"
	sharedSQLite "github.com/davicafu/querylab/internal/shared/infra/platform/db/sqlite"
	sharedQuery "github.com/davicafu/querylab/internal/shared/infra/platform/query"
)

type TeamRepoSQLite struct {
	db *sql.DB
}

func NewTeamRepoSQLite(db *sql.DB) *TeamRepoSQLite {
	return &TeamRepoSQLite{db: db}
}

func (r *TeamRepoSQLite) Create(ctx context.Context, t *memberDomain.Team, evt sharedDomain.OutboxEvent) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO teams (id, name, created_at) VALUES (?,?,?)`,
		t.ID.String(), t.Name, t.CreatedAt.UTC().Format(sharedSQLite.TimeLayout),
	); err != nil {
		if isUniqueViolation(err) {
			return memberDomain.ErrTeamAlreadyExists
		}
		return fmt.Errorf("insert team: %w", err)
	}

	if err := sharedSQLite.InsertOutboxTx(ctx, tx, evt); err != nil {
		return err
	}
	return tx.Commit()
}

func (r *TeamRepoSQLite) GetByID(ctx context.Context, id uuid.UUID) (*memberDomain.Team, error) {
	row := r.db.QueryRowContext(ctx, `SELECT id, name, created_at FROM teams WHERE id = ?`, id.String())
	t, err := scanTeam(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, memberDomain.ErrTeamNotFound
	}
	return t, err
}

func (r *TeamRepoSQLite) List(ctx context.Context, page sharedQuery.OffsetPagination) ([]*memberDomain.Team, error) {
	page = page.Normalize()
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, name, created_at FROM teams ORDER BY created_at, id LIMIT ? OFFSET ?`,
		page.Limit, page.Offset,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	teams := []*memberDomain.Team{}
	for rows.Next() {
		t, err := scanTeam(rows)
		if err != nil {
			return nil, err
		}
		teams = append(teams, t)
	}
	return teams, rows.Err()
}

func scanTeam(s scanner) (*memberDomain.Team, error) {
	var t memberDomain.Team
	var idStr, createdStr string
	if err := s.Scan(&idStr, &t.Name, &createdStr); err != nil {
		return nil, err
	}
	var err error
	if t.ID, err = uuid.Parse(idStr); err != nil {
		return nil, fmt.Errorf("invalid UUID in DB: %w", err)
	}
	if t.CreatedAt, err = time.Parse(sharedSQLite.TimeLayout, createdStr); err != nil {
		return nil, fmt.Errorf("invalid created_at in DB: %w", err)
	}
	return &t, nil
}

// Verificación estática
var _ memberDomain.TeamRepository = (*TeamRepoSQLite)(nil)
