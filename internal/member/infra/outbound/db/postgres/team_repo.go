package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	memberDomain "github.com/davicafu/querylab/internal/member/domain"
	sharedDomain "github.com/davicafu/querylab/internal/shared/domain"
	sharedPostgres "github.com/davicafu/querylab/internal/shared/infra/platform/db/postgres"
	sharedQuery "github.com/davicafu/querylab/internal/shared/infra/platform/query"
)

type TeamRepoPostgres struct {
	db *sql.DB
}

func NewTeamRepoPostgres(db *sql.DB) *TeamRepoPostgres {
	return &TeamRepoPostgres{db: db}
}

func (r *TeamRepoPostgres) Create(ctx context.Context, t *memberDomain.Team, evt sharedDomain.OutboxEvent) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO teams (id, name, created_at) VALUES ($1, $2, $3)`,
		t.ID, t.Name, t.CreatedAt,
	); err != nil {
		if isUniqueViolation(err) {
			return memberDomain.ErrTeamAlreadyExists
		}
		return fmt.Errorf("insert team: %w", err)
	}

	if err := sharedPostgres.InsertOutboxTx(ctx, tx, evt); err != nil {
		return err
	}
	return tx.Commit()
}

func (r *TeamRepoPostgres) GetByID(ctx context.Context, id uuid.UUID) (*memberDomain.Team, error) {
	var t memberDomain.Team
	err := r.db.QueryRowContext(ctx, `SELECT id, name, created_at FROM teams WHERE id = $1`, id).
		Scan(&t.ID, &t.Name, &t.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, memberDomain.ErrTeamNotFound
	}
	if err != nil {
		return nil, err
	}
	t.CreatedAt = t.CreatedAt.UTC()
	return &t, nil
}

func (r *TeamRepoPostgres) List(ctx context.Context, page sharedQuery.OffsetPagination) ([]*memberDomain.Team, error) {
	page = page.Normalize()
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, name, created_at FROM teams ORDER BY created_at, id LIMIT $1 OFFSET $2`,
		page.Limit, page.Offset,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	teams := []*memberDomain.Team{}
	for rows.Next() {
		var t memberDomain.Team
		if err := rows.Scan(&t.ID, &t.Name, &t.CreatedAt); err != nil {
			return nil, err
		}
		t.CreatedAt = t.CreatedAt.UTC()
		teams = append(teams, &t)
	}
	return teams, rows.Err()
}

var _ memberDomain.TeamRepository = (*TeamRepoPostgres)(nil)
