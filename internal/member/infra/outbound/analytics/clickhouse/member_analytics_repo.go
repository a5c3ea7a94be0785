package clickhouse

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"

	memberDomain "github.com/davicafu/querylab/internal/member/domain"
)

// MemberAnalyticsRepo implementa MemberAnalyticsRepository sobre ClickHouse.
// Cada evento de miembro añade una fila; las consultas se quedan con la última por id.
type MemberAnalyticsRepo struct {
	db *sql.DB
}

func NewMemberAnalyticsRepo(addr string, dbName string) (*MemberAnalyticsRepo, error) {
	conn := clickhouse.OpenDB(&clickhouse.Options{
		Addr: []string{addr},
		Auth: clickhouse.Auth{
			Database: dbName,
		},
		Settings: clickhouse.Settings{
			"max_execution_time": 60,
		},
		DialTimeout: 5 * time.Second,
	})

	if err := conn.Ping(); err != nil {
		return nil, fmt.Errorf("could not ping clickhouse: %w", err)
	}

	return &MemberAnalyticsRepo{db: conn}, nil
}

// InitSchema crea la tabla members_log si no existe.
func (r *MemberAnalyticsRepo) InitSchema(ctx context.Context) error {
	query := `
		CREATE TABLE IF NOT EXISTS members_log (
			id         UUID,
			username   String,
			age        Int32,
			team_id    Nullable(UUID),
			team_name  String,
			created_at DateTime64(3),
			event_time DateTime64(3)
		) ENGINE = MergeTree()
		PARTITION BY toYYYYMM(event_time)
		ORDER BY (team_name, id, event_time);
	`
	_, err := r.db.ExecContext(ctx, query)
	return err
}

// LogBatch inserta un lote de miembros en una sola transacción.
func (r *MemberAnalyticsRepo) LogBatch(ctx context.Context, members []*memberDomain.Member) error {
	if len(members) == 0 {
		return nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, "INSERT INTO members_log (id, username, age, team_id, team_name, created_at, event_time)")
	if err != nil {
		return err
	}
	defer stmt.Close()

	eventTime := time.Now().UTC()
	for _, m := range members {
		teamName := ""
		if m.Team != nil {
			teamName = m.Team.Name
		}
		if _, err := stmt.ExecContext(ctx,
			m.ID,
			m.Username,
			int32(m.Age),
			m.TeamID(),
			teamName,
			m.CreatedAt,
			eventTime,
		); err != nil {
			return fmt.Errorf("failed to exec statement for member %s: %w", m.ID, err)
		}
	}

	return tx.Commit()
}

// TeamAgeStats agrega por equipo la última versión conocida de cada miembro.
func (r *MemberAnalyticsRepo) TeamAgeStats(ctx context.Context) ([]memberDomain.TeamAgeStats, error) {
	query := `
		SELECT
			team_name,
			count() AS members,
			avg(age) AS average_age,
			toInt64(min(age)) AS min_age,
			toInt64(max(age)) AS max_age
		FROM (
			SELECT
				id,
				argMax(age, event_time) AS age,
				argMax(team_name, event_time) AS team_name
			FROM members_log
			GROUP BY id
		)
		WHERE team_name != ''
		GROUP BY team_name
		ORDER BY team_name
	`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	stats := []memberDomain.TeamAgeStats{}
	for rows.Next() {
		var s memberDomain.TeamAgeStats
		var minAge, maxAge int64
		if err := rows.Scan(&s.TeamName, &s.Members, &s.AverageAge, &minAge, &maxAge); err != nil {
			return nil, err
		}
		s.MinAge, s.MaxAge = int(minAge), int(maxAge)
		stats = append(stats, s)
	}
	return stats, rows.Err()
}

// Verificación estática de la interfaz.
var _ memberDomain.MemberAnalyticsRepository = (*MemberAnalyticsRepo)(nil)
