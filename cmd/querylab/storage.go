package main

import (
	"context"
	"database/sql"
	"fmt"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"

	"github.com/davicafu/querylab/internal/config"
	memberDomain "github.com/davicafu/querylab/internal/member/domain"
	memberMongo "github.com/davicafu/querylab/internal/member/infra/outbound/db/mongodb"
	memberPostgres "github.com/davicafu/querylab/internal/member/infra/outbound/db/postgres"
	memberSQLite "github.com/davicafu/querylab/internal/member/infra/outbound/db/sqlite"
	sharedDomain "github.com/davicafu/querylab/internal/shared/domain"
	sharedMongo "github.com/davicafu/querylab/internal/shared/infra/platform/db/mongodb"
	sharedPostgres "github.com/davicafu/querylab/internal/shared/infra/platform/db/postgres"
	sharedSQLite "github.com/davicafu/querylab/internal/shared/infra/platform/db/sqlite"
)

// storage agrupa los repositorios del motor elegido.
type storage struct {
	members memberDomain.MemberRepository
	teams   memberDomain.TeamRepository
	outbox  sharedDomain.OutboxRepository
	close   func()
}

func openStorage(ctx context.Context, cfg config.StorageConfig, log *zap.Logger) (*storage, error) {
	switch cfg.Driver {
	case config.DriverPostgres:
		db, err := sql.Open("pgx", cfg.PostgresDSN)
		if err != nil {
			return nil, fmt.Errorf("open postgres: %w", err)
		}
		if err := db.PingContext(ctx); err != nil {
			db.Close()
			return nil, fmt.Errorf("ping postgres: %w", err)
		}
		if err := memberPostgres.InitPostgres(ctx, db); err != nil {
			db.Close()
			return nil, fmt.Errorf("init postgres: %w", err)
		}
		log.Info("🐘 Usando Postgres como almacenamiento")
		return &storage{
			members: memberPostgres.NewMemberRepoPostgres(db),
			teams:   memberPostgres.NewTeamRepoPostgres(db),
			outbox:  sharedPostgres.NewOutboxRepoPostgres(db),
			close:   func() { db.Close() },
		}, nil

	case config.DriverMongoDB:
		client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.MongoURI))
		if err != nil {
			return nil, fmt.Errorf("connect mongodb: %w", err)
		}
		disconnect := func() { _ = client.Disconnect(context.Background()) }

		members, err := memberMongo.NewMemberRepoMongoDB(ctx, client, cfg.MongoDB)
		if err != nil {
			disconnect()
			return nil, err
		}
		db := client.Database(cfg.MongoDB)
		if err := memberMongo.EnsureIndexes(ctx, db); err != nil {
			disconnect()
			return nil, err
		}
		log.Info("🍃 Usando MongoDB como almacenamiento")
		return &storage{
			members: members,
			teams:   memberMongo.NewTeamRepoMongoDB(client, cfg.MongoDB),
			outbox:  sharedMongo.NewOutboxRepoMongoDB(db),
			close:   disconnect,
		}, nil

	default:
		db, err := sql.Open("sqlite", cfg.SQLitePath)
		if err != nil {
			return nil, fmt.Errorf("open sqlite: %w", err)
		}
		// SQLite serializa las escrituras; una conexión evita "database is locked".
		db.SetMaxOpenConns(1)
		if err := memberSQLite.InitSQLite(ctx, db); err != nil {
			db.Close()
			return nil, fmt.Errorf("init sqlite: %w", err)
		}
		log.Info("🪶 Usando SQLite como almacenamiento", zap.String("path", cfg.SQLitePath))
		return &storage{
			members: memberSQLite.NewMemberRepoSQLite(db),
			teams:   memberSQLite.NewTeamRepoSQLite(db),
			outbox:  sharedSQLite.NewOutboxRepoSQLite(db),
			close:   func() { db.Close() },
		}, nil
	}
}
