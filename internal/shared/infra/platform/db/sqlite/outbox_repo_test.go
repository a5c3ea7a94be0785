package sqlite

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	sharedDomain "github.com/davicafu/querylab/internal/shared/domain"
)

func setupDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	// Cada conexión de :memory: es una base distinta.
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	require.NoError(t, InitOutboxSchema(context.Background(), db))
	return db
}

func insert(t *testing.T, db *sql.DB, evt sharedDomain.OutboxEvent) {
	t.Helper()
	ctx := context.Background()
	tx, err := db.BeginTx(ctx, nil)
	require.NoError(t, err)
	require.NoError(t, InsertOutboxTx(ctx, tx, evt))
	require.NoError(t, tx.Commit())
}

func TestOutboxRepoSQLite_FetchAndMark(t *testing.T) {
	db := setupDB(t)
	repo := NewOutboxRepoSQLite(db)
	ctx := context.Background()

	first := sharedDomain.NewOutboxEvent("member", uuid.NewString(), "member.created", map[string]interface{}{"username": "member1"})
	second := sharedDomain.NewOutboxEvent("member", uuid.NewString(), "member.deleted", map[string]interface{}{"id": "x"})
	second.CreatedAt = first.CreatedAt.Add(time.Second)
	insert(t, db, second)
	insert(t, db, first)

	events, err := repo.FetchPendingOutbox(ctx, 10)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, first.ID, events[0].ID)
	assert.Equal(t, "member.created", events[0].EventType)
	assert.Equal(t, "member1", events[0].Payload.(map[string]interface{})["username"])
	assert.True(t, first.CreatedAt.Equal(events[0].CreatedAt))

	require.NoError(t, repo.MarkOutboxProcessed(ctx, first.ID))

	events, err = repo.FetchPendingOutbox(ctx, 10)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, second.ID, events[0].ID)
}

func TestOutboxRepoSQLite_Limit(t *testing.T) {
	db := setupDB(t)
	repo := NewOutboxRepoSQLite(db)

	for i := 0; i < 3; i++ {
		insert(t, db, sharedDomain.NewOutboxEvent("team", uuid.NewString(), "team.created", map[string]interface{}{}))
	}

	events, err := repo.FetchPendingOutbox(context.Background(), 2)
	require.NoError(t, err)
	assert.Len(t, events, 2)
}

func TestOutboxRepoSQLite_MarkUnknown(t *testing.T) {
	repo := NewOutboxRepoSQLite(setupDB(t))
	assert.Error(t, repo.MarkOutboxProcessed(context.Background(), uuid.New()))
}

func TestOutboxRepoSQLite_MarkFailedSkipsEvent(t *testing.T) {
	db := setupDB(t)
	repo := NewOutboxRepoSQLite(db)
	ctx := context.Background()

	stuck := sharedDomain.NewOutboxEvent("member", uuid.NewString(), "unregistered.event", map[string]interface{}{})
	next := sharedDomain.NewOutboxEvent("member", uuid.NewString(), "member.created", map[string]interface{}{})
	next.CreatedAt = stuck.CreatedAt.Add(time.Second)
	insert(t, db, stuck)
	insert(t, db, next)

	events, err := repo.FetchPendingOutbox(ctx, 1)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, stuck.ID, events[0].ID)

	require.NoError(t, repo.MarkOutboxFailed(ctx, stuck.ID, "unknown event type"))

	events, err = repo.FetchPendingOutbox(ctx, 1)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, next.ID, events[0].ID)

	var reason string
	require.NoError(t, db.QueryRow(`SELECT failed_reason FROM outbox WHERE id = ?`, stuck.ID.String()).Scan(&reason))
	assert.Equal(t, "unknown event type", reason)

	assert.Error(t, repo.MarkOutboxFailed(ctx, uuid.New(), "x"))
}
