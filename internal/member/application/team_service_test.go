package application

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	memberDomain "github.com/davicafu/querylab/internal/member/domain"
	sharedQuery "github.com/davicafu/querylab/internal/shared/infra/platform/query"
	"github.com/davicafu/querylab/tests/mocks"
)

func TestCreateTeam(t *testing.T) {
	repo := mocks.NewInMemoryTeamRepo()
	service := NewTeamService(repo, nil, mocks.NewDummyCache(), zap.NewNop())
	ctx := context.Background()

	team, err := service.CreateTeam(ctx, " teamA ")
	require.NoError(t, err)
	assert.Equal(t, "teamA", team.Name)
	require.Len(t, repo.Outbox, 1)
	assert.Equal(t, memberDomain.TeamCreated, repo.Outbox[0].EventType)

	_, err = service.CreateTeam(ctx, "teamA")
	assert.ErrorIs(t, err, memberDomain.ErrTeamAlreadyExists)

	_, err = service.CreateTeam(ctx, "   ")
	assert.ErrorIs(t, err, memberDomain.ErrInvalidTeam)
}

func TestGetTeamAndList(t *testing.T) {
	repo := mocks.NewInMemoryTeamRepo()
	service := NewTeamService(repo, nil, nil, zap.NewNop())
	ctx := context.Background()

	a, _ := service.CreateTeam(ctx, "teamA")
	_, _ = service.CreateTeam(ctx, "teamB")

	got, err := service.GetTeam(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, "teamA", got.Name)

	_, err = service.GetTeam(ctx, uuid.New())
	assert.ErrorIs(t, err, memberDomain.ErrTeamNotFound)

	teams, err := service.ListTeams(ctx, sharedQuery.OffsetPagination{})
	require.NoError(t, err)
	assert.Len(t, teams, 2)

	teams, err = service.ListTeams(ctx, sharedQuery.OffsetPagination{Limit: 1, Offset: 1})
	require.NoError(t, err)
	require.Len(t, teams, 1)
	assert.Equal(t, "teamB", teams[0].Name)
}

func TestTeamAgeStats(t *testing.T) {
	ctx := context.Background()

	withoutAnalytics := NewTeamService(mocks.NewInMemoryTeamRepo(), nil, nil, zap.NewNop())
	_, err := withoutAnalytics.TeamAgeStats(ctx)
	assert.ErrorIs(t, err, memberDomain.ErrAnalyticsUnavailable)

	analytics := new(mocks.MockAnalytics)
	expected := []memberDomain.TeamAgeStats{{TeamName: "teamA", Members: 2, AverageAge: 15, MinAge: 10, MaxAge: 20}}
	analytics.On("TeamAgeStats", mock.Anything).Return(expected, nil).Once()

	service := NewTeamService(mocks.NewInMemoryTeamRepo(), analytics, nil, zap.NewNop())
	stats, err := service.TeamAgeStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, expected, stats)

	analytics.On("TeamAgeStats", mock.Anything).Return(nil, errors.New("clickhouse down")).Once()
	_, err = service.TeamAgeStats(ctx)
	assert.Error(t, err)
	analytics.AssertExpectations(t)
}
