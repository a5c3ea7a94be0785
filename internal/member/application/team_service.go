package application

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	memberDomain "github.com/davicafu/querylab/internal/member/domain"
	sharedCache "github.com/davicafu/querylab/internal/shared/infra/platform/cache"
	sharedQuery "github.com/davicafu/querylab/internal/shared/infra/platform/query"
	sharedUtils "github.com/davicafu/querylab/internal/shared/infra/utils"
)

const teamCacheTTLSecs = 300

// TeamService define los casos de uso de Team y las consultas analíticas.
type TeamService struct {
	repo      memberDomain.TeamRepository
	analytics memberDomain.MemberAnalyticsRepository // opcional
	cache     sharedCache.Cache
	log       *zap.Logger
}

// NewTeamService acepta analytics nil cuando no hay ClickHouse configurado.
func NewTeamService(repo memberDomain.TeamRepository, analytics memberDomain.MemberAnalyticsRepository, cache sharedCache.Cache, log *zap.Logger) *TeamService {
	return &TeamService{
		repo:      repo,
		analytics: analytics,
		cache:     cache,
		log:       log,
	}
}

func (s *TeamService) CreateTeam(ctx context.Context, name string) (*memberDomain.Team, error) {
	team, err := memberDomain.NewTeam(name)
	if err != nil {
		return nil, err
	}

	if err := s.repo.Create(ctx, team, memberDomain.NewTeamCreatedEvent(team)); err != nil {
		if !errors.Is(err, memberDomain.ErrTeamAlreadyExists) {
			s.log.Error("Failed to create team", zap.String("name", team.Name), zap.Error(err))
		}
		return nil, err
	}

	sharedCache.AsyncCacheSet(s.cache, memberDomain.TeamCacheKeyByID(team.ID), team, teamCacheTTLSecs, s.log)
	return team, nil
}

func (s *TeamService) GetTeam(ctx context.Context, id uuid.UUID) (*memberDomain.Team, error) {
	if s.cache != nil {
		var t memberDomain.Team
		if hit, _ := s.cache.Get(ctx, memberDomain.TeamCacheKeyByID(id), &t); hit {
			return &t, nil
		}
	}

	var team *memberDomain.Team
	err := sharedUtils.RetryIf(ctx, 3, 100*time.Millisecond, isTransient, func() error {
		var errRetry error
		team, errRetry = s.repo.GetByID(ctx, id)
		return errRetry
	})
	if err != nil {
		return nil, err
	}

	sharedCache.AsyncCacheSet(s.cache, memberDomain.TeamCacheKeyByID(team.ID), team, teamCacheTTLSecs, s.log)
	return team, nil
}

func (s *TeamService) ListTeams(ctx context.Context, page sharedQuery.OffsetPagination) ([]*memberDomain.Team, error) {
	return s.repo.List(ctx, page.Normalize())
}

// TeamAgeStats consulta el agregado por equipo en el almacén analítico.
func (s *TeamService) TeamAgeStats(ctx context.Context) ([]memberDomain.TeamAgeStats, error) {
	if s.analytics == nil {
		return nil, memberDomain.ErrAnalyticsUnavailable
	}
	stats, err := s.analytics.TeamAgeStats(ctx)
	if err != nil {
		s.log.Error("Failed to query team stats", zap.Error(err))
		return nil, err
	}
	return stats, nil
}
