package application

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	memberDomain "github.com/davicafu/querylab/internal/member/domain"
	sharedDomain "github.com/davicafu/querylab/internal/shared/domain"
	sharedCache "github.com/davicafu/querylab/internal/shared/infra/platform/cache"
	sharedQuery "github.com/davicafu/querylab/internal/shared/infra/platform/query"
	sharedUtils "github.com/davicafu/querylab/internal/shared/infra/utils"
)

// Las escrituras de caché de miembros son síncronas: un Set en vuelo no puede pisar el Delete
// de un borrado posterior.
const memberCacheTTLSecs = 120

// MemberService define los casos de uso relacionados con Member.
type MemberService struct {
	repo  memberDomain.MemberRepository
	teams memberDomain.TeamRepository
	cache sharedCache.Cache
	log   *zap.Logger
}

func NewMemberService(repo memberDomain.MemberRepository, teams memberDomain.TeamRepository, cache sharedCache.Cache, log *zap.Logger) *MemberService {
	return &MemberService{
		repo:  repo,
		teams: teams,
		cache: cache,
		log:   log,
	}
}

// MemberPatch describe una actualización parcial. Los campos ausentes no cambian.
type MemberPatch struct {
	Username  sharedDomain.Optional[string]    `json:"username"`
	Age       sharedDomain.Optional[int]       `json:"age"`
	TeamID    sharedDomain.Optional[uuid.UUID] `json:"team_id"`
	LeaveTeam bool                             `json:"leave_team"`
}

// AboveAverageResult es la respuesta de SearchAboveAverageAge.
type AboveAverageResult struct {
	AverageAge float64                       `json:"average_age"`
	Members    []memberDomain.MemberTeamView `json:"members"`
}

// CreateMember crea el miembro y su evento outbox. Sin teamID el miembro queda sin equipo.
func (s *MemberService) CreateMember(ctx context.Context, username string, age int, teamID sharedDomain.Optional[uuid.UUID]) (*memberDomain.Member, error) {
	var team *memberDomain.Team
	if id, ok := teamID.Get(); ok {
		t, err := s.teams.GetByID(ctx, id)
		if err != nil {
			return nil, err
		}
		team = t
	}

	member, err := memberDomain.NewMember(username, age, team)
	if err != nil {
		return nil, err
	}

	if err := s.repo.Create(ctx, member, memberDomain.NewMemberCreatedEvent(member)); err != nil {
		if !errors.Is(err, memberDomain.ErrMemberAlreadyExists) {
			s.log.Error("Failed to create member", zap.String("username", member.Username), zap.Error(err))
		}
		return nil, err
	}

	sharedCache.CacheSet(ctx, s.cache, memberDomain.CacheKeyByID(member.ID), member, memberCacheTTLSecs, s.log)
	return member, nil
}

// GetMember usa cache-aside; el repositorio se reintenta salvo que el miembro no exista.
func (s *MemberService) GetMember(ctx context.Context, id uuid.UUID) (*memberDomain.Member, error) {
	if s.cache != nil {
		var m memberDomain.Member
		if hit, _ := s.cache.Get(ctx, memberDomain.CacheKeyByID(id), &m); hit {
			return &m, nil
		}
	}

	var member *memberDomain.Member
	err := sharedUtils.RetryIf(ctx, 3, 100*time.Millisecond, isTransient, func() error {
		var errRetry error
		member, errRetry = s.repo.GetByID(ctx, id)
		return errRetry
	})
	if err != nil {
		if errors.Is(err, memberDomain.ErrMemberNotFound) {
			s.log.Warn("Member not found", zap.String("member_id", id.String()))
		} else {
			s.log.Error("Failed to fetch member", zap.String("member_id", id.String()), zap.Error(err))
		}
		return nil, err
	}

	sharedCache.CacheSet(ctx, s.cache, memberDomain.CacheKeyByID(member.ID), member, memberCacheTTLSecs, s.log)
	return member, nil
}

// UpdateMember aplica el patch sobre el estado actual del repositorio.
func (s *MemberService) UpdateMember(ctx context.Context, id uuid.UUID, patch MemberPatch) (*memberDomain.Member, error) {
	member, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if v, ok := patch.Username.Get(); ok {
		member.Username = strings.TrimSpace(v)
	}
	if v, ok := patch.Age.Get(); ok {
		member.Age = v
	}
	switch {
	case patch.LeaveTeam:
		member.Team = nil
	case patch.TeamID.IsPresent():
		teamID, _ := patch.TeamID.Get()
		team, err := s.teams.GetByID(ctx, teamID)
		if err != nil {
			return nil, err
		}
		member.Team = team
	}

	if err := member.Validate(); err != nil {
		return nil, err
	}

	if err := s.repo.Update(ctx, member, memberDomain.NewMemberUpdatedEvent(member)); err != nil {
		return nil, err
	}

	sharedCache.CacheSet(ctx, s.cache, memberDomain.CacheKeyByID(member.ID), member, memberCacheTTLSecs, s.log)
	return member, nil
}

// DeleteMember elimina el miembro, crea el evento y limpia la caché.
func (s *MemberService) DeleteMember(ctx context.Context, id uuid.UUID) error {
	if err := s.repo.DeleteByID(ctx, id, memberDomain.NewMemberDeletedEvent(id)); err != nil {
		return err
	}

	sharedCache.CacheDelete(ctx, s.cache, memberDomain.CacheKeyByID(id), s.log)
	return nil
}

// SearchMembers compone los criterios presentes y delega el filtrado al repositorio.
func (s *MemberService) SearchMembers(ctx context.Context, cond memberDomain.MemberSearchCondition, page sharedQuery.OffsetPagination, sort sharedQuery.Sort) ([]memberDomain.MemberTeamView, error) {
	p := cond.ToPredicate()
	s.log.Debug("🔎 Buscando miembros", zap.Stringer("predicate", p))

	members, err := s.repo.Search(ctx, p, page.Normalize(), sort)
	if err != nil {
		return nil, err
	}
	return toViews(members), nil
}

// SearchAboveAverageAge devuelve los miembros que cumplen cond y cuya edad es >= la media
// de los miembros que cumplen cond.
func (s *MemberService) SearchAboveAverageAge(ctx context.Context, cond memberDomain.MemberSearchCondition, page sharedQuery.OffsetPagination, sort sharedQuery.Sort) (AboveAverageResult, error) {
	base := cond.ToPredicate()

	avg, ok, err := s.repo.AverageAge(ctx, base)
	if err != nil {
		return AboveAverageResult{}, err
	}
	if !ok {
		return AboveAverageResult{Members: []memberDomain.MemberTeamView{}}, nil
	}

	p := sharedDomain.Compose(base, memberDomain.AgeGoeAverage(avg))
	members, err := s.repo.Search(ctx, p, page.Normalize(), sort)
	if err != nil {
		return AboveAverageResult{}, err
	}
	return AboveAverageResult{AverageAge: avg, Members: toViews(members)}, nil
}

func toViews(members []*memberDomain.Member) []memberDomain.MemberTeamView {
	views := make([]memberDomain.MemberTeamView, 0, len(members))
	for _, m := range members {
		views = append(views, memberDomain.NewMemberTeamView(m))
	}
	return views
}

// isTransient descarta los errores de dominio, que no cambian al reintentar.
func isTransient(err error) bool {
	return !errors.Is(err, memberDomain.ErrMemberNotFound) &&
		!errors.Is(err, memberDomain.ErrTeamNotFound) &&
		!errors.Is(err, context.Canceled) &&
		!errors.Is(err, context.DeadlineExceeded)
}
