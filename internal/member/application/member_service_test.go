package application

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	memberDomain "github.com/davicafu/querylab/internal/member/domain"
	sharedDomain "github.com/davicafu/querylab/internal/shared/domain"
	sharedQuery "github.com/davicafu/querylab/internal/shared/infra/platform/query"
	"github.com/davicafu/querylab/tests/mocks"
)

type fixture struct {
	members *mocks.InMemoryMemberRepo
	teams   *mocks.InMemoryTeamRepo
	cache   *mocks.DummyCache
	service *MemberService
	teamA   *memberDomain.Team
	teamB   *memberDomain.Team
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		members: mocks.NewInMemoryMemberRepo(),
		teams:   mocks.NewInMemoryTeamRepo(),
		cache:   mocks.NewDummyCache(),
	}
	f.service = NewMemberService(f.members, f.teams, f.cache, zap.NewNop())

	ctx := context.Background()
	teamService := NewTeamService(f.teams, nil, nil, zap.NewNop())
	var err error
	f.teamA, err = teamService.CreateTeam(ctx, "teamA")
	require.NoError(t, err)
	f.teamB, err = teamService.CreateTeam(ctx, "teamB")
	require.NoError(t, err)
	return f
}

// seed crea member1..member4 (10, 20, 30, 40) en teamA y teamB.
func (f *fixture) seed(t *testing.T) {
	t.Helper()
	ctx := context.Background()
	for _, m := range []struct {
		name string
		age  int
		team uuid.UUID
	}{
		{"member1", 10, f.teamA.ID},
		{"member2", 20, f.teamA.ID},
		{"member3", 30, f.teamB.ID},
		{"member4", 40, f.teamB.ID},
	} {
		_, err := f.service.CreateMember(ctx, m.name, m.age, sharedDomain.Some(m.team))
		require.NoError(t, err)
	}
}

func names(views []memberDomain.MemberTeamView) []string {
	out := make([]string, 0, len(views))
	for _, v := range views {
		out = append(out, v.Username)
	}
	return out
}

func TestCreateMember_Success(t *testing.T) {
	f := newFixture(t)

	member, err := f.service.CreateMember(context.Background(), "member1", 10, sharedDomain.Some(f.teamA.ID))
	require.NoError(t, err)
	assert.Equal(t, "member1", member.Username)
	require.NotNil(t, member.Team)
	assert.Equal(t, "teamA", member.Team.Name)

	// ✅ Verificar que se creó un evento Outbox
	require.Len(t, f.members.Outbox, 1)
	assert.Equal(t, memberDomain.MemberCreated, f.members.Outbox[0].EventType)
	assert.Equal(t, member.ID.String(), f.members.Outbox[0].AggregateID)
}

func TestCreateMember_WithoutTeam(t *testing.T) {
	f := newFixture(t)

	member, err := f.service.CreateMember(context.Background(), "loner", 0, sharedDomain.None[uuid.UUID]())
	require.NoError(t, err)
	assert.Nil(t, member.Team)
}

func TestCreateMember_Errors(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	unknown := uuid.New()
	_, err := f.service.CreateMember(ctx, "member1", 10, sharedDomain.Some(unknown))
	assert.ErrorIs(t, err, memberDomain.ErrTeamNotFound)

	_, err = f.service.CreateMember(ctx, "", 10, sharedDomain.None[uuid.UUID]())
	assert.ErrorIs(t, err, memberDomain.ErrInvalidMember)

	_, err = f.service.CreateMember(ctx, "member1", 10, sharedDomain.None[uuid.UUID]())
	require.NoError(t, err)
	_, err = f.service.CreateMember(ctx, "member1", 11, sharedDomain.None[uuid.UUID]())
	assert.ErrorIs(t, err, memberDomain.ErrMemberAlreadyExists)
}

func TestGetMember(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.service.GetMember(ctx, uuid.New())
	assert.ErrorIs(t, err, memberDomain.ErrMemberNotFound)

	created, err := f.service.CreateMember(ctx, "member1", 10, sharedDomain.Some(f.teamA.ID))
	require.NoError(t, err)

	got, err := f.service.GetMember(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, created.ID, got.ID)
	assert.Equal(t, "teamA", got.Team.Name)
}

func TestGetMember_CacheHit(t *testing.T) {
	f := newFixture(t)
	cached := &memberDomain.Member{ID: uuid.New(), Username: "cached", Age: 5}
	require.NoError(t, f.cache.Set(context.Background(), memberDomain.CacheKeyByID(cached.ID), cached, 60))

	got, err := f.service.GetMember(context.Background(), cached.ID)
	require.NoError(t, err)
	assert.Equal(t, "cached", got.Username)
}

func TestUpdateMember(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	created, err := f.service.CreateMember(ctx, "member1", 10, sharedDomain.Some(f.teamA.ID))
	require.NoError(t, err)

	// Solo cambia la edad; username y equipo se mantienen.
	updated, err := f.service.UpdateMember(ctx, created.ID, MemberPatch{Age: sharedDomain.Some(11)})
	require.NoError(t, err)
	assert.Equal(t, 11, updated.Age)
	assert.Equal(t, "member1", updated.Username)
	assert.Equal(t, "teamA", updated.Team.Name)

	updated, err = f.service.UpdateMember(ctx, created.ID, MemberPatch{TeamID: sharedDomain.Some(f.teamB.ID)})
	require.NoError(t, err)
	assert.Equal(t, "teamB", updated.Team.Name)

	updated, err = f.service.UpdateMember(ctx, created.ID, MemberPatch{LeaveTeam: true})
	require.NoError(t, err)
	assert.Nil(t, updated.Team)

	_, err = f.service.UpdateMember(ctx, created.ID, MemberPatch{Age: sharedDomain.Some(-3)})
	assert.ErrorIs(t, err, memberDomain.ErrInvalidMember)

	stored, err := f.members.GetByID(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, 11, stored.Age, "un patch inválido no se persiste")

	// ✅ create + 3 updates
	assert.Len(t, f.members.Outbox, 4)
	assert.Equal(t, memberDomain.MemberUpdated, f.members.Outbox[3].EventType)

	_, err = f.service.UpdateMember(ctx, uuid.New(), MemberPatch{})
	assert.ErrorIs(t, err, memberDomain.ErrMemberNotFound)
}

func TestDeleteMember(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	created, err := f.service.CreateMember(ctx, "member1", 10, sharedDomain.None[uuid.UUID]())
	require.NoError(t, err)

	require.NoError(t, f.service.DeleteMember(ctx, created.ID))
	assert.Equal(t, memberDomain.MemberDeleted, f.members.Outbox[1].EventType)

	_, err = f.members.GetByID(ctx, created.ID)
	assert.ErrorIs(t, err, memberDomain.ErrMemberNotFound)

	assert.ErrorIs(t, f.service.DeleteMember(ctx, created.ID), memberDomain.ErrMemberNotFound)
}

func TestDeleteMember_EvictsCacheBeforeReturning(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	created, err := f.service.CreateMember(ctx, "member1", 10, sharedDomain.None[uuid.UUID]())
	require.NoError(t, err)

	// GetMember deja el miembro en caché antes de volver.
	_, err = f.service.GetMember(ctx, created.ID)
	require.NoError(t, err)
	var cached memberDomain.Member
	hit, err := f.cache.Get(ctx, memberDomain.CacheKeyByID(created.ID), &cached)
	require.NoError(t, err)
	require.True(t, hit)
	assert.Equal(t, memberCacheTTLSecs, f.cache.TTL(memberDomain.CacheKeyByID(created.ID)))

	// Un contexto ya cancelado no impide limpiar la caché.
	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	require.NoError(t, f.service.DeleteMember(cancelled, created.ID))

	hit, err = f.cache.Get(ctx, memberDomain.CacheKeyByID(created.ID), &cached)
	require.NoError(t, err)
	assert.False(t, hit)

	_, err = f.service.GetMember(ctx, created.ID)
	assert.ErrorIs(t, err, memberDomain.ErrMemberNotFound)
}

func TestSearchMembers(t *testing.T) {
	f := newFixture(t)
	f.seed(t)
	ctx := context.Background()

	tests := []struct {
		name     string
		cond     memberDomain.MemberSearchCondition
		sort     sharedQuery.Sort
		expected []string
	}{
		{
			name:     "sin criterios",
			cond:     memberDomain.MemberSearchCondition{},
			expected: []string{"member1", "member2", "member3", "member4"},
		},
		{
			name: "username y edad",
			cond: memberDomain.MemberSearchCondition{
				Username: sharedDomain.Some("member1"),
				Age:      sharedDomain.Some(10),
			},
			expected: []string{"member1"},
		},
		{
			name:     "edad cero no coincide con nadie",
			cond:     memberDomain.MemberSearchCondition{Age: sharedDomain.Some(0)},
			expected: []string{},
		},
		{
			name:     "por equipo ordenado por edad desc",
			cond:     memberDomain.MemberSearchCondition{TeamName: sharedDomain.Some("teamB")},
			sort:     sharedQuery.Sort{Field: memberDomain.FieldAge, Desc: true},
			expected: []string{"member4", "member3"},
		},
		{
			name: "rango de edad",
			cond: memberDomain.MemberSearchCondition{
				AgeGoe: sharedDomain.Some(15),
				AgeLoe: sharedDomain.Some(35),
			},
			expected: []string{"member2", "member3"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			views, err := f.service.SearchMembers(ctx, tt.cond, sharedQuery.OffsetPagination{}, tt.sort)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, names(views))
		})
	}
}

func TestSearchMembers_ViewAndPagination(t *testing.T) {
	f := newFixture(t)
	f.seed(t)

	views, err := f.service.SearchMembers(context.Background(), memberDomain.MemberSearchCondition{},
		sharedQuery.OffsetPagination{Limit: 2, Offset: 1}, sharedQuery.Sort{})
	require.NoError(t, err)
	require.Len(t, views, 2)
	assert.Equal(t, "member2", views[0].Username)
	assert.Equal(t, "0~20", views[0].AgeGroup)
	assert.Equal(t, "teamA", views[0].TeamName)
	assert.Equal(t, "21~30", views[1].AgeGroup)
}

func TestSearchAboveAverageAge(t *testing.T) {
	f := newFixture(t)
	f.seed(t)
	ctx := context.Background()

	// Media global 25 => member3, member4.
	res, err := f.service.SearchAboveAverageAge(ctx, memberDomain.MemberSearchCondition{}, sharedQuery.OffsetPagination{}, sharedQuery.Sort{})
	require.NoError(t, err)
	assert.InDelta(t, 25.0, res.AverageAge, 0.0001)
	assert.Equal(t, []string{"member3", "member4"}, names(res.Members))

	// Dentro de teamA la media es 15 => member2.
	res, err = f.service.SearchAboveAverageAge(ctx,
		memberDomain.MemberSearchCondition{TeamName: sharedDomain.Some("teamA")},
		sharedQuery.OffsetPagination{}, sharedQuery.Sort{})
	require.NoError(t, err)
	assert.InDelta(t, 15.0, res.AverageAge, 0.0001)
	assert.Equal(t, []string{"member2"}, names(res.Members))

	// Sin coincidencias no hay media.
	res, err = f.service.SearchAboveAverageAge(ctx,
		memberDomain.MemberSearchCondition{Username: sharedDomain.Some("nadie")},
		sharedQuery.OffsetPagination{}, sharedQuery.Sort{})
	require.NoError(t, err)
	assert.Empty(t, res.Members)
	assert.Zero(t, res.AverageAge)
}

func TestSearchAboveAverageAge_FractionalAverage(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.service.CreateMember(ctx, "member25", 25, sharedDomain.None[uuid.UUID]())
	require.NoError(t, err)
	_, err = f.service.CreateMember(ctx, "member26", 26, sharedDomain.None[uuid.UUID]())
	require.NoError(t, err)

	// Media 25.5: 25 queda por debajo.
	res, err := f.service.SearchAboveAverageAge(ctx, memberDomain.MemberSearchCondition{}, sharedQuery.OffsetPagination{}, sharedQuery.Sort{})
	require.NoError(t, err)
	assert.InDelta(t, 25.5, res.AverageAge, 0.0001)
	assert.Equal(t, []string{"member26"}, names(res.Members))
}

func TestSearchMembers_UnsupportedSort(t *testing.T) {
	f := newFixture(t)
	_, err := f.service.SearchMembers(context.Background(), memberDomain.MemberSearchCondition{},
		sharedQuery.OffsetPagination{}, sharedQuery.Sort{Field: "password"})
	assert.Error(t, err)
}

// ---------------- Reintentos ----------------

type flakyRepo struct {
	*mocks.InMemoryMemberRepo
	failures int
	calls    int
}

func (r *flakyRepo) GetByID(ctx context.Context, id uuid.UUID) (*memberDomain.Member, error) {
	r.calls++
	if r.calls <= r.failures {
		return nil, errors.New("connection reset")
	}
	return r.InMemoryMemberRepo.GetByID(ctx, id)
}

func TestGetMember_RetriesTransientErrors(t *testing.T) {
	repo := &flakyRepo{InMemoryMemberRepo: mocks.NewInMemoryMemberRepo(), failures: 2}
	m := &memberDomain.Member{ID: uuid.New(), Username: "member1", Age: 10, CreatedAt: time.Now()}
	require.NoError(t, repo.Create(context.Background(), m, sharedDomain.OutboxEvent{}))

	service := NewMemberService(repo, mocks.NewInMemoryTeamRepo(), nil, zap.NewNop())
	got, err := service.GetMember(context.Background(), m.ID)
	require.NoError(t, err)
	assert.Equal(t, m.ID, got.ID)
	assert.Equal(t, 3, repo.calls)
}

func TestGetMember_NotFoundIsNotRetried(t *testing.T) {
	repo := &flakyRepo{InMemoryMemberRepo: mocks.NewInMemoryMemberRepo()}
	service := NewMemberService(repo, mocks.NewInMemoryTeamRepo(), nil, zap.NewNop())

	_, err := service.GetMember(context.Background(), uuid.New())
	assert.ErrorIs(t, err, memberDomain.ErrMemberNotFound)
	assert.Equal(t, 1, repo.calls)
}
