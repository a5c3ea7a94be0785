package mocks

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	memberDomain "github.com/davicafu/querylab/internal/member/domain"
	sharedDomain "github.com/davicafu/querylab/internal/shared/domain"
	"github.com/davicafu/querylab/internal/shared/infra/platform/db/sqlpred"
	sharedQuery "github.com/davicafu/querylab/internal/shared/infra/platform/query"
)

// ------------------- Members -------------------

// InMemoryMemberRepo simula MemberRepository con outbox incluido.
// Filtra con el evaluador en memoria de los predicados.
type InMemoryMemberRepo struct {
	Members map[uuid.UUID]*memberDomain.Member
	Outbox  []sharedDomain.OutboxEvent
	order   []uuid.UUID
	mu      sync.Mutex
}

func NewInMemoryMemberRepo() *InMemoryMemberRepo {
	return &InMemoryMemberRepo{
		Members: make(map[uuid.UUID]*memberDomain.Member),
		Outbox:  []sharedDomain.OutboxEvent{},
	}
}

func cloneMember(m *memberDomain.Member) *memberDomain.Member {
	c := *m
	if m.Team != nil {
		t := *m.Team
		c.Team = &t
	}
	return &c
}

func (r *InMemoryMemberRepo) Create(ctx context.Context, m *memberDomain.Member, evt sharedDomain.OutboxEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.Members[m.ID]; ok {
		return memberDomain.ErrMemberAlreadyExists
	}
	for _, existing := range r.Members {
		if existing.Username == m.Username {
			return memberDomain.ErrMemberAlreadyExists
		}
	}
	r.Members[m.ID] = cloneMember(m)
	r.order = append(r.order, m.ID)
	r.Outbox = append(r.Outbox, evt)
	return nil
}

func (r *InMemoryMemberRepo) GetByID(ctx context.Context, id uuid.UUID) (*memberDomain.Member, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.Members[id]
	if !ok {
		return nil, memberDomain.ErrMemberNotFound
	}
	return cloneMember(m), nil
}

func (r *InMemoryMemberRepo) Update(ctx context.Context, m *memberDomain.Member, evt sharedDomain.OutboxEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.Members[m.ID]; !ok {
		return memberDomain.ErrMemberNotFound
	}
	r.Members[m.ID] = cloneMember(m)
	r.Outbox = append(r.Outbox, evt)
	return nil
}

func (r *InMemoryMemberRepo) DeleteByID(ctx context.Context, id uuid.UUID, evt sharedDomain.OutboxEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.Members[id]; !ok {
		return memberDomain.ErrMemberNotFound
	}
	delete(r.Members, id)
	for i, oid := range r.order {
		if oid == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	r.Outbox = append(r.Outbox, evt)
	return nil
}

// all devuelve los miembros en orden de inserción. Llamar con el lock tomado.
func (r *InMemoryMemberRepo) all() []*memberDomain.Member {
	list := make([]*memberDomain.Member, 0, len(r.order))
	for _, id := range r.order {
		list = append(list, cloneMember(r.Members[id]))
	}
	return list
}

func (r *InMemoryMemberRepo) Search(ctx context.Context, p sharedDomain.Predicate, page sharedQuery.OffsetPagination, s sharedQuery.Sort) ([]*memberDomain.Member, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	list := sharedDomain.Filter(r.all(), p)

	if err := sortMembers(list, s); err != nil {
		return nil, err
	}

	page = page.Normalize()
	start := page.Offset
	if start > len(list) {
		return []*memberDomain.Member{}, nil
	}
	end := start + page.Limit
	if end > len(list) {
		end = len(list)
	}
	return list[start:end], nil
}

func (r *InMemoryMemberRepo) AverageAge(ctx context.Context, p sharedDomain.Predicate) (float64, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	list := sharedDomain.Filter(r.all(), p)
	if len(list) == 0 {
		return 0, false, nil
	}
	total := 0
	for _, m := range list {
		total += m.Age
	}
	return float64(total) / float64(len(list)), true, nil
}

func sortMembers(list []*memberDomain.Member, s sharedQuery.Sort) error {
	var less func(a, b *memberDomain.Member) bool
	switch s.Field {
	case "", memberDomain.FieldCreatedAt:
		// orden de inserción
		less = func(a, b *memberDomain.Member) bool { return false }
	case memberDomain.FieldUsername:
		less = func(a, b *memberDomain.Member) bool { return a.Username < b.Username }
	case memberDomain.FieldAge:
		less = func(a, b *memberDomain.Member) bool { return a.Age < b.Age }
	case memberDomain.FieldTeamName:
		less = func(a, b *memberDomain.Member) bool { return teamName(a) < teamName(b) }
	case memberDomain.FieldID:
		less = func(a, b *memberDomain.Member) bool { return a.ID.String() < b.ID.String() }
	default:
		return fmt.Errorf("%w: %s", sqlpred.ErrUnsupportedField, s.Field)
	}

	if s.Desc {
		asc := less
		less = func(a, b *memberDomain.Member) bool { return asc(b, a) }
		if s.Field == "" || s.Field == memberDomain.FieldCreatedAt {
			for i, j := 0, len(list)-1; i < j; i, j = i+1, j-1 {
				list[i], list[j] = list[j], list[i]
			}
			return nil
		}
	}
	sort.SliceStable(list, func(i, j int) bool { return less(list[i], list[j]) })
	return nil
}

func teamName(m *memberDomain.Member) string {
	if m.Team == nil {
		return ""
	}
	return m.Team.Name
}

// ------------------- Teams -------------------

// InMemoryTeamRepo simula TeamRepository con outbox incluido.
type InMemoryTeamRepo struct {
	Teams  map[uuid.UUID]*memberDomain.Team
	Outbox []sharedDomain.OutboxEvent
	order  []uuid.UUID
	mu     sync.Mutex
}

func NewInMemoryTeamRepo() *InMemoryTeamRepo {
	return &InMemoryTeamRepo{
		Teams:  make(map[uuid.UUID]*memberDomain.Team),
		Outbox: []sharedDomain.OutboxEvent{},
	}
}

func (r *InMemoryTeamRepo) Create(ctx context.Context, t *memberDomain.Team, evt sharedDomain.OutboxEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.Teams {
		if existing.ID == t.ID || existing.Name == t.Name {
			return memberDomain.ErrTeamAlreadyExists
		}
	}
	c := *t
	r.Teams[t.ID] = &c
	r.order = append(r.order, t.ID)
	r.Outbox = append(r.Outbox, evt)
	return nil
}

func (r *InMemoryTeamRepo) GetByID(ctx context.Context, id uuid.UUID) (*memberDomain.Team, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.Teams[id]
	if !ok {
		return nil, memberDomain.ErrTeamNotFound
	}
	c := *t
	return &c, nil
}

func (r *InMemoryTeamRepo) List(ctx context.Context, page sharedQuery.OffsetPagination) ([]*memberDomain.Team, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	page = page.Normalize()
	list := make([]*memberDomain.Team, 0, len(r.order))
	for _, id := range r.order {
		c := *r.Teams[id]
		list = append(list, &c)
	}
	if page.Offset > len(list) {
		return []*memberDomain.Team{}, nil
	}
	end := page.Offset + page.Limit
	if end > len(list) {
		end = len(list)
	}
	return list[page.Offset:end], nil
}

// ------------------- Analytics -------------------

// MockAnalytics simula el repositorio analítico.
type MockAnalytics struct {
	mock.Mock
}

func (m *MockAnalytics) LogBatch(ctx context.Context, members []*memberDomain.Member) error {
	args := m.Called(ctx, members)
	return args.Error(0)
}

func (m *MockAnalytics) TeamAgeStats(ctx context.Context) ([]memberDomain.TeamAgeStats, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]memberDomain.TeamAgeStats), args.Error(1)
}

// Verificación estática
var (
	_ memberDomain.MemberRepository          = (*InMemoryMemberRepo)(nil)
	_ memberDomain.TeamRepository            = (*InMemoryTeamRepo)(nil)
	_ memberDomain.MemberAnalyticsRepository = (*MockAnalytics)(nil)
)
