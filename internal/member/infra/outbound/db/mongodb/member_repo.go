package mongodb

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	memberDomain "github.com/davicafu/querylab/internal/member/domain"
	sharedDomain "github.com/davicafu/querylab/internal/shared/domain"
	sharedMongo "github.com/davicafu/querylab/internal/shared/infra/platform/db/mongodb"
	"github.com/davicafu/querylab/internal/shared/infra/platform/db/mongofilter"
	sharedQuery "github.com/davicafu/querylab/internal/shared/infra/platform/query"
)

const (
	MembersCollection = "members"
	TeamsCollection   = "teams"
)

// memberFields mapea los campos lógicos a rutas del documento member.
var memberFields = map[string]string{
	memberDomain.FieldID:        "_id",
	memberDomain.FieldUsername:  "username",
	memberDomain.FieldAge:       "age",
	memberDomain.FieldCreatedAt: "createdAt",
	memberDomain.FieldTeamID:    "team.id",
	memberDomain.FieldTeamName:  "team.name",
}

// MemberRepoMongoDB implementa MemberRepository. El equipo se guarda embebido como snapshot.
type MemberRepoMongoDB struct {
	client      *mongo.Client
	membersColl *mongo.Collection
	outboxColl  *mongo.Collection
}

// NewMemberRepoMongoDB comprueba la conexión antes de devolver el repositorio.
func NewMemberRepoMongoDB(ctx context.Context, client *mongo.Client, dbName string) (*MemberRepoMongoDB, error) {
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		return nil, fmt.Errorf("could not ping mongoDB: %w", err)
	}

	db := client.Database(dbName)
	return &MemberRepoMongoDB{
		client:      client,
		membersColl: db.Collection(MembersCollection),
		outboxColl:  db.Collection(sharedMongo.OutboxCollection),
	}, nil
}

// EnsureIndexes crea los índices únicos de username y nombre de equipo.
func EnsureIndexes(ctx context.Context, db *mongo.Database) error {
	if _, err := db.Collection(MembersCollection).Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "username", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "team.id", Value: 1}}},
	}); err != nil {
		return fmt.Errorf("members indexes: %w", err)
	}
	if _, err := db.Collection(TeamsCollection).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "name", Value: 1}}, Options: options.Index().SetUnique(true),
	}); err != nil {
		return fmt.Errorf("teams indexes: %w", err)
	}
	return nil
}

// --- Structs de BSON para el mapeo ---

type mongoTeamRef struct {
	ID   string `bson:"id"`
	Name string `bson:"name"`
}

type mongoMember struct {
	ID        string        `bson:"_id"`
	Username  string        `bson:"username"`
	Age       int           `bson:"age"`
	Team      *mongoTeamRef `bson:"team,omitempty"`
	CreatedAt time.Time     `bson:"createdAt"`
}

// --- CRUD Transaccional ---

// withOutbox ejecuta fn y el insert del evento en la misma transacción.
func (r *MemberRepoMongoDB) withOutbox(ctx context.Context, evt sharedDomain.OutboxEvent, fn func(sessCtx mongo.SessionContext) error) error {
	doc, err := sharedMongo.ToOutboxDocument(evt)
	if err != nil {
		return err
	}

	session, err := r.client.StartSession()
	if err != nil {
		return err
	}
	defer session.EndSession(ctx)

	_, err = session.WithTransaction(ctx, func(sessCtx mongo.SessionContext) (interface{}, error) {
		if err := fn(sessCtx); err != nil {
			return nil, err
		}
		if _, err := r.outboxColl.InsertOne(sessCtx, doc); err != nil {
			return nil, err
		}
		return nil, nil
	})
	return err
}

func (r *MemberRepoMongoDB) Create(ctx context.Context, m *memberDomain.Member, evt sharedDomain.OutboxEvent) error {
	return r.withOutbox(ctx, evt, func(sessCtx mongo.SessionContext) error {
		if _, err := r.membersColl.InsertOne(sessCtx, toMongoMember(m)); err != nil {
			if mongo.IsDuplicateKeyError(err) {
				return memberDomain.ErrMemberAlreadyExists
			}
			return err
		}
		return nil
	})
}

func (r *MemberRepoMongoDB) Update(ctx context.Context, m *memberDomain.Member, evt sharedDomain.OutboxEvent) error {
	return r.withOutbox(ctx, evt, func(sessCtx mongo.SessionContext) error {
		doc := toMongoMember(m)
		res, err := r.membersColl.ReplaceOne(sessCtx, bson.M{"_id": doc.ID}, doc)
		if err != nil {
			if mongo.IsDuplicateKeyError(err) {
				return memberDomain.ErrMemberAlreadyExists
			}
			return err
		}
		if res.MatchedCount == 0 {
			return memberDomain.ErrMemberNotFound
		}
		return nil
	})
}

func (r *MemberRepoMongoDB) DeleteByID(ctx context.Context, id uuid.UUID, evt sharedDomain.OutboxEvent) error {
	return r.withOutbox(ctx, evt, func(sessCtx mongo.SessionContext) error {
		res, err := r.membersColl.DeleteOne(sessCtx, bson.M{"_id": id.String()})
		if err != nil {
			return err
		}
		if res.DeletedCount == 0 {
			return memberDomain.ErrMemberNotFound
		}
		return nil
	})
}

// --- Lectura ---

func (r *MemberRepoMongoDB) GetByID(ctx context.Context, id uuid.UUID) (*memberDomain.Member, error) {
	var mm mongoMember
	if err := r.membersColl.FindOne(ctx, bson.M{"_id": id.String()}).Decode(&mm); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, memberDomain.ErrMemberNotFound
		}
		return nil, err
	}
	return fromMongoMember(&mm)
}

func (r *MemberRepoMongoDB) Search(ctx context.Context, p sharedDomain.Predicate, page sharedQuery.OffsetPagination, s sharedQuery.Sort) ([]*memberDomain.Member, error) {
	filter, err := mongofilter.ToFilter(p, memberFields)
	if err != nil {
		return nil, err
	}

	sortField := s.Field
	if sortField == "" {
		sortField = memberDomain.FieldCreatedAt
	}
	path, ok := memberFields[sortField]
	if !ok {
		return nil, fmt.Errorf("%w: %s", mongofilter.ErrUnsupportedField, sortField)
	}
	dir := 1
	if s.Desc {
		dir = -1
	}
	sortDoc := bson.D{{Key: path, Value: dir}}
	if path != "_id" {
		sortDoc = append(sortDoc, bson.E{Key: "_id", Value: dir})
	}

	page = page.Normalize()
	opts := options.Find().SetSort(sortDoc).SetSkip(int64(page.Offset)).SetLimit(int64(page.Limit))

	cursor, err := r.membersColl.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	members := []*memberDomain.Member{}
	for cursor.Next(ctx) {
		var mm mongoMember
		if err := cursor.Decode(&mm); err != nil {
			return nil, err
		}
		m, err := fromMongoMember(&mm)
		if err != nil {
			return nil, err
		}
		members = append(members, m)
	}
	return members, cursor.Err()
}

// AverageAge usa una agregación $match + $group sobre el mismo filtro que Search.
func (r *MemberRepoMongoDB) AverageAge(ctx context.Context, p sharedDomain.Predicate) (float64, bool, error) {
	filter, err := mongofilter.ToFilter(p, memberFields)
	if err != nil {
		return 0, false, err
	}

	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: filter}},
		{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: nil},
			{Key: "avg", Value: bson.D{{Key: "$avg", Value: "$age"}}},
		}}},
	}

	cursor, err := r.membersColl.Aggregate(ctx, pipeline)
	if err != nil {
		return 0, false, err
	}
	defer cursor.Close(ctx)

	if !cursor.Next(ctx) {
		return 0, false, cursor.Err()
	}
	var result struct {
		Avg float64 `bson:"avg"`
	}
	if err := cursor.Decode(&result); err != nil {
		return 0, false, err
	}
	return result.Avg, true, nil
}

// --- Helpers de Mapeo ---

func toMongoMember(m *memberDomain.Member) *mongoMember {
	mm := &mongoMember{ID: m.ID.String(), Username: m.Username, Age: m.Age, CreatedAt: m.CreatedAt}
	if m.Team != nil {
		mm.Team = &mongoTeamRef{ID: m.Team.ID.String(), Name: m.Team.Name}
	}
	return mm
}

func fromMongoMember(mm *mongoMember) (*memberDomain.Member, error) {
	id, err := uuid.Parse(mm.ID)
	if err != nil {
		return nil, fmt.Errorf("invalid UUID in member document: %w", err)
	}
	m := &memberDomain.Member{ID: id, Username: mm.Username, Age: mm.Age, CreatedAt: mm.CreatedAt.UTC()}
	if mm.Team != nil {
		teamID, err := uuid.Parse(mm.Team.ID)
		if err != nil {
			return nil, fmt.Errorf("invalid team UUID in member document: %w", err)
		}
		m.Team = &memberDomain.Team{ID: teamID, Name: mm.Team.Name}
	}
	return m, nil
}

var _ memberDomain.MemberRepository = (*MemberRepoMongoDB)(nil)
