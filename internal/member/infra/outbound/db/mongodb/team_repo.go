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

	memberDomain "github.com/davicafu/querylab/internal/member/domain"
	sharedDomain "github.com/davicafu/querylab/internal/shared/domain"
	sharedMongo "github.com/davicafu/querylab/internal/shared/infra/platform/db/mongodb"
	sharedQuery "github.com/davicafu/querylab/internal/shared/infra/platform/query"
)

type TeamRepoMongoDB struct {
	client     *mongo.Client
	teamsColl  *mongo.Collection
	outboxColl *mongo.Collection
}

func NewTeamRepoMongoDB(client *mongo.Client, dbName string) *TeamRepoMongoDB {
	db := client.Database(dbName)
	return &TeamRepoMongoDB{
		client:     client,
		teamsColl:  db.Collection(TeamsCollection),
		outboxColl: db.Collection(sharedMongo.OutboxCollection),
	}
}

type mongoTeam struct {
	ID        string    `bson:"_id"`
	Name      string    `bson:"name"`
	CreatedAt time.Time `bson:"createdAt"`
}

func (r *TeamRepoMongoDB) Create(ctx context.Context, t *memberDomain.Team, evt sharedDomain.OutboxEvent) error {
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
		mt := mongoTeam{ID: t.ID.String(), Name: t.Name, CreatedAt: t.CreatedAt}
		if _, err := r.teamsColl.InsertOne(sessCtx, mt); err != nil {
			if mongo.IsDuplicateKeyError(err) {
				return nil, memberDomain.ErrTeamAlreadyExists
			}
			return nil, err
		}
		if _, err := r.outboxColl.InsertOne(sessCtx, doc); err != nil {
			return nil, err
		}
		return nil, nil
	})
	return err
}

func (r *TeamRepoMongoDB) GetByID(ctx context.Context, id uuid.UUID) (*memberDomain.Team, error) {
	var mt mongoTeam
	if err := r.teamsColl.FindOne(ctx, bson.M{"_id": id.String()}).Decode(&mt); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, memberDomain.ErrTeamNotFound
		}
		return nil, err
	}
	return fromMongoTeam(&mt)
}

func (r *TeamRepoMongoDB) List(ctx context.Context, page sharedQuery.OffsetPagination) ([]*memberDomain.Team, error) {
	page = page.Normalize()
	opts := options.Find().
		SetSort(bson.D{{Key: "createdAt", Value: 1}, {Key: "_id", Value: 1}}).
		SetSkip(int64(page.Offset)).
		SetLimit(int64(page.Limit))

	cursor, err := r.teamsColl.Find(ctx, bson.D{}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	teams := []*memberDomain.Team{}
	for cursor.Next(ctx) {
		var mt mongoTeam
		if err := cursor.Decode(&mt); err != nil {
			return nil, err
		}
		t, err := fromMongoTeam(&mt)
		if err != nil {
			return nil, err
		}
		teams = append(teams, t)
	}
	return teams, cursor.Err()
}

func fromMongoTeam(mt *mongoTeam) (*memberDomain.Team, error) {
	id, err := uuid.Parse(mt.ID)
	if err != nil {
		return nil, fmt.Errorf("invalid UUID in team document: %w", err)
	}
	return &memberDomain.Team{ID: id, Name: mt.Name, CreatedAt: mt.CreatedAt.UTC()}, nil
}

var _ memberDomain.TeamRepository = (*TeamRepoMongoDB)(nil)
