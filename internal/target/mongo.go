package target

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"datasync/internal/constants"
	"datasync/internal/integration"
	"datasync/pkg/metrics"
)

// MongoStore is a Store backed by one MongoDB collection.
type MongoStore struct {
	collection *mongo.Collection
}

// NewMongoStore creates a store for collection c.
func NewMongoStore(db *mongo.Database, c integration.TargetCollection) *MongoStore {
	return &MongoStore{collection: db.Collection(string(c))}
}

// NewMongoRegistry returns a store for every supported target collection.
func NewMongoRegistry(db *mongo.Database) Registry {
	return Registry{
		integration.CollectionProjects: NewMongoStore(db, integration.CollectionProjects),
		integration.CollectionUsers:    NewMongoStore(db, integration.CollectionUsers),
		integration.CollectionTeams:    NewMongoStore(db, integration.CollectionTeams),
	}
}

func (s *MongoStore) observe(op string, start time.Time, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	metrics.ObserveDatabaseQuery(constants.ServiceName, s.collection.Name(), op, status, time.Since(start))
}

// Count returns the number of documents in the collection.
func (s *MongoStore) Count(ctx context.Context) (_ int, err error) {
	start := time.Now()
	defer func() { s.observe("count", start, err) }()

	count, err := s.collection.CountDocuments(ctx, bson.M{})
	if err != nil {
		return 0, fmt.Errorf("failed to count %s: %w", s.collection.Name(), err)
	}
	return int(count), nil
}

// FindByKey matches the key against the value and its textual and numeric
// forms so a view returning "42" finds an entity stored with 42.
func (s *MongoStore) FindByKey(ctx context.Context, field string, value any) (_ *Entity, err error) {
	start := time.Now()
	defer func() { s.observe("find", start, err) }()

	filter := bson.M{field: bson.M{"$in": KeyCandidates(value)}}

	var doc bson.M
	err = s.collection.FindOne(ctx, filter).Decode(&doc)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find %s by %s: %w", s.collection.Name(), field, err)
	}

	id := doc["_id"]
	delete(doc, "_id")
	return &Entity{ID: id, Fields: doc}, nil
}

// Insert creates a document with a generated id.
func (s *MongoStore) Insert(ctx context.Context, fields map[string]any) (_ any, err error) {
	start := time.Now()
	defer func() { s.observe("insert", start, err) }()

	now := time.Now().UTC()
	doc := bson.M{"_id": uuid.NewString(), "createdAt": now, "updatedAt": now}
	for k, v := range fields {
		doc[k] = v
	}

	if _, err = s.collection.InsertOne(ctx, doc); err != nil {
		return nil, fmt.Errorf("failed to insert into %s: %w", s.collection.Name(), err)
	}
	return doc["_id"], nil
}

// Update sets the given fields on the document with id.
func (s *MongoStore) Update(ctx context.Context, id any, set map[string]any) (err error) {
	start := time.Now()
	defer func() { s.observe("update", start, err) }()

	fields := bson.M{"updatedAt": time.Now().UTC()}
	for k, v := range set {
		fields[k] = v
	}

	result, err := s.collection.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": fields})
	if err != nil {
		return fmt.Errorf("failed to update %s: %w", s.collection.Name(), err)
	}
	if result.MatchedCount == 0 {
		return fmt.Errorf("failed to update %s: entity %v no longer exists", s.collection.Name(), id)
	}
	return nil
}

type mongoOwnerResolver struct {
	users *mongo.Collection
	role  string
}

// NewMongoOwnerResolver looks up owners among users with adminRole.
func NewMongoOwnerResolver(db *mongo.Database, adminRole string) OwnerResolver {
	return &mongoOwnerResolver{
		users: db.Collection(string(integration.CollectionUsers)),
		role:  adminRole,
	}
}

func (r *mongoOwnerResolver) FirstActiveAdmin(ctx context.Context) (string, error) {
	opts := options.FindOne().
		SetSort(bson.D{{Key: "createdAt", Value: 1}}).
		SetProjection(bson.M{"_id": 1})

	var doc bson.M
	err := r.users.FindOne(ctx, bson.M{"role": r.role, "active": true}, opts).Decode(&doc)
	if err == mongo.ErrNoDocuments {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to find active admin: %w", err)
	}
	if oid, ok := doc["_id"].(primitive.ObjectID); ok {
		return oid.Hex(), nil
	}
	return fmt.Sprint(doc["_id"]), nil
}
