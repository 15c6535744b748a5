package integration

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"datasync/internal/constants"
)

// Repository persists integration configurations. Get returns nil, nil when
// the configuration does not exist.
type Repository interface {
	Get(ctx context.Context, id string) (*Configuration, error)
	List(ctx context.Context) ([]Configuration, error)
	AppendExecutionLog(ctx context.Context, id string, entry ExecutionLog) error
}

type mongoRepository struct {
	collection *mongo.Collection
}

func NewRepository(db *mongo.Database) Repository {
	return &mongoRepository{
		collection: db.Collection(constants.IntegrationsCollection),
	}
}

func (r *mongoRepository) Get(ctx context.Context, id string) (*Configuration, error) {
	var cfg Configuration
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&cfg)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get integration: %w", err)
	}
	return &cfg, nil
}

func (r *mongoRepository) List(ctx context.Context) ([]Configuration, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "name", Value: 1}}).
		SetProjection(bson.M{"history": bson.M{"$slice": 1}})

	cursor, err := r.collection.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list integrations: %w", err)
	}
	defer cursor.Close(ctx)

	var configs []Configuration
	if err := cursor.All(ctx, &configs); err != nil {
		return nil, fmt.Errorf("failed to decode integrations: %w", err)
	}
	return configs, nil
}

// AppendExecutionLog pushes entry to the front of the history and trims it to
// HistoryLimit in a single update.
func (r *mongoRepository) AppendExecutionLog(ctx context.Context, id string, entry ExecutionLog) error {
	update := bson.M{
		"$push": bson.M{
			"history": bson.M{
				"$each":     []ExecutionLog{entry},
				"$position": 0,
				"$slice":    HistoryLimit,
			},
		},
		"$set": bson.M{
			"last_run_at": entry.FinishedAt,
			"last_status": entry.Status,
			"updated_at":  time.Now(),
		},
	}

	result, err := r.collection.UpdateOne(ctx, bson.M{"_id": id}, update)
	if err != nil {
		return fmt.Errorf("failed to append execution log: %w", err)
	}
	if result.MatchedCount == 0 {
		return errNotFound(id)
	}
	return nil
}

func errNotFound(id string) error {
	return fmt.Errorf("integration %s not found", id)
}
