package migrations

import (
	"context"
	"fmt"
	"strings"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"datasync/internal/constants"
	"datasync/internal/integration"
)

// collectionIndexes lists the indexes owned by this service. The unique
// indexes are what surface duplicate-key failures during a run.
var collectionIndexes = map[string][]mongo.IndexModel{
	constants.IntegrationsCollection: {
		{
			Keys:    bson.D{{Key: "name", Value: 1}},
			Options: options.Index().SetName("idx_integrations_name"),
		},
		{
			Keys:    bson.D{{Key: "active", Value: 1}, {Key: "target_collection", Value: 1}},
			Options: options.Index().SetName("idx_integrations_active_collection"),
		},
	},
	string(integration.CollectionUsers): {
		{
			Keys:    bson.D{{Key: "email", Value: 1}},
			Options: options.Index().SetName("idx_users_email").SetUnique(true).SetSparse(true),
		},
		{
			Keys:    bson.D{{Key: "role", Value: 1}, {Key: "active", Value: 1}, {Key: "createdAt", Value: 1}},
			Options: options.Index().SetName("idx_users_role_active_created"),
		},
	},
	string(integration.CollectionProjects): {
		{
			Keys:    bson.D{{Key: "projectId", Value: 1}},
			Options: options.Index().SetName("idx_projects_project_id").SetUnique(true).SetSparse(true),
		},
	},
	string(integration.CollectionTeams): {
		{
			Keys:    bson.D{{Key: "name", Value: 1}},
			Options: options.Index().SetName("idx_teams_name"),
		},
	},
}

func EnsureIndexes(ctx context.Context, db *mongo.Database) error {
	for name, indexes := range collectionIndexes {
		_, err := db.Collection(name).Indexes().CreateMany(ctx, indexes)
		if err != nil && !strings.Contains(err.Error(), "already exists") {
			return fmt.Errorf("failed to create indexes on %s: %w", name, err)
		}
	}
	return nil
}
