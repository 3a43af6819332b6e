package migrations

import (
	"context"
	"fmt"
	"strings"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"safetyrelay/internal/constants"
)

// EnsureMongoIndexes creates the indexes used by the audit log and the
// routing table. Existing indexes are left alone.
func EnsureMongoIndexes(ctx context.Context, db *mongo.Database, routesCollection string) error {
	if routesCollection == "" {
		routesCollection = constants.VehicleRoutesCollection
	}

	processed := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "event_id", Value: 1}},
			Options: options.Index().SetName("idx_processed_event_id").SetUnique(true),
		},
		{
			Keys:    bson.D{{Key: "decided_at", Value: -1}},
			Options: options.Index().SetName("idx_processed_decided_at"),
		},
		{
			Keys:    bson.D{{Key: "outcome", Value: 1}, {Key: "decided_at", Value: -1}},
			Options: options.Index().SetName("idx_processed_outcome_decided_at"),
		},
	}
	if err := createIndexes(ctx, db.Collection(constants.ProcessedEventsCollection), processed); err != nil {
		return err
	}

	routes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "vehicle_name", Value: 1}},
			Options: options.Index().SetName("idx_routes_vehicle_name").SetUnique(true),
		},
	}
	return createIndexes(ctx, db.Collection(routesCollection), routes)
}

func createIndexes(ctx context.Context, coll *mongo.Collection, models []mongo.IndexModel) error {
	_, err := coll.Indexes().CreateMany(ctx, models)
	if err != nil && !strings.Contains(err.Error(), "already exists") {
		return fmt.Errorf("failed to create indexes on %s: %w", coll.Name(), err)
	}
	return nil
}
