package ledger

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"safetyrelay/internal/constants"
	"safetyrelay/pkg/models"
)

type MongoProcessedRepository struct {
	collection *mongo.Collection
}

func NewMongoProcessedRepository(db *mongo.Database) *MongoProcessedRepository {
	return &MongoProcessedRepository{collection: db.Collection(constants.ProcessedEventsCollection)}
}

func (r *MongoProcessedRepository) IsProcessed(ctx context.Context, eventID string) (bool, error) {
	n, err := r.collection.CountDocuments(ctx, bson.M{"event_id": eventID}, options.Count().SetLimit(1))
	if err != nil {
		return false, fmt.Errorf("failed to check processed event: %w", err)
	}
	return n > 0, nil
}

// LogProcessed upserts by event id; the latest decision wins.
func (r *MongoProcessedRepository) LogProcessed(ctx context.Context, rec models.ProcessedRecord) error {
	_, err := r.collection.UpdateOne(ctx,
		bson.M{"event_id": rec.EventID},
		bson.M{"$set": rec},
		options.Update().SetUpsert(true),
	)
	if err != nil {
		return fmt.Errorf("failed to log processed event: %w", err)
	}
	return nil
}

func (r *MongoProcessedRepository) PurgeProcessedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := r.collection.DeleteMany(ctx, bson.M{"decided_at": bson.M{"$lt": cutoff.UTC()}})
	if err != nil {
		return 0, fmt.Errorf("failed to purge processed events: %w", err)
	}
	return res.DeletedCount, nil
}
