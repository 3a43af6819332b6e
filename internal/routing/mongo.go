package routing

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"safetyrelay/internal/constants"
	"safetyrelay/pkg/models"
)

type MongoStore struct {
	collection *mongo.Collection
}

func NewMongoStore(db *mongo.Database, collection string) *MongoStore {
	if collection == "" {
		collection = constants.VehicleRoutesCollection
	}
	return &MongoStore{collection: db.Collection(collection)}
}

// caseless matches vehicle names regardless of case.
var caseless = &options.Collation{Locale: "en", Strength: 2}

func (s *MongoStore) FindByVehicleName(ctx context.Context, name string) (*models.Destination, error) {
	filter := bson.M{"vehicle_name": strings.TrimSpace(name)}
	return s.findOne(ctx, filter, options.FindOne().SetCollation(caseless))
}

func (s *MongoStore) FindByID(ctx context.Context, chatID int64) (*models.Destination, error) {
	return s.findOne(ctx, bson.M{"chat_id": chatID}, options.FindOne())
}

func (s *MongoStore) findOne(ctx context.Context, filter bson.M, opts *options.FindOneOptions) (*models.Destination, error) {
	var dest models.Destination
	err := s.collection.FindOne(ctx, filter, opts).Decode(&dest)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find route: %w", err)
	}
	return &dest, nil
}

// Upsert stores a route keyed by vehicle name.
func (s *MongoStore) Upsert(ctx context.Context, dest models.Destination) error {
	_, err := s.collection.UpdateOne(ctx,
		bson.M{"vehicle_name": dest.VehicleName},
		bson.M{"$set": dest},
		options.Update().SetUpsert(true).SetCollation(caseless),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert route: %w", err)
	}
	return nil
}
