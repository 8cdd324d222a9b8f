// server/internal/store/load_store.go
package store

import (
	"context"
	"errors"
	"time"

	"github.com/freightbid/bidding-api/internal/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type MongoLoadStore struct {
	coll *mongo.Collection
}

func NewMongoLoadStore(db *mongo.Database) *MongoLoadStore {
	return &MongoLoadStore{coll: db.Collection("loads")}
}

func (s *MongoLoadStore) Insert(ctx context.Context, load *models.Load) error {
	now := time.Now()
	load.CreatedAt = now
	load.UpdatedAt = now
	if _, err := s.coll.InsertOne(ctx, load); err != nil {
		return models.NewStoreError(err)
	}
	return nil
}

func (s *MongoLoadStore) GetByLoadID(ctx context.Context, loadID string) (*models.Load, error) {
	var load models.Load
	err := s.coll.FindOne(ctx, bson.M{"loadID": loadID, "isActive": true}).Decode(&load)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, models.NewNotFoundError("load not found")
		}
		return nil, models.NewStoreError(err)
	}
	return &load, nil
}

func (s *MongoLoadStore) ListByShipper(ctx context.Context, shipperID string, statuses []models.LoadStatus) ([]models.Load, error) {
	filter := bson.M{"shipperID": shipperID, "isActive": true}
	if len(statuses) > 0 {
		filter["status"] = bson.M{"$in": statuses}
	}
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}})
	cursor, err := s.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, models.NewStoreError(err)
	}
	var loads []models.Load
	if err := cursor.All(ctx, &loads); err != nil {
		return nil, models.NewStoreError(err)
	}
	return loads, nil
}

func (s *MongoLoadStore) ListActiveByStatus(ctx context.Context, statuses ...models.LoadStatus) ([]models.Load, error) {
	filter := bson.M{"isActive": true, "status": bson.M{"$in": statuses}}
	cursor, err := s.coll.Find(ctx, filter)
	if err != nil {
		return nil, models.NewStoreError(err)
	}
	var loads []models.Load
	if err := cursor.All(ctx, &loads); err != nil {
		return nil, models.NewStoreError(err)
	}
	return loads, nil
}

// UpdateStatusWhere flips the status only if the current status is one of
// the expected priors. Returns false when no document matched, which the
// caller treats as a lost race rather than an error.
func (s *MongoLoadStore) UpdateStatusWhere(ctx context.Context, loadID string, from []models.LoadStatus, to models.LoadStatus, set map[string]interface{}) (bool, error) {
	filter := bson.M{"loadID": loadID, "isActive": true, "status": bson.M{"$in": from}}
	update := bson.M{"status": to, "updatedAt": time.Now()}
	for k, v := range set {
		update[k] = v
	}
	result, err := s.coll.UpdateOne(ctx, filter, bson.M{"$set": update})
	if err != nil {
		return false, models.NewStoreError(err)
	}
	return result.ModifiedCount > 0, nil
}
