// server/internal/store/assignment_store.go
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

type MongoAssignmentStore struct {
	coll *mongo.Collection
}

func NewMongoAssignmentStore(db *mongo.Database) *MongoAssignmentStore {
	return &MongoAssignmentStore{coll: db.Collection("assignments")}
}

func (s *MongoAssignmentStore) Get(ctx context.Context, loadID, transporterID string) (*models.AssignmentRecord, error) {
	var rec models.AssignmentRecord
	err := s.coll.FindOne(ctx, bson.M{"loadID": loadID, "transporterID": transporterID}).Decode(&rec)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, models.NewNotFoundError("assignment record not found")
		}
		return nil, models.NewStoreError(err)
	}
	return &rec, nil
}

func (s *MongoAssignmentStore) ListByLoad(ctx context.Context, loadID string) ([]models.AssignmentRecord, error) {
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: 1}})
	cursor, err := s.coll.Find(ctx, bson.M{"loadID": loadID}, opts)
	if err != nil {
		return nil, models.NewStoreError(err)
	}
	var recs []models.AssignmentRecord
	if err := cursor.All(ctx, &recs); err != nil {
		return nil, models.NewStoreError(err)
	}
	return recs, nil
}

func (s *MongoAssignmentStore) Insert(ctx context.Context, rec *models.AssignmentRecord) error {
	now := time.Now()
	rec.CreatedAt = now
	rec.UpdatedAt = now
	if _, err := s.coll.InsertOne(ctx, rec); err != nil {
		return models.NewStoreError(err)
	}
	return nil
}

// Replace overwrites the whole record keyed by (loadID, transporterID).
// The history slice only ever grows, so writing it back wholesale keeps
// the append-only property.
func (s *MongoAssignmentStore) Replace(ctx context.Context, rec *models.AssignmentRecord) error {
	rec.UpdatedAt = time.Now()
	filter := bson.M{"loadID": rec.LoadID, "transporterID": rec.TransporterID}
	result, err := s.coll.ReplaceOne(ctx, filter, rec)
	if err != nil {
		return models.NewStoreError(err)
	}
	if result.MatchedCount == 0 {
		return models.NewNotFoundError("assignment record not found")
	}
	return nil
}
