// server/internal/store/bid_event_store.go
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

type MongoBidEventStore struct {
	coll *mongo.Collection
}

func NewMongoBidEventStore(db *mongo.Database) *MongoBidEventStore {
	return &MongoBidEventStore{coll: db.Collection("bid_events")}
}

func (s *MongoBidEventStore) Append(ctx context.Context, event *models.BidEvent) error {
	event.CreatedAt = time.Now()
	if _, err := s.coll.InsertOne(ctx, event); err != nil {
		return models.NewStoreError(err)
	}
	return nil
}

// CountAttempts counts real rate submissions only. Terms-acceptance rows
// carry the sentinel rate and do not consume an attempt.
func (s *MongoBidEventStore) CountAttempts(ctx context.Context, loadID, transporterID string) (int, error) {
	filter := bson.M{"loadID": loadID, "transporterID": transporterID, "rate": bson.M{"$gt": 0}}
	count, err := s.coll.CountDocuments(ctx, filter)
	if err != nil {
		return 0, models.NewStoreError(err)
	}
	return int(count), nil
}

func (s *MongoBidEventStore) LowestRate(ctx context.Context, loadID string) (float64, bool, error) {
	return s.lowest(ctx, bson.M{"loadID": loadID, "rate": bson.M{"$gt": 0}})
}

func (s *MongoBidEventStore) LowestRateForTransporter(ctx context.Context, loadID, transporterID string) (float64, bool, error) {
	return s.lowest(ctx, bson.M{"loadID": loadID, "transporterID": transporterID, "rate": bson.M{"$gt": 0}})
}

func (s *MongoBidEventStore) lowest(ctx context.Context, filter bson.M) (float64, bool, error) {
	opts := options.FindOne().SetSort(bson.D{{Key: "rate", Value: 1}, {Key: "createdAt", Value: 1}})
	var event models.BidEvent
	err := s.coll.FindOne(ctx, filter, opts).Decode(&event)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return 0, false, nil
		}
		return 0, false, models.NewStoreError(err)
	}
	return event.Rate, true, nil
}

func (s *MongoBidEventStore) ListForTransporter(ctx context.Context, loadID, transporterID string) ([]models.BidEvent, error) {
	filter := bson.M{"loadID": loadID, "transporterID": transporterID, "rate": bson.M{"$gt": 0}}
	return s.list(ctx, filter)
}

func (s *MongoBidEventStore) ListRates(ctx context.Context, loadID string) ([]models.BidEvent, error) {
	return s.list(ctx, bson.M{"loadID": loadID, "rate": bson.M{"$gt": 0}})
}

func (s *MongoBidEventStore) list(ctx context.Context, filter bson.M) ([]models.BidEvent, error) {
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}})
	cursor, err := s.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, models.NewStoreError(err)
	}
	var events []models.BidEvent
	if err := cursor.All(ctx, &events); err != nil {
		return nil, models.NewStoreError(err)
	}
	return events, nil
}

func (s *MongoBidEventStore) HasAcceptedTerms(ctx context.Context, loadID, transporterID string) (bool, error) {
	filter := bson.M{"loadID": loadID, "transporterID": transporterID, "rate": models.TermsAcceptedRate}
	count, err := s.coll.CountDocuments(ctx, filter)
	if err != nil {
		return false, models.NewStoreError(err)
	}
	return count > 0, nil
}
