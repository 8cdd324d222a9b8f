// server/internal/store/party_store.go
package store

import (
	"context"
	"errors"

	"github.com/freightbid/bidding-api/internal/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

type MongoPartyStore struct {
	transporters *mongo.Collection
	mappings     *mongo.Collection
	blacklist    *mongo.Collection
	users        *mongo.Collection
}

func NewMongoPartyStore(db *mongo.Database) *MongoPartyStore {
	return &MongoPartyStore{
		transporters: db.Collection("transporters"),
		mappings:     db.Collection("shipper_transporter_map"),
		blacklist:    db.Collection("blacklist"),
		users:        db.Collection("users"),
	}
}

func (s *MongoPartyStore) IsMapped(ctx context.Context, shipperID, transporterID string) (bool, error) {
	filter := bson.M{"shipperID": shipperID, "transporterID": transporterID, "isActive": true}
	count, err := s.mappings.CountDocuments(ctx, filter)
	if err != nil {
		return false, models.NewStoreError(err)
	}
	return count > 0, nil
}

func (s *MongoPartyStore) IsBlacklisted(ctx context.Context, shipperID, transporterID string) (bool, error) {
	filter := bson.M{"shipperID": shipperID, "transporterID": transporterID, "isActive": true}
	count, err := s.blacklist.CountDocuments(ctx, filter)
	if err != nil {
		return false, models.NewStoreError(err)
	}
	return count > 0, nil
}

func (s *MongoPartyStore) TransporterName(ctx context.Context, transporterID string) (string, error) {
	var t models.Transporter
	err := s.transporters.FindOne(ctx, bson.M{"transporterID": transporterID}).Decode(&t)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return "", nil
		}
		return "", models.NewStoreError(err)
	}
	return t.Name, nil
}

func (s *MongoPartyStore) UserIDsForShipper(ctx context.Context, shipperID string) ([]string, error) {
	return s.userIDs(ctx, bson.M{"shipperID": shipperID, "isActive": true})
}

// ManagerUserIDsForTransporter returns the transporter's users plus their
// managers, deduplicated. Managers get copies of assignment notifications.
func (s *MongoPartyStore) ManagerUserIDsForTransporter(ctx context.Context, transporterID string) ([]string, error) {
	cursor, err := s.users.Find(ctx, bson.M{"transporterID": transporterID, "isActive": true})
	if err != nil {
		return nil, models.NewStoreError(err)
	}
	var accounts []models.UserAccount
	if err := cursor.All(ctx, &accounts); err != nil {
		return nil, models.NewStoreError(err)
	}
	seen := make(map[string]bool)
	var ids []string
	for _, account := range accounts {
		if !seen[account.UserID] {
			seen[account.UserID] = true
			ids = append(ids, account.UserID)
		}
		if account.ManagerID != "" && !seen[account.ManagerID] {
			seen[account.ManagerID] = true
			ids = append(ids, account.ManagerID)
		}
	}
	return ids, nil
}

func (s *MongoPartyStore) userIDs(ctx context.Context, filter bson.M) ([]string, error) {
	cursor, err := s.users.Find(ctx, filter)
	if err != nil {
		return nil, models.NewStoreError(err)
	}
	var accounts []models.UserAccount
	if err := cursor.All(ctx, &accounts); err != nil {
		return nil, models.NewStoreError(err)
	}
	ids := make([]string, 0, len(accounts))
	for _, account := range accounts {
		ids = append(ids, account.UserID)
	}
	return ids, nil
}
