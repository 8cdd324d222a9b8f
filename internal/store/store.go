// server/internal/store/store.go
package store

import (
	"context"
	"time"

	"github.com/freightbid/bidding-api/internal/models"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// LoadStore persists auctions. UpdateStatusWhere is the only write path
// that changes a load's status: it matters that the filter carries the
// allowed prior statuses so concurrent transitions cannot clobber each
// other.
type LoadStore interface {
	Insert(ctx context.Context, load *models.Load) error
	GetByLoadID(ctx context.Context, loadID string) (*models.Load, error)
	ListByShipper(ctx context.Context, shipperID string, statuses []models.LoadStatus) ([]models.Load, error)
	ListActiveByStatus(ctx context.Context, statuses ...models.LoadStatus) ([]models.Load, error)
	UpdateStatusWhere(ctx context.Context, loadID string, from []models.LoadStatus, to models.LoadStatus, set map[string]interface{}) (bool, error)
}

// BidEventStore is an append-only ledger. There is no update or delete.
type BidEventStore interface {
	Append(ctx context.Context, event *models.BidEvent) error
	CountAttempts(ctx context.Context, loadID, transporterID string) (int, error)
	LowestRate(ctx context.Context, loadID string) (float64, bool, error)
	LowestRateForTransporter(ctx context.Context, loadID, transporterID string) (float64, bool, error)
	ListForTransporter(ctx context.Context, loadID, transporterID string) ([]models.BidEvent, error)
	ListRates(ctx context.Context, loadID string) ([]models.BidEvent, error)
	HasAcceptedTerms(ctx context.Context, loadID, transporterID string) (bool, error)
}

type AssignmentStore interface {
	Get(ctx context.Context, loadID, transporterID string) (*models.AssignmentRecord, error)
	ListByLoad(ctx context.Context, loadID string) ([]models.AssignmentRecord, error)
	Insert(ctx context.Context, rec *models.AssignmentRecord) error
	Replace(ctx context.Context, rec *models.AssignmentRecord) error
}

type PartyStore interface {
	IsMapped(ctx context.Context, shipperID, transporterID string) (bool, error)
	IsBlacklisted(ctx context.Context, shipperID, transporterID string) (bool, error)
	TransporterName(ctx context.Context, transporterID string) (string, error)
	UserIDsForShipper(ctx context.Context, shipperID string) ([]string, error)
	ManagerUserIDsForTransporter(ctx context.Context, transporterID string) ([]string, error)
}

// Connect dials MongoDB and pings it before returning the database handle.
func Connect(ctx context.Context, uri, dbName string) (*mongo.Database, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, err
	}
	if err := client.Ping(ctx, nil); err != nil {
		return nil, err
	}
	return client.Database(dbName), nil
}
