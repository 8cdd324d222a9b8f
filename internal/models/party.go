package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Transporter master record. Managed by thin CRUD, read by the auction
// core for eligibility and display names.
type Transporter struct {
	ID            primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	TransporterID string             `bson:"transporterID" json:"transporterID"`
	Name          string             `bson:"name" json:"name"`
	Status        string             `bson:"status" json:"status"` // active, blocked, partially_blocked
	IsActive      bool               `bson:"isActive" json:"isActive"`
	CreatedAt     time.Time          `bson:"createdAt" json:"createdAt"`
}

// ShipperTransporterMap tags a transporter to a shipper's private pool.
type ShipperTransporterMap struct {
	ID            primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	ShipperID     string             `bson:"shipperID" json:"shipperID"`
	TransporterID string             `bson:"transporterID" json:"transporterID"`
	IsActive      bool               `bson:"isActive" json:"isActive"`
	CreatedAt     time.Time          `bson:"createdAt" json:"createdAt"`
}

// BlacklistEntry excludes a transporter from a shipper's auctions.
type BlacklistEntry struct {
	ID            primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	ShipperID     string             `bson:"shipperID" json:"shipperID"`
	TransporterID string             `bson:"transporterID" json:"transporterID"`
	Reason        string             `bson:"reason,omitempty" json:"reason,omitempty"`
	IsActive      bool               `bson:"isActive" json:"isActive"`
	CreatedAt     time.Time          `bson:"createdAt" json:"createdAt"`
}

// UserAccount is the minimal user view the core needs to resolve
// notification receivers (shipper users, transporter managers).
type UserAccount struct {
	ID            primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	UserID        string             `bson:"userID" json:"userID"`
	Name          string             `bson:"name" json:"name"`
	Role          string             `bson:"role" json:"role"`
	ShipperID     string             `bson:"shipperID,omitempty" json:"shipperID,omitempty"`
	TransporterID string             `bson:"transporterID,omitempty" json:"transporterID,omitempty"`
	ManagerID     string             `bson:"managerID,omitempty" json:"managerID,omitempty"`
	IsActive      bool               `bson:"isActive" json:"isActive"`
	CreatedAt     time.Time          `bson:"createdAt" json:"createdAt"`
}
