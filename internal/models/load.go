package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// LoadStatus is the lifecycle state of an auction load. Transitions are
// owned by the auction state machine; handlers never set it directly.
type LoadStatus string

const (
	StatusDraft              LoadStatus = "draft"
	StatusNotStarted         LoadStatus = "not_started"
	StatusLive               LoadStatus = "live"
	StatusPending            LoadStatus = "pending"
	StatusPartiallyConfirmed LoadStatus = "partially_confirmed"
	StatusConfirmed          LoadStatus = "confirmed"
	StatusCompleted          LoadStatus = "completed"
	StatusCancelled          LoadStatus = "cancelled"
	StatusEpod               LoadStatus = "epod"
)

// AcceptsBids reports whether the persisted status allows new rate
// submissions. Time-window checks are layered on top of this.
func (s LoadStatus) AcceptsBids() bool {
	return s == StatusLive
}

// Terminal reports whether the load can no longer change state.
func (s LoadStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled || s == StatusEpod
}

// BidMode determines which transporters may participate.
type BidMode string

const (
	ModePrivatePool BidMode = "private_pool"
	ModeOpenMarket  BidMode = "open_market"
	ModeIndent      BidMode = "indent"
)

// Load is one auction unit: a shipment needing fleets, published by a
// shipper, bid on by transporters under a decrementing-price rule.
type Load struct {
	ID                 primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	LoadID             string             `bson:"loadID" json:"loadID"`
	ShipperID          string             `bson:"shipperID" json:"shipperID"`
	BranchID           string             `bson:"branchID,omitempty" json:"branchID,omitempty"`
	SegmentID          string             `bson:"segmentID,omitempty" json:"segmentID,omitempty"`
	Mode               BidMode            `bson:"mode" json:"mode"`
	Status             LoadStatus         `bson:"status" json:"status"`
	BidTime            time.Time          `bson:"bidTime" json:"bidTime"`
	BidEndTime         time.Time          `bson:"bidEndTime" json:"bidEndTime"`
	ExtendedMinutes    int                `bson:"extendedMinutes" json:"extendedMinutes"`
	BasePrice          float64            `bson:"basePrice" json:"basePrice"`
	Decrement          float64            `bson:"decrement" json:"decrement"`
	DecrementIsPercent bool               `bson:"decrementIsPercent" json:"decrementIsPercent"`
	MaxTries           int                `bson:"maxTries" json:"maxTries"`
	ShowLowestRate     bool               `bson:"showLowestRate" json:"showLowestRate"`
	FleetType          string             `bson:"fleetType,omitempty" json:"fleetType,omitempty"`
	NoOfFleets         int                `bson:"noOfFleets" json:"noOfFleets"`
	ReportingFrom      time.Time          `bson:"reportingFrom,omitempty" json:"reportingFrom,omitempty"`
	ReportingTo        time.Time          `bson:"reportingTo,omitempty" json:"reportingTo,omitempty"`
	PriceMatchMinutes  int                `bson:"priceMatchMinutes" json:"priceMatchMinutes"`
	CancellationReason string             `bson:"cancellationReason,omitempty" json:"cancellationReason,omitempty"`
	CompletionReason   string             `bson:"completionReason,omitempty" json:"completionReason,omitempty"`
	IsActive           bool               `bson:"isActive" json:"isActive"`
	CreatedAt          time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt          time.Time          `bson:"updatedAt,omitempty" json:"updatedAt,omitempty"`
	CreatedBy          string             `bson:"createdBy,omitempty" json:"createdBy,omitempty"`
}

// EffectiveEndTime is the bidding close time including any grace
// extension granted during the auction.
func (l *Load) EffectiveEndTime() time.Time {
	return l.BidEndTime.Add(time.Duration(l.ExtendedMinutes) * time.Minute)
}
