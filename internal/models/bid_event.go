package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// TermsAcceptedRate is the sentinel rate recorded when a transporter
// accepts the terms and conditions without quoting yet.
const TermsAcceptedRate = -1

// BidEvent is one rate submission on a load. Events are an append-only
// ledger: a document is never updated after insert. The live ranking is
// a projection over this ledger and is always rebuildable from it.
type BidEvent struct {
	ID            primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	LoadID        string             `bson:"loadID" json:"loadID"`
	TransporterID string             `bson:"transporterID" json:"transporterID"`
	Rate          float64            `bson:"rate" json:"rate"`
	Comment       string             `bson:"comment,omitempty" json:"comment,omitempty"`
	AttemptNumber int                `bson:"attemptNumber" json:"attemptNumber"`
	TermsAccepted bool               `bson:"termsAccepted" json:"termsAccepted"`
	CreatedAt     time.Time          `bson:"createdAt" json:"createdAt"`
	CreatedBy     string             `bson:"createdBy,omitempty" json:"createdBy,omitempty"`
}
