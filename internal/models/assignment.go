package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// AssignmentEventKind tags one entry in an assignment record's history.
type AssignmentEventKind string

const (
	EventAssign               AssignmentEventKind = "assign"
	EventUnassign             AssignmentEventKind = "unassign"
	EventPriceMatchRequest    AssignmentEventKind = "pm-request"
	EventSuperuserNegotiation AssignmentEventKind = "superuser-negotiation"
	EventPriceMatchApproved   AssignmentEventKind = "pm-approved"
	EventPriceMatchNegotiated AssignmentEventKind = "pm-negotiated"
	EventPriceMatchRejected   AssignmentEventKind = "pm-rejected"
)

// UserFacing reports whether the event kind belongs in the assignment
// audit view shown to both parties. The remaining kinds are negotiation
// steps surfaced only in the rates history.
func (k AssignmentEventKind) UserFacing() bool {
	return k == EventAssign || k == EventUnassign
}

// AssignmentEvent is one entry in the append-only history of an
// assignment record. The history is never truncated or rewritten; the
// latest state of a negotiation is derived from its tail.
type AssignmentEvent struct {
	Kind   AssignmentEventKind `bson:"kind" json:"event"`
	Value  float64             `bson:"value" json:"value"`
	At     time.Time           `bson:"at" json:"at"`
	Reason string              `bson:"reason,omitempty" json:"reason,omitempty"`
}

// AssignmentRecord is the one (load, transporter) assignment and
// price-match negotiation slot. It is created lazily the first time a
// transporter is short-listed and logically deleted via Assigned.
type AssignmentRecord struct {
	ID                   primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	LoadID               string             `bson:"loadID" json:"loadID"`
	TransporterID        string             `bson:"transporterID" json:"transporterID"`
	RankInBid            string             `bson:"rankInBid,omitempty" json:"rankInBid,omitempty"`
	Assigned             *bool              `bson:"assigned" json:"assigned"`
	FleetsAssigned       int                `bson:"fleetsAssigned" json:"fleetsAssigned"`
	Price                *float64           `bson:"price,omitempty" json:"price,omitempty"`
	PMPrice              *float64           `bson:"pmPrice,omitempty" json:"pmPrice,omitempty"`
	PMComment            string             `bson:"pmComment,omitempty" json:"pmComment,omitempty"`
	PMRequestedAt        *time.Time         `bson:"pmRequestedAt,omitempty" json:"pmRequestedAt,omitempty"`
	PMApproved           *bool              `bson:"pmApproved" json:"pmApproved"`
	NegotiatedByOperator bool               `bson:"negotiatedByOperator" json:"negotiatedByOperator"`
	UnassignmentReason   string             `bson:"unassignmentReason,omitempty" json:"unassignmentReason,omitempty"`
	History              []AssignmentEvent  `bson:"history" json:"history"`
	CreatedAt            time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt            time.Time          `bson:"updatedAt,omitempty" json:"updatedAt,omitempty"`
	CreatedBy            string             `bson:"createdBy,omitempty" json:"createdBy,omitempty"`
	UpdatedBy            string             `bson:"updatedBy,omitempty" json:"updatedBy,omitempty"`
}

// IsAssigned resolves the tri-state assignment flag.
func (r *AssignmentRecord) IsAssigned() bool {
	return r.Assigned != nil && *r.Assigned
}

// PriceMatchAccepted reports whether the transporter has already
// approved a price match; an accepted slot cannot be re-negotiated.
func (r *AssignmentRecord) PriceMatchAccepted() bool {
	return r.PMApproved != nil && *r.PMApproved
}

// LatestEvent returns the most recent history entry of the given kind,
// scanning from the tail, or nil if none exists.
func (r *AssignmentRecord) LatestEvent(kind AssignmentEventKind) *AssignmentEvent {
	for i := len(r.History) - 1; i >= 0; i-- {
		if r.History[i].Kind == kind {
			return &r.History[i]
		}
	}
	return nil
}

// HistoryNewestFirst returns a copy of the history in reverse order.
func (r *AssignmentRecord) HistoryNewestFirst() []AssignmentEvent {
	out := make([]AssignmentEvent, len(r.History))
	for i, ev := range r.History {
		out[len(r.History)-1-i] = ev
	}
	return out
}
