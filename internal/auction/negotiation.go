// server/internal/auction/negotiation.go
package auction

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/freightbid/bidding-api/internal/models"
	"github.com/freightbid/bidding-api/internal/notify"
	"github.com/freightbid/bidding-api/internal/store"

	"github.com/sirupsen/logrus"
)

// NegotiationService owns post-auction assignment and the price-match
// flow between shipper and transporter.
type NegotiationService struct {
	loads       store.LoadStore
	events      store.BidEventStore
	assignments store.AssignmentStore
	parties     store.PartyStore
	lifecycle   *LifecycleService
	sink        *notify.Sink
	log         *logrus.Logger
	locks       *keyedMutex
	pmMinutes   int
	nowFn       func() time.Time
}

func NewNegotiationService(loads store.LoadStore, events store.BidEventStore, assignments store.AssignmentStore, parties store.PartyStore, lifecycle *LifecycleService, sink *notify.Sink, pmMinutes int, log *logrus.Logger) *NegotiationService {
	return &NegotiationService{
		loads:       loads,
		events:      events,
		assignments: assignments,
		parties:     parties,
		lifecycle:   lifecycle,
		sink:        sink,
		log:         log,
		locks:       newKeyedMutex(),
		pmMinutes:   pmMinutes,
		nowFn:       time.Now,
	}
}

// Respond actions.
const (
	ResponseApprove = "approve"
	ResponseCounter = "counter"
	ResponseReject  = "reject"
)

// Assign hands fleets to a transporter after the auction closed. The
// price defaults to the transporter's lowest quoted rate.
func (s *NegotiationService) Assign(ctx context.Context, actor models.Actor, loadID, transporterID string, fleets int, price *float64) (*models.AssignmentRecord, error) {
	if fleets <= 0 {
		return nil, models.NewValidationError("fleets must be positive")
	}
	load, err := s.ownedPostAuction(ctx, actor, loadID)
	if err != nil {
		return nil, err
	}

	unlock := s.locks.Lock(loadID + "/" + transporterID)
	defer unlock()

	lowest, hasBid, err := s.events.LowestRateForTransporter(ctx, loadID, transporterID)
	if err != nil {
		return nil, err
	}
	if !hasBid {
		return nil, models.NewRuleViolation("transporter did not bid on this load", nil)
	}

	assignPrice := lowest
	if price != nil {
		assignPrice = *price
	}

	rec, err := s.recordFor(ctx, actor, load, transporterID)
	if err != nil {
		return nil, err
	}
	if rec.IsAssigned() {
		return nil, models.NewConflictError("transporter is already assigned")
	}

	assigned := true
	rec.Assigned = &assigned
	rec.FleetsAssigned = fleets
	rec.Price = &assignPrice
	rec.UnassignmentReason = ""
	rec.UpdatedBy = actor.UserID
	rec.History = append(rec.History, models.AssignmentEvent{
		Kind:  models.EventAssign,
		Value: assignPrice,
		At:    s.nowFn(),
	})
	if rec.RankInBid == "" {
		rank, err := s.finalRank(ctx, loadID, transporterID)
		if err != nil {
			return nil, err
		}
		rec.RankInBid = rank
	}
	if err := s.assignments.Replace(ctx, rec); err != nil {
		return nil, err
	}

	if err := s.lifecycle.RecomputeFulfilment(ctx, loadID); err != nil {
		return nil, err
	}

	s.notifyTransporter(ctx, transporterID,
		fmt.Sprintf("You were assigned %d fleet(s) on load %s at %.2f", fleets, loadID, assignPrice),
		notify.CategoryAssignment, loadID)
	return rec, nil
}

// Unassign withdraws a prior assignment and recomputes the load status.
func (s *NegotiationService) Unassign(ctx context.Context, actor models.Actor, loadID, transporterID, reason string) error {
	if reason == "" {
		return models.NewValidationError("unassignment reason is required")
	}
	if _, err := s.ownedPostAuction(ctx, actor, loadID); err != nil {
		return err
	}

	unlock := s.locks.Lock(loadID + "/" + transporterID)
	defer unlock()

	rec, err := s.assignments.Get(ctx, loadID, transporterID)
	if err != nil {
		return err
	}
	if !rec.IsAssigned() {
		return models.NewConflictError("transporter is not assigned")
	}

	assigned := false
	rec.Assigned = &assigned
	rec.FleetsAssigned = 0
	rec.UnassignmentReason = reason
	rec.UpdatedBy = actor.UserID
	rec.History = append(rec.History, models.AssignmentEvent{
		Kind:   models.EventUnassign,
		At:     s.nowFn(),
		Reason: reason,
	})
	if err := s.assignments.Replace(ctx, rec); err != nil {
		return err
	}

	if err := s.lifecycle.RecomputeFulfilment(ctx, loadID); err != nil {
		return err
	}

	s.notifyTransporter(ctx, transporterID,
		fmt.Sprintf("Your assignment on load %s was withdrawn: %s", loadID, reason),
		notify.CategoryAssignment, loadID)
	return nil
}

// RequestPriceMatch asks a transporter to accept a lower price. An
// operator superuser negotiates directly: the price applies without the
// transporter's approval window.
func (s *NegotiationService) RequestPriceMatch(ctx context.Context, actor models.Actor, loadID, transporterID string, target float64, comment string) (*models.AssignmentRecord, error) {
	if target <= 0 {
		return nil, models.NewValidationError("target price must be positive")
	}
	load, err := s.ownedPostAuction(ctx, actor, loadID)
	if err != nil {
		return nil, err
	}

	unlock := s.locks.Lock(loadID + "/" + transporterID)
	defer unlock()

	rec, err := s.recordFor(ctx, actor, load, transporterID)
	if err != nil {
		return nil, err
	}
	if rec.PriceMatchAccepted() {
		return nil, models.NewRuleViolation("price match already accepted", nil)
	}

	now := s.nowFn().Truncate(time.Minute)
	if actor.Superuser {
		approved := true
		rec.Price = &target
		rec.PMPrice = &target
		rec.PMApproved = &approved
		rec.PMRequestedAt = nil
		rec.NegotiatedByOperator = true
		rec.PMComment = comment
		rec.UpdatedBy = actor.UserID
		rec.History = append(rec.History, models.AssignmentEvent{
			Kind:  models.EventSuperuserNegotiation,
			Value: target,
			At:    now,
		})
		if err := s.assignments.Replace(ctx, rec); err != nil {
			return nil, err
		}
		s.notifyTransporter(ctx, transporterID,
			fmt.Sprintf("Price on load %s was negotiated to %.2f", loadID, target),
			notify.CategoryPriceMatch, loadID)
		return rec, nil
	}

	rec.PMPrice = &target
	rec.PMComment = comment
	rec.PMRequestedAt = &now
	rec.UpdatedBy = actor.UserID
	rec.History = append(rec.History, models.AssignmentEvent{
		Kind:  models.EventPriceMatchRequest,
		Value: target,
		At:    now,
	})
	if err := s.assignments.Replace(ctx, rec); err != nil {
		return nil, err
	}

	s.notifyTransporter(ctx, transporterID,
		fmt.Sprintf("Shipper requests a price match of %.2f on load %s", target, loadID),
		notify.CategoryPriceMatch, loadID)
	return rec, nil
}

// Respond is the transporter's answer to a pending price-match request:
// approve it, counter with a lower offer, or reject it. Responses are
// only accepted within the approval window that opened at the request.
func (s *NegotiationService) Respond(ctx context.Context, actor models.Actor, loadID, action string, counter float64) (*models.AssignmentRecord, error) {
	if actor.TransporterID == "" {
		return nil, models.NewValidationError("actor has no transporter")
	}
	load, err := s.loads.GetByLoadID(ctx, loadID)
	if err != nil {
		return nil, err
	}

	unlock := s.locks.Lock(loadID + "/" + actor.TransporterID)
	defer unlock()

	rec, err := s.assignments.Get(ctx, loadID, actor.TransporterID)
	if err != nil {
		return nil, err
	}
	if rec.PriceMatchAccepted() {
		return nil, models.NewRuleViolation("price match already accepted", nil)
	}
	if rec.PMRequestedAt == nil || rec.PMPrice == nil {
		return nil, models.NewRuleViolation("no pending price-match request", nil)
	}

	now := s.nowFn().Truncate(time.Minute)
	start, err := s.windowStart(ctx, loadID, rec)
	if err != nil {
		return nil, err
	}
	deadline := start.Add(time.Duration(s.windowMinutes(load)) * time.Minute)
	if now.After(deadline) {
		return nil, models.NewRuleViolation("approval window expired", deadline)
	}

	switch action {
	case ResponseApprove:
		approved := true
		price := *rec.PMPrice
		rec.PMApproved = &approved
		rec.Price = &price
		rec.History = append(rec.History, models.AssignmentEvent{
			Kind:  models.EventPriceMatchApproved,
			Value: price,
			At:    now,
		})

	case ResponseCounter:
		bound, err := s.counterBound(ctx, rec)
		if err != nil {
			return nil, err
		}
		if counter <= 0 {
			return nil, models.NewValidationError("counter offer must be positive")
		}
		if counter > bound {
			return nil, models.NewRuleViolation(
				fmt.Sprintf("counter offer must be %.2f or lower", bound), bound)
		}
		rec.Price = &counter
		rec.PMRequestedAt = nil
		rec.History = append(rec.History, models.AssignmentEvent{
			Kind:  models.EventPriceMatchNegotiated,
			Value: counter,
			At:    now,
		})

	case ResponseReject:
		// The price falls back to the last value the parties already
		// settled on; without one the prior price stands untouched.
		var revert float64
		if ev := rec.LatestEvent(models.EventPriceMatchNegotiated); ev != nil {
			revert = ev.Value
			rec.Price = &revert
		}
		rec.PMApproved = nil
		rec.PMPrice = nil
		rec.PMRequestedAt = nil
		rec.History = append(rec.History, models.AssignmentEvent{
			Kind:  models.EventPriceMatchRejected,
			Value: revert,
			At:    now,
		})

	default:
		return nil, models.NewValidationError("action must be approve, counter or reject")
	}

	rec.UpdatedBy = actor.UserID
	if err := s.assignments.Replace(ctx, rec); err != nil {
		return nil, err
	}

	s.notifyShipperOf(ctx, load,
		fmt.Sprintf("Transporter responded to the price match on load %s: %s", loadID, action))
	return rec, nil
}

// AssignmentHistory returns the audit view both parties see: assign and
// unassign entries, newest first.
func (s *NegotiationService) AssignmentHistory(ctx context.Context, actor models.Actor, loadID string) ([]AssignmentHistoryItem, error) {
	load, err := s.loads.GetByLoadID(ctx, loadID)
	if err != nil {
		return nil, err
	}
	if actor.Role == models.RoleShipper && load.ShipperID != actor.ShipperID {
		return nil, models.NewNotFoundError("load not found")
	}

	records, err := s.assignments.ListByLoad(ctx, loadID)
	if err != nil {
		return nil, err
	}

	var items []AssignmentHistoryItem
	for i := range records {
		rec := &records[i]
		if actor.Role == models.RoleTransporter && rec.TransporterID != actor.TransporterID {
			continue
		}
		name, err := s.parties.TransporterName(ctx, rec.TransporterID)
		if err != nil {
			return nil, err
		}
		for _, ev := range rec.History {
			if !ev.Kind.UserFacing() {
				continue
			}
			items = append(items, AssignmentHistoryItem{
				TransporterID:   rec.TransporterID,
				TransporterName: name,
				Event:           string(ev.Kind),
				Value:           ev.Value,
				Reason:          ev.Reason,
				At:              ev.At,
			})
		}
	}
	sort.Slice(items, func(i, j int) bool { return items[i].At.After(items[j].At) })
	return items, nil
}

type AssignmentHistoryItem struct {
	TransporterID   string    `json:"transporterID"`
	TransporterName string    `json:"transporterName"`
	Event           string    `json:"event"`
	Value           float64   `json:"value,omitempty"`
	Reason          string    `json:"reason,omitempty"`
	At              time.Time `json:"at"`
}

// counterBound is the highest acceptable counter offer: the latest
// price the parties already settled on, falling back to the
// transporter's own lowest quoted rate.
func (s *NegotiationService) counterBound(ctx context.Context, rec *models.AssignmentRecord) (float64, error) {
	if ev := rec.LatestEvent(models.EventPriceMatchNegotiated); ev != nil {
		return ev.Value, nil
	}
	if ev := rec.LatestEvent(models.EventSuperuserNegotiation); ev != nil {
		return ev.Value, nil
	}
	lowest, ok, err := s.events.LowestRateForTransporter(ctx, rec.LoadID, rec.TransporterID)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, models.NewRuleViolation("transporter has no quoted rate on this load", nil)
	}
	return lowest, nil
}

// windowStart anchors the approval window for the whole load: the
// earliest unresolved request across all bidders opens it. A bidder
// asked later does not get a longer window than the first one asked.
// Operator negotiations resolve immediately and never open a window.
func (s *NegotiationService) windowStart(ctx context.Context, loadID string, rec *models.AssignmentRecord) (time.Time, error) {
	start := *rec.PMRequestedAt
	records, err := s.assignments.ListByLoad(ctx, loadID)
	if err != nil {
		return time.Time{}, err
	}
	for i := range records {
		other := &records[i]
		if other.NegotiatedByOperator || other.PMRequestedAt == nil {
			continue
		}
		if other.PMRequestedAt.Before(start) {
			start = *other.PMRequestedAt
		}
	}
	return start, nil
}

func (s *NegotiationService) windowMinutes(load *models.Load) int {
	if load.PriceMatchMinutes > 0 {
		return load.PriceMatchMinutes
	}
	return s.pmMinutes
}

func (s *NegotiationService) ownedPostAuction(ctx context.Context, actor models.Actor, loadID string) (*models.Load, error) {
	load, err := s.loads.GetByLoadID(ctx, loadID)
	if err != nil {
		return nil, err
	}
	if actor.Role == models.RoleShipper && load.ShipperID != actor.ShipperID {
		return nil, models.NewNotFoundError("load not found")
	}
	switch load.Status {
	case models.StatusPending, models.StatusPartiallyConfirmed, models.StatusConfirmed:
		return load, nil
	default:
		return nil, models.NewRuleViolation("load is not in an assignable state", string(load.Status))
	}
}

func (s *NegotiationService) recordFor(ctx context.Context, actor models.Actor, load *models.Load, transporterID string) (*models.AssignmentRecord, error) {
	rec, err := s.assignments.Get(ctx, load.LoadID, transporterID)
	if err == nil {
		return rec, nil
	}
	if models.AsAppError(err).Kind != models.ErrNotFound {
		return nil, err
	}
	rec = &models.AssignmentRecord{
		LoadID:        load.LoadID,
		TransporterID: transporterID,
		CreatedBy:     actor.UserID,
	}
	if err := s.assignments.Insert(ctx, rec); err != nil {
		return nil, err
	}
	return rec, nil
}

// finalRank computes the transporter's standing among all bidders by
// their lowest rates, e.g. "L2" for second lowest.
func (s *NegotiationService) finalRank(ctx context.Context, loadID, transporterID string) (string, error) {
	events, err := s.events.ListRates(ctx, loadID)
	if err != nil {
		return "", err
	}
	best := make(map[string]float64)
	for _, ev := range events {
		if cur, ok := best[ev.TransporterID]; !ok || ev.Rate < cur {
			best[ev.TransporterID] = ev.Rate
		}
	}
	type standing struct {
		id   string
		rate float64
	}
	board := make([]standing, 0, len(best))
	for id, rate := range best {
		board = append(board, standing{id, rate})
	}
	sort.Slice(board, func(i, j int) bool { return board[i].rate < board[j].rate })
	for i, b := range board {
		if b.id == transporterID {
			return fmt.Sprintf("L%d", i+1), nil
		}
	}
	return "", nil
}

func (s *NegotiationService) notifyTransporter(ctx context.Context, transporterID, text, category, loadID string) {
	receivers, err := s.parties.ManagerUserIDsForTransporter(ctx, transporterID)
	if err != nil {
		s.log.WithError(err).Warn("transporter receiver lookup failed")
		return
	}
	s.sink.Dispatch(notify.Message{
		ReceiverIDs: receivers,
		Text:        text,
		Category:    category,
		DeepLink:    "/loads/" + loadID,
	})
}

func (s *NegotiationService) notifyShipperOf(ctx context.Context, load *models.Load, text string) {
	receivers, err := s.parties.UserIDsForShipper(ctx, load.ShipperID)
	if err != nil {
		s.log.WithError(err).Warn("shipper receiver lookup failed")
		return
	}
	s.sink.Dispatch(notify.Message{
		ReceiverIDs: receivers,
		Text:        text,
		Category:    notify.CategoryPriceMatch,
		DeepLink:    "/loads/" + load.LoadID,
	})
}
