// server/internal/auction/statemachine.go
package auction

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/freightbid/bidding-api/internal/models"
	"github.com/freightbid/bidding-api/internal/notify"
	"github.com/freightbid/bidding-api/internal/ranking"
	"github.com/freightbid/bidding-api/internal/socket"
	"github.com/freightbid/bidding-api/internal/store"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// LifecycleService owns every load status transition. Handlers and the
// scheduler call in here; nothing else writes Load.Status.
type LifecycleService struct {
	loads       store.LoadStore
	assignments store.AssignmentStore
	board       *ranking.Store
	hub         *socket.Hub
	sink        *notify.Sink
	parties     store.PartyStore
	log         *logrus.Logger
	grace       time.Duration
	nowFn       func() time.Time
}

func NewLifecycleService(loads store.LoadStore, assignments store.AssignmentStore, parties store.PartyStore, board *ranking.Store, hub *socket.Hub, sink *notify.Sink, grace time.Duration, log *logrus.Logger) *LifecycleService {
	return &LifecycleService{
		loads:       loads,
		assignments: assignments,
		parties:     parties,
		board:       board,
		hub:         hub,
		sink:        sink,
		log:         log,
		grace:       grace,
		nowFn:       time.Now,
	}
}

// CreateLoadInput is the shipper's auction definition.
type CreateLoadInput struct {
	Mode               models.BidMode `json:"mode"`
	BranchID           string         `json:"branchID"`
	SegmentID          string         `json:"segmentID"`
	BidTime            time.Time      `json:"bidTime"`
	BidEndTime         time.Time      `json:"bidEndTime"`
	BasePrice          float64        `json:"basePrice"`
	Decrement          float64        `json:"decrement"`
	DecrementIsPercent bool           `json:"decrementIsPercent"`
	MaxTries           int            `json:"maxTries"`
	ShowLowestRate     bool           `json:"showLowestRate"`
	FleetType          string         `json:"fleetType"`
	NoOfFleets         int            `json:"noOfFleets"`
	ReportingFrom      time.Time      `json:"reportingFrom"`
	ReportingTo        time.Time      `json:"reportingTo"`
	PriceMatchMinutes  int            `json:"priceMatchMinutes"`
}

func (s *LifecycleService) CreateLoad(ctx context.Context, actor models.Actor, input CreateLoadInput) (*models.Load, error) {
	if actor.ShipperID == "" {
		return nil, models.NewValidationError("actor has no shipper")
	}
	if input.BasePrice <= 0 {
		return nil, models.NewValidationError("base price must be positive")
	}
	if input.Decrement < 0 {
		return nil, models.NewValidationError("decrement must not be negative")
	}
	if input.DecrementIsPercent && input.Decrement >= 100 {
		return nil, models.NewValidationError("percentage decrement must be below 100")
	}
	if input.NoOfFleets <= 0 {
		return nil, models.NewValidationError("number of fleets must be positive")
	}
	if !input.BidEndTime.After(input.BidTime) {
		return nil, models.NewValidationError("bid end time must be after bid start time")
	}
	switch input.Mode {
	case models.ModePrivatePool, models.ModeOpenMarket, models.ModeIndent:
	default:
		return nil, models.NewValidationError("unknown bid mode")
	}

	load := &models.Load{
		LoadID:             "LOAD-" + strings.ToUpper(uuid.New().String()[:8]),
		ShipperID:          actor.ShipperID,
		BranchID:           input.BranchID,
		SegmentID:          input.SegmentID,
		Mode:               input.Mode,
		Status:             models.StatusDraft,
		BidTime:            input.BidTime,
		BidEndTime:         input.BidEndTime,
		BasePrice:          input.BasePrice,
		Decrement:          input.Decrement,
		DecrementIsPercent: input.DecrementIsPercent,
		MaxTries:           input.MaxTries,
		ShowLowestRate:     input.ShowLowestRate,
		FleetType:          input.FleetType,
		NoOfFleets:         input.NoOfFleets,
		ReportingFrom:      input.ReportingFrom,
		ReportingTo:        input.ReportingTo,
		PriceMatchMinutes:  input.PriceMatchMinutes,
		IsActive:           true,
		CreatedBy:          actor.UserID,
	}
	if err := s.loads.Insert(ctx, load); err != nil {
		return nil, err
	}
	return load, nil
}

// Publish releases a draft for bidding. A load whose window is already
// open goes straight to live.
func (s *LifecycleService) Publish(ctx context.Context, actor models.Actor, loadID string) (*models.Load, error) {
	load, err := s.getOwned(ctx, actor, loadID)
	if err != nil {
		return nil, err
	}

	now := s.nowFn().Truncate(time.Minute)
	target := models.StatusNotStarted
	if !now.Before(load.BidTime) && now.Before(load.EffectiveEndTime()) {
		target = models.StatusLive
	}

	ok, err := s.loads.UpdateStatusWhere(ctx, loadID, []models.LoadStatus{models.StatusDraft}, target, nil)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, models.NewConflictError("load is not in draft")
	}
	load.Status = target
	if target == models.StatusLive {
		s.hub.Broadcast(loadID, BoardUpdate{Event: "bid_opened", LoadID: loadID, Status: target})
	}
	return load, nil
}

// Cancel aborts the auction at any point before completion.
func (s *LifecycleService) Cancel(ctx context.Context, actor models.Actor, loadID, reason string) error {
	if reason == "" {
		return models.NewValidationError("cancellation reason is required")
	}
	if _, err := s.getOwned(ctx, actor, loadID); err != nil {
		return err
	}

	from := []models.LoadStatus{
		models.StatusDraft, models.StatusNotStarted, models.StatusLive,
		models.StatusPending, models.StatusPartiallyConfirmed, models.StatusConfirmed,
	}
	ok, err := s.loads.UpdateStatusWhere(ctx, loadID, from, models.StatusCancelled, map[string]interface{}{
		"cancellationReason": reason,
	})
	if err != nil {
		return err
	}
	if !ok {
		return models.NewConflictError("load can no longer be cancelled")
	}

	s.board.Drop(loadID)
	s.hub.Broadcast(loadID, BoardUpdate{Event: "bid_cancelled", LoadID: loadID, Status: models.StatusCancelled})
	return nil
}

// Complete closes out a confirmed load after delivery.
func (s *LifecycleService) Complete(ctx context.Context, actor models.Actor, loadID, reason string) error {
	if _, err := s.getOwned(ctx, actor, loadID); err != nil {
		return err
	}
	ok, err := s.loads.UpdateStatusWhere(ctx, loadID,
		[]models.LoadStatus{models.StatusConfirmed, models.StatusPartiallyConfirmed},
		models.StatusCompleted,
		map[string]interface{}{"completionReason": reason})
	if err != nil {
		return err
	}
	if !ok {
		return models.NewConflictError("load is not confirmed")
	}
	return nil
}

// MarkEpod records proof-of-delivery closure, the final state.
func (s *LifecycleService) MarkEpod(ctx context.Context, actor models.Actor, loadID string) error {
	if _, err := s.getOwned(ctx, actor, loadID); err != nil {
		return err
	}
	ok, err := s.loads.UpdateStatusWhere(ctx, loadID,
		[]models.LoadStatus{models.StatusCompleted}, models.StatusEpod, nil)
	if err != nil {
		return err
	}
	if !ok {
		return models.NewConflictError("load is not completed")
	}
	return nil
}

func (s *LifecycleService) ListForShipper(ctx context.Context, actor models.Actor, statuses []models.LoadStatus) ([]models.Load, error) {
	if actor.ShipperID == "" {
		return nil, models.NewValidationError("actor has no shipper")
	}
	return s.loads.ListByShipper(ctx, actor.ShipperID, statuses)
}

// OpenDueLoads moves published loads whose window has started to live.
// Status-filtered updates make a double sweep harmless.
func (s *LifecycleService) OpenDueLoads(ctx context.Context) {
	now := s.nowFn().Truncate(time.Minute)
	loads, err := s.loads.ListActiveByStatus(ctx, models.StatusNotStarted)
	if err != nil {
		s.log.WithError(err).Error("open sweep: listing loads failed")
		return
	}
	for i := range loads {
		load := &loads[i]
		if now.Before(load.BidTime) {
			continue
		}
		ok, err := s.loads.UpdateStatusWhere(ctx, load.LoadID,
			[]models.LoadStatus{models.StatusNotStarted}, models.StatusLive, nil)
		if err != nil {
			s.log.WithError(err).WithField("loadID", load.LoadID).Error("open sweep: transition failed")
			continue
		}
		if ok {
			s.log.WithField("loadID", load.LoadID).Info("bidding opened")
			s.hub.Broadcast(load.LoadID, BoardUpdate{Event: "bid_opened", LoadID: load.LoadID, Status: models.StatusLive})
		}
	}
}

// CloseDueLoads moves live loads past their end time to pending and
// publishes the final standings before dropping the board.
func (s *LifecycleService) CloseDueLoads(ctx context.Context) {
	now := s.nowFn().Truncate(time.Minute)
	loads, err := s.loads.ListActiveByStatus(ctx, models.StatusLive)
	if err != nil {
		s.log.WithError(err).Error("close sweep: listing loads failed")
		return
	}
	for i := range loads {
		load := &loads[i]
		if now.Before(load.EffectiveEndTime()) {
			continue
		}
		ok, err := s.loads.UpdateStatusWhere(ctx, load.LoadID,
			[]models.LoadStatus{models.StatusLive}, models.StatusPending, nil)
		if err != nil {
			s.log.WithError(err).WithField("loadID", load.LoadID).Error("close sweep: transition failed")
			continue
		}
		if !ok {
			continue
		}
		s.log.WithField("loadID", load.LoadID).Info("bidding closed")

		update := BoardUpdate{Event: "bid_closed", LoadID: load.LoadID, Status: models.StatusPending, Board: s.board.Snapshot(load.LoadID)}
		if load.ShowLowestRate {
			if entry, ok := s.board.Lowest(load.LoadID); ok {
				rate := entry.Rate
				update.LowestRate = &rate
			}
		}
		s.hub.Broadcast(load.LoadID, update)
		s.board.Drop(load.LoadID)

		s.notifyShipperClosed(ctx, load)
	}
}

// CancelStalePending cancels pending loads that sat unassigned past the
// grace period.
func (s *LifecycleService) CancelStalePending(ctx context.Context) {
	now := s.nowFn()
	loads, err := s.loads.ListActiveByStatus(ctx, models.StatusPending)
	if err != nil {
		s.log.WithError(err).Error("stale sweep: listing loads failed")
		return
	}
	for i := range loads {
		load := &loads[i]
		if now.Sub(load.EffectiveEndTime()) < s.grace {
			continue
		}
		ok, err := s.loads.UpdateStatusWhere(ctx, load.LoadID,
			[]models.LoadStatus{models.StatusPending}, models.StatusCancelled,
			map[string]interface{}{"cancellationReason": "auto-cancelled: no assignment within the grace period"})
		if err != nil {
			s.log.WithError(err).WithField("loadID", load.LoadID).Error("stale sweep: transition failed")
			continue
		}
		if ok {
			s.log.WithField("loadID", load.LoadID).Info("stale pending load cancelled")
		}
	}
}

// RecomputeFulfilment derives the post-auction status from how many
// fleets are currently assigned and applies it.
func (s *LifecycleService) RecomputeFulfilment(ctx context.Context, loadID string) error {
	load, err := s.loads.GetByLoadID(ctx, loadID)
	if err != nil {
		return err
	}
	records, err := s.assignments.ListByLoad(ctx, loadID)
	if err != nil {
		return err
	}

	total := 0
	for i := range records {
		if records[i].IsAssigned() {
			total += records[i].FleetsAssigned
		}
	}

	target := models.StatusPending
	switch {
	case total >= load.NoOfFleets:
		target = models.StatusConfirmed
	case total > 0:
		target = models.StatusPartiallyConfirmed
	}
	if target == load.Status {
		return nil
	}

	from := []models.LoadStatus{models.StatusPending, models.StatusPartiallyConfirmed, models.StatusConfirmed}
	if _, err := s.loads.UpdateStatusWhere(ctx, loadID, from, target, nil); err != nil {
		return err
	}
	return nil
}

func (s *LifecycleService) getOwned(ctx context.Context, actor models.Actor, loadID string) (*models.Load, error) {
	load, err := s.loads.GetByLoadID(ctx, loadID)
	if err != nil {
		return nil, err
	}
	if actor.Role == models.RoleShipper && load.ShipperID != actor.ShipperID {
		return nil, models.NewNotFoundError("load not found")
	}
	return load, nil
}

func (s *LifecycleService) notifyShipperClosed(ctx context.Context, load *models.Load) {
	receivers, err := s.parties.UserIDsForShipper(ctx, load.ShipperID)
	if err != nil {
		s.log.WithError(err).Warn("shipper receiver lookup failed")
		return
	}
	s.sink.Dispatch(notify.Message{
		ReceiverIDs: receivers,
		Text:        fmt.Sprintf("Bidding closed for load %s, assignment pending", load.LoadID),
		Category:    notify.CategoryBid,
		DeepLink:    "/loads/" + load.LoadID,
	})
}
