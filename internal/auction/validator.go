// server/internal/auction/validator.go
package auction

import (
	"context"
	"fmt"
	"time"

	"github.com/freightbid/bidding-api/internal/models"
	"github.com/freightbid/bidding-api/internal/notify"
	"github.com/freightbid/bidding-api/internal/ranking"
	"github.com/freightbid/bidding-api/internal/socket"
	"github.com/freightbid/bidding-api/internal/store"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// BidService owns rate submission and the read paths transporters use
// during a live auction.
type BidService struct {
	loads   store.LoadStore
	events  store.BidEventStore
	parties store.PartyStore
	board   *ranking.Store
	hub     *socket.Hub
	sink    *notify.Sink
	log     *logrus.Logger
	locks   *keyedMutex
	nowFn   func() time.Time
}

func NewBidService(loads store.LoadStore, events store.BidEventStore, parties store.PartyStore, board *ranking.Store, hub *socket.Hub, sink *notify.Sink, log *logrus.Logger) *BidService {
	return &BidService{
		loads:   loads,
		events:  events,
		parties: parties,
		board:   board,
		hub:     hub,
		sink:    sink,
		log:     log,
		locks:   newKeyedMutex(),
		nowFn:   time.Now,
	}
}

// SubmitResult is what a transporter gets back for an accepted rate.
type SubmitResult struct {
	LoadID        string  `json:"loadID"`
	Rate          float64 `json:"rate"`
	AttemptNumber int     `json:"attemptNumber"`
	Position      int     `json:"position"`
	TriesLeft     int     `json:"triesLeft"`
}

// BoardUpdate is the websocket payload broadcast after every accepted
// rate and on auction close. LowestRate is omitted for hidden-rate
// auctions.
type BoardUpdate struct {
	Event      string            `json:"event"`
	LoadID     string            `json:"loadID"`
	Status     models.LoadStatus `json:"status"`
	LowestRate *float64          `json:"lowestRate,omitempty"`
	Board      []ranking.Entry   `json:"board,omitempty"`
}

// SubmitRate validates and records one rate from a transporter.
//
// The decrement rule: each accepted rate must undercut a reference price
// by at least the load's decrement step. The reference is the global
// lowest when the shipper shows the lowest rate, otherwise the bidder's
// own lowest; the very first reference is the base price, which a first
// bid may equal.
func (s *BidService) SubmitRate(ctx context.Context, actor models.Actor, loadID string, rate float64, comment string) (*SubmitResult, error) {
	if rate <= 0 {
		return nil, models.NewValidationError("rate must be a positive amount")
	}
	if actor.TransporterID == "" {
		return nil, models.NewValidationError("actor has no transporter")
	}

	load, err := s.loads.GetByLoadID(ctx, loadID)
	if err != nil {
		return nil, err
	}

	now := s.nowFn().Truncate(time.Minute)
	if err := checkBiddingWindow(load, now); err != nil {
		return nil, err
	}
	if err := s.checkEligibility(ctx, load, actor.TransporterID); err != nil {
		return nil, err
	}

	unlock := s.locks.Lock(loadID + "/" + actor.TransporterID)
	defer unlock()

	attempts, err := s.events.CountAttempts(ctx, loadID, actor.TransporterID)
	if err != nil {
		return nil, err
	}
	if load.MaxTries > 0 && attempts >= load.MaxTries {
		return nil, models.NewRuleViolation("bid attempt limit reached", load.MaxTries)
	}

	if err := s.checkDecrement(ctx, load, actor.TransporterID, rate); err != nil {
		return nil, err
	}

	// The window may have closed while we were validating. Recheck right
	// before committing so a closed auction never gains a late event.
	fresh, err := s.loads.GetByLoadID(ctx, loadID)
	if err != nil {
		return nil, err
	}
	if checkBiddingWindow(fresh, s.nowFn().Truncate(time.Minute)) != nil {
		return nil, models.NewConflictError("bidding closed while the rate was being processed")
	}

	event := &models.BidEvent{
		LoadID:        loadID,
		TransporterID: actor.TransporterID,
		Rate:          rate,
		Comment:       comment,
		AttemptNumber: attempts + 1,
		CreatedBy:     actor.UserID,
	}
	if err := s.events.Append(ctx, event); err != nil {
		return nil, err
	}

	name, err := s.parties.TransporterName(ctx, actor.TransporterID)
	if err != nil {
		s.log.WithError(err).Warn("transporter name lookup failed")
	}
	s.board.Update(loadID, actor.TransporterID, name, comment, rate, attempts+1, event.CreatedAt)

	s.broadcastBoard(load, "rate_accepted")
	s.notifyShipper(ctx, load, name, rate)

	triesLeft := 0
	if load.MaxTries > 0 {
		triesLeft = load.MaxTries - (attempts + 1)
	}
	return &SubmitResult{
		LoadID:        loadID,
		Rate:          rate,
		AttemptNumber: attempts + 1,
		Position:      s.board.Position(loadID, actor.TransporterID),
		TriesLeft:     triesLeft,
	}, nil
}

// AcceptTerms records terms-and-conditions acceptance as a sentinel
// ledger row. Accepting twice is a no-op.
func (s *BidService) AcceptTerms(ctx context.Context, actor models.Actor, loadID string) error {
	if actor.TransporterID == "" {
		return models.NewValidationError("actor has no transporter")
	}
	load, err := s.loads.GetByLoadID(ctx, loadID)
	if err != nil {
		return err
	}
	if load.Status.Terminal() {
		return models.NewRuleViolation("load is no longer open", string(load.Status))
	}

	accepted, err := s.events.HasAcceptedTerms(ctx, loadID, actor.TransporterID)
	if err != nil {
		return err
	}
	if accepted {
		return nil
	}

	event := &models.BidEvent{
		LoadID:        loadID,
		TransporterID: actor.TransporterID,
		Rate:          models.TermsAcceptedRate,
		TermsAccepted: true,
		CreatedBy:     actor.UserID,
	}
	return s.events.Append(ctx, event)
}

// LowestSummary is the "where do I stand" read for a transporter.
type LowestSummary struct {
	LoadID      string   `json:"loadID"`
	LowestRate  *float64 `json:"lowestRate,omitempty"`
	OwnLowest   *float64 `json:"ownLowest,omitempty"`
	Position    int      `json:"position"`
	TriesUsed   int      `json:"triesUsed"`
	MaxTries    int      `json:"maxTries"`
	ShowsLowest bool     `json:"showsLowest"`
}

func (s *BidService) Lowest(ctx context.Context, actor models.Actor, loadID string) (*LowestSummary, error) {
	load, err := s.loads.GetByLoadID(ctx, loadID)
	if err != nil {
		return nil, err
	}

	summary := &LowestSummary{
		LoadID:      loadID,
		MaxTries:    load.MaxTries,
		ShowsLowest: load.ShowLowestRate && load.Status.AcceptsBids(),
	}

	if actor.TransporterID != "" {
		summary.TriesUsed, err = s.events.CountAttempts(ctx, loadID, actor.TransporterID)
		if err != nil {
			return nil, err
		}
		if own, ok, err := s.ownLowest(ctx, load, actor.TransporterID); err != nil {
			return nil, err
		} else if ok {
			summary.OwnLowest = &own
		}
		summary.Position = s.board.Position(loadID, actor.TransporterID)
	}

	if summary.ShowsLowest {
		if lowest, ok, err := s.globalLowest(ctx, load); err != nil {
			return nil, err
		} else if ok {
			summary.LowestRate = &lowest
		}
	}
	return summary, nil
}

// RateHistoryItem is one row of a transporter's rate timeline, merging
// ledger submissions with negotiation steps from the assignment record.
type RateHistoryItem struct {
	Kind    string    `json:"kind"`
	Rate    float64   `json:"rate"`
	Comment string    `json:"comment,omitempty"`
	Attempt int       `json:"attempt,omitempty"`
	At      time.Time `json:"at"`
}

func (s *BidService) RateHistory(ctx context.Context, actor models.Actor, loadID string, assignments store.AssignmentStore) ([]RateHistoryItem, error) {
	if actor.TransporterID == "" {
		return nil, models.NewValidationError("actor has no transporter")
	}
	if _, err := s.loads.GetByLoadID(ctx, loadID); err != nil {
		return nil, err
	}

	events, err := s.events.ListForTransporter(ctx, loadID, actor.TransporterID)
	if err != nil {
		return nil, err
	}

	items := make([]RateHistoryItem, 0, len(events))
	for _, ev := range events {
		items = append(items, RateHistoryItem{
			Kind:    "bid",
			Rate:    ev.Rate,
			Comment: ev.Comment,
			Attempt: ev.AttemptNumber,
			At:      ev.CreatedAt,
		})
	}

	rec, err := assignments.Get(ctx, loadID, actor.TransporterID)
	if err != nil {
		if models.AsAppError(err).Kind == models.ErrNotFound {
			return items, nil
		}
		return nil, err
	}
	for _, ev := range rec.HistoryNewestFirst() {
		if ev.Kind.UserFacing() {
			continue
		}
		items = append(items, RateHistoryItem{
			Kind: string(ev.Kind),
			Rate: ev.Value,
			At:   ev.At,
		})
	}
	return items, nil
}

// RebuildBoard restores a load's leaderboard from the ledger, used on
// startup for loads that are still live.
func (s *BidService) RebuildBoard(ctx context.Context, loadID string) error {
	events, err := s.events.ListRates(ctx, loadID)
	if err != nil {
		return err
	}
	names := make(map[string]string)
	for _, ev := range events {
		if _, ok := names[ev.TransporterID]; ok {
			continue
		}
		name, err := s.parties.TransporterName(ctx, ev.TransporterID)
		if err != nil {
			return err
		}
		names[ev.TransporterID] = name
	}
	s.board.Rebuild(loadID, events, names)
	return nil
}

func checkBiddingWindow(load *models.Load, now time.Time) error {
	if !load.Status.AcceptsBids() {
		if now.Before(load.BidTime) {
			return models.NewRuleViolation("bidding has not opened yet", load.BidTime)
		}
		return models.NewRuleViolation("bidding is closed", load.EffectiveEndTime())
	}
	if !now.Before(load.EffectiveEndTime()) {
		return models.NewRuleViolation("bidding is closed", load.EffectiveEndTime())
	}
	return nil
}

func (s *BidService) checkEligibility(ctx context.Context, load *models.Load, transporterID string) error {
	blacklisted, err := s.parties.IsBlacklisted(ctx, load.ShipperID, transporterID)
	if err != nil {
		return err
	}
	if blacklisted {
		return models.NewRuleViolation("transporter is blocked for this shipper", nil)
	}
	if load.Mode == models.ModePrivatePool {
		mapped, err := s.parties.IsMapped(ctx, load.ShipperID, transporterID)
		if err != nil {
			return err
		}
		if !mapped {
			return models.NewRuleViolation("transporter is not part of this shipper's network", nil)
		}
	}
	return nil
}

// checkDecrement enforces the minimum undercut against the reference
// price. Step arithmetic runs on decimals so a 10% step off 950 is
// exactly 95, not 94.999....
func (s *BidService) checkDecrement(ctx context.Context, load *models.Load, transporterID string, rate float64) error {
	reference, haveBids, err := s.referencePrice(ctx, load, transporterID)
	if err != nil {
		return err
	}

	rateD := decimal.NewFromFloat(rate)
	if !haveBids {
		// First bid against the base price only has to meet it.
		base := decimal.NewFromFloat(load.BasePrice)
		if rateD.GreaterThan(base) {
			return models.NewRuleViolation(
				fmt.Sprintf("rate must not exceed the base price of %s", base.String()),
				load.BasePrice,
			)
		}
		return nil
	}

	refD := decimal.NewFromFloat(reference)
	var step decimal.Decimal
	unit := ""
	if load.DecrementIsPercent {
		step = refD.Mul(decimal.NewFromFloat(load.Decrement)).Div(decimal.NewFromInt(100))
		unit = "%"
	} else {
		step = decimal.NewFromFloat(load.Decrement)
	}
	ceiling := refD.Sub(step)
	if rateD.GreaterThan(ceiling) {
		ceilingF, _ := ceiling.Float64()
		return models.NewRuleViolation(
			fmt.Sprintf("rate must be %s or lower, the minimum decrement is %s%s",
				ceiling.String(), decimal.NewFromFloat(load.Decrement).String(), unit),
			DecrementThreshold{
				Ceiling:   ceilingF,
				Decrement: load.Decrement,
				IsPercent: load.DecrementIsPercent,
			},
		)
	}
	return nil
}

// DecrementThreshold is the payload of a decrement rejection: the
// highest acceptable rate plus the configured step that produced it.
type DecrementThreshold struct {
	Ceiling   float64 `json:"ceiling"`
	Decrement float64 `json:"decrement"`
	IsPercent bool    `json:"isPercent"`
}

// referencePrice picks the price the next rate must undercut. Reads the
// ledger, not the board: validation must see committed data only.
func (s *BidService) referencePrice(ctx context.Context, load *models.Load, transporterID string) (float64, bool, error) {
	if load.ShowLowestRate && load.Status.AcceptsBids() {
		return s.events.LowestRate(ctx, load.LoadID)
	}
	return s.events.LowestRateForTransporter(ctx, load.LoadID, transporterID)
}

func (s *BidService) ownLowest(ctx context.Context, load *models.Load, transporterID string) (float64, bool, error) {
	return s.events.LowestRateForTransporter(ctx, load.LoadID, transporterID)
}

func (s *BidService) globalLowest(ctx context.Context, load *models.Load) (float64, bool, error) {
	if entry, ok := s.board.Lowest(load.LoadID); ok {
		return entry.Rate, true, nil
	}
	return s.events.LowestRate(ctx, load.LoadID)
}

func (s *BidService) broadcastBoard(load *models.Load, event string) {
	update := BoardUpdate{
		Event:  event,
		LoadID: load.LoadID,
		Status: load.Status,
		Board:  s.board.Snapshot(load.LoadID),
	}
	if load.ShowLowestRate {
		if entry, ok := s.board.Lowest(load.LoadID); ok {
			rate := entry.Rate
			update.LowestRate = &rate
		}
	}
	s.hub.Broadcast(load.LoadID, update)
}

func (s *BidService) notifyShipper(ctx context.Context, load *models.Load, transporterName string, rate float64) {
	receivers, err := s.parties.UserIDsForShipper(ctx, load.ShipperID)
	if err != nil {
		s.log.WithError(err).Warn("shipper receiver lookup failed")
		return
	}
	s.sink.Dispatch(notify.Message{
		ReceiverIDs: receivers,
		Text:        fmt.Sprintf("%s quoted %.2f on load %s", transporterName, rate, load.LoadID),
		Category:    notify.CategoryBid,
		DeepLink:    "/loads/" + load.LoadID,
	})
}
