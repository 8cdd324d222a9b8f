// server/internal/auction/negotiation_test.go
package auction

import (
	"context"
	"testing"
	"time"

	"github.com/freightbid/bidding-api/internal/models"

	"github.com/peterldowns/testy/check"
)

func pendingLoad(loadID, shipperID string, fleets int, now time.Time) *models.Load {
	return &models.Load{
		LoadID:            loadID,
		ShipperID:         shipperID,
		Mode:              models.ModeOpenMarket,
		Status:            models.StatusPending,
		BidTime:           now.Add(-2 * time.Hour),
		BidEndTime:        now.Add(-time.Hour),
		BasePrice:         1000,
		Decrement:         50,
		NoOfFleets:        fleets,
		PriceMatchMinutes: 30,
	}
}

func seedBid(t *testing.T, env *testEnv, loadID, transporterID string, rate float64, at time.Time) {
	t.Helper()
	err := env.events.Append(context.Background(), &models.BidEvent{
		LoadID:        loadID,
		TransporterID: transporterID,
		Rate:          rate,
		AttemptNumber: 1,
		CreatedAt:     at,
	})
	check.Nil(t, err)
}

func TestAssign_DefaultsToLowestQuote(t *testing.T) {
	env := newTestEnv()
	now := time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC)
	env.setNow(now)
	env.addLoad(pendingLoad("LOAD-1", "SHP-1", 1, now))
	seedBid(t, env, "LOAD-1", "TRN-A", 950, now.Add(-90*time.Minute))
	seedBid(t, env, "LOAD-1", "TRN-B", 880, now.Add(-80*time.Minute))

	ctx := context.Background()
	rec, err := env.negotiation.Assign(ctx, shipperActor("SHP-1"), "LOAD-1", "TRN-B", 1, nil)
	check.Nil(t, err)
	check.True(t, rec.IsAssigned())
	check.Equal(t, 880.0, *rec.Price)
	check.Equal(t, "L1", rec.RankInBid)
	check.Equal(t, models.EventAssign, rec.History[len(rec.History)-1].Kind)

	load, err := env.loads.GetByLoadID(ctx, "LOAD-1")
	check.Nil(t, err)
	check.Equal(t, models.StatusConfirmed, load.Status)
}

func TestAssign_RequiresABid(t *testing.T) {
	env := newTestEnv()
	now := time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC)
	env.setNow(now)
	env.addLoad(pendingLoad("LOAD-1", "SHP-1", 1, now))

	_, err := env.negotiation.Assign(context.Background(), shipperActor("SHP-1"), "LOAD-1", "TRN-X", 1, nil)
	check.NotNil(t, err)
	check.Equal(t, models.ErrRuleViolation, models.AsAppError(err).Kind)
}

func TestAssign_PartialFulfilment(t *testing.T) {
	env := newTestEnv()
	now := time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC)
	env.setNow(now)
	env.addLoad(pendingLoad("LOAD-1", "SHP-1", 3, now))
	seedBid(t, env, "LOAD-1", "TRN-A", 950, now.Add(-90*time.Minute))

	ctx := context.Background()
	_, err := env.negotiation.Assign(ctx, shipperActor("SHP-1"), "LOAD-1", "TRN-A", 2, nil)
	check.Nil(t, err)

	load, err := env.loads.GetByLoadID(ctx, "LOAD-1")
	check.Nil(t, err)
	check.Equal(t, models.StatusPartiallyConfirmed, load.Status)
}

func TestUnassign_RevertsFulfilment(t *testing.T) {
	env := newTestEnv()
	now := time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC)
	env.setNow(now)
	env.addLoad(pendingLoad("LOAD-1", "SHP-1", 2, now))
	seedBid(t, env, "LOAD-1", "TRN-A", 950, now.Add(-90*time.Minute))
	seedBid(t, env, "LOAD-1", "TRN-B", 900, now.Add(-80*time.Minute))

	ctx := context.Background()
	shipper := shipperActor("SHP-1")
	_, err := env.negotiation.Assign(ctx, shipper, "LOAD-1", "TRN-A", 1, nil)
	check.Nil(t, err)
	_, err = env.negotiation.Assign(ctx, shipper, "LOAD-1", "TRN-B", 1, nil)
	check.Nil(t, err)

	load, err := env.loads.GetByLoadID(ctx, "LOAD-1")
	check.Nil(t, err)
	check.Equal(t, models.StatusConfirmed, load.Status)

	check.Nil(t, env.negotiation.Unassign(ctx, shipper, "LOAD-1", "TRN-A", "fleet breakdown"))
	load, err = env.loads.GetByLoadID(ctx, "LOAD-1")
	check.Nil(t, err)
	check.Equal(t, models.StatusPartiallyConfirmed, load.Status)

	check.Nil(t, env.negotiation.Unassign(ctx, shipper, "LOAD-1", "TRN-B", "shipment re-planned"))
	load, err = env.loads.GetByLoadID(ctx, "LOAD-1")
	check.Nil(t, err)
	check.Equal(t, models.StatusPending, load.Status)

	rec, err := env.assignments.Get(ctx, "LOAD-1", "TRN-A")
	check.Nil(t, err)
	check.True(t, !rec.IsAssigned())
	check.Equal(t, "fleet breakdown", rec.UnassignmentReason)
}

func TestPriceMatch_ApproveWithinWindow(t *testing.T) {
	env := newTestEnv()
	now := time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC)
	env.setNow(now)
	env.addLoad(pendingLoad("LOAD-1", "SHP-1", 1, now))
	seedBid(t, env, "LOAD-1", "TRN-A", 950, now.Add(-90*time.Minute))

	ctx := context.Background()
	rec, err := env.negotiation.RequestPriceMatch(ctx, shipperActor("SHP-1"), "LOAD-1", "TRN-A", 900, "match the market")
	check.Nil(t, err)
	check.NotNil(t, rec.PMRequestedAt)
	check.Equal(t, 900.0, *rec.PMPrice)

	env.setNow(now.Add(10 * time.Minute))
	rec, err = env.negotiation.Respond(ctx, transporterActor("TRN-A"), "LOAD-1", ResponseApprove, 0)
	check.Nil(t, err)
	check.True(t, rec.PriceMatchAccepted())
	check.Equal(t, 900.0, *rec.Price)

	// An accepted slot cannot be asked again.
	_, err = env.negotiation.RequestPriceMatch(ctx, shipperActor("SHP-1"), "LOAD-1", "TRN-A", 850, "")
	check.NotNil(t, err)
	check.Equal(t, models.ErrRuleViolation, models.AsAppError(err).Kind)
}

func TestPriceMatch_WindowExpires(t *testing.T) {
	env := newTestEnv()
	now := time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC)
	env.setNow(now)
	env.addLoad(pendingLoad("LOAD-1", "SHP-1", 1, now))
	seedBid(t, env, "LOAD-1", "TRN-A", 950, now.Add(-90*time.Minute))

	ctx := context.Background()
	_, err := env.negotiation.RequestPriceMatch(ctx, shipperActor("SHP-1"), "LOAD-1", "TRN-A", 900, "")
	check.Nil(t, err)

	env.setNow(now.Add(31 * time.Minute))
	_, err = env.negotiation.Respond(ctx, transporterActor("TRN-A"), "LOAD-1", ResponseApprove, 0)
	check.NotNil(t, err)
	ae := models.AsAppError(err)
	check.Equal(t, models.ErrRuleViolation, ae.Kind)
	check.Equal(t, now.Add(30*time.Minute), ae.Threshold.(time.Time))
}

func TestPriceMatch_CounterBoundedByHistory(t *testing.T) {
	env := newTestEnv()
	now := time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC)
	env.setNow(now)
	env.addLoad(pendingLoad("LOAD-1", "SHP-1", 1, now))
	seedBid(t, env, "LOAD-1", "TRN-A", 950, now.Add(-90*time.Minute))

	ctx := context.Background()
	shipper := shipperActor("SHP-1")
	trn := transporterActor("TRN-A")

	_, err := env.negotiation.RequestPriceMatch(ctx, shipper, "LOAD-1", "TRN-A", 900, "")
	check.Nil(t, err)

	// A counter above the transporter's own lowest quote is refused.
	_, err = env.negotiation.Respond(ctx, trn, "LOAD-1", ResponseCounter, 960)
	check.NotNil(t, err)
	check.Equal(t, 950.0, models.AsAppError(err).Threshold.(float64))

	rec, err := env.negotiation.Respond(ctx, trn, "LOAD-1", ResponseCounter, 940)
	check.Nil(t, err)
	check.Equal(t, 940.0, *rec.Price)
	check.True(t, rec.PMRequestedAt == nil)

	// The next round is bounded by the already negotiated 940.
	_, err = env.negotiation.RequestPriceMatch(ctx, shipper, "LOAD-1", "TRN-A", 900, "")
	check.Nil(t, err)
	_, err = env.negotiation.Respond(ctx, trn, "LOAD-1", ResponseCounter, 945)
	check.NotNil(t, err)
	check.Equal(t, 940.0, models.AsAppError(err).Threshold.(float64))
}

func TestPriceMatch_RejectRevertsToNegotiatedValue(t *testing.T) {
	env := newTestEnv()
	now := time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC)
	env.setNow(now)
	env.addLoad(pendingLoad("LOAD-1", "SHP-1", 1, now))
	seedBid(t, env, "LOAD-1", "TRN-A", 950, now.Add(-90*time.Minute))

	ctx := context.Background()
	shipper := shipperActor("SHP-1")
	trn := transporterActor("TRN-A")

	_, err := env.negotiation.RequestPriceMatch(ctx, shipper, "LOAD-1", "TRN-A", 900, "")
	check.Nil(t, err)
	rec, err := env.negotiation.Respond(ctx, trn, "LOAD-1", ResponseCounter, 940)
	check.Nil(t, err)
	check.Equal(t, 940.0, *rec.Price)

	_, err = env.negotiation.RequestPriceMatch(ctx, shipper, "LOAD-1", "TRN-A", 900, "")
	check.Nil(t, err)
	rec, err = env.negotiation.Respond(ctx, trn, "LOAD-1", ResponseReject, 0)
	check.Nil(t, err)
	check.Equal(t, 940.0, *rec.Price)
	check.True(t, rec.PMPrice == nil)
	check.True(t, rec.PMRequestedAt == nil)
	last := rec.History[len(rec.History)-1]
	check.Equal(t, models.EventPriceMatchRejected, last.Kind)
	check.Equal(t, 940.0, last.Value)
}

func TestPriceMatch_RejectWithoutNegotiationLeavesPrice(t *testing.T) {
	env := newTestEnv()
	now := time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC)
	env.setNow(now)
	env.addLoad(pendingLoad("LOAD-1", "SHP-1", 1, now))

	// The slot exists only through the request; the transporter never
	// quoted, and rejecting must still work without touching the price.
	ctx := context.Background()
	_, err := env.negotiation.RequestPriceMatch(ctx, shipperActor("SHP-1"), "LOAD-1", "TRN-A", 900, "")
	check.Nil(t, err)

	rec, err := env.negotiation.Respond(ctx, transporterActor("TRN-A"), "LOAD-1", ResponseReject, 0)
	check.Nil(t, err)
	check.True(t, rec.Price == nil)
	check.True(t, rec.PMPrice == nil)
	check.True(t, rec.PMRequestedAt == nil)
	check.Equal(t, models.EventPriceMatchRejected, rec.History[len(rec.History)-1].Kind)
}

func TestPriceMatch_WindowSharedAcrossBidders(t *testing.T) {
	env := newTestEnv()
	now := time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC)
	env.setNow(now)
	env.addLoad(pendingLoad("LOAD-1", "SHP-1", 2, now))
	seedBid(t, env, "LOAD-1", "TRN-A", 950, now.Add(-90*time.Minute))
	seedBid(t, env, "LOAD-1", "TRN-B", 940, now.Add(-80*time.Minute))

	ctx := context.Background()
	shipper := shipperActor("SHP-1")

	// The window opens with the first request on the load; a bidder
	// asked 20 minutes later shares the same deadline.
	_, err := env.negotiation.RequestPriceMatch(ctx, shipper, "LOAD-1", "TRN-A", 900, "")
	check.Nil(t, err)
	env.setNow(now.Add(20 * time.Minute))
	_, err = env.negotiation.RequestPriceMatch(ctx, shipper, "LOAD-1", "TRN-B", 890, "")
	check.Nil(t, err)

	env.setNow(now.Add(35 * time.Minute))
	_, err = env.negotiation.Respond(ctx, transporterActor("TRN-B"), "LOAD-1", ResponseApprove, 0)
	check.NotNil(t, err)
	ae := models.AsAppError(err)
	check.Equal(t, models.ErrRuleViolation, ae.Kind)
	check.Equal(t, now.Add(30*time.Minute), ae.Threshold.(time.Time))
}

func TestPriceMatch_SuperuserNegotiatesDirectly(t *testing.T) {
	env := newTestEnv()
	now := time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC)
	env.setNow(now)
	env.addLoad(pendingLoad("LOAD-1", "SHP-1", 1, now))
	seedBid(t, env, "LOAD-1", "TRN-A", 950, now.Add(-90*time.Minute))

	rec, err := env.negotiation.RequestPriceMatch(context.Background(), operatorActor(), "LOAD-1", "TRN-A", 880, "agreed on phone")
	check.Nil(t, err)
	check.Equal(t, 880.0, *rec.Price)
	check.True(t, rec.PriceMatchAccepted())
	check.True(t, rec.NegotiatedByOperator)
	check.Equal(t, models.EventSuperuserNegotiation, rec.History[len(rec.History)-1].Kind)
}

func TestPriceMatch_RespondWithoutRequest(t *testing.T) {
	env := newTestEnv()
	now := time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC)
	env.setNow(now)
	env.addLoad(pendingLoad("LOAD-1", "SHP-1", 1, now))
	rec := &models.AssignmentRecord{LoadID: "LOAD-1", TransporterID: "TRN-A"}
	check.Nil(t, env.assignments.Insert(context.Background(), rec))

	_, err := env.negotiation.Respond(context.Background(), transporterActor("TRN-A"), "LOAD-1", ResponseApprove, 0)
	check.NotNil(t, err)
	check.Equal(t, models.ErrRuleViolation, models.AsAppError(err).Kind)
}

func TestRequestPriceMatch_NotAssignable(t *testing.T) {
	env := newTestEnv()
	now := time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC)
	env.setNow(now)
	load := pendingLoad("LOAD-1", "SHP-1", 1, now)
	load.Status = models.StatusLive
	env.addLoad(load)

	_, err := env.negotiation.RequestPriceMatch(context.Background(), shipperActor("SHP-1"), "LOAD-1", "TRN-A", 900, "")
	check.NotNil(t, err)
	check.Equal(t, models.ErrRuleViolation, models.AsAppError(err).Kind)
}

func TestAssignmentHistory_UserFacingOnly(t *testing.T) {
	env := newTestEnv()
	now := time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC)
	env.setNow(now)
	env.addLoad(pendingLoad("LOAD-1", "SHP-1", 2, now))
	seedBid(t, env, "LOAD-1", "TRN-A", 950, now.Add(-90*time.Minute))
	env.parties.names["TRN-A"] = "Alpha Logistics"

	ctx := context.Background()
	shipper := shipperActor("SHP-1")
	_, err := env.negotiation.Assign(ctx, shipper, "LOAD-1", "TRN-A", 1, nil)
	check.Nil(t, err)
	env.setNow(now.Add(5 * time.Minute))
	_, err = env.negotiation.RequestPriceMatch(ctx, shipper, "LOAD-1", "TRN-A", 900, "")
	check.Nil(t, err)
	env.setNow(now.Add(10 * time.Minute))
	check.Nil(t, env.negotiation.Unassign(ctx, shipper, "LOAD-1", "TRN-A", "re-planned"))

	items, err := env.negotiation.AssignmentHistory(ctx, shipper, "LOAD-1")
	check.Nil(t, err)
	check.Equal(t, 2, len(items))
	check.Equal(t, string(models.EventUnassign), items[0].Event)
	check.Equal(t, string(models.EventAssign), items[1].Event)
	check.Equal(t, "Alpha Logistics", items[0].TransporterName)
}
