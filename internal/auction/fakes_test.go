// server/internal/auction/fakes_test.go
package auction

import (
	"context"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/freightbid/bidding-api/internal/models"
	"github.com/freightbid/bidding-api/internal/notify"
	"github.com/freightbid/bidding-api/internal/ranking"
	"github.com/freightbid/bidding-api/internal/socket"

	"github.com/sirupsen/logrus"
)

type fakeLoadStore struct {
	mu    sync.Mutex
	loads map[string]*models.Load
	gets  int
	onGet func(count int, load *models.Load)
}

func newFakeLoadStore() *fakeLoadStore {
	return &fakeLoadStore{loads: make(map[string]*models.Load)}
}

func (f *fakeLoadStore) Insert(ctx context.Context, load *models.Load) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	load.CreatedAt = time.Now()
	cp := *load
	f.loads[load.LoadID] = &cp
	return nil
}

func (f *fakeLoadStore) GetByLoadID(ctx context.Context, loadID string) (*models.Load, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	load, ok := f.loads[loadID]
	if !ok || !load.IsActive {
		return nil, models.NewNotFoundError("load not found")
	}
	f.gets++
	if f.onGet != nil {
		f.onGet(f.gets, load)
	}
	cp := *load
	return &cp, nil
}

func (f *fakeLoadStore) ListByShipper(ctx context.Context, shipperID string, statuses []models.LoadStatus) ([]models.Load, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Load
	for _, load := range f.loads {
		if load.ShipperID != shipperID || !load.IsActive {
			continue
		}
		if len(statuses) > 0 && !containsStatus(statuses, load.Status) {
			continue
		}
		out = append(out, *load)
	}
	return out, nil
}

func (f *fakeLoadStore) ListActiveByStatus(ctx context.Context, statuses ...models.LoadStatus) ([]models.Load, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Load
	for _, load := range f.loads {
		if load.IsActive && containsStatus(statuses, load.Status) {
			out = append(out, *load)
		}
	}
	return out, nil
}

func (f *fakeLoadStore) UpdateStatusWhere(ctx context.Context, loadID string, from []models.LoadStatus, to models.LoadStatus, set map[string]interface{}) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	load, ok := f.loads[loadID]
	if !ok || !load.IsActive || !containsStatus(from, load.Status) {
		return false, nil
	}
	load.Status = to
	load.UpdatedAt = time.Now()
	if reason, ok := set["cancellationReason"].(string); ok {
		load.CancellationReason = reason
	}
	if reason, ok := set["completionReason"].(string); ok {
		load.CompletionReason = reason
	}
	return true, nil
}

func containsStatus(statuses []models.LoadStatus, s models.LoadStatus) bool {
	for _, candidate := range statuses {
		if candidate == s {
			return true
		}
	}
	return false
}

type fakeBidEventStore struct {
	mu     sync.Mutex
	events []models.BidEvent
}

func (f *fakeBidEventStore) Append(ctx context.Context, event *models.BidEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now()
	}
	f.events = append(f.events, *event)
	return nil
}

func (f *fakeBidEventStore) CountAttempts(ctx context.Context, loadID, transporterID string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	count := 0
	for _, ev := range f.events {
		if ev.LoadID == loadID && ev.TransporterID == transporterID && ev.Rate > 0 {
			count++
		}
	}
	return count, nil
}

func (f *fakeBidEventStore) LowestRate(ctx context.Context, loadID string) (float64, bool, error) {
	return f.lowest(func(ev models.BidEvent) bool { return ev.LoadID == loadID })
}

func (f *fakeBidEventStore) LowestRateForTransporter(ctx context.Context, loadID, transporterID string) (float64, bool, error) {
	return f.lowest(func(ev models.BidEvent) bool {
		return ev.LoadID == loadID && ev.TransporterID == transporterID
	})
}

func (f *fakeBidEventStore) lowest(match func(models.BidEvent) bool) (float64, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	best, found := 0.0, false
	for _, ev := range f.events {
		if ev.Rate <= 0 || !match(ev) {
			continue
		}
		if !found || ev.Rate < best {
			best, found = ev.Rate, true
		}
	}
	return best, found, nil
}

func (f *fakeBidEventStore) ListForTransporter(ctx context.Context, loadID, transporterID string) ([]models.BidEvent, error) {
	return f.list(func(ev models.BidEvent) bool {
		return ev.LoadID == loadID && ev.TransporterID == transporterID && ev.Rate > 0
	})
}

func (f *fakeBidEventStore) ListRates(ctx context.Context, loadID string) ([]models.BidEvent, error) {
	return f.list(func(ev models.BidEvent) bool { return ev.LoadID == loadID && ev.Rate > 0 })
}

func (f *fakeBidEventStore) list(match func(models.BidEvent) bool) ([]models.BidEvent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.BidEvent
	for _, ev := range f.events {
		if match(ev) {
			out = append(out, ev)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (f *fakeBidEventStore) HasAcceptedTerms(ctx context.Context, loadID, transporterID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, ev := range f.events {
		if ev.LoadID == loadID && ev.TransporterID == transporterID && ev.TermsAccepted {
			return true, nil
		}
	}
	return false, nil
}

type fakeAssignmentStore struct {
	mu   sync.Mutex
	recs map[string]*models.AssignmentRecord
}

func newFakeAssignmentStore() *fakeAssignmentStore {
	return &fakeAssignmentStore{recs: make(map[string]*models.AssignmentRecord)}
}

func assignmentKey(loadID, transporterID string) string {
	return loadID + "/" + transporterID
}

func (f *fakeAssignmentStore) Get(ctx context.Context, loadID, transporterID string) (*models.AssignmentRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	rec, ok := f.recs[assignmentKey(loadID, transporterID)]
	if !ok {
		return nil, models.NewNotFoundError("assignment record not found")
	}
	cp := *rec
	cp.History = append([]models.AssignmentEvent(nil), rec.History...)
	return &cp, nil
}

func (f *fakeAssignmentStore) ListByLoad(ctx context.Context, loadID string) ([]models.AssignmentRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.AssignmentRecord
	for _, rec := range f.recs {
		if rec.LoadID == loadID {
			out = append(out, *rec)
		}
	}
	return out, nil
}

func (f *fakeAssignmentStore) Insert(ctx context.Context, rec *models.AssignmentRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	rec.CreatedAt = time.Now()
	cp := *rec
	f.recs[assignmentKey(rec.LoadID, rec.TransporterID)] = &cp
	return nil
}

func (f *fakeAssignmentStore) Replace(ctx context.Context, rec *models.AssignmentRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := assignmentKey(rec.LoadID, rec.TransporterID)
	if _, ok := f.recs[key]; !ok {
		return models.NewNotFoundError("assignment record not found")
	}
	rec.UpdatedAt = time.Now()
	cp := *rec
	cp.History = append([]models.AssignmentEvent(nil), rec.History...)
	f.recs[key] = &cp
	return nil
}

type fakePartyStore struct {
	mapped      map[string]bool
	blacklisted map[string]bool
	names       map[string]string
}

func newFakePartyStore() *fakePartyStore {
	return &fakePartyStore{
		mapped:      make(map[string]bool),
		blacklisted: make(map[string]bool),
		names:       make(map[string]string),
	}
}

func (f *fakePartyStore) IsMapped(ctx context.Context, shipperID, transporterID string) (bool, error) {
	return f.mapped[shipperID+"/"+transporterID], nil
}

func (f *fakePartyStore) IsBlacklisted(ctx context.Context, shipperID, transporterID string) (bool, error) {
	return f.blacklisted[shipperID+"/"+transporterID], nil
}

func (f *fakePartyStore) TransporterName(ctx context.Context, transporterID string) (string, error) {
	return f.names[transporterID], nil
}

func (f *fakePartyStore) UserIDsForShipper(ctx context.Context, shipperID string) ([]string, error) {
	return nil, nil
}

func (f *fakePartyStore) ManagerUserIDsForTransporter(ctx context.Context, transporterID string) ([]string, error) {
	return nil, nil
}

// testEnv bundles the fakes and services most tests need.
type testEnv struct {
	loads       *fakeLoadStore
	events      *fakeBidEventStore
	assignments *fakeAssignmentStore
	parties     *fakePartyStore
	board       *ranking.Store
	bids        *BidService
	lifecycle   *LifecycleService
	negotiation *NegotiationService
}

func newTestEnv() *testEnv {
	log := logrus.New()
	log.SetOutput(io.Discard)

	env := &testEnv{
		loads:       newFakeLoadStore(),
		events:      &fakeBidEventStore{},
		assignments: newFakeAssignmentStore(),
		parties:     newFakePartyStore(),
		board:       ranking.NewStore(),
	}
	hub := socket.NewHub(log)
	sink := notify.NewSink("http://localhost:0", time.Second, log)

	env.bids = NewBidService(env.loads, env.events, env.parties, env.board, hub, sink, log)
	env.lifecycle = NewLifecycleService(env.loads, env.assignments, env.parties, env.board, hub, sink, 12*time.Hour, log)
	env.negotiation = NewNegotiationService(env.loads, env.events, env.assignments, env.parties, env.lifecycle, sink, 30, log)
	return env
}

func (e *testEnv) setNow(now time.Time) {
	e.bids.nowFn = func() time.Time { return now }
	e.lifecycle.nowFn = func() time.Time { return now }
	e.negotiation.nowFn = func() time.Time { return now }
}

func (e *testEnv) addLoad(load *models.Load) {
	load.IsActive = true
	cp := *load
	e.loads.loads[load.LoadID] = &cp
}

func transporterActor(transporterID string) models.Actor {
	return models.Actor{UserID: "u-" + transporterID, Role: models.RoleTransporter, TransporterID: transporterID}
}

func shipperActor(shipperID string) models.Actor {
	return models.Actor{UserID: "u-" + shipperID, Role: models.RoleShipper, ShipperID: shipperID}
}

func operatorActor() models.Actor {
	return models.Actor{UserID: "u-ops", Role: models.RoleOperator, Superuser: true}
}
