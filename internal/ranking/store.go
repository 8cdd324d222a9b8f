// server/internal/ranking/store.go
package ranking

import (
	"sort"
	"sync"
	"time"

	"github.com/freightbid/bidding-api/internal/models"
)

// Entry is one transporter's best standing in a live auction.
type Entry struct {
	TransporterID   string  `json:"transporterID"`
	TransporterName string  `json:"transporterName"`
	Comment         string  `json:"comment,omitempty"`
	Rate            float64 `json:"rate"`
	Attempts        int     `json:"attempts"`

	score float64
}

// score blends the rate with the submission instant so that of two equal
// rates the earlier one sorts first. The time fraction is far below any
// realistic rate granularity.
func scoreOf(rate float64, at time.Time) float64 {
	return rate + float64(at.Unix())/1e10
}

// Store keeps the live leaderboard per load. It is a projection over the
// bid ledger: losing it costs nothing, Rebuild restores it from events.
type Store struct {
	mu    sync.RWMutex
	board map[string]map[string]Entry
}

func NewStore() *Store {
	return &Store{board: make(map[string]map[string]Entry)}
}

// Update records a transporter's submission. A higher rate than the
// transporter's current best never displaces it.
func (s *Store) Update(loadID, transporterID, transporterName, comment string, rate float64, attempts int, at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, ok := s.board[loadID]
	if !ok {
		entries = make(map[string]Entry)
		s.board[loadID] = entries
	}

	next := Entry{
		TransporterID:   transporterID,
		TransporterName: transporterName,
		Comment:         comment,
		Rate:            rate,
		Attempts:        attempts,
		score:           scoreOf(rate, at),
	}
	if current, ok := entries[transporterID]; ok {
		if next.score >= current.score {
			current.Attempts = attempts
			entries[transporterID] = current
			return
		}
	}
	entries[transporterID] = next
}

// Snapshot returns the leaderboard sorted best-first.
func (s *Store) Snapshot(loadID string) []Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entries := s.board[loadID]
	out := make([]Entry, 0, len(entries))
	for _, e := range entries {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].score < out[j].score })
	return out
}

// Position returns the transporter's 1-based rank, or 0 when absent.
func (s *Store) Position(loadID, transporterID string) int {
	for i, e := range s.Snapshot(loadID) {
		if e.TransporterID == transporterID {
			return i + 1
		}
	}
	return 0
}

// Lowest returns the best rate on the board.
func (s *Store) Lowest(loadID string) (Entry, bool) {
	snapshot := s.Snapshot(loadID)
	if len(snapshot) == 0 {
		return Entry{}, false
	}
	return snapshot[0], true
}

func (s *Store) LowestFor(loadID, transporterID string) (Entry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.board[loadID][transporterID]
	return e, ok
}

// Drop discards a load's board, typically once the auction closes.
func (s *Store) Drop(loadID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.board, loadID)
}

// Rebuild reconstructs one load's board from its ledger events, oldest
// first. Sentinel terms-acceptance rows are skipped.
func (s *Store) Rebuild(loadID string, events []models.BidEvent, names map[string]string) {
	s.Drop(loadID)
	ordered := make([]models.BidEvent, len(events))
	copy(ordered, events)
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].CreatedAt.Before(ordered[j].CreatedAt) })

	attempts := make(map[string]int)
	for _, ev := range ordered {
		if ev.Rate <= 0 {
			continue
		}
		attempts[ev.TransporterID]++
		s.Update(loadID, ev.TransporterID, names[ev.TransporterID], ev.Comment, ev.Rate, attempts[ev.TransporterID], ev.CreatedAt)
	}
}
