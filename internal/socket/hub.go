// server/internal/socket/hub.go
package socket

import (
	"encoding/json"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

const sendBuffer = 16

// subscriber owns one websocket connection. Writes go through a buffered
// channel drained by a single goroutine so the hub never blocks on a
// slow peer.
type subscriber struct {
	userID string
	conn   *websocket.Conn
	send   chan []byte
	once   sync.Once
}

func (s *subscriber) close() {
	s.once.Do(func() {
		close(s.send)
	})
}

func (s *subscriber) writeLoop() {
	for message := range s.send {
		if err := s.conn.WriteMessage(websocket.TextMessage, message); err != nil {
			logrus.WithError(err).WithField("userID", s.userID).Debug("websocket write failed")
			return
		}
	}
}

// Hub fans auction updates out to per-load rooms.
type Hub struct {
	mu    sync.RWMutex
	rooms map[string]map[*subscriber]bool
	log   *logrus.Logger
}

func NewHub(log *logrus.Logger) *Hub {
	return &Hub{
		rooms: make(map[string]map[*subscriber]bool),
		log:   log,
	}
}

// Subscribe joins conn to the load's room and returns an unsubscribe func.
func (h *Hub) Subscribe(loadID, userID string, conn *websocket.Conn) func() {
	sub := &subscriber{userID: userID, conn: conn, send: make(chan []byte, sendBuffer)}
	go sub.writeLoop()

	h.mu.Lock()
	room, ok := h.rooms[loadID]
	if !ok {
		room = make(map[*subscriber]bool)
		h.rooms[loadID] = room
	}
	room[sub] = true
	h.mu.Unlock()

	h.log.WithFields(logrus.Fields{"loadID": loadID, "userID": userID}).Info("websocket subscriber joined")

	return func() {
		h.mu.Lock()
		if room, ok := h.rooms[loadID]; ok {
			delete(room, sub)
			if len(room) == 0 {
				delete(h.rooms, loadID)
			}
		}
		h.mu.Unlock()
		sub.close()
		h.log.WithFields(logrus.Fields{"loadID": loadID, "userID": userID}).Info("websocket subscriber left")
	}
}

// Broadcast sends payload to every subscriber of the load. Best effort:
// a subscriber whose buffer is full misses this update.
func (h *Hub) Broadcast(loadID string, payload interface{}) {
	message, err := json.Marshal(payload)
	if err != nil {
		h.log.WithError(err).Error("marshal broadcast payload")
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for sub := range h.rooms[loadID] {
		select {
		case sub.send <- message:
		default:
			h.log.WithField("userID", sub.userID).Debug("subscriber buffer full, dropping update")
		}
	}
}
