package realtime

import (
	"encoding/json"
	"sync"

	"github.com/rs/zerolog/log"
)

// Hub tracks the clients connected to this instance, keyed by room.
type Hub struct {
	mu    sync.RWMutex
	rooms map[string]map[*Client]struct{}
}

// NewHub returns an empty hub.
func NewHub() *Hub {
	return &Hub{rooms: make(map[string]map[*Client]struct{})}
}

func (h *Hub) register(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	set, ok := h.rooms[c.roomID]
	if !ok {
		set = make(map[*Client]struct{})
		h.rooms[c.roomID] = set
	}
	set[c] = struct{}{}
	connections.Inc()
}

func (h *Hub) unregister(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	set, ok := h.rooms[c.roomID]
	if !ok {
		return
	}
	if _, ok := set[c]; !ok {
		return
	}
	delete(set, c)
	if len(set) == 0 {
		delete(h.rooms, c.roomID)
	}
	connections.Dec()
}

// Count returns the number of local clients in roomID.
func (h *Hub) Count(roomID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[roomID])
}

// Dispatch pushes ev to every addressed local client in its room. Clients
// whose buffer is full miss the frame.
func (h *Hub) Dispatch(ev Event) {
	raw, err := json.Marshal(frame{Type: ev.Type, RoomID: ev.RoomID, Data: ev.Data, At: ev.At})
	if err != nil {
		log.Error().Err(err).Str("type", string(ev.Type)).Msg("encode frame")
		return
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.rooms[ev.RoomID] {
		if !ev.addressedTo(c.userID) {
			continue
		}
		if c.enqueue(raw) {
			framesSent.WithLabelValues("sent").Inc()
		} else {
			framesSent.WithLabelValues("dropped").Inc()
			log.Warn().Str("room_id", ev.RoomID).Str("user_id", c.userID).Msg("client buffer full, frame dropped")
		}
	}
}
