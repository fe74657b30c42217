package realtime

import (
	"encoding/json"
	"log"
	"sync"
)

// RoomKey addresses a group of live sessions. Deriving it through UserRoom
// keeps user rooms in their own namespace.
type RoomKey string

func UserRoom(userID string) RoomKey {
	return RoomKey("user:" + userID)
}

// Event is the wire envelope pushed to clients.
type Event struct {
	Event string      `json:"event"`
	Data  interface{} `json:"data"`
}

// Hub maps rooms to the sessions currently joined. A user may hold zero, one
// or many sessions at once; emitting to an empty room is a silent no-op.
type Hub struct {
	mu    sync.RWMutex
	rooms map[RoomKey]map[*Session]struct{}
}

func NewHub() *Hub {
	return &Hub{
		rooms: make(map[RoomKey]map[*Session]struct{}),
	}
}

func (h *Hub) join(s *Session) {
	h.mu.Lock()
	defer h.mu.Unlock()
	members, ok := h.rooms[s.room]
	if !ok {
		members = make(map[*Session]struct{})
		h.rooms[s.room] = members
	}
	members[s] = struct{}{}
}

func (h *Hub) leave(s *Session) {
	h.mu.Lock()
	defer h.mu.Unlock()
	members, ok := h.rooms[s.room]
	if !ok {
		return
	}
	delete(members, s)
	if len(members) == 0 {
		delete(h.rooms, s.room)
	}
}

// EmitToUser delivers the event to every session in the user's room and
// returns how many sessions received it. Sessions whose send buffer is full
// are skipped rather than blocking the caller.
func (h *Hub) EmitToUser(userID string, event string, payload interface{}) int {
	data, err := json.Marshal(Event{Event: event, Data: payload})
	if err != nil {
		log.Printf("emit marshal error: %v", err)
		return 0
	}

	h.mu.RLock()
	members := h.rooms[UserRoom(userID)]
	sessions := make([]*Session, 0, len(members))
	for s := range members {
		sessions = append(sessions, s)
	}
	h.mu.RUnlock()

	delivered := 0
	for _, s := range sessions {
		select {
		case s.send <- data:
			delivered++
		default:
			log.Printf("session send buffer full, dropping event for room %s", s.room)
		}
	}
	return delivered
}

// RoomSize reports the current number of sessions in the user's room.
func (h *Hub) RoomSize(userID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[UserRoom(userID)])
}
