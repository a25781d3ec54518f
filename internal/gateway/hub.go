package gateway

import (
	"sync"

	"github.com/JalenduP/Chess-it/pkg/gamedto"
)

// hub tracks which sessions are in which game room. It implements
// match.Broadcaster so the manager can publish without knowing about
// connections.
type hub struct {
	mu    sync.RWMutex
	rooms map[string]map[*session]struct{}
}

func newHub() *hub {
	return &hub{rooms: make(map[string]map[*session]struct{})}
}

func (h *hub) join(gameID string, s *session) {
	h.mu.Lock()
	room, ok := h.rooms[gameID]
	if !ok {
		room = make(map[*session]struct{})
		h.rooms[gameID] = room
	}
	room[s] = struct{}{}
	h.mu.Unlock()
	s.track(gameID)
}

func (h *hub) leaveAll(s *session) {
	h.mu.Lock()
	for _, gameID := range s.roomIDs() {
		if room, ok := h.rooms[gameID]; ok {
			delete(room, s)
			if len(room) == 0 {
				delete(h.rooms, gameID)
			}
		}
	}
	h.mu.Unlock()
}

func (h *hub) snapshot(gameID string) []*session {
	h.mu.RLock()
	defer h.mu.RUnlock()
	room := h.rooms[gameID]
	out := make([]*session, 0, len(room))
	for s := range room {
		out = append(out, s)
	}
	return out
}

func (h *hub) ToRoom(gameID, event string, payload any) {
	env := gamedto.Envelope{Event: event, Data: payload}
	for _, s := range h.snapshot(gameID) {
		s.send(env)
	}
}

func (h *hub) ToRoomExcept(gameID, exceptUserID, event string, payload any) {
	env := gamedto.Envelope{Event: event, Data: payload}
	for _, s := range h.snapshot(gameID) {
		if s.identity.ID == exceptUserID {
			continue
		}
		s.send(env)
	}
}

func (h *hub) ToUser(gameID, userID, event string, payload any) {
	env := gamedto.Envelope{Event: event, Data: payload}
	for _, s := range h.snapshot(gameID) {
		if s.identity.ID == userID {
			s.send(env)
		}
	}
}
