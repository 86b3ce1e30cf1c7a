package server

import (
	"sync"

	"github.com/fenggwsx/RoomChat/internal/protocol"
)

// RoomHub tracks connected sessions and their room membership. Fan-out
// enqueues under the read lock so every broadcast sees one snapshot.
type RoomHub struct {
	mu       sync.RWMutex
	sessions map[string]*clientSession
	rooms    map[string]map[string]*clientSession
	memberOf map[string]string
}

// NewRoomHub initializes an empty hub.
func NewRoomHub() *RoomHub {
	return &RoomHub{
		sessions: make(map[string]*clientSession),
		rooms:    make(map[string]map[string]*clientSession),
		memberOf: make(map[string]string),
	}
}

// Register makes the session reachable by global broadcasts.
func (h *RoomHub) Register(s *clientSession) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.sessions[s.id] = s
}

// Unregister removes the session from the hub and from its room.
func (h *RoomHub) Unregister(sessionID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.leaveLocked(sessionID)
	delete(h.sessions, sessionID)
}

// Join adds the session to room, leaving any room it was already in.
func (h *RoomHub) Join(room string, s *clientSession) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.leaveLocked(s.id)
	members, ok := h.rooms[room]
	if !ok {
		members = make(map[string]*clientSession)
		h.rooms[room] = members
	}
	members[s.id] = s
	h.memberOf[s.id] = room
}

// Leave removes the session from its room and returns that room.
func (h *RoomHub) Leave(sessionID string) (string, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.leaveLocked(sessionID)
}

func (h *RoomHub) leaveLocked(sessionID string) (string, bool) {
	room, ok := h.memberOf[sessionID]
	if !ok {
		return "", false
	}
	delete(h.memberOf, sessionID)
	if members, ok := h.rooms[room]; ok {
		delete(members, sessionID)
		if len(members) == 0 {
			delete(h.rooms, room)
		}
	}
	return room, true
}

// BroadcastRoom pushes env to every member of room except the session with
// id except. An empty except includes everyone. It returns the number of
// sessions the envelope was queued for.
func (h *RoomHub) BroadcastRoom(room string, env protocol.Envelope, except string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	delivered := 0
	for id, s := range h.rooms[room] {
		if id == except {
			continue
		}
		if s.enqueue(env) {
			delivered++
		}
	}
	return delivered
}

// BroadcastAll pushes env to every registered session.
func (h *RoomHub) BroadcastAll(env protocol.Envelope) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	delivered := 0
	for _, s := range h.sessions {
		if s.enqueue(env) {
			delivered++
		}
	}
	return delivered
}

// roomOf reports the room a session is in.
func (h *RoomHub) roomOf(sessionID string) (string, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	room, ok := h.memberOf[sessionID]
	return room, ok
}

// members returns the number of sessions in room.
func (h *RoomHub) members(room string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[room])
}

// Stats reports connected sessions and non-empty rooms.
func (h *RoomHub) Stats() (sessions, rooms int) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.sessions), len(h.rooms)
}

// CloseAll stops the write loop of every session.
func (h *RoomHub) CloseAll() {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, s := range h.sessions {
		s.shutdown()
	}
}
