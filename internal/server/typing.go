package server

import (
	"sort"
	"sync"
)

// TypingTracker records which users are typing in each room. It is shared by
// every connection.
type TypingTracker struct {
	mu    sync.Mutex
	rooms map[string]map[string]struct{}
}

// NewTypingTracker returns an empty tracker.
func NewTypingTracker() *TypingTracker {
	return &TypingTracker{rooms: make(map[string]map[string]struct{})}
}

// Start marks user as typing in room. It reports whether the state changed.
func (t *TypingTracker) Start(room, user string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	users, ok := t.rooms[room]
	if !ok {
		users = make(map[string]struct{})
		t.rooms[room] = users
	}
	if _, typing := users[user]; typing {
		return false
	}
	users[user] = struct{}{}
	return true
}

// Stop clears user's flag in room. It reports whether a flag was set.
func (t *TypingTracker) Stop(room, user string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	users, ok := t.rooms[room]
	if !ok {
		return false
	}
	if _, typing := users[user]; !typing {
		return false
	}
	delete(users, user)
	if len(users) == 0 {
		delete(t.rooms, room)
	}
	return true
}

// typists lists the users typing in room, sorted.
func (t *TypingTracker) typists(room string) []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	users := make([]string, 0, len(t.rooms[room]))
	for user := range t.rooms[room] {
		users = append(users, user)
	}
	sort.Strings(users)
	return users
}

// Rooms reports how many rooms have at least one typing user.
func (t *TypingTracker) Rooms() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.rooms)
}
