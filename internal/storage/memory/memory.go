package memory

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/fenggwsx/RoomChat/internal/storage"
)

// Store keeps messages and online users in process memory.
type Store struct {
	mu       sync.RWMutex
	seq      uint64
	messages map[string]entry
	users    map[string]storage.OnlineUser
	byEmail  map[string]string
}

type entry struct {
	seq uint64
	msg storage.Message
}

// NewStore returns an empty in-memory store.
func NewStore() *Store {
	return &Store{
		messages: make(map[string]entry),
		users:    make(map[string]storage.OnlineUser),
		byEmail:  make(map[string]string),
	}
}

// Close is a no-op.
func (s *Store) Close() error { return nil }

// Migrate is a no-op.
func (s *Store) Migrate(context.Context) error { return nil }

func (s *Store) SaveMessage(_ context.Context, msg *storage.Message) error {
	if msg == nil {
		return errors.New("nil message")
	}
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now().UTC()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	s.messages[msg.ID] = entry{seq: s.seq, msg: *msg}
	return nil
}

func (s *Store) ListMessagesByRoom(_ context.Context, room string, limit int) ([]storage.Message, error) {
	if limit <= 0 {
		return nil, nil
	}
	s.mu.RLock()
	matched := make([]entry, 0)
	for _, e := range s.messages {
		if e.msg.Room != room {
			continue
		}
		matched = append(matched, e)
	}
	s.mu.RUnlock()

	sort.Slice(matched, func(i, j int) bool {
		a, b := matched[i], matched[j]
		if !a.msg.CreatedAt.Equal(b.msg.CreatedAt) {
			return a.msg.CreatedAt.Before(b.msg.CreatedAt)
		}
		return a.seq < b.seq
	})
	if len(matched) > limit {
		matched = matched[len(matched)-limit:]
	}
	out := make([]storage.Message, len(matched))
	for i, e := range matched {
		out[i] = e.msg
	}
	return out, nil
}

func (s *Store) DeleteMessage(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.messages[id]; !ok {
		return storage.ErrNotFound
	}
	delete(s.messages, id)
	return nil
}

func (s *Store) DeleteMessagesByAuthor(_ context.Context, user, room, email string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for id, e := range s.messages {
		if e.msg.User == user && e.msg.Room == room && e.msg.Email == email {
			delete(s.messages, id)
			n++
		}
	}
	return n, nil
}

func (s *Store) CreateOnlineUser(_ context.Context, user *storage.OnlineUser) error {
	if user == nil {
		return errors.New("nil online user")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, taken := s.byEmail[user.Email]; taken {
		return storage.ErrDuplicate
	}
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}
	s.users[user.ID] = *user
	s.byEmail[user.Email] = user.ID
	return nil
}

func (s *Store) FindOnlineUser(_ context.Context, email, user, room string) (*storage.OnlineUser, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.byEmail[email]
	if !ok {
		return nil, storage.ErrNotFound
	}
	found := s.users[id]
	if found.User != user || found.Room != room {
		return nil, storage.ErrNotFound
	}
	return &found, nil
}

func (s *Store) DeleteOnlineUser(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	user, ok := s.users[id]
	if !ok {
		return storage.ErrNotFound
	}
	delete(s.users, id)
	delete(s.byEmail, user.Email)
	return nil
}
