package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/fenggwsx/RoomChat/internal/config"
	"github.com/fenggwsx/RoomChat/internal/storage"
)

// PresenceStore keeps online-user records in redis hashes. A second key per
// email holds the owning record id and enforces email uniqueness.
type PresenceStore struct {
	client *redis.Client
	prefix string
}

// NewClient builds a redis client from configuration.
func NewClient(cfg config.RedisConfig) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
}

// New wraps an existing client.
func New(client *redis.Client, prefix string) *PresenceStore {
	return &PresenceStore{client: client, prefix: prefix}
}

// Ping verifies the server is reachable.
func (s *PresenceStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Close releases the client.
func (s *PresenceStore) Close() error {
	return s.client.Close()
}

func (s *PresenceStore) userKey(id string) string {
	return s.prefix + "user:" + id
}

func (s *PresenceStore) emailKey(email string) string {
	return s.prefix + "email:" + email
}

// CreateOnlineUser stores a presence record, failing with storage.ErrDuplicate
// when the email is already claimed.
func (s *PresenceStore) CreateOnlineUser(ctx context.Context, user *storage.OnlineUser) error {
	if user == nil {
		return errors.New("nil online user")
	}
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}

	claimed, err := s.client.SetNX(ctx, s.emailKey(user.Email), user.ID, 0).Result()
	if err != nil {
		return fmt.Errorf("claim email: %w", err)
	}
	if !claimed {
		return storage.ErrDuplicate
	}

	err = s.client.HSet(ctx, s.userKey(user.ID), map[string]any{
		"user":         user.User,
		"email":        user.Email,
		"room":         user.Room,
		"profilePhoto": user.ProfilePhoto,
		"createdAt":    user.CreatedAt.Format(time.RFC3339Nano),
	}).Err()
	if err != nil {
		s.client.Del(ctx, s.emailKey(user.Email))
		return fmt.Errorf("store online user: %w", err)
	}
	return nil
}

// FindOnlineUser resolves the record owning email and checks the rest of the identity.
func (s *PresenceStore) FindOnlineUser(ctx context.Context, email, user, room string) (*storage.OnlineUser, error) {
	id, err := s.client.Get(ctx, s.emailKey(email)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	fields, err := s.client.HGetAll(ctx, s.userKey(id)).Result()
	if err != nil {
		return nil, err
	}
	if len(fields) == 0 || fields["user"] != user || fields["room"] != room {
		return nil, storage.ErrNotFound
	}
	found := &storage.OnlineUser{
		ID:           id,
		User:         fields["user"],
		Email:        fields["email"],
		Room:         fields["room"],
		ProfilePhoto: fields["profilePhoto"],
	}
	if ts, err := time.Parse(time.RFC3339Nano, fields["createdAt"]); err == nil {
		found.CreatedAt = ts
	}
	return found, nil
}

// DeleteOnlineUser removes the record and releases its email.
func (s *PresenceStore) DeleteOnlineUser(ctx context.Context, id string) error {
	email, err := s.client.HGet(ctx, s.userKey(id), "email").Result()
	if errors.Is(err, redis.Nil) {
		return storage.ErrNotFound
	}
	if err != nil {
		return err
	}
	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, s.userKey(id))
		pipe.Del(ctx, s.emailKey(email))
		return nil
	})
	return err
}
