package storage

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNotFound is returned when a lookup or delete matches no record.
	ErrNotFound = errors.New("record not found")
	// ErrDuplicate is returned when a unique constraint would be violated.
	ErrDuplicate = errors.New("record already exists")
)

// Message represents a persisted chat line.
type Message struct {
	ID           string
	User         string
	Room         string
	Email        string
	Body         string
	ProfilePhoto string
	CreatedAt    time.Time
}

// OnlineUser represents a persisted presence record. Email is unique.
type OnlineUser struct {
	ID           string
	User         string
	Email        string
	Room         string
	ProfilePhoto string
	CreatedAt    time.Time
}

// MessageStore persists chat history.
type MessageStore interface {
	// SaveMessage assigns ID and CreatedAt when they are empty.
	SaveMessage(ctx context.Context, msg *Message) error
	// ListMessagesByRoom returns the latest limit messages of room, oldest first.
	ListMessagesByRoom(ctx context.Context, room string, limit int) ([]Message, error)
	DeleteMessage(ctx context.Context, id string) error
	DeleteMessagesByAuthor(ctx context.Context, user, room, email string) (int64, error)
}

// PresenceStore persists online-user records.
type PresenceStore interface {
	CreateOnlineUser(ctx context.Context, user *OnlineUser) error
	FindOnlineUser(ctx context.Context, email, user, room string) (*OnlineUser, error)
	DeleteOnlineUser(ctx context.Context, id string) error
}

// Store defines persistence operations used by the server.
type Store interface {
	MessageStore
	PresenceStore

	Close() error
	Migrate(ctx context.Context) error
}
