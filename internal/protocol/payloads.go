package protocol

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// RoomID is a room key. Clients may send it as a JSON string or number.
type RoomID string

// UnmarshalJSON accepts "7", 7 and null.
func (r *RoomID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*r = ""
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*r = RoomID(strings.TrimSpace(s))
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("room must be a string or number: %w", err)
	}
	*r = RoomID(n.String())
	return nil
}

func (r RoomID) String() string { return string(r) }

// JoinRequest asks to rejoin with an existing online-user record.
type JoinRequest struct {
	User  string `json:"user"`
	Email string `json:"email"`
	Room  RoomID `json:"room"`
}

// ProfileJoinRequest creates a new online-user record and joins with it.
type ProfileJoinRequest struct {
	User         string `json:"user"`
	Email        string `json:"email"`
	Room         RoomID `json:"room"`
	ProfilePhoto string `json:"profilePhoto"`
}

// DeleteAccountRequest removes an online user and everything they wrote in a room.
type DeleteAccountRequest struct {
	ID    string `json:"id"`
	User  string `json:"user"`
	Room  RoomID `json:"room"`
	Email string `json:"email"`
}

// LogoutRequest leaves the current room.
type LogoutRequest struct {
	Room RoomID `json:"room"`
}

// DeleteMessageRequest removes one stored message.
type DeleteMessageRequest struct {
	ID string `json:"id"`
}

// UserMessageRequest sends text to a room.
type UserMessageRequest struct {
	Message string `json:"message"`
	User    string `json:"user"`
	Room    RoomID `json:"room"`
}

// TypingRequest toggles a typing indicator.
type TypingRequest struct {
	User string `json:"user"`
	Room RoomID `json:"room"`
}

// UserUpdate reports the outcome of a join lookup.
type UserUpdate struct {
	Status bool `json:"status"`
}

// Notice is a server-generated line shown in the chat log.
type Notice struct {
	Message      string `json:"message"`
	ProfilePhoto string `json:"profilePhoto,omitempty"`
}

// ChatMessage is a persisted message as delivered to clients.
type ChatMessage struct {
	ID           string    `json:"id"`
	User         string    `json:"user"`
	Room         string    `json:"room"`
	Email        string    `json:"email,omitempty"`
	Message      string    `json:"message"`
	ProfilePhoto string    `json:"profilePhoto,omitempty"`
	CreateAt     time.Time `json:"createAt"`
}

// OnlineUser is a presence record as delivered to clients.
type OnlineUser struct {
	ID           string `json:"id"`
	User         string `json:"user"`
	Email        string `json:"email"`
	Room         string `json:"room"`
	ProfilePhoto string `json:"profilePhoto,omitempty"`
}

// LogoutNotice announces that an identity left.
type LogoutNotice struct {
	ID    string `json:"id,omitempty"`
	User  string `json:"user,omitempty"`
	Room  string `json:"room,omitempty"`
	Email string `json:"email,omitempty"`
}

// MessageDeleted announces a removed message.
type MessageDeleted struct {
	ID string `json:"id"`
}

// TypingUpdate announces a typing indicator change.
type TypingUpdate struct {
	User   string `json:"user"`
	Typing bool   `json:"typing"`
}
