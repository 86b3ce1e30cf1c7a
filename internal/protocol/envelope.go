package protocol

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// EventName identifies the handler or listener an envelope is meant for.
type EventName string

// Inbound events, sent by clients.
const (
	EventJoin              EventName = "join"
	EventJoinWithProfile   EventName = "addProfilePic"
	EventJoinWithProfileV0 EventName = "addPofilePic"
	EventDeleteAccount     EventName = "delete_account"
	EventLogout            EventName = "logout"
	EventDeleteMessage     EventName = "delete"
	EventUserMessage       EventName = "user_message"
	EventTyping            EventName = "typing"
	EventStopTyping        EventName = "stop_typing"
)

// Outbound events, sent by the relay.
const (
	EventUserUpdate       EventName = "userUpdate"
	EventBroadcastMessage EventName = "broadcast_message"
	EventOnlineUser       EventName = "online_user"
	EventLoadMessage      EventName = "load_message"
	EventLogoutUser       EventName = "logout_user"
	EventMessageDeleted   EventName = "delete_message"
	EventTypingUpdate     EventName = "typing_update"
)

// Envelope wraps every payload sent over the wire.
type Envelope struct {
	ID        string          `json:"id,omitempty"`
	Event     EventName       `json:"event"`
	Timestamp time.Time       `json:"timestamp"`
	Data      json.RawMessage `json:"data,omitempty"`
}

// NewEnvelope marshals payload into a freshly stamped envelope.
func NewEnvelope(event EventName, payload any) (Envelope, error) {
	env := Envelope{
		ID:        uuid.NewString(),
		Event:     event,
		Timestamp: time.Now().UTC(),
	}
	if payload == nil {
		return env, nil
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return env, err
	}
	env.Data = data
	return env, nil
}
