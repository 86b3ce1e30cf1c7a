package protocol

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

var (
	// ErrEmptyFrame is returned for frames with no content.
	ErrEmptyFrame = errors.New("frame empty")
	// ErrInvalidPayload is returned when an envelope carries no usable data.
	ErrInvalidPayload = errors.New("invalid payload")
)

// Encode renders the envelope as a single text frame.
func Encode(env Envelope) ([]byte, error) {
	return json.Marshal(env)
}

// Decode parses one text frame into an envelope.
func Decode(frame []byte) (Envelope, error) {
	var env Envelope
	frame = bytes.TrimSpace(frame)
	if len(frame) == 0 {
		return env, ErrEmptyFrame
	}
	if err := json.Unmarshal(frame, &env); err != nil {
		return env, err
	}
	if env.Event == "" {
		return env, fmt.Errorf("%w: missing event name", ErrInvalidPayload)
	}
	return env, nil
}

// DecodePayload unmarshals an envelope's data into T.
func DecodePayload[T any](data json.RawMessage) (T, error) {
	var v T
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return v, ErrInvalidPayload
	}
	if err := json.Unmarshal(trimmed, &v); err != nil {
		return v, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	return v, nil
}
