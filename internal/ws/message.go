// Package ws defines the wire protocol and the per-socket client wrapper.
package ws

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"docroom/internal/doc"
	"docroom/internal/lock"
	"docroom/internal/ot"
)

// MessageType identifies the kind of message in the envelope.
type MessageType string

const (
	// Server to clients.
	TypeJoin     MessageType = "join"
	TypeLeave    MessageType = "leave"
	TypeSync     MessageType = "sync"
	TypeAck      MessageType = "ack"
	TypePresence MessageType = "presence"
	TypeError    MessageType = "error"

	// Both directions.
	TypeOperation MessageType = "operation"
	TypeCursor    MessageType = "cursor"
	TypeLock      MessageType = "lock"
	TypeUnlock    MessageType = "unlock"
)

// Error codes carried by error messages.
const (
	CodeParseError    = "PARSE_ERROR"
	CodeInternalError = "INTERNAL_ERROR"
)

// ErrUnknownType is returned when an inbound frame carries a type the server
// does not accept from clients.
var ErrUnknownType = errors.New("unknown message type")

// Message is the envelope for every frame in both directions.
type Message struct {
	Type      MessageType `json:"type"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   any         `json:"payload,omitempty"`
}

// NewMessage builds an envelope stamped with the current time.
func NewMessage(t MessageType, payload any) Message {
	return Message{Type: t, Timestamp: time.Now(), Payload: payload}
}

// UserPayload carries join and leave notifications.
type UserPayload struct {
	UserID string `json:"userId"`
}

// SyncPayload carries the full session snapshot sent on connect or when a
// client must rebase.
type SyncPayload struct {
	Document      doc.State      `json:"document"`
	Cursors       []UserCursor   `json:"cursors"`
	Collaborators []Collaborator `json:"collaborators"`
	Locks         []lock.Lock    `json:"locks,omitempty"`
}

// OperationPayload carries an edit, inbound from the author and outbound
// (possibly transformed) to everyone else.
type OperationPayload struct {
	Operation ot.Edit `json:"operation"`
	Revision  int     `json:"revision,omitempty"` // revision after apply, outbound only
}

// AckPayload confirms how the server handled the sender's edit. TransformedOps
// is set when the edit was rewritten against newer history.
type AckPayload struct {
	Revision       int            `json:"revision"`
	Accepted       bool           `json:"accepted"`
	TransformedOps []ot.Operation `json:"transformedOps,omitempty"`
}

// CursorPayload carries a cursor update.
type CursorPayload struct {
	Cursor UserCursor `json:"cursor"`
}

// PresencePayload carries the current collaborator list.
type PresencePayload struct {
	Collaborators []Collaborator `json:"collaborators"`
}

// LockPayload carries lock and unlock messages. Granted is set on server
// responses only.
type LockPayload struct {
	UserID  string     `json:"userId"`
	Range   lock.Range `json:"range"`
	Granted *bool      `json:"granted,omitempty"`
}

// ErrorPayload reports an error to a single client.
type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// DecodeClientMessage parses one inbound frame into its typed payload. The
// discriminator is closed: frames with server-only or unknown types fail with
// ErrUnknownType, which the caller surfaces as a parse error.
func DecodeClientMessage(data []byte) (Message, error) {
	var raw struct {
		Type      MessageType     `json:"type"`
		Timestamp time.Time       `json:"timestamp"`
		Payload   json.RawMessage `json:"payload"`
	}

	if err := json.Unmarshal(data, &raw); err != nil {
		return Message{}, fmt.Errorf("decode envelope: %w", err)
	}

	msg := Message{Type: raw.Type, Timestamp: raw.Timestamp}

	switch raw.Type {
	case TypeOperation:
		var p OperationPayload
		if err := unmarshalPayload(raw.Payload, &p); err != nil {
			return Message{}, err
		}

		msg.Payload = p
	case TypeCursor:
		var p CursorPayload
		if err := unmarshalPayload(raw.Payload, &p); err != nil {
			return Message{}, err
		}

		msg.Payload = p
	case TypeLock, TypeUnlock:
		var p LockPayload
		if err := unmarshalPayload(raw.Payload, &p); err != nil {
			return Message{}, err
		}

		msg.Payload = p
	default:
		return Message{}, fmt.Errorf("%w: %q", ErrUnknownType, raw.Type)
	}

	return msg, nil
}

func unmarshalPayload(data json.RawMessage, v any) error {
	if len(data) == 0 {
		return fmt.Errorf("decode payload: %w", errors.New("missing payload"))
	}

	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("decode payload: %w", err)
	}

	return nil
}
