package events

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Event names delivered to websocket clients.
const (
	MessageNew      = "message:new"
	MessageStatus   = "message:status"
	ConversationNew = "conversation:new"
	CallIncoming    = "call:incoming"
	CallRinging     = "call:ringing"
	CallAccepted    = "call:accepted"
	CallEnded       = "call:ended"
)

// Inbound frame types sent by websocket clients.
const (
	FramePing             = "ping"
	FramePong             = "pong"
	FrameMessageDelivered = "message:delivered"
	FrameMessageRead      = "message:read"
	FrameCallRinging      = "call:ringing"
	FrameError            = "error"
)

// Event is a single named notification addressed to one user. Events are
// ephemeral: they are not stored and are never replayed.
type Event struct {
	TargetUserID uuid.UUID       `json:"-"`
	Name         string          `json:"event"`
	Payload      json.RawMessage `json:"data"`
	EmittedAt    time.Time       `json:"emitted_at"`
}

func New(target uuid.UUID, name string, payload any) (Event, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Event{}, err
	}
	return Event{
		TargetUserID: target,
		Name:         name,
		Payload:      raw,
		EmittedAt:    time.Now().UTC(),
	}, nil
}

// Envelope is what travels on the broadcast channel between instances.
type Envelope struct {
	Origin string    `json:"origin"`
	UserID uuid.UUID `json:"user_id"`
	Event  Event     `json:"event"`
}

// Message status payload.
type StatusPayload struct {
	MessageID uuid.UUID `json:"messageId"`
	Status    string    `json:"status"`
	UserID    uuid.UUID `json:"userId"`
}

type CallerInfo struct {
	ID          uuid.UUID `json:"id"`
	DisplayName string    `json:"displayName"`
	AvatarURL   string    `json:"avatarUrl,omitempty"`
}

type CallIncomingPayload struct {
	CallID         uuid.UUID  `json:"callId"`
	RoomID         string     `json:"roomId"`
	Type           string     `json:"type"`
	ConversationID *uuid.UUID `json:"conversationId"`
	Caller         CallerInfo `json:"caller"`
}

type CallRingingPayload struct {
	CallID uuid.UUID `json:"callId"`
	UserID uuid.UUID `json:"userId"`
}

type CallAcceptedPayload struct {
	CallID     uuid.UUID `json:"callId"`
	RoomID     string    `json:"roomId"`
	AcceptedBy uuid.UUID `json:"acceptedBy"`
}

type CallEndedPayload struct {
	CallID   uuid.UUID  `json:"callId"`
	Status   string     `json:"status"`
	Duration int64      `json:"duration"`
	EndedBy  *uuid.UUID `json:"endedBy"`
}

type MessageNewPayload struct {
	ID              uuid.UUID `json:"id"`
	ConversationID  uuid.UUID `json:"conversationId"`
	SenderID        uuid.UUID `json:"senderId"`
	Content         string    `json:"content"`
	Attachments     []string  `json:"attachments,omitempty"`
	ClientMessageID string    `json:"clientMessageId,omitempty"`
	Status          string    `json:"status"`
	CreatedAt       time.Time `json:"createdAt"`
}

type ConversationNewPayload struct {
	ConversationID uuid.UUID   `json:"conversationId"`
	Type           string      `json:"type"`
	Subject        string      `json:"subject,omitempty"`
	CreatedBy      uuid.UUID   `json:"createdBy"`
	Members        []uuid.UUID `json:"members"`
}
