package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"pulse-chat/internal/domain/call"
	"pulse-chat/internal/domain/conversation"
	"pulse-chat/internal/domain/message"
	"pulse-chat/internal/domain/user"
)

type UserRepository interface {
	GetUserByID(ctx context.Context, id uuid.UUID) (user.User, error)
}

type ConversationRepository interface {
	Create(ctx context.Context, c *conversation.Conversation) error
	GetByID(ctx context.Context, id uuid.UUID) (conversation.Conversation, error)

	AddParticipant(ctx context.Context, p *conversation.Participant) error
	GetParticipants(ctx context.Context, conversationID uuid.UUID) ([]conversation.Participant, error)
	IsParticipant(ctx context.Context, conversationID, userID uuid.UUID) (bool, error)
	GetParticipantCount(ctx context.Context, conversationID uuid.UUID) (int64, error)
}

type MessageRepository interface {
	Create(ctx context.Context, m *message.Message) error
	GetByID(ctx context.Context, id uuid.UUID) (message.Message, error)
	GetBySenderClientID(ctx context.Context, senderID uuid.UUID, clientMessageID string) (message.Message, error)

	// AddDelivered inserts the user into the delivered set. added is false
	// when the user was already present.
	AddDelivered(ctx context.Context, messageID, userID uuid.UUID, at time.Time) (added bool, err error)
	// AddRead inserts the user into the read set, and into the delivered set
	// when absent. added is false when the user had already read the message.
	AddRead(ctx context.Context, messageID, userID uuid.UUID, at time.Time) (added bool, err error)
	CountReceipts(ctx context.Context, messageID uuid.UUID) (delivered, read int64, err error)
	GetReceipts(ctx context.Context, messageID uuid.UUID) ([]message.MessageReceipt, error)
	// PromoteStatus moves the message to status only if its current status
	// ranks lower. promoted is false when nothing changed.
	PromoteStatus(ctx context.Context, messageID uuid.UUID, status message.Status) (promoted bool, err error)
}

// CallUpdate carries the fields written together with a status transition.
type CallUpdate struct {
	Status    call.Status
	StartTime *time.Time
	EndTime   *time.Time
	Duration  *int32
	EndedBy   *uuid.UUID
}

type CallRepository interface {
	Create(ctx context.Context, c *call.Call) error
	GetByID(ctx context.Context, id uuid.UUID) (call.Call, error)
	// Transition applies update only while the call is in one of from.
	// ok is false when the stored status did not permit the transition.
	Transition(ctx context.Context, callID uuid.UUID, from []call.Status, update CallUpdate) (ok bool, err error)
	GetUserCalls(ctx context.Context, userID uuid.UUID, page, limit int) ([]call.Call, int64, error)
	GetUnansweredBefore(ctx context.Context, cutoff time.Time, limit int) ([]call.Call, error)
}
