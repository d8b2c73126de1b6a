package httpdto

import (
	"time"

	"pulse-chat/internal/domain/message"

	"github.com/google/uuid"
)

// SendMessageRequest is used for POST /messages
type SendMessageRequest struct {
	ConversationID  string   `json:"conversation_id" binding:"required"`
	Content         string   `json:"content"`
	Attachments     []string `json:"attachments,omitempty"`
	ClientMessageID string   `json:"client_message_id,omitempty"`
}

// MessageDTO represents a message in API responses
type MessageDTO struct {
	ID              string   `json:"id"`
	ConversationID  string   `json:"conversation_id"`
	SenderID        string   `json:"sender_id"`
	Content         string   `json:"content"`
	Attachments     []string `json:"attachments"`
	ClientMessageID string   `json:"client_message_id,omitempty"`
	Status          string   `json:"status"`
	DeliveredTo     []string `json:"delivered_to"`
	ReadBy          []string `json:"read_by"`
	CreatedAt       string   `json:"created_at"`
}

// MessageStatusResponse is returned by the delivered and read acknowledgements
type MessageStatusResponse struct {
	MessageID   string   `json:"message_id"`
	Status      string   `json:"status"`
	DeliveredTo []string `json:"delivered_to"`
	ReadBy      []string `json:"read_by"`
}

func FromMessage(m message.Message, receipts message.Receipts) MessageDTO {
	attachments := []string(m.Attachments)
	if attachments == nil {
		attachments = []string{}
	}
	return MessageDTO{
		ID:              m.ID.String(),
		ConversationID:  m.ConversationID.String(),
		SenderID:        m.SenderID.String(),
		Content:         m.Content,
		Attachments:     attachments,
		ClientMessageID: m.ClientMessageID.String,
		Status:          string(m.Status),
		DeliveredTo:     StringUUIDs(receipts.DeliveredTo),
		ReadBy:          StringUUIDs(receipts.ReadBy),
		CreatedAt:       m.CreatedAt.Format(time.RFC3339Nano),
	}
}

func NewMessageStatusResponse(messageID uuid.UUID, status message.Status, deliveredTo, readBy []uuid.UUID) MessageStatusResponse {
	return MessageStatusResponse{
		MessageID:   messageID.String(),
		Status:      string(status),
		DeliveredTo: StringUUIDs(deliveredTo),
		ReadBy:      StringUUIDs(readBy),
	}
}

// StringUUIDs renders ids as strings, never returning nil.
func StringUUIDs(ids []uuid.UUID) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = id.String()
	}
	return out
}
