package httpdto

import (
	"time"

	"pulse-chat/internal/domain/conversation"
)

// CreateConversationRequest is used for POST /conversations
type CreateConversationRequest struct {
	Type      string   `json:"type" binding:"required"` // "PRIVATE" or "GROUP"
	Subject   string   `json:"subject,omitempty"`
	MemberIDs []string `json:"member_ids"`
}

// AddMemberRequest is used for POST /conversations/:id/members
type AddMemberRequest struct {
	UserID string `json:"user_id" binding:"required"`
}

type ConversationDTO struct {
	ID        string           `json:"id"`
	Type      string           `json:"type"`
	Subject   string           `json:"subject,omitempty"`
	CreatedBy string           `json:"created_by,omitempty"`
	Members   []ParticipantDTO `json:"members"`
	CreatedAt string           `json:"created_at"`
}

type ParticipantDTO struct {
	UserID   string `json:"user_id"`
	Role     string `json:"role"`
	JoinedAt string `json:"joined_at"`
}

func FromConversation(c conversation.Conversation) ConversationDTO {
	dto := ConversationDTO{
		ID:        c.ID.String(),
		Type:      string(c.Type),
		Subject:   c.Subject.String,
		Members:   make([]ParticipantDTO, len(c.Participants)),
		CreatedAt: c.CreatedAt.Format(time.RFC3339),
	}
	if c.CreatedBy.Valid {
		dto.CreatedBy = c.CreatedBy.UUID.String()
	}
	for i, p := range c.Participants {
		dto.Members[i] = ParticipantDTO{
			UserID:   p.UserID.String(),
			Role:     p.Role,
			JoinedAt: p.JoinedAt.Format(time.RFC3339),
		}
	}
	return dto
}
