package httpdto

import (
	"time"

	"pulse-chat/internal/domain/call"
)

// CreateCallRequest is used for POST /calls
type CreateCallRequest struct {
	ReceiverID     string `json:"receiver_id"`
	Type           string `json:"type"` // "AUDIO" or "VIDEO"
	ConversationID string `json:"conversation_id,omitempty"`
}

// EndCallRequest is used for POST /calls/:id/end
type EndCallRequest struct {
	Status string `json:"status,omitempty"` // "ENDED", "REJECTED", "MISSED", "BUSY"
}

// ListCallsRequest holds query parameters for listing calls
type ListCallsRequest struct {
	Page  int `form:"page"`
	Limit int `form:"limit"`
}

// CallSessionResponse is returned when a call is initiated or accepted
type CallSessionResponse struct {
	Call  CallDTO `json:"call"`
	Token string  `json:"token"`
}

// ListCallsResponse is returned when listing calls
type ListCallsResponse struct {
	Calls []CallDTO `json:"calls"`
	Total int64     `json:"total"`
}

// CallDTO represents a call in API responses
type CallDTO struct {
	ID             string `json:"id"`
	ConversationID string `json:"conversation_id,omitempty"`
	CallerID       string `json:"caller_id"`
	ReceiverID     string `json:"receiver_id"`
	RoomID         string `json:"room_id"`
	Type           string `json:"type"`
	Status         string `json:"status"`
	StartedAt      string `json:"started_at,omitempty"`
	EndedAt        string `json:"ended_at,omitempty"`
	Duration       *int64 `json:"duration,omitempty"`
	EndedBy        string `json:"ended_by,omitempty"`
	CreatedAt      string `json:"created_at"`
}

// FromCall converts a domain call to CallDTO
func FromCall(c call.Call) CallDTO {
	dto := CallDTO{
		ID:         c.ID.String(),
		CallerID:   c.CallerID.String(),
		ReceiverID: c.ReceiverID.String(),
		RoomID:     c.RoomID,
		Type:       string(c.Type),
		Status:     string(c.Status),
		CreatedAt:  c.CreatedAt.Format(time.RFC3339),
	}
	if c.ConversationID.Valid {
		dto.ConversationID = c.ConversationID.UUID.String()
	}
	if c.StartTime.Valid {
		dto.StartedAt = c.StartTime.Time.Format(time.RFC3339)
	}
	if c.EndTime.Valid {
		dto.EndedAt = c.EndTime.Time.Format(time.RFC3339)
	}
	if c.Duration.Valid {
		d := int64(c.Duration.Int32)
		dto.Duration = &d
	}
	if c.EndedBy.Valid {
		dto.EndedBy = c.EndedBy.UUID.String()
	}
	return dto
}

// FromCallSlice converts a slice of domain calls to CallDTO slice
func FromCallSlice(calls []call.Call) []CallDTO {
	dtos := make([]CallDTO, len(calls))
	for i, c := range calls {
		dtos[i] = FromCall(c)
	}
	return dtos
}
