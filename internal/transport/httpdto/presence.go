package httpdto

import "time"

// PresenceDTO is returned by GET /users/:id/presence
type PresenceDTO struct {
	UserID      string `json:"user_id"`
	IsOnline    bool   `json:"is_online"`
	Status      string `json:"status"`
	LastSeen    string `json:"last_seen,omitempty"`
	Connections int64  `json:"connections"`
}

func NewPresenceDTO(userID string, online bool, status string, lastSeen time.Time, connections int64) PresenceDTO {
	dto := PresenceDTO{
		UserID:      userID,
		IsOnline:    online,
		Status:      status,
		Connections: connections,
	}
	if !lastSeen.IsZero() {
		dto.LastSeen = lastSeen.Format(time.RFC3339)
	}
	return dto
}
