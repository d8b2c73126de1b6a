package call

import (
	"database/sql"
	"strings"
	"time"

	"github.com/google/uuid"
)

type Type string

const (
	TypeAudio Type = "AUDIO"
	TypeVideo Type = "VIDEO"
)

// ParseType normalizes a client supplied call type.
func ParseType(raw string) (Type, bool) {
	switch t := Type(strings.ToUpper(strings.TrimSpace(raw))); t {
	case TypeAudio, TypeVideo:
		return t, true
	}
	return "", false
}

// Call represents calls table
type Call struct {
	ID             uuid.UUID     `gorm:"type:uuid;primaryKey"`
	ConversationID uuid.NullUUID `gorm:"type:uuid;index"`
	CallerID       uuid.UUID     `gorm:"type:uuid;not null;index"`
	ReceiverID     uuid.UUID     `gorm:"type:uuid;not null;index"`
	RoomID         string        `gorm:"type:varchar(64);not null;uniqueIndex"`
	Type           Type          `gorm:"type:varchar(16);not null"`
	Status         Status        `gorm:"type:varchar(16);not null;index"`
	StartTime      sql.NullTime
	EndTime        sql.NullTime
	Duration       sql.NullInt32
	EndedBy        uuid.NullUUID `gorm:"type:uuid"`
	CreatedAt      time.Time     `gorm:"index"`
	UpdatedAt      time.Time
}

func (Call) TableName() string {
	return "calls"
}

// IsParticipant reports whether userID is the caller or the receiver.
func (c Call) IsParticipant(userID uuid.UUID) bool {
	return c.CallerID == userID || c.ReceiverID == userID
}

// OtherParty returns the participant that is not userID.
func (c Call) OtherParty(userID uuid.UUID) uuid.UUID {
	if c.CallerID == userID {
		return c.ReceiverID
	}
	return c.CallerID
}
