package conversation

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
)

type Type string

const (
	TypePrivate Type = "PRIVATE"
	TypeGroup   Type = "GROUP"
)

func (t Type) Valid() bool {
	return t == TypePrivate || t == TypeGroup
}

const (
	RoleOwner  = "OWNER"
	RoleMember = "MEMBER"
)

// Conversation represents the conversations table
type Conversation struct {
	ID        uuid.UUID      `gorm:"type:uuid;primaryKey"`
	Type      Type           `gorm:"type:varchar(16);not null"`
	Subject   sql.NullString
	CreatedBy uuid.NullUUID `gorm:"type:uuid"`
	CreatedAt time.Time
	UpdatedAt time.Time

	// Relationships
	Participants []Participant `gorm:"foreignKey:ConversationID"`
}

// Participant represents the participants table
type Participant struct {
	ConversationID uuid.UUID `gorm:"type:uuid;primaryKey"`
	UserID         uuid.UUID `gorm:"type:uuid;primaryKey;index"`
	Role           string    `gorm:"type:varchar(16);not null;default:'MEMBER'"`
	JoinedAt       time.Time
	AddedBy        uuid.NullUUID `gorm:"type:uuid"`
}

func (Conversation) TableName() string {
	return "conversations"
}

func (Participant) TableName() string {
	return "participants"
}

// MemberIDs returns the user ids of the loaded participants.
func (c Conversation) MemberIDs() []uuid.UUID {
	ids := make([]uuid.UUID, 0, len(c.Participants))
	for _, p := range c.Participants {
		ids = append(ids, p.UserID)
	}
	return ids
}
