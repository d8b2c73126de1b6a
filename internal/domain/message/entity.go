package message

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
)

type Status string

const (
	StatusSent      Status = "SENT"
	StatusDelivered Status = "DELIVERED"
	StatusRead      Status = "READ"
)

// Rank orders statuses so that promotions can be checked as "only upwards".
func (s Status) Rank() int {
	switch s {
	case StatusSent:
		return 1
	case StatusDelivered:
		return 2
	case StatusRead:
		return 3
	}
	return 0
}

// Below lists every status strictly lower than s.
func (s Status) Below() []Status {
	var out []Status
	for _, candidate := range []Status{StatusSent, StatusDelivered, StatusRead} {
		if candidate.Rank() < s.Rank() {
			out = append(out, candidate)
		}
	}
	return out
}

// Message represents the messages table
type Message struct {
	ID              uuid.UUID      `gorm:"type:uuid;primaryKey"`
	ConversationID  uuid.UUID      `gorm:"type:uuid;not null;index:idx_messages_conversation_created,priority:1"`
	SenderID        uuid.UUID      `gorm:"type:uuid;not null;uniqueIndex:idx_messages_sender_client_id,priority:1"`
	ClientMessageID sql.NullString `gorm:"uniqueIndex:idx_messages_sender_client_id,priority:2"`
	Content         string
	Attachments     StringList `gorm:"type:text"`
	Status          Status     `gorm:"type:varchar(16);not null;default:'SENT'"`
	CreatedAt       time.Time  `gorm:"index:idx_messages_conversation_created,priority:2"`
	UpdatedAt       time.Time
}

// MessageReceipt represents message_receipts. A row exists once the user is in
// the delivered set; ReadAt is set once the user is in the read set.
type MessageReceipt struct {
	MessageID   uuid.UUID `gorm:"type:uuid;primaryKey"`
	UserID      uuid.UUID `gorm:"type:uuid;primaryKey"`
	DeliveredAt time.Time `gorm:"not null"`
	ReadAt      sql.NullTime
}

func (Message) TableName() string {
	return "messages"
}

func (MessageReceipt) TableName() string {
	return "message_receipts"
}

// Receipts is the delivered/read bookkeeping of a single message.
type Receipts struct {
	DeliveredTo []uuid.UUID
	ReadBy      []uuid.UUID
}

func ReceiptsFrom(rows []MessageReceipt) Receipts {
	r := Receipts{
		DeliveredTo: make([]uuid.UUID, 0, len(rows)),
		ReadBy:      make([]uuid.UUID, 0, len(rows)),
	}
	for _, row := range rows {
		r.DeliveredTo = append(r.DeliveredTo, row.UserID)
		if row.ReadAt.Valid {
			r.ReadBy = append(r.ReadBy, row.UserID)
		}
	}
	return r
}
