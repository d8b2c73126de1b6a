package user

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
)

// User represents the users table. The delivery core only reads it to put a
// display name on call invitations and media credentials.
type User struct {
	ID          uuid.UUID      `gorm:"type:uuid;primaryKey"`
	Username    sql.NullString `gorm:"uniqueIndex"`
	DisplayName string
	AvatarURL   string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

func (User) TableName() string {
	return "users"
}

// Name returns the best human readable label for the user.
func (u User) Name() string {
	if u.DisplayName != "" {
		return u.DisplayName
	}
	if u.Username.Valid && u.Username.String != "" {
		return u.Username.String
	}
	return u.ID.String()
}
