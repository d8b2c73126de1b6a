package database

import (
	"database/sql"
	"errors"
	"fmt"
	"log"
	"time"

	"pulse-chat/internal/domain/conversation"
	"pulse-chat/internal/domain/user"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// SeedResult holds the result of the seeding operation
type SeedResult struct {
	Users         []*user.User
	Conversations []*conversation.Conversation
}

var testUserData = []struct {
	username    string
	displayName string
}{
	{"alice", "Alice Johnson"},
	{"bob", "Bob Smith"},
	{"charlie", "Charlie Brown"},
	{"diana", "Diana Prince"},
}

// SeedDevelopment creates a handful of users, one private conversation and
// one group so that a local instance can be exercised end to end. Existing
// users are reused.
func SeedDevelopment(db *gorm.DB) (*SeedResult, error) {
	log.Println("Starting database seeding...")

	result := &SeedResult{}
	err := db.Transaction(func(tx *gorm.DB) error {
		users, err := seedTestUsers(tx)
		if err != nil {
			return fmt.Errorf("failed to seed test users: %w", err)
		}
		result.Users = users

		convs, err := seedConversations(tx, users)
		if err != nil {
			return fmt.Errorf("failed to seed conversations: %w", err)
		}
		result.Conversations = convs
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Println("Database seeding completed successfully!")
	return result, nil
}

func seedTestUsers(tx *gorm.DB) ([]*user.User, error) {
	users := make([]*user.User, 0, len(testUserData))
	for _, data := range testUserData {
		var existing user.User
		err := tx.Where("username = ?", data.username).First(&existing).Error
		if err == nil {
			log.Printf("Test user %s already exists, skipping", data.username)
			users = append(users, &existing)
			continue
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}

		now := time.Now().UTC()
		newUser := &user.User{
			ID:          uuid.New(),
			Username:    sql.NullString{String: data.username, Valid: true},
			DisplayName: data.displayName,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		if err := tx.Create(newUser).Error; err != nil {
			return nil, fmt.Errorf("failed to create test user %s: %w", data.username, err)
		}
		users = append(users, newUser)
		log.Printf("Test user seeded: %s (%s)", data.username, newUser.ID)
	}
	return users, nil
}

func seedConversations(tx *gorm.DB, users []*user.User) ([]*conversation.Conversation, error) {
	if len(users) < 3 {
		return nil, nil
	}

	groups := []struct {
		convType conversation.Type
		subject  string
		members  []*user.User
	}{
		{conversation.TypePrivate, "", users[:2]},
		{conversation.TypeGroup, "Team", users[:3]},
	}

	out := make([]*conversation.Conversation, 0, len(groups))
	for _, g := range groups {
		now := time.Now().UTC()
		creator := g.members[0].ID
		conv := &conversation.Conversation{
			ID:        uuid.New(),
			Type:      g.convType,
			Subject:   sql.NullString{String: g.subject, Valid: g.subject != ""},
			CreatedBy: uuid.NullUUID{UUID: creator, Valid: true},
			CreatedAt: now,
			UpdatedAt: now,
		}
		for i, m := range g.members {
			role := conversation.RoleMember
			if m.ID == creator {
				role = conversation.RoleOwner
			}
			conv.Participants = append(conv.Participants, conversation.Participant{
				ConversationID: conv.ID,
				UserID:         m.ID,
				Role:           role,
				JoinedAt:       now.Add(time.Duration(i) * time.Microsecond),
				AddedBy:        uuid.NullUUID{UUID: creator, Valid: true},
			})
		}
		if err := tx.Create(conv).Error; err != nil {
			return nil, err
		}
		out = append(out, conv)
		log.Printf("Conversation seeded: %s %s", conv.Type, conv.ID)
	}
	return out, nil
}

// TruncateAll empties every table owned by the delivery core.
func TruncateAll(db *gorm.DB) error {
	return db.Exec("TRUNCATE TABLE message_receipts, messages, calls, participants, conversations, users CASCADE").Error
}
