package repository

import (
	"context"

	"pulse-chat/internal/domain/conversation"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type PostgresConversationRepository struct {
	db *gorm.DB
}

func NewConversationRepository(db *gorm.DB) ConversationRepository {
	return &PostgresConversationRepository{db: db}
}

// Create inserts the conversation together with its participants.
func (r *PostgresConversationRepository) Create(ctx context.Context, c *conversation.Conversation) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		participants := c.Participants
		c.Participants = nil
		if err := tx.Create(c).Error; err != nil {
			return err
		}
		if len(participants) > 0 {
			if err := tx.Create(&participants).Error; err != nil {
				return err
			}
		}
		c.Participants = participants
		return nil
	})
	return translate("create conversation", err)
}

func (r *PostgresConversationRepository) GetByID(ctx context.Context, id uuid.UUID) (conversation.Conversation, error) {
	var c conversation.Conversation
	err := r.db.WithContext(ctx).
		Preload("Participants", func(db *gorm.DB) *gorm.DB {
			return db.Order("joined_at ASC, user_id ASC")
		}).
		Where("id = ?", id).
		First(&c).Error
	if err != nil {
		return conversation.Conversation{}, translate("get conversation", err)
	}
	return c, nil
}

func (r *PostgresConversationRepository) AddParticipant(ctx context.Context, p *conversation.Participant) error {
	return translate("add participant", r.db.WithContext(ctx).Create(p).Error)
}

func (r *PostgresConversationRepository) GetParticipants(ctx context.Context, conversationID uuid.UUID) ([]conversation.Participant, error) {
	var participants []conversation.Participant
	err := r.db.WithContext(ctx).
		Where("conversation_id = ?", conversationID).
		Order("joined_at ASC, user_id ASC").
		Find(&participants).Error
	if err != nil {
		return nil, translate("get participants", err)
	}
	return participants, nil
}

func (r *PostgresConversationRepository) IsParticipant(ctx context.Context, conversationID, userID uuid.UUID) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&conversation.Participant{}).
		Where("conversation_id = ? AND user_id = ?", conversationID, userID).
		Count(&count).Error
	if err != nil {
		return false, translate("check participant", err)
	}
	return count > 0, nil
}

func (r *PostgresConversationRepository) GetParticipantCount(ctx context.Context, conversationID uuid.UUID) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&conversation.Participant{}).
		Where("conversation_id = ?", conversationID).
		Count(&count).Error
	if err != nil {
		return 0, translate("count participants", err)
	}
	return count, nil
}
