package repository

import (
	"context"
	"database/sql"
	"time"

	"pulse-chat/internal/domain/message"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type PostgresMessageRepository struct {
	db *gorm.DB
}

func NewMessageRepository(db *gorm.DB) MessageRepository {
	return &PostgresMessageRepository{db: db}
}

func (r *PostgresMessageRepository) Create(ctx context.Context, m *message.Message) error {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	return translate("create message", r.db.WithContext(ctx).Create(m).Error)
}

func (r *PostgresMessageRepository) GetByID(ctx context.Context, id uuid.UUID) (message.Message, error) {
	var m message.Message
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&m).Error
	if err != nil {
		return message.Message{}, translate("get message", err)
	}
	return m, nil
}

func (r *PostgresMessageRepository) GetBySenderClientID(ctx context.Context, senderID uuid.UUID, clientMessageID string) (message.Message, error) {
	var m message.Message
	err := r.db.WithContext(ctx).
		Where("sender_id = ? AND client_message_id = ?", senderID, clientMessageID).
		First(&m).Error
	if err != nil {
		return message.Message{}, translate("get message by client id", err)
	}
	return m, nil
}

func (r *PostgresMessageRepository) AddDelivered(ctx context.Context, messageID, userID uuid.UUID, at time.Time) (bool, error) {
	res := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&message.MessageReceipt{
			MessageID:   messageID,
			UserID:      userID,
			DeliveredAt: at,
		})
	if res.Error != nil {
		return false, translate("add delivered receipt", res.Error)
	}
	return res.RowsAffected == 1, nil
}

func (r *PostgresMessageRepository) AddRead(ctx context.Context, messageID, userID uuid.UUID, at time.Time) (bool, error) {
	var added bool
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// reading implies having received
		if err := tx.Clauses(clause.OnConflict{DoNothing: true}).
			Create(&message.MessageReceipt{
				MessageID:   messageID,
				UserID:      userID,
				DeliveredAt: at,
			}).Error; err != nil {
			return err
		}
		res := tx.Model(&message.MessageReceipt{}).
			Where("message_id = ? AND user_id = ? AND read_at IS NULL", messageID, userID).
			Update("read_at", sql.NullTime{Time: at, Valid: true})
		if res.Error != nil {
			return res.Error
		}
		added = res.RowsAffected == 1
		return nil
	})
	if err != nil {
		return false, translate("add read receipt", err)
	}
	return added, nil
}

func (r *PostgresMessageRepository) CountReceipts(ctx context.Context, messageID uuid.UUID) (int64, int64, error) {
	var counts struct {
		Delivered int64
		Read      int64
	}
	err := r.db.WithContext(ctx).
		Model(&message.MessageReceipt{}).
		Select("COUNT(*) AS delivered, COUNT(read_at) AS read").
		Where("message_id = ?", messageID).
		Scan(&counts).Error
	if err != nil {
		return 0, 0, translate("count receipts", err)
	}
	return counts.Delivered, counts.Read, nil
}

func (r *PostgresMessageRepository) GetReceipts(ctx context.Context, messageID uuid.UUID) ([]message.MessageReceipt, error) {
	var receipts []message.MessageReceipt
	err := r.db.WithContext(ctx).
		Where("message_id = ?", messageID).
		Order("delivered_at ASC, user_id ASC").
		Find(&receipts).Error
	if err != nil {
		return nil, translate("get receipts", err)
	}
	return receipts, nil
}

func (r *PostgresMessageRepository) PromoteStatus(ctx context.Context, messageID uuid.UUID, status message.Status) (bool, error) {
	lower := status.Below()
	if len(lower) == 0 {
		return false, nil
	}
	res := r.db.WithContext(ctx).
		Model(&message.Message{}).
		Where("id = ? AND status IN ?", messageID, lower).
		Updates(map[string]interface{}{
			"status":     status,
			"updated_at": time.Now(),
		})
	if res.Error != nil {
		return false, translate("promote message status", res.Error)
	}
	return res.RowsAffected == 1, nil
}
