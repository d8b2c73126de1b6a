package repository

import (
	"context"
	"time"

	"pulse-chat/internal/domain/call"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type PostgresCallRepository struct {
	db *gorm.DB
}

func NewCallRepository(db *gorm.DB) CallRepository {
	return &PostgresCallRepository{db: db}
}

func (r *PostgresCallRepository) Create(ctx context.Context, c *call.Call) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	return translate("create call", r.db.WithContext(ctx).Create(c).Error)
}

func (r *PostgresCallRepository) GetByID(ctx context.Context, id uuid.UUID) (call.Call, error) {
	var c call.Call
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&c).Error
	if err != nil {
		return call.Call{}, translate("get call", err)
	}
	return c, nil
}

func (r *PostgresCallRepository) Transition(ctx context.Context, callID uuid.UUID, from []call.Status, update CallUpdate) (bool, error) {
	updates := map[string]interface{}{
		"status":     update.Status,
		"updated_at": time.Now(),
	}
	if update.StartTime != nil {
		updates["start_time"] = *update.StartTime
	}
	if update.EndTime != nil {
		updates["end_time"] = *update.EndTime
	}
	if update.Duration != nil {
		updates["duration"] = *update.Duration
	}
	if update.EndedBy != nil {
		updates["ended_by"] = *update.EndedBy
	}

	res := r.db.WithContext(ctx).
		Model(&call.Call{}).
		Where("id = ? AND status IN ?", callID, from).
		Updates(updates)
	if res.Error != nil {
		return false, translate("transition call", res.Error)
	}
	return res.RowsAffected == 1, nil
}

func (r *PostgresCallRepository) GetUserCalls(ctx context.Context, userID uuid.UUID, page, limit int) ([]call.Call, int64, error) {
	var calls []call.Call
	var total int64

	q := r.db.WithContext(ctx).
		Model(&call.Call{}).
		Where("caller_id = ? OR receiver_id = ?", userID, userID)

	if err := q.Count(&total).Error; err != nil {
		return nil, 0, translate("count user calls", err)
	}

	offset, limit := pageOffset(page, limit)
	if err := q.Order("created_at DESC").Offset(offset).Limit(limit).Find(&calls).Error; err != nil {
		return nil, 0, translate("list user calls", err)
	}

	return calls, total, nil
}

func (r *PostgresCallRepository) GetUnansweredBefore(ctx context.Context, cutoff time.Time, limit int) ([]call.Call, error) {
	var calls []call.Call
	err := r.db.WithContext(ctx).
		Where("status IN ? AND created_at < ?", []call.Status{call.StatusInitiated, call.StatusRinging}, cutoff).
		Order("created_at ASC").
		Limit(limit).
		Find(&calls).Error
	if err != nil {
		return nil, translate("list unanswered calls", err)
	}
	return calls, nil
}
