package services

import (
	"context"
	"fmt"
	"time"

	"pulse-chat/internal/domain/message"
	"pulse-chat/internal/events"
	"pulse-chat/internal/metrics"
	"pulse-chat/internal/repository"
	"pulse-chat/pkg/logger"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// MessageState is the delivery bookkeeping of a message after an ack.
type MessageState struct {
	MessageID   uuid.UUID      `json:"messageId"`
	Status      message.Status `json:"status"`
	DeliveredTo []uuid.UUID    `json:"deliveredTo"`
	ReadBy      []uuid.UUID    `json:"readBy"`
}

// DeliveryService applies delivered and read acknowledgements to messages.
// Acks for one message are serialized in-process and every store write is
// conditional, so concurrent acks across instances stay consistent.
type DeliveryService struct {
	messages   repository.MessageRepository
	recipients *RecipientResolver
	sender     EventSender
	locks      *KeyedMutex
	logger     *logger.Logger
	now        func() time.Time
}

func NewDeliveryService(messages repository.MessageRepository, recipients *RecipientResolver, sender EventSender, l *logger.Logger) *DeliveryService {
	if l == nil {
		l = logger.NewNop()
	}
	return &DeliveryService{
		messages:   messages,
		recipients: recipients,
		sender:     sender,
		locks:      NewKeyedMutex(),
		logger:     l.Named("delivery"),
		now:        time.Now,
	}
}

func (s *DeliveryService) MarkDelivered(ctx context.Context, messageID, userID uuid.UUID) (MessageState, error) {
	ctx = context.WithoutCancel(ctx)
	unlock := s.locks.Lock(messageID)
	defer unlock()

	msg, err := s.messages.GetByID(ctx, messageID)
	if err != nil {
		return MessageState{}, err
	}

	added, err := s.messages.AddDelivered(ctx, messageID, userID, s.now())
	if err != nil {
		metrics.AckOutcomes.WithLabelValues("delivered", "error").Inc()
		return MessageState{}, err
	}
	if !added {
		metrics.AckOutcomes.WithLabelValues("delivered", "duplicate").Inc()
		return s.state(ctx, msg.ID, msg.Status)
	}

	recipientCount, err := s.recipients.RecipientCount(ctx, msg.ConversationID)
	if err != nil {
		return MessageState{}, err
	}
	delivered, _, err := s.messages.CountReceipts(ctx, messageID)
	if err != nil {
		return MessageState{}, err
	}

	status := msg.Status
	if delivered >= int64(recipientCount) {
		status, err = s.promote(ctx, msg, message.StatusDelivered)
		if err != nil {
			return MessageState{}, err
		}
	}

	metrics.AckOutcomes.WithLabelValues("delivered", "applied").Inc()
	s.notifySender(ctx, msg.SenderID, events.StatusPayload{MessageID: messageID, Status: "delivered", UserID: userID})
	return s.state(ctx, messageID, status)
}

func (s *DeliveryService) MarkRead(ctx context.Context, messageID, userID uuid.UUID) (MessageState, error) {
	ctx = context.WithoutCancel(ctx)
	unlock := s.locks.Lock(messageID)
	defer unlock()

	msg, err := s.messages.GetByID(ctx, messageID)
	if err != nil {
		return MessageState{}, err
	}

	added, err := s.messages.AddRead(ctx, messageID, userID, s.now())
	if err != nil {
		metrics.AckOutcomes.WithLabelValues("read", "error").Inc()
		return MessageState{}, err
	}
	if !added {
		metrics.AckOutcomes.WithLabelValues("read", "duplicate").Inc()
		return s.state(ctx, msg.ID, msg.Status)
	}

	recipientCount, err := s.recipients.RecipientCount(ctx, msg.ConversationID)
	if err != nil {
		return MessageState{}, err
	}
	_, read, err := s.messages.CountReceipts(ctx, messageID)
	if err != nil {
		return MessageState{}, err
	}

	target := message.StatusDelivered
	if read >= int64(recipientCount) {
		target = message.StatusRead
	}
	status, err := s.promote(ctx, msg, target)
	if err != nil {
		return MessageState{}, err
	}

	metrics.AckOutcomes.WithLabelValues("read", "applied").Inc()
	s.notifySender(ctx, msg.SenderID, events.StatusPayload{MessageID: messageID, Status: "read", UserID: userID})
	return s.state(ctx, messageID, status)
}

// promote raises the stored status to target unless it is already at or
// above it, and returns the resulting status.
func (s *DeliveryService) promote(ctx context.Context, msg message.Message, target message.Status) (message.Status, error) {
	if msg.Status.Rank() >= target.Rank() {
		return msg.Status, nil
	}
	promoted, err := s.messages.PromoteStatus(ctx, msg.ID, target)
	if err != nil {
		return "", err
	}
	if promoted {
		return target, nil
	}
	// another instance moved it first; report what is stored now
	current, err := s.messages.GetByID(ctx, msg.ID)
	if err != nil {
		return "", err
	}
	return current.Status, nil
}

func (s *DeliveryService) state(ctx context.Context, messageID uuid.UUID, status message.Status) (MessageState, error) {
	rows, err := s.messages.GetReceipts(ctx, messageID)
	if err != nil {
		return MessageState{}, fmt.Errorf("load receipts: %w", err)
	}
	receipts := message.ReceiptsFrom(rows)
	return MessageState{
		MessageID:   messageID,
		Status:      status,
		DeliveredTo: receipts.DeliveredTo,
		ReadBy:      receipts.ReadBy,
	}, nil
}

func (s *DeliveryService) notifySender(ctx context.Context, senderID uuid.UUID, payload events.StatusPayload) {
	if s.sender == nil {
		return
	}
	if err := s.sender.SendEventToUser(ctx, senderID, events.MessageStatus, payload); err != nil {
		s.logger.With(ctx).Warn("status event not sent",
			zap.String("message_id", payload.MessageID.String()),
			zap.Error(err),
		)
	}
}
