package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"pulse-chat/internal/domain/message"
	"pulse-chat/internal/events"
	"pulse-chat/internal/metrics"
	"pulse-chat/internal/repository"
	pulse_errors "pulse-chat/pkg/errors"
	"pulse-chat/pkg/logger"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	maxContentLength   = 4096
	maxAttachments     = 10
	maxClientMessageID = 64
)

type SendMessageInput struct {
	ConversationID  uuid.UUID
	Content         string
	Attachments     []string
	ClientMessageID string
}

// MessageService persists new messages, fans them out to the conversation
// and guards acknowledgements.
type MessageService struct {
	messages      repository.MessageRepository
	conversations repository.ConversationRepository
	recipients    *RecipientResolver
	delivery      *DeliveryService
	sender        EventSender
	logger        *logger.Logger
}

func NewMessageService(
	messages repository.MessageRepository,
	conversations repository.ConversationRepository,
	recipients *RecipientResolver,
	delivery *DeliveryService,
	sender EventSender,
	l *logger.Logger,
) *MessageService {
	if l == nil {
		l = logger.NewNop()
	}
	return &MessageService{
		messages:      messages,
		conversations: conversations,
		recipients:    recipients,
		delivery:      delivery,
		sender:        sender,
		logger:        l.Named("messages"),
	}
}

// Send stores a message and emits message:new to every recipient. Resending
// the same client message id returns the stored message without emitting
// again; created reports which case happened.
func (s *MessageService) Send(ctx context.Context, senderID uuid.UUID, in SendMessageInput) (msg message.Message, created bool, err error) {
	if err := validateSend(in); err != nil {
		return message.Message{}, false, err
	}

	if err := s.requireMember(ctx, in.ConversationID, senderID); err != nil {
		return message.Message{}, false, err
	}

	clientID := strings.TrimSpace(in.ClientMessageID)
	if clientID != "" {
		existing, err := s.messages.GetBySenderClientID(ctx, senderID, clientID)
		if err == nil {
			return existing, false, nil
		}
		if !errors.Is(err, pulse_errors.ErrNotFound) {
			return message.Message{}, false, err
		}
	}

	msg = message.Message{
		ID:              uuid.New(),
		ConversationID:  in.ConversationID,
		SenderID:        senderID,
		ClientMessageID: sql.NullString{String: clientID, Valid: clientID != ""},
		Content:         in.Content,
		Attachments:     message.StringList(in.Attachments),
		Status:          message.StatusSent,
		CreatedAt:       time.Now().UTC(),
	}
	if err := s.messages.Create(ctx, &msg); err != nil {
		if errors.Is(err, pulse_errors.ErrAlreadyExists) && clientID != "" {
			existing, getErr := s.messages.GetBySenderClientID(ctx, senderID, clientID)
			if getErr != nil {
				return message.Message{}, false, getErr
			}
			return existing, false, nil
		}
		return message.Message{}, false, err
	}
	metrics.MessagesSent.Inc()

	s.fanOut(context.WithoutCancel(ctx), msg)
	return msg, true, nil
}

func (s *MessageService) fanOut(ctx context.Context, msg message.Message) {
	if s.sender == nil {
		return
	}
	recipients, err := s.recipients.Recipients(ctx, msg.ConversationID, msg.SenderID)
	if err != nil {
		s.logger.With(ctx).Warn("recipients not resolved", zap.String("message_id", msg.ID.String()), zap.Error(err))
		return
	}

	payload := NewMessagePayload(msg)
	for _, userID := range recipients {
		if err := s.sender.SendEventToUser(ctx, userID, events.MessageNew, payload); err != nil {
			s.logger.With(ctx).Warn("message event not sent",
				zap.String("message_id", msg.ID.String()),
				zap.String("recipient_id", userID.String()),
				zap.Error(err),
			)
		}
	}
}

// Get returns a message and its receipts to a member of its conversation.
func (s *MessageService) Get(ctx context.Context, messageID, actorID uuid.UUID) (message.Message, message.Receipts, error) {
	msg, err := s.messages.GetByID(ctx, messageID)
	if err != nil {
		return message.Message{}, message.Receipts{}, err
	}
	if err := s.requireMember(ctx, msg.ConversationID, actorID); err != nil {
		return message.Message{}, message.Receipts{}, err
	}
	rows, err := s.messages.GetReceipts(ctx, messageID)
	if err != nil {
		return message.Message{}, message.Receipts{}, err
	}
	return msg, message.ReceiptsFrom(rows), nil
}

// AuthorizeAck checks that actorID may acknowledge the message: they must be
// a member of its conversation and must not be its sender.
func (s *MessageService) AuthorizeAck(ctx context.Context, messageID, actorID uuid.UUID) error {
	msg, err := s.messages.GetByID(ctx, messageID)
	if err != nil {
		return err
	}
	if msg.SenderID == actorID {
		return fmt.Errorf("sender cannot acknowledge own message: %w", pulse_errors.ErrInvalidInput)
	}
	return s.requireMember(ctx, msg.ConversationID, actorID)
}

func (s *MessageService) AckDelivered(ctx context.Context, messageID, actorID uuid.UUID) (MessageState, error) {
	if err := s.AuthorizeAck(ctx, messageID, actorID); err != nil {
		return MessageState{}, err
	}
	return s.delivery.MarkDelivered(ctx, messageID, actorID)
}

func (s *MessageService) AckRead(ctx context.Context, messageID, actorID uuid.UUID) (MessageState, error) {
	if err := s.AuthorizeAck(ctx, messageID, actorID); err != nil {
		return MessageState{}, err
	}
	return s.delivery.MarkRead(ctx, messageID, actorID)
}

func (s *MessageService) requireMember(ctx context.Context, conversationID, userID uuid.UUID) error {
	ok, err := s.conversations.IsParticipant(ctx, conversationID, userID)
	if err != nil {
		return err
	}
	if !ok {
		return pulse_errors.ErrForbidden
	}
	return nil
}

func NewMessagePayload(msg message.Message) events.MessageNewPayload {
	return events.MessageNewPayload{
		ID:              msg.ID,
		ConversationID:  msg.ConversationID,
		SenderID:        msg.SenderID,
		Content:         msg.Content,
		Attachments:     []string(msg.Attachments),
		ClientMessageID: msg.ClientMessageID.String,
		Status:          string(msg.Status),
		CreatedAt:       msg.CreatedAt,
	}
}

func validateSend(in SendMessageInput) error {
	if in.ConversationID == uuid.Nil {
		return fmt.Errorf("conversation id is required: %w", pulse_errors.ErrInvalidInput)
	}
	if strings.TrimSpace(in.Content) == "" && len(in.Attachments) == 0 {
		return fmt.Errorf("content or attachments required: %w", pulse_errors.ErrInvalidInput)
	}
	if utf8.RuneCountInString(in.Content) > maxContentLength {
		return fmt.Errorf("content exceeds %d characters: %w", maxContentLength, pulse_errors.ErrInvalidInput)
	}
	if len(in.Attachments) > maxAttachments {
		return fmt.Errorf("at most %d attachments: %w", maxAttachments, pulse_errors.ErrInvalidInput)
	}
	for _, a := range in.Attachments {
		if strings.TrimSpace(a) == "" {
			return fmt.Errorf("empty attachment reference: %w", pulse_errors.ErrInvalidInput)
		}
	}
	if len(in.ClientMessageID) > maxClientMessageID {
		return fmt.Errorf("client message id too long: %w", pulse_errors.ErrInvalidInput)
	}
	return nil
}
