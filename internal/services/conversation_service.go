package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"pulse-chat/internal/domain/conversation"
	"pulse-chat/internal/events"
	"pulse-chat/internal/repository"
	pulse_errors "pulse-chat/pkg/errors"
	"pulse-chat/pkg/logger"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const maxGroupMembers = 256

type CreateConversationInput struct {
	Type      conversation.Type
	Subject   string
	MemberIDs []uuid.UUID
}

type ConversationService struct {
	conversations repository.ConversationRepository
	sender        EventSender
	logger        *logger.Logger
}

func NewConversationService(conversations repository.ConversationRepository, sender EventSender, l *logger.Logger) *ConversationService {
	if l == nil {
		l = logger.NewNop()
	}
	return &ConversationService{
		conversations: conversations,
		sender:        sender,
		logger:        l.Named("conversations"),
	}
}

// Create makes a conversation owned by creatorID. The creator is always a
// member; a PRIVATE conversation must end up with exactly two members and a
// GROUP with at least two.
func (s *ConversationService) Create(ctx context.Context, creatorID uuid.UUID, in CreateConversationInput) (conversation.Conversation, error) {
	convType := conversation.Type(strings.ToUpper(string(in.Type)))
	if !convType.Valid() {
		return conversation.Conversation{}, fmt.Errorf("type must be PRIVATE or GROUP: %w", pulse_errors.ErrInvalidInput)
	}

	members := uniqueMembers(creatorID, in.MemberIDs)
	switch {
	case convType == conversation.TypePrivate && len(members) != 2:
		return conversation.Conversation{}, fmt.Errorf("private conversation needs exactly one other member: %w", pulse_errors.ErrInvalidInput)
	case convType == conversation.TypeGroup && len(members) < 2:
		return conversation.Conversation{}, fmt.Errorf("group needs at least one other member: %w", pulse_errors.ErrInvalidInput)
	case len(members) > maxGroupMembers:
		return conversation.Conversation{}, fmt.Errorf("at most %d members: %w", maxGroupMembers, pulse_errors.ErrInvalidInput)
	}

	now := time.Now().UTC()
	conv := conversation.Conversation{
		ID:        uuid.New(),
		Type:      convType,
		Subject:   sql.NullString{String: strings.TrimSpace(in.Subject), Valid: strings.TrimSpace(in.Subject) != ""},
		CreatedBy: uuid.NullUUID{UUID: creatorID, Valid: true},
		CreatedAt: now,
		UpdatedAt: now,
	}
	for i, id := range members {
		role := conversation.RoleMember
		if id == creatorID {
			role = conversation.RoleOwner
		}
		conv.Participants = append(conv.Participants, conversation.Participant{
			ConversationID: conv.ID,
			UserID:         id,
			Role:           role,
			// keep join order stable for recipient ordering
			JoinedAt: now.Add(time.Duration(i) * time.Microsecond),
			AddedBy:  uuid.NullUUID{UUID: creatorID, Valid: true},
		})
	}

	if err := s.conversations.Create(ctx, &conv); err != nil {
		return conversation.Conversation{}, err
	}

	payload := events.ConversationNewPayload{
		ConversationID: conv.ID,
		Type:           string(conv.Type),
		Subject:        conv.Subject.String,
		CreatedBy:      creatorID,
		Members:        members,
	}
	for _, id := range members {
		if id == creatorID {
			continue
		}
		s.notify(ctx, id, payload)
	}
	return conv, nil
}

// Get returns a conversation with its members to one of those members.
func (s *ConversationService) Get(ctx context.Context, conversationID, actorID uuid.UUID) (conversation.Conversation, error) {
	conv, err := s.conversations.GetByID(ctx, conversationID)
	if err != nil {
		return conversation.Conversation{}, err
	}
	for _, p := range conv.Participants {
		if p.UserID == actorID {
			return conv, nil
		}
	}
	return conversation.Conversation{}, pulse_errors.ErrForbidden
}

// AddMember adds userID to a group. Only existing members may add others.
func (s *ConversationService) AddMember(ctx context.Context, conversationID, actorID, userID uuid.UUID) (conversation.Conversation, error) {
	if userID == uuid.Nil {
		return conversation.Conversation{}, fmt.Errorf("user id is required: %w", pulse_errors.ErrInvalidInput)
	}
	conv, err := s.Get(ctx, conversationID, actorID)
	if err != nil {
		return conversation.Conversation{}, err
	}
	if conv.Type != conversation.TypeGroup {
		return conversation.Conversation{}, fmt.Errorf("members can only be added to groups: %w", pulse_errors.ErrInvalidInput)
	}
	if len(conv.Participants) >= maxGroupMembers {
		return conversation.Conversation{}, fmt.Errorf("group is full: %w", pulse_errors.ErrConflict)
	}

	p := conversation.Participant{
		ConversationID: conversationID,
		UserID:         userID,
		Role:           conversation.RoleMember,
		JoinedAt:       time.Now().UTC(),
		AddedBy:        uuid.NullUUID{UUID: actorID, Valid: true},
	}
	if err := s.conversations.AddParticipant(ctx, &p); err != nil {
		if errors.Is(err, pulse_errors.ErrAlreadyExists) {
			return conversation.Conversation{}, fmt.Errorf("already a member: %w", pulse_errors.ErrConflict)
		}
		return conversation.Conversation{}, err
	}
	conv.Participants = append(conv.Participants, p)

	s.notify(ctx, userID, events.ConversationNewPayload{
		ConversationID: conv.ID,
		Type:           string(conv.Type),
		Subject:        conv.Subject.String,
		CreatedBy:      conv.CreatedBy.UUID,
		Members:        conv.MemberIDs(),
	})
	return conv, nil
}

func (s *ConversationService) notify(ctx context.Context, userID uuid.UUID, payload events.ConversationNewPayload) {
	if s.sender == nil {
		return
	}
	if err := s.sender.SendEventToUser(context.WithoutCancel(ctx), userID, events.ConversationNew, payload); err != nil {
		s.logger.With(ctx).Warn("conversation event not sent",
			zap.String("conversation_id", payload.ConversationID.String()),
			zap.String("recipient_id", userID.String()),
			zap.Error(err),
		)
	}
}

func uniqueMembers(creatorID uuid.UUID, ids []uuid.UUID) []uuid.UUID {
	seen := map[uuid.UUID]struct{}{creatorID: {}}
	out := []uuid.UUID{creatorID}
	for _, id := range ids {
		if id == uuid.Nil {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
