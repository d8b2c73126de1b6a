package services

import (
	"context"
	"fmt"

	"pulse-chat/internal/repository"
	pulse_errors "pulse-chat/pkg/errors"

	"github.com/google/uuid"
)

// RecipientResolver turns a conversation into the set of users an event
// about it should reach.
type RecipientResolver struct {
	conversations repository.ConversationRepository
}

func NewRecipientResolver(conversations repository.ConversationRepository) *RecipientResolver {
	return &RecipientResolver{conversations: conversations}
}

// Recipients returns every member except senderID in join order. A
// conversation whose only member is the sender resolves to the sender.
func (r *RecipientResolver) Recipients(ctx context.Context, conversationID, senderID uuid.UUID) ([]uuid.UUID, error) {
	participants, err := r.conversations.GetParticipants(ctx, conversationID)
	if err != nil {
		return nil, fmt.Errorf("resolve recipients: %w", err)
	}
	if len(participants) == 0 {
		return nil, pulse_errors.ErrNotFound
	}

	out := make([]uuid.UUID, 0, len(participants))
	senderIsMember := false
	for _, p := range participants {
		if p.UserID == senderID {
			senderIsMember = true
			continue
		}
		out = append(out, p.UserID)
	}
	if len(out) == 0 && senderIsMember {
		return []uuid.UUID{senderID}, nil
	}
	return out, nil
}

// RecipientCount is the number of members other than the sender.
func (r *RecipientResolver) RecipientCount(ctx context.Context, conversationID uuid.UUID) (int, error) {
	count, err := r.conversations.GetParticipantCount(ctx, conversationID)
	if err != nil {
		return 0, fmt.Errorf("count recipients: %w", err)
	}
	if count <= 1 {
		return 0, nil
	}
	return int(count - 1), nil
}
