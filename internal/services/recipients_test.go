package services

import (
	"context"
	"testing"

	"pulse-chat/internal/domain/conversation"
	pulse_errors "pulse-chat/pkg/errors"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func TestRecipientsExcludeSenderInJoinOrder(t *testing.T) {
	convs := newFakeConversations()
	a, b, c := uuid.New(), uuid.New(), uuid.New()
	conv := convs.seed(conversation.TypeGroup, a, b, c)
	r := NewRecipientResolver(convs)

	got, err := r.Recipients(context.Background(), conv, b)
	require.NoError(t, err)
	require.Equal(t, []uuid.UUID{a, c}, got)

	count, err := r.RecipientCount(context.Background(), conv)
	require.NoError(t, err)
	require.Equal(t, 2, count)
}

func TestRecipientsDegenerateConversations(t *testing.T) {
	convs := newFakeConversations()
	a := uuid.New()
	solo := convs.seed(conversation.TypeGroup, a)
	r := NewRecipientResolver(convs)

	got, err := r.Recipients(context.Background(), solo, a)
	require.NoError(t, err)
	require.Equal(t, []uuid.UUID{a}, got)

	count, err := r.RecipientCount(context.Background(), solo)
	require.NoError(t, err)
	require.Zero(t, count)

	_, err = r.Recipients(context.Background(), uuid.New(), a)
	require.ErrorIs(t, err, pulse_errors.ErrNotFound)

	count, err = r.RecipientCount(context.Background(), uuid.New())
	require.NoError(t, err)
	require.Zero(t, count)
}
