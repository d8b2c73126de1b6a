package services

import (
	"context"
	"sync"
	"testing"

	"pulse-chat/internal/domain/conversation"
	"pulse-chat/internal/domain/message"
	"pulse-chat/internal/events"
	pulse_errors "pulse-chat/pkg/errors"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func sendText(t *testing.T, f *chatFixture, conversationID, senderID uuid.UUID) message.Message {
	t.Helper()
	msg, created, err := f.service.Send(context.Background(), senderID, SendMessageInput{
		ConversationID: conversationID,
		Content:        "hello",
	})
	require.NoError(t, err)
	require.True(t, created)
	return msg
}

func statusEvents(f *chatFixture, senderID uuid.UUID) []events.StatusPayload {
	var out []events.StatusPayload
	for _, e := range f.sender.to(senderID, events.MessageStatus) {
		out = append(out, e.Payload.(events.StatusPayload))
	}
	return out
}

func TestPrivateConversationDeliveredThenRead(t *testing.T) {
	f := newChatFixture()
	alice, bob := uuid.New(), uuid.New()
	conv := f.conversations.seed(conversation.TypePrivate, alice, bob)
	ctx := context.Background()

	msg := sendText(t, f, conv, alice)
	require.Len(t, f.sender.to(bob, events.MessageNew), 1)
	require.Empty(t, f.sender.to(alice, events.MessageNew))

	state, err := f.service.AckDelivered(ctx, msg.ID, bob)
	require.NoError(t, err)
	require.Equal(t, message.StatusDelivered, state.Status)
	require.Equal(t, []uuid.UUID{bob}, state.DeliveredTo)
	require.Empty(t, state.ReadBy)

	state, err = f.service.AckRead(ctx, msg.ID, bob)
	require.NoError(t, err)
	require.Equal(t, message.StatusRead, state.Status)
	require.Equal(t, []uuid.UUID{bob}, state.ReadBy)
	require.Equal(t, message.StatusRead, f.messages.status(msg.ID))

	got := statusEvents(f, alice)
	require.Len(t, got, 2)
	require.Equal(t, events.StatusPayload{MessageID: msg.ID, Status: "delivered", UserID: bob}, got[0])
	require.Equal(t, events.StatusPayload{MessageID: msg.ID, Status: "read", UserID: bob}, got[1])
}

func TestGroupStatusWaitsForEveryRecipient(t *testing.T) {
	f := newChatFixture()
	alice, bob, carol := uuid.New(), uuid.New(), uuid.New()
	conv := f.conversations.seed(conversation.TypeGroup, alice, bob, carol)
	ctx := context.Background()

	msg := sendText(t, f, conv, alice)
	require.Len(t, f.sender.to(bob, events.MessageNew), 1)
	require.Len(t, f.sender.to(carol, events.MessageNew), 1)

	state, err := f.service.AckDelivered(ctx, msg.ID, bob)
	require.NoError(t, err)
	require.Equal(t, message.StatusSent, state.Status)

	state, err = f.service.AckDelivered(ctx, msg.ID, carol)
	require.NoError(t, err)
	require.Equal(t, message.StatusDelivered, state.Status)
	require.ElementsMatch(t, []uuid.UUID{bob, carol}, state.DeliveredTo)

	state, err = f.service.AckRead(ctx, msg.ID, bob)
	require.NoError(t, err)
	require.Equal(t, message.StatusDelivered, state.Status)

	state, err = f.service.AckRead(ctx, msg.ID, carol)
	require.NoError(t, err)
	require.Equal(t, message.StatusRead, state.Status)
	require.Len(t, statusEvents(f, alice), 4)
}

func TestDuplicateAcksDoNotEmitAgain(t *testing.T) {
	f := newChatFixture()
	alice, bob := uuid.New(), uuid.New()
	conv := f.conversations.seed(conversation.TypePrivate, alice, bob)
	ctx := context.Background()
	msg := sendText(t, f, conv, alice)

	first, err := f.service.AckDelivered(ctx, msg.ID, bob)
	require.NoError(t, err)
	second, err := f.service.AckDelivered(ctx, msg.ID, bob)
	require.NoError(t, err)
	require.Equal(t, first, second)

	_, err = f.service.AckRead(ctx, msg.ID, bob)
	require.NoError(t, err)
	again, err := f.service.AckRead(ctx, msg.ID, bob)
	require.NoError(t, err)
	require.Equal(t, message.StatusRead, again.Status)
	require.Len(t, again.DeliveredTo, 1)
	require.Len(t, again.ReadBy, 1)

	require.Len(t, statusEvents(f, alice), 2)
}

func TestReadWithoutDeliveredCountsAsDelivered(t *testing.T) {
	f := newChatFixture()
	alice, bob, carol := uuid.New(), uuid.New(), uuid.New()
	conv := f.conversations.seed(conversation.TypeGroup, alice, bob, carol)
	msg := sendText(t, f, conv, alice)

	state, err := f.service.AckRead(context.Background(), msg.ID, bob)
	require.NoError(t, err)
	require.Equal(t, []uuid.UUID{bob}, state.DeliveredTo)
	require.Equal(t, []uuid.UUID{bob}, state.ReadBy)
	require.Equal(t, message.StatusDelivered, state.Status)

	// a later delivered ack from the same user changes nothing
	state, err = f.service.AckDelivered(context.Background(), msg.ID, bob)
	require.NoError(t, err)
	require.Len(t, state.DeliveredTo, 1)
	require.Len(t, statusEvents(f, alice), 1)
}

func TestStatusNeverMovesBackwards(t *testing.T) {
	f := newChatFixture()
	alice, bob := uuid.New(), uuid.New()
	conv := f.conversations.seed(conversation.TypeGroup, alice, bob)
	ctx := context.Background()
	msg := sendText(t, f, conv, alice)

	_, err := f.service.AckRead(ctx, msg.ID, bob)
	require.NoError(t, err)
	require.Equal(t, message.StatusRead, f.messages.status(msg.ID))

	// the recipient count grows after the message was read
	carol := uuid.New()
	require.NoError(t, f.conversations.AddParticipant(ctx, &conversation.Participant{ConversationID: conv, UserID: carol}))

	state, err := f.service.AckDelivered(ctx, msg.ID, carol)
	require.NoError(t, err)
	require.Equal(t, message.StatusRead, state.Status)
	require.Equal(t, message.StatusRead, f.messages.status(msg.ID))
}

func TestConcurrentDeliveredAcks(t *testing.T) {
	f := newChatFixture()
	alice := uuid.New()
	members := []uuid.UUID{alice}
	for i := 0; i < 12; i++ {
		members = append(members, uuid.New())
	}
	conv := f.conversations.seed(conversation.TypeGroup, members...)
	msg := sendText(t, f, conv, alice)

	var wg sync.WaitGroup
	errs := make(chan error, len(members)*3)
	for _, m := range members[1:] {
		for j := 0; j < 3; j++ {
			wg.Add(1)
			go func(userID uuid.UUID) {
				defer wg.Done()
				_, err := f.service.AckDelivered(context.Background(), msg.ID, userID)
				errs <- err
			}(m)
		}
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	require.Equal(t, message.StatusDelivered, f.messages.status(msg.ID))
	require.Len(t, statusEvents(f, alice), len(members)-1)
}

func TestAckAuthorization(t *testing.T) {
	f := newChatFixture()
	alice, bob := uuid.New(), uuid.New()
	conv := f.conversations.seed(conversation.TypePrivate, alice, bob)
	ctx := context.Background()
	msg := sendText(t, f, conv, alice)

	_, err := f.service.AckDelivered(ctx, msg.ID, alice)
	require.ErrorIs(t, err, pulse_errors.ErrInvalidInput)

	_, err = f.service.AckRead(ctx, msg.ID, uuid.New())
	require.ErrorIs(t, err, pulse_errors.ErrForbidden)

	_, err = f.service.AckDelivered(ctx, uuid.New(), bob)
	require.ErrorIs(t, err, pulse_errors.ErrNotFound)

	require.Empty(t, statusEvents(f, alice))
}
