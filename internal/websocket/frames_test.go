package websocket

import (
	"context"
	"testing"

	"pulse-chat/internal/domain/call"
	"pulse-chat/internal/events"
	"pulse-chat/internal/services"
	pulse_errors "pulse-chat/pkg/errors"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

type fakeAcker struct {
	delivered, read []uuid.UUID
}

func (f *fakeAcker) AckDelivered(_ context.Context, messageID, _ uuid.UUID) (services.MessageState, error) {
	f.delivered = append(f.delivered, messageID)
	return services.MessageState{MessageID: messageID}, nil
}

func (f *fakeAcker) AckRead(_ context.Context, messageID, _ uuid.UUID) (services.MessageState, error) {
	f.read = append(f.read, messageID)
	return services.MessageState{MessageID: messageID}, nil
}

type fakeRinger struct {
	calls []uuid.UUID
	actor uuid.UUID
}

func (f *fakeRinger) ReportRinging(_ context.Context, callID, actorID uuid.UUID) (call.Call, error) {
	f.calls = append(f.calls, callID)
	f.actor = actorID
	return call.Call{ID: callID}, nil
}

func TestFrameRouter(t *testing.T) {
	acker, ringer := &fakeAcker{}, &fakeRinger{}
	router := NewFrameRouter(acker, ringer)
	client := &Client{userID: uuid.New()}
	ctx := context.Background()

	msgID, callID := uuid.New(), uuid.New()
	require.NoError(t, router.HandleFrame(ctx, client, InboundFrame{Type: events.FrameMessageDelivered, MessageID: msgID}))
	require.NoError(t, router.HandleFrame(ctx, client, InboundFrame{Type: events.FrameMessageRead, MessageID: msgID}))
	require.NoError(t, router.HandleFrame(ctx, client, InboundFrame{Type: events.FrameCallRinging, CallID: callID}))

	require.Equal(t, []uuid.UUID{msgID}, acker.delivered)
	require.Equal(t, []uuid.UUID{msgID}, acker.read)
	require.Equal(t, []uuid.UUID{callID}, ringer.calls)
	require.Equal(t, client.userID, ringer.actor)

	require.ErrorIs(t, router.HandleFrame(ctx, client, InboundFrame{Type: events.FrameMessageRead}), pulse_errors.ErrInvalidInput)
	require.ErrorIs(t, router.HandleFrame(ctx, client, InboundFrame{Type: events.FrameCallRinging}), pulse_errors.ErrInvalidInput)
	require.ErrorIs(t, router.HandleFrame(ctx, client, InboundFrame{Type: "typing"}), pulse_errors.ErrInvalidInput)
}
