package services

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"pulse-chat/internal/domain/call"
	"pulse-chat/internal/domain/conversation"
	"pulse-chat/internal/domain/user"
	"pulse-chat/internal/events"
	pulse_errors "pulse-chat/pkg/errors"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

type callFixture struct {
	calls         *fakeCalls
	conversations *fakeConversations
	tokens        *fakeTokens
	sender        *recordingSender
	service       *CallService
	clock         time.Time
	caller        uuid.UUID
	receiver      uuid.UUID
}

func newCallFixture() *callFixture {
	f := &callFixture{
		calls:         newFakeCalls(),
		conversations: newFakeConversations(),
		tokens:        &fakeTokens{},
		sender:        &recordingSender{},
		clock:         time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
		caller:        uuid.New(),
		receiver:      uuid.New(),
	}
	users := &fakeUsers{users: map[uuid.UUID]user.User{
		f.caller:   {ID: f.caller, DisplayName: "Alice", AvatarURL: "https://cdn/alice.png"},
		f.receiver: {ID: f.receiver, DisplayName: "Bob"},
	}}
	f.service = NewCallService(f.calls, users, f.conversations, f.tokens, f.sender, nil)
	f.service.now = func() time.Time { return f.clock }
	return f
}

func (f *callFixture) initiate(t *testing.T) call.Call {
	t.Helper()
	session, err := f.service.Initiate(context.Background(), f.caller, InitiateCallInput{ReceiverID: f.receiver, Type: "VIDEO"})
	require.NoError(t, err)
	return session.Call
}

func TestVideoCallLifecycle(t *testing.T) {
	f := newCallFixture()
	ctx := context.Background()

	session, err := f.service.Initiate(ctx, f.caller, InitiateCallInput{ReceiverID: f.receiver, Type: "video"})
	require.NoError(t, err)
	c := session.Call
	require.Equal(t, call.StatusInitiated, c.Status)
	require.Equal(t, call.TypeVideo, c.Type)
	require.True(t, strings.HasPrefix(c.RoomID, "room_"))
	require.Equal(t, "tok:"+c.RoomID+":"+f.caller.String(), session.Token)

	incoming := f.sender.to(f.receiver, events.CallIncoming)
	require.Len(t, incoming, 1)
	payload := incoming[0].Payload.(events.CallIncomingPayload)
	require.Equal(t, c.ID, payload.CallID)
	require.Equal(t, c.RoomID, payload.RoomID)
	require.Equal(t, "Alice", payload.Caller.DisplayName)
	require.Nil(t, payload.ConversationID)

	ringing, err := f.service.ReportRinging(ctx, c.ID, f.receiver)
	require.NoError(t, err)
	require.Equal(t, call.StatusRinging, ringing.Status)
	_, err = f.service.ReportRinging(ctx, c.ID, f.receiver)
	require.NoError(t, err)
	require.Len(t, f.sender.to(f.caller, events.CallRinging), 1)

	accepted, err := f.service.Accept(ctx, c.ID, f.receiver)
	require.NoError(t, err)
	require.Equal(t, call.StatusAccepted, accepted.Call.Status)
	require.True(t, accepted.Call.StartTime.Valid)
	require.Equal(t, "tok:"+c.RoomID+":"+f.receiver.String(), accepted.Token)

	_, err = f.service.Accept(ctx, c.ID, f.receiver)
	require.ErrorIs(t, err, pulse_errors.ErrConflict)
	require.Len(t, f.sender.to(f.caller, events.CallAccepted), 1)

	f.clock = f.clock.Add(95 * time.Second)
	ended, err := f.service.End(ctx, c.ID, f.caller, "")
	require.NoError(t, err)
	require.Equal(t, call.StatusEnded, ended.Status)
	require.Equal(t, int32(95), ended.Duration.Int32)
	require.Equal(t, f.caller, ended.EndedBy.UUID)

	endedEvents := f.sender.to(f.receiver, events.CallEnded)
	require.Len(t, endedEvents, 1)
	endPayload := endedEvents[0].Payload.(events.CallEndedPayload)
	require.Equal(t, "ENDED", endPayload.Status)
	require.Equal(t, int64(95), endPayload.Duration)

	_, err = f.service.End(ctx, c.ID, f.receiver, "")
	require.ErrorIs(t, err, pulse_errors.ErrConflict)
	require.ErrorIs(t, err, pulse_errors.ErrInvalidTransition)
	require.Len(t, f.sender.to(f.caller, events.CallEnded), 0)
}

func TestRejectBeforeAnswerHasNoDuration(t *testing.T) {
	f := newCallFixture()
	c := f.initiate(t)

	ended, err := f.service.End(context.Background(), c.ID, f.receiver, "rejected")
	require.NoError(t, err)
	require.Equal(t, call.StatusRejected, ended.Status)
	require.False(t, ended.Duration.Valid)
	require.True(t, ended.EndTime.Valid)

	got := f.sender.to(f.caller, events.CallEnded)
	require.Len(t, got, 1)
	require.Equal(t, int64(0), got[0].Payload.(events.CallEndedPayload).Duration)
}

func TestEndStatusFallsBackToEnded(t *testing.T) {
	f := newCallFixture()
	c := f.initiate(t)

	ended, err := f.service.End(context.Background(), c.ID, f.caller, "accepted")
	require.NoError(t, err)
	require.Equal(t, call.StatusEnded, ended.Status)
}

func TestInitiateValidation(t *testing.T) {
	f := newCallFixture()
	ctx := context.Background()

	tests := []struct {
		name string
		in   InitiateCallInput
	}{
		{"missing receiver", InitiateCallInput{Type: "AUDIO"}},
		{"missing type", InitiateCallInput{ReceiverID: f.receiver}},
		{"unknown type", InitiateCallInput{ReceiverID: f.receiver, Type: "SCREEN"}},
		{"self call", InitiateCallInput{ReceiverID: f.caller, Type: "AUDIO"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.service.Initiate(ctx, f.caller, tt.in)
			require.ErrorIs(t, err, pulse_errors.ErrInvalidInput)
		})
	}
	require.Zero(t, f.sender.count())
}

func TestInitiateInConversationRequiresMembership(t *testing.T) {
	f := newCallFixture()
	ctx := context.Background()

	stranger := f.conversations.seed(conversation.TypePrivate, f.caller, uuid.New())
	_, err := f.service.Initiate(ctx, f.caller, InitiateCallInput{ReceiverID: f.receiver, Type: "AUDIO", ConversationID: &stranger})
	require.ErrorIs(t, err, pulse_errors.ErrForbidden)

	shared := f.conversations.seed(conversation.TypePrivate, f.caller, f.receiver)
	session, err := f.service.Initiate(ctx, f.caller, InitiateCallInput{ReceiverID: f.receiver, Type: "AUDIO", ConversationID: &shared})
	require.NoError(t, err)
	require.Equal(t, shared, session.Call.ConversationID.UUID)

	payload := f.sender.to(f.receiver, events.CallIncoming)[0].Payload.(events.CallIncomingPayload)
	require.NotNil(t, payload.ConversationID)
	require.Equal(t, shared, *payload.ConversationID)
}

func TestCallActorChecks(t *testing.T) {
	f := newCallFixture()
	ctx := context.Background()
	c := f.initiate(t)

	_, err := f.service.ReportRinging(ctx, c.ID, f.caller)
	require.ErrorIs(t, err, pulse_errors.ErrForbidden)

	_, err = f.service.Accept(ctx, c.ID, f.caller)
	require.ErrorIs(t, err, pulse_errors.ErrForbidden)

	_, err = f.service.End(ctx, c.ID, uuid.New(), "")
	require.ErrorIs(t, err, pulse_errors.ErrForbidden)

	_, err = f.service.Get(ctx, c.ID, uuid.New())
	require.ErrorIs(t, err, pulse_errors.ErrForbidden)

	_, err = f.service.Accept(ctx, uuid.New(), f.receiver)
	require.ErrorIs(t, err, pulse_errors.ErrNotFound)
}

func TestRingingAfterAcceptIsConflict(t *testing.T) {
	f := newCallFixture()
	ctx := context.Background()
	c := f.initiate(t)

	_, err := f.service.Accept(ctx, c.ID, f.receiver)
	require.NoError(t, err)
	_, err = f.service.ReportRinging(ctx, c.ID, f.receiver)
	require.ErrorIs(t, err, pulse_errors.ErrConflict)
}

func TestTokenFailureLeavesNoCall(t *testing.T) {
	f := newCallFixture()
	f.tokens.err = errors.New("media backend down")

	_, err := f.service.Initiate(context.Background(), f.caller, InitiateCallInput{ReceiverID: f.receiver, Type: "AUDIO"})
	require.ErrorIs(t, err, pulse_errors.ErrServiceUnavailable)
	require.Empty(t, f.calls.calls)
	require.Zero(t, f.sender.count())
}

func TestTokenFailureOnAcceptKeepsCallRinging(t *testing.T) {
	f := newCallFixture()
	ctx := context.Background()
	c := f.initiate(t)
	_, err := f.service.ReportRinging(ctx, c.ID, f.receiver)
	require.NoError(t, err)

	f.tokens.err = pulse_errors.ErrServiceUnavailable
	_, err = f.service.Accept(ctx, c.ID, f.receiver)
	require.ErrorIs(t, err, pulse_errors.ErrServiceUnavailable)

	stored, err := f.calls.GetByID(ctx, c.ID)
	require.NoError(t, err)
	require.Equal(t, call.StatusRinging, stored.Status)
	require.Empty(t, f.sender.to(f.caller, events.CallAccepted))
}

func TestUnknownCallerFallsBackToID(t *testing.T) {
	f := newCallFixture()
	ghost := uuid.New()

	_, err := f.service.Initiate(context.Background(), ghost, InitiateCallInput{ReceiverID: f.receiver, Type: "AUDIO"})
	require.NoError(t, err)
	payload := f.sender.to(f.receiver, events.CallIncoming)[0].Payload.(events.CallIncomingPayload)
	require.Equal(t, ghost.String(), payload.Caller.DisplayName)
}

func TestHistoryListsOwnCalls(t *testing.T) {
	f := newCallFixture()
	f.initiate(t)
	f.initiate(t)

	calls, total, err := f.service.History(context.Background(), f.receiver, 1, 20)
	require.NoError(t, err)
	require.Equal(t, int64(2), total)
	require.Len(t, calls, 2)

	_, total, err = f.service.History(context.Background(), uuid.New(), 1, 20)
	require.NoError(t, err)
	require.Zero(t, total)
}
