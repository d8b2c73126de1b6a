package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"pulse-chat/internal/domain/call"
	"pulse-chat/internal/domain/user"
	"pulse-chat/internal/events"
	"pulse-chat/internal/media"
	"pulse-chat/internal/metrics"
	"pulse-chat/internal/repository"
	pulse_errors "pulse-chat/pkg/errors"
	"pulse-chat/pkg/logger"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"
)

type InitiateCallInput struct {
	ReceiverID     uuid.UUID
	Type           string
	ConversationID *uuid.UUID
}

// CallSession is a call together with the media credential of the party
// that asked for it.
type CallSession struct {
	Call  call.Call
	Token string
}

// CallService drives the call signaling state machine. Transitions are
// serialized per call in-process and applied with conditional updates.
type CallService struct {
	calls         repository.CallRepository
	users         repository.UserRepository
	conversations repository.ConversationRepository
	tokens        media.TokenIssuer
	sender        EventSender
	locks         *KeyedMutex
	logger        *logger.Logger
	now           func() time.Time
}

func NewCallService(
	calls repository.CallRepository,
	users repository.UserRepository,
	conversations repository.ConversationRepository,
	tokens media.TokenIssuer,
	sender EventSender,
	l *logger.Logger,
) *CallService {
	if l == nil {
		l = logger.NewNop()
	}
	return &CallService{
		calls:         calls,
		users:         users,
		conversations: conversations,
		tokens:        tokens,
		sender:        sender,
		locks:         NewKeyedMutex(),
		logger:        l.Named("calls"),
		now:           time.Now,
	}
}

func NewRoomID() string {
	return "room_" + ulid.Make().String()
}

func (s *CallService) Initiate(ctx context.Context, callerID uuid.UUID, in InitiateCallInput) (CallSession, error) {
	if in.ReceiverID == uuid.Nil {
		return CallSession{}, fmt.Errorf("receiver is required: %w", pulse_errors.ErrInvalidInput)
	}
	if in.Type == "" {
		return CallSession{}, fmt.Errorf("call type is required: %w", pulse_errors.ErrInvalidInput)
	}
	callType, ok := call.ParseType(in.Type)
	if !ok {
		return CallSession{}, fmt.Errorf("call type must be AUDIO or VIDEO: %w", pulse_errors.ErrInvalidInput)
	}
	if in.ReceiverID == callerID {
		return CallSession{}, fmt.Errorf("cannot call yourself: %w", pulse_errors.ErrInvalidInput)
	}

	conversationID := uuid.NullUUID{}
	if in.ConversationID != nil && *in.ConversationID != uuid.Nil {
		if err := s.requireMembers(ctx, *in.ConversationID, callerID, in.ReceiverID); err != nil {
			return CallSession{}, err
		}
		conversationID = uuid.NullUUID{UUID: *in.ConversationID, Valid: true}
	}

	caller, err := s.profile(ctx, callerID)
	if err != nil {
		return CallSession{}, err
	}

	roomID := NewRoomID()
	token, err := s.issueToken(ctx, roomID, caller)
	if err != nil {
		return CallSession{}, err
	}

	now := s.now().UTC()
	c := call.Call{
		ID:             uuid.New(),
		ConversationID: conversationID,
		CallerID:       callerID,
		ReceiverID:     in.ReceiverID,
		RoomID:         roomID,
		Type:           callType,
		Status:         call.StatusInitiated,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := s.calls.Create(ctx, &c); err != nil {
		return CallSession{}, err
	}
	metrics.CallTransitions.WithLabelValues(string(call.StatusInitiated)).Inc()

	var convID *uuid.UUID
	if c.ConversationID.Valid {
		convID = &c.ConversationID.UUID
	}
	s.notify(ctx, c.ReceiverID, events.CallIncoming, events.CallIncomingPayload{
		CallID:         c.ID,
		RoomID:         c.RoomID,
		Type:           string(c.Type),
		ConversationID: convID,
		Caller: events.CallerInfo{
			ID:          caller.ID,
			DisplayName: caller.Name(),
			AvatarURL:   caller.AvatarURL,
		},
	})

	return CallSession{Call: c, Token: token}, nil
}

// ReportRinging records that the receiver's device is ringing. Repeating it
// while the call is already ringing changes nothing and sends nothing.
func (s *CallService) ReportRinging(ctx context.Context, callID, actorID uuid.UUID) (call.Call, error) {
	unlock := s.locks.Lock(callID)
	defer unlock()

	c, err := s.calls.GetByID(ctx, callID)
	if err != nil {
		return call.Call{}, err
	}
	if c.ReceiverID != actorID {
		return call.Call{}, fmt.Errorf("only the receiver reports ringing: %w", pulse_errors.ErrForbidden)
	}
	if c.Status == call.StatusRinging {
		return c, nil
	}
	if c.Status != call.StatusInitiated {
		return call.Call{}, s.conflict(c.Status, call.StatusRinging)
	}

	c, err = s.transition(ctx, c, repository.CallUpdate{Status: call.StatusRinging})
	if err != nil {
		return call.Call{}, err
	}

	s.notify(ctx, c.CallerID, events.CallRinging, events.CallRingingPayload{CallID: c.ID, UserID: actorID})
	return c, nil
}

// Accept moves the call to ACCEPTED and returns the receiver's credential.
// A token failure leaves the call untouched.
func (s *CallService) Accept(ctx context.Context, callID, actorID uuid.UUID) (CallSession, error) {
	unlock := s.locks.Lock(callID)
	defer unlock()

	c, err := s.calls.GetByID(ctx, callID)
	if err != nil {
		return CallSession{}, err
	}
	if c.ReceiverID != actorID {
		return CallSession{}, fmt.Errorf("only the receiver can accept: %w", pulse_errors.ErrForbidden)
	}
	if !call.CanTransition(c.Status, call.StatusAccepted) {
		return CallSession{}, s.conflict(c.Status, call.StatusAccepted)
	}

	receiver, err := s.profile(ctx, actorID)
	if err != nil {
		return CallSession{}, err
	}
	token, err := s.issueToken(ctx, c.RoomID, receiver)
	if err != nil {
		return CallSession{}, err
	}

	started := s.now().UTC()
	c, err = s.transition(ctx, c, repository.CallUpdate{Status: call.StatusAccepted, StartTime: &started})
	if err != nil {
		return CallSession{}, err
	}

	s.notify(ctx, c.CallerID, events.CallAccepted, events.CallAcceptedPayload{
		CallID:     c.ID,
		RoomID:     c.RoomID,
		AcceptedBy: actorID,
	})
	return CallSession{Call: c, Token: token}, nil
}

// End finishes the call with the requested terminal status, defaulting to
// ENDED, and notifies the other party.
func (s *CallService) End(ctx context.Context, callID, actorID uuid.UUID, requestedStatus string) (call.Call, error) {
	unlock := s.locks.Lock(callID)
	defer unlock()

	c, err := s.calls.GetByID(ctx, callID)
	if err != nil {
		return call.Call{}, err
	}
	if !c.IsParticipant(actorID) {
		return call.Call{}, fmt.Errorf("not a call participant: %w", pulse_errors.ErrForbidden)
	}

	c, duration, err := s.finish(ctx, c, call.EndStatus(requestedStatus), &actorID)
	if err != nil {
		return call.Call{}, err
	}

	s.notify(ctx, c.OtherParty(actorID), events.CallEnded, events.CallEndedPayload{
		CallID:   c.ID,
		Status:   string(c.Status),
		Duration: duration,
		EndedBy:  &actorID,
	})
	return c, nil
}

// ExpireUnanswered ends a call nobody picked up as MISSED and tells both
// parties. Calls that moved on in the meantime are left alone.
func (s *CallService) ExpireUnanswered(ctx context.Context, callID uuid.UUID) (bool, error) {
	unlock := s.locks.Lock(callID)
	defer unlock()

	c, err := s.calls.GetByID(ctx, callID)
	if err != nil {
		return false, err
	}
	if c.Status != call.StatusInitiated && c.Status != call.StatusRinging {
		return false, nil
	}

	c, duration, err := s.finish(ctx, c, call.StatusMissed, nil)
	if err != nil {
		if errors.Is(err, pulse_errors.ErrConflict) {
			return false, nil
		}
		return false, err
	}

	payload := events.CallEndedPayload{CallID: c.ID, Status: string(c.Status), Duration: duration}
	s.notify(ctx, c.CallerID, events.CallEnded, payload)
	s.notify(ctx, c.ReceiverID, events.CallEnded, payload)
	return true, nil
}

func (s *CallService) finish(ctx context.Context, c call.Call, status call.Status, endedBy *uuid.UUID) (call.Call, int64, error) {
	if c.Status.IsTerminal() || !call.CanTransition(c.Status, status) {
		return call.Call{}, 0, s.conflict(c.Status, status)
	}

	ended := s.now().UTC()
	update := repository.CallUpdate{Status: status, EndTime: &ended, EndedBy: endedBy}

	var duration int64
	if c.Status == call.StatusAccepted && c.StartTime.Valid {
		duration = int64(ended.Sub(c.StartTime.Time).Seconds())
		if duration < 0 {
			duration = 0
		}
		d := int32(duration)
		update.Duration = &d
	}

	c, err := s.transition(ctx, c, update)
	if err != nil {
		return call.Call{}, 0, err
	}
	return c, duration, nil
}

// transition applies update conditionally on the call still being in the
// status it was read in.
func (s *CallService) transition(ctx context.Context, c call.Call, update repository.CallUpdate) (call.Call, error) {
	ok, err := s.calls.Transition(ctx, c.ID, []call.Status{c.Status}, update)
	if err != nil {
		return call.Call{}, err
	}
	if !ok {
		current, getErr := s.calls.GetByID(ctx, c.ID)
		if getErr != nil {
			return call.Call{}, getErr
		}
		return call.Call{}, s.conflict(current.Status, update.Status)
	}

	c.Status = update.Status
	c.UpdatedAt = s.now().UTC()
	if update.StartTime != nil {
		c.StartTime = sql.NullTime{Time: *update.StartTime, Valid: true}
	}
	if update.EndTime != nil {
		c.EndTime = sql.NullTime{Time: *update.EndTime, Valid: true}
	}
	if update.Duration != nil {
		c.Duration = sql.NullInt32{Int32: *update.Duration, Valid: true}
	}
	if update.EndedBy != nil {
		c.EndedBy = uuid.NullUUID{UUID: *update.EndedBy, Valid: true}
	}
	metrics.CallTransitions.WithLabelValues(string(update.Status)).Inc()
	return c, nil
}

// Get returns a call to one of its participants.
func (s *CallService) Get(ctx context.Context, callID, actorID uuid.UUID) (call.Call, error) {
	c, err := s.calls.GetByID(ctx, callID)
	if err != nil {
		return call.Call{}, err
	}
	if !c.IsParticipant(actorID) {
		return call.Call{}, pulse_errors.ErrForbidden
	}
	return c, nil
}

func (s *CallService) History(ctx context.Context, userID uuid.UUID, page, limit int) ([]call.Call, int64, error) {
	return s.calls.GetUserCalls(ctx, userID, page, limit)
}

func (s *CallService) conflict(from, to call.Status) error {
	return fmt.Errorf("call %s -> %s: %w: %w", from, to, pulse_errors.ErrConflict, pulse_errors.ErrInvalidTransition)
}

func (s *CallService) requireMembers(ctx context.Context, conversationID uuid.UUID, userIDs ...uuid.UUID) error {
	for _, id := range userIDs {
		ok, err := s.conversations.IsParticipant(ctx, conversationID, id)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("both parties must belong to the conversation: %w", pulse_errors.ErrForbidden)
		}
	}
	return nil
}

func (s *CallService) profile(ctx context.Context, userID uuid.UUID) (user.User, error) {
	u, err := s.users.GetUserByID(ctx, userID)
	if errors.Is(err, pulse_errors.ErrNotFound) {
		return user.User{ID: userID}, nil
	}
	if err != nil {
		return user.User{}, err
	}
	return u, nil
}

func (s *CallService) issueToken(ctx context.Context, roomID string, u user.User) (string, error) {
	token, err := s.tokens.IssueToken(ctx, roomID, u.ID.String(), u.Name())
	if err == nil {
		return token, nil
	}
	s.logger.With(ctx).Warn("media token not issued", zap.String("room_id", roomID), zap.Error(err))
	if errors.Is(err, pulse_errors.ErrServiceUnavailable) || errors.Is(err, pulse_errors.ErrInvalidInput) {
		return "", err
	}
	return "", fmt.Errorf("media token: %w: %w", pulse_errors.ErrServiceUnavailable, err)
}

func (s *CallService) notify(ctx context.Context, userID uuid.UUID, name string, payload any) {
	if s.sender == nil {
		return
	}
	if err := s.sender.SendEventToUser(context.WithoutCancel(ctx), userID, name, payload); err != nil {
		s.logger.With(ctx).Warn("call event not sent",
			zap.String("event", name),
			zap.String("recipient_id", userID.String()),
			zap.Error(err),
		)
	}
}
