package services

import (
	"context"
	"sort"
	"sync"
	"time"

	"pulse-chat/internal/domain/call"
	"pulse-chat/internal/domain/conversation"
	"pulse-chat/internal/domain/message"
	"pulse-chat/internal/domain/user"
	"pulse-chat/internal/repository"
	pulse_errors "pulse-chat/pkg/errors"

	"github.com/google/uuid"
)

type fakeUsers struct {
	users map[uuid.UUID]user.User
}

func (f *fakeUsers) GetUserByID(_ context.Context, id uuid.UUID) (user.User, error) {
	u, ok := f.users[id]
	if !ok {
		return user.User{}, pulse_errors.ErrNotFound
	}
	return u, nil
}

type fakeConversations struct {
	mu            sync.Mutex
	conversations map[uuid.UUID]conversation.Conversation
	participants  map[uuid.UUID][]conversation.Participant
}

func newFakeConversations() *fakeConversations {
	return &fakeConversations{
		conversations: map[uuid.UUID]conversation.Conversation{},
		participants:  map[uuid.UUID][]conversation.Participant{},
	}
}

// seed creates a conversation whose members joined in the given order.
func (f *fakeConversations) seed(convType conversation.Type, members ...uuid.UUID) uuid.UUID {
	f.mu.Lock()
	defer f.mu.Unlock()
	id := uuid.New()
	f.conversations[id] = conversation.Conversation{ID: id, Type: convType}
	base := time.Now().Add(-time.Hour)
	for i, m := range members {
		f.participants[id] = append(f.participants[id], conversation.Participant{
			ConversationID: id,
			UserID:         m,
			Role:           conversation.RoleMember,
			JoinedAt:       base.Add(time.Duration(i) * time.Second),
		})
	}
	return id
}

func (f *fakeConversations) Create(_ context.Context, c *conversation.Conversation) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.conversations[c.ID]; ok {
		return pulse_errors.ErrAlreadyExists
	}
	stored := *c
	stored.Participants = nil
	f.conversations[c.ID] = stored
	f.participants[c.ID] = append([]conversation.Participant(nil), c.Participants...)
	return nil
}

func (f *fakeConversations) GetByID(_ context.Context, id uuid.UUID) (conversation.Conversation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.conversations[id]
	if !ok {
		return conversation.Conversation{}, pulse_errors.ErrNotFound
	}
	c.Participants = append([]conversation.Participant(nil), f.participants[id]...)
	return c, nil
}

func (f *fakeConversations) AddParticipant(_ context.Context, p *conversation.Participant) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, existing := range f.participants[p.ConversationID] {
		if existing.UserID == p.UserID {
			return pulse_errors.ErrAlreadyExists
		}
	}
	f.participants[p.ConversationID] = append(f.participants[p.ConversationID], *p)
	return nil
}

func (f *fakeConversations) GetParticipants(_ context.Context, conversationID uuid.UUID) ([]conversation.Participant, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := append([]conversation.Participant(nil), f.participants[conversationID]...)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].JoinedAt.Equal(out[j].JoinedAt) {
			return out[i].UserID.String() < out[j].UserID.String()
		}
		return out[i].JoinedAt.Before(out[j].JoinedAt)
	})
	return out, nil
}

func (f *fakeConversations) IsParticipant(_ context.Context, conversationID, userID uuid.UUID) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, p := range f.participants[conversationID] {
		if p.UserID == userID {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeConversations) GetParticipantCount(_ context.Context, conversationID uuid.UUID) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return int64(len(f.participants[conversationID])), nil
}

type fakeMessages struct {
	mu       sync.Mutex
	messages map[uuid.UUID]message.Message
	receipts map[uuid.UUID][]message.MessageReceipt
}

func newFakeMessages() *fakeMessages {
	return &fakeMessages{
		messages: map[uuid.UUID]message.Message{},
		receipts: map[uuid.UUID][]message.MessageReceipt{},
	}
}

func (f *fakeMessages) Create(_ context.Context, m *message.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if m.ClientMessageID.Valid {
		for _, existing := range f.messages {
			if existing.SenderID == m.SenderID && existing.ClientMessageID == m.ClientMessageID {
				return pulse_errors.ErrAlreadyExists
			}
		}
	}
	f.messages[m.ID] = *m
	return nil
}

func (f *fakeMessages) GetByID(_ context.Context, id uuid.UUID) (message.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	m, ok := f.messages[id]
	if !ok {
		return message.Message{}, pulse_errors.ErrNotFound
	}
	return m, nil
}

func (f *fakeMessages) GetBySenderClientID(_ context.Context, senderID uuid.UUID, clientMessageID string) (message.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, m := range f.messages {
		if m.SenderID == senderID && m.ClientMessageID.Valid && m.ClientMessageID.String == clientMessageID {
			return m, nil
		}
	}
	return message.Message{}, pulse_errors.ErrNotFound
}

func (f *fakeMessages) findReceipt(messageID, userID uuid.UUID) int {
	for i, r := range f.receipts[messageID] {
		if r.UserID == userID {
			return i
		}
	}
	return -1
}

func (f *fakeMessages) AddDelivered(_ context.Context, messageID, userID uuid.UUID, at time.Time) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.findReceipt(messageID, userID) >= 0 {
		return false, nil
	}
	f.receipts[messageID] = append(f.receipts[messageID], message.MessageReceipt{MessageID: messageID, UserID: userID, DeliveredAt: at})
	return true, nil
}

func (f *fakeMessages) AddRead(_ context.Context, messageID, userID uuid.UUID, at time.Time) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	i := f.findReceipt(messageID, userID)
	if i < 0 {
		f.receipts[messageID] = append(f.receipts[messageID], message.MessageReceipt{MessageID: messageID, UserID: userID, DeliveredAt: at})
		i = len(f.receipts[messageID]) - 1
	}
	r := &f.receipts[messageID][i]
	if r.ReadAt.Valid {
		return false, nil
	}
	r.ReadAt.Time, r.ReadAt.Valid = at, true
	return true, nil
}

func (f *fakeMessages) CountReceipts(_ context.Context, messageID uuid.UUID) (int64, int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var delivered, read int64
	for _, r := range f.receipts[messageID] {
		delivered++
		if r.ReadAt.Valid {
			read++
		}
	}
	return delivered, read, nil
}

func (f *fakeMessages) GetReceipts(_ context.Context, messageID uuid.UUID) ([]message.MessageReceipt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]message.MessageReceipt(nil), f.receipts[messageID]...), nil
}

func (f *fakeMessages) PromoteStatus(_ context.Context, messageID uuid.UUID, status message.Status) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	m, ok := f.messages[messageID]
	if !ok || m.Status.Rank() >= status.Rank() {
		return false, nil
	}
	m.Status = status
	f.messages[messageID] = m
	return true, nil
}

func (f *fakeMessages) status(id uuid.UUID) message.Status {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.messages[id].Status
}

type fakeCalls struct {
	mu    sync.Mutex
	calls map[uuid.UUID]call.Call
}

func newFakeCalls() *fakeCalls {
	return &fakeCalls{calls: map[uuid.UUID]call.Call{}}
}

func (f *fakeCalls) Create(_ context.Context, c *call.Call) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[c.ID] = *c
	return nil
}

func (f *fakeCalls) GetByID(_ context.Context, id uuid.UUID) (call.Call, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.calls[id]
	if !ok {
		return call.Call{}, pulse_errors.ErrNotFound
	}
	return c, nil
}

func (f *fakeCalls) Transition(_ context.Context, callID uuid.UUID, from []call.Status, update repository.CallUpdate) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.calls[callID]
	if !ok {
		return false, nil
	}
	allowed := false
	for _, s := range from {
		if c.Status == s {
			allowed = true
		}
	}
	if !allowed {
		return false, nil
	}
	c.Status = update.Status
	if update.StartTime != nil {
		c.StartTime.Time, c.StartTime.Valid = *update.StartTime, true
	}
	if update.EndTime != nil {
		c.EndTime.Time, c.EndTime.Valid = *update.EndTime, true
	}
	if update.Duration != nil {
		c.Duration.Int32, c.Duration.Valid = *update.Duration, true
	}
	if update.EndedBy != nil {
		c.EndedBy = uuid.NullUUID{UUID: *update.EndedBy, Valid: true}
	}
	f.calls[callID] = c
	return true, nil
}

func (f *fakeCalls) GetUserCalls(_ context.Context, userID uuid.UUID, _, _ int) ([]call.Call, int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []call.Call
	for _, c := range f.calls {
		if c.IsParticipant(userID) {
			out = append(out, c)
		}
	}
	return out, int64(len(out)), nil
}

func (f *fakeCalls) GetUnansweredBefore(_ context.Context, cutoff time.Time, limit int) ([]call.Call, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []call.Call
	for _, c := range f.calls {
		if (c.Status == call.StatusInitiated || c.Status == call.StatusRinging) && c.CreatedAt.Before(cutoff) {
			out = append(out, c)
		}
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

type sentEvent struct {
	UserID  uuid.UUID
	Name    string
	Payload any
}

type recordingSender struct {
	mu     sync.Mutex
	events []sentEvent
}

func (r *recordingSender) SendEventToUser(_ context.Context, userID uuid.UUID, name string, payload any) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, sentEvent{UserID: userID, Name: name, Payload: payload})
	return nil
}

func (r *recordingSender) to(userID uuid.UUID, name string) []sentEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []sentEvent
	for _, e := range r.events {
		if e.UserID == userID && e.Name == name {
			out = append(out, e)
		}
	}
	return out
}

func (r *recordingSender) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.events)
}

type fakeTokens struct {
	err    error
	issued []string
	mu     sync.Mutex
}

func (f *fakeTokens) IssueToken(_ context.Context, roomID, participantID, _ string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	token := "tok:" + roomID + ":" + participantID
	f.issued = append(f.issued, token)
	return token, nil
}

// chatFixture wires the message path over in-memory stores.
type chatFixture struct {
	conversations *fakeConversations
	messages      *fakeMessages
	sender        *recordingSender
	delivery      *DeliveryService
	service       *MessageService
}

func newChatFixture() *chatFixture {
	convs := newFakeConversations()
	msgs := newFakeMessages()
	sender := &recordingSender{}
	resolver := NewRecipientResolver(convs)
	delivery := NewDeliveryService(msgs, resolver, sender, nil)
	return &chatFixture{
		conversations: convs,
		messages:      msgs,
		sender:        sender,
		delivery:      delivery,
		service:       NewMessageService(msgs, convs, resolver, delivery, sender, nil),
	}
}
