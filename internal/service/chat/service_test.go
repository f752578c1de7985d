package chat

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"forumhub-backend/internal/domain"
	"forumhub-backend/internal/repository/cassandra"
	"forumhub-backend/internal/repository/cockroach"
	apperrors "forumhub-backend/pkg/errors"
	"forumhub-backend/pkg/logger"
)

func TestMain(m *testing.M) {
	logger.InitDefault()
	os.Exit(m.Run())
}

// Mocks

type MockMessageStore struct {
	mock.Mock
}

func (m *MockMessageStore) Append(message *domain.Message) error {
	args := m.Called(message)
	// Mirror the real store assigning id and timestamp on append.
	if message.MessageID == uuid.Nil {
		message.MessageID = uuid.New()
	}
	if message.SentAt.IsZero() {
		message.SentAt = time.Now().UTC()
	}
	return args.Error(0)
}

func (m *MockMessageStore) GetByConversation(chatID string, limit int) ([]*domain.Message, error) {
	args := m.Called(chatID, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Message), args.Error(1)
}

func (m *MockMessageStore) GetLatest(chatID string) (*domain.Message, error) {
	args := m.Called(chatID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Message), args.Error(1)
}

func (m *MockMessageStore) UnreadFor(chatID string, receiverID uuid.UUID) ([]*domain.Message, error) {
	args := m.Called(chatID, receiverID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Message), args.Error(1)
}

func (m *MockMessageStore) MarkRead(chatID string, readerID uuid.UUID) (int, error) {
	args := m.Called(chatID, readerID)
	return args.Int(0), args.Error(1)
}

func (m *MockMessageStore) SoftDelete(chatID string, messageID, senderID uuid.UUID) error {
	args := m.Called(chatID, messageID, senderID)
	return args.Error(0)
}

type MockUserStore struct {
	mock.Mock
}

func (m *MockUserStore) GetProfiles(ctx context.Context, userIDs []uuid.UUID) (map[uuid.UUID]*domain.Profile, error) {
	args := m.Called(ctx, userIDs)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[uuid.UUID]*domain.Profile), args.Error(1)
}

type MockChatIndex struct {
	mock.Mock
}

func (m *MockChatIndex) RecordMessage(ctx context.Context, chatID string, senderID, receiverID uuid.UUID, sentAt time.Time) error {
	args := m.Called(ctx, chatID, senderID, receiverID, sentAt)
	return args.Error(0)
}

func (m *MockChatIndex) ResetUnread(ctx context.Context, userID uuid.UUID, chatID string) error {
	args := m.Called(ctx, userID, chatID)
	return args.Error(0)
}

func (m *MockChatIndex) List(ctx context.Context, userID uuid.UUID) ([]*cockroach.ChatIndexEntry, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*cockroach.ChatIndexEntry), args.Error(1)
}

// FakeEmitter records emitted events per user, with a configurable set of
// "online" users.
type FakeEmitter struct {
	online map[uuid.UUID]bool
	events []emittedEvent
}

type emittedEvent struct {
	userID  uuid.UUID
	event   string
	payload any
}

func NewFakeEmitter(online ...uuid.UUID) *FakeEmitter {
	e := &FakeEmitter{online: make(map[uuid.UUID]bool)}
	for _, id := range online {
		e.online[id] = true
	}
	return e
}

func (e *FakeEmitter) EmitTo(userID uuid.UUID, event string, payload any) bool {
	if !e.online[userID] {
		return false
	}
	e.events = append(e.events, emittedEvent{userID: userID, event: event, payload: payload})
	return true
}

func (e *FakeEmitter) eventsFor(userID uuid.UUID, event string) []emittedEvent {
	var out []emittedEvent
	for _, ev := range e.events {
		if ev.userID == userID && ev.event == event {
			out = append(out, ev)
		}
	}
	return out
}

func profilesFor(ids ...uuid.UUID) map[uuid.UUID]*domain.Profile {
	out := make(map[uuid.UUID]*domain.Profile, len(ids))
	for i, id := range ids {
		name := string(rune('A' + i))
		out[id] = &domain.Profile{UserID: id, Name: name, Email: name + "@example.com"}
	}
	return out
}

// Tests

func TestSendMessageDeliversToOnlineReceiver(t *testing.T) {
	store := new(MockMessageStore)
	users := new(MockUserStore)
	index := new(MockChatIndex)
	sender := domain.Identity{UserID: uuid.New(), Email: "a@example.com"}
	receiverID := uuid.New()
	emitter := NewFakeEmitter(sender.UserID, receiverID)

	service := NewService(store, users, index, emitter, nil)

	users.On("GetProfiles", mock.Anything, mock.Anything).Return(profilesFor(sender.UserID, receiverID), nil)
	store.On("Append", mock.AnythingOfType("*domain.Message")).Return(nil)
	index.On("RecordMessage", mock.Anything, mock.Anything, sender.UserID, receiverID, mock.Anything).Return(nil)

	message, err := service.SendMessage(context.Background(), sender, &SendMessageInput{
		ReceiverID: receiverID,
		Content:    "hi",
	})

	require.NoError(t, err)
	assert.Equal(t, domain.ConversationKey(sender.UserID, receiverID), message.ChatID)
	assert.False(t, message.IsRead)
	assert.NotEqual(t, uuid.Nil, message.MessageID)

	delivered := emitter.eventsFor(receiverID, EventNewMessage)
	require.Len(t, delivered, 1)
	payload := delivered[0].payload.(*NewMessagePayload)
	assert.Equal(t, message, payload.Message)
	assert.Equal(t, sender.UserID, payload.Sender.UserID)

	confirmations := emitter.eventsFor(sender.UserID, EventMessageSent)
	require.Len(t, confirmations, 1)
	assert.Equal(t, message, confirmations[0].payload.(*MessageSentPayload).Message)

	store.AssertExpectations(t)
	index.AssertExpectations(t)
}

func TestSendMessageOfflineReceiverStillPersists(t *testing.T) {
	store := new(MockMessageStore)
	users := new(MockUserStore)
	index := new(MockChatIndex)
	sender := domain.Identity{UserID: uuid.New()}
	receiverID := uuid.New()
	// Receiver has no live connection.
	emitter := NewFakeEmitter(sender.UserID)

	service := NewService(store, users, index, emitter, nil)

	users.On("GetProfiles", mock.Anything, mock.Anything).Return(profilesFor(sender.UserID, receiverID), nil)
	store.On("Append", mock.AnythingOfType("*domain.Message")).Return(nil)
	index.On("RecordMessage", mock.Anything, mock.Anything, sender.UserID, receiverID, mock.Anything).Return(nil)

	message, err := service.SendMessage(context.Background(), sender, &SendMessageInput{
		ReceiverID: receiverID,
		Content:    "hi",
	})

	require.NoError(t, err)
	assert.False(t, message.IsRead)
	assert.Empty(t, emitter.eventsFor(receiverID, EventNewMessage))
	require.Len(t, emitter.eventsFor(sender.UserID, EventMessageSent), 1)
	store.AssertExpectations(t)
}

func TestSendMessageUnknownReceiver(t *testing.T) {
	store := new(MockMessageStore)
	users := new(MockUserStore)
	index := new(MockChatIndex)
	sender := domain.Identity{UserID: uuid.New()}
	emitter := NewFakeEmitter(sender.UserID)

	service := NewService(store, users, index, emitter, nil)

	// Only the sender's profile resolves.
	users.On("GetProfiles", mock.Anything, mock.Anything).Return(profilesFor(sender.UserID), nil)

	_, err := service.SendMessage(context.Background(), sender, &SendMessageInput{
		ReceiverID: uuid.New(),
		Content:    "hi",
	})

	require.Error(t, err)
	assert.Equal(t, apperrors.ErrCodeUserNotFound, apperrors.Code(err))
	assert.Empty(t, emitter.events)
	store.AssertNotCalled(t, "Append", mock.Anything)
}

func TestSendMessagePersistenceFailureNotifiesNobody(t *testing.T) {
	store := new(MockMessageStore)
	users := new(MockUserStore)
	index := new(MockChatIndex)
	sender := domain.Identity{UserID: uuid.New()}
	receiverID := uuid.New()
	emitter := NewFakeEmitter(sender.UserID, receiverID)

	service := NewService(store, users, index, emitter, nil)

	users.On("GetProfiles", mock.Anything, mock.Anything).Return(profilesFor(sender.UserID, receiverID), nil)
	store.On("Append", mock.AnythingOfType("*domain.Message")).Return(assert.AnError)

	_, err := service.SendMessage(context.Background(), sender, &SendMessageInput{
		ReceiverID: receiverID,
		Content:    "hi",
	})

	require.Error(t, err)
	assert.Equal(t, apperrors.ErrCodePersistence, apperrors.Code(err))
	// No partial delivery: neither side hears about a message that failed
	// to persist.
	assert.Empty(t, emitter.events)
}

func TestSendMessageValidation(t *testing.T) {
	service := NewService(new(MockMessageStore), new(MockUserStore), new(MockChatIndex), NewFakeEmitter(), nil)
	sender := domain.Identity{UserID: uuid.New()}

	_, err := service.SendMessage(context.Background(), sender, &SendMessageInput{ReceiverID: uuid.Nil, Content: "hi"})
	assert.Equal(t, apperrors.ErrCodeValidation, apperrors.Code(err))

	_, err = service.SendMessage(context.Background(), sender, &SendMessageInput{ReceiverID: uuid.New(), Content: ""})
	assert.Equal(t, apperrors.ErrCodeValidation, apperrors.Code(err))
}

func TestMarkMessagesReadNotifiesSender(t *testing.T) {
	store := new(MockMessageStore)
	index := new(MockChatIndex)
	reader := domain.Identity{UserID: uuid.New()}
	senderID := uuid.New()
	emitter := NewFakeEmitter(reader.UserID, senderID)

	service := NewService(store, new(MockUserStore), index, emitter, nil)

	chatID := domain.ConversationKey(reader.UserID, senderID)
	store.On("MarkRead", chatID, reader.UserID).Return(3, nil)
	index.On("ResetUnread", mock.Anything, reader.UserID, chatID).Return(nil)

	err := service.MarkMessagesRead(context.Background(), reader, senderID)

	require.NoError(t, err)
	notifications := emitter.eventsFor(senderID, EventMessagesRead)
	require.Len(t, notifications, 1)
	payload := notifications[0].payload.(*MessagesReadPayload)
	assert.Equal(t, reader.UserID, payload.ReaderID)
	assert.Equal(t, chatID, payload.ChatID)
}

func TestMarkMessagesReadIdempotent(t *testing.T) {
	store := new(MockMessageStore)
	index := new(MockChatIndex)
	reader := domain.Identity{UserID: uuid.New()}
	senderID := uuid.New()
	emitter := NewFakeEmitter(reader.UserID, senderID)

	service := NewService(store, new(MockUserStore), index, emitter, nil)

	chatID := domain.ConversationKey(reader.UserID, senderID)
	store.On("MarkRead", chatID, reader.UserID).Return(0, nil)
	index.On("ResetUnread", mock.Anything, reader.UserID, chatID).Return(nil)

	// Nothing unread: still succeeds, emits nothing.
	require.NoError(t, service.MarkMessagesRead(context.Background(), reader, senderID))
	assert.Empty(t, emitter.events)
}

func TestUserChats(t *testing.T) {
	store := new(MockMessageStore)
	users := new(MockUserStore)
	index := new(MockChatIndex)
	requester := domain.Identity{UserID: uuid.New()}
	partnerID := uuid.New()

	service := NewService(store, users, index, NewFakeEmitter(), nil)

	chatID := domain.ConversationKey(requester.UserID, partnerID)
	entries := []*cockroach.ChatIndexEntry{{
		UserID:        requester.UserID,
		ChatID:        chatID,
		PartnerID:     partnerID,
		LastMessageAt: time.Now(),
		UnreadCount:   2,
	}}
	latest := &domain.Message{MessageID: uuid.New(), ChatID: chatID, Content: "latest"}

	index.On("List", mock.Anything, requester.UserID).Return(entries, nil)
	users.On("GetProfiles", mock.Anything, []uuid.UUID{partnerID}).Return(profilesFor(partnerID), nil)
	store.On("GetLatest", chatID).Return(latest, nil)

	summaries, err := service.UserChats(context.Background(), requester)

	require.NoError(t, err)
	require.Len(t, summaries, 1)
	assert.Equal(t, chatID, summaries[0].ChatID)
	assert.Equal(t, partnerID, summaries[0].Partner.UserID)
	assert.Equal(t, latest, summaries[0].LastMessage)
	assert.Equal(t, 2, summaries[0].UnreadCount)
}

func TestUnreadMessagesSkipsCleanChats(t *testing.T) {
	store := new(MockMessageStore)
	index := new(MockChatIndex)
	requester := domain.Identity{UserID: uuid.New()}
	busyPartner, quietPartner := uuid.New(), uuid.New()

	service := NewService(store, new(MockUserStore), index, NewFakeEmitter(), nil)

	busyChat := domain.ConversationKey(requester.UserID, busyPartner)
	quietChat := domain.ConversationKey(requester.UserID, quietPartner)
	index.On("List", mock.Anything, requester.UserID).Return([]*cockroach.ChatIndexEntry{
		{ChatID: busyChat, PartnerID: busyPartner, UnreadCount: 1},
		{ChatID: quietChat, PartnerID: quietPartner, UnreadCount: 0},
	}, nil)
	unread := []*domain.Message{{MessageID: uuid.New(), ChatID: busyChat}}
	store.On("UnreadFor", busyChat, requester.UserID).Return(unread, nil)

	messages, err := service.UnreadMessages(context.Background(), requester)

	require.NoError(t, err)
	assert.Equal(t, unread, messages)
	store.AssertNotCalled(t, "UnreadFor", quietChat, requester.UserID)
}

func TestDeleteMessageMapsNotFound(t *testing.T) {
	store := new(MockMessageStore)
	requester := domain.Identity{UserID: uuid.New()}
	otherID := uuid.New()
	messageID := uuid.New()

	service := NewService(store, new(MockUserStore), new(MockChatIndex), NewFakeEmitter(), nil)

	chatID := domain.ConversationKey(requester.UserID, otherID)
	store.On("SoftDelete", chatID, messageID, requester.UserID).Return(cassandra.ErrMessageNotFound)

	err := service.DeleteMessage(context.Background(), requester, otherID, messageID)
	assert.Equal(t, apperrors.ErrCodeMessageNotFound, apperrors.Code(err))
}
