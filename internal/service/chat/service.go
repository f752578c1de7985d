// Package chat implements the messaging router: it persists direct messages,
// pushes them to live connections, and maintains read state.
package chat

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"forumhub-backend/internal/domain"
	"forumhub-backend/internal/repository/cassandra"
	"forumhub-backend/internal/repository/cockroach"
	"forumhub-backend/pkg/constants"
	apperrors "forumhub-backend/pkg/errors"
	"forumhub-backend/pkg/logger"
	"forumhub-backend/pkg/metrics"
)

// Server-to-client event names emitted by the messaging router.
const (
	EventNewMessage   = "newMessage"
	EventMessageSent  = "messageSent"
	EventMessagesRead = "messagesRead"
	// EventMessageError is emitted by the connection layer to the sender
	// only, when any step of a send fails.
	EventMessageError = "messageError"
)

// MessageStore is the durable message persistence the router appends to and
// queries by conversation key.
type MessageStore interface {
	Append(message *domain.Message) error
	GetByConversation(chatID string, limit int) ([]*domain.Message, error)
	GetLatest(chatID string) (*domain.Message, error)
	UnreadFor(chatID string, receiverID uuid.UUID) ([]*domain.Message, error)
	MarkRead(chatID string, readerID uuid.UUID) (int, error)
	SoftDelete(chatID string, messageID, senderID uuid.UUID) error
}

// UserStore resolves user profiles; a missing id in the result doubles as
// receiver validation.
type UserStore interface {
	GetProfiles(ctx context.Context, userIDs []uuid.UUID) (map[uuid.UUID]*domain.Profile, error)
}

// ChatIndex maintains the per-user conversation list and unread counters.
type ChatIndex interface {
	RecordMessage(ctx context.Context, chatID string, senderID, receiverID uuid.UUID, sentAt time.Time) error
	ResetUnread(ctx context.Context, userID uuid.UUID, chatID string) error
	List(ctx context.Context, userID uuid.UUID) ([]*cockroach.ChatIndexEntry, error)
}

// Emitter pushes an event to a user's live connection, reporting whether the
// user had one. Injected by the connection lifecycle manager.
type Emitter interface {
	EmitTo(userID uuid.UUID, event string, payload any) bool
}

// Service routes direct messages between users.
type Service struct {
	store   MessageStore
	users   UserStore
	index   ChatIndex
	emitter Emitter
	metrics *metrics.Metrics
}

// NewService creates a new chat service
func NewService(store MessageStore, users UserStore, index ChatIndex, emitter Emitter, m *metrics.Metrics) *Service {
	return &Service{
		store:   store,
		users:   users,
		index:   index,
		emitter: emitter,
		metrics: m,
	}
}

// NewMessagePayload is pushed to the receiver's live connection.
type NewMessagePayload struct {
	Message *domain.Message `json:"message"`
	Sender  *domain.Profile `json:"sender"`
}

// MessageSentPayload confirms persistence back to the sender, who reconciles
// it against the optimistic placeholder created before the round-trip.
type MessageSentPayload struct {
	Message *domain.Message `json:"message"`
	Sender  *domain.Profile `json:"sender"`
}

// MessagesReadPayload tells a sender their messages were read.
type MessagesReadPayload struct {
	ReaderID uuid.UUID `json:"reader_id"`
	ChatID   string    `json:"chat_id"`
}

// SendMessageInput carries a sendMessage request.
type SendMessageInput struct {
	ReceiverID uuid.UUID `json:"receiver_id"`
	Content    string    `json:"content"`
}

// SendMessage persists a message and routes it. The receiver is notified
// only after the message is durably stored; the sender always gets a
// messageSent confirmation carrying the persisted record. An offline
// receiver is not an error: the message surfaces in history on reconnect.
func (s *Service) SendMessage(ctx context.Context, sender domain.Identity, input *SendMessageInput) (*domain.Message, error) {
	if input.ReceiverID == uuid.Nil {
		return nil, apperrors.ValidationError("receiver_id is required")
	}
	if input.Content == "" {
		return nil, apperrors.ValidationError("content is required")
	}
	if len(input.Content) > constants.MaxMessageLength {
		return nil, apperrors.ValidationError("content exceeds maximum length")
	}

	profiles, err := s.users.GetProfiles(ctx, []uuid.UUID{sender.UserID, input.ReceiverID})
	if err != nil {
		return nil, apperrors.PersistenceError("failed to resolve users", err)
	}
	if _, ok := profiles[input.ReceiverID]; !ok {
		return nil, apperrors.UserNotFoundError("receiver not found")
	}

	message := &domain.Message{
		ChatID:     domain.ConversationKey(sender.UserID, input.ReceiverID),
		SenderID:   sender.UserID,
		ReceiverID: input.ReceiverID,
		Content:    input.Content,
		IsRead:     false,
	}

	if err := s.store.Append(message); err != nil {
		s.metrics.RecordMessageError(string(apperrors.ErrCodePersistence))
		return nil, apperrors.PersistenceError("failed to store message", err)
	}

	// The index is derived data; a failed bump must not fail a stored send.
	if err := s.index.RecordMessage(ctx, message.ChatID, message.SenderID, message.ReceiverID, message.SentAt); err != nil {
		logger.Warn("failed to update chat index",
			zap.String("chat_id", message.ChatID),
			zap.Error(err))
	}

	senderProfile := profiles[sender.UserID]

	delivered := s.emitter.EmitTo(input.ReceiverID, EventNewMessage, &NewMessagePayload{
		Message: message,
		Sender:  senderProfile,
	})
	s.metrics.RecordMessageRouted(delivered)

	s.emitter.EmitTo(sender.UserID, EventMessageSent, &MessageSentPayload{
		Message: message,
		Sender:  senderProfile,
	})

	return message, nil
}

// MarkMessagesRead flips the read flag on every message addressed to the
// reader in their conversation with senderID, and notifies the sender's live
// connection so unread badges clear. Idempotent: nothing unread, nothing
// emitted.
func (s *Service) MarkMessagesRead(ctx context.Context, reader domain.Identity, senderID uuid.UUID) error {
	if senderID == uuid.Nil {
		return apperrors.ValidationError("sender_id is required")
	}

	chatID := domain.ConversationKey(reader.UserID, senderID)

	flipped, err := s.store.MarkRead(chatID, reader.UserID)
	if err != nil {
		return apperrors.PersistenceError("failed to mark messages read", err)
	}

	if err := s.index.ResetUnread(ctx, reader.UserID, chatID); err != nil {
		logger.Warn("failed to reset unread counter",
			zap.String("chat_id", chatID),
			zap.Error(err))
	}

	if flipped > 0 {
		s.emitter.EmitTo(senderID, EventMessagesRead, &MessagesReadPayload{
			ReaderID: reader.UserID,
			ChatID:   chatID,
		})
	}
	return nil
}

// History returns the conversation between the requester and otherID in send
// order, soft-deleted messages excluded.
func (s *Service) History(ctx context.Context, requester domain.Identity, otherID uuid.UUID, limit int) ([]*domain.Message, error) {
	if limit <= 0 {
		limit = constants.DefaultHistoryLimit
	}
	if limit > constants.MaxHistoryLimit {
		limit = constants.MaxHistoryLimit
	}

	chatID := domain.ConversationKey(requester.UserID, otherID)
	messages, err := s.store.GetByConversation(chatID, limit)
	if err != nil {
		return nil, apperrors.PersistenceError("failed to load conversation", err)
	}
	return messages, nil
}

// UserChats returns the requester's conversations, most recently active
// first, each with the partner profile, latest message, and unread count.
func (s *Service) UserChats(ctx context.Context, requester domain.Identity) ([]*domain.ChatSummary, error) {
	entries, err := s.index.List(ctx, requester.UserID)
	if err != nil {
		return nil, apperrors.PersistenceError("failed to list chats", err)
	}
	if len(entries) == 0 {
		return []*domain.ChatSummary{}, nil
	}

	partnerIDs := make([]uuid.UUID, 0, len(entries))
	for _, entry := range entries {
		partnerIDs = append(partnerIDs, entry.PartnerID)
	}
	profiles, err := s.users.GetProfiles(ctx, partnerIDs)
	if err != nil {
		return nil, apperrors.PersistenceError("failed to resolve chat partners", err)
	}

	summaries := make([]*domain.ChatSummary, 0, len(entries))
	for _, entry := range entries {
		latest, err := s.store.GetLatest(entry.ChatID)
		if err != nil {
			return nil, apperrors.PersistenceError("failed to load latest message", err)
		}
		summaries = append(summaries, &domain.ChatSummary{
			ChatID:      entry.ChatID,
			Partner:     profiles[entry.PartnerID],
			LastMessage: latest,
			UnreadCount: entry.UnreadCount,
		})
	}
	return summaries, nil
}

// UnreadMessages returns every unread message addressed to the requester
// across all their conversations, using the chat index to avoid scanning
// conversations with nothing pending.
func (s *Service) UnreadMessages(ctx context.Context, requester domain.Identity) ([]*domain.Message, error) {
	entries, err := s.index.List(ctx, requester.UserID)
	if err != nil {
		return nil, apperrors.PersistenceError("failed to list chats", err)
	}

	var unread []*domain.Message
	for _, entry := range entries {
		if entry.UnreadCount == 0 {
			continue
		}
		messages, err := s.store.UnreadFor(entry.ChatID, requester.UserID)
		if err != nil {
			return nil, apperrors.PersistenceError("failed to load unread messages", err)
		}
		unread = append(unread, messages...)
	}
	return unread, nil
}

// DeleteMessage soft deletes a message the requester sent in their
// conversation with otherID.
func (s *Service) DeleteMessage(ctx context.Context, requester domain.Identity, otherID, messageID uuid.UUID) error {
	chatID := domain.ConversationKey(requester.UserID, otherID)

	if err := s.store.SoftDelete(chatID, messageID, requester.UserID); err != nil {
		if errors.Is(err, cassandra.ErrMessageNotFound) {
			return apperrors.MessageNotFoundError("message not found or not owned by requester")
		}
		return apperrors.PersistenceError("failed to delete message", err)
	}
	return nil
}
