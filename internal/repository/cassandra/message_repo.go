// Package cassandra implements the durable message store.
package cassandra

import (
	"errors"
	"fmt"
	"time"

	"github.com/gocql/gocql"
	"github.com/google/uuid"

	"forumhub-backend/internal/domain"
)

// ErrMessageNotFound is returned when a message is absent from its
// conversation partition or not owned by the requesting user.
var ErrMessageNotFound = errors.New("message not found")

// MessageRepository handles message storage in Cassandra.
//
// Schema, partitioned so one conversation is one partition:
//
//	CREATE TABLE messages (
//	    chat_id     text,
//	    sent_at     timestamp,
//	    message_id  timeuuid,
//	    sender_id   uuid,
//	    receiver_id uuid,
//	    content     text,
//	    is_read     boolean,
//	    deleted_at  timestamp,
//	    PRIMARY KEY ((chat_id), sent_at, message_id)
//	) WITH CLUSTERING ORDER BY (sent_at ASC, message_id ASC);
type MessageRepository struct {
	session *gocql.Session
}

// NewMessageRepository creates a new MessageRepository
func NewMessageRepository(session *gocql.Session) *MessageRepository {
	return &MessageRepository{session: session}
}

// Append inserts a new message. MessageID and SentAt are assigned here when
// unset so the persisted record is the one echoed back to the sender.
func (r *MessageRepository) Append(message *domain.Message) error {
	if message.MessageID == uuid.Nil {
		message.MessageID = uuid.UUID(gocql.TimeUUID())
	}
	if message.SentAt.IsZero() {
		message.SentAt = time.Now().UTC()
	}

	query := `
		INSERT INTO messages (
			chat_id, sent_at, message_id, sender_id, receiver_id,
			content, is_read, deleted_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`

	err := r.session.Query(query,
		message.ChatID,
		message.SentAt,
		message.MessageID,
		message.SenderID,
		message.ReceiverID,
		message.Content,
		message.IsRead,
		message.DeletedAt,
	).Exec()

	if err != nil {
		return fmt.Errorf("failed to append message: %w", err)
	}
	return nil
}

// GetByConversation retrieves a conversation's messages in send order,
// soft-deleted messages excluded.
func (r *MessageRepository) GetByConversation(chatID string, limit int) ([]*domain.Message, error) {
	query := `
		SELECT chat_id, sent_at, message_id, sender_id, receiver_id,
		       content, is_read, deleted_at
		FROM messages
		WHERE chat_id = ?
		LIMIT ?
	`

	iter := r.session.Query(query, chatID, limit).Iter()

	var messages []*domain.Message
	for {
		message, ok := scanMessage(iter)
		if !ok {
			break
		}
		if message.DeletedAt != nil {
			continue
		}
		messages = append(messages, message)
	}

	if err := iter.Close(); err != nil {
		return nil, fmt.Errorf("failed to fetch conversation: %w", err)
	}
	return messages, nil
}

// GetLatest returns the most recent non-deleted message of a conversation,
// or nil when the conversation is empty.
func (r *MessageRepository) GetLatest(chatID string) (*domain.Message, error) {
	query := `
		SELECT chat_id, sent_at, message_id, sender_id, receiver_id,
		       content, is_read, deleted_at
		FROM messages
		WHERE chat_id = ?
		ORDER BY sent_at DESC
	`

	iter := r.session.Query(query, chatID).PageSize(10).Iter()

	var latest *domain.Message
	for {
		message, ok := scanMessage(iter)
		if !ok {
			break
		}
		if message.DeletedAt == nil {
			latest = message
			break
		}
	}

	if err := iter.Close(); err != nil {
		return nil, fmt.Errorf("failed to fetch latest message: %w", err)
	}
	return latest, nil
}

// UnreadFor returns the unread messages addressed to receiverID within a
// conversation, oldest first. Receiver filtering happens client-side; the
// partition is a single conversation so the scan is bounded.
func (r *MessageRepository) UnreadFor(chatID string, receiverID uuid.UUID) ([]*domain.Message, error) {
	query := `
		SELECT chat_id, sent_at, message_id, sender_id, receiver_id,
		       content, is_read, deleted_at
		FROM messages
		WHERE chat_id = ?
	`

	iter := r.session.Query(query, chatID).Iter()

	var unread []*domain.Message
	for {
		message, ok := scanMessage(iter)
		if !ok {
			break
		}
		if message.ReceiverID == receiverID && !message.IsRead && message.DeletedAt == nil {
			unread = append(unread, message)
		}
	}

	if err := iter.Close(); err != nil {
		return nil, fmt.Errorf("failed to fetch unread messages: %w", err)
	}
	return unread, nil
}

// MarkRead flips is_read on every unread message addressed to readerID in
// the conversation. Returns how many were flipped; zero when there was
// nothing unread, which makes repeated calls no-ops.
func (r *MessageRepository) MarkRead(chatID string, readerID uuid.UUID) (int, error) {
	unread, err := r.UnreadFor(chatID, readerID)
	if err != nil {
		return 0, err
	}
	if len(unread) == 0 {
		return 0, nil
	}

	// Single-partition batch: all rows share chat_id.
	batch := r.session.NewBatch(gocql.UnloggedBatch)
	update := `UPDATE messages SET is_read = true WHERE chat_id = ? AND sent_at = ? AND message_id = ?`
	for _, message := range unread {
		batch.Query(update, chatID, message.SentAt, message.MessageID)
	}

	if err := r.session.ExecuteBatch(batch); err != nil {
		return 0, fmt.Errorf("failed to mark messages read: %w", err)
	}
	return len(unread), nil
}

// SoftDelete sets deleted_at on a message. Only the sender may delete, and
// already-deleted messages report ErrMessageNotFound.
func (r *MessageRepository) SoftDelete(chatID string, messageID, senderID uuid.UUID) error {
	query := `
		SELECT chat_id, sent_at, message_id, sender_id, receiver_id,
		       content, is_read, deleted_at
		FROM messages
		WHERE chat_id = ?
	`

	iter := r.session.Query(query, chatID).Iter()

	var target *domain.Message
	for {
		message, ok := scanMessage(iter)
		if !ok {
			break
		}
		if message.MessageID == messageID {
			target = message
			break
		}
	}
	if err := iter.Close(); err != nil {
		return fmt.Errorf("failed to locate message: %w", err)
	}

	if target == nil || target.DeletedAt != nil || target.SenderID != senderID {
		return ErrMessageNotFound
	}

	update := `UPDATE messages SET deleted_at = ? WHERE chat_id = ? AND sent_at = ? AND message_id = ?`
	if err := r.session.Query(update, time.Now().UTC(), chatID, target.SentAt, target.MessageID).Exec(); err != nil {
		return fmt.Errorf("failed to soft delete message: %w", err)
	}
	return nil
}

// scanMessage reads one row from the iterator, mapping Cassandra's zero
// timestamp back to a nil DeletedAt.
func scanMessage(iter *gocql.Iter) (*domain.Message, bool) {
	message := &domain.Message{}
	var deletedAt time.Time
	if !iter.Scan(
		&message.ChatID,
		&message.SentAt,
		&message.MessageID,
		&message.SenderID,
		&message.ReceiverID,
		&message.Content,
		&message.IsRead,
		&deletedAt,
	) {
		return nil, false
	}
	if !deletedAt.IsZero() {
		message.DeletedAt = &deletedAt
	}
	return message, true
}
