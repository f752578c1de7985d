package cockroach

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ChatIndexEntry is one row of a user's chat list: which conversation, with
// whom, when it last moved, and how many messages await the owner.
type ChatIndexEntry struct {
	UserID        uuid.UUID `json:"user_id" db:"user_id"`
	ChatID        string    `json:"chat_id" db:"chat_id"`
	PartnerID     uuid.UUID `json:"partner_id" db:"partner_id"`
	LastMessageAt time.Time `json:"last_message_at" db:"last_message_at"`
	UnreadCount   int       `json:"unread_count" db:"unread_count"`
}

// ChatIndexRepository maintains the per-user conversation index. Message
// bodies live in Cassandra; this table exists so "list my chats with unread
// badges" is one relational query instead of a scatter across partitions.
//
//	CREATE TABLE chat_index (
//	    user_id         UUID NOT NULL,
//	    chat_id         STRING NOT NULL,
//	    partner_id      UUID NOT NULL,
//	    last_message_at TIMESTAMPTZ NOT NULL,
//	    unread_count    INT NOT NULL DEFAULT 0,
//	    PRIMARY KEY (user_id, chat_id)
//	);
type ChatIndexRepository struct {
	pool *pgxpool.Pool
}

// NewChatIndexRepository creates a new ChatIndexRepository
func NewChatIndexRepository(pool *pgxpool.Pool) *ChatIndexRepository {
	return &ChatIndexRepository{pool: pool}
}

// RecordMessage bumps both participants' index rows for a new message:
// the sender's row just moves to the top, the receiver's row also gains an
// unread credit.
func (r *ChatIndexRepository) RecordMessage(ctx context.Context, chatID string, senderID, receiverID uuid.UUID, sentAt time.Time) error {
	senderQuery := `
		INSERT INTO chat_index (user_id, chat_id, partner_id, last_message_at, unread_count)
		VALUES ($1, $2, $3, $4, 0)
		ON CONFLICT (user_id, chat_id)
		DO UPDATE SET last_message_at = excluded.last_message_at
	`
	if _, err := r.pool.Exec(ctx, senderQuery, senderID, chatID, receiverID, sentAt); err != nil {
		return fmt.Errorf("failed to record message for sender: %w", err)
	}

	receiverQuery := `
		INSERT INTO chat_index (user_id, chat_id, partner_id, last_message_at, unread_count)
		VALUES ($1, $2, $3, $4, 1)
		ON CONFLICT (user_id, chat_id)
		DO UPDATE SET last_message_at = excluded.last_message_at,
		              unread_count = chat_index.unread_count + 1
	`
	if _, err := r.pool.Exec(ctx, receiverQuery, receiverID, chatID, senderID, sentAt); err != nil {
		return fmt.Errorf("failed to record message for receiver: %w", err)
	}
	return nil
}

// ResetUnread zeroes the unread counter of one conversation for its owner.
// Resetting an absent or already-zero row is a no-op.
func (r *ChatIndexRepository) ResetUnread(ctx context.Context, userID uuid.UUID, chatID string) error {
	query := `
		UPDATE chat_index
		SET unread_count = 0
		WHERE user_id = $1 AND chat_id = $2 AND unread_count > 0
	`

	if _, err := r.pool.Exec(ctx, query, userID, chatID); err != nil {
		return fmt.Errorf("failed to reset unread count: %w", err)
	}
	return nil
}

// List returns a user's chat index entries, most recently active first.
func (r *ChatIndexRepository) List(ctx context.Context, userID uuid.UUID) ([]*ChatIndexEntry, error) {
	query := `
		SELECT user_id, chat_id, partner_id, last_message_at, unread_count
		FROM chat_index
		WHERE user_id = $1
		ORDER BY last_message_at DESC
	`

	rows, err := r.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list chat index: %w", err)
	}
	defer rows.Close()

	var entries []*ChatIndexEntry
	for rows.Next() {
		entry := &ChatIndexEntry{}
		if err := rows.Scan(
			&entry.UserID,
			&entry.ChatID,
			&entry.PartnerID,
			&entry.LastMessageAt,
			&entry.UnreadCount,
		); err != nil {
			return nil, fmt.Errorf("failed to scan chat index entry: %w", err)
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read chat index: %w", err)
	}
	return entries, nil
}
