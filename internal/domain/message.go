package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Message represents a direct chat message between two users.
// Maps to the Cassandra messages table, partitioned by chat_id.
// Mutated only to flip is_read or set deleted_at; never physically removed.
type Message struct {
	MessageID  uuid.UUID  `json:"message_id" cql:"message_id"`
	ChatID     string     `json:"chat_id" cql:"chat_id"`
	SenderID   uuid.UUID  `json:"sender_id" cql:"sender_id"`
	ReceiverID uuid.UUID  `json:"receiver_id" cql:"receiver_id"`
	Content    string     `json:"content" cql:"content"`
	IsRead     bool       `json:"is_read" cql:"is_read"`
	SentAt     time.Time  `json:"sent_at" cql:"sent_at"`
	DeletedAt  *time.Time `json:"deleted_at,omitempty" cql:"deleted_at"`
}

// ConversationKey returns the deterministic key grouping the messages of two
// users. Participant order does not matter: both sides resolve the same key,
// which is what makes conversation lookup a single partition read.
func ConversationKey(a, b uuid.UUID) string {
	first, second := a.String(), b.String()
	if first > second {
		first, second = second, first
	}
	return first + "_" + second
}

// ChannelName returns the media channel identifier for a call between two
// users. Same construction as ConversationKey, so either party can derive it
// without a round-trip.
func ChannelName(a, b uuid.UUID) string {
	return ConversationKey(a, b)
}

// ConversationPartner returns the other participant encoded in a
// conversation key, or false when userID is not part of it.
func ConversationPartner(chatID string, userID uuid.UUID) (uuid.UUID, bool) {
	parts := strings.SplitN(chatID, "_", 2)
	if len(parts) != 2 {
		return uuid.Nil, false
	}
	first, err := uuid.Parse(parts[0])
	if err != nil {
		return uuid.Nil, false
	}
	second, err := uuid.Parse(parts[1])
	if err != nil {
		return uuid.Nil, false
	}
	switch userID {
	case first:
		return second, true
	case second:
		return first, true
	}
	return uuid.Nil, false
}

// ChatSummary is one entry in a user's chat list: the conversation partner,
// the most recent message, and the number of unread messages addressed to
// the requesting user.
type ChatSummary struct {
	ChatID      string   `json:"chat_id"`
	Partner     *Profile `json:"partner"`
	LastMessage *Message `json:"last_message"`
	UnreadCount int      `json:"unread_count"`
}
