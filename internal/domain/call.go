package domain

import (
	"time"

	"github.com/google/uuid"
)

// CallState is the signaling state of a call session.
type CallState string

const (
	// CallStateRinging means the receiver has been notified and the caller
	// holds a media token, waiting for an accept.
	CallStateRinging CallState = "ringing"
	// CallStateActive means both parties hold media tokens.
	CallStateActive CallState = "active"
)

// CallSession is the transient in-memory state of a call between exactly two
// users, keyed by channel name. Not persisted: a process restart drops all
// in-flight calls and clients must re-initiate.
type CallSession struct {
	ChannelName  string       `json:"channel_name"`
	Participants [2]uuid.UUID `json:"participants"`
	State        CallState    `json:"state"`
	CreatedAt    time.Time    `json:"created_at"`
}

// HasParticipant reports whether userID is one of the two call parties.
func (s *CallSession) HasParticipant(userID uuid.UUID) bool {
	return s.Participants[0] == userID || s.Participants[1] == userID
}
