package ws

import (
	"encoding/json"
	"strings"

	"github.com/google/uuid"

	"forumhub-backend/pkg/constants"
	apperrors "forumhub-backend/pkg/errors"
)

// Client-to-server event names.
const (
	EventSendMessage      = "sendMessage"
	EventMarkMessagesRead = "markMessagesRead"
	EventRequestVideoCall = "requestVideoCall"
	EventAcceptVideoCall  = "acceptVideoCall"
	EventEndVideoCall     = "endVideoCall"
)

// Envelope is the wire frame for every event in both directions: the event
// name tags the union, data carries the event-specific payload.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// ErrorPayload is the body of messageError and callError frames.
type ErrorPayload struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

// SendMessagePayload carries a sendMessage request.
type SendMessagePayload struct {
	ReceiverID uuid.UUID `json:"receiver_id"`
	Content    string    `json:"content"`
}

func (p *SendMessagePayload) Validate() error {
	if p.ReceiverID == uuid.Nil {
		return apperrors.ValidationError("receiver_id is required")
	}
	if strings.TrimSpace(p.Content) == "" {
		return apperrors.ValidationError("content is required")
	}
	if len(p.Content) > constants.MaxMessageLength {
		return apperrors.ValidationError("content exceeds maximum length")
	}
	return nil
}

// MarkMessagesReadPayload carries a markMessagesRead request. SenderID is the
// conversation partner whose messages the reader has seen.
type MarkMessagesReadPayload struct {
	SenderID uuid.UUID `json:"sender_id"`
}

func (p *MarkMessagesReadPayload) Validate() error {
	if p.SenderID == uuid.Nil {
		return apperrors.ValidationError("sender_id is required")
	}
	return nil
}

// RequestVideoCallPayload carries a requestVideoCall request.
type RequestVideoCallPayload struct {
	ReceiverID uuid.UUID `json:"receiverId"`
}

func (p *RequestVideoCallPayload) Validate() error {
	if p.ReceiverID == uuid.Nil {
		return apperrors.ValidationError("receiverId is required")
	}
	return nil
}

// AcceptVideoCallPayload carries an acceptVideoCall request.
type AcceptVideoCallPayload struct {
	ChannelName string    `json:"channelName"`
	CallerID    uuid.UUID `json:"callerId"`
}

func (p *AcceptVideoCallPayload) Validate() error {
	if p.ChannelName == "" {
		return apperrors.ValidationError("channelName is required")
	}
	return nil
}

// EndVideoCallPayload carries an endVideoCall request.
type EndVideoCallPayload struct {
	ChannelName string `json:"channelName"`
}

func (p *EndVideoCallPayload) Validate() error {
	if p.ChannelName == "" {
		return apperrors.ValidationError("channelName is required")
	}
	return nil
}

// decodePayload unmarshals an envelope's data into a typed payload and runs
// its validation, so handlers only ever see well-formed input.
func decodePayload[T interface{ Validate() error }](data json.RawMessage, payload T) error {
	if len(data) == 0 {
		return apperrors.ValidationError("payload is required")
	}
	if err := json.Unmarshal(data, payload); err != nil {
		return apperrors.ValidationError("malformed payload")
	}
	return payload.Validate()
}

// encodeEvent frames an outbound event for the wire.
func encodeEvent(event string, payload any) ([]byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(&Envelope{Event: event, Data: data})
}
