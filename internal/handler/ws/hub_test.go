package ws

import (
	"context"
	"encoding/json"
	"os"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"forumhub-backend/internal/domain"
	"forumhub-backend/internal/presence"
	"forumhub-backend/internal/service/call"
	"forumhub-backend/internal/service/chat"
	apperrors "forumhub-backend/pkg/errors"
	"forumhub-backend/pkg/logger"
)

func TestMain(m *testing.M) {
	logger.InitDefault()
	os.Exit(m.Run())
}

type fakeStore struct {
	online  []uuid.UUID
	offline []uuid.UUID
}

func (s *fakeStore) SetOnline(_ context.Context, userID uuid.UUID) error {
	s.online = append(s.online, userID)
	return nil
}

func (s *fakeStore) SetOffline(_ context.Context, userID uuid.UUID) error {
	s.offline = append(s.offline, userID)
	return nil
}

func (s *fakeStore) Heartbeat(context.Context, uuid.UUID) error { return nil }

type fakeChatService struct {
	sendInputs []*chat.SendMessageInput
	readFrom   []uuid.UUID
	err        error
}

func (s *fakeChatService) SendMessage(_ context.Context, _ domain.Identity, input *chat.SendMessageInput) (*domain.Message, error) {
	s.sendInputs = append(s.sendInputs, input)
	if s.err != nil {
		return nil, s.err
	}
	return &domain.Message{Content: input.Content}, nil
}

func (s *fakeChatService) MarkMessagesRead(_ context.Context, _ domain.Identity, senderID uuid.UUID) error {
	s.readFrom = append(s.readFrom, senderID)
	return s.err
}

type fakeCallService struct {
	requested []uuid.UUID
	accepted  []string
	ended     []string
	err       error
}

func (s *fakeCallService) RequestCall(_ context.Context, caller domain.Identity, receiverID uuid.UUID) (string, error) {
	s.requested = append(s.requested, receiverID)
	return domain.ChannelName(caller.UserID, receiverID), s.err
}

func (s *fakeCallService) AcceptCall(_ context.Context, _ domain.Identity, channel string) error {
	s.accepted = append(s.accepted, channel)
	return s.err
}

func (s *fakeCallService) EndCall(_ context.Context, channel string) error {
	s.ended = append(s.ended, channel)
	return s.err
}

func newTestHub() (*Hub, *fakeStore, *fakeChatService, *fakeCallService) {
	store := &fakeStore{}
	chatSvc := &fakeChatService{}
	callSvc := &fakeCallService{}
	h := NewHub(presence.NewDirectory(), store, nil, nil)
	h.Bind(chatSvc, callSvc)
	return h, store, chatSvc, callSvc
}

func newTestClient(h *Hub) *Client {
	c := &Client{
		hub:      h,
		send:     make(chan []byte, 16),
		identity: domain.Identity{UserID: uuid.New(), Email: "user@example.com"},
		done:     make(chan struct{}),
	}
	h.directory.Register(c.identity.UserID, c)
	return c
}

// drainFrame decodes the next frame queued on a client, failing if none is.
func drainFrame(t *testing.T, c *Client) *Envelope {
	t.Helper()
	select {
	case frame := <-c.send:
		var envelope Envelope
		require.NoError(t, json.Unmarshal(frame, &envelope))
		return &envelope
	default:
		t.Fatal("no frame queued")
		return nil
	}
}

func envelope(t *testing.T, event string, payload any) *Envelope {
	t.Helper()
	data, err := json.Marshal(payload)
	require.NoError(t, err)
	return &Envelope{Event: event, Data: data}
}

func TestEmitToDeliversFrame(t *testing.T) {
	h, _, _, _ := newTestHub()
	c := newTestClient(h)

	delivered := h.EmitTo(c.identity.UserID, "newMessage", map[string]string{"content": "hi"})
	require.True(t, delivered)

	frame := drainFrame(t, c)
	assert.Equal(t, "newMessage", frame.Event)
}

func TestEmitToUnknownUser(t *testing.T) {
	h, _, _, _ := newTestHub()
	assert.False(t, h.EmitTo(uuid.New(), "newMessage", nil))
}

func TestOnlineTracksDirectory(t *testing.T) {
	h, _, _, _ := newTestHub()
	c := newTestClient(h)

	assert.True(t, h.Online(c.identity.UserID))
	assert.False(t, h.Online(uuid.New()))
}

func TestDispatchSendMessage(t *testing.T) {
	h, _, chatSvc, _ := newTestHub()
	c := newTestClient(h)
	receiverID := uuid.New()

	h.dispatch(c, envelope(t, EventSendMessage, &SendMessagePayload{
		ReceiverID: receiverID,
		Content:    "hello",
	}))

	require.Len(t, chatSvc.sendInputs, 1)
	assert.Equal(t, receiverID, chatSvc.sendInputs[0].ReceiverID)
	assert.Equal(t, "hello", chatSvc.sendInputs[0].Content)
}

func TestDispatchInvalidPayloadEmitsMessageError(t *testing.T) {
	h, _, chatSvc, _ := newTestHub()
	c := newTestClient(h)

	h.dispatch(c, &Envelope{Event: EventSendMessage, Data: []byte(`{"content":""}`)})

	assert.Empty(t, chatSvc.sendInputs)
	frame := drainFrame(t, c)
	assert.Equal(t, chat.EventMessageError, frame.Event)

	var payload ErrorPayload
	require.NoError(t, json.Unmarshal(frame.Data, &payload))
	assert.Equal(t, string(apperrors.ErrCodeValidation), payload.Code)
}

func TestDispatchServiceErrorEmitsCallError(t *testing.T) {
	h, _, _, callSvc := newTestHub()
	callSvc.err = apperrors.ReceiverOfflineError("receiver is offline")
	c := newTestClient(h)

	h.dispatch(c, envelope(t, EventRequestVideoCall, &RequestVideoCallPayload{
		ReceiverID: uuid.New(),
	}))

	frame := drainFrame(t, c)
	assert.Equal(t, call.EventCallError, frame.Event)

	var payload ErrorPayload
	require.NoError(t, json.Unmarshal(frame.Data, &payload))
	assert.Equal(t, string(apperrors.ErrCodeReceiverOffline), payload.Code)
}

func TestDispatchCallLifecycle(t *testing.T) {
	h, _, _, callSvc := newTestHub()
	c := newTestClient(h)

	h.dispatch(c, envelope(t, EventAcceptVideoCall, &AcceptVideoCallPayload{ChannelName: "a_b"}))
	h.dispatch(c, envelope(t, EventEndVideoCall, &EndVideoCallPayload{ChannelName: "a_b"}))

	assert.Equal(t, []string{"a_b"}, callSvc.accepted)
	assert.Equal(t, []string{"a_b"}, callSvc.ended)
}

func TestDispatchMarkMessagesRead(t *testing.T) {
	h, _, chatSvc, _ := newTestHub()
	c := newTestClient(h)
	senderID := uuid.New()

	h.dispatch(c, envelope(t, EventMarkMessagesRead, &MarkMessagesReadPayload{SenderID: senderID}))

	assert.Equal(t, []uuid.UUID{senderID}, chatSvc.readFrom)
}

func TestDispatchUnknownEventIgnored(t *testing.T) {
	h, _, chatSvc, callSvc := newTestHub()
	c := newTestClient(h)

	h.dispatch(c, &Envelope{Event: "typing", Data: []byte(`{}`)})

	assert.Empty(t, chatSvc.sendInputs)
	assert.Empty(t, callSvc.requested)
	assert.Empty(t, c.send)
}

func TestDispatchRecoversFromPanic(t *testing.T) {
	h, _, _, _ := newTestHub()
	h.Bind(nil, nil) // nil services make every handler panic
	c := newTestClient(h)

	assert.NotPanics(t, func() {
		h.dispatch(c, envelope(t, EventSendMessage, &SendMessagePayload{
			ReceiverID: uuid.New(),
			Content:    "hello",
		}))
	})
}

func TestDisconnectGuardedAgainstStaleConnection(t *testing.T) {
	h, store, _, _ := newTestHub()
	userID := uuid.New()

	older := &Client{hub: h, send: make(chan []byte, 1), identity: domain.Identity{UserID: userID}, done: make(chan struct{})}
	h.directory.Register(userID, older)

	newer := &Client{hub: h, send: make(chan []byte, 1), identity: domain.Identity{UserID: userID}, done: make(chan struct{})}
	h.directory.Register(userID, newer)

	// The replaced connection's teardown must not evict the newer one or
	// mark the user offline.
	h.disconnect(older)
	assert.True(t, h.Online(userID))
	assert.Empty(t, store.offline)

	h.disconnect(newer)
	assert.False(t, h.Online(userID))
	assert.Equal(t, []uuid.UUID{userID}, store.offline)
}

func TestSendDropsWhenBufferFull(t *testing.T) {
	h, _, _, _ := newTestHub()
	c := &Client{hub: h, send: make(chan []byte, 1), identity: domain.Identity{UserID: uuid.New()}}

	assert.True(t, c.Send([]byte("one")))
	assert.False(t, c.Send([]byte("two")))
}
