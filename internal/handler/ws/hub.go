// Package ws is the realtime edge: it authenticates WebSocket handshakes,
// tracks live connections in the presence directory, decodes inbound event
// frames, and routes them to the chat and call services. It also implements
// the Emitter capability those services use to push events back out.
package ws

import (
	"context"
	"net/http"
	"runtime/debug"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"forumhub-backend/internal/domain"
	"forumhub-backend/internal/presence"
	"forumhub-backend/internal/service/call"
	"forumhub-backend/internal/service/chat"
	"forumhub-backend/pkg/constants"
	apperrors "forumhub-backend/pkg/errors"
	"forumhub-backend/pkg/jwt"
	"forumhub-backend/pkg/logger"
	"forumhub-backend/pkg/metrics"
)

// ChatService is the slice of the messaging router the hub dispatches to.
type ChatService interface {
	SendMessage(ctx context.Context, sender domain.Identity, input *chat.SendMessageInput) (*domain.Message, error)
	MarkMessagesRead(ctx context.Context, reader domain.Identity, senderID uuid.UUID) error
}

// CallService is the slice of the call orchestrator the hub dispatches to.
type CallService interface {
	RequestCall(ctx context.Context, caller domain.Identity, receiverID uuid.UUID) (string, error)
	AcceptCall(ctx context.Context, accepter domain.Identity, channel string) error
	EndCall(ctx context.Context, channel string) error
}

// PresenceStore mirrors live connection state into shared storage so other
// services can answer "who is online" without reaching this process.
type PresenceStore interface {
	SetOnline(ctx context.Context, userID uuid.UUID) error
	SetOffline(ctx context.Context, userID uuid.UUID) error
	Heartbeat(ctx context.Context, userID uuid.UUID) error
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins in dev, restrict in production
	},
}

// Hub owns the connection lifecycle. One connection per user: a newer
// handshake for the same user replaces the older one in the directory, and
// the older connection's teardown cannot evict its replacement.
type Hub struct {
	directory *presence.Directory
	store     PresenceStore
	tokens    *jwt.Manager
	metrics   *metrics.Metrics

	chatSvc ChatService
	callSvc CallService
}

// NewHub creates a hub over the given directory and presence store. Services
// are attached with Bind after construction, since they themselves depend on
// the hub as their Emitter.
func NewHub(directory *presence.Directory, store PresenceStore, tokens *jwt.Manager, m *metrics.Metrics) *Hub {
	return &Hub{
		directory: directory,
		store:     store,
		tokens:    tokens,
		metrics:   m,
	}
}

// Bind attaches the services the hub dispatches inbound events to.
func (h *Hub) Bind(chatSvc ChatService, callSvc CallService) {
	h.chatSvc = chatSvc
	h.callSvc = callSvc
}

// EmitTo serializes an event for a single user and hands it to their live
// connection. It reports false when the user has no connection or the frame
// could not be queued.
func (h *Hub) EmitTo(userID uuid.UUID, event string, payload any) bool {
	conn, ok := h.directory.Lookup(userID)
	if !ok {
		return false
	}

	frame, err := encodeEvent(event, payload)
	if err != nil {
		logger.Error("failed to encode event",
			zap.String("event", event),
			zap.Error(err))
		return false
	}

	h.metrics.RecordEvent(event, "outbound")
	return conn.Send(frame)
}

// Online reports whether a user has a live connection on this instance.
func (h *Hub) Online(userID uuid.UUID) bool {
	_, ok := h.directory.Lookup(userID)
	return ok
}

// ServeWS authenticates and upgrades a WebSocket handshake. Authentication
// happens before the upgrade so an invalid token is rejected with a plain
// 401 instead of a short-lived socket.
func (h *Hub) ServeWS(c *gin.Context) {
	token := c.Query("token")
	if token == "" {
		if header := c.GetHeader("Authorization"); strings.HasPrefix(header, "Bearer ") {
			token = strings.TrimPrefix(header, "Bearer ")
		}
	}
	if token == "" {
		h.metrics.ConnectionRejected()
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication token required"})
		return
	}

	claims, err := h.tokens.Verify(token)
	if err != nil {
		h.metrics.ConnectionRejected()
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid authentication token"})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	client := &Client{
		hub:  h,
		conn: conn,
		send: make(chan []byte, constants.SendBufferSize),
		identity: domain.Identity{
			UserID: claims.UserID,
			Email:  claims.Email,
		},
		done: make(chan struct{}),
	}

	h.directory.Register(client.identity.UserID, client)
	if err := h.store.SetOnline(c.Request.Context(), client.identity.UserID); err != nil {
		logger.Warn("failed to mirror presence",
			zap.String("user_id", client.identity.UserID.String()),
			zap.Error(err))
	}
	go h.heartbeat(client)

	h.metrics.ConnectionOpened()
	logger.Info("websocket connected",
		zap.String("user_id", client.identity.UserID.String()),
		zap.Int("connections", h.directory.Len()))

	go client.writePump()
	go client.readPump()
}

// heartbeat refreshes the shared presence entry until the connection is torn
// down, so the TTL only expires connections that actually went away.
func (h *Hub) heartbeat(c *Client) {
	ticker := time.NewTicker(constants.PresenceTTL / 3)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			if err := h.store.Heartbeat(context.Background(), c.identity.UserID); err != nil {
				logger.Warn("presence heartbeat failed",
					zap.String("user_id", c.identity.UserID.String()),
					zap.Error(err))
			}
		}
	}
}

// disconnect tears down a client's registration. The deregister is guarded:
// if this user already reconnected, the directory still maps them to the
// newer connection and the shared presence state is left untouched.
func (h *Hub) disconnect(c *Client) {
	h.metrics.ConnectionClosed()
	close(c.done)

	if !h.directory.Deregister(c.identity.UserID, c) {
		logger.Debug("stale connection closed",
			zap.String("user_id", c.identity.UserID.String()))
		return
	}

	if err := h.store.SetOffline(context.Background(), c.identity.UserID); err != nil {
		logger.Warn("failed to clear presence",
			zap.String("user_id", c.identity.UserID.String()),
			zap.Error(err))
	}

	logger.Info("websocket disconnected",
		zap.String("user_id", c.identity.UserID.String()),
		zap.Int("connections", h.directory.Len()))
}

// dispatch routes one inbound frame to its handler. Unknown events are
// logged and dropped; a panicking handler kills neither the connection nor
// the process.
func (h *Hub) dispatch(c *Client, envelope *Envelope) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("event handler panicked",
				zap.String("event", envelope.Event),
				zap.String("user_id", c.identity.UserID.String()),
				zap.Any("panic", r),
				zap.ByteString("stack", debug.Stack()))
		}
	}()

	h.metrics.RecordEvent(envelope.Event, "inbound")

	ctx := context.Background()

	switch envelope.Event {
	case EventSendMessage:
		h.handleSendMessage(ctx, c, envelope.Data)
	case EventMarkMessagesRead:
		h.handleMarkMessagesRead(ctx, c, envelope.Data)
	case EventRequestVideoCall:
		h.handleRequestVideoCall(ctx, c, envelope.Data)
	case EventAcceptVideoCall:
		h.handleAcceptVideoCall(ctx, c, envelope.Data)
	case EventEndVideoCall:
		h.handleEndVideoCall(ctx, c, envelope.Data)
	default:
		logger.Warn("unknown event",
			zap.String("event", envelope.Event),
			zap.String("user_id", c.identity.UserID.String()))
	}
}

func (h *Hub) handleSendMessage(ctx context.Context, c *Client, data []byte) {
	var payload SendMessagePayload
	if err := decodePayload(data, &payload); err != nil {
		h.emitError(c, chat.EventMessageError, err)
		return
	}

	_, err := h.chatSvc.SendMessage(ctx, c.identity, &chat.SendMessageInput{
		ReceiverID: payload.ReceiverID,
		Content:    payload.Content,
	})
	if err != nil {
		h.emitError(c, chat.EventMessageError, err)
	}
}

func (h *Hub) handleMarkMessagesRead(ctx context.Context, c *Client, data []byte) {
	var payload MarkMessagesReadPayload
	if err := decodePayload(data, &payload); err != nil {
		h.emitError(c, chat.EventMessageError, err)
		return
	}

	if err := h.chatSvc.MarkMessagesRead(ctx, c.identity, payload.SenderID); err != nil {
		h.emitError(c, chat.EventMessageError, err)
	}
}

func (h *Hub) handleRequestVideoCall(ctx context.Context, c *Client, data []byte) {
	var payload RequestVideoCallPayload
	if err := decodePayload(data, &payload); err != nil {
		h.emitError(c, call.EventCallError, err)
		return
	}

	if _, err := h.callSvc.RequestCall(ctx, c.identity, payload.ReceiverID); err != nil {
		h.emitError(c, call.EventCallError, err)
	}
}

func (h *Hub) handleAcceptVideoCall(ctx context.Context, c *Client, data []byte) {
	var payload AcceptVideoCallPayload
	if err := decodePayload(data, &payload); err != nil {
		h.emitError(c, call.EventCallError, err)
		return
	}

	if err := h.callSvc.AcceptCall(ctx, c.identity, payload.ChannelName); err != nil {
		h.emitError(c, call.EventCallError, err)
	}
}

func (h *Hub) handleEndVideoCall(ctx context.Context, c *Client, data []byte) {
	var payload EndVideoCallPayload
	if err := decodePayload(data, &payload); err != nil {
		h.emitError(c, call.EventCallError, err)
		return
	}

	if err := h.callSvc.EndCall(ctx, payload.ChannelName); err != nil {
		h.emitError(c, call.EventCallError, err)
	}
}

// emitError reports a failure back to the connection that caused it.
func (h *Hub) emitError(c *Client, event string, err error) {
	payload := &ErrorPayload{Error: err.Error()}
	if appErr := apperrors.AsAppError(err); appErr != nil {
		payload.Error = appErr.Message
		payload.Code = string(appErr.Code)
	}
	h.EmitTo(c.identity.UserID, event, payload)
}
