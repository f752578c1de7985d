package ws

import (
	"encoding/json"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"forumhub-backend/internal/domain"
	"forumhub-backend/pkg/constants"
	"forumhub-backend/pkg/logger"
)

// Client is one authenticated WebSocket connection. It satisfies
// presence.Conn, so the directory can hand frames to it directly.
type Client struct {
	hub      *Hub
	conn     *websocket.Conn
	send     chan []byte
	identity domain.Identity

	// done is closed on teardown and stops this connection's presence
	// heartbeat.
	done chan struct{}
}

// Send queues a frame for delivery. It never blocks: a client whose send
// buffer is full is considered too slow and the frame is dropped, reported
// as undelivered.
func (c *Client) Send(payload []byte) bool {
	select {
	case c.send <- payload:
		return true
	default:
		logger.Warn("send buffer full, dropping frame",
			zap.String("user_id", c.identity.UserID.String()))
		return false
	}
}

// readPump reads frames from the socket until it closes, dispatching each
// event to the hub. It owns the deregistration of this connection.
func (c *Client) readPump() {
	defer func() {
		c.hub.disconnect(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(constants.MaxEventSize)
	c.conn.SetReadDeadline(time.Now().Add(constants.WebSocketReadDeadline))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(constants.WebSocketReadDeadline))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				logger.Warn("websocket read error",
					zap.String("user_id", c.identity.UserID.String()),
					zap.Error(err))
			}
			return
		}

		var envelope Envelope
		if err := json.Unmarshal(message, &envelope); err != nil {
			logger.Warn("malformed frame",
				zap.String("user_id", c.identity.UserID.String()),
				zap.Error(err))
			continue
		}

		c.hub.dispatch(c, &envelope)
	}
}

// writePump drains the send buffer onto the socket and keeps the connection
// alive with pings.
func (c *Client) writePump() {
	ticker := time.NewTicker(constants.WebSocketPingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(constants.WebSocketWriteTimeout))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(constants.WebSocketWriteTimeout))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
