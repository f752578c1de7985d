// Package chat exposes the REST surface of the messaging router: chat list,
// conversation history, unread messages, and message deletion. Live delivery
// happens over the WebSocket edge; these endpoints exist for initial page
// loads and clients catching up after reconnect.
package chat

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"forumhub-backend/internal/middleware"
	"forumhub-backend/internal/service/chat"
	"forumhub-backend/pkg/constants"
	"forumhub-backend/pkg/response"
)

// Handler handles chat HTTP requests
type Handler struct {
	chatService *chat.Service
}

// NewHandler creates a new chat handler
func NewHandler(chatService *chat.Service) *Handler {
	return &Handler{
		chatService: chatService,
	}
}

// ListChats returns the caller's conversations, most recent first, with
// partner profiles, last messages, and unread counts.
// GET /api/v1/chats
func (h *Handler) ListChats(c *gin.Context) {
	identity, ok := middleware.IdentityFromContext(c)
	if !ok {
		response.Unauthorized(c, "Not authenticated")
		return
	}

	chats, err := h.chatService.UserChats(c.Request.Context(), identity)
	if err != nil {
		response.FromError(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"chats": chats})
}

// GetMessages returns the caller's history with one conversation partner.
// GET /api/v1/chats/:user_id/messages?limit=50
func (h *Handler) GetMessages(c *gin.Context) {
	identity, ok := middleware.IdentityFromContext(c)
	if !ok {
		response.Unauthorized(c, "Not authenticated")
		return
	}

	partnerID, err := uuid.Parse(c.Param("user_id"))
	if err != nil {
		response.ValidationError(c, "Invalid user ID")
		return
	}

	limit := constants.DefaultHistoryLimit
	if raw := c.Query("limit"); raw != "" {
		limit, err = strconv.Atoi(raw)
		if err != nil || limit < 1 {
			response.ValidationError(c, "Invalid limit")
			return
		}
	}

	messages, err := h.chatService.History(c.Request.Context(), identity, partnerID, limit)
	if err != nil {
		response.FromError(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"messages": messages})
}

// GetUnreadMessages returns every unread message addressed to the caller
// across all conversations.
// GET /api/v1/messages/unread
func (h *Handler) GetUnreadMessages(c *gin.Context) {
	identity, ok := middleware.IdentityFromContext(c)
	if !ok {
		response.Unauthorized(c, "Not authenticated")
		return
	}

	messages, err := h.chatService.UnreadMessages(c.Request.Context(), identity)
	if err != nil {
		response.FromError(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"messages": messages})
}

// DeleteMessage soft-deletes one of the caller's own messages. The partner
// id in the path pins the conversation the message lives in.
// DELETE /api/v1/chats/:user_id/messages/:message_id
func (h *Handler) DeleteMessage(c *gin.Context) {
	identity, ok := middleware.IdentityFromContext(c)
	if !ok {
		response.Unauthorized(c, "Not authenticated")
		return
	}

	partnerID, err := uuid.Parse(c.Param("user_id"))
	if err != nil {
		response.ValidationError(c, "Invalid user ID")
		return
	}

	messageID, err := uuid.Parse(c.Param("message_id"))
	if err != nil {
		response.ValidationError(c, "Invalid message ID")
		return
	}

	if err := h.chatService.DeleteMessage(c.Request.Context(), identity, partnerID, messageID); err != nil {
		response.FromError(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"message": "Message deleted"})
}
