// Package presence exposes the read side of the presence directory over
// REST.
package presence

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"forumhub-backend/pkg/response"
)

// OnlineLister reports which users currently have live connections,
// cluster-wide.
type OnlineLister interface {
	OnlineUsers(ctx context.Context) ([]uuid.UUID, error)
}

// Handler handles presence HTTP requests
type Handler struct {
	online OnlineLister
}

// NewHandler creates a new presence handler
func NewHandler(online OnlineLister) *Handler {
	return &Handler{online: online}
}

// ListOnline returns the ids of all currently online users.
// GET /api/v1/presence/online
func (h *Handler) ListOnline(c *gin.Context) {
	users, err := h.online.OnlineUsers(c.Request.Context())
	if err != nil {
		response.InternalError(c, "Failed to list online users")
		return
	}
	if users == nil {
		users = []uuid.UUID{}
	}

	response.Success(c, http.StatusOK, gin.H{"online": users})
}
