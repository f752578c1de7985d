package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"forumhub-backend/internal/domain"
	"forumhub-backend/pkg/jwt"
)

// AuthMiddleware validates the Bearer token on REST requests and stores the
// caller's identity in the Gin context for handlers to pick up.
func AuthMiddleware(jwtManager *jwt.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Authorization header required"})
			c.Abort()
			return
		}

		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid authorization header format"})
			c.Abort()
			return
		}

		claims, err := jwtManager.Verify(parts[1])
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid token"})
			c.Abort()
			return
		}

		c.Set("user_id", claims.UserID)
		c.Set("identity", domain.Identity{UserID: claims.UserID, Email: claims.Email})
		c.Next()
	}
}

// IdentityFromContext retrieves the identity stored by AuthMiddleware.
func IdentityFromContext(c *gin.Context) (domain.Identity, bool) {
	val, exists := c.Get("identity")
	if !exists {
		return domain.Identity{}, false
	}
	identity, ok := val.(domain.Identity)
	return identity, ok
}

// UserIDFromContext retrieves the authenticated user id stored by
// AuthMiddleware.
func UserIDFromContext(c *gin.Context) (uuid.UUID, bool) {
	val, exists := c.Get("user_id")
	if !exists {
		return uuid.Nil, false
	}
	userID, ok := val.(uuid.UUID)
	return userID, ok
}
