// Package redis implements the shared presence-status repository. The
// in-memory directory answers "which socket do I push to"; this repository
// answers "who is online" for REST clients and future scale-out, and is
// best-effort: in degraded mode every write is silently skipped.
package redis

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"forumhub-backend/internal/database"
	"forumhub-backend/pkg/constants"
)

const onlineSetKey = "presence:online"

// PresenceRepository tracks user online status in Redis.
type PresenceRepository struct {
	client *database.RedisClient
}

// NewPresenceRepository creates a new PresenceRepository
func NewPresenceRepository(client *database.RedisClient) *PresenceRepository {
	return &PresenceRepository{client: client}
}

func presenceKey(userID uuid.UUID) string {
	return fmt.Sprintf("presence:%s", userID)
}

// SetOnline marks a user as online. The per-user key expires on its own if
// heartbeats stop so a crashed instance cannot leave users online forever.
func (r *PresenceRepository) SetOnline(ctx context.Context, userID uuid.UUID) error {
	if err := r.client.SafeSet(ctx, presenceKey(userID), "online", constants.PresenceTTL).Err(); err != nil {
		return fmt.Errorf("failed to set user online: %w", err)
	}
	if err := r.client.SafeSAdd(ctx, onlineSetKey, userID.String()).Err(); err != nil {
		return fmt.Errorf("failed to add to online set: %w", err)
	}
	return nil
}

// SetOffline marks a user as offline.
func (r *PresenceRepository) SetOffline(ctx context.Context, userID uuid.UUID) error {
	if err := r.client.SafeDel(ctx, presenceKey(userID)).Err(); err != nil {
		return fmt.Errorf("failed to delete presence: %w", err)
	}
	if err := r.client.SafeSRem(ctx, onlineSetKey, userID.String()).Err(); err != nil {
		return fmt.Errorf("failed to remove from online set: %w", err)
	}
	return nil
}

// Heartbeat refreshes a user's presence TTL.
func (r *PresenceRepository) Heartbeat(ctx context.Context, userID uuid.UUID) error {
	if err := r.client.SafeExpire(ctx, presenceKey(userID), constants.PresenceTTL).Err(); err != nil {
		return fmt.Errorf("failed to refresh presence: %w", err)
	}
	return nil
}

// IsOnline checks whether a user currently has a presence entry.
func (r *PresenceRepository) IsOnline(ctx context.Context, userID uuid.UUID) (bool, error) {
	exists, err := r.client.SafeExists(ctx, presenceKey(userID)).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check presence: %w", err)
	}
	return exists > 0, nil
}

// OnlineUsers returns the ids of all currently online users.
func (r *PresenceRepository) OnlineUsers(ctx context.Context) ([]uuid.UUID, error) {
	members, err := r.client.SafeSMembers(ctx, onlineSetKey).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list online users: %w", err)
	}

	userIDs := make([]uuid.UUID, 0, len(members))
	for _, member := range members {
		userID, err := uuid.Parse(member)
		if err != nil {
			continue // skip invalid entries
		}
		userIDs = append(userIDs, userID)
	}
	return userIDs, nil
}

// IsDegraded reports whether the backing Redis is in degraded mode.
func (r *PresenceRepository) IsDegraded() bool {
	return r.client.IsDegraded()
}
