// Package cockroach implements the relational repositories: user records and
// the per-user chat index backing chat lists and unread counters.
package cockroach

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"forumhub-backend/internal/domain"
)

// UserRepository reads user data from CockroachDB. The users table is owned
// by the account service; the realtime layer never writes it.
type UserRepository struct {
	pool *pgxpool.Pool
}

// NewUserRepository creates a new UserRepository
func NewUserRepository(pool *pgxpool.Pool) *UserRepository {
	return &UserRepository{pool: pool}
}

// GetProfiles retrieves the public profiles for a set of user IDs. Missing
// IDs are simply absent from the result.
func (r *UserRepository) GetProfiles(ctx context.Context, userIDs []uuid.UUID) (map[uuid.UUID]*domain.Profile, error) {
	if len(userIDs) == 0 {
		return map[uuid.UUID]*domain.Profile{}, nil
	}

	query := `
		SELECT user_id, email, name, profile_image, specialization
		FROM users
		WHERE user_id = ANY($1)
	`

	rows, err := r.pool.Query(ctx, query, userIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to get profiles: %w", err)
	}
	defer rows.Close()

	profiles := make(map[uuid.UUID]*domain.Profile, len(userIDs))
	for rows.Next() {
		profile := &domain.Profile{}
		if err := rows.Scan(
			&profile.UserID,
			&profile.Email,
			&profile.Name,
			&profile.ProfileImage,
			&profile.Specialization,
		); err != nil {
			return nil, fmt.Errorf("failed to scan profile: %w", err)
		}
		profiles[profile.UserID] = profile
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read profiles: %w", err)
	}
	return profiles, nil
}

