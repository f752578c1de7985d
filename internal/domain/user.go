package domain

import (
	"github.com/google/uuid"
)

// Identity is the authenticated user reference attached to a connection.
// Derived once from the bearer credential at handshake time and never
// re-validated mid-session.
type Identity struct {
	UserID uuid.UUID `json:"user_id"`
	Email  string    `json:"email"`
}

// Profile is the public subset of a user record pushed alongside realtime
// events. The users table itself is owned by the account service; the
// realtime layer only reads these columns.
type Profile struct {
	UserID         uuid.UUID `json:"user_id"`
	Name           string    `json:"name"`
	Email          string    `json:"email"`
	ProfileImage   *string   `json:"profile_image,omitempty"`
	Specialization *string   `json:"specialization,omitempty"`
}
