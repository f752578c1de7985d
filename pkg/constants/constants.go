// Package constants defines application-wide constants for timeouts, limits,
// and durations of the realtime layer.
package constants

import "time"

// WebSocket connection constants
const (
	// WebSocketPingInterval is the interval between WebSocket ping frames;
	// the read deadline is refreshed on every pong.
	WebSocketPingInterval = 54 * time.Second

	// WebSocketReadDeadline is how long a connection may stay silent before
	// it is considered dead.
	WebSocketReadDeadline = 60 * time.Second

	// WebSocketWriteTimeout bounds a single frame write.
	WebSocketWriteTimeout = 10 * time.Second

	// SendBufferSize is the per-connection outbound event buffer. Frames
	// for a client this far behind are dropped.
	SendBufferSize = 256

	// MaxEventSize is the maximum accepted inbound event frame in bytes.
	MaxEventSize = 64 * 1024
)

// Call signaling constants
const (
	// RingingTimeout is how long a call may stay unanswered before it is
	// failed and the caller notified.
	RingingTimeout = 45 * time.Second

	// MediaTokenTTL is the lifetime of a media-join token. Matches the
	// relay provider's one hour privilege window.
	MediaTokenTTL = time.Hour
)

// Messaging constants
const (
	// MaxMessageLength is the maximum accepted chat message content length.
	MaxMessageLength = 4096

	// DefaultHistoryLimit is the default page size for conversation history.
	DefaultHistoryLimit = 50

	// MaxHistoryLimit caps requested history page sizes.
	MaxHistoryLimit = 200
)

// Presence constants
const (
	// PresenceTTL is how long a Redis presence entry survives without a
	// heartbeat refresh.
	PresenceTTL = 5 * time.Minute
)

// Server constants
const (
	// DefaultTimeout is the default timeout for external I/O.
	DefaultTimeout = 30 * time.Second

	// GracefulShutdownTimeout is the timeout for draining the HTTP server.
	GracefulShutdownTimeout = 30 * time.Second
)
