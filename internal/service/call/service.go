// Package call implements the signaling orchestrator that arranges two users
// into a shared media channel: request, ring, accept, token issuance, and
// teardown. Media itself flows through the external relay; this service only
// hands out scoped join tokens and keeps both parties' signaling consistent.
package call

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"forumhub-backend/internal/domain"
	"forumhub-backend/pkg/constants"
	apperrors "forumhub-backend/pkg/errors"
	"forumhub-backend/pkg/logger"
	"forumhub-backend/pkg/metrics"
	"forumhub-backend/pkg/rtctoken"
)

// Server-to-client event names emitted during call signaling.
const (
	EventIncomingCall       = "incomingCall"
	EventCallTokenGenerated = "callTokenGenerated"
	EventCallAccepted       = "callAccepted"
	EventCallEnded          = "callEnded"
	// EventCallError is terminal for the attempt: the client must
	// re-initiate, the server never retries.
	EventCallError = "callError"
)

// Emitter pushes an event to a user's live connection, reporting whether the
// user had one.
type Emitter interface {
	EmitTo(userID uuid.UUID, event string, payload any) bool
}

// Presence answers whether a user currently has a live connection.
type Presence interface {
	Online(userID uuid.UUID) bool
}

// session wraps the exposed call state with its ring timer.
type session struct {
	domain.CallSession
	ringTimer *time.Timer
}

// Service orchestrates call signaling between exactly two identities.
// Session state is in-memory only; a restart drops in-flight calls.
type Service struct {
	emitter  Emitter
	presence Presence
	tokens   rtctoken.Issuer
	metrics  *metrics.Metrics

	ringingTimeout time.Duration
	tokenTTL       time.Duration

	mu       sync.Mutex
	sessions map[string]*session
}

// Option configures a Service.
type Option func(*Service)

// WithRingingTimeout overrides how long a call may ring unanswered.
func WithRingingTimeout(d time.Duration) Option {
	return func(s *Service) { s.ringingTimeout = d }
}

// WithTokenTTL overrides the media-join token lifetime.
func WithTokenTTL(d time.Duration) Option {
	return func(s *Service) { s.tokenTTL = d }
}

// NewService creates a new call signaling service
func NewService(emitter Emitter, presence Presence, tokens rtctoken.Issuer, m *metrics.Metrics, opts ...Option) *Service {
	s := &Service{
		emitter:        emitter,
		presence:       presence,
		tokens:         tokens,
		metrics:        m,
		ringingTimeout: constants.RingingTimeout,
		tokenTTL:       constants.MediaTokenTTL,
		sessions:       make(map[string]*session),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// IncomingCallPayload rings the receiver. It deliberately carries no token:
// the receiver gets their own scoped token only after accepting.
type IncomingCallPayload struct {
	CallerID    uuid.UUID `json:"callerId"`
	ChannelName string    `json:"channelName"`
}

// CallTokenPayload delivers a participant's own media-join token.
type CallTokenPayload struct {
	ChannelName string `json:"channelName"`
	Token       string `json:"token"`
}

// CallAcceptedPayload tells the caller the receiver picked up.
type CallAcceptedPayload struct {
	ChannelName string    `json:"channelName"`
	AccepterID  uuid.UUID `json:"accepterId"`
}

// CallEndedPayload tells a participant the call is over.
type CallEndedPayload struct {
	ChannelName string `json:"channelName"`
}

// CallErrorPayload is emitted only to the connection whose action failed.
type CallErrorPayload struct {
	Error string `json:"error"`
}

// RequestCall starts signaling from caller to receiverID. The receiver must
// be online: signaling has no store-and-forward, an offline receiver fails
// the attempt immediately and leaves no session behind.
func (s *Service) RequestCall(ctx context.Context, caller domain.Identity, receiverID uuid.UUID) (string, error) {
	if receiverID == uuid.Nil {
		return "", apperrors.ValidationError("receiver_id is required")
	}
	if receiverID == caller.UserID {
		return "", apperrors.ValidationError("cannot call yourself")
	}

	channel := domain.ChannelName(caller.UserID, receiverID)

	if !s.presence.Online(receiverID) {
		s.metrics.RecordCallError(string(apperrors.ErrCodeReceiverOffline))
		return "", apperrors.ReceiverOfflineError("receiver is offline")
	}

	callerToken, err := s.tokens.Issue(channel, caller.UserID, rtctoken.RolePublisher, s.tokenTTL)
	if err != nil {
		s.metrics.RecordCallError(string(apperrors.ErrCodeSignaling))
		return "", apperrors.SignalingError("failed to issue media token", err)
	}

	s.mu.Lock()
	// Re-requesting an existing channel replaces the previous attempt.
	if prev, ok := s.sessions[channel]; ok {
		prev.ringTimer.Stop()
	}
	sess := &session{
		CallSession: domain.CallSession{
			ChannelName:  channel,
			Participants: [2]uuid.UUID{caller.UserID, receiverID},
			State:        domain.CallStateRinging,
			CreatedAt:    time.Now(),
		},
	}
	sess.ringTimer = time.AfterFunc(s.ringingTimeout, func() {
		s.expireRinging(channel)
	})
	s.sessions[channel] = sess
	active := len(s.sessions)
	s.mu.Unlock()

	s.metrics.RecordCallTransition("requested")
	s.metrics.SetActiveCalls(active)

	s.emitter.EmitTo(receiverID, EventIncomingCall, &IncomingCallPayload{
		CallerID:    caller.UserID,
		ChannelName: channel,
	})
	s.emitter.EmitTo(caller.UserID, EventCallTokenGenerated, &CallTokenPayload{
		ChannelName: channel,
		Token:       callerToken,
	})

	logger.Info("call requested",
		zap.String("channel", channel),
		zap.String("caller_id", caller.UserID.String()),
		zap.String("receiver_id", receiverID.String()))

	return channel, nil
}

// AcceptCall transitions a ringing call to active. The accepter receives
// their own scoped token and the caller is notified. Accepting a channel
// that no longer exists (ring expired, caller ended, process restarted)
// fails without touching the other party.
func (s *Service) AcceptCall(ctx context.Context, accepter domain.Identity, channel string) error {
	s.mu.Lock()
	sess, ok := s.sessions[channel]
	if !ok || !sess.HasParticipant(accepter.UserID) || sess.State != domain.CallStateRinging {
		s.mu.Unlock()
		s.metrics.RecordCallError(string(apperrors.ErrCodeCallNotFound))
		return apperrors.CallNotFoundError("no ringing call for this channel")
	}
	callerID := sess.Participants[0]
	s.mu.Unlock()

	accepterToken, err := s.tokens.Issue(channel, accepter.UserID, rtctoken.RolePublisher, s.tokenTTL)
	if err != nil {
		s.metrics.RecordCallError(string(apperrors.ErrCodeSignaling))
		return apperrors.SignalingError("failed to issue media token", err)
	}

	s.mu.Lock()
	// Re-check: the ring may have expired while we were issuing the token.
	sess, ok = s.sessions[channel]
	if !ok || sess.State != domain.CallStateRinging {
		s.mu.Unlock()
		s.metrics.RecordCallError(string(apperrors.ErrCodeCallNotFound))
		return apperrors.CallNotFoundError("no ringing call for this channel")
	}
	sess.ringTimer.Stop()
	sess.State = domain.CallStateActive
	s.mu.Unlock()

	s.metrics.RecordCallTransition("accepted")

	s.emitter.EmitTo(callerID, EventCallAccepted, &CallAcceptedPayload{
		ChannelName: channel,
		AccepterID:  accepter.UserID,
	})
	s.emitter.EmitTo(accepter.UserID, EventCallTokenGenerated, &CallTokenPayload{
		ChannelName: channel,
		Token:       accepterToken,
	})

	logger.Info("call accepted",
		zap.String("channel", channel),
		zap.String("accepter_id", accepter.UserID.String()))

	return nil
}

// EndCall tears down a channel. Every participant with a live connection is
// told the call ended; the session is discarded unconditionally, and ending
// an absent channel is a no-op.
func (s *Service) EndCall(ctx context.Context, channel string) error {
	s.mu.Lock()
	sess, ok := s.sessions[channel]
	if !ok {
		s.mu.Unlock()
		return nil
	}
	sess.ringTimer.Stop()
	delete(s.sessions, channel)
	active := len(s.sessions)
	s.mu.Unlock()

	s.metrics.RecordCallTransition("ended")
	s.metrics.SetActiveCalls(active)

	for _, participant := range sess.Participants {
		s.emitter.EmitTo(participant, EventCallEnded, &CallEndedPayload{
			ChannelName: channel,
		})
	}

	logger.Info("call ended", zap.String("channel", channel))
	return nil
}

// expireRinging fires when a ringing call was never accepted. The caller is
// the one waiting, so the caller gets the terminal error.
func (s *Service) expireRinging(channel string) {
	s.mu.Lock()
	sess, ok := s.sessions[channel]
	if !ok || sess.State != domain.CallStateRinging {
		s.mu.Unlock()
		return
	}
	delete(s.sessions, channel)
	active := len(s.sessions)
	s.mu.Unlock()

	s.metrics.RecordCallTransition("timed_out")
	s.metrics.SetActiveCalls(active)

	callerID := sess.Participants[0]
	s.emitter.EmitTo(callerID, EventCallError, &CallErrorPayload{
		Error: "call was not answered",
	})

	logger.Info("ringing call expired",
		zap.String("channel", channel),
		zap.String("caller_id", callerID.String()))
}

// Session returns a copy of the session state for a channel, if present.
func (s *Service) Session(channel string) (domain.CallSession, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[channel]
	if !ok {
		return domain.CallSession{}, false
	}
	return sess.CallSession, true
}

// ActiveSessions returns the number of in-memory call sessions.
func (s *Service) ActiveSessions() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// Close stops all ring timers. Sessions are not notified; the process is
// going away and clients will observe the disconnect.
func (s *Service) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, sess := range s.sessions {
		sess.ringTimer.Stop()
	}
	s.sessions = make(map[string]*session)
}
