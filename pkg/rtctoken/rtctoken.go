// Package rtctoken mints media-join tokens for the external realtime media
// relay. Each token is bound to exactly one channel and one identity, with a
// fixed expiry, so a leaked token grants nothing beyond that channel until
// it expires.
package rtctoken

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Role describes the privilege the token grants inside the media channel.
type Role string

const (
	// RolePublisher may publish and subscribe to media streams.
	RolePublisher Role = "publisher"
	// RoleSubscriber may only subscribe.
	RoleSubscriber Role = "subscriber"
)

// Issuer mints join tokens for media channels.
type Issuer interface {
	Issue(channel string, userID uuid.UUID, role Role, ttl time.Duration) (string, error)
}

// Claims is the payload of a media-join token.
type Claims struct {
	Channel string `json:"channel"`
	Role    Role   `json:"role"`
	jwt.RegisteredClaims
}

// HMACIssuer issues HS256-signed join tokens using the relay's app
// credentials.
type HMACIssuer struct {
	appID          string
	appCertificate []byte
}

// NewHMACIssuer creates an issuer for the given relay app credentials.
func NewHMACIssuer(appID, appCertificate string) (*HMACIssuer, error) {
	if appID == "" || appCertificate == "" {
		return nil, fmt.Errorf("rtctoken: app id and certificate are required")
	}
	return &HMACIssuer{
		appID:          appID,
		appCertificate: []byte(appCertificate),
	}, nil
}

// Issue mints a token scoped to (channel, userID, role) valid for ttl.
func (i *HMACIssuer) Issue(channel string, userID uuid.UUID, role Role, ttl time.Duration) (string, error) {
	if channel == "" {
		return "", fmt.Errorf("rtctoken: channel is required")
	}
	if userID == uuid.Nil {
		return "", fmt.Errorf("rtctoken: user id is required")
	}

	now := time.Now()
	claims := &Claims{
		Channel: channel,
		Role:    role,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    i.appID,
			Subject:   userID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			ID:        uuid.New().String(),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(i.appCertificate)
	if err != nil {
		return "", fmt.Errorf("rtctoken: failed to sign join token: %w", err)
	}
	return signed, nil
}

// Decode parses and validates a token issued by this issuer. The relay does
// its own validation in production; this is used by tests and diagnostics.
func (i *HMACIssuer) Decode(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return i.appCertificate, nil
	})
	if err != nil {
		return nil, fmt.Errorf("rtctoken: failed to parse join token: %w", err)
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("rtctoken: invalid join token")
	}
	return claims, nil
}
