package media

import (
	"context"
	"fmt"
	"time"

	pulse_errors "pulse-chat/pkg/errors"

	"github.com/golang-jwt/jwt/v5"
)

// TokenIssuer hands out credentials that let a participant join a media room.
type TokenIssuer interface {
	IssueToken(ctx context.Context, roomID, participantID, displayName string) (string, error)
}

// VideoGrant mirrors the room permissions understood by LiveKit compatible
// media servers.
type VideoGrant struct {
	Room         string `json:"room"`
	RoomJoin     bool   `json:"roomJoin"`
	CanPublish   bool   `json:"canPublish"`
	CanSubscribe bool   `json:"canSubscribe"`
}

type GrantClaims struct {
	Name  string     `json:"name,omitempty"`
	Video VideoGrant `json:"video"`
	jwt.RegisteredClaims
}

// JWTIssuer signs room grants with an API key and secret shared with the
// media server.
type JWTIssuer struct {
	apiKey    string
	apiSecret []byte
	ttl       time.Duration
	now       func() time.Time
}

func NewJWTIssuer(apiKey, apiSecret string, ttl time.Duration) *JWTIssuer {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &JWTIssuer{
		apiKey:    apiKey,
		apiSecret: []byte(apiSecret),
		ttl:       ttl,
		now:       time.Now,
	}
}

func (i *JWTIssuer) IssueToken(_ context.Context, roomID, participantID, displayName string) (string, error) {
	if i.apiKey == "" || len(i.apiSecret) == 0 {
		return "", fmt.Errorf("media credentials not configured: %w", pulse_errors.ErrServiceUnavailable)
	}
	if roomID == "" || participantID == "" {
		return "", pulse_errors.ErrInvalidInput
	}

	now := i.now()
	claims := GrantClaims{
		Name: displayName,
		Video: VideoGrant{
			Room:         roomID,
			RoomJoin:     true,
			CanPublish:   true,
			CanSubscribe: true,
		},
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    i.apiKey,
			Subject:   participantID,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(i.ttl)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(i.apiSecret)
	if err != nil {
		return "", fmt.Errorf("sign media token: %w", err)
	}
	return signed, nil
}
