package auth

import (
	"chat-sync/domain"
	"chat-sync/errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const issuerName = "chat-sync"

// CustomClaims defines the structure of the data stored inside the JWT.
type CustomClaims struct {
	ParticipantID string `json:"participant_id"`
	jwt.RegisteredClaims
}

// Issuer signs and checks the tokens carrying a participant identity.
// The session never sees a token, only the identity resolved from it.
type Issuer struct {
	secret   []byte
	duration time.Duration
}

func NewIssuer(secret string, duration time.Duration) Issuer {
	return Issuer{secret: []byte(secret), duration: duration}
}

// Generate creates a signed JWT for a participant.
func (i Issuer) Generate(participant domain.ParticipantID) (string, error) {
	if err := participant.Validate(); err != nil {
		return "", err
	}
	now := time.Now()
	claims := &CustomClaims{
		ParticipantID: string(participant),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   string(participant),
			ExpiresAt: jwt.NewNumericDate(now.Add(i.duration)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    issuerName,
		},
	}
	// HS256 (HMAC with SHA256)
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(i.secret)
}

// Validate checks signature, expiration and issuer, then returns the participant.
func (i Issuer) Validate(tokenString string) (domain.ParticipantID, error) {
	token, err := jwt.ParseWithClaims(tokenString, &CustomClaims{}, func(token *jwt.Token) (interface{}, error) {
		return i.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithIssuer(issuerName))
	if err != nil {
		return "", fmt.Errorf("%w: %w", errors.ErrInvalidToken, err)
	}

	claims, ok := token.Claims.(*CustomClaims)
	if !ok || !token.Valid {
		return "", errors.ErrInvalidToken
	}
	participant := domain.ParticipantID(claims.ParticipantID)
	if err := participant.Validate(); err != nil {
		return "", fmt.Errorf("%w: %w", errors.ErrInvalidToken, err)
	}
	return participant, nil
}
