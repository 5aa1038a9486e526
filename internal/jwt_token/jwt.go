// Package jwttoken validates the access tokens issued by the identity
// subsystem and adapts them to the middleware's claims.
package jwttoken

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"ballotcore/internal/platform/middleware"
	dErrors "ballotcore/pkg/domain-errors"
)

// Claims mirrors the identity subsystem's access token payload.
type Claims struct {
	VoterID  string `json:"voter_id"`
	Verified bool   `json:"verified"`
	jwt.RegisteredClaims
}

// JWTService validates HMAC-signed voter tokens.
type JWTService struct {
	signingKey []byte
}

func NewJWTService(signingKey string) *JWTService {
	return &JWTService{signingKey: []byte(signingKey)}
}

// GenerateAccessToken mints a token the way the identity subsystem does.
// Used by tests and local tooling; production tokens come from the identity
// service with the shared signing key.
func (s *JWTService) GenerateAccessToken(voterID string, verified bool, expiresIn time.Duration) (string, error) {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		VoterID:  voterID,
		Verified: verified,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(expiresIn)),
			IssuedAt:  jwt.NewNumericDate(now),
			ID:        uuid.NewString(),
		},
	})
	return token.SignedString(s.signingKey)
}

// ValidateToken parses and verifies a token, returning middleware claims.
func (s *JWTService) ValidateToken(tokenString string) (*middleware.VoterClaims, error) {
	parsed, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrTokenUnverifiable
		}
		return s.signingKey, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, dErrors.Wrap(err, dErrors.CodeUnauthorized, "token expired")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeUnauthorized, "invalid token")
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid token claims")
	}
	if claims.VoterID == "" {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "token missing voter_id")
	}
	return &middleware.VoterClaims{
		VoterID:  claims.VoterID,
		Verified: claims.Verified,
	}, nil
}
