package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
)

// VoterClaims is what the auth middleware needs from a validated token. The
// identity subsystem issues the token; this core only reads it.
type VoterClaims struct {
	VoterID  string
	Verified bool
}

// TokenValidator validates a bearer token and extracts voter claims.
type TokenValidator interface {
	ValidateToken(tokenString string) (*VoterClaims, error)
}

type contextKeyVoterID struct{}
type contextKeyVerified struct{}

// GetVoterID retrieves the authenticated voter ID from the context.
func GetVoterID(ctx context.Context) string {
	id, ok := ctx.Value(contextKeyVoterID{}).(string)
	if !ok {
		return ""
	}
	return id
}

// GetVerified reports whether the authenticated voter has passed identity
// verification.
func GetVerified(ctx context.Context) bool {
	verified, ok := ctx.Value(contextKeyVerified{}).(bool)
	return ok && verified
}

// RequireVoter rejects requests without a valid bearer token and stores the
// voter claims in the request context.
func RequireVoter(validator TokenValidator, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			authHeader := r.Header.Get("Authorization")
			token, ok := strings.CutPrefix(authHeader, "Bearer ")
			if !ok || token == "" {
				logger.WarnContext(ctx, "unauthorized access - missing token",
					"request_id", GetRequestID(ctx),
				)
				writeUnauthorized(w, "Missing or invalid Authorization header")
				return
			}

			claims, err := validator.ValidateToken(token)
			if err != nil {
				logger.WarnContext(ctx, "unauthorized access - invalid token",
					"error", err,
					"request_id", GetRequestID(ctx),
				)
				writeUnauthorized(w, "Invalid or expired token")
				return
			}

			ctx = context.WithValue(ctx, contextKeyVoterID{}, claims.VoterID)
			ctx = context.WithValue(ctx, contextKeyVerified{}, claims.Verified)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func writeUnauthorized(w http.ResponseWriter, description string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_, _ = w.Write([]byte(`{"error":"unauthorized","error_description":"` + description + `"}`))
}
