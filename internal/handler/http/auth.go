package http

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"callguard/internal/handler/http/respond"
)

type ctxKey string

const ctxSubject ctxKey = "subject"

// SubjectFromContext returns the token subject placed in the context by
// RequireToken, or an empty string on unauthenticated requests.
func SubjectFromContext(ctx context.Context) string {
	if sub, ok := ctx.Value(ctxSubject).(string); ok {
		return sub
	}
	return ""
}

// RequireToken returns middleware that guards a handler with an
// HMAC-signed bearer token. The token must be signed with the given
// secret, unexpired, and carry the required role claim. The role
// comparison is constant-time.
//
// On success the token subject is added to the request context for
// downstream log lines.
func RequireToken(secret []byte, requiredRole string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			subject, role, err := validateToken(r.Header.Get("Authorization"), secret)
			if err != nil {
				respond.Error(w, http.StatusUnauthorized, fmt.Errorf("unauthorized: %w", err))
				return
			}
			if subtle.ConstantTimeCompare([]byte(role), []byte(requiredRole)) != 1 {
				respond.Error(w, http.StatusForbidden, errors.New("forbidden"))
				return
			}
			ctx := context.WithValue(r.Context(), ctxSubject, subject)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// validateToken extracts and validates the bearer token from an
// Authorization header value, returning the subject and role claims.
func validateToken(authz string, secret []byte) (string, string, error) {
	const prefix = "Bearer "
	if !strings.HasPrefix(authz, prefix) {
		return "", "", errors.New("missing bearer token")
	}
	tokenString := strings.TrimPrefix(authz, prefix)

	tok, err := jwt.Parse(tokenString, func(t *jwt.Token) (any, error) {
		if t.Method.Alg() != jwt.SigningMethodHS256.Alg() {
			return nil, errors.New("unexpected signing method")
		}
		return secret, nil
	})
	if err != nil || !tok.Valid {
		return "", "", errors.New("invalid token")
	}

	claims, ok := tok.Claims.(jwt.MapClaims)
	if !ok {
		return "", "", errors.New("invalid claims")
	}
	if exp, ok := claims["exp"].(float64); !ok || int64(exp) < time.Now().Unix() {
		return "", "", errors.New("token expired")
	}
	sub, ok := claims["sub"].(string)
	if !ok {
		return "", "", errors.New("invalid sub claim")
	}
	role, ok := claims["role"].(string)
	if !ok {
		return "", "", errors.New("invalid role claim")
	}
	return sub, role, nil
}

// SignToken mints an HMAC-signed bearer token for the status surface.
// Operators generate tokens out of band; the worker itself only
// validates them.
func SignToken(secret []byte, subject, role string, ttl time.Duration) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":  subject,
		"role": role,
		"exp":  time.Now().Add(ttl).Unix(),
	})
	signed, err := token.SignedString(secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}
