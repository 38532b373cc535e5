package apitest

import (
	"context"
	"net/http"
	"strings"

	jwtlib "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/jrsteele09/go-storefront/users"
	"github.com/pkg/errors"
)

// ContextKey is a custom type for context keys to avoid collisions
type ContextKey string

// ContextKeyUsername stores the authenticated username
const ContextKeyUsername ContextKey = "username"

const purposeTwoFactor = "2fa"

// tokenClaims are the claims of every token the server issues
type tokenClaims struct {
	UserID  int64  `json:"userId,omitempty"`
	Purpose string `json:"purpose,omitempty"`
	jwtlib.RegisteredClaims
}

func (s *Server) issueAccessToken(p users.Profile) (string, error) {
	now := s.nowTime()
	claims := tokenClaims{
		UserID: p.ID,
		RegisteredClaims: jwtlib.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   p.Username,
			IssuedAt:  jwtlib.NewNumericDate(now),
			ExpiresAt: jwtlib.NewNumericDate(now.Add(accessTokenTTL)),
		},
	}
	return s.sign(claims)
}

func (s *Server) issueTwoFactorToken(username string) (string, error) {
	now := s.nowTime()
	claims := tokenClaims{
		Purpose: purposeTwoFactor,
		RegisteredClaims: jwtlib.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   username,
			IssuedAt:  jwtlib.NewNumericDate(now),
			ExpiresAt: jwtlib.NewNumericDate(now.Add(twoFactorTokenTTL)),
		},
	}
	return s.sign(claims)
}

func (s *Server) sign(claims tokenClaims) (string, error) {
	signed, err := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", errors.Wrap(err, "[Server.sign]")
	}
	return signed, nil
}

// parseToken verifies raw and returns its claims. Expiry is checked against the server clock.
func (s *Server) parseToken(raw string) (*tokenClaims, error) {
	claims := &tokenClaims{}
	_, err := jwtlib.ParseWithClaims(raw, claims, func(t *jwtlib.Token) (any, error) {
		return s.secret, nil
	},
		jwtlib.WithValidMethods([]string{jwtlib.SigningMethodHS256.Alg()}),
		jwtlib.WithTimeFunc(s.nowTime),
	)
	if err != nil {
		return nil, errors.Wrap(err, "[Server.parseToken]")
	}
	return claims, nil
}

// authenticate resolves the bearer token on r to a username. Challenge tokens are refused.
func (s *Server) authenticate(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	if !strings.HasPrefix(header, "Bearer ") {
		return "", false
	}
	claims, err := s.parseToken(strings.TrimPrefix(header, "Bearer "))
	if err != nil || claims.Purpose == purposeTwoFactor {
		return "", false
	}

	s.mu.Lock()
	_, ok := s.accounts[claims.Subject]
	s.mu.Unlock()
	return claims.Subject, ok
}

// requireAuth rejects requests without a valid bearer token with 401
func (s *Server) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		username, ok := s.authenticate(r)
		if !ok {
			writeError(w, http.StatusUnauthorized, msgFullAuthRequired, nil)
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), ContextKeyUsername, username)))
	})
}

// optionalAuth identifies the caller when it can and lets the request through either way
func (s *Server) optionalAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if username, ok := s.authenticate(r); ok {
			r = r.WithContext(context.WithValue(r.Context(), ContextKeyUsername, username))
		}
		next.ServeHTTP(w, r)
	})
}

func usernameFrom(ctx context.Context) string {
	username, _ := ctx.Value(ContextKeyUsername).(string)
	return username
}
