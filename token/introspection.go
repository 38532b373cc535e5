// Package token reads the claims of the bearer token the storefront API issued. Claims are
// parsed without verification: the client holds no key, and the server stays the authority
// on whether a token is valid.
package token

import (
	"strings"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
	interrors "github.com/jrsteele09/go-storefront/internal/errors"
	"github.com/pkg/errors"
)

// NowTimeFunc returns the current time. It can be overridden in tests.
var NowTimeFunc = time.Now

// Introspection is what the client can tell about a token without asking the server.
type Introspection struct {
	Subject   string    `json:"sub,omitempty"` // Subject, usually the username
	IssuedAt  time.Time `json:"iat,omitempty"` // Zero when the token carries no iat
	ExpiresAt time.Time `json:"exp,omitempty"` // Zero when the token carries no exp
	Expired   bool      `json:"expired"`       // exp is set and in the past
}

// Introspect parses rawToken as a JWT and extracts the registered claims. A token that is
// not a JWT yields an error wrapping ErrInvalidInput; opaque tokens are legitimate, so
// callers should treat that as "nothing to show" rather than a failure.
func Introspect(rawToken string) (*Introspection, error) {
	rawToken = strings.TrimSpace(rawToken)
	if rawToken == "" {
		return nil, interrors.ErrNoToken
	}

	claims := jwtlib.RegisteredClaims{}
	if _, _, err := jwtlib.NewParser().ParseUnverified(rawToken, &claims); err != nil {
		return nil, errors.Wrap(interrors.Wrapf(interrors.ErrInvalidInput, "%s", err.Error()), "[token.Introspect]")
	}

	info := &Introspection{Subject: claims.Subject}
	if claims.IssuedAt != nil {
		info.IssuedAt = claims.IssuedAt.Time
	}
	if claims.ExpiresAt != nil {
		info.ExpiresAt = claims.ExpiresAt.Time
		info.Expired = NowTimeFunc().After(claims.ExpiresAt.Time)
	}
	return info, nil
}

// Remaining is the time left before expiry, zero when expired or when no expiry is known.
func (i *Introspection) Remaining() time.Duration {
	if i == nil || i.ExpiresAt.IsZero() {
		return 0
	}
	d := i.ExpiresAt.Sub(NowTimeFunc())
	if d < 0 {
		return 0
	}
	return d
}
