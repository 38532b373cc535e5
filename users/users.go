package users

import (
	"strings"

	interrors "github.com/jrsteele09/go-storefront/internal/errors"
)

const (
	MinUsernameLength = 3
	MinPasswordLength = 6
)

// Profile is the signed-in user as returned by GET /auth/me
type Profile struct {
	ID               int64  `json:"id"`
	Username         string `json:"username"`
	Email            string `json:"email"`
	FirstName        string `json:"firstName"`
	LastName         string `json:"lastName"`
	TwoFactorEnabled bool   `json:"twoFactorEnabled"`
	CreatedAt        string `json:"createdAt"` // Server local time, no zone (e.g. "2025-03-01T12:00:00")
}

// DisplayName is "First Last", falling back to the username.
func (p *Profile) DisplayName() string {
	name := strings.TrimSpace(p.FirstName + " " + p.LastName)
	if name == "" {
		return p.Username
	}
	return name
}

// Credentials is the body of POST /auth/login
type Credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
	TotpCode string `json:"totpCode,omitempty"` // Optional: skips the challenge round trip when 2FA is on
}

// RegisterRequest is the body of POST /auth/register
type RegisterRequest struct {
	Username  string `json:"username"`
	Email     string `json:"email"`
	Password  string `json:"password"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
}

// Validate runs the same checks as the registration form before anything is sent.
// The first failing rule is reported, wrapped in ErrInvalidInput.
func (r RegisterRequest) Validate() error {
	if strings.TrimSpace(r.Username) == "" ||
		strings.TrimSpace(r.Email) == "" ||
		r.Password == "" ||
		strings.TrimSpace(r.FirstName) == "" ||
		strings.TrimSpace(r.LastName) == "" {
		return interrors.Wrapf(interrors.ErrInvalidInput, "All fields are required")
	}
	if len(r.Username) < MinUsernameLength {
		return interrors.Wrapf(interrors.ErrInvalidInput, "Username must be at least %d characters", MinUsernameLength)
	}
	if len(r.Password) < MinPasswordLength {
		return interrors.Wrapf(interrors.ErrInvalidInput, "Password must be at least %d characters", MinPasswordLength)
	}
	if !strings.Contains(r.Email, "@") {
		return interrors.Wrapf(interrors.ErrInvalidInput, "Please enter a valid email")
	}
	return nil
}

// Validate checks both credentials are present.
func (c Credentials) Validate() error {
	if strings.TrimSpace(c.Username) == "" || c.Password == "" {
		return interrors.Wrapf(interrors.ErrInvalidInput, "Username and password are required")
	}
	return nil
}
