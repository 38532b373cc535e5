package session

import "github.com/jrsteele09/go-storefront/internal/utils"

// AuthResponse is returned by login, registration, and two-factor verification. A login
// against an account with two-factor enabled carries TwoFactorRequired and a short-lived
// TwoFactorToken instead of an AccessToken.
type AuthResponse struct {
	AccessToken       string `json:"accessToken,omitempty"`
	TokenType         string `json:"tokenType,omitempty"`
	TwoFactorRequired bool   `json:"twoFactorRequired,omitempty"`
	TwoFactorToken    string `json:"twoFactorToken,omitempty"`
	Message           string `json:"message,omitempty"`
}

// CodeLength is the number of digits in an authenticator code
const CodeLength = 6

// TwoFactorChallenge is the in-memory state of a login waiting for its second factor.
// It is never persisted.
type TwoFactorChallenge struct {
	Required       bool
	ChallengeToken string
	Code           string
}

// NewChallenge returns the challenge carried by resp, or nil when resp does not ask for one.
func NewChallenge(resp *AuthResponse) *TwoFactorChallenge {
	if resp == nil || !resp.TwoFactorRequired {
		return nil
	}
	return &TwoFactorChallenge{Required: true, ChallengeToken: resp.TwoFactorToken}
}

// SetCode stores input keeping only digits, at most CodeLength of them.
func (c *TwoFactorChallenge) SetCode(input string) {
	c.Code = utils.Digits(input, CodeLength)
}

// Ready reports whether a full code has been entered.
func (c *TwoFactorChallenge) Ready() bool {
	return c != nil && c.Required && len(c.Code) == CodeLength
}

// Cancel drops the challenge.
func (c *TwoFactorChallenge) Cancel() {
	*c = TwoFactorChallenge{}
}
