package apitest

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha1"
	"encoding/base32"
	"encoding/binary"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/pkg/errors"
)

const (
	totpStep   = 30 * time.Second
	totpDigits = 6
	totpIssuer = "Storefront"
	secretSize = 20
)

var secretEncoding = base32.StdEncoding.WithPadding(base32.NoPadding)

// NewTOTPSecret returns a random base32 secret for an authenticator app.
func NewTOTPSecret() (string, error) {
	b := make([]byte, secretSize)
	if _, err := rand.Read(b); err != nil {
		return "", errors.Wrap(err, "[NewTOTPSecret]")
	}
	return secretEncoding.EncodeToString(b), nil
}

// ProvisioningURI is the otpauth:// URI an authenticator app scans.
func ProvisioningURI(secret, username string) string {
	issuer := url.PathEscape(totpIssuer)
	return fmt.Sprintf("otpauth://totp/%s:%s?secret=%s&issuer=%s&algorithm=SHA1&digits=%d&period=%d",
		issuer, url.PathEscape(username), secret, issuer, totpDigits, int(totpStep.Seconds()))
}

// TOTPCode is the six digit code for secret at time t (RFC 6238, HMAC-SHA1, 30s step).
func TOTPCode(secret string, t time.Time) (string, error) {
	return totpAt(secret, t.Unix()/int64(totpStep.Seconds()))
}

// verifyTOTP accepts the code for the current step or one step either side.
func verifyTOTP(secret, code string, now time.Time) bool {
	if len(code) != totpDigits || secret == "" {
		return false
	}
	step := now.Unix() / int64(totpStep.Seconds())
	for i := int64(-1); i <= 1; i++ {
		want, err := totpAt(secret, step+i)
		if err == nil && hmac.Equal([]byte(want), []byte(code)) {
			return true
		}
	}
	return false
}

func totpAt(secret string, step int64) (string, error) {
	key, err := secretEncoding.DecodeString(strings.ToUpper(strings.TrimSpace(secret)))
	if err != nil {
		return "", errors.Wrap(err, "[totp] decode secret")
	}

	var msg [8]byte
	binary.BigEndian.PutUint64(msg[:], uint64(step))
	mac := hmac.New(sha1.New, key)
	mac.Write(msg[:])
	sum := mac.Sum(nil)

	offset := sum[len(sum)-1] & 0x0f
	value := binary.BigEndian.Uint32(sum[offset:offset+4]) & 0x7fffffff
	return fmt.Sprintf("%0*d", totpDigits, value%1000000), nil
}
