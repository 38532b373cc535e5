package apitest

import (
	"fmt"
	"net/http"
	"net/mail"
	"strings"

	"github.com/jrsteele09/go-storefront/gateway"
	"github.com/jrsteele09/go-storefront/session"
	"github.com/jrsteele09/go-storefront/users"
	"golang.org/x/crypto/bcrypt"
)

type codeRequest struct {
	Code string `json:"code"`
}

// twoFactorSetup is the body of a successful POST /auth/2fa/setup
type twoFactorSetup struct {
	Secret    string `json:"secret"`
	QRCodeURI string `json:"qrCodeUri"`
	Message   string `json:"message"`
}

func validateRegistration(req users.RegisterRequest) map[string]string {
	fieldErrors := map[string]string{}
	switch {
	case strings.TrimSpace(req.Username) == "":
		fieldErrors["username"] = "Username is required"
	case len(req.Username) < users.MinUsernameLength || len(req.Username) > 50:
		fieldErrors["username"] = "Username must be between 3 and 50 characters"
	}
	if strings.TrimSpace(req.Email) == "" {
		fieldErrors["email"] = "Email is required"
	} else if _, err := mail.ParseAddress(req.Email); err != nil {
		fieldErrors["email"] = "Email must be valid"
	}
	if len(req.Password) < users.MinPasswordLength {
		fieldErrors["password"] = fmt.Sprintf("Password must be at least %d characters", users.MinPasswordLength)
	}
	if strings.TrimSpace(req.FirstName) == "" {
		fieldErrors["firstName"] = "First name is required"
	}
	if strings.TrimSpace(req.LastName) == "" {
		fieldErrors["lastName"] = "Last name is required"
	}
	return fieldErrors
}

func (s *Server) registerHandler(w http.ResponseWriter, r *http.Request) {
	var req users.RegisterRequest
	if !decodeBody(r, &req) {
		writeError(w, http.StatusBadRequest, "Malformed request body", nil)
		return
	}
	if fieldErrors := validateRegistration(req); len(fieldErrors) > 0 {
		validationError(w, fieldErrors)
		return
	}

	s.mu.Lock()
	if _, taken := s.accounts[req.Username]; taken {
		s.mu.Unlock()
		writeError(w, http.StatusConflict, "Username already exists: "+req.Username, nil)
		return
	}
	for _, acc := range s.accounts {
		if strings.EqualFold(acc.profile.Email, req.Email) {
			s.mu.Unlock()
			writeError(w, http.StatusConflict, "Email already exists: "+req.Email, nil)
			return
		}
	}
	acc, err := s.createAccount(req)
	s.mu.Unlock()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "An unexpected error occurred", nil)
		return
	}

	s.writeAccessToken(w, http.StatusCreated, acc.profile, "Registration successful")
}

func (s *Server) loginHandler(w http.ResponseWriter, r *http.Request) {
	var req users.Credentials
	if !decodeBody(r, &req) {
		writeError(w, http.StatusBadRequest, "Malformed request body", nil)
		return
	}
	fieldErrors := map[string]string{}
	if strings.TrimSpace(req.Username) == "" {
		fieldErrors["username"] = "Username is required"
	}
	if req.Password == "" {
		fieldErrors["password"] = "Password is required"
	}
	if len(fieldErrors) > 0 {
		validationError(w, fieldErrors)
		return
	}

	s.mu.Lock()
	acc, ok := s.accounts[req.Username]
	var profile users.Profile
	var hash, secret string
	if ok {
		profile, hash, secret = acc.profile, acc.passwordHash, acc.totpSecret
	}
	s.mu.Unlock()

	if !ok || bcrypt.CompareHashAndPassword([]byte(hash), []byte(req.Password)) != nil {
		writeError(w, http.StatusUnauthorized, msgInvalidCredentials, nil)
		return
	}

	if profile.TwoFactorEnabled {
		if strings.TrimSpace(req.TotpCode) == "" {
			challenge, err := s.issueTwoFactorToken(profile.Username)
			if err != nil {
				writeError(w, http.StatusInternalServerError, "An unexpected error occurred", nil)
				return
			}
			writeJSON(w, http.StatusOK, session.AuthResponse{
				TwoFactorRequired: true,
				TwoFactorToken:    challenge,
				Message:           "Two-factor authentication code required",
			})
			return
		}
		if !verifyTOTP(secret, req.TotpCode, s.nowTime()) {
			writeError(w, http.StatusUnauthorized, "Invalid two-factor authentication code", nil)
			return
		}
	}

	s.writeAccessToken(w, http.StatusOK, profile, "Login successful")
}

func (s *Server) verifyTwoFactorHandler(w http.ResponseWriter, r *http.Request) {
	raw := r.Header.Get(gateway.HeaderTwoFactorToken)
	if raw == "" {
		writeError(w, http.StatusBadRequest, "Required header '"+gateway.HeaderTwoFactorToken+"' is not present", nil)
		return
	}
	var req codeRequest
	if !decodeBody(r, &req) || strings.TrimSpace(req.Code) == "" {
		validationError(w, map[string]string{"code": "TOTP code is required"})
		return
	}

	claims, err := s.parseToken(raw)
	if err != nil || claims.Purpose != purposeTwoFactor {
		writeError(w, http.StatusUnauthorized, "Invalid or expired two-factor token", nil)
		return
	}

	s.mu.Lock()
	acc, ok := s.accounts[claims.Subject]
	var profile users.Profile
	var secret string
	if ok {
		profile, secret = acc.profile, acc.totpSecret
	}
	s.mu.Unlock()

	if !ok {
		writeError(w, http.StatusNotFound, "User not found", nil)
		return
	}
	if !verifyTOTP(secret, req.Code, s.nowTime()) {
		writeError(w, http.StatusUnauthorized, "Invalid two-factor authentication code", nil)
		return
	}

	s.writeAccessToken(w, http.StatusOK, profile, "Two-factor authentication successful")
}

func (s *Server) meHandler(w http.ResponseWriter, r *http.Request) {
	acc, ok := s.account(r)
	if !ok {
		writeError(w, http.StatusNotFound, "User not found: "+usernameFrom(r.Context()), nil)
		return
	}
	writeJSON(w, http.StatusOK, acc.profile)
}

func (s *Server) setupTwoFactorHandler(w http.ResponseWriter, r *http.Request) {
	secret, err := NewTOTPSecret()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "An unexpected error occurred", nil)
		return
	}

	username := usernameFrom(r.Context())
	s.mu.Lock()
	acc, ok := s.accounts[username]
	if ok {
		acc.totpSecret = secret
	}
	s.mu.Unlock()
	if !ok {
		writeError(w, http.StatusNotFound, "User not found", nil)
		return
	}

	writeJSON(w, http.StatusOK, twoFactorSetup{
		Secret:    secret,
		QRCodeURI: ProvisioningURI(secret, username),
		Message:   "Scan the QR code or enter the secret manually in your authenticator app. Then verify with a code to enable 2FA.",
	})
}

func (s *Server) confirmTwoFactorHandler(w http.ResponseWriter, r *http.Request) {
	var req codeRequest
	if !decodeBody(r, &req) || strings.TrimSpace(req.Code) == "" {
		validationError(w, map[string]string{"code": "TOTP code is required"})
		return
	}

	s.mu.Lock()
	acc, ok := s.accounts[usernameFrom(r.Context())]
	var secret string
	if ok {
		secret = acc.totpSecret
	}
	s.mu.Unlock()

	switch {
	case !ok:
		writeError(w, http.StatusNotFound, "User not found", nil)
		return
	case secret == "":
		writeError(w, http.StatusBadRequest, "Two-factor setup not initiated. Call setup endpoint first.", nil)
		return
	case !verifyTOTP(secret, req.Code, s.nowTime()):
		writeError(w, http.StatusUnauthorized, "Invalid code. Please try again.", nil)
		return
	}

	s.mu.Lock()
	acc.profile.TwoFactorEnabled = true
	profile := acc.profile
	s.mu.Unlock()

	s.writeAccessToken(w, http.StatusOK, profile, "Two-factor authentication enabled successfully")
}

func (s *Server) disableTwoFactorHandler(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	acc, ok := s.accounts[usernameFrom(r.Context())]
	if ok {
		acc.profile.TwoFactorEnabled = false
		acc.totpSecret = ""
	}
	s.mu.Unlock()

	if !ok {
		writeError(w, http.StatusNotFound, "User not found", nil)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) writeAccessToken(w http.ResponseWriter, status int, profile users.Profile, message string) {
	signed, err := s.issueAccessToken(profile)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "An unexpected error occurred", nil)
		return
	}
	writeJSON(w, status, session.AuthResponse{
		AccessToken: signed,
		TokenType:   "Bearer",
		Message:     message,
	})
}

// account returns a copy of the caller's account
func (s *Server) account(r *http.Request) (account, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	acc, ok := s.accounts[usernameFrom(r.Context())]
	if !ok {
		return account{}, false
	}
	return *acc, true
}
