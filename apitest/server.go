// Package apitest is an in-memory storefront API. It implements every endpoint the client
// consumes with the same status codes and error bodies as the real service, and is used by
// tests across the module and by cmd/mockapi for local development.
package apitest

import (
	"crypto/rand"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jrsteele09/go-storefront/cart"
	"github.com/jrsteele09/go-storefront/catalog"
	"github.com/jrsteele09/go-storefront/users"
	"github.com/pkg/errors"
	"golang.org/x/crypto/bcrypt"
)

const (
	accessTokenTTL    = time.Hour
	twoFactorTokenTTL = 5 * time.Minute
	createdAtLayout   = "2006-01-02T15:04:05"
)

// account is a registered user as the server stores it
type account struct {
	profile      users.Profile
	passwordHash string
	totpSecret   string // set by 2FA setup, kept until disabled
}

// RecordedRequest is one request the server handled
type RecordedRequest struct {
	Method        string
	Path          string
	Status        int
	Authorization string
}

type fault struct {
	status  int
	message string
}

// Server is the fake API. It is safe for concurrent use.
type Server struct {
	router     chi.Router
	secret     []byte
	bcryptCost int
	nowTime    func() time.Time // nowTime function (injectable for testing)

	mu         sync.Mutex
	accounts   map[string]*account // keyed by username
	nextUserID int64
	products   []catalog.Product
	favorites  map[int64]map[int64]time.Time // userID -> productID -> added
	carts      map[int64][]cart.Item         // userID -> lines, oldest first
	nextItemID int64
	faults     map[string]fault // "METHOD /api/path" -> one-shot failure
	requests   []RecordedRequest
}

// Option defines a function type to modify the Server instance.
type Option func(*Server)

// WithNowTime sets the now time function (primarily for testing)
func WithNowTime(nowFunc func() time.Time) Option {
	return func(s *Server) {
		s.nowTime = nowFunc
	}
}

// WithSigningKey fixes the HS256 key used for issued tokens
func WithSigningKey(key []byte) Option {
	return func(s *Server) {
		s.secret = key
	}
}

// WithBcryptCost sets the password hashing cost. Tests use bcrypt.MinCost.
func WithBcryptCost(cost int) Option {
	return func(s *Server) {
		s.bcryptCost = cost
	}
}

// WithProducts replaces the seeded catalog
func WithProducts(products []catalog.Product) Option {
	return func(s *Server) {
		s.products = products
	}
}

func New(options ...Option) (*Server, error) {
	s := &Server{
		bcryptCost: bcrypt.DefaultCost,
		nowTime:    time.Now,
		accounts:   make(map[string]*account),
		products:   SeedProducts(),
		favorites:  make(map[int64]map[int64]time.Time),
		carts:      make(map[int64][]cart.Item),
		faults:     make(map[string]fault),
	}

	for _, opt := range options {
		opt(s)
	}

	if len(s.secret) == 0 {
		s.secret = make([]byte, 32)
		if _, err := rand.Read(s.secret); err != nil {
			return nil, errors.Wrap(err, "[apitest.New] generate signing key")
		}
	}

	s.initRoutes()
	return s, nil
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// NewTestServer starts s on a local port for the duration of t and returns it with the API
// base URL (".../api").
func NewTestServer(t testing.TB, options ...Option) (*Server, string) {
	t.Helper()

	options = append([]Option{WithBcryptCost(bcrypt.MinCost)}, options...)
	s, err := New(options...)
	if err != nil {
		t.Fatalf("apitest: %v", err)
	}
	hs := httptest.NewServer(s)
	t.Cleanup(hs.Close)
	return s, hs.URL + APIRoot
}

// AddUser registers an account directly, bypassing validation. It returns the new profile.
func (s *Server) AddUser(req users.RegisterRequest) (users.Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	acc, err := s.createAccount(req)
	if err != nil {
		return users.Profile{}, err
	}
	return acc.profile, nil
}

// EnableTwoFactor turns on 2FA for username and returns its TOTP secret.
func (s *Server) EnableTwoFactor(username string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	acc, ok := s.accounts[username]
	if !ok {
		return "", errors.Errorf("[Server.EnableTwoFactor] unknown user %q", username)
	}
	secret, err := NewTOTPSecret()
	if err != nil {
		return "", err
	}
	acc.totpSecret = secret
	acc.profile.TwoFactorEnabled = true
	return secret, nil
}

// AccessToken issues a valid bearer token for username, as a successful login would.
func (s *Server) AccessToken(username string) (string, error) {
	s.mu.Lock()
	acc, ok := s.accounts[username]
	s.mu.Unlock()
	if !ok {
		return "", errors.Errorf("[Server.AccessToken] unknown user %q", username)
	}
	return s.issueAccessToken(acc.profile)
}

// CurrentCode returns the TOTP code the server accepts right now for secret.
func (s *Server) CurrentCode(secret string) string {
	code, _ := TOTPCode(secret, s.nowTime())
	return code
}

// FailNext makes the next request for method and path (e.g. "PATCH", "/api/cart/items/7")
// fail with status and message before reaching its handler.
func (s *Server) FailNext(method, path string, status int, message string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.faults[method+" "+path] = fault{status: status, message: message}
}

// Requests returns every request handled so far, oldest first.
func (s *Server) Requests() []RecordedRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]RecordedRequest(nil), s.requests...)
}

// RequestCount counts handled requests for method and path.
func (s *Server) RequestCount(method, path string) int {
	n := 0
	for _, r := range s.Requests() {
		if r.Method == method && r.Path == path {
			n++
		}
	}
	return n
}

func (s *Server) record(r *http.Request, status int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requests = append(s.requests, RecordedRequest{
		Method:        r.Method,
		Path:          r.URL.Path,
		Status:        status,
		Authorization: r.Header.Get("Authorization"),
	})
}

func (s *Server) faultMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := r.Method + " " + r.URL.Path
		s.mu.Lock()
		f, ok := s.faults[key]
		delete(s.faults, key)
		s.mu.Unlock()

		if ok {
			writeError(w, f.status, f.message, nil)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// createAccount must be called with s.mu held
func (s *Server) createAccount(req users.RegisterRequest) (*account, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), s.bcryptCost)
	if err != nil {
		return nil, errors.Wrap(err, "[Server.createAccount] hash password")
	}

	s.nextUserID++
	acc := &account{
		profile: users.Profile{
			ID:        s.nextUserID,
			Username:  req.Username,
			Email:     req.Email,
			FirstName: req.FirstName,
			LastName:  req.LastName,
			CreatedAt: s.nowTime().Format(createdAtLayout),
		},
		passwordHash: string(hash),
	}
	s.accounts[req.Username] = acc
	return acc, nil
}
