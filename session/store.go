// Package session owns the signed-in user and the persisted bearer token. It is the only
// component that writes or deletes the token.
package session

import (
	"context"
	"net/url"
	"sync"

	"github.com/jrsteele09/go-storefront/gateway"
	interrors "github.com/jrsteele09/go-storefront/internal/errors"
	"github.com/jrsteele09/go-storefront/token"
	"github.com/jrsteele09/go-storefront/tokenstore"
	"github.com/jrsteele09/go-storefront/users"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

const (
	pathLogin    = "/auth/login"
	pathRegister = "/auth/register"
	pathVerify   = "/auth/2fa/verify"
	pathMe       = "/auth/me"
)

type State string

const (
	StateHydrating     State = "hydrating"
	StateAnonymous     State = "anonymous"
	StateAuthenticated State = "authenticated"
)

// API is the part of the gateway the session store needs.
type API interface {
	Get(ctx context.Context, path string, query url.Values, out any) error
	Post(ctx context.Context, path string, body, out any, options ...gateway.RequestOption) error
	OnUnauthorized(h gateway.UnauthorizedHandler)
}

var _ API = (*gateway.Client)(nil)

// Snapshot is a copy of the session state at one point in time.
type Snapshot struct {
	User    *users.Profile
	Loading bool
	State   State
}

// SignedIn reports whether the snapshot holds a user
func (s Snapshot) SignedIn() bool {
	return s.User != nil
}

// Store holds the current user. Network calls are made without the lock held; results are
// applied in the order they arrive.
type Store struct {
	api    API
	tokens tokenstore.Store

	mu        sync.Mutex
	user      *users.Profile
	hydrating bool
	inFlight  int
	listeners map[int]func(Snapshot)
	nextSub   int
}

// New creates the store and registers it for the gateway's unauthorized responses. The
// store starts out hydrating until Start completes.
func New(api API, tokens tokenstore.Store) (*Store, error) {
	if api == nil {
		return nil, errors.New("[session.New] api is required")
	}
	if tokens == nil {
		return nil, errors.New("[session.New] token store is required")
	}

	s := &Store{
		api:       api,
		tokens:    tokens,
		hydrating: true,
		listeners: make(map[int]func(Snapshot)),
	}
	api.OnUnauthorized(s.HandleUnauthorized)
	return s, nil
}

// Start hydrates the session from the persisted token. With no token the store becomes
// anonymous without any network call. A token the server rejects is deleted. The returned
// error is informational; the store is always settled afterwards.
func (s *Store) Start(ctx context.Context) error {
	s.update(func() { s.hydrating = true })
	err := s.hydrate(ctx)
	s.update(func() { s.hydrating = false })
	return err
}

// Refresh re-reads the profile for the held token, e.g. after two-factor settings change.
func (s *Store) Refresh(ctx context.Context) error {
	return s.hydrate(ctx)
}

// Login submits credentials. When the server asks for a second factor the response is
// returned as is, nothing is persisted and the user is untouched. Server and transport
// errors are returned unchanged.
func (s *Store) Login(ctx context.Context, creds users.Credentials) (*AuthResponse, error) {
	s.begin()
	defer s.end()

	resp := &AuthResponse{}
	if err := s.api.Post(ctx, pathLogin, creds, resp); err != nil {
		return nil, err
	}
	if resp.TwoFactorRequired {
		return resp, nil
	}
	if err := s.signIn(ctx, resp); err != nil {
		return nil, err
	}
	return resp, nil
}

// Verify2FA completes a login that was challenged for a second factor. The challenge token
// travels in a header, the code in the body.
func (s *Store) Verify2FA(ctx context.Context, challengeToken, code string) (*AuthResponse, error) {
	if challengeToken == "" {
		return nil, interrors.ErrChallengeMissing
	}

	s.begin()
	defer s.end()

	resp := &AuthResponse{}
	body := map[string]string{"code": code}
	if err := s.api.Post(ctx, pathVerify, body, resp, gateway.WithHeader(gateway.HeaderTwoFactorToken, challengeToken)); err != nil {
		return nil, err
	}
	if err := s.signIn(ctx, resp); err != nil {
		return nil, err
	}
	return resp, nil
}

// Register creates an account and signs it in. The request is checked locally first with
// the same rules as the registration form.
func (s *Store) Register(ctx context.Context, req users.RegisterRequest) (*AuthResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	s.begin()
	defer s.end()

	resp := &AuthResponse{}
	if err := s.api.Post(ctx, pathRegister, req, resp); err != nil {
		return nil, err
	}
	if err := s.signIn(ctx, resp); err != nil {
		return nil, err
	}
	return resp, nil
}

// Logout deletes the persisted token and clears the user. No request is sent. The user is
// cleared even when deleting the token fails.
func (s *Store) Logout(ctx context.Context) error {
	err := s.tokens.Delete(ctx)
	s.update(func() { s.user = nil })
	if err != nil {
		return errors.Wrap(err, "[Store.Logout] delete token")
	}
	log.Info().Msg("signed out")
	return nil
}

// HandleUnauthorized is run by the gateway for every 401: the token is no longer good.
func (s *Store) HandleUnauthorized(ctx context.Context) {
	if err := s.tokens.Delete(ctx); err != nil {
		log.Err(err).Msg("deleting rejected token failed")
	}
	s.update(func() { s.user = nil })
}

// Claims reads the unverified claims of the held token, for display only.
func (s *Store) Claims(ctx context.Context) (*token.Introspection, error) {
	raw, err := s.tokens.Get(ctx)
	if err != nil {
		return nil, err
	}
	return token.Introspect(raw)
}

func (s *Store) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshot()
}

func (s *Store) State() State {
	return s.Snapshot().State
}

// User returns a copy of the signed-in user, nil when anonymous.
func (s *Store) User() *users.Profile {
	return s.Snapshot().User
}

// Subscribe registers fn to receive a snapshot after every state change. fn is called
// without the store lock held. The returned func unregisters it.
func (s *Store) Subscribe(fn func(Snapshot)) func() {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.nextSub
	s.nextSub++
	s.listeners[id] = fn
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.listeners, id)
	}
}

// signIn persists the token from resp and re-reads the profile. A profile lookup failure
// after a successful sign in is logged, not returned; the session is left anonymous.
func (s *Store) signIn(ctx context.Context, resp *AuthResponse) error {
	if resp.AccessToken == "" {
		return interrors.ErrMissingToken
	}
	if err := s.tokens.Set(ctx, resp.AccessToken); err != nil {
		return errors.Wrap(err, "[Store.signIn] persist token")
	}
	if err := s.hydrate(ctx); err != nil {
		log.Warn().Err(err).Msg("loading profile after sign in failed")
	}
	return nil
}

func (s *Store) hydrate(ctx context.Context) error {
	raw, err := s.tokens.Get(ctx)
	if err != nil {
		s.update(func() { s.user = nil })
		if errors.Is(err, interrors.ErrNoToken) {
			return nil
		}
		return errors.Wrap(err, "[Store.hydrate] read token")
	}
	if raw == "" {
		s.update(func() { s.user = nil })
		return nil
	}

	profile := &users.Profile{}
	if err := s.api.Get(ctx, pathMe, nil, profile); err != nil {
		if delErr := s.tokens.Delete(ctx); delErr != nil {
			log.Err(delErr).Msg("deleting stale token failed")
		}
		s.update(func() { s.user = nil })
		return errors.Wrap(err, "[Store.hydrate] fetch profile")
	}

	s.update(func() { s.user = profile })
	log.Debug().Str("username", profile.Username).Msg("session hydrated")
	return nil
}

func (s *Store) begin() {
	s.update(func() { s.inFlight++ })
}

func (s *Store) end() {
	s.update(func() { s.inFlight-- })
}

// update applies fn under the lock, then publishes the resulting snapshot.
func (s *Store) update(fn func()) {
	s.mu.Lock()
	fn()
	snap := s.snapshot()
	listeners := make([]func(Snapshot), 0, len(s.listeners))
	for i := 0; i < s.nextSub; i++ {
		if l, ok := s.listeners[i]; ok {
			listeners = append(listeners, l)
		}
	}
	s.mu.Unlock()

	for _, l := range listeners {
		l(snap)
	}
}

func (s *Store) snapshot() Snapshot {
	snap := Snapshot{Loading: s.hydrating || s.inFlight > 0}
	switch {
	case s.user != nil:
		u := *s.user
		snap.User = &u
		snap.State = StateAuthenticated
	case s.hydrating:
		snap.State = StateHydrating
	default:
		snap.State = StateAnonymous
	}
	return snap
}
