// Package profile manages two-factor enrollment for the signed-in user.
package profile

import (
	"context"
	"sync"

	"github.com/jrsteele09/go-storefront/gateway"
	"github.com/jrsteele09/go-storefront/internal/utils"
	"github.com/jrsteele09/go-storefront/notify"
	"github.com/jrsteele09/go-storefront/session"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

const (
	pathSetup   = "/auth/2fa/setup"
	pathConfirm = "/auth/2fa/confirm"
	pathDisable = "/auth/2fa"
)

// Enrollment is a started but unconfirmed 2FA setup
type Enrollment struct {
	Secret    string `json:"secret"`    // base32 secret for manual entry
	QRCodeURI string `json:"qrCodeUri"` // otpauth:// URI for authenticator apps
	Message   string `json:"message"`   // Instructions from the server
}

// API is the part of the gateway profile needs.
type API interface {
	Post(ctx context.Context, path string, body, out any, options ...gateway.RequestOption) error
	Delete(ctx context.Context, path string, out any) error
}

var _ API = (*gateway.Client)(nil)

type Notifier interface {
	Success(message string) notify.Notification
	Error(message string) notify.Notification
}

var _ Notifier = (*notify.Bus)(nil)

// Sessions re-reads the profile once the 2FA flag has changed server side.
type Sessions interface {
	Refresh(ctx context.Context) error
}

var _ Sessions = (*session.Store)(nil)

// Snapshot is a copy of the enrollment state
type Snapshot struct {
	Pending *Enrollment
	Loading bool
}

type Profile struct {
	api      API
	notifier Notifier
	sessions Sessions

	mu        sync.Mutex
	pending   *Enrollment
	loading   int
	listeners map[int]func(Snapshot)
	nextSub   int
}

func New(api API, notifier Notifier, sessions Sessions) (*Profile, error) {
	if api == nil {
		return nil, errors.New("[profile.New] api is required")
	}
	if notifier == nil {
		return nil, errors.New("[profile.New] notifier is required")
	}
	if sessions == nil {
		return nil, errors.New("[profile.New] sessions is required")
	}
	return &Profile{
		api:       api,
		notifier:  notifier,
		sessions:  sessions,
		listeners: make(map[int]func(Snapshot)),
	}, nil
}

// SetupTwoFactor starts enrollment and holds the returned secret until it is confirmed or
// cancelled. It returns nil on failure.
func (p *Profile) SetupTwoFactor(ctx context.Context) *Enrollment {
	p.update(func() { p.loading++ })
	defer p.update(func() { p.loading-- })

	e := &Enrollment{}
	if err := p.api.Post(ctx, pathSetup, nil, e); err != nil {
		p.fail(err, "Failed to setup 2FA")
		return nil
	}
	p.update(func() { p.pending = e })

	cp := *e
	return &cp
}

// ConfirmTwoFactor proves possession of the secret with a code from the authenticator app.
// The server answers with a fresh token which is not used; the held token stays valid.
func (p *Profile) ConfirmTwoFactor(ctx context.Context, code string) bool {
	p.update(func() { p.loading++ })
	defer p.update(func() { p.loading-- })

	body := map[string]string{"code": utils.Digits(code, session.CodeLength)}
	if err := p.api.Post(ctx, pathConfirm, body, nil); err != nil {
		p.fail(err, "Invalid code")
		return false
	}

	p.notifier.Success("Two-factor authentication enabled!")
	p.update(func() { p.pending = nil })
	p.refresh(ctx)
	return true
}

func (p *Profile) DisableTwoFactor(ctx context.Context) bool {
	p.update(func() { p.loading++ })
	defer p.update(func() { p.loading-- })

	if err := p.api.Delete(ctx, pathDisable, nil); err != nil {
		p.fail(err, "Failed to disable 2FA")
		return false
	}

	p.notifier.Success("Two-factor authentication disabled")
	p.refresh(ctx)
	return true
}

// CancelSetup drops the pending enrollment. The secret generated by the server is left
// unconfirmed and a new setup replaces it.
func (p *Profile) CancelSetup() {
	p.update(func() { p.pending = nil })
}

// Pending returns a copy of the enrollment awaiting confirmation, nil when none.
func (p *Profile) Pending() *Enrollment {
	return p.Snapshot().Pending
}

func (p *Profile) Snapshot() Snapshot {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.snapshot()
}

// Subscribe registers fn to receive a snapshot after every state change. The returned func
// unregisters it.
func (p *Profile) Subscribe(fn func(Snapshot)) func() {
	p.mu.Lock()
	defer p.mu.Unlock()

	id := p.nextSub
	p.nextSub++
	p.listeners[id] = fn
	return func() {
		p.mu.Lock()
		defer p.mu.Unlock()
		delete(p.listeners, id)
	}
}

func (p *Profile) refresh(ctx context.Context) {
	if err := p.sessions.Refresh(ctx); err != nil {
		log.Warn().Err(err).Msg("refreshing profile after 2FA change failed")
	}
}

func (p *Profile) fail(err error, fallback string) {
	log.Debug().Err(err).Msg(fallback)
	p.notifier.Error(gateway.UserMessage(err, fallback))
}

func (p *Profile) update(fn func()) {
	p.mu.Lock()
	fn()
	snap := p.snapshot()
	listeners := make([]func(Snapshot), 0, len(p.listeners))
	for i := 0; i < p.nextSub; i++ {
		if l, ok := p.listeners[i]; ok {
			listeners = append(listeners, l)
		}
	}
	p.mu.Unlock()

	for _, l := range listeners {
		l(snap)
	}
}

func (p *Profile) snapshot() Snapshot {
	snap := Snapshot{Loading: p.loading > 0}
	if p.pending != nil {
		e := *p.pending
		snap.Pending = &e
	}
	return snap
}
