// Package app wires the storefront components together and owns their lifetime. Nothing is
// shared through package-level state; everything hangs off one App.
package app

import (
	"context"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/jrsteele09/go-storefront/cart"
	"github.com/jrsteele09/go-storefront/catalog"
	"github.com/jrsteele09/go-storefront/gateway"
	"github.com/jrsteele09/go-storefront/internal/config"
	"github.com/jrsteele09/go-storefront/navigation"
	"github.com/jrsteele09/go-storefront/notify"
	"github.com/jrsteele09/go-storefront/profile"
	"github.com/jrsteele09/go-storefront/session"
	"github.com/jrsteele09/go-storefront/tokenstore"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

type App struct {
	Router        *navigation.Router
	Gateway       *gateway.Client
	Notifications *notify.Bus
	Session       *session.Store
	Cart          *cart.Store
	Catalog       *catalog.Catalog
	Profile       *profile.Profile

	cfg    config.Config
	tokens tokenstore.Store

	// ctx lives from New to Close and backs the fetches triggered by session changes
	ctx    context.Context
	cancel context.CancelFunc

	mu        sync.Mutex
	stopWatch func()
	closed    bool
}

type options struct {
	tokens        tokenstore.Store
	httpClient    *http.Client
	notifyOptions []notify.Option
	initialView   string
}

// Option defines a function type to modify how the App is built.
type Option func(*options)

// WithTokenStore replaces the token store the config would select
func WithTokenStore(store tokenstore.Store) Option {
	return func(o *options) {
		o.tokens = store
	}
}

// WithHTTPClient replaces the http.Client used by the gateway
func WithHTTPClient(hc *http.Client) Option {
	return func(o *options) {
		o.httpClient = hc
	}
}

// WithNotifyOptions passes options through to the notification bus (primarily for testing)
func WithNotifyOptions(opts ...notify.Option) Option {
	return func(o *options) {
		o.notifyOptions = append(o.notifyOptions, opts...)
	}
}

// WithInitialView sets the view shown at start, "/" by default.
func WithInitialView(view string) Option {
	return func(o *options) {
		o.initialView = view
	}
}

// New builds every component from cfg. The token store is opened here; Close releases it.
func New(ctx context.Context, cfg config.Config, opts ...Option) (*App, error) {
	if cfg == nil {
		return nil, errors.New("[app.New] config is required")
	}

	o := &options{initialView: navigation.ViewProducts}
	for _, opt := range opts {
		opt(o)
	}

	clientOptions, err := gatewayOptions(cfg, o)
	if err != nil {
		return nil, err
	}

	tokens := o.tokens
	if tokens == nil {
		if tokens, err = NewTokenStore(ctx, cfg); err != nil {
			return nil, err
		}
	}

	a := &App{cfg: cfg, tokens: tokens}
	a.ctx, a.cancel = context.WithCancel(context.Background())

	if err := a.build(cfg, o, clientOptions); err != nil {
		a.cancel()
		closeStore(tokens)
		return nil, err
	}
	return a, nil
}

func (a *App) build(cfg config.Config, o *options, clientOptions []gateway.ClientOption) error {
	var err error

	a.Router = navigation.NewRouter(o.initialView)
	if a.Gateway, err = gateway.New(cfg.GetAPIBaseURL(), a.tokens, a.Router, clientOptions...); err != nil {
		return errors.Wrap(err, "[app.New]")
	}

	notifyOptions := append([]notify.Option{notify.WithTTL(cfg.GetNotificationTTL())}, o.notifyOptions...)
	a.Notifications = notify.New(notifyOptions...)

	if a.Session, err = session.New(a.Gateway, a.tokens); err != nil {
		return errors.Wrap(err, "[app.New]")
	}
	if a.Cart, err = cart.New(a.Gateway, a.Notifications, a.Session); err != nil {
		return errors.Wrap(err, "[app.New]")
	}
	if a.Catalog, err = catalog.New(a.Gateway, a.Notifications); err != nil {
		return errors.Wrap(err, "[app.New]")
	}
	if a.Profile, err = profile.New(a.Gateway, a.Notifications, a.Session); err != nil {
		return errors.Wrap(err, "[app.New]")
	}
	return nil
}

// Start hydrates the session and starts keeping the cart in step with it. A failed
// hydration is logged and returned, but the app is usable (anonymous) either way.
func (a *App) Start(ctx context.Context) error {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return errors.New("[App.Start] app is closed")
	}
	a.mu.Unlock()

	err := a.Session.Start(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("restoring session failed, continuing signed out")
	}

	stop := a.Cart.Watch(a.ctx)

	a.mu.Lock()
	if a.stopWatch != nil {
		a.stopWatch()
	}
	a.stopWatch = stop
	a.mu.Unlock()

	if err != nil {
		return errors.Wrap(err, "[App.Start]")
	}
	return nil
}

// Close stops the cart watch, cancels pending notification timers and releases the token
// store. It is safe to call more than once.
func (a *App) Close() error {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return nil
	}
	a.closed = true
	stop := a.stopWatch
	a.stopWatch = nil
	a.mu.Unlock()

	if stop != nil {
		stop()
	}
	a.cancel()
	a.Notifications.Close()
	return closeStore(a.tokens)
}

// NewTokenStore opens the token store selected by cfg.
func NewTokenStore(ctx context.Context, cfg config.Config) (tokenstore.Store, error) {
	switch cfg.GetTokenBackend() {
	case config.TokenBackendRedis:
		store, err := tokenstore.NewRedisStore(ctx, cfg.GetRedisURL(), cfg.GetRedisKeyPrefix()+cfg.GetTokenKey())
		if err != nil {
			return nil, errors.Wrap(err, "[app.NewTokenStore]")
		}
		return store, nil
	default:
		store, err := tokenstore.NewFileStore(cfg.GetTokenFile(cfg.GetDataFolder()))
		if err != nil {
			return nil, errors.Wrap(err, "[app.NewTokenStore]")
		}
		return store, nil
	}
}

func gatewayOptions(cfg config.Config, o *options) ([]gateway.ClientOption, error) {
	var opts []gateway.ClientOption
	if o.httpClient != nil {
		opts = append(opts, gateway.WithHTTPClient(o.httpClient))
	}
	if raw := strings.TrimSpace(cfg.GetRequestTimeout()); raw != "" {
		d, err := time.ParseDuration(raw)
		if err != nil {
			return nil, errors.Wrapf(err, "[app.New] invalid request timeout %q", raw)
		}
		opts = append(opts, gateway.WithTimeout(d))
	}
	return opts, nil
}

func closeStore(store tokenstore.Store) error {
	if c, ok := store.(io.Closer); ok {
		if err := c.Close(); err != nil {
			return errors.Wrap(err, "[app] close token store")
		}
	}
	return nil
}
