// Package cart mirrors the signed-in user's server cart. Every mutation waits for the server
// and replaces the whole snapshot with its answer; nothing is computed locally.
package cart

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"sync"

	"github.com/jrsteele09/go-storefront/gateway"
	"github.com/jrsteele09/go-storefront/internal/utils"
	"github.com/jrsteele09/go-storefront/notify"
	"github.com/jrsteele09/go-storefront/session"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

const (
	pathCart  = "/cart"
	pathItems = "/cart/items"

	DefaultQuantity = 1
)

// API is the part of the gateway the cart store needs.
type API interface {
	Get(ctx context.Context, path string, query url.Values, out any) error
	Post(ctx context.Context, path string, body, out any, options ...gateway.RequestOption) error
	Patch(ctx context.Context, path string, query url.Values, out any) error
	Delete(ctx context.Context, path string, out any) error
}

var _ API = (*gateway.Client)(nil)

// Notifier receives the outcome of cart mutations.
type Notifier interface {
	Success(message string) notify.Notification
	Error(message string) notify.Notification
}

var _ Notifier = (*notify.Bus)(nil)

// Sessions tells the cart who is signed in and when that changes.
type Sessions interface {
	Snapshot() session.Snapshot
	Subscribe(fn func(session.Snapshot)) func()
}

var _ Sessions = (*session.Store)(nil)

// Snapshot is a copy of the cart state at one point in time. Cart is nil when nobody is
// signed in, before the first fetch, and after the cart is cleared.
type Snapshot struct {
	Cart      *Cart
	Loading   bool
	ItemCount int
}

type Store struct {
	api      API
	notifier Notifier
	sessions Sessions

	mu        sync.Mutex
	cart      *Cart
	loading   int
	current   identity // identity last seen by Watch
	listeners map[int]func(Snapshot)
	nextSub   int
}

func New(api API, notifier Notifier, sessions Sessions) (*Store, error) {
	if api == nil {
		return nil, errors.New("[cart.New] api is required")
	}
	if notifier == nil {
		return nil, errors.New("[cart.New] notifier is required")
	}
	if sessions == nil {
		return nil, errors.New("[cart.New] sessions is required")
	}
	return &Store{
		api:       api,
		notifier:  notifier,
		sessions:  sessions,
		listeners: make(map[int]func(Snapshot)),
	}, nil
}

// Watch follows the session: every change of signed-in identity fetches the cart for the
// new user, and signing out drops it. The current session is applied immediately. ctx is
// used for the fetches Watch triggers. The returned func stops watching.
func (s *Store) Watch(ctx context.Context) func() {
	unsubscribe := s.sessions.Subscribe(func(snap session.Snapshot) {
		s.identityChanged(ctx, snap)
	})
	s.identityChanged(ctx, s.sessions.Snapshot())
	return unsubscribe
}

func (s *Store) identityChanged(ctx context.Context, snap session.Snapshot) {
	id := identityOf(snap)

	s.mu.Lock()
	changed := s.current != id
	s.current = id
	s.mu.Unlock()

	if !changed {
		return
	}
	if !snap.SignedIn() {
		s.update(func() { s.cart = nil })
		return
	}
	s.Fetch(ctx)
}

// Fetch replaces the cart with the server's. It does nothing when nobody is signed in. A
// failure keeps the current cart and raises no notification.
func (s *Store) Fetch(ctx context.Context) {
	if !s.sessions.Snapshot().SignedIn() {
		return
	}

	started := s.identity()
	s.update(func() { s.loading++ })
	defer s.update(func() { s.loading-- })

	c := &Cart{}
	if err := s.api.Get(ctx, pathCart, nil, c); err != nil {
		log.Debug().Err(err).Msg("fetching cart failed, keeping current cart")
		return
	}
	s.commit(started, c)
}

// AddItem puts quantity of productID in the cart. A quantity below one adds a single item.
func (s *Store) AddItem(ctx context.Context, productID int64, quantity int) {
	if quantity < 1 {
		quantity = DefaultQuantity
	}

	started := s.identity()
	c := &Cart{}
	if err := s.api.Post(ctx, pathItems, AddItemRequest{ProductID: productID, Quantity: quantity}, c); err != nil {
		s.fail(err, "Failed to add to cart")
		return
	}
	if s.commit(started, c) {
		s.notifier.Success("Added to cart")
	}
}

func (s *Store) RemoveItem(ctx context.Context, cartItemID int64) {
	started := s.identity()
	c := &Cart{}
	if err := s.api.Delete(ctx, itemPath(cartItemID), c); err != nil {
		s.fail(err, "Failed to remove from cart")
		return
	}
	if s.commit(started, c) {
		s.notifier.Success("Removed from cart")
	}
}

// UpdateQuantity sets the quantity of one line. The server removes the line for a quantity
// of zero or less. Success is silent; quantity steppers would otherwise flood the user.
func (s *Store) UpdateQuantity(ctx context.Context, cartItemID int64, quantity int) {
	started := s.identity()
	c := &Cart{}
	query := url.Values{"quantity": {strconv.Itoa(quantity)}}
	if err := s.api.Patch(ctx, itemPath(cartItemID), query, c); err != nil {
		s.fail(err, "Failed to update quantity")
		return
	}
	s.commit(started, c)
}

// Clear empties the cart. The server answers with no body, so the snapshot becomes nil.
func (s *Store) Clear(ctx context.Context) {
	started := s.identity()
	if err := s.api.Delete(ctx, pathCart, nil); err != nil {
		s.fail(err, "Failed to clear cart")
		return
	}
	if s.commit(started, nil) {
		s.notifier.Success("Cart cleared")
	}
}

// identity is who a request was made for.
type identity struct {
	signedIn bool
	userID   int64
}

func identityOf(snap session.Snapshot) identity {
	id := identity{signedIn: snap.SignedIn()}
	if snap.User != nil {
		id.userID = snap.User.ID
	}
	return id
}

func (s *Store) identity() identity {
	return identityOf(s.sessions.Snapshot())
}

// commit stores c unless the signed-in user changed while the request was in flight, in
// which case the response belongs to someone else and is dropped. Nobody signed in never
// gets a cart.
func (s *Store) commit(started identity, c *Cart) bool {
	applied := false
	s.update(func() {
		if s.identity() != started || (!started.signedIn && c != nil) {
			return
		}
		s.cart = c
		applied = true
	})
	if !applied {
		log.Debug().Int64("user", started.userID).Msg("signed-in user changed, dropping cart response")
	}
	return applied
}

func (s *Store) fail(err error, fallback string) {
	log.Debug().Err(err).Msg(fallback)
	s.notifier.Error(gateway.UserMessage(err, fallback))
}

// Cart returns a copy of the current cart, nil when none is loaded.
func (s *Store) Cart() *Cart {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cart.clone()
}

// ItemCount is the server's totalQuantity, or zero when no cart is loaded.
func (s *Store) ItemCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return itemCount(s.cart)
}

func (s *Store) Loading() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loading > 0
}

func (s *Store) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshot()
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
	return Snapshot{
		Cart:      s.cart.clone(),
		Loading:   s.loading > 0,
		ItemCount: itemCount(s.cart),
	}
}

func itemCount(c *Cart) int {
	return utils.Value(c).TotalQuantity
}

func itemPath(cartItemID int64) string {
	return fmt.Sprintf("%s/%d", pathItems, cartItemID)
}
