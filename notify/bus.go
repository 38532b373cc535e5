// Package notify is the notification bus: short-lived, user facing messages that remove
// themselves after a fixed display window.
package notify

import (
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// DefaultTTL is how long a notification stays visible.
const DefaultTTL = 3500 * time.Millisecond

type Kind string

const (
	KindSuccess Kind = "success"
	KindError   Kind = "error"
	KindInfo    Kind = "info"
)

// Notification is one visible message. IDs are unique and increasing for the life of a Bus.
type Notification struct {
	ID        uint64    `json:"id"`
	Message   string    `json:"message"`
	Kind      Kind      `json:"kind"`
	CreatedAt time.Time `json:"createdAt"`
}

type EventType string

const (
	EventAdded   EventType = "added"
	EventExpired EventType = "expired"
)

// Event is delivered to subscribers when a notification appears or expires.
type Event struct {
	Type         EventType
	Notification Notification
}

// Timer is the subset of *time.Timer the bus needs.
type Timer interface {
	Stop() bool
}

// Scheduler runs fn once after d. The default is time.AfterFunc.
type Scheduler func(d time.Duration, fn func()) Timer

// Bus owns every visible notification and its expiry timer.
type Bus struct {
	mu        sync.Mutex
	ttl       time.Duration
	nextID    uint64
	active    []Notification
	timers    map[uint64]Timer
	listeners map[int]func(Event)
	nextSub   int
	closed    bool

	schedule Scheduler        // expiry scheduler (injectable for testing)
	nowTime  func() time.Time // nowTime function (injectable for testing)
}

// Option defines a function type to modify the Bus instance.
type Option func(*Bus)

// WithTTL overrides the display window
func WithTTL(ttl time.Duration) Option {
	return func(b *Bus) {
		if ttl > 0 {
			b.ttl = ttl
		}
	}
}

// WithScheduler sets the expiry scheduler (primarily for testing)
func WithScheduler(s Scheduler) Option {
	return func(b *Bus) {
		b.schedule = s
	}
}

// WithNowTime sets the now time function (primarily for testing)
func WithNowTime(nowFunc func() time.Time) Option {
	return func(b *Bus) {
		b.nowTime = nowFunc
	}
}

func New(options ...Option) *Bus {
	b := &Bus{
		ttl:       DefaultTTL,
		timers:    make(map[uint64]Timer),
		listeners: make(map[int]func(Event)),
		schedule: func(d time.Duration, fn func()) Timer {
			return time.AfterFunc(d, fn)
		},
		nowTime: time.Now,
	}
	for _, opt := range options {
		opt(b)
	}
	return b
}

// Notify shows message for the bus TTL. Identical messages are not merged and there is no
// limit on how many can be visible at once. After Close the notification is still
// returned but never shown.
func (b *Bus) Notify(message string, kind Kind) Notification {
	b.mu.Lock()
	b.nextID++
	n := Notification{
		ID:        b.nextID,
		Message:   message,
		Kind:      kind,
		CreatedAt: b.nowTime(),
	}
	if b.closed {
		b.mu.Unlock()
		return n
	}
	b.active = append(b.active, n)
	b.timers[n.ID] = b.schedule(b.ttl, func() { b.expire(n.ID) })
	listeners := b.snapshotListeners()
	b.mu.Unlock()

	log.Debug().Uint64("id", n.ID).Str("kind", string(kind)).Str("message", message).Msg("notification")
	publish(listeners, Event{Type: EventAdded, Notification: n})
	return n
}

func (b *Bus) Success(message string) Notification {
	return b.Notify(message, KindSuccess)
}

func (b *Bus) Error(message string) Notification {
	return b.Notify(message, KindError)
}

func (b *Bus) Info(message string) Notification {
	return b.Notify(message, KindInfo)
}

// Active returns the visible notifications, oldest first
func (b *Bus) Active() []Notification {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]Notification(nil), b.active...)
}

// Subscribe registers fn for every add and expire event. The returned func unregisters it.
// fn is called without the bus lock held and may call back into the bus.
func (b *Bus) Subscribe(fn func(Event)) func() {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := b.nextSub
	b.nextSub++
	b.listeners[id] = fn
	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		delete(b.listeners, id)
	}
}

// Close stops every pending expiry timer and drops visible notifications. Later calls to
// Notify are ignored.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	for id, t := range b.timers {
		t.Stop()
		delete(b.timers, id)
	}
	b.active = nil
	b.closed = true
}

func (b *Bus) expire(id uint64) {
	b.mu.Lock()
	if _, ok := b.timers[id]; !ok {
		b.mu.Unlock()
		return
	}
	delete(b.timers, id)

	var expired Notification
	for i, n := range b.active {
		if n.ID == id {
			expired = n
			b.active = append(b.active[:i], b.active[i+1:]...)
			break
		}
	}
	listeners := b.snapshotListeners()
	b.mu.Unlock()

	publish(listeners, Event{Type: EventExpired, Notification: expired})
}

func (b *Bus) snapshotListeners() []func(Event) {
	fns := make([]func(Event), 0, len(b.listeners))
	for i := 0; i < b.nextSub; i++ {
		if fn, ok := b.listeners[i]; ok {
			fns = append(fns, fn)
		}
	}
	return fns
}

func publish(listeners []func(Event), e Event) {
	for _, fn := range listeners {
		fn(e)
	}
}
