package navigation

import (
	"sync"

	"github.com/rs/zerolog/log"
)

// Navigator exposes the current view and lets the API gateway force a change of view.
type Navigator interface {
	CurrentView() string
	Navigate(view string)
}

var _ Navigator = (*Router)(nil)

// Router is the in-memory Navigator used by the CLI and tests. It records every view it
// has shown so callers can tell a forced redirect from a user-driven one.
type Router struct {
	mu        sync.RWMutex
	current   string
	history   []string
	listeners map[int]func(view string)
	nextID    int
}

func NewRouter(initial string) *Router {
	if initial == "" {
		initial = ViewProducts
	}
	return &Router{
		current:   initial,
		history:   []string{initial},
		listeners: make(map[int]func(string)),
	}
}

func (r *Router) CurrentView() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.current
}

// Navigate switches to view. Navigating to the current view is a no-op.
func (r *Router) Navigate(view string) {
	r.mu.Lock()
	if view == r.current {
		r.mu.Unlock()
		return
	}
	from := r.current
	r.current = view
	r.history = append(r.history, view)
	listeners := r.snapshotListeners()
	r.mu.Unlock()

	log.Debug().Str("from", from).Str("to", view).Msg("navigate")
	for _, fn := range listeners {
		fn(view)
	}
}

// History returns every view shown, oldest first
func (r *Router) History() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]string(nil), r.history...)
}

// Subscribe registers fn to be called after every view change. The returned func unregisters it.
func (r *Router) Subscribe(fn func(view string)) func() {
	r.mu.Lock()
	defer r.mu.Unlock()

	id := r.nextID
	r.nextID++
	r.listeners[id] = fn
	return func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		delete(r.listeners, id)
	}
}

func (r *Router) snapshotListeners() []func(string) {
	fns := make([]func(string), 0, len(r.listeners))
	for i := 0; i < r.nextID; i++ {
		if fn, ok := r.listeners[i]; ok {
			fns = append(fns, fn)
		}
	}
	return fns
}
