package notify_test

import (
	"sync"
	"testing"
	"time"

	"github.com/jrsteele09/go-storefront/notify"
	"github.com/stretchr/testify/require"
)

// fakeTimer is a scheduled expiry the test fires by hand
type fakeTimer struct {
	delay   time.Duration
	fn      func()
	stopped bool
}

func (t *fakeTimer) Stop() bool {
	wasActive := !t.stopped
	t.stopped = true
	return wasActive
}

type fakeScheduler struct {
	lock   sync.Mutex
	timers []*fakeTimer
}

func (s *fakeScheduler) schedule(d time.Duration, fn func()) notify.Timer {
	s.lock.Lock()
	defer s.lock.Unlock()
	t := &fakeTimer{delay: d, fn: fn}
	s.timers = append(s.timers, t)
	return t
}

func (s *fakeScheduler) fire(i int) {
	s.lock.Lock()
	t := s.timers[i]
	s.lock.Unlock()
	t.fn()
}

func setupBus(t *testing.T) (*notify.Bus, *fakeScheduler) {
	t.Helper()
	sched := &fakeScheduler{}
	bus := notify.New(notify.WithScheduler(sched.schedule))
	t.Cleanup(bus.Close)
	return bus, sched
}

func TestBus_NotifyAndExpire(t *testing.T) {
	bus, sched := setupBus(t)

	n := bus.Success("Added to cart")
	require.Equal(t, uint64(1), n.ID)
	require.Equal(t, notify.KindSuccess, n.Kind)
	require.Len(t, sched.timers, 1)
	require.Equal(t, 3500*time.Millisecond, sched.timers[0].delay, "visible for exactly 3.5 seconds")
	require.Equal(t, []notify.Notification{n}, bus.Active())

	sched.fire(0)
	require.Empty(t, bus.Active())

	sched.fire(0)
	require.Empty(t, bus.Active(), "an expired notification never reappears")
}

func TestBus_IndependentTimersAndUniqueIDs(t *testing.T) {
	bus, sched := setupBus(t)

	first := bus.Error("Failed to add to cart")
	second := bus.Error("Failed to add to cart")
	third := bus.Info("Enter your authenticator code")

	require.Less(t, first.ID, second.ID)
	require.Less(t, second.ID, third.ID)
	require.Len(t, bus.Active(), 3, "identical messages are not deduplicated")

	sched.fire(1)
	active := bus.Active()
	require.Len(t, active, 2)
	require.Equal(t, first.ID, active[0].ID)
	require.Equal(t, third.ID, active[1].ID)

	sched.fire(0)
	sched.fire(2)
	require.Empty(t, bus.Active())
}

func TestBus_UniqueIDsUnderConcurrency(t *testing.T) {
	bus, _ := setupBus(t)

	const workers = 50
	ids := make(chan uint64, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ids <- bus.Info("same tick").ID
		}()
	}
	wg.Wait()
	close(ids)

	seen := make(map[uint64]bool)
	for id := range ids {
		require.False(t, seen[id], "duplicate id %d", id)
		seen[id] = true
	}
	require.Len(t, seen, workers)
}

func TestBus_Subscribe(t *testing.T) {
	bus, sched := setupBus(t)

	var events []notify.Event
	unsubscribe := bus.Subscribe(func(e notify.Event) { events = append(events, e) })

	n := bus.Success("Cart cleared")
	sched.fire(0)
	unsubscribe()
	bus.Success("ignored")

	require.Len(t, events, 2)
	require.Equal(t, notify.EventAdded, events[0].Type)
	require.Equal(t, notify.EventExpired, events[1].Type)
	require.Equal(t, n, events[1].Notification)
}

func TestBus_Close(t *testing.T) {
	bus, sched := setupBus(t)

	bus.Success("one")
	bus.Close()
	require.True(t, sched.timers[0].stopped)
	require.Empty(t, bus.Active())

	bus.Success("after close")
	require.Empty(t, bus.Active())
	require.Len(t, sched.timers, 1, "no timer scheduled after close")
}

func TestBus_RealTimers(t *testing.T) {
	bus := notify.New(notify.WithTTL(20 * time.Millisecond))
	t.Cleanup(bus.Close)

	bus.Success("short lived")
	require.Len(t, bus.Active(), 1)
	require.Eventually(t, func() bool { return len(bus.Active()) == 0 }, time.Second, 5*time.Millisecond)
}
