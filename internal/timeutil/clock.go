// Package timeutil provides a testable abstraction over timers so
// session timeouts can be driven manually in tests.
package timeutil

import (
	"sync"
	"time"
)

// Clock abstracts the time operations sessions depend on.
type Clock interface {
	// Now returns the current time.
	Now() time.Time

	// Since returns the duration since t.
	Since(t time.Time) time.Duration

	// After waits for d to elapse and then delivers the current time.
	After(d time.Duration) <-chan time.Time

	// NewTimer creates a timer firing once after at least d.
	NewTimer(d time.Duration) Timer
}

// Timer is a single-shot timer.
type Timer interface {
	// C returns the channel the expiry time is delivered on.
	C() <-chan time.Time

	// Stop prevents the timer from firing. Reports whether it was
	// still pending.
	Stop() bool

	// Reset rearms the timer to expire after d.
	Reset(d time.Duration) bool
}

// RealClock implements Clock on the standard time package.
type RealClock struct{}

// Now returns the current wall-clock time.
func (RealClock) Now() time.Time { return time.Now() }

// Since returns the time elapsed since t.
func (RealClock) Since(t time.Time) time.Duration { return time.Since(t) }

// After waits for d and delivers the current time.
func (RealClock) After(d time.Duration) <-chan time.Time { return time.After(d) }

// NewTimer creates a real single-shot timer.
func (RealClock) NewTimer(d time.Duration) Timer {
	return &realTimer{t: time.NewTimer(d)}
}

type realTimer struct {
	t *time.Timer
}

func (r *realTimer) C() <-chan time.Time        { return r.t.C }
func (r *realTimer) Stop() bool                 { return r.t.Stop() }
func (r *realTimer) Reset(d time.Duration) bool { return r.t.Reset(d) }

// MockClock is a manually advanced clock for tests.
type MockClock struct {
	mu     sync.Mutex
	now    time.Time
	timers []*mockTimer
}

// NewMockClock creates a MockClock set to t.
func NewMockClock(t time.Time) *MockClock {
	return &MockClock{now: t}
}

// Now returns the mocked time.
func (c *MockClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Since returns the mocked duration since t.
func (c *MockClock) Since(t time.Time) time.Duration {
	return c.Now().Sub(t)
}

// After is NewTimer without the handle.
func (c *MockClock) After(d time.Duration) <-chan time.Time {
	return c.NewTimer(d).C()
}

// NewTimer registers a timer that fires when Advance crosses its
// deadline.
func (c *MockClock) NewTimer(d time.Duration) Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &mockTimer{
		clock:    c,
		ch:       make(chan time.Time, 1),
		deadline: c.now.Add(d),
	}
	c.timers = append(c.timers, t)
	return t
}

// Advance moves the clock forward and fires expired timers.
func (c *MockClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	now := c.now
	timers := make([]*mockTimer, len(c.timers))
	copy(timers, c.timers)
	c.mu.Unlock()

	for _, t := range timers {
		t.fireIfDue(now)
	}
}

type mockTimer struct {
	clock    *MockClock
	mu       sync.Mutex
	ch       chan time.Time
	deadline time.Time
	stopped  bool
	fired    bool
}

func (t *mockTimer) C() <-chan time.Time { return t.ch }

func (t *mockTimer) Stop() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	active := !t.stopped && !t.fired
	t.stopped = true
	return active
}

func (t *mockTimer) Reset(d time.Duration) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	active := !t.stopped && !t.fired
	t.stopped = false
	t.fired = false
	t.deadline = t.clock.Now().Add(d)
	return active
}

func (t *mockTimer) fireIfDue(now time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.stopped || t.fired || now.Before(t.deadline) {
		return
	}
	t.fired = true
	select {
	case t.ch <- now:
	default:
	}
}
