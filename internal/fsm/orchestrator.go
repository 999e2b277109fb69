package fsm

import (
	"sync"

	"github.com/lumen-access/waypoint/internal/monitoring"
)

// subscriberBuffer bounds how many undelivered values a slow subscriber
// may accumulate before the oldest is dropped. The newest value is never
// dropped, so a subscriber that falls behind still converges on the
// current state.
const subscriberBuffer = 16

// Orchestrator wraps a Machine with the shared lifecycle plumbing every
// feature session needs: idempotent-transition suppression, a paused
// flag independent of the machine's states, and broadcast streams for
// both. Broadcasts happen strictly after the state mutation is
// committed and in commit order.
type Orchestrator[S comparable] struct {
	mu        sync.Mutex
	machine   *Machine[S]
	paused    bool
	stateSubs map[int]chan S
	pauseSubs map[int]chan bool
	nextSub   int
}

// NewOrchestrator creates an Orchestrator around a fresh Machine with
// the given initial state and validator.
func NewOrchestrator[S comparable](initial S, v Validator[S]) *Orchestrator[S] {
	return &Orchestrator[S]{
		machine:   NewMachine(initial, v),
		stateSubs: make(map[int]chan S),
		pauseSubs: make(map[int]chan bool),
	}
}

// Current returns the current state.
func (o *Orchestrator[S]) Current() S {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.machine.Current()
}

// Transition attempts a state change. Transitioning to the current
// state is suppressed (returns false, no broadcast) so downstream
// subscribers never see redundant notifications. Otherwise the change
// is delegated to the machine and, if committed, broadcast to all
// state subscribers before the lock is released.
func (o *Orchestrator[S]) Transition(to S) bool {
	o.mu.Lock()
	defer o.mu.Unlock()

	if current := o.machine.Current(); current == to {
		monitoring.Debugf("fsm: suppressed idempotent transition to %v", to)
		return false
	}
	if !o.machine.Transition(to) {
		monitoring.Debugf("fsm: rejected transition to %v from %v", to, o.machine.Current())
		return false
	}
	for _, ch := range o.stateSubs {
		push(ch, to)
	}
	return true
}

// Pause sets the paused flag and broadcasts it. Pausing while already
// paused is a no-op.
func (o *Orchestrator[S]) Pause() { o.setPaused(true) }

// Resume clears the paused flag and broadcasts it.
func (o *Orchestrator[S]) Resume() { o.setPaused(false) }

// IsPaused reports the orchestrator-level paused flag.
func (o *Orchestrator[S]) IsPaused() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.paused
}

func (o *Orchestrator[S]) setPaused(v bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.paused == v {
		return
	}
	o.paused = v
	for _, ch := range o.pauseSubs {
		push(ch, v)
	}
}

// States subscribes to state changes. The returned channel immediately
// carries the current state, then every committed change. The cancel
// function releases the subscription; the channel is never closed by a
// broadcast, so ranging callers must select on their own done signal.
func (o *Orchestrator[S]) States() (<-chan S, func()) {
	o.mu.Lock()
	defer o.mu.Unlock()

	ch := make(chan S, subscriberBuffer)
	ch <- o.machine.Current()
	id := o.nextSub
	o.nextSub++
	o.stateSubs[id] = ch

	return ch, func() {
		o.mu.Lock()
		defer o.mu.Unlock()
		delete(o.stateSubs, id)
	}
}

// PausedStates subscribes to the paused flag the same way States
// subscribes to state changes.
func (o *Orchestrator[S]) PausedStates() (<-chan bool, func()) {
	o.mu.Lock()
	defer o.mu.Unlock()

	ch := make(chan bool, subscriberBuffer)
	ch <- o.paused
	id := o.nextSub
	o.nextSub++
	o.pauseSubs[id] = ch

	return ch, func() {
		o.mu.Lock()
		defer o.mu.Unlock()
		delete(o.pauseSubs, id)
	}
}

// push delivers v without blocking the broadcaster. When the subscriber
// buffer is full the oldest value is discarded to make room.
func push[T any](ch chan T, v T) {
	for {
		select {
		case ch <- v:
			return
		default:
			select {
			case <-ch:
			default:
			}
		}
	}
}
