package search

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sony/gobreaker/v2"
)

// State is the availability of the full-text engine.
type State string

const (
	StateAvailable State = "available"
	StateDegraded  State = "degraded"
)

// ErrDegraded is returned by Breaker.Execute while the engine is degraded.
var ErrDegraded = errors.New("search index degraded")

// Breaker tracks whether the engine can be used. It is degraded when the
// index could not be opened, or when consecutive query failures tripped the
// underlying circuit breaker. Neither recovers by itself: callers check
// Available before calling Execute, so no traffic reaches a tripped circuit.
// Manager.Reprobe pushes the trial call once the cooldown has passed and
// reopens an unreachable index.
type Breaker struct {
	cb          *gobreaker.CircuitBreaker[struct{}]
	unreachable atomic.Bool
	tripped     atomic.Bool

	mu        sync.Mutex
	last      State
	listeners []func(State)
}

// NewBreaker trips after maxFailures consecutive failures and allows a
// single trial call after cooldown.
func NewBreaker(name string, maxFailures uint32, cooldown time.Duration) *Breaker {
	b := &Breaker{last: StateAvailable}
	b.cb = gobreaker.NewCircuitBreaker[struct{}](gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Timeout:     cooldown,
		// A caller hanging up says nothing about the engine.
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled)
		},
		ReadyToTrip: func(c gobreaker.Counts) bool {
			return c.ConsecutiveFailures >= maxFailures
		},
		OnStateChange: func(_ string, _, to gobreaker.State) {
			b.tripped.Store(to == gobreaker.StateOpen)
			b.notify()
		},
	})
	return b
}

// State reports the current availability.
func (b *Breaker) State() State {
	if b.unreachable.Load() || b.tripped.Load() {
		return StateDegraded
	}
	return StateAvailable
}

// Available is shorthand for State() == StateAvailable.
func (b *Breaker) Available() bool {
	return b.State() == StateAvailable
}

// OnChange registers fn to be called after every state transition.
func (b *Breaker) OnChange(fn func(State)) {
	b.mu.Lock()
	b.listeners = append(b.listeners, fn)
	b.mu.Unlock()
}

// MarkUnreachable puts the breaker in the degraded state until
// MarkReachable is called.
func (b *Breaker) MarkUnreachable() {
	b.unreachable.Store(true)
	b.notify()
}

// MarkReachable clears the unreachable flag.
func (b *Breaker) MarkReachable() {
	b.unreachable.Store(false)
	b.notify()
}

// Execute runs fn through the circuit breaker. It fails fast with
// ErrDegraded when the engine is unreachable or the circuit is open.
func (b *Breaker) Execute(fn func() error) error {
	if b.unreachable.Load() {
		return ErrDegraded
	}
	_, err := b.cb.Execute(func() (struct{}, error) {
		return struct{}{}, fn()
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return ErrDegraded
	}
	return err
}

func (b *Breaker) notify() {
	now := b.State()

	b.mu.Lock()
	if now == b.last {
		b.mu.Unlock()
		return
	}
	b.last = now
	listeners := append([]func(State){}, b.listeners...)
	b.mu.Unlock()

	for _, fn := range listeners {
		fn(now)
	}
}
