// Package breaker is a minimal circuit breaker for outbound service calls.
// Repeated failures open the circuit; while open, calls fail immediately
// instead of waiting out timeouts against a dead dependency.
package breaker

import (
	"errors"
	"sync"
	"time"
)

// ErrOpen is returned without invoking the call while the circuit is open.
var ErrOpen = errors.New("circuit open")

type state int

const (
	closed state = iota
	open
	halfOpen
)

// After the cooldown an open breaker admits probe calls; this many
// consecutive successes close it again.
const probeSuccesses = 3

// Breaker trips after maxFailures consecutive failures and stays open for
// the cooldown before probing the dependency again. The zero value is not
// usable; construct with New.
type Breaker struct {
	mu        sync.Mutex
	state     state
	failures  int
	successes int
	failedAt  time.Time

	maxFailures int
	cooldown    time.Duration
}

func New(maxFailures int, cooldown time.Duration) *Breaker {
	return &Breaker{
		maxFailures: maxFailures,
		cooldown:    cooldown,
	}
}

// Do runs fn unless the circuit is open, counting the result toward the
// breaker state. The call error is returned as is.
func (b *Breaker) Do(fn func() error) error {
	if !b.admit() {
		return ErrOpen
	}
	err := fn()
	b.record(err)
	return err
}

func (b *Breaker) admit() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state != open {
		return true
	}
	if time.Since(b.failedAt) < b.cooldown {
		return false
	}
	b.state = halfOpen
	b.successes = 0
	return true
}

func (b *Breaker) record(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err != nil {
		b.failures++
		b.failedAt = time.Now()
		// A failed probe reopens immediately, no second chance in half-open.
		if b.failures >= b.maxFailures || b.state == halfOpen {
			b.state = open
		}
		return
	}

	if b.state == halfOpen {
		b.successes++
		if b.successes >= probeSuccesses {
			b.state = closed
			b.failures = 0
		}
		return
	}
	b.failures = 0
}
