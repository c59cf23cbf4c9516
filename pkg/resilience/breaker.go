// SPDX-License-Identifier: Apache-2.0
package resilience

import (
	"context"
	"sync"
	"time"

	"github.com/jllopis/basedagent/pkg/errors"
)

// BreakerState represents the state of a circuit breaker.
type BreakerState string

const (
	// StateClosed means calls pass through.
	StateClosed BreakerState = "closed"

	// StateOpen means calls are rejected without running.
	StateOpen BreakerState = "open"

	// StateHalfOpen means a limited number of trial calls are allowed.
	StateHalfOpen BreakerState = "half-open"
)

// Level maps the state to the breaker gauge value: 0 open, 1 half-open,
// 2 closed.
func (s BreakerState) Level() int64 {
	switch s {
	case StateOpen:
		return 0
	case StateHalfOpen:
		return 1
	default:
		return 2
	}
}

// BreakerConfig configures a circuit breaker.
type BreakerConfig struct {
	// FailureThreshold is the number of consecutive failures before opening.
	FailureThreshold int

	// SuccessThreshold is the number of half-open successes before closing.
	SuccessThreshold int

	// Cooldown is how long the breaker stays open before a trial call.
	Cooldown time.Duration

	// Name identifies the breaker in errors and logs.
	Name string

	// OnStateChange, when set, is called after every transition.
	OnStateChange func(name string, from, to BreakerState)
}

// Breaker stops calling a failing dependency until it has had time to recover.
type Breaker struct {
	config    BreakerConfig
	mu        sync.Mutex
	state     BreakerState
	failures  int
	successes int
	openedAt  time.Time
	now       func() time.Time
}

// NewBreaker creates a closed breaker.
func NewBreaker(config BreakerConfig) *Breaker {
	if config.FailureThreshold < 1 {
		config.FailureThreshold = 5
	}
	if config.SuccessThreshold < 1 {
		config.SuccessThreshold = 1
	}
	if config.Cooldown == 0 {
		config.Cooldown = 30 * time.Second
	}
	if config.Name == "" {
		config.Name = "breaker"
	}
	return &Breaker{config: config, state: StateClosed, now: time.Now}
}

// Call runs fn when the breaker allows it and records the outcome.
// Rejections are recoverable CodeInternal errors.
func (b *Breaker) Call(ctx context.Context, fn func(ctx context.Context) error) error {
	if err := b.allow(); err != nil {
		return err
	}
	err := fn(ctx)
	b.record(err)
	return err
}

func (b *Breaker) allow() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state == StateOpen && b.now().Sub(b.openedAt) >= b.config.Cooldown {
		b.transition(StateHalfOpen)
	}
	if b.state == StateOpen {
		return errors.New(errors.CodeInternal, "circuit breaker open", nil).
			WithContext("breaker", b.config.Name).
			WithRecoverable(true)
	}
	return nil
}

func (b *Breaker) record(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err != nil {
		b.successes = 0
		b.failures++
		if b.state == StateHalfOpen || b.failures >= b.config.FailureThreshold {
			b.openedAt = b.now()
			b.transition(StateOpen)
		}
		return
	}

	b.failures = 0
	if b.state == StateHalfOpen {
		b.successes++
		if b.successes >= b.config.SuccessThreshold {
			b.transition(StateClosed)
		}
	}
}

// transition must be called with b.mu held.
func (b *Breaker) transition(to BreakerState) {
	from := b.state
	if from == to {
		return
	}
	b.state = to
	b.failures = 0
	b.successes = 0
	if b.config.OnStateChange != nil {
		b.config.OnStateChange(b.config.Name, from, to)
	}
}

// State returns the current breaker state.
func (b *Breaker) State() BreakerState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Reset forces the breaker closed.
func (b *Breaker) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.transition(StateClosed)
}
