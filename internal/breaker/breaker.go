package breaker

import (
	"errors"
	"sync"
	"time"
)

// ErrOpen is returned by Allow when the breaker is rejecting calls.
var ErrOpen = errors.New("circuit breaker is open")

// State represents the state of a circuit breaker.
type State int

const (
	// Closed allows calls through normally.
	Closed State = iota

	// Open rejects all calls immediately.
	Open

	// HalfOpen allows a single probe call to test recovery.
	HalfOpen
)

// String returns the human-readable name for the state.
func (s State) String() string {
	switch s {
	case Closed:
		return "closed"
	case Open:
		return "open"
	case HalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// Config configures the breaker behavior.
type Config struct {
	// FailureThreshold is the number of consecutive failures before opening.
	// Default: 3
	FailureThreshold int

	// RecoveryTimeout is the duration to wait before transitioning from
	// open to half-open. Default: 60s
	RecoveryTimeout time.Duration
}

// DefaultConfig returns the defaults used for agent breakers.
func DefaultConfig() Config {
	return Config{
		FailureThreshold: 3,
		RecoveryTimeout:  60 * time.Second,
	}
}

// Breaker is a closed/open/half-open failure-isolation state machine.
// Each agent instance owns one; state is process-local and never persisted.
//
// Thread safety: safe for concurrent use.
type Breaker struct {
	config Config

	mu                  sync.Mutex
	state               State
	consecutiveFailures int
	lastFailureTime     time.Time

	now func() time.Time // injectable clock for tests
}

// New creates a breaker in the closed state.
func New(config Config) *Breaker {
	if config.FailureThreshold <= 0 {
		config.FailureThreshold = 3
	}
	if config.RecoveryTimeout <= 0 {
		config.RecoveryTimeout = 60 * time.Second
	}
	return &Breaker{
		config: config,
		state:  Closed,
		now:    time.Now,
	}
}

// Allow reports whether a call may proceed. When the recovery timeout has
// elapsed in the open state, the breaker moves to half-open and admits one
// probe call. Returns ErrOpen when the call must be rejected.
func (b *Breaker) Allow() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case Closed, HalfOpen:
		return nil
	case Open:
		if b.now().Sub(b.lastFailureTime) >= b.config.RecoveryTimeout {
			b.state = HalfOpen
			return nil
		}
		return ErrOpen
	}
	return nil
}

// RecordSuccess resets the breaker to closed.
func (b *Breaker) RecordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.consecutiveFailures = 0
	b.state = Closed
}

// RecordFailure counts a failure. In half-open state any failure reopens the
// breaker; in closed state the breaker opens after FailureThreshold
// consecutive failures.
func (b *Breaker) RecordFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.consecutiveFailures++
	b.lastFailureTime = b.now()

	if b.state == HalfOpen || b.consecutiveFailures >= b.config.FailureThreshold {
		b.state = Open
	}
}

// State returns the current state.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}
