package agent

import (
	"errors"
	"fmt"
	"time"
)

// ErrAgent is the root of the agent error taxonomy; every error returned by
// an agent operation matches it via errors.Is.
var ErrAgent = errors.New("agent error")

// PromptError reports a failure to build the prompt for a call.
type PromptError struct {
	Agent    string
	Template string
	Err      error
}

func (e *PromptError) Error() string {
	return fmt.Sprintf("agent %s: prompt %s: %v", e.Agent, e.Template, e.Err)
}

func (e *PromptError) Unwrap() error { return e.Err }

func (e *PromptError) Is(target error) bool { return target == ErrAgent }

// CommunicationError wraps a transport or provider failure that survived the
// transport-level retry loop.
type CommunicationError struct {
	Agent string
	Err   error
}

func (e *CommunicationError) Error() string {
	return fmt.Sprintf("agent %s: communication failed: %v", e.Agent, e.Err)
}

func (e *CommunicationError) Unwrap() error { return e.Err }

func (e *CommunicationError) Is(target error) bool { return target == ErrAgent }

// TimeoutError reports that a call exceeded the agent's time budget.
type TimeoutError struct {
	Agent  string
	Budget time.Duration
	Err    error
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("agent %s: call exceeded %s budget", e.Agent, e.Budget)
}

func (e *TimeoutError) Unwrap() error { return e.Err }

func (e *TimeoutError) Is(target error) bool { return target == ErrAgent }

// CircuitBreakerError reports a call rejected because the agent's breaker is
// open.
type CircuitBreakerError struct {
	Agent string
}

func (e *CircuitBreakerError) Error() string {
	return fmt.Sprintf("agent %s: circuit breaker is open", e.Agent)
}

func (e *CircuitBreakerError) Is(target error) bool { return target == ErrAgent }
