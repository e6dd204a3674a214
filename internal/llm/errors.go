package llm

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"

	openai "github.com/sashabaranov/go-openai"
)

// ErrorKind classifies transport-level failures.
type ErrorKind int

const (
	ErrAuth ErrorKind = iota
	ErrRateLimited
	ErrServer
	ErrTimeout
	ErrConnection
	ErrMalformed
)

// String returns the human-readable name for the error kind.
func (k ErrorKind) String() string {
	switch k {
	case ErrAuth:
		return "auth"
	case ErrRateLimited:
		return "rate limited"
	case ErrServer:
		return "server error"
	case ErrTimeout:
		return "timeout"
	case ErrConnection:
		return "connection error"
	case ErrMalformed:
		return "malformed response"
	default:
		return "unknown"
	}
}

// Error is a classified transport failure. Status is the HTTP status code
// when one was received, zero otherwise.
type Error struct {
	Kind   ErrorKind
	Status int
	Msg    string
	Err    error
}

func (e *Error) Error() string {
	if e.Msg != "" {
		return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	}
	return e.Kind.String()
}

func (e *Error) Unwrap() error { return e.Err }

// Retryable reports whether the failure is transient. Auth failures and
// malformed responses are permanent; rate limits, server errors, timeouts
// and connection failures are worth another attempt.
func (e *Error) Retryable() bool {
	switch e.Kind {
	case ErrRateLimited, ErrServer, ErrTimeout, ErrConnection:
		return true
	default:
		return false
	}
}

// classifyStatus maps an HTTP status code to an error kind.
func classifyStatus(status int) ErrorKind {
	switch {
	case status == http.StatusTooManyRequests:
		return ErrRateLimited
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return ErrAuth
	case status >= 500:
		return ErrServer
	default:
		// Remaining 4xx: treat as auth-class (not retried).
		return ErrAuth
	}
}

// classify converts an arbitrary client error into a *Error. Errors that are
// already classified pass through unchanged.
func classify(err error) *Error {
	var te *Error
	if errors.As(err, &te) {
		return te
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return &Error{Kind: classifyStatus(apiErr.HTTPStatusCode), Status: apiErr.HTTPStatusCode, Msg: apiErr.Message, Err: err}
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return &Error{Kind: ErrTimeout, Err: err}
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return &Error{Kind: ErrTimeout, Err: err}
		}
		return &Error{Kind: ErrConnection, Err: err}
	}

	return &Error{Kind: ErrConnection, Err: err}
}
