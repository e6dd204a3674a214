package llm

import (
	"context"
	"time"

	"github.com/backlogsmith/backlogsmith/internal/retry"
)

const (
	// transportAttempts bounds the provider-level retry loop.
	transportAttempts = 3
	// transportBaseDelay is the first backoff step (1s, 2s, 4s, ...).
	transportBaseDelay = 1 * time.Second
)

// completeWithRetry wraps a single completion call in the transport retry
// policy: rate limits, server errors, timeouts and connection failures get
// exponential backoff; auth and other 4xx failures propagate immediately.
func completeWithRetry(ctx context.Context, call func() (string, error)) (string, error) {
	res := retry.Execute(ctx, retry.Config{
		MaxAttempts:      transportAttempts,
		BaseDelay:        transportBaseDelay,
		MaxJitterPercent: 0,
	}, func() retry.Result {
		out, err := call()
		if err != nil {
			return retry.Result{Error: err}
		}
		return retry.Result{Success: true, Output: out}
	})
	if res.Error != nil {
		return "", res.Error
	}
	return res.Output, nil
}
