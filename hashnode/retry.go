package hashnode

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"slices"
	"time"
)

// StatusError is returned for a non-2xx download response.
type StatusError struct {
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("http status %d %s", e.Code, http.StatusText(e.Code))
}

// Policy decides whether and when a failed download is retried.
type Policy struct {
	// MaxAttempts is the total number of attempts, including the first.
	MaxAttempts int
	// Backoff is multiplied by the attempt number: 1x after the first
	// failure, 2x after the second.
	Backoff time.Duration
	// NonRetryable statuses end the download immediately.
	NonRetryable []int
	// Sleep waits between attempts. It returns early with ctx's error.
	Sleep func(ctx context.Context, d time.Duration) error
}

// DefaultPolicy makes three attempts one and two seconds apart and never
// retries 404 or 403.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts:  3,
		Backoff:      time.Second,
		NonRetryable: []int{http.StatusNotFound, http.StatusForbidden},
		Sleep:        sleepContext,
	}
}

// NextDelay returns the wait before the next attempt after attempt (1-based)
// failed with lastErr, and whether another attempt should be made.
func (p Policy) NextDelay(attempt int, lastErr error) (time.Duration, bool) {
	if attempt >= p.MaxAttempts {
		return 0, false
	}
	if errors.Is(lastErr, context.Canceled) || errors.Is(lastErr, context.DeadlineExceeded) {
		return 0, false
	}
	var se *StatusError
	if errors.As(lastErr, &se) && slices.Contains(p.NonRetryable, se.Code) {
		return 0, false
	}
	return time.Duration(attempt) * p.Backoff, true
}

func (p Policy) sleep(ctx context.Context, d time.Duration) error {
	if p.Sleep == nil {
		return sleepContext(ctx, d)
	}
	return p.Sleep(ctx, d)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
