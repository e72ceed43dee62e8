// Package retry provides exponential backoff retry logic for decision API calls.
package retry

import (
	"context"
	"math"
	"time"

	"github.com/autocorp/engine/internal/simerr"
)

// Sleeper waits for the given duration or until ctx is cancelled. Tests
// inject one to assert backoff durations without wall-clock delay.
type Sleeper func(ctx context.Context, d time.Duration) error

// ContextSleeper is the production Sleeper.
func ContextSleeper(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Config holds retry configuration.
type Config struct {
	MaxAttempts int
	BaseDelay   time.Duration
	Sleep       Sleeper
}

// DefaultConfig returns the retry policy for decision API calls: three
// attempts total with 1s, 2s backoff between them.
func DefaultConfig() Config {
	return Config{
		MaxAttempts: 3,
		BaseDelay:   time.Second,
		Sleep:       ContextSleeper,
	}
}

// Do executes fn with exponential backoff. Only retryable errors are
// retried; the last error is returned once attempts are exhausted.
func Do(ctx context.Context, cfg Config, fn func(ctx context.Context) error) error {
	if cfg.Sleep == nil {
		cfg.Sleep = ContextSleeper
	}
	var lastErr error
	for attempt := 0; attempt < cfg.MaxAttempts; attempt++ {
		lastErr = fn(ctx)
		if lastErr == nil {
			return nil
		}
		if !simerr.IsRetryable(lastErr) {
			return lastErr
		}
		if attempt == cfg.MaxAttempts-1 {
			break
		}

		delay := time.Duration(float64(cfg.BaseDelay) * math.Pow(2, float64(attempt)))
		if err := cfg.Sleep(ctx, delay); err != nil {
			return err
		}
	}
	return lastErr
}
