package retry

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog/log"
)

// Config holds configuration parameters for the retry mechanism.
type Config struct {
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration // zero means uncapped
}

// AccessCheck is used for read-only, idempotent reachability checks against remote storage.
var AccessCheck = Config{
	MaxAttempts:  3,
	InitialDelay: 1 * time.Second,
	MaxDelay:     10 * time.Second,
}

// IsRetryableFunc reports whether an error is transient.
type IsRetryableFunc func(err error) bool

// OperationFunc is the unit of work executed by Do.
type OperationFunc func(ctx context.Context) error

// Do executes the operation, retrying with exponential backoff while it fails
// with a retryable error. The last operational error is returned, or the
// context error when cancelled before the first attempt.
func Do(ctx context.Context, cfg Config, operationName string, operation OperationFunc, isRetryable IsRetryableFunc) error {
	if cfg.MaxAttempts <= 0 {
		return errors.New("MaxAttempts must be greater than 0")
	}
	if operation == nil {
		return errors.New("nil operation")
	}

	delay := cfg.InitialDelay
	var lastErr error

	for attempt := 1; attempt <= cfg.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			if lastErr != nil {
				return lastErr
			}
			return err
		}

		lastErr = operation(ctx)
		if lastErr == nil {
			return nil
		}

		retryable := isRetryable != nil && isRetryable(lastErr)
		if !retryable || attempt == cfg.MaxAttempts {
			log.Debug().Err(lastErr).Str("operation", operationName).Int("attempt", attempt).Bool("retryable", retryable).Msg("Giving up on operation")
			return lastErr
		}

		log.Warn().Err(lastErr).Str("operation", operationName).Int("attempt", attempt).Int("max_attempts", cfg.MaxAttempts).Dur("retry_after", delay).Msg("Transient error, retrying")

		timer := time.NewTimer(delay)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return lastErr
		}

		delay *= 2
		if cfg.MaxDelay > 0 && delay > cfg.MaxDelay {
			delay = cfg.MaxDelay
		}
	}
	return lastErr
}
