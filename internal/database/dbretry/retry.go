package dbretry

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/driver/pgdriver"
)

var (
	maxElapsedTime  = 30 * time.Second
	initialInterval = 500 * time.Millisecond
	maxInterval     = 5 * time.Second
	maxRetries      = uint64(5)
)

// Transient PostgreSQL error classes: connection failures (08), serialization
// and deadlock (40), resource exhaustion (53), operator intervention (57),
// plus lock contention states.
var retryablePgCodes = map[string]struct{}{
	"08000": {}, "08001": {}, "08003": {}, "08004": {}, "08006": {}, "08007": {}, "08P01": {},
	"40001": {}, "40P01": {},
	"53000": {}, "53100": {}, "53200": {}, "53300": {}, "53400": {},
	"57000": {}, "57P01": {}, "57P02": {}, "57P03": {}, "57P04": {},
	"55006": {}, "55P03": {},
}

// IsRetryableError checks if the given error is worth retrying.
func IsRetryableError(err error) bool {
	if err == nil {
		return false
	}

	var pgerr pgdriver.Error
	if errors.As(err, &pgerr) {
		if _, ok := retryablePgCodes[pgerr.Field('C')]; ok {
			return true
		}
	}

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return true
	}

	// Driver-level network failures surface as plain error strings.
	msg := err.Error()
	for _, fragment := range []string{
		"connection reset by peer",
		"broken pipe",
		"connection refused",
		"no connection",
		"i/o timeout",
		"EOF",
	} {
		if strings.Contains(msg, fragment) {
			return true
		}
	}

	return false
}

func newBackoff(ctx context.Context) backoff.BackOffContext {
	return backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(
		backoff.WithMaxElapsedTime(maxElapsedTime),
		backoff.WithInitialInterval(initialInterval),
		backoff.WithMaxInterval(maxInterval),
	), maxRetries), ctx)
}

// Operation wraps a database operation that returns a value with retry logic.
func Operation[T any](ctx context.Context, operation func(context.Context) (T, error)) (T, error) {
	var result T

	err := NoResult(ctx, func(ctx context.Context) error {
		var err error
		result, err = operation(ctx)

		return err
	})

	return result, err
}

// NoResult wraps a database operation that doesn't return a result.
func NoResult(ctx context.Context, operation func(context.Context) error) error {
	var lastErr error

	err := backoff.Retry(func() error {
		err := operation(ctx)
		if err != nil {
			if !IsRetryableError(err) {
				return backoff.Permanent(err)
			}

			lastErr = err

			return err
		}

		return nil
	}, newBackoff(ctx))
	if err != nil {
		if lastErr != nil {
			// Surface the last database error rather than the retry wrapper.
			return fmt.Errorf("database operation failed after retries: %w", lastErr)
		}

		return err
	}

	return nil
}

// Transaction wraps a database transaction with retry logic.
func Transaction(ctx context.Context, db *bun.DB, fn func(context.Context, bun.Tx) error) error {
	return NoResult(ctx, func(ctx context.Context) error {
		return db.RunInTx(ctx, nil, fn)
	})
}
