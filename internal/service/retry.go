package service

import (
	"context"
	"time"

	"github.com/Harshitk-cp/synapse/internal/domain"
	"go.uber.org/zap"
)

const (
	maxWriteAttempts = 3
	retryBackoff     = 25 * time.Millisecond
)

// withRetry runs fn until it succeeds, fails with a non-transient error,
// or maxWriteAttempts is reached. Backoff grows linearly per attempt.
func withRetry(ctx context.Context, logger *zap.Logger, op string, fn func() error) error {
	for attempt := 1; ; attempt++ {
		err := fn()
		if err == nil || !domain.IsTransient(err) || attempt >= maxWriteAttempts {
			return err
		}

		logger.Warn("transient storage error, retrying",
			zap.String("op", op),
			zap.Int("attempt", attempt),
			zap.Error(err))

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Duration(attempt) * retryBackoff):
		}
	}
}
