package txn

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/opendlt/aptos-toolkit/internal/metrics"
	"github.com/opendlt/aptos-toolkit/types"
)

// WriteFunc performs one write attempt
type WriteFunc func(ctx context.Context) (*types.WriteResult, error)

// RetryFailedCall runs fn up to attempts times, sleeping delay between attempts.
// An error or a result with Success=false counts as a failure.
func RetryFailedCall(ctx context.Context, attempts int, delay time.Duration, fn WriteFunc) (*types.WriteResult, error) {
	if attempts < 1 {
		return nil, fmt.Errorf("attempts must be at least 1, got %d", attempts)
	}

	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			metrics.RecordRetry()
			select {
			case <-ctx.Done():
				return nil, fmt.Errorf("failed after %d retries: %w", attempt, ctx.Err())
			case <-time.After(delay):
			}
		}

		result, err := fn(ctx)
		switch {
		case err != nil:
			lastErr = err
		case result == nil:
			lastErr = errors.New("empty write result")
		case !result.Success:
			lastErr = errors.New(result.ErrorMessage())
			if result.ErrorMessage() == "" {
				lastErr = fmt.Errorf("transaction %s failed", result.TransactionHash)
			}
		default:
			return result, nil
		}
	}

	return nil, fmt.Errorf("failed after %d retries: %w", attempts, lastErr)
}
