package ai

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/hiring-bias-lab/resume-eval/internal/utils"
	"go.uber.org/zap"
)

// waitFor is a seam for tests.
var waitFor = utils.WaitFor

// RetryPolicy describes the exponential backoff applied to provider calls.
type RetryPolicy struct {
	MaxRetries  int
	BaseDelay   time.Duration
	BackoffBase float64
	MaxDelay    time.Duration
}

// DefaultRetryPolicy mirrors the study's original retry settings.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxRetries:  10,
		BaseDelay:   60 * time.Second,
		BackoffBase: 2,
		MaxDelay:    300 * time.Second,
	}
}

// Delay returns the backoff duration before retrying the given zero-based attempt.
func (p RetryPolicy) Delay(attempt int) time.Duration {
	base := p.BackoffBase
	if base <= 1 {
		base = 2
	}

	delay := time.Duration(float64(p.BaseDelay) * math.Pow(base, float64(attempt)))
	if p.MaxDelay > 0 && delay > p.MaxDelay {
		delay = p.MaxDelay
	}
	return delay
}

// Retry runs fn up to MaxRetries times, backing off between attempts.
// retryable decides whether an error is worth another attempt; non-retryable
// errors surface immediately.
func Retry(ctx context.Context, logger *zap.Logger, policy RetryPolicy, retryable func(error) bool, fn func(ctx context.Context) (string, error)) (string, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	attempts := policy.MaxRetries
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		result, err := fn(ctx)
		if err == nil {
			return result, nil
		}

		lastErr = err

		if retryable != nil && !retryable(err) {
			return "", err
		}

		if attempt == attempts-1 {
			break
		}

		delay := policy.Delay(attempt)
		logger.Warn("provider call failed, retrying",
			zap.Int("attempt", attempt+1),
			zap.Int("max_retries", attempts),
			zap.Duration("wait", delay),
			zap.Error(err),
		)

		if err := waitFor(ctx, delay); err != nil {
			return "", err
		}
	}

	return "", fmt.Errorf("max retries (%d) exceeded: %w", attempts, lastErr)
}
