package agent

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// Retry tuning for transient provider errors, mirroring the teacher's
// session loop constants exactly.
const (
	maxRetries           = 3
	retryInitialInterval = time.Second
	retryMaxInterval     = 30 * time.Second
	retryMaxElapsedTime  = 2 * time.Minute
)

// newRetryBackoff builds an exponential backoff with jitter, bounded to
// maxRetries retries after the first attempt and retryMaxElapsedTime total,
// cancelled alongside ctx.
func newRetryBackoff(ctx context.Context) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = retryInitialInterval
	b.MaxInterval = retryMaxInterval
	b.MaxElapsedTime = retryMaxElapsedTime
	b.RandomizationFactor = 0.5
	b.Multiplier = 2.0
	b.Reset()
	return backoff.WithContext(backoff.WithMaxRetries(b, maxRetries), ctx)
}
