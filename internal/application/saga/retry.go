package saga

import (
	"context"

	"github.com/cenkalti/backoff/v4"
)

// retry runs fn with exponential backoff and jitter up to maxAttempts, each
// attempt under its own step timeout. A timeout counts as a transient failure,
// never as success. fn may return backoff.Permanent to stop retrying.
func (c *Coordinator) retry(ctx context.Context, maxAttempts uint64, fn func(ctx context.Context) error) (int, error) {
	if maxAttempts == 0 {
		maxAttempts = 1
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = c.cfg.RetryInitialInterval
	bo.MaxInterval = c.cfg.RetryMaxInterval
	bo.MaxElapsedTime = 0 // the attempt ceiling bounds the loop, not wall time

	attempts := 0
	op := func() error {
		attempts++
		attemptCtx, cancel := context.WithTimeout(ctx, c.cfg.StepTimeout)
		defer cancel()
		return fn(attemptCtx)
	}

	err := backoff.Retry(op, backoff.WithContext(backoff.WithMaxRetries(bo, maxAttempts-1), ctx))
	return attempts, err
}
