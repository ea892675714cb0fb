package engine

import (
	"context"
	"time"

	"filesentry/internal/models"
)

// retryBudget tracks the retries available to one execution. The budget
// spans the whole run: retries consumed by the listing call leave fewer for
// the fetches, so the recorded retry count never exceeds the number of
// configured backoff delays.
type retryBudget struct {
	backoffs []time.Duration
	used     int
}

func newRetryBudget(backoffs []time.Duration) *retryBudget {
	return &retryBudget{backoffs: backoffs}
}

// next consumes one retry from the budget and returns its backoff delay.
// It reports false once the budget is exhausted.
func (b *retryBudget) next() (time.Duration, bool) {
	if b.used >= len(b.backoffs) {
		return 0, false
	}
	delay := b.backoffs[b.used]
	b.used++
	return delay, true
}

// withRetry runs op, retrying transient failures (connection, timeout) with
// the budget's backoff delays. Authentication, validation and unrecognized
// errors fail immediately without consuming the budget, since retrying them
// cannot succeed. It returns the number of retries this call performed
// alongside the final error, so executions can record how much of the
// budget was used.
func (e *Engine) withRetry(ctx context.Context, budget *retryBudget, op func(context.Context) error) (int, error) {
	retries := 0
	for {
		err := e.runBounded(ctx, op)
		if err == nil {
			return retries, nil
		}

		category := models.CategoryOf(err)
		if !models.IsTransient(category) {
			return retries, err
		}
		delay, ok := budget.next()
		if !ok {
			return retries, err
		}

		e.logger.Warn().
			Err(err).
			Int("retry", budget.used).
			Dur("delay", delay).
			Msg("Transient failure, retrying after delay")

		select {
		case <-time.After(delay):
			retries++
		case <-ctx.Done():
			return retries, models.NewCancelledError("retry wait", ctx.Err())
		}
	}
}

// runBounded applies the per-call timeout so a stuck adapter cannot block a
// scheduler tick indefinitely.
func (e *Engine) runBounded(ctx context.Context, op func(context.Context) error) error {
	callCtx, cancel := context.WithTimeout(ctx, e.opts.CallTimeout)
	defer cancel()
	return op(callCtx)
}
