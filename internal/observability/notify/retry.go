package notify

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// RetryInterval is the first delay between delivery attempts; later delays grow exponentially.
const RetryInterval = 200 * time.Millisecond

// Deliver calls send until it succeeds, ctx ends or retryLimit retries are spent.
// A retryLimit of zero makes a single attempt.
func Deliver(ctx context.Context, retryLimit int, send func(context.Context) error) error {
	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = RetryInterval
	eb.MaxElapsedTime = 0

	var b backoff.BackOff = eb
	b = backoff.WithMaxRetries(b, uint64(max(retryLimit, 0)))
	b = backoff.WithContext(b, ctx)

	return backoff.Retry(func() error { return send(ctx) }, b)
}
