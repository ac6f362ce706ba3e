// Package retry provides the single reusable exponential-backoff policy
// value referenced by §9's design notes ("Retry/backoff: express as a
// small reusable policy value... rather than scattered sleeps"). It
// wraps github.com/cenkalti/backoff/v4, the same library the teacher
// repo carries as an indirect dependency and the direct Go analogue of
// the `backoff` package the Python original decorates its Docker/PyMongo
// calls with (original_source/src/db-replica_ctrl.py).
package retry

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// Policy is a reusable (base, factor, cap, max-attempts) backoff
// configuration. The zero value is not usable; construct with New.
type Policy struct {
	Base        time.Duration
	Factor      float64
	Cap         time.Duration
	MaxAttempts int
}

// New builds a Policy with the given parameters.
func New(base, cap time.Duration, factor float64, maxAttempts int) Policy {
	return Policy{Base: base, Factor: factor, Cap: cap, MaxAttempts: maxAttempts}
}

// Permanent marks an error as non-retryable, short-circuiting the
// policy regardless of attempts remaining. Used for AdminError_Fatal
// (§7), where retrying cannot help because MongoDB rejected the config.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return backoff.Permanent(err)
}

// Do runs fn under the policy, retrying on any non-permanent error until
// it succeeds, MaxAttempts is exhausted, or ctx is cancelled.
func (p Policy) Do(ctx context.Context, fn func() error) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = p.Base
	b.Multiplier = p.Factor
	b.MaxInterval = p.Cap
	b.MaxElapsedTime = 0 // bounded by MaxAttempts, not elapsed wall-clock

	var attempts int
	withCtx := backoff.WithContext(b, ctx)

	operation := func() error {
		attempts++
		err := fn()
		if err != nil && attempts >= p.MaxAttempts {
			return backoff.Permanent(err)
		}
		return err
	}

	return backoff.Retry(operation, withCtx)
}
