package discovery

import (
	"context"
	"errors"
	"fmt"
	"math/bits"
	"time"

	"github.com/cenkalti/backoff/v4"
	e "github.com/gartstein/companydir/internal/directory/errors"
	"github.com/gartstein/companydir/internal/directory/search"
)

const (
	DefaultRetryUnit = time.Second
	DefaultRetryCap  = 64 * time.Second
)

// RetryPolicy retries transient failures with a doubling delay starting at
// Unit and ending at Cap. Once the delay reaching Cap has been waited the
// policy gives up with ErrRetriesExhausted.
type RetryPolicy struct {
	Unit time.Duration
	Cap  time.Duration
}

func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{Unit: DefaultRetryUnit, Cap: DefaultRetryCap}
}

// Retries is the number of retries after the first attempt.
func (p RetryPolicy) Retries() uint64 {
	unit, limit := p.bounds()
	return uint64(bits.Len64(uint64(limit / unit)))
}

func (p RetryPolicy) bounds() (time.Duration, time.Duration) {
	unit, limit := p.Unit, p.Cap
	if unit <= 0 {
		unit = DefaultRetryUnit
	}
	if limit < unit {
		limit = unit
	}
	return unit, limit
}

func (p RetryPolicy) backOff(ctx context.Context) backoff.BackOff {
	unit, limit := p.bounds()
	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = unit
	exp.Multiplier = 2
	exp.RandomizationFactor = 0
	exp.MaxInterval = limit
	exp.MaxElapsedTime = 0
	exp.Reset()
	return backoff.WithContext(backoff.WithMaxRetries(exp, p.Retries()), ctx)
}

// Do runs fn until it succeeds, fails terminally, the retries run out or
// ctx is cancelled. search.ErrInvalidResponse is terminal and returned as is.
func (p RetryPolicy) Do(ctx context.Context, fn func(context.Context) error) error {
	var last error
	err := backoff.Retry(func() error {
		err := fn(ctx)
		if err == nil {
			return nil
		}
		last = err
		if errors.Is(err, search.ErrInvalidResponse) || ctx.Err() != nil {
			return backoff.Permanent(err)
		}
		return err
	}, p.backOff(ctx))

	switch {
	case err == nil:
		return nil
	case ctx.Err() != nil:
		return ctx.Err()
	case errors.Is(err, search.ErrInvalidResponse):
		return err
	default:
		return fmt.Errorf("%w: %w", e.ErrRetriesExhausted, last)
	}
}
