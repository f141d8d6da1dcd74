// Package retry wraps the request pipeline with bounded, exponentially
// backed-off retries for transient failures.
package retry

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/mealkeeper/go-grocery-client/transport"
)

const (
	// DefaultMaxAttempts bounds the total number of attempts, first try
	// included.
	DefaultMaxAttempts = 3
	// DefaultBaseDelay is the delay before the first retry; it doubles on
	// each further attempt.
	DefaultBaseDelay = 250 * time.Millisecond
)

// retryable is the transient set. Validation, Conflict, Forbidden, Cancelled
// and post-refresh Unauthorized are never retried here - Unauthorized is the
// gate's business and settles before this layer sees it.
var retryable = map[transport.Kind]bool{
	transport.KindNetwork:     true,
	transport.KindRateLimited: true,
	transport.KindServer:      true,
}

// Policy implements transport.Doer by re-entering the wrapped pipeline on
// transient failures. Each attempt goes through the full pipeline, so a retry
// can itself trigger the refresh gate if the token expired mid-backoff.
type Policy struct {
	inner       transport.Doer
	maxAttempts int
	baseDelay   time.Duration
	sleep       func(ctx context.Context, d time.Duration) error
	log         zerolog.Logger
}

var _ transport.Doer = (*Policy)(nil)

type PolicyOption func(*Policy)

// WithMaxAttempts overrides the attempt bound.
func WithMaxAttempts(n int) PolicyOption {
	return func(p *Policy) {
		p.maxAttempts = n
	}
}

// WithBaseDelay overrides the first retry delay.
func WithBaseDelay(d time.Duration) PolicyOption {
	return func(p *Policy) {
		p.baseDelay = d
	}
}

// WithSleep overrides the inter-attempt wait (primarily for tests).
func WithSleep(sleep func(ctx context.Context, d time.Duration) error) PolicyOption {
	return func(p *Policy) {
		p.sleep = sleep
	}
}

// WithLogger sets the policy logger.
func WithLogger(log zerolog.Logger) PolicyOption {
	return func(p *Policy) {
		p.log = log
	}
}

// NewPolicy wraps inner with the retry policy.
func NewPolicy(inner transport.Doer, options ...PolicyOption) (*Policy, error) {
	if inner == nil {
		return nil, errors.New("[NewPolicy] inner doer is required")
	}
	p := &Policy{
		inner:       inner,
		maxAttempts: DefaultMaxAttempts,
		baseDelay:   DefaultBaseDelay,
		sleep:       sleepContext,
		log:         zerolog.Nop(),
	}
	for _, opt := range options {
		opt(p)
	}
	if p.maxAttempts < 1 {
		p.maxAttempts = 1
	}
	return p, nil
}

// Do issues the request, retrying transient failures with doubling delays
// until the attempt bound is reached. The last failure surfaces unchanged.
func (p *Policy) Do(ctx context.Context, req *transport.Request) (*transport.Response, error) {
	delay := p.baseDelay
	var lastErr error

	for attempt := 1; attempt <= p.maxAttempts; attempt++ {
		resp, err := p.inner.Do(ctx, req)
		if err == nil {
			return resp, nil
		}
		lastErr = err

		if !retryable[transport.KindOf(err)] || attempt == p.maxAttempts {
			return nil, err
		}

		p.log.Debug().Str("path", req.Path).Int("attempt", attempt).
			Dur("delay", delay).Err(err).Msg("transient failure, retrying")
		if serr := p.sleep(ctx, delay); serr != nil {
			return nil, transport.NewError(transport.KindCancelled, 0, "cancelled during retry backoff", serr)
		}
		delay *= 2
	}
	return nil, lastErr
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
