package geocode

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/heritage-atlas/heritage-cli/internal/resilience"
)

// Option configures a Client.
type Option func(*Client)

// WithMinDelay sets the minimum pause between two provider calls.
// Nominatim's usage policy asks for at most one request per second.
func WithMinDelay(d time.Duration) Option {
	return func(c *Client) {
		if d <= 0 {
			c.limiter = rate.NewLimiter(rate.Inf, 1)
			return
		}
		c.limiter = rate.NewLimiter(rate.Every(d), 1)
	}
}

// WithLimiter shares an existing limiter, e.g. across several clients that
// hit the same provider account.
func WithLimiter(l *rate.Limiter) Option {
	return func(c *Client) {
		c.limiter = l
	}
}

// WithRetry sets the retry policy for transient provider failures.
func WithRetry(cfg resilience.RetryConfig) Option {
	return func(c *Client) {
		c.retry = cfg
	}
}

// WithBreaker stops calling the provider after a run of lookups that ended
// in exhausted retries. Rejected lookups are KindSkipped with
// resilience.ErrCircuitOpen.
func WithBreaker(cb *resilience.CircuitBreaker) Option {
	return func(c *Client) {
		c.breaker = cb
	}
}

// Client wraps a Provider with global pacing and bounded retries. Every
// attempt, retries included, takes a token from the limiter.
type Client struct {
	provider Provider
	limiter  *rate.Limiter
	retry    resilience.RetryConfig
	breaker  *resilience.CircuitBreaker
}

// NewClient creates a Client for the given provider. By default calls are
// one second apart and transient failures are retried twice, two seconds
// apart.
func NewClient(p Provider, opts ...Option) *Client {
	c := &Client{
		provider: p,
		limiter:  rate.NewLimiter(rate.Every(time.Second), 1),
		retry:    resilience.DefaultRetryConfig(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.retry.OnRetry == nil {
		c.retry.OnRetry = resilience.RetryLogger(p.Name(), "geocode")
	}
	return c
}

// Provider returns the wrapped provider's name.
func (c *Client) Provider() string { return c.provider.Name() }

// Lookup resolves address. Transient outcomes are retried; when the attempts
// run out the last transient outcome is returned. Lookup never returns an
// error: failures are carried in the Outcome. When the provider is never
// called, because the breaker is open or ctx ends before the limiter grants
// a slot, the Outcome is KindSkipped with Attempts == 0.
func (c *Client) Lookup(ctx context.Context, address string) Outcome {
	if err := c.breaker.Allow(); err != nil {
		return Skipped(eris.Wrap(err, "geocode: provider unavailable"))
	}

	attempts := 0
	var last Outcome
	out, err := resilience.DoVal(ctx, c.retry, func(ctx context.Context) (Outcome, error) {
		if err := c.limiter.Wait(ctx); err != nil {
			if attempts == 0 {
				return Skipped(eris.Wrap(err, "geocode: rate limit wait")), err
			}
			// Keep what the provider last said; the wait error stops retrying.
			return last, err
		}
		attempts++

		o := c.provider.Geocode(ctx, address)
		last = o
		if o.Kind == KindTransient {
			if o.Err == nil {
				o.Err = eris.New("geocode: transient provider failure")
			}
			return o, resilience.NewTransientError(o.Err, 0)
		}
		return o, nil
	})
	out.Attempts = attempts
	if out.Kind != KindSkipped && ctx.Err() == nil {
		c.breaker.Record(out.Kind == KindTransient)
	}

	if err != nil && out.Kind == KindTransient {
		zap.L().Debug("geocode: retries exhausted",
			zap.String("provider", c.provider.Name()),
			zap.String("address", address),
			zap.Int("attempts", attempts),
			zap.Error(err),
		)
	}
	return out
}
