package geocode

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"github.com/heritage-atlas/heritage-cli/internal/resilience"
)

func newTestClient(p Provider) *Client {
	return NewClient(p,
		WithLimiter(rate.NewLimiter(rate.Inf, 1)),
		WithRetry(resilience.RetryConfig{MaxAttempts: 3, Wait: time.Millisecond}),
	)
}

func TestClientLookup_TransientThenSuccess(t *testing.T) {
	var calls atomic.Int32
	p := ProviderFunc(func(_ context.Context, _ string) Outcome {
		if calls.Add(1) < 3 {
			return Transient(errors.New("503 service unavailable"))
		}
		return Matched(Result{Latitude: 28.6562, Longitude: 77.241})
	})

	out := newTestClient(p).Lookup(context.Background(), "Red Fort, Delhi, Delhi")
	require.Equal(t, KindMatched, out.Kind)
	assert.InDelta(t, 28.6562, out.Result.Latitude, 1e-9)
	assert.Equal(t, int32(3), calls.Load())
	assert.Equal(t, 3, out.Attempts)
}

func TestClientLookup_TransientExhausted(t *testing.T) {
	var calls atomic.Int32
	p := ProviderFunc(func(_ context.Context, _ string) Outcome {
		calls.Add(1)
		return Transient(errors.New("timeout"))
	})

	out := newTestClient(p).Lookup(context.Background(), "Hampi")
	assert.Equal(t, KindTransient, out.Kind)
	assert.Error(t, out.Err)
	assert.Equal(t, int32(3), calls.Load())
}

func TestClientLookup_NoMatchNotRetried(t *testing.T) {
	var calls atomic.Int32
	p := ProviderFunc(func(_ context.Context, _ string) Outcome {
		calls.Add(1)
		return NoMatch()
	})

	out := newTestClient(p).Lookup(context.Background(), "Nowhere")
	assert.Equal(t, KindNoMatch, out.Kind)
	assert.Equal(t, int32(1), calls.Load())
}

func TestClientLookup_PermanentNotRetried(t *testing.T) {
	var calls atomic.Int32
	p := ProviderFunc(func(_ context.Context, _ string) Outcome {
		calls.Add(1)
		return Permanent(errors.New("request denied"))
	})

	out := newTestClient(p).Lookup(context.Background(), "Konark")
	assert.Equal(t, KindPermanent, out.Kind)
	assert.Equal(t, int32(1), calls.Load())
}

func TestClientLookup_TransientWithoutError(t *testing.T) {
	p := ProviderFunc(func(_ context.Context, _ string) Outcome {
		return Outcome{Kind: KindTransient}
	})

	out := newTestClient(p).Lookup(context.Background(), "Sanchi")
	assert.Equal(t, KindTransient, out.Kind)
	assert.Error(t, out.Err)
}

func TestClientLookup_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var calls atomic.Int32
	p := ProviderFunc(func(_ context.Context, _ string) Outcome {
		calls.Add(1)
		return NoMatch()
	})

	c := NewClient(p, WithMinDelay(time.Hour))
	out := c.Lookup(ctx, "Ajanta Caves")
	assert.Equal(t, KindSkipped, out.Kind)
	assert.Equal(t, 0, out.Attempts)
	assert.Equal(t, int32(0), calls.Load())
}

func TestClientLookup_LimiterWaitPastDeadlineIsSkipped(t *testing.T) {
	var calls atomic.Int32
	p := ProviderFunc(func(_ context.Context, _ string) Outcome {
		calls.Add(1)
		return NoMatch()
	})
	c := NewClient(p, WithMinDelay(time.Hour))

	// The first call takes the only token; the second would have to wait
	// an hour, past the deadline, while ctx itself is still live.
	c.Lookup(context.Background(), "Sanchi Stupa")
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	out := c.Lookup(ctx, "Ajanta Caves")
	require.NoError(t, ctx.Err())
	assert.Equal(t, KindSkipped, out.Kind)
	assert.Equal(t, 0, out.Attempts)
	assert.Error(t, out.Err)
	assert.Equal(t, int32(1), calls.Load())
}

func TestClientLookup_MinDelaySpacesCalls(t *testing.T) {
	var stamps []time.Time
	p := ProviderFunc(func(_ context.Context, _ string) Outcome {
		stamps = append(stamps, time.Now())
		return NoMatch()
	})

	c := NewClient(p, WithMinDelay(30*time.Millisecond))
	for range 3 {
		c.Lookup(context.Background(), "Ellora Caves")
	}

	require.Len(t, stamps, 3)
	for i := 1; i < len(stamps); i++ {
		assert.GreaterOrEqual(t, stamps[i].Sub(stamps[i-1]), 25*time.Millisecond)
	}
}

func TestClientLookup_BreakerSkipsProviderWhenOpen(t *testing.T) {
	var calls atomic.Int32
	p := ProviderFunc(func(_ context.Context, _ string) Outcome {
		calls.Add(1)
		return Transient(errors.New("503 service unavailable"))
	})

	cb := resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{FailureThreshold: 2, Cooldown: time.Hour})
	c := NewClient(p,
		WithLimiter(rate.NewLimiter(rate.Inf, 1)),
		WithRetry(resilience.RetryConfig{MaxAttempts: 2, Wait: time.Millisecond}),
		WithBreaker(cb),
	)

	c.Lookup(context.Background(), "Hampi")
	c.Lookup(context.Background(), "Konark Sun Temple")
	require.Equal(t, int32(4), calls.Load())
	require.Equal(t, resilience.CircuitOpen, cb.State())

	out := c.Lookup(context.Background(), "Khajuraho")
	assert.Equal(t, KindSkipped, out.Kind)
	assert.Equal(t, 0, out.Attempts)
	assert.ErrorIs(t, out.Err, resilience.ErrCircuitOpen)
	assert.Equal(t, int32(4), calls.Load())
}

func TestClientLookup_BreakerResetByNoMatch(t *testing.T) {
	cb := resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{FailureThreshold: 2, Cooldown: time.Hour})
	fail := true
	p := ProviderFunc(func(_ context.Context, _ string) Outcome {
		if fail {
			return Transient(errors.New("timeout"))
		}
		return NoMatch()
	})
	c := NewClient(p,
		WithLimiter(rate.NewLimiter(rate.Inf, 1)),
		WithRetry(resilience.RetryConfig{MaxAttempts: 1}),
		WithBreaker(cb),
	)

	c.Lookup(context.Background(), "a")
	fail = false
	c.Lookup(context.Background(), "b")
	fail = true
	c.Lookup(context.Background(), "c")

	assert.Equal(t, resilience.CircuitClosed, cb.State())
}

func TestKind_String(t *testing.T) {
	assert.Equal(t, "matched", KindMatched.String())
	assert.Equal(t, "no_match", KindNoMatch.String())
	assert.Equal(t, "transient", KindTransient.String())
	assert.Equal(t, "permanent", KindPermanent.String())
	assert.Equal(t, "skipped", KindSkipped.String())
	assert.Equal(t, "kind(9)", Kind(9).String())
}
