package embedding

import (
	"context"

	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"
)

// ThrottleOptions configures a Throttled embedder.
type ThrottleOptions struct {
	// RequestsPerSecond is the sustained request rate against the
	// underlying provider. If 0, the rate is unlimited.
	RequestsPerSecond float64

	// Burst is the rate limiter burst size. Defaults to 1 when a rate is set.
	Burst int

	// MaxConcurrency is the maximum number of in-flight Embed calls.
	// If 0, concurrency is unlimited.
	MaxConcurrency int64
}

// DefaultThrottleOptions returns sensible defaults for hosted embedding
// APIs.
var DefaultThrottleOptions = ThrottleOptions{
	RequestsPerSecond: 10,
	Burst:             5,
	MaxConcurrency:    4,
}

// Throttled wraps an Embedder with rate limiting and a concurrency cap.
// Hosted embedding APIs enforce both; applying them client-side keeps bulk
// imports from tripping provider-side rejections.
type Throttled struct {
	inner   Embedder
	limiter *rate.Limiter       // nil if unlimited
	sem     *semaphore.Weighted // nil if unlimited
}

// NewThrottled wraps the given embedder.
func NewThrottled(inner Embedder, optFns ...func(o *ThrottleOptions)) *Throttled {
	opts := DefaultThrottleOptions

	for _, fn := range optFns {
		fn(&opts)
	}

	t := &Throttled{inner: inner}

	if opts.RequestsPerSecond > 0 {
		burst := opts.Burst
		if burst <= 0 {
			burst = 1
		}
		t.limiter = rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), burst)
	}

	if opts.MaxConcurrency > 0 {
		t.sem = semaphore.NewWeighted(opts.MaxConcurrency)
	}

	return t
}

// Embed waits for rate and concurrency budget, then delegates to the
// wrapped embedder.
func (t *Throttled) Embed(ctx context.Context, text string) ([]float32, error) {
	if t.sem != nil {
		if err := t.sem.Acquire(ctx, 1); err != nil {
			return nil, err
		}
		defer t.sem.Release(1)
	}

	if t.limiter != nil {
		if err := t.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}

	return t.inner.Embed(ctx, text)
}

// Dimension returns the dimensionality of the wrapped embedder.
func (t *Throttled) Dimension() int {
	return t.inner.Dimension()
}
