package contentful

import (
	"context"
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const (
	// HeaderRateLimitReset is the number of seconds until the next request is allowed.
	HeaderRateLimitReset = "X-Contentful-RateLimit-Reset"

	// HeaderSecondRemaining is the number of requests left in the current second.
	HeaderSecondRemaining = "X-Contentful-RateLimit-Second-Remaining"

	// HeaderRetryAfter is the standard retry hint, honoured as a fallback.
	HeaderRetryAfter = "Retry-After"
)

// RateLimiter combines proactive throttling with the reset hint from the
// last rate-limited response.
type RateLimiter struct {
	mu         sync.Mutex
	bucket     *rate.Limiter
	blockUntil time.Time
	now        func() time.Time
}

// NewRateLimiter creates a limiter allowing perSecond requests with a
// burst of the same size.
func NewRateLimiter(perSecond float64) *RateLimiter {
	burst := int(math.Max(1, math.Floor(perSecond)))
	return &RateLimiter{
		bucket: rate.NewLimiter(rate.Limit(perSecond), burst),
		now:    time.Now,
	}
}

// Wait blocks until a request may be sent.
func (r *RateLimiter) Wait(ctx context.Context) error {
	r.mu.Lock()
	wait := r.blockUntil.Sub(r.now())
	r.mu.Unlock()

	if wait > 0 {
		timer := time.NewTimer(wait)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
		}
	}
	return r.bucket.Wait(ctx)
}

// Observe records the server's reset hint from a 429 response.
func (r *RateLimiter) Observe(resp *http.Response) {
	if resp == nil || resp.StatusCode != http.StatusTooManyRequests {
		return
	}
	d := retryAfter(resp)
	if d <= 0 {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if until := r.now().Add(d); until.After(r.blockUntil) {
		r.blockUntil = until
	}
}

// retryAfter reads the wait hint from a response, preferring the
// Contentful header.
func retryAfter(resp *http.Response) time.Duration {
	if resp == nil {
		return 0
	}
	for _, h := range []string{HeaderRateLimitReset, HeaderRetryAfter} {
		if v := resp.Header.Get(h); v != "" {
			if secs, err := strconv.Atoi(v); err == nil && secs >= 0 {
				return time.Duration(secs) * time.Second
			}
		}
	}
	return 0
}
