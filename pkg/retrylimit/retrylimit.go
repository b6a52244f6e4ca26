// Package retrylimit combines an adaptive rate limiter with retries for
// clients of rate-limited HTTP services. The limit grows while requests
// succeed and shrinks on 429 and 5xx responses.
//
//	lim := retrylimit.NewAdaptiveLimiter(10, 1, 20, 1, 0.5)
//	err := retrylimit.Do(ctx, lim, retrylimit.DefaultPolicy(), func() error {
//	    return doRequest(ctx)
//	})
package retrylimit

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"net/http"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

// AdaptiveLimiter is a token bucket whose rate follows request outcomes.
type AdaptiveLimiter struct {
	mu        sync.Mutex
	limiter   *rate.Limiter
	minLimit  rate.Limit
	maxLimit  rate.Limit
	stepUp    rate.Limit
	stepDown  float64
	lastError time.Time
}

// NewAdaptiveLimiter creates a limiter starting at initial requests per
// second, kept within [min, max]. Each success adds stepUp; each overload
// multiplies the rate by stepDown.
func NewAdaptiveLimiter(initial, min, max, stepUp rate.Limit, stepDown float64) *AdaptiveLimiter {
	min = rate.Limit(mathMax(float64(min), 1))
	initial = rate.Limit(mathMax(float64(initial), float64(min)))
	return &AdaptiveLimiter{
		limiter:  rate.NewLimiter(initial, int(mathMax(1, float64(initial)))),
		minLimit: min,
		maxLimit: max,
		stepUp:   stepUp,
		stepDown: stepDown,
	}
}

// Wait blocks until a token is available or ctx is done.
func (a *AdaptiveLimiter) Wait(ctx context.Context) error {
	return a.limiter.Wait(ctx)
}

// Success raises the rate unless an error was seen recently.
func (a *AdaptiveLimiter) Success() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if time.Since(a.lastError) > 10*time.Second {
		a.adjust(a.limiter.Limit() + a.stepUp)
	}
}

// RateLimited lowers the rate.
func (a *AdaptiveLimiter) RateLimited() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.lastError = time.Now()
	a.adjust(rate.Limit(float64(a.limiter.Limit()) * a.stepDown))
}

// CurrentLimit returns the current requests per second.
func (a *AdaptiveLimiter) CurrentLimit() float64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return float64(a.limiter.Limit())
}

func (a *AdaptiveLimiter) adjust(limit rate.Limit) {
	limit = min(max(limit, a.minLimit), a.maxLimit)
	if limit == a.limiter.Limit() {
		return
	}
	a.limiter.SetLimit(limit)
	a.limiter.SetBurst(int(mathMax(1, float64(limit))))
}

// StatusError is an error carrying an HTTP status code.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("unexpected status %d", e.Code)
	}
	return fmt.Sprintf("unexpected status %d: %s", e.Code, e.Body)
}

// Fatal marks err as not worth retrying.
func Fatal(err error) error {
	return &fatalError{err: err}
}

type fatalError struct {
	err error
}

func (f *fatalError) Error() string { return f.err.Error() }
func (f *fatalError) Unwrap() error { return f.err }

// Policy configures Do.
type Policy struct {
	MaxAttempts    int
	InitialDelay   time.Duration
	MaxDelay       time.Duration
	RateLimitDelay time.Duration
	Multiplier     float64
	Jitter         bool
	Log            *logrus.Entry
}

// DefaultPolicy retries a handful of times with exponential backoff.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts:    4,
		InitialDelay:   250 * time.Millisecond,
		MaxDelay:       5 * time.Second,
		RateLimitDelay: 500 * time.Millisecond,
		Multiplier:     2,
		Jitter:         true,
	}
}

// Do runs fn until it succeeds, returns a Fatal error, ctx ends or the
// attempts run out. Client errors other than 429 are not retried.
func Do(ctx context.Context, lim *AdaptiveLimiter, p Policy, fn func() error) error {
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = 1
	}
	log := p.Log
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}

	delay := p.InitialDelay
	var err error
	for attempt := 1; attempt <= p.MaxAttempts; attempt++ {
		if lim != nil {
			if werr := lim.Wait(ctx); werr != nil {
				return werr
			}
		}

		if err = fn(); err == nil {
			if lim != nil {
				lim.Success()
			}
			return nil
		}

		var fatal *fatalError
		if errors.As(err, &fatal) {
			return fatal.err
		}

		code := statusCode(err)
		switch {
		case code == http.StatusTooManyRequests:
			if lim != nil {
				lim.RateLimited()
			}
			log.WithFields(logrus.Fields{"attempt": attempt, "limit": currentLimit(lim)}).Warn("Rate limited")
			if werr := sleep(ctx, p.RateLimitDelay); werr != nil {
				return werr
			}
			continue
		case code >= 500:
			if lim != nil {
				lim.RateLimited()
			}
		case code >= 400:
			return err
		}

		if attempt == p.MaxAttempts {
			break
		}

		wait := delay
		if p.Jitter && wait > 0 {
			wait += time.Duration(rand.Int63n(int64(wait)/4 + 1))
		}
		log.WithError(err).WithFields(logrus.Fields{"attempt": attempt, "sleep": wait}).Debug("Request failed, retrying")
		if werr := sleep(ctx, wait); werr != nil {
			return werr
		}
		delay = min(time.Duration(float64(delay)*p.Multiplier), p.MaxDelay)
	}

	return fmt.Errorf("giving up after %d attempts: %w", p.MaxAttempts, err)
}

func statusCode(err error) int {
	var se *StatusError
	if errors.As(err, &se) {
		return se.Code
	}
	return 0
}

func currentLimit(lim *AdaptiveLimiter) float64 {
	if lim == nil {
		return 0
	}
	return lim.CurrentLimit()
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func mathMax(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}
