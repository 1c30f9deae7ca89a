package fetch

import (
	"context"
	"errors"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// errReservation is returned when the token bucket refuses a reservation.
// With a burst of one this only happens for a zero limit, which MinInterval
// never produces.
var errReservation = errors.New("rate limiter refused reservation")

// MinInterval returns the minimum spacing between request starts for the
// given rate in requests per second. Rates below 1 are raised to 1.
func MinInterval(rateHz float64) time.Duration {
	if rateHz < 1 {
		rateHz = 1
	}
	return time.Duration(float64(time.Second) / rateHz)
}

// Limiter spaces request starts so that no two are closer than the interval
// derived from the caller's rate. It is safe for concurrent use; all callers
// sharing a Limiter share one budget.
type Limiter struct {
	mu       sync.Mutex
	bucket   *rate.Limiter
	interval time.Duration
}

// NewLimiter creates a Limiter. The first request is never delayed.
func NewLimiter() *Limiter {
	interval := MinInterval(1)
	return &Limiter{
		bucket:   rate.NewLimiter(rate.Every(interval), 1),
		interval: interval,
	}
}

// Wait blocks until a request may start at rateHz requests per second.
// It returns ctx.Err() if the context ends first, releasing the slot it had
// reserved.
func (l *Limiter) Wait(ctx context.Context, rateHz float64) error {
	interval := MinInterval(rateHz)

	l.mu.Lock()
	now := time.Now()
	if interval != l.interval {
		l.bucket.SetLimitAt(now, rate.Every(interval))
		l.interval = interval
	}
	r := l.bucket.ReserveN(now, 1)
	l.mu.Unlock()

	if !r.OK() {
		return errReservation
	}

	delay := r.DelayFrom(now)
	if delay <= 0 {
		return nil
	}

	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		r.Cancel()
		return ctx.Err()
	}
}

// Interval returns the interval applied by the most recent Wait.
func (l *Limiter) Interval() time.Duration {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.interval
}
