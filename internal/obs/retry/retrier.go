// Package retry runs an operation under a bounded retry policy and reports
// attempts to Prometheus and the active span.
package retry

import (
	"context"
	"errors"
	"math/rand/v2"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

type Backoff interface {
	Next(attempt int) time.Duration
}

// ExpoJitter doubles Base per attempt up to Max, then spreads the result by
// ±Jitter (a fraction, 0.2 means ±20%).
type ExpoJitter struct {
	Base   time.Duration
	Max    time.Duration
	Jitter float64
}

func (b ExpoJitter) Next(attempt int) time.Duration {
	d := b.Base
	for range max(attempt, 0) {
		if b.Max > 0 && d >= b.Max {
			break
		}
		d *= 2
	}
	if b.Max > 0 {
		d = min(d, b.Max)
	}
	if b.Jitter > 0 {
		d = time.Duration(float64(d) * (1 + (rand.Float64()*2-1)*b.Jitter))
	}
	return d
}

type Policy struct {
	Name      string
	Attempts  int
	Backoff   Backoff
	Retryable func(error) bool
	OnAttempt func(attempt int, err error)
	OnExhaust func(lastErr error)
}

func (p Policy) normalized() Policy {
	if p.Name == "" {
		p.Name = "default"
	}
	p.Attempts = max(p.Attempts, 1)
	if p.Retryable == nil {
		p.Retryable = func(err error) bool { return err != nil }
	}
	if p.Backoff == nil {
		p.Backoff = ExpoJitter{Base: 100 * time.Millisecond, Max: 5 * time.Second}
	}
	return p
}

type permanent struct{ err error }

func (p permanent) Error() string { return p.err.Error() }
func (p permanent) Unwrap() error { return p.err }

// Permanent marks err as not worth another attempt regardless of the policy.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return permanent{err: err}
}

func IsPermanent(err error) bool {
	var p permanent
	return errors.As(err, &p)
}

var (
	attemptsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "posecoach_retry_attempts_total",
		Help: "Calls made under a retry policy, first attempt included.",
	}, []string{"name"})
	exhaustedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "posecoach_retry_exhausted_total",
		Help: "Operations that gave up, either out of attempts or on a non-retryable error.",
	}, []string{"name"})
	durationSeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "posecoach_retry_duration_seconds",
		Help:    "Wall time spent in Do, successful or not.",
		Buckets: prometheus.DefBuckets,
	}, []string{"name"})
)

// Do calls fn until it succeeds, the error is permanent or not retryable,
// attempts run out, or ctx ends while waiting.
func Do(ctx context.Context, fn func() error, p Policy) error {
	p = p.normalized()
	start := time.Now()
	defer func() { durationSeconds.WithLabelValues(p.Name).Observe(time.Since(start).Seconds()) }()

	span := trace.SpanFromContext(ctx)
	var err error
	for attempt := range p.Attempts {
		attemptsTotal.WithLabelValues(p.Name).Inc()
		if err = fn(); err == nil {
			return nil
		}
		if p.OnAttempt != nil {
			p.OnAttempt(attempt, err)
		}
		span.AddEvent("retry.attempt", trace.WithAttributes(
			attribute.String("retry.name", p.Name),
			attribute.Int("retry.attempt", attempt+1),
		))

		last := attempt == p.Attempts-1
		if last || IsPermanent(err) || !p.Retryable(err) {
			break
		}
		if !wait(ctx, p.Backoff.Next(attempt)) {
			return ctx.Err()
		}
	}

	exhaustedTotal.WithLabelValues(p.Name).Inc()
	if p.OnExhaust != nil {
		p.OnExhaust(err)
	}
	return err
}

func wait(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
