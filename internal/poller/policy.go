package poller

import (
	"time"

	"github.com/cenkalti/backoff/v4"
)

// Policy describes how often and for how long a payment is polled
type Policy struct {
	Interval    time.Duration
	Multiplier  float64 // 1 or less keeps the interval fixed
	MaxInterval time.Duration
	MaxAttempts int           // 0 means unlimited
	MaxElapsed  time.Duration // 0 means unlimited
}

// Fixed polls every d
func Fixed(d time.Duration) Policy {
	return Policy{Interval: d, Multiplier: 1}
}

// Exponential starts at initial and grows by half each attempt up to max
func Exponential(initial, max time.Duration) Policy {
	return Policy{Interval: initial, Multiplier: 1.5, MaxInterval: max}
}

// DefaultPolicy polls every 3 seconds for at most 15 minutes
func DefaultPolicy() Policy {
	p := Fixed(3 * time.Second)
	p.MaxElapsed = 15 * time.Minute
	return p
}

// WithMaxAttempts returns a copy of p capped at n fetches
func (p Policy) WithMaxAttempts(n int) Policy {
	p.MaxAttempts = n
	return p
}

// WithMaxElapsed returns a copy of p capped at d of wall time
func (p Policy) WithMaxElapsed(d time.Duration) Policy {
	p.MaxElapsed = d
	return p
}

func (p Policy) backOff() backoff.BackOff {
	interval := p.Interval
	if interval <= 0 {
		interval = time.Second
	}
	if p.Multiplier <= 1 {
		return backoff.NewConstantBackOff(interval)
	}

	maxInterval := p.MaxInterval
	if maxInterval < interval {
		maxInterval = interval
	}
	b := backoff.NewExponentialBackOff(
		backoff.WithInitialInterval(interval),
		backoff.WithMultiplier(p.Multiplier),
		backoff.WithMaxInterval(maxInterval),
		backoff.WithRandomizationFactor(0),
		backoff.WithMaxElapsedTime(0),
	)
	b.Reset()
	return b
}
