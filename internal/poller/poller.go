// Package poller polls the payment status endpoint until a payment reaches a
// terminal state.
package poller

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/cashflow/pix-gateway/internal/core"
)

var (
	// ErrMaxAttempts is returned when the attempt cap is reached
	ErrMaxAttempts = errors.New("poller: max attempts reached")
	// ErrTimeout is returned when the elapsed time cap is reached
	ErrTimeout = errors.New("poller: timed out")
)

// Source fetches the current confirmation for an identifier.
// core.ErrNotFound means the payment is still pending.
type Source interface {
	Fetch(ctx context.Context, identifier string) (*core.PaymentConfirmation, error)
}

// Callbacks are invoked as the poller observes the payment.
// Exactly one terminal callback runs, at most once per Run.
type Callbacks struct {
	OnPaid     func(*core.PaymentConfirmation)
	OnDenied   func(*core.PaymentConfirmation)
	OnExpired  func(*core.PaymentConfirmation)
	OnCanceled func(*core.PaymentConfirmation)
	OnRefunded func(*core.PaymentConfirmation)
	OnUpdate   func(*core.PaymentConfirmation)
}

// Poller repeatedly queries a Source following a Policy
type Poller struct {
	source    Source
	policy    Policy
	callbacks Callbacks
	logger    *zap.Logger

	mu     sync.Mutex
	paused bool
	wake   chan struct{}
}

// New creates a poller
func New(source Source, policy Policy, callbacks Callbacks, logger *zap.Logger) *Poller {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Poller{
		source:    source,
		policy:    policy,
		callbacks: callbacks,
		logger:    logger,
		wake:      make(chan struct{}, 1),
	}
}

// Pause stops fetching until Resume is called
func (p *Poller) Pause() {
	p.mu.Lock()
	p.paused = true
	p.mu.Unlock()
}

// Resume restarts fetching and triggers an immediate fetch
func (p *Poller) Resume() {
	p.mu.Lock()
	wasPaused := p.paused
	p.paused = false
	p.mu.Unlock()
	if !wasPaused {
		return
	}
	select {
	case p.wake <- struct{}{}:
	default:
	}
}

func (p *Poller) isPaused() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.paused
}

// Run polls identifier until the payment is terminal, ctx is done or a cap
// from the policy is reached.
func (p *Poller) Run(ctx context.Context, identifier string) (*core.PaymentConfirmation, error) {
	b := p.policy.backOff()
	start := time.Now()
	logger := p.logger.With(zap.String("identifier", identifier))

	var deadline <-chan time.Time
	if p.policy.MaxElapsed > 0 {
		limit := time.NewTimer(p.policy.MaxElapsed)
		defer limit.Stop()
		deadline = limit.C
	}

	var (
		last     *core.PaymentConfirmation
		lastErr  error
		attempts int
	)
	for {
		for p.isPaused() {
			select {
			case <-ctx.Done():
				return last, ctx.Err()
			case <-deadline:
				return last, capError(ErrTimeout, lastErr)
			case <-p.wake:
			}
		}
		if p.policy.MaxElapsed > 0 && time.Since(start) >= p.policy.MaxElapsed {
			return last, capError(ErrTimeout, lastErr)
		}

		attempts++
		c, err := p.source.Fetch(ctx, identifier)
		switch {
		case err == nil:
			last, lastErr = c, nil
			if p.callbacks.OnUpdate != nil {
				p.callbacks.OnUpdate(c)
			}
			if c.IsTerminal() {
				p.dispatch(c)
				logger.Debug("payment reached terminal state",
					zap.String("outcome", string(c.Outcome())), zap.Int("attempts", attempts))
				return c, nil
			}
		case ctx.Err() != nil:
			return last, ctx.Err()
		case errors.Is(err, core.ErrNotFound):
			lastErr = nil
		default:
			lastErr = err
			logger.Warn("status fetch failed", zap.Int("attempt", attempts), zap.Error(err))
		}

		if p.policy.MaxAttempts > 0 && attempts >= p.policy.MaxAttempts {
			return last, capError(ErrMaxAttempts, lastErr)
		}

		wait := b.NextBackOff()
		if p.policy.MaxElapsed > 0 && time.Since(start)+wait > p.policy.MaxElapsed {
			return last, capError(ErrTimeout, lastErr)
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return last, ctx.Err()
		case <-timer.C:
		case <-deadline:
			timer.Stop()
			return last, capError(ErrTimeout, lastErr)
		case <-p.wake:
			timer.Stop()
		}
	}
}

func (p *Poller) dispatch(c *core.PaymentConfirmation) {
	var cb func(*core.PaymentConfirmation)
	switch c.Outcome() {
	case core.OutcomePaid:
		cb = p.callbacks.OnPaid
	case core.OutcomeDenied:
		cb = p.callbacks.OnDenied
	case core.OutcomeExpired:
		cb = p.callbacks.OnExpired
	case core.OutcomeCanceled:
		cb = p.callbacks.OnCanceled
	case core.OutcomeRefunded:
		cb = p.callbacks.OnRefunded
	}
	if cb != nil {
		cb(c)
	}
}

func capError(sentinel, last error) error {
	if last == nil {
		return sentinel
	}
	return fmt.Errorf("%w: last error: %w", sentinel, last)
}
