// Package scheduler runs periodic maintenance jobs.
package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/cashflow/pix-gateway/internal/port/output"
)

// Sweeper removes expired confirmations on a cron schedule
type Sweeper struct {
	store  output.ConfirmationStore
	cron   *cron.Cron
	logger *zap.Logger
	now    func() time.Time
}

// NewSweeper registers the sweep job on schedule, e.g. "@every 1m"
func NewSweeper(store output.ConfirmationStore, schedule string, logger *zap.Logger) (*Sweeper, error) {
	s := &Sweeper{
		store:  store,
		cron:   cron.New(),
		logger: logger,
		now:    time.Now,
	}
	if _, err := s.cron.AddFunc(schedule, func() { s.Sweep(context.Background()) }); err != nil {
		return nil, fmt.Errorf("invalid sweep schedule %q: %w", schedule, err)
	}
	return s, nil
}

// Start runs the schedule in the background
func (s *Sweeper) Start() {
	s.cron.Start()
}

// Stop waits for a running sweep to finish
func (s *Sweeper) Stop() {
	<-s.cron.Stop().Done()
}

// Sweep deletes every expired confirmation once
func (s *Sweeper) Sweep(ctx context.Context) int {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	n, err := s.store.DeleteExpired(ctx, s.now())
	if err != nil {
		s.logger.Error("expiry sweep failed", zap.Error(err))
		return 0
	}
	if n > 0 {
		s.logger.Info("expired confirmations removed", zap.Int("count", n))
	}
	return n
}
