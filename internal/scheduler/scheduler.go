// server/internal/scheduler/scheduler.go
package scheduler

import (
	"context"
	"time"

	"github.com/freightbid/bidding-api/internal/auction"

	"github.com/sirupsen/logrus"
)

// Scheduler drives the time-based transitions: opening and closing
// auctions on a short tick, sweeping stale pending loads on a long one.
type Scheduler struct {
	lifecycle     *auction.LifecycleService
	tickInterval  time.Duration
	sweepInterval time.Duration
	log           *logrus.Logger
	stop          chan struct{}
}

func New(lifecycle *auction.LifecycleService, tickInterval, sweepInterval time.Duration, log *logrus.Logger) *Scheduler {
	return &Scheduler{
		lifecycle:     lifecycle,
		tickInterval:  tickInterval,
		sweepInterval: sweepInterval,
		log:           log,
		stop:          make(chan struct{}),
	}
}

func (s *Scheduler) Start(ctx context.Context) {
	go s.run(ctx, s.tickInterval, func() {
		s.lifecycle.OpenDueLoads(ctx)
		s.lifecycle.CloseDueLoads(ctx)
	})
	go s.run(ctx, s.sweepInterval, func() {
		s.lifecycle.CancelStalePending(ctx)
	})
	s.log.WithFields(logrus.Fields{
		"tick":  s.tickInterval,
		"sweep": s.sweepInterval,
	}).Info("scheduler started")
}

func (s *Scheduler) Stop() {
	close(s.stop)
}

func (s *Scheduler) run(ctx context.Context, interval time.Duration, job func()) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			job()
		case <-s.stop:
			return
		case <-ctx.Done():
			return
		}
	}
}
