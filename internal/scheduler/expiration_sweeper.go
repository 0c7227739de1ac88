package scheduler

import (
	"context"
	"time"

	"referral_network_backend/platform/logger"
)

const defaultSweepInterval = 5 * time.Minute

// LeadSweeper is the bulk expiration entrypoint on the lead lifecycle.
type LeadSweeper interface {
	SweepExpired(ctx context.Context) (int, error)
}

// ExpirationSweeper periodically expires overdue pending leads. It backstops
// the per-lead expiration tasks: if a task is lost or Redis is down, the
// sweep still closes the lead on its next pass.
type ExpirationSweeper struct {
	leads    LeadSweeper
	log      *logger.Logger
	interval time.Duration
}

func NewExpirationSweeper(leads LeadSweeper, log *logger.Logger, interval time.Duration) *ExpirationSweeper {
	if interval <= 0 {
		interval = defaultSweepInterval
	}

	return &ExpirationSweeper{
		leads:    leads,
		log:      log,
		interval: interval,
	}
}

func (s *ExpirationSweeper) Run(ctx context.Context) {
	if s == nil || s.leads == nil {
		return
	}

	s.sweep(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

func (s *ExpirationSweeper) sweep(ctx context.Context) {
	expired, err := s.leads.SweepExpired(ctx)
	if err != nil {
		s.log.Warn("lead expiration sweep failed", "error", err)
		return
	}

	if expired > 0 {
		s.log.Info("lead expiration sweep closed overdue leads", "expired", expired)
	}
}
