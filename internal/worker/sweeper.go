// Package worker runs background maintenance loops.
package worker

import (
	"context"
	"time"

	"github.com/dtroode/authgate/internal/logger"
)

// ExpiredSweeper deletes expired refresh sessions.
type ExpiredSweeper interface {
	SweepExpired(ctx context.Context) (int64, error)
}

// Sweeper purges expired refresh sessions on a fixed interval. Verification
// already ignores expired sessions; sweeping only reclaims storage.
type Sweeper struct {
	sessions ExpiredSweeper
	interval time.Duration
	logger   *logger.Logger
}

func NewSweeper(sessions ExpiredSweeper, interval time.Duration, logger *logger.Logger) *Sweeper {
	return &Sweeper{sessions: sessions, interval: interval, logger: logger}
}

// Run sweeps every interval until ctx is done. A non-positive interval
// disables sweeping and returns immediately.
func (s *Sweeper) Run(ctx context.Context) {
	if s.interval <= 0 {
		s.logger.Info("Session sweeper: disabled")
		return
	}

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

func (s *Sweeper) sweep(ctx context.Context) {
	n, err := s.sessions.SweepExpired(ctx)
	if err != nil {
		s.logger.Error("Session sweeper: sweep failed",
			"error", err.Error())
		return
	}
	if n > 0 {
		s.logger.Info("Session sweeper: expired sessions deleted",
			"count", n)
	}
}
