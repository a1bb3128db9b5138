package session

import (
	"context"
	"time"

	"ventureflow/internal/logging"
)

// Sweeper periodically purges expired sessions. It satisfies suture.Service.
type Sweeper struct {
	manager  *Manager
	interval time.Duration
}

func NewSweeper(manager *Manager, interval time.Duration) *Sweeper {
	if interval <= 0 {
		interval = time.Hour
	}
	return &Sweeper{manager: manager, interval: interval}
}

func (s *Sweeper) Serve(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			s.sweepOnce(ctx)
		}
	}
}

func (s *Sweeper) sweepOnce(ctx context.Context) {
	n, err := s.manager.Sweep(ctx)
	if err != nil {
		logging.Error().Err(err).Msg("Session sweep failed")
		return
	}
	if n > 0 {
		logging.Info().Int("removed", n).Msg("Expired sessions swept")
	}
}

func (s *Sweeper) String() string {
	return "session-sweeper"
}
