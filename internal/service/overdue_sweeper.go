package service

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
)

// OverdueSweeper periodically re-evaluates overdue state across all
// active loans. The sweep itself is idempotent, so overlapping or
// repeated runs are harmless.
type OverdueSweeper struct {
	loans    *LoanService
	interval time.Duration
	stopCh   chan struct{}
	doneCh   chan struct{}
}

// NewOverdueSweeper creates a sweeper that runs every interval
func NewOverdueSweeper(loans *LoanService, interval time.Duration) *OverdueSweeper {
	return &OverdueSweeper{
		loans:    loans,
		interval: interval,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
}

// Start launches the sweep loop. An initial sweep runs immediately so a
// restarted service catches up on anything missed while down.
func (s *OverdueSweeper) Start() {
	go func() {
		defer close(s.doneCh)

		s.runOnce()
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				s.runOnce()
			case <-s.stopCh:
				return
			}
		}
	}()
}

// Stop halts the sweep loop and waits for the current run to finish
func (s *OverdueSweeper) Stop() {
	close(s.stopCh)
	<-s.doneCh
}

func (s *OverdueSweeper) runOnce() {
	ctx, cancel := context.WithTimeout(context.Background(), s.interval)
	defer cancel()

	now := time.Now().UTC()
	count, err := s.loans.SweepOverdue(ctx, now)
	if err != nil {
		log.Error().Err(err).Msg("overdue sweep failed")
		return
	}
	if count > 0 {
		log.Info().Int("transitioned", count).Msg("overdue sweep flagged loans")
	}
}
