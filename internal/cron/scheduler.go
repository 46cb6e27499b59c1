package cron

import (
	"context"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"vendbot/internal/purchase"
)

// Scheduler drives the periodic expiry sweep. The sweep itself is a
// synchronous idempotent orchestrator call, so missed or repeated runs
// are harmless.
type Scheduler struct {
	cron         *cron.Cron
	orchestrator *purchase.Orchestrator
	logger       *zap.Logger
}

func New(orchestrator *purchase.Orchestrator, logger *zap.Logger) *Scheduler {
	return &Scheduler{
		cron:         cron.New(),
		orchestrator: orchestrator,
		logger:       logger,
	}
}

// Start registers the jobs and launches the cron loop.
func (s *Scheduler) Start() {
	// Hourly expiry sweep.
	_, err := s.cron.AddFunc("@hourly", s.runExpirySweep)
	if err != nil {
		s.logger.Error("failed to register expiry sweep", zap.Error(err))
		return
	}
	s.cron.Start()
	s.logger.Info("cron scheduler started")
}

// Stop halts the scheduler and returns a context that completes when
// running jobs finish.
func (s *Scheduler) Stop() context.Context {
	return s.cron.Stop()
}

func (s *Scheduler) runExpirySweep() {
	count, err := s.orchestrator.DeactivateExpired(context.Background())
	if err != nil {
		s.logger.Error("expiry sweep failed", zap.Error(err))
		return
	}
	if count > 0 {
		s.logger.Info("expiry sweep deactivated services", zap.Int("count", count))
	}
}
