package service

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

type statusTransitioner interface {
	TransitionStatuses(ctx context.Context, now time.Time) (int64, error)
}

// RolloverService periodically sweeps the event table, promoting allocated
// jobs to in_progress at their start time and in_progress jobs to completed
// at their end time. Jobs flagged with issues are never touched.
type RolloverService struct {
	repo     statusTransitioner
	cache    *CacheService
	logger   *zap.Logger
	schedule string
	cron     *cron.Cron
}

// NewRolloverService constructs the rollover worker.
func NewRolloverService(repo statusTransitioner, cache *CacheService, schedule string, logger *zap.Logger) *RolloverService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if schedule == "" {
		schedule = "*/5 * * * *"
	}
	return &RolloverService{repo: repo, cache: cache, logger: logger, schedule: schedule}
}

// Start registers the cron entry and begins sweeping. Returns an error for an
// unparsable schedule.
func (s *RolloverService) Start(ctx context.Context) error {
	c := cron.New()
	if _, err := c.AddFunc(s.schedule, func() { s.Sweep(ctx) }); err != nil {
		return err
	}
	s.cron = c
	c.Start()
	s.logger.Info("status rollover started", zap.String("schedule", s.schedule))
	return nil
}

// Stop halts the cron scheduler and waits for a running sweep to finish.
func (s *RolloverService) Stop() {
	if s.cron == nil {
		return
	}
	<-s.cron.Stop().Done()
	s.logger.Info("status rollover stopped")
}

// Sweep runs a single transition pass.
func (s *RolloverService) Sweep(ctx context.Context) {
	moved, err := s.repo.TransitionStatuses(ctx, time.Now())
	if err != nil {
		s.logger.Warn("status rollover sweep failed", zap.Error(err))
		return
	}
	if moved == 0 {
		return
	}
	s.logger.Info("status rollover sweep", zap.Int64("transitioned", moved))
	if err := s.cache.InvalidatePattern(ctx, viewCachePrefix+"*"); err != nil {
		s.logger.Warn("view cache invalidation failed", zap.Error(err))
	}
}
