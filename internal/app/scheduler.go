/**
 * @description
 * Cron scheduler setup for the maintenance jobs.
 */
package app

import (
	"context"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// ScheduleConfig holds the cron expressions of each job. An empty expression
// disables that job.
type ScheduleConfig struct {
	OutboxPurge     string
	BalanceSnapshot string
}

// Scheduler manages the cron jobs.
type Scheduler struct {
	cron   *cron.Cron
	jobs   *Jobs
	logger *zap.Logger
	config ScheduleConfig
}

// NewScheduler creates a new scheduler instance.
func NewScheduler(jobs *Jobs, logger *zap.Logger, cfg ScheduleConfig) *Scheduler {
	cronLogger := cron.PrintfLogger(zap.NewStdLog(logger))
	c := cron.New(cron.WithChain(cron.Recover(cronLogger)))

	return &Scheduler{
		cron:   c,
		jobs:   jobs,
		logger: logger,
		config: cfg,
	}
}

// Start registers the jobs and starts the cron scheduler.
func (s *Scheduler) Start() {
	s.register("outbox purge", s.config.OutboxPurge, s.jobs.PurgePublishedOutbox)
	s.register("balance snapshot", s.config.BalanceSnapshot, s.jobs.SnapshotBalances)
	s.cron.Start()
}

func (s *Scheduler) register(name, schedule string, job func()) {
	if schedule == "" {
		s.logger.Info("job disabled", zap.String("component", "scheduler"), zap.String("job", name))
		return
	}
	if _, err := s.cron.AddFunc(schedule, job); err != nil {
		s.logger.Error("failed to schedule job", zap.String("component", "scheduler"), zap.String("job", name), zap.Error(err))
		return
	}
	s.logger.Info("scheduled job", zap.String("component", "scheduler"), zap.String("job", name), zap.String("schedule", schedule))
}

// Stop gracefully stops the cron scheduler.
func (s *Scheduler) Stop() context.Context {
	return s.cron.Stop()
}

// Entries reports how many jobs are registered.
func (s *Scheduler) Entries() int {
	return len(s.cron.Entries())
}
