// Package scheduler runs the automation tick in-process on a cron schedule
package scheduler

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/amirphl/Kaminari/app/dto"
	businessflow "github.com/amirphl/Kaminari/business_flow"
	"github.com/amirphl/Kaminari/config"
	"github.com/amirphl/Kaminari/utils"
	"github.com/robfig/cron/v3"
)

// AutomationScheduler triggers AutomationFlow.ProcessTick on a cron schedule
type AutomationScheduler struct {
	flow     businessflow.AutomationFlow
	schedule cron.Schedule
	location *time.Location
	timeout  time.Duration
	logger   *log.Logger
	now      func() time.Time
}

// NewAutomationScheduler validates the schedule and timezone in cfg.
// flow should already be wrapped with businessflow.WithTickLock when several
// replicas run the scheduler.
func NewAutomationScheduler(flow businessflow.AutomationFlow, cfg config.SchedulerConfig, logger *log.Logger) (*AutomationScheduler, error) {
	schedule, err := config.ParseSchedule(cfg.AutomationSchedule)
	if err != nil {
		return nil, fmt.Errorf("invalid automation schedule %q: %w", cfg.AutomationSchedule, err)
	}

	tz := cfg.Timezone
	if tz == "" {
		tz = "UTC"
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return nil, fmt.Errorf("invalid scheduler timezone %q: %w", tz, err)
	}

	timeout := cfg.AutomationTimeout
	if timeout <= 0 {
		timeout = 10 * time.Minute
	}
	if logger == nil {
		logger = log.New(log.Writer(), "scheduler ", utils.LogFlags)
	}

	return &AutomationScheduler{
		flow:     flow,
		schedule: schedule,
		location: loc,
		timeout:  timeout,
		logger:   logger,
		now:      utils.UTCNow,
	}, nil
}

// Start launches the cron loop in a background goroutine and returns a stop function.
// Stop waits for a running tick to finish.
func (s *AutomationScheduler) Start(parent context.Context) func() {
	ctx, cancel := context.WithCancel(parent)

	cronLogger := cron.PrintfLogger(s.logger)
	c := cron.New(
		cron.WithLocation(s.location),
		cron.WithLogger(cronLogger),
		cron.WithChain(cron.Recover(cronLogger), cron.SkipIfStillRunning(cronLogger)),
	)
	c.Schedule(s.schedule, cron.FuncJob(func() {
		_, _ = s.RunOnce(ctx)
	}))
	c.Start()
	s.logger.Printf("scheduler: automation tick scheduled, next run at %s", s.schedule.Next(time.Now().In(s.location)).Format(time.RFC3339))

	return func() {
		cancel()
		<-c.Stop().Done()
		s.logger.Printf("scheduler: stopped")
	}
}

// RunOnce performs a single tick bounded by the configured timeout
func (s *AutomationScheduler) RunOnce(ctx context.Context) (*dto.AutomationTickResponse, error) {
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	tickCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	started := time.Now()
	res, err := s.flow.ProcessTick(tickCtx, s.now())
	if err != nil {
		if businessflow.IsAutomationTickInProgress(err) {
			s.logger.Printf("scheduler: tick skipped, another tick is running")
		} else {
			s.logger.Printf("scheduler: tick failed: %v", err)
		}
		return nil, err
	}

	s.logger.Printf("scheduler: tick done sent=%d took=%s", res.TotalSent, time.Since(started).Round(time.Millisecond))
	return res, nil
}
