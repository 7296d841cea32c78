package businessflow

import (
	"context"
	"log"
	"time"

	"github.com/amirphl/Kaminari/app/dto"
	"github.com/amirphl/Kaminari/utils"
)

// tickLockedAutomationFlow serializes ProcessTick across every trigger
// (in-process scheduler, cron endpoint, admin action, CLI) and replicas.
// Overlapping ticks are already safe thanks to marker claims; the lock only
// saves the duplicate work.
type tickLockedAutomationFlow struct {
	AutomationFlow
	locker Locker
	ttl    time.Duration
	logger *log.Logger
}

// WithTickLock wraps flow so that at most one ProcessTick runs at a time.
// A tick that finds the lock held fails with ErrAutomationTickInProgress.
func WithTickLock(flow AutomationFlow, locker Locker, ttl time.Duration, logger *log.Logger) AutomationFlow {
	if locker == nil {
		return flow
	}
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	if logger == nil {
		logger = log.Default()
	}
	return &tickLockedAutomationFlow{
		AutomationFlow: flow,
		locker:         locker,
		ttl:            ttl,
		logger:         logger,
	}
}

func (f *tickLockedAutomationFlow) ProcessTick(ctx context.Context, now time.Time) (*dto.AutomationTickResponse, error) {
	unlock, acquired, err := f.locker.TryLock(ctx, utils.AutomationTickLockKey, f.ttl)
	if err != nil {
		f.logger.Printf("automation: tick lock unavailable, running unlocked: %v", err)
	} else if !acquired {
		return nil, NewBusinessError("AUTOMATION_TICK_IN_PROGRESS", "Another automation tick is running", ErrAutomationTickInProgress)
	}
	defer unlock()

	return f.AutomationFlow.ProcessTick(ctx, now)
}
