package scheduler

import (
	"context"
	"errors"
	"io"
	"log"
	"sync/atomic"
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/amirphl/Kaminari/app/dto"
	businessflow "github.com/amirphl/Kaminari/business_flow"
	"github.com/amirphl/Kaminari/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// tickCounter satisfies AutomationFlow; only ProcessTick is exercised
type tickCounter struct {
	businessflow.AutomationFlow
	calls    atomic.Int32
	err      error
	deadline atomic.Bool
}

func (f *tickCounter) ProcessTick(ctx context.Context, now time.Time) (*dto.AutomationTickResponse, error) {
	f.calls.Add(1)
	if _, ok := ctx.Deadline(); ok {
		f.deadline.Store(true)
	}
	if f.err != nil {
		return nil, f.err
	}
	return &dto.AutomationTickResponse{TotalSent: 3, ProcessedAt: now}, nil
}

func quietLogger() *log.Logger {
	return log.New(io.Discard, "", 0)
}

func TestNewAutomationScheduler(t *testing.T) {
	flow := &tickCounter{}

	_, err := NewAutomationScheduler(flow, config.SchedulerConfig{AutomationSchedule: "not a schedule"}, quietLogger())
	assert.Error(t, err)

	_, err = NewAutomationScheduler(flow, config.SchedulerConfig{AutomationSchedule: "*/15 * * * *", Timezone: "Mars/Olympus"}, quietLogger())
	assert.Error(t, err)

	s, err := NewAutomationScheduler(flow, config.SchedulerConfig{AutomationSchedule: "@every 10m", Timezone: "Asia/Tehran"}, quietLogger())
	require.NoError(t, err)
	assert.Equal(t, 10*time.Minute, s.timeout)
	assert.Equal(t, "Asia/Tehran", s.location.String())
}

func TestAutomationSchedulerRunOnce(t *testing.T) {
	fixed := time.Date(2026, 5, 1, 8, 0, 0, 0, time.UTC)

	t.Run("ReportsTick", func(t *testing.T) {
		flow := &tickCounter{}
		s, err := NewAutomationScheduler(flow, config.SchedulerConfig{AutomationSchedule: "@hourly", AutomationTimeout: time.Minute}, quietLogger())
		require.NoError(t, err)
		s.now = func() time.Time { return fixed }

		res, err := s.RunOnce(context.Background())
		require.NoError(t, err)
		assert.Equal(t, 3, res.TotalSent)
		assert.Equal(t, fixed, res.ProcessedAt)
		assert.True(t, flow.deadline.Load())
	})

	t.Run("PropagatesLockContention", func(t *testing.T) {
		flow := &tickCounter{err: businessflow.NewBusinessError("AUTOMATION_TICK_IN_PROGRESS", "busy", businessflow.ErrAutomationTickInProgress)}
		s, err := NewAutomationScheduler(flow, config.SchedulerConfig{AutomationSchedule: "@hourly"}, quietLogger())
		require.NoError(t, err)

		_, err = s.RunOnce(context.Background())
		assert.True(t, businessflow.IsAutomationTickInProgress(err))
	})

	t.Run("PropagatesFailure", func(t *testing.T) {
		flow := &tickCounter{err: errors.New("db down")}
		s, err := NewAutomationScheduler(flow, config.SchedulerConfig{AutomationSchedule: "@hourly"}, quietLogger())
		require.NoError(t, err)

		_, err = s.RunOnce(context.Background())
		assert.EqualError(t, err, "db down")
	})

	t.Run("CancelledContextSkipsTick", func(t *testing.T) {
		flow := &tickCounter{}
		s, err := NewAutomationScheduler(flow, config.SchedulerConfig{AutomationSchedule: "@hourly"}, quietLogger())
		require.NoError(t, err)

		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err = s.RunOnce(ctx)
		assert.ErrorIs(t, err, context.Canceled)
		assert.Zero(t, flow.calls.Load())
	})
}

func TestAutomationSchedulerStart(t *testing.T) {
	flow := &tickCounter{}
	s, err := NewAutomationScheduler(flow, config.SchedulerConfig{AutomationSchedule: "@every 1s"}, quietLogger())
	require.NoError(t, err)

	stop := s.Start(context.Background())
	require.Eventually(t, func() bool { return flow.calls.Load() >= 1 }, 5*time.Second, 50*time.Millisecond)
	stop()

	calls := flow.calls.Load()
	time.Sleep(1500 * time.Millisecond)
	assert.Equal(t, calls, flow.calls.Load())
}
