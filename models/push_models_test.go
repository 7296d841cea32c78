package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestABCampaignSplitIndex(t *testing.T) {
	tests := []struct {
		name     string
		percentA int
		n        int
		want     int
	}{
		{"even split", 50, 10, 5},
		{"floors toward A", 33, 10, 3},
		{"floors odd count", 50, 7, 3},
		{"all to A", 100, 9, 9},
		{"all to B", 0, 9, 0},
		{"no subscribers", 60, 0, 0},
		{"single subscriber under half", 40, 1, 0},
		{"single subscriber over half", 99, 1, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := &ABCampaign{VariantAPercentage: tt.percentA}
			assert.Equal(t, tt.want, c.SplitIndex(tt.n))
		})
	}
}

func TestABCampaignStatus(t *testing.T) {
	assert.True(t, ABCampaignStatusDraft.Valid())
	assert.True(t, ABCampaignStatusCompleted.Valid())
	assert.False(t, ABCampaignStatus("sending").Valid())

	_, err := ABCampaignStatus("sending").Value()
	assert.Error(t, err)

	var s ABCampaignStatus
	assert.NoError(t, s.Scan([]byte("completed")))
	assert.Equal(t, ABCampaignStatusCompleted, s)
	assert.Error(t, s.Scan(42))

	c := &ABCampaign{Status: ABCampaignStatusCompleted}
	assert.True(t, c.IsCompleted())
}

func TestAutomationFlowStatusTransitions(t *testing.T) {
	tests := []struct {
		from, to AutomationFlowStatus
		allowed  bool
	}{
		{AutomationFlowStatusActive, AutomationFlowStatusPaused, true},
		{AutomationFlowStatusActive, AutomationFlowStatusDeleted, true},
		{AutomationFlowStatusPaused, AutomationFlowStatusActive, true},
		{AutomationFlowStatusPaused, AutomationFlowStatusDeleted, true},
		{AutomationFlowStatusActive, AutomationFlowStatusActive, false},
		{AutomationFlowStatusDeleted, AutomationFlowStatusActive, false},
		{AutomationFlowStatusDeleted, AutomationFlowStatusPaused, false},
		{AutomationFlowStatusActive, AutomationFlowStatus("archived"), false},
	}
	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			assert.Equal(t, tt.allowed, tt.from.CanTransitionTo(tt.to))
		})
	}
}

func TestAutomationFlowStatusToggled(t *testing.T) {
	next, ok := AutomationFlowStatusActive.Toggled()
	assert.True(t, ok)
	assert.Equal(t, AutomationFlowStatusPaused, next)

	next, ok = AutomationFlowStatusPaused.Toggled()
	assert.True(t, ok)
	assert.Equal(t, AutomationFlowStatusActive, next)

	_, ok = AutomationFlowStatusDeleted.Toggled()
	assert.False(t, ok)
	assert.True(t, AutomationFlowStatusDeleted.IsTerminal())
}

func TestAutomationFlowEligibilityCutoff(t *testing.T) {
	now := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	f := &AutomationFlow{TriggerDelayHours: 26}
	assert.Equal(t, time.Date(2025, 3, 9, 10, 0, 0, 0, time.UTC), f.EligibilityCutoff(now))
}

func TestNotificationRecordImmutable(t *testing.T) {
	n := &NotificationRecord{}
	assert.ErrorIs(t, n.BeforeUpdate(nil), ErrImmutableRecord)
}
