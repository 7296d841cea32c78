package businessflow

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/amirphl/Kaminari/app/dto"
	"github.com/amirphl/Kaminari/models"
	"github.com/amirphl/Kaminari/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type automationFixture struct {
	flows     *memFlowRepo
	markers   *memMarkerRepo
	subs      *memSubscriberRepo
	transport *fakeTransport
	flow      AutomationFlow
}

func newAutomationFixture() *automationFixture {
	fx := &automationFixture{
		flows:     newMemFlowRepo(),
		markers:   newMemMarkerRepo(),
		subs:      newMemSubscriberRepo(),
		transport: newFakeTransport(),
	}
	fx.flow = NewAutomationFlow(fx.flows, fx.markers, fx.subs, newTestPushService(fx.transport), "", "", discardLogger())
	return fx
}

func (fx *automationFixture) createFlow(t *testing.T, delayHours int) *dto.AutomationFlowDTO {
	t.Helper()
	f, err := fx.flow.CreateFlow(context.Background(), &dto.CreateAutomationFlowRequest{
		Name:              fmt.Sprintf("welcome-%dh", delayHours),
		TriggerDelayHours: delayHours,
		Title:             "Welcome",
		Body:              "Thanks for subscribing",
	})
	require.NoError(t, err)
	return f
}

func TestProcessTick(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	t.Run("DeliversOnlyEligibleSubscribersOnce", func(t *testing.T) {
		fx := newAutomationFixture()
		fl := fx.createFlow(t, 24)
		fx.subs.add("https://push.example/old", now.Add(-48*time.Hour))
		fx.subs.add("https://push.example/exact", now.Add(-24*time.Hour))
		fx.subs.add("https://push.example/new", now.Add(-23*time.Hour))

		res, err := fx.flow.ProcessTick(ctx, now)
		require.NoError(t, err)
		assert.Equal(t, 2, res.TotalSent)
		assert.Equal(t, now, res.ProcessedAt)

		for _, d := range fx.transport.deliveries() {
			assert.Equal(t, "Welcome", d.Payload["title"])
			assert.EqualValues(t, fl.ID, d.Payload["flow_id"])
		}
		assert.Equal(t, map[string]int{
			"https://push.example/old":   1,
			"https://push.example/exact": 1,
		}, fx.transport.countByEndpoint())

		res, err = fx.flow.ProcessTick(ctx, now.Add(time.Minute))
		require.NoError(t, err)
		assert.Equal(t, 0, res.TotalSent)
		assert.Len(t, fx.transport.deliveries(), 2)

		// the new subscriber becomes eligible later
		res, err = fx.flow.ProcessTick(ctx, now.Add(2*time.Hour))
		require.NoError(t, err)
		assert.Equal(t, 1, res.TotalSent)
		assert.Equal(t, 3, fx.markers.count())
	})

	t.Run("FailedDeliveryIsRetriedNextTick", func(t *testing.T) {
		fx := newAutomationFixture()
		fx.createFlow(t, 1)
		fx.subs.add("https://push.example/ok", now.Add(-2*time.Hour))
		fx.subs.add("https://push.example/flaky", now.Add(-2*time.Hour))
		fx.transport.setStatus("https://push.example/flaky", 500)

		res, err := fx.flow.ProcessTick(ctx, now)
		require.NoError(t, err)
		assert.Equal(t, 1, res.TotalSent)
		assert.Equal(t, 1, fx.markers.count())

		fx.transport.clearStatus("https://push.example/flaky")
		res, err = fx.flow.ProcessTick(ctx, now.Add(15*time.Minute))
		require.NoError(t, err)
		assert.Equal(t, 1, res.TotalSent)
		assert.Equal(t, 2, fx.markers.count())
		assert.Equal(t, map[string]int{
			"https://push.example/ok":    1,
			"https://push.example/flaky": 2,
		}, fx.transport.countByEndpoint())
	})

	t.Run("FlowFailureDoesNotStopOtherFlows", func(t *testing.T) {
		fx := newAutomationFixture()
		broken := fx.createFlow(t, 1)
		fx.createFlow(t, 2)
		fx.subs.add("https://push.example/a", now.Add(-3*time.Hour))
		fx.markers.failForFlow[broken.ID] = true

		res, err := fx.flow.ProcessTick(ctx, now)
		require.NoError(t, err)
		assert.Equal(t, 1, res.TotalSent)
	})

	t.Run("PausedAndDeletedFlowsAreSkipped", func(t *testing.T) {
		fx := newAutomationFixture()
		paused := fx.createFlow(t, 1)
		deleted := fx.createFlow(t, 2)
		fx.subs.add("https://push.example/a", now.Add(-3*time.Hour))

		_, err := fx.flow.ToggleFlow(ctx, paused.ID, nil)
		require.NoError(t, err)
		require.NoError(t, fx.flow.DeleteFlow(ctx, deleted.ID))

		res, err := fx.flow.ProcessTick(ctx, now)
		require.NoError(t, err)
		assert.Equal(t, 0, res.TotalSent)
		assert.Empty(t, fx.transport.deliveries())
	})

	t.Run("OverlappingTicksSendAtMostOnce", func(t *testing.T) {
		fx := newAutomationFixture()
		fx.createFlow(t, 1)
		for i := 0; i < 20; i++ {
			fx.subs.add(fmt.Sprintf("https://push.example/%d", i), now.Add(-2*time.Hour))
		}

		var wg sync.WaitGroup
		totals := make([]int, 4)
		for i := range totals {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				res, err := fx.flow.ProcessTick(ctx, now)
				if err == nil {
					totals[i] = res.TotalSent
				}
			}(i)
		}
		wg.Wait()

		sum := 0
		for _, n := range totals {
			sum += n
		}
		assert.Equal(t, 20, sum)
		for endpoint, n := range fx.transport.countByEndpoint() {
			assert.Equal(t, 1, n, endpoint)
		}
	})

	t.Run("FlowListFailure", func(t *testing.T) {
		fx := newAutomationFixture()
		fx.flows.listErr = errStoreDown

		_, err := fx.flow.ProcessTick(ctx, now)
		require.Error(t, err)
		assert.ErrorIs(t, err, errStoreDown)
	})
}

func TestAutomationFlowLifecycle(t *testing.T) {
	ctx := context.Background()

	t.Run("CreateRejectsNonPositiveDelay", func(t *testing.T) {
		fx := newAutomationFixture()
		_, err := fx.flow.CreateFlow(ctx, &dto.CreateAutomationFlowRequest{Name: "n", TriggerDelayHours: 0, Title: "t", Body: "b"})
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrInvalidTriggerDelay)
	})

	t.Run("UpdateRequiresAField", func(t *testing.T) {
		fx := newAutomationFixture()
		fl := fx.createFlow(t, 1)
		_, err := fx.flow.UpdateFlow(ctx, fl.ID, &dto.UpdateAutomationFlowRequest{})
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrAutomationUpdateRequired)
	})

	t.Run("UpdateChangesContent", func(t *testing.T) {
		fx := newAutomationFixture()
		fl := fx.createFlow(t, 1)
		out, err := fx.flow.UpdateFlow(ctx, fl.ID, &dto.UpdateAutomationFlowRequest{
			Title:             utils.ToPtr("New title"),
			TriggerDelayHours: utils.ToPtr(6),
			URL:               utils.ToPtr("/start"),
		})
		require.NoError(t, err)
		assert.Equal(t, "New title", out.Title)
		assert.Equal(t, 6, out.TriggerDelayHours)
		require.NotNil(t, out.URL)
		assert.Equal(t, "/start", *out.URL)
		assert.Equal(t, fl.Body, out.Body)

		stored, err := fx.flows.ByID(ctx, fl.ID)
		require.NoError(t, err)
		assert.Equal(t, "New title", stored.Title)
	})

	t.Run("ToggleFlipsAndAcceptsExplicitTarget", func(t *testing.T) {
		fx := newAutomationFixture()
		fl := fx.createFlow(t, 1)

		out, err := fx.flow.ToggleFlow(ctx, fl.ID, nil)
		require.NoError(t, err)
		assert.Equal(t, models.AutomationFlowStatusPaused.String(), out.Status)

		out, err = fx.flow.ToggleFlow(ctx, fl.ID, &dto.ToggleAutomationFlowRequest{Status: "paused"})
		require.NoError(t, err)
		assert.Equal(t, models.AutomationFlowStatusPaused.String(), out.Status)

		out, err = fx.flow.ToggleFlow(ctx, fl.ID, &dto.ToggleAutomationFlowRequest{Status: "active"})
		require.NoError(t, err)
		assert.Equal(t, models.AutomationFlowStatusActive.String(), out.Status)
	})

	t.Run("DeletedFlowIsTerminal", func(t *testing.T) {
		fx := newAutomationFixture()
		fl := fx.createFlow(t, 1)
		require.NoError(t, fx.flow.DeleteFlow(ctx, fl.ID))
		require.NoError(t, fx.flow.DeleteFlow(ctx, fl.ID))

		_, err := fx.flow.ToggleFlow(ctx, fl.ID, nil)
		assert.True(t, IsAutomationFlowDeleted(err))

		_, err = fx.flow.UpdateFlow(ctx, fl.ID, &dto.UpdateAutomationFlowRequest{Title: utils.ToPtr("x")})
		assert.True(t, IsAutomationFlowDeleted(err))

		list, err := fx.flow.ListFlows(ctx)
		require.NoError(t, err)
		assert.Empty(t, list.Flows)
	})

	t.Run("DeletingUnknownFlow", func(t *testing.T) {
		fx := newAutomationFixture()
		err := fx.flow.DeleteFlow(ctx, 404)
		assert.True(t, IsAutomationFlowNotFound(err))
	})

	t.Run("DeleteKeepsMarkers", func(t *testing.T) {
		fx := newAutomationFixture()
		fl := fx.createFlow(t, 1)
		fx.subs.add("https://push.example/a", utils.UTCNow().Add(-2*time.Hour))

		_, err := fx.flow.ProcessTick(ctx, utils.UTCNow())
		require.NoError(t, err)
		require.Equal(t, 1, fx.markers.count())

		require.NoError(t, fx.flow.DeleteFlow(ctx, fl.ID))
		assert.Equal(t, 1, fx.markers.count())
	})
}
