package businessflow

import (
	"context"
	"testing"
	"time"

	"github.com/amirphl/Kaminari/app/dto"
	"github.com/amirphl/Kaminari/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type broadcastFixture struct {
	subs      *memSubscriberRepo
	history   *memNotificationRepo
	transport *fakeTransport
	flow      BroadcastFlow
}

func newBroadcastFixture() *broadcastFixture {
	fx := &broadcastFixture{
		subs:      newMemSubscriberRepo(),
		history:   &memNotificationRepo{},
		transport: newFakeTransport(),
	}
	fx.flow = NewBroadcastFlow(fx.subs, fx.history, newTestPushService(fx.transport), nil, "", "", discardLogger())
	return fx
}

func TestBroadcast(t *testing.T) {
	ctx := context.Background()
	created := utils.UTCNow().Add(-time.Hour)

	t.Run("DeliversToEverySubscriber", func(t *testing.T) {
		fx := newBroadcastFixture()
		fx.subs.add("https://push.example/a", created)
		fx.subs.add("https://push.example/b", created)
		fx.subs.add("https://push.example/c", created)

		res, err := fx.flow.Broadcast(ctx, &dto.BroadcastRequest{Title: "Hello", Body: "World"})
		require.NoError(t, err)
		assert.Equal(t, 3, res.TotalSubscribers)
		assert.Equal(t, 3, res.TotalSent)
		assert.Equal(t, 0, res.TotalFailed)
		assert.Equal(t, 0, res.RemovedInvalid)

		deliveries := fx.transport.deliveries()
		require.Len(t, deliveries, 3)
		for _, d := range deliveries {
			assert.Equal(t, "Hello", d.Payload["title"])
			assert.Equal(t, "World", d.Payload["body"])
			assert.Equal(t, utils.DefaultNotificationIcon, d.Payload["icon"])
			assert.Equal(t, utils.DefaultNotificationBadge, d.Payload["badge"])
			assert.Equal(t, utils.DefaultNotificationURL, d.Payload["url"])
			assert.NotZero(t, d.Payload["timestamp"])
		}

		require.Len(t, fx.history.rows, 1)
		rec := fx.history.rows[0]
		assert.Equal(t, "Hello", rec.Title)
		assert.Nil(t, rec.URL)
		assert.Equal(t, 3, rec.TotalSubscribers)
		assert.Equal(t, 3, rec.TotalSent)
		assert.Equal(t, 0, rec.TotalFailed)
	})

	t.Run("PrunesOnlyPermanentFailures", func(t *testing.T) {
		fx := newBroadcastFixture()
		fx.subs.add("https://push.example/ok", created)
		fx.subs.add("https://push.example/gone", created)
		fx.subs.add("https://push.example/missing", created)
		fx.subs.add("https://push.example/flaky", created)
		fx.transport.setStatus("https://push.example/gone", 410)
		fx.transport.setStatus("https://push.example/missing", 404)
		fx.transport.setStatus("https://push.example/flaky", 503)

		url := "/promo"
		res, err := fx.flow.Broadcast(ctx, &dto.BroadcastRequest{Title: "T", Body: "B", URL: &url})
		require.NoError(t, err)
		assert.Equal(t, 4, res.TotalSubscribers)
		assert.Equal(t, 1, res.TotalSent)
		assert.Equal(t, 3, res.TotalFailed)
		assert.Equal(t, 2, res.RemovedInvalid)

		assert.Equal(t, []string{"https://push.example/flaky", "https://push.example/ok"}, fx.subs.endpoints())

		require.Len(t, fx.history.rows, 1)
		require.NotNil(t, fx.history.rows[0].URL)
		assert.Equal(t, "/promo", *fx.history.rows[0].URL)
		assert.Equal(t, 3, fx.history.rows[0].TotalFailed)

		for _, d := range fx.transport.deliveries() {
			assert.Equal(t, "/promo", d.Payload["url"])
		}
	})

	t.Run("NoRecipients", func(t *testing.T) {
		fx := newBroadcastFixture()

		res, err := fx.flow.Broadcast(ctx, &dto.BroadcastRequest{Title: "T", Body: "B"})
		require.Error(t, err)
		assert.Nil(t, res)
		assert.True(t, IsNoRecipients(err))
		assert.Empty(t, fx.history.rows)
		assert.Empty(t, fx.transport.deliveries())
	})

	t.Run("MissingTitle", func(t *testing.T) {
		fx := newBroadcastFixture()
		fx.subs.add("https://push.example/a", created)

		_, err := fx.flow.Broadcast(ctx, &dto.BroadcastRequest{Title: "  ", Body: "B"})
		require.Error(t, err)
		assert.True(t, IsValidation(err))
		assert.Empty(t, fx.transport.deliveries())
	})

	t.Run("BookkeepingFailuresDoNotFailBroadcast", func(t *testing.T) {
		fx := newBroadcastFixture()
		fx.subs.add("https://push.example/a", created)
		fx.subs.add("https://push.example/gone", created)
		fx.transport.setStatus("https://push.example/gone", 410)
		fx.subs.deleteErr = errStoreDown
		fx.history.saveErr = errStoreDown

		res, err := fx.flow.Broadcast(ctx, &dto.BroadcastRequest{Title: "T", Body: "B"})
		require.NoError(t, err)
		assert.Equal(t, 1, res.TotalSent)
		assert.Equal(t, 1, res.TotalFailed)
		assert.Equal(t, 0, res.RemovedInvalid)
		assert.Len(t, fx.subs.endpoints(), 2)
	})

	t.Run("SubscriberLoadFailure", func(t *testing.T) {
		fx := newBroadcastFixture()
		fx.subs.listErr = errStoreDown

		_, err := fx.flow.Broadcast(ctx, &dto.BroadcastRequest{Title: "T", Body: "B"})
		require.Error(t, err)
		assert.ErrorIs(t, err, errStoreDown)
		assert.Equal(t, "SUBSCRIBERS_LOAD_FAILED", ErrorCode(err))
	})
}
