package repository_test

import (
	"context"
	"testing"
	"time"

	"github.com/amirphl/Kaminari/models"
	"github.com/amirphl/Kaminari/repository"
	testingutil "github.com/amirphl/Kaminari/testing"
	"github.com/amirphl/Kaminari/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSubscriberRepository(t *testing.T) {
	testDB := testingutil.RequireDB(t)
	repo := repository.NewSubscriberRepository(testDB.DB)
	fixtures := testingutil.NewTestFixtures(testDB)
	ctx := testingutil.CreateTestContext()

	t.Run("UpsertInsertsThenRewritesKeys", func(t *testing.T) {
		require.NoError(t, testDB.ClearAllTables())

		endpoint := testingutil.RandomEndpoint()
		first := &models.Subscriber{Endpoint: endpoint, P256dh: "key-1", Auth: "auth-1", UserAgent: "ua-1"}
		require.NoError(t, repo.Upsert(ctx, first))
		require.NotZero(t, first.ID)

		stored, err := repo.ByID(ctx, first.ID)
		require.NoError(t, err)
		require.NotNil(t, stored)
		createdAt := stored.CreatedAt

		time.Sleep(10 * time.Millisecond)
		second := &models.Subscriber{Endpoint: endpoint, P256dh: "key-2", Auth: "auth-2", UserAgent: "ua-2"}
		require.NoError(t, repo.Upsert(ctx, second))

		count, err := repo.Count(ctx, models.SubscriberFilter{})
		require.NoError(t, err)
		assert.Equal(t, int64(1), count)

		rows, err := repo.ByFilter(ctx, models.SubscriberFilter{Endpoint: &endpoint}, "", 0, 0)
		require.NoError(t, err)
		require.Len(t, rows, 1)
		assert.Equal(t, "key-2", rows[0].P256dh)
		assert.Equal(t, "auth-2", rows[0].Auth)
		assert.Equal(t, "ua-2", rows[0].UserAgent)
		assert.WithinDuration(t, createdAt, rows[0].CreatedAt, time.Millisecond)
		assert.True(t, rows[0].UpdatedAt.After(createdAt))
	})

	t.Run("ListCreatedBeforeIsInclusive", func(t *testing.T) {
		require.NoError(t, testDB.ClearAllTables())

		cutoff := utils.UTCNow().Add(-24 * time.Hour).Truncate(time.Second)
		_, err := fixtures.CreateTestSubscriber(cutoff.Add(-time.Hour))
		require.NoError(t, err)
		_, err = fixtures.CreateTestSubscriber(cutoff)
		require.NoError(t, err)
		_, err = fixtures.CreateTestSubscriber(cutoff.Add(time.Hour))
		require.NoError(t, err)

		eligible, err := repo.ListCreatedBefore(ctx, cutoff)
		require.NoError(t, err)
		assert.Len(t, eligible, 2)

		all, err := repo.ListAll(ctx)
		require.NoError(t, err)
		assert.Len(t, all, 3)
	})

	t.Run("DeleteByEndpoints", func(t *testing.T) {
		require.NoError(t, testDB.ClearAllTables())

		subs, err := fixtures.CreateTestSubscribers(3, time.Time{})
		require.NoError(t, err)

		deleted, err := repo.DeleteByEndpoints(ctx, []string{subs[0].Endpoint, subs[2].Endpoint, "https://push.example.test/unknown"})
		require.NoError(t, err)
		assert.Equal(t, int64(2), deleted)

		remaining, err := repo.ListAll(ctx)
		require.NoError(t, err)
		require.Len(t, remaining, 1)
		assert.Equal(t, subs[1].Endpoint, remaining[0].Endpoint)

		deleted, err = repo.DeleteByEndpoints(ctx, nil)
		require.NoError(t, err)
		assert.Zero(t, deleted)
	})

	t.Run("ByIDNotFound", func(t *testing.T) {
		sub, err := repo.ByID(ctx, 999999)
		assert.NoError(t, err)
		assert.Nil(t, sub)
	})
}

func TestNotificationRepository(t *testing.T) {
	testDB := testingutil.RequireDB(t)
	repo := repository.NewNotificationRepository(testDB.DB)
	fixtures := testingutil.NewTestFixtures(testDB)
	ctx := testingutil.CreateTestContext()

	t.Run("ListRecentNewestFirstWithLimit", func(t *testing.T) {
		require.NoError(t, testDB.ClearAllTables())

		base := utils.UTCNow().Add(-time.Hour)
		for i, title := range []string{"first", "second", "third", "fourth"} {
			_, err := fixtures.CreateTestNotification(title, base.Add(time.Duration(i)*time.Minute))
			require.NoError(t, err)
		}

		recent, err := repo.ListRecent(ctx, 3)
		require.NoError(t, err)
		require.Len(t, recent, 3)
		assert.Equal(t, "fourth", recent[0].Title)
		assert.Equal(t, "third", recent[1].Title)
		assert.Equal(t, "second", recent[2].Title)
	})

	t.Run("SaveAssignsUUID", func(t *testing.T) {
		require.NoError(t, testDB.ClearAllTables())

		rec := &models.NotificationRecord{Title: "hello", Body: "world", TotalSubscribers: 1, TotalSent: 1}
		require.NoError(t, repo.Save(ctx, rec))
		assert.NotZero(t, rec.ID)
		assert.NotEqual(t, "00000000-0000-0000-0000-000000000000", rec.UUID.String())
		assert.False(t, rec.SentAt.IsZero())
	})
}

func TestABCampaignRepository(t *testing.T) {
	testDB := testingutil.RequireDB(t)
	repo := repository.NewABCampaignRepository(testDB.DB)
	fixtures := testingutil.NewTestFixtures(testDB)
	ctx := testingutil.CreateTestContext()

	t.Run("MarkCompletedOnlyOnce", func(t *testing.T) {
		campaign, err := fixtures.CreateTestABCampaign(60)
		require.NoError(t, err)

		at := utils.UTCNow()
		require.NoError(t, repo.MarkCompleted(ctx, campaign.ID, 6, 4, at))

		stored, err := repo.ByID(ctx, campaign.ID)
		require.NoError(t, err)
		require.NotNil(t, stored)
		assert.Equal(t, models.ABCampaignStatusCompleted, stored.Status)
		assert.Equal(t, 6, stored.VariantASent)
		assert.Equal(t, 4, stored.VariantBSent)
		require.NotNil(t, stored.SentAt)
		require.NotNil(t, stored.CompletedAt)

		err = repo.MarkCompleted(ctx, campaign.ID, 1, 1, at)
		assert.ErrorIs(t, err, repository.ErrCampaignNotDraft)

		stored, err = repo.ByID(ctx, campaign.ID)
		require.NoError(t, err)
		assert.Equal(t, 6, stored.VariantASent)
	})

	t.Run("ClaimForSendOnlyOnce", func(t *testing.T) {
		campaign, err := fixtures.CreateTestABCampaign(50)
		require.NoError(t, err)

		claimedAt := utils.UTCNow().Add(-time.Minute).Truncate(time.Microsecond)
		require.NoError(t, repo.ClaimForSend(ctx, campaign.ID, claimedAt))

		err = repo.ClaimForSend(ctx, campaign.ID, utils.UTCNow())
		assert.ErrorIs(t, err, repository.ErrCampaignAlreadyClaimed)

		stored, err := repo.ByID(ctx, campaign.ID)
		require.NoError(t, err)
		assert.Equal(t, models.ABCampaignStatusDraft, stored.Status)
		require.NotNil(t, stored.SentAt)
		assert.True(t, stored.IsClaimed())

		require.NoError(t, repo.MarkCompleted(ctx, campaign.ID, 1, 1, utils.UTCNow()))
		stored, err = repo.ByID(ctx, campaign.ID)
		require.NoError(t, err)
		assert.WithinDuration(t, claimedAt, *stored.SentAt, time.Millisecond)

		err = repo.ClaimForSend(ctx, campaign.ID, utils.UTCNow())
		assert.ErrorIs(t, err, repository.ErrCampaignAlreadyClaimed)
	})

	t.Run("ClaimForSendUnknownID", func(t *testing.T) {
		err := repo.ClaimForSend(ctx, 999999, utils.UTCNow())
		assert.ErrorIs(t, err, repository.ErrCampaignAlreadyClaimed)
	})

	t.Run("MarkCompletedUnknownID", func(t *testing.T) {
		err := repo.MarkCompleted(ctx, 999999, 0, 0, utils.UTCNow())
		assert.ErrorIs(t, err, repository.ErrCampaignNotDraft)
	})

	t.Run("Delete", func(t *testing.T) {
		campaign, err := fixtures.CreateTestABCampaign(50)
		require.NoError(t, err)

		found, err := repo.Delete(ctx, campaign.ID)
		require.NoError(t, err)
		assert.True(t, found)

		found, err = repo.Delete(ctx, campaign.ID)
		require.NoError(t, err)
		assert.False(t, found)

		stored, err := repo.ByID(ctx, campaign.ID)
		require.NoError(t, err)
		assert.Nil(t, stored)
	})
}

func TestAutomationFlowRepository(t *testing.T) {
	testDB := testingutil.RequireDB(t)
	repo := repository.NewAutomationFlowRepository(testDB.DB)
	fixtures := testingutil.NewTestFixtures(testDB)
	ctx := testingutil.CreateTestContext()

	t.Run("ListActiveSkipsPausedAndDeleted", func(t *testing.T) {
		require.NoError(t, testDB.ClearAllTables())

		active, err := fixtures.CreateTestAutomationFlow(1, models.AutomationFlowStatusActive)
		require.NoError(t, err)
		_, err = fixtures.CreateTestAutomationFlow(2, models.AutomationFlowStatusPaused)
		require.NoError(t, err)
		_, err = fixtures.CreateTestAutomationFlow(3, models.AutomationFlowStatusDeleted)
		require.NoError(t, err)

		flows, err := repo.ListActive(ctx)
		require.NoError(t, err)
		require.Len(t, flows, 1)
		assert.Equal(t, active.ID, flows[0].ID)
	})

	t.Run("ByFilterHidesDeletedByDefault", func(t *testing.T) {
		require.NoError(t, testDB.ClearAllTables())

		active, err := fixtures.CreateTestAutomationFlow(1, models.AutomationFlowStatusActive)
		require.NoError(t, err)
		deleted, err := fixtures.CreateTestAutomationFlow(2, models.AutomationFlowStatusDeleted)
		require.NoError(t, err)

		visible, err := repo.ByFilter(ctx, models.AutomationFlowFilter{}, "", 0, 0)
		require.NoError(t, err)
		require.Len(t, visible, 1)
		assert.Equal(t, active.ID, visible[0].ID)

		all, err := repo.ByFilter(ctx, models.AutomationFlowFilter{IncludeDeleted: true}, "", 0, 0)
		require.NoError(t, err)
		assert.Len(t, all, 2)

		status := models.AutomationFlowStatusDeleted
		onlyDeleted, err := repo.ByFilter(ctx, models.AutomationFlowFilter{Status: &status}, "", 0, 0)
		require.NoError(t, err)
		require.Len(t, onlyDeleted, 1)
		assert.Equal(t, deleted.ID, onlyDeleted[0].ID)
	})

	t.Run("UpdateStatusIsConditional", func(t *testing.T) {
		flow, err := fixtures.CreateTestAutomationFlow(1, models.AutomationFlowStatusActive)
		require.NoError(t, err)

		require.NoError(t, repo.UpdateStatus(ctx, flow.ID, models.AutomationFlowStatusActive, models.AutomationFlowStatusPaused))

		err = repo.UpdateStatus(ctx, flow.ID, models.AutomationFlowStatusActive, models.AutomationFlowStatusDeleted)
		assert.ErrorIs(t, err, repository.ErrFlowStatusConflict)

		stored, err := repo.ByID(ctx, flow.ID)
		require.NoError(t, err)
		require.NotNil(t, stored)
		assert.Equal(t, models.AutomationFlowStatusPaused, stored.Status)
	})

	t.Run("UpdateContentRejectsDeleted", func(t *testing.T) {
		flow, err := fixtures.CreateTestAutomationFlow(1, models.AutomationFlowStatusDeleted)
		require.NoError(t, err)

		flow.Title = "changed"
		err = repo.UpdateContent(ctx, flow)
		assert.ErrorIs(t, err, repository.ErrFlowStatusConflict)
	})

	t.Run("UpdateContent", func(t *testing.T) {
		flow, err := fixtures.CreateTestAutomationFlow(1, models.AutomationFlowStatusPaused)
		require.NoError(t, err)

		flow.Title = "Still there?"
		flow.TriggerDelayHours = 48
		flow.URL = nil
		require.NoError(t, repo.UpdateContent(ctx, flow))

		stored, err := repo.ByID(ctx, flow.ID)
		require.NoError(t, err)
		require.NotNil(t, stored)
		assert.Equal(t, "Still there?", stored.Title)
		assert.Equal(t, 48, stored.TriggerDelayHours)
		assert.Nil(t, stored.URL)
		assert.Equal(t, models.AutomationFlowStatusPaused, stored.Status)
	})
}

func TestAutomationSentMarkerRepository(t *testing.T) {
	testDB := testingutil.RequireDB(t)
	repo := repository.NewAutomationSentMarkerRepository(testDB.DB)
	fixtures := testingutil.NewTestFixtures(testDB)
	ctx := context.Background()

	flow, err := fixtures.CreateTestAutomationFlow(1, models.AutomationFlowStatusActive)
	require.NoError(t, err)
	subs, err := fixtures.CreateTestSubscribers(3, time.Time{})
	require.NoError(t, err)

	t.Run("InsertMarkerOncePerPair", func(t *testing.T) {
		require.NoError(t, repo.InsertMarker(ctx, flow.ID, subs[0].ID))

		err := repo.InsertMarker(ctx, flow.ID, subs[0].ID)
		assert.ErrorIs(t, err, repository.ErrDuplicateMarker)

		has, err := repo.HasMarker(ctx, flow.ID, subs[0].ID)
		require.NoError(t, err)
		assert.True(t, has)

		has, err = repo.HasMarker(ctx, flow.ID, subs[1].ID)
		require.NoError(t, err)
		assert.False(t, has)
	})

	t.Run("MarkedSubscriberIDs", func(t *testing.T) {
		require.NoError(t, repo.InsertMarker(ctx, flow.ID, subs[2].ID))

		marked, err := repo.MarkedSubscriberIDs(ctx, flow.ID, []uint{subs[0].ID, subs[1].ID, subs[2].ID})
		require.NoError(t, err)
		assert.Len(t, marked, 2)
		assert.Contains(t, marked, subs[0].ID)
		assert.Contains(t, marked, subs[2].ID)
		assert.NotContains(t, marked, subs[1].ID)

		marked, err = repo.MarkedSubscriberIDs(ctx, flow.ID, nil)
		require.NoError(t, err)
		assert.Empty(t, marked)
	})

	t.Run("DeleteMarkerReleasesClaim", func(t *testing.T) {
		require.NoError(t, repo.DeleteMarker(ctx, flow.ID, subs[2].ID))

		has, err := repo.HasMarker(ctx, flow.ID, subs[2].ID)
		require.NoError(t, err)
		assert.False(t, has)

		require.NoError(t, repo.InsertMarker(ctx, flow.ID, subs[2].ID))
	})
}

func TestAuditLogRepository(t *testing.T) {
	testDB := testingutil.RequireDB(t)
	repo := repository.NewAuditLogRepository(testDB.DB)
	ctx := testingutil.CreateTestContext()

	entries := []*models.AuditLog{
		{Action: models.AuditActionAdminLoginFailed, Success: utils.ToPtr(false), ErrorMessage: utils.ToPtr("incorrect password")},
		{Action: models.AuditActionAdminLoginSuccess, Success: utils.ToPtr(true)},
		{Action: models.AuditActionBroadcastSent, Success: utils.ToPtr(true), Metadata: []byte(`{"total_sent":3}`)},
	}
	for _, e := range entries {
		require.NoError(t, repo.Save(ctx, e))
	}

	recent, err := repo.ListRecent(ctx, 2, 0)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, models.AuditActionBroadcastSent, recent[0].Action)
	assert.JSONEq(t, `{"total_sent":3}`, string(recent[0].Metadata))
	assert.Equal(t, models.AuditActionAdminLoginSuccess, recent[1].Action)

	failed, err := repo.ListFailedActions(ctx, 10, 0)
	require.NoError(t, err)
	require.Len(t, failed, 1)
	assert.Equal(t, "incorrect password", *failed[0].ErrorMessage)

	action := models.AuditActionAdminLoginSuccess
	exists, err := repo.Exists(ctx, models.AuditLogFilter{Action: &action})
	require.NoError(t, err)
	assert.True(t, exists)
}
