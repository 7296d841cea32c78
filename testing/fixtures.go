package testing

import (
	"encoding/base64"
	"fmt"
	"math/rand"
	"time"

	"github.com/amirphl/Kaminari/models"
	"github.com/amirphl/Kaminari/utils"
)

// TestFixtures provides helper methods for creating test data
type TestFixtures struct {
	DB *TestDB
}

// NewTestFixtures creates a new test fixtures instance
func NewTestFixtures(db *TestDB) *TestFixtures {
	return &TestFixtures{DB: db}
}

func randomKey(n int) string {
	b := make([]byte, n)
	rand.Read(b)
	return base64.RawURLEncoding.EncodeToString(b)
}

// RandomEndpoint returns a unique fake push service URL
func RandomEndpoint() string {
	return fmt.Sprintf("https://push.example.test/send/%s", randomKey(16))
}

// CreateTestSubscriber stores a subscriber registered at createdAt (now when zero)
func (tf *TestFixtures) CreateTestSubscriber(createdAt time.Time) (*models.Subscriber, error) {
	if createdAt.IsZero() {
		createdAt = utils.UTCNow()
	}
	sub := &models.Subscriber{
		Endpoint:  RandomEndpoint(),
		P256dh:    randomKey(65),
		Auth:      randomKey(16),
		UserAgent: "Mozilla/5.0 (fixture)",
		CreatedAt: createdAt,
		UpdatedAt: createdAt,
	}
	if err := tf.DB.DB.Create(sub).Error; err != nil {
		return nil, fmt.Errorf("failed to create test subscriber: %w", err)
	}
	return sub, nil
}

// CreateTestSubscribers stores n subscribers registered at createdAt
func (tf *TestFixtures) CreateTestSubscribers(n int, createdAt time.Time) ([]*models.Subscriber, error) {
	subs := make([]*models.Subscriber, 0, n)
	for range n {
		sub, err := tf.CreateTestSubscriber(createdAt)
		if err != nil {
			return nil, err
		}
		subs = append(subs, sub)
	}
	return subs, nil
}

// CreateTestABCampaign stores a draft campaign with the given variant A share
func (tf *TestFixtures) CreateTestABCampaign(percentA int) (*models.ABCampaign, error) {
	c := &models.ABCampaign{
		Name:               fmt.Sprintf("campaign-%s", randomKey(4)),
		VariantATitle:      "Variant A",
		VariantABody:       "Body A",
		VariantAPercentage: percentA,
		VariantBTitle:      "Variant B",
		VariantBBody:       "Body B",
		VariantBPercentage: 100 - percentA,
	}
	if err := tf.DB.DB.Create(c).Error; err != nil {
		return nil, fmt.Errorf("failed to create test ab campaign: %w", err)
	}
	return c, nil
}

// CreateTestAutomationFlow stores a flow in the given status
func (tf *TestFixtures) CreateTestAutomationFlow(delayHours int, status models.AutomationFlowStatus) (*models.AutomationFlow, error) {
	f := &models.AutomationFlow{
		Name:              fmt.Sprintf("flow-%s", randomKey(4)),
		TriggerDelayHours: delayHours,
		Title:             "Welcome",
		Body:              "Thanks for subscribing",
		URL:               utils.ToPtr("/welcome"),
		Status:            status,
	}
	if err := tf.DB.DB.Create(f).Error; err != nil {
		return nil, fmt.Errorf("failed to create test automation flow: %w", err)
	}
	return f, nil
}

// CreateTestNotification stores a history row sent at sentAt
func (tf *TestFixtures) CreateTestNotification(title string, sentAt time.Time) (*models.NotificationRecord, error) {
	n := &models.NotificationRecord{
		Title:            title,
		Body:             "body of " + title,
		TotalSubscribers: 3,
		TotalSent:        2,
		TotalFailed:      1,
		SentAt:           sentAt,
	}
	if err := tf.DB.DB.Create(n).Error; err != nil {
		return nil, fmt.Errorf("failed to create test notification: %w", err)
	}
	return n, nil
}
