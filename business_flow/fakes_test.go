package businessflow

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"sort"
	"sync"
	"time"

	"github.com/amirphl/Kaminari/app/services"
	"github.com/amirphl/Kaminari/models"
	"github.com/amirphl/Kaminari/repository"
	"github.com/amirphl/Kaminari/utils"
	"github.com/google/uuid"
)

var errStoreDown = errors.New("store unavailable")

func discardLogger() *log.Logger {
	return log.New(io.Discard, "", 0)
}

// ---- subscribers ----

type memSubscriberRepo struct {
	mu        sync.Mutex
	rows      []*models.Subscriber
	nextID    uint
	listErr   error
	deleteErr error
}

var _ repository.SubscriberRepository = (*memSubscriberRepo)(nil)

func newMemSubscriberRepo() *memSubscriberRepo {
	return &memSubscriberRepo{nextID: 1}
}

// add seeds a subscriber registered at createdAt
func (r *memSubscriberRepo) add(endpoint string, createdAt time.Time) *models.Subscriber {
	r.mu.Lock()
	defer r.mu.Unlock()
	sub := &models.Subscriber{
		ID:        r.nextID,
		Endpoint:  endpoint,
		P256dh:    "p256dh-" + endpoint,
		Auth:      "auth-" + endpoint,
		CreatedAt: createdAt,
		UpdatedAt: createdAt,
	}
	r.nextID++
	r.rows = append(r.rows, sub)
	cp := *sub
	return &cp
}

func (r *memSubscriberRepo) snapshot(pred func(*models.Subscriber) bool) []*models.Subscriber {
	out := make([]*models.Subscriber, 0, len(r.rows))
	for _, s := range r.rows {
		if pred == nil || pred(s) {
			cp := *s
			out = append(out, &cp)
		}
	}
	return out
}

func (r *memSubscriberRepo) Upsert(ctx context.Context, sub *models.Subscriber) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := utils.UTCNow()
	for _, s := range r.rows {
		if s.Endpoint == sub.Endpoint {
			s.P256dh, s.Auth, s.UserAgent, s.UpdatedAt = sub.P256dh, sub.Auth, sub.UserAgent, now
			*sub = *s
			return nil
		}
	}
	sub.ID = r.nextID
	r.nextID++
	sub.CreatedAt, sub.UpdatedAt = now, now
	cp := *sub
	r.rows = append(r.rows, &cp)
	return nil
}

func (r *memSubscriberRepo) ListAll(ctx context.Context) ([]*models.Subscriber, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.listErr != nil {
		return nil, r.listErr
	}
	return r.snapshot(nil), nil
}

func (r *memSubscriberRepo) ListCreatedBefore(ctx context.Context, cutoff time.Time) ([]*models.Subscriber, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.listErr != nil {
		return nil, r.listErr
	}
	return r.snapshot(func(s *models.Subscriber) bool { return !s.CreatedAt.After(cutoff) }), nil
}

func (r *memSubscriberRepo) DeleteByEndpoints(ctx context.Context, endpoints []string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.deleteErr != nil {
		return 0, r.deleteErr
	}
	gone := make(map[string]struct{}, len(endpoints))
	for _, e := range endpoints {
		gone[e] = struct{}{}
	}
	kept := r.rows[:0]
	var deleted int64
	for _, s := range r.rows {
		if _, ok := gone[s.Endpoint]; ok {
			deleted++
			continue
		}
		kept = append(kept, s)
	}
	r.rows = kept
	return deleted, nil
}

func (r *memSubscriberRepo) endpoints() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.rows))
	for _, s := range r.rows {
		out = append(out, s.Endpoint)
	}
	sort.Strings(out)
	return out
}

func (r *memSubscriberRepo) ByID(ctx context.Context, id uint) (*models.Subscriber, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range r.rows {
		if s.ID == id {
			cp := *s
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *memSubscriberRepo) ByFilter(ctx context.Context, f models.SubscriberFilter, orderBy string, limit, offset int) ([]*models.Subscriber, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.snapshot(func(s *models.Subscriber) bool {
		return (f.ID == nil || s.ID == *f.ID) && (f.Endpoint == nil || s.Endpoint == *f.Endpoint)
	}), nil
}

func (r *memSubscriberRepo) Save(ctx context.Context, sub *models.Subscriber) error {
	return r.Upsert(ctx, sub)
}

func (r *memSubscriberRepo) SaveBatch(ctx context.Context, subs []*models.Subscriber) error {
	for _, s := range subs {
		if err := r.Upsert(ctx, s); err != nil {
			return err
		}
	}
	return nil
}

func (r *memSubscriberRepo) Count(ctx context.Context, f models.SubscriberFilter) (int64, error) {
	rows, err := r.ByFilter(ctx, f, "", 0, 0)
	return int64(len(rows)), err
}

func (r *memSubscriberRepo) Exists(ctx context.Context, f models.SubscriberFilter) (bool, error) {
	n, err := r.Count(ctx, f)
	return n > 0, err
}

// ---- notification history ----

type memNotificationRepo struct {
	mu      sync.Mutex
	rows    []*models.NotificationRecord
	saveErr error
}

var _ repository.NotificationRepository = (*memNotificationRepo)(nil)

func (r *memNotificationRepo) ListRecent(ctx context.Context, limit int) ([]*models.NotificationRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*models.NotificationRecord, 0, len(r.rows))
	for i := len(r.rows) - 1; i >= 0 && len(out) < limit; i-- {
		cp := *r.rows[i]
		out = append(out, &cp)
	}
	return out, nil
}

func (r *memNotificationRepo) ByID(ctx context.Context, id uint) (*models.NotificationRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, n := range r.rows {
		if n.ID == id {
			cp := *n
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *memNotificationRepo) ByFilter(ctx context.Context, f models.NotificationRecordFilter, orderBy string, limit, offset int) ([]*models.NotificationRecord, error) {
	return r.ListRecent(ctx, len(r.rows))
}

func (r *memNotificationRepo) Save(ctx context.Context, n *models.NotificationRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.saveErr != nil {
		return r.saveErr
	}
	n.ID = uint(len(r.rows) + 1)
	if n.UUID == uuid.Nil {
		n.UUID = uuid.New()
	}
	cp := *n
	r.rows = append(r.rows, &cp)
	return nil
}

func (r *memNotificationRepo) SaveBatch(ctx context.Context, rows []*models.NotificationRecord) error {
	for _, n := range rows {
		if err := r.Save(ctx, n); err != nil {
			return err
		}
	}
	return nil
}

func (r *memNotificationRepo) Count(ctx context.Context, f models.NotificationRecordFilter) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return int64(len(r.rows)), nil
}

func (r *memNotificationRepo) Exists(ctx context.Context, f models.NotificationRecordFilter) (bool, error) {
	n, err := r.Count(ctx, f)
	return n > 0, err
}

// ---- A/B campaigns ----

type memABCampaignRepo struct {
	mu           sync.Mutex
	rows         map[uint]*models.ABCampaign
	nextID       uint
	completeErr  error
	claims       int
	markComplete int
}

var _ repository.ABCampaignRepository = (*memABCampaignRepo)(nil)

func newMemABCampaignRepo() *memABCampaignRepo {
	return &memABCampaignRepo{rows: map[uint]*models.ABCampaign{}, nextID: 1}
}

func (r *memABCampaignRepo) ByID(ctx context.Context, id uint) (*models.ABCampaign, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.rows[id]
	if !ok {
		return nil, nil
	}
	cp := *c
	return &cp, nil
}

func (r *memABCampaignRepo) ByFilter(ctx context.Context, f models.ABCampaignFilter, orderBy string, limit, offset int) ([]*models.ABCampaign, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*models.ABCampaign, 0, len(r.rows))
	for _, c := range r.rows {
		cp := *c
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (r *memABCampaignRepo) Save(ctx context.Context, c *models.ABCampaign) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c.ID = r.nextID
	r.nextID++
	if c.UUID == uuid.Nil {
		c.UUID = uuid.New()
	}
	if c.Status == "" {
		c.Status = models.ABCampaignStatusDraft
	}
	c.CreatedAt = utils.UTCNow()
	cp := *c
	r.rows[c.ID] = &cp
	return nil
}

func (r *memABCampaignRepo) SaveBatch(ctx context.Context, rows []*models.ABCampaign) error {
	for _, c := range rows {
		if err := r.Save(ctx, c); err != nil {
			return err
		}
	}
	return nil
}

func (r *memABCampaignRepo) Count(ctx context.Context, f models.ABCampaignFilter) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return int64(len(r.rows)), nil
}

func (r *memABCampaignRepo) Exists(ctx context.Context, f models.ABCampaignFilter) (bool, error) {
	n, err := r.Count(ctx, f)
	return n > 0, err
}

func (r *memABCampaignRepo) ClaimForSend(ctx context.Context, id uint, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.rows[id]
	if !ok || c.Status != models.ABCampaignStatusDraft || c.SentAt != nil {
		return repository.ErrCampaignAlreadyClaimed
	}
	c.SentAt = &at
	r.claims++
	return nil
}

func (r *memABCampaignRepo) MarkCompleted(ctx context.Context, id uint, a, b int, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.completeErr != nil {
		return r.completeErr
	}
	c, ok := r.rows[id]
	if !ok || c.Status != models.ABCampaignStatusDraft {
		return repository.ErrCampaignNotDraft
	}
	c.Status = models.ABCampaignStatusCompleted
	c.VariantASent, c.VariantBSent = a, b
	if c.SentAt == nil {
		c.SentAt = &at
	}
	c.CompletedAt = &at
	r.markComplete++
	return nil
}

func (r *memABCampaignRepo) Delete(ctx context.Context, id uint) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.rows[id]; !ok {
		return false, nil
	}
	delete(r.rows, id)
	return true, nil
}

// ---- automation flows ----

type memFlowRepo struct {
	mu      sync.Mutex
	rows    map[uint]*models.AutomationFlow
	nextID  uint
	listErr error
}

var _ repository.AutomationFlowRepository = (*memFlowRepo)(nil)

func newMemFlowRepo() *memFlowRepo {
	return &memFlowRepo{rows: map[uint]*models.AutomationFlow{}, nextID: 1}
}

func (r *memFlowRepo) ByID(ctx context.Context, id uint) (*models.AutomationFlow, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	f, ok := r.rows[id]
	if !ok {
		return nil, nil
	}
	cp := *f
	return &cp, nil
}

func (r *memFlowRepo) ByFilter(ctx context.Context, f models.AutomationFlowFilter, orderBy string, limit, offset int) ([]*models.AutomationFlow, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.listErr != nil {
		return nil, r.listErr
	}
	out := make([]*models.AutomationFlow, 0, len(r.rows))
	for _, fl := range r.rows {
		if f.Status != nil && fl.Status != *f.Status {
			continue
		}
		if f.Status == nil && !f.IncludeDeleted && fl.Status == models.AutomationFlowStatusDeleted {
			continue
		}
		cp := *fl
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *memFlowRepo) ListActive(ctx context.Context) ([]*models.AutomationFlow, error) {
	status := models.AutomationFlowStatusActive
	return r.ByFilter(ctx, models.AutomationFlowFilter{Status: &status}, "id ASC", 0, 0)
}

func (r *memFlowRepo) Save(ctx context.Context, f *models.AutomationFlow) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	f.ID = r.nextID
	r.nextID++
	if f.UUID == uuid.Nil {
		f.UUID = uuid.New()
	}
	if f.Status == "" {
		f.Status = models.AutomationFlowStatusActive
	}
	f.CreatedAt = utils.UTCNow()
	cp := *f
	r.rows[f.ID] = &cp
	return nil
}

func (r *memFlowRepo) SaveBatch(ctx context.Context, rows []*models.AutomationFlow) error {
	for _, f := range rows {
		if err := r.Save(ctx, f); err != nil {
			return err
		}
	}
	return nil
}

func (r *memFlowRepo) Count(ctx context.Context, f models.AutomationFlowFilter) (int64, error) {
	rows, err := r.ByFilter(ctx, f, "", 0, 0)
	return int64(len(rows)), err
}

func (r *memFlowRepo) Exists(ctx context.Context, f models.AutomationFlowFilter) (bool, error) {
	n, err := r.Count(ctx, f)
	return n > 0, err
}

func (r *memFlowRepo) UpdateContent(ctx context.Context, f *models.AutomationFlow) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cur, ok := r.rows[f.ID]
	if !ok || cur.Status == models.AutomationFlowStatusDeleted {
		return repository.ErrFlowStatusConflict
	}
	cur.Name, cur.TriggerDelayHours, cur.Title, cur.Body, cur.URL = f.Name, f.TriggerDelayHours, f.Title, f.Body, f.URL
	return nil
}

func (r *memFlowRepo) UpdateStatus(ctx context.Context, id uint, from, to models.AutomationFlowStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cur, ok := r.rows[id]
	if !ok || cur.Status != from {
		return repository.ErrFlowStatusConflict
	}
	cur.Status = to
	return nil
}

// ---- sent markers ----

type markerKey struct{ flowID, subscriberID uint }

type memMarkerRepo struct {
	mu          sync.Mutex
	markers     map[markerKey]struct{}
	failForFlow map[uint]bool
}

var _ repository.AutomationSentMarkerRepository = (*memMarkerRepo)(nil)

func newMemMarkerRepo() *memMarkerRepo {
	return &memMarkerRepo{markers: map[markerKey]struct{}{}, failForFlow: map[uint]bool{}}
}

func (r *memMarkerRepo) HasMarker(ctx context.Context, flowID, subscriberID uint) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.markers[markerKey{flowID, subscriberID}]
	return ok, nil
}

func (r *memMarkerRepo) InsertMarker(ctx context.Context, flowID, subscriberID uint) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	k := markerKey{flowID, subscriberID}
	if _, ok := r.markers[k]; ok {
		return repository.ErrDuplicateMarker
	}
	r.markers[k] = struct{}{}
	return nil
}

func (r *memMarkerRepo) DeleteMarker(ctx context.Context, flowID, subscriberID uint) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.markers, markerKey{flowID, subscriberID})
	return nil
}

func (r *memMarkerRepo) MarkedSubscriberIDs(ctx context.Context, flowID uint, ids []uint) (map[uint]struct{}, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failForFlow[flowID] {
		return nil, errStoreDown
	}
	out := map[uint]struct{}{}
	for _, id := range ids {
		if _, ok := r.markers[markerKey{flowID, id}]; ok {
			out[id] = struct{}{}
		}
	}
	return out, nil
}

func (r *memMarkerRepo) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.markers)
}

func (r *memMarkerRepo) ByID(ctx context.Context, id uint) (*models.AutomationSentMarker, error) {
	return nil, nil
}

func (r *memMarkerRepo) ByFilter(ctx context.Context, f models.AutomationSentMarkerFilter, orderBy string, limit, offset int) ([]*models.AutomationSentMarker, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.AutomationSentMarker
	for k := range r.markers {
		if (f.FlowID == nil || k.flowID == *f.FlowID) && (f.SubscriberID == nil || k.subscriberID == *f.SubscriberID) {
			out = append(out, &models.AutomationSentMarker{FlowID: k.flowID, SubscriberID: k.subscriberID})
		}
	}
	return out, nil
}

func (r *memMarkerRepo) Save(ctx context.Context, m *models.AutomationSentMarker) error {
	return r.InsertMarker(ctx, m.FlowID, m.SubscriberID)
}

func (r *memMarkerRepo) SaveBatch(ctx context.Context, rows []*models.AutomationSentMarker) error {
	for _, m := range rows {
		if err := r.Save(ctx, m); err != nil {
			return err
		}
	}
	return nil
}

func (r *memMarkerRepo) Count(ctx context.Context, f models.AutomationSentMarkerFilter) (int64, error) {
	rows, err := r.ByFilter(ctx, f, "", 0, 0)
	return int64(len(rows)), err
}

func (r *memMarkerRepo) Exists(ctx context.Context, f models.AutomationSentMarkerFilter) (bool, error) {
	n, err := r.Count(ctx, f)
	return n > 0, err
}

// ---- push transport ----

type sentPush struct {
	Endpoint string
	Payload  map[string]any
}

// fakeTransport answers 201 unless a status is configured for the endpoint
type fakeTransport struct {
	mu     sync.Mutex
	status map[string]int
	errs   map[string]error
	sent   []sentPush
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{status: map[string]int{}, errs: map[string]error{}}
}

func (t *fakeTransport) Send(ctx context.Context, recipient services.PushRecipient, payload []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	var body map[string]any
	_ = json.Unmarshal(payload, &body)
	t.sent = append(t.sent, sentPush{Endpoint: recipient.Endpoint, Payload: body})
	if err, ok := t.errs[recipient.Endpoint]; ok {
		return 0, err
	}
	if code, ok := t.status[recipient.Endpoint]; ok {
		return code, nil
	}
	return 201, nil
}

func (t *fakeTransport) setStatus(endpoint string, code int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.status[endpoint] = code
}

func (t *fakeTransport) clearStatus(endpoint string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.status, endpoint)
}

func (t *fakeTransport) deliveries() []sentPush {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]sentPush, len(t.sent))
	copy(out, t.sent)
	return out
}

func (t *fakeTransport) countByEndpoint() map[string]int {
	out := map[string]int{}
	for _, s := range t.deliveries() {
		out[s.Endpoint]++
	}
	return out
}

// gatedTransport holds the first delivery until release is closed
type gatedTransport struct {
	*fakeTransport
	once    sync.Once
	entered chan struct{}
	release chan struct{}
}

func newGatedTransport() *gatedTransport {
	return &gatedTransport{
		fakeTransport: newFakeTransport(),
		entered:       make(chan struct{}),
		release:       make(chan struct{}),
	}
}

func (t *gatedTransport) Send(ctx context.Context, recipient services.PushRecipient, payload []byte) (int, error) {
	t.once.Do(func() {
		close(t.entered)
		<-t.release
	})
	return t.fakeTransport.Send(ctx, recipient, payload)
}

func newTestPushService(t services.PushTransport) services.PushService {
	return services.NewPushService(t, services.PushServiceOptions{Workers: 4}, discardLogger())
}

// ---- locker ----

type busyLocker struct{}

func (busyLocker) TryLock(context.Context, string, time.Duration) (func(), bool, error) {
	return func() {}, false, nil
}
