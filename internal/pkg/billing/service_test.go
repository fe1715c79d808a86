package billing

import (
	"context"
	"errors"
	"sort"
	"testing"
	"time"

	"github.com/lovetextforher/lovetext/app/models"
	"github.com/lovetextforher/lovetext/internal/pkg/entitlements"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type fakeRepo struct {
	users      map[uint]*models.User
	recipients map[uint][]uint // userID -> recipient IDs, ascending
	events     map[string]*models.BillingWebhookEvent
	nextEvent  uint
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		users:      map[uint]*models.User{},
		recipients: map[uint][]uint{},
		events:     map[string]*models.BillingWebhookEvent{},
	}
}

func (f *fakeRepo) addUser(u *models.User) *models.User {
	f.users[u.ID] = u
	return u
}

func (f *fakeRepo) addRecipients(userID uint, ids ...uint) {
	f.recipients[userID] = append(f.recipients[userID], ids...)
	sort.Slice(f.recipients[userID], func(i, j int) bool { return f.recipients[userID][i] < f.recipients[userID][j] })
}

func (f *fakeRepo) GetUserByID(id uint) (*models.User, error) {
	if u, ok := f.users[id]; ok {
		return u, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeRepo) GetUserByExternalCustomerID(ref string) (*models.User, error) {
	for _, u := range f.users {
		if u.ExternalCustomerID == ref {
			return u, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeRepo) SaveUser(u *models.User) error {
	f.users[u.ID] = u
	return nil
}

func (f *fakeRepo) RevokeAndCascade(u *models.User) error {
	f.users[u.ID] = u
	f.recipients[u.ID] = nil
	return nil
}

func (f *fakeRepo) CountRecipients(userID uint) (int64, error) {
	return int64(len(f.recipients[userID])), nil
}

func (f *fakeRepo) DeleteOldestExcess(userID uint, keep int) (int64, error) {
	ids := f.recipients[userID]
	excess := len(ids) - keep
	if excess <= 0 {
		return 0, nil
	}
	f.recipients[userID] = ids[excess:]
	return int64(excess), nil
}

func (f *fakeRepo) CreateWebhookEventIfNotExists(event *models.BillingWebhookEvent) (bool, *models.BillingWebhookEvent, error) {
	if stored, ok := f.events[event.ProviderEventID]; ok {
		return false, stored, nil
	}
	f.nextEvent++
	event.ID = f.nextEvent
	f.events[event.ProviderEventID] = event
	return true, event, nil
}

func (f *fakeRepo) MarkWebhookProcessed(id uint, processingError string) error {
	for _, ev := range f.events {
		if ev.ID == id {
			now := time.Now()
			ev.ProcessedAt = &now
			ev.ProcessingError = processingError
			return nil
		}
	}
	return gorm.ErrRecordNotFound
}

func (f *fakeRepo) ListExpiredTrials(now time.Time) ([]models.User, error) {
	var out []models.User
	for _, u := range f.users {
		if u.TrialActive && u.TrialEnd != nil && !u.TrialEnd.After(now) {
			out = append(out, *u)
		}
	}
	return out, nil
}

func testPlans() *PlanResolver {
	return NewPlanResolver("price_trial", "price_basic", "price_plus")
}

func testService(repo Repository, now time.Time) *Service {
	svc := NewService(repo, testPlans())
	svc.now = func() time.Time { return now }
	return svc
}

func TestApply_TrialCheckout(t *testing.T) {
	repo := newFakeRepo()
	u := repo.addUser(&models.User{ID: 1})
	now := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	svc := testService(repo, now)

	err := svc.Apply(context.Background(), &Event{
		Type:            EventCheckoutCompleted,
		CustomerRef:     "cus_1",
		SubscriptionRef: "sub_1",
		PriceRef:        "price_trial",
		ClientReference: "1",
	})
	require.NoError(t, err)

	assert.True(t, u.TrialActive)
	assert.True(t, u.TrialUsed)
	assert.True(t, u.HasSubscription)
	assert.Equal(t, "trial", u.Plan)
	assert.Equal(t, "cus_1", u.ExternalCustomerID)
	assert.Equal(t, "sub_1", u.ExternalSubscriptionID)
	require.NotNil(t, u.TrialEnd)
	assert.Equal(t, now.Add(TrialDuration), *u.TrialEnd)
	assert.True(t, entitlements.IsEntitled(u, now))
}

func TestApply_TrialConsumptionIsMonotonic(t *testing.T) {
	repo := newFakeRepo()
	u := repo.addUser(&models.User{ID: 1, ExternalCustomerID: "cus_1"})
	svc := testService(repo, time.Now().UTC())

	trialCheckout := &Event{Type: EventCheckoutCompleted, CustomerRef: "cus_1", PriceRef: "price_trial"}
	require.NoError(t, svc.Apply(context.Background(), trialCheckout))
	require.True(t, u.TrialUsed)

	// Second trial checkout is rejected, no matter what happened in between.
	require.NoError(t, svc.Apply(context.Background(), &Event{Type: EventSubscriptionDeleted, CustomerRef: "cus_1"}))
	assert.False(t, u.TrialActive)
	assert.True(t, u.TrialUsed, "trial_used must survive revocation")

	err := svc.Apply(context.Background(), trialCheckout)
	assert.ErrorIs(t, err, ErrTrialAlreadyUsed)
	assert.False(t, u.TrialActive)
}

func TestApply_PaidCheckoutClearsTrial(t *testing.T) {
	repo := newFakeRepo()
	end := time.Now().Add(time.Hour)
	u := repo.addUser(&models.User{ID: 1, ExternalCustomerID: "cus_1", TrialActive: true, TrialEnd: &end, TrialUsed: true})
	svc := testService(repo, time.Now().UTC())

	require.NoError(t, svc.Apply(context.Background(), &Event{
		Type:            EventCheckoutCompleted,
		CustomerRef:     "cus_1",
		SubscriptionRef: "sub_9",
		PriceRef:        "price_plus",
	}))

	assert.Equal(t, "plus", u.Plan)
	assert.True(t, u.HasSubscription)
	assert.False(t, u.TrialActive)
	assert.Nil(t, u.TrialEnd)
	assert.Nil(t, u.SubscriptionEnd)
	assert.True(t, u.TrialUsed)
}

func TestApply_CancelAtPeriodEndKeepsEntitlementUntilBoundary(t *testing.T) {
	repo := newFakeRepo()
	u := repo.addUser(&models.User{ID: 1, ExternalCustomerID: "cus_1", ExternalSubscriptionID: "sub_1", HasSubscription: true, Plan: "basic"})
	svc := testService(repo, time.Now().UTC())

	periodEnd := time.Date(2024, 7, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, svc.Apply(context.Background(), &Event{
		Type:              EventSubscriptionUpdated,
		CustomerRef:       "cus_1",
		SubscriptionRef:   "sub_1",
		Status:            SubscriptionStatusActive,
		CancelAtPeriodEnd: true,
		CurrentPeriodEnd:  &periodEnd,
	}))

	assert.True(t, u.HasSubscription, "has_subscription is not cleared yet")
	require.NotNil(t, u.SubscriptionEnd)
	assert.True(t, entitlements.IsEntitled(u, periodEnd.Add(-time.Second)))
	assert.False(t, entitlements.IsEntitled(u, periodEnd.Add(time.Second)))
}

func TestApply_ImmediateCancellationCascades(t *testing.T) {
	repo := newFakeRepo()
	u := repo.addUser(&models.User{ID: 1, ExternalCustomerID: "cus_1", ExternalSubscriptionID: "sub_1", HasSubscription: true, Plan: "plus"})
	repo.addRecipients(1, 10, 11, 12, 13)
	svc := testService(repo, time.Now().UTC())

	cancel := &Event{
		Type:            EventSubscriptionUpdated,
		CustomerRef:     "cus_1",
		SubscriptionRef: "sub_1",
		Status:          SubscriptionStatusCanceled,
	}
	require.NoError(t, svc.Apply(context.Background(), cancel))

	assert.False(t, u.HasSubscription)
	assert.Equal(t, "none", u.Plan)
	assert.Nil(t, u.SubscriptionEnd)
	assert.Empty(t, repo.recipients[1])

	// Replay is a no-op, not an error.
	require.NoError(t, svc.Apply(context.Background(), cancel))
	assert.False(t, u.HasSubscription)
	assert.Empty(t, repo.recipients[1])
}

func TestApply_StaleSubscriptionIDIgnored(t *testing.T) {
	repo := newFakeRepo()
	u := repo.addUser(&models.User{ID: 1, ExternalCustomerID: "cus_1", ExternalSubscriptionID: "sub_new", HasSubscription: true, Plan: "plus"})
	svc := testService(repo, time.Now().UTC())

	require.NoError(t, svc.Apply(context.Background(), &Event{
		Type:            EventSubscriptionUpdated,
		CustomerRef:     "cus_1",
		SubscriptionRef: "sub_old",
		Status:          SubscriptionStatusCanceled,
	}))

	assert.True(t, u.HasSubscription, "stale subscription event must not change state")
	assert.Equal(t, "plus", u.Plan)
}

func TestApply_DowngradeEvictsOldestRecipients(t *testing.T) {
	repo := newFakeRepo()
	u := repo.addUser(&models.User{ID: 1, ExternalCustomerID: "cus_1", ExternalSubscriptionID: "sub_1", HasSubscription: true, Plan: "plus"})
	repo.addRecipients(1, 10, 11, 12, 13, 14)
	svc := testService(repo, time.Now().UTC())

	require.NoError(t, svc.Apply(context.Background(), &Event{
		Type:            EventSubscriptionUpdated,
		CustomerRef:     "cus_1",
		SubscriptionRef: "sub_1",
		Status:          SubscriptionStatusActive,
		PriceRef:        "price_basic",
	}))

	assert.Equal(t, "basic", u.Plan)
	// Lowest IDs are evicted; the three most-recently-added stay.
	assert.Equal(t, []uint{12, 13, 14}, repo.recipients[1])
}

func TestApply_UnknownPriceResolvesToNoPlan(t *testing.T) {
	repo := newFakeRepo()
	u := repo.addUser(&models.User{ID: 1, ExternalCustomerID: "cus_1", ExternalSubscriptionID: "sub_1", HasSubscription: true, Plan: "basic"})
	svc := testService(repo, time.Now().UTC())

	require.NoError(t, svc.Apply(context.Background(), &Event{
		Type:            EventSubscriptionUpdated,
		CustomerRef:     "cus_1",
		SubscriptionRef: "sub_1",
		Status:          SubscriptionStatusActive,
		PriceRef:        "price_mystery",
	}))

	assert.Equal(t, "none", u.Plan)
}

func TestApply_UnknownCustomer(t *testing.T) {
	svc := testService(newFakeRepo(), time.Now().UTC())

	err := svc.Apply(context.Background(), &Event{Type: EventSubscriptionDeleted, CustomerRef: "cus_ghost"})
	assert.ErrorIs(t, err, ErrUnknownCustomer)
}

func TestSweepExpiredTrials(t *testing.T) {
	repo := newFakeRepo()
	now := time.Date(2024, 5, 10, 0, 0, 0, 0, time.UTC)

	past := now.Add(-time.Hour)
	future := now.Add(time.Hour)
	expired := repo.addUser(&models.User{ID: 1, TrialActive: true, TrialEnd: &past, TrialUsed: true, HasSubscription: true, Plan: "trial"})
	running := repo.addUser(&models.User{ID: 2, TrialActive: true, TrialEnd: &future, TrialUsed: true, HasSubscription: true, Plan: "trial"})
	repo.addRecipients(1, 100, 101)

	svc := testService(repo, now)
	revoked, err := svc.SweepExpiredTrials(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, revoked)

	got, err := repo.GetUserByID(expired.ID)
	require.NoError(t, err)
	assert.False(t, got.TrialActive)
	assert.False(t, got.HasSubscription)
	assert.True(t, got.TrialUsed)
	assert.Empty(t, repo.recipients[1])

	assert.True(t, running.TrialActive, "unexpired trial must be untouched")
}

func TestRecordWebhookEvent_Deduplicates(t *testing.T) {
	repo := newFakeRepo()
	svc := testService(repo, time.Now().UTC())
	payload := []byte(`{"id":"evt_1","type":"customer.subscription.deleted"}`)

	created, first, err := svc.RecordWebhookEvent(context.Background(), "evt_1", EventSubscriptionDeleted, payload, true)
	require.NoError(t, err)
	assert.True(t, created)

	created, second, err := svc.RecordWebhookEvent(context.Background(), "evt_1", EventSubscriptionDeleted, payload, true)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, first.ID, second.ID)
}

func TestRecordWebhookEvent_MissingIDFallsBackToPayloadHash(t *testing.T) {
	repo := newFakeRepo()
	svc := testService(repo, time.Now().UTC())
	payload := []byte(`{"type":"customer.subscription.updated"}`)

	created, _, err := svc.RecordWebhookEvent(context.Background(), "", EventSubscriptionUpdated, payload, true)
	require.NoError(t, err)
	assert.True(t, created)

	created, _, err = svc.RecordWebhookEvent(context.Background(), "", EventSubscriptionUpdated, payload, true)
	require.NoError(t, err)
	assert.False(t, created, "identical payload without id must deduplicate via hash")
}

func TestSweepExpiredTrials_PartialFailureContinues(t *testing.T) {
	repo := newFakeRepo()
	now := time.Now().UTC()
	past := now.Add(-time.Minute)
	repo.addUser(&models.User{ID: 1, TrialActive: true, TrialEnd: &past})
	repo.addUser(&models.User{ID: 2, TrialActive: true, TrialEnd: &past})

	failing := &failOnUser{fakeRepo: repo, failID: 1}
	svc := testService(failing, now)

	revoked, err := svc.SweepExpiredTrials(context.Background())
	assert.Error(t, err)
	assert.Equal(t, 1, revoked, "the healthy customer must still be swept")
}

type failOnUser struct {
	*fakeRepo
	failID uint
}

func (f *failOnUser) RevokeAndCascade(u *models.User) error {
	if u.ID == f.failID {
		return errors.New("boom")
	}
	return f.fakeRepo.RevokeAndCascade(u)
}
