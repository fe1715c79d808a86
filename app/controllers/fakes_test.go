package controllers

import (
	"errors"
	"sort"
	"sync"
	"time"

	"gorm.io/gorm"

	"github.com/lovetextforher/lovetext/app/models"
)

// In-memory repository fakes shared by the controller tests.

type fakeUserRepo struct {
	mu     sync.Mutex
	nextID uint
	users  map[uint]*models.User
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{nextID: 1, users: make(map[uint]*models.User)}
}

func (f *fakeUserRepo) Create(u *models.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	u.ID = f.nextID
	f.nextID++
	cp := *u
	f.users[u.ID] = &cp
	return nil
}

func (f *fakeUserRepo) GetByID(id uint) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *u
	return &cp, nil
}

func (f *fakeUserRepo) GetByEmail(email string) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.users {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeUserRepo) GetByExternalCustomerID(ref string) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.users {
		if u.ExternalCustomerID == ref {
			cp := *u
			return &cp, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeUserRepo) Update(u *models.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.users[u.ID]; !ok {
		return gorm.ErrRecordNotFound
	}
	cp := *u
	f.users[u.ID] = &cp
	return nil
}

func (f *fakeUserRepo) DeleteCascade(id uint) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.users[id]; !ok {
		return gorm.ErrRecordNotFound
	}
	delete(f.users, id)
	return nil
}

func (f *fakeUserRepo) List(offset, limit int) ([]models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.User
	for _, u := range f.users {
		out = append(out, *u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	if offset >= len(out) {
		return nil, nil
	}
	out = out[offset:]
	if limit < len(out) {
		out = out[:limit]
	}
	return out, nil
}

func (f *fakeUserRepo) Count() (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return int64(len(f.users)), nil
}

type fakeRecipientRepo struct {
	mu         sync.Mutex
	nextID     uint
	recipients map[uint]*models.Recipient
}

func newFakeRecipientRepo() *fakeRecipientRepo {
	return &fakeRecipientRepo{nextID: 1, recipients: make(map[uint]*models.Recipient)}
}

func (f *fakeRecipientRepo) Create(r *models.Recipient) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	r.ID = f.nextID
	f.nextID++
	cp := *r
	f.recipients[r.ID] = &cp
	return nil
}

func (f *fakeRecipientRepo) GetByID(id uint) (*models.Recipient, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.recipients[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *r
	return &cp, nil
}

func (f *fakeRecipientRepo) GetByUnsubscribeToken(token string) (*models.Recipient, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range f.recipients {
		if r.UnsubscribeToken == token {
			cp := *r
			return &cp, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeRecipientRepo) ListByUser(userID uint) ([]models.Recipient, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Recipient
	for _, r := range f.recipients {
		if r.UserID == userID {
			out = append(out, *r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *fakeRecipientRepo) CountByUser(userID uint) (int64, error) {
	list, _ := f.ListByUser(userID)
	return int64(len(list)), nil
}

func (f *fakeRecipientRepo) ListDue(now time.Time) ([]models.Recipient, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Recipient
	for _, r := range f.recipients {
		if r.IsActive && !r.NextDelivery.After(now) {
			out = append(out, *r)
		}
	}
	return out, nil
}

func (f *fakeRecipientRepo) Update(r *models.Recipient) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.recipients[r.ID]; !ok {
		return gorm.ErrRecordNotFound
	}
	cp := *r
	f.recipients[r.ID] = &cp
	return nil
}

func (f *fakeRecipientRepo) AdvanceCursor(id uint, next time.Time, sentAt time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.recipients[id]
	if !ok {
		return nil
	}
	r.NextDelivery = next
	sent := sentAt
	r.LastSent = &sent
	return nil
}

func (f *fakeRecipientRepo) Delete(id uint) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.recipients, id)
	return nil
}

func (f *fakeRecipientRepo) DeleteByUser(userID uint) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for id, r := range f.recipients {
		if r.UserID == userID {
			delete(f.recipients, id)
		}
	}
	return nil
}

type fakeBillingRepo struct {
	mu          sync.Mutex
	users       *fakeUserRepo
	recipients  *fakeRecipientRepo
	nextEventID uint
	events      map[string]*models.BillingWebhookEvent
}

func newFakeBillingRepo(users *fakeUserRepo, recipients *fakeRecipientRepo) *fakeBillingRepo {
	return &fakeBillingRepo{
		users:       users,
		recipients:  recipients,
		nextEventID: 1,
		events:      make(map[string]*models.BillingWebhookEvent),
	}
}

func (f *fakeBillingRepo) GetUserByID(id uint) (*models.User, error) {
	return f.users.GetByID(id)
}

func (f *fakeBillingRepo) GetUserByExternalCustomerID(ref string) (*models.User, error) {
	return f.users.GetByExternalCustomerID(ref)
}

func (f *fakeBillingRepo) SaveUser(u *models.User) error {
	return f.users.Update(u)
}

func (f *fakeBillingRepo) RevokeAndCascade(u *models.User) error {
	if err := f.users.Update(u); err != nil {
		return err
	}
	return f.recipients.DeleteByUser(u.ID)
}

func (f *fakeBillingRepo) CountRecipients(userID uint) (int64, error) {
	return f.recipients.CountByUser(userID)
}

func (f *fakeBillingRepo) DeleteOldestExcess(userID uint, keep int) (int64, error) {
	list, err := f.recipients.ListByUser(userID)
	if err != nil {
		return 0, err
	}
	excess := len(list) - keep
	if excess <= 0 {
		return 0, nil
	}
	for i := 0; i < excess; i++ {
		if err := f.recipients.Delete(list[i].ID); err != nil {
			return int64(i), err
		}
	}
	return int64(excess), nil
}

func (f *fakeBillingRepo) CreateWebhookEventIfNotExists(event *models.BillingWebhookEvent) (bool, *models.BillingWebhookEvent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := event.Provider + "/" + event.ProviderEventID
	if existing, ok := f.events[key]; ok {
		cp := *existing
		return false, &cp, nil
	}
	event.ID = f.nextEventID
	f.nextEventID++
	cp := *event
	f.events[key] = &cp
	out := cp
	return true, &out, nil
}

func (f *fakeBillingRepo) MarkWebhookProcessed(id uint, processingError string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, ev := range f.events {
		if ev.ID == id {
			now := time.Now()
			ev.ProcessedAt = &now
			ev.ProcessingError = processingError
			return nil
		}
	}
	return errors.New("event not found")
}

func (f *fakeBillingRepo) ListExpiredTrials(now time.Time) ([]models.User, error) {
	f.users.mu.Lock()
	defer f.users.mu.Unlock()
	var out []models.User
	for _, u := range f.users.users {
		if u.TrialActive && u.TrialEnd != nil && !u.TrialEnd.After(now) {
			out = append(out, *u)
		}
	}
	return out, nil
}
