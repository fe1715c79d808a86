package billing

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/lovetextforher/lovetext/app/models"
	"github.com/lovetextforher/lovetext/internal/pkg/entitlements"
	"gorm.io/gorm"
)

// TrialDuration is how long a consumed trial entitles deliveries.
const TrialDuration = 72 * time.Hour

var (
	ErrTrialAlreadyUsed = errors.New("trial already used")
	ErrUnknownCustomer  = errors.New("event does not reference a known customer")
)

// Service reconciles asynchronous billing-provider events into local
// entitlement state. Every transition is idempotent: replays are deduplicated
// at the event table, and the transitions themselves are current-state checks
// rather than increments.
type Service struct {
	repo  Repository
	plans *PlanResolver
	now   func() time.Time
}

// NewService creates a billing service from an injected repository.
func NewService(repo Repository, plans *PlanResolver) *Service {
	return &Service{repo: repo, plans: plans, now: time.Now}
}

// NewServiceFromDB creates a billing service from a GORM DB handle.
func NewServiceFromDB(db *gorm.DB, plans *PlanResolver) *Service {
	return NewService(NewRepository(db), plans)
}

// RecordWebhookEvent persists webhook payloads idempotently. The returned
// bool is false when the event was seen before.
func (s *Service) RecordWebhookEvent(ctx context.Context, eventID, eventType string, payload []byte, signatureValid bool) (bool, *models.BillingWebhookEvent, error) {
	_ = ctx
	id := strings.TrimSpace(eventID)
	if id == "" {
		sum := sha256.Sum256(payload)
		id = "hash:" + hex.EncodeToString(sum[:])
	}

	event := &models.BillingWebhookEvent{
		Provider:        Provider,
		ProviderEventID: id,
		EventType:       strings.TrimSpace(eventType),
		PayloadJSON:     string(payload),
		SignatureValid:  signatureValid,
	}
	return s.repo.CreateWebhookEventIfNotExists(event)
}

// MarkWebhookProcessed marks an event as processed and stores an optional error.
func (s *Service) MarkWebhookProcessed(ctx context.Context, webhookEventID uint, processingErr error) error {
	_ = ctx
	if webhookEventID == 0 {
		return errors.New("webhook_event_id is required")
	}
	errMsg := ""
	if processingErr != nil {
		errMsg = processingErr.Error()
	}
	return s.repo.MarkWebhookProcessed(webhookEventID, errMsg)
}

// Apply runs one normalized billing event through the entitlement state
// machine.
func (s *Service) Apply(ctx context.Context, ev *Event) error {
	_ = ctx
	if ev == nil {
		return errors.New("event is required")
	}

	switch ev.Type {
	case EventCheckoutCompleted:
		return s.applyCheckoutCompleted(ev)
	case EventSubscriptionCreated:
		return s.applySubscriptionCreated(ev)
	case EventSubscriptionUpdated:
		return s.applySubscriptionUpdated(ev)
	case EventSubscriptionDeleted:
		return s.applySubscriptionDeleted(ev)
	default:
		// Acknowledged but not entitlement-relevant.
		return nil
	}
}

func (s *Service) applyCheckoutCompleted(ev *Event) error {
	u, err := s.lookupUser(ev)
	if err != nil {
		return err
	}

	if ev.CustomerRef != "" {
		u.ExternalCustomerID = ev.CustomerRef
	}
	if ev.SubscriptionRef != "" {
		u.ExternalSubscriptionID = ev.SubscriptionRef
	}

	plan := s.plans.Resolve(ev.PriceRef)
	if plan == entitlements.PlanTrial {
		if u.TrialUsed {
			return ErrTrialAlreadyUsed
		}
		end := s.now().Add(TrialDuration)
		u.Plan = string(entitlements.PlanTrial)
		u.TrialActive = true
		u.TrialEnd = &end
		u.TrialUsed = true
		u.HasSubscription = true
		u.SubscriptionEnd = nil
		return s.repo.SaveUser(u)
	}

	return s.grantPaidPlan(u, plan)
}

func (s *Service) applySubscriptionCreated(ev *Event) error {
	u, err := s.lookupUser(ev)
	if err != nil {
		return err
	}
	if ev.CustomerRef != "" {
		u.ExternalCustomerID = ev.CustomerRef
	}
	if ev.SubscriptionRef != "" {
		u.ExternalSubscriptionID = ev.SubscriptionRef
	}
	return s.grantPaidPlan(u, s.plans.Resolve(ev.PriceRef))
}

func (s *Service) applySubscriptionUpdated(ev *Event) error {
	u, err := s.lookupUser(ev)
	if err != nil {
		return err
	}

	// Ignore updates for a subscription that is not the customer's current
	// one; a superseded subscription must not clobber newer state.
	if u.ExternalSubscriptionID != "" && ev.SubscriptionRef != "" && ev.SubscriptionRef != u.ExternalSubscriptionID {
		return nil
	}

	if ev.Status == SubscriptionStatusCanceled {
		return s.revokeEntitlement(u)
	}

	if ev.CancelAtPeriodEnd {
		if ev.CurrentPeriodEnd == nil {
			return fmt.Errorf("cancel_at_period_end without current_period_end for subscription %s", ev.SubscriptionRef)
		}
		u.SubscriptionEnd = ev.CurrentPeriodEnd
		return s.repo.SaveUser(u)
	}

	// Plan change on an active, non-canceling subscription: only the plan
	// moves; cancellation fields stay untouched.
	u.Plan = string(s.plans.Resolve(ev.PriceRef))
	if err := s.repo.SaveUser(u); err != nil {
		return err
	}
	return s.enforceRecipientLimit(u)
}

func (s *Service) applySubscriptionDeleted(ev *Event) error {
	u, err := s.lookupUser(ev)
	if err != nil {
		return err
	}
	return s.revokeEntitlement(u)
}

func (s *Service) grantPaidPlan(u *models.User, plan entitlements.Plan) error {
	u.Plan = string(plan)
	u.HasSubscription = true
	u.SubscriptionEnd = nil
	u.TrialActive = false
	u.TrialEnd = nil
	if err := s.repo.SaveUser(u); err != nil {
		return err
	}
	return s.enforceRecipientLimit(u)
}

// revokeEntitlement clears all entitlement state and cascade-deletes the
// user's recipients. TrialUsed deliberately survives so the trial can never
// be consumed twice.
func (s *Service) revokeEntitlement(u *models.User) error {
	u.Plan = string(entitlements.PlanNone)
	u.HasSubscription = false
	u.SubscriptionEnd = nil
	u.TrialActive = false
	u.TrialEnd = nil
	return s.repo.RevokeAndCascade(u)
}

// enforceRecipientLimit trims the user's recipients to the plan cap,
// evicting the oldest (lowest ID) first so recently added recipients stay.
func (s *Service) enforceRecipientLimit(u *models.User) error {
	limit, unlimited := entitlements.RecipientLimit(entitlements.ParsePlan(u.Plan))
	if unlimited {
		return nil
	}
	_, err := s.repo.DeleteOldestExcess(u.ID, limit)
	return err
}

// SweepExpiredTrials revokes entitlement for customers whose trial window has
// passed while trial_active is still set. It backs up the provider's own
// cancellation event in case that event is delayed or lost. Per-customer
// failures do not stop the sweep.
func (s *Service) SweepExpiredTrials(ctx context.Context) (int, error) {
	_ = ctx
	users, err := s.repo.ListExpiredTrials(s.now())
	if err != nil {
		return 0, err
	}

	var errs []error
	revoked := 0
	for i := range users {
		if err := s.revokeEntitlement(&users[i]); err != nil {
			errs = append(errs, fmt.Errorf("user %d: %w", users[i].ID, err))
			continue
		}
		revoked++
	}
	return revoked, errors.Join(errs...)
}

func (s *Service) lookupUser(ev *Event) (*models.User, error) {
	if ev.CustomerRef != "" {
		u, err := s.repo.GetUserByExternalCustomerID(ev.CustomerRef)
		if err == nil {
			return u, nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}
	}
	// Checkout events carry the local user id the checkout was created with.
	if ev.ClientReference != "" {
		id, err := strconv.ParseUint(ev.ClientReference, 10, 64)
		if err == nil && id > 0 {
			return s.repo.GetUserByID(uint(id))
		}
	}
	return nil, ErrUnknownCustomer
}
