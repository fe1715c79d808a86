package billing

import (
	"encoding/json"
	"errors"
	"strings"
	"time"
)

const Provider = "paygate"

// Event types emitted by the payment provider. The provider protocol itself
// is opaque; these are the normalized types the reconciler consumes.
const (
	EventCheckoutCompleted   = "checkout.session.completed"
	EventSubscriptionCreated = "customer.subscription.created"
	EventSubscriptionUpdated = "customer.subscription.updated"
	EventSubscriptionDeleted = "customer.subscription.deleted"
)

const (
	SubscriptionStatusActive   = "active"
	SubscriptionStatusCanceled = "canceled"
)

// Event is the provider-agnostic shape of one billing event after parsing.
type Event struct {
	ID                string
	Type              string
	CustomerRef       string
	SubscriptionRef   string
	PriceRef          string
	Status            string
	CancelAtPeriodEnd bool
	CurrentPeriodEnd  *time.Time
	ClientReference   string
}

type webhookEnvelope struct {
	ID   string `json:"id"`
	Type string `json:"type"`
	Data struct {
		Object struct {
			ID                string `json:"id"`
			Customer          string `json:"customer"`
			Subscription      string `json:"subscription"`
			Price             string `json:"price"`
			Status            string `json:"status"`
			CancelAtPeriodEnd bool   `json:"cancel_at_period_end"`
			CurrentPeriodEnd  int64  `json:"current_period_end"`
			ClientReference   string `json:"client_reference_id"`
		} `json:"object"`
	} `json:"data"`
}

// ParseWebhookEvent decodes a raw webhook payload into an Event. Signature
// verification happens before this on the exact raw bytes.
func ParseWebhookEvent(raw []byte) (*Event, error) {
	var env webhookEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, err
	}
	if strings.TrimSpace(env.Type) == "" {
		return nil, errors.New("event type is missing")
	}

	obj := env.Data.Object
	ev := &Event{
		ID:                strings.TrimSpace(env.ID),
		Type:              strings.TrimSpace(env.Type),
		CustomerRef:       strings.TrimSpace(obj.Customer),
		PriceRef:          strings.TrimSpace(obj.Price),
		Status:            strings.ToLower(strings.TrimSpace(obj.Status)),
		CancelAtPeriodEnd: obj.CancelAtPeriodEnd,
		ClientReference:   strings.TrimSpace(obj.ClientReference),
	}

	// Checkout payloads reference their subscription by a dedicated field;
	// subscription payloads are the subscription object itself.
	if ev.Type == EventCheckoutCompleted {
		ev.SubscriptionRef = strings.TrimSpace(obj.Subscription)
	} else {
		ev.SubscriptionRef = strings.TrimSpace(obj.ID)
	}

	if obj.CurrentPeriodEnd > 0 {
		t := time.Unix(obj.CurrentPeriodEnd, 0).UTC()
		ev.CurrentPeriodEnd = &t
	}
	return ev, nil
}

// IsSubscriptionEvent reports whether the event type carries entitlement
// meaning for the reconciler. Anything else is acknowledged and ignored.
func IsSubscriptionEvent(eventType string) bool {
	switch strings.TrimSpace(eventType) {
	case EventCheckoutCompleted, EventSubscriptionCreated, EventSubscriptionUpdated, EventSubscriptionDeleted:
		return true
	default:
		return false
	}
}
