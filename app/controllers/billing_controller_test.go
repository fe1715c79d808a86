package controllers

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"

	"github.com/lovetextforher/lovetext/app/models"
	"github.com/lovetextforher/lovetext/internal/pkg/billing"
)

const testWebhookSecret = "whsec_test"

func signPayload(payload string) string {
	mac := hmac.New(sha256.New, []byte(testWebhookSecret))
	mac.Write([]byte(payload))
	return hex.EncodeToString(mac.Sum(nil))
}

func newWebhookTestApp(t *testing.T) (*fiber.App, *fakeUserRepo, *fakeRecipientRepo) {
	t.Helper()
	users := newFakeUserRepo()
	recipients := newFakeRecipientRepo()
	repo := newFakeBillingRepo(users, recipients)
	svc := billing.NewService(repo, billing.NewPlanResolver("price_trial", "price_basic", "price_plus"))

	app := fiber.New()
	bc := NewBillingController(svc, testWebhookSecret)
	app.Post("/api/internal/billing/webhook", bc.HandleWebhook)
	return app, users, recipients
}

func postWebhook(t *testing.T, app *fiber.App, payload, signature string) int {
	t.Helper()
	req := httptest.NewRequest(fiber.MethodPost, "/api/internal/billing/webhook", strings.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	if signature != "" {
		req.Header.Set("X-Billing-Signature", signature)
	}
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer resp.Body.Close()
	return resp.StatusCode
}

func checkoutPayload(eventID, price, clientRef string) string {
	return fmt.Sprintf(`{
		"id": %q,
		"type": "checkout.session.completed",
		"data": {"object": {
			"id": "cs_1",
			"customer": "cus_1",
			"subscription": "sub_1",
			"price": %q,
			"client_reference_id": %q
		}}
	}`, eventID, price, clientRef)
}

func TestWebhookRejectsBadSignature(t *testing.T) {
	app, _, _ := newWebhookTestApp(t)

	payload := checkoutPayload("evt_1", "price_basic", "1")
	if code := postWebhook(t, app, payload, "deadbeef"); code != fiber.StatusBadRequest {
		t.Fatalf("wrong signature: status %d, want 400", code)
	}
	if code := postWebhook(t, app, payload, ""); code != fiber.StatusBadRequest {
		t.Fatalf("missing signature: status %d, want 400", code)
	}
}

func TestWebhookGrantsPaidPlan(t *testing.T) {
	app, users, _ := newWebhookTestApp(t)
	u := &models.User{Name: "Tom", Email: "tom@example.com", Password: "x", Plan: "none"}
	if err := users.Create(u); err != nil {
		t.Fatal(err)
	}

	payload := checkoutPayload("evt_1", "price_basic", fmt.Sprint(u.ID))
	if code := postWebhook(t, app, payload, signPayload(payload)); code != fiber.StatusOK {
		t.Fatalf("status %d, want 200", code)
	}

	got, err := users.GetByID(u.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Plan != "basic" || !got.HasSubscription {
		t.Fatalf("plan not granted: %+v", got)
	}
	if got.ExternalCustomerID != "cus_1" || got.ExternalSubscriptionID != "sub_1" {
		t.Fatalf("external refs not recorded: %+v", got)
	}
}

func TestWebhookDuplicateAppliedOnce(t *testing.T) {
	app, users, _ := newWebhookTestApp(t)
	u := &models.User{Name: "Tom", Email: "tom@example.com", Password: "x", Plan: "none"}
	if err := users.Create(u); err != nil {
		t.Fatal(err)
	}

	payload := checkoutPayload("evt_trial", "price_trial", fmt.Sprint(u.ID))
	sig := signPayload(payload)

	if code := postWebhook(t, app, payload, sig); code != fiber.StatusOK {
		t.Fatalf("first delivery: status %d", code)
	}
	got, _ := users.GetByID(u.ID)
	if !got.TrialActive || !got.TrialUsed {
		t.Fatalf("trial not granted: %+v", got)
	}

	// The replay must be acknowledged without re-applying; a second apply
	// would fail on the consumed trial.
	if code := postWebhook(t, app, payload, sig); code != fiber.StatusOK {
		t.Fatalf("replay: status %d, want 200", code)
	}
	got, _ = users.GetByID(u.ID)
	if !got.TrialActive {
		t.Fatalf("replay changed state: %+v", got)
	}
}

func TestWebhookIgnoresUnhandledEventTypes(t *testing.T) {
	app, _, _ := newWebhookTestApp(t)

	payload := `{"id": "evt_x", "type": "invoice.paid", "data": {"object": {"id": "in_1"}}}`
	if code := postWebhook(t, app, payload, signPayload(payload)); code != fiber.StatusOK {
		t.Fatalf("status %d, want 200 for acknowledged-but-unhandled type", code)
	}
}

func TestWebhookImmediateCancelRemovesRecipients(t *testing.T) {
	app, users, recipients := newWebhookTestApp(t)
	u := &models.User{Name: "Tom", Email: "tom@example.com", Password: "x", Plan: "plus", HasSubscription: true, ExternalCustomerID: "cus_1", ExternalSubscriptionID: "sub_1"}
	if err := users.Create(u); err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 3; i++ {
		if err := recipients.Create(&models.Recipient{UserID: u.ID, Name: fmt.Sprintf("R%d", i)}); err != nil {
			t.Fatal(err)
		}
	}

	payload := `{
		"id": "evt_del",
		"type": "customer.subscription.deleted",
		"data": {"object": {"id": "sub_1", "customer": "cus_1"}}
	}`
	if code := postWebhook(t, app, payload, signPayload(payload)); code != fiber.StatusOK {
		t.Fatalf("status %d, want 200", code)
	}

	got, _ := users.GetByID(u.ID)
	if got.HasSubscription || got.Plan != "none" {
		t.Fatalf("entitlement not revoked: %+v", got)
	}
	if n, _ := recipients.CountByUser(u.ID); n != 0 {
		t.Fatalf("recipients not cascade-deleted: %d left", n)
	}
}
