// Package dispatch runs the recurring delivery loop: it finds recipients whose
// delivery cursor has come due, re-checks the owner's entitlement, composes a
// message, sends it on every wanted channel and advances the cursor.
package dispatch

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"github.com/google/uuid"

	"github.com/lovetextforher/lovetext/app/models"
	"github.com/lovetextforher/lovetext/internal/pkg/entitlements"
	"github.com/lovetextforher/lovetext/internal/pkg/scheduling"
	"github.com/lovetextforher/lovetext/internal/pkg/sender"
)

// sendTimeout bounds a single delivery attempt. There are no retries; a failed
// attempt is logged and the next chance is the recipient's next cursor.
const sendTimeout = 15 * time.Second

const emailSubject = "A little note for you"

// RecipientStore is the slice of recipient persistence the dispatcher needs.
type RecipientStore interface {
	ListDue(now time.Time) ([]models.Recipient, error)
	AdvanceCursor(id uint, next time.Time, sentAt time.Time) error
}

// UserStore resolves the owning customer for an entitlement re-check.
type UserStore interface {
	GetByID(id uint) (*models.User, error)
}

// LogStore appends to the immutable send log.
type LogStore interface {
	Append(entry *models.MessageLog) error
}

// Composer renders the message body for a recipient.
type Composer interface {
	Compose(recipientName, relationshipTag string) string
}

// DeliveryCounter receives one tick per successful delivery. Optional.
type DeliveryCounter interface {
	AddSend(ctx context.Context, userID uint, at time.Time) error
}

// CycleStats summarizes one dispatch cycle.
type CycleStats struct {
	Due       int
	Delivered int
	Failed    int
	Skipped   int
}

// Dispatcher executes delivery cycles. All collaborators are injected; the
// zero value is not usable.
type Dispatcher struct {
	recipients RecipientStore
	users      UserStore
	logs       LogStore
	composer   Composer
	email      sender.EmailSender
	sms        sender.SMSSender
	counter    DeliveryCounter
	workers    int
	now        func() time.Time
	inCycle    atomic.Bool
}

// NewDispatcher creates a dispatcher. counter may be nil; email and sms may be
// nil individually when a channel is not configured.
func NewDispatcher(recipients RecipientStore, users UserStore, logs LogStore, composer Composer, email sender.EmailSender, sms sender.SMSSender, counter DeliveryCounter, workers int) *Dispatcher {
	if workers <= 0 {
		workers = 5
	}
	return &Dispatcher{
		recipients: recipients,
		users:      users,
		logs:       logs,
		composer:   composer,
		email:      email,
		sms:        sms,
		counter:    counter,
		workers:    workers,
		now:        time.Now,
	}
}

// RunCycle executes one delivery pass. Cycles never overlap: if a previous
// cycle is still running the call returns immediately with zero stats.
func (d *Dispatcher) RunCycle(ctx context.Context) (CycleStats, error) {
	if !d.inCycle.CompareAndSwap(false, true) {
		log.Debug("[Dispatch] Previous cycle still running, skipping")
		return CycleStats{}, nil
	}
	defer d.inCycle.Store(false)

	now := d.now().UTC()
	cycleID := uuid.New().String()

	due, err := d.recipients.ListDue(now)
	if err != nil {
		return CycleStats{}, err
	}
	if len(due) == 0 {
		return CycleStats{}, nil
	}
	log.Infof("[Dispatch] Cycle %s: %d recipient(s) due", cycleID, len(due))

	var (
		mu    sync.Mutex
		stats = CycleStats{Due: len(due)}
	)

	sem := make(chan struct{}, d.workers)
	var wg sync.WaitGroup
	for i := range due {
		r := due[i]
		sem <- struct{}{}
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer func() { <-sem }()

			delivered, failed, skipped := d.processRecipient(ctx, &r, now)
			mu.Lock()
			stats.Delivered += delivered
			stats.Failed += failed
			stats.Skipped += skipped
			mu.Unlock()
		}()
	}
	wg.Wait()

	log.Infof("[Dispatch] Cycle %s done: delivered=%d failed=%d skipped=%d", cycleID, stats.Delivered, stats.Failed, stats.Skipped)
	return stats, nil
}

// processRecipient handles one due recipient: entitlement re-check, compose,
// one attempt per wanted channel, log every attempt, then advance the cursor.
// The cursor only advances when at least one channel was attempted, so a
// recipient skipped for a lapsed entitlement stays due and is picked up again
// if the customer re-subscribes.
func (d *Dispatcher) processRecipient(ctx context.Context, r *models.Recipient, now time.Time) (delivered, failed, skipped int) {
	u, err := d.users.GetByID(r.UserID)
	if err != nil {
		log.Warnf("[Dispatch] Recipient %d: owner %d not loadable: %v", r.ID, r.UserID, err)
		return 0, 0, 1
	}
	if !entitlements.IsEntitled(u, now) {
		return 0, 0, 1
	}

	body := d.composer.Compose(r.Name, r.Relationship)
	attempted := false

	if r.WantsEmail() && r.Email != "" && d.email != nil {
		attempted = true
		if d.sendOne(ctx, r, models.ChannelEmail, r.Email, body, now) {
			delivered++
		} else {
			failed++
		}
	}
	if r.WantsSMS() && r.Phone != "" && d.sms != nil {
		attempted = true
		if d.sendOne(ctx, r, models.ChannelSMS, r.Phone, body, now) {
			delivered++
		} else {
			failed++
		}
	}

	if !attempted {
		// Wanted channel has no address or no configured sender; advancing
		// anyway would silently eat the schedule, so leave the cursor alone.
		log.Warnf("[Dispatch] Recipient %d: no usable channel, skipping", r.ID)
		return delivered, failed, 1
	}

	next := scheduling.NextDelivery(r.Frequency, r.Timing, now)
	if err := d.recipients.AdvanceCursor(r.ID, next, now); err != nil {
		log.Errorf("[Dispatch] Recipient %d: cursor advance failed: %v", r.ID, err)
	}
	return delivered, failed, 0
}

// sendOne makes a single bounded delivery attempt on one channel and appends
// the log row regardless of outcome.
func (d *Dispatcher) sendOne(ctx context.Context, r *models.Recipient, channel, address, body string, now time.Time) bool {
	sendCtx, cancel := context.WithTimeout(ctx, sendTimeout)
	defer cancel()

	var sendErr error
	switch channel {
	case models.ChannelEmail:
		sendErr = d.email.Send(sendCtx, address, emailSubject, body, body)
	case models.ChannelSMS:
		sendErr = d.sms.Send(sendCtx, address, body)
	}
	if sendErr != nil {
		log.Errorf("[Dispatch] Recipient %d: %s delivery to %s failed: %v", r.ID, channel, address, sendErr)
	}

	entry := &models.MessageLog{
		UserID:      r.UserID,
		RecipientID: r.ID,
		Channel:     channel,
		Address:     address,
		Body:        body,
		Delivered:   sendErr == nil,
		SentAt:      now,
	}
	if err := d.logs.Append(entry); err != nil {
		log.Errorf("[Dispatch] Recipient %d: log append failed: %v", r.ID, err)
	}

	if sendErr == nil && d.counter != nil {
		if err := d.counter.AddSend(ctx, r.UserID, now); err != nil {
			log.Warnf("[Dispatch] Recipient %d: send counter increment failed: %v", r.ID, err)
		}
	}
	return sendErr == nil
}
