package entitlements

import (
	"strings"
	"time"

	"github.com/lovetextforher/lovetext/app/models"
)

type Plan string

const (
	PlanNone  Plan = "none"
	PlanTrial Plan = "trial"
	PlanBasic Plan = "basic"
	PlanPlus  Plan = "plus"
)

// ParsePlan maps a raw plan string onto the closed plan set. Unknown values
// resolve to PlanNone so bad data degrades to "no entitlement" instead of
// leaking raw strings into business logic.
func ParsePlan(plan string) Plan {
	switch strings.ToLower(strings.TrimSpace(plan)) {
	case string(PlanTrial):
		return PlanTrial
	case string(PlanBasic):
		return PlanBasic
	case string(PlanPlus):
		return PlanPlus
	default:
		return PlanNone
	}
}

// IsEntitled reports whether deliveries are allowed for the user at the given
// instant. A SubscriptionEnd in the past is authoritative: it revokes
// entitlement even when HasSubscription was never cleared.
func IsEntitled(u *models.User, now time.Time) bool {
	if u == nil {
		return false
	}
	if u.TrialActive && u.TrialEnd != nil && now.Before(*u.TrialEnd) {
		return true
	}
	if u.SubscriptionEnd != nil {
		// Pending cancellation: entitled strictly until the effective instant.
		return now.Before(*u.SubscriptionEnd)
	}
	return u.HasSubscription
}

// RecipientLimit returns the recipient cap for a plan. The second return
// value reports an unlimited plan, in which case the numeric limit is
// meaningless.
func RecipientLimit(plan Plan) (int, bool) {
	switch plan {
	case PlanBasic:
		return 3, false
	case PlanTrial, PlanPlus:
		return 0, true
	default:
		return 0, false
	}
}
