// Package scheduling owns the delivery-cursor math. All arithmetic is done in
// UTC; the timezone stored on a recipient is not consulted.
package scheduling

import (
	"strings"
	"time"

	"github.com/lovetextforher/lovetext/app/models"
)

// canonicalHour maps a time-of-day bucket to its UTC hour.
func canonicalHour(timing string) int {
	switch strings.ToLower(strings.TrimSpace(timing)) {
	case models.TimingMorning:
		return 9
	case models.TimingAfternoon:
		return 13
	case models.TimingEvening:
		return 18
	case models.TimingNight:
		return 22
	default:
		return 12
	}
}

// dayOffset maps a frequency to the number of days added per delivery.
// "three-times-week" uses a flat +2 like every-other-day; evenly spaced
// thrice-weekly delivery is not representable with a fixed offset and the
// approximation is intentional.
func dayOffset(frequency string) int {
	switch strings.ToLower(strings.TrimSpace(frequency)) {
	case models.FrequencyDaily:
		return 1
	case models.FrequencyEveryOtherDay:
		return 2
	case models.FrequencyThreeTimesWeek:
		return 2
	case models.FrequencyWeekly:
		return 7
	case models.FrequencyBiWeekly:
		return 14
	default:
		return 1
	}
}

// NextDelivery computes the next eligible send instant from a reference
// instant: the reference day is pinned to the bucket's canonical hour, then
// the frequency's day offset is added.
func NextDelivery(frequency, timing string, ref time.Time) time.Time {
	ref = ref.UTC()
	at := time.Date(ref.Year(), ref.Month(), ref.Day(), canonicalHour(timing), 0, 0, 0, time.UTC)
	return at.AddDate(0, 0, dayOffset(frequency))
}

// IsDue reports whether the recipient should be delivered to at the given
// instant.
func IsDue(r *models.Recipient, now time.Time) bool {
	if r == nil || !r.IsActive {
		return false
	}
	return !r.NextDelivery.After(now)
}
