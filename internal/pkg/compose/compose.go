// Package compose picks a love-message template for a recipient based on the
// relationship tag and fills in the recipient's name. Selection is uniformly
// random within a bucket; the random source is injectable so tests can pin
// the choice.
package compose

import (
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"time"
)

const defaultBucket = "default"

// Templates use one %s placeholder for the recipient name.
var defaultTemplates = map[string][]string{
	"girlfriend": {
		"Good morning %s, just wanted you to know you make every day brighter.",
		"%s, thinking about your smile got me through the whole day.",
		"Hey %s, counting the minutes until I see you again.",
		"%s, you are the best part of my story.",
	},
	"wife": {
		"%s, after all this time you still take my breath away.",
		"Good morning %s, married life with you is my favorite adventure.",
		"%s, home is wherever you are.",
		"Just a reminder, %s: I'd choose you again, every single time.",
	},
	"mother": {
		"%s, thank you for everything you do. Love you!",
		"Thinking of you today, %s. Hope it's a wonderful one.",
		"%s, you raised me right and I'm grateful every day.",
	},
	"friend": {
		"%s, just checking in to say you're awesome.",
		"Hey %s, hope your day is as great as you are!",
		"%s, grateful to have you in my corner.",
	},
	defaultBucket: {
		"%s, someone is thinking about you right now.",
		"Hope this little note makes your day, %s!",
		"%s, you are appreciated more than you know.",
	},
}

// Composer selects and renders message templates.
type Composer struct {
	mu      sync.Mutex
	rng     *rand.Rand
	buckets map[string][]string
}

// NewComposer creates a composer with the built-in template set and a
// time-seeded random source.
func NewComposer() *Composer {
	return NewComposerWithRand(rand.New(rand.NewSource(time.Now().UnixNano())))
}

// NewComposerWithRand creates a composer with an explicit random source.
func NewComposerWithRand(rng *rand.Rand) *Composer {
	return &Composer{
		rng:     rng,
		buckets: defaultTemplates,
	}
}

// Compose renders a message for the recipient. Unmapped relationship tags
// fall back to the default bucket. The name is sanitized before
// interpolation since the result ends up inside an HTML email body.
func (c *Composer) Compose(recipientName, relationshipTag string) string {
	bucket := c.bucketFor(relationshipTag)

	c.mu.Lock()
	tpl := bucket[c.rng.Intn(len(bucket))]
	c.mu.Unlock()

	return fmt.Sprintf(tpl, Sanitize(recipientName))
}

func (c *Composer) bucketFor(tag string) []string {
	key := strings.ToLower(strings.TrimSpace(tag))
	switch key {
	case "mom", "mum", "mama":
		key = "mother"
	}
	if b, ok := c.buckets[key]; ok && len(b) > 0 {
		return b
	}
	return c.buckets[defaultBucket]
}

var sanitizer = strings.NewReplacer("<", "", ">", "", `"`, "", "'", "", "`", "")

// Sanitize strips characters that could break out of the HTML email body.
func Sanitize(value string) string {
	return strings.TrimSpace(sanitizer.Replace(value))
}
