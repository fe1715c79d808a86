// Package counter keeps hot per-day send counters in Redis. MessageLog rows
// in the database remain the durable record; these counters exist so
// rate-limit style reads ("how many messages went out today") never hit the
// sends table.
package counter

import (
	"context"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const sendsKeyPrefix = "messages:counters:sent:"

// SendCounter tracks per-user delivery counts per UTC day.
type SendCounter struct {
	rdb *redis.Client
}

func NewSendCounter(rdb *redis.Client) *SendCounter {
	return &SendCounter{rdb: rdb}
}

func dayKey(day time.Time) string {
	return sendsKeyPrefix + day.UTC().Format("2006-01-02")
}

// AddSend increments the user's counter for the day of the given instant.
// Keys expire after two days; the durable count lives in message_logs.
func (c *SendCounter) AddSend(ctx context.Context, userID uint, at time.Time) error {
	key := dayKey(at)
	field := strconv.FormatUint(uint64(userID), 10)
	pipe := c.rdb.TxPipeline()
	pipe.HIncrBy(ctx, key, field, 1)
	pipe.Expire(ctx, key, 48*time.Hour)
	_, err := pipe.Exec(ctx)
	return err
}

// SendsOn returns the user's delivery count for the day of the given instant.
func (c *SendCounter) SendsOn(ctx context.Context, userID uint, at time.Time) (int64, error) {
	field := strconv.FormatUint(uint64(userID), 10)
	n, err := c.rdb.HGet(ctx, dayKey(at), field).Int64()
	if err == redis.Nil {
		return 0, nil
	}
	return n, err
}
