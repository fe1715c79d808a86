package session

import (
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/session"
	"github.com/gofiber/storage/redis"
)

// NewStore creates the Redis-backed session store. Sessions live in Redis
// database 1 so they never collide with cache keys in database 0.
func NewStore(host string, port int, password string) *session.Store {
	storage := redis.New(redis.Config{
		Host:     host,
		Port:     port,
		Password: password,
		Database: 1,
		Reset:    false,
	})

	return session.New(session.Config{
		Storage:        storage,
		CookieHTTPOnly: true,
		Expiration:     24 * time.Hour,
		KeyLookup:      "cookie:session_id",
	})
}

// NewStoreFromAddr is a convenience wrapper for "host:port" style config.
func NewStoreFromAddr(host, portStr, password string) *session.Store {
	port := 6379
	if v, err := strconv.Atoi(portStr); err == nil {
		port = v
	}
	return NewStore(host, port, password)
}

// SetValue stores a key-value pair in the caller's session.
func SetValue(store *session.Store, c *fiber.Ctx, key string, value interface{}) error {
	sess, err := store.Get(c)
	if err != nil {
		return err
	}
	sess.Set(key, value)
	return sess.Save()
}

// Destroy drops the caller's session.
func Destroy(store *session.Store, c *fiber.Ctx) error {
	sess, err := store.Get(c)
	if err != nil {
		return err
	}
	return sess.Destroy()
}
