package middleware

import (
	"fmt"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// RateLimitMiddleware is a fixed-window counter per user (or per IP before auth).
// Publish and verification routes get their own bucket so they cannot starve reads.
func RateLimitMiddleware(rdb *redis.Client, bucket string, limit int, window time.Duration) fiber.Handler {
	return func(c *fiber.Ctx) error {
		subject := c.IP()
		if uid := GetUserID(c); uid != uuid.Nil {
			subject = uid.String()
		}
		key := fmt.Sprintf("rl:%s:%s", bucket, subject)

		ctx := c.UserContext()
		var incr *redis.IntCmd
		_, err := rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			incr = pipe.Incr(ctx, key)
			pipe.ExpireNX(ctx, key, window)
			return nil
		})
		if err != nil {
			return c.Next() // fail open
		}

		count := incr.Val()
		remaining := int64(limit) - count
		if remaining < 0 {
			remaining = 0
		}
		c.Set("X-RateLimit-Limit", strconv.Itoa(limit))
		c.Set("X-RateLimit-Remaining", strconv.FormatInt(remaining, 10))

		if count > int64(limit) {
			c.Set(fiber.HeaderRetryAfter, strconv.Itoa(int(window.Seconds())))
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"error": "rate limit exceeded",
			})
		}

		return c.Next()
	}
}
