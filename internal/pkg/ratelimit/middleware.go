package ratelimit

import (
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"
)

// Middleware gates a route group by caller IP. Store errors fail open: the
// limiter is a best-effort abuse deterrent and must not take the checkout
// flow down with it.
func Middleware(limiter *Limiter, category Category) fiber.Handler {
	return func(c *fiber.Ctx) error {
		decision, err := limiter.Allow(c.UserContext(), category, c.IP())
		if err != nil {
			log.Warnf("[RateLimit] store error for %s/%s, failing open: %v", category, c.IP(), err)
			return c.Next()
		}

		c.Set("X-RateLimit-Limit", strconv.Itoa(decision.Limit))
		c.Set("X-RateLimit-Remaining", strconv.Itoa(decision.Remaining))
		c.Set("X-RateLimit-Reset", strconv.FormatInt(decision.ResetAt.Unix(), 10))

		if !decision.Allowed {
			retryAfter := int64(decision.RetryAfter.Seconds())
			if retryAfter < 1 {
				retryAfter = 1
			}
			c.Set("Retry-After", strconv.FormatInt(retryAfter, 10))
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"error":       "rate_limited",
				"message":     "Too many requests, please retry later",
				"retry_after": retryAfter,
			})
		}

		return c.Next()
	}
}
