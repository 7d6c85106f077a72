package middleware

import (
	"log"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
)

// DedupeWebhook drops webhook redeliveries by claiming each provider
// message id in Redis with a short TTL. With rdb nil (Redis unconfigured)
// every delivery passes through; the engine's own turn lock still keeps a
// sender's messages serialized.
func DedupeWebhook(rdb *redis.Client, ttl time.Duration) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if rdb == nil {
			return c.Next()
		}

		messageSID := string(c.Request().PostArgs().Peek("MessageSid"))
		if messageSID == "" {
			return c.Next()
		}

		claimed, err := rdb.SetNX(c.Context(), "webhook:"+messageSID, 1, ttl).Result()
		if err != nil {
			// Redis trouble must not drop messages
			log.Printf("⚠️  Webhook dedupe check failed, letting message through: %v", err)
			return c.Next()
		}
		if !claimed {
			log.Printf("♻️  Duplicate webhook delivery %s ignored", messageSID)
			return c.SendStatus(fiber.StatusOK)
		}

		return c.Next()
	}
}
