package middleware

import (
	"strings"

	"github.com/adlaunch/backend/internal/auth"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	CtxUserID = "user_id"
	CtxEmail  = "email"
)

// AuthMiddleware accepts identity-service tokens from the Authorization header.
// Websocket upgrades may pass the token as ?token= instead.
func AuthMiddleware(secret string, log *zap.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		tokenStr, ok := bearerToken(c)
		if !ok {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "missing or malformed authorization"})
		}

		claims, err := auth.ParseJWT(secret, tokenStr)
		if err != nil {
			log.Debug("jwt parse error", zap.Error(err))
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "invalid or expired token"})
		}

		c.Locals(CtxUserID, claims.UserID)
		c.Locals(CtxEmail, claims.Email)

		return c.Next()
	}
}

func bearerToken(c *fiber.Ctx) (string, bool) {
	if h := c.Get(fiber.HeaderAuthorization); h != "" {
		tokenStr := strings.TrimPrefix(h, "Bearer ")
		if tokenStr == h || tokenStr == "" {
			return "", false
		}
		return tokenStr, true
	}
	if tokenStr := c.Query("token"); tokenStr != "" {
		return tokenStr, true
	}
	return "", false
}

func GetUserID(c *fiber.Ctx) uuid.UUID {
	id, _ := c.Locals(CtxUserID).(uuid.UUID)
	return id
}
