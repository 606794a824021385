package httpserver

import (
	"strings"
	"time"

	"github.com/gofiber/fiber/v3"
	"go.uber.org/zap"
)

const subjectLocal = "sub"

// BearerAuth validates "Authorization: Bearer <JWT>" and stores the subject in locals.
func BearerAuth(v TokenVerifier) fiber.Handler {
	return func(c fiber.Ctx) error {
		token := bearerFromHeader(c.Get(fiber.HeaderAuthorization))
		if token == "" {
			return fiber.NewError(fiber.StatusUnauthorized, "missing bearer token")
		}
		sub, err := v.Verify(token)
		if err != nil {
			return fiber.NewError(fiber.StatusUnauthorized, "invalid token")
		}
		c.Locals(subjectLocal, sub)
		return c.Next()
	}
}

func bearerFromHeader(header string) string {
	parts := strings.SplitN(strings.TrimSpace(header), " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

// requestLogger logs method, path, status and duration. Bodies are never logged.
func requestLogger(log *zap.Logger) fiber.Handler {
	return func(c fiber.Ctx) error {
		start := time.Now()
		err := c.Next()

		status := c.Response().StatusCode()
		if fe, ok := err.(*fiber.Error); ok {
			status = fe.Code
		}
		fields := []zap.Field{
			zap.String("method", c.Method()),
			zap.String("path", c.Path()),
			zap.Int("status", status),
			zap.Duration("dur", time.Since(start)),
			zap.String("ip", c.IP()),
		}
		if sub, ok := c.Locals(subjectLocal).(string); ok {
			fields = append(fields, zap.String("sub", sub))
		}
		log.Info("http", fields...)
		return err
	}
}
