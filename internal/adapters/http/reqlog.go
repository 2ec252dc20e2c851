package http

import (
	"context"
	"log/slog"

	"github.com/gofiber/fiber/v2"
)

type ctxKey string

const (
	requestIDKey ctxKey = "request_id"
	loggerKey    ctxKey = "logger"
)

// RequestIDLogMiddleware puts a request-scoped logger into the user context.
// Every record it writes carries the request id, plus the map id and point
// index when the route has them.
func RequestIDLogMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		rid, _ := c.Locals("requestid").(string)
		if rid == "" {
			return c.Next()
		}

		attrs := []any{"request_id", rid}
		ctx := context.WithValue(c.UserContext(), requestIDKey, rid)
		ctx = context.WithValue(ctx, loggerKey, slog.Default().With(attrs...))
		c.SetUserContext(ctx)

		return c.Next()
	}
}

// mapLogger narrows the request logger to the map (and point) a handler works on.
func mapLogger(c *fiber.Ctx) *slog.Logger {
	l := LoggerFromCtx(c.UserContext())
	if id := c.Params("id"); id != "" {
		l = l.With("map_id", id)
	}
	if idx := c.Params("index"); idx != "" {
		l = l.With("point_index", idx)
	}
	return l
}

// RequestIDFromCtx returns the request id stored by RequestIDLogMiddleware.
func RequestIDFromCtx(ctx context.Context) string {
	rid, _ := ctx.Value(requestIDKey).(string)
	return rid
}

// LoggerFromCtx returns the request-scoped logger, or the default logger.
func LoggerFromCtx(ctx context.Context) *slog.Logger {
	if l, ok := ctx.Value(loggerKey).(*slog.Logger); ok {
		return l
	}
	return slog.Default()
}
