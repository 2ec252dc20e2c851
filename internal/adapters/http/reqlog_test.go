package http_test

import (
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/requestid"

	handler "github.com/samirrijal/metamap/internal/adapters/http"
)

func TestRequestIDLogMiddleware(t *testing.T) {
	app := fiber.New()
	app.Use(requestid.New())
	app.Use(handler.RequestIDLogMiddleware())
	app.Get("/rid", func(c *fiber.Ctx) error {
		if handler.LoggerFromCtx(c.UserContext()) == nil {
			return c.SendStatus(fiber.StatusInternalServerError)
		}
		return c.SendString(handler.RequestIDFromCtx(c.UserContext()))
	})

	req := httptest.NewRequest("GET", "/rid", nil)
	req.Header.Set("X-Request-ID", "req-42")
	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if body := string(readBody(t, resp.Body)); body != "req-42" {
		t.Errorf("expected request id req-42 in context, got %q", body)
	}
}

func TestRequestIDFromCtx_Missing(t *testing.T) {
	app := fiber.New()
	app.Use(handler.RequestIDLogMiddleware())
	app.Get("/rid", func(c *fiber.Ctx) error {
		return c.SendString(handler.RequestIDFromCtx(c.UserContext()))
	})

	resp, err := app.Test(httptest.NewRequest("GET", "/rid", nil), -1)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if body := string(readBody(t, resp.Body)); body != "" {
		t.Errorf("expected no request id, got %q", body)
	}
}
