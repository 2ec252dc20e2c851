package http_test

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"

	handler "github.com/samirrijal/metamap/internal/adapters/http"
	"github.com/samirrijal/metamap/internal/pkg/logging"
)

func captureLog(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	prev := slog.Default()
	slog.SetDefault(logging.New(&buf, "debug", "json"))
	t.Cleanup(func() { slog.SetDefault(prev) })
	return &buf
}

func lastRecord(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	var rec map[string]any
	if err := json.Unmarshal([]byte(lines[len(lines)-1]), &rec); err != nil {
		t.Fatalf("expected JSON log line, got %q: %v", buf.String(), err)
	}
	return rec
}

func TestAccessLogMiddleware_PointRoute(t *testing.T) {
	buf := captureLog(t)

	app := fiber.New()
	app.Use(handler.AccessLogMiddleware())
	app.Get("/v1/maps/:id/points/:index", func(c *fiber.Ctx) error {
		return c.SendString("ok")
	})

	if _, err := app.Test(httptest.NewRequest("GET", "/v1/maps/bilbao/points/2", nil), -1); err != nil {
		t.Fatalf("request failed: %v", err)
	}

	rec := lastRecord(t, buf)
	want := map[string]any{
		"level":       "INFO",
		"msg":         "GET /v1/maps/:id/points/:index",
		"route":       "/v1/maps/:id/points/:index",
		"path":        "/v1/maps/bilbao/points/2",
		"map_id":      "bilbao",
		"point_index": "2",
		"status":      200.0,
	}
	for k, v := range want {
		if rec[k] != v {
			t.Errorf("%s: expected %v, got %v", k, v, rec[k])
		}
	}
}

func TestAccessLogMiddleware_Errors(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		level  string
		status float64
	}{
		{"not found", fiber.ErrNotFound, "WARN", 404},
		{"unexpected", fiber.NewError(fiber.StatusBadGateway, "upstream"), "ERROR", 502},
		{"plain error", errTest("boom"), "ERROR", 500},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := captureLog(t)

			app := fiber.New()
			app.Use(handler.AccessLogMiddleware())
			app.Get("/v1/maps/:id", func(c *fiber.Ctx) error {
				return tt.err
			})

			if _, err := app.Test(httptest.NewRequest("GET", "/v1/maps/bilbao", nil), -1); err != nil {
				t.Fatalf("request failed: %v", err)
			}

			rec := lastRecord(t, buf)
			if rec["level"] != tt.level || rec["status"] != tt.status {
				t.Errorf("expected %s %v, got %v %v", tt.level, tt.status, rec["level"], rec["status"])
			}
			if rec["map_id"] != "bilbao" {
				t.Errorf("expected map_id bilbao, got %v", rec["map_id"])
			}
			if _, ok := rec["point_index"]; ok {
				t.Errorf("unexpected point_index on map route: %v", rec)
			}
		})
	}
}

type errTest string

func (e errTest) Error() string { return string(e) }
