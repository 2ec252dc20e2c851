package http

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/compress"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/gofiber/fiber/v2/middleware/timeout"
	"github.com/gofiber/websocket/v2"

	"github.com/samirrijal/metamap/internal/pkg/metrics"
)

const requestTimeout = 15 * time.Second

var deprecatedRoutes = []DeprecatedRoute{
	{
		Path:        "/v1/maps/:id/data",
		SunsetDate:  time.Date(2027, time.May, 1, 0, 0, 0, 0, time.UTC),
		Alternative: "/v1/maps/:id/points",
	},
}

// SetupRoutes registers all REST, GraphQL, and WebSocket routes.
func SetupRoutes(app *fiber.App, deps *Dependencies) {
	// Prometheus metrics
	app.Use(metrics.Middleware())
	app.Get("/metrics", metrics.Handler())

	app.Use(compress.New(compress.Config{
		Level: compress.LevelBestSpeed,
	}))

	app.Use(requestid.New())
	app.Use(RequestIDLogMiddleware())
	app.Use(AccessLogMiddleware())

	// Rate limiting: 120 requests per minute per IP
	app.Use(limiter.New(limiter.Config{
		Max:        120,
		Expiration: 1 * time.Minute,
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			return c.Status(429).JSON(APIError{
				Code:    "rate_limited",
				Message: "too many requests, please try again later",
			})
		},
	}))

	// Security headers + API version
	app.Use(func(c *fiber.Ctx) error {
		c.Set("X-Content-Type-Options", "nosniff")
		c.Set("X-Frame-Options", "DENY")
		c.Set("Referrer-Policy", "strict-origin-when-cross-origin")
		c.Set("X-API-Version", "1.0.0")
		return c.Next()
	})

	app.Use(DeprecationMiddleware(deprecatedRoutes))
	app.Use(ETagMiddleware())
	app.Use(CachingMiddleware())

	// Health & readiness (no timeout)
	app.Get("/v1/health", HealthHandler(deps))
	app.Get("/v1/ready", ReadyHandler(deps))

	v1 := app.Group("/v1")
	v1.Post("/validate", timeout.NewWithContext(ValidateHandler(deps), requestTimeout))

	maps := v1.Group("/maps", JWTMiddleware(deps.JWTSecret))
	maps.Get("/", timeout.NewWithContext(ListMapsHandler(deps), requestTimeout))
	maps.Post("/", timeout.NewWithContext(CreateMapHandler(deps), requestTimeout))
	maps.Get("/:id", timeout.NewWithContext(GetMapHandler(deps), requestTimeout))
	maps.Patch("/:id", timeout.NewWithContext(UpdateMapHandler(deps), requestTimeout))
	maps.Delete("/:id", timeout.NewWithContext(DeleteMapHandler(deps), requestTimeout))
	maps.Get("/:id/export", timeout.NewWithContext(ExportMapHandler(deps), requestTimeout))
	maps.Get("/:id/geojson", timeout.NewWithContext(GeoJSONHandler(deps), requestTimeout))
	maps.Get("/:id/stats", timeout.NewWithContext(StatsHandler(deps), requestTimeout))
	maps.Get("/:id/tags", timeout.NewWithContext(TagsHandler(deps), requestTimeout))

	// Static point routes before /points/:index
	maps.Get("/:id/points/search", timeout.NewWithContext(SearchPointsHandler(deps), requestTimeout))
	maps.Get("/:id/points/nearby", timeout.NewWithContext(NearbyHandler(deps), requestTimeout))
	maps.Get("/:id/points/nearest", timeout.NewWithContext(NearestHandler(deps), requestTimeout))
	maps.Post("/:id/points/filter", timeout.NewWithContext(FilterPointsHandler(deps), requestTimeout))
	maps.Get("/:id/points", timeout.NewWithContext(ListPointsHandler(deps), requestTimeout))
	maps.Post("/:id/points", timeout.NewWithContext(AddPointHandler(deps), requestTimeout))
	maps.Get("/:id/points/:index", timeout.NewWithContext(GetPointHandler(deps), requestTimeout))
	maps.Patch("/:id/points/:index", timeout.NewWithContext(UpdatePointHandler(deps), requestTimeout))
	maps.Delete("/:id/points/:index", timeout.NewWithContext(DeletePointHandler(deps), requestTimeout))

	// Legacy alias kept for clients of the first release
	maps.Get("/:id/data", timeout.NewWithContext(ListPointsHandler(deps), requestTimeout))

	app.Post("/graphql", GraphQLHandler(deps))

	SetupDocs(app)

	// WebSocket
	app.Use("/ws", func(c *fiber.Ctx) error {
		if deps.NATS == nil {
			return errUnavailable(c, "event stream is not configured")
		}
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws", websocket.New(WebSocketHandler(deps.NATS)))
}
