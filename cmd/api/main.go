package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/joho/godotenv"

	"github.com/samirrijal/metamap/internal/adapters/filestore"
	"github.com/samirrijal/metamap/internal/adapters/http"
	natsadapter "github.com/samirrijal/metamap/internal/adapters/nats"
	"github.com/samirrijal/metamap/internal/adapters/postgres"
	"github.com/samirrijal/metamap/internal/adapters/valkey"
	"github.com/samirrijal/metamap/internal/core/ports"
	"github.com/samirrijal/metamap/internal/core/usecases"
	"github.com/samirrijal/metamap/internal/core/validation"
	"github.com/samirrijal/metamap/internal/pkg/config"
	"github.com/samirrijal/metamap/internal/pkg/logging"
	"github.com/samirrijal/metamap/internal/pkg/telemetry"
)

func main() {
	_ = godotenv.Load() // .env is optional

	cfg, err := config.Load("metamap-api")
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	logging.Setup(cfg.Log.Level, cfg.Log.Format)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Telemetry
	if cfg.Telemetry.Enabled {
		shutdown, err := telemetry.InitTracer(ctx, cfg.Telemetry.ServiceName, cfg.Telemetry.TempoAddr)
		if err != nil {
			slog.Warn("telemetry init failed", "error", err)
		} else {
			defer shutdown()
		}
	}

	// Validation
	schema, err := validation.LoadSchema(cfg.Schema.Path)
	if err != nil {
		log.Fatalf("schema: %v", err)
	}
	validator := validation.NewValidator(schema, validation.Rules{
		MaxPoints:     cfg.Rules.MaxPoints,
		MaxNameLength: cfg.Rules.MaxNameLength,
	})

	deps := &http.Dependencies{
		StorageDriver: cfg.Storage.Driver,
		JWTSecret:     cfg.Auth.JWTSecret,
	}

	// Storage
	var repo ports.MapRepository
	switch cfg.Storage.Driver {
	case "file":
		fs, err := filestore.New(cfg.Storage.Dir)
		if err != nil {
			log.Fatalf("file storage: %v", err)
		}
		repo = fs
	default:
		db, err := postgres.New(ctx, cfg.Database.DSN())
		if err != nil {
			log.Fatalf("database: %v", err)
		}
		defer db.Close()
		deps.DB = db
		repo = postgres.NewMapRepo(db)
	}

	// Cache and events are optional
	var cache ports.CacheService
	if cfg.Valkey.Enabled {
		c, err := valkey.New(cfg.Valkey.Addr, "metamap:")
		if err != nil {
			slog.Warn("valkey unavailable", "error", err)
		} else {
			defer c.Close()
			deps.Cache = c
			cache = c
		}
	}

	var publisher ports.EventPublisher
	if cfg.NATS.Enabled {
		p, err := natsadapter.NewPublisher(cfg.NATS.URL)
		if err != nil {
			slog.Warn("nats unavailable", "error", err)
		} else {
			defer p.Close()
			publisher = p
		}

		// Raw connection for the WebSocket relay
		conn, err := natsadapter.RawConn(cfg.NATS.URL)
		if err != nil {
			slog.Warn("nats ws conn unavailable", "error", err)
		} else {
			defer conn.Close()
			deps.NATS = conn
		}
	}

	maps := usecases.NewMapService(repo, cache, publisher, validator, cfg.Valkey.TTLSeconds)
	deps.Maps = maps

	// Other instances' writes invalidate our open copies.
	if cfg.NATS.Enabled {
		host, _ := os.Hostname()
		sub, err := natsadapter.NewSubscriber(cfg.NATS.URL, fmt.Sprintf("metamap-api-%s-%d", host, os.Getpid()))
		if err != nil {
			slog.Warn("nats subscriber unavailable", "error", err)
		} else {
			defer sub.Close()
			if err := sub.SubscribeMapEvents(ctx, maps.HandleEvent); err != nil {
				slog.Warn("subscribe map events", "error", err)
			}
		}
	}

	// Fiber
	app := fiber.New(fiber.Config{
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		BodyLimit:    cfg.Server.BodyLimit,
		AppName:      "Metamap API",
	})
	app.Use(recover.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.Server.AllowOrigins,
		AllowMethods:     "GET,POST,PATCH,DELETE,OPTIONS",
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization, If-None-Match",
		ExposeHeaders:    "ETag, Link, Location, X-Request-ID",
		AllowCredentials: false,
		MaxAge:           3600,
	}))

	http.SetupRoutes(app, deps)

	// Graceful shutdown
	go func() {
		addr := fmt.Sprintf(":%d", cfg.Server.Port)
		slog.Info("API server starting", "addr", addr, "storage", cfg.Storage.Driver)
		if err := app.Listen(addr); err != nil {
			log.Fatalf("listen: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	slog.Info("shutdown signal received, draining connections...", "signal", sig.String())

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		slog.Error("forced shutdown", "error", err)
	}

	slog.Info("server stopped")
}
