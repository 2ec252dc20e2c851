package main

import (
	"context"
	"log"
	"log/slog"

	"github.com/joho/godotenv"
	"go.temporal.io/sdk/client"
	tlog "go.temporal.io/sdk/log"
	"go.temporal.io/sdk/worker"

	"github.com/samirrijal/metamap/internal/adapters/filestore"
	natsadapter "github.com/samirrijal/metamap/internal/adapters/nats"
	"github.com/samirrijal/metamap/internal/adapters/postgres"
	"github.com/samirrijal/metamap/internal/core/ports"
	"github.com/samirrijal/metamap/internal/core/usecases"
	"github.com/samirrijal/metamap/internal/core/validation"
	"github.com/samirrijal/metamap/internal/pkg/config"
	"github.com/samirrijal/metamap/internal/pkg/logging"
	"github.com/samirrijal/metamap/internal/workflows"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load("metamap-worker")
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logging.Setup(cfg.Log.Level, cfg.Log.Format)

	ctx := context.Background()

	schema, err := validation.LoadSchema(cfg.Schema.Path)
	if err != nil {
		log.Fatalf("schema: %v", err)
	}
	validator := validation.NewValidator(schema, validation.Rules{
		MaxPoints:     cfg.Rules.MaxPoints,
		MaxNameLength: cfg.Rules.MaxNameLength,
	})

	var repo ports.MapRepository
	if cfg.Storage.Driver == "file" {
		fs, err := filestore.New(cfg.Storage.Dir)
		if err != nil {
			log.Fatalf("file storage: %v", err)
		}
		repo = fs
	} else {
		db, err := postgres.New(ctx, cfg.Database.DSN())
		if err != nil {
			log.Fatalf("database: %v", err)
		}
		defer db.Close()
		repo = postgres.NewMapRepo(db)
	}

	// Imports publish map events so API instances drop stale copies.
	var publisher ports.EventPublisher
	if cfg.NATS.Enabled {
		p, err := natsadapter.NewPublisher(cfg.NATS.URL)
		if err != nil {
			slog.Warn("nats unavailable", "error", err)
		} else {
			defer p.Close()
			publisher = p
		}
	}

	maps := usecases.NewMapService(repo, nil, publisher, validator, cfg.Valkey.TTLSeconds)

	c, err := client.Dial(client.Options{
		HostPort:  cfg.Temporal.HostPort,
		Namespace: cfg.Temporal.Namespace,
		Logger:    tlog.NewStructuredLogger(slog.Default()),
	})
	if err != nil {
		log.Fatalf("temporal client: %v", err)
	}
	defer c.Close()

	w := worker.New(c, cfg.Temporal.TaskQueue, worker.Options{})

	w.RegisterWorkflow(workflows.ImportWorkflow)
	w.RegisterActivity(workflows.NewImportActivities(maps, cfg.Server.BodyLimit))

	slog.Info("import worker started", "task_queue", cfg.Temporal.TaskQueue, "storage", cfg.Storage.Driver)
	if err := w.Run(worker.InterruptCh()); err != nil {
		log.Fatalf("worker: %v", err)
	}
}
