package main

import (
	"context"
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"

	"github.com/samirrijal/metamap/internal/adapters/postgres"
	"github.com/samirrijal/metamap/internal/pkg/config"
	"github.com/samirrijal/metamap/internal/pkg/logging"
	"github.com/samirrijal/metamap/migrations"
)

func main() {
	if len(os.Args) < 2 {
		log.Fatal("usage: migrate <up|down>")
	}
	_ = godotenv.Load()

	cfg, err := config.Load("metamap-migrate")
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logging.Setup(cfg.Log.Level, cfg.Log.Format)

	var down bool
	switch os.Args[1] {
	case "up":
	case "down":
		down = true
	default:
		log.Fatalf("unknown command: %s", os.Args[1])
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	db, err := postgres.New(ctx, cfg.Database.DSN())
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	defer db.Close()

	files, err := postgres.MigrationFiles(migrations.FS, down)
	if err != nil {
		log.Fatalf("list migrations: %v", err)
	}
	if err := db.Migrate(ctx, migrations.FS, files); err != nil {
		log.Fatalf("migrate %s: %v", os.Args[1], err)
	}
	log.Printf("%d migrations applied (%s)", len(files), os.Args[1])
}
