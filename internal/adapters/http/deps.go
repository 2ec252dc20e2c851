package http

import (
	"github.com/nats-io/nats.go"

	"github.com/samirrijal/metamap/internal/adapters/postgres"
	"github.com/samirrijal/metamap/internal/adapters/valkey"
	"github.com/samirrijal/metamap/internal/core/usecases"
)

// Dependencies holds all services needed by HTTP handlers.
type Dependencies struct {
	Maps *usecases.MapService

	// Infrastructure checked by /v1/ready. Nil means not configured.
	NATS  *nats.Conn
	DB    *postgres.DB
	Cache *valkey.Cache

	// StorageDriver is "postgres" or "file". The file driver needs no database.
	StorageDriver string

	// JWTSecret enables bearer-token checks on mutating map routes when set.
	JWTSecret string
}
