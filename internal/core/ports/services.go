package ports

import (
	"context"

	"github.com/samirrijal/metamap/internal/core/domain"
)

// EventPublisher publishes map change events to a message broker.
type EventPublisher interface {
	PublishMapEvent(ctx context.Context, event *domain.MapEvent) error
}

// EventSubscriber subscribes to map change events from a message broker.
type EventSubscriber interface {
	SubscribeMapEvents(ctx context.Context, handler func(ctx context.Context, event *domain.MapEvent) error) error
}

// CacheService provides read-through caching.
type CacheService interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttlSeconds int) error
	Delete(ctx context.Context, key string) error
}
