package ports

import (
	"context"

	"github.com/samirrijal/metamap/internal/core/domain"
)

// MapRepository persists map documents by id.
type MapRepository interface {
	// Save inserts or replaces the document stored under doc.ID.
	Save(ctx context.Context, doc *domain.MapData) error
	// Get returns domain.ErrNotFound when no document has the id.
	Get(ctx context.Context, id string) (*domain.MapData, error)
	List(ctx context.Context, offset, limit int) ([]domain.MapSummary, int, error)
	Delete(ctx context.Context, id string) error
}
