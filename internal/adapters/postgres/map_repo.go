package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/samirrijal/metamap/internal/core/domain"
)

// MapRepo implements ports.MapRepository with one JSONB document per map.
type MapRepo struct {
	db *DB
}

// NewMapRepo creates a new MapRepo.
func NewMapRepo(db *DB) *MapRepo {
	return &MapRepo{db: db}
}

// Save inserts or replaces a map document.
func (r *MapRepo) Save(ctx context.Context, doc *domain.MapData) error {
	data, err := domain.EncodeJSON(doc, "")
	if err != nil {
		return fmt.Errorf("encode map %s: %w", doc.ID, err)
	}
	_, err = r.db.Pool.Exec(ctx, `
		INSERT INTO maps (id, name, points, document)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO UPDATE
		SET name = EXCLUDED.name, points = EXCLUDED.points,
		    document = EXCLUDED.document, updated_at = now()
	`, doc.ID, doc.Name, len(doc.Data), data)
	if err != nil {
		return fmt.Errorf("save map %s: %w", doc.ID, err)
	}
	return nil
}

// Get returns a map document by id.
func (r *MapRepo) Get(ctx context.Context, id string) (*domain.MapData, error) {
	var data []byte
	err := r.db.Pool.QueryRow(ctx, `SELECT document FROM maps WHERE id = $1`, id).Scan(&data)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("map %s: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get map %s: %w", id, err)
	}

	var doc domain.MapData
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode map %s: %w", id, err)
	}
	return &doc, nil
}

// List returns a page of map summaries ordered by name, and the total count.
func (r *MapRepo) List(ctx context.Context, offset, limit int) ([]domain.MapSummary, int, error) {
	var total int
	if err := r.db.Pool.QueryRow(ctx, `SELECT count(*) FROM maps`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count maps: %w", err)
	}

	rows, err := r.db.Pool.Query(ctx, `
		SELECT id, name, points, updated_at
		FROM maps ORDER BY name, id
		OFFSET $1 LIMIT $2
	`, offset, limit)
	if err != nil {
		return nil, 0, fmt.Errorf("list maps: %w", err)
	}
	defer rows.Close()

	out := []domain.MapSummary{}
	for rows.Next() {
		var m domain.MapSummary
		if err := rows.Scan(&m.ID, &m.Name, &m.Points, &m.UpdatedAt); err != nil {
			return nil, 0, err
		}
		out = append(out, m)
	}
	return out, total, rows.Err()
}

// Delete removes a map document.
func (r *MapRepo) Delete(ctx context.Context, id string) error {
	tag, err := r.db.Pool.Exec(ctx, `DELETE FROM maps WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete map %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("map %s: %w", id, domain.ErrNotFound)
	}
	return nil
}
