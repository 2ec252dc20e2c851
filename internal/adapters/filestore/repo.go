// Package filestore persists map documents as one JSON file per map.
package filestore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/samirrijal/metamap/internal/core/domain"
	"github.com/samirrijal/metamap/internal/core/mapstore"
)

const ext = ".json"

// Repo implements ports.MapRepository on a directory.
type Repo struct {
	dir string
	mu  sync.RWMutex
}

// New creates the directory if needed and returns a Repo rooted at it.
func New(dir string) (*Repo, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create %s: %w", dir, err)
	}
	return &Repo{dir: dir}, nil
}

// Save writes the document to <dir>/<id>.json.
func (r *Repo) Save(ctx context.Context, doc *domain.MapData) error {
	path, err := r.path(doc.ID)
	if err != nil {
		return err
	}
	data, err := domain.EncodeJSON(doc, "  ")
	if err != nil {
		return fmt.Errorf("encode map %s: %w", doc.ID, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	return mapstore.WriteFileAtomic(path, data)
}

// Get reads a document by id.
func (r *Repo) Get(ctx context.Context, id string) (*domain.MapData, error) {
	path, err := r.path(id)
	if err != nil {
		return nil, err
	}

	r.mu.RLock()
	data, err := os.ReadFile(path)
	r.mu.RUnlock()
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("map %s: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("read map %s: %w", id, err)
	}

	var doc domain.MapData
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode map %s: %w", id, err)
	}
	return &doc, nil
}

// List returns a page of map summaries ordered by name, and the total count.
func (r *Repo) List(ctx context.Context, offset, limit int) ([]domain.MapSummary, int, error) {
	r.mu.RLock()
	entries, err := os.ReadDir(r.dir)
	r.mu.RUnlock()
	if err != nil {
		return nil, 0, fmt.Errorf("list %s: %w", r.dir, err)
	}

	all := make([]domain.MapSummary, 0, len(entries))
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, ext) || strings.HasPrefix(name, ".") {
			continue
		}
		id := strings.TrimSuffix(name, ext)
		doc, err := r.Get(ctx, id)
		if err != nil {
			return nil, 0, err
		}
		info, err := e.Info()
		if err != nil {
			return nil, 0, fmt.Errorf("stat %s: %w", name, err)
		}
		all = append(all, domain.MapSummary{ID: id, Name: doc.Name, Points: len(doc.Data), UpdatedAt: info.ModTime().UTC()})
	}
	sort.Slice(all, func(i, j int) bool {
		if all[i].Name != all[j].Name {
			return all[i].Name < all[j].Name
		}
		return all[i].ID < all[j].ID
	})

	total := len(all)
	if offset >= total {
		return []domain.MapSummary{}, total, nil
	}
	end := total
	if limit > 0 && offset+limit < total {
		end = offset + limit
	}
	return all[offset:end], total, nil
}

// Delete removes a document.
func (r *Repo) Delete(ctx context.Context, id string) error {
	path, err := r.path(id)
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if err := os.Remove(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("map %s: %w", id, domain.ErrNotFound)
		}
		return fmt.Errorf("delete map %s: %w", id, err)
	}
	return nil
}

// path maps an id to its file, rejecting ids that would escape the directory.
func (r *Repo) path(id string) (string, error) {
	if id == "" || id != filepath.Base(id) || strings.HasPrefix(id, ".") {
		return "", fmt.Errorf("invalid map id %q: %w", id, domain.ErrNotFound)
	}
	return filepath.Join(r.dir, id+ext), nil
}
