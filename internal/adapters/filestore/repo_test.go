package filestore_test

import (
	"context"
	"errors"
	"testing"

	"github.com/samirrijal/metamap/internal/adapters/filestore"
	"github.com/samirrijal/metamap/internal/core/domain"
)

func sample(id, name string, points int) *domain.MapData {
	doc := domain.EmptyDocument(name, domain.Coordinate{Lat: 43.26, Lng: -2.93})
	doc.ID = id
	for i := 0; i < points; i++ {
		doc.Data = append(doc.Data, domain.DataPoint{
			Name:    name + " point",
			Address: "Calle Mayor",
			Intro:   "intro",
			Center:  domain.Coordinate{Lat: 43.26, Lng: -2.93},
			Extra:   map[string]any{"rank": float64(i)},
		})
	}
	return &doc
}

func TestRepo_SaveGetDelete(t *testing.T) {
	repo, err := filestore.New(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()

	if err := repo.Save(ctx, sample("bilbao", "Bilbao", 2)); err != nil {
		t.Fatalf("save: %v", err)
	}
	got, err := repo.Get(ctx, "bilbao")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Name != "Bilbao" || len(got.Data) != 2 {
		t.Errorf("unexpected document %+v", got)
	}
	if got.Data[1].Extra["rank"] != 1.0 {
		t.Errorf("expected extra field kept, got %v", got.Data[1].Extra)
	}

	if err := repo.Delete(ctx, "bilbao"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := repo.Get(ctx, "bilbao"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("expected not found, got %v", err)
	}
	if err := repo.Delete(ctx, "bilbao"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("expected not found on second delete, got %v", err)
	}
}

func TestRepo_List(t *testing.T) {
	repo, err := filestore.New(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()
	for _, doc := range []*domain.MapData{
		sample("c", "Zarautz", 0),
		sample("a", "Bilbao", 3),
		sample("b", "Donostia", 1),
	} {
		if err := repo.Save(ctx, doc); err != nil {
			t.Fatal(err)
		}
	}

	page, total, err := repo.List(ctx, 1, 1)
	if err != nil {
		t.Fatal(err)
	}
	if total != 3 {
		t.Errorf("expected total 3, got %d", total)
	}
	if len(page) != 1 || page[0].Name != "Donostia" || page[0].Points != 1 {
		t.Errorf("unexpected page %+v", page)
	}

	empty, _, err := repo.List(ctx, 10, 5)
	if err != nil {
		t.Fatal(err)
	}
	if len(empty) != 0 {
		t.Errorf("expected empty page, got %+v", empty)
	}
}

func TestRepo_RejectsPathIDs(t *testing.T) {
	repo, err := filestore.New(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	for _, id := range []string{"", "../x", "a/b", ".hidden"} {
		if _, err := repo.Get(context.Background(), id); err == nil {
			t.Errorf("expected error for id %q", id)
		}
	}
}
