package postgres_test

import (
	"reflect"
	"testing"
	"testing/fstest"

	"github.com/samirrijal/metamap/internal/adapters/postgres"
	"github.com/samirrijal/metamap/migrations"
)

func TestMigrationFiles(t *testing.T) {
	fsys := fstest.MapFS{
		"002_tags.sql":      {Data: []byte("SELECT 2")},
		"001_maps.sql":      {Data: []byte("SELECT 1")},
		"001_maps.down.sql": {Data: []byte("SELECT -1")},
		"002_tags.down.sql": {Data: []byte("SELECT -2")},
		"README.md":         {Data: []byte("not sql")},
	}

	tests := []struct {
		name string
		down bool
		want []string
	}{
		{"up in order", false, []string{"001_maps.sql", "002_tags.sql"}},
		{"down in reverse", true, []string{"002_tags.down.sql", "001_maps.down.sql"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := postgres.MigrationFiles(fsys, tt.down)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, got)
			}
		})
	}
}

func TestMigrationFiles_Embedded(t *testing.T) {
	up, err := postgres.MigrationFiles(migrations.FS, false)
	if err != nil {
		t.Fatal(err)
	}
	down, err := postgres.MigrationFiles(migrations.FS, true)
	if err != nil {
		t.Fatal(err)
	}
	if len(up) == 0 || len(up) != len(down) {
		t.Errorf("expected matching up/down scripts, got %v and %v", up, down)
	}
}
