package migrations

import (
	"testing"

	"github.com/nerrad567/telemetry-bridge/internal/infrastructure/database"
)

func TestEmbeddedMigrationsLoad(t *testing.T) {
	migrations, err := database.LoadMigrations(FS)
	if err != nil {
		t.Fatalf("LoadMigrations() error = %v", err)
	}
	if len(migrations) == 0 {
		t.Fatal("no embedded migrations found")
	}
	for _, m := range migrations {
		if m.DownSQL == "" {
			t.Errorf("migration %s (%s) has no down SQL", m.Version, m.Name)
		}
	}
}

func TestEmbeddedMigrationsApply(t *testing.T) {
	db, err := database.Open(database.Config{Path: database.MemoryPath})
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer db.Close() //nolint:errcheck // Test cleanup

	ctx := t.Context()
	if err := db.Migrate(ctx, FS); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}
	if err := db.MigrateDown(ctx, FS); err != nil {
		t.Fatalf("MigrateDown() error = %v", err)
	}
	if err := db.Migrate(ctx, FS); err != nil {
		t.Fatalf("re-Migrate() error = %v", err)
	}
}
