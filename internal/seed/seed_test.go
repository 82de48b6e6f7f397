package seed

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/Simplici0/salon-margin/internal/db"
	"github.com/Simplici0/salon-margin/internal/settings"
)

func TestRunIsIdempotent(t *testing.T) {
	ctx := context.Background()
	database := openMigrated(t)

	for i := 0; i < 10; i++ {
		stats, err := Run(ctx, database, settings.Defaults())
		if err != nil {
			t.Fatalf("run seed (iteration=%d): %v", i, err)
		}
		if i == 0 {
			if stats.Inserts != 1 {
				t.Fatalf("expected 1 insert in first run, got %d", stats.Inserts)
			}
			continue
		}
		if stats.Inserts != 0 {
			t.Fatalf("expected 0 inserts in iteration %d, got %d", i, stats.Inserts)
		}
	}

	assertCount(t, database, `SELECT COUNT(*) FROM rate_config WHERE id = 1`, 1)

	rates, err := settings.NewRepository(database).Get(ctx)
	if err != nil {
		t.Fatalf("get seeded rates: %v", err)
	}
	if !rates.CommissionPercent.Equal(decimal.NewFromInt(30)) || !rates.FixedOverhead.Equal(decimal.NewFromInt(10)) {
		t.Fatalf("unexpected seeded rates: %+v", rates)
	}
	if rates.Currency != "BRL" {
		t.Fatalf("expected BRL currency, got %q", rates.Currency)
	}
}

func TestRunKeepsOperatorChanges(t *testing.T) {
	ctx := context.Background()
	database := openMigrated(t)
	repo := settings.NewRepository(database)

	if _, err := Run(ctx, database, settings.Defaults()); err != nil {
		t.Fatalf("first seed: %v", err)
	}

	changed := settings.Defaults()
	changed.CommissionPercent = decimal.RequireFromString("42.5")
	if err := repo.Update(ctx, changed); err != nil {
		t.Fatalf("update rates: %v", err)
	}

	if _, err := Run(ctx, database, settings.Defaults()); err != nil {
		t.Fatalf("second seed: %v", err)
	}

	rates, err := repo.Get(ctx)
	if err != nil {
		t.Fatalf("get rates: %v", err)
	}
	if !rates.CommissionPercent.Equal(decimal.RequireFromString("42.5")) {
		t.Fatalf("seed overwrote operator commission: %s", rates.CommissionPercent)
	}
}

func openMigrated(t *testing.T) *sql.DB {
	t.Helper()

	ctx := context.Background()
	database, err := db.Open(ctx, filepath.Join(t.TempDir(), "seed-test.db"))
	if err != nil {
		t.Fatalf("open sqlite database: %v", err)
	}
	t.Cleanup(func() { _ = database.Close() })

	if err := db.Migrate(ctx, database); err != nil {
		t.Fatalf("run migrations: %v", err)
	}
	return database
}

func assertCount(t *testing.T, database *sql.DB, query string, expected int) {
	t.Helper()

	var count int
	if err := database.QueryRow(query).Scan(&count); err != nil {
		t.Fatalf("count query failed: %v", err)
	}
	if count != expected {
		t.Fatalf("expected count %d, got %d", expected, count)
	}
}
