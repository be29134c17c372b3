package migrations

import (
	"context"
	"testing"

	"github.com/uptrace/bun/migrate"

	"github.com/6529-collections/tdh-indexer/pkg/migrations/tdhdb"
	mghelper "github.com/6529-collections/tdh-indexer/pkg/pgutil"
)

func TestTDHDBMigrations_Apply(t *testing.T) {
	db, cleanup := mghelper.SetupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	migrator := migrate.NewMigrator(db, tdhdb.Migrations)

	// Initialize migration system
	err := migrator.Init(ctx)
	if err != nil {
		t.Fatalf("Init() failed: %v", err)
	}

	// Run all migrations up
	group, err := migrator.Migrate(ctx)
	if err != nil {
		t.Fatalf("Migrate() failed: %v", err)
	}
	if group.IsZero() {
		t.Error("Expected migrations to run, but none were applied")
	}

	// Verify all expected tables exist
	expectedTables := []string{
		"transfers",
		"owned_balances",
		"consolidation_edges",
		"delegations",
		"watermarks",
		"tdh",
		"snapshot_commitments",
		"job_logs",
		"bun_migrations",
	}

	for _, table := range expectedTables {
		mghelper.AssertTableExists(t, db, table)
	}

	// Unique pair index on consolidation edges and the wallet GIN index
	mghelper.AssertIndexExists(t, db, "idx_consolidation_edges_pair")
	mghelper.AssertIndexExists(t, db, "idx_tdh_wallets")
}

func TestTDHDBMigrations_Rollback(t *testing.T) {
	db, cleanup := mghelper.SetupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	migrator := migrate.NewMigrator(db, tdhdb.Migrations)

	if err := migrator.Init(ctx); err != nil {
		t.Fatalf("Init() failed: %v", err)
	}
	if _, err := migrator.Migrate(ctx); err != nil {
		t.Fatalf("Migrate() failed: %v", err)
	}

	// Roll everything back one group at a time
	for {
		group, err := migrator.Rollback(ctx)
		if err != nil {
			t.Fatalf("Rollback() failed: %v", err)
		}
		if group.IsZero() {
			break
		}
	}

	mghelper.AssertTableNotExists(t, db, "transfers")
	mghelper.AssertTableNotExists(t, db, "tdh")
	mghelper.AssertTableNotExists(t, db, "job_logs")
}

func TestTDHDBMigrations_Idempotent(t *testing.T) {
	db, cleanup := mghelper.SetupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	migrator := migrate.NewMigrator(db, tdhdb.Migrations)

	if err := migrator.Init(ctx); err != nil {
		t.Fatalf("Init() failed: %v", err)
	}
	if _, err := migrator.Migrate(ctx); err != nil {
		t.Fatalf("first Migrate() failed: %v", err)
	}

	// Running again with nothing pending is a no-op
	group, err := migrator.Migrate(ctx)
	if err != nil {
		t.Fatalf("second Migrate() failed: %v", err)
	}
	if !group.IsZero() {
		t.Errorf("expected no pending migrations, got group %s", group)
	}

	mghelper.AssertRowCount(t, db, "transfers", 0)
}
