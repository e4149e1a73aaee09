package migrate_test

import (
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/angelmondragon/tamwill-backend/pkg/migrate"
)

func readMigration(t *testing.T, suffix string) string {
	t.Helper()
	matches, err := filepath.Glob(filepath.Join("migrations", "*_"+suffix+".sql"))
	if err != nil {
		t.Fatalf("glob migrations: %v", err)
	}
	if len(matches) == 0 {
		t.Fatalf("no %s migration file found", suffix)
	}
	data, err := os.ReadFile(matches[0])
	if err != nil {
		t.Fatalf("read migration file: %v", err)
	}
	return string(data)
}

func TestPaymentsMigrationEnforcesIdempotencyKeys(t *testing.T) {
	content := readMigration(t, "create_payments_table")

	checks := []string{
		"CREATE TABLE IF NOT EXISTS payments",
		"CONSTRAINT payments_transaction_id_key UNIQUE (transaction_id)",
		"CONSTRAINT payments_contribution_id_key UNIQUE (contribution_id)",
		"FOREIGN KEY (contribution_id) REFERENCES contributions(id)",
		"DROP TABLE IF EXISTS payments",
	}
	for _, sub := range checks {
		if !strings.Contains(content, sub) {
			t.Errorf("missing expected statement %q", sub)
		}
	}
}

func TestProjectsMigrationGuardsCollectedTotal(t *testing.T) {
	content := readMigration(t, "create_projects_table")

	checks := []string{
		"CREATE TYPE payout_status AS ENUM ('pending', 'requested', 'confirmed')",
		"collected_amount_cents BIGINT NOT NULL DEFAULT 0",
		"CHECK (collected_amount_cents >= 0)",
		"idx_projects_payout_queue",
	}
	for _, sub := range checks {
		if !strings.Contains(content, sub) {
			t.Errorf("missing expected statement %q", sub)
		}
	}
}

func TestContributionsMigrationStatuses(t *testing.T) {
	content := readMigration(t, "create_contributions_table")

	checks := []string{
		"CREATE TYPE contribution_status AS ENUM ('pending', 'paid', 'cancelled')",
		"CHECK (amount_cents > 0)",
		"provider_charge_id TEXT",
	}
	for _, sub := range checks {
		if !strings.Contains(content, sub) {
			t.Errorf("missing expected statement %q", sub)
		}
	}
}

func TestMigrationDirectoryIsValid(t *testing.T) {
	if err := migrate.ValidateDir("migrations"); err != nil {
		t.Fatalf("validate migrations: %v", err)
	}
}

func TestCreateSQLMigrationSanitizesName(t *testing.T) {
	dir := t.TempDir()
	path, err := migrate.CreateSQLMigration(dir, "Add Payout Notes!")
	if err != nil {
		t.Fatalf("create migration: %v", err)
	}
	if !strings.HasSuffix(path, "_add_payout_notes.sql") {
		t.Fatalf("unexpected filename %s", path)
	}
	if err := migrate.ValidateDir(dir); err != nil {
		t.Fatalf("created migration should validate: %v", err)
	}
}

func TestEmbeddedMigrationsMatchDisk(t *testing.T) {
	fsys, err := migrate.Source("")
	if err != nil {
		t.Fatalf("embedded source: %v", err)
	}
	if err := migrate.Validate(fsys); err != nil {
		t.Fatalf("embedded migrations invalid: %v", err)
	}
	onDisk, err := filepath.Glob(filepath.Join("migrations", "*.sql"))
	if err != nil {
		t.Fatalf("glob: %v", err)
	}
	embedded, err := fs.Glob(fsys, "*.sql")
	if err != nil {
		t.Fatalf("glob embedded: %v", err)
	}
	if len(onDisk) != len(embedded) {
		t.Fatalf("embedded %d migrations, disk has %d", len(embedded), len(onDisk))
	}
}

func TestSourceRejectsMissingDir(t *testing.T) {
	if _, err := migrate.Source(filepath.Join(t.TempDir(), "nope")); err == nil {
		t.Fatal("expected error for missing dir")
	}
}

func TestParseVersion(t *testing.T) {
	if v, err := migrate.ParseVersion("20260301090300"); err != nil || v != 20260301090300 {
		t.Fatalf("unexpected parse %d %v", v, err)
	}
	for _, raw := range []string{"", "abc", "-1"} {
		if _, err := migrate.ParseVersion(raw); err == nil {
			t.Fatalf("expected error for %q", raw)
		}
	}
}
