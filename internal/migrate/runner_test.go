package migrate

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"

	"github.com/maloquacious/docvault/internal/errs"
	"github.com/maloquacious/docvault/internal/logger"

	_ "modernc.org/sqlite"
)

var (
	createA = Migration{Version: 1, Name: "0001_a.sql", SQL: "CREATE TABLE a(id INTEGER PRIMARY KEY);"}
	createB = Migration{Version: 2, Name: "0002_b.sql", SQL: "CREATE TABLE b(id INTEGER PRIMARY KEY);"}
	createC = Migration{Version: 3, Name: "0003_c.sql", SQL: "CREATE TABLE c(id INTEGER PRIMARY KEY);"}
	brokenB = Migration{Version: 2, Name: "0002_b.sql", SQL: "CREATE TABLE b(id INTEGER PRIMARY KEY);\nCREAT TABLE oops(id INT);"}
)

func TestRunAppliesAll(t *testing.T) {
	db := openTestDB(t)
	reg := mustRegistry(t, createA, createB, createC)

	res, err := Run(context.Background(), db, reg, logger.Discard)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if res.From != 0 || res.To != 3 {
		t.Errorf("got from=%d to=%d, want 0 -> 3", res.From, res.To)
	}
	assertVersions(t, res.Applied, 1, 2, 3)
	for _, table := range []string{"a", "b", "c"} {
		if !tableExists(t, db, table) {
			t.Errorf("expected table %s to exist", table)
		}
	}
}

func TestRunIsIdempotent(t *testing.T) {
	db := openTestDB(t)
	reg := mustRegistry(t, createA, createB)

	if _, err := Run(context.Background(), db, reg, logger.Discard); err != nil {
		t.Fatalf("first run: %v", err)
	}
	res, err := Run(context.Background(), db, reg, logger.Discard)
	if err != nil {
		t.Fatalf("second run should be a no-op: %v", err)
	}
	if res.From != 2 || res.To != 2 || len(res.Applied) != 0 {
		t.Errorf("second run = %+v, want no changes at version 2", res)
	}
	if n := queryInt64(t, db, "SELECT COUNT(*) FROM schema_migrations"); n != 2 {
		t.Errorf("expected 2 ledger rows, got %d", n)
	}
}

func TestRunAppliesOnlyPendingInOrder(t *testing.T) {
	db := openTestDB(t)

	if _, err := Run(context.Background(), db, mustRegistry(t, createA), logger.Discard); err != nil {
		t.Fatalf("bootstrap to version 1: %v", err)
	}

	res, err := Run(context.Background(), db, mustRegistry(t, createA, createB, createC), logger.Discard)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if res.From != 1 || res.To != 3 {
		t.Errorf("got from=%d to=%d, want 1 -> 3", res.From, res.To)
	}
	assertVersions(t, res.Applied, 2, 3)

	rows, err := db.Query("SELECT version FROM schema_migrations ORDER BY applied_at, version")
	if err != nil {
		t.Fatalf("query ledger: %v", err)
	}
	defer rows.Close()
	var ledger []int64
	for rows.Next() {
		var v int64
		if err := rows.Scan(&v); err != nil {
			t.Fatalf("scan: %v", err)
		}
		ledger = append(ledger, v)
	}
	assertVersions(t, ledger, 1, 2, 3)
}

func TestRunStopsAtFirstFailure(t *testing.T) {
	db := openTestDB(t)

	if _, err := Run(context.Background(), db, mustRegistry(t, createA), logger.Discard); err != nil {
		t.Fatalf("bootstrap to version 1: %v", err)
	}

	res, err := Run(context.Background(), db, mustRegistry(t, createA, brokenB, createC), logger.Discard)
	if err == nil {
		t.Fatal("expected migration 2 to fail")
	}
	if kind := errs.KindOf(err); kind != errs.KindMigration {
		t.Errorf("error kind = %q, want %q", kind, errs.KindMigration)
	}
	var e *errs.Error
	if !errors.As(err, &e) || e.Metadata["version"] != "2" {
		t.Errorf("expected failing version in metadata, got %#v", e)
	}
	if res.To != 1 || len(res.Applied) != 0 {
		t.Errorf("result = %+v, want still at version 1", res)
	}

	version, err := CurrentVersion(context.Background(), db)
	if err != nil {
		t.Fatalf("current version: %v", err)
	}
	if version != 1 {
		t.Errorf("ledger version = %d, want 1", version)
	}
	if tableExists(t, db, "b") {
		t.Error("partial migration 2 should have been rolled back")
	}
	if tableExists(t, db, "c") {
		t.Error("migration 3 must not run after migration 2 failed")
	}
}

func TestRunKeepsLastGoodVersion(t *testing.T) {
	db := openTestDB(t)
	brokenC := Migration{Version: 3, Name: "0003_c.sql", SQL: "INSERT INTO missing VALUES (1);"}

	res, err := Run(context.Background(), db, mustRegistry(t, createA, createB, brokenC), logger.Discard)
	if err == nil {
		t.Fatal("expected migration 3 to fail")
	}
	if res.To != 2 {
		t.Errorf("reported version = %d, want 2", res.To)
	}
	assertVersions(t, res.Applied, 1, 2)
	if v, _ := CurrentVersion(context.Background(), db); v != 2 {
		t.Errorf("ledger version = %d, want 2", v)
	}
}

func TestRunRejectsNewerDatabase(t *testing.T) {
	db := openTestDB(t)

	if _, err := Run(context.Background(), db, mustRegistry(t, createA, createB), logger.Discard); err != nil {
		t.Fatalf("bootstrap: %v", err)
	}
	_, err := Run(context.Background(), db, mustRegistry(t, createA), logger.Discard)
	if errs.KindOf(err) != errs.KindMigration {
		t.Fatalf("expected migration error for a newer database, got %v", err)
	}
}

func TestRunCanceled(t *testing.T) {
	db := openTestDB(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Run(ctx, db, mustRegistry(t, createA), logger.Discard)
	if err == nil {
		t.Fatal("expected error for canceled context")
	}
	if tableExists(t, db, "a") {
		t.Error("no migration should run after cancellation")
	}
}

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	db.SetMaxOpenConns(1)
	t.Cleanup(func() {
		if err := db.Close(); err != nil {
			t.Fatalf("close db: %v", err)
		}
	})
	return db
}

func mustRegistry(t *testing.T, migrations ...Migration) *Registry {
	t.Helper()
	reg, err := New(migrations...)
	if err != nil {
		t.Fatalf("registry: %v", err)
	}
	return reg
}

func assertVersions(t *testing.T, got []int64, want ...int64) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("versions = %v, want %v", got, want)
	}
	for i := range got {
		if got[i] != want[i] {
			t.Fatalf("versions = %v, want %v", got, want)
		}
	}
}

func queryInt64(t *testing.T, db *sql.DB, query string) int64 {
	t.Helper()
	var value int64
	if err := db.QueryRow(query).Scan(&value); err != nil {
		t.Fatalf("query int value: %v", err)
	}
	return value
}

func tableExists(t *testing.T, db *sql.DB, tableName string) bool {
	t.Helper()
	var name string
	err := db.QueryRow("SELECT name FROM sqlite_master WHERE type='table' AND name = ?", tableName).Scan(&name)
	if err != nil {
		if err == sql.ErrNoRows {
			return false
		}
		t.Fatalf("check table exists: %v", err)
	}
	return name == tableName
}
