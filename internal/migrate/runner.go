package migrate

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"time"

	"github.com/maloquacious/docvault/internal/errs"
	"github.com/maloquacious/docvault/internal/logger"
)

// LedgerTable records every applied migration version.
const LedgerTable = "schema_migrations"

const ledgerSchema = `
CREATE TABLE IF NOT EXISTS schema_migrations (
    version INTEGER PRIMARY KEY,
    name TEXT NOT NULL,
    applied_at INTEGER NOT NULL
);
`

// Result describes one Run.
type Result struct {
	From    int64   // version before the run
	To      int64   // version reached; the last good version when Run fails
	Applied []int64 // versions applied by this run, ascending
}

// Run applies every migration in reg newer than the database's current version.
// Each migration runs in its own transaction together with its ledger row.
// The first failure stops the run and leaves the database at the last good version.
func Run(ctx context.Context, db *sql.DB, reg *Registry, log logger.Logger) (Result, error) {
	if db == nil {
		return Result{}, errs.New(errs.KindOpen, "database is not open")
	}
	if reg == nil {
		return Result{}, errs.New(errs.KindMigration, "no migrations configured")
	}
	if log == nil {
		log = logger.Discard
	}

	if _, err := db.ExecContext(ctx, ledgerSchema); err != nil {
		log.Error("migration ledger unavailable", "err", err)
		return Result{}, errs.Wrap(errs.KindMigration, "could not prepare the migration ledger", err)
	}

	current, err := CurrentVersion(ctx, db)
	if err != nil {
		log.Error("migration ledger unreadable", "err", err)
		return Result{}, errs.Wrap(errs.KindMigration, "could not read the schema version", err)
	}
	res := Result{From: current, To: current}

	if latest := reg.Latest(); current > latest {
		err := fmt.Errorf("ledger at version %d, newest known migration is %d", current, latest)
		log.Error("database schema is newer than this build", "version", current, "latest", latest)
		return res, errs.WrapWithMetadata(errs.KindMigration,
			fmt.Sprintf("database schema version %d is newer than this application supports", current),
			map[string]string{"version": strconv.FormatInt(current, 10)}, err)
	}

	for _, m := range reg.pending(current) {
		if err := ctx.Err(); err != nil {
			return res, errs.Wrap(errs.KindCanceled, "migration canceled", err)
		}
		start := time.Now()
		if err := apply(ctx, db, m); err != nil {
			log.Error("migration failed",
				"version", m.Version,
				"name", m.Name,
				"schema_version", res.To,
				"err", err)
			return res, errs.WrapWithMetadata(errs.KindMigration,
				fmt.Sprintf("migration %d (%s) failed", m.Version, m.Name),
				map[string]string{"version": strconv.FormatInt(m.Version, 10), "name": m.Name}, err)
		}
		res.To = m.Version
		res.Applied = append(res.Applied, m.Version)
		log.Info("migration applied", "version", m.Version, "name", m.Name, logger.Since(start))
	}

	if len(res.Applied) == 0 {
		log.Debug("schema up to date", "version", current)
	}
	return res, nil
}

// CurrentVersion returns the highest version in the ledger, 0 when it is empty.
// The ledger table must exist.
func CurrentVersion(ctx context.Context, db *sql.DB) (int64, error) {
	var version int64
	err := db.QueryRowContext(ctx, `SELECT COALESCE(MAX(version), 0) FROM schema_migrations`).Scan(&version)
	if err != nil {
		return 0, fmt.Errorf("failed to query schema version: %w", err)
	}
	return version, nil
}

func apply(ctx context.Context, db *sql.DB, m Migration) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, m.SQL); err != nil {
		return fmt.Errorf("failed to execute script: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO schema_migrations (version, name, applied_at) VALUES (?, ?, ?)`,
		m.Version, m.Name, time.Now().UTC().UnixMilli())
	if err != nil {
		return fmt.Errorf("failed to record migration: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}
