package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/maloquacious/docvault/internal/errs"
	"github.com/maloquacious/docvault/internal/logger"
	"github.com/maloquacious/docvault/internal/migrate"
	"github.com/maloquacious/docvault/internal/store"
	_ "modernc.org/sqlite"
)

var _ store.Store = (*SQLiteStore)(nil)

// SQLiteStore implements the Store interface using modernc.org/sqlite.
type SQLiteStore struct {
	dbPath          string
	db              *sql.DB
	expectedVersion int64
}

// New creates a new SQLiteStore. expectedVersion is the schema version
// this build considers current, usually the registry's Latest.
func New(dbPath string, expectedVersion int64) *SQLiteStore {
	return &SQLiteStore{
		dbPath:          dbPath,
		expectedVersion: expectedVersion,
	}
}

// Open opens the SQLite database with safe defaults, creating the file if absent.
func (s *SQLiteStore) Open() error {
	db, err := sql.Open("sqlite", s.dbPath)
	if err != nil {
		return errs.Wrap(errs.KindOpen, "failed to open database", err)
	}
	// One connection per operation; pragmas below stick to it.
	db.SetMaxOpenConns(1)

	// Apply safe defaults
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
		"PRAGMA busy_timeout=5000",
	}

	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return errs.Wrap(errs.KindOpen, "failed to open database", fmt.Errorf("failed to set pragma %q: %w", pragma, err))
		}
	}

	s.db = db
	return nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	if s.db != nil {
		err := s.db.Close()
		s.db = nil
		return err
	}
	return nil
}

// Migrate brings the schema up to the newest version in reg.
func (s *SQLiteStore) Migrate(ctx context.Context, reg *migrate.Registry, log logger.Logger) (migrate.Result, error) {
	if s.db == nil {
		return migrate.Result{}, errs.New(errs.KindOpen, "database not opened")
	}
	return migrate.Run(ctx, s.db, reg, log)
}

// CheckState returns the current state of the datastore.
func (s *SQLiteStore) CheckState(ctx context.Context) (store.StoreState, error) {
	if s.db == nil {
		return store.StateMissing, errs.New(errs.KindOpen, "database not opened")
	}

	hasLedger, err := s.hasLedger(ctx)
	if err != nil {
		return store.StateUninitialized, err
	}
	if !hasLedger {
		return store.StateUninitialized, nil
	}

	version, err := s.SchemaVersion(ctx)
	if err != nil {
		return store.StateUninitialized, fmt.Errorf("failed to get schema version: %w", err)
	}

	if version != s.expectedVersion {
		return store.StateVersionMismatch, nil
	}

	return store.StateReady, nil
}

// SchemaVersion returns the current schema version from the database, 0 before the first migration.
func (s *SQLiteStore) SchemaVersion(ctx context.Context) (int64, error) {
	if s.db == nil {
		return 0, errs.New(errs.KindOpen, "database not opened")
	}

	hasLedger, err := s.hasLedger(ctx)
	if err != nil || !hasLedger {
		return 0, err
	}
	return migrate.CurrentVersion(ctx, s.db)
}

// CountDocuments returns the number of stored documents.
func (s *SQLiteStore) CountDocuments(ctx context.Context) (int64, error) {
	if s.db == nil {
		return 0, errs.New(errs.KindOpen, "database not opened")
	}

	var n int64
	if err := s.db.QueryRowContext(ctx, countDocumentsQuery).Scan(&n); err != nil {
		return 0, errs.Wrap(errs.KindStoreIO, "failed to count documents", err)
	}
	return n, nil
}

// FirstDocument returns the full payload of the oldest document.
// An empty table yields an error of kind NOT_FOUND.
func (s *SQLiteStore) FirstDocument(ctx context.Context) ([]byte, error) {
	if s.db == nil {
		return nil, errs.New(errs.KindOpen, "database not opened")
	}

	var doc []byte
	err := s.db.QueryRowContext(ctx, firstDocumentQuery).Scan(&doc)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errs.New(errs.KindNotFound, "no documents stored")
	}
	if err != nil {
		return nil, errs.Wrap(errs.KindStoreIO, "failed to read document", err)
	}
	if doc == nil {
		doc = []byte{}
	}
	return doc, nil
}

func (s *SQLiteStore) hasLedger(ctx context.Context) (bool, error) {
	var count int
	if err := s.db.QueryRowContext(ctx, ledgerExistsQuery).Scan(&count); err != nil {
		return false, fmt.Errorf("failed to check schema_migrations table: %w", err)
	}
	return count > 0, nil
}
