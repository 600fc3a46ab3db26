// Package vault exposes the operations the host shell invokes:
// RunMigrations, StoreFile and GetDocument.
//
// Every operation opens its own connection to the database file and closes it
// before returning. Nothing is shared between calls.
package vault

import (
	"context"
	"io"

	"github.com/maloquacious/docvault/internal/blob"
	"github.com/maloquacious/docvault/internal/errs"
	"github.com/maloquacious/docvault/internal/logger"
	"github.com/maloquacious/docvault/internal/migrate"
	"github.com/maloquacious/docvault/internal/store"
	"github.com/maloquacious/docvault/internal/store/sqlite"
)

// Options configures a Service.
type Options struct {
	DBPath     string                 // database file, created on first open
	Migrations *migrate.Registry      // built once at startup
	Opener     blob.LockingFileOpener // nil means blob.DefaultOpener()
	Logger     logger.Logger          // nil discards output
}

// Service runs docvault operations against one database file.
type Service struct {
	dbPath     string
	migrations *migrate.Registry
	opener     blob.LockingFileOpener
	importer   *blob.Importer
	log        logger.Logger
}

// Status summarizes the database for display.
type Status struct {
	DBPath          string `json:"dbPath"`
	State           string `json:"state"`
	SchemaVersion   int64  `json:"schemaVersion"`
	ExpectedVersion int64  `json:"expectedVersion"`
	Documents       int64  `json:"documents"`
	LockedImports   bool   `json:"lockedImports"`
}

// New returns a Service. DBPath and Migrations are required.
func New(opts Options) (*Service, error) {
	if opts.DBPath == "" {
		return nil, errs.New(errs.KindPathResolution, "database path is required")
	}
	if opts.Migrations == nil {
		return nil, errs.New(errs.KindMigration, "migrations are required")
	}
	if opts.Logger == nil {
		opts.Logger = logger.Discard
	}
	if opts.Opener == nil {
		opts.Opener = blob.DefaultOpener()
	}
	return &Service{
		dbPath:     opts.DBPath,
		migrations: opts.Migrations,
		opener:     opts.Opener,
		importer:   blob.NewImporter(opts.DBPath, opts.Opener, opts.Logger),
		log:        opts.Logger,
	}, nil
}

// DBPath returns the database file the service operates on.
func (s *Service) DBPath() string {
	return s.dbPath
}

// Open checks that the database can be opened, creating the file if absent.
func (s *Service) Open() error {
	st := sqlite.New(s.dbPath, s.migrations.Latest())
	if err := st.Open(); err != nil {
		return err
	}
	return st.Close()
}

// RunMigrations applies pending migrations.
func (s *Service) RunMigrations(ctx context.Context) (migrate.Result, error) {
	var res migrate.Result
	err := s.withStore(func(st *sqlite.SQLiteStore) error {
		var err error
		res, err = st.Migrate(ctx, s.migrations, s.log)
		return err
	})
	return res, err
}

// StoreFile imports the file at path as a new document and returns its id.
func (s *Service) StoreFile(ctx context.Context, path string) (int64, error) {
	if path == "" {
		return 0, errs.New(errs.KindSourceIO, "a file path is required")
	}
	return s.importer.Import(ctx, path)
}

// GetDocument returns the payload of the oldest document.
// It fails with NOT_FOUND when no document is stored.
func (s *Service) GetDocument(ctx context.Context) ([]byte, error) {
	var doc []byte
	err := s.withStore(func(st *sqlite.SQLiteStore) error {
		var err error
		doc, err = st.FirstDocument(ctx)
		return err
	})
	if err != nil && errs.KindOf(err) != errs.KindNotFound {
		s.log.Error("document fetch failed", "kind", errs.KindOf(err), "err", err)
	}
	return doc, err
}

// ExportDocument streams the oldest document to w without holding it in memory.
func (s *Service) ExportDocument(ctx context.Context, w io.Writer) (int64, error) {
	n, err := blob.Export(ctx, s.dbPath, w)
	if err != nil {
		s.log.Error("document export failed", "kind", errs.KindOf(err), "err", err)
	}
	return n, err
}

// Status reports the database state, schema version and document count.
func (s *Service) Status(ctx context.Context) (Status, error) {
	status := Status{
		DBPath:          s.dbPath,
		State:           store.StateMissing.String(),
		ExpectedVersion: s.migrations.Latest(),
		LockedImports:   s.opener.DeniesWriters(),
	}

	exists, err := store.CheckExists(s.dbPath)
	if err != nil {
		return status, errs.Wrap(errs.KindOpen, "failed to inspect database file", err)
	}
	if !exists {
		return status, nil
	}

	err = s.withStore(func(st *sqlite.SQLiteStore) error {
		state, err := st.CheckState(ctx)
		if err != nil {
			return err
		}
		status.State = state.String()
		if status.SchemaVersion, err = st.SchemaVersion(ctx); err != nil {
			return err
		}
		if state == store.StateReady {
			status.Documents, err = st.CountDocuments(ctx)
		}
		return err
	})
	return status, err
}

// withStore opens a fresh connection for one operation.
func (s *Service) withStore(fn func(st *sqlite.SQLiteStore) error) error {
	st := sqlite.New(s.dbPath, s.migrations.Latest())
	if err := st.Open(); err != nil {
		s.log.Error("database open failed", "path", s.dbPath, "err", err)
		return err
	}
	defer st.Close()

	return fn(st)
}
