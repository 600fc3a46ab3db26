package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"

	"github.com/maloquacious/docvault/internal/blob"
	"github.com/maloquacious/docvault/internal/config"
	"github.com/maloquacious/docvault/internal/errs"
	"github.com/maloquacious/docvault/internal/logger"
	"github.com/maloquacious/docvault/internal/migrate"
	"github.com/maloquacious/docvault/internal/store"
	"github.com/maloquacious/docvault/internal/store/sqlite/migrations"
	"github.com/maloquacious/docvault/internal/vault"
	"github.com/maloquacious/semver"
	"github.com/spf13/cobra"
)

var (
	version = semver.Version{Minor: 1, PreRelease: "alpha", Build: semver.Commit()}
)

var (
	dataDir   string
	appName   string
	logLevel  string
	adminAddr string
	outPath   string
)

// runtime state built once by setup and shared by the commands
var (
	cfg config.Config
	log *slog.Logger
	svc *vault.Service
)

func main() {
	rootCmd := &cobra.Command{
		Use:               "app",
		Short:             "docvault stores files as blobs in a local SQLite database",
		Version:           version.String(),
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: setup,
	}

	// Global flags override DOCVAULT_* environment variables.
	rootCmd.PersistentFlags().StringVar(&dataDir, "data-dir", "", "directory holding the database (default: platform local data dir)")
	rootCmd.PersistentFlags().StringVar(&appName, "app-name", "", "application name, used for the data directory and database file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level: debug, info, warn, error")

	migrateCmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending schema migrations",
		Args:  cobra.NoArgs,
		RunE:  runMigrate,
	}
	storeCmd := &cobra.Command{
		Use:   "store <path>",
		Short: "Import a file as a new document",
		Args:  cobra.ExactArgs(1),
		RunE:  runStore,
	}
	getCmd := &cobra.Command{
		Use:   "get",
		Short: "Write the first stored document to stdout or a file",
		Args:  cobra.NoArgs,
		RunE:  runGet,
	}
	getCmd.Flags().StringVarP(&outPath, "output", "o", "", "stream the document to this file instead of stdout")

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show database state and schema version",
		Args:  cobra.NoArgs,
		RunE:  runStatus,
	}
	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the loopback-only JSON admin API",
		Args:  cobra.NoArgs,
		RunE:  runServe,
	}
	serveCmd.Flags().StringVar(&adminAddr, "admin-addr", "", "admin listen address, must be loopback")

	rootCmd.AddCommand(migrateCmd, storeCmd, getCmd, statusCmd, serveCmd)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", errs.Display(err))
		stop()
		os.Exit(1)
	}
}

// setup loads configuration, resolves the database path and makes sure the
// database opens. Failures here are fatal.
func setup(cmd *cobra.Command, args []string) error {
	var err error
	if cfg, err = config.Load(); err != nil {
		return err
	}
	if dataDir != "" {
		cfg.DataDir = dataDir
	}
	if appName != "" {
		cfg.AppName = strings.TrimSpace(appName)
	}
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}
	if adminAddr != "" {
		cfg.AdminAddr = adminAddr
	}

	log = logger.New(os.Stderr, logger.ParseLevel(cfg.LogLevel))
	slog.SetDefault(log)

	dir, err := cfg.AppDataDir()
	if err != nil {
		log.Error("cannot resolve data directory", "err", err)
		return errs.Wrap(errs.KindPathResolution, "cannot resolve the application data directory", err)
	}
	if err := store.EnsureDir(dir); err != nil {
		log.Error("cannot create data directory", "dir", dir, "err", err)
		return errs.Wrap(errs.KindPathResolution, "cannot create the application data directory", err)
	}
	dbPath := store.GetDBPath(dir, cfg.AppName)

	// Loaded once; the registry is immutable from here on.
	reg, err := migrate.Load(migrations.FS, ".")
	if err != nil {
		log.Error("embedded migrations are invalid", "err", err)
		return errs.Wrap(errs.KindMigration, "embedded migrations are invalid", err)
	}

	svc, err = vault.New(vault.Options{
		DBPath:     dbPath,
		Migrations: reg,
		Opener:     blob.DefaultOpener(),
		Logger:     log,
	})
	if err != nil {
		return err
	}
	if err := svc.Open(); err != nil {
		return err
	}
	log.Debug("database ready", "path", dbPath, "version", version.String())
	return nil
}

func runMigrate(cmd *cobra.Command, args []string) error {
	res, err := svc.RunMigrations(cmd.Context())
	if err != nil {
		return err
	}
	if len(res.Applied) == 0 {
		fmt.Fprintf(cmd.OutOrStdout(), "schema is up to date at version %d\n", res.To)
		return nil
	}
	fmt.Fprintf(cmd.OutOrStdout(), "schema migrated from version %d to %d\n", res.From, res.To)
	return nil
}

func runStore(cmd *cobra.Command, args []string) error {
	if _, err := svc.RunMigrations(cmd.Context()); err != nil {
		return err
	}
	id, err := svc.StoreFile(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "stored document %d\n", id)
	return nil
}

func runGet(cmd *cobra.Command, args []string) error {
	if _, err := svc.RunMigrations(cmd.Context()); err != nil {
		return err
	}
	if outPath == "" {
		doc, err := svc.GetDocument(cmd.Context())
		if err != nil {
			return err
		}
		_, err = cmd.OutOrStdout().Write(doc)
		return err
	}

	f, err := os.Create(outPath)
	if err != nil {
		return errs.Wrap(errs.KindSourceIO, "cannot create output file", err)
	}
	n, err := svc.ExportDocument(cmd.Context(), f)
	if cerr := f.Close(); err == nil && cerr != nil {
		err = errs.Wrap(errs.KindSourceIO, "cannot write output file", cerr)
	}
	if err != nil {
		_ = os.Remove(outPath)
		return err
	}
	log.Info("document exported", "path", outPath, "bytes", n)
	return nil
}

func runStatus(cmd *cobra.Command, args []string) error {
	status, err := svc.Status(cmd.Context())
	if err != nil {
		return err
	}
	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "version:         %s\n", version.String())
	fmt.Fprintf(w, "database:        %s\n", status.DBPath)
	fmt.Fprintf(w, "state:           %s\n", status.State)
	fmt.Fprintf(w, "schema version:  %d (expected %d)\n", status.SchemaVersion, status.ExpectedVersion)
	fmt.Fprintf(w, "documents:       %d\n", status.Documents)
	fmt.Fprintf(w, "locked imports:  %t\n", status.LockedImports)
	return nil
}
