package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/maloquacious/docvault/internal/admin"
	"github.com/spf13/cobra"
)

const shutdownTimeout = 15 * time.Second

// runServe applies migrations, then serves the admin API until interrupted.
func runServe(cmd *cobra.Command, args []string) error {
	if _, err := svc.RunMigrations(cmd.Context()); err != nil {
		return err
	}

	if err := requireLoopback(cfg.AdminAddr); err != nil {
		return err
	}
	listener, err := net.Listen("tcp", cfg.AdminAddr)
	if err != nil {
		return fmt.Errorf("admin listener bind failed (loopback only): %w", err)
	}

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	srv := &http.Server{
		Handler: admin.NewHandler(svc, admin.Options{
			Version:    version.String(),
			Log:        log,
			OnShutdown: cancel,
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("admin server listening", "addr", listener.Addr().String(), "db", svc.DBPath())
		if err := srv.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("admin server error: %w", err)
		}
	}()

	var serveErr error
	select {
	case <-ctx.Done():
		// graceful shutdown
	case serveErr = <-errCh:
		log.Error("server error", "err", serveErr)
	}

	shutdownCtx, stop := context.WithTimeout(context.Background(), shutdownTimeout)
	defer stop()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		fmt.Fprintln(os.Stderr, "shutdown:", err)
	}
	log.Info("shutdown complete")
	return serveErr
}

// requireLoopback rejects admin addresses that are reachable from other hosts.
func requireLoopback(addr string) error {
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		return fmt.Errorf("invalid admin address %q: %w", addr, err)
	}
	if host == "localhost" {
		return nil
	}
	if ip := net.ParseIP(host); ip != nil && ip.IsLoopback() {
		return nil
	}
	return fmt.Errorf("admin address %q must be a loopback address", addr)
}
