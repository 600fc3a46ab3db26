package vault

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/maloquacious/docvault/internal/blob"
	"github.com/maloquacious/docvault/internal/errs"
	"github.com/maloquacious/docvault/internal/logger"
	"github.com/maloquacious/docvault/internal/migrate"
	"github.com/maloquacious/docvault/internal/store/sqlite/migrations"
)

func TestNewValidatesOptions(t *testing.T) {
	reg := loadRegistry(t)

	tests := []struct {
		name     string
		opts     Options
		wantKind errs.Kind
	}{
		{"missing path", Options{Migrations: reg}, errs.KindPathResolution},
		{"missing migrations", Options{DBPath: "x.db"}, errs.KindMigration},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.opts)
			if kind := errs.KindOf(err); kind != tt.wantKind {
				t.Errorf("error kind = %q, want %q", kind, tt.wantKind)
			}
		})
	}
}

func TestServiceLifecycle(t *testing.T) {
	ctx := context.Background()
	svc := newService(t)

	status, err := svc.Status(ctx)
	if err != nil {
		t.Fatalf("status before open: %v", err)
	}
	if status.State != "missing" {
		t.Errorf("state before open = %q, want missing", status.State)
	}

	if err := svc.Open(); err != nil {
		t.Fatalf("open: %v", err)
	}

	res, err := svc.RunMigrations(ctx)
	if err != nil {
		t.Fatalf("run migrations: %v", err)
	}
	if res.From != 0 || res.To != 2 {
		t.Errorf("first run = %+v, want 0 -> 2", res)
	}

	res, err = svc.RunMigrations(ctx)
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if len(res.Applied) != 0 || res.To != 2 {
		t.Errorf("second run = %+v, want no-op at 2", res)
	}

	_, err = svc.GetDocument(ctx)
	if kind := errs.KindOf(err); kind != errs.KindNotFound {
		t.Fatalf("empty fetch kind = %q (%v), want %q", kind, err, errs.KindNotFound)
	}

	want := bytes.Repeat([]byte("docvault "), 300_000)
	src := filepath.Join(t.TempDir(), "report.pdf")
	if err := os.WriteFile(src, want, 0o644); err != nil {
		t.Fatalf("write source: %v", err)
	}

	id, err := svc.StoreFile(ctx, src)
	if err != nil {
		t.Fatalf("store file: %v", err)
	}
	if id != 1 {
		t.Errorf("id = %d, want 1", id)
	}

	got, err := svc.GetDocument(ctx)
	if err != nil {
		t.Fatalf("get document: %v", err)
	}
	if !bytes.Equal(got, want) {
		t.Errorf("document differs: got %d bytes, want %d", len(got), len(want))
	}

	var buf bytes.Buffer
	n, err := svc.ExportDocument(ctx, &buf)
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	if n != int64(len(want)) || !bytes.Equal(buf.Bytes(), want) {
		t.Errorf("export wrote %d bytes, want %d identical", n, len(want))
	}

	status, err = svc.Status(ctx)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if status.State != "ready" || status.SchemaVersion != 2 || status.ExpectedVersion != 2 || status.Documents != 1 {
		t.Errorf("status = %+v", status)
	}
}

func TestStoreFileRequiresPath(t *testing.T) {
	svc := newService(t)
	if _, err := svc.StoreFile(context.Background(), ""); errs.KindOf(err) != errs.KindSourceIO {
		t.Errorf("expected SOURCE_IO for an empty path, got %v", err)
	}
}

func TestOpenFailsForUnwritableLocation(t *testing.T) {
	reg := loadRegistry(t)
	svc, err := New(Options{
		DBPath:     filepath.Join(t.TempDir(), "missing", "docvault.db"),
		Migrations: reg,
		Logger:     logger.Discard,
	})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if err := svc.Open(); errs.KindOf(err) != errs.KindOpen {
		t.Errorf("expected OPEN error, got %v", err)
	}
}

func newService(t *testing.T) *Service {
	t.Helper()
	svc, err := New(Options{
		DBPath:     filepath.Join(t.TempDir(), "docvault.db"),
		Migrations: loadRegistry(t),
		Opener:     blob.PlainOpener{},
		Logger:     logger.Discard,
	})
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return svc
}

func loadRegistry(t *testing.T) *migrate.Registry {
	t.Helper()
	reg, err := migrate.Load(migrations.FS, ".")
	if err != nil {
		t.Fatalf("load migrations: %v", err)
	}
	return reg
}
