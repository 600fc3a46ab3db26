package blob

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"time"

	"github.com/maloquacious/docvault/internal/errs"
	"github.com/maloquacious/docvault/internal/logger"
	"github.com/maloquacious/docvault/internal/store"
	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"
)

const insertDocumentQuery = `INSERT INTO documents (doc, created_at, source_name) VALUES (zeroblob(?), ?, ?);`

// Importer copies files into new document rows.
type Importer struct {
	dbPath    string
	opener    LockingFileOpener
	log       logger.Logger
	chunkSize int

	// test hooks
	afterAllocate func(conn *sqlite.Conn, id int64) error
	wrapBlob      func(w io.Writer) io.Writer
}

// NewImporter returns an Importer writing to the database at dbPath.
// A nil opener means DefaultOpener; a nil log discards output.
func NewImporter(dbPath string, opener LockingFileOpener, log logger.Logger) *Importer {
	if opener == nil {
		opener = DefaultOpener()
	}
	if log == nil {
		log = logger.Discard
	}
	return &Importer{
		dbPath:    dbPath,
		opener:    opener,
		log:       log,
		chunkSize: ChunkSize,
	}
}

// Import stores the file at path as a new document and returns its row id.
//
// The row is inserted with a zero-filled blob of exactly the source size, then
// filled chunk by chunk through a blob handle. The handle is closed before the
// transaction commits. On any error the transaction is rolled back and no row remains.
func (imp *Importer) Import(ctx context.Context, path string) (id int64, err error) {
	start := time.Now()
	defer func() {
		if err != nil {
			imp.log.Error("document import failed", "source", path, "kind", errs.KindOf(err), "err", err)
		}
	}()

	if err := ctx.Err(); err != nil {
		return 0, errs.Wrap(errs.KindCanceled, "import canceled", err)
	}

	src, err := imp.opener.Open(path)
	if err != nil {
		return 0, errs.Wrap(errs.KindSourceIO, "failed to open source file", err)
	}
	defer src.Close()

	info, err := src.Stat()
	if err != nil {
		return 0, errs.Wrap(errs.KindSourceIO, "failed to read source file metadata", err)
	}
	if info.IsDir() {
		return 0, errs.Wrap(errs.KindSourceIO, "source is a directory", fmt.Errorf("%s: is a directory", path))
	}
	size := info.Size()

	conn, err := openConn(imp.dbPath)
	if err != nil {
		return 0, err
	}
	defer conn.Close()

	id, err = imp.write(ctx, conn, src, size, filepath.Base(path))
	if err != nil {
		if errs.KindOf(err) == errs.KindUnknown {
			err = errs.Wrap(errs.KindStoreIO, "failed to commit document", err)
		}
		return 0, err
	}

	imp.log.Info("document imported",
		"id", id,
		"bytes", size,
		"source", path,
		"locked", imp.opener.DeniesWriters(),
		logger.Since(start))
	return id, nil
}

// write runs the insert and the chunked copy inside one savepoint, committed
// by release when err is nil.
func (imp *Importer) write(ctx context.Context, conn *sqlite.Conn, src io.Reader, size int64, name string) (id int64, err error) {
	release := sqlitex.Save(conn)
	defer release(&err)

	err = sqlitex.Execute(conn, insertDocumentQuery, &sqlitex.ExecOptions{
		Args: []any{size, time.Now().UTC().UnixMilli(), name},
	})
	if err != nil {
		return 0, errs.Wrap(errs.KindStoreIO, "failed to allocate document", err)
	}
	id = conn.LastInsertRowID()

	if imp.afterAllocate != nil {
		if err = imp.afterAllocate(conn, id); err != nil {
			return 0, err
		}
	}

	// Nothing to copy into an empty blob.
	if size == 0 {
		return id, nil
	}

	blob, err := conn.OpenBlob("main", store.DocumentsTable, store.DocumentColumn, id, true)
	if err != nil {
		return 0, errs.Wrap(errs.KindStoreIO, "failed to open document blob", err)
	}

	var dst io.Writer = blob
	if imp.wrapBlob != nil {
		dst = imp.wrapBlob(blob)
	}
	written, op, copyErr := pump(ctx, dst, src, make([]byte, imp.chunkSize), size)

	// The handle references transaction state: it must be closed before release.
	closeErr := blob.Close()

	if copyErr != nil {
		return 0, copyError(op, copyErr)
	}
	if closeErr != nil {
		return 0, errs.Wrap(errs.KindStoreIO, "failed to close document blob", closeErr)
	}
	if written != size {
		return 0, errs.Wrap(errs.KindSourceIO, "source file changed size during import",
			fmt.Errorf("copied %d of %d bytes", written, size))
	}
	return id, nil
}

func copyError(op copyOp, err error) error {
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return errs.Wrap(errs.KindCanceled, "import canceled", err)
	case errors.Is(err, errSourceGrew):
		return errs.Wrap(errs.KindSourceIO, "source file changed size during import", err)
	case op == opWrite:
		return errs.Wrap(errs.KindStoreIO, "failed to write document", err)
	default:
		return errs.Wrap(errs.KindSourceIO, "failed to read source file", err)
	}
}
