package blob

import (
	"context"
	"io"

	"github.com/maloquacious/docvault/internal/errs"
	"github.com/maloquacious/docvault/internal/store"
	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"
)

const firstDocumentQuery = `SELECT id, length(doc) FROM documents ORDER BY id LIMIT 1;`

// Export streams the oldest document to w through a read-only blob handle
// and returns the number of bytes written. An empty table yields NOT_FOUND.
func Export(ctx context.Context, dbPath string, w io.Writer) (n int64, err error) {
	if err := ctx.Err(); err != nil {
		return 0, errs.Wrap(errs.KindCanceled, "export canceled", err)
	}

	conn, err := openConn(dbPath)
	if err != nil {
		return 0, err
	}
	defer conn.Close()

	// Keep the row stable while it is read.
	release := sqlitex.Save(conn)
	defer release(&err)

	id, size := int64(-1), int64(0)
	err = sqlitex.Execute(conn, firstDocumentQuery, &sqlitex.ExecOptions{
		ResultFunc: func(stmt *sqlite.Stmt) error {
			id = stmt.ColumnInt64(0)
			size = stmt.ColumnInt64(1)
			return nil
		},
	})
	if err != nil {
		return 0, errs.Wrap(errs.KindStoreIO, "failed to read document", err)
	}
	if id < 0 {
		return 0, errs.New(errs.KindNotFound, "no documents stored")
	}
	if size == 0 {
		return 0, nil
	}

	blob, err := conn.OpenBlob("main", store.DocumentsTable, store.DocumentColumn, id, false)
	if err != nil {
		return 0, errs.Wrap(errs.KindStoreIO, "failed to open document blob", err)
	}
	n, op, copyErr := pump(ctx, w, blob, make([]byte, ChunkSize), -1)
	closeErr := blob.Close()

	switch {
	case copyErr != nil && op == opWrite:
		return n, errs.Wrap(errs.KindSourceIO, "failed to write exported document", copyErr)
	case copyErr != nil && op == opRead:
		return n, errs.Wrap(errs.KindStoreIO, "failed to read document", copyErr)
	case copyErr != nil:
		return n, errs.Wrap(errs.KindCanceled, "export canceled", copyErr)
	case closeErr != nil:
		return n, errs.Wrap(errs.KindStoreIO, "failed to close document blob", closeErr)
	}
	return n, nil
}
