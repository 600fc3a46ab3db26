// Package blob streams files into and out of the documents table through
// SQLite incremental blob I/O, one fixed-size chunk at a time.
package blob

import (
	"context"
	"errors"
	"io"

	"github.com/maloquacious/docvault/internal/errs"
	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"
)

// ChunkSize is the size of every read and write except the last.
const ChunkSize = 1 << 20

// openConn opens a fresh read-write connection to an existing database.
func openConn(dbPath string) (*sqlite.Conn, error) {
	conn, err := sqlite.OpenConn(dbPath, sqlite.OpenReadWrite, sqlite.OpenWAL)
	if err != nil {
		return nil, errs.Wrap(errs.KindOpen, "failed to open database", err)
	}
	if err := sqlitex.ExecuteTransient(conn, "PRAGMA busy_timeout = 5000;", nil); err != nil {
		conn.Close()
		return nil, errs.Wrap(errs.KindOpen, "failed to open database", err)
	}
	return conn, nil
}

// copyOp names the side of a copy that failed.
type copyOp int

const (
	opNone copyOp = iota
	opRead
	opWrite
)

var errSourceGrew = errors.New("source has more bytes than were allocated")

// pump copies src to dst in len(buf)-sized chunks until a zero-length read or EOF.
// When limit >= 0, reading more than limit bytes fails before anything past it is written.
// ctx is checked before every chunk.
func pump(ctx context.Context, dst io.Writer, src io.Reader, buf []byte, limit int64) (int64, copyOp, error) {
	var written int64
	for {
		if err := ctx.Err(); err != nil {
			return written, opNone, err
		}
		n, rerr := io.ReadFull(src, buf)
		if n > 0 {
			if limit >= 0 && written+int64(n) > limit {
				return written, opRead, errSourceGrew
			}
			wn, werr := dst.Write(buf[:n])
			written += int64(wn)
			if werr != nil {
				return written, opWrite, werr
			}
			if wn != n {
				return written, opWrite, io.ErrShortWrite
			}
		}
		switch {
		case rerr == nil:
			if n == 0 {
				return written, opNone, nil
			}
		case errors.Is(rerr, io.EOF), errors.Is(rerr, io.ErrUnexpectedEOF):
			return written, opNone, nil
		default:
			return written, opRead, rerr
		}
	}
}
