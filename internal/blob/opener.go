package blob

import "os"

// LockingFileOpener opens an import source for reading.
//
// Implementations differ in what other processes may do while the file is open:
// ShareDenyWriteOpener (Windows) blocks writers for the lifetime of the handle,
// PlainOpener does not, so a concurrent writer can change the source mid-copy.
// The importer detects size changes but not in-place rewrites of the same length.
type LockingFileOpener interface {
	Open(path string) (*os.File, error)
	// DeniesWriters reports whether other processes are blocked from writing
	// to the file while it is open.
	DeniesWriters() bool
}

// PlainOpener opens files with os.Open and takes no lock.
type PlainOpener struct{}

func (PlainOpener) Open(path string) (*os.File, error) {
	return os.Open(path)
}

func (PlainOpener) DeniesWriters() bool {
	return false
}
