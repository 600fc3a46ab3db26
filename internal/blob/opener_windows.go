//go:build windows

package blob

import (
	"os"

	"golang.org/x/sys/windows"
)

// ShareDenyWriteOpener opens files for reading while letting other processes
// read but not write them until the handle is closed.
type ShareDenyWriteOpener struct{}

func (ShareDenyWriteOpener) Open(path string) (*os.File, error) {
	name, err := windows.UTF16PtrFromString(path)
	if err != nil {
		return nil, &os.PathError{Op: "open", Path: path, Err: err}
	}
	h, err := windows.CreateFile(
		name,
		windows.GENERIC_READ,
		windows.FILE_SHARE_READ,
		nil,
		windows.OPEN_EXISTING,
		windows.FILE_ATTRIBUTE_NORMAL,
		0,
	)
	if err != nil {
		return nil, &os.PathError{Op: "open", Path: path, Err: err}
	}
	return os.NewFile(uintptr(h), path), nil
}

func (ShareDenyWriteOpener) DeniesWriters() bool {
	return true
}

// DefaultOpener returns the share-deny-write opener.
func DefaultOpener() LockingFileOpener {
	return ShareDenyWriteOpener{}
}
