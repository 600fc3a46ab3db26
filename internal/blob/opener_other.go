//go:build !windows

package blob

// DefaultOpener returns PlainOpener: there is no mandatory share-deny-write
// open mode outside Windows, and advisory locks do not stop other writers.
func DefaultOpener() LockingFileOpener {
	return PlainOpener{}
}
