package store

import (
	"fmt"
	"os"
	"path/filepath"
)

// DBExt is appended to the application name to form the database file name.
const DBExt = ".db"

// CheckExists verifies if the database file exists at the given path.
// Returns true if the file exists, false otherwise.
func CheckExists(dbPath string) (bool, error) {
	info, err := os.Stat(dbPath)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to check store existence: %w", err)
	}
	if info.IsDir() {
		return false, fmt.Errorf("datastore path is a directory, expected file: %s", dbPath)
	}
	return true, nil
}

// GetDBPath returns the full path to the database file for appName inside dataDir.
func GetDBPath(dataDir, appName string) string {
	return filepath.Join(dataDir, appName+DBExt)
}

// EnsureDir creates the data directory if it does not exist yet.
func EnsureDir(dataDir string) error {
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return fmt.Errorf("failed to create data directory: %w", err)
	}
	return nil
}
