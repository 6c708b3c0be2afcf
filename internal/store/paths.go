package store

import (
	"fmt"
	"os"
	"path/filepath"
)

// DefaultDBName is the run log's file name inside the data directory.
const DefaultDBName = "runs.db"

// DBPath returns the run log location inside dataDir.
func DBPath(dataDir string) string {
	return filepath.Join(dataDir, DefaultDBName)
}

// EnsureDataDir creates dataDir if it doesn't exist.
// Returns nil if the directory already exists or was successfully created.
func EnsureDataDir(dataDir string) error {
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return fmt.Errorf("failed to create data directory %s: %w", dataDir, err)
	}
	return nil
}
