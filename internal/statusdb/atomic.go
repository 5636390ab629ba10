package statusdb

import (
	"fmt"
	"os"
	"path/filepath"
)

// writeFileAtomic writes data to path via a temp file in the same
// directory, fsyncs the temp file, renames it over path, then fsyncs the
// parent directory so the rename itself is durable (spec.md §4.5's atomic
// write protocol; mirrors dpkg's own writedb()+dir_sync_path() sequence).
func writeFileAtomic(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".new-*")
	if err != nil {
		return fmt.Errorf("statusdb: creating temp file for %s: %w", path, err)
	}
	tmpName := tmp.Name()
	cleanup := true
	defer func() {
		if cleanup {
			tmp.Close()
			os.Remove(tmpName)
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		return fmt.Errorf("statusdb: writing %s: %w", tmpName, err)
	}
	if err := tmp.Chmod(perm); err != nil {
		return fmt.Errorf("statusdb: chmod %s: %w", tmpName, err)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("statusdb: fsync %s: %w", tmpName, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("statusdb: closing %s: %w", tmpName, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("statusdb: renaming %s to %s: %w", tmpName, path, err)
	}
	cleanup = false

	if err := syncDir(dir); err != nil {
		return fmt.Errorf("statusdb: fsync directory %s: %w", dir, err)
	}
	return nil
}

// syncDir fsyncs a directory so that prior renames/unlinks within it are
// durable, matching dpkg's dir_sync_path().
func syncDir(dir string) error {
	f, err := os.Open(dir)
	if err != nil {
		return err
	}
	defer f.Close()
	return f.Sync()
}
