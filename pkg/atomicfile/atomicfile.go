// Package atomicfile writes files so that readers never observe partial
// content. Data goes to a uniquely named sibling temp file which is synced
// and renamed over the target in one step.
package atomicfile

import (
	"fmt"
	"os"
	"path/filepath"
)

// beforeRename runs after the temp file is durable and before the rename.
// Tests replace it to simulate a crash at that point.
var beforeRename = func(tmpPath, finalPath string) {}

// WriteFile writes data to path atomically. If path already exists its
// permission bits are kept, otherwise perm is used.
func WriteFile(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	if info, err := os.Stat(path); err == nil {
		perm = info.Mode().Perm()
	}

	tmpFile, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp file for %s: %w", path, err)
	}
	tmpPath := tmpFile.Name()

	success := false
	defer func() {
		if !success {
			os.Remove(tmpPath)
		}
	}()

	if _, err := tmpFile.Write(data); err != nil {
		tmpFile.Close()
		return fmt.Errorf("writing temp file %s: %w", tmpPath, err)
	}
	if err := tmpFile.Sync(); err != nil {
		tmpFile.Close()
		return fmt.Errorf("syncing temp file %s: %w", tmpPath, err)
	}
	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("closing temp file %s: %w", tmpPath, err)
	}
	if err := os.Chmod(tmpPath, perm); err != nil {
		return fmt.Errorf("setting mode on %s: %w", tmpPath, err)
	}

	beforeRename(tmpPath, path)

	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("renaming %s to %s: %w", tmpPath, path, err)
	}
	success = true

	syncDir(dir)
	return nil
}

// syncDir flushes the directory entry of a completed rename. Failure only
// weakens durability across power loss, so it is ignored.
func syncDir(dir string) {
	d, err := os.Open(dir)
	if err != nil {
		return
	}
	_ = d.Sync()
	_ = d.Close()
}
