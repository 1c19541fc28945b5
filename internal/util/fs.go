package util

import (
	"fmt"
	"os"
	"path/filepath"
)

// EnsureDir creates path and any missing parents.
func EnsureDir(path string) error {
	if err := os.MkdirAll(path, 0o755); err != nil {
		return fmt.Errorf("mkdir %s: %w", path, err)
	}
	return nil
}

// SafeJoin anchors name directly under root, discarding any directory
// components so a crafted filename cannot escape the target directory.
func SafeJoin(root, name string) string {
	return filepath.Join(root, filepath.Base(name))
}
