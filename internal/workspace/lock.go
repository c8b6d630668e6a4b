// Package workspace guards the shared host working directory. Every
// invocation bind mounts the same directory read-write, so two launchers
// running against it at once would race; the advisory lock here makes that
// mutual exclusion explicit.
package workspace

import (
	"fmt"
	"os"
	"path/filepath"
)

// LockName is the lock file created inside the workspace directory.
const LockName = ".ndrbatch.lock"

// Lock is a held workspace lock.
type Lock struct {
	path string
}

// Acquire takes the advisory lock for the given workspace directory. It fails
// if another launcher already holds it; the error names the lock file so the
// operator can remove it after a crash.
func Acquire(workspaceDir string) (*Lock, error) {
	path := filepath.Join(workspaceDir, LockName)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		if os.IsExist(err) {
			return nil, fmt.Errorf(
				"workspace %s is locked by another launcher (remove %s if that run is dead)",
				workspaceDir, path)
		}
		return nil, fmt.Errorf("acquire workspace lock: %w", err)
	}

	fmt.Fprintf(f, "%d\n", os.Getpid())
	if err := f.Close(); err != nil {
		_ = os.Remove(path)
		return nil, fmt.Errorf("write workspace lock: %w", err)
	}
	return &Lock{path: path}, nil
}

// Release removes the lock file. Safe to call on a nil lock.
func (l *Lock) Release() error {
	if l == nil {
		return nil
	}
	if err := os.Remove(l.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("release workspace lock: %w", err)
	}
	return nil
}
