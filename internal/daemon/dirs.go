package daemon

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"syscall"
)

// dirPerm applies to every directory the daemon creates.
const dirPerm = 0750

// DirConfig names the three directories a daemon instance owns.
type DirConfig struct {
	Inbox  string // where submitters drop job files
	Outbox string // where results land
	State  string // processing area and the PID lock
}

// ProcessingDir is the State subdirectory holding jobs mid-run.
func (d DirConfig) ProcessingDir() string {
	return filepath.Join(d.State, "processing")
}

// EnsureDirs creates the full layout. Safe to call on every start.
func EnsureDirs(cfg DirConfig) error {
	for _, dir := range []string{cfg.Inbox, cfg.Outbox, cfg.ProcessingDir()} {
		if err := os.MkdirAll(dir, dirPerm); err != nil {
			return fmt.Errorf("mkdir %s: %w", dir, err)
		}
	}
	return nil
}

// moveFile renames src to dst, falling back to copy + remove when the
// two sit on different filesystems. Bind-mounted inboxes hit that case.
func moveFile(src, dst string) error {
	err := os.Rename(src, dst)
	if err == nil || !isCrossDevice(err) {
		return err
	}
	if err := copyFile(src, dst); err != nil {
		return err
	}
	return os.Remove(src)
}

func isCrossDevice(err error) bool {
	var errno syscall.Errno
	return errors.As(err, &errno) && errno == syscall.EXDEV
}

// copyFile is the EXDEV fallback for moveFile. Job files are a few KB
// of JSON, so they are read whole. A partial dst is removed rather
// than left for the orphan scan to trip over.
func copyFile(src, dst string) error {
	info, err := os.Stat(src)
	if err != nil {
		return err
	}
	data, err := os.ReadFile(src)
	if err != nil {
		return err
	}
	if err := os.WriteFile(dst, data, info.Mode().Perm()); err != nil {
		_ = os.Remove(dst)
		return err
	}
	return nil
}
