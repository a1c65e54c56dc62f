package fileops

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

var (
	statFile   = os.Stat
	renameFile = os.Rename
	removeFile = os.Remove
)

const backupSuffix = ".pullguard.bak"

// WriteFile writes data next to target and swaps it into place. An existing
// target is kept as a backup until the swap succeeds and restored if it fails.
func WriteFile(target string, data []byte, perm os.FileMode) error {
	if target == "" {
		return fmt.Errorf("write target path is empty")
	}
	temp, err := os.CreateTemp(filepath.Dir(target), "."+filepath.Base(target)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tempPath := temp.Name()
	committed := false
	defer func() {
		if !committed {
			_ = removeFile(tempPath)
		}
	}()

	if _, err := temp.Write(data); err != nil {
		_ = temp.Close()
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := temp.Sync(); err != nil {
		_ = temp.Close()
		return fmt.Errorf("sync temp file: %w", err)
	}
	if err := temp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Chmod(tempPath, perm); err != nil {
		return fmt.Errorf("chmod temp file: %w", err)
	}

	if err := replace(tempPath, target); err != nil {
		return err
	}
	committed = true
	return nil
}

func replace(temp string, target string) error {
	backup := target + backupSuffix
	if err := removeFile(backup); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove stale backup %q: %w", backup, err)
	}

	hadTarget := false
	if info, err := statFile(target); err == nil {
		if info.IsDir() {
			return fmt.Errorf("write target is a directory: %s", target)
		}
		hadTarget = true
		if err := renameFile(target, backup); err != nil {
			return fmt.Errorf("move existing file to backup: %w", err)
		}
	} else if !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("stat write target %q: %w", target, err)
	}

	if err := renameFile(temp, target); err != nil {
		if hadTarget {
			if rollbackErr := renameFile(backup, target); rollbackErr != nil {
				return fmt.Errorf("replace failed (%v) and rollback failed (%w)", err, rollbackErr)
			}
		}
		return fmt.Errorf("move temp file into place: %w", err)
	}

	if hadTarget {
		if err := removeFile(backup); err != nil {
			return fmt.Errorf("cleanup backup %q: %w", backup, err)
		}
	}
	return nil
}
