// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package util

import (
	"fmt"
	"os"
	"path/filepath"
)

// Perms pairs a written file's mode with the mode of any directory created
// to hold it.
type Perms struct {
	File os.FileMode
	Dir  os.FileMode
}

var (
	// PrivatePerms is used for the config file, which can carry a proxy URL.
	PrivatePerms = Perms{File: 0600, Dir: 0700}
	// SharedPerms is used for transcript exports.
	SharedPerms = Perms{File: 0644, Dir: 0755}
)

// ReplaceFile stages data in "<name>.partial" beside path and renames it over
// path once synced. A failed write leaves any previous file untouched and
// removes the staged copy.
func ReplaceFile(path string, data []byte, perms Perms) (err error) {
	target, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("resolve %s: %w", path, err)
	}
	if err := os.MkdirAll(filepath.Dir(target), perms.Dir); err != nil {
		return fmt.Errorf("create directory for %s: %w", path, err)
	}

	staged := target + ".partial"
	f, err := os.OpenFile(staged, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, perms.File)
	if err != nil {
		return fmt.Errorf("stage %s: %w", path, err)
	}
	defer func() {
		if err != nil {
			_ = os.Remove(staged)
		}
	}()

	_, err = f.Write(data)
	if err == nil {
		err = f.Sync()
	}
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	// OpenFile applies the umask; the stored mode must match perms exactly.
	if err = os.Chmod(staged, perms.File); err != nil {
		return fmt.Errorf("chmod %s: %w", path, err)
	}
	if err = os.Rename(staged, target); err != nil {
		return fmt.Errorf("replace %s: %w", path, err)
	}
	return nil
}
