// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

//go:build linux

package overlay

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// Mount mounts an overlay filesystem on target. On failure the returned
// error wraps the syscall's errno.
func (KernelMounter) Mount(target, options string) error {
	if err := unix.Mount("overlay", target, "overlay", 0, options); err != nil {
		return fmt.Errorf("mount overlay on %s: %w", target, err)
	}
	return nil
}

// Unmount unmounts target.
func (KernelMounter) Unmount(target string) error {
	if err := unix.Unmount(target, 0); err != nil {
		return fmt.Errorf("unmount %s: %w", target, err)
	}
	return nil
}

// IsOverlay reports whether path is the root of a mounted overlay
// filesystem, by comparing its filesystem magic number.
func IsOverlay(path string) (bool, error) {
	var stat unix.Statfs_t
	if err := unix.Statfs(path, &stat); err != nil {
		return false, fmt.Errorf("statfs %s: %w", path, err)
	}
	return stat.Type == unix.OVERLAYFS_SUPER_MAGIC, nil
}
