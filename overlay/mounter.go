// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package overlay

import "errors"

// ErrUnsupported is returned by KernelMounter on platforms without
// overlay filesystem support.
var ErrUnsupported = errors.New("overlay mounts are only supported on Linux")

// Mounter performs overlay mounts and unmounts. KernelMounter is the
// production implementation.
type Mounter interface {
	// Mount mounts an overlay filesystem on target with the given
	// comma-separated option string.
	Mount(target, options string) error

	// Unmount unmounts target.
	Unmount(target string) error
}

// KernelMounter issues mount(2) and umount2(2) directly. The process
// needs CAP_SYS_ADMIN in the mount namespace.
type KernelMounter struct{}
