// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package overlay mounts a proven layer composition as a kernel
// overlay filesystem and unmounts it again.
//
// [New] accepts any [layer.Mountable]: a composition straight from
// layer.Validate, or one whose mirrored sources the mirror package has
// already copied and resolved. The lower sources are stacked in
// configured order, so the first one listed wins over the rest, and
// the upper source wins over every lower.
//
// Kernel overlay mount failures are usually reported as a bare EINVAL.
// When [Manager.Mount] fails it runs the kernel log tool (dmesg by
// default) and attaches the most recent lines, newest first, to the
// returned [MountError]. Failure to collect them is recorded next to
// the mount error and never replaces it.
//
// The mount and unmount system calls sit behind [Mounter] and the
// diagnostics command behind process.Runner, so the manager is testable
// without root.
package overlay
