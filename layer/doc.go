// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package layer describes a union-mount layer composition and proves it
// safe to mount.
//
// A composition ([Config]) is an ordered list of read-only lower
// sources ([LowerSource]), one writable upper source ([UpperSource]),
// and an allow-list of relative paths that may exist in both. The first
// lower source listed shadows later ones; the upper source shadows all
// of them.
//
// Path safety is enforced at construction: [NewLowerSource] and
// [NewUpperSource] reject absolute subpaths ([EnforceRelative]), so a
// subpath that escapes its volume can never reach the filesystem layer.
//
// [Validate] is the only way to obtain a [Validated] composition. It
// creates the upper, work, and merged directories and then performs
// masking detection: every file path found under any lower source is
// looked up under the upper directory, and a hit that is not
// allow-listed fails validation with a [MaskedFilesError]. The writable
// layer is expected to hold only files that are new relative to the
// static lower layers. A file present in both means stale writable
// state or a configuration bug, and mounting over it would silently
// hide the content the lower layer is meant to control.
//
// [Validated] and the mirror package's Synced composition both satisfy
// [Mountable], which is what the overlay package accepts. Neither can
// be assembled by hand from an unchecked [Config].
package layer
