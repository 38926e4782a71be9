// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package mirror keeps local copies of remote lower sources current.
//
// A lower source whose sync mode is once or constant is not mounted
// from its own location. It is first copied into its destination
// directory with rsync (archive mode, deleting files the source no
// longer has), and the union mount uses the copy. [NewManager] performs
// that first copy for every such source and returns a [Synced]
// composition whose lower sources point at the destinations.
//
// Constant sources are copied again every time the caller invokes
// [Manager.TrySync]. The package owns no timer; the caller decides the
// cadence. Each retry is classified against the time of the last
// successful copy:
//
//   - success resets the staleness clock ([StatusOK]),
//   - a failure within the caller's maximum age is [StatusTransient]
//     and the mount may keep serving the slightly stale copy,
//   - a failure past the maximum age is [StatusFatal], and the syncer
//     stays fatal from then on.
//
// All subprocesses go through a [process.Runner] and all time through a
// [clock.Clock], so the policy is testable without rsync or real time.
package mirror
