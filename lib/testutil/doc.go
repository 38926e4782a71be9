// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package testutil provides shared test helpers for layermount packages.
//
// [WriteFile] and [WriteTree] build directory trees for validator and
// mirror tests. [ReadTree] snapshots a tree back into a map so tests can
// compare mirror destinations against their sources.
//
// [Receive] and [ReceiveWithin] wait for a value from a channel with a
// timeout safety valve, so individual tests never block forever on a
// goroutine that failed to report.
//
// All helpers call t.Fatalf on failure rather than returning errors,
// since test setup failures are not recoverable.
//
// This package has no layermount-internal dependencies.
package testutil
