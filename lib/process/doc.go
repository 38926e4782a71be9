// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package process provides the two process-level capabilities the
// layermount packages share:
//
//   - [Runner], a narrow interface for invoking external tools (the
//     mirror tool, the kernel log reader) and capturing their exit
//     status and output. Production code uses [ExecRunner]; tests
//     substitute a [RunnerFunc] so no real binary is executed.
//   - [Fatal], the binary entrypoint error handler used in main() when
//     the structured logger may not be initialized. Errors implementing
//     [ExitCoder] pick their own exit status.
package process
