// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package overlay

import (
	"errors"
	"fmt"
	"syscall"
)

// MountError reports a failed overlay mount, together with whatever
// kernel log lines could be collected afterwards.
type MountError struct {
	Target  string
	Options string
	Err     error

	// Diagnostics holds the most recent kernel log lines, newest first.
	Diagnostics []string

	// DiagnosticsErr is set when the kernel log could not be read.
	DiagnosticsErr error
}

func (e *MountError) Error() string {
	message := fmt.Sprintf("mounting overlay on %s (%s): %v", e.Target, e.Options, e.Err)
	switch {
	case e.DiagnosticsErr != nil:
		message += fmt.Sprintf(" (kernel log unavailable: %v)", e.DiagnosticsErr)
	case len(e.Diagnostics) > 0:
		message += fmt.Sprintf(" (%d kernel log lines attached)", len(e.Diagnostics))
	}
	return message
}

func (e *MountError) Unwrap() error { return e.Err }

// Errno returns the system error number behind the failure, or 0.
func (e *MountError) Errno() syscall.Errno { return errnoOf(e.Err) }

// UnmountError reports a failed unmount.
type UnmountError struct {
	Target string
	Err    error
}

func (e *UnmountError) Error() string {
	return fmt.Sprintf("unmounting overlay at %s: %v", e.Target, e.Err)
}

func (e *UnmountError) Unwrap() error { return e.Err }

// Errno returns the system error number behind the failure, or 0.
func (e *UnmountError) Errno() syscall.Errno { return errnoOf(e.Err) }

func errnoOf(err error) syscall.Errno {
	var errno syscall.Errno
	if errors.As(err, &errno) {
		return errno
	}
	return 0
}
