// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package mirror

import (
	"fmt"
	"time"
)

// ExitError reports a mirror command that ran and exited non-zero.
type ExitError struct {
	Code int

	// Stderr is the command's trimmed standard error output.
	Stderr string
}

func (e *ExitError) Error() string {
	if e.Stderr == "" {
		return fmt.Sprintf("mirror command exited with status %d", e.Code)
	}
	return fmt.Sprintf("mirror command exited with status %d: %s", e.Code, e.Stderr)
}

// LaunchError reports a mirror command that could not be started or did
// not run to completion.
type LaunchError struct {
	Binary string
	Err    error
}

func (e *LaunchError) Error() string {
	return fmt.Sprintf("running %s: %v", e.Binary, e.Err)
}

func (e *LaunchError) Unwrap() error { return e.Err }

// SourceError attributes a failure to the lower source it concerns.
type SourceError struct {
	// Path is the source's full path.
	Path string
	Err  error
}

func (e *SourceError) Error() string {
	return fmt.Sprintf("mirroring %s: %v", e.Path, e.Err)
}

func (e *SourceError) Unwrap() error { return e.Err }

// StaleError is the error carried by a fatal result: the mirror failed
// and the last good copy is older than the permitted age.
type StaleError struct {
	// Age is the time since the last successful mirror.
	Age    time.Duration
	MaxAge time.Duration
	Err    error
}

func (e *StaleError) Error() string {
	return fmt.Sprintf("mirror stale for %s (limit %s): %v", e.Age, e.MaxAge, e.Err)
}

func (e *StaleError) Unwrap() error { return e.Err }
