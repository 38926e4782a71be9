// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package layer

import (
	"fmt"
	"path/filepath"
)

// NonRelativeError reports a configured subpath that is absolute and
// therefore not relative to the volume it belongs to.
type NonRelativeError struct {
	// Path is the offending subpath.
	Path string

	// Base is the volume the subpath was supposed to be relative to.
	Base string
}

func (e *NonRelativeError) Error() string {
	return fmt.Sprintf("path %q must be relative to %q (must not start with /)", e.Path, e.Base)
}

// EnforceRelative fails with a *NonRelativeError if candidate is an
// absolute path. It performs no I/O.
func EnforceRelative(base, candidate string) error {
	if filepath.IsAbs(candidate) {
		return &NonRelativeError{Path: candidate, Base: base}
	}
	return nil
}
