// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package overlay

import (
	"errors"
	"fmt"
	"strings"

	"github.com/bureau-foundation/layermount/layer"
)

// MountOptions returns the overlay option string for config:
//
//	lowerdir=<lower1>:<lower2>...,upperdir=<upper>,workdir=<work>
//
// Lower directories are each source's MountPath, in configured order.
// Paths that would corrupt the option string are rejected.
func MountOptions(config layer.Config) (string, error) {
	if len(config.Lowers) == 0 {
		return "", errors.New("overlay needs at least one lower source")
	}

	lowers := make([]string, 0, len(config.Lowers))
	for _, lower := range config.Lowers {
		path := lower.MountPath()
		if err := validateOptionPath(path, "lower"); err != nil {
			return "", err
		}
		// The kernel splits lowerdir on ':' and has no escaping we can rely
		// on across versions.
		if strings.Contains(path, ":") {
			return "", fmt.Errorf("lower path %q contains ':' which separates overlay lower directories", path)
		}
		lowers = append(lowers, path)
	}

	upper := config.Upper.UpperPath()
	if err := validateOptionPath(upper, "upper"); err != nil {
		return "", err
	}
	work := config.Upper.WorkPath()
	if err := validateOptionPath(work, "work"); err != nil {
		return "", err
	}

	return fmt.Sprintf("lowerdir=%s,upperdir=%s,workdir=%s",
		strings.Join(lowers, ":"), upper, work), nil
}

// validateOptionPath rejects characters that would let a path inject
// extra mount options. Commas separate options and cannot be escaped.
func validateOptionPath(path, field string) error {
	if strings.Contains(path, ",") {
		return fmt.Errorf("%s path %q contains comma which would corrupt overlay mount options: "+
			"commas are used as option separators and cannot be safely escaped", field, path)
	}
	if strings.ContainsAny(path, "\x00\n\r") {
		return fmt.Errorf("%s path %q contains invalid characters (null or newline)", field, path)
	}
	return nil
}
