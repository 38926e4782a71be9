// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

//go:build !linux

package overlay

func (KernelMounter) Mount(target, options string) error { return ErrUnsupported }

func (KernelMounter) Unmount(target string) error { return ErrUnsupported }

// IsOverlay always fails with ErrUnsupported.
func IsOverlay(path string) (bool, error) { return false, ErrUnsupported }
